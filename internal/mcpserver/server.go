// Package mcpserver exposes the edit engine over the Model Context
// Protocol: one tool per engine capability plus a text:// resource for
// line-range reads. The transport owns framing and discovery; this package
// owns argument shapes and the mapping of engine errors onto response
// bodies.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"textedit/internal/editor"
	"textedit/internal/version"
)

// Server wires an Engine into an MCP server.
type Server struct {
	engine *editor.Engine
	mcp    *mcp.Server
	tracer trace.Tracer
	calls  metric.Int64Counter
}

// GetTextFileContentsArgs is the argument shape of get_text_file_contents.
type GetTextFileContentsArgs struct {
	Files []editor.FileRequest `json:"files"`
}

// CreateTextFileArgs is the argument shape of create_text_file.
type CreateTextFileArgs struct {
	FilePath string `json:"file_path"`
	Contents string `json:"contents"`
	Encoding string `json:"encoding,omitempty"`
}

// AppendTextFileContentsArgs is the argument shape of append_text_file_contents.
type AppendTextFileContentsArgs struct {
	FilePath string `json:"file_path"`
	FileHash string `json:"file_hash"`
	Contents string `json:"contents"`
	Encoding string `json:"encoding,omitempty"`
}

// InsertTextFileContentsArgs is the argument shape of insert_text_file_contents.
type InsertTextFileContentsArgs struct {
	FilePath string `json:"file_path"`
	FileHash string `json:"file_hash"`
	Contents string `json:"contents"`
	After    *int   `json:"after,omitempty"`
	Before   *int   `json:"before,omitempty"`
	Encoding string `json:"encoding,omitempty"`
}

// DeleteTextFileContentsArgs is the argument shape of delete_text_file_contents.
type DeleteTextFileContentsArgs struct {
	FilePath string               `json:"file_path"`
	FileHash string               `json:"file_hash"`
	Ranges   []editor.HashedRange `json:"ranges"`
	Encoding string               `json:"encoding,omitempty"`
}

// PatchTextFileContentsArgs is the argument shape of
// patch_text_file_contents and preview_text_file_patches.
type PatchTextFileContentsArgs struct {
	FilePath string         `json:"file_path"`
	FileHash string         `json:"file_hash"`
	Patches  []editor.Patch `json:"patches"`
	Encoding string         `json:"encoding,omitempty"`
}

// errorBody is the wire shape of every failed operation.
type errorBody struct {
	Result     string `json:"result"`
	Reason     string `json:"reason"`
	FileHash   string `json:"file_hash,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Hint       string `json:"hint,omitempty"`
}

// New creates the MCP server and registers every capability.
func New(engine *editor.Engine) *Server {
	s := &Server{
		engine: engine,
		tracer: otel.Tracer("textedit/mcpserver"),
	}
	meter := otel.Meter("textedit/mcpserver")
	if c, err := meter.Int64Counter("textedit.tool_calls"); err == nil {
		s.calls = c
	}

	srv := mcp.NewServer(&mcp.Implementation{Name: "textedit", Version: version.Version}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_text_file_contents",
		Description: "Read line ranges from one or more text files, returning contents plus the file and range hashes needed for safe edits.",
	}, s.handleGetContents)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "create_text_file",
		Description: "Create a new text file with the given contents. Refuses to overwrite an existing file.",
	}, s.handleCreate)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "append_text_file_contents",
		Description: "Append contents to the end of an existing text file, guarded by its current file hash.",
	}, s.handleAppend)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "insert_text_file_contents",
		Description: "Insert contents before or after a specific line of a text file, guarded by its current file hash.",
	}, s.handleInsert)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "delete_text_file_contents",
		Description: "Delete line ranges from a text file. Each range carries the hash of its current text.",
	}, s.handleDelete)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "patch_text_file_contents",
		Description: "Apply multiple line-range patches to a text file in one atomic commit. Patches must not overlap and are guarded by file and range hashes.",
	}, s.handlePatch)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "preview_text_file_patches",
		Description: "Validate patches and show the diff a commit would produce, without writing.",
	}, s.handlePreview)

	srv.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "text-file-lines",
		URITemplate: "text://{+path}",
		Description: "Line-range reads of absolute file paths, e.g. text:///etc/hosts?lines=2-5.",
		MIMEType:    "text/plain",
	}, s.handleResourceRead)

	s.mcp = srv
	return s
}

// Run serves the MCP protocol over the given transport until the client
// disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	return s.mcp.Run(ctx, t)
}

// Underlying returns the wrapped SDK server, used by tests to connect
// in-memory sessions.
func (s *Server) Underlying() *mcp.Server { return s.mcp }

func (s *Server) handleGetContents(ctx context.Context, req *mcp.CallToolRequest, args GetTextFileContentsArgs) (*mcp.CallToolResult, any, error) {
	out, err := s.run(ctx, "get_text_file_contents", func(ctx context.Context) (any, error) {
		return s.engine.ReadMulti(ctx, args.Files)
	})
	return out, nil, err
}

func (s *Server) handleCreate(ctx context.Context, req *mcp.CallToolRequest, args CreateTextFileArgs) (*mcp.CallToolResult, any, error) {
	out, err := s.run(ctx, "create_text_file", func(ctx context.Context) (any, error) {
		return s.engine.Create(ctx, args.FilePath, args.Contents, args.Encoding)
	})
	return out, nil, err
}

func (s *Server) handleAppend(ctx context.Context, req *mcp.CallToolRequest, args AppendTextFileContentsArgs) (*mcp.CallToolResult, any, error) {
	out, err := s.run(ctx, "append_text_file_contents", func(ctx context.Context) (any, error) {
		return s.engine.Append(ctx, args.FilePath, args.FileHash, args.Contents, args.Encoding)
	})
	return out, nil, err
}

func (s *Server) handleInsert(ctx context.Context, req *mcp.CallToolRequest, args InsertTextFileContentsArgs) (*mcp.CallToolResult, any, error) {
	out, err := s.run(ctx, "insert_text_file_contents", func(ctx context.Context) (any, error) {
		return s.engine.Insert(ctx, args.FilePath, args.FileHash, args.Contents, args.After, args.Before, args.Encoding)
	})
	return out, nil, err
}

func (s *Server) handleDelete(ctx context.Context, req *mcp.CallToolRequest, args DeleteTextFileContentsArgs) (*mcp.CallToolResult, any, error) {
	out, err := s.run(ctx, "delete_text_file_contents", func(ctx context.Context) (any, error) {
		return s.engine.Delete(ctx, args.FilePath, args.FileHash, args.Ranges, args.Encoding)
	})
	return out, nil, err
}

func (s *Server) handlePatch(ctx context.Context, req *mcp.CallToolRequest, args PatchTextFileContentsArgs) (*mcp.CallToolResult, any, error) {
	out, err := s.run(ctx, "patch_text_file_contents", func(ctx context.Context) (any, error) {
		return s.engine.Patch(ctx, args.FilePath, args.FileHash, args.Patches, args.Encoding)
	})
	return out, nil, err
}

func (s *Server) handlePreview(ctx context.Context, req *mcp.CallToolRequest, args PatchTextFileContentsArgs) (*mcp.CallToolResult, any, error) {
	out, err := s.run(ctx, "preview_text_file_patches", func(ctx context.Context) (any, error) {
		return s.engine.PreviewPatch(ctx, args.FilePath, args.FileHash, args.Patches, args.Encoding)
	})
	return out, nil, err
}

// run executes one engine operation under a span and renders the response.
// Engine errors are values on the wire, never protocol faults; only a
// marshalling failure escapes as an internal error.
func (s *Server) run(ctx context.Context, name string, op func(context.Context) (any, error)) (*mcp.CallToolResult, error) {
	ctx, span := s.tracer.Start(ctx, "tools/"+name)
	defer span.End()

	payload, err := op(ctx)
	if err != nil {
		s.count(ctx, name, true)
		body := toErrorBody(err)
		log.Debug().Str("tool", name).Str("reason", body.Reason).Msg("operation failed")
		return errorResult(body)
	}
	s.count(ctx, name, false)
	return jsonResult(payload, false)
}

func (s *Server) count(ctx context.Context, name string, failed bool) {
	if s.calls == nil {
		return
	}
	s.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", name),
		attribute.Bool("error", failed),
	))
}

func toErrorBody(err error) errorBody {
	if op, ok := err.(*editor.OpError); ok {
		return errorBody{
			Result:     "error",
			Reason:     op.Reason,
			FileHash:   op.FileHash,
			Suggestion: op.Suggestion,
			Hint:       op.Hint,
		}
	}
	return errorBody{Result: "error", Reason: fmt.Sprintf("internal error: %v", err)}
}

func errorResult(body errorBody) (*mcp.CallToolResult, error) {
	res, err := jsonResult(body, true)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func jsonResult(payload any, isError bool) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling response: %w", err)
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(b)}},
		StructuredContent: payload,
		IsError:           isError,
	}, nil
}
