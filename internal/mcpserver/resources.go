package mcpserver

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const resourceScheme = "text://"

// handleResourceRead serves text://<absolute-path>?lines=S-E as a thin
// adapter over read_range. E may be empty, meaning "to end of file".
func (s *Server) handleResourceRead(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	ctx, span := s.tracer.Start(ctx, "resources/read")
	defer span.End()

	path, lineStart, lineEnd, err := parseResourceURI(req.Params.URI)
	if err != nil {
		return nil, err
	}
	read, err := s.engine.ReadRange(ctx, path, lineStart, lineEnd, "")
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", req.Params.URI, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     read.Content,
		}},
	}, nil
}

// parseResourceURI splits text://<path>?lines=S-E into its parts. Without a
// lines parameter the whole file is selected.
func parseResourceURI(uri string) (path string, lineStart int, lineEnd *int, err error) {
	if !strings.HasPrefix(uri, resourceScheme) {
		return "", 0, nil, fmt.Errorf("unsupported resource uri: %s", uri)
	}
	rest := strings.TrimPrefix(uri, resourceScheme)
	path = rest
	var query string
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		path, query = rest[:i], rest[i+1:]
	}
	if path, err = url.PathUnescape(path); err != nil {
		return "", 0, nil, fmt.Errorf("invalid resource path: %w", err)
	}

	lineStart = 1
	if query == "" {
		return path, lineStart, nil, nil
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return "", 0, nil, fmt.Errorf("invalid resource query: %w", err)
	}
	lines := values.Get("lines")
	if lines == "" {
		return path, lineStart, nil, nil
	}
	startStr, endStr, found := strings.Cut(lines, "-")
	if !found {
		return "", 0, nil, fmt.Errorf("lines parameter must be S-E, got %q", lines)
	}
	if lineStart, err = strconv.Atoi(startStr); err != nil {
		return "", 0, nil, fmt.Errorf("invalid start line %q", startStr)
	}
	if endStr != "" {
		n, err := strconv.Atoi(endStr)
		if err != nil {
			return "", 0, nil, fmt.Errorf("invalid end line %q", endStr)
		}
		lineEnd = &n
	}
	return path, lineStart, lineEnd, nil
}
