// Package editor implements the line-oriented edit engine: hash-guarded
// reads and writes over whole-line ranges of local text files. All
// concurrency control is optimistic; a request carries the content hashes it
// observed and loses cleanly when the file moved on.
package editor

import (
	"context"
	"strconv"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"textedit/internal/contenthash"
	"textedit/internal/linestore"
	"textedit/internal/pathenc"
)

// Engine exposes the public edit operations. It holds no per-file state:
// every operation loads, validates, and commits within its own call.
type Engine struct {
	store           *linestore.Store
	defaultEncoding string
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxFileBytes caps the size of files the engine will load.
func WithMaxFileBytes(n int64) Option {
	return func(e *Engine) { e.store.MaxFileBytes = n }
}

// WithDefaultEncoding overrides the charset used when requests omit one.
func WithDefaultEncoding(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.defaultEncoding = name
		}
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		store:           &linestore.Store{},
		defaultEncoding: pathenc.DefaultEncoding,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// resolve validates the path and resolves the request encoding.
func (e *Engine) resolve(path, encoding string) (*pathenc.Codec, *OpError) {
	if err := pathenc.ValidatePath(path); err != nil {
		return nil, classify(err)
	}
	if encoding == "" {
		encoding = e.defaultEncoding
	}
	codec, err := pathenc.Lookup(encoding)
	if err != nil {
		return nil, classify(err)
	}
	return codec, nil
}

// ReadRange returns the exact text of the inclusive range [lineStart,
// lineEnd] together with the hashes needed to edit it safely. A nil lineEnd
// reads to end of file.
func (e *Engine) ReadRange(ctx context.Context, path string, lineStart int, lineEnd *int, encoding string) (*Read, error) {
	codec, opErr := e.resolve(path, encoding)
	if opErr != nil {
		return nil, opErr
	}
	if lineEnd != nil && *lineEnd < lineStart {
		return nil, opErrorf(KindInvalidRange, "line_end (%d) is before line_start (%d)", *lineEnd, lineStart)
	}
	if lineStart < 1 {
		return nil, opErrorf(KindInvalidRange, "line_start must be >= 1, got %d", lineStart)
	}
	im, err := e.store.Load(path, codec)
	if err != nil {
		return nil, classify(err)
	}
	total := im.TotalLines()
	if lineStart > total+1 {
		return nil, opErrorf(KindInvalidRange, "line_start (%d) exceeds file length (%d)", lineStart, total)
	}
	end := total
	if lineEnd != nil && *lineEnd < end {
		end = *lineEnd
	}
	content := im.Slice(lineStart, end)
	return &Read{
		RangeRead: RangeRead{
			Content:     content,
			LineStart:   min(lineStart, total),
			LineEnd:     min(end, total),
			RangeHash:   contenthash.Hash(content),
			TotalLines:  total,
			ContentSize: utf8.RuneCountInString(content),
		},
		FileHash: contenthash.Hash(im.Content()),
	}, nil
}

// ReadMulti serves several files in one call. Each file is loaded exactly
// once regardless of how many ranges target it, loads run concurrently, and
// a failing path yields an error entry without sinking its siblings.
func (e *Engine) ReadMulti(ctx context.Context, reqs []FileRequest) (map[string]*FileRead, error) {
	if len(reqs) == 0 {
		return nil, opErrorf(KindInvalidRequest, "no files requested")
	}

	// Merge duplicate paths so each file is loaded once. The first request
	// for a path fixes its encoding.
	merged := make(map[string]*FileRequest, len(reqs))
	order := make([]string, 0, len(reqs))
	for i := range reqs {
		r := reqs[i]
		if m, ok := merged[r.FilePath]; ok {
			m.Ranges = append(m.Ranges, r.Ranges...)
			continue
		}
		cp := r
		merged[r.FilePath] = &cp
		order = append(order, r.FilePath)
	}

	out := make(map[string]*FileRead, len(merged))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, path := range order {
		req := merged[path]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry := e.readOne(req)
			mu.Lock()
			out[req.FilePath] = entry
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (e *Engine) readOne(req *FileRequest) *FileRead {
	codec, opErr := e.resolve(req.FilePath, req.Encoding)
	if opErr != nil {
		return &FileRead{Error: opErr.Reason}
	}
	im, err := e.store.Load(req.FilePath, codec)
	if err != nil {
		return &FileRead{Error: classify(err).Reason}
	}
	total := im.TotalLines()
	entry := &FileRead{FileHash: contenthash.Hash(im.Content())}
	ranges := req.Ranges
	if len(ranges) == 0 {
		ranges = []Range{{LineStart: 1}}
	}
	for _, r := range ranges {
		if r.LineStart < 1 || (r.LineEnd != nil && *r.LineEnd < r.LineStart) || r.LineStart > total+1 {
			end := "eof"
			if r.LineEnd != nil {
				end = strconv.Itoa(*r.LineEnd)
			}
			return &FileRead{Error: opErrorf(KindInvalidRange, "invalid range %d-%s for %s", r.LineStart, end, req.FilePath).Reason}
		}
		end := total
		if r.LineEnd != nil && *r.LineEnd < end {
			end = *r.LineEnd
		}
		content := im.Slice(r.LineStart, end)
		entry.Ranges = append(entry.Ranges, RangeRead{
			Content:     content,
			LineStart:   min(r.LineStart, total),
			LineEnd:     min(end, total),
			RangeHash:   contenthash.Hash(content),
			TotalLines:  total,
			ContentSize: utf8.RuneCountInString(content),
		})
	}
	return entry
}
