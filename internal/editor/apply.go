package editor

import (
	"context"
	"math"
	"sort"

	"textedit/internal/contenthash"
	"textedit/internal/linestore"
)

// span is a patch normalized for application: a concrete inclusive range
// plus the records to emit in its place. An insertion has end = start-1.
type span struct {
	start    int
	end      int
	contents string
	hash     *string
	sortEnd  int
	index    int
}

func (s span) empty() bool { return s.end < s.start }

// Patch is the central write operation: it validates the whole-file hash
// and every per-range hash, rejects overlapping patches, computes the new
// line vector, and commits it atomically. Patches are never applied
// partially.
func (e *Engine) Patch(ctx context.Context, path, expectedFileHash string, patches []Patch, encoding string) (*Result, error) {
	newImage, _, err := e.prepare(ctx, path, expectedFileHash, patches, encoding)
	if err != nil {
		return nil, err
	}
	return e.commit(ctx, path, newImage, encoding)
}

// Insert places contents before line `before` or after line `after`
// (exactly one must be set). It is sugar over the same apply path as Patch.
func (e *Engine) Insert(ctx context.Context, path, fileHash, contents string, after, before *int, encoding string) (*Result, error) {
	if (after == nil) == (before == nil) {
		return nil, opErrorf(KindInvalidRequest, "exactly one of after or before is required")
	}
	codec, opErr := e.resolve(path, encoding)
	if opErr != nil {
		return nil, opErr
	}
	im, err := e.store.Load(path, codec)
	if err != nil {
		op := classify(err)
		if op.Kind == KindFileNotFound {
			op.withSuggestion("create_text_file", "file does not exist; use create")
		}
		return nil, op
	}
	total := im.TotalLines()
	pos := 0
	switch {
	case before != nil:
		if *before < 1 || *before > total+1 {
			return nil, opErrorf(KindInvalidRange, "before must be in [1, %d], got %d", total+1, *before)
		}
		pos = *before
	default:
		if *after < 0 || *after > total {
			return nil, opErrorf(KindInvalidRange, "after must be in [0, %d], got %d", total, *after)
		}
		pos = *after + 1
	}
	end := pos - 1
	patch := Patch{LineStart: pos, LineEnd: &end, Contents: contents}
	newImage, _, opErr2 := e.prepare(ctx, path, fileHash, []Patch{patch}, encoding)
	if opErr2 != nil {
		return nil, opErr2
	}
	return e.commit(ctx, path, newImage, encoding)
}

// Delete removes the given hashed ranges. Each range must carry the hash of
// its current text; validation mirrors Patch exactly.
func (e *Engine) Delete(ctx context.Context, path, fileHash string, ranges []HashedRange, encoding string) (*Result, error) {
	if len(ranges) == 0 {
		return nil, opErrorf(KindInvalidRequest, "no ranges to delete")
	}
	patches := make([]Patch, 0, len(ranges))
	for i := range ranges {
		r := ranges[i]
		end := r.LineEnd
		hash := r.RangeHash
		patches = append(patches, Patch{LineStart: r.LineStart, LineEnd: &end, Contents: "", RangeHash: &hash})
	}
	newImage, _, err := e.prepare(ctx, path, fileHash, patches, encoding)
	if err != nil {
		return nil, err
	}
	return e.commit(ctx, path, newImage, encoding)
}

// Append adds contents at end of file. A final line without a terminator is
// first promoted to the dominant terminator so the appended text starts on
// its own line. A missing file is accepted only with an empty fileHash.
func (e *Engine) Append(ctx context.Context, path, fileHash, contents string, encoding string) (*Result, error) {
	codec, opErr := e.resolve(path, encoding)
	if opErr != nil {
		return nil, opErr
	}
	total := 0
	if exists, err := e.store.Exists(path); err != nil {
		return nil, classify(err)
	} else if exists {
		im, err := e.store.Load(path, codec)
		if err != nil {
			return nil, classify(err)
		}
		total = im.TotalLines()
	} else if !contenthash.IsEmpty(fileHash) {
		return nil, opErrorf(KindFileNotFound, "file does not exist: %s", path).
			withSuggestion("create_text_file", "file does not exist; use create")
	}
	patch := Patch{LineStart: total + 1, Contents: contents}
	newImage, _, err := e.prepare(ctx, path, fileHash, []Patch{patch}, encoding)
	if err != nil {
		return nil, err
	}
	return e.commit(ctx, path, newImage, encoding)
}

// Create writes a brand-new file, creating missing parent directories. An
// existing file is never overwritten.
func (e *Engine) Create(ctx context.Context, path, contents, encoding string) (*Result, error) {
	codec, opErr := e.resolve(path, encoding)
	if opErr != nil {
		return nil, opErr
	}
	exists, err := e.store.Exists(path)
	if err != nil {
		return nil, classify(err)
	}
	if exists {
		return nil, opErrorf(KindAlreadyExists, "file already exists: %s", path).
			withSuggestion("patch_text_file_contents", "file exists; read it and patch instead")
	}
	if err := ctx.Err(); err != nil {
		return nil, opErrorf(KindIoError, "operation cancelled: %v", err)
	}
	if err := e.store.Create(path, contents, codec); err != nil {
		return nil, classify(err)
	}
	return okResult(contenthash.Hash(contents)), nil
}

// prepare runs the whole pre-validation pipeline and builds the new image.
// No side effect happens here; every failure leaves the file untouched.
func (e *Engine) prepare(ctx context.Context, path, expectedFileHash string, patches []Patch, encoding string) (*linestore.Image, *linestore.Image, *OpError) {
	codec, opErr := e.resolve(path, encoding)
	if opErr != nil {
		return nil, nil, opErr
	}

	exists, err := e.store.Exists(path)
	if err != nil {
		return nil, nil, classify(err)
	}

	im := &linestore.Image{}
	if exists {
		loaded, err := e.store.Load(path, codec)
		if err != nil {
			return nil, nil, classify(err)
		}
		im = loaded
	} else if !contenthash.IsEmpty(expectedFileHash) {
		return nil, nil, opErrorf(KindFileNotFound, "file does not exist: %s", path).
			withSuggestion("create_text_file", "file does not exist; use create")
	}

	actualHash := contenthash.Hash(im.Content())
	if exists {
		if contenthash.IsEmpty(expectedFileHash) && im.TotalLines() > 0 {
			return nil, nil, opErrorf(KindFileHashMismatch, "file exists but an empty hash was given").
				withHash(actualHash).
				withSuggestion("get_text_file_contents", "read the file to obtain its current hash")
		}
		if !contenthash.IsEmpty(expectedFileHash) && expectedFileHash != actualHash {
			return nil, nil, opErrorf(KindFileHashMismatch, "file hash mismatch: the file changed since it was read").
				withHash(actualHash).
				withSuggestion("get_text_file_contents", "re-read the file and retry with fresh hashes")
		}
	}

	if len(patches) == 0 {
		return nil, nil, opErrorf(KindInvalidRequest, "no patches given")
	}

	spans, opErr := normalize(patches, im.TotalLines())
	if opErr != nil {
		return nil, nil, opErr
	}
	if opErr := detectOverlap(spans); opErr != nil {
		return nil, nil, opErr
	}
	if opErr := checkRangeHashes(im, spans, exists, actualHash); opErr != nil {
		return nil, nil, opErr
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, opErrorf(KindIoError, "operation cancelled: %v", err)
	}

	return apply(im, spans), im, nil
}

func (e *Engine) commit(ctx context.Context, path string, newImage *linestore.Image, encoding string) (*Result, error) {
	codec, opErr := e.resolve(path, encoding)
	if opErr != nil {
		return nil, opErr
	}
	if err := ctx.Err(); err != nil {
		return nil, opErrorf(KindIoError, "operation cancelled: %v", err)
	}
	exists, err := e.store.Exists(path)
	if err != nil {
		return nil, classify(err)
	}
	content := newImage.Content()
	if exists {
		err = e.store.Write(path, newImage, codec)
	} else {
		err = e.store.Create(path, content, codec)
	}
	if err != nil {
		return nil, classify(err)
	}
	return okResult(contenthash.Hash(content)), nil
}

// normalize resolves absent line_end values and validates every range
// against the current image.
func normalize(patches []Patch, total int) ([]span, *OpError) {
	spans := make([]span, 0, len(patches))
	for i, p := range patches {
		if p.LineStart < 1 {
			return nil, opErrorf(KindInvalidRange, "patch %d: line_start must be >= 1, got %d", i+1, p.LineStart)
		}
		if p.LineStart > total+1 {
			return nil, opErrorf(KindInvalidRange, "patch %d: line_start (%d) exceeds file length (%d)", i+1, p.LineStart, total)
		}
		end := total
		sortEnd := math.MaxInt
		if p.LineStart == total+1 {
			// Append at file end: an implicitly empty range.
			end = p.LineStart - 1
		}
		if p.LineEnd != nil {
			if *p.LineEnd < p.LineStart-1 {
				return nil, opErrorf(KindInvalidRange, "patch %d: line_end (%d) is before line_start (%d)", i+1, *p.LineEnd, p.LineStart)
			}
			if *p.LineEnd > total {
				return nil, opErrorf(KindInvalidRange, "patch %d: line_end (%d) exceeds file length (%d)", i+1, *p.LineEnd, total)
			}
			end = *p.LineEnd
			sortEnd = *p.LineEnd
		}
		spans = append(spans, span{
			start:    p.LineStart,
			end:      end,
			contents: p.Contents,
			hash:     p.RangeHash,
			sortEnd:  sortEnd,
			index:    i + 1,
		})
	}
	sort.SliceStable(spans, func(a, b int) bool {
		if spans[a].start != spans[b].start {
			return spans[a].start < spans[b].start
		}
		return spans[a].sortEnd < spans[b].sortEnd
	})
	return spans, nil
}

// detectOverlap rejects any two patches whose ranges intersect. An insert
// point conflicts with a replacement only when it falls strictly inside it.
func detectOverlap(spans []span) *OpError {
	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			a, b := spans[i], spans[j]
			var clash bool
			switch {
			case a.empty() && b.empty():
				clash = false
			case a.empty():
				clash = b.start < a.start && a.start <= b.end
			case b.empty():
				clash = a.start < b.start && b.start <= a.end
			default:
				clash = b.start <= a.end && a.start <= b.end
			}
			if clash {
				return opErrorf(KindOverlappingPatches,
					"patches %d and %d overlap: lines %d-%d and %d-%d",
					a.index, b.index, a.start, a.end, b.start, b.end)
			}
		}
	}
	return nil
}

// checkRangeHashes recomputes each targeted range's hash against the
// current image. Replacements and deletions of existing text must carry a
// hash; insertions and brand-new files are exempt.
func checkRangeHashes(im *linestore.Image, spans []span, exists bool, fileHash string) *OpError {
	ordered := make([]span, len(spans))
	copy(ordered, spans)
	sort.SliceStable(ordered, func(a, b int) bool { return ordered[a].index < ordered[b].index })
	for _, s := range ordered {
		current := im.Slice(s.start, s.end)
		if s.hash == nil {
			if !s.empty() && exists {
				return opErrorf(KindInvalidRequest,
					"patch %d: range_hash is required when replacing lines %d-%d", s.index, s.start, s.end).
					withSuggestion("get_text_file_contents", "read the range first to obtain its hash")
			}
			continue
		}
		if *s.hash != contenthash.Hash(current) {
			return opErrorf(KindRangeHashMismatch,
				"patch %d: lines %d-%d changed since they were read", s.index, s.start, s.end).
				withHash(fileHash).
				withSuggestion("get_text_file_contents", "re-read the range and retry with a fresh range_hash")
		}
	}
	return nil
}

// apply builds the new line vector: untouched lines are copied verbatim,
// each span's contents are split with the loader's terminator rules, and
// any interior record left without a terminator picks up the dominant one.
// Only the final record of the file may remain unterminated.
func apply(im *linestore.Image, spans []span) *linestore.Image {
	dominant := im.Dominant()
	out := make([]linestore.Line, 0, im.TotalLines())
	next := 1
	for _, s := range spans {
		out = append(out, im.Lines[next-1:s.start-1]...)
		out = append(out, linestore.Split(s.contents)...)
		next = s.end + 1
	}
	out = append(out, im.Lines[next-1:]...)

	for i := range out {
		if i < len(out)-1 && out[i].Term == linestore.None {
			out[i].Term = dominant
		}
	}
	return im.WithLines(out)
}
