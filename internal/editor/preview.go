package editor

import (
	"context"

	"github.com/sergi/go-diff/diffmatchpatch"

	"textedit/internal/contenthash"
)

// PreviewPatch runs the full Patch validation pipeline and computes the
// resulting content, but never writes. The returned diff shows what a
// commit with the same arguments would change.
func (e *Engine) PreviewPatch(ctx context.Context, path, expectedFileHash string, patches []Patch, encoding string) (*Preview, error) {
	newImage, oldImage, opErr := e.prepare(ctx, path, expectedFileHash, patches, encoding)
	if opErr != nil {
		return nil, opErr
	}
	oldContent := oldImage.Content()
	newContent := newImage.Content()

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldContent, newContent, true)
	dmp.DiffCleanupSemantic(diffs)

	return &Preview{
		Result:      "preview",
		FileHash:    contenthash.Hash(oldContent),
		NewFileHash: contenthash.Hash(newContent),
		Diff:        dmp.PatchToText(dmp.PatchMake(oldContent, diffs)),
	}, nil
}
