package editor

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"textedit/internal/contenthash"
)

func TestPatch_ReplaceMiddle(t *testing.T) {
	dir := t.TempDir()
	path := seedFile(t, dir, "f.txt", "a\nb\nc\n")
	eng := New()

	res, err := eng.Patch(context.Background(), path, contenthash.Hash("a\nb\nc\n"), []Patch{
		{LineStart: 2, LineEnd: intp(2), Contents: "B\n", RangeHash: strp(contenthash.Hash("b\n"))},
	}, "")
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if got := readBack(t, path); got != "a\nB\nc\n" {
		t.Errorf("file = %q, want %q", got, "a\nB\nc\n")
	}
	if res.FileHash != contenthash.Hash("a\nB\nc\n") {
		t.Errorf("file_hash = %s", res.FileHash)
	}
	if res.Result != "ok" {
		t.Errorf("result = %q", res.Result)
	}
}

func TestPatch_StaleFileHash(t *testing.T) {
	dir := t.TempDir()
	original := "a\nb\nc\n"
	path := seedFile(t, dir, "f.txt", original)

	_, err := New().Patch(context.Background(), path, strings.Repeat("0", 64), []Patch{
		{LineStart: 2, LineEnd: intp(2), Contents: "B\n", RangeHash: strp(contenthash.Hash("b\n"))},
	}, "")
	op := wantKind(t, err, KindFileHashMismatch)
	if op.FileHash != contenthash.Hash(original) {
		t.Errorf("error file_hash = %s, want current hash", op.FileHash)
	}
	if got := readBack(t, path); got != original {
		t.Errorf("file changed on failed patch: %q", got)
	}
}

func TestPatch_Overlap(t *testing.T) {
	dir := t.TempDir()
	original := "1\n2\n3\n4\n"
	path := seedFile(t, dir, "f.txt", original)

	_, err := New().Patch(context.Background(), path, contenthash.Hash(original), []Patch{
		{LineStart: 1, LineEnd: intp(2), Contents: "X\n", RangeHash: strp(contenthash.Hash("1\n2\n"))},
		{LineStart: 2, LineEnd: intp(3), Contents: "Y\n", RangeHash: strp(contenthash.Hash("2\n3\n"))},
	}, "")
	wantKind(t, err, KindOverlappingPatches)
	if got := readBack(t, path); got != original {
		t.Errorf("file changed on overlap: %q", got)
	}
}

func TestPatch_InsertPointOverlapRules(t *testing.T) {
	dir := t.TempDir()
	original := "1\n2\n3\n4\n"
	eng := New()

	// An insert point strictly inside a replaced range conflicts.
	path := seedFile(t, dir, "inside.txt", original)
	_, err := eng.Patch(context.Background(), path, contenthash.Hash(original), []Patch{
		{LineStart: 2, LineEnd: intp(4), Contents: "X\n", RangeHash: strp(contenthash.Hash("2\n3\n4\n"))},
		{LineStart: 3, LineEnd: intp(2), Contents: "mid\n"},
	}, "")
	wantKind(t, err, KindOverlappingPatches)

	// An insert point at the first line of a replaced range does not.
	path = seedFile(t, dir, "boundary.txt", original)
	_, err = eng.Patch(context.Background(), path, contenthash.Hash(original), []Patch{
		{LineStart: 2, LineEnd: intp(3), Contents: "X\n", RangeHash: strp(contenthash.Hash("2\n3\n"))},
		{LineStart: 2, LineEnd: intp(1), Contents: "before\n"},
	}, "")
	if err != nil {
		t.Fatalf("boundary insert rejected: %v", err)
	}
	if got := readBack(t, path); got != "1\nbefore\nX\n4\n" {
		t.Errorf("file = %q, want %q", got, "1\nbefore\nX\n4\n")
	}
}

func TestPatch_RangeHashMismatch(t *testing.T) {
	dir := t.TempDir()
	original := "a\nb\nc\n"
	path := seedFile(t, dir, "f.txt", original)

	_, err := New().Patch(context.Background(), path, contenthash.Hash(original), []Patch{
		{LineStart: 2, LineEnd: intp(2), Contents: "B\n", RangeHash: strp(contenthash.Hash("stale"))},
	}, "")
	op := wantKind(t, err, KindRangeHashMismatch)
	if op.FileHash != contenthash.Hash(original) {
		t.Errorf("error file_hash = %s, want current hash", op.FileHash)
	}
	if readBack(t, path) != original {
		t.Error("file changed on range hash mismatch")
	}
}

func TestPatch_MissingRangeHashRejected(t *testing.T) {
	dir := t.TempDir()
	original := "a\nb\n"
	path := seedFile(t, dir, "f.txt", original)

	_, err := New().Patch(context.Background(), path, contenthash.Hash(original), []Patch{
		{LineStart: 1, LineEnd: intp(1), Contents: "A\n"},
	}, "")
	wantKind(t, err, KindInvalidRequest)
}

func TestPatch_MultipleDisjoint(t *testing.T) {
	dir := t.TempDir()
	original := "1\n2\n3\n4\n5\n"
	path := seedFile(t, dir, "f.txt", original)

	_, err := New().Patch(context.Background(), path, contenthash.Hash(original), []Patch{
		// Deliberately out of order; the engine sorts a working copy.
		{LineStart: 4, LineEnd: intp(5), Contents: "tail\n", RangeHash: strp(contenthash.Hash("4\n5\n"))},
		{LineStart: 1, LineEnd: intp(1), Contents: "head\n", RangeHash: strp(contenthash.Hash("1\n"))},
	}, "")
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if got := readBack(t, path); got != "head\n2\n3\ntail\n" {
		t.Errorf("file = %q", got)
	}
}

func TestPatch_DeletionViaEmptyContents(t *testing.T) {
	dir := t.TempDir()
	original := "a\nb\nc\n"
	path := seedFile(t, dir, "f.txt", original)

	_, err := New().Patch(context.Background(), path, contenthash.Hash(original), []Patch{
		{LineStart: 2, LineEnd: intp(2), Contents: "", RangeHash: strp(contenthash.Hash("b\n"))},
	}, "")
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if got := readBack(t, path); got != "a\nc\n" {
		t.Errorf("file = %q, want %q", got, "a\nc\n")
	}
}

func TestPatch_AppendAtEnd(t *testing.T) {
	dir := t.TempDir()
	original := "a\nb\n"
	path := seedFile(t, dir, "f.txt", original)

	_, err := New().Patch(context.Background(), path, contenthash.Hash(original), []Patch{
		{LineStart: 3, Contents: "c\n"},
	}, "")
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if got := readBack(t, path); got != "a\nb\nc\n" {
		t.Errorf("file = %q", got)
	}
}

func TestPatch_TrailingNewlinePolicy(t *testing.T) {
	dir := t.TempDir()
	eng := New()
	ctx := context.Background()

	// Unterminated contents at end of file stay unterminated.
	path := seedFile(t, dir, "tail.txt", "a\nb\n")
	if _, err := eng.Patch(ctx, path, contenthash.Hash("a\nb\n"), []Patch{
		{LineStart: 3, Contents: "c"},
	}, ""); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if got := readBack(t, path); got != "a\nb\nc" {
		t.Errorf("file = %q, want %q", got, "a\nb\nc")
	}

	// Unterminated contents mid-file pick up the dominant terminator.
	path = seedFile(t, dir, "mid.txt", "a\r\nb\r\nc\r\n")
	if _, err := eng.Patch(ctx, path, contenthash.Hash("a\r\nb\r\nc\r\n"), []Patch{
		{LineStart: 2, LineEnd: intp(2), Contents: "B", RangeHash: strp(contenthash.Hash("b\r\n"))},
	}, ""); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if got := readBack(t, path); got != "a\r\nB\r\nc\r\n" {
		t.Errorf("file = %q, want CRLF-terminated replacement", got)
	}
}

func TestPatch_NewFileWithEmptyHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new.txt")

	_, err := New().Patch(context.Background(), path, "", []Patch{
		{LineStart: 1, Contents: "hello\n"},
	}, "")
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if got := readBack(t, path); got != "hello\n" {
		t.Errorf("file = %q", got)
	}
}

func TestPatch_MissingFileWithHash(t *testing.T) {
	dir := t.TempDir()
	_, err := New().Patch(context.Background(), filepath.Join(dir, "gone.txt"), contenthash.Hash("x"), []Patch{
		{LineStart: 1, Contents: "x\n"},
	}, "")
	op := wantKind(t, err, KindFileNotFound)
	if op.Suggestion != "create_text_file" {
		t.Errorf("suggestion = %q, want create_text_file", op.Suggestion)
	}
}

func TestPatch_EmptyPatchList(t *testing.T) {
	dir := t.TempDir()
	path := seedFile(t, dir, "f.txt", "a\n")
	_, err := New().Patch(context.Background(), path, contenthash.Hash("a\n"), nil, "")
	wantKind(t, err, KindInvalidRequest)
}

func TestInsert(t *testing.T) {
	dir := t.TempDir()
	eng := New()
	ctx := context.Background()
	original := "a\nb\nc\n"
	hash := contenthash.Hash(original)

	tests := []struct {
		name   string
		after  *int
		before *int
		want   string
	}{
		{"after zero is before line 1", intp(0), nil, "X\na\nb\nc\n"},
		{"after middle", intp(2), nil, "a\nb\nX\nc\n"},
		{"before middle", nil, intp(2), "a\nX\nb\nc\n"},
		{"after last", intp(3), nil, "a\nb\nc\nX\n"},
		{"before end sentinel", nil, intp(4), "a\nb\nc\nX\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := seedFile(t, dir, strings.ReplaceAll(tt.name, " ", "_")+".txt", original)
			if _, err := eng.Insert(ctx, path, hash, "X\n", tt.after, tt.before, ""); err != nil {
				t.Fatalf("Insert: %v", err)
			}
			if got := readBack(t, path); got != tt.want {
				t.Errorf("file = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInsert_AfterEndEqualsBeforeSentinel(t *testing.T) {
	dir := t.TempDir()
	original := "a\nb\nc\n"
	hash := contenthash.Hash(original)
	eng := New()
	ctx := context.Background()

	viaAfter := seedFile(t, dir, "after.txt", original)
	viaBefore := seedFile(t, dir, "before.txt", original)
	if _, err := eng.Insert(ctx, viaAfter, hash, "tail\n", intp(3), nil, ""); err != nil {
		t.Fatalf("Insert after: %v", err)
	}
	if _, err := eng.Insert(ctx, viaBefore, hash, "tail\n", nil, intp(4), ""); err != nil {
		t.Fatalf("Insert before: %v", err)
	}
	if a, b := readBack(t, viaAfter), readBack(t, viaBefore); a != b {
		t.Errorf("after=%q and before=%q should be identical", a, b)
	}
}

func TestInsert_UnterminatedInteriorContents(t *testing.T) {
	dir := t.TempDir()
	original := "a\nb\n"
	path := seedFile(t, dir, "f.txt", original)
	if _, err := New().Insert(context.Background(), path, contenthash.Hash(original), "X", intp(1), nil, ""); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := readBack(t, path); got != "a\nX\nb\n" {
		t.Errorf("file = %q, want %q", got, "a\nX\nb\n")
	}
}

func TestInsert_Errors(t *testing.T) {
	dir := t.TempDir()
	original := "a\nb\n"
	path := seedFile(t, dir, "f.txt", original)
	hash := contenthash.Hash(original)
	eng := New()
	ctx := context.Background()

	_, err := eng.Insert(ctx, path, hash, "X\n", intp(1), intp(1), "")
	wantKind(t, err, KindInvalidRequest)

	_, err = eng.Insert(ctx, path, hash, "X\n", nil, nil, "")
	wantKind(t, err, KindInvalidRequest)

	_, err = eng.Insert(ctx, path, hash, "X\n", intp(9), nil, "")
	wantKind(t, err, KindInvalidRange)

	_, err = eng.Insert(ctx, path, hash, "X\n", nil, intp(0), "")
	wantKind(t, err, KindInvalidRange)

	_, err = eng.Insert(ctx, path, strings.Repeat("f", 64), "X\n", intp(1), nil, "")
	wantKind(t, err, KindFileHashMismatch)

	op := wantKind(t, mustErr(eng.Insert(ctx, filepath.Join(dir, "gone.txt"), hash, "X\n", intp(0), nil, "")), KindFileNotFound)
	if op.Suggestion != "create_text_file" {
		t.Errorf("suggestion = %q", op.Suggestion)
	}
}

func mustErr[T any](_ T, err error) error { return err }

func TestDelete(t *testing.T) {
	dir := t.TempDir()
	original := "1\n2\n3\n4\n5\n"
	path := seedFile(t, dir, "f.txt", original)

	_, err := New().Delete(context.Background(), path, contenthash.Hash(original), []HashedRange{
		{LineStart: 4, LineEnd: 4, RangeHash: contenthash.Hash("4\n")},
		{LineStart: 1, LineEnd: 2, RangeHash: contenthash.Hash("1\n2\n")},
	}, "")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := readBack(t, path); got != "3\n5\n" {
		t.Errorf("file = %q, want %q", got, "3\n5\n")
	}
}

func TestDelete_AllLinesYieldsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	original := "a\nb\n"
	path := seedFile(t, dir, "f.txt", original)

	res, err := New().Delete(context.Background(), path, contenthash.Hash(original), []HashedRange{
		{LineStart: 1, LineEnd: 2, RangeHash: contenthash.Hash(original)},
	}, "")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := readBack(t, path); got != "" {
		t.Errorf("file = %q, want empty", got)
	}
	if res.FileHash != contenthash.Empty {
		t.Errorf("file_hash = %s, want empty sentinel", res.FileHash)
	}
}

func TestDelete_Validation(t *testing.T) {
	dir := t.TempDir()
	original := "a\nb\nc\n"
	path := seedFile(t, dir, "f.txt", original)
	hash := contenthash.Hash(original)
	eng := New()
	ctx := context.Background()

	_, err := eng.Delete(ctx, path, hash, nil, "")
	wantKind(t, err, KindInvalidRequest)

	_, err = eng.Delete(ctx, path, hash, []HashedRange{
		{LineStart: 1, LineEnd: 2, RangeHash: contenthash.Hash("a\nb\n")},
		{LineStart: 2, LineEnd: 3, RangeHash: contenthash.Hash("b\nc\n")},
	}, "")
	wantKind(t, err, KindOverlappingPatches)

	_, err = eng.Delete(ctx, path, hash, []HashedRange{
		{LineStart: 1, LineEnd: 1, RangeHash: contenthash.Hash("wrong")},
	}, "")
	wantKind(t, err, KindRangeHashMismatch)

	if readBack(t, path) != original {
		t.Error("file changed on failed delete")
	}
}

func TestAppend(t *testing.T) {
	dir := t.TempDir()
	original := "a\nb\n"
	path := seedFile(t, dir, "f.txt", original)

	_, err := New().Append(context.Background(), path, contenthash.Hash(original), "c\n", "")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if got := readBack(t, path); got != "a\nb\nc\n" {
		t.Errorf("file = %q", got)
	}
}

func TestAppend_PromotesUnterminatedLastLine(t *testing.T) {
	dir := t.TempDir()
	path := seedFile(t, dir, "f.txt", "abc")

	_, err := New().Append(context.Background(), path, contenthash.Hash("abc"), "def", "")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if got := readBack(t, path); got != "abc\ndef" {
		t.Errorf("file = %q, want %q", got, "abc\ndef")
	}
}

func TestAppend_MissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new.txt")
	eng := New()
	ctx := context.Background()

	// Empty hash: treated as create.
	if _, err := eng.Append(ctx, path, "", "first\n", ""); err != nil {
		t.Fatalf("Append create: %v", err)
	}
	if got := readBack(t, path); got != "first\n" {
		t.Errorf("file = %q", got)
	}

	// Non-empty hash on a missing file is refused.
	_, err := eng.Append(ctx, filepath.Join(dir, "other.txt"), contenthash.Hash("x"), "x\n", "")
	wantKind(t, err, KindFileNotFound)
}

func TestAppend_StaleHash(t *testing.T) {
	dir := t.TempDir()
	original := "a\n"
	path := seedFile(t, dir, "f.txt", original)
	_, err := New().Append(context.Background(), path, strings.Repeat("9", 64), "b\n", "")
	wantKind(t, err, KindFileHashMismatch)
	if readBack(t, path) != original {
		t.Error("file changed on failed append")
	}
}

func TestCreate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "dir", "new.txt")

	res, err := New().Create(context.Background(), path, "hello\nworld\n", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := readBack(t, path); got != "hello\nworld\n" {
		t.Errorf("file = %q", got)
	}
	if res.FileHash != contenthash.Hash("hello\nworld\n") {
		t.Errorf("file_hash = %s", res.FileHash)
	}
}

func TestCreate_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	original := "keep me\n"
	path := seedFile(t, dir, "f.txt", original)

	_, err := New().Create(context.Background(), path, "clobber\n", "")
	wantKind(t, err, KindAlreadyExists)
	if readBack(t, path) != original {
		t.Error("existing file changed")
	}
}

func TestTerminatorPreservation_NoopPatchRoundTrip(t *testing.T) {
	dir := t.TempDir()
	original := "a\nb\r\nc\rlast"
	path := seedFile(t, dir, "f.txt", original)

	// Replacing a range with its exact current text must preserve every
	// terminator byte in the file.
	_, err := New().Patch(context.Background(), path, contenthash.Hash(original), []Patch{
		{LineStart: 2, LineEnd: intp(2), Contents: "b\r\n", RangeHash: strp(contenthash.Hash("b\r\n"))},
	}, "")
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if got := readBack(t, path); got != original {
		t.Errorf("file = %q, want byte-identical %q", got, original)
	}
}

func TestReadThenPatchWithReturnedHashesCommits(t *testing.T) {
	dir := t.TempDir()
	path := seedFile(t, dir, "f.txt", "one\ntwo\nthree\n")
	eng := New()
	ctx := context.Background()

	read, err := eng.ReadRange(ctx, path, 2, intp(2), "")
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if _, err := eng.Patch(ctx, path, read.FileHash, []Patch{
		{LineStart: read.LineStart, LineEnd: &read.LineEnd, Contents: "TWO\n", RangeHash: &read.RangeHash},
	}, ""); err != nil {
		t.Fatalf("Patch with returned hashes: %v", err)
	}
	if got := readBack(t, path); got != "one\nTWO\nthree\n" {
		t.Errorf("file = %q", got)
	}
}

func TestConcurrentWriters_OneCommitsPerGeneration(t *testing.T) {
	dir := t.TempDir()
	original := "v1\n"
	path := seedFile(t, dir, "f.txt", original)
	hash := contenthash.Hash(original)
	eng := New()
	ctx := context.Background()

	if _, err := eng.Patch(ctx, path, hash, []Patch{
		{LineStart: 1, LineEnd: intp(1), Contents: "writer-a\n", RangeHash: strp(contenthash.Hash("v1\n"))},
	}, ""); err != nil {
		t.Fatalf("first writer: %v", err)
	}

	// The second writer still holds the old generation and must lose.
	_, err := eng.Patch(ctx, path, hash, []Patch{
		{LineStart: 1, LineEnd: intp(1), Contents: "writer-b\n", RangeHash: strp(contenthash.Hash("v1\n"))},
	}, "")
	wantKind(t, err, KindFileHashMismatch)
	if got := readBack(t, path); got != "writer-a\n" {
		t.Errorf("file = %q, want first writer's commit", got)
	}
}

func TestPreviewPatch_DoesNotWrite(t *testing.T) {
	dir := t.TempDir()
	original := "a\nb\nc\n"
	path := seedFile(t, dir, "f.txt", original)

	prev, err := New().PreviewPatch(context.Background(), path, contenthash.Hash(original), []Patch{
		{LineStart: 2, LineEnd: intp(2), Contents: "B\n", RangeHash: strp(contenthash.Hash("b\n"))},
	}, "")
	if err != nil {
		t.Fatalf("PreviewPatch: %v", err)
	}
	if readBack(t, path) != original {
		t.Error("preview wrote to the file")
	}
	if prev.NewFileHash != contenthash.Hash("a\nB\nc\n") {
		t.Errorf("new_file_hash = %s", prev.NewFileHash)
	}
	if prev.FileHash != contenthash.Hash(original) {
		t.Errorf("file_hash = %s", prev.FileHash)
	}
	if prev.Diff == "" {
		t.Error("expected a non-empty diff")
	}
}

func TestPreviewPatch_ValidatesLikePatch(t *testing.T) {
	dir := t.TempDir()
	original := "a\nb\n"
	path := seedFile(t, dir, "f.txt", original)

	_, err := New().PreviewPatch(context.Background(), path, strings.Repeat("0", 64), []Patch{
		{LineStart: 1, LineEnd: intp(1), Contents: "A\n", RangeHash: strp(contenthash.Hash("a\n"))},
	}, "")
	wantKind(t, err, KindFileHashMismatch)
}
