package editor

// Range is an inclusive, 1-based line range. A nil LineEnd means "to end of
// file".
type Range struct {
	LineStart int  `json:"line_start"`
	LineEnd   *int `json:"line_end,omitempty"`
}

// Patch replaces, deletes, or inserts at an inclusive line range.
// LineEnd = LineStart-1 expresses a pure insertion before LineStart.
// Empty Contents expresses a deletion. RangeHash guards the current text of
// the targeted range; it is not required for insertions or brand-new files.
type Patch struct {
	LineStart int     `json:"line_start"`
	LineEnd   *int    `json:"line_end,omitempty"`
	Contents  string  `json:"contents"`
	RangeHash *string `json:"range_hash,omitempty"`
}

// HashedRange names a range to delete together with the hash of its current
// text.
type HashedRange struct {
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
	RangeHash string `json:"range_hash"`
}

// RangeRead is one selected range of a read response. Content is the exact
// on-disk substring, terminators included.
type RangeRead struct {
	Content     string `json:"content"`
	LineStart   int    `json:"line_start"`
	LineEnd     int    `json:"line_end"`
	RangeHash   string `json:"range_hash"`
	TotalLines  int    `json:"total_lines"`
	ContentSize int    `json:"content_size"`
}

// Read is the response of read_range: one range plus the whole-file hash.
type Read struct {
	RangeRead
	FileHash string `json:"file_hash"`
}

// FileRequest asks for one or more ranges of a single file.
type FileRequest struct {
	FilePath string  `json:"file_path"`
	Ranges   []Range `json:"ranges"`
	Encoding string  `json:"encoding,omitempty"`
}

// FileRead is the per-path entry of a read_multi response. The file hash is
// computed once per file; Error is set instead when that path failed.
type FileRead struct {
	FileHash string      `json:"file_hash,omitempty"`
	Ranges   []RangeRead `json:"ranges,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Result is the success response of every write operation.
type Result struct {
	Result   string `json:"result"`
	FileHash string `json:"file_hash"`
}

// Preview is the response of a dry-run patch: the full validation pipeline
// runs, nothing is written, and Diff shows what the commit would change.
type Preview struct {
	Result      string `json:"result"`
	FileHash    string `json:"file_hash"`
	NewFileHash string `json:"new_file_hash"`
	Diff        string `json:"diff"`
}

func okResult(hash string) *Result {
	return &Result{Result: "ok", FileHash: hash}
}
