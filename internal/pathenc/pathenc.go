// Package pathenc guards the two edges of every engine operation: the file
// path that names the target and the character set used to decode and encode
// its bytes. Nothing touches the filesystem until both have been accepted.
package pathenc

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultEncoding is used whenever a request omits the encoding field.
const DefaultEncoding = "utf-8"

var (
	ErrInvalidPath     = errors.New("invalid path")
	ErrUnknownEncoding = errors.New("unknown encoding")
)

// EncodingError reports a decode or encode failure together with the byte
// offset at which the transform stopped.
type EncodingError struct {
	Encoding string
	Offset   int
	Err      error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding %s failed at byte %d: %v", e.Encoding, e.Offset, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// ValidatePath rejects paths before any I/O is attempted. Paths must be
// absolute and contain no parent-directory ("..") segment; resolution is the
// caller's responsibility.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: path is empty", ErrInvalidPath)
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: %s is not absolute", ErrInvalidPath, path)
	}
	// Traversal segments are rejected on the raw path: for an absolute path
	// Clean would silently resolve them away, which is exactly the escape
	// this guard exists to refuse.
	for _, seg := range strings.Split(path, string(filepath.Separator)) {
		if seg == ".." {
			return fmt.Errorf("%w: %s contains parent traversal", ErrInvalidPath, path)
		}
	}
	return nil
}

// Codec is a named decoder/encoder pair resolved from the IANA/WHATWG
// registry carried by x/text.
type Codec struct {
	name string
	enc  encoding.Encoding
}

// Lookup resolves a charset name. Empty names resolve to utf-8.
func Lookup(name string) (*Codec, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultEncoding
	}
	name = strings.ToLower(strings.TrimSpace(name))
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
	return &Codec{name: name, enc: enc}, nil
}

// Name returns the canonical lowercase name the codec was resolved under.
func (c *Codec) Name() string { return c.name }

func (c *Codec) isUTF8() bool {
	return c.enc == unicode.UTF8 || c.name == "utf-8" || c.name == "utf8"
}

// Decode converts file bytes into a string. For utf-8 the bytes are
// validated and the first invalid byte is reported; other charsets follow
// x/text substitution semantics and only hard transform failures error.
func (c *Codec) Decode(b []byte) (string, error) {
	if c.isUTF8() {
		if !utf8.Valid(b) {
			return "", &EncodingError{Encoding: c.name, Offset: firstInvalidUTF8(b), Err: errors.New("invalid utf-8 byte")}
		}
		return string(b), nil
	}
	out, n, err := transform.Bytes(c.enc.NewDecoder(), b)
	if err != nil {
		return "", &EncodingError{Encoding: c.name, Offset: n, Err: err}
	}
	return string(out), nil
}

// Encode converts a string back into file bytes. Runes the target charset
// cannot represent fail with the offset of the offending byte in the UTF-8
// form of s.
func (c *Codec) Encode(s string) ([]byte, error) {
	if c.isUTF8() {
		return []byte(s), nil
	}
	out, n, err := transform.Bytes(c.enc.NewEncoder(), []byte(s))
	if err != nil {
		return nil, &EncodingError{Encoding: c.name, Offset: n, Err: err}
	}
	return out, nil
}

func firstInvalidUTF8(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return len(b)
}
