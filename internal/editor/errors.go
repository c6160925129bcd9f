package editor

import (
	"errors"
	"fmt"

	"textedit/internal/linestore"
	"textedit/internal/pathenc"
)

// Kind is the closed set of failure categories an operation can report.
type Kind int

const (
	KindInvalidPath Kind = iota
	KindInvalidRange
	KindInvalidRequest
	KindFileNotFound
	KindAlreadyExists
	KindPermissionDenied
	KindDirectoryError
	KindIoError
	KindEncodingError
	KindFileHashMismatch
	KindRangeHashMismatch
	KindOverlappingPatches
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidPath:
		return "invalid_path"
	case KindInvalidRange:
		return "invalid_range"
	case KindInvalidRequest:
		return "invalid_request"
	case KindFileNotFound:
		return "file_not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindPermissionDenied:
		return "permission_denied"
	case KindDirectoryError:
		return "directory_error"
	case KindIoError:
		return "io_error"
	case KindEncodingError:
		return "encoding_error"
	case KindFileHashMismatch:
		return "file_hash_mismatch"
	case KindRangeHashMismatch:
		return "range_hash_mismatch"
	case KindOverlappingPatches:
		return "overlapping_patches"
	default:
		return "internal_error"
	}
}

// OpError is the structured error value every failed operation returns.
// Errors are data: they cross the transport as a response body, never as an
// exception. FileHash carries the current on-disk generation on hash
// mismatches so the caller can re-read; Suggestion names an alternative
// capability; Hint is a one-line human nudge.
type OpError struct {
	Kind       Kind
	Reason     string
	FileHash   string
	Suggestion string
	Hint       string
}

func (e *OpError) Error() string { return e.Reason }

func opErrorf(kind Kind, format string, args ...any) *OpError {
	return &OpError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func (e *OpError) withHash(h string) *OpError {
	e.FileHash = h
	return e
}

func (e *OpError) withSuggestion(capability, hint string) *OpError {
	e.Suggestion = capability
	e.Hint = hint
	return e
}

// classify maps the sentinel errors of the lower layers onto the wire
// taxonomy. Unrecognized errors surface as io_error.
func classify(err error) *OpError {
	var op *OpError
	if errors.As(err, &op) {
		return op
	}
	var encErr *pathenc.EncodingError
	switch {
	case errors.As(err, &encErr):
		return opErrorf(KindEncodingError, "%v", err)
	case errors.Is(err, pathenc.ErrInvalidPath):
		return opErrorf(KindInvalidPath, "%v", err)
	case errors.Is(err, pathenc.ErrUnknownEncoding):
		return opErrorf(KindEncodingError, "%v", err)
	case errors.Is(err, linestore.ErrFileNotFound):
		return opErrorf(KindFileNotFound, "%v", err)
	case errors.Is(err, linestore.ErrPermissionDenied):
		return opErrorf(KindPermissionDenied, "%v", err)
	case errors.Is(err, linestore.ErrDirectory):
		return opErrorf(KindDirectoryError, "%v", err)
	case errors.Is(err, linestore.ErrFileTooLarge):
		return opErrorf(KindIoError, "%v", err)
	default:
		return opErrorf(KindIoError, "%v", err)
	}
}
