package checkpoint

import (
	"errors"
	"fmt"
)

// Common errors. ErrNotFound is distinct from every corruption error so
// callers can start fresh on a missing artifact and fail on a broken one.
var (
	ErrNotFound           = errors.New("checkpoint not found")
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrTruncated          = errors.New("file truncated")
)

// ValidationError reports a malformed tensor table entry.
type ValidationError struct {
	Type    string // e.g. "out_of_bounds", "size_mismatch"
	Tensor  string
	Details string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Tensor != "" {
		return fmt.Sprintf("%s: tensor %q: %s", e.Type, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}
