package e32

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors, usable with errors.Is.
var (
	ErrIncompleteResponse   = errors.New("incomplete response")
	ErrVerificationMismatch = errors.New("verification mismatch")
	ErrInvalidMode          = errors.New("invalid mode")
	ErrInvalidHead          = errors.New("invalid head")
)

// IncompleteResponseError indicates that the module returned fewer bytes than
// the command expects. A module that is not connected looks the same.
type IncompleteResponseError struct {
	Head     Head
	Expected int
	Received int
}

func (e *IncompleteResponseError) Error() string {
	return fmt.Sprintf("incomplete response to %s: expected %d bytes, got %d",
		e.Head, e.Expected, e.Received)
}

// Is reports whether target is ErrIncompleteResponse.
func (e *IncompleteResponseError) Is(target error) bool {
	return target == ErrIncompleteResponse
}

// VerificationMismatchError indicates that the configuration read back after
// a write differs from the configuration written.
type VerificationMismatchError struct {
	Written Config
	Read    Config
}

func (e *VerificationMismatchError) Error() string {
	w := e.Written.Bytes()
	r := e.Read.Bytes()

	var diffs []string

	for i := range w {
		if w[i] != r[i] {
			diffs = append(diffs, fmt.Sprintf("byte %d: wrote 0x%02X, read 0x%02X", i, w[i], r[i]))
		}
	}

	return fmt.Sprintf("verification mismatch: %s", strings.Join(diffs, ", "))
}

// HeadOnly reports whether the records differ in the head only. Modules answer
// a read with HeadConfigSaveHard, so a soft save that took effect reads back
// with a different head.
func (e *VerificationMismatchError) HeadOnly() bool {
	w := e.Written.Bytes()
	r := e.Read.Bytes()

	return w[0] != r[0] && bytes.Equal(w[1:], r[1:])
}

// Is reports whether target is ErrVerificationMismatch.
func (e *VerificationMismatchError) Is(target error) bool {
	return target == ErrVerificationMismatch
}
