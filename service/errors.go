package service

import (
	"errors"
	"fmt"

	"github.com/nixj9/construction-doc-processor/model"
)

// ErrInvalidItem rejects a whole submission that contains a nil or unnamed item.
var ErrInvalidItem = errors.New("invalid item")

// ExtractionError is returned when metadata extraction fails.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string { return e.Err.Error() }
func (e *ExtractionError) Unwrap() error { return e.Err }

// UnsupportedTypeError is returned when no processor is registered for a type.
type UnsupportedTypeError struct {
	Type      model.FileType
	Extension string
}

func (e *UnsupportedTypeError) Error() string {
	if e.Extension == "" {
		return fmt.Sprintf("Unsupported file type: %s", e.Type)
	}
	return fmt.Sprintf("Unsupported file type: %s (.%s)", e.Type, e.Extension)
}

// DelegateError wraps an error raised by a processor. Its message is the
// processor's message unchanged.
type DelegateError struct {
	Type model.FileType
	Err  error
}

func (e *DelegateError) Error() string { return e.Err.Error() }
func (e *DelegateError) Unwrap() error { return e.Err }
