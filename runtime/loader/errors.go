package loader

import (
	"fmt"

	"github.com/conduit-lang/neuron/compiler/errors"
)

// Sentinels matched with errors.Is against *Error values
var (
	ErrModuleNotFound = errors.ErrModuleNotFound
	ErrMalformedID    = errors.ErrMalformedID
	ErrForbiddenAsync = errors.ErrForbiddenAsync
)

// Error is a runtime failure raised at the call site that dereferenced id
type Error struct {
	Code    string
	ID      string
	Message string
	kind    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("neuron: %s: %s", e.Code, e.Message)
}

// Unwrap exposes the sentinel for errors.Is
func (e *Error) Unwrap() error {
	return e.kind
}

func moduleNotFound(id string) *Error {
	return &Error{
		Code:    errors.ErrModuleNotFoundCode,
		ID:      id,
		Message: fmt.Sprintf("cannot find module %q", id),
		kind:    ErrModuleNotFound,
	}
}

func nullID() *Error {
	return &Error{
		Code:    errors.ErrModuleNotFoundCode,
		Message: "null id",
		kind:    ErrModuleNotFound,
	}
}

func versionProhibited(id string) *Error {
	return &Error{
		Code:    errors.ErrMalformedIDCode,
		ID:      id,
		Message: fmt.Sprintf("id with '@' is prohibited: %q", id),
		kind:    ErrMalformedID,
	}
}

func forbiddenAsync(id string) *Error {
	return &Error{
		Code:    errors.ErrForbiddenAsyncCode,
		ID:      id,
		Message: fmt.Sprintf("%q is not the main module of a foreign package and cannot be loaded asynchronously", id),
		kind:    ErrForbiddenAsync,
	}
}
