// Package serviceerror carries stable, loggable failure codes out of the domain services.
package serviceerror

import (
	"errors"
	"fmt"
)

// Error pairs a "<operation>.<reason>" code with its underlying cause.
type Error struct {
	code string
	err  error
}

func (e *Error) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) Code() string {
	return e.code
}

// New builds an Error whose code is operation and reason joined by a dot.
func New(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &Error{code: code, err: cause}
}

// CodeOf returns the code of the first Error in err's chain, or "" if none.
func CodeOf(err error) string {
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		return serviceErr.code
	}
	return ""
}
