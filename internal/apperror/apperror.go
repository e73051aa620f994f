// Package apperror defines the error kinds controllers hand to the HTTP
// error handler. Controllers never format errors themselves.
package apperror

import "errors"

// Kind classifies a controller failure.
type Kind string

// KindUnknown is the only kind the user controller produces. Not-found,
// conflicts and transport failures all collapse into it.
const KindUnknown Kind = "unknown"

// Error wraps an underlying failure with its kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Unknown wraps err as an undifferentiated failure.
func Unknown(err error) *Error {
	return &Error{Kind: KindUnknown, Err: err}
}

// KindOf returns the kind carried by err, and false if err carries none.
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}
