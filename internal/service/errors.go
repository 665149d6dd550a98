package service

import "fmt"

// Kind classifies engine errors for the HTTP layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindPrecondition
	KindNotFound
	KindExternal
)

// Error is the typed error surface of the engine. Detail is safe to
// return to clients.
type Error struct {
	Kind   Kind
	Detail string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.cause)
	}
	return e.Detail
}

func (e *Error) Unwrap() error { return e.cause }

func errValidation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Detail: fmt.Sprintf(format, args...)}
}

func errPrecondition(format string, args ...any) error {
	return &Error{Kind: KindPrecondition, Detail: fmt.Sprintf(format, args...)}
}

func errNotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Detail: fmt.Sprintf(format, args...)}
}

func errExternal(cause error, format string, args ...any) error {
	return &Error{Kind: KindExternal, Detail: fmt.Sprintf(format, args...), cause: cause}
}

func errInternal(cause error, format string, args ...any) error {
	return &Error{Kind: KindInternal, Detail: fmt.Sprintf(format, args...), cause: cause}
}

// KindOf extracts the kind of an engine error; anything else is internal.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindInternal
}

// Detail extracts the client-safe detail of an engine error.
func Detail(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Detail
	}
	return "internal error"
}
