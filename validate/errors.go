package validate

import "fmt"

// ErrorKind classifies a validation failure. Every kind is fatal to the
// function being validated; the kind only says what went wrong.
type ErrorKind int

const (
	TypeMismatch ErrorKind = iota + 1
	UnknownIndex
	UnknownLabel
	UninitializedLocal
	FeatureDisabled
	StructuralError
	TrailingOrMissingEnd
)

var strKind = []string{
	TypeMismatch:         "type mismatch",
	UnknownIndex:         "unknown index",
	UnknownLabel:         "unknown label",
	UninitializedLocal:   "uninitialized local",
	FeatureDisabled:      "feature disabled",
	StructuralError:      "malformed structure",
	TrailingOrMissingEnd: "trailing or missing end",
}

func (k ErrorKind) Error() string {
	if k <= 0 || int(k) >= len(strKind) {
		return fmt.Sprintf("validation error %d", int(k))
	}
	return strKind[k]
}

// Error describes one validation failure and the byte offset of the
// instruction that caused it.
type Error struct {
	Kind   ErrorKind
	Offset int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("at offset %d: %s", e.Offset, e.Msg)
}

// Unwrap exposes the kind, so callers can write
// errors.Is(err, validate.TypeMismatch).
func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind ErrorKind, offset int, format string, args ...any) *Error {
	return &Error{
		Kind:   kind,
		Offset: offset,
		Msg:    fmt.Sprintf(format, args...),
	}
}
