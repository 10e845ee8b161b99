package tensor

import (
	"errors"
	"fmt"
)

// Kind classifies every error the engine reports.
type Kind int

// Error kinds.
const (
	ShapeMismatch Kind = iota + 1
	BufferTooSmall
	UnsupportedConfiguration
	NumericFailure
	InvalidState
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case ShapeMismatch:
		return "shape mismatch"
	case BufferTooSmall:
		return "buffer too small"
	case UnsupportedConfiguration:
		return "unsupported configuration"
	case NumericFailure:
		return "numeric failure"
	case InvalidState:
		return "invalid state"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is checks.
var (
	ErrShapeMismatch            = errors.New("shape mismatch")
	ErrBufferTooSmall           = errors.New("buffer too small")
	ErrUnsupportedConfiguration = errors.New("unsupported configuration")
	ErrNumericFailure           = errors.New("numeric failure")
	ErrInvalidState             = errors.New("invalid state")
)

// Error carries the kind, the operation that failed and a description.
type Error struct {
	Kind   Kind   // Error classification
	Op     string // Operation that failed (e.g., "dense.forward")
	Detail string // Additional details
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Detail)
}

// Is reports whether target is the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k Kind) sentinel() error {
	switch k {
	case ShapeMismatch:
		return ErrShapeMismatch
	case BufferTooSmall:
		return ErrBufferTooSmall
	case UnsupportedConfiguration:
		return ErrUnsupportedConfiguration
	case NumericFailure:
		return ErrNumericFailure
	case InvalidState:
		return ErrInvalidState
	default:
		return nil
	}
}

// Errorf builds an *Error with a formatted detail message.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind of err, or 0 if err is not an engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
