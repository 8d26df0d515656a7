package flink

import (
	"errors"
	"fmt"
)

// Sentinel errors for decode failures.
// Use errors.Is() to check for these errors and errors.As() with *DecodeError for details.
var (
	// ErrDuplicateField indicates the same field appeared more than once in one record.
	ErrDuplicateField = errors.New("duplicate field")

	// ErrMissingField indicates a required field was never assigned.
	ErrMissingField = errors.New("missing field")

	// ErrCoercion indicates a value could not be normalized into the field's type.
	ErrCoercion = errors.New("invalid value")

	// ErrUnsupportedRepresentation indicates a structured value (object or array)
	// where a scalar was expected.
	ErrUnsupportedRepresentation = errors.New("unsupported representation")
)

// DecodeError describes the first structural violation found while decoding a record.
type DecodeError struct {
	Kind   error  // one of the sentinels above
	Field  string // wire name, nested fields as "tasks.running"
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	if e.Reason == "" {
		return fmt.Sprintf("%s %q", e.Kind, e.Field)
	}
	return fmt.Sprintf("%s %q: %s", e.Kind, e.Field, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Kind
}

func duplicateField(field string) error {
	return &DecodeError{Kind: ErrDuplicateField, Field: field}
}

func missingField(field string) error {
	return &DecodeError{Kind: ErrMissingField, Field: field}
}

func coercionError(field, format string, args ...any) error {
	return &DecodeError{Kind: ErrCoercion, Field: field, Reason: fmt.Sprintf(format, args...)}
}

func unsupported(field string, v Value) error {
	return &DecodeError{Kind: ErrUnsupportedRepresentation, Field: field, Reason: "got " + v.Kind.String()}
}
