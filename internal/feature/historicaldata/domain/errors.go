// Package domain defines domain-level errors for the historical data feature.
package domain

import (
	"errors"
	"strings"
)

var (
	// ErrJobNotFound indicates that no job exists with the given identifier.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyExists indicates that a job with the same identifier has already been persisted.
	ErrJobAlreadyExists = errors.New("job already exists")

	// ErrInvalidTransition is returned when a job status change would leave a terminal state
	// or re-enter InProcessing.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrProvider wraps failures reported by the upstream market data provider.
	ErrProvider = errors.New("market data provider error")

	// ErrStorage wraps persistence failures.
	ErrStorage = errors.New("storage error")
)

// FieldError は1つの入力フィールドに対する検証エラーです。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError はリクエストが不正な場合に返されるエラーです。
// 失敗したフィールドをすべて保持します。
type ValidationError struct {
	Fields []FieldError
}

// Add appends a field failure.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns nil when no field failed, so callers can `return v.OrNil()`.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidationError reports whether err carries field-level validation failures.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
