package types

import "strings"

// FieldError is a validation failure of one request field.
type FieldError struct {
	Field   string `json:"field"`   // JSON name of the field, e.g. "start_threshold_db"; empty for request-level errors
	Message string `json:"message"` // Human-readable error message
	Value   any    `json:"value"`   // The rejected value
}

// ValidationError collects field errors for one command result.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

// NewValidationError creates a new empty ValidationError.
func NewValidationError() *ValidationError {
	return &ValidationError{Errors: []FieldError{}}
}

// Add records a field error.
func (v *ValidationError) Add(field, message string, value any) {
	v.Errors = append(v.Errors, FieldError{Field: field, Message: message, Value: value})
}

// Error implements error.
func (v *ValidationError) Error() string {
	msgs := make([]string, 0, len(v.Errors))
	for _, e := range v.Errors {
		if e.Field == "" {
			msgs = append(msgs, e.Message)
			continue
		}
		msgs = append(msgs, e.Field+" "+e.Message)
	}
	return strings.Join(msgs, "; ")
}
