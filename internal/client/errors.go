package client

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds reported by the API client. Match them with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrAuth       = errors.New("authentication error")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrNetwork    = errors.New("network error")
)

// Operation kinds of a failed store call. Match them with errors.Is.
var (
	ErrFetch  = errors.New("fetch failed")
	ErrCreate = errors.New("create failed")
	ErrUpdate = errors.New("update failed")
	ErrDelete = errors.New("delete failed")
)

// FieldError is one server-side validation complaint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is a classified failure of a single API call.
type APIError struct {
	Kind    error
	Status  int
	Message string
	Fields  []FieldError
	Err     error
}

func (e *APIError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())
	if e.Status != 0 {
		sb.WriteString(fmt.Sprintf(" (HTTP %d)", e.Status))
	}
	if e.Message != "" {
		sb.WriteString(": " + e.Message)
	}
	for _, f := range e.Fields {
		sb.WriteString(fmt.Sprintf("; %s: %s", f.Field, f.Message))
	}
	if e.Err != nil {
		sb.WriteString(": " + e.Err.Error())
	}
	return sb.String()
}

func (e *APIError) Is(target error) bool {
	return target == e.Kind
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// MutationError wraps the cause of a failed store operation.
type MutationError struct {
	Op  Op
	Err error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s task: %v", e.Op, e.Err)
}

func (e *MutationError) Is(target error) bool {
	switch e.Op {
	case OpFetch:
		return target == ErrFetch
	case OpCreate:
		return target == ErrCreate
	case OpUpdate:
		return target == ErrUpdate
	case OpDelete:
		return target == ErrDelete
	}
	return false
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

func validationError(field, message string) error {
	return &APIError{Kind: ErrValidation, Fields: []FieldError{{Field: field, Message: message}}}
}
