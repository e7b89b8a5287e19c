package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a domain error for transport mapping.
type ErrorCode string

const (
	CodeValidation   ErrorCode = "VALIDATION_ERROR"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeForbidden    ErrorCode = "FORBIDDEN"
	CodeConflict     ErrorCode = "CONFLICT"
	CodeInvalidState ErrorCode = "INVALID_STATE"
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
)

// DomainError is a typed error carrying a code and a human-readable message.
type DomainError struct {
	Code    ErrorCode
	Message string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrValidation   = &DomainError{Code: CodeValidation}
	ErrNotFound     = &DomainError{Code: CodeNotFound}
	ErrForbidden    = &DomainError{Code: CodeForbidden}
	ErrConflict     = &DomainError{Code: CodeConflict}
	ErrInvalidState = &DomainError{Code: CodeInvalidState}
)

// NewValidationError creates an error for invalid input.
func NewValidationError(message string) *DomainError {
	return &DomainError{Code: CodeValidation, Message: message}
}

// NewNotFoundError creates an error for a missing entity.
func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{Code: CodeNotFound, Message: fmt.Sprintf("%s with id %s not found", entity, id)}
}

// NewForbiddenError creates an error for an actor that may not perform an operation.
func NewForbiddenError(message string) *DomainError {
	return &DomainError{Code: CodeForbidden, Message: message}
}

// NewConflictError creates an error for a write that collided with another.
func NewConflictError(message string) *DomainError {
	return &DomainError{Code: CodeConflict, Message: message}
}

// CodeOf extracts the code of a DomainError in the chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
