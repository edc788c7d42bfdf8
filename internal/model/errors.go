package model

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode represents API error codes
type ErrorCode int

const (
	// Authentication errors (1xxx)
	ErrCodeUnauthorized ErrorCode = 1001
	ErrCodeTokenExpired ErrorCode = 1002
	ErrCodeTokenInvalid ErrorCode = 1003
	ErrCodeLoginFailed  ErrorCode = 1004

	// Authorization errors (2xxx)
	ErrCodeForbidden ErrorCode = 2001

	// Resource errors (3xxx)
	ErrCodeNotFound      ErrorCode = 3001
	ErrCodeAlreadyExists ErrorCode = 3002

	// Validation errors (4xxx)
	ErrCodeValidation   ErrorCode = 4001
	ErrCodeInvalidInput ErrorCode = 4002
	ErrCodeRateLimited  ErrorCode = 4003

	// Internal errors (5xxx)
	ErrCodeInternal ErrorCode = 5001
	ErrCodeDatabase ErrorCode = 5002
)

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

// AppError is the error envelope written for every failed request.
// Status is "fail" for client errors and "error" for server errors.
type AppError struct {
	StatusCode int          `json:"-"`
	Status     string       `json:"status"`
	Message    string       `json:"message"`
	Errors     []FieldError `json:"errors,omitempty"`
	Code       ErrorCode    `json:"code,omitempty"`
}

// FieldError represents a validation error on a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%d] %s", e.StatusCode, e.Message)
}

// IsOperational reports whether the error is an expected client-facing
// failure rather than a programming or infrastructure fault.
func (e *AppError) IsOperational() bool {
	return e.StatusCode < http.StatusInternalServerError
}

// WriteJSON writes the error envelope as a JSON response
func (e *AppError) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(e)
}

// NewAppError builds an envelope, deriving the status string from the code.
func NewAppError(statusCode int, code ErrorCode, message string) *AppError {
	status := StatusError
	if statusCode >= 400 && statusCode < 500 {
		status = StatusFail
	}
	return &AppError{
		StatusCode: statusCode,
		Status:     status,
		Message:    message,
		Code:       code,
	}
}

// Common error constructors

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func NewForbiddenError(message string) *AppError {
	return NewAppError(http.StatusForbidden, ErrCodeForbidden, message)
}

func NewNotFoundError(message string) *AppError {
	return NewAppError(http.StatusNotFound, ErrCodeNotFound, message)
}

func NewBadRequestError(message string) *AppError {
	return NewAppError(http.StatusBadRequest, ErrCodeInvalidInput, message)
}

func NewConflictError(message string) *AppError {
	return NewAppError(http.StatusConflict, ErrCodeAlreadyExists, message)
}

func NewValidationError(errs []FieldError) *AppError {
	messages := make([]string, 0, len(errs))
	for _, fe := range errs {
		messages = append(messages, fe.Message)
	}
	message := "Invalid input data."
	if len(messages) > 0 {
		message = fmt.Sprintf("Invalid input data. %s", strings.Join(messages, ". "))
	}
	e := NewAppError(http.StatusBadRequest, ErrCodeValidation, message)
	e.Errors = errs
	return e
}

func NewRateLimitError(message string) *AppError {
	return NewAppError(http.StatusTooManyRequests, ErrCodeRateLimited, message)
}

func NewInternalError(message string) *AppError {
	if message == "" {
		message = "Something went very wrong!"
	}
	return NewAppError(http.StatusInternalServerError, ErrCodeInternal, message)
}

// ValidationError carries the field errors a document failed with. The model
// layer returns it from create and update.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationFailure wraps field errors, returning nil when there are none.
func NewValidationFailure(fields []FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
