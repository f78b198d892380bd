package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode represents a specific type of error in the domain
type ErrorCode string

const (
	CodeInternal          ErrorCode = "INTERNAL_ERROR"
	CodeValidation        ErrorCode = "VALIDATION_ERROR"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeEmptyQueue        ErrorCode = "EMPTY_QUEUE"
	CodeInvalidState      ErrorCode = "INVALID_STATE"
	CodeOptimizerBounds   ErrorCode = "OPTIMIZER_BOUNDS"
	CodeSourceUnavailable ErrorCode = "SOURCE_UNAVAILABLE"
)

// Sentinels for errors.Is. Matching is done on the code only, so
// errors.Is(domain.NewNotFoundError("session x"), domain.ErrNotFound) is true.
var (
	ErrValidation      = &DomainError{Code: CodeValidation, Message: "validation failed"}
	ErrNotFound        = &DomainError{Code: CodeNotFound, Message: "not found"}
	ErrEmptyQueue      = &DomainError{Code: CodeEmptyQueue, Message: "queue is empty"}
	ErrInvalidState    = &DomainError{Code: CodeInvalidState, Message: "invalid state"}
	ErrOptimizerBounds = &DomainError{Code: CodeOptimizerBounds, Message: "performance score out of bounds"}
	ErrSource          = &DomainError{Code: CodeSourceUnavailable, Message: "question source unavailable"}
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"-"`
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithContext attaches a key/value pair that is reported to API clients.
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// MarshalJSON implements the json.Marshaler interface
func (e *DomainError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{
		Code:    string(e.Code),
		Message: e.Message,
	})
}

// NewError creates a new DomainError
func NewError(code ErrorCode, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func NewValidationError(message string) *DomainError {
	return NewError(CodeValidation, message, nil)
}

func NewNotFoundError(message string) *DomainError {
	return NewError(CodeNotFound, message, nil)
}

func NewSessionNotFoundError(sessionID string) *DomainError {
	return NewError(CodeNotFound, fmt.Sprintf("session not found: %s", sessionID), nil).
		WithContext("session_id", sessionID)
}

func NewInvalidStateError(message string) *DomainError {
	return NewError(CodeInvalidState, message, nil)
}

func NewOptimizerBoundsError(score float64) *DomainError {
	return NewError(CodeOptimizerBounds, fmt.Sprintf("performance score %v outside [0,1]", score), nil)
}

func NewInternalError(message string, cause error) *DomainError {
	return NewError(CodeInternal, message, cause)
}

func NewSourceError(cause error) *DomainError {
	return NewError(CodeSourceUnavailable, "question source failed", cause)
}

// CodeOf returns the code of the first DomainError in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
