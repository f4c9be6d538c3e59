package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Pipeline error taxonomy. Field-level parse failures are never surfaced
// through these; they degrade to defaults inside the extractor/cleaner.
// Document-level failures abort a single artifact and carry one of these
// sentinels so callers can distinguish outcomes with errors.Is.
var (
	ErrClassification = errors.New("classification failed")
	ErrExtraction     = errors.New("extraction failed")
	ErrValidation     = errors.New("validation failed")
	ErrMissingField   = errors.New("required field missing")
	ErrNoMatchingPO   = errors.New("no matching purchase order")
	ErrKeyMismatch    = errors.New("purchase order key mismatch")
	ErrStorage        = errors.New("storage failure")
	ErrSubmission     = errors.New("accounting submission failed")
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsNotFound reports whether err is the storage layer's missing-item case.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
