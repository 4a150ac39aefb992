package common

import (
	"errors"
	"fmt"
)

// Error codes for the pipeline's failure taxonomy. Everything except an OCR
// output-shape mismatch (which degrades to empty lines) aborts the receipt.
const (
	CodeSourceNotFound     = "SOURCE_NOT_FOUND"
	CodeServiceUnreachable = "SERVICE_UNREACHABLE"
	CodeMalformedResponse  = "MALFORMED_RESPONSE"
	CodeSchemaViolation    = "SCHEMA_VIOLATION"
	CodeMissingDigest      = "MISSING_DIGEST"
	CodeNotFound           = "NOT_FOUND"
	CodeConfig             = "CONFIG_ERROR"
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

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsCode reports whether err (or anything it wraps) is an AppError with the given code.
func IsCode(err error, code string) bool {
	var ae *AppError
	for errors.As(err, &ae) {
		if ae.Code == code {
			return true
		}
		err = ae.Cause
		if err == nil {
			return false
		}
	}
	return false
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
