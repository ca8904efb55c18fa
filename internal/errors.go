package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrorTypeValidation ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeSecurity   ErrorType = "SECURITY_ERROR"
	ErrorTypeTransport  ErrorType = "TRANSPORT_ERROR"
	ErrorTypeInternal   ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal   ErrorType = "EXTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAmount    ErrorCode = "INVALID_AMOUNT"
	ErrCodeInvalidURL       ErrorCode = "INVALID_URL"

	ErrCodeKeyConfiguration ErrorCode = "KEY_CONFIGURATION_ERROR"
	ErrCodeMalformedToken   ErrorCode = "MALFORMED_TOKEN"
	ErrCodeIntegrity        ErrorCode = "INTEGRITY_ERROR"

	ErrCodeTransport ErrorCode = "TRANSPORT_ERROR"

	ErrCodeMalformedMessage ErrorCode = "MALFORMED_MESSAGE"
	ErrCodeStaleMessage     ErrorCode = "STALE_MESSAGE"
	ErrCodeExpiredMessage   ErrorCode = "EXPIRED_MESSAGE"
	ErrCodeOrderNotFound    ErrorCode = "ORDER_NOT_FOUND"
	ErrCodeSessionNotFound  ErrorCode = "SESSION_NOT_FOUND"

	ErrCodeSecurityViolation ErrorCode = "SECURITY_VIOLATION"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewKeyConfigurationError marks broken key material; fatal to the
// operation that needed the key, surfaced to the operator.
func NewKeyConfigurationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       ErrCodeKeyConfiguration,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewMalformedTokenError covers tokens that cannot be parsed or decrypted.
// Distinct from NewIntegrityError so callers can fall back appropriately.
func NewMalformedTokenError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeMalformedToken,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewIntegrityError covers signature verification failures: the token
// parsed and decrypted but cannot be trusted.
func NewIntegrityError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeSecurity,
		Code:       ErrCodeIntegrity,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

func NewTransportError(message string, statusCode int, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeTransport,
		Code:       ErrCodeTransport,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Details:    map[string]interface{}{"upstream_status": statusCode},
		Cause:      cause,
	}
}

func NewSecurityViolationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeSecurity,
		Code:       ErrCodeSecurityViolation,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

var (
	ErrOrderNotFound    = NewNotFoundError("order not found", ErrCodeOrderNotFound)
	ErrSessionNotFound  = NewNotFoundError("payment session not found", ErrCodeSessionNotFound)
	ErrMalformedMessage = NewValidationError("notification message is malformed", ErrCodeMalformedMessage)
	ErrStaleMessage     = NewValidationError("notification message is stale", ErrCodeStaleMessage)
	ErrExpiredMessage   = NewValidationError("notification message has expired", ErrCodeExpiredMessage)
)

func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}

// IsErrorCode reports whether err is an AppError carrying the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
