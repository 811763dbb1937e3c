// Package errors provides application-level error types and utilities.
// Besides the usual validation/not-found/conflict kinds it models the
// gateway-facing failure modes: credential exchange failure, gateway
// rejection of a request, and gateway unreachability. Business-level
// payment declines are NOT errors; they are the FAILED transaction state.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeValidation         ErrorType = "validation_error"
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypeConflict           ErrorType = "conflict"
	ErrorTypeUnauthorized       ErrorType = "unauthorized"
	ErrorTypeInternal           ErrorType = "internal_error"
	ErrorTypeBadRequest         ErrorType = "bad_request"
	ErrorTypeCredential         ErrorType = "credential_error"
	ErrorTypeUnknownTransaction ErrorType = "unknown_transaction"
	ErrorTypeGatewayRejected    ErrorType = "gateway_rejected"
	ErrorTypeGatewayUnreachable ErrorType = "gateway_unreachable"
)

// AppError represents an application error with additional context
type AppError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Details string    `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func newAppError(typ ErrorType, code int, message string, details ...string) *AppError {
	detail := ""
	if len(details) > 0 {
		detail = details[0]
	}
	return &AppError{
		Type:    typ,
		Message: message,
		Code:    code,
		Details: detail,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, message, details...)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeNotFound, http.StatusNotFound, message, details...)
}

// NewConflictError creates a new conflict error
func NewConflictError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeConflict, http.StatusConflict, message, details...)
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeUnauthorized, http.StatusUnauthorized, message, details...)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeInternal, http.StatusInternalServerError, message, details...)
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeBadRequest, http.StatusBadRequest, message, details...)
}

// NewCredentialError creates an error for a failed credential exchange with
// the payment gateway. Fatal to the current attempt, never retried here.
func NewCredentialError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeCredential, http.StatusBadGateway, message, details...)
}

// NewGatewayRejectedError creates an error for a push request the gateway
// refused (bad payload, validation failure on its side). No transaction is
// persisted for these.
func NewGatewayRejectedError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeGatewayRejected, http.StatusBadGateway, message, details...)
}

// NewGatewayUnreachableError creates a transient error for network failures
// talking to the gateway, so callers can decide to retry the initiation.
func NewGatewayUnreachableError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeGatewayUnreachable, http.StatusServiceUnavailable, message, details...)
}

// NewUnknownTransactionError creates an error for a callback or query that
// references a checkout request ID we never persisted.
func NewUnknownTransactionError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeUnknownTransaction, http.StatusNotFound, message, details...)
}

// IsAppError checks if the error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from error
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

func isType(err error, typ ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == typ
}

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool {
	return isType(err, ErrorTypeConflict)
}

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsCredentialError checks if the error is a credential exchange error
func IsCredentialError(err error) bool {
	return isType(err, ErrorTypeCredential)
}

// IsGatewayRejectedError checks if the gateway refused the request
func IsGatewayRejectedError(err error) bool {
	return isType(err, ErrorTypeGatewayRejected)
}

// IsGatewayUnreachableError checks if the gateway could not be reached
func IsGatewayUnreachableError(err error) bool {
	return isType(err, ErrorTypeGatewayUnreachable)
}

// IsUnknownTransactionError checks if the referenced transaction is unknown
func IsUnknownTransactionError(err error) bool {
	return isType(err, ErrorTypeUnknownTransaction)
}
