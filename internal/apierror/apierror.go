package apierror

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound            ErrorCode = "NOT_FOUND"
	ErrConflict            ErrorCode = "CONFLICT"
	ErrBadRequest          ErrorCode = "BAD_REQUEST"
	ErrInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	ErrDuplicateReference  ErrorCode = "DUPLICATE_REFERENCE"
	ErrInvalidTransition   ErrorCode = "INVALID_TRANSITION"
	ErrAlreadyReconciled   ErrorCode = "ALREADY_RECONCILED"
	ErrUpstreamGateway     ErrorCode = "UPSTREAM_GATEWAY"
	ErrSignatureInvalid    ErrorCode = "SIGNATURE_INVALID"
	ErrInternalServer      ErrorCode = "INTERNAL_SERVER_ERROR"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	logrus.Error(details)
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

func MapErrorToHTTPStatus(err error) int {
	if apiErr, ok := err.(APIError); ok {
		switch apiErr.Code {
		case ErrNotFound:
			return http.StatusNotFound
		case ErrConflict, ErrDuplicateReference, ErrInvalidTransition, ErrAlreadyReconciled:
			return http.StatusConflict
		case ErrInvalidInput, ErrBadRequest:
			return http.StatusBadRequest
		case ErrInsufficientBalance:
			return http.StatusUnprocessableEntity
		case ErrSignatureInvalid:
			return http.StatusUnauthorized
		case ErrUpstreamGateway:
			return http.StatusBadGateway
		case ErrInternalServer:
			return http.StatusInternalServerError
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
