package apierror_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/centraledger/centra/internal/apierror"
)

func TestNewAPIError(t *testing.T) {
	details := "Some internal error details"
	apiErr := apierror.NewAPIError(apierror.ErrInternalServer, "Something went wrong", details)

	assert.Equal(t, apierror.ErrInternalServer, apiErr.Code)
	assert.Equal(t, "Something went wrong", apiErr.Message)
	assert.Equal(t, details, apiErr.Details)
	assert.Equal(t, "INTERNAL_SERVER_ERROR: Something went wrong", apiErr.Error())
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "NotFound Error",
			err:      apierror.NewAPIError(apierror.ErrNotFound, "Resource not found", nil),
			expected: http.StatusNotFound,
		},
		{
			name:     "DuplicateReference Error",
			err:      apierror.NewAPIError(apierror.ErrDuplicateReference, "Reference already used", nil),
			expected: http.StatusConflict,
		},
		{
			name:     "InvalidTransition Error",
			err:      apierror.NewAPIError(apierror.ErrInvalidTransition, "Allocation already finalized", nil),
			expected: http.StatusConflict,
		},
		{
			name:     "AlreadyReconciled Error",
			err:      apierror.NewAPIError(apierror.ErrAlreadyReconciled, "Pair already matched", nil),
			expected: http.StatusConflict,
		},
		{
			name:     "InsufficientBalance Error",
			err:      apierror.NewAPIError(apierror.ErrInsufficientBalance, "Insufficient funds", nil),
			expected: http.StatusUnprocessableEntity,
		},
		{
			name:     "SignatureInvalid Error",
			err:      apierror.NewAPIError(apierror.ErrSignatureInvalid, "Bad webhook signature", nil),
			expected: http.StatusUnauthorized,
		},
		{
			name:     "UpstreamGateway Error",
			err:      apierror.NewAPIError(apierror.ErrUpstreamGateway, "Gateway unreachable", nil),
			expected: http.StatusBadGateway,
		},
		{
			name:     "InvalidInput Error",
			err:      apierror.NewAPIError(apierror.ErrInvalidInput, "Invalid input", nil),
			expected: http.StatusBadRequest,
		},
		{
			name:     "Unknown Error",
			err:      errors.New("Unknown error"),
			expected: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statusCode := apierror.MapErrorToHTTPStatus(tt.err)
			assert.Equal(t, tt.expected, statusCode)
		})
	}
}
