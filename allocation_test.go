/*
Copyright 2025 Centra Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package centra

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/centraledger/centra/internal/apierror"
	"github.com/centraledger/centra/model"
)

func TestCreateAllocation(t *testing.T) {
	centra, mockDS := newTestService(t)

	mockDS.On("RecordAllocation", mock.Anything, mock.MatchedBy(func(alc *model.BudgetAllocation) bool {
		return alc.Reference == "alloc_q3_travel" &&
			alc.Status == model.AllocationPending &&
			alc.AmountMinor == 500000
	})).Return(nil)

	allocation, err := centra.CreateAllocation(context.Background(), &AllocationRequest{
		Reference:   "alloc_q3_travel",
		CompanyID:   "cmp_001",
		EmployeeID:  "emp_001",
		AmountMinor: 500000,
		Currency:    "USD",
		BudgetType:  "travel",
		AllocatedBy: "usr_admin",
	})
	assert.NoError(t, err)
	assert.Equal(t, model.AllocationPending, allocation.Status)
	assert.NotEmpty(t, allocation.AllocationID)
	mockDS.AssertExpectations(t)
}

func TestCreateAllocationValidation(t *testing.T) {
	centra, mockDS := newTestService(t)
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name string
		req  *AllocationRequest
	}{
		{"missing reference", &AllocationRequest{CompanyID: "c", EmployeeID: "e", AmountMinor: 100, Currency: "USD"}},
		{"missing company", &AllocationRequest{Reference: "r", EmployeeID: "e", AmountMinor: 100, Currency: "USD"}},
		{"zero amount", &AllocationRequest{Reference: "r", CompanyID: "c", EmployeeID: "e", Currency: "USD"}},
		{"unsupported currency", &AllocationRequest{Reference: "r", CompanyID: "c", EmployeeID: "e", AmountMinor: 100, Currency: "DOGE"}},
		{"expiry in the past", &AllocationRequest{Reference: "r", CompanyID: "c", EmployeeID: "e", AmountMinor: 100, Currency: "USD", ExpiryDate: &past}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := centra.CreateAllocation(context.Background(), tt.req)
			assert.Error(t, err)
			apiErr, ok := err.(apierror.APIError)
			assert.True(t, ok)
			assert.Equal(t, apierror.ErrInvalidInput, apiErr.Code)
		})
	}
	mockDS.AssertNotCalled(t, "RecordAllocation", mock.Anything, mock.Anything)
}

func TestAcceptAllocation(t *testing.T) {
	centra, mockDS := newTestService(t)
	reference := "alloc_q3_travel"

	mockDS.On("GetAllocationByRef", mock.Anything, reference).Return(&model.BudgetAllocation{
		AllocationID: "alc_1",
		Reference:    reference,
		CompanyID:    "cmp_001",
		EmployeeID:   "emp_001",
		AmountMinor:  500000,
		Currency:     "USD",
		Status:       model.AllocationPending,
	}, nil)
	mockDS.On("ApplyLedgerEntry", mock.Anything, mock.MatchedBy(func(entry *model.LedgerEntry) bool {
		return entry.Reference == reference &&
			entry.TransactionType == model.TypeBudgetCredit &&
			entry.EntityID == "emp_001" &&
			entry.AmountMinor == 500000
	})).Return(&model.BalanceAccount{EntityID: "emp_001", BalanceMinor: 500000, Currency: "USD"}, nil)
	mockDS.On("TransitionAllocation", mock.Anything, reference, model.AllocationAccepted, mock.Anything).Return(true, nil)

	allocation, err := centra.AcceptAllocation(context.Background(), reference)
	assert.NoError(t, err)
	assert.Equal(t, model.AllocationAccepted, allocation.Status)
	assert.NotNil(t, allocation.AcceptedAt)
	mockDS.AssertExpectations(t)
}

func TestAcceptAllocationRetryAfterCrash(t *testing.T) {
	centra, mockDS := newTestService(t)
	reference := "alloc_q3_travel"

	// The first attempt credited the employee and crashed before the status
	// transition. The retry sees the duplicate reference and only finishes
	// the transition; the employee is not credited again.
	mockDS.On("GetAllocationByRef", mock.Anything, reference).Return(&model.BudgetAllocation{
		AllocationID: "alc_1",
		Reference:    reference,
		CompanyID:    "cmp_001",
		EmployeeID:   "emp_001",
		AmountMinor:  500000,
		Currency:     "USD",
		Status:       model.AllocationPending,
	}, nil)
	mockDS.On("ApplyLedgerEntry", mock.Anything, mock.Anything).
		Return(nil, apierror.NewAPIError(apierror.ErrDuplicateReference, "Reference has already been used", reference))
	mockDS.On("TransitionAllocation", mock.Anything, reference, model.AllocationAccepted, mock.Anything).Return(true, nil)

	allocation, err := centra.AcceptAllocation(context.Background(), reference)
	assert.NoError(t, err)
	assert.Equal(t, model.AllocationAccepted, allocation.Status)
	mockDS.AssertExpectations(t)
}

func TestAcceptAllocationNotPending(t *testing.T) {
	centra, mockDS := newTestService(t)

	mockDS.On("GetAllocationByRef", mock.Anything, "alloc_done").Return(&model.BudgetAllocation{
		Reference: "alloc_done",
		Status:    model.AllocationRejected,
	}, nil)

	_, err := centra.AcceptAllocation(context.Background(), "alloc_done")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidTransition, apiErr.Code)
	mockDS.AssertNotCalled(t, "ApplyLedgerEntry", mock.Anything, mock.Anything)
}

func TestAcceptAllocationPastExpiry(t *testing.T) {
	centra, mockDS := newTestService(t)
	expired := time.Now().Add(-time.Hour)

	mockDS.On("GetAllocationByRef", mock.Anything, "alloc_old").Return(&model.BudgetAllocation{
		Reference:   "alloc_old",
		EmployeeID:  "emp_001",
		AmountMinor: 1000,
		Currency:    "USD",
		Status:      model.AllocationPending,
		ExpiryDate:  &expired,
	}, nil)
	mockDS.On("TransitionAllocation", mock.Anything, "alloc_old", model.AllocationExpired, mock.Anything).Return(true, nil)

	_, err := centra.AcceptAllocation(context.Background(), "alloc_old")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidTransition, apiErr.Code)
	mockDS.AssertNotCalled(t, "ApplyLedgerEntry", mock.Anything, mock.Anything)
	mockDS.AssertExpectations(t)
}

func TestAcceptAllocationLostRace(t *testing.T) {
	centra, mockDS := newTestService(t)
	reference := "alloc_contested"

	mockDS.On("GetAllocationByRef", mock.Anything, reference).Return(&model.BudgetAllocation{
		Reference:   reference,
		EmployeeID:  "emp_001",
		AmountMinor: 1000,
		Currency:    "USD",
		Status:      model.AllocationPending,
	}, nil).Once()
	mockDS.On("ApplyLedgerEntry", mock.Anything, mock.Anything).
		Return(&model.BalanceAccount{EntityID: "emp_001", Currency: "USD"}, nil)
	mockDS.On("TransitionAllocation", mock.Anything, reference, model.AllocationAccepted, mock.Anything).Return(false, nil)
	// Another accept won the transition; this call returns the accepted row.
	mockDS.On("GetAllocationByRef", mock.Anything, reference).Return(&model.BudgetAllocation{
		Reference: reference,
		Status:    model.AllocationAccepted,
	}, nil).Once()

	allocation, err := centra.AcceptAllocation(context.Background(), reference)
	assert.NoError(t, err)
	assert.Equal(t, model.AllocationAccepted, allocation.Status)
	mockDS.AssertExpectations(t)
}

func TestRejectAllocation(t *testing.T) {
	centra, mockDS := newTestService(t)

	mockDS.On("GetAllocationByRef", mock.Anything, "alloc_1").Return(&model.BudgetAllocation{
		Reference: "alloc_1",
		Status:    model.AllocationPending,
	}, nil)
	mockDS.On("TransitionAllocation", mock.Anything, "alloc_1", model.AllocationRejected, mock.Anything).Return(true, nil)

	allocation, err := centra.RejectAllocation(context.Background(), "alloc_1")
	assert.NoError(t, err)
	assert.Equal(t, model.AllocationRejected, allocation.Status)
	// Rejecting never touches the employee balance.
	mockDS.AssertNotCalled(t, "ApplyLedgerEntry", mock.Anything, mock.Anything)
	mockDS.AssertExpectations(t)
}

func TestCancelAllocationTerminalState(t *testing.T) {
	centra, mockDS := newTestService(t)

	mockDS.On("GetAllocationByRef", mock.Anything, "alloc_1").Return(&model.BudgetAllocation{
		Reference: "alloc_1",
		Status:    model.AllocationAccepted,
	}, nil)

	_, err := centra.CancelAllocation(context.Background(), "alloc_1")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidTransition, apiErr.Code)
	mockDS.AssertNotCalled(t, "TransitionAllocation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExpireDueAllocations(t *testing.T) {
	centra, mockDS := newTestService(t)

	mockDS.On("ExpireDueAllocations", mock.Anything, mock.Anything).Return(int64(3), nil)

	expired, err := centra.ExpireDueAllocations(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int64(3), expired)
	mockDS.AssertExpectations(t)
}

func TestProcessAllocationExpiry(t *testing.T) {
	centra, mockDS := newTestService(t)
	expired := time.Now().Add(-time.Minute)

	mockDS.On("GetAllocationByRef", mock.Anything, "alloc_due").Return(&model.BudgetAllocation{
		Reference:  "alloc_due",
		Status:     model.AllocationPending,
		ExpiryDate: &expired,
	}, nil)
	mockDS.On("TransitionAllocation", mock.Anything, "alloc_due", model.AllocationExpired, mock.Anything).Return(true, nil)

	payload, err := json.Marshal("alloc_due")
	assert.NoError(t, err)
	task := asynq.NewTask("new:allocation-expiry", payload)

	err = centra.ProcessAllocationExpiry(context.Background(), task)
	assert.NoError(t, err)
	mockDS.AssertExpectations(t)
}

func TestProcessAllocationExpiryNoLongerPending(t *testing.T) {
	centra, mockDS := newTestService(t)

	mockDS.On("GetAllocationByRef", mock.Anything, "alloc_done").Return(&model.BudgetAllocation{
		Reference: "alloc_done",
		Status:    model.AllocationAccepted,
	}, nil)

	payload, err := json.Marshal("alloc_done")
	assert.NoError(t, err)
	task := asynq.NewTask("new:allocation-expiry", payload)

	err = centra.ProcessAllocationExpiry(context.Background(), task)
	assert.NoError(t, err)
	mockDS.AssertNotCalled(t, "TransitionAllocation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListAllocationsLimitClamp(t *testing.T) {
	centra, mockDS := newTestService(t)

	mockDS.On("GetAllocationsByEmployee", mock.Anything, "emp_001", 20, int64(0)).
		Return([]*model.BudgetAllocation{}, nil).Once()
	mockDS.On("GetAllocationsByEmployee", mock.Anything, "emp_001", 100, int64(0)).
		Return([]*model.BudgetAllocation{}, nil).Once()
	mockDS.On("GetAllocationsByCompany", mock.Anything, "comp_001", 100, int64(0)).
		Return([]*model.BudgetAllocation{}, nil).Once()

	_, err := centra.ListEmployeeAllocations(context.Background(), "emp_001", 0, 0)
	assert.NoError(t, err)
	// Oversized limits are capped at the maximum page size, not reset to the
	// default.
	_, err = centra.ListEmployeeAllocations(context.Background(), "emp_001", 500, 0)
	assert.NoError(t, err)
	_, err = centra.ListCompanyAllocations(context.Background(), "comp_001", 101, 0)
	assert.NoError(t, err)
	mockDS.AssertExpectations(t)
}
