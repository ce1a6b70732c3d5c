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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/centraledger/centra/internal/apierror"
	"github.com/centraledger/centra/model"
)

func TestRecordExpense(t *testing.T) {
	centra, mockDS := newTestService(t)

	mockDS.On("RecordExpenseEntry", mock.Anything, mock.MatchedBy(func(entry *model.ExpenseEntry) bool {
		return entry.UserID == "emp_001" &&
			entry.Title == "Team lunch" &&
			strings.HasPrefix(entry.EntryID, "exp_")
	})).Return(nil)

	entry, err := centra.RecordExpense(context.Background(), &ExpenseRequest{
		UserID:      "emp_001",
		ExpenseType: "meals",
		AmountMinor: 9000,
		Currency:    "USD",
		Title:       "Team lunch",
		EntryDate:   time.Now(),
	})
	assert.NoError(t, err)
	assert.False(t, entry.IsReconciled)
	// Expenses never touch balances.
	mockDS.AssertNotCalled(t, "ApplyLedgerEntry", mock.Anything, mock.Anything)
	mockDS.AssertExpectations(t)
}

func TestRecordExpenseValidation(t *testing.T) {
	centra, mockDS := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *ExpenseRequest
	}{
		{"missing user", &ExpenseRequest{AmountMinor: 100, Currency: "USD", Title: "x", EntryDate: time.Now()}},
		{"zero amount", &ExpenseRequest{UserID: "emp_001", Currency: "USD", Title: "x", EntryDate: time.Now()}},
		{"missing title", &ExpenseRequest{UserID: "emp_001", AmountMinor: 100, Currency: "USD", EntryDate: time.Now()}},
		{"missing entry date", &ExpenseRequest{UserID: "emp_001", AmountMinor: 100, Currency: "USD", Title: "x"}},
		{"unsupported currency", &ExpenseRequest{UserID: "emp_001", AmountMinor: 100, Currency: "DOGE", Title: "x", EntryDate: time.Now()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := centra.RecordExpense(ctx, tt.req)
			assert.Error(t, err)
			apiErr, ok := err.(apierror.APIError)
			assert.True(t, ok)
			assert.Equal(t, apierror.ErrInvalidInput, apiErr.Code)
		})
	}
	mockDS.AssertNotCalled(t, "RecordExpenseEntry", mock.Anything, mock.Anything)
}

func TestGetEntityLedgerLimitClamp(t *testing.T) {
	centra, mockDS := newTestService(t)

	mockDS.On("GetLedgerEntriesPaginated", mock.Anything, "emp_001", model.EntityEmployee, 20, int64(0)).
		Return([]*model.LedgerEntry{}, nil).Once()
	mockDS.On("GetLedgerEntriesPaginated", mock.Anything, "emp_001", model.EntityEmployee, 100, int64(0)).
		Return([]*model.LedgerEntry{}, nil).Once()
	mockDS.On("GetLedgerEntriesPaginated", mock.Anything, "emp_001", model.EntityEmployee, 50, int64(10)).
		Return([]*model.LedgerEntry{}, nil).Once()

	_, err := centra.GetEntityLedger(context.Background(), "emp_001", model.EntityEmployee, 0, 0)
	assert.NoError(t, err)
	// Oversized limits are capped at the maximum page size, not reset to the
	// default.
	_, err = centra.GetEntityLedger(context.Background(), "emp_001", model.EntityEmployee, 500, 0)
	assert.NoError(t, err)
	_, err = centra.GetEntityLedger(context.Background(), "emp_001", model.EntityEmployee, 50, 10)
	assert.NoError(t, err)
	mockDS.AssertExpectations(t)
}
