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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/centraledger/centra/internal/apierror"
	"github.com/centraledger/centra/model"
)

func TestTransfer(t *testing.T) {
	centra, mockDS := newTestService(t)

	mockDS.On("ApplyLedgerEntry", mock.Anything, mock.MatchedBy(func(entry *model.LedgerEntry) bool {
		return entry.Reference == "tf_001_debit" &&
			entry.EntityID == "emp_001" &&
			entry.TransactionType == model.TypeTransferSent &&
			entry.FeeMinor == 50
	})).Return(&model.BalanceAccount{EntityID: "emp_001", BalanceMinor: 89950, Currency: "USD"}, nil).Once()
	mockDS.On("ApplyLedgerEntry", mock.Anything, mock.MatchedBy(func(entry *model.LedgerEntry) bool {
		return entry.Reference == "tf_001_credit" &&
			entry.EntityID == "emp_002" &&
			entry.TransactionType == model.TypeTransferReceived &&
			entry.FeeMinor == 0
	})).Return(&model.BalanceAccount{EntityID: "emp_002", BalanceMinor: 10000, Currency: "USD"}, nil).Once()

	result, err := centra.Transfer(context.Background(), &TransferRequest{
		SenderID:    "emp_001",
		RecipientID: "emp_002",
		AmountMinor: 10000,
		FeeMinor:    50,
		Currency:    "USD",
		Reference:   "tf_001",
	})
	assert.NoError(t, err)
	assert.Equal(t, "tf_001_debit", result.DebitEntry.Reference)
	assert.Equal(t, "tf_001_credit", result.CreditEntry.Reference)
	mockDS.AssertExpectations(t)
}

func TestTransferValidation(t *testing.T) {
	centra, mockDS := newTestService(t)

	// Self transfers are rejected before any leg runs.
	_, err := centra.Transfer(context.Background(), &TransferRequest{
		SenderID:    "emp_001",
		RecipientID: "emp_001",
		AmountMinor: 10000,
		Currency:    "USD",
		Reference:   "tf_self",
	})
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidInput, apiErr.Code)
	mockDS.AssertNotCalled(t, "ApplyLedgerEntry", mock.Anything, mock.Anything)
}

func TestTransferInsufficientFunds(t *testing.T) {
	centra, mockDS := newTestService(t)

	mockDS.On("ApplyLedgerEntry", mock.Anything, mock.Anything).
		Return(nil, apierror.NewAPIError(apierror.ErrInsufficientBalance, "Insufficient funds", nil)).Once()

	_, err := centra.Transfer(context.Background(), &TransferRequest{
		SenderID:    "emp_001",
		RecipientID: "emp_002",
		AmountMinor: 10000,
		Currency:    "USD",
		Reference:   "tf_broke",
	})
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrInsufficientBalance, apiErr.Code)
	mockDS.AssertExpectations(t)
}

func TestTransferRetryCompletesCreditLeg(t *testing.T) {
	centra, mockDS := newTestService(t)

	// The debit landed on a previous attempt that died before the credit.
	// The retry recovers the committed debit entry and applies only the
	// credit leg.
	existingDebit := &model.LedgerEntry{
		EntryID:         "lgr_prev",
		Reference:       "tf_001_debit",
		EntityID:        "emp_001",
		TransactionType: model.TypeTransferSent,
		AmountMinor:     10000,
		Currency:        "USD",
	}

	mockDS.On("ApplyLedgerEntry", mock.Anything, mock.MatchedBy(func(entry *model.LedgerEntry) bool {
		return entry.Reference == "tf_001_debit"
	})).Return(nil, apierror.NewAPIError(apierror.ErrDuplicateReference, "Reference has already been used", "tf_001_debit")).Once()
	mockDS.On("GetLedgerEntryByRef", mock.Anything, "tf_001_debit").Return(existingDebit, nil).Once()
	mockDS.On("ApplyLedgerEntry", mock.Anything, mock.MatchedBy(func(entry *model.LedgerEntry) bool {
		return entry.Reference == "tf_001_credit"
	})).Return(&model.BalanceAccount{EntityID: "emp_002", Currency: "USD"}, nil).Once()

	result, err := centra.Transfer(context.Background(), &TransferRequest{
		SenderID:    "emp_001",
		RecipientID: "emp_002",
		AmountMinor: 10000,
		Currency:    "USD",
		Reference:   "tf_001",
	})
	assert.NoError(t, err)
	assert.Equal(t, "lgr_prev", result.DebitEntry.EntryID)
	assert.Equal(t, "tf_001_credit", result.CreditEntry.Reference)
	mockDS.AssertExpectations(t)
}

func TestTransferCreditLegFailureNamesBothLegs(t *testing.T) {
	centra, mockDS := newTestService(t)

	mockDS.On("ApplyLedgerEntry", mock.Anything, mock.MatchedBy(func(entry *model.LedgerEntry) bool {
		return entry.Reference == "tf_001_debit"
	})).Return(&model.BalanceAccount{EntityID: "emp_001", Currency: "USD"}, nil).Once()
	mockDS.On("ApplyLedgerEntry", mock.Anything, mock.MatchedBy(func(entry *model.LedgerEntry) bool {
		return entry.Reference == "tf_001_credit"
	})).Return(nil, apierror.NewAPIError(apierror.ErrInternalServer, "write failed", nil)).Once()

	_, err := centra.Transfer(context.Background(), &TransferRequest{
		SenderID:    "emp_001",
		RecipientID: "emp_002",
		AmountMinor: 10000,
		Currency:    "USD",
		Reference:   "tf_001",
	})
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrInternalServer, apiErr.Code)

	details, ok := apiErr.Details.(map[string]string)
	assert.True(t, ok)
	assert.Equal(t, "tf_001_debit", details["debit_reference"])
	assert.Equal(t, "tf_001_credit", details["credit_reference"])
	mockDS.AssertExpectations(t)
}
