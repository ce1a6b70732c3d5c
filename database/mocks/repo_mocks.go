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
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/centraledger/centra/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Balance methods

func (m *MockDataSource) GetOrCreateBalance(ctx context.Context, entityID string, entityType model.EntityType, currency string) (*model.BalanceAccount, error) {
	args := m.Called(ctx, entityID, entityType, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BalanceAccount), args.Error(1)
}

func (m *MockDataSource) GetBalance(ctx context.Context, entityID string, entityType model.EntityType) (*model.BalanceAccount, error) {
	args := m.Called(ctx, entityID, entityType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BalanceAccount), args.Error(1)
}

func (m *MockDataSource) ApplyLedgerEntry(ctx context.Context, entry *model.LedgerEntry) (*model.BalanceAccount, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BalanceAccount), args.Error(1)
}

// Ledger methods

func (m *MockDataSource) GetLedgerEntry(ctx context.Context, entryID string) (*model.LedgerEntry, error) {
	args := m.Called(ctx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LedgerEntry), args.Error(1)
}

func (m *MockDataSource) GetLedgerEntryByRef(ctx context.Context, reference string) (*model.LedgerEntry, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LedgerEntry), args.Error(1)
}

func (m *MockDataSource) LedgerEntryExistsByRef(ctx context.Context, reference string) (bool, error) {
	args := m.Called(ctx, reference)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) GetLedgerEntriesPaginated(ctx context.Context, entityID string, entityType model.EntityType, limit int, offset int64) ([]*model.LedgerEntry, error) {
	args := m.Called(ctx, entityID, entityType, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.LedgerEntry), args.Error(1)
}

// Allocation methods

func (m *MockDataSource) RecordAllocation(ctx context.Context, alc *model.BudgetAllocation) error {
	args := m.Called(ctx, alc)
	return args.Error(0)
}

func (m *MockDataSource) GetAllocationByRef(ctx context.Context, reference string) (*model.BudgetAllocation, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BudgetAllocation), args.Error(1)
}

func (m *MockDataSource) GetAllocationsByEmployee(ctx context.Context, employeeID string, limit int, offset int64) ([]*model.BudgetAllocation, error) {
	args := m.Called(ctx, employeeID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.BudgetAllocation), args.Error(1)
}

func (m *MockDataSource) GetAllocationsByCompany(ctx context.Context, companyID string, limit int, offset int64) ([]*model.BudgetAllocation, error) {
	args := m.Called(ctx, companyID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.BudgetAllocation), args.Error(1)
}

func (m *MockDataSource) TransitionAllocation(ctx context.Context, reference string, to model.AllocationStatus, at time.Time) (bool, error) {
	args := m.Called(ctx, reference, to, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) ExpireDueAllocations(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// Reconciliation methods

func (m *MockDataSource) RecordExternalTransaction(ctx context.Context, txn *model.ExternalTransaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockDataSource) GetExternalTransaction(ctx context.Context, transactionID string) (*model.ExternalTransaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ExternalTransaction), args.Error(1)
}

func (m *MockDataSource) GetExternalTransactionByRef(ctx context.Context, reference string) (*model.ExternalTransaction, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ExternalTransaction), args.Error(1)
}

func (m *MockDataSource) UpdateExternalTransactionStatus(ctx context.Context, reference, status string, paidAt time.Time) error {
	args := m.Called(ctx, reference, status, paidAt)
	return args.Error(0)
}

func (m *MockDataSource) GetUnreconciledTransactions(ctx context.Context, userID string, limit int) ([]*model.ExternalTransaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ExternalTransaction), args.Error(1)
}

func (m *MockDataSource) RecordExpenseEntry(ctx context.Context, entry *model.ExpenseEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockDataSource) GetExpenseEntry(ctx context.Context, entryID string) (*model.ExpenseEntry, error) {
	args := m.Called(ctx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ExpenseEntry), args.Error(1)
}

func (m *MockDataSource) GetUnreconciledExpenseEntries(ctx context.Context, userID string, limit int) ([]*model.ExpenseEntry, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ExpenseEntry), args.Error(1)
}

func (m *MockDataSource) RecordMatch(ctx context.Context, match *model.ReconciliationMatch) error {
	args := m.Called(ctx, match)
	return args.Error(0)
}

func (m *MockDataSource) RecordReconciliationRun(ctx context.Context, run *model.ReconciliationRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockDataSource) UpdateReconciliationRun(ctx context.Context, run *model.ReconciliationRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockDataSource) GetReconciliationRun(ctx context.Context, runID string) (*model.ReconciliationRun, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReconciliationRun), args.Error(1)
}
