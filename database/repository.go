package database

import (
	"context"
	"time"

	"github.com/centraledger/centra/model"
)

// IDataSource groups the persistence operations the service layer depends
// on. Implementations must keep ApplyLedgerEntry and RecordMatch atomic;
// everything above the database assumes those two cannot half-commit.
type IDataSource interface {
	balance
	ledger
	allocation
	reconciliation
}

type balance interface {
	GetOrCreateBalance(ctx context.Context, entityID string, entityType model.EntityType, currency string) (*model.BalanceAccount, error)
	GetBalance(ctx context.Context, entityID string, entityType model.EntityType) (*model.BalanceAccount, error)
	ApplyLedgerEntry(ctx context.Context, entry *model.LedgerEntry) (*model.BalanceAccount, error)
}

type ledger interface {
	GetLedgerEntry(ctx context.Context, entryID string) (*model.LedgerEntry, error)
	GetLedgerEntryByRef(ctx context.Context, reference string) (*model.LedgerEntry, error)
	LedgerEntryExistsByRef(ctx context.Context, reference string) (bool, error)
	GetLedgerEntriesPaginated(ctx context.Context, entityID string, entityType model.EntityType, limit int, offset int64) ([]*model.LedgerEntry, error)
}

type allocation interface {
	RecordAllocation(ctx context.Context, alc *model.BudgetAllocation) error
	GetAllocationByRef(ctx context.Context, reference string) (*model.BudgetAllocation, error)
	GetAllocationsByEmployee(ctx context.Context, employeeID string, limit int, offset int64) ([]*model.BudgetAllocation, error)
	GetAllocationsByCompany(ctx context.Context, companyID string, limit int, offset int64) ([]*model.BudgetAllocation, error)
	TransitionAllocation(ctx context.Context, reference string, to model.AllocationStatus, at time.Time) (bool, error)
	ExpireDueAllocations(ctx context.Context, now time.Time) (int64, error)
}

type reconciliation interface {
	RecordExternalTransaction(ctx context.Context, txn *model.ExternalTransaction) error
	GetExternalTransaction(ctx context.Context, transactionID string) (*model.ExternalTransaction, error)
	GetExternalTransactionByRef(ctx context.Context, reference string) (*model.ExternalTransaction, error)
	UpdateExternalTransactionStatus(ctx context.Context, reference, status string, paidAt time.Time) error
	GetUnreconciledTransactions(ctx context.Context, userID string, limit int) ([]*model.ExternalTransaction, error)
	RecordExpenseEntry(ctx context.Context, entry *model.ExpenseEntry) error
	GetExpenseEntry(ctx context.Context, entryID string) (*model.ExpenseEntry, error)
	GetUnreconciledExpenseEntries(ctx context.Context, userID string, limit int) ([]*model.ExpenseEntry, error)
	RecordMatch(ctx context.Context, match *model.ReconciliationMatch) error
	RecordReconciliationRun(ctx context.Context, run *model.ReconciliationRun) error
	UpdateReconciliationRun(ctx context.Context, run *model.ReconciliationRun) error
	GetReconciliationRun(ctx context.Context, runID string) (*model.ReconciliationRun, error)
}
