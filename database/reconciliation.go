package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/centraledger/centra/internal/apierror"
	"github.com/centraledger/centra/model"
)

const externalTransactionColumns = `
	id, transaction_id, reference, user_id, entity_type, amount, currency,
	status, description, paid_at, reconciled, created_at
`

const expenseEntryColumns = `
	id, entry_id, user_id, expense_type, amount, currency, title, note,
	entry_date, is_reconciled, reconciled_transaction_id, created_at
`

func scanExternalTransaction(row interface {
	Scan(dest ...interface{}) error
}) (*model.ExternalTransaction, error) {
	txn := &model.ExternalTransaction{}
	var description sql.NullString
	var paidAt sql.NullTime
	err := row.Scan(
		&txn.ID,
		&txn.TransactionID,
		&txn.Reference,
		&txn.UserID,
		&txn.EntityType,
		&txn.AmountMinor,
		&txn.Currency,
		&txn.Status,
		&description,
		&paidAt,
		&txn.Reconciled,
		&txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	txn.Description = description.String
	if paidAt.Valid {
		txn.PaidAt = paidAt.Time
	}
	return txn, nil
}

func scanExpenseEntry(row interface {
	Scan(dest ...interface{}) error
}) (*model.ExpenseEntry, error) {
	entry := &model.ExpenseEntry{}
	var expenseType, title, note, reconciledTxnID sql.NullString
	err := row.Scan(
		&entry.ID,
		&entry.EntryID,
		&entry.UserID,
		&expenseType,
		&entry.AmountMinor,
		&entry.Currency,
		&title,
		&note,
		&entry.EntryDate,
		&entry.IsReconciled,
		&reconciledTxnID,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	entry.ExpenseType = expenseType.String
	entry.Title = title.String
	entry.Note = note.String
	entry.ReconciledTransactionID = reconciledTxnID.String
	return entry, nil
}

// RecordExternalTransaction inserts a gateway transaction.
func (d Datasource) RecordExternalTransaction(ctx context.Context, txn *model.ExternalTransaction) error {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO centra.external_transactions
			(transaction_id, reference, user_id, entity_type, amount, currency,
			status, description, paid_at, reconciled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		txn.TransactionID,
		txn.Reference,
		txn.UserID,
		txn.EntityType,
		txn.AmountMinor,
		txn.Currency,
		txn.Status,
		txn.Description,
		txn.PaidAt,
		txn.Reconciled,
		txn.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return apierror.NewAPIError(apierror.ErrDuplicateReference, fmt.Sprintf("External transaction with reference %s already exists", txn.Reference), err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record external transaction", err)
	}
	return nil
}

// GetExternalTransaction retrieves a gateway transaction by its id.
func (d Datasource) GetExternalTransaction(ctx context.Context, transactionID string) (*model.ExternalTransaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM centra.external_transactions WHERE transaction_id = $1
	`, externalTransactionColumns), transactionID)

	txn, err := scanExternalTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("External transaction %s not found", transactionID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve external transaction", err)
	}
	return txn, nil
}

// GetExternalTransactionByRef retrieves a gateway transaction by reference.
func (d Datasource) GetExternalTransactionByRef(ctx context.Context, reference string) (*model.ExternalTransaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM centra.external_transactions WHERE reference = $1
	`, externalTransactionColumns), reference)

	txn, err := scanExternalTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("External transaction with reference %s not found", reference), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve external transaction", err)
	}
	return txn, nil
}

// UpdateExternalTransactionStatus records the gateway's verdict on a charge.
func (d Datasource) UpdateExternalTransactionStatus(ctx context.Context, reference, status string, paidAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE centra.external_transactions
		SET status = $2, paid_at = $3
		WHERE reference = $1
	`, reference, status, paidAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update external transaction", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read update result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("External transaction with reference %s not found", reference), reference)
	}
	return nil
}

// GetUnreconciledTransactions returns a user's successful, unreconciled
// gateway transactions, oldest first.
func (d Datasource) GetUnreconciledTransactions(ctx context.Context, userID string, limit int) ([]*model.ExternalTransaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM centra.external_transactions
		WHERE user_id = $1 AND reconciled = FALSE AND status = 'success'
		ORDER BY paid_at ASC
		LIMIT $2
	`, externalTransactionColumns), userID, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve unreconciled transactions", err)
	}
	defer rows.Close()

	var transactions []*model.ExternalTransaction
	for rows.Next() {
		txn, err := scanExternalTransaction(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan external transaction", err)
		}
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating external transactions", err)
	}
	return transactions, nil
}

// RecordExpenseEntry inserts a user-reported expense.
func (d Datasource) RecordExpenseEntry(ctx context.Context, entry *model.ExpenseEntry) error {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO centra.expense_entries
			(entry_id, user_id, expense_type, amount, currency, title, note,
			entry_date, is_reconciled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		entry.EntryID,
		entry.UserID,
		entry.ExpenseType,
		entry.AmountMinor,
		entry.Currency,
		entry.Title,
		entry.Note,
		entry.EntryDate,
		entry.IsReconciled,
		entry.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Expense entry %s already exists", entry.EntryID), err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record expense entry", err)
	}
	return nil
}

// GetExpenseEntry retrieves one expense entry by its id.
func (d Datasource) GetExpenseEntry(ctx context.Context, entryID string) (*model.ExpenseEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM centra.expense_entries WHERE entry_id = $1
	`, expenseEntryColumns), entryID)

	entry, err := scanExpenseEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Expense entry %s not found", entryID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve expense entry", err)
	}
	return entry, nil
}

// GetUnreconciledExpenseEntries returns a user's unreconciled expenses,
// oldest first.
func (d Datasource) GetUnreconciledExpenseEntries(ctx context.Context, userID string, limit int) ([]*model.ExpenseEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM centra.expense_entries
		WHERE user_id = $1 AND is_reconciled = FALSE
		ORDER BY entry_date ASC
		LIMIT $2
	`, expenseEntryColumns), userID, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve unreconciled expense entries", err)
	}
	defer rows.Close()

	var entries []*model.ExpenseEntry
	for rows.Next() {
		entry, err := scanExpenseEntry(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan expense entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating expense entries", err)
	}
	return entries, nil
}

// RecordMatch binds one transaction to one expense entry in a single
// transaction. Both reconciled flags flip conditionally; if either row was
// already reconciled by a concurrent writer, nothing commits and the caller
// gets ALREADY_RECONCILED.
func (d Datasource) RecordMatch(ctx context.Context, match *model.ReconciliationMatch) error {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			logrus.Error("transaction rollback error: ", err)
		}
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE centra.external_transactions
		SET reconciled = TRUE
		WHERE transaction_id = $1 AND reconciled = FALSE
	`, match.TransactionID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to reconcile transaction", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read reconcile result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrAlreadyReconciled, fmt.Sprintf("Transaction %s is already reconciled", match.TransactionID), match.TransactionID)
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE centra.expense_entries
		SET is_reconciled = TRUE, reconciled_transaction_id = $1
		WHERE entry_id = $2 AND is_reconciled = FALSE
	`, match.TransactionID, match.EntryID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to reconcile expense entry", err)
	}
	affected, err = result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read reconcile result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrAlreadyReconciled, fmt.Sprintf("Expense entry %s is already reconciled", match.EntryID), match.EntryID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO centra.reconciliation_matches
			(match_id, transaction_id, entry_id, confidence_score,
			amount_match, time_match, location_match, description_match,
			reconciliation_type, reconciled_by, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		match.MatchID,
		match.TransactionID,
		match.EntryID,
		match.ConfidenceScore,
		match.Factors.AmountMatch,
		match.Factors.TimeMatch,
		match.Factors.LocationMatch,
		match.Factors.DescriptionMatch,
		match.Type,
		match.ReconciledBy,
		match.Notes,
		match.CreatedAt,
	)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record match", err)
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit match", err)
	}
	return nil
}

// RecordReconciliationRun inserts a new run row.
func (d Datasource) RecordReconciliationRun(ctx context.Context, run *model.ReconciliationRun) error {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO centra.reconciliation_runs
			(run_id, user_id, status, processed_pairs, auto_matched,
			manual_review, failed, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		run.RunID,
		run.UserID,
		run.Status,
		run.ProcessedPairs,
		run.AutoMatched,
		run.ManualReview,
		run.Failed,
		run.StartedAt,
	)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record reconciliation run", err)
	}
	return nil
}

// UpdateReconciliationRun persists a run's counters and final status.
func (d Datasource) UpdateReconciliationRun(ctx context.Context, run *model.ReconciliationRun) error {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	_, err := d.Conn.ExecContext(ctx, `
		UPDATE centra.reconciliation_runs
		SET status = $2, processed_pairs = $3, auto_matched = $4,
			manual_review = $5, failed = $6, completed_at = $7
		WHERE run_id = $1
	`,
		run.RunID,
		run.Status,
		run.ProcessedPairs,
		run.AutoMatched,
		run.ManualReview,
		run.Failed,
		run.CompletedAt,
	)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update reconciliation run", err)
	}
	return nil
}

// GetReconciliationRun retrieves a run by its id.
func (d Datasource) GetReconciliationRun(ctx context.Context, runID string) (*model.ReconciliationRun, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	run := &model.ReconciliationRun{}
	var completedAt sql.NullTime
	err := d.Conn.QueryRowContext(ctx, `
		SELECT id, run_id, user_id, status, processed_pairs, auto_matched,
			manual_review, failed, started_at, completed_at
		FROM centra.reconciliation_runs WHERE run_id = $1
	`, runID).Scan(
		&run.ID,
		&run.RunID,
		&run.UserID,
		&run.Status,
		&run.ProcessedPairs,
		&run.AutoMatched,
		&run.ManualReview,
		&run.Failed,
		&run.StartedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Reconciliation run %s not found", runID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve reconciliation run", err)
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return run, nil
}
