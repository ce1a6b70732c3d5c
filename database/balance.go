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

const balanceColumns = `
	id, entity_id, entity_type, balance, currency,
	total_deposits, total_withdrawals, total_allocations,
	total_received, total_sent, created_at, last_updated
`

func scanBalance(row interface {
	Scan(dest ...interface{}) error
}) (*model.BalanceAccount, error) {
	balance := &model.BalanceAccount{}
	err := row.Scan(
		&balance.ID,
		&balance.EntityID,
		&balance.EntityType,
		&balance.BalanceMinor,
		&balance.Currency,
		&balance.TotalDepositsMinor,
		&balance.TotalWithdrawalsMinor,
		&balance.TotalAllocationsMinor,
		&balance.TotalReceivedMinor,
		&balance.TotalSentMinor,
		&balance.CreatedAt,
		&balance.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// GetOrCreateBalance fetches an entity's balance, creating a zero-valued
// account on first touch. The insert is a no-op when the row already exists,
// so concurrent first reads are safe.
func (d Datasource) GetOrCreateBalance(ctx context.Context, entityID string, entityType model.EntityType, currency string) (*model.BalanceAccount, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO centra.balances (entity_id, entity_type, currency)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity_id, entity_type) DO NOTHING
	`, entityID, entityType, currency)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create balance", err)
	}

	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM centra.balances WHERE entity_id = $1 AND entity_type = $2
	`, balanceColumns), entityID, entityType)

	balance, err := scanBalance(row)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve balance", err)
	}
	return balance, nil
}

// GetBalance fetches an entity's balance without creating it.
func (d Datasource) GetBalance(ctx context.Context, entityID string, entityType model.EntityType) (*model.BalanceAccount, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM centra.balances WHERE entity_id = $1 AND entity_type = $2
	`, balanceColumns), entityID, entityType)

	balance, err := scanBalance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Balance for entity %s not found", entityID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve balance", err)
	}
	return balance, nil
}

// ApplyLedgerEntry performs one balance mutation as a single transaction:
// duplicate reference check, row lock on the balance, funds check, balance
// update and ledger append. Either everything commits or nothing does.
// The UNIQUE constraint on reference backstops the explicit check, so two
// writers racing on the same reference cannot both commit.
func (d Datasource) ApplyLedgerEntry(ctx context.Context, entry *model.LedgerEntry) (*model.BalanceAccount, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			logrus.Error("transaction rollback error: ", err)
		}
	}()

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM centra.ledger_entries WHERE reference = $1)
	`, entry.Reference).Scan(&exists)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check reference", err)
	}
	if exists {
		return nil, apierror.NewAPIError(apierror.ErrDuplicateReference, fmt.Sprintf("Reference %s has already been used", entry.Reference), entry.Reference)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO centra.balances (entity_id, entity_type, currency)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity_id, entity_type) DO NOTHING
	`, entry.EntityID, entry.EntityType, entry.Currency)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create balance", err)
	}

	row := tx.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM centra.balances
		WHERE entity_id = $1 AND entity_type = $2
		FOR UPDATE
	`, balanceColumns), entry.EntityID, entry.EntityType)

	balance, err := scanBalance(row)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to lock balance", err)
	}

	if err := balance.ApplyEntry(entry); err != nil {
		switch {
		case errors.Is(err, model.ErrInsufficientFunds):
			return nil, apierror.NewAPIError(apierror.ErrInsufficientBalance, fmt.Sprintf("Insufficient funds in balance for entity %s", entry.EntityID), err)
		case errors.Is(err, model.ErrCurrencyMismatch):
			return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Entry currency does not match balance currency", err)
		default:
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to apply entry", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE centra.balances
		SET balance = $1, total_deposits = $2, total_withdrawals = $3,
			total_allocations = $4, total_received = $5, total_sent = $6,
			last_updated = $7
		WHERE entity_id = $8 AND entity_type = $9
	`,
		balance.BalanceMinor,
		balance.TotalDepositsMinor,
		balance.TotalWithdrawalsMinor,
		balance.TotalAllocationsMinor,
		balance.TotalReceivedMinor,
		balance.TotalSentMinor,
		balance.LastUpdated,
		balance.EntityID,
		balance.EntityType,
	)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update balance", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO centra.ledger_entries
			(entry_id, reference, entity_id, entity_type, transaction_type,
			amount, fee, net_amount, currency, balance_before, balance_after,
			purpose, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		entry.EntryID,
		entry.Reference,
		entry.EntityID,
		entry.EntityType,
		entry.TransactionType,
		entry.AmountMinor,
		entry.FeeMinor,
		entry.NetAmountMinor,
		entry.Currency,
		entry.PreviousBalanceMinor,
		entry.NewBalanceMinor,
		entry.Purpose,
		entry.ProcessedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, apierror.NewAPIError(apierror.ErrDuplicateReference, fmt.Sprintf("Reference %s has already been used", entry.Reference), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record ledger entry", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	return balance, nil
}
