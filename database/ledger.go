package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/centraledger/centra/internal/apierror"
	"github.com/centraledger/centra/model"
)

const ledgerEntryColumns = `
	id, entry_id, reference, entity_id, entity_type, transaction_type,
	amount, fee, net_amount, currency, balance_before, balance_after,
	purpose, processed_at
`

func scanLedgerEntry(row interface {
	Scan(dest ...interface{}) error
}) (*model.LedgerEntry, error) {
	entry := &model.LedgerEntry{}
	var purpose sql.NullString
	err := row.Scan(
		&entry.ID,
		&entry.EntryID,
		&entry.Reference,
		&entry.EntityID,
		&entry.EntityType,
		&entry.TransactionType,
		&entry.AmountMinor,
		&entry.FeeMinor,
		&entry.NetAmountMinor,
		&entry.Currency,
		&entry.PreviousBalanceMinor,
		&entry.NewBalanceMinor,
		&purpose,
		&entry.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	entry.Purpose = purpose.String
	return entry, nil
}

// GetLedgerEntry retrieves a single entry by its id.
func (d Datasource) GetLedgerEntry(ctx context.Context, entryID string) (*model.LedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM centra.ledger_entries WHERE entry_id = $1
	`, ledgerEntryColumns), entryID)

	entry, err := scanLedgerEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Ledger entry %s not found", entryID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve ledger entry", err)
	}
	return entry, nil
}

// GetLedgerEntryByRef retrieves a single entry by its idempotency reference.
func (d Datasource) GetLedgerEntryByRef(ctx context.Context, reference string) (*model.LedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM centra.ledger_entries WHERE reference = $1
	`, ledgerEntryColumns), reference)

	entry, err := scanLedgerEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Ledger entry with reference %s not found", reference), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve ledger entry", err)
	}
	return entry, nil
}

// LedgerEntryExistsByRef reports whether a reference has already been used.
func (d Datasource) LedgerEntryExistsByRef(ctx context.Context, reference string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM centra.ledger_entries WHERE reference = $1)
	`, reference).Scan(&exists)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check reference", err)
	}
	return exists, nil
}

// GetLedgerEntriesPaginated returns an entity's ledger page, newest first.
// Pages are cached briefly; the ledger is append only so a stale page only
// ever misses the newest entries.
func (d Datasource) GetLedgerEntriesPaginated(ctx context.Context, entityID string, entityType model.EntityType, limit int, offset int64) ([]*model.LedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	cacheKey := fmt.Sprintf("ledger:entries:%s:%s:%d:%d", entityID, entityType, limit, offset)

	var entries []*model.LedgerEntry
	if d.Cache != nil {
		if err := d.Cache.Get(ctx, cacheKey, &entries); err == nil && len(entries) > 0 {
			return entries, nil
		}
	}

	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM centra.ledger_entries
		WHERE entity_id = $1 AND entity_type = $2
		ORDER BY processed_at DESC
		LIMIT $3 OFFSET $4
	`, ledgerEntryColumns), entityID, entityType, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve ledger entries", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan ledger entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating ledger entries", err)
	}

	if d.Cache != nil && len(entries) > 0 {
		if err := d.Cache.Set(ctx, cacheKey, entries, 1*time.Minute); err != nil {
			logrus.Warnf("failed to cache ledger page: %v", err)
		}
	}

	return entries, nil
}
