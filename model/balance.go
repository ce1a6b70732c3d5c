package model

import (
	"fmt"
	"time"
)

// ErrInsufficientFunds is returned when a debit would take a balance below zero.
var ErrInsufficientFunds = fmt.Errorf("insufficient funds in balance")

// ErrCurrencyMismatch is returned when an entry's currency differs from the
// account it targets. Accounts are single currency.
var ErrCurrencyMismatch = fmt.Errorf("currency does not match balance currency")

// BalanceAccount tracks the current funds of one entity together with
// running totals per flow direction. All amounts are minor units.
type BalanceAccount struct {
	ID                    int64      `json:"-"`
	EntityID              string     `json:"entity_id"`
	EntityType            EntityType `json:"entity_type"`
	BalanceMinor          int64      `json:"balance_minor"`
	Currency              string     `json:"currency"`
	TotalDepositsMinor    int64      `json:"total_deposits_minor"`
	TotalWithdrawalsMinor int64      `json:"total_withdrawals_minor"`
	TotalAllocationsMinor int64      `json:"total_allocations_minor"`
	TotalReceivedMinor    int64      `json:"total_received_minor"`
	TotalSentMinor        int64      `json:"total_sent_minor"`
	CreatedAt             time.Time  `json:"created_at"`
	LastUpdated           time.Time  `json:"last_updated"`
}

// NewBalanceAccount returns a zero-valued account for an entity. Accounts are
// created lazily on first mutation or read.
func NewBalanceAccount(entityID string, entityType EntityType, currency string) *BalanceAccount {
	now := time.Now()
	return &BalanceAccount{
		EntityID:    entityID,
		EntityType:  entityType,
		Currency:    currency,
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// ApplyEntry mutates the account in place with the given entry and fills in
// the entry's net amount and balance snapshots. Debits that would overdraw
// the account return ErrInsufficientFunds and leave both values untouched.
func (b *BalanceAccount) ApplyEntry(entry *LedgerEntry) error {
	if entry.Currency != b.Currency {
		return fmt.Errorf("%w: entry %s, balance %s", ErrCurrencyMismatch, entry.Currency, b.Currency)
	}

	delta := entry.BalanceDelta()
	newBalance := b.BalanceMinor + delta
	if newBalance < 0 {
		return fmt.Errorf("%w: balance %d, required %d", ErrInsufficientFunds, b.BalanceMinor, -delta)
	}

	entry.PreviousBalanceMinor = b.BalanceMinor
	entry.NewBalanceMinor = newBalance
	if entry.TransactionType.IsCredit() {
		entry.NetAmountMinor = entry.AmountMinor - entry.FeeMinor
	} else {
		entry.NetAmountMinor = entry.AmountMinor + entry.FeeMinor
	}

	switch entry.TransactionType {
	case TypeDeposit:
		b.TotalDepositsMinor += entry.NetAmountMinor
	case TypeWithdrawal:
		b.TotalWithdrawalsMinor += entry.NetAmountMinor
	case TypeAllocation, TypeBudgetDebit:
		b.TotalAllocationsMinor += entry.NetAmountMinor
	case TypeTransferSent:
		b.TotalSentMinor += entry.NetAmountMinor
	case TypeTransferReceived, TypeBudgetCredit:
		b.TotalReceivedMinor += entry.NetAmountMinor
	}

	b.BalanceMinor = newBalance
	b.LastUpdated = time.Now()
	return nil
}
