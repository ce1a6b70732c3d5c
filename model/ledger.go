package model

import (
	"time"
)

// TransactionType classifies every ledger mutation on the platform.
type TransactionType string

const (
	TypeDeposit          TransactionType = "deposit"
	TypeWithdrawal       TransactionType = "withdrawal"
	TypeAllocation       TransactionType = "allocation"
	TypeTransferSent     TransactionType = "transfer_sent"
	TypeTransferReceived TransactionType = "transfer_received"
	TypeBudgetCredit     TransactionType = "budget_credit"
	TypeBudgetDebit      TransactionType = "budget_debit"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeAllocation, TypeTransferSent,
		TypeTransferReceived, TypeBudgetCredit, TypeBudgetDebit:
		return true
	}
	return false
}

// IsCredit reports whether the type increases the target balance.
func (t TransactionType) IsCredit() bool {
	switch t {
	case TypeDeposit, TypeTransferReceived, TypeBudgetCredit:
		return true
	}
	return false
}

// LedgerEntry is an immutable record of a single balance mutation.
// Entries are append only; corrections happen through compensating entries.
type LedgerEntry struct {
	ID                   int64           `json:"-"`
	EntryID              string          `json:"entry_id"`
	Reference            string          `json:"reference"`
	EntityID             string          `json:"entity_id"`
	EntityType           EntityType      `json:"entity_type"`
	TransactionType      TransactionType `json:"transaction_type"`
	AmountMinor          int64           `json:"amount_minor"`
	FeeMinor             int64           `json:"fee_minor"`
	NetAmountMinor       int64           `json:"net_amount_minor"`
	Currency             string          `json:"currency"`
	PreviousBalanceMinor int64           `json:"previous_balance_minor"`
	NewBalanceMinor      int64           `json:"new_balance_minor"`
	Purpose              string          `json:"purpose,omitempty"`
	ProcessedAt          time.Time       `json:"processed_at"`
}

// BalanceDelta returns the signed change this entry applies to its balance.
// Credits add the amount net of fees; debits remove the amount plus fees.
func (e *LedgerEntry) BalanceDelta() int64 {
	if e.TransactionType.IsCredit() {
		return e.AmountMinor - e.FeeMinor
	}
	return -(e.AmountMinor + e.FeeMinor)
}
