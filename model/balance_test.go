package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyEntryCredit(t *testing.T) {
	account := NewBalanceAccount("emp_001", EntityEmployee, "USD")
	entry := &LedgerEntry{
		EntryID:         "lgr_1",
		Reference:       "ref_1",
		EntityID:        "emp_001",
		EntityType:      EntityEmployee,
		TransactionType: TypeDeposit,
		AmountMinor:     100000,
		FeeMinor:        150,
		Currency:        "USD",
	}

	err := account.ApplyEntry(entry)
	assert.NoError(t, err)
	assert.Equal(t, int64(99850), account.BalanceMinor)
	assert.Equal(t, int64(99850), account.TotalDepositsMinor)
	assert.Equal(t, int64(99850), entry.NetAmountMinor)
	assert.Equal(t, int64(0), entry.PreviousBalanceMinor)
	assert.Equal(t, int64(99850), entry.NewBalanceMinor)
}

func TestApplyEntryDebit(t *testing.T) {
	account := NewBalanceAccount("emp_001", EntityEmployee, "USD")
	account.BalanceMinor = 50000

	entry := &LedgerEntry{
		TransactionType: TypeWithdrawal,
		AmountMinor:     20000,
		FeeMinor:        100,
		Currency:        "USD",
	}

	err := account.ApplyEntry(entry)
	assert.NoError(t, err)
	assert.Equal(t, int64(29900), account.BalanceMinor)
	assert.Equal(t, int64(20100), account.TotalWithdrawalsMinor)
	assert.Equal(t, int64(20100), entry.NetAmountMinor)
	assert.Equal(t, int64(50000), entry.PreviousBalanceMinor)
	assert.Equal(t, int64(29900), entry.NewBalanceMinor)
}

func TestApplyEntryInsufficientFunds(t *testing.T) {
	account := NewBalanceAccount("emp_001", EntityEmployee, "USD")
	account.BalanceMinor = 1000

	entry := &LedgerEntry{
		TransactionType: TypeWithdrawal,
		AmountMinor:     1000,
		FeeMinor:        1, // fee tips the debit over the available balance
		Currency:        "USD",
	}

	err := account.ApplyEntry(entry)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(1000), account.BalanceMinor)
	assert.Equal(t, int64(0), entry.NewBalanceMinor)
}

func TestApplyEntryExactBalanceDebit(t *testing.T) {
	account := NewBalanceAccount("emp_001", EntityEmployee, "USD")
	account.BalanceMinor = 1001

	entry := &LedgerEntry{
		TransactionType: TypeWithdrawal,
		AmountMinor:     1000,
		FeeMinor:        1,
		Currency:        "USD",
	}

	err := account.ApplyEntry(entry)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), account.BalanceMinor)
}

func TestApplyEntryCurrencyMismatch(t *testing.T) {
	account := NewBalanceAccount("emp_001", EntityEmployee, "USD")
	entry := &LedgerEntry{
		TransactionType: TypeDeposit,
		AmountMinor:     1000,
		Currency:        "EUR",
	}

	err := account.ApplyEntry(entry)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
	assert.Equal(t, int64(0), account.BalanceMinor)
}

func TestApplyEntryRunningTotals(t *testing.T) {
	account := NewBalanceAccount("cmp_001", EntityCompany, "USD")
	account.BalanceMinor = 1000000

	entries := []*LedgerEntry{
		{TransactionType: TypeDeposit, AmountMinor: 50000, Currency: "USD"},
		{TransactionType: TypeAllocation, AmountMinor: 20000, Currency: "USD"},
		{TransactionType: TypeBudgetDebit, AmountMinor: 5000, Currency: "USD"},
		{TransactionType: TypeTransferSent, AmountMinor: 10000, FeeMinor: 50, Currency: "USD"},
		{TransactionType: TypeTransferReceived, AmountMinor: 7000, Currency: "USD"},
		{TransactionType: TypeBudgetCredit, AmountMinor: 3000, Currency: "USD"},
	}
	for _, entry := range entries {
		assert.NoError(t, account.ApplyEntry(entry))
	}

	assert.Equal(t, int64(50000), account.TotalDepositsMinor)
	assert.Equal(t, int64(25000), account.TotalAllocationsMinor)
	assert.Equal(t, int64(10050), account.TotalSentMinor)
	assert.Equal(t, int64(10000), account.TotalReceivedMinor)
	assert.Equal(t, int64(0), account.TotalWithdrawalsMinor)
	assert.Equal(t, int64(1000000+50000-20000-5000-10050+7000+3000), account.BalanceMinor)
}

func TestBalanceDelta(t *testing.T) {
	credit := &LedgerEntry{TransactionType: TypeDeposit, AmountMinor: 1000, FeeMinor: 25}
	assert.Equal(t, int64(975), credit.BalanceDelta())

	debit := &LedgerEntry{TransactionType: TypeWithdrawal, AmountMinor: 1000, FeeMinor: 25}
	assert.Equal(t, int64(-1025), debit.BalanceDelta())
}

func TestNewBalanceAccountDefaults(t *testing.T) {
	before := time.Now()
	account := NewBalanceAccount("emp_9", EntityEmployee, "NGN")
	assert.Equal(t, "emp_9", account.EntityID)
	assert.Equal(t, EntityEmployee, account.EntityType)
	assert.Equal(t, "NGN", account.Currency)
	assert.Equal(t, int64(0), account.BalanceMinor)
	assert.False(t, account.CreatedAt.Before(before))
}
