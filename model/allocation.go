package model

import (
	"time"
)

// AllocationStatus is the lifecycle state of a budget allocation.
// pending is the only non-terminal state.
type AllocationStatus string

const (
	AllocationPending   AllocationStatus = "pending"
	AllocationAccepted  AllocationStatus = "accepted"
	AllocationRejected  AllocationStatus = "rejected"
	AllocationExpired   AllocationStatus = "expired"
	AllocationCancelled AllocationStatus = "cancelled"
)

func (s AllocationStatus) Valid() bool {
	switch s {
	case AllocationPending, AllocationAccepted, AllocationRejected,
		AllocationExpired, AllocationCancelled:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s AllocationStatus) Terminal() bool {
	return s.Valid() && s != AllocationPending
}

// BudgetAllocation is an offer of funds from a company to an employee.
// Creating one never touches balances; only acceptance produces a ledger
// entry, keyed on the allocation reference so a retried accept cannot
// credit the employee twice.
type BudgetAllocation struct {
	ID           int64            `json:"-"`
	AllocationID string           `json:"allocation_id"`
	Reference    string           `json:"reference"`
	CompanyID    string           `json:"company_id"`
	EmployeeID   string           `json:"employee_id"`
	AmountMinor  int64            `json:"amount_minor"`
	Currency     string           `json:"currency"`
	BudgetType   string           `json:"budget_type"`
	Status       AllocationStatus `json:"status"`
	AllocatedBy  string           `json:"allocated_by"`
	AllocatedAt  time.Time        `json:"allocated_at"`
	AcceptedAt   *time.Time       `json:"accepted_at,omitempty"`
	RejectedAt   *time.Time       `json:"rejected_at,omitempty"`
	ExpiryDate   *time.Time       `json:"expiry_date,omitempty"`
}

// CanTransition reports whether the allocation may move to the target status.
// Every terminal state is only reachable from pending.
func (a *BudgetAllocation) CanTransition(to AllocationStatus) bool {
	return a.Status == AllocationPending && to.Terminal()
}

// PastExpiry reports whether the allocation has an expiry date in the past.
func (a *BudgetAllocation) PastExpiry(now time.Time) bool {
	return a.ExpiryDate != nil && a.ExpiryDate.Before(now)
}
