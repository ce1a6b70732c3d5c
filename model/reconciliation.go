package model

import (
	"time"
)

// External transaction statuses as reported by the payment gateway.
const (
	ExternalPending   = "pending"
	ExternalSuccess   = "success"
	ExternalFailed    = "failed"
	ExternalAbandoned = "abandoned"
)

// ReconciliationType records how a match was produced.
type ReconciliationType string

const (
	ReconciliationAutomatic ReconciliationType = "automatic"
	ReconciliationManual    ReconciliationType = "manual"
	ReconciliationBulk      ReconciliationType = "bulk"
)

// ExternalTransaction mirrors a charge confirmed by the payment gateway.
// The gateway reference doubles as the idempotency key for the ledger
// entry the charge produces.
type ExternalTransaction struct {
	ID            int64      `json:"-"`
	TransactionID string     `json:"transaction_id"`
	Reference     string     `json:"reference"`
	UserID        string     `json:"user_id"`
	EntityType    EntityType `json:"entity_type"`
	AmountMinor   int64      `json:"amount_minor"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	Description   string     `json:"description,omitempty"`
	PaidAt        time.Time  `json:"paid_at"`
	Reconciled    bool       `json:"reconciled"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ExpenseEntry is a user-reported spend record awaiting reconciliation
// against a gateway transaction.
type ExpenseEntry struct {
	ID                      int64     `json:"-"`
	EntryID                 string    `json:"entry_id"`
	UserID                  string    `json:"user_id"`
	ExpenseType             string    `json:"expense_type"`
	AmountMinor             int64     `json:"amount_minor"`
	Currency                string    `json:"currency"`
	Title                   string    `json:"title"`
	Note                    string    `json:"note,omitempty"`
	EntryDate               time.Time `json:"entry_date"`
	IsReconciled            bool      `json:"is_reconciled"`
	ReconciledTransactionID string    `json:"reconciled_transaction_id,omitempty"`
	CreatedAt               time.Time `json:"created_at"`
}

// MatchFactors records which signals contributed to a confidence score.
// Persisted alongside the match for audit.
type MatchFactors struct {
	AmountMatch      bool `json:"amount_match"`
	TimeMatch        bool `json:"time_match"`
	LocationMatch    bool `json:"location_match"`
	DescriptionMatch bool `json:"description_match"`
}

// ReconciliationMatch is the audit record binding one external transaction
// to one expense entry.
type ReconciliationMatch struct {
	ID              int64              `json:"-"`
	MatchID         string             `json:"match_id"`
	TransactionID   string             `json:"transaction_id"`
	EntryID         string             `json:"entry_id"`
	ConfidenceScore float64            `json:"confidence_score"`
	Factors         MatchFactors       `json:"factors"`
	Type            ReconciliationType `json:"type"`
	ReconciledBy    string             `json:"reconciled_by"`
	Notes           string             `json:"notes,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

// PotentialMatch is a scored candidate pair surfaced for human review.
// DescriptionSimilarity orders candidates with equal confidence; it never
// feeds into the confidence score itself.
type PotentialMatch struct {
	Transaction           *ExternalTransaction `json:"transaction"`
	Entry                 *ExpenseEntry        `json:"entry"`
	ConfidenceScore       float64              `json:"confidence_score"`
	Factors               MatchFactors         `json:"factors"`
	DescriptionSimilarity float64              `json:"description_similarity"`
}

// Reconciliation run statuses.
const (
	RunStarted    = "started"
	RunInProgress = "in_progress"
	RunCompleted  = "completed"
	RunFailed     = "failed"
)

// ReconciliationRun summarizes one pass of the automatic matcher over a
// user's unreconciled rows. Partial failures do not abort a run; the
// counters record how far it got.
type ReconciliationRun struct {
	ID             int64      `json:"-"`
	RunID          string     `json:"run_id"`
	UserID         string     `json:"user_id"`
	Status         string     `json:"status"`
	ProcessedPairs int        `json:"processed_pairs"`
	AutoMatched    int        `json:"auto_matched"`
	ManualReview   int        `json:"manual_review"`
	Failed         int        `json:"failed"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}
