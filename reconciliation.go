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

package centra

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/centraledger/centra/config"
	"github.com/centraledger/centra/internal/apierror"
	"github.com/centraledger/centra/internal/notification"
	"github.com/centraledger/centra/model"
)

var reconciliationTracer = otel.Tracer("centra.reconciliation")

// Confidence bands. At or above autoApprove a pair reconciles without a
// human; between manualReview and autoApprove it waits for one; below
// potentialMatch it is not worth showing at all.
const (
	autoApproveThreshold    = 0.95
	manualReviewThreshold   = 0.8
	potentialMatchThreshold = 0.3
)

const reconciliationBatchSize = 500

// ReconciliationReport is the outcome of one automatic run: the persisted
// run counters plus the candidate pairs left for manual review.
type ReconciliationReport struct {
	Run        *model.ReconciliationRun `json:"run"`
	Candidates []*model.PotentialMatch  `json:"candidates"`
}

func (l *Centra) matcher() Matcher {
	cfg, err := config.Fetch()
	if err != nil {
		return NewMatcher()
	}
	return NewMatcherFromConfig(&cfg.Reconciliation)
}

// RunAutomaticReconciliation scores every unreconciled transaction against
// every unreconciled expense entry for a user. Pairs at or above the auto
// approve threshold reconcile immediately; the manual review band is
// returned as candidates. A pair that fails to persist is counted and
// skipped, never aborting the run.
func (l *Centra) RunAutomaticReconciliation(ctx context.Context, userID string) (*ReconciliationReport, error) {
	ctx, span := reconciliationTracer.Start(ctx, "Running Automatic Reconciliation", trace.WithAttributes(
		attribute.String("user.id", userID),
	))
	defer span.End()

	if userID == "" {
		err := fmt.Errorf("user id is required")
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
	}

	run := &model.ReconciliationRun{
		RunID:     model.GenerateUUIDWithSuffix("run"),
		UserID:    userID,
		Status:    model.RunStarted,
		StartedAt: time.Now(),
	}
	if err := l.datasource.RecordReconciliationRun(ctx, run); err != nil {
		span.RecordError(err)
		return nil, err
	}

	transactions, err := l.datasource.GetUnreconciledTransactions(ctx, userID, reconciliationBatchSize)
	if err != nil {
		l.failRun(ctx, run)
		span.RecordError(err)
		return nil, err
	}
	entries, err := l.datasource.GetUnreconciledExpenseEntries(ctx, userID, reconciliationBatchSize)
	if err != nil {
		l.failRun(ctx, run)
		span.RecordError(err)
		return nil, err
	}

	run.Status = model.RunInProgress
	matcher := l.matcher()

	matchedTxns := make(map[string]bool)
	matchedEntries := make(map[string]bool)
	var candidates []*model.PotentialMatch

	for _, txn := range transactions {
		if matchedTxns[txn.TransactionID] {
			continue
		}
		for _, entry := range entries {
			if matchedTxns[txn.TransactionID] || matchedEntries[entry.EntryID] {
				continue
			}

			score, factors := matcher.Score(txn, entry)
			run.ProcessedPairs++

			switch {
			case score >= autoApproveThreshold:
				match := &model.ReconciliationMatch{
					MatchID:         model.GenerateUUIDWithSuffix("mch"),
					TransactionID:   txn.TransactionID,
					EntryID:         entry.EntryID,
					ConfidenceScore: score,
					Factors:         factors,
					Type:            model.ReconciliationAutomatic,
					ReconciledBy:    "system",
					CreatedAt:       time.Now(),
				}
				if err := l.datasource.RecordMatch(ctx, match); err != nil {
					run.Failed++
					logrus.Errorf("failed to persist match %s: %v", match.MatchID, err)
					continue
				}
				run.AutoMatched++
				matchedTxns[txn.TransactionID] = true
				matchedEntries[entry.EntryID] = true
				l.postReconciliationActions(ctx, match)

			case score >= manualReviewThreshold:
				run.ManualReview++
				candidates = append(candidates, &model.PotentialMatch{
					Transaction:           txn,
					Entry:                 entry,
					ConfidenceScore:       score,
					Factors:               factors,
					DescriptionSimilarity: matcher.DescriptionSimilarity(txn, entry),
				})
			}
		}
	}

	sortCandidates(candidates)

	run.Status = model.RunCompleted
	run.CompletedAt = ptr.Time(time.Now())
	if err := l.datasource.UpdateReconciliationRun(ctx, run); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.AddEvent("Run completed", trace.WithAttributes(
		attribute.Int("pairs.processed", run.ProcessedPairs),
		attribute.Int("pairs.auto_matched", run.AutoMatched),
		attribute.Int("pairs.failed", run.Failed),
	))
	return &ReconciliationReport{Run: run, Candidates: candidates}, nil
}

func (l *Centra) failRun(ctx context.Context, run *model.ReconciliationRun) {
	run.Status = model.RunFailed
	run.CompletedAt = ptr.Time(time.Now())
	if err := l.datasource.UpdateReconciliationRun(ctx, run); err != nil {
		logrus.Errorf("failed to mark run %s failed: %v", run.RunID, err)
	}
}

// ManualReconciliation reconciles a specific pair on a user's say-so. The
// score is computed for the audit trail but no threshold applies; ownership
// and reconciled state are re-verified at write time.
func (l *Centra) ManualReconciliation(ctx context.Context, userID, transactionID, entryID, notes string) (*model.ReconciliationMatch, error) {
	ctx, span := reconciliationTracer.Start(ctx, "Running Manual Reconciliation", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("transaction.id", transactionID),
	))
	defer span.End()

	txn, err := l.datasource.GetExternalTransaction(ctx, transactionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	entry, err := l.datasource.GetExpenseEntry(ctx, entryID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// Rows belonging to someone else are reported as missing, not forbidden.
	if txn.UserID != userID || entry.UserID != userID {
		err := apierror.NewAPIError(apierror.ErrNotFound, "Transaction or expense entry not found for user", userID)
		span.RecordError(err)
		return nil, err
	}

	if txn.Reconciled {
		err := apierror.NewAPIError(apierror.ErrAlreadyReconciled, fmt.Sprintf("Transaction %s is already reconciled", transactionID), transactionID)
		span.RecordError(err)
		return nil, err
	}
	if entry.IsReconciled {
		err := apierror.NewAPIError(apierror.ErrAlreadyReconciled, fmt.Sprintf("Expense entry %s is already reconciled", entryID), entryID)
		span.RecordError(err)
		return nil, err
	}

	score, factors := l.matcher().Score(txn, entry)
	match := &model.ReconciliationMatch{
		MatchID:         model.GenerateUUIDWithSuffix("mch"),
		TransactionID:   transactionID,
		EntryID:         entryID,
		ConfidenceScore: score,
		Factors:         factors,
		Type:            model.ReconciliationManual,
		ReconciledBy:    userID,
		Notes:           notes,
		CreatedAt:       time.Now(),
	}

	if err := l.datasource.RecordMatch(ctx, match); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.AddEvent("Pair reconciled")
	l.postReconciliationActions(ctx, match)
	return match, nil
}

// GetPotentialMatches returns scored candidate pairs for review, best first.
// Pairs below the potential match threshold are dropped.
func (l *Centra) GetPotentialMatches(ctx context.Context, userID string, limit int) ([]*model.PotentialMatch, error) {
	ctx, span := reconciliationTracer.Start(ctx, "Fetching Potential Matches", trace.WithAttributes(
		attribute.String("user.id", userID),
	))
	defer span.End()

	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	transactions, err := l.datasource.GetUnreconciledTransactions(ctx, userID, reconciliationBatchSize)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	entries, err := l.datasource.GetUnreconciledExpenseEntries(ctx, userID, reconciliationBatchSize)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	matcher := l.matcher()
	var matches []*model.PotentialMatch
	for _, txn := range transactions {
		for _, entry := range entries {
			score, factors := matcher.Score(txn, entry)
			if score < potentialMatchThreshold {
				continue
			}
			matches = append(matches, &model.PotentialMatch{
				Transaction:           txn,
				Entry:                 entry,
				ConfidenceScore:       score,
				Factors:               factors,
				DescriptionSimilarity: matcher.DescriptionSimilarity(txn, entry),
			})
		}
	}

	sortCandidates(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	span.AddEvent("Candidates scored", trace.WithAttributes(
		attribute.Int("candidates.count", len(matches)),
	))
	return matches, nil
}

// GetReconciliationRun fetches one run's counters.
func (l *Centra) GetReconciliationRun(ctx context.Context, runID string) (*model.ReconciliationRun, error) {
	return l.datasource.GetReconciliationRun(ctx, runID)
}

// sortCandidates orders by confidence, then description similarity, then
// transaction id for a stable presentation.
func sortCandidates(matches []*model.PotentialMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].ConfidenceScore != matches[j].ConfidenceScore {
			return matches[i].ConfidenceScore > matches[j].ConfidenceScore
		}
		if matches[i].DescriptionSimilarity != matches[j].DescriptionSimilarity {
			return matches[i].DescriptionSimilarity > matches[j].DescriptionSimilarity
		}
		return matches[i].Transaction.TransactionID < matches[j].Transaction.TransactionID
	})
}

func (l *Centra) postReconciliationActions(_ context.Context, match *model.ReconciliationMatch) {
	go func() {
		err := SendWebhook(NewWebhook{
			Event:   "transaction.reconciled",
			Payload: match,
		})
		if err != nil {
			notification.NotifyError(err)
		}
	}()
}
