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
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/centraledger/centra/internal/apierror"
	redlock "github.com/centraledger/centra/internal/lock"
	"github.com/centraledger/centra/internal/notification"
	"github.com/centraledger/centra/model"
)

var balanceTracer = otel.Tracer("centra.balances")

// BalanceUpdate describes one requested balance mutation. Reference is the
// caller-supplied idempotency key; replays with the same reference are
// rejected without touching the balance.
type BalanceUpdate struct {
	EntityID        string                `json:"entity_id"`
	EntityType      model.EntityType      `json:"entity_type"`
	TransactionType model.TransactionType `json:"transaction_type"`
	Reference       string                `json:"reference"`
	AmountMinor     int64                 `json:"amount_minor"`
	FeeMinor        int64                 `json:"fee_minor"`
	Currency        string                `json:"currency"`
	Purpose         string                `json:"purpose,omitempty"`
}

// Validate enforces the request invariants before anything touches storage.
func (r BalanceUpdate) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.EntityID, validation.Required),
		validation.Field(&r.EntityType, validation.Required, validation.By(func(value interface{}) error {
			if t, ok := value.(model.EntityType); !ok || !t.Valid() {
				return fmt.Errorf("entity type must be company or employee")
			}
			return nil
		})),
		validation.Field(&r.TransactionType, validation.Required, validation.By(func(value interface{}) error {
			if t, ok := value.(model.TransactionType); !ok || !t.Valid() {
				return fmt.Errorf("unknown transaction type")
			}
			return nil
		})),
		validation.Field(&r.Reference, validation.Required),
		validation.Field(&r.AmountMinor, validation.Required, validation.Min(1)),
		validation.Field(&r.FeeMinor, validation.Min(0)),
		validation.Field(&r.Currency, validation.Required, validation.By(func(value interface{}) error {
			code, _ := value.(string)
			if !model.IsSupportedCurrency(code) {
				return fmt.Errorf("unsupported currency code %s", code)
			}
			return nil
		})),
	)
}

// acquireLock takes a short redis lock on the entity's balance. Correctness
// comes from the row lock inside ApplyLedgerEntry; this only keeps hot
// entities from queueing on the database.
func (l *Centra) acquireLock(ctx context.Context, entityID string) (*redlock.Locker, error) {
	ctx, span := balanceTracer.Start(ctx, "Acquiring Balance Lock")
	defer span.End()

	locker := redlock.NewLocker(l.redis, fmt.Sprintf("balance:%s", entityID), model.GenerateUUIDWithSuffix("loc"))
	err := locker.WaitLock(ctx, 30*time.Second, 30*time.Second)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.AddEvent("Lock acquired")
	return locker, nil
}

func (l *Centra) releaseLock(ctx context.Context, locker *redlock.Locker) {
	if err := locker.Unlock(ctx); err != nil {
		logrus.Errorf("failed to release balance lock: %v", err)
	}
}

// UpdateBalance applies one ledger mutation to an entity's balance. The
// mutation is atomic; on success the ledger entry and the updated account
// reflect the same committed state.
func (l *Centra) UpdateBalance(ctx context.Context, req *BalanceUpdate) (*model.BalanceAccount, *model.LedgerEntry, error) {
	ctx, span := balanceTracer.Start(ctx, "Updating Balance", trace.WithAttributes(
		attribute.String("entity.id", req.EntityID),
		attribute.String("transaction.reference", req.Reference),
	))
	defer span.End()

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		return nil, nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
	}

	locker, err := l.acquireLock(ctx, req.EntityID)
	if err != nil {
		span.RecordError(err)
		return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to acquire lock", err)
	}
	defer l.releaseLock(ctx, locker)

	entry := &model.LedgerEntry{
		EntryID:         model.GenerateUUIDWithSuffix("lgr"),
		Reference:       req.Reference,
		EntityID:        req.EntityID,
		EntityType:      req.EntityType,
		TransactionType: req.TransactionType,
		AmountMinor:     req.AmountMinor,
		FeeMinor:        req.FeeMinor,
		Currency:        req.Currency,
		Purpose:         req.Purpose,
		ProcessedAt:     time.Now(),
	}

	balance, err := l.datasource.ApplyLedgerEntry(ctx, entry)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	span.AddEvent("Balance updated", trace.WithAttributes(
		attribute.String("entry.id", entry.EntryID),
		attribute.Int64("balance.after", entry.NewBalanceMinor),
	))

	l.postBalanceActions(ctx, balance, entry)
	return balance, entry, nil
}

// GetBalance returns an entity's balance, creating a zero account on first
// read so new entities always see a balance instead of a 404.
func (l *Centra) GetBalance(ctx context.Context, entityID string, entityType model.EntityType, currency string) (*model.BalanceAccount, error) {
	ctx, span := balanceTracer.Start(ctx, "Fetching Balance", trace.WithAttributes(
		attribute.String("entity.id", entityID),
	))
	defer span.End()

	if !entityType.Valid() {
		err := fmt.Errorf("entity type must be company or employee")
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
	}
	if !model.IsSupportedCurrency(currency) {
		err := fmt.Errorf("unsupported currency code %s", currency)
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
	}

	balance, err := l.datasource.GetOrCreateBalance(ctx, entityID, entityType, currency)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.AddEvent("Balance retrieved")
	return balance, nil
}

func (l *Centra) postBalanceActions(_ context.Context, balance *model.BalanceAccount, entry *model.LedgerEntry) {
	go func() {
		err := SendWebhook(NewWebhook{
			Event: "balance.updated",
			Payload: map[string]interface{}{
				"balance": balance,
				"entry":   entry,
			},
		})
		if err != nil {
			notification.NotifyError(err)
		}
	}()
}
