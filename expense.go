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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/centraledger/centra/internal/apierror"
	"github.com/centraledger/centra/model"
)

var expenseTracer = otel.Tracer("centra.expenses")

// ExpenseRequest is a user-reported spend awaiting reconciliation.
type ExpenseRequest struct {
	UserID      string    `json:"user_id"`
	ExpenseType string    `json:"expense_type,omitempty"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	Title       string    `json:"title"`
	Note        string    `json:"note,omitempty"`
	EntryDate   time.Time `json:"entry_date"`
}

func (r ExpenseRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.AmountMinor, validation.Required, validation.Min(1)),
		validation.Field(&r.Currency, validation.Required, validation.By(func(value interface{}) error {
			code, _ := value.(string)
			if !model.IsSupportedCurrency(code) {
				return fmt.Errorf("unsupported currency code %s", code)
			}
			return nil
		})),
		validation.Field(&r.Title, validation.Required),
		validation.Field(&r.EntryDate, validation.Required),
	)
}

// RecordExpense stores an expense entry for later reconciliation. Expenses
// never touch balances; they only exist to be matched against gateway
// transactions.
func (l *Centra) RecordExpense(ctx context.Context, req *ExpenseRequest) (*model.ExpenseEntry, error) {
	ctx, span := expenseTracer.Start(ctx, "Recording Expense", trace.WithAttributes(
		attribute.String("user.id", req.UserID),
	))
	defer span.End()

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
	}

	entry := &model.ExpenseEntry{
		EntryID:     model.GenerateUUIDWithSuffix("exp"),
		UserID:      req.UserID,
		ExpenseType: req.ExpenseType,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Title:       req.Title,
		Note:        req.Note,
		EntryDate:   req.EntryDate,
		CreatedAt:   time.Now(),
	}

	if err := l.datasource.RecordExpenseEntry(ctx, entry); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.AddEvent("Expense recorded", trace.WithAttributes(
		attribute.String("entry.id", entry.EntryID),
	))
	return entry, nil
}

// GetExpenseEntry fetches one expense entry by id.
func (l *Centra) GetExpenseEntry(ctx context.Context, entryID string) (*model.ExpenseEntry, error) {
	return l.datasource.GetExpenseEntry(ctx, entryID)
}
