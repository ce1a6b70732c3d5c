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

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/centraledger/centra/internal/apierror"
	"github.com/centraledger/centra/internal/notification"
	"github.com/centraledger/centra/model"
)

var transferTracer = otel.Tracer("centra.transfers")

// TransferRequest moves funds from one employee to another.
type TransferRequest struct {
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	AmountMinor int64  `json:"amount_minor"`
	FeeMinor    int64  `json:"fee_minor"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	Purpose     string `json:"purpose,omitempty"`
}

func (r TransferRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SenderID, validation.Required),
		validation.Field(&r.RecipientID, validation.Required, validation.By(func(value interface{}) error {
			if value == r.SenderID {
				return fmt.Errorf("sender and recipient must differ")
			}
			return nil
		})),
		validation.Field(&r.AmountMinor, validation.Required, validation.Min(1)),
		validation.Field(&r.FeeMinor, validation.Min(0)),
		validation.Field(&r.Currency, validation.Required, validation.By(func(value interface{}) error {
			code, _ := value.(string)
			if !model.IsSupportedCurrency(code) {
				return fmt.Errorf("unsupported currency code %s", code)
			}
			return nil
		})),
		validation.Field(&r.Reference, validation.Required),
	)
}

// TransferResult carries both ledger entries of a completed transfer.
type TransferResult struct {
	DebitEntry  *model.LedgerEntry `json:"debit_entry"`
	CreditEntry *model.LedgerEntry `json:"credit_entry"`
}

// Transfer moves funds between two employees as two idempotent ledger legs
// with derived references, <ref>_debit then <ref>_credit. Each leg is atomic
// on its own balance; two balances are never locked in one transaction. If
// the credit leg fails after the debit committed, the error names both
// references so the stuck debit can be repaired or replayed, and a retry of
// the whole transfer completes only the missing leg.
func (l *Centra) Transfer(ctx context.Context, req *TransferRequest) (*TransferResult, error) {
	ctx, span := transferTracer.Start(ctx, "Transferring Funds", trace.WithAttributes(
		attribute.String("transaction.reference", req.Reference),
	))
	defer span.End()

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
	}

	debitRef := req.Reference + "_debit"
	creditRef := req.Reference + "_credit"

	_, debitEntry, err := l.UpdateBalance(ctx, &BalanceUpdate{
		EntityID:        req.SenderID,
		EntityType:      model.EntityEmployee,
		TransactionType: model.TypeTransferSent,
		Reference:       debitRef,
		AmountMinor:     req.AmountMinor,
		FeeMinor:        req.FeeMinor,
		Currency:        req.Currency,
		Purpose:         req.Purpose,
	})
	if err != nil {
		if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrDuplicateReference {
			// Debit landed on an earlier attempt; recover it and finish the
			// credit leg.
			existing, fetchErr := l.datasource.GetLedgerEntryByRef(ctx, debitRef)
			if fetchErr != nil {
				span.RecordError(fetchErr)
				return nil, fetchErr
			}
			debitEntry = existing
		} else {
			span.RecordError(err)
			return nil, err
		}
	}

	_, creditEntry, err := l.UpdateBalance(ctx, &BalanceUpdate{
		EntityID:        req.RecipientID,
		EntityType:      model.EntityEmployee,
		TransactionType: model.TypeTransferReceived,
		Reference:       creditRef,
		AmountMinor:     req.AmountMinor,
		Currency:        req.Currency,
		Purpose:         req.Purpose,
	})
	if err != nil {
		if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrDuplicateReference {
			existing, fetchErr := l.datasource.GetLedgerEntryByRef(ctx, creditRef)
			if fetchErr != nil {
				span.RecordError(fetchErr)
				return nil, fetchErr
			}
			creditEntry = existing
		} else {
			span.RecordError(err)
			stuck := fmt.Errorf("transfer %s debited %s but credit failed, legs %s / %s: %w",
				req.Reference, req.SenderID, debitRef, creditRef, err)
			notification.NotifyError(stuck)
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, stuck.Error(), map[string]string{
				"debit_reference":  debitRef,
				"credit_reference": creditRef,
			})
		}
	}

	span.AddEvent("Transfer complete", trace.WithAttributes(
		attribute.String("debit.entry", debitEntry.EntryID),
		attribute.String("credit.entry", creditEntry.EntryID),
	))
	return &TransferResult{DebitEntry: debitEntry, CreditEntry: creditEntry}, nil
}
