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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/centraledger/centra/model"
)

var ledgerTracer = otel.Tracer("centra.ledger")

// GetLedgerEntry fetches a single ledger entry by id.
func (l *Centra) GetLedgerEntry(ctx context.Context, entryID string) (*model.LedgerEntry, error) {
	ctx, span := ledgerTracer.Start(ctx, "Fetching Ledger Entry", trace.WithAttributes(
		attribute.String("entry.id", entryID),
	))
	defer span.End()

	entry, err := l.datasource.GetLedgerEntry(ctx, entryID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return entry, nil
}

// GetLedgerEntryByRef fetches a single ledger entry by its idempotency
// reference. Callers use this to inspect what an earlier replayed write did.
func (l *Centra) GetLedgerEntryByRef(ctx context.Context, reference string) (*model.LedgerEntry, error) {
	ctx, span := ledgerTracer.Start(ctx, "Fetching Ledger Entry By Reference", trace.WithAttributes(
		attribute.String("transaction.reference", reference),
	))
	defer span.End()

	entry, err := l.datasource.GetLedgerEntryByRef(ctx, reference)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return entry, nil
}

// GetEntityLedger returns a page of an entity's history, newest first.
func (l *Centra) GetEntityLedger(ctx context.Context, entityID string, entityType model.EntityType, limit int, offset int64) ([]*model.LedgerEntry, error) {
	ctx, span := ledgerTracer.Start(ctx, "Fetching Entity Ledger", trace.WithAttributes(
		attribute.String("entity.id", entityID),
	))
	defer span.End()

	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	entries, err := l.datasource.GetLedgerEntriesPaginated(ctx, entityID, entityType, limit, offset)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.AddEvent("Ledger page retrieved", trace.WithAttributes(
		attribute.Int("entries.count", len(entries)),
	))
	return entries, nil
}
