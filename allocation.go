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
	"encoding/json"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/centraledger/centra/internal/apierror"
	"github.com/centraledger/centra/internal/notification"
	"github.com/centraledger/centra/model"
)

var allocationTracer = otel.Tracer("centra.allocations")

// AllocationRequest describes a new budget offer from a company to an
// employee.
type AllocationRequest struct {
	Reference   string     `json:"reference"`
	CompanyID   string     `json:"company_id"`
	EmployeeID  string     `json:"employee_id"`
	AmountMinor int64      `json:"amount_minor"`
	Currency    string     `json:"currency"`
	BudgetType  string     `json:"budget_type,omitempty"`
	AllocatedBy string     `json:"allocated_by,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
}

func (r AllocationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Reference, validation.Required),
		validation.Field(&r.CompanyID, validation.Required),
		validation.Field(&r.EmployeeID, validation.Required),
		validation.Field(&r.AmountMinor, validation.Required, validation.Min(1)),
		validation.Field(&r.Currency, validation.Required, validation.By(func(value interface{}) error {
			code, _ := value.(string)
			if !model.IsSupportedCurrency(code) {
				return fmt.Errorf("unsupported currency code %s", code)
			}
			return nil
		})),
		validation.Field(&r.ExpiryDate, validation.By(func(value interface{}) error {
			expiry, ok := value.(*time.Time)
			if !ok || expiry == nil {
				return nil
			}
			if expiry.Before(time.Now()) {
				return fmt.Errorf("expiry date must be in the future")
			}
			return nil
		})),
	)
}

// CreateAllocation records a pending budget offer. No balance moves until
// the employee accepts. When an expiry date is set, a delayed task voids
// the offer if it is still pending at that time.
func (l *Centra) CreateAllocation(ctx context.Context, req *AllocationRequest) (*model.BudgetAllocation, error) {
	ctx, span := allocationTracer.Start(ctx, "Creating Allocation", trace.WithAttributes(
		attribute.String("allocation.reference", req.Reference),
	))
	defer span.End()

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
	}

	allocation := &model.BudgetAllocation{
		AllocationID: model.GenerateUUIDWithSuffix("alc"),
		Reference:    req.Reference,
		CompanyID:    req.CompanyID,
		EmployeeID:   req.EmployeeID,
		AmountMinor:  req.AmountMinor,
		Currency:     req.Currency,
		BudgetType:   req.BudgetType,
		Status:       model.AllocationPending,
		AllocatedBy:  req.AllocatedBy,
		AllocatedAt:  time.Now(),
		ExpiryDate:   req.ExpiryDate,
	}

	if err := l.datasource.RecordAllocation(ctx, allocation); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if allocation.ExpiryDate != nil {
		if err := l.queue.queueAllocationExpiry(allocation.Reference, *allocation.ExpiryDate); err != nil {
			// The periodic sweep still catches it.
			logrus.Errorf("failed to queue expiry for allocation %s: %v", allocation.Reference, err)
		}
	}

	span.AddEvent("Allocation created", trace.WithAttributes(
		attribute.String("allocation.id", allocation.AllocationID),
	))
	l.postAllocationActions(ctx, "allocation.created", allocation)
	return allocation, nil
}

// GetAllocation fetches an allocation by its reference.
func (l *Centra) GetAllocation(ctx context.Context, reference string) (*model.BudgetAllocation, error) {
	ctx, span := allocationTracer.Start(ctx, "Fetching Allocation")
	defer span.End()

	allocation, err := l.datasource.GetAllocationByRef(ctx, reference)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return allocation, nil
}

// ListEmployeeAllocations returns an employee's allocations, newest first.
func (l *Centra) ListEmployeeAllocations(ctx context.Context, employeeID string, limit int, offset int64) ([]*model.BudgetAllocation, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return l.datasource.GetAllocationsByEmployee(ctx, employeeID, limit, offset)
}

// ListCompanyAllocations returns a company's allocations, newest first.
func (l *Centra) ListCompanyAllocations(ctx context.Context, companyID string, limit int, offset int64) ([]*model.BudgetAllocation, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return l.datasource.GetAllocationsByCompany(ctx, companyID, limit, offset)
}

// AcceptAllocation credits the employee and marks the offer accepted. The
// ledger entry is keyed on the allocation reference, so a crashed or retried
// accept can never credit the employee twice: the replay sees the duplicate
// reference and goes straight to the status transition.
func (l *Centra) AcceptAllocation(ctx context.Context, reference string) (*model.BudgetAllocation, error) {
	ctx, span := allocationTracer.Start(ctx, "Accepting Allocation", trace.WithAttributes(
		attribute.String("allocation.reference", reference),
	))
	defer span.End()

	allocation, err := l.datasource.GetAllocationByRef(ctx, reference)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if allocation.Status != model.AllocationPending {
		err := apierror.NewAPIError(apierror.ErrInvalidTransition,
			fmt.Sprintf("Allocation %s is %s and cannot be accepted", reference, allocation.Status), allocation.Status)
		span.RecordError(err)
		return nil, err
	}

	now := time.Now()
	if allocation.PastExpiry(now) {
		if _, err := l.datasource.TransitionAllocation(ctx, reference, model.AllocationExpired, now); err != nil {
			logrus.Errorf("failed to expire allocation %s: %v", reference, err)
		}
		err := apierror.NewAPIError(apierror.ErrInvalidTransition,
			fmt.Sprintf("Allocation %s expired at %s", reference, allocation.ExpiryDate.Format(time.RFC3339)), allocation.ExpiryDate)
		span.RecordError(err)
		return nil, err
	}

	_, _, err = l.UpdateBalance(ctx, &BalanceUpdate{
		EntityID:        allocation.EmployeeID,
		EntityType:      model.EntityEmployee,
		TransactionType: model.TypeBudgetCredit,
		Reference:       allocation.Reference,
		AmountMinor:     allocation.AmountMinor,
		Currency:        allocation.Currency,
		Purpose:         fmt.Sprintf("budget allocation from %s", allocation.CompanyID),
	})
	if err != nil {
		if apiErr, ok := err.(apierror.APIError); !ok || apiErr.Code != apierror.ErrDuplicateReference {
			span.RecordError(err)
			return nil, err
		}
		// Credit already landed on an earlier attempt; finish the transition.
		span.AddEvent("Budget credit already applied, completing transition")
	}

	won, err := l.datasource.TransitionAllocation(ctx, reference, model.AllocationAccepted, now)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !won {
		current, fetchErr := l.datasource.GetAllocationByRef(ctx, reference)
		if fetchErr == nil && current.Status == model.AllocationAccepted {
			return current, nil
		}
		err := apierror.NewAPIError(apierror.ErrInvalidTransition,
			fmt.Sprintf("Allocation %s was concurrently finalized", reference), reference)
		span.RecordError(err)
		return nil, err
	}

	allocation.Status = model.AllocationAccepted
	allocation.AcceptedAt = &now
	span.AddEvent("Allocation accepted")
	l.postAllocationActions(ctx, "allocation.accepted", allocation)
	return allocation, nil
}

// RejectAllocation declines a pending offer. No balance is touched.
func (l *Centra) RejectAllocation(ctx context.Context, reference string) (*model.BudgetAllocation, error) {
	return l.finalizeAllocation(ctx, reference, model.AllocationRejected, "allocation.rejected")
}

// CancelAllocation withdraws a pending offer on the company's behalf.
func (l *Centra) CancelAllocation(ctx context.Context, reference string) (*model.BudgetAllocation, error) {
	return l.finalizeAllocation(ctx, reference, model.AllocationCancelled, "allocation.cancelled")
}

func (l *Centra) finalizeAllocation(ctx context.Context, reference string, to model.AllocationStatus, event string) (*model.BudgetAllocation, error) {
	ctx, span := allocationTracer.Start(ctx, "Finalizing Allocation", trace.WithAttributes(
		attribute.String("allocation.reference", reference),
		attribute.String("allocation.target_status", string(to)),
	))
	defer span.End()

	allocation, err := l.datasource.GetAllocationByRef(ctx, reference)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if !allocation.CanTransition(to) {
		err := apierror.NewAPIError(apierror.ErrInvalidTransition,
			fmt.Sprintf("Allocation %s is %s and cannot move to %s", reference, allocation.Status, to), allocation.Status)
		span.RecordError(err)
		return nil, err
	}

	now := time.Now()
	won, err := l.datasource.TransitionAllocation(ctx, reference, to, now)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !won {
		err := apierror.NewAPIError(apierror.ErrInvalidTransition,
			fmt.Sprintf("Allocation %s was concurrently finalized", reference), reference)
		span.RecordError(err)
		return nil, err
	}

	allocation.Status = to
	allocation.RejectedAt = &now
	span.AddEvent("Allocation finalized")
	l.postAllocationActions(ctx, event, allocation)
	return allocation, nil
}

// ExpireDueAllocations is the periodic sweep backing up the per-allocation
// expiry tasks. It returns how many offers it voided.
func (l *Centra) ExpireDueAllocations(ctx context.Context) (int64, error) {
	ctx, span := allocationTracer.Start(ctx, "Expiring Due Allocations")
	defer span.End()

	expired, err := l.datasource.ExpireDueAllocations(ctx, time.Now())
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	span.AddEvent("Sweep complete", trace.WithAttributes(
		attribute.Int64("allocations.expired", expired),
	))
	return expired, nil
}

// ProcessAllocationExpiry handles a delayed expiry task for one allocation.
// If the offer is no longer pending the task is a no-op.
func (l *Centra) ProcessAllocationExpiry(ctx context.Context, task *asynq.Task) error {
	var reference string
	if err := json.Unmarshal(task.Payload(), &reference); err != nil {
		logrus.Error(err)
		return err
	}

	allocation, err := l.datasource.GetAllocationByRef(ctx, reference)
	if err != nil {
		return err
	}
	if allocation.Status != model.AllocationPending {
		return nil
	}
	if !allocation.PastExpiry(time.Now()) {
		return nil
	}

	won, err := l.datasource.TransitionAllocation(ctx, reference, model.AllocationExpired, time.Now())
	if err != nil {
		return err
	}
	if won {
		allocation.Status = model.AllocationExpired
		l.postAllocationActions(ctx, "allocation.expired", allocation)
		logrus.Printf(" [*] Allocation Expired %s", reference)
	}
	return nil
}

func (l *Centra) postAllocationActions(_ context.Context, event string, allocation *model.BudgetAllocation) {
	go func() {
		err := SendWebhook(NewWebhook{
			Event:   event,
			Payload: allocation,
		})
		if err != nil {
			notification.NotifyError(err)
		}
	}()
}
