package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/centraledger/centra/internal/apierror"
	"github.com/centraledger/centra/model"
)

const allocationColumns = `
	id, allocation_id, reference, company_id, employee_id, amount, currency,
	budget_type, status, allocated_by, allocated_at, accepted_at, rejected_at,
	expiry_date
`

func scanAllocation(row interface {
	Scan(dest ...interface{}) error
}) (*model.BudgetAllocation, error) {
	alc := &model.BudgetAllocation{}
	var budgetType, allocatedBy sql.NullString
	var acceptedAt, rejectedAt, expiryDate sql.NullTime
	err := row.Scan(
		&alc.ID,
		&alc.AllocationID,
		&alc.Reference,
		&alc.CompanyID,
		&alc.EmployeeID,
		&alc.AmountMinor,
		&alc.Currency,
		&budgetType,
		&alc.Status,
		&allocatedBy,
		&alc.AllocatedAt,
		&acceptedAt,
		&rejectedAt,
		&expiryDate,
	)
	if err != nil {
		return nil, err
	}
	alc.BudgetType = budgetType.String
	alc.AllocatedBy = allocatedBy.String
	if acceptedAt.Valid {
		alc.AcceptedAt = &acceptedAt.Time
	}
	if rejectedAt.Valid {
		alc.RejectedAt = &rejectedAt.Time
	}
	if expiryDate.Valid {
		alc.ExpiryDate = &expiryDate.Time
	}
	return alc, nil
}

// RecordAllocation inserts a new pending allocation.
func (d Datasource) RecordAllocation(ctx context.Context, alc *model.BudgetAllocation) error {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO centra.budget_allocations
			(allocation_id, reference, company_id, employee_id, amount,
			currency, budget_type, status, allocated_by, allocated_at, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		alc.AllocationID,
		alc.Reference,
		alc.CompanyID,
		alc.EmployeeID,
		alc.AmountMinor,
		alc.Currency,
		alc.BudgetType,
		alc.Status,
		alc.AllocatedBy,
		alc.AllocatedAt,
		alc.ExpiryDate,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return apierror.NewAPIError(apierror.ErrDuplicateReference, fmt.Sprintf("Allocation with reference %s already exists", alc.Reference), err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record allocation", err)
	}
	return nil
}

// GetAllocationByRef retrieves an allocation by its reference.
func (d Datasource) GetAllocationByRef(ctx context.Context, reference string) (*model.BudgetAllocation, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM centra.budget_allocations WHERE reference = $1
	`, allocationColumns), reference)

	alc, err := scanAllocation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Allocation with reference %s not found", reference), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve allocation", err)
	}
	return alc, nil
}

func (d Datasource) getAllocations(ctx context.Context, column, id string, limit int, offset int64) ([]*model.BudgetAllocation, error) {
	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM centra.budget_allocations
		WHERE %s = $1
		ORDER BY allocated_at DESC
		LIMIT $2 OFFSET $3
	`, allocationColumns, column), id, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve allocations", err)
	}
	defer rows.Close()

	var allocations []*model.BudgetAllocation
	for rows.Next() {
		alc, err := scanAllocation(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan allocation", err)
		}
		allocations = append(allocations, alc)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating allocations", err)
	}
	return allocations, nil
}

func (d Datasource) GetAllocationsByEmployee(ctx context.Context, employeeID string, limit int, offset int64) ([]*model.BudgetAllocation, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()
	return d.getAllocations(ctx, "employee_id", employeeID, limit, offset)
}

func (d Datasource) GetAllocationsByCompany(ctx context.Context, companyID string, limit int, offset int64) ([]*model.BudgetAllocation, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()
	return d.getAllocations(ctx, "company_id", companyID, limit, offset)
}

// TransitionAllocation moves a pending allocation to a terminal status.
// The status guard lives in the WHERE clause, so a lost race simply updates
// zero rows and the caller reports the conflict. Returns whether this call
// won the transition.
func (d Datasource) TransitionAllocation(ctx context.Context, reference string, to model.AllocationStatus, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	var query string
	switch to {
	case model.AllocationAccepted:
		query = `
			UPDATE centra.budget_allocations
			SET status = $3, accepted_at = $2
			WHERE reference = $1 AND status = 'pending'`
	case model.AllocationRejected:
		query = `
			UPDATE centra.budget_allocations
			SET status = $3, rejected_at = $2
			WHERE reference = $1 AND status = 'pending'`
	case model.AllocationExpired, model.AllocationCancelled:
		query = `
			UPDATE centra.budget_allocations
			SET status = $3, rejected_at = $2
			WHERE reference = $1 AND status = 'pending'`
	default:
		return false, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("Invalid target status %s", to), to)
	}

	result, err := d.Conn.ExecContext(ctx, query, reference, at, to)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to transition allocation", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read transition result", err)
	}
	return affected > 0, nil
}

// ExpireDueAllocations marks every pending allocation past its expiry date
// as expired and returns how many rows changed. Used by the periodic sweep;
// per-allocation expiry tasks handle the common case.
func (d Datasource) ExpireDueAllocations(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Minute)
	defer cancel()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE centra.budget_allocations
		SET status = 'expired', rejected_at = $1
		WHERE status = 'pending' AND expiry_date IS NOT NULL AND expiry_date <= $1
	`, now)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to expire allocations", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read expiry result", err)
	}
	return affected, nil
}
