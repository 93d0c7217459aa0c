// Package payslips is the metadata repository for payslip records.
//
// The (employee_id, month, year) uniqueness slot is claimed with an atomic
// conditional insert, so concurrent reservations for the same period are
// arbitrated by Postgres and never by an application lock.
package payslips

import (
	"context"
	"time"

	"github.com/dmitrijs2005/payslips/internal/server/models"
)

// PeriodConstraint names the unique constraint guarding one payslip per period.
const PeriodConstraint = "uq_employee_month_year"

type Repository interface {
	// Reserve inserts p as a pending row. It fails with common.ErrDuplicate
	// when the period is already taken, whatever the holder's status.
	Reserve(ctx context.Context, p *models.Payslip) error
	// Finalize marks a reservation completed. Repeating it is harmless.
	Finalize(ctx context.Context, id string, filename string, size int64) (*models.Payslip, error)
	// Release drops a pending reservation; a missing row is not an error.
	Release(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*models.Payslip, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Payslip, error)
	// MarkDeleting moves a row into StatusDeleting, hiding it from readers.
	// from lists the statuses it may leave; empty means completed only.
	MarkDeleting(ctx context.Context, id string, from ...models.Status) (*models.Payslip, error)
	RestoreCompleted(ctx context.Context, id string) error
	// Delete removes the row only while it is still in status.
	Delete(ctx context.Context, id string, status models.Status) (bool, error)
	ListStale(ctx context.Context, status models.Status, olderThan time.Time, limit int) ([]*models.Payslip, error)
}
