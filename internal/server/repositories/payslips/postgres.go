package payslips

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/payslips/internal/common"
	"github.com/dmitrijs2005/payslips/internal/dbx"
	"github.com/dmitrijs2005/payslips/internal/server/models"
)

const columns = `id, employee_id, month, year, filename, storage_key, content_type, file_size, status, created_at, updated_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPayslip(s scanner) (*models.Payslip, error) {
	var (
		p      models.Payslip
		status string
	)
	err := s.Scan(&p.ID, &p.EmployeeID, &p.Period.Month, &p.Period.Year, &p.Filename,
		&p.StorageKey, &p.ContentType, &p.FileSize, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = models.Status(status)
	return &p, nil
}

// Reserve claims the period slot. ON CONFLICT only covers the period
// constraint, so any other violation (id, storage key) still surfaces as an error.
func (r *PostgresRepository) Reserve(ctx context.Context, p *models.Payslip) error {
	query := `
		INSERT INTO payslips (id, employee_id, month, year, filename, storage_key, content_type, file_size, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending')
		ON CONFLICT ON CONSTRAINT ` + PeriodConstraint + ` DO NOTHING
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		p.ID, p.EmployeeID, p.Period.Month, p.Period.Year, p.Filename, p.StorageKey, p.ContentType, p.FileSize,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrDuplicate
		}
		if dbx.IsUniqueViolation(err, PeriodConstraint) {
			return common.ErrDuplicate
		}
		return fmt.Errorf("failed to reserve payslip: %w", err)
	}
	p.Status = models.StatusPending
	return nil
}

func (r *PostgresRepository) Finalize(ctx context.Context, id string, filename string, size int64) (*models.Payslip, error) {
	query := `
		UPDATE payslips SET status = 'completed', filename = $2, file_size = $3, updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'completed')
		RETURNING ` + columns

	p, err := scanPayslip(r.db.QueryRowContext(ctx, query, id, filename, size))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to finalize payslip: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Release(ctx context.Context, id string) error {
	_, err := r.Delete(ctx, id, models.StatusPending)
	return err
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Payslip, error) {
	query := `SELECT ` + columns + ` FROM payslips WHERE id = $1 AND status = 'completed'`

	p, err := scanPayslip(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select payslip: %w", err)
	}
	return p, nil
}

// buildListWhere turns the optional filter fields into a WHERE clause with
// positional arguments. Only completed rows are ever listed.
func buildListWhere(f models.Filter) (string, []any) {
	conds := []string{"status = 'completed'"}
	var args []any

	if f.EmployeeID != nil {
		args = append(args, *f.EmployeeID)
		conds = append(conds, fmt.Sprintf("employee_id = $%d", len(args)))
	}
	if f.Year != nil {
		args = append(args, *f.Year)
		conds = append(conds, fmt.Sprintf("year = $%d", len(args)))
	}
	if f.Month != nil {
		args = append(args, *f.Month)
		conds = append(conds, fmt.Sprintf("month = $%d", len(args)))
	}
	if f.After != nil {
		args = append(args, f.After.CreatedAt, f.After.ID)
		conds = append(conds, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

// List returns completed payslips newest first. id breaks ties so paging is stable.
func (r *PostgresRepository) List(ctx context.Context, f models.Filter) ([]*models.Payslip, error) {
	where, args := buildListWhere(f)
	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM payslips %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		columns, where, n+1, n+2)
	args = append(args, f.Limit, f.Skip)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payslips: %w", err)
	}
	defer rows.Close()

	return collect(rows)
}

func collect(rows *sql.Rows) ([]*models.Payslip, error) {
	var result []*models.Payslip
	for rows.Next() {
		p, err := scanPayslip(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkDeleting hides a record from readers while its blob is removed.
func (r *PostgresRepository) MarkDeleting(ctx context.Context, id string, from ...models.Status) (*models.Payslip, error) {
	if len(from) == 0 {
		from = []models.Status{models.StatusCompleted}
	}
	args := []any{id}
	marks := make([]string, 0, len(from))
	for _, st := range from {
		args = append(args, string(st))
		marks = append(marks, fmt.Sprintf("$%d", len(args)))
	}

	query := `
		UPDATE payslips SET status = 'deleting', updated_at = now()
		WHERE id = $1 AND status IN (` + strings.Join(marks, ", ") + `)
		RETURNING ` + columns

	p, err := scanPayslip(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to mark payslip deleting: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) RestoreCompleted(ctx context.Context, id string) error {
	query := `UPDATE payslips SET status = 'completed', updated_at = now() WHERE id = $1 AND status = 'deleting'`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to restore payslip: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string, status models.Status) (bool, error) {
	query := `DELETE FROM payslips WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, string(status))
	if err != nil {
		return false, fmt.Errorf("failed to delete payslip: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return ra > 0, nil
}

func (r *PostgresRepository) ListStale(ctx context.Context, status models.Status, olderThan time.Time, limit int) ([]*models.Payslip, error) {
	query := `SELECT ` + columns + ` FROM payslips WHERE status = $1 AND updated_at < $2 ORDER BY updated_at LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, string(status), olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale payslips: %w", err)
	}
	defer rows.Close()

	return collect(rows)
}
