// Package payslipstest provides an in-memory payslips.Repository with the
// same visibility and uniqueness rules as the Postgres one, plus fault
// injection for saga tests.
package payslipstest

import (
	"context"
	"database/sql"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/payslips/internal/common"
	"github.com/dmitrijs2005/payslips/internal/dbx"
	"github.com/dmitrijs2005/payslips/internal/server/models"
	"github.com/dmitrijs2005/payslips/internal/server/repositories/payslips"
)

type Repository struct {
	mu     sync.Mutex
	rows   map[string]*models.Payslip
	faults map[string]error
	calls  map[string]int
	tick   time.Time
}

var _ payslips.Repository = (*Repository)(nil)

func New() *Repository {
	return &Repository{
		rows:   make(map[string]*models.Payslip),
		faults: make(map[string]error),
		calls:  make(map[string]int),
		tick:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Fail makes every later call to method return err; nil clears it.
func (r *Repository) Fail(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.faults, method)
		return
	}
	r.faults[method] = err
}

// Calls reports how many times method was invoked.
func (r *Repository) Calls(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

// Rows returns copies of every stored row regardless of status.
func (r *Repository) Rows() []models.Payslip {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Payslip, 0, len(r.rows))
	for _, p := range r.rows {
		out = append(out, *p)
	}
	return out
}

// Put stores p as is, for seeding.
func (r *Repository) Put(p models.Payslip) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[p.ID] = &p
}

// Age moves a row's updated_at back by d.
func (r *Repository) Age(id string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.rows[id]; ok {
		p.UpdatedAt = p.UpdatedAt.Add(-d)
	}
}

// enter records the call and returns an injected fault, if any.
func (r *Repository) enter(ctx context.Context, method string) error {
	r.calls[method]++
	if err, ok := r.faults[method]; ok {
		return err
	}
	return ctx.Err()
}

// now is a strictly increasing clock so created_at ordering is deterministic.
func (r *Repository) now() time.Time {
	r.tick = r.tick.Add(time.Second)
	return r.tick
}

func (r *Repository) Reserve(ctx context.Context, p *models.Payslip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(ctx, "Reserve"); err != nil {
		return err
	}
	for _, row := range r.rows {
		if row.EmployeeID == p.EmployeeID && row.Period == p.Period {
			return common.ErrDuplicate
		}
	}
	ts := r.now()
	p.CreatedAt, p.UpdatedAt, p.Status = ts, ts, models.StatusPending
	cp := *p
	r.rows[p.ID] = &cp
	return nil
}

func (r *Repository) Finalize(ctx context.Context, id string, filename string, size int64) (*models.Payslip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(ctx, "Finalize"); err != nil {
		return nil, err
	}
	p, ok := r.rows[id]
	if !ok || (p.Status != models.StatusPending && p.Status != models.StatusCompleted) {
		return nil, common.ErrNotFound
	}
	p.Status, p.Filename, p.FileSize, p.UpdatedAt = models.StatusCompleted, filename, size, r.now()
	cp := *p
	return &cp, nil
}

func (r *Repository) Release(ctx context.Context, id string) error {
	_, err := r.Delete(ctx, id, models.StatusPending)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id string) (*models.Payslip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(ctx, "GetByID"); err != nil {
		return nil, err
	}
	p, ok := r.rows[id]
	if !ok || p.Status != models.StatusCompleted {
		return nil, common.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *Repository) List(ctx context.Context, f models.Filter) ([]*models.Payslip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(ctx, "List"); err != nil {
		return nil, err
	}

	var all []*models.Payslip
	for _, p := range r.rows {
		if p.Status != models.StatusCompleted ||
			(f.EmployeeID != nil && p.EmployeeID != *f.EmployeeID) ||
			(f.Year != nil && p.Period.Year != *f.Year) ||
			(f.Month != nil && p.Period.Month != *f.Month) ||
			(f.After != nil && !before(p, f.After)) {
			continue
		}
		cp := *p
		all = append(all, &cp)
	}
	slices.SortFunc(all, func(a, b *models.Payslip) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})

	if f.Skip >= len(all) {
		return nil, nil
	}
	all = all[f.Skip:]
	if len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, nil
}

func (r *Repository) MarkDeleting(ctx context.Context, id string, from ...models.Status) (*models.Payslip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(ctx, "MarkDeleting"); err != nil {
		return nil, err
	}
	if len(from) == 0 {
		from = []models.Status{models.StatusCompleted}
	}
	p, ok := r.rows[id]
	if !ok || !slices.Contains(from, p.Status) {
		return nil, common.ErrNotFound
	}
	p.Status, p.UpdatedAt = models.StatusDeleting, r.now()
	cp := *p
	return &cp, nil
}

func (r *Repository) RestoreCompleted(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(ctx, "RestoreCompleted"); err != nil {
		return err
	}
	p, ok := r.rows[id]
	if !ok || p.Status != models.StatusDeleting {
		return common.ErrNotFound
	}
	p.Status, p.UpdatedAt = models.StatusCompleted, r.now()
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string, status models.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(ctx, "Delete"); err != nil {
		return false, err
	}
	p, ok := r.rows[id]
	if !ok || p.Status != status {
		return false, nil
	}
	delete(r.rows, id)
	return true, nil
}

func (r *Repository) ListStale(ctx context.Context, status models.Status, olderThan time.Time, limit int) ([]*models.Payslip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter(ctx, "ListStale"); err != nil {
		return nil, err
	}
	var out []*models.Payslip
	for _, p := range r.rows {
		if p.Status == status && p.UpdatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *models.Payslip) int { return a.UpdatedAt.Compare(b.UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Manager vends the same Repository for any DBTX and skips migrations.
type Manager struct {
	Repo *Repository
}

func (m *Manager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *Manager) Payslips(dbx.DBTX) payslips.Repository { return m.Repo }

func before(p *models.Payslip, c *models.Cursor) bool {
	if !p.CreatedAt.Equal(c.CreatedAt) {
		return p.CreatedAt.Before(c.CreatedAt)
	}
	return p.ID < c.ID
}
