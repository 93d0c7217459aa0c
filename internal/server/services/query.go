package services

import (
	"context"
	"errors"
	"io"
	"iter"
	"time"

	"github.com/dmitrijs2005/payslips/internal/common"
	"github.com/dmitrijs2005/payslips/internal/server/models"
	"github.com/google/uuid"
)

func knownRole(who models.Identity) error {
	if !who.Role.Valid() {
		return common.NewError(common.KindForbidden, nil, "unknown role %q", who.Role)
	}
	return nil
}

// List yields the payslips visible to who, newest first. The sequence is
// lazy: pages are fetched from the repository only as the caller ranges,
// and ranging again re-runs the query from the start.
func (s *PayslipService) List(ctx context.Context, who models.Identity, requested models.Filter) iter.Seq2[*models.Payslip, error] {
	f := Paginate(EffectiveFilter(who, requested), s.cfg.DefaultPageSize, s.cfg.MaxPageSize)
	batch := s.cfg.ListBatchSize
	if batch <= 0 {
		batch = f.Limit
	}

	return func(yield func(*models.Payslip, error) bool) {
		if err := knownRole(who); err != nil {
			yield(nil, err)
			return
		}

		repo := s.repomanager.Payslips(s.db)
		page := f
		remaining := f.Limit
		for remaining > 0 {
			page.Limit = min(batch, remaining)

			opCtx, cancel := s.opContext(ctx)
			rows, err := repo.List(opCtx, page)
			cancel()
			if err != nil {
				yield(nil, common.NewError(common.KindMetadataReadFailed, err, "list payslips"))
				return
			}

			for _, p := range rows {
				if !yield(p, nil) {
					return
				}
			}
			if len(rows) < page.Limit {
				return
			}
			remaining -= len(rows)

			// Later batches continue from the last row seen rather than by
			// offset, so rows inserted or removed meanwhile cannot shift
			// the window.
			page.Skip = 0
			page.After = models.CursorOf(rows[len(rows)-1])
		}
	}
}

// Collect drains seq into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	out := []T{}
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Get returns a single visible payslip. Records outside an employee's scope
// are reported as not found.
func (s *PayslipService) Get(ctx context.Context, who models.Identity, id string) (*models.Payslip, error) {
	if err := knownRole(who); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrNotFound
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	p, err := s.repomanager.Payslips(s.db).GetByID(opCtx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, common.NewError(common.KindMetadataReadFailed, err, "get payslip")
	}
	if !canSee(who, p) {
		return nil, common.ErrNotFound
	}
	return p, nil
}

// Open streams the PDF of a visible payslip. The stream lives as long as ctx.
func (s *PayslipService) Open(ctx context.Context, who models.Identity, id string) (io.ReadCloser, *models.Payslip, error) {
	p, err := s.Get(ctx, who, id)
	if err != nil {
		return nil, nil, err
	}

	var body io.ReadCloser
	err = s.retry(ctx, false, func(ctx context.Context) error {
		rc, err := s.store.Get(ctx, p.StorageKey)
		if err != nil {
			return err
		}
		body = rc
		return nil
	})
	if err != nil {
		return nil, nil, common.NewError(common.KindStorageReadFailed, err, "read payslip file")
	}
	return body, p, nil
}

// Describe builds the external descriptor, resolving file_url from the
// storage key at read time.
func (s *PayslipService) Describe(ctx context.Context, p *models.Payslip) (models.Descriptor, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	u, err := s.store.URL(opCtx, p.StorageKey)
	if err != nil {
		return models.Descriptor{}, common.NewError(common.KindStorageReadFailed, err, "resolve file url")
	}
	return p.Describe(u), nil
}

// DescribeAll describes every payslip in ps.
func (s *PayslipService) DescribeAll(ctx context.Context, ps []*models.Payslip) ([]models.Descriptor, error) {
	out := make([]models.Descriptor, 0, len(ps))
	for _, p := range ps {
		d, err := s.Describe(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Delete removes a payslip and its blob. The row is hidden first so readers
// never see a record whose blob is already gone.
func (s *PayslipService) Delete(ctx context.Context, who models.Identity, id string) error {
	start := time.Now()
	err := s.delete(ctx, who, id)
	deleteTotal.WithLabelValues(outcome(err)).Inc()

	if err != nil {
		s.logger.Warn(ctx, "payslip delete failed", "id", id, "kind", string(common.KindOf(err)), "error", err)
		return err
	}
	s.logger.Info(ctx, "payslip deleted", "id", id, "by", who.Subject, "took", time.Since(start))
	return nil
}

func (s *PayslipService) delete(ctx context.Context, who models.Identity, id string) error {
	if who.Role == models.RoleEmployee {
		// Someone else's record must look missing; only the caller's own
		// record earns a Forbidden.
		if _, err := s.Get(ctx, who, id); err != nil {
			return err
		}
	}
	if !CanDelete(who.Role) {
		return common.NewError(common.KindForbidden, nil, "role %q may not delete payslips", who.Role)
	}
	if _, err := uuid.Parse(id); err != nil {
		return common.ErrNotFound
	}

	repo := s.repomanager.Payslips(s.db)

	opCtx, cancel := s.opContext(ctx)
	p, err := repo.MarkDeleting(opCtx, id)
	cancel()
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return common.NewError(common.KindMetadataWriteFailed, err, "mark payslip deleting")
	}

	err = s.withRetry(ctx, func(ctx context.Context) error {
		return s.store.Delete(ctx, p.StorageKey)
	})
	if err != nil {
		cctx, cancel := s.detached(ctx)
		defer cancel()
		if rerr := repo.RestoreCompleted(cctx, id); rerr != nil {
			s.logger.Error(ctx, "restore after failed blob delete failed, left for janitor", "id", id, "error", rerr)
		}
		return common.NewError(common.KindStorageWriteFailed, err, "delete payslip file")
	}

	cctx, cancel := s.detached(ctx)
	defer cancel()
	if _, err := repo.Delete(cctx, id, models.StatusDeleting); err != nil {
		return common.NewError(common.KindMetadataWriteFailed, err, "delete payslip record")
	}
	return nil
}
