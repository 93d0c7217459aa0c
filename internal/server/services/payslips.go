package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/payslips/internal/common"
	"github.com/dmitrijs2005/payslips/internal/logging"
	"github.com/dmitrijs2005/payslips/internal/server/blobstore"
	"github.com/dmitrijs2005/payslips/internal/server/models"
	"github.com/dmitrijs2005/payslips/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/payslips/internal/server/validation"
	"github.com/google/uuid"
)

// PayslipConfig carries the limits and timeouts of PayslipService.
type PayslipConfig struct {
	MaxFileSize     int64
	MinYear         int
	DefaultPageSize int
	MaxPageSize     int
	ListBatchSize   int

	// OperationTimeout bounds each metadata or blob call; a shorter caller
	// deadline still wins.
	OperationTimeout time.Duration
	// CompensationTimeout bounds rollback work, which runs detached from the
	// caller's cancellation.
	CompensationTimeout time.Duration

	BlobRetryAttempts  int
	BlobRetryBaseDelay time.Duration
}

// DefaultPayslipConfig mirrors the service's configuration defaults.
func DefaultPayslipConfig() PayslipConfig {
	return PayslipConfig{
		MaxFileSize:         10 * 1024 * 1024,
		MinYear:             validation.DefaultMinYear,
		DefaultPageSize:     100,
		MaxPageSize:         1000,
		ListBatchSize:       200,
		OperationTimeout:    10 * time.Second,
		CompensationTimeout: 15 * time.Second,
		BlobRetryAttempts:   3,
		BlobRetryBaseDelay:  100 * time.Millisecond,
	}
}

// PayslipService ingests, lists, fetches and deletes payslips. It owns no
// mutable state; everything lives in the metadata database and the blob store.
type PayslipService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       blobstore.Store
	cfg         PayslipConfig
	logger      logging.Logger

	now   func() time.Time
	newID func() string
}

func NewPayslipService(db *sql.DB, m repomanager.RepositoryManager, store blobstore.Store,
	cfg PayslipConfig, logger logging.Logger) *PayslipService {
	return &PayslipService{
		db:          db,
		repomanager: m,
		store:       store,
		cfg:         cfg,
		logger:      logger.With("module", "payslips"),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// StorageKey derives the blob key for a payslip. suffix must be fresh for
// every upload so concurrent uploads never overwrite each other.
func StorageKey(employeeID int64, period models.Period, suffix string) string {
	return fmt.Sprintf("payslips/%d/%d/%d/%s.pdf", employeeID, period.Year, period.Month, suffix)
}

// opContext bounds a single external call.
func (s *PayslipService) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.OperationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.OperationTimeout)
}

// detached returns a context that survives the caller's cancellation,
// bounded by CompensationTimeout.
func (s *PayslipService) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.cfg.CompensationTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

// Ingest validates an upload and stores it as a new payslip.
//
// The period slot is reserved first, so duplicates fail before any blob I/O.
// The blob is then written and the reservation finalized. Any failure after
// the reservation is compensated so no partial record ever becomes visible.
func (s *PayslipService) Ingest(ctx context.Context, who models.Identity, in validation.Input) (*models.Payslip, error) {
	start := time.Now()
	p, err := s.ingest(ctx, who, in)

	ingestDuration.Observe(time.Since(start).Seconds())
	ingestTotal.WithLabelValues(outcome(err)).Inc()

	if err != nil {
		s.logger.Warn(ctx, "payslip ingest rejected",
			"employee_id", in.EmployeeID, "month", in.Month, "year", in.Year,
			"kind", string(common.KindOf(err)), "error", err)
		return nil, err
	}
	s.logger.Info(ctx, "payslip ingested",
		"id", p.ID, "employee_id", p.EmployeeID, "period", p.Period.String(), "size", p.FileSize)
	return p, nil
}

func (s *PayslipService) ingest(ctx context.Context, who models.Identity, in validation.Input) (*models.Payslip, error) {
	if !CanIngest(who.Role) {
		return nil, common.NewError(common.KindForbidden, nil, "role %q may not upload payslips", who.Role)
	}

	up, err := validation.Validate(in, validation.Limits{MaxFileSize: s.cfg.MaxFileSize, MinYear: s.cfg.MinYear}, s.now())
	if err != nil {
		return nil, err
	}

	id := s.newID()
	rec := &models.Payslip{
		ID:          id,
		EmployeeID:  up.EmployeeID,
		Period:      up.Period,
		Filename:    up.Filename,
		StorageKey:  StorageKey(up.EmployeeID, up.Period, id),
		ContentType: up.ContentType,
		FileSize:    up.Size,
	}
	repo := s.repomanager.Payslips(s.db)

	opCtx, cancel := s.opContext(ctx)
	err = repo.Reserve(opCtx, rec)
	cancel()
	if err != nil {
		if errors.Is(err, common.ErrDuplicate) {
			return nil, common.NewError(common.KindDuplicatePayslip, nil,
				"payslip for employee %d and period %s already exists", rec.EmployeeID, rec.Period)
		}
		// the insert may have landed before the failure was reported
		s.releaseReservation(ctx, rec)
		return nil, common.NewError(common.KindMetadataWriteFailed, err, "reserve payslip")
	}

	err = s.withRetry(ctx, func(ctx context.Context) error {
		return s.store.Put(ctx, blobstore.Object{
			Key:         rec.StorageKey,
			Body:        up.Content,
			ContentType: rec.ContentType,
			Metadata: map[string]string{
				"original_filename": rec.Filename,
				"employee_id":       strconv.FormatInt(rec.EmployeeID, 10),
			},
		})
	})
	if err != nil {
		s.compensate(ctx, rec)
		return nil, common.NewError(common.KindStorageWriteFailed, err, "store payslip file")
	}

	opCtx, cancel = s.opContext(ctx)
	done, err := repo.Finalize(opCtx, rec.ID, rec.Filename, rec.FileSize)
	cancel()
	if err != nil {
		s.compensate(ctx, rec)
		return nil, common.NewError(common.KindMetadataWriteFailed, err, "finalize payslip")
	}

	return done, nil
}

// releaseReservation drops a reservation that never got a blob.
func (s *PayslipService) releaseReservation(ctx context.Context, rec *models.Payslip) {
	cctx, cancel := s.detached(ctx)
	defer cancel()

	if err := s.repomanager.Payslips(s.db).Release(cctx, rec.ID); err != nil {
		compensationTotal.WithLabelValues("failed").Inc()
		s.logger.Error(ctx, "release reservation failed, left for janitor", "id", rec.ID, "error", err)
		return
	}
	compensationTotal.WithLabelValues("released").Inc()
}

// compensate undoes a reservation whose blob may already exist. The row is
// hidden first, then the blob removed, then the row deleted; any step that
// fails leaves the row for the janitor rather than orphaning the blob.
func (s *PayslipService) compensate(ctx context.Context, rec *models.Payslip) {
	cctx, cancel := s.detached(ctx)
	defer cancel()

	repo := s.repomanager.Payslips(s.db)
	fail := func(step string, err error) {
		compensationTotal.WithLabelValues("failed").Inc()
		s.logger.Error(ctx, "ingest compensation failed, left for janitor",
			"id", rec.ID, "storage_key", rec.StorageKey, "step", step, "error", err)
	}

	if _, err := repo.MarkDeleting(cctx, rec.ID, models.StatusPending, models.StatusCompleted); err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			fail("mark", err)
			return
		}
	}
	if err := s.store.Delete(cctx, rec.StorageKey); err != nil {
		fail("blob", err)
		return
	}
	if _, err := repo.Delete(cctx, rec.ID, models.StatusDeleting); err != nil {
		fail("row", err)
		return
	}
	compensationTotal.WithLabelValues("rolled_back").Inc()
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return strings.ToLower(string(common.KindOf(err)))
}
