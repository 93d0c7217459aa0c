// Package janitor finishes sagas that could not finish themselves.
//
// A crashed or failed ingest can leave a pending reservation behind, and a
// failed delete can leave a row in the deleting state. Once such a row is
// older than the reservation TTL the janitor hides it, removes its blob and
// then deletes the row. A blob that cannot be removed keeps its row, so the
// next sweep retries it.
package janitor

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/payslips/internal/common"
	"github.com/dmitrijs2005/payslips/internal/dbx"
	"github.com/dmitrijs2005/payslips/internal/logging"
	"github.com/dmitrijs2005/payslips/internal/server/blobstore"
	"github.com/dmitrijs2005/payslips/internal/server/models"
	"github.com/dmitrijs2005/payslips/internal/server/repositories/repomanager"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payslip_janitor_runs_total",
		Help: "Janitor sweeps performed",
	})
	removedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payslip_janitor_removed_total",
		Help: "Stale payslip rows removed together with their blobs",
	})
	errorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payslip_janitor_errors_total",
		Help: "Errors while sweeping stale payslips",
	})
	durationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payslip_janitor_duration_seconds",
		Help:    "Duration of a janitor sweep in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

type Config struct {
	Interval       time.Duration
	ReservationTTL time.Duration
	// BatchSize caps how many rows of each status one sweep looks at.
	BatchSize int
}

// Result summarises one sweep.
type Result struct {
	Abandoned int
	Removed   int
	Errors    int
	Duration  time.Duration
}

type Janitor struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       blobstore.Store
	cfg         Config
	logger      logging.Logger
	now         func() time.Time

	mu sync.Mutex

	// life guards cancel and done.
	life   sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(db *sql.DB, m repomanager.RepositoryManager, store blobstore.Store, cfg Config, logger logging.Logger) *Janitor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Janitor{
		db:          db,
		repomanager: m,
		store:       store,
		cfg:         cfg,
		logger:      logger.With("module", "janitor"),
		now:         time.Now,
	}
}

// Start runs a sweep immediately and then every Interval until Stop or ctx
// ends. Calling Start on a running janitor does nothing.
func (j *Janitor) Start(ctx context.Context) {
	j.life.Lock()
	defer j.life.Unlock()
	if j.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})

	go j.run(ctx, j.done)

	j.logger.Info(ctx, "janitor started", "interval", j.cfg.Interval.String(), "ttl", j.cfg.ReservationTTL.String())
}

// Stop cancels the loop and waits for an in-flight sweep to finish. The
// janitor may be started again afterwards.
func (j *Janitor) Stop() {
	j.life.Lock()
	defer j.life.Unlock()
	if j.cancel == nil {
		return
	}
	j.cancel()
	<-j.done
	j.cancel, j.done = nil, nil
	j.logger.Info(context.Background(), "janitor stopped")
}

func (j *Janitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	j.RunOnce(ctx)

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sweep. Concurrent calls are serialised.
func (j *Janitor) RunOnce(ctx context.Context) Result {
	j.mu.Lock()
	defer j.mu.Unlock()

	start := time.Now()
	var res Result
	cutoff := j.now().Add(-j.cfg.ReservationTTL)
	repo := j.repomanager.Payslips(j.db)

	victims := map[string]*models.Payslip{}

	pending, err := repo.ListStale(ctx, models.StatusPending, cutoff, j.cfg.BatchSize)
	if err != nil {
		res.Errors++
		j.logger.Error(ctx, "list stale reservations failed", "error", err)
	}
	for _, p := range pending {
		// a finalize racing with this update either wins or finds the row gone
		hidden, err := repo.MarkDeleting(ctx, p.ID, models.StatusPending)
		if err != nil {
			if !errors.Is(err, common.ErrNotFound) {
				res.Errors++
				j.logger.Error(ctx, "abandon reservation failed", "id", p.ID, "error", err)
			}
			continue
		}
		res.Abandoned++
		victims[hidden.ID] = hidden
	}

	deleting, err := repo.ListStale(ctx, models.StatusDeleting, cutoff, j.cfg.BatchSize)
	if err != nil {
		res.Errors++
		j.logger.Error(ctx, "list stale deletions failed", "error", err)
	}
	for _, p := range deleting {
		victims[p.ID] = p
	}

	var cleared []string
	for id, p := range victims {
		if err := j.store.Delete(ctx, p.StorageKey); err != nil {
			res.Errors++
			j.logger.Warn(ctx, "blob delete failed, will retry", "id", id, "storage_key", p.StorageKey, "error", err)
			continue
		}
		cleared = append(cleared, id)
	}

	if len(cleared) > 0 {
		removed := 0
		err := dbx.WithTx(ctx, j.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			txRepo := j.repomanager.Payslips(tx)
			for _, id := range cleared {
				ok, err := txRepo.Delete(ctx, id, models.StatusDeleting)
				if err != nil {
					return err
				}
				if ok {
					removed++
				}
			}
			return nil
		})
		if err != nil {
			res.Errors++
			j.logger.Error(ctx, "delete swept rows failed", "count", len(cleared), "error", err)
		} else {
			res.Removed = removed
		}
	}

	res.Duration = time.Since(start)
	runsTotal.Inc()
	removedTotal.Add(float64(res.Removed))
	errorsTotal.Add(float64(res.Errors))
	durationSeconds.Observe(res.Duration.Seconds())

	if res.Abandoned+res.Removed+res.Errors > 0 {
		j.logger.Info(ctx, "janitor sweep finished",
			"abandoned", res.Abandoned, "removed", res.Removed, "errors", res.Errors, "duration", res.Duration.String())
	}
	return res
}
