// Package server initializes and runs the payslip service: it opens the
// metadata database, selects the blob store, wires the services and runs
// the HTTP API, the gRPC health endpoint and the janitor until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/payslips/internal/logging"
	"github.com/dmitrijs2005/payslips/internal/server/blobstore"
	"github.com/dmitrijs2005/payslips/internal/server/config"
	"github.com/dmitrijs2005/payslips/internal/server/httpapi"
	"github.com/dmitrijs2005/payslips/internal/server/janitor"
	"github.com/dmitrijs2005/payslips/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/payslips/internal/server/services"
	"github.com/dmitrijs2005/payslips/internal/server/validation"

	gs "github.com/dmitrijs2005/payslips/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	store    blobstore.Store
	payslips *services.PayslipService
	janitor  *janitor.Janitor
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	store, err := newStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	ps := services.NewPayslipService(db, m, store, payslipConfig(c), logger)
	j := janitor.New(db, m, store, janitor.Config{
		Interval:       c.JanitorInterval,
		ReservationTTL: c.ReservationTTL,
		BatchSize:      c.ListBatchSize,
	}, logger)

	return &App{config: c, logger: logger, db: db, store: store, payslips: ps, janitor: j}, nil
}

func newStore(ctx context.Context, c *config.Config) (blobstore.Store, error) {
	switch c.StorageBackend {
	case "memory":
		return blobstore.NewMemoryStore(), nil
	case "s3", "":
		return blobstore.NewS3Store(ctx, blobstore.S3Config{
			Bucket:        c.S3Bucket,
			Region:        c.S3Region,
			AccessKey:     c.S3RootUser,
			SecretKey:     c.S3RootPassword,
			BaseEndpoint:  c.S3BaseEndpoint,
			UsePathStyle:  c.S3UsePathStyle,
			PresignExpiry: c.PresignExpiry,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

func payslipConfig(c *config.Config) services.PayslipConfig {
	return services.PayslipConfig{
		MaxFileSize:         c.MaxFileSize,
		MinYear:             validation.DefaultMinYear,
		DefaultPageSize:     c.DefaultPageSize,
		MaxPageSize:         c.MaxPageSize,
		ListBatchSize:       c.ListBatchSize,
		OperationTimeout:    c.OperationTimeout,
		CompensationTimeout: c.CompensationTimeout,
		BlobRetryAttempts:   c.BlobRetryAttempts,
		BlobRetryBaseDelay:  c.BlobRetryBaseDelay,
	}
}

// ready reports whether both the database and the bucket answer.
func (app *App) ready(ctx context.Context) error {
	if err := app.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := app.store.Ping(ctx); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	health := httpapi.NewHealthHandler(app.config.OperationTimeout,
		httpapi.Check{Name: "database", Probe: app.db.PingContext},
		httpapi.Check{Name: "storage", Probe: app.store.Ping},
	)
	handler := httpapi.NewPayslipHandler(app.payslips, app.config.MaxFileSize, app.logger)
	router := httpapi.NewRouter(handler, health, []byte(app.config.SecretKey), app.logger)

	s := httpapi.NewServer(app.config.EndpointAddrHTTP, router, app.config.ShutdownTimeout, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.ready, app.config.ReadinessInterval)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled, a signal arrives or a server fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	app.janitor.Start(ctx)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.janitor.Stop()
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
