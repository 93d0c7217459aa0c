// Package httpapi is the REST boundary of the payslip service: a chi router
// with bearer-token authentication, request logging and Prometheus metrics.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/payslips/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every route. Health and metrics stay unauthenticated.
func NewRouter(payslips *PayslipHandler, health *HealthHandler, secret []byte, logger logging.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger))
	r.Use(Metrics())

	r.Get("/health", health.Live)
	r.Get("/health/ready", health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/payslips", func(r chi.Router) {
		r.Use(Authenticate(secret))
		r.Post("/", payslips.Ingest)
		r.Get("/", payslips.List)
		r.Get("/{id}", payslips.Get)
		r.Get("/{id}/content", payslips.Content)
		r.Delete("/{id}", payslips.Delete)
	})

	return r
}

// Server runs the HTTP API until its context is cancelled.
type Server struct {
	address         string
	handler         http.Handler
	shutdownTimeout time.Duration
	logger          logging.Logger
}

func NewServer(address string, handler http.Handler, shutdownTimeout time.Duration, logger logging.Logger) *Server {
	return &Server{
		address:         address,
		handler:         handler,
		shutdownTimeout: shutdownTimeout,
		logger:          logger.With("module", "http_server"),
	}
}

// Run listens on the configured address and shuts down gracefully once ctx
// is done, waiting at most shutdownTimeout for in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())
		errCh <- srv.Serve(listen)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
