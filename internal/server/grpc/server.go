// Package grpc exposes the standard grpc.health.v1 service so orchestrators
// can probe the payslip service over gRPC. Serving status follows a periodic
// readiness probe of the metadata database and the blob store.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/payslips/internal/common"
	"github.com/dmitrijs2005/payslips/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Probe reports readiness of the service's dependencies; nil means ready.
type Probe func(ctx context.Context) error

type GRPCServer struct {
	address  string
	logger   logging.Logger
	health   *health.Server
	probe    Probe
	interval time.Duration
}

func NewGRPCServer(a string, l logging.Logger, probe Probe, interval time.Duration) *GRPCServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		health:   health.NewServer(),
		probe:    probe,
		interval: interval,
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	// creates gRPC-server
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))

	// registers service
	healthpb.RegisterHealthServer(srv, s.health)

	s.check(ctx)
	go s.watch(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

// watch re-runs the readiness probe every interval until ctx is done.
func (s *GRPCServer) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

// check runs the probe once and publishes the result for both the overall
// server ("") and the named payslip service.
func (s *GRPCServer) check(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.probe != nil {
		probeCtx, cancel := context.WithTimeout(ctx, s.interval)
		err := s.probe(probeCtx)
		cancel()
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			s.logger.Warn(ctx, "readiness probe failed", "error", err)
		}
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(common.ServiceName, status)
}
