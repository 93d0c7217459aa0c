package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// loggingInterceptor logs every unary call with its status code and duration.
// Health checks are polled often, so successful ones only log at debug level.
func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	args := []any{"method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start)}
	if err != nil {
		s.logger.Warn(ctx, "grpc call failed", append(args, "error", err)...)
		return resp, err
	}
	s.logger.Debug(ctx, "grpc call", args...)
	return resp, nil
}
