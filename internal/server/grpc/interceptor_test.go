package grpc

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dmitrijs2005/payslips/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func newLoggedServer(buf *bytes.Buffer) *GRPCServer {
	h := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewGRPCServer("127.0.0.1:0", logging.NewSlogLogger(slog.New(h)), nil, time.Second)
}

func TestLoggingInterceptor_PassesThrough(t *testing.T) {
	var buf bytes.Buffer
	s := newLoggedServer(&buf)

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	handlerCalled := false

	h := func(ctx context.Context, req any) (any, error) {
		handlerCalled = true
		return "ok", nil
	}

	resp, err := s.loggingInterceptor(context.Background(), nil, info, h)
	require.NoError(t, err)
	assert.True(t, handlerCalled)
	assert.Equal(t, "ok", resp)

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, "method=/grpc.health.v1.Health/Check")
	assert.Contains(t, out, "code=OK")
}

func TestLoggingInterceptor_LogsFailures(t *testing.T) {
	var buf bytes.Buffer
	s := newLoggedServer(&buf)

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	h := func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	}

	_, err := s.loggingInterceptor(context.Background(), nil, info, h)
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "code=NotFound")
}
