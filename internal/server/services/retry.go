package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/payslips/internal/common"
	"github.com/sethvargo/go-retry"
)

// withRetry runs a blob call with exponential backoff, giving each attempt
// its own operation timeout.
func (s *PayslipService) withRetry(ctx context.Context, fn func(context.Context) error) error {
	return s.retry(ctx, true, fn)
}

// retry runs fn up to BlobRetryAttempts times. Not-found and caller
// cancellation are final. With bounded unset attempts get no timeout of
// their own, for calls whose result (a body stream) outlives the attempt.
func (s *PayslipService) retry(ctx context.Context, bounded bool, fn func(context.Context) error) error {
	attempts := s.cfg.BlobRetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	base := s.cfg.BlobRetryBaseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(base))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if bounded {
			attemptCtx, cancel = s.opContext(ctx)
		}
		defer cancel()

		err := fn(attemptCtx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || errors.Is(err, common.ErrNotFound) {
			return err
		}
		return retry.RetryableError(err)
	})
}
