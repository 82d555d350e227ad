package transcribe

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"sessionscribe/internal/metrics"
)

// RetryPolicy bounds how a single provider call is retried.
type RetryPolicy struct {
	// MaxAttempts is the total attempt ceiling, first call included.
	MaxAttempts int
	// RateLimitBackoff is the per-attempt default wait when the provider is
	// rate limiting and supplies no usable hint (wait = backoff × attempt).
	RateLimitBackoff time.Duration
	// RateLimitMargin is added on top of a parsed wait hint.
	RateLimitMargin time.Duration
	// TransientBackoff is the per-attempt linear wait for transient failures.
	TransientBackoff time.Duration
}

// DefaultRetryPolicy mirrors the provider limits this pipeline was tuned for.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:      4,
		RateLimitBackoff: 60 * time.Second,
		RateLimitMargin:  3 * time.Second,
		TransientBackoff: 5 * time.Second,
	}
}

// Retrier wraps provider calls with bounded, rate-limit-aware retry.
type Retrier struct {
	policy  RetryPolicy
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewRetrier creates a retry controller. Metrics may be nil.
func NewRetrier(policy RetryPolicy, logger *zap.Logger, m *metrics.Metrics) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Retrier{policy: policy, logger: logger, metrics: m}
}

type errorClass int

const (
	classFatal errorClass = iota
	classRateLimited
	classTransient
)

// Do runs fn up to MaxAttempts times. Rate-limit and transient failures are
// absorbed with backoff; fatal errors and exhausted budgets propagate the
// provider error unchanged. Backoff sleeps abort when ctx is canceled.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) (*Result, error)) (*Result, error) {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if r.metrics != nil {
			r.metrics.TranscriptionRequests.Inc()
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		class := classify(err)
		if class == classFatal || attempt == r.policy.MaxAttempts {
			return nil, err
		}

		wait := r.backoff(class, attempt, err)
		r.logger.Warn("transcription attempt failed, backing off",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.policy.MaxAttempts),
			zap.Duration("wait", wait),
			zap.Bool("rate_limited", class == classRateLimited),
			zap.Error(err),
		)
		if r.metrics != nil {
			r.metrics.TranscriptionRetries.Inc()
		}

		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

// backoff computes the wait before the next attempt.
func (r *Retrier) backoff(class errorClass, attempt int, err error) time.Duration {
	if class == classRateLimited {
		if hint := ParseWaitHint(err.Error()); hint > 0 {
			return hint + r.policy.RateLimitMargin
		}
		return r.policy.RateLimitBackoff * time.Duration(attempt)
	}
	return r.policy.TransientBackoff * time.Duration(attempt)
}

// classify buckets a provider error into rate-limited, transient, or fatal.
func classify(err error) errorClass {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return classRateLimited
		case apiErr.HTTPStatusCode >= 500:
			return classTransient
		}
		return classFatal
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		switch {
		case reqErr.HTTPStatusCode == 429:
			return classRateLimited
		case reqErr.HTTPStatusCode >= 500:
			return classTransient
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return classTransient
	}

	msg := err.Error()
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "Connection") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "ECONNRESET") ||
		strings.Contains(msg, "EOF") {
		return classTransient
	}

	return classFatal
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
