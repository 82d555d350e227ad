package transcribe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:      4,
		RateLimitBackoff: 2 * time.Millisecond,
		RateLimitMargin:  time.Millisecond,
		TransientBackoff: time.Millisecond,
	}
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected errorClass
	}{
		{
			name:     "api 429 is rate limited",
			err:      &openai.APIError{HTTPStatusCode: 429, Message: "rate limit"},
			expected: classRateLimited,
		},
		{
			name:     "api 500 is transient",
			err:      &openai.APIError{HTTPStatusCode: 500, Message: "server error"},
			expected: classTransient,
		},
		{
			name:     "api 400 is fatal",
			err:      &openai.APIError{HTTPStatusCode: 400, Message: "bad audio"},
			expected: classFatal,
		},
		{
			name:     "request error 503 is transient",
			err:      &openai.RequestError{HTTPStatusCode: 503, Err: errors.New("unavailable")},
			expected: classTransient,
		},
		{
			name:     "connection reset is transient",
			err:      errors.New("read tcp: connection reset by peer"),
			expected: classTransient,
		},
		{
			name:     "unexpected EOF is transient",
			err:      errors.New("unexpected EOF"),
			expected: classTransient,
		},
		{
			name:     "plain error is fatal",
			err:      errors.New("invalid model"),
			expected: classFatal,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, classify(tc.err))
		})
	}
}

func TestBackoffUsesWaitHint(t *testing.T) {
	r := NewRetrier(RetryPolicy{
		MaxAttempts:      4,
		RateLimitBackoff: 60 * time.Second,
		RateLimitMargin:  3 * time.Second,
		TransientBackoff: 5 * time.Second,
	}, zap.NewNop(), nil)

	err := &openai.APIError{HTTPStatusCode: 429, Message: "Rate limit reached. Please try again in 1m30s."}
	assert.Equal(t, 93*time.Second, r.backoff(classRateLimited, 1, err))
}

func TestBackoffDefaultsScaleWithAttempt(t *testing.T) {
	r := NewRetrier(RetryPolicy{
		MaxAttempts:      4,
		RateLimitBackoff: 60 * time.Second,
		RateLimitMargin:  3 * time.Second,
		TransientBackoff: 5 * time.Second,
	}, zap.NewNop(), nil)

	noHint := errors.New("rate limit exceeded")
	assert.Equal(t, 60*time.Second, r.backoff(classRateLimited, 1, noHint))
	assert.Equal(t, 120*time.Second, r.backoff(classRateLimited, 2, noHint))
	assert.Equal(t, 5*time.Second, r.backoff(classTransient, 1, noHint))
	assert.Equal(t, 15*time.Second, r.backoff(classTransient, 3, noHint))
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	r := NewRetrier(testPolicy(), zap.NewNop(), nil)

	calls := 0
	result, err := r.Do(context.Background(), func(ctx context.Context) (*Result, error) {
		calls++
		if calls < 3 {
			return nil, &openai.APIError{HTTPStatusCode: 502, Message: "bad gateway"}
		}
		return &Result{Text: "hello"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "hello", result.Text)
}

func TestDoStopsOnFatalError(t *testing.T) {
	r := NewRetrier(testPolicy(), zap.NewNop(), nil)

	fatal := &openai.APIError{HTTPStatusCode: 400, Message: "unsupported format"}
	calls := 0
	_, err := r.Do(context.Background(), func(ctx context.Context) (*Result, error) {
		calls++
		return nil, fatal
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, error(fatal))
}

func TestDoExhaustsAttemptBudget(t *testing.T) {
	r := NewRetrier(testPolicy(), zap.NewNop(), nil)

	calls := 0
	_, err := r.Do(context.Background(), func(ctx context.Context) (*Result, error) {
		calls++
		return nil, &openai.APIError{HTTPStatusCode: 500, Message: "server error"}
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls)

	var apiErr *openai.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.HTTPStatusCode)
}

func TestDoAbortsSleepOnCancel(t *testing.T) {
	r := NewRetrier(RetryPolicy{
		MaxAttempts:      4,
		RateLimitBackoff: time.Hour,
		RateLimitMargin:  time.Second,
		TransientBackoff: time.Hour,
	}, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	calls := 0
	_, err := r.Do(ctx, func(ctx context.Context) (*Result, error) {
		calls++
		return nil, &openai.APIError{HTTPStatusCode: 500, Message: "server error"}
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}
