package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "event-director/pkg/errors"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestRetryWithCallback(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		var retried []int

		err := RetryWithCallback(context.Background(), fastPolicy(3), func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		}, func(attempt int, _ error, _ time.Duration) {
			retried = append(retried, attempt)
		})

		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []int{1, 2}, retried)
	})

	t.Run("stops on fatal error", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), fastPolicy(5), func() error {
			calls++
			return NewFatalError(errors.New("bad payload"))
		})

		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("typed fatal app error is not retried", func(t *testing.T) {
		calls := 0
		_ = Retry(context.Background(), fastPolicy(5), func() error {
			calls++
			return apperrors.ErrTenantRequired
		})
		assert.Equal(t, 1, calls)
	})

	t.Run("retryable app error is retried", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), fastPolicy(3), func() error {
			calls++
			return apperrors.ErrStoreUnavailable
		})
		assert.Error(t, err)
		assert.Equal(t, 3, calls)
	})
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{InitialInterval: 100 * time.Millisecond, MaxInterval: time.Second, Multiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{10, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}
