package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(maxRetries uint64) *Config {
	return &Config{
		MaxRetries:   maxRetries,
		Multiplier:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
	}
}

func TestRetrier_Do(t *testing.T) {
	errRefused := errors.New("connection refused")

	tests := []struct {
		name      string
		failures  int
		permanent bool
		retries   uint64
		wantCalls int
		wantErr   error
	}{
		{name: "first_try", failures: 0, retries: 3, wantCalls: 1},
		{name: "after_retries", failures: 2, retries: 3, wantCalls: 3},
		{name: "exhausted", failures: 10, retries: 3, wantCalls: 4, wantErr: errRefused},
		{name: "no_retries", failures: 10, retries: 0, wantCalls: 1, wantErr: errRefused},
		{name: "permanent", failures: 10, permanent: true, retries: 3, wantCalls: 1, wantErr: errRefused},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := NewRetrier(fastConfig(tt.retries)).Do(context.Background(), func() error {
				calls++
				if calls > tt.failures {
					return nil
				}
				if tt.permanent {
					return Permanent(errRefused)
				}
				return errRefused
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.Same(t, tt.wantErr, err)
		})
	}
}

func TestRetrier_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(5)
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- NewRetrier(cfg).Do(ctx, func() error {
			calls++
			return errors.New("busy")
		})
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("retrier ignored cancellation")
	}
}

func TestRetrier_BackoffCapped(t *testing.T) {
	b := NewRetrier(&Config{
		Multiplier:          2,
		InitialDelay:        time.Millisecond,
		MaxDelay:            10 * time.Millisecond,
		RandomizationFactor: 0.5,
	}).backOff()

	for i := 0; i < 20; i++ {
		wait := b.NextBackOff()
		assert.Positive(t, wait)
		assert.LessOrEqual(t, wait, 15*time.Millisecond)
	}
}

func TestPermanent_Unwraps(t *testing.T) {
	errGone := errors.New("tab closed")
	err := Permanent(errGone)

	assert.ErrorIs(t, err, errGone)
	assert.NotSame(t, errGone, err)
}

func TestPermanent_Nil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
