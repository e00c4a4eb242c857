// Package retry repeats an operation with jittered exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sandevgo/verve/pkg/log"
)

type Operation = backoff.Operation

type Config struct {
	MaxRetries          uint64
	Multiplier          float64
	InitialDelay        time.Duration
	MaxDelay            time.Duration
	RandomizationFactor float64
}

func NewDefaultConfig() *Config {
	return &Config{
		MaxRetries:          5,
		Multiplier:          2,
		InitialDelay:        250 * time.Millisecond,
		MaxDelay:            10 * time.Second,
		RandomizationFactor: 0.2,
	}
}

// Permanent marks err as not worth another attempt. Do returns the wrapped
// error unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

type Retrier struct {
	config *Config
}

func NewRetrier(config *Config) *Retrier {
	return &Retrier{config: config}
}

func NewDefaultRetrier() *Retrier {
	return NewRetrier(NewDefaultConfig())
}

// Do runs op until it succeeds, fails permanently, runs out of retries or ctx
// ends. In the last case ctx's error is returned.
func (r *Retrier) Do(ctx context.Context, op Operation) error {
	logger := log.FromCtx(ctx)
	attempt := 0

	b := backoff.WithContext(backoff.WithMaxRetries(r.backOff(), r.config.MaxRetries), ctx)
	return backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		attempt++
		logger.Debug().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("retrying")
	})
}

func (r *Retrier) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.InitialDelay
	b.Multiplier = r.config.Multiplier
	b.MaxInterval = r.config.MaxDelay
	b.RandomizationFactor = r.config.RandomizationFactor
	// The retry count bounds the attempts, not the elapsed time.
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
