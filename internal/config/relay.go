package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/verve/pkg/log"
)

// RelayConfig selects Redis Streams when RedisAddr is set; otherwise events
// stay in process.
type RelayConfig struct {
	RedisAddr string `env:"REDIS_ADDR"`
	Group     string `env:"REDIS_GROUP" envDefault:"verve"`
	Consumer  string `env:"REDIS_CONSUMER" envDefault:"verve-1"`
}

func NewRelayConfig(ctx context.Context) *RelayConfig {
	c := &RelayConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Relay config")
	}
	return c
}
