package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/verve/pkg/log"
)

type HTTPConfig struct {
	Addr        string   `env:"HTTP_ADDR" envDefault:"127.0.0.1:8765"`
	CORSOrigins []string `env:"HTTP_CORS_ORIGINS" envSeparator:","`
}

func NewHTTPConfig(ctx context.Context) *HTTPConfig {
	c := &HTTPConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse HTTP config")
	}
	return c
}
