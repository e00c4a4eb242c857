package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/verve/pkg/log"
)

type BridgeConfig struct {
	Token   string        `env:"BRIDGE_TOKEN"`
	Timeout time.Duration `env:"BRIDGE_TIMEOUT" envDefault:"15s"`
}

func NewBridgeConfig(ctx context.Context) *BridgeConfig {
	c := &BridgeConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Bridge config")
	}
	return c
}

type CDPConfig struct {
	URL     string        `env:"CDP_URL" envDefault:"http://127.0.0.1:9222"`
	Match   string        `env:"CDP_TAB_MATCH" envDefault:"dzim-main-pc"`
	Timeout time.Duration `env:"CDP_TIMEOUT" envDefault:"10s"`
}

func NewCDPConfig(ctx context.Context) *CDPConfig {
	c := &CDPConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse CDP config")
	}
	return c
}
