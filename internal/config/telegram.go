package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/verve/pkg/log"
)

// TelegramConfig drives the owner bot. Click errors ring by default, customer
// messages arrive silently.
type TelegramConfig struct {
	Token       string        `env:"TELEGRAM_TOKEN,required,notEmpty"`
	OwnerID     int64         `env:"TELEGRAM_OWNER_ID,required"`
	PollTimeout time.Duration `env:"TELEGRAM_POLL_TIMEOUT" envDefault:"10s"`

	AudibleErrors    bool `env:"TELEGRAM_AUDIBLE_ERRORS" envDefault:"true"`
	SilentMessages   bool `env:"TELEGRAM_SILENT_MESSAGES" envDefault:"true"`
	CustomerMessages bool `env:"TELEGRAM_CUSTOMER_MESSAGES" envDefault:"true"`
}

func NewTelegramConfig(ctx context.Context) *TelegramConfig {
	c := &TelegramConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Telegram config")
	}
	if c.PollTimeout <= 0 {
		log.FromCtx(ctx).Warn().Dur("poll_timeout", c.PollTimeout).Msg("non-positive telegram poll timeout, using 10s")
		c.PollTimeout = 10 * time.Second
	}
	return c
}
