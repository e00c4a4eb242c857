package config

import (
	"context"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/verve/pkg/log"
)

const (
	BackendBridge  = "bridge"
	BackendCDP     = "cdp"
	BackendSandbox = "sandbox"
)

type AppConfig struct {
	RuntimePath string `env:"VERVE_RUNTIME_PATH" envDefault:".verve"`
	PageBackend string `env:"PAGE_BACKEND" envDefault:"bridge"`

	EnableTelegram bool `env:"ENABLE_TELEGRAM" envDefault:"false"`
	EnableArchive  bool `env:"ENABLE_ARCHIVE" envDefault:"true"`

	PollInterval    time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`
	DispatchTimeout time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"30s"`
	IdentityTTL     time.Duration `env:"IDENTITY_TTL" envDefault:"30m"`
	MemoryCapacity  int           `env:"MEMORY_CAPACITY" envDefault:"20"`
	Timezone        string        `env:"TIMEZONE" envDefault:"Asia/Shanghai"`

	// Saved pages for the sandbox backend.
	SandboxFile          string   `env:"SANDBOX_FILE"`
	SandboxConversations []string `env:"SANDBOX_CONVERSATIONS" envSeparator:","`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

// Location resolves Timezone, falling back to the local zone.
func (c AppConfig) Location(ctx context.Context) *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("timezone", c.Timezone).Msg("unknown timezone, using local")
		return time.Local
	}
	return loc
}

func (c AppConfig) GetRuntimePath() string {
	return resolveRuntimePath(c.RuntimePath)
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.GetRuntimePath(), "verve.db")
}
