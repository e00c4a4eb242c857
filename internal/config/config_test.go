package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppConfig_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("VERVE_RUNTIME_PATH", "")

	c := NewAppConfig(context.Background())
	assert.Equal(t, BackendBridge, c.PageBackend)
	assert.True(t, c.EnableArchive)
	assert.False(t, c.EnableTelegram)
	assert.Equal(t, 2*time.Second, c.PollInterval)
	assert.Equal(t, 30*time.Second, c.DispatchTimeout)
	assert.Equal(t, 20, c.MemoryCapacity)

	assert.Equal(t, filepath.Join(home, ".verve"), c.GetRuntimePath())
	assert.Equal(t, filepath.Join(home, ".verve", "verve.db"), c.GetDatabasePath())
	assert.Equal(t, GetRuntimePath(), c.GetRuntimePath())
}

func TestNewAppConfig_Overrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("VERVE_RUNTIME_PATH", dir)
	t.Setenv("PAGE_BACKEND", BackendSandbox)
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("SANDBOX_CONVERSATIONS", "a.html,b.html")

	c := NewAppConfig(context.Background())
	assert.Equal(t, BackendSandbox, c.PageBackend)
	assert.Equal(t, 500*time.Millisecond, c.PollInterval)
	assert.Equal(t, []string{"a.html", "b.html"}, c.SandboxConversations)
	assert.Equal(t, dir, c.GetRuntimePath())
	assert.Equal(t, filepath.Join(dir, ".env"), GetEnvPath())
}

func TestAppConfig_Location(t *testing.T) {
	ctx := context.Background()

	loc := AppConfig{Timezone: "Asia/Shanghai"}.Location(ctx)
	require.NotNil(t, loc)
	assert.Equal(t, "Asia/Shanghai", loc.String())

	assert.Equal(t, time.Local, AppConfig{Timezone: "Mars/Olympus"}.Location(ctx))
}

func TestNewRelayConfig(t *testing.T) {
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")

	c := NewRelayConfig(context.Background())
	assert.Equal(t, "127.0.0.1:6379", c.RedisAddr)
	assert.Equal(t, "verve", c.Group)
	assert.Equal(t, "verve-1", c.Consumer)
}

func TestNewTelegramConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want TelegramConfig
	}{
		{
			name: "defaults",
			want: TelegramConfig{Token: "tok", OwnerID: 42, PollTimeout: 10 * time.Second, AudibleErrors: true, SilentMessages: true, CustomerMessages: true},
		},
		{
			name: "overrides",
			env: map[string]string{
				"TELEGRAM_POLL_TIMEOUT":      "30s",
				"TELEGRAM_AUDIBLE_ERRORS":    "false",
				"TELEGRAM_SILENT_MESSAGES":   "false",
				"TELEGRAM_CUSTOMER_MESSAGES": "false",
			},
			want: TelegramConfig{Token: "tok", OwnerID: 42, PollTimeout: 30 * time.Second},
		},
		{
			name: "non_positive_poll_timeout",
			env:  map[string]string{"TELEGRAM_POLL_TIMEOUT": "0s"},
			want: TelegramConfig{Token: "tok", OwnerID: 42, PollTimeout: 10 * time.Second, AudibleErrors: true, SilentMessages: true, CustomerMessages: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TELEGRAM_TOKEN", "tok")
			t.Setenv("TELEGRAM_OWNER_ID", "42")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			c := NewTelegramConfig(context.Background())
			assert.Equal(t, tt.want, *c)
		})
	}
}

func TestIsDebug(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{value: "", want: false},
		{value: "1", want: true},
		{value: "true", want: true},
		{value: "0", want: false},
		{value: "yes", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv(DebugEnv, tt.value)
			assert.Equal(t, tt.want, IsDebug())
		})
	}
}
