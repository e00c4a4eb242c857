package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sandevgo/verve/internal/config"
	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/internal/metrics"
	"github.com/sandevgo/verve/internal/page/bridge"
	"github.com/sandevgo/verve/internal/page/cdp"
	"github.com/sandevgo/verve/internal/page/sandbox"
	"github.com/sandevgo/verve/internal/relay"
	"github.com/sandevgo/verve/internal/service/archive"
	"github.com/sandevgo/verve/internal/service/command"
	"github.com/sandevgo/verve/internal/service/session"
	"github.com/sandevgo/verve/internal/storage/sqlite"
	"github.com/sandevgo/verve/internal/transport/httpapi"
	"github.com/sandevgo/verve/internal/transport/telegram"
	"github.com/sandevgo/verve/pkg/clock"
	"github.com/sandevgo/verve/pkg/log"
	"github.com/sandevgo/verve/pkg/srv"
)

// pageHost is a page backend the process owns and must close.
type pageHost interface {
	core.Host
	Close() error
}

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	err := initEnv(ctx, config.GetRuntimePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	httpCfg := config.NewHTTPConfig(ctx)
	relayCfg := config.NewRelayConfig(ctx)
	loc := appCfg.Location(ctx)

	// 2. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.MustNewMetrics(registry)

	// 3. Relay
	backend, err := initRelay(ctx, relayCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize relay")
	}
	services = append(services, srv.NewCleanup(backend.Close))

	// 4. Archive
	if appCfg.EnableArchive {
		db, err := initStorage(ctx, appCfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize storage")
		}
		services = append(services, srv.NewCleanup(db.Close))

		sub := mustSubscriber(ctx, backend, "verve-archive")
		services = append(services, archive.NewService(sub, sqlite.NewArchiveRepo(db), m))
	}

	// 5. Page
	host, routes, err := initHost(ctx, appCfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", appCfg.PageBackend).Msg("failed to attach page")
	}
	services = append(services, srv.NewCleanup(host.Close))

	// 6. Session and commands
	sess := session.New(host, relay.NewPublisher(backend.Publisher, relay.TopicEvents, m), clock.Real(), m, session.Config{
		PollInterval:    appCfg.PollInterval,
		DispatchTimeout: appCfg.DispatchTimeout,
		IdentityTTL:     appCfg.IdentityTTL,
		MemoryCapacity:  appCfg.MemoryCapacity,
		Location:        loc,
	})
	router := command.New(command.NewCommands(sess))

	commandSub := mustSubscriber(ctx, backend, "verve-commands")
	services = append(services, relay.NewCommandService(commandSub, backend.Publisher, router))

	// 7. Transports
	if appCfg.EnableTelegram {
		tgCfg := config.NewTelegramConfig(ctx)
		bot, err := telegram.NewBot(ctx, tgCfg, mustSubscriber(ctx, backend, "verve-telegram"), router, telegram.NewFormatter(loc))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize telegram bot")
		}
		services = append(services, bot)
	}

	feed := httpapi.NewFeed(mustSubscriber(ctx, backend, "verve-feed"))
	services = append(services, feed)

	// Session goes after its sinks so it stops, and flushes, first.
	services = append(services, sess)

	server := httpapi.New(ctx, httpapi.Config{
		Addr:        httpCfg.Addr,
		CORSOrigins: httpCfg.CORSOrigins,
		Debug:       debug || config.IsDebug(),
	}, router, registry, feed, routes...)
	services = append(services, server)

	return services
}

func initStorage(ctx context.Context, cfg *config.AppConfig) (*sql.DB, error) {
	if err := os.MkdirAll(cfg.GetRuntimePath(), 0o755); err != nil {
		return nil, fmt.Errorf("create runtime dir: %w", err)
	}
	return sqlite.NewDB(ctx, cfg.GetDatabasePath())
}

func initRelay(ctx context.Context, cfg *config.RelayConfig) (*relay.Backend, error) {
	if cfg.RedisAddr == "" {
		return relay.NewGoChannel(ctx), nil
	}
	return relay.NewRedisStream(ctx, relay.RedisConfig{
		Addr:     cfg.RedisAddr,
		Group:    cfg.Group,
		Consumer: cfg.Consumer,
	})
}

func mustSubscriber(ctx context.Context, backend *relay.Backend, group string) message.Subscriber {
	sub, err := backend.SubscriberFor(group)
	if err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Str("group", group).Msg("failed to create subscriber")
	}
	return sub
}

func initHost(ctx context.Context, cfg *config.AppConfig) (pageHost, []httpapi.Route, error) {
	switch cfg.PageBackend {
	case config.BackendBridge:
		bridgeCfg := config.NewBridgeConfig(ctx)
		b := bridge.New(bridge.Config{Token: bridgeCfg.Token, Timeout: bridgeCfg.Timeout})
		return b, []httpapi.Route{{Path: "/ws", Handler: b}}, nil

	case config.BackendCDP:
		cdpCfg := config.NewCDPConfig(ctx)
		h, err := cdp.Attach(ctx, cdp.Config{URL: cdpCfg.URL, Match: cdpCfg.Match, Timeout: cdpCfg.Timeout})
		if err != nil {
			return nil, nil, err
		}
		return h, nil, nil

	case config.BackendSandbox:
		h, err := loadSandbox(cfg.SandboxFile, cfg.SandboxConversations)
		if err != nil {
			return nil, nil, err
		}
		return h, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown page backend %q", cfg.PageBackend)
}

func loadSandbox(file string, conversations []string) (*sandbox.Host, error) {
	if file == "" {
		return nil, fmt.Errorf("sandbox backend needs a saved page")
	}
	html, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read saved page: %w", err)
	}

	pages := make([]string, 0, len(conversations))
	for _, path := range conversations {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read conversation: %w", err)
		}
		pages = append(pages, string(raw))
	}

	return sandbox.New("file://"+filepath.ToSlash(file), string(html), sandbox.WithConversations(pages...))
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
