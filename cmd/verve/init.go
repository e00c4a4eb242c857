package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sandevgo/verve/internal/config"
	envfile "github.com/sandevgo/verve/pkg/env"
	"github.com/sandevgo/verve/pkg/log"
	"github.com/spf13/cobra"
)

var (
	initBackend string
	initForce   bool
)

var initCmd = &cobra.Command{
	Use:          "init",
	Short:        "Write a default .env into the runtime directory",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()
		logger := log.FromCtx(ctx)

		runtimePath := config.GetRuntimePath()
		envPath := filepath.Join(runtimePath, ".env")
		if _, err := os.Stat(envPath); err == nil && !initForce {
			return fmt.Errorf("%s already exists, use --force to overwrite", envPath)
		}

		// Current environment on top of the defaults.
		appCfg := &config.AppConfig{}
		httpCfg := &config.HTTPConfig{}
		bridgeCfg := &config.BridgeConfig{}
		relayCfg := &config.RelayConfig{}
		for _, c := range []any{appCfg, httpCfg, bridgeCfg, relayCfg} {
			if err := env.Parse(c); err != nil {
				return fmt.Errorf("read environment: %w", err)
			}
		}
		if initBackend != "" {
			appCfg.PageBackend = initBackend
		}
		appCfg.RuntimePath = ""

		content, err := envfile.MarshalAll(appCfg, httpCfg, bridgeCfg, relayCfg)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(runtimePath, 0o755); err != nil {
			return fmt.Errorf("create runtime dir: %w", err)
		}
		if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
			return fmt.Errorf("write %s: %w", envPath, err)
		}

		if _, err := godotenv.Read(envPath); err != nil {
			logger.Warn().Err(err).Str("path", envPath).Msg("written .env does not parse")
		}

		logger.Info().Msgf("initialized runtime directory at: %s", runtimePath)
		logger.Info().Msg("You can now run 'verve start'.")
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initBackend, "backend", "", "page backend: bridge, cdp or sandbox")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing .env")
	rootCmd.AddCommand(initCmd)
}
