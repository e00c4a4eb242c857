package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/internal/metrics"
	"github.com/sandevgo/verve/internal/relay"
	"github.com/sandevgo/verve/internal/service/archive"
	"github.com/sandevgo/verve/internal/service/session"
	"github.com/sandevgo/verve/internal/service/ui"
	"github.com/sandevgo/verve/internal/storage/sqlite"
	"github.com/sandevgo/verve/pkg/clock"
	"github.com/sandevgo/verve/pkg/log"
	"github.com/spf13/cobra"
)

var (
	replayCycle    int
	replayInterval time.Duration
	replayFor      time.Duration
	replayArchive  string
)

var replayCmd = &cobra.Command{
	Use:   "replay PAGE [CONVERSATION...]",
	Short: "Run the engine against saved chat pages",
	Long: `Loads a saved chat page into the offline sandbox and prints every event the engine relays.
With --cycle the contact list is walked, and the i-th CONVERSATION is shown after activating the i-th contact.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()
		logger := log.FromCtx(ctx)

		host, err := loadSandbox(args[0], args[1:])
		if err != nil {
			return err
		}
		defer host.Close()

		backend := relay.NewGoChannel(ctx)
		defer backend.Close()

		m := metrics.MustNewMetrics(prometheus.NewRegistry())

		if replayArchive != "" {
			db, err := sqlite.NewDB(ctx, replayArchive)
			if err != nil {
				return err
			}
			defer db.Close()
			go func() {
				_ = archive.NewService(backend.Subscriber, sqlite.NewArchiveRepo(db), m).Start(ctx)
			}()
		}

		printed := make(chan struct{})
		out := cmd.OutOrStdout()
		go func() {
			defer close(printed)
			_ = relay.Consume(ctx, backend.Subscriber, relay.TopicEvents, func(_ context.Context, env core.Envelope) error {
				_, err := fmt.Fprintln(out, ui.EventLine(string(env.Type), string(env.Payload)))
				return err
			})
		}()

		sess := session.New(host, relay.NewPublisher(backend.Publisher, relay.TopicEvents, m), clock.Real(), m, session.Config{})
		if err := sess.Start(ctx); err != nil {
			return err
		}

		if replayCycle > 0 {
			sess.StartCycle(ctx, replayCycle, replayInterval)
		} else {
			sess.StartExtraction(ctx)
		}

		select {
		case <-ctx.Done():
		case <-time.After(replayFor):
		}

		_ = sess.Shutdown(context.WithoutCancel(ctx))
		logger.Info().Int("seen", sess.Status().SeenKeys).Msg("replay finished")
		stop()
		<-printed
		return nil
	},
}

func init() {
	replayCmd.Flags().IntVar(&replayCycle, "cycle", 0, "walk this many contacts instead of polling the open conversation")
	replayCmd.Flags().DurationVar(&replayInterval, "interval", 2*time.Second, "delay between contacts")
	replayCmd.Flags().DurationVar(&replayFor, "for", 10*time.Second, "how long to run")
	replayCmd.Flags().StringVar(&replayArchive, "archive", "", "sqlite file to archive events into")
	rootCmd.AddCommand(replayCmd)
}
