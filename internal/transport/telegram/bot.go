package telegram

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sandevgo/verve/internal/config"
	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/internal/relay"
	"github.com/sandevgo/verve/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const baseContextKey = "base_context"

// Bot notifies the owner about the session and accepts a few commands back.
type Bot struct {
	bot      *tele.Bot
	router   core.CmdRouter
	sub      message.Subscriber
	notifier *Notifier
	format   *Formatter
	ownerID  int64
	done     chan struct{}
}

func NewBot(
	ctx context.Context,
	cfg *config.TelegramConfig,
	sub message.Subscriber,
	router core.CmdRouter,
	format *Formatter,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:      b,
		router:   router,
		sub:      sub,
		notifier: NewNotifier(b, cfg.OwnerID, format,
			WithAudibleErrors(cfg.AudibleErrors),
			WithSilentMessages(cfg.SilentMessages),
			WithCustomerMessages(cfg.CustomerMessages),
		),
		format:   format,
		ownerID:  cfg.OwnerID,
		done:     make(chan struct{}),
	}

	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	// Only the owner may drive the session.
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender() == nil || c.Sender().ID != bot.ownerID {
				return nil
			}
			return next(c)
		}
	})

	b.Handle("/status", bot.command("getStatus"))
	b.Handle("/shop", bot.command("getShopName"))
	b.Handle("/extract", bot.command("startExtraction"))
	b.Handle("/cycle", bot.handleCycle)
	b.Handle("/stop", bot.handleStop)

	return bot, nil
}

func (b *Bot) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("starting telegram bot")
	go func() {
		defer close(b.done)
		ctx := log.WithComponent(ctx, "telegram")
		if err := relay.Consume(ctx, b.sub, relay.TopicEvents, b.notifier.Handle); err != nil {
			log.FromCtx(ctx).Error().Err(err).Msg("telegram notifier stopped")
		}
	}()
	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	select {
	case <-b.done:
	case <-ctx.Done():
	}
	return nil
}

func (b *Bot) command(name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := c.Get(baseContextKey).(context.Context)
		res := b.router.Execute(ctx, core.CommandRequest{Type: name})
		return b.reply(ctx, c, name, res)
	}
}

func (b *Bot) handleCycle(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)
	req, err := cycleRequest(c.Args())
	if err != nil {
		return c.Send(err.Error())
	}
	return b.reply(ctx, c, req.Type, b.router.Execute(ctx, req))
}

// cycleRequest reads "/cycle [count] [interval ms]". Missing values are left
// to the controller defaults.
func cycleRequest(args []string) (core.CommandRequest, error) {
	req := core.CommandRequest{Type: "startClickContacts"}
	if len(args) > 2 {
		return req, fmt.Errorf("usage: /cycle [count] [interval ms]")
	}
	for i, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return req, fmt.Errorf("not a number: %q", arg)
		}
		if i == 0 {
			req.Count = n
		} else {
			req.Interval = n
		}
	}
	return req, nil
}

func (b *Bot) handleStop(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)
	b.router.Execute(ctx, core.CommandRequest{Type: "stopClickContacts"})
	res := b.router.Execute(ctx, core.CommandRequest{Type: "stopExtraction"})
	return b.reply(ctx, c, "stop", res)
}

func (b *Bot) reply(ctx context.Context, c tele.Context, name string, res core.CommandResult) error {
	return b.notifier.sender.sendMarkdown(ctx, c.Chat(), b.format.Result(name, res), false)
}
