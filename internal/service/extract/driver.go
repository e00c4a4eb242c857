package extract

import (
	"context"
	"time"

	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/internal/dom"
	"github.com/sandevgo/verve/internal/metrics"
	"github.com/sandevgo/verve/internal/service/identity"
	"github.com/sandevgo/verve/internal/service/memory"
	"github.com/sandevgo/verve/pkg/clock"
	"github.com/sandevgo/verve/pkg/log"
	"github.com/sandevgo/verve/pkg/loop"
)

const DefaultPollInterval = 2 * time.Second

type Mode string

const (
	ModeIdle     Mode = "idle"
	ModePolling  Mode = "polling"
	ModeObserver Mode = "observer"
	ModeCycle    Mode = "cycle"
)

// Driver runs standalone extraction while it is enabled: polling on the chat
// surface, change notifications elsewhere. Start and Stop must be called
// from inside a loop turn.
type Driver struct {
	loop     *loop.Loop
	host     core.Host
	engine   *Engine
	memory   *memory.Manager
	resolver *identity.Resolver
	relay    core.Relay
	metrics  *metrics.Metrics
	interval time.Duration

	enabled     bool
	mode        Mode
	gen         int
	timer       clock.Timer
	unsubscribe func()
	lastShop    string
}

func NewDriver(
	l *loop.Loop,
	host core.Host,
	engine *Engine,
	mem *memory.Manager,
	resolver *identity.Resolver,
	relay core.Relay,
	m *metrics.Metrics,
	interval time.Duration,
) *Driver {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Driver{
		loop:     l,
		host:     host,
		engine:   engine,
		memory:   mem,
		resolver: resolver,
		relay:    relay,
		metrics:  m,
		interval: interval,
		mode:     ModeIdle,
	}
}

func (d *Driver) Enabled() bool {
	return d.enabled
}

func (d *Driver) Mode() Mode {
	return d.mode
}

// Start enables extraction and picks the drive mode from the page type.
// It reports false when extraction was already enabled.
func (d *Driver) Start(ctx context.Context) bool {
	if d.enabled {
		log.FromCtx(ctx).Debug().Msg("extraction already enabled")
		return false
	}
	d.enabled = true
	d.gen++
	d.engine.Reset()
	d.lastShop = ""

	doc := d.snapshot(ctx)
	d.checkShop(ctx, doc)

	gen := d.gen
	if DetectPageType(doc) == core.PageChat {
		d.mode = ModePolling
		d.schedule(ctx, gen)
	} else {
		d.mode = ModeObserver
		d.unsubscribe = d.host.Subscribe(func(ev core.PageEvent) {
			if ev.Kind != core.PageMutation {
				return
			}
			d.loop.Do(func() {
				if d.enabled && d.gen == gen {
					d.Pass(ctx, ModeObserver)
				}
			})
		})
	}

	log.FromCtx(ctx).Info().Str("mode", string(d.mode)).Msg("extraction started")
	return true
}

// Stop tears down whichever drive mode is active.
func (d *Driver) Stop(ctx context.Context) bool {
	if !d.enabled {
		return false
	}
	d.enabled = false
	d.gen++

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.unsubscribe != nil {
		d.unsubscribe()
		d.unsubscribe = nil
	}
	d.mode = ModeIdle

	log.FromCtx(ctx).Info().Msg("extraction stopped")
	return true
}

func (d *Driver) schedule(ctx context.Context, gen int) {
	d.timer = d.loop.After(d.interval, func() {
		if !d.enabled || d.gen != gen {
			return
		}
		d.Pass(ctx, ModePolling)
		if d.enabled && d.gen == gen {
			d.schedule(ctx, gen)
		}
	})
}

// Pass runs one standalone extraction pass against the current page.
func (d *Driver) Pass(ctx context.Context, mode Mode) {
	d.metrics.Pass(string(mode))

	doc := d.snapshot(ctx)
	if doc == nil {
		return
	}

	if _, ok := d.memory.Current(); !ok {
		d.memory.SwitchTo(ctx, d.resolver.Detect(ctx, doc))
	}

	batch := d.engine.ExtractOnce(ctx, doc)
	d.checkShop(ctx, doc)
	Forward(ctx, d.relay, DetectPageType(doc), batch.Items(nil))
	d.metrics.MemoryEntries(len(d.memory.Snapshot()))
}

func (d *Driver) checkShop(ctx context.Context, doc *dom.Document) {
	shop := d.resolver.ShopName(doc)
	if shop == "" || shop == d.lastShop {
		return
	}
	d.lastShop = shop
	d.relay.Publish(ctx, core.EventShopInfo, core.ShopInfoUpdate{ShopName: shop})
}

func (d *Driver) snapshot(ctx context.Context) *dom.Document {
	return Snapshot(ctx, d.host)
}

// Snapshot reads and parses the page; failures are logged and yield nil.
func Snapshot(ctx context.Context, host core.Host) *dom.Document {
	snap, err := host.Snapshot(ctx)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("failed to read page snapshot")
		return nil
	}
	doc, err := dom.FromSnapshot(snap)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("failed to parse page snapshot")
		return nil
	}
	return doc
}

// Forward sends one batch to the collaborator; empty batches are not sent.
func Forward(ctx context.Context, relay core.Relay, pageType core.PageType, items []core.Item) {
	if len(items) == 0 {
		return
	}
	relay.Publish(ctx, core.EventExtractedData, core.ExtractedData{PageType: pageType, Data: items})
}
