// Package cycle visits chat contacts one after another, extracting the
// conversation of each before moving on. The rounds repeat until stopped.
package cycle

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/internal/dom"
	"github.com/sandevgo/verve/internal/metrics"
	"github.com/sandevgo/verve/internal/service/extract"
	"github.com/sandevgo/verve/internal/service/identity"
	"github.com/sandevgo/verve/internal/service/memory"
	"github.com/sandevgo/verve/pkg/clock"
	"github.com/sandevgo/verve/pkg/log"
	"github.com/sandevgo/verve/pkg/loop"
)

const (
	ContactSelector = ".chat-list-item"

	DefaultCount    = 2
	DefaultInterval = 2 * time.Second

	maxPageWait    = 1500 * time.Millisecond
	maxExtractWait = 2500 * time.Millisecond

	// DefaultShopWait bounds how long a pass waits for the shop label of a
	// freshly opened conversation.
	DefaultShopWait = 5 * time.Second

	StatusWrapped = "重新开始循环"

	errNoContacts = "未找到联系人元素"
)

// Controller is driven from loop turns only.
type Controller struct {
	loop     *loop.Loop
	host     core.Host
	resolver *identity.Resolver
	memory   *memory.Manager
	engine   *extract.Engine
	relay    core.Relay
	metrics  *metrics.Metrics

	running     bool
	gen         int
	count       int
	interval    time.Duration
	pageWait    time.Duration
	extractWait time.Duration
	shopWait    time.Duration

	index int
	round int
	total int

	timers loop.Timers
	watch  *shopWatch
}

// shopWatch is a pending wait for the shop label.
type shopWatch struct {
	unsubscribe func()
	timer       clock.Timer
}

func NewController(
	l *loop.Loop,
	host core.Host,
	resolver *identity.Resolver,
	mem *memory.Manager,
	engine *extract.Engine,
	relay core.Relay,
	m *metrics.Metrics,
) *Controller {
	return &Controller{
		loop:     l,
		host:     host,
		resolver: resolver,
		memory:   mem,
		engine:   engine,
		relay:    relay,
		metrics:  m,
		shopWait: DefaultShopWait,
	}
}

// SetShopWait changes the shop label wait; zero extracts without waiting.
func (c *Controller) SetShopWait(d time.Duration) {
	c.shopWait = max(d, 0)
}

// SettleWaits derives the page and extraction settle waits from the cycle interval.
func SettleWaits(interval time.Duration) (page, extraction time.Duration) {
	page = min(maxPageWait, interval*6/10)
	extraction = min(maxExtractWait, interval*8/10)
	return page, extraction
}

func (c *Controller) Running() bool {
	return c.running
}

func (c *Controller) State() core.CycleState {
	return core.CycleState{
		IsRunning:      c.running,
		IndexInRound:   c.index,
		TotalPerRound:  c.count,
		Round:          c.round,
		TotalProcessed: c.total,
		Interval:       int(c.interval / time.Millisecond),
	}
}

// Start begins visiting count contacts every interval and performs the first
// activation right away. It reports false when a cycle is already running.
func (c *Controller) Start(ctx context.Context, count int, interval time.Duration) bool {
	logger := log.FromCtx(ctx)
	if c.running {
		logger.Info().Msg("contact cycle already running")
		return false
	}
	if count <= 0 {
		count = DefaultCount
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	c.running = true
	c.gen++
	c.count = count
	c.interval = interval
	c.pageWait, c.extractWait = SettleWaits(interval)
	c.index = 0
	c.round = 1
	c.total = 0
	c.metrics.CycleRunning(true)

	logger.Info().
		Int("count", count).
		Dur("interval", interval).
		Dur("page_wait", c.pageWait).
		Dur("extract_wait", c.extractWait).
		Msg("contact cycle started")

	c.progress(ctx, "")
	c.activate(ctx, c.gen)
	return true
}

// Stop cancels every pending step. Calling it while idle does nothing.
func (c *Controller) Stop(ctx context.Context) bool {
	if !c.running {
		return false
	}
	c.halt()
	log.FromCtx(ctx).Info().Int("processed", c.total).Msg("contact cycle stopped")
	return true
}

func (c *Controller) halt() {
	c.running = false
	c.gen++
	c.timers.StopAll()
	c.endWatch()
	c.metrics.CycleRunning(false)
}

func (c *Controller) after(d time.Duration, gen int, fn func()) {
	var t clock.Timer
	t = c.loop.After(d, func() {
		c.timers.Done(t)
		if !c.running || c.gen != gen {
			return
		}
		fn()
	})
	c.timers.Add(t)
}

func (c *Controller) activate(ctx context.Context, gen int) {
	if !c.running || c.gen != gen {
		return
	}
	logger := log.FromCtx(ctx)

	if c.index >= c.count {
		c.index = 0
		c.round++
		c.metrics.Round()
		logger.Info().Int("round", c.round).Msg("contact cycle wrapped")
		c.progress(ctx, StatusWrapped)
	}

	snap, err := c.host.Snapshot(ctx)
	if err != nil {
		c.fail(ctx, "click", "点击错误: "+err.Error())
		return
	}
	doc, err := dom.FromSnapshot(snap)
	if err != nil {
		c.fail(ctx, "click", "点击错误: "+err.Error())
		return
	}

	contacts := doc.FindAll(ContactSelector)
	if len(contacts) == 0 {
		c.fail(ctx, "no_contacts", errNoContacts)
		return
	}
	if c.index >= len(contacts) {
		c.fail(ctx, "missing_contact", fmt.Sprintf("联系人 %d 不存在", c.index+1))
		return
	}

	info := c.resolver.ForElement(ctx, contacts[c.index])
	logger.Info().
		Int("position", c.index+1).
		Str("contact", info.Name).
		Str("chat_id", info.ChatID).
		Msg("activating contact")

	// The previous contact is flushed before anything is recorded for this one.
	c.memory.SwitchTo(ctx, info)

	if err := c.host.Activate(ctx, core.Target{Selector: ContactSelector, Index: c.index}); err != nil {
		c.fail(ctx, "click", "点击错误: "+err.Error())
		return
	}

	c.index++
	c.total++
	c.metrics.Activation()
	c.progress(ctx, "正在处理联系人: "+info.Name)

	c.after(c.pageWait, gen, func() {
		c.extract(ctx, gen, info)
	})
}

// extract runs once the page settled. When the opened conversation shows no
// shop label yet, it waits for one first.
func (c *Controller) extract(ctx context.Context, gen int, info core.ContactInfo) {
	doc := extract.Snapshot(ctx, c.host)
	if doc != nil && c.shopWait > 0 && c.resolver.ShopName(doc) == "" {
		c.awaitShop(ctx, gen, info)
		return
	}
	c.collect(ctx, gen, info, doc)
}

// awaitShop re-reads the page on every mutation until the shop label shows
// up or shopWait passes. Either way the pass then runs on the latest page.
func (c *Controller) awaitShop(ctx context.Context, gen int, info core.ContactInfo) {
	w := &shopWatch{}
	c.watch = w

	w.timer = c.loop.After(c.shopWait, func() {
		if c.watch != w || !c.running || c.gen != gen {
			return
		}
		c.endWatch()
		log.FromCtx(ctx).Warn().Str("contact", info.Name).Dur("waited", c.shopWait).Msg("shop label did not appear")
		c.collect(ctx, gen, info, extract.Snapshot(ctx, c.host))
	})
	w.unsubscribe = c.host.Subscribe(func(ev core.PageEvent) {
		if ev.Kind != core.PageMutation {
			return
		}
		c.loop.Do(func() {
			if c.watch != w || !c.running || c.gen != gen {
				return
			}
			doc := extract.Snapshot(ctx, c.host)
			if doc == nil || c.resolver.ShopName(doc) == "" {
				return
			}
			c.endWatch()
			c.collect(ctx, gen, info, doc)
		})
	})
}

func (c *Controller) endWatch() {
	if c.watch == nil {
		return
	}
	c.watch.timer.Stop()
	c.watch.unsubscribe()
	c.watch = nil
}

func (c *Controller) collect(ctx context.Context, gen int, info core.ContactInfo, doc *dom.Document) {
	c.metrics.Pass(string(extract.ModeCycle))

	if doc != nil {
		// An empty label clears the one left over from the previous contact.
		info.ShopName = c.resolver.ShopName(doc)
		c.memory.UpdateShopName(ctx, info.ShopName)

		batch := c.engine.ExtractOnce(ctx, doc)
		extract.Forward(ctx, c.relay, extract.DetectPageType(doc), batch.Items(&info))
		c.metrics.MemoryEntries(len(c.memory.Snapshot()))

		if batch.Len() == 0 {
			log.FromCtx(ctx).Debug().Str("contact", c.memory.CombinedName()).Msg("no new items for contact")
		}
	}

	c.after(c.extractWait, gen, func() {
		c.after(c.interval, gen, func() {
			c.activate(ctx, gen)
		})
	})
}

func (c *Controller) progress(ctx context.Context, status string) {
	c.relay.Publish(ctx, core.EventClickProgress, core.ClickProgress{
		Current:   c.index,
		Total:     c.count,
		Round:     c.round,
		Status:    status,
		IsLooping: true,
	})
}

// fail ends the cycle and reports message once.
func (c *Controller) fail(ctx context.Context, reason, message string) {
	log.FromCtx(ctx).Error().Str("reason", reason).Msg(message)
	c.halt()
	c.metrics.CycleError(reason)
	c.relay.Publish(ctx, core.EventClickError, core.ClickError{Message: message})
}
