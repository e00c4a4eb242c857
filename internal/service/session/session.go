// Package session owns one extraction session: the memory buffer, the dedup
// set and the drivers working on them, all serialized through one loop.
package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/internal/metrics"
	"github.com/sandevgo/verve/internal/service/cycle"
	"github.com/sandevgo/verve/internal/service/dispatch"
	"github.com/sandevgo/verve/internal/service/extract"
	"github.com/sandevgo/verve/internal/service/identity"
	"github.com/sandevgo/verve/internal/service/memory"
	"github.com/sandevgo/verve/internal/timestamp"
	"github.com/sandevgo/verve/pkg/clock"
	"github.com/sandevgo/verve/pkg/log"
	"github.com/sandevgo/verve/pkg/loop"
)

type Config struct {
	PollInterval    time.Duration
	DispatchTimeout time.Duration
	IdentityTTL     time.Duration
	MemoryCapacity  int
	Location        *time.Location
}

type Session struct {
	loop  *loop.Loop
	host  core.Host
	relay core.Relay
	clock clock.Clock

	memory     *memory.Manager
	resolver   *identity.Resolver
	engine     *extract.Engine
	driver     *extract.Driver
	cycle      *cycle.Controller
	dispatcher *dispatch.Dispatcher
	sender     *dispatch.Sender

	// base outlives the callers. Timers and page subscriptions run on it.
	base   context.Context
	cancel context.CancelFunc

	unsubscribe func()
}

func New(host core.Host, relay core.Relay, c clock.Clock, m *metrics.Metrics, cfg Config) *Session {
	if c == nil {
		c = clock.Real()
	}
	l := loop.New(c)

	mem := memory.NewManager(relay, c, cfg.MemoryCapacity)
	resolver := identity.NewResolver(c, cfg.IdentityTTL)
	engine := extract.NewEngine(mem, timestamp.NewParser(c, cfg.Location), c, m)
	dispatcher := dispatch.New(host, c, cfg.DispatchTimeout, m)

	s := &Session{
		loop:       l,
		host:       host,
		relay:      relay,
		clock:      c,
		memory:     mem,
		resolver:   resolver,
		engine:     engine,
		driver:     extract.NewDriver(l, host, engine, mem, resolver, relay, m, cfg.PollInterval),
		cycle:      cycle.NewController(l, host, resolver, mem, engine, relay, m),
		dispatcher: dispatcher,
	}
	s.base, s.cancel = context.WithCancel(context.Background())
	s.sender = dispatch.NewSender(dispatcher, s.recordSent, c)
	return s
}

// Start takes the logger of ctx for the session and arms the page lifecycle
// flush. The session context ends on Shutdown, not with ctx.
func (s *Session) Start(ctx context.Context) error {
	s.loop.Do(func() {
		s.cancel()
		s.base, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	})

	base := s.base
	s.unsubscribe = s.host.Subscribe(func(ev core.PageEvent) {
		s.loop.Do(func() {
			s.memory.HandlePageEvent(base, ev)
		})
	})
	log.FromCtx(ctx).Info().Msg("session attached to page")
	return nil
}

// Shutdown stops both drivers and flushes what memory holds.
func (s *Session) Shutdown(ctx context.Context) error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.loop.Do(func() {
		s.cycle.Stop(ctx)
		s.driver.Stop(ctx)
		s.memory.FlushIfHeld(ctx)
		s.cancel()
	})
	return nil
}

// detach moves the caller's logger onto the session context.
func (s *Session) detach(ctx context.Context) context.Context {
	logger := log.FromCtx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		return s.base
	}
	return logger.WithContext(s.base)
}

func (s *Session) StartExtraction(ctx context.Context) {
	s.loop.Do(func() {
		s.driver.Start(s.detach(ctx))
	})
}

func (s *Session) StopExtraction(ctx context.Context) {
	s.loop.Do(func() {
		s.driver.Stop(ctx)
	})
}

func (s *Session) StartCycle(ctx context.Context, count int, interval time.Duration) bool {
	var started bool
	s.loop.Do(func() {
		started = s.cycle.Start(s.detach(ctx), count, interval)
	})
	return started
}

func (s *Session) StopCycle(ctx context.Context) {
	s.loop.Do(func() {
		s.cycle.Stop(ctx)
	})
}

// ShopName reads the shop label from the page as it is now.
func (s *Session) ShopName(ctx context.Context) string {
	var name string
	s.loop.Do(func() {
		name = s.resolver.ShopName(extract.Snapshot(ctx, s.host))
	})
	return name
}

type Status struct {
	Extracting    bool              `json:"extracting"`
	Mode          extract.Mode      `json:"mode"`
	Cycle         core.CycleState   `json:"cycle"`
	Contact       *core.ContactInfo `json:"contact,omitempty"`
	ShopName      string            `json:"shopName"`
	MemoryEntries int               `json:"memoryEntries"`
	SeenKeys      int               `json:"seenKeys"`
	Dispatching   bool              `json:"dispatching"`
}

func (s *Session) Status() Status {
	var st Status
	s.loop.Do(func() {
		st = Status{
			Extracting:    s.driver.Enabled(),
			Mode:          s.driver.Mode(),
			Cycle:         s.cycle.State(),
			ShopName:      s.memory.ShopName(),
			MemoryEntries: len(s.memory.Snapshot()),
			SeenKeys:      s.engine.Seen(),
		}
		if info, ok := s.memory.Current(); ok {
			st.Contact = &info
		}
	})
	st.Dispatching = s.dispatcher.InFlight()
	return st
}

// The send methods wait for the helper outside of the loop.

func (s *Session) TestSend(ctx context.Context) (dispatch.Result, error) {
	return s.sender.TestSend(ctx)
}

func (s *Session) SendAIReply(ctx context.Context, text string) (dispatch.Result, error) {
	return s.sender.SendAIReply(ctx, text)
}

func (s *Session) SendCustom(ctx context.Context, text string) (dispatch.Result, error) {
	return s.sender.SendCustom(ctx, text, true)
}

func (s *Session) SendTemplate(ctx context.Context, name, text string) (dispatch.Result, error) {
	return s.sender.SendTemplate(ctx, name, text)
}

func (s *Session) SendBatch(ctx context.Context, messages []string, delay time.Duration) []dispatch.BatchResult {
	return s.sender.SendBatch(ctx, messages, delay)
}

func (s *Session) recordSent(ctx context.Context, prefix, text string) {
	s.loop.Do(func() {
		now := s.clock.Now()
		ci := s.memory.Context()
		s.memory.Record(ctx, core.ChatMessage{
			ID:              core.NewID(prefix, now),
			Type:            core.KindChatMessage,
			MessageType:     core.MessageShop,
			Content:         "[商家] " + text,
			OriginalContent: text,
			Timestamp:       now,
			TimestampSource: core.TimestampFallback,
			ChatID:          ci.ChatID,
			ContactName:     ci.CombinedName,
		}, false)
	})
}

// Memory exposes the buffer for inspection.
func (s *Session) Memory() []core.MemoryEntry {
	var out []core.MemoryEntry
	s.loop.Do(func() {
		out = s.memory.Snapshot()
	})
	return out
}
