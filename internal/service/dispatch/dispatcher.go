// Package dispatch sends replies through a helper script injected into the
// page. One send is in flight at a time.
package dispatch

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/internal/metrics"
	"github.com/sandevgo/verve/pkg/clock"
	"github.com/sandevgo/verve/pkg/conv"
	"github.com/sandevgo/verve/pkg/log"
)

const (
	ScriptID    = "verve-injector-script"
	TaskEvent   = "verveInjectorTask"
	ResultEvent = "verveInjectorResult"
	ActionSend  = "testAndSend"

	StatusSuccess = "success"
	StatusFailure = "failure"

	DefaultTimeout = 30 * time.Second
)

//go:embed injector.js
var InjectorScript string

var (
	// ErrHelperLoad means the helper never ran.
	ErrHelperLoad = errors.New("helper script failed to load")
	// ErrFailed means the helper ran and reported failure.
	ErrFailed     = errors.New("helper script reported failure")
	ErrTimeout    = errors.New("helper script did not answer in time")
	ErrSuperseded = errors.New("dispatch superseded by a newer send")
	ErrEmptyText  = errors.New("nothing to send")
)

type Task struct {
	Action        string `json:"action"`
	Text          string `json:"text"`
	CorrelationID string `json:"correlationId"`
}

type Result struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

type call struct {
	id   string
	done chan outcome
}

type outcome struct {
	result Result
	err    error
}

func (c *call) settle(o outcome) {
	select {
	case c.done <- o:
	default:
	}
}

type Dispatcher struct {
	host    core.Host
	clock   clock.Clock
	timeout time.Duration
	script  string
	metrics *metrics.Metrics

	mu       sync.Mutex
	inflight *call
}

func New(host core.Host, c clock.Clock, timeout time.Duration, m *metrics.Metrics) *Dispatcher {
	if c == nil {
		c = clock.Real()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		host:    host,
		clock:   c,
		timeout: timeout,
		script:  InjectorScript,
		metrics: m,
	}
}

// Send delivers text through the helper and waits for its answer, the timeout
// or ctx. A send started while another is waiting supersedes it.
func (d *Dispatcher) Send(ctx context.Context, text string) (Result, error) {
	logger := log.FromCtx(ctx)

	text = conv.PlainText(text)
	if text == "" {
		return Result{Status: StatusFailure, Message: ErrEmptyText.Error()}, ErrEmptyText
	}

	c := &call{id: uuid.NewString(), done: make(chan outcome, 1)}
	d.mu.Lock()
	if prev := d.inflight; prev != nil {
		prev.settle(outcome{err: ErrSuperseded})
	}
	d.inflight = c
	d.mu.Unlock()

	// Any earlier helper artifact goes before the new one is created.
	if err := d.host.RemoveScript(ctx, ScriptID); err != nil {
		logger.Debug().Err(err).Msg("failed to remove previous helper")
	}

	unsubscribe := d.host.Subscribe(func(ev core.PageEvent) {
		if ev.Kind != core.PageCustom || ev.Name != ResultEvent {
			return
		}
		var res Result
		if err := json.Unmarshal(ev.Detail, &res); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Msg("unreadable helper result")
			return
		}
		if res.CorrelationID != "" && res.CorrelationID != c.id {
			return
		}
		c.settle(outcome{result: res})
	})
	timer := d.clock.AfterFunc(d.timeout, func() {
		c.settle(outcome{err: ErrTimeout})
	})
	defer func() {
		timer.Stop()
		unsubscribe()
		d.release(ctx, c)
	}()

	// Once a newer send owns the slot this one stops touching the page.
	if !d.owns(c) {
		return d.finish(ctx, c, outcome{err: ErrSuperseded})
	}
	if err := d.host.Listen(ctx, ResultEvent); err != nil {
		return d.finish(ctx, c, outcome{err: fmt.Errorf("%w: listen: %v", ErrHelperLoad, err)})
	}
	if !d.owns(c) {
		return d.finish(ctx, c, outcome{err: ErrSuperseded})
	}
	if err := d.host.InjectScript(ctx, ScriptID, d.script); err != nil {
		return d.finish(ctx, c, outcome{err: fmt.Errorf("%w: %v", ErrHelperLoad, err)})
	}

	// The task only goes out while this send holds the slot.
	task := Task{Action: ActionSend, Text: text, CorrelationID: c.id}
	d.mu.Lock()
	if d.inflight != c {
		d.mu.Unlock()
		return d.finish(ctx, c, outcome{err: ErrSuperseded})
	}
	err := d.host.DispatchEvent(ctx, TaskEvent, task)
	d.mu.Unlock()
	if err != nil {
		return d.finish(ctx, c, outcome{err: fmt.Errorf("%w: deliver task: %v", ErrHelperLoad, err)})
	}
	logger.Debug().Str("correlation_id", c.id).Int("len", len(text)).Msg("task delivered to helper")

	select {
	case o := <-c.done:
		return d.finish(ctx, c, o)
	case <-ctx.Done():
		return d.finish(ctx, c, outcome{err: ctx.Err()})
	}
}

func (d *Dispatcher) finish(ctx context.Context, c *call, o outcome) (Result, error) {
	logger := log.FromCtx(ctx).With().Str("correlation_id", c.id).Logger()

	switch {
	case o.err != nil:
		logger.Warn().Err(o.err).Msg("dispatch failed")
		d.metrics.Dispatch(outcomeLabel(o.err))
		return Result{Status: StatusFailure, Message: o.err.Error()}, o.err
	case o.result.Status == StatusSuccess:
		logger.Info().Msg("reply dispatched")
		d.metrics.Dispatch("success")
		return Result{Status: StatusSuccess, Message: o.result.Message}, nil
	default:
		msg := o.result.Message
		if msg == "" {
			msg = "Injected script failed."
		}
		logger.Warn().Str("message", msg).Msg("helper reported failure")
		d.metrics.Dispatch("failure")
		return Result{Status: StatusFailure, Message: msg}, fmt.Errorf("%w: %s", ErrFailed, msg)
	}
}

// release frees the slot and the helper artifact unless a newer send owns them.
func (d *Dispatcher) release(ctx context.Context, c *call) {
	d.mu.Lock()
	owner := d.inflight == c
	if owner {
		d.inflight = nil
	}
	d.mu.Unlock()

	if !owner {
		return
	}
	if err := d.host.RemoveScript(context.WithoutCancel(ctx), ScriptID); err != nil {
		log.FromCtx(ctx).Debug().Err(err).Msg("failed to remove helper")
	}
}

func (d *Dispatcher) owns(c *call) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inflight == c
}

// InFlight reports whether a send is waiting for its answer.
func (d *Dispatcher) InFlight() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inflight != nil
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrHelperLoad):
		return "load_error"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrSuperseded):
		return "superseded"
	default:
		return "error"
	}
}
