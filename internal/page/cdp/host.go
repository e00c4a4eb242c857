// Package cdp attaches to the chat tab of a running Chrome over the DevTools
// protocol.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/internal/page"
	"github.com/sandevgo/verve/pkg/log"
	"github.com/sandevgo/verve/pkg/retry"
)

var (
	ErrNoTab         = errors.New("no matching chat tab")
	ErrTargetMissing = errors.New("target not found")
)

type Config struct {
	// URL is the remote debugging endpoint, e.g. http://127.0.0.1:9222.
	URL     string
	Match   string
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if strings.TrimSpace(out.URL) == "" {
		out.URL = "http://127.0.0.1:9222"
	}
	if strings.TrimSpace(out.Match) == "" {
		out.Match = "dzim-main-pc"
	}
	if out.Timeout <= 0 {
		out.Timeout = 10 * time.Second
	}
	return out
}

type Host struct {
	cfg    Config
	tab    context.Context
	cancel context.CancelFunc
	events *page.Broadcaster

	mu      sync.Mutex
	watched map[string]struct{}
}

type tabInfo struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Attach finds the chat tab and installs the event binding on it.
func Attach(ctx context.Context, cfg Config) (*Host, error) {
	cfg = cfg.withDefaults()
	logger := log.FromCtx(ctx)

	var tab tabInfo
	err := retry.NewDefaultRetrier().Do(ctx, func() error {
		found, err := findTab(ctx, cfg)
		if err != nil {
			logger.Warn().Err(err).Str("url", cfg.URL).Msg("chat tab lookup failed, retrying")
			return err
		}
		tab = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), cfg.URL)
	tabCtx, _ := chromedp.NewContext(allocCtx, chromedp.WithTargetID(target.ID(tab.ID)))

	h := &Host{
		cfg:     cfg,
		tab:     tabCtx,
		cancel:  allocCancel,
		events:  page.NewBroadcaster(0),
		watched: make(map[string]struct{}),
	}

	if err := h.run(ctx,
		runtime.Enable(),
		runtime.AddBinding(bindingName),
		addScript(observerScript),
	); err != nil {
		allocCancel()
		return nil, fmt.Errorf("attach %s: %w", tab.URL, err)
	}
	chromedp.ListenTarget(tabCtx, h.onEvent)

	if err := h.eval(ctx, observerScript); err != nil {
		allocCancel()
		return nil, fmt.Errorf("install observer: %w", err)
	}

	logger.Info().Str("tab", tab.Title).Str("url", tab.URL).Msg("attached to chat tab")
	return h, nil
}

func findTab(ctx context.Context, cfg Config) (tabInfo, error) {
	endpoint, err := listURL(cfg.URL)
	if err != nil {
		return tabInfo{}, err
	}
	reqCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return tabInfo{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return tabInfo{}, fmt.Errorf("list targets: %w", err)
	}
	defer resp.Body.Close()

	var tabs []tabInfo
	if err := json.NewDecoder(resp.Body).Decode(&tabs); err != nil {
		return tabInfo{}, retry.Permanent(fmt.Errorf("decode targets: %w", err))
	}
	for _, t := range tabs {
		if t.Type == "page" && strings.Contains(t.URL, cfg.Match) {
			return t, nil
		}
	}
	return tabInfo{}, fmt.Errorf("%w: %q", ErrNoTab, cfg.Match)
}

func listURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse debugging url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = "/json/list"
	u.RawQuery = ""
	return u.String(), nil
}

func (h *Host) onEvent(ev any) {
	called, ok := ev.(*runtime.EventBindingCalled)
	if !ok || called.Name != bindingName {
		return
	}
	var pe core.PageEvent
	if err := json.Unmarshal([]byte(called.Payload), &pe); err != nil {
		return
	}
	h.events.Emit(pe)
}

// run executes actions on the tab, bounded by both ctx and the call timeout.
func (h *Host) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(h.tab, h.cfg.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func addScript(source string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := cdppage.AddScriptToEvaluateOnNewDocument(source).Do(ctx)
		return err
	})
}

func (h *Host) eval(ctx context.Context, script string) error {
	var ok bool
	if err := h.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return err
	}
	if !ok {
		return errors.New("script returned false")
	}
	return nil
}

func (h *Host) Snapshot(ctx context.Context) (core.Snapshot, error) {
	var snap core.Snapshot
	if err := h.run(ctx, chromedp.Evaluate(snapshotScript, &snap)); err != nil {
		return core.Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	return snap, nil
}

func (h *Host) Activate(ctx context.Context, t core.Target) error {
	var ok bool
	if err := h.run(ctx, chromedp.Evaluate(activateScript(t.Selector, t.Index), &ok)); err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s[%d]", ErrTargetMissing, t.Selector, t.Index)
	}
	return nil
}

func (h *Host) InjectScript(ctx context.Context, id, source string) error {
	if err := h.eval(ctx, injectScript(id, source)); err != nil {
		return fmt.Errorf("inject %s: %w", id, err)
	}
	return nil
}

func (h *Host) RemoveScript(ctx context.Context, id string) error {
	return h.eval(ctx, removeScript(id))
}

func (h *Host) DispatchEvent(ctx context.Context, name string, detail any) error {
	script, err := dispatchScript(name, detail)
	if err != nil {
		return err
	}
	return h.eval(ctx, script)
}

func (h *Host) Listen(ctx context.Context, name string) error {
	h.mu.Lock()
	_, known := h.watched[name]
	h.watched[name] = struct{}{}
	h.mu.Unlock()

	script := listenScript(name)
	if !known {
		if err := h.run(ctx, addScript(script)); err != nil {
			return fmt.Errorf("listen %s: %w", name, err)
		}
	}
	return h.eval(ctx, script)
}

func (h *Host) Subscribe(handler func(core.PageEvent)) func() {
	return h.events.Subscribe(handler)
}

// Close detaches from Chrome. The tab stays open.
func (h *Host) Close() error {
	h.cancel()
	h.events.Close()
	return nil
}
