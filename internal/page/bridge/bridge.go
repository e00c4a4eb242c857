// Package bridge is the page host backed by a browser extension that dials
// in over a websocket and answers JSON-RPC calls against the open tab.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/internal/page"
	"github.com/sandevgo/verve/pkg/log"
)

const protocolVersion = 1

var ErrNotConnected = errors.New("page extension is not connected")

type Config struct {
	Token   string
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	out.Token = strings.TrimSpace(out.Token)
	if out.Timeout <= 0 {
		out.Timeout = 15 * time.Second
	}
	return out
}

type Bridge struct {
	cfg    Config
	events *page.Broadcaster

	mu        sync.RWMutex
	conn      *websocket.Conn
	lastHello helloMessage
	watched   map[string]struct{}

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan callResult
	nextID    atomic.Uint64
}

func New(cfg Config) *Bridge {
	return &Bridge{
		cfg:     cfg.withDefaults(),
		events:  page.NewBroadcaster(0),
		watched: make(map[string]struct{}),
		pending: make(map[string]chan callResult),
	}
}

func (b *Bridge) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.conn != nil
}

func (b *Bridge) LastHello() (client string, version int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return strings.TrimSpace(b.lastHello.Client), b.lastHello.Version
}

func (b *Bridge) WaitForConnected(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = b.cfg.Timeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if b.Connected() {
			return nil
		}
		select {
		case <-waitCtx.Done():
			return waitCtx.Err()
		case <-ticker.C:
		}
	}
}

// Close drops the extension connection and stops event delivery.
func (b *Bridge) Close() error {
	b.mu.Lock()
	conn := b.conn
	b.conn = nil
	b.lastHello = helloMessage{}
	b.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	b.failAllPending(ErrNotConnected)
	b.events.Close()
	return nil
}

func (b *Bridge) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	method = strings.TrimSpace(method)
	if method == "" {
		return nil, errors.New("method is required")
	}

	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	id := strconv.FormatUint(b.nextID.Add(1), 10)
	ch := make(chan callResult, 1)

	b.pendingMu.Lock()
	b.pending[id] = ch
	b.pendingMu.Unlock()

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}
	if err := b.writeJSON(conn, req); err != nil {
		b.forget(id)
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	select {
	case <-callCtx.Done():
		b.forget(id)
		return nil, fmt.Errorf("%s: %w", method, callCtx.Err())
	case res := <-ch:
		return res.Result, res.Err
	}
}

func (b *Bridge) forget(id string) {
	b.pendingMu.Lock()
	delete(b.pending, id)
	b.pendingMu.Unlock()
}

// ServeHTTP accepts the extension's websocket.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	if err := b.accept(conn); err != nil {
		log.FromCtx(r.Context()).Warn().Err(err).Msg("page extension handshake failed")
		_ = conn.Close()
	}
}

type helloMessage struct {
	Type    string `json:"type"`
	Token   string `json:"token,omitempty"`
	Client  string `json:"client,omitempty"`
	Version int    `json:"version,omitempty"`
}

type welcomeMessage struct {
	Type    string `json:"type"`
	Version int    `json:"version"`
}

func (b *Bridge) accept(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	var hello helloMessage
	if err := json.Unmarshal(data, &hello); err != nil {
		return fmt.Errorf("parse hello: %w", err)
	}
	if strings.ToLower(strings.TrimSpace(hello.Type)) != "hello" {
		return fmt.Errorf("expected hello, got %q", hello.Type)
	}
	if b.cfg.Token != "" && hello.Token != b.cfg.Token {
		return errors.New("unauthorized")
	}

	_ = conn.SetReadDeadline(time.Time{})
	if err := b.writeJSON(conn, welcomeMessage{Type: "welcome", Version: protocolVersion}); err != nil {
		return err
	}

	b.mu.Lock()
	if b.conn != nil {
		_ = b.conn.Close()
		b.failAllPending(ErrNotConnected)
	}
	b.conn = conn
	b.lastHello = hello
	names := make([]string, 0, len(b.watched))
	for name := range b.watched {
		names = append(names, name)
	}
	b.mu.Unlock()

	go b.readLoop(conn)
	if len(names) > 0 {
		go b.relisten(names)
	}
	return nil
}

// relisten repeats the listen requests of a previous connection.
func (b *Bridge) relisten(names []string) {
	for _, name := range names {
		_, _ = b.Call(context.Background(), "page.listen", map[string]string{"name": name})
	}
}

func (b *Bridge) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		b.handleMessage(data)
	}

	b.mu.Lock()
	if b.conn == conn {
		b.conn = nil
		b.lastHello = helloMessage{}
		b.failAllPending(ErrNotConnected)
	}
	b.mu.Unlock()
	_ = conn.Close()
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type callResult struct {
	Result json.RawMessage
	Err    error
}

func (b *Bridge) handleMessage(data []byte) {
	var resp rpcResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return
	}
	if strings.TrimSpace(resp.JSONRPC) != "2.0" {
		return
	}
	if resp.Method != "" {
		b.handleNotification(resp.Method, resp.Params)
		return
	}

	id := rpcIDToString(resp.ID)
	if id == "" {
		return
	}

	var out callResult
	out.Result = resp.Result
	if resp.Error != nil {
		out.Err = fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	b.pendingMu.Lock()
	ch := b.pending[id]
	delete(b.pending, id)
	b.pendingMu.Unlock()
	if ch == nil {
		return
	}
	ch <- out
}

func (b *Bridge) handleNotification(method string, params json.RawMessage) {
	if method != "page.event" {
		return
	}
	var ev core.PageEvent
	if err := json.Unmarshal(params, &ev); err != nil {
		return
	}
	b.events.Emit(ev)
}

func (b *Bridge) failAllPending(err error) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	for id, ch := range b.pending {
		delete(b.pending, id)
		if ch == nil {
			continue
		}
		ch <- callResult{Err: err}
	}
}

func (b *Bridge) writeJSON(conn *websocket.Conn, v any) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.WriteJSON(v)
}

func rpcIDToString(id any) string {
	switch v := id.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return fmt.Sprintf("%v", v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
