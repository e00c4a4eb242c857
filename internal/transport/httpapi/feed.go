package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/internal/relay"
	"github.com/sandevgo/verve/pkg/log"
)

const (
	feedBuffer   = 64
	writeTimeout = 10 * time.Second
)

type feedClient struct {
	conn *websocket.Conn
	out  chan core.Envelope
}

// Feed streams every collaborator event to connected websocket clients.
// Slow clients lose events rather than hold up the others.
type Feed struct {
	sub      message.Subscriber
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*feedClient]struct{}
	closed  bool
}

func NewFeed(sub message.Subscriber) *Feed {
	return &Feed{
		sub: sub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*feedClient]struct{}),
	}
}

// Start forwards events from the events topic until ctx is done.
func (f *Feed) Start(ctx context.Context) error {
	return relay.Consume(ctx, f.sub, relay.TopicEvents, func(_ context.Context, env core.Envelope) error {
		f.Broadcast(env)
		return nil
	})
}

func (f *Feed) Shutdown(context.Context) error {
	f.Close()
	return nil
}

func (f *Feed) Broadcast(env core.Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		select {
		case c.out <- env:
		default:
		}
	}
}

func (f *Feed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for c := range f.clients {
		close(c.out)
		delete(f.clients, c)
	}
}

func (f *Feed) Handle(c *gin.Context) {
	conn, err := f.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.FromCtx(c.Request.Context()).Debug().Err(err).Msg("event feed upgrade failed")
		return
	}

	client := &feedClient{conn: conn, out: make(chan core.Envelope, feedBuffer)}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		_ = conn.Close()
		return
	}
	f.clients[client] = struct{}{}
	f.mu.Unlock()

	go f.readUntilClosed(client)
	f.write(client)
}

func (f *Feed) write(c *feedClient) {
	defer c.conn.Close()
	for env := range c.out {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(env); err != nil {
			f.drop(c)
			return
		}
	}
}

// readUntilClosed drains control frames and notices the peer going away.
func (f *Feed) readUntilClosed(c *feedClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			f.drop(c)
			return
		}
	}
}

func (f *Feed) drop(c *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		close(c.out)
	}
}
