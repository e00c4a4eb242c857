package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/sandevgo/verve/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChannel(t *testing.T) *gochannel.GoChannel {
	t.Helper()
	ch := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

func receive(t *testing.T, messages <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-messages:
		msg.Ack()
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestPublisher_Envelope(t *testing.T) {
	ch := newChannel(t)
	p := NewPublisher(ch, "", nil)

	p.Publish(context.Background(), core.EventClickProgress, core.ClickProgress{Current: 1, Total: 3, Round: 2, Status: "正在处理联系人: 客户1"})

	messages, err := ch.Subscribe(context.Background(), TopicEvents)
	require.NoError(t, err)
	msg := receive(t, messages)

	assert.Equal(t, string(core.EventClickProgress), msg.Metadata.Get(MetadataType))
	env, err := DecodeEnvelope(msg)
	require.NoError(t, err)
	assert.Equal(t, core.EventClickProgress, env.Type)

	var progress core.ClickProgress
	require.NoError(t, json.Unmarshal(env.Payload, &progress))
	assert.Equal(t, core.ClickProgress{Current: 1, Total: 3, Round: 2, Status: "正在处理联系人: 客户1"}, progress)
}

func TestPublisher_EncodeFailureIsSwallowed(t *testing.T) {
	ch := newChannel(t)
	p := NewPublisher(ch, "custom.topic", nil)

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), core.EventMemoryUpdate, func() {})
	})
}

func TestConsume(t *testing.T) {
	ch := newChannel(t)
	p := NewPublisher(ch, TopicEvents, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Publish(ctx, core.EventShopInfo, core.ShopInfoUpdate{ShopName: "悦享足道（万达店）"})
	require.NoError(t, ch.Publish(TopicEvents, message.NewMessage(watermill.NewUUID(), []byte("not json"))))
	p.Publish(ctx, core.EventClickError, core.ClickError{Message: "未找到联系人元素"})

	var (
		mu   sync.Mutex
		seen []core.EventType
	)
	done := make(chan error, 1)
	go func() {
		done <- Consume(ctx, ch, TopicEvents, func(_ context.Context, env core.Envelope) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, env.Type)
			return errors.New("handler errors do not stop the stream")
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []core.EventType{core.EventShopInfo, core.EventClickError}, seen)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consume did not stop")
	}
}

type echoRouter struct{}

func (echoRouter) Execute(_ context.Context, req core.CommandRequest) core.CommandResult {
	return core.CommandResult{Status: "ok", Message: req.Text}
}

func (echoRouter) ListCommands() []core.Command { return nil }

func TestCommandService_RepliesUnderCorrelationID(t *testing.T) {
	ch := newChannel(t)
	svc := NewCommandService(ch, ch, echoRouter{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	replies, err := ch.Subscribe(ctx, TopicReplies)
	require.NoError(t, err)

	go func() { _ = svc.Start(ctx) }()

	body, err := json.Marshal(core.CommandRequest{Type: "sendCustomMessage", Text: "你好"})
	require.NoError(t, err)
	withID := message.NewMessage(watermill.NewUUID(), body)
	middleware.SetCorrelationID("req-1", withID)
	require.NoError(t, ch.Publish(TopicCommands, withID))

	msg := receive(t, replies)
	assert.Equal(t, "req-1", middleware.MessageCorrelationID(msg))

	env, err := DecodeEnvelope(msg)
	require.NoError(t, err)
	assert.Equal(t, core.EventCommandResult, env.Type)

	var reply CommandReply
	require.NoError(t, json.Unmarshal(env.Payload, &reply))
	assert.Equal(t, CommandReply{Command: "sendCustomMessage", Result: core.CommandResult{Status: "ok", Message: "你好"}}, reply)

	bare := message.NewMessage("msg-2", []byte(`{"type":"getStatus"}`))
	require.NoError(t, ch.Publish(TopicCommands, bare))
	msg = receive(t, replies)
	assert.Equal(t, "msg-2", middleware.MessageCorrelationID(msg), "falls back to the message id")

	cancel()
	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestBackend_GoChannel(t *testing.T) {
	b := NewGoChannel(context.Background())

	sub, err := b.SubscriberFor("archive")
	require.NoError(t, err)
	assert.Same(t, b.Subscriber, sub)
	assert.Equal(t, "gochannel", b.Name)
	assert.NoError(t, b.Close())
}
