package session

import (
	"context"
	"testing"
	"time"

	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/internal/page/sandbox"
	"github.com/sandevgo/verve/internal/relay/relaytest"
	"github.com/sandevgo/verve/internal/service/cycle"
	"github.com/sandevgo/verve/internal/service/dispatch"
	"github.com/sandevgo/verve/internal/service/extract"
	"github.com/sandevgo/verve/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chatPage = `<div class="userinfo"><span class="userinfo-username" data-chatid="u-100">王女士</span>
<span class="userinfo-from-shop">来自 - 悦享足道 (万达店)</span></div>
<div class="text-message normal-text">请问周末可以预约吗</div>
<pre data-placeholder="请输入你要回复顾客的内容" class="dzim-chat-input-container"></pre>
<button class="dzim-chat-send-btn">发送</button>`

type fixture struct {
	session *Session
	host    *sandbox.Host
	relay   *relaytest.Recorder
	clock   *clock.Manual
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	host, err := sandbox.New("https://e.dianping.com/app/dzim-main-pc/index.html", chatPage)
	require.NoError(t, err)
	t.Cleanup(func() { _ = host.Close() })

	c := clock.NewManual(time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC))
	rec := relaytest.New()
	s := New(host, rec, c, nil, Config{PollInterval: time.Second, Location: time.UTC})
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	return fixture{session: s, host: host, relay: rec, clock: c}
}

func TestSession_ExtractAndReply(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.session.StartExtraction(ctx)
	f.clock.Advance(time.Second)
	require.Equal(t, 1, f.relay.Count(core.EventExtractedData))

	res, err := f.session.SendCustom(ctx, "可以的，请告诉我时间")
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusSuccess, res.Status)
	assert.Equal(t, []string{"可以的，请告诉我时间"}, f.host.Sent())

	entries := f.session.Memory()
	require.Len(t, entries, 2)
	assert.Equal(t, core.RoleUser, entries[0].Role)
	assert.Equal(t, "请问周末可以预约吗", entries[0].Content)
	assert.Equal(t, core.RoleAssistant, entries[1].Role)
	assert.Equal(t, "可以的，请告诉我时间", entries[1].Content)

	assert.Equal(t, 1, f.relay.Count(core.EventMemoryUpdate), "a sent reply does not trigger a new update")
}

func TestSession_Status(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	st := f.session.Status()
	assert.False(t, st.Extracting)
	assert.Equal(t, extract.ModeIdle, st.Mode)
	assert.Nil(t, st.Contact)

	f.session.StartExtraction(ctx)
	f.clock.Advance(time.Second)

	st = f.session.Status()
	assert.True(t, st.Extracting)
	assert.Equal(t, extract.ModePolling, st.Mode)
	assert.Equal(t, "悦享足道（万达店）", st.ShopName)
	require.NotNil(t, st.Contact)
	assert.Equal(t, "u-100", st.Contact.ChatID)
	assert.Equal(t, 1, st.MemoryEntries)
	assert.Equal(t, 1, st.SeenKeys)
	assert.False(t, st.Dispatching)
	assert.False(t, st.Cycle.IsRunning)

	f.session.StopExtraction(ctx)
	assert.False(t, f.session.Status().Extracting)
}

func TestSession_ShopName(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "悦享足道（万达店）", f.session.ShopName(context.Background()))
}

func TestSession_FlushWhenHidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.session.StartExtraction(ctx)
	f.clock.Advance(time.Second)
	require.Zero(t, f.relay.Count(core.EventMemorySave))

	f.host.SetVisible(false)
	require.Eventually(t, func() bool {
		return f.relay.Count(core.EventMemorySave) == 1
	}, time.Second, 5*time.Millisecond)

	saved := f.relay.Of(core.EventMemorySave)[0].(core.MemorySave)
	assert.Equal(t, "u-100", saved.ChatID)
	assert.Len(t, saved.ConversationMemory, 1)
}

func TestSession_ShutdownFlushes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.session.StartExtraction(ctx)
	f.clock.Advance(time.Second)
	require.NoError(t, f.session.Shutdown(ctx))

	assert.Equal(t, 1, f.relay.Count(core.EventMemorySave))
	assert.False(t, f.session.Status().Extracting)
	assert.Zero(t, f.clock.Pending())
}

func TestSession_CycleStartsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.host.SetHTML(`<ul class="chat-list"><li class="chat-list-item" data-chatid="c1"><span class="userinfo-name-show">客户1</span></li></ul>`))

	assert.True(t, f.session.StartCycle(ctx, 1, time.Second))
	assert.False(t, f.session.StartCycle(ctx, 1, time.Second))
	assert.True(t, f.session.Status().Cycle.IsRunning)

	assert.Equal(t, []core.Target{{Selector: cycle.ContactSelector, Index: 0}}, f.host.Activations())

	f.session.StopCycle(ctx)
	assert.False(t, f.session.Status().Cycle.IsRunning)
}

// strictHost fails calls made with a finished context, as the browser hosts do.
type strictHost struct {
	*sandbox.Host
}

func (h strictHost) Snapshot(ctx context.Context) (core.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return core.Snapshot{}, err
	}
	return h.Host.Snapshot(ctx)
}

func (h strictHost) Activate(ctx context.Context, target core.Target) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.Host.Activate(ctx, target)
}

func newStrictFixture(t *testing.T, html string) fixture {
	t.Helper()
	host, err := sandbox.New("https://e.dianping.com/app/dzim-main-pc/index.html", html)
	require.NoError(t, err)
	t.Cleanup(func() { _ = host.Close() })

	c := clock.NewManual(time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC))
	rec := relaytest.New()
	s := New(strictHost{host}, rec, c, nil, Config{PollInterval: time.Second, Location: time.UTC})
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	return fixture{session: s, host: host, relay: rec, clock: c}
}

func TestSession_CycleOutlivesCallerContext(t *testing.T) {
	f := newStrictFixture(t, `<span class="userinfo-from-shop">悦享足道</span><ul class="chat-list">
<li class="chat-list-item" data-chatid="c1"><span class="userinfo-name-show">客户1</span></li>
<li class="chat-list-item" data-chatid="c2"><span class="userinfo-name-show">客户2</span></li>
</ul>`)

	reqCtx, cancel := context.WithCancel(context.Background())
	require.True(t, f.session.StartCycle(reqCtx, 2, 2*time.Second))
	cancel()

	// page wait 1.2s, extraction wait 1.6s, interval 2s
	f.clock.Advance(3 * 4800 * time.Millisecond)

	st := f.session.Status().Cycle
	assert.True(t, st.IsRunning)
	assert.Equal(t, 4, st.TotalProcessed)
	assert.Equal(t, 2, st.Round)
	assert.Zero(t, f.relay.Count(core.EventClickError))
	assert.Len(t, f.host.Activations(), 4)
}

func TestSession_ExtractionOutlivesCallerContext(t *testing.T) {
	f := newStrictFixture(t, chatPage)

	reqCtx, cancel := context.WithCancel(context.Background())
	f.session.StartExtraction(reqCtx)
	cancel()

	f.clock.Advance(time.Second)
	assert.Equal(t, 1, f.relay.Count(core.EventExtractedData))
	assert.Equal(t, 1, f.session.Status().MemoryEntries)
}

func TestSession_ShutdownEndsSessionContext(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.Shutdown(context.Background()))
	assert.Error(t, f.session.detach(context.Background()).Err())
}
