package cdp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/dop251/goja"
	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/internal/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "http", raw: "http://127.0.0.1:9222", want: "http://127.0.0.1:9222/json/list"},
		{name: "websocket", raw: "ws://127.0.0.1:9222/devtools/browser/abc", want: "http://127.0.0.1:9222/json/list"},
		{name: "secure_websocket", raw: "wss://chrome.local/devtools?x=1", want: "https://chrome.local/json/list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := listURL(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindTab(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/json/list", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"id":"sw","type":"service_worker","url":"https://e.dianping.com/dzim-main-pc/sw.js"},
			{"id":"news","type":"page","url":"https://news.example.com/"},
			{"id":"chat","type":"page","url":"https://e.dianping.com/app/dzim-main-pc/index.html","title":"商家消息"}
		]`))
	}))
	defer srv.Close()

	cfg := Config{URL: srv.URL}.withDefaults()
	tab, err := findTab(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "chat", tab.ID)

	cfg.Match = "nowhere"
	_, err = findTab(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrNoTab)
}

// fakePage is just enough of a browser window for the generated scripts.
const fakePage = `
var listeners = {};
var emitted = [];
var clicked = [];
var appended = [];
function node(name) {
  return { name: name, click: function () { clicked.push(name); }, remove: function () { removed = name; } };
}
var removed = '';
var shadowHost = node('host');
shadowHost.shadowRoot = {
  querySelectorAll: function (sel) { return sel === '*' ? [] : [node('shadow-item')]; }
};
var document = {
  querySelectorAll: function (sel) { return sel === '*' ? [shadowHost] : [node('top-item')]; },
  getElementById: function (id) { return id === 'old' ? node('old') : null; },
  createElement: function () { return {}; },
  head: { appendChild: function (el) { appended.push(el); } }
};
var window = {
  addEventListener: function (n, f) { (listeners[n] = listeners[n] || []).push(f); },
  dispatchEvent: function (e) { (listeners[e.type] || []).forEach(function (f) { f(e); }); return true; },
  verveEmit: function (s) { emitted.push(s); }
};
function CustomEvent(type, init) { this.type = type; this.detail = init.detail; }
`

func newVM(t *testing.T) *goja.Runtime {
	t.Helper()
	vm := goja.New()
	_, err := vm.RunString(fakePage)
	require.NoError(t, err)
	return vm
}

func run(t *testing.T, vm *goja.Runtime, script string) goja.Value {
	t.Helper()
	v, err := vm.RunString(script)
	require.NoError(t, err)
	return v
}

func TestActivateScript(t *testing.T) {
	tests := []struct {
		name    string
		index   int
		want    bool
		clicked []string
	}{
		{name: "top_level", index: 0, want: true, clicked: []string{"top-item"}},
		{name: "inside_shadow_root", index: 1, want: true, clicked: []string{"shadow-item"}},
		{name: "missing", index: 2, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newVM(t)
			got := run(t, vm, activateScript(".chat-list-item", tt.index))
			assert.Equal(t, tt.want, got.ToBoolean())

			var clicked []string
			require.NoError(t, vm.ExportTo(vm.Get("clicked"), &clicked))
			if tt.clicked == nil {
				assert.Empty(t, clicked)
				return
			}
			assert.Equal(t, tt.clicked, clicked)
		})
	}
}

func TestInjectScript(t *testing.T) {
	vm := newVM(t)

	got := run(t, vm, injectScript("old", `var injected = 'it"s </script> loaded';`))
	assert.True(t, got.ToBoolean())
	assert.Equal(t, `it"s </script> loaded`, vm.Get("injected").String())
	assert.Equal(t, "old", vm.Get("removed").String())
	assert.Equal(t, "old", run(t, vm, "appended[0].id").String())
	assert.Equal(t, "application/json", run(t, vm, "appended[0].type").String())

	assert.True(t, run(t, vm, removeScript("old")).ToBoolean())
}

func TestListenAndDispatchReachSubscribers(t *testing.T) {
	vm := newVM(t)

	assert.True(t, run(t, vm, listenScript("verveInjectorResult")).ToBoolean())
	assert.True(t, run(t, vm, listenScript("verveInjectorResult")).ToBoolean())
	assert.Equal(t, int64(1), run(t, vm, "listeners.verveInjectorResult.length").ToInteger(), "listening twice installs one listener")

	script, err := dispatchScript("verveInjectorResult", map[string]string{"status": "success", "message": "消息已发送"})
	require.NoError(t, err)
	assert.True(t, run(t, vm, script).ToBoolean())

	var emitted []string
	require.NoError(t, vm.ExportTo(vm.Get("emitted"), &emitted))
	require.Len(t, emitted, 1)

	h := &Host{events: page.NewBroadcaster(0)}
	defer h.events.Close()

	var (
		mu  sync.Mutex
		got []core.PageEvent
	)
	h.events.Subscribe(func(ev core.PageEvent) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
	})

	h.onEvent(&runtime.EventBindingCalled{Name: "somethingElse", Payload: emitted[0]})
	h.onEvent(&runtime.EventBindingCalled{Name: bindingName, Payload: "not json"})
	h.onEvent(&runtime.EventBindingCalled{Name: bindingName, Payload: emitted[0]})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, core.PageCustom, got[0].Kind)
	assert.Equal(t, "verveInjectorResult", got[0].Name)
	assert.JSONEq(t, `{"status":"success","message":"消息已发送"}`, string(got[0].Detail))
}

func TestDispatchScriptRejectsUnencodable(t *testing.T) {
	_, err := dispatchScript("x", make(chan int))
	assert.Error(t, err)
}
