package sandbox

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/sandevgo/verve/internal/dom"
)

const prelude = `
function Event(type, init) {
	init = init || {};
	this.type = type;
	this.bubbles = !!init.bubbles;
}
function CustomEvent(type, init) {
	Event.call(this, type, init);
	this.detail = init && init.detail !== undefined ? init.detail : null;
}
function KeyboardEvent(type, init) {
	Event.call(this, type, init);
	init = init || {};
	this.key = init.key || '';
	this.code = init.code || '';
	this.keyCode = init.keyCode || 0;
}
`

type listener struct {
	value goja.Value
	fn    goja.Callable
}

// ensureVM builds the runtime with a window/document pair sharing one
// listener registry. The caller holds h.mu.
func (h *Host) ensureVM() {
	if h.vm != nil {
		return
	}
	vm := goja.New()
	h.vm = vm

	if _, err := vm.RunString(prelude); err != nil {
		panic(err)
	}

	document := vm.NewObject()
	h.bindTarget(document)
	_ = document.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		selector := call.Argument(0).String()
		el, ok := h.doc.First(selector)
		if !ok {
			return goja.Null()
		}
		return h.element(document, el, selector)
	})
	_ = document.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		selector := call.Argument(0).String()
		var out []any
		for _, el := range h.doc.FindAll(selector) {
			out = append(out, h.element(document, el, selector))
		}
		return vm.NewArray(out...)
	})
	_ = document.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		id := call.Argument(0).String()
		if _, ok := h.scripts[id]; ok {
			script := vm.NewObject()
			_ = script.Set("id", id)
			_ = script.Set("remove", func(goja.FunctionCall) goja.Value {
				delete(h.scripts, id)
				return goja.Undefined()
			})
			return script
		}
		el, ok := h.doc.First("#" + id)
		if !ok {
			return goja.Null()
		}
		return h.element(document, el, "#"+id)
	})

	window := vm.NewObject()
	h.bindTarget(window)
	_ = window.Set("document", document)
	_ = window.Set("location", map[string]any{"href": h.url})

	console := vm.NewObject()
	_ = console.Set("log", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	_ = console.Set("warn", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	_ = console.Set("error", func(goja.FunctionCall) goja.Value { return goja.Undefined() })

	_ = vm.Set("window", window)
	_ = vm.Set("document", document)
	_ = vm.Set("console", console)
}

func (h *Host) bindTarget(obj *goja.Object) {
	_ = obj.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		fn, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			panic(h.vm.NewTypeError("addEventListener: listener must be a function"))
		}
		h.listeners[name] = append(h.listeners[name], listener{value: call.Argument(1), fn: fn})
		return goja.Undefined()
	})
	_ = obj.Set("removeEventListener", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		target := call.Argument(1)
		kept := h.listeners[name][:0]
		for _, l := range h.listeners[name] {
			if !l.value.SameAs(target) {
				kept = append(kept, l)
			}
		}
		h.listeners[name] = kept
		return goja.Undefined()
	})
	_ = obj.Set("dispatchEvent", func(call goja.FunctionCall) goja.Value {
		ev := call.Argument(0).ToObject(h.vm)
		name := ev.Get("type").String()
		h.fire(name, ev)

		var detail json.RawMessage
		if d := ev.Get("detail"); d != nil && !goja.IsUndefined(d) && !goja.IsNull(d) {
			if raw, err := json.Marshal(d.Export()); err == nil {
				detail = raw
			}
		}
		h.forward(name, detail)
		return h.vm.ToValue(true)
	})
}

// dispatch delivers a Go-originated event to page listeners.
func (h *Host) dispatch(name string, detail json.RawMessage) error {
	var payload any
	if len(detail) > 0 {
		if err := json.Unmarshal(detail, &payload); err != nil {
			return err
		}
	}
	ev := h.vm.NewObject()
	_ = ev.Set("type", name)
	_ = ev.Set("detail", payload)
	h.fire(name, ev)
	h.forward(name, detail)
	return nil
}

func (h *Host) fire(name string, ev *goja.Object) {
	snapshot := append([]listener(nil), h.listeners[name]...)
	for _, l := range snapshot {
		// A throwing listener does not stop the others.
		_, _ = l.fn(goja.Undefined(), ev)
	}
}

func (h *Host) element(document *goja.Object, sel *goquery.Selection, selector string) *goja.Object {
	vm := h.vm
	el := vm.NewObject()
	var content *string

	_ = el.Set("tagName", strings.ToUpper(goquery.NodeName(sel)))
	_ = el.Set("ownerDocument", document)
	_ = el.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		v, ok := sel.Attr(call.Argument(0).String())
		if !ok {
			return goja.Null()
		}
		return vm.ToValue(v)
	})
	_ = el.Set("focus", func(goja.FunctionCall) goja.Value {
		h.interactions = append(h.interactions, Interaction{Op: "focus", Selector: selector})
		return goja.Undefined()
	})
	_ = el.Set("click", func(goja.FunctionCall) goja.Value {
		h.interactions = append(h.interactions, Interaction{Op: "click", Selector: selector})
		h.commit()
		return goja.Undefined()
	})
	_ = el.Set("dispatchEvent", func(call goja.FunctionCall) goja.Value {
		ev := call.Argument(0).ToObject(vm)
		kind := ev.Get("type").String()
		h.interactions = append(h.interactions, Interaction{Op: kind, Selector: selector})
		if kind == "keydown" {
			if key := ev.Get("key"); key != nil && key.String() == "Enter" {
				h.commit()
			}
		}
		return vm.ToValue(true)
	})

	getter := vm.ToValue(func(goja.FunctionCall) goja.Value {
		if content != nil {
			return vm.ToValue(*content)
		}
		return vm.ToValue(dom.Text(sel))
	})
	setter := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		v := call.Argument(0).String()
		content = &v
		h.draft = v
		h.interactions = append(h.interactions, Interaction{Op: "input", Selector: selector, Value: v})
		return goja.Undefined()
	})
	for _, prop := range []string{"textContent", "innerText", "value"} {
		_ = el.DefineAccessorProperty(prop, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE)
	}
	return el
}

// commit submits the pending input text, as the send control would.
func (h *Host) commit() {
	if h.draft == "" {
		return
	}
	h.sent = append(h.sent, h.draft)
	h.draft = ""
}
