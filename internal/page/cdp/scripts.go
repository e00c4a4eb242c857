package cdp

import (
	"encoding/json"
	"fmt"
)

const bindingName = "verveEmit"

// snapshotScript serializes the document, writing shadow roots as
// declarative templates inside their host.
const snapshotScript = `(() => {
  const VOID = new Set(['area','base','br','col','embed','hr','img','input','link','meta','source','track','wbr']);
  const text = (s) => s.replace(/&/g, '&amp;').replace(/</g, '&lt;').replace(/>/g, '&gt;');
  const attr = (s) => s.replace(/&/g, '&amp;').replace(/"/g, '&quot;');
  const kids = (n) => Array.from(n.childNodes).map(ser).join('');
  const ser = (n) => {
    if (n.nodeType === Node.TEXT_NODE) return text(n.nodeValue);
    if (n.nodeType !== Node.ELEMENT_NODE) return '';
    const tag = n.tagName.toLowerCase();
    let out = '<' + tag;
    for (const a of n.attributes) out += ' ' + a.name + '="' + attr(a.value) + '"';
    out += '>';
    if (VOID.has(tag)) return out;
    if (n.shadowRoot) out += '<template shadowrootmode="open">' + kids(n.shadowRoot) + '</template>';
    out += kids(tag === 'template' ? n.content : n);
    return out + '</' + tag + '>';
  };
  return {
    url: location.href,
    html: ser(document.documentElement),
    visible: document.visibilityState === 'visible'
  };
})()`

// observerScript reports mutations, visibility changes and unloads through
// the runtime binding. It is safe to run more than once per document.
const observerScript = `(() => {
  if (window.__verveObserver) return true;
  window.__verveObserver = true;
  const emit = (ev) => { try { window.` + bindingName + `(JSON.stringify(ev)); } catch (e) {} };
  const start = () => {
    new MutationObserver(() => emit({ kind: 'mutation' }))
      .observe(document.documentElement, { childList: true, subtree: true, characterData: true });
  };
  if (document.documentElement) start(); else document.addEventListener('DOMContentLoaded', start);
  document.addEventListener('visibilitychange', () => emit({ kind: 'visibility', hidden: document.hidden }));
  window.addEventListener('beforeunload', () => emit({ kind: 'unload' }));
  return true;
})()`

func activateScript(selector string, index int) string {
	return fmt.Sprintf(`(() => {
  const deep = (root, sel) => {
    let found = [];
    try { found = Array.from(root.querySelectorAll(sel)); } catch (e) { return []; }
    for (const el of root.querySelectorAll('*')) {
      if (el.shadowRoot) found = found.concat(deep(el.shadowRoot, sel));
    }
    return found;
  };
  const el = deep(document, %s)[%d];
  if (!el) return false;
  el.click();
  return true;
})()`, quote(selector), index)
}

func injectScript(id, source string) string {
	return fmt.Sprintf(`(() => {
  const old = document.getElementById(%[1]s);
  if (old) old.remove();
  (0, eval)(%[2]s);
  const marker = document.createElement('script');
  marker.id = %[1]s;
  marker.type = 'application/json';
  (document.head || document.documentElement).appendChild(marker);
  return true;
})()`, quote(id), quote(source))
}

func removeScript(id string) string {
	return fmt.Sprintf(`(() => {
  const el = document.getElementById(%s);
  if (el) el.remove();
  return true;
})()`, quote(id))
}

func dispatchScript(name string, detail any) (string, error) {
	raw, err := json.Marshal(detail)
	if err != nil {
		return "", fmt.Errorf("encode detail: %w", err)
	}
	return fmt.Sprintf(`(() => {
  window.dispatchEvent(new CustomEvent(%s, { detail: %s }));
  return true;
})()`, quote(name), raw), nil
}

func listenScript(name string) string {
	return fmt.Sprintf(`(() => {
  const name = %s;
  window.__verveListening = window.__verveListening || {};
  if (window.__verveListening[name]) return true;
  window.__verveListening[name] = true;
  window.addEventListener(name, (e) => {
    try { window.`+bindingName+`(JSON.stringify({ kind: 'custom', name: name, detail: e.detail })); } catch (err) {}
  });
  return true;
})()`, quote(name))
}

func quote(s string) string {
	raw, _ := json.Marshal(s)
	return string(raw)
}
