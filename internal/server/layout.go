package server

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/tabcanvas/internal/security"
)

type layoutData struct {
	Title  string
	Notice string
	// Body is the trusted widget markup of the page.
	Body string
}

// Layout renders the full document around the canvas widget. The client
// script carries the request's CSP nonce.
func Layout(d layoutData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		esc := templ.EscapeString[string]
		title := strings.TrimSpace(d.Title)
		if title == "" {
			title = "Canvas"
		}

		var b strings.Builder
		b.WriteString("<!DOCTYPE html>\n<html lang=\"en\"><head><meta charset=\"utf-8\">")
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		b.WriteString("<title>" + esc(title) + "</title>")
		b.WriteString("<style>" + pageCSS + "</style></head><body>")
		b.WriteString(`<main class="tc-page"><h1 class="tc-page-title">` + esc(title) + "</h1>")
		if d.Notice != "" {
			b.WriteString(`<p class="tc-deeplink-notice" role="status">` + esc(d.Notice) + "</p>")
		}
		b.WriteString(`<div id="tc-reload-error" aria-live="polite"></div>`)
		b.WriteString(d.Body)
		b.WriteString("</main>")

		b.WriteString("<script")
		if nonce := security.GetNonceFromContext(ctx); nonce != "" {
			b.WriteString(` nonce="` + esc(nonce) + `"`)
		}
		b.WriteString(">" + clientJS + "</script></body></html>")

		_, err := io.WriteString(w, b.String())
		return err
	})
}

const pageCSS = `
body { font-family: system-ui, -apple-system, sans-serif; margin: 0; background: #f5f5f5; color: #222; }
.tc-page { max-width: 1100px; margin: 0 auto; padding: 24px; background: #fff; }
.tc-tablist { display: flex; gap: 4px; border-bottom: 2px solid #ddd; }
.tc-tabs[data-orientation="vertical"] { display: flex; }
.tc-tabs[data-orientation="vertical"] .tc-tablist { flex-direction: column; border-bottom: 0; border-right: 2px solid #ddd; }
.tc-tab { border: 0; background: none; padding: 10px 16px; cursor: pointer; font: inherit; }
.tc-tab--active { border-bottom: 3px solid #007acc; font-weight: 600; }
.tc-tab[data-placeholder="true"] { opacity: 0.6; cursor: not-allowed; }
.tc-panel[hidden] { display: none; }
.tc-panel { padding: 16px 0; }
.tc-embed-blocked, .tc-render-error, .tc-unsupported { border: 1px solid #e0b4b4; background: #fff6f6; padding: 12px; border-radius: 4px; }
.tc-deeplink-notice { background: #fffbe6; padding: 8px 12px; border-radius: 4px; }
.tc-landing-card { opacity: 0; transform: translateY(24px); transition: opacity .4s, transform .4s; }
.tc-landing-card.is-revealed, .tc-landing[data-landing-state="static"] .tc-landing-card { opacity: 1; transform: none; }
@media (prefers-reduced-motion: reduce) { .tc-landing-card { transition: none; } }
`

// clientJS mirrors browser events to the server and applies the updates
// it sends back.
const clientJS = `
(function () {
  "use strict";
  var proto = location.protocol === "https:" ? "wss:" : "ws:";
  var ws = new WebSocket(proto + "//" + location.host + "/ws");
  var io = null;
  var mo = null;

  function send(msg) {
    if (ws.readyState === WebSocket.OPEN) ws.send(JSON.stringify(msg));
  }
  function tabs() { return Array.prototype.slice.call(document.querySelectorAll(".tc-tab")); }
  function ref(el) { return el && el.getAttribute("data-tc-ref"); }

  function observeLanding() {
    if (io) io.disconnect();
    if (!("IntersectionObserver" in window)) return;
    io = new IntersectionObserver(function (entries) {
      entries.forEach(function (e) {
        send({ type: "intersect", target: ref(e.target), visible: e.isIntersecting });
      });
    }, { threshold: 0.2 });
    document.querySelectorAll(".tc-landing [data-tc-ref]").forEach(function (el) { io.observe(el); });
  }

  function reportScroll() {
    var rects = {};
    document.querySelectorAll("section[data-tc-ref]").forEach(function (el) {
      var r = el.getBoundingClientRect();
      rects[ref(el)] = { top: r.top, height: r.height };
    });
    send({ type: "scroll", height: window.innerHeight, rects: rects });
  }

  ws.addEventListener("open", function () {
    var reduced = window.matchMedia && window.matchMedia("(prefers-reduced-motion: reduce)").matches;
    send({ type: "hello", reducedMotion: !!reduced, height: window.innerHeight });
    reportScroll();
  });

  ws.addEventListener("message", function (ev) {
    var msg;
    try { msg = JSON.parse(ev.data); } catch (e) { return; }
    switch (msg.type) {
    case "patch":
      var el = document.getElementById(msg.target);
      if (!el) return;
      el.outerHTML = msg.html;
      if (mo) mo.takeRecords();
      observeLanding();
      break;
    case "focus":
      var t = tabs()[msg.index];
      if (t) t.focus();
      break;
    case "full_reload":
      location.reload();
      break;
    case "reload_error":
      var box = document.getElementById("tc-reload-error");
      if (box) box.innerHTML = msg.html;
      break;
    }
  });

  document.addEventListener("click", function (ev) {
    var tab = ev.target.closest && ev.target.closest(".tc-tab");
    if (!tab) return;
    send({ type: "click", index: tabs().indexOf(tab) });
  });

  document.addEventListener("keydown", function (ev) {
    if (!(ev.target.closest && ev.target.closest(".tc-tablist"))) return;
    var keys = ["ArrowLeft", "ArrowRight", "ArrowUp", "ArrowDown", "Home", "End", "Enter", " "];
    if (keys.indexOf(ev.key) < 0) return;
    ev.preventDefault();
    send({ type: "key", key: ev.key });
  });

  document.addEventListener("load", function (ev) {
    var img = ev.target;
    if (!img || img.tagName !== "IMG" || !img.closest("[data-foreign-widget]")) return;
    send({ type: "image-load", target: ref(img), height: Math.round(img.getBoundingClientRect().height) });
  }, true);

  if ("MutationObserver" in window) {
    mo = new MutationObserver(function (records) {
      records.forEach(function (r) {
        var node = r.target.nodeType === 1 ? r.target : r.target.parentElement;
        var widget = node && node.closest("[data-foreign-widget]");
        if (!widget) return;
        send({ type: "mutation", target: ref(widget), kind: r.type === "attributes" ? "style" : "childList" });
      });
    });
    mo.observe(document.body, { subtree: true, childList: true, attributes: true, attributeFilter: ["style"] });
  }

  var pending = false;
  window.addEventListener("scroll", function () {
    if (pending) return;
    pending = true;
    requestAnimationFrame(function () { pending = false; reportScroll(); });
  }, { passive: true });

  observeLanding();
})();
`
