package renderer

import (
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/tabcanvas/internal/dom"
	"github.com/conneroisu/tabcanvas/internal/logging"
	"github.com/conneroisu/tabcanvas/internal/security"
)

func (r *Renderer) renderMarkup(ctx context.Context, payload string) string {
	if strings.TrimSpace(payload) == "" {
		return ""
	}
	safe := security.Sanitize(payload, security.ProfileMarkup)
	if !strings.Contains(safe, "<iframe") {
		return safe
	}
	return r.enforceFrames(ctx, safe)
}

// enforceFrames re-checks every frame that survived sanitization against the
// allow-list, replacing rejected ones with a blocked notice and forcing the
// sandbox and referrer policy onto the rest.
func (r *Renderer) enforceFrames(ctx context.Context, markup string) string {
	container := &html.Node{Type: html.ElementNode, Data: "div"}
	if err := dom.SetInnerHTML(container, markup); err != nil {
		r.logger.Warn(ctx, err, "Could not re-parse sanitized markup")
		return ""
	}

	for _, frame := range dom.FindAll(container, dom.ByTag("iframe")) {
		src := dom.GetAttr(frame, "src")
		if _, err := r.allow.ValidateEmbedURL(src); err != nil {
			logging.LogSecurityEvent(ctx, r.logger, "markup_frame_blocked", map[string]interface{}{
				"src":    src,
				"reason": err.Error(),
			})
			if _, rerr := dom.ReplaceWith(frame, BlockedNotice(blockedReason(err))); rerr != nil {
				frame.Parent.RemoveChild(frame)
			}
			continue
		}
		dom.SetAttr(frame, "sandbox", FrameSandbox)
		dom.SetAttr(frame, "referrerpolicy", FrameReferrerPolicy)
		if !dom.HasAttr(frame, "loading") {
			dom.SetAttr(frame, "loading", "lazy")
		}
	}

	return dom.InnerHTML(container)
}
