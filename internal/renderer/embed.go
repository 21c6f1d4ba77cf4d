package renderer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	cerrors "github.com/conneroisu/tabcanvas/internal/errors"
	"github.com/conneroisu/tabcanvas/internal/logging"
	"github.com/conneroisu/tabcanvas/internal/validation"
)

const (
	defaultEmbedHeight = 480
	minEmbedHeight     = 100
	maxEmbedHeight     = 4000

	// FrameSandbox deliberately omits allow-top-navigation.
	FrameSandbox = "allow-scripts allow-same-origin allow-forms allow-popups allow-presentation"
	// FrameReferrerPolicy is forced on every emitted frame.
	FrameReferrerPolicy = "no-referrer-when-downgrade"
	// DeferredSrcAttr holds the frame URL until the panel is first shown.
	DeferredSrcAttr = "data-src"
)

func (r *Renderer) renderEmbed(ctx context.Context, unit ContentUnit) string {
	cfg := EmbedConfig{URL: unit.Payload}
	if unit.Embed != nil {
		cfg = *unit.Embed
	}

	allow := r.allow
	if len(cfg.AdditionalDomains) > 0 {
		allow = allow.With(cfg.AdditionalDomains...)
	}

	u, err := allow.ValidateEmbedURL(cfg.URL)
	if err != nil {
		logging.LogSecurityEvent(ctx, r.logger, "embed_blocked", map[string]interface{}{
			"unit":   unit.ID,
			"url":    cfg.URL,
			"reason": err.Error(),
		})
		return BlockedNotice(blockedReason(err))
	}

	height := cfg.Height
	switch {
	case height <= 0:
		height = r.embedHeight
	case height < minEmbedHeight:
		height = minEmbedHeight
	case height > maxEmbedHeight:
		height = maxEmbedHeight
	}

	title := strings.TrimSpace(cfg.Title)
	if title == "" {
		title = "Embedded content"
	}

	srcAttr := "src"
	if cfg.Defer {
		srcAttr = DeferredSrcAttr
	}

	h := strconv.Itoa(height)
	var b strings.Builder
	b.WriteString(`<div class="tc-embed" data-embed-host="`)
	b.WriteString(templ.EscapeString(u.Hostname()))
	b.WriteString(`">`)
	b.WriteString(`<iframe `)
	b.WriteString(srcAttr)
	b.WriteString(`="`)
	b.WriteString(templ.EscapeString(u.String()))
	b.WriteString(`" title="`)
	b.WriteString(templ.EscapeString(title))
	b.WriteString(`" width="100%" height="`)
	b.WriteString(h)
	b.WriteString(`" sandbox="` + FrameSandbox + `" referrerpolicy="` + FrameReferrerPolicy + `" loading="lazy" frameborder="0" allowfullscreen></iframe></div>`)
	return b.String()
}

// blockedReason turns a validation failure into text for the notice.
func blockedReason(err error) string {
	var ce *cerrors.CanvasError
	if errors.As(err, &ce) {
		switch ce.Code {
		case validation.CodeInsecureScheme:
			return "Only secure (https) addresses can be embedded."
		case validation.CodeDomainBlocked:
			if host, ok := ce.Context["host"].(string); ok {
				return fmt.Sprintf("%s is not an approved embed domain.", host)
			}
			return "This domain is not an approved embed domain."
		}
	}
	return "The embed address is not valid."
}
