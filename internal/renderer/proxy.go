package renderer

import (
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/tabcanvas/internal/security"
)

// ForeignWidgetAttr marks host markup the stabilizer watches.
const ForeignWidgetAttr = "data-foreign-widget"

func renderProxy(unit ContentUnit) string {
	kind := "webpart"
	if unit.Type == TypeSectionProxy {
		kind = "section"
	}

	var cfg ProxyConfig
	if unit.Proxy != nil {
		cfg = *unit.Proxy
	}
	target := strings.TrimSpace(cfg.Target)
	if target == "" {
		target = strings.TrimSpace(unit.Payload)
	}
	if target == "" {
		return UnsupportedNotice("No host " + kind + " has been selected for this panel.")
	}

	var b strings.Builder
	b.WriteString(`<div class="tc-proxy tc-proxy--` + kind + `" data-proxy-kind="` + kind + `" data-proxy-target="`)
	b.WriteString(templ.EscapeString(target))
	b.WriteString(`">`)
	if host := security.Sanitize(cfg.HostMarkup, security.ProfileTrustedLayout); host != "" {
		b.WriteString(`<div class="tc-foreign-widget" ` + ForeignWidgetAttr + `="true">`)
		b.WriteString(host)
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}

// PlaceholderOverlay renders the lock overlay shown over a placeholder tab's
// panel.
func PlaceholderOverlay(title, message string) string {
	if strings.TrimSpace(title) == "" {
		title = "Restricted"
	}
	if strings.TrimSpace(message) == "" {
		message = "You do not have access to this content."
	}
	overlay := `<div class="tc-lock-overlay" role="status" data-placeholder-overlay="true" ` +
		`style="display: flex; flex-direction: column; align-items: center; justify-content: center; min-height: 200px; text-align: center">` +
		`<div class="tc-lock-icon" aria-hidden="true">&#128274;</div>` +
		`<p class="tc-lock-title">` + templ.EscapeString(title) + `</p>` +
		`<p class="tc-lock-message">` + templ.EscapeString(message) + `</p></div>`
	return security.Sanitize(overlay, security.ProfileTrustedLayout)
}
