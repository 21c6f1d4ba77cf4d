// Package renderer turns ContentUnits into sanitized markup.
//
// Every content type has its own strategy. Render never panics and never
// returns an error: malformed input degrades to empty or explicit
// "unsupported" markup, security rejections become a visible blocked notice,
// and internal failures become an error panel. Types whose output needs the
// page (diagrams, pending feeds, landing sections) return a PostRender job
// that the deferred coordinator completes once the markup is attached.
package renderer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/yuin/goldmark"

	cerrors "github.com/conneroisu/tabcanvas/internal/errors"
	"github.com/conneroisu/tabcanvas/internal/logging"
	"github.com/conneroisu/tabcanvas/internal/validation"
)

// Fetcher loads the content of an external file. It is supplied by the
// caller; the renderer never opens network connections itself.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) (string, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, url string) (string, error) {
	return f(ctx, url)
}

// Options configures a Renderer.
type Options struct {
	// AllowList validates embed and inline frame sources. Defaults to the
	// built-in trusted domains.
	AllowList *validation.AllowList
	Logger    logging.Logger
	Fetcher   Fetcher
	// Now is used for relative feed dates.
	Now func() time.Time
	// DefaultEmbedHeight applies when an embed does not set one.
	DefaultEmbedHeight int
}

// Renderer dispatches ContentUnits to their strategies.
type Renderer struct {
	allow       *validation.AllowList
	logger      logging.Logger
	fetcher     Fetcher
	now         func() time.Time
	embedHeight int
	markdown    goldmark.Markdown
}

// New builds a Renderer.
func New(opts Options) *Renderer {
	r := &Renderer{
		allow:       opts.AllowList,
		logger:      opts.Logger,
		fetcher:     opts.Fetcher,
		now:         opts.Now,
		embedHeight: opts.DefaultEmbedHeight,
		markdown:    newMarkdown(),
	}
	if r.allow == nil {
		r.allow, _ = validation.NewAllowList()
	}
	if r.logger == nil {
		r.logger = logging.NewTestLogger()
	}
	r.logger = r.logger.WithComponent("renderer")
	if r.now == nil {
		r.now = time.Now
	}
	if r.embedHeight <= 0 {
		r.embedHeight = defaultEmbedHeight
	}
	return r
}

// AllowList returns the allow-list embeds are validated against.
func (r *Renderer) AllowList() *validation.AllowList {
	return r.allow
}

// Render produces the markup for unit.
func (r *Renderer) Render(ctx context.Context, unit ContentUnit) (res RenderResult) {
	defer func() {
		if rec := recover(); rec != nil {
			err := cerrors.Recovered("renderer", rec)
			r.logger.Error(ctx, err, "Renderer panicked", "type", string(unit.Type), "unit", unit.ID)
			res = RenderResult{HTML: ErrorNotice("This content could not be rendered.", err.Error())}
		}
	}()

	switch unit.Type {
	case TypeStructuredText:
		return RenderResult{HTML: r.renderMarkdown(unit.Payload)}
	case TypeMarkup:
		return RenderResult{HTML: r.renderMarkup(ctx, unit.Payload)}
	case TypeDiagram:
		return renderDiagram(unit)
	case TypeEmbed:
		return RenderResult{HTML: r.renderEmbed(ctx, unit)}
	case TypeFeed:
		return r.renderFeedUnit(unit)
	case TypeExternalFile:
		return RenderResult{HTML: r.renderExternal(ctx, unit)}
	case TypeLanding:
		return renderLanding(unit)
	case TypeWebpartProxy, TypeSectionProxy:
		return RenderResult{HTML: renderProxy(unit)}
	default:
		r.logger.Warn(ctx, nil, "Unsupported content type", "type", string(unit.Type), "unit", unit.ID)
		return RenderResult{HTML: UnsupportedNotice(fmt.Sprintf("Unsupported content type %q.", string(unit.Type)))}
	}
}

// BlockedNotice is shown in place of a rejected frame.
func BlockedNotice(reason string) string {
	return `<div class="tc-embed-blocked" role="alert"><strong>Embed blocked</strong><p>` +
		templ.EscapeString(reason) + `</p></div>`
}

// UnsupportedNotice is shown for content the renderer will not guess at.
func UnsupportedNotice(message string) string {
	return `<div class="tc-unsupported" role="note"><p>` + templ.EscapeString(message) + `</p></div>`
}

// ErrorNotice is a visible error panel with the raw error text collapsed
// into a details element.
func ErrorNotice(summary, detail string) string {
	var b strings.Builder
	b.WriteString(`<div class="tc-render-error" role="alert"><p>`)
	b.WriteString(templ.EscapeString(summary))
	b.WriteString(`</p>`)
	if detail != "" {
		b.WriteString(`<details><summary>Details</summary><pre>`)
		b.WriteString(templ.EscapeString(detail))
		b.WriteString(`</pre></details>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}
