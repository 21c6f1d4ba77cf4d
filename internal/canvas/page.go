// Package canvas assembles a page instance from a site definition and wires
// the renderer, the tab controller, the deferred coordinator and the
// stabilizer together around one page tree.
//
// A Page is the unit of serialisation: every browser event and every timer
// callback runs under its lock, so the components it owns never see
// concurrent mutation of the tree.
package canvas

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/conneroisu/tabcanvas/internal/config"
	"github.com/conneroisu/tabcanvas/internal/deferred"
	"github.com/conneroisu/tabcanvas/internal/diagram"
	"github.com/conneroisu/tabcanvas/internal/dom"
	cerrors "github.com/conneroisu/tabcanvas/internal/errors"
	"github.com/conneroisu/tabcanvas/internal/logging"
	"github.com/conneroisu/tabcanvas/internal/renderer"
	"github.com/conneroisu/tabcanvas/internal/schedule"
	"github.com/conneroisu/tabcanvas/internal/site"
	"github.com/conneroisu/tabcanvas/internal/stabilizer"
	"github.com/conneroisu/tabcanvas/internal/tabs"
	"github.com/conneroisu/tabcanvas/internal/validation"
)

// UnitClass wraps the markup of every content unit in a panel.
const UnitClass = "tc-unit"

// Options configures a Page.
type Options struct {
	Site   *site.Site
	Logger logging.Logger
	// Scheduler drives stabilizer timers. Defaults to a wall-clock
	// scheduler serialised on the page lock.
	Scheduler schedule.Scheduler
	Fetcher   renderer.Fetcher
	Runtime   *diagram.Runtime
	Now       func() time.Time

	EmbedDomains []string
	EmbedHeight  int
	Stabilizer   stabilizer.Config
	Diagram      diagram.Config
	Feed         config.FeedConfig
}

// OptionsFromConfig copies the page-related settings of cfg into opts.
func OptionsFromConfig(cfg *config.Config, opts Options) Options {
	opts.EmbedDomains = append(append([]string(nil), cfg.Embed.AdditionalDomains...), opts.EmbedDomains...)
	opts.EmbedHeight = cfg.Embed.DefaultHeight
	opts.Stabilizer = cfg.Stabilizer
	opts.Diagram = cfg.Diagram
	opts.Feed = cfg.Feed
	return opts
}

type job struct {
	unitID   string
	post     renderer.PostRender
	ran      bool
	teardown deferred.Teardown
}

// Page is one live canvas.
type Page struct {
	mu sync.Mutex

	id     uuid.UUID
	site   *site.Site
	logger logging.Logger

	doc    *html.Node
	widget *html.Node
	allow  *validation.AllowList

	renderer    *renderer.Renderer
	coordinator *deferred.Coordinator
	tabs        *tabs.Controller
	stabilizer  *stabilizer.Stabilizer
	viewport    *Viewport
	refs        *refs

	jobs        map[int][]*job
	initialLazy []int
	subscribers map[int]func(Update)
	nextSub     int
	closed      bool
}

// New builds a page from opts.Site.
func New(ctx context.Context, opts Options) (*Page, error) {
	if opts.Site == nil || len(opts.Site.Tabs) == 0 {
		return nil, cerrors.NewValidationError("ERR_PAGE_SITE", "a site with at least one tab is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewTestLogger()
	}

	p := &Page{
		id:          uuid.New(),
		site:        opts.Site,
		jobs:        make(map[int][]*job),
		subscribers: make(map[int]func(Update)),
		refs:        newRefs(),
	}
	// Stabilizer timers on a Locked scheduler wait until construction ends.
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger = opts.Logger.WithComponent("canvas").With("page", p.id.String())
	p.viewport = newViewport(p.refs)

	domains := append(append([]string(nil), opts.EmbedDomains...), opts.Site.EmbedDomains...)
	allow, err := validation.NewAllowList(domains...)
	if err != nil {
		p.logger.Warn(ctx, err, "Ignoring invalid embed domains")
	}
	p.allow = allow

	p.renderer = renderer.New(renderer.Options{
		AllowList:          allow,
		Logger:             opts.Logger,
		Fetcher:            opts.Fetcher,
		Now:                opts.Now,
		DefaultEmbedHeight: opts.EmbedHeight,
	})
	p.coordinator = deferred.New(deferred.Options{
		Runtime:       opts.Runtime,
		DiagramConfig: opts.Diagram,
		Renderer:      p.renderer,
		Logger:        opts.Logger,
	})

	markup := p.build(ctx, opts.Feed)
	doc, err := dom.ParseDocument(markup)
	if err != nil {
		return nil, cerrors.NewInternalError("ERR_PAGE_PARSE", "failed to parse page markup", err)
	}
	p.doc = doc

	ctrl, err := tabs.New(doc,
		tabs.WithTabChangeHandler(p.onTabChange),
		tabs.WithLazyLoadHandler(p.onLazyLoad),
		tabs.WithFocusHandler(p.onFocus),
	)
	if err != nil {
		return nil, err
	}
	p.tabs = ctrl
	p.widget = ctrl.Root()

	sched := opts.Scheduler
	if sched == nil {
		sched = schedule.NewLocked(&p.mu)
	}
	p.stabilizer = stabilizer.New(sched, opts.Stabilizer, opts.Logger,
		stabilizer.WithChangeHandler(func(panel *html.Node) { p.emitPanel(panel) }))

	for _, panel := range ctrl.Panels() {
		for _, w := range dom.FindAll(panel.Panel, dom.ByAttrValue(stabilizer.WidgetAttr, "true")) {
			p.refs.of(w)
			for _, img := range dom.FindAll(w, dom.ByTag("img")) {
				p.refs.of(img)
			}
		}
		mode := stabilizer.Contained
		if panel.BannerMode == tabs.BannerFull {
			mode = stabilizer.FullBleed
		}
		p.stabilizer.Attach(panel.Panel, mode)

		if panel.Placeholder || (panel.Lazy && !panel.LazyLoaded) {
			continue
		}
		if panel.Index == ctrl.Active() {
			p.promoteFrames(ctx, panel.Panel)
		}
		p.runJobs(ctx, panel.Index)
	}
	for _, i := range p.initialLazy {
		p.loadPanel(ctx, i)
	}
	p.initialLazy = nil

	p.logger.Info(ctx, "Page built",
		"tabs", ctrl.Len(), "active", ctrl.Active(), "allowed_domains", len(allow.Domains()))
	return p, nil
}

// build renders every unit and returns the widget markup.
func (p *Page) build(ctx context.Context, feed config.FeedConfig) string {
	s := p.site
	w := tabs.Widget{ID: s.ID, Orientation: tabs.Orientation(s.Orientation)}

	for i, tab := range s.Tabs {
		item := tabs.Item{
			Label:       tab.Label,
			Lazy:        tab.Lazy,
			Placeholder: tab.Placeholder,
			Active:      tab.Active,
			Banner:      tabs.BannerMode(tab.Banner),
		}

		var b strings.Builder
		if tab.Placeholder {
			b.WriteString(renderer.PlaceholderOverlay(s.Placeholder.Title, s.Placeholder.Message))
		} else {
			for _, unit := range tab.Content {
				unit = applyFeedDefaults(unit, feed)
				res := p.renderer.Render(ctx, unit)
				fmt.Fprintf(&b, `<div class="%s %s--%s" data-unit-id="%s">`,
					UnitClass, UnitClass, templ.EscapeString(string(unit.Type)), templ.EscapeString(unit.ID))
				b.WriteString(res.HTML)
				b.WriteString(`</div>`)
				if res.RequiresPostRender() {
					p.jobs[i] = append(p.jobs[i], &job{unitID: unit.ID, post: res.PostRender})
				}
			}
		}
		item.Content = b.String()
		w.Items = append(w.Items, item)
	}
	return tabs.Markup(w)
}

func applyFeedDefaults(unit renderer.ContentUnit, d config.FeedConfig) renderer.ContentUnit {
	if unit.Type != renderer.TypeFeed || unit.Feed == nil {
		return unit
	}
	fc := *unit.Feed
	if fc.Display.Layout == "" {
		fc.Display.Layout = renderer.FeedLayout(d.Layout)
	}
	if fc.Display.DateFormat == "" {
		fc.Display.DateFormat = renderer.DateFormat(d.DateFormat)
	}
	if fc.Display.DescriptionLimit == 0 {
		fc.Display.DescriptionLimit = d.DescriptionLimit
	}
	if fc.Display.MaxItems == 0 {
		fc.Display.MaxItems = d.MaxItems
	}
	unit.Feed = &fc
	return unit
}

// runJobs completes the post-render work of panel index once.
func (p *Page) runJobs(ctx context.Context, index int) {
	for _, j := range p.jobs[index] {
		if j.ran {
			continue
		}
		j.ran = true
		td, err := p.coordinator.Run(ctx, p.doc, j.post, p.viewport)
		if err != nil {
			p.logger.Error(ctx, err, "Post-render job failed", "unit", j.unitID, "kind", string(j.post.Kind()))
		}
		j.teardown = td
		if lj, ok := j.post.(renderer.LandingJob); ok {
			if section := dom.FindByID(p.doc, lj.SectionID); section != nil {
				p.refs.of(section)
			}
		}
	}
}

func (p *Page) onTabChange(ev tabs.TabChangeEvent) {
	// Deferred frames in panels without lazy loading load on first display.
	p.promoteFrames(context.Background(), ev.Panel)
	if p.stabilizer != nil {
		p.stabilizer.Activated(ev.Panel)
	}
	p.emit(Update{Kind: UpdateEvent, Name: "tab-change", Index: ev.Index})
	if p.widget != nil {
		p.emit(Update{Kind: UpdatePatch, Target: dom.GetAttr(p.widget, "id"), HTML: dom.OuterHTML(p.widget)})
	}
}

func (p *Page) onLazyLoad(ev tabs.LazyLoadEvent) {
	if p.tabs == nil {
		p.initialLazy = append(p.initialLazy, ev.TabIndex)
		return
	}
	p.loadPanel(context.Background(), ev.TabIndex)
}

func (p *Page) onFocus(index int) {
	p.emit(Update{Kind: UpdateFocus, Index: index})
}

// loadPanel promotes deferred frames and runs the panel's post-render jobs.
func (p *Page) loadPanel(ctx context.Context, index int) {
	panel, ok := p.tabs.Panel(index)
	if !ok {
		return
	}
	p.promoteFrames(ctx, panel.Panel)
	p.runJobs(ctx, index)
	p.emit(Update{Kind: UpdateEvent, Name: "lazy-load", Index: index})
}

// promoteFrames moves data-src to src on deferred frames, validating each
// URL again against the allow-list first.
func (p *Page) promoteFrames(ctx context.Context, panel *html.Node) {
	for _, frame := range dom.FindAll(panel, dom.ByAttr(renderer.DeferredSrcAttr)) {
		if !dom.IsElement(frame, "iframe") {
			continue
		}
		raw := dom.GetAttr(frame, renderer.DeferredSrcAttr)
		if _, err := p.allow.ValidateEmbedURL(raw); err != nil {
			logging.LogSecurityEvent(ctx, p.logger, "deferred_frame_blocked", map[string]interface{}{
				"url": logging.SanitizeForLog(raw),
			})
			if _, rerr := dom.ReplaceWith(frame, renderer.BlockedNotice("This embed's address is not on the allowed list.")); rerr != nil {
				p.logger.Error(ctx, rerr, "Failed to replace blocked frame")
			}
			continue
		}
		dom.SetAttr(frame, "src", raw)
		dom.RemoveAttr(frame, renderer.DeferredSrcAttr)
	}
}
