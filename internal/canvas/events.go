package canvas

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/net/html"

	"github.com/conneroisu/tabcanvas/internal/accessibility"
	"github.com/conneroisu/tabcanvas/internal/deferred"
	"github.com/conneroisu/tabcanvas/internal/dom"
	cerrors "github.com/conneroisu/tabcanvas/internal/errors"
	"github.com/conneroisu/tabcanvas/internal/renderer"
	"github.com/conneroisu/tabcanvas/internal/stabilizer"
)

// UpdateKind tells a browser what to do with an Update.
type UpdateKind string

const (
	UpdatePatch UpdateKind = "patch"
	UpdateEvent UpdateKind = "event"
	UpdateFocus UpdateKind = "focus"
)

// Update is a change a connected browser must mirror.
type Update struct {
	Kind   UpdateKind `json:"type"`
	Target string     `json:"target,omitempty"`
	HTML   string     `json:"html,omitempty"`
	Name   string     `json:"name,omitempty"`
	Index  int        `json:"index"`
}

// Subscribe registers fn for every update. fn runs with the page lock held
// and must not call back into the page.
func (p *Page) Subscribe(fn func(Update)) (cancel func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.subscribers[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subscribers, id)
	}
}

func (p *Page) emit(u Update) {
	for _, fn := range p.subscribers {
		fn(u)
	}
}

func (p *Page) emitPanel(panel *html.Node) {
	if panel == nil {
		return
	}
	p.emit(Update{Kind: UpdatePatch, Target: dom.GetAttr(panel, "id"), HTML: dom.OuterHTML(panel)})
}

func (p *Page) activePanel() *html.Node {
	panel, ok := p.tabs.Panel(p.tabs.Active())
	if !ok {
		return nil
	}
	return panel.Panel
}

// ID returns the page instance id.
func (p *Page) ID() uuid.UUID { return p.id }

// Title returns the site title.
func (p *Page) Title() string { return p.site.Title }

// HTML returns the current widget markup.
func (p *Page) HTML() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return dom.OuterHTML(p.widget)
}

// Active returns the active tab index.
func (p *Page) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tabs.Active()
}

// Labels returns the tab labels in order.
func (p *Page) Labels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	panels := p.tabs.Panels()
	out := make([]string, len(panels))
	for i, pn := range panels {
		out[i] = pn.Label
	}
	return out
}

// AllowedDomains returns the effective embed allow-list.
func (p *Page) AllowedDomains() []string {
	return p.allow.Domains()
}

// Viewport exposes the page's browser model.
func (p *Page) Viewport() *Viewport { return p.viewport }

// Click handles a click on tab index.
func (p *Page) Click(index int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	return p.tabs.HandleClick(index)
}

// Key handles a key press inside the tab list.
func (p *Page) Key(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	return p.tabs.HandleKey(key)
}

// ActivateLabel activates the tab matching a label or deep-link anchor. On
// a miss it returns the closest label, if any.
func (p *Page) ActivateLabel(text string) (bool, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false, ""
	}
	return p.tabs.ActivateByLabel(text, false)
}

// Mutation reports a host mutation on the node with the given ref.
func (p *Page) Mutation(ref string, kind stabilizer.MutationKind) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.refs.node(ref)
	if p.closed || n == nil {
		return false
	}
	return p.stabilizer.Mutation(n, kind)
}

// ImageLoaded reports that the image with the given ref finished loading
// at height pixels.
func (p *Page) ImageLoaded(ref string, height int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.refs.node(ref)
	if p.closed || n == nil {
		return false
	}
	return p.stabilizer.ImageLoaded(n, height)
}

// Scroll updates the viewport model and runs scroll listeners.
func (p *Page) Scroll(height float64, rects map[string]deferred.Rect) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.viewport.scroll(height, rects)
	if p.viewport.Listeners() > 0 {
		p.emitPanel(p.activePanel())
	}
}

// Intersect reports a visibility change of an observed node.
func (p *Page) Intersect(ref string, visible bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	if !p.viewport.intersect(ref, visible) {
		return false
	}
	p.emitPanel(p.activePanel())
	return true
}

// Hello records the browser's preferences. A change of the reduced-motion
// preference rewires landing sections that were already animated.
func (p *Page) Hello(ctx context.Context, reducedMotion bool, height float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if height > 0 {
		p.viewport.height = height
	}
	if p.viewport.reduced == reducedMotion {
		return
	}
	p.viewport.reduced = reducedMotion

	for index, jobs := range p.jobs {
		rewired := false
		for _, j := range jobs {
			if _, ok := j.post.(renderer.LandingJob); !ok || !j.ran {
				continue
			}
			if j.teardown != nil {
				if err := j.teardown(); err != nil {
					p.logger.Warn(ctx, err, "Landing teardown failed", "unit", j.unitID)
				}
			}
			j.ran = false
			rewired = true
		}
		if rewired {
			p.runJobs(ctx, index)
			if panel, ok := p.tabs.Panel(index); ok {
				p.emitPanel(panel.Panel)
			}
		}
	}
}

// UpdateFeed supplies the items of the feed unit unitID.
func (p *Page) UpdateFeed(ctx context.Context, unitID string, items []renderer.FeedItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return cerrors.NewValidationError("ERR_PAGE_CLOSED", "page is closed")
	}
	for index, jobs := range p.jobs {
		for _, j := range jobs {
			fj, ok := j.post.(renderer.FeedJob)
			if !ok || j.unitID != unitID {
				continue
			}
			if err := p.coordinator.UpdateFeed(ctx, p.doc, fj, items); err != nil {
				return err
			}
			if panel, ok := p.tabs.Panel(index); ok {
				p.emitPanel(panel.Panel)
			}
			return nil
		}
	}
	return cerrors.NewValidationError("ERR_FEED_NOT_FOUND", "no pending feed unit "+unitID)
}

// Audit runs the accessibility engine over the current tree.
func (p *Page) Audit(ctx context.Context, engine *accessibility.Engine) *accessibility.Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return engine.Analyze(ctx, p.doc)
}

// Close tears down every post-render phase and stops the stabilizer. It is
// safe to call more than once.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var err error
	for _, jobs := range p.jobs {
		for _, j := range jobs {
			if j.teardown != nil {
				err = multierr.Append(err, j.teardown())
			}
		}
	}
	p.stabilizer.Close()
	p.subscribers = make(map[int]func(Update))
	return err
}

// Describe returns a one-line summary used by the CLI.
func (p *Page) Describe() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var b strings.Builder
	b.WriteString(p.site.Title)
	for i, pn := range p.tabs.Panels() {
		b.WriteString(" | ")
		if i == p.tabs.Active() {
			b.WriteString("*")
		}
		b.WriteString(pn.Label)
	}
	return b.String()
}
