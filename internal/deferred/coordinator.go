// Package deferred completes the second render phase of content that needs
// to be attached to the page first: diagram layout, feed population and the
// scroll-linked landing animation.
package deferred

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/net/html"

	"github.com/conneroisu/tabcanvas/internal/diagram"
	"github.com/conneroisu/tabcanvas/internal/dom"
	cerrors "github.com/conneroisu/tabcanvas/internal/errors"
	"github.com/conneroisu/tabcanvas/internal/logging"
	"github.com/conneroisu/tabcanvas/internal/renderer"
)

// Attributes and classes shared with the page markup.
const (
	DiagramStateAttr = "data-diagram-state"
	LandingStateAttr = "data-landing-state"
	PathLengthAttr   = "data-path-length"
	FeedStateAttr    = "data-feed-state"
	RevealedClass    = "is-revealed"
)

// Rect is the position of an element relative to the viewport.
type Rect struct {
	Top    float64
	Height float64
}

// Observer is a live intersection observation.
type Observer interface {
	Disconnect() error
}

// Viewport is the coordinator's view of the browser window hosting the page.
// Callbacks it registers are invoked with the page lock held.
type Viewport interface {
	ReducedMotion() bool
	Height() float64
	BoundingRect(n *html.Node) Rect
	AddScrollListener(fn func()) (remove func())
	ObserveIntersection(targets []*html.Node, fn func(target *html.Node, visible bool)) Observer
}

// Teardown releases whatever a post-render phase attached. It is safe to
// call more than once.
type Teardown func() error

func noTeardown() error { return nil }

// Options configures a Coordinator.
type Options struct {
	Runtime       *diagram.Runtime
	DiagramConfig diagram.Config
	Renderer      *renderer.Renderer
	Logger        logging.Logger
}

// Coordinator runs post-render jobs against a page tree.
type Coordinator struct {
	runtime    *diagram.Runtime
	diagramCfg diagram.Config
	renderer   *renderer.Renderer
	logger     logging.Logger
}

// New returns a Coordinator. A nil Runtime gets a fresh page-scoped one.
func New(opts Options) *Coordinator {
	c := &Coordinator{
		runtime:    opts.Runtime,
		diagramCfg: opts.DiagramConfig,
		renderer:   opts.Renderer,
		logger:     opts.Logger,
	}
	if c.runtime == nil {
		c.runtime = diagram.NewRuntime()
	}
	if c.renderer == nil {
		c.renderer = renderer.New(renderer.Options{Logger: opts.Logger})
	}
	if c.logger == nil {
		c.logger = logging.NewTestLogger()
	}
	c.logger = c.logger.WithComponent("deferred")
	return c
}

// Run executes job against root. Failures of the content itself (a diagram
// that does not parse) are shown in the page and logged, not returned; the
// error result is reserved for a job that does not match the page.
func (c *Coordinator) Run(ctx context.Context, root *html.Node, job renderer.PostRender, vp Viewport) (td Teardown, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = cerrors.Recovered("deferred", r)
			c.logger.Error(ctx, err, "Post-render phase panicked")
			td = noTeardown
		}
	}()

	switch j := job.(type) {
	case renderer.DiagramJob:
		return noTeardown, c.runDiagram(ctx, root, j)
	case renderer.LandingJob:
		return c.runLanding(ctx, root, j, vp)
	case renderer.FeedJob:
		// populated by UpdateFeed once items arrive
		return noTeardown, nil
	case nil:
		return noTeardown, nil
	default:
		return noTeardown, cerrors.NewDeferredError("ERR_UNKNOWN_JOB", fmt.Sprintf("unknown post-render job %T", job), nil)
	}
}

func (c *Coordinator) runDiagram(ctx context.Context, root *html.Node, job renderer.DiagramJob) error {
	el := dom.FindByID(root, job.ElementID)
	if el == nil {
		return cerrors.NewDeferredError("ERR_DIAGRAM_NOT_FOUND", "diagram placeholder not found", nil).
			WithContext("element", job.ElementID)
	}
	if diagramDone(el) {
		return nil
	}

	source, err := renderer.DecodeDiagramSource(dom.GetAttr(el, renderer.DiagramSourceAttr))
	if err != nil {
		c.failDiagram(ctx, el, job.ElementID, err)
		return nil
	}

	engine := c.runtime.Init(c.diagramCfg)
	svg, err := engine.Render(job.ElementID, source)
	if err != nil {
		c.failDiagram(ctx, el, job.ElementID, err)
		return nil
	}

	if err := dom.SetInnerHTML(el, svg); err != nil {
		c.failDiagram(ctx, el, job.ElementID, err)
		return nil
	}
	dom.SetAttr(el, DiagramStateAttr, "rendered")
	dom.RemoveAttr(el, "aria-busy")
	c.logger.Debug(ctx, "Diagram rendered", "element", job.ElementID)
	return nil
}

func diagramDone(el *html.Node) bool {
	if dom.HasAttr(el, DiagramStateAttr) {
		return true
	}
	return dom.FindFirst(el, dom.ByTag("svg")) != nil
}

func (c *Coordinator) failDiagram(ctx context.Context, el *html.Node, id string, cause error) {
	derr := cerrors.NewDeferredError("ERR_DIAGRAM_RENDER", "diagram could not be rendered", cause).
		WithContext("element", id)
	c.logger.Error(ctx, derr, "Diagram render failed", "element", id)

	if err := dom.SetInnerHTML(el, renderer.ErrorNotice("This diagram could not be rendered.", cause.Error())); err != nil {
		dom.RemoveChildren(el)
	}
	dom.SetAttr(el, DiagramStateAttr, "error")
	dom.RemoveAttr(el, "aria-busy")
}

// UpdateFeed renders items into the container announced by job.
func (c *Coordinator) UpdateFeed(ctx context.Context, root *html.Node, job renderer.FeedJob, items []renderer.FeedItem) error {
	container := dom.FindByID(root, job.ContainerID)
	if container == nil {
		return cerrors.NewDeferredError("ERR_FEED_NOT_FOUND", "feed container not found", nil).
			WithContext("container", job.ContainerID)
	}
	if err := dom.SetInnerHTML(container, c.renderer.RenderFeed(items, job.Display)); err != nil {
		return cerrors.NewDeferredError("ERR_FEED_SWAP", "could not insert feed markup", err)
	}
	dom.RemoveAttr(container, "aria-busy")
	dom.SetAttr(container, FeedStateAttr, "ready")
	c.logger.Debug(ctx, "Feed populated", "container", job.ContainerID, "items", len(items))
	return nil
}

func (c *Coordinator) runLanding(ctx context.Context, root *html.Node, job renderer.LandingJob, vp Viewport) (Teardown, error) {
	section := dom.FindByID(root, job.SectionID)
	if section == nil {
		return noTeardown, cerrors.NewDeferredError("ERR_LANDING_NOT_FOUND", "landing section not found", nil).
			WithContext("section", job.SectionID)
	}
	if dom.HasAttr(section, LandingStateAttr) {
		return noTeardown, nil
	}

	path := dom.FindFirst(section, dom.ByClass("tc-landing-path"))
	var markers []*html.Node
	for _, cls := range []string{"tc-landing-heading", "tc-landing-end"} {
		if n := dom.FindFirst(section, dom.ByClass(cls)); n != nil {
			markers = append(markers, n)
		}
	}
	cards := dom.FindAll(section, dom.ByClass("tc-landing-card"))

	length := 0.0
	if path != nil {
		length = c.pathLength(ctx, path)
	}

	if vp == nil || vp.ReducedMotion() {
		setDashOffset(path, length, 1)
		for _, n := range append(markers, cards...) {
			dom.AddClass(n, RevealedClass)
		}
		dom.SetAttr(section, LandingStateAttr, "static")
		return func() error {
			dom.RemoveAttr(section, LandingStateAttr)
			return nil
		}, nil
	}

	update := func() {
		rect := vp.BoundingRect(section)
		setDashOffset(path, length, ScrollProgress(rect, vp.Height()))
	}
	update()
	removeScroll := vp.AddScrollListener(update)

	permanent := vp.ObserveIntersection(markers, func(n *html.Node, visible bool) {
		if visible {
			dom.AddClass(n, RevealedClass)
		}
	})
	toggling := vp.ObserveIntersection(cards, func(n *html.Node, visible bool) {
		dom.ToggleClass(n, RevealedClass, visible)
	})

	dom.SetAttr(section, LandingStateAttr, "animated")

	var (
		once   sync.Once
		result error
	)
	return func() error {
		once.Do(func() {
			if removeScroll != nil {
				removeScroll()
			}
			result = multierr.Combine(disconnect(permanent), disconnect(toggling))
			dom.RemoveAttr(section, LandingStateAttr)
		})
		return result
	}, nil
}

func disconnect(o Observer) error {
	if o == nil {
		return nil
	}
	return o.Disconnect()
}

// pathLength reads the cached length or computes and caches it.
func (c *Coordinator) pathLength(ctx context.Context, path *html.Node) float64 {
	if raw := dom.GetAttr(path, PathLengthAttr); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	length, err := PathLength(dom.GetAttr(path, "d"))
	if err != nil {
		c.logger.Warn(ctx, err, "Landing path could not be measured")
		length = 0
	}
	dom.SetAttr(path, PathLengthAttr, strconv.FormatFloat(length, 'f', 2, 64))
	return length
}

// ScrollProgress maps a section's viewport position to [0, 1]: 0 while its
// top is still below the viewport, 1 once it has scrolled fully past.
func ScrollProgress(r Rect, viewportHeight float64) float64 {
	span := r.Height + viewportHeight
	if span <= 0 {
		return 1
	}
	p := (viewportHeight - r.Top) / span
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

func setDashOffset(path *html.Node, length, progress float64) {
	if path == nil {
		return
	}
	st := dom.GetStyle(path)
	l := strconv.FormatFloat(length, 'f', 2, 64)
	st.Set("stroke-dasharray", l, false)
	st.Set("stroke-dashoffset", strconv.FormatFloat(length*(1-progress), 'f', 2, 64), false)
	dom.SetStyle(path, st)
}
