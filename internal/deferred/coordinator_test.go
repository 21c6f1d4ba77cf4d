package deferred

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/conneroisu/tabcanvas/internal/diagram"
	"github.com/conneroisu/tabcanvas/internal/dom"
	"github.com/conneroisu/tabcanvas/internal/renderer"
)

type fakeObserver struct {
	targets      []*html.Node
	fn           func(*html.Node, bool)
	disconnected int
	err          error
}

func (o *fakeObserver) Disconnect() error {
	o.disconnected++
	return o.err
}

type fakeViewport struct {
	reduced   bool
	height    float64
	rects     map[*html.Node]Rect
	listeners map[int]func()
	nextID    int
	observers []*fakeObserver
}

func newFakeViewport(reduced bool) *fakeViewport {
	return &fakeViewport{reduced: reduced, height: 800, rects: map[*html.Node]Rect{}, listeners: map[int]func(){}}
}

func (v *fakeViewport) ReducedMotion() bool { return v.reduced }
func (v *fakeViewport) Height() float64 { return v.height }
func (v *fakeViewport) BoundingRect(n *html.Node) Rect { return v.rects[n] }

func (v *fakeViewport) AddScrollListener(fn func()) func() {
	id := v.nextID
	v.nextID++
	v.listeners[id] = fn
	return func() { delete(v.listeners, id) }
}

func (v *fakeViewport) ObserveIntersection(targets []*html.Node, fn func(*html.Node, bool)) Observer {
	o := &fakeObserver{targets: targets, fn: fn}
	v.observers = append(v.observers, o)
	return o
}

func (v *fakeViewport) scroll() {
	for _, fn := range v.listeners {
		fn()
	}
}

func page(t *testing.T, markup string) *html.Node {
	t.Helper()
	root := &html.Node{Type: html.ElementNode, Data: "main"}
	require.NoError(t, dom.SetInnerHTML(root, markup))
	return root
}

func renderUnit(t *testing.T, unit renderer.ContentUnit) renderer.RenderResult {
	t.Helper()
	return renderer.New(renderer.Options{}).Render(context.Background(), unit)
}

func TestRun_Diagram(t *testing.T) {
	res := renderUnit(t, renderer.ContentUnit{Type: renderer.TypeDiagram, ID: "flow", Payload: "graph TD\nA --> B"})
	root := page(t, res.HTML)
	rt := diagram.NewRuntime()
	c := New(Options{Runtime: rt})

	_, err := rt.Engine()
	require.ErrorIs(t, err, diagram.ErrNotInitialized)

	td, err := c.Run(context.Background(), root, res.PostRender, nil)
	require.NoError(t, err)
	require.NoError(t, td())

	el := dom.FindByID(root, res.PostRender.(renderer.DiagramJob).ElementID)
	require.NotNil(t, el)
	assert.Equal(t, "rendered", dom.GetAttr(el, DiagramStateAttr))
	assert.NotNil(t, dom.FindFirst(el, dom.ByTag("svg")))
	assert.Nil(t, dom.FindFirst(el, dom.ByClass("tc-diagram-loading")))

	_, err = rt.Engine()
	assert.NoError(t, err)

	before := dom.InnerHTML(el)
	_, err = c.Run(context.Background(), root, res.PostRender, nil)
	require.NoError(t, err)
	assert.Equal(t, before, dom.InnerHTML(el))
}

func TestRun_DiagramSyntaxError(t *testing.T) {
	res := renderUnit(t, renderer.ContentUnit{Type: renderer.TypeDiagram, ID: "bad", Payload: "graph TD\nA ~> <b>B</b>"})
	root := page(t, res.HTML)
	c := New(Options{})

	_, err := c.Run(context.Background(), root, res.PostRender, nil)
	require.NoError(t, err)

	el := dom.FindByID(root, res.PostRender.(renderer.DiagramJob).ElementID)
	assert.Equal(t, "error", dom.GetAttr(el, DiagramStateAttr))
	panel := dom.FindFirst(el, dom.ByClass("tc-render-error"))
	require.NotNil(t, panel)
	assert.Equal(t, "alert", dom.GetAttr(panel, "role"))
	details := dom.FindFirst(panel, dom.ByTag("details"))
	require.NotNil(t, details)
	assert.Contains(t, dom.TextContent(details), "syntax error on line 2")
	assert.Nil(t, dom.FindFirst(el, dom.ByTag("b")))
}

func TestRun_DiagramMissingPlaceholder(t *testing.T) {
	c := New(Options{})
	_, err := c.Run(context.Background(), page(t, "<p>x</p>"), renderer.DiagramJob{ElementID: "nope"}, nil)
	assert.Error(t, err)
}

func TestRun_FeedJobIsNoop(t *testing.T) {
	c := New(Options{})
	td, err := c.Run(context.Background(), page(t, ""), renderer.FeedJob{ContainerID: "x"}, nil)
	require.NoError(t, err)
	assert.NoError(t, td())
}

func TestUpdateFeed(t *testing.T) {
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	r := renderer.New(renderer.Options{Now: func() time.Time { return now }})
	res := r.Render(context.Background(), renderer.ContentUnit{Type: renderer.TypeFeed, ID: "news"})
	root := page(t, res.HTML)
	c := New(Options{Renderer: r})

	job := res.PostRender.(renderer.FeedJob)
	err := c.UpdateFeed(context.Background(), root, job, []renderer.FeedItem{
		{Title: "<i>Hello</i>", PublishedDate: now.Add(-time.Hour)},
	})
	require.NoError(t, err)

	container := dom.FindByID(root, job.ContainerID)
	assert.Equal(t, "ready", dom.GetAttr(container, FeedStateAttr))
	assert.False(t, dom.HasAttr(container, "aria-busy"))
	assert.Contains(t, dom.InnerHTML(container), "&lt;i&gt;Hello&lt;/i&gt;")
	assert.Nil(t, dom.FindFirst(container, dom.ByClass("tc-feed-loading")))

	assert.Error(t, c.UpdateFeed(context.Background(), root, renderer.FeedJob{ContainerID: "missing"}, nil))
}

func landingPage(t *testing.T) (*html.Node, renderer.LandingJob) {
	t.Helper()
	res := renderUnit(t, renderer.ContentUnit{Type: renderer.TypeLanding, ID: "home", Landing: &renderer.LandingConfig{
		Heading:  "Welcome",
		Steps:    []renderer.LandingStep{{Title: "a"}, {Title: "b"}},
		EndLabel: "fin",
	}})
	return page(t, res.HTML), res.PostRender.(renderer.LandingJob)
}

func TestRun_LandingReducedMotion(t *testing.T) {
	root, job := landingPage(t)
	vp := newFakeViewport(true)
	c := New(Options{})

	td, err := c.Run(context.Background(), root, job, vp)
	require.NoError(t, err)

	assert.Empty(t, vp.listeners)
	assert.Empty(t, vp.observers)

	for _, cls := range []string{"tc-landing-heading", "tc-landing-end", "tc-landing-card"} {
		for _, n := range dom.FindAll(root, dom.ByClass(cls)) {
			assert.True(t, dom.HasClass(n, RevealedClass), cls)
		}
	}
	path := dom.FindFirst(root, dom.ByClass("tc-landing-path"))
	off, _, ok := dom.GetStyle(path).Get("stroke-dashoffset")
	require.True(t, ok)
	assert.Equal(t, "0.00", off)
	assert.NoError(t, td())
}

func TestRun_LandingAnimated(t *testing.T) {
	root, job := landingPage(t)
	vp := newFakeViewport(false)
	c := New(Options{})
	section := dom.FindByID(root, job.SectionID)
	path := dom.FindFirst(root, dom.ByClass("tc-landing-path"))

	vp.rects[section] = Rect{Top: 800, Height: 800}
	td, err := c.Run(context.Background(), root, job, vp)
	require.NoError(t, err)

	length := dom.GetAttr(path, PathLengthAttr)
	require.NotEmpty(t, length)
	off, _, _ := dom.GetStyle(path).Get("stroke-dashoffset")
	assert.Equal(t, length, off, "not yet scrolled into view")

	vp.rects[section] = Rect{Top: 0, Height: 800}
	vp.scroll()
	off, _, _ = dom.GetStyle(path).Get("stroke-dashoffset")
	assert.NotEqual(t, length, off)
	assert.NotEqual(t, "0.00", off)

	require.Len(t, vp.observers, 2)
	heading := dom.FindFirst(root, dom.ByClass("tc-landing-heading"))
	card := dom.FindFirst(root, dom.ByClass("tc-landing-card"))

	vp.observers[0].fn(heading, true)
	vp.observers[0].fn(heading, false)
	assert.True(t, dom.HasClass(heading, RevealedClass), "markers stay revealed")

	vp.observers[1].fn(card, true)
	assert.True(t, dom.HasClass(card, RevealedClass))
	vp.observers[1].fn(card, false)
	assert.False(t, dom.HasClass(card, RevealedClass), "cards toggle")

	again, err := c.Run(context.Background(), root, job, vp)
	require.NoError(t, err)
	require.NoError(t, again())
	assert.Len(t, vp.listeners, 1, "second run does not wire twice")

	vp.observers[1].err = errors.New("already gone")
	err = td()
	assert.ErrorContains(t, err, "already gone")
	assert.Empty(t, vp.listeners)
	assert.Equal(t, 1, vp.observers[0].disconnected)

	assert.ErrorContains(t, td(), "already gone")
	assert.Equal(t, 1, vp.observers[0].disconnected, "teardown is idempotent")
	assert.False(t, dom.HasAttr(section, LandingStateAttr))
}

func TestScrollProgress(t *testing.T) {
	assert.Equal(t, 0.0, ScrollProgress(Rect{Top: 1000, Height: 500}, 800))
	assert.Equal(t, 1.0, ScrollProgress(Rect{Top: -2000, Height: 500}, 800))
	assert.InDelta(t, 0.5, ScrollProgress(Rect{Top: 150, Height: 500}, 800), 1e-9)
	assert.Equal(t, 1.0, ScrollProgress(Rect{}, 0))
}

func TestPathLength(t *testing.T) {
	tests := []struct {
		d    string
		want float64
	}{
		{"M 0 0 L 3 4", 5},
		{"M0,0 H10 V10 Z", 10 + 10 + 14.142135},
		{"m 1 1 l 3 4 h -3", 5 + 3},
		{"M 0 0 L 1 0 2 0", 2},
		{"M 0 0 C 0 0 10 0 10 0", 10},
		{"M 0 0 Q 5 0 10 0", 10},
		{"M 1e1 0 L 20 0", 10},
	}
	for _, tt := range tests {
		t.Run(tt.d, func(t *testing.T) {
			got, err := PathLength(tt.d)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.01)
		})
	}
}

func TestPathLength_Errors(t *testing.T) {
	for _, d := range []string{"0 0", "M 0", "M 0 0 A 1 1 0 0 0 2 2", "M 0 0 Z 3"} {
		_, err := PathLength(d)
		assert.Error(t, err, d)
	}
}

func TestPathLength_LandingPath(t *testing.T) {
	d, _ := renderer.LandingPath(3)
	got, err := PathLength(d)
	require.NoError(t, err)
	assert.Greater(t, got, 880.0)
	assert.False(t, strings.Contains(d, "NaN"))
}
