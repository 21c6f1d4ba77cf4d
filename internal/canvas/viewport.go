package canvas

import (
	"strconv"

	"golang.org/x/net/html"

	"github.com/conneroisu/tabcanvas/internal/deferred"
	"github.com/conneroisu/tabcanvas/internal/dom"
)

// RefAttr carries the handle a browser uses to report events about a node.
const RefAttr = "data-tc-ref"

// refs hands out stable string handles for nodes the browser reports on.
type refs struct {
	next   int
	byRef  map[string]*html.Node
	byNode map[*html.Node]string
}

func newRefs() *refs {
	return &refs{byRef: make(map[string]*html.Node), byNode: make(map[*html.Node]string)}
}

func (r *refs) of(n *html.Node) string {
	if ref, ok := r.byNode[n]; ok {
		return ref
	}
	r.next++
	ref := "r" + strconv.Itoa(r.next)
	r.byRef[ref] = n
	r.byNode[n] = ref
	dom.SetAttr(n, RefAttr, ref)
	return ref
}

func (r *refs) node(ref string) *html.Node {
	return r.byRef[ref]
}

// Viewport models the browser window showing the page. Scroll positions,
// element rects and intersection changes are pushed in by the connected
// browser; before one connects it reports a static, motion-enabled window.
type Viewport struct {
	refs      *refs
	reduced   bool
	height    float64
	rects     map[*html.Node]deferred.Rect
	listeners map[int]func()
	nextID    int
	observers map[*observer]struct{}
}

type observer struct {
	v       *Viewport
	targets map[*html.Node]struct{}
	fn      func(*html.Node, bool)
}

func (o *observer) Disconnect() error {
	delete(o.v.observers, o)
	return nil
}

func newViewport(r *refs) *Viewport {
	return &Viewport{
		refs:      r,
		height:    800,
		rects:     make(map[*html.Node]deferred.Rect),
		listeners: make(map[int]func()),
		observers: make(map[*observer]struct{}),
	}
}

func (v *Viewport) ReducedMotion() bool { return v.reduced }

func (v *Viewport) Height() float64 { return v.height }

func (v *Viewport) BoundingRect(n *html.Node) deferred.Rect {
	if r, ok := v.rects[n]; ok {
		return r
	}
	// Unmeasured nodes sit just below the fold.
	return deferred.Rect{Top: v.height, Height: 0}
}

func (v *Viewport) AddScrollListener(fn func()) func() {
	id := v.nextID
	v.nextID++
	v.listeners[id] = fn
	return func() { delete(v.listeners, id) }
}

func (v *Viewport) ObserveIntersection(targets []*html.Node, fn func(*html.Node, bool)) deferred.Observer {
	o := &observer{v: v, targets: make(map[*html.Node]struct{}, len(targets)), fn: fn}
	for _, t := range targets {
		v.refs.of(t)
		o.targets[t] = struct{}{}
	}
	v.observers[o] = struct{}{}
	return o
}

// Listeners returns the number of registered scroll listeners.
func (v *Viewport) Listeners() int { return len(v.listeners) }

// Observers returns the number of live intersection observers.
func (v *Viewport) Observers() int { return len(v.observers) }

func (v *Viewport) scroll(height float64, rects map[string]deferred.Rect) {
	if height > 0 {
		v.height = height
	}
	for ref, r := range rects {
		if n := v.refs.node(ref); n != nil {
			v.rects[n] = r
		}
	}
	for _, fn := range v.listeners {
		fn()
	}
}

func (v *Viewport) intersect(ref string, visible bool) bool {
	n := v.refs.node(ref)
	if n == nil {
		return false
	}
	hit := false
	for o := range v.observers {
		if _, ok := o.targets[n]; ok {
			o.fn(n, visible)
			hit = true
		}
	}
	return hit
}
