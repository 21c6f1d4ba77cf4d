// Package stabilizer keeps foreign host widgets inside panels laid out the
// way the panel needs them, undoing the host's asynchronous style rewrites.
//
// Each watched widget moves through unlocked -> corrected -> locked. A
// contained widget is pinned to the panel width and, once its image has
// loaded, to a fixed pixel height; from then on host mutations on it are
// ignored. A full-bleed widget has the host's width and flex constraints
// cleared so page CSS can stretch it. Corrections triggered by mutations
// are debounced; staged passes run after a panel is attached and after each
// activation. The stabilizer never asks the host to re-measure the window.
package stabilizer

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/net/html"

	"github.com/conneroisu/tabcanvas/internal/dom"
	"github.com/conneroisu/tabcanvas/internal/logging"
	"github.com/conneroisu/tabcanvas/internal/schedule"
)

// WidgetAttr marks foreign widget roots inside a panel.
const WidgetAttr = "data-foreign-widget"

// Mode selects how widgets of a panel are corrected.
type Mode int

const (
	Contained Mode = iota
	FullBleed
)

func (m Mode) String() string {
	if m == FullBleed {
		return "full-bleed"
	}
	return "contained"
}

// State is the per-widget state.
type State int

const (
	Unlocked State = iota
	Corrected
	Locked
)

func (s State) String() string {
	switch s {
	case Corrected:
		return "corrected"
	case Locked:
		return "locked"
	default:
		return "unlocked"
	}
}

// MutationKind is what the host changed on a watched node.
type MutationKind string

const (
	MutationStyle     MutationKind = "style"
	MutationChildList MutationKind = "childList"
)

// Config holds the timing of corrective passes.
type Config struct {
	// QuietPeriod is the debounce window after a host mutation. Every new
	// mutation restarts it.
	QuietPeriod time.Duration `yaml:"quiet_period" mapstructure:"quiet_period"`
	// StagedDelays are the delays of the passes that follow attachment and
	// every activation.
	StagedDelays []time.Duration `yaml:"staged_delays" mapstructure:"staged_delays"`
	// ObservationWindow bounds how long mutations are observed after
	// attachment or activation. Zero observes until teardown.
	ObservationWindow time.Duration `yaml:"observation_window" mapstructure:"observation_window"`
}

// DefaultConfig returns the stock timings.
func DefaultConfig() Config {
	return Config{
		QuietPeriod:       150 * time.Millisecond,
		StagedDelays:      []time.Duration{50 * time.Millisecond, 300 * time.Millisecond, 1200 * time.Millisecond},
		ObservationWindow: 15 * time.Second,
	}
}

// Inline properties written in contained mode.
var containedDecls = []struct{ prop, value string }{
	{"width", "100%"},
	{"max-width", "100%"},
	{"margin-left", "0"},
	{"margin-right", "0"},
}

// Inline properties cleared in full-bleed mode.
var fullBleedProps = []string{
	"width", "max-width", "min-width",
	"flex", "flex-basis", "flex-grow", "flex-shrink",
	"margin-left", "margin-right",
}

// Widget is one watched foreign widget.
type Widget struct {
	node     *html.Node
	panel    *panelWatch
	state    State
	height   int
	debounce schedule.Timer
}

type panelWatch struct {
	node      *html.Node
	mode      Mode
	widgets   []*Widget
	timers    *schedule.Group
	observing bool
	window    schedule.Timer
}

// Stabilizer watches the foreign widgets of attached panels. It is not safe
// for concurrent use: every method and every timer callback must run under
// the page lock.
type Stabilizer struct {
	sched    schedule.Scheduler
	cfg      Config
	logger   logging.Logger
	panels   map[*html.Node]*panelWatch
	onChange func(panel *html.Node)
}

// Option configures a Stabilizer.
type Option func(*Stabilizer)

// WithChangeHandler registers fn to be called after a pass wrote to a
// panel's markup.
func WithChangeHandler(fn func(panel *html.Node)) Option {
	return func(s *Stabilizer) { s.onChange = fn }
}

// New returns a stabilizer that schedules through sched.
func New(sched schedule.Scheduler, cfg Config, logger logging.Logger, opts ...Option) *Stabilizer {
	if logger == nil {
		logger = logging.NewTestLogger()
	}
	if cfg.QuietPeriod <= 0 {
		cfg.QuietPeriod = DefaultConfig().QuietPeriod
	}
	s := &Stabilizer{
		sched:  sched,
		cfg:    cfg,
		logger: logger.WithComponent("stabilizer"),
		panels: make(map[*html.Node]*panelWatch),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach starts watching the foreign widgets inside panel and schedules the
// staged passes. Attaching an already attached panel rescans its widgets.
func (s *Stabilizer) Attach(panel *html.Node, mode Mode) {
	pw, ok := s.panels[panel]
	if !ok {
		pw = &panelWatch{node: panel, mode: mode, timers: schedule.NewGroup(s.sched)}
		s.panels[panel] = pw
	}
	pw.mode = mode

	known := make(map[*html.Node]*Widget, len(pw.widgets))
	for _, w := range pw.widgets {
		known[w.node] = w
	}
	pw.widgets = pw.widgets[:0]
	for _, n := range dom.FindAll(panel, dom.ByAttrValue(WidgetAttr, "true")) {
		if w, ok := known[n]; ok {
			pw.widgets = append(pw.widgets, w)
			continue
		}
		pw.widgets = append(pw.widgets, &Widget{node: n, panel: pw})
	}

	s.logger.Debug(context.Background(), "Panel attached",
		"mode", mode.String(), "widgets", len(pw.widgets))
	s.startWindow(pw)
}

// Activated re-arms observation and schedules the staged passes for a panel
// that just became active.
func (s *Stabilizer) Activated(panel *html.Node) {
	if pw, ok := s.panels[panel]; ok {
		s.startWindow(pw)
	}
}

func (s *Stabilizer) startWindow(pw *panelWatch) {
	pw.observing = true
	for _, d := range s.cfg.StagedDelays {
		pw.timers.AfterFunc(d, func() { s.pass(pw) })
	}
	if pw.window != nil {
		pw.window.Stop()
		pw.window = nil
	}
	if s.cfg.ObservationWindow > 0 {
		pw.window = pw.timers.AfterFunc(s.cfg.ObservationWindow, func() {
			pw.observing = false
			pw.window = nil
		})
	}
}

// Pass runs one corrective pass over panel immediately.
func (s *Stabilizer) Pass(panel *html.Node) {
	if pw, ok := s.panels[panel]; ok {
		s.pass(pw)
	}
}

func (s *Stabilizer) pass(pw *panelWatch) {
	changed := false
	for _, w := range pw.widgets {
		if s.correct(w) {
			changed = true
		}
	}
	if changed && s.onChange != nil {
		s.onChange(pw.node)
	}
}

// correct applies the panel's mode to w and reports whether it wrote.
func (s *Stabilizer) correct(w *Widget) bool {
	if w.state == Locked {
		return false
	}
	var wrote bool
	switch w.panel.mode {
	case FullBleed:
		wrote = clearConstraints(w.node)
	default:
		wrote = contain(w.node)
	}
	w.state = Corrected
	return wrote
}

// Mutation reports a host mutation on target. It returns true when a
// corrective pass was (re)scheduled.
func (s *Stabilizer) Mutation(target *html.Node, kind MutationKind) bool {
	w := s.widgetFor(target)
	if w == nil || !w.panel.observing {
		return false
	}
	if w.state == Locked {
		return false
	}
	if w.settled() {
		return false
	}

	w.state = Unlocked
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = w.panel.timers.AfterFunc(s.cfg.QuietPeriod, func() {
		w.debounce = nil
		if s.correct(w) && s.onChange != nil {
			s.onChange(w.panel.node)
		}
	})
	s.logger.Debug(context.Background(), "Corrective pass scheduled", "kind", string(kind))
	return true
}

// settled reports whether the widget already matches its mode.
func (w *Widget) settled() bool {
	if w.panel.mode == FullBleed {
		st := dom.GetStyle(w.node)
		for _, p := range fullBleedProps {
			if _, _, ok := st.Get(p); ok {
				return false
			}
		}
		return true
	}
	return isContained(w.node)
}

// ImageLoaded locks the height of the contained widget holding target. The
// lock is applied once; later loads, for instance a responsive image swap,
// keep the first height.
func (s *Stabilizer) ImageLoaded(target *html.Node, height int) bool {
	w := s.widgetFor(target)
	if w == nil || w.panel.mode != Contained || w.state == Locked || height <= 0 {
		return false
	}
	if w.debounce != nil {
		w.debounce.Stop()
		w.debounce = nil
	}

	contain(w.node)
	st := dom.GetStyle(w.node)
	px := strconv.Itoa(height) + "px"
	st.Set("height", px, true)
	st.Set("min-height", px, true)
	st.Set("max-height", px, true)
	dom.SetStyle(w.node, st)

	w.state = Locked
	w.height = height
	s.logger.Debug(context.Background(), "Widget height locked", "height", height)
	if s.onChange != nil {
		s.onChange(w.panel.node)
	}
	return true
}

// StateOf returns the state of the widget rooted at node.
func (s *Stabilizer) StateOf(node *html.Node) (State, bool) {
	for _, pw := range s.panels {
		for _, w := range pw.widgets {
			if w.node == node {
				return w.state, true
			}
		}
	}
	return Unlocked, false
}

// Observing reports whether mutations on panel are still being observed.
func (s *Stabilizer) Observing(panel *html.Node) bool {
	pw, ok := s.panels[panel]
	return ok && pw.observing
}

// Detach stops watching panel and cancels its pending passes.
func (s *Stabilizer) Detach(panel *html.Node) {
	pw, ok := s.panels[panel]
	if !ok {
		return
	}
	pw.timers.StopAll()
	pw.observing = false
	delete(s.panels, panel)
}

// Close detaches every panel.
func (s *Stabilizer) Close() {
	for panel := range s.panels {
		s.Detach(panel)
	}
}

func (s *Stabilizer) widgetFor(target *html.Node) *Widget {
	for n := target; n != nil; n = n.Parent {
		if n.Type != html.ElementNode || !dom.IsTrue(n, WidgetAttr) {
			continue
		}
		for _, pw := range s.panels {
			for _, w := range pw.widgets {
				if w.node == n {
					return w
				}
			}
		}
	}
	return nil
}

func isContained(n *html.Node) bool {
	st := dom.GetStyle(n)
	for _, d := range containedDecls {
		v, important, ok := st.Get(d.prop)
		if !ok || !important || v != d.value {
			return false
		}
	}
	return true
}

// contain pins n to the panel width. Images inside get cover fitting; an
// existing object-position is kept as the focal point.
func contain(n *html.Node) bool {
	wrote := false
	if !isContained(n) {
		st := dom.GetStyle(n)
		for _, d := range containedDecls {
			st.Set(d.prop, d.value, true)
		}
		dom.SetStyle(n, st)
		wrote = true
	}
	for _, img := range dom.FindAll(n, dom.ByTag("img")) {
		st := dom.GetStyle(img)
		if v, important, ok := st.Get("width"); ok && important && v == "100%" {
			continue
		}
		st.Set("width", "100%", true)
		st.Set("object-fit", "cover", true)
		dom.SetStyle(img, st)
		wrote = true
	}
	return wrote
}

func clearConstraints(n *html.Node) bool {
	st := dom.GetStyle(n)
	if !st.Remove(fullBleedProps...) {
		return false
	}
	dom.SetStyle(n, st)
	return true
}
