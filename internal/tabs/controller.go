// Package tabs implements the tab state machine over the tab widget markup.
//
// The controller owns no markup of its own: it is built from an existing
// `.tc-tabs` element whose tab list and panel region pair children by
// position, and it keeps the ARIA attributes, tabindex and active classes of
// that markup consistent with a single active index. Every activation path
// (click, keyboard, deep link) goes through Activate.
package tabs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/gosimple/slug"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"

	"github.com/conneroisu/tabcanvas/internal/dom"
	cerrors "github.com/conneroisu/tabcanvas/internal/errors"
)

// Markup contract.
const (
	RootClass        = "tc-tabs"
	TabClass         = "tc-tab"
	PanelsClass      = "tc-panels"
	PanelClass       = "tc-panel"
	ActiveTabClass   = "tc-tab--active"
	ActivePanelClass = "tc-panel--active"

	AttrOrientation = "data-orientation"
	AttrLazy        = "data-lazy"
	AttrLazyLoaded  = "data-lazy-loaded"
	AttrPlaceholder = "data-placeholder"
	AttrBanner      = "data-fullwidth-banner"
	AttrAnchor      = "data-anchor"
	AttrLabel       = "data-label"
)

// Orientation decides which arrow keys move between tabs.
type Orientation string

const (
	Horizontal Orientation = "horizontal"
	Vertical   Orientation = "vertical"
)

// BannerMode selects how foreign banner widgets in a panel are laid out.
type BannerMode string

const (
	BannerContained BannerMode = "contained"
	BannerFull      BannerMode = "full"
)

// Panel is one tab and its panel.
type Panel struct {
	Index       int
	Tab         *html.Node
	Panel       *html.Node
	Label       string
	Anchor      string
	Lazy        bool
	LazyLoaded  bool
	Placeholder bool
	BannerMode  BannerMode
}

// TabChangeEvent is emitted after the active tab changed.
type TabChangeEvent struct {
	Index int
	Tab   *html.Node
	Panel *html.Node
}

// LazyLoadEvent is emitted the first time a lazy panel becomes active.
type LazyLoadEvent struct {
	TabIndex int
}

// Option configures a Controller.
type Option func(*Controller)

// WithTabChangeHandler registers fn before the initial state is applied.
func WithTabChangeHandler(fn func(TabChangeEvent)) Option {
	return func(c *Controller) { c.onChange = append(c.onChange, fn) }
}

// WithLazyLoadHandler registers fn before the initial state is applied, so
// it also sees the load of an initially active lazy panel.
func WithLazyLoadHandler(fn func(LazyLoadEvent)) Option {
	return func(c *Controller) { c.onLazy = append(c.onLazy, fn) }
}

// WithFocusHandler registers fn to be told where keyboard focus moved.
func WithFocusHandler(fn func(index int)) Option {
	return func(c *Controller) { c.onFocus = append(c.onFocus, fn) }
}

// Controller is the tab state machine. It is not safe for concurrent use;
// the page serialises calls.
type Controller struct {
	root        *html.Node
	orientation Orientation
	panels      []*Panel
	active      int
	focused     int

	onChange []func(TabChangeEvent)
	onLazy   []func(LazyLoadEvent)
	onFocus  []func(int)
}

// New builds a controller from the widget rooted at (or inside) root.
func New(root *html.Node, opts ...Option) (*Controller, error) {
	widget := dom.Closest(root, dom.ByClass(RootClass))
	if widget == nil {
		widget = dom.FindFirst(root, dom.ByClass(RootClass))
	}
	if widget == nil {
		return nil, cerrors.NewValidationError("ERR_TABS_ROOT", "no ."+RootClass+" element found")
	}

	tablist := dom.FindFirst(widget, dom.ByAttrValue("role", "tablist"))
	region := dom.FindFirst(widget, dom.ByClass(PanelsClass))
	if tablist == nil || region == nil {
		return nil, cerrors.NewValidationError("ERR_TABS_STRUCTURE", "tab widget needs a [role=tablist] and a ."+PanelsClass+" region")
	}

	tabNodes := dom.ElementChildren(tablist)
	panelNodes := dom.ElementChildren(region)
	if len(tabNodes) == 0 {
		return nil, cerrors.NewValidationError("ERR_TABS_EMPTY", "tab list has no tabs")
	}
	if len(tabNodes) != len(panelNodes) {
		return nil, cerrors.NewValidationError("ERR_TABS_MISMATCH",
			fmt.Sprintf("%d tabs but %d panels", len(tabNodes), len(panelNodes)))
	}

	c := &Controller{root: widget, orientation: Horizontal, active: -1, focused: -1}
	if strings.EqualFold(dom.GetAttr(widget, AttrOrientation), string(Vertical)) {
		c.orientation = Vertical
	}
	for _, opt := range opts {
		opt(c)
	}

	baseID := dom.GetAttr(widget, "id")
	if baseID == "" {
		baseID = "tc"
	}
	anchors := make(map[string]int)
	marked := -1

	for i := range tabNodes {
		tab, panel := tabNodes[i], panelNodes[i]
		p := &Panel{
			Index:       i,
			Tab:         tab,
			Panel:       panel,
			Label:       tabLabel(tab),
			Lazy:        dom.IsTrue(panel, AttrLazy),
			LazyLoaded:  dom.IsTrue(panel, AttrLazyLoaded),
			Placeholder: dom.IsTrue(tab, AttrPlaceholder) || dom.IsTrue(panel, AttrPlaceholder),
			BannerMode:  BannerContained,
		}
		if strings.EqualFold(dom.GetAttr(panel, AttrBanner), string(BannerFull)) {
			p.BannerMode = BannerFull
		}
		p.Anchor = uniqueAnchor(p.Label, i, anchors)

		wireAccessibility(p, baseID)

		if marked < 0 && (dom.GetAttr(tab, "aria-selected") == "true" ||
			dom.HasClass(tab, ActiveTabClass) || dom.HasClass(panel, ActivePanelClass)) {
			marked = i
		}
		c.panels = append(c.panels, p)
	}

	c.active = c.initialIndex(marked)
	c.focused = c.active
	c.applyState()

	if p := c.panels[c.active]; !p.Placeholder {
		c.markLoaded(p)
	}
	return c, nil
}

func tabLabel(tab *html.Node) string {
	if l := strings.TrimSpace(dom.GetAttr(tab, AttrLabel)); l != "" {
		return l
	}
	return strings.Join(strings.Fields(dom.TextContent(tab)), " ")
}

func uniqueAnchor(label string, index int, seen map[string]int) string {
	base := slug.Make(label)
	if base == "" {
		base = "tab-" + strconv.Itoa(index+1)
	}
	anchor := base
	for n := 2; ; n++ {
		if _, taken := seen[anchor]; !taken {
			break
		}
		anchor = base + "-" + strconv.Itoa(n)
	}
	seen[anchor] = index
	return anchor
}

func wireAccessibility(p *Panel, baseID string) {
	tabID := dom.GetAttr(p.Tab, "id")
	if tabID == "" {
		tabID = baseID + "-tab-" + strconv.Itoa(p.Index)
		dom.SetAttr(p.Tab, "id", tabID)
	}
	panelID := dom.GetAttr(p.Panel, "id")
	if panelID == "" {
		panelID = baseID + "-panel-" + strconv.Itoa(p.Index)
		dom.SetAttr(p.Panel, "id", panelID)
	}

	dom.SetAttr(p.Tab, "role", "tab")
	dom.AddClass(p.Tab, TabClass)
	dom.SetAttr(p.Tab, "aria-controls", panelID)
	dom.SetAttr(p.Tab, AttrAnchor, p.Anchor)
	dom.SetAttr(p.Panel, "role", "tabpanel")
	dom.AddClass(p.Panel, PanelClass)
	dom.SetAttr(p.Panel, "aria-labelledby", tabID)
	if p.Placeholder {
		dom.SetAttr(p.Tab, "aria-disabled", "true")
	}
}

func (c *Controller) initialIndex(marked int) int {
	if marked >= 0 && !c.panels[marked].Placeholder {
		return marked
	}
	if first := c.firstEnabled(); first >= 0 {
		return first
	}
	return 0
}

func (c *Controller) applyState() {
	for i, p := range c.panels {
		on := i == c.active
		dom.SetAttr(p.Tab, "aria-selected", strconv.FormatBool(on))
		if on {
			dom.SetAttr(p.Tab, "tabindex", "0")
			dom.SetAttr(p.Panel, "aria-hidden", "false")
			dom.RemoveAttr(p.Panel, "hidden")
		} else {
			dom.SetAttr(p.Tab, "tabindex", "-1")
			dom.SetAttr(p.Panel, "aria-hidden", "true")
			dom.SetAttr(p.Panel, "hidden", "")
		}
		dom.ToggleClass(p.Tab, ActiveTabClass, on)
		dom.ToggleClass(p.Panel, ActivePanelClass, on)
	}
}

func (c *Controller) markLoaded(p *Panel) {
	if !p.Lazy || p.LazyLoaded {
		return
	}
	p.LazyLoaded = true
	dom.SetAttr(p.Panel, AttrLazyLoaded, "true")
	ev := LazyLoadEvent{TabIndex: p.Index}
	for _, fn := range c.onLazy {
		fn(ev)
	}
}

// Activate makes index the active tab. It returns false, changing nothing,
// for an index out of range or a placeholder tab. Activating the tab that is
// already active returns true without emitting events.
func (c *Controller) Activate(index int, focus bool) bool {
	if index < 0 || index >= len(c.panels) {
		return false
	}
	p := c.panels[index]
	if p.Placeholder {
		return false
	}
	if focus {
		c.setFocus(index)
	}
	if index == c.active {
		return true
	}

	c.active = index
	c.applyState()
	c.markLoaded(p)

	ev := TabChangeEvent{Index: index, Tab: p.Tab, Panel: p.Panel}
	for _, fn := range c.onChange {
		fn(ev)
	}
	return true
}

func (c *Controller) setFocus(index int) {
	c.focused = index
	for _, fn := range c.onFocus {
		fn(index)
	}
}

// HandleClick activates the clicked tab and focuses it.
func (c *Controller) HandleClick(index int) bool {
	return c.Activate(index, true)
}

// HandleKey applies the keyboard contract and reports whether key was used.
// Arrow keys move focus (with wraparound, skipping placeholders); Enter and
// Space activate the focused tab.
func (c *Controller) HandleKey(key string) bool {
	next, prev := "ArrowRight", "ArrowLeft"
	if c.orientation == Vertical {
		next, prev = "ArrowDown", "ArrowUp"
	}

	switch key {
	case next:
		return c.moveFocus(1)
	case prev:
		return c.moveFocus(-1)
	case "Home":
		if i := c.firstEnabled(); i >= 0 {
			c.setFocus(i)
			return true
		}
		return false
	case "End":
		if i := c.lastEnabled(); i >= 0 {
			c.setFocus(i)
			return true
		}
		return false
	case "Enter", " ", "Space", "Spacebar":
		return c.Activate(c.currentFocus(), true)
	default:
		return false
	}
}

func (c *Controller) currentFocus() int {
	if c.focused >= 0 && c.focused < len(c.panels) {
		return c.focused
	}
	return c.active
}

// moveFocus walks step by step from the focused tab, wrapping around and
// skipping placeholders for at most one full cycle.
func (c *Controller) moveFocus(step int) bool {
	n := len(c.panels)
	i := c.currentFocus()
	for tries := 0; tries < n; tries++ {
		i = ((i+step)%n + n) % n
		if !c.panels[i].Placeholder {
			c.setFocus(i)
			return true
		}
	}
	return false
}

func (c *Controller) firstEnabled() int {
	for i, p := range c.panels {
		if !p.Placeholder {
			return i
		}
	}
	return -1
}

func (c *Controller) lastEnabled() int {
	for i := len(c.panels) - 1; i >= 0; i-- {
		if !c.panels[i].Placeholder {
			return i
		}
	}
	return -1
}

// OnTabChange registers a tab-change handler.
func (c *Controller) OnTabChange(fn func(TabChangeEvent)) {
	c.onChange = append(c.onChange, fn)
}

// OnLazyLoad registers a lazy-load handler.
func (c *Controller) OnLazyLoad(fn func(LazyLoadEvent)) {
	c.onLazy = append(c.onLazy, fn)
}

// Active returns the active index.
func (c *Controller) Active() int { return c.active }

// Focused returns the index holding keyboard focus.
func (c *Controller) Focused() int { return c.currentFocus() }

// Len returns the number of tabs.
func (c *Controller) Len() int { return len(c.panels) }

// Orientation returns the declared orientation.
func (c *Controller) Orientation() Orientation { return c.orientation }

// Root returns the widget element.
func (c *Controller) Root() *html.Node { return c.root }

// Panel returns a copy of the panel at index.
func (c *Controller) Panel(index int) (Panel, bool) {
	if index < 0 || index >= len(c.panels) {
		return Panel{}, false
	}
	return *c.panels[index], true
}

// Panels returns copies of all panels in order.
func (c *Controller) Panels() []Panel {
	out := make([]Panel, len(c.panels))
	for i, p := range c.panels {
		out[i] = *p
	}
	return out
}

var folder = cases.Fold()

// NormalizeLabel case-folds s, trims it and replaces whitespace runs with a
// single dash.
func NormalizeLabel(s string) string {
	return strings.Join(strings.Fields(folder.String(s)), "-")
}

// FindTabByLabel returns the index of the tab whose normalized label equals
// the normalized text, or -1.
func (c *Controller) FindTabByLabel(text string) int {
	want := NormalizeLabel(text)
	if want == "" {
		return -1
	}
	for i, p := range c.panels {
		if NormalizeLabel(p.Label) == want {
			return i
		}
	}
	return -1
}

// FindTabByAnchor returns the index of the tab with the given deep-link
// anchor, or -1.
func (c *Controller) FindTabByAnchor(anchor string) int {
	anchor = strings.TrimPrefix(strings.TrimSpace(anchor), "#")
	for i, p := range c.panels {
		if p.Anchor == anchor {
			return i
		}
	}
	return -1
}

// Suggest returns the label closest to text, for "did you mean" messages.
// It returns "" when nothing is reasonably close.
func (c *Controller) Suggest(text string) string {
	want := NormalizeLabel(text)
	if want == "" {
		return ""
	}
	best, bestDist := "", -1
	for _, p := range c.panels {
		if p.Placeholder {
			continue
		}
		d := levenshtein.ComputeDistance(want, NormalizeLabel(p.Label))
		if bestDist < 0 || d < bestDist {
			best, bestDist = p.Label, d
		}
	}
	limit := len([]rune(want)) / 3
	if limit < 2 {
		limit = 2
	}
	if bestDist < 0 || bestDist > limit {
		return ""
	}
	return best
}

// ActivateByLabel resolves text as a label, then as an anchor, and
// activates the match. On a miss it returns a suggestion when one exists.
func (c *Controller) ActivateByLabel(text string, focus bool) (bool, string) {
	i := c.FindTabByLabel(text)
	if i < 0 {
		i = c.FindTabByAnchor(text)
	}
	if i < 0 {
		return false, c.Suggest(text)
	}
	return c.Activate(i, focus), ""
}
