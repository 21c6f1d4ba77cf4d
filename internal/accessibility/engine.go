// Package accessibility audits rendered canvases for ARIA and WCAG issues
// specific to the tab widget and the content it embeds.
package accessibility

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/conneroisu/tabcanvas/internal/dom"
	"github.com/conneroisu/tabcanvas/internal/logging"
)

type check func(root *html.Node) []finding

type finding struct {
	node    *html.Node
	message string
}

// Engine runs the rule set over a page tree.
type Engine struct {
	rules  []Rule
	checks map[string]check
	logger logging.Logger
}

// NewEngine creates an engine with the default rules.
func NewEngine(logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewTestLogger()
	}
	e := &Engine{
		checks: make(map[string]check),
		logger: logger.WithComponent("accessibility"),
	}
	e.loadDefaultRules()
	return e
}

// Rules returns the rules in evaluation order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

func (e *Engine) register(rule Rule, fn check) {
	e.rules = append(e.rules, rule)
	e.checks[rule.ID] = fn
}

func (e *Engine) loadDefaultRules() {
	e.register(Rule{
		ID:          "tablist-has-tabs",
		Description: "A tablist must own at least one tab",
		Impact:      ImpactCritical,
		WCAG:        WCAG{Level: WCAGLevelA, Criteria: Criteria1_3_1},
		Suggestion:  `Place role="tab" elements directly inside the role="tablist" element`,
	}, checkTablistHasTabs)
	e.register(Rule{
		ID:          "tab-single-selected",
		Description: "Exactly one tab per tablist is selected",
		Impact:      ImpactSerious,
		WCAG:        WCAG{Level: WCAGLevelA, Criteria: Criteria4_1_2},
		Suggestion:  `Set aria-selected="true" on the active tab and "false" on all others`,
	}, checkSingleSelected)
	e.register(Rule{
		ID:          "tab-has-name",
		Description: "Tabs must have an accessible name",
		Impact:      ImpactCritical,
		WCAG:        WCAG{Level: WCAGLevelA, Criteria: Criteria4_1_2},
		Suggestion:  "Give the tab visible text or an aria-label",
	}, checkTabNames)
	e.register(Rule{
		ID:          "tab-controls-panel",
		Description: "Tabs must reference an existing tabpanel with aria-controls",
		Impact:      ImpactSerious,
		WCAG:        WCAG{Level: WCAGLevelA, Criteria: Criteria1_3_1},
		Suggestion:  "Point aria-controls at the id of the tab's panel",
	}, checkTabControls)
	e.register(Rule{
		ID:          "tabpanel-labelledby",
		Description: "Tab panels must be labelled by their tab",
		Impact:      ImpactModerate,
		WCAG:        WCAG{Level: WCAGLevelA, Criteria: Criteria1_3_1},
		Suggestion:  "Point aria-labelledby at the id of the owning tab",
	}, checkPanelLabels)
	e.register(Rule{
		ID:          "tab-selection-visibility",
		Description: "Only the selected tab's panel is visible",
		Impact:      ImpactSerious,
		WCAG:        WCAG{Level: WCAGLevelA, Criteria: Criteria4_1_2},
		Suggestion:  `Hide inactive panels with aria-hidden="true"`,
	}, checkSelectionVisibility)
	e.register(Rule{
		ID:          "tab-roving-tabindex",
		Description: "Only the selected tab is in the tab order",
		Impact:      ImpactModerate,
		WCAG:        WCAG{Level: WCAGLevelA, Criteria: Criteria2_1_1},
		Suggestion:  `Use tabindex="0" on the selected tab and "-1" on the rest`,
	}, checkRovingTabindex)
	e.register(Rule{
		ID:          "frame-title",
		Description: "Frames must have a title",
		Impact:      ImpactSerious,
		WCAG:        WCAG{Level: WCAGLevelA, Criteria: Criteria4_1_2},
		Suggestion:  "Add a title attribute describing the embedded content",
	}, checkFrameTitles)
	e.register(Rule{
		ID:          "missing-alt-text",
		Description: "Images must have alternative text",
		Impact:      ImpactCritical,
		WCAG:        WCAG{Level: WCAGLevelA, Criteria: Criteria1_1_1},
		Suggestion:  `Add alt="" for decorative images or a description otherwise`,
	}, checkImageAlt)
	e.register(Rule{
		ID:          "duplicate-id",
		Description: "IDs must be unique",
		Impact:      ImpactSerious,
		WCAG:        WCAG{Level: WCAGLevelA, Criteria: Criteria4_1_1},
		Suggestion:  "Rename one of the elements sharing the id",
	}, checkDuplicateIDs)
}

// AnalyzeMarkup parses markup and audits it.
func (e *Engine) AnalyzeMarkup(ctx context.Context, markup string) (*Report, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return e.Analyze(ctx, doc), nil
}

// Analyze audits the tree under root.
func (e *Engine) Analyze(ctx context.Context, root *html.Node) *Report {
	start := time.Now()
	report := &Report{Timestamp: start, Violations: []Violation{}, Passed: []string{}}

	for _, rule := range e.rules {
		found := e.checks[rule.ID](root)
		if len(found) == 0 {
			report.Passed = append(report.Passed, rule.ID)
			continue
		}
		for _, f := range found {
			report.Violations = append(report.Violations, Violation{
				Rule:       rule.ID,
				Severity:   severityFromImpact(rule.Impact),
				Impact:     rule.Impact,
				WCAG:       rule.WCAG,
				Selector:   selector(f.node),
				Message:    f.message,
				Suggestion: rule.Suggestion,
			})
		}
	}

	report.Duration = time.Since(start)
	report.Summary = summarize(report.Violations, len(report.Passed), len(e.rules))

	e.logger.Debug(ctx, "Accessibility analysis completed",
		"violations", len(report.Violations),
		"passed_rules", len(report.Passed),
		"duration", report.Duration)
	return report
}

func severityFromImpact(impact ViolationImpact) ViolationSeverity {
	switch impact {
	case ImpactCritical, ImpactSerious:
		return SeverityError
	case ImpactMinor:
		return SeverityInfo
	default:
		return SeverityWarning
	}
}

func summarize(violations []Violation, passed, total int) Summary {
	s := Summary{
		TotalRules:      total,
		PassedRules:     passed,
		FailedRules:     total - passed,
		TotalViolations: len(violations),
	}
	for _, v := range violations {
		switch v.Severity {
		case SeverityError:
			s.ErrorViolations++
		case SeverityWarning:
			s.WarnViolations++
		case SeverityInfo:
			s.InfoViolations++
		}
	}
	if total > 0 {
		s.OverallScore = float64(passed) / float64(total) * 100
	}
	return s
}

func selector(n *html.Node) string {
	if n == nil {
		return ""
	}
	if id := dom.GetAttr(n, "id"); id != "" {
		return n.Data + "#" + id
	}
	if classes := dom.Classes(n); len(classes) > 0 {
		return n.Data + "." + strings.Join(classes, ".")
	}
	return n.Data
}

// Checks

func tabsOf(tablist *html.Node) []*html.Node {
	var out []*html.Node
	for _, c := range dom.ElementChildren(tablist) {
		if dom.GetAttr(c, "role") == "tab" {
			out = append(out, c)
		}
	}
	return out
}

func tablists(root *html.Node) []*html.Node {
	return dom.FindAll(root, dom.ByAttrValue("role", "tablist"))
}

func checkTablistHasTabs(root *html.Node) []finding {
	var out []finding
	for _, tl := range tablists(root) {
		if len(tabsOf(tl)) == 0 {
			out = append(out, finding{tl, "tablist contains no tabs"})
		}
	}
	return out
}

func checkSingleSelected(root *html.Node) []finding {
	var out []finding
	for _, tl := range tablists(root) {
		tabs := tabsOf(tl)
		if len(tabs) == 0 {
			continue
		}
		selected := 0
		for _, t := range tabs {
			if dom.GetAttr(t, "aria-selected") == "true" {
				selected++
			}
		}
		if selected != 1 {
			out = append(out, finding{tl, fmt.Sprintf("%d tabs are selected", selected)})
		}
	}
	return out
}

func checkTabNames(root *html.Node) []finding {
	var out []finding
	for _, t := range dom.FindAll(root, dom.ByAttrValue("role", "tab")) {
		if strings.TrimSpace(dom.TextContent(t)) == "" &&
			strings.TrimSpace(dom.GetAttr(t, "aria-label")) == "" &&
			!dom.HasAttr(t, "aria-labelledby") {
			out = append(out, finding{t, "tab has no accessible name"})
		}
	}
	return out
}

func checkTabControls(root *html.Node) []finding {
	var out []finding
	for _, t := range dom.FindAll(root, dom.ByAttrValue("role", "tab")) {
		id := dom.GetAttr(t, "aria-controls")
		if id == "" {
			out = append(out, finding{t, "tab has no aria-controls"})
			continue
		}
		panel := dom.FindByID(root, id)
		if panel == nil || dom.GetAttr(panel, "role") != "tabpanel" {
			out = append(out, finding{t, "aria-controls does not reference a tabpanel: " + id})
		}
	}
	return out
}

func checkPanelLabels(root *html.Node) []finding {
	var out []finding
	for _, p := range dom.FindAll(root, dom.ByAttrValue("role", "tabpanel")) {
		id := dom.GetAttr(p, "aria-labelledby")
		if id == "" || dom.FindByID(root, id) == nil {
			out = append(out, finding{p, "tabpanel is not labelled by an existing element"})
		}
	}
	return out
}

func checkSelectionVisibility(root *html.Node) []finding {
	var out []finding
	for _, t := range dom.FindAll(root, dom.ByAttrValue("role", "tab")) {
		panel := dom.FindByID(root, dom.GetAttr(t, "aria-controls"))
		if panel == nil {
			continue
		}
		selected := dom.GetAttr(t, "aria-selected") == "true"
		hidden := dom.GetAttr(panel, "aria-hidden") == "true" || dom.HasAttr(panel, "hidden")
		if selected == hidden {
			out = append(out, finding{panel, "panel visibility disagrees with tab selection"})
		}
	}
	return out
}

func checkRovingTabindex(root *html.Node) []finding {
	var out []finding
	for _, t := range dom.FindAll(root, dom.ByAttrValue("role", "tab")) {
		selected := dom.GetAttr(t, "aria-selected") == "true"
		ti := dom.GetAttr(t, "tabindex")
		if selected && ti == "-1" {
			out = append(out, finding{t, "selected tab is removed from the tab order"})
		}
		if !selected && ti != "-1" {
			out = append(out, finding{t, "unselected tab is in the tab order"})
		}
	}
	return out
}

func checkFrameTitles(root *html.Node) []finding {
	var out []finding
	for _, f := range dom.FindAll(root, dom.ByTag("iframe")) {
		if strings.TrimSpace(dom.GetAttr(f, "title")) == "" {
			out = append(out, finding{f, "iframe has no title"})
		}
	}
	return out
}

func checkImageAlt(root *html.Node) []finding {
	var out []finding
	for _, img := range dom.FindAll(root, dom.ByTag("img")) {
		if !dom.HasAttr(img, "alt") {
			out = append(out, finding{img, "image has no alt attribute"})
		}
	}
	return out
}

func checkDuplicateIDs(root *html.Node) []finding {
	seen := make(map[string]*html.Node)
	dups := make(map[string]*html.Node)
	dom.Walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		id := dom.GetAttr(n, "id")
		if id == "" {
			return true
		}
		if _, ok := seen[id]; ok {
			dups[id] = n
		} else {
			seen[id] = n
		}
		return true
	})

	ids := make([]string, 0, len(dups))
	for id := range dups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]finding, 0, len(ids))
	for _, id := range ids {
		out = append(out, finding{dups[id], "duplicate id " + id})
	}
	return out
}
