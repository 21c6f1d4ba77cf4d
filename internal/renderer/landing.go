package renderer

import (
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/tabcanvas/internal/validation"
)

// Landing geometry, in SVG user units.
const (
	landingWidth     = 1000
	landingStepSpan  = 240
	landingLeftX     = 220
	landingRightX    = 780
	landingCenterX   = 500
	landingHeadSpace = 80
)

// LandingSectionID is the id of the landing section element.
func LandingSectionID(unitID string) string {
	return SafeID("landing-" + unitID)
}

// LandingPath returns the serpentine path through n step cards and the
// height of the drawing. The path is built from M, L and C commands.
func LandingPath(n int) (string, int) {
	if n < 0 {
		n = 0
	}
	height := landingHeadSpace*2 + n*landingStepSpan

	var b strings.Builder
	x, y := landingCenterX, 0
	b.WriteString("M " + strconv.Itoa(x) + " " + strconv.Itoa(y))
	b.WriteString(" L " + strconv.Itoa(x) + " " + strconv.Itoa(landingHeadSpace))
	y = landingHeadSpace

	for i := 0; i < n; i++ {
		nx := landingLeftX
		if i%2 == 1 {
			nx = landingRightX
		}
		ny := landingHeadSpace + i*landingStepSpan + landingStepSpan/2
		writeCurve(&b, x, y, nx, ny)
		x, y = nx, ny
	}
	writeCurve(&b, x, y, landingCenterX, height)
	return b.String(), height
}

func writeCurve(b *strings.Builder, x0, y0, x1, y1 int) {
	mid := (y0 + y1) / 2
	b.WriteString(" C " + strconv.Itoa(x0) + " " + strconv.Itoa(mid) +
		" " + strconv.Itoa(x1) + " " + strconv.Itoa(mid) +
		" " + strconv.Itoa(x1) + " " + strconv.Itoa(y1))
}

func renderLanding(unit ContentUnit) RenderResult {
	if unit.Landing == nil || strings.TrimSpace(unit.Landing.Heading) == "" {
		return RenderResult{}
	}
	cfg := *unit.Landing
	id := LandingSectionID(unit.ID)
	d, height := LandingPath(len(cfg.Steps))

	var b strings.Builder
	b.WriteString(`<section class="tc-landing" id="` + id + `" data-landing="true">`)

	b.WriteString(`<header class="tc-landing-heading"><h2>`)
	b.WriteString(templ.EscapeString(cfg.Heading))
	b.WriteString(`</h2>`)
	if sub := strings.TrimSpace(cfg.Subheading); sub != "" {
		b.WriteString(`<p>`)
		b.WriteString(templ.EscapeString(sub))
		b.WriteString(`</p>`)
	}
	b.WriteString(`</header>`)

	b.WriteString(`<div class="tc-landing-track">`)
	b.WriteString(`<svg class="tc-landing-svg" viewBox="0 0 ` + strconv.Itoa(landingWidth) + ` ` + strconv.Itoa(height) +
		`" preserveAspectRatio="none" aria-hidden="true" focusable="false">`)
	b.WriteString(`<path class="tc-landing-path" d="` + d + `" fill="none" stroke="currentColor" stroke-width="4" stroke-linecap="round"></path>`)
	b.WriteString(`</svg>`)

	b.WriteString(`<ol class="tc-landing-steps">`)
	for i, step := range cfg.Steps {
		side := "left"
		if i%2 == 1 {
			side = "right"
		}
		b.WriteString(`<li class="tc-landing-card" data-step="` + strconv.Itoa(i+1) + `" data-side="` + side + `"><h3>`)
		b.WriteString(templ.EscapeString(step.Title))
		b.WriteString(`</h3>`)
		if body := strings.TrimSpace(step.Body); body != "" {
			b.WriteString(`<p>`)
			b.WriteString(templ.EscapeString(body))
			b.WriteString(`</p>`)
		}
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ol></div>`)

	b.WriteString(`<footer class="tc-landing-end">`)
	if end := strings.TrimSpace(cfg.EndLabel); end != "" {
		b.WriteString(`<p>`)
		b.WriteString(templ.EscapeString(end))
		b.WriteString(`</p>`)
	}
	if cfg.CTALabel != "" && validation.IsWebURL(cfg.CTAURL) {
		b.WriteString(`<a class="tc-landing-cta" href="`)
		b.WriteString(templ.EscapeString(strings.TrimSpace(cfg.CTAURL)))
		b.WriteString(`" rel="noopener noreferrer">`)
		b.WriteString(templ.EscapeString(cfg.CTALabel))
		b.WriteString(`</a>`)
	}
	b.WriteString(`</footer></section>`)

	return RenderResult{HTML: b.String(), PostRender: LandingJob{SectionID: id}}
}
