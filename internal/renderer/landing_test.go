package renderer

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Landing(t *testing.T) {
	r := New(Options{})
	res := r.Render(context.Background(), ContentUnit{Type: TypeLanding, ID: "welcome", Landing: &LandingConfig{
		Heading:    "Start <here>",
		Subheading: "A path",
		Steps: []LandingStep{
			{Title: "One", Body: "first"},
			{Title: "Two <script>x()</script>"},
			{Title: "Three"},
		},
		EndLabel: "Done",
		CTALabel: "Go",
		CTAURL:   "javascript:alert(1)",
	}})

	require.True(t, res.RequiresPostRender())
	job, ok := res.PostRender.(LandingJob)
	require.True(t, ok)
	assert.Equal(t, "landing-welcome", job.SectionID)

	assert.Contains(t, res.HTML, `id="landing-welcome"`)
	assert.Contains(t, res.HTML, "Start &lt;here&gt;")
	assert.NotContains(t, res.HTML, "<script")
	assert.Equal(t, 3, strings.Count(res.HTML, `class="tc-landing-card"`))
	assert.Contains(t, res.HTML, `class="tc-landing-heading"`)
	assert.Contains(t, res.HTML, `class="tc-landing-end"`)
	assert.Contains(t, res.HTML, `class="tc-landing-path"`)
	assert.NotContains(t, res.HTML, "javascript:")
	assert.NotContains(t, res.HTML, "tc-landing-cta")
}

func TestRender_LandingCTA(t *testing.T) {
	r := New(Options{})
	res := r.Render(context.Background(), ContentUnit{Type: TypeLanding, ID: "w", Landing: &LandingConfig{
		Heading: "H", CTALabel: "Sign up", CTAURL: "https://example.com/join",
	}})
	assert.Contains(t, res.HTML, `<a class="tc-landing-cta" href="https://example.com/join"`)
}

func TestLandingPath(t *testing.T) {
	d, h := LandingPath(3)
	assert.True(t, strings.HasPrefix(d, "M 500 0 L 500 80"))
	assert.Equal(t, 4, strings.Count(d, " C "))
	assert.Equal(t, 80*2+3*240, h)
	assert.True(t, strings.HasSuffix(d, "500 "+strconv.Itoa(h)))

	d0, h0 := LandingPath(-1)
	assert.Equal(t, 160, h0)
	assert.Equal(t, 1, strings.Count(d0, " C "))
}

