package stabilizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/conneroisu/tabcanvas/internal/dom"
	"github.com/conneroisu/tabcanvas/internal/logging"
	"github.com/conneroisu/tabcanvas/internal/schedule"
)

const panelMarkup = `<section id="p"><div id="w" data-foreign-widget="true" ` +
	`style="width: 100vw; margin-left: calc(50% - 50vw); flex: 1 1 auto">` +
	`<img id="img" src="hero.jpg" alt="" style="object-position: 20% 30%"></div></section>`

type fixture struct {
	sched   *schedule.Manual
	s       *Stabilizer
	panel   *html.Node
	widget  *html.Node
	img     *html.Node
	changes int
}

func setup(t *testing.T, cfg Config, mode Mode) *fixture {
	t.Helper()
	doc, err := dom.ParseDocument(panelMarkup)
	require.NoError(t, err)

	f := &fixture{sched: schedule.NewManual(time.Unix(0, 0))}
	f.s = New(f.sched, cfg, logging.NewTestLogger(), WithChangeHandler(func(*html.Node) { f.changes++ }))
	f.panel = dom.FindByID(doc, "p")
	f.widget = dom.FindByID(doc, "w")
	f.img = dom.FindByID(doc, "img")
	f.s.Attach(f.panel, mode)
	return f
}

func testConfig() Config {
	return Config{
		QuietPeriod:       100 * time.Millisecond,
		StagedDelays:      []time.Duration{10 * time.Millisecond},
		ObservationWindow: time.Second,
	}
}

func style(n *html.Node, prop string) (string, bool) {
	v, important, ok := dom.GetStyle(n).Get(prop)
	return v, ok && important
}

func TestContained_StagedPass(t *testing.T) {
	f := setup(t, testConfig(), Contained)

	state, ok := f.s.StateOf(f.widget)
	require.True(t, ok)
	assert.Equal(t, Unlocked, state)

	f.sched.Advance(10 * time.Millisecond)

	state, _ = f.s.StateOf(f.widget)
	assert.Equal(t, Corrected, state)
	for prop, want := range map[string]string{"width": "100%", "max-width": "100%", "margin-left": "0", "margin-right": "0"} {
		v, important := style(f.widget, prop)
		assert.Equal(t, want, v, prop)
		assert.True(t, important, prop)
	}
	v, _, ok := dom.GetStyle(f.img).Get("object-position")
	assert.True(t, ok)
	assert.Equal(t, "20% 30%", v)
	assert.Equal(t, 1, f.changes)
}

func TestContained_DebounceCollapsesBurst(t *testing.T) {
	f := setup(t, testConfig(), Contained)
	f.sched.Advance(10 * time.Millisecond)
	f.changes = 0

	for i := 0; i < 5; i++ {
		dom.SetAttr(f.widget, "style", "width: 100vw")
		assert.True(t, f.s.Mutation(f.widget, MutationStyle))
		f.sched.Advance(50 * time.Millisecond)
	}
	assert.Equal(t, 0, f.changes, "quiet period restarts on every mutation")

	f.sched.Advance(100 * time.Millisecond)
	assert.Equal(t, 1, f.changes)
	v, important := style(f.widget, "width")
	assert.Equal(t, "100%", v)
	assert.True(t, important)
}

func TestContained_SettledMutationIgnored(t *testing.T) {
	f := setup(t, testConfig(), Contained)
	f.sched.Advance(10 * time.Millisecond)
	assert.False(t, f.s.Mutation(f.widget, MutationChildList))
}

func TestContained_HeightLockAppliedOnce(t *testing.T) {
	f := setup(t, testConfig(), Contained)

	assert.True(t, f.s.ImageLoaded(f.img, 420))
	state, _ := f.s.StateOf(f.widget)
	assert.Equal(t, Locked, state)
	for _, prop := range []string{"height", "min-height", "max-height"} {
		v, important := style(f.widget, prop)
		assert.Equal(t, "420px", v, prop)
		assert.True(t, important, prop)
	}

	assert.False(t, f.s.ImageLoaded(f.img, 600), "lock is kept")
	v, _ := style(f.widget, "height")
	assert.Equal(t, "420px", v)

	changes := f.changes
	dom.SetAttr(f.widget, "style", "width: 100vw")
	assert.False(t, f.s.Mutation(f.widget, MutationStyle))
	f.sched.Advance(time.Second)
	assert.Equal(t, "width: 100vw", dom.GetAttr(f.widget, "style"), "no writes after lock")
	assert.Equal(t, changes, f.changes)
}

func TestFullBleed_ClearsConstraints(t *testing.T) {
	f := setup(t, testConfig(), FullBleed)
	f.sched.Advance(10 * time.Millisecond)

	st := dom.GetStyle(f.widget)
	for _, p := range fullBleedProps {
		_, _, ok := st.Get(p)
		assert.False(t, ok, p)
	}
	assert.False(t, f.s.ImageLoaded(f.img, 300), "full-bleed widgets are not height locked")

	dom.SetAttr(f.widget, "style", "max-width: 960px")
	assert.True(t, f.s.Mutation(f.img, MutationStyle), "descendant mutations map to the widget")
	f.sched.Advance(100 * time.Millisecond)
	assert.False(t, dom.HasAttr(f.widget, "style"))
}

func TestObservationWindow(t *testing.T) {
	f := setup(t, testConfig(), Contained)
	assert.True(t, f.s.Observing(f.panel))

	f.sched.Advance(time.Second)
	assert.False(t, f.s.Observing(f.panel))
	dom.SetAttr(f.widget, "style", "width: 100vw")
	assert.False(t, f.s.Mutation(f.widget, MutationStyle))

	f.s.Activated(f.panel)
	assert.True(t, f.s.Observing(f.panel))
	f.sched.Advance(10 * time.Millisecond)
	v, _ := style(f.widget, "width")
	assert.Equal(t, "100%", v, "activation schedules staged passes")
}

func TestDetach_CancelsPending(t *testing.T) {
	f := setup(t, testConfig(), Contained)
	f.s.Detach(f.panel)
	f.sched.Advance(time.Second)

	assert.Equal(t, 0, f.changes)
	assert.False(t, f.s.Observing(f.panel))
	_, ok := f.s.StateOf(f.widget)
	assert.False(t, ok)
	assert.False(t, f.s.Mutation(f.widget, MutationStyle))
}

func TestModeAndStateStrings(t *testing.T) {
	assert.Equal(t, "contained", Contained.String())
	assert.Equal(t, "full-bleed", FullBleed.String())
	assert.Equal(t, "unlocked", Unlocked.String())
	assert.Equal(t, "corrected", Corrected.String())
	assert.Equal(t, "locked", Locked.String())
}
