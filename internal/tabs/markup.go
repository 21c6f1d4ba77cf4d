package tabs

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// Item describes one tab of a widget to be rendered.
type Item struct {
	Label       string
	Lazy        bool
	Placeholder bool
	Active      bool
	Banner      BannerMode
	// Content is trusted, already sanitized panel markup.
	Content string
}

// Widget describes a whole tab widget.
type Widget struct {
	ID          string
	Orientation Orientation
	Items       []Item
}

// Component renders w in the markup shape New expects. Lazy panels are
// emitted with their content so the canvas can attach deferred work once
// the panel is first activated.
func Component(w Widget) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		_, err := io.WriteString(out, Markup(w))
		return err
	})
}

// Markup renders w to a string.
func Markup(w Widget) string {
	orientation := w.Orientation
	if orientation != Vertical {
		orientation = Horizontal
	}
	id := strings.TrimSpace(w.ID)
	if id == "" {
		id = "tc"
	}
	esc := templ.EscapeString[string]

	var b strings.Builder
	b.WriteString(`<div class="` + RootClass + `" id="` + esc(id) + `" ` + AttrOrientation + `="` + string(orientation) + `">`)
	b.WriteString(`<div class="tc-tablist" role="tablist" aria-orientation="` + string(orientation) + `">`)
	for i, it := range w.Items {
		n := strconv.Itoa(i)
		b.WriteString(`<button type="button" class="` + TabClass)
		if it.Active {
			b.WriteString(" " + ActiveTabClass)
		}
		b.WriteString(`" role="tab" id="` + esc(id) + `-tab-` + n + `" aria-controls="` + esc(id) + `-panel-` + n + `"`)
		if it.Active {
			b.WriteString(` aria-selected="true"`)
		}
		if it.Placeholder {
			b.WriteString(` ` + AttrPlaceholder + `="true"`)
		}
		b.WriteString(`>` + esc(it.Label) + `</button>`)
	}
	b.WriteString(`</div><div class="` + PanelsClass + `">`)
	for i, it := range w.Items {
		n := strconv.Itoa(i)
		b.WriteString(`<section class="` + PanelClass)
		if it.Active {
			b.WriteString(" " + ActivePanelClass)
		}
		b.WriteString(`" role="tabpanel" id="` + esc(id) + `-panel-` + n + `" aria-labelledby="` + esc(id) + `-tab-` + n + `"`)
		if it.Lazy {
			b.WriteString(` ` + AttrLazy + `="true"`)
		}
		if it.Placeholder {
			b.WriteString(` ` + AttrPlaceholder + `="true"`)
		}
		if it.Banner == BannerFull {
			b.WriteString(` ` + AttrBanner + `="full"`)
		}
		b.WriteString(`>` + it.Content + `</section>`)
	}
	b.WriteString(`</div></div>`)
	return b.String()
}
