package renderer

import (
	"fmt"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/conneroisu/tabcanvas/internal/security"
	"github.com/conneroisu/tabcanvas/internal/validation"
)

const (
	dayMonthLayout = "2 Jan 2006"
	monthDayLayout = "Jan 2, 2006"
	ellipsis       = "..."
	day            = 24 * time.Hour
)

var linkTargets = map[string]bool{"_blank": true, "_self": true, "_parent": true, "_top": true}

// Normalize fills defaults and clamps unknown values.
func (c FeedDisplayConfig) Normalize() FeedDisplayConfig {
	switch c.Layout {
	case LayoutList, LayoutCards, LayoutCompact:
	default:
		c.Layout = LayoutList
	}
	switch c.DateFormat {
	case DateRelative, DateDayMonth, DateMonthDay:
	default:
		c.DateFormat = DateRelative
	}
	if !linkTargets[c.LinkTarget] {
		c.LinkTarget = "_blank"
	}
	if c.DescriptionLimit < 0 {
		c.DescriptionLimit = 0
	}
	if c.MaxItems < 0 {
		c.MaxItems = 0
	}
	return c
}

// FeedContainerID is the id of the element a feed is rendered into.
func FeedContainerID(unitID string) string {
	return SafeID("feed-" + unitID)
}

func (r *Renderer) renderFeedUnit(unit ContentUnit) RenderResult {
	var cfg FeedConfig
	if unit.Feed != nil {
		cfg = *unit.Feed
	}
	display := cfg.Display.Normalize()
	id := FeedContainerID(unit.ID)

	if cfg.Items == nil {
		html := `<div class="tc-feed-container" id="` + id + `" data-feed-layout="` + string(display.Layout) +
			`" aria-busy="true"><p class="tc-feed-loading">Loading feed...</p></div>`
		return RenderResult{HTML: html, PostRender: FeedJob{ContainerID: id, Display: display}}
	}

	return RenderResult{HTML: `<div class="tc-feed-container" id="` + id + `" data-feed-layout="` +
		string(display.Layout) + `">` + r.RenderFeed(cfg.Items, display) + `</div>`}
}

// RenderFeed renders items with the given display settings. It is used both
// for feeds known at render time and when feed data arrives later.
func (r *Renderer) RenderFeed(items []FeedItem, display FeedDisplayConfig) string {
	return RenderFeedItems(items, display, r.now())
}

// RenderFeedItems is the pure feed strategy; now anchors relative dates.
func RenderFeedItems(items []FeedItem, display FeedDisplayConfig, now time.Time) string {
	display = display.Normalize()
	if display.MaxItems > 0 && len(items) > display.MaxItems {
		items = items[:display.MaxItems]
	}
	if len(items) == 0 {
		return `<p class="tc-feed-empty">No items to display.</p>`
	}

	var b strings.Builder
	switch display.Layout {
	case LayoutCards:
		b.WriteString(`<div class="tc-feed tc-feed--cards">`)
		for _, it := range items {
			writeCard(&b, it, display, now)
		}
		b.WriteString(`</div>`)
	case LayoutCompact:
		b.WriteString(`<ul class="tc-feed tc-feed--compact">`)
		for _, it := range items {
			writeCompact(&b, it, display, now)
		}
		b.WriteString(`</ul>`)
	default:
		b.WriteString(`<ul class="tc-feed tc-feed--list">`)
		for _, it := range items {
			writeListItem(&b, it, display, now)
		}
		b.WriteString(`</ul>`)
	}
	return b.String()
}

func writeListItem(b *strings.Builder, it FeedItem, d FeedDisplayConfig, now time.Time) {
	b.WriteString(`<li class="tc-feed-item">`)
	writeThumbnail(b, it, d)
	b.WriteString(`<div class="tc-feed-body">`)
	writeTitle(b, it, d)
	writeMeta(b, it, d, now)
	writeDescription(b, it, d)
	b.WriteString(`</div></li>`)
}

func writeCard(b *strings.Builder, it FeedItem, d FeedDisplayConfig, now time.Time) {
	b.WriteString(`<article class="tc-feed-card">`)
	writeThumbnail(b, it, d)
	b.WriteString(`<div class="tc-feed-card-body">`)
	writeTitle(b, it, d)
	writeDescription(b, it, d)
	writeMeta(b, it, d, now)
	b.WriteString(`</div></article>`)
}

func writeCompact(b *strings.Builder, it FeedItem, d FeedDisplayConfig, now time.Time) {
	b.WriteString(`<li class="tc-feed-item tc-feed-item--compact">`)
	writeTitle(b, it, d)
	if d.ShowDate && !it.PublishedDate.IsZero() {
		b.WriteString(` `)
		writeDate(b, it.PublishedDate, d, now)
	}
	b.WriteString(`</li>`)
}

func writeThumbnail(b *strings.Builder, it FeedItem, d FeedDisplayConfig) {
	if !d.ShowThumbnail || !validation.IsWebURL(it.Thumbnail) {
		return
	}
	b.WriteString(`<img class="tc-feed-thumb" src="`)
	b.WriteString(templ.EscapeString(strings.TrimSpace(it.Thumbnail)))
	b.WriteString(`" alt="" loading="lazy">`)
}

func writeTitle(b *strings.Builder, it FeedItem, d FeedDisplayConfig) {
	title := strings.TrimSpace(it.Title)
	if title == "" {
		title = "Untitled"
	}
	if validation.IsWebURL(it.Link) {
		b.WriteString(`<a class="tc-feed-title" href="`)
		b.WriteString(templ.EscapeString(strings.TrimSpace(it.Link)))
		b.WriteString(`" target="`)
		b.WriteString(d.LinkTarget)
		b.WriteString(`" rel="noopener noreferrer">`)
		b.WriteString(templ.EscapeString(title))
		b.WriteString(`</a>`)
		return
	}
	b.WriteString(`<span class="tc-feed-title">`)
	b.WriteString(templ.EscapeString(title))
	b.WriteString(`</span>`)
}

func writeMeta(b *strings.Builder, it FeedItem, d FeedDisplayConfig, now time.Time) {
	showDate := d.ShowDate && !it.PublishedDate.IsZero()
	showAuthor := d.ShowAuthor && strings.TrimSpace(it.Author) != ""
	if !showDate && !showAuthor {
		return
	}
	b.WriteString(`<div class="tc-feed-meta">`)
	if showDate {
		writeDate(b, it.PublishedDate, d, now)
	}
	if showAuthor {
		b.WriteString(`<span class="tc-feed-author">`)
		b.WriteString(templ.EscapeString(strings.TrimSpace(it.Author)))
		b.WriteString(`</span>`)
	}
	b.WriteString(`</div>`)
}

func writeDate(b *strings.Builder, t time.Time, d FeedDisplayConfig, now time.Time) {
	b.WriteString(`<time class="tc-feed-date" datetime="`)
	b.WriteString(t.UTC().Format(time.RFC3339))
	b.WriteString(`">`)
	b.WriteString(templ.EscapeString(FormatFeedDate(t, d.DateFormat, now)))
	b.WriteString(`</time>`)
}

func writeDescription(b *strings.Builder, it FeedItem, d FeedDisplayConfig) {
	if !d.ShowDescription {
		return
	}
	desc := TruncateDescription(it.Description, d.DescriptionLimit)
	if desc == "" {
		return
	}
	b.WriteString(`<p class="tc-feed-desc">`)
	b.WriteString(templ.EscapeString(desc))
	b.WriteString(`</p>`)
}

// TruncateDescription strips markup from desc and cuts the remaining text to
// limit characters, appending an ellipsis when something was cut. The result
// is plain text; a limit of zero disables truncation.
func TruncateDescription(desc string, limit int) string {
	text := security.StripTags(desc)
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit])) + ellipsis
}

// FormatFeedDate prints t using the requested mode.
func FormatFeedDate(t time.Time, mode DateFormat, now time.Time) string {
	switch mode {
	case DateDayMonth:
		return t.Format(dayMonthLayout)
	case DateMonthDay:
		return t.Format(monthDayLayout)
	default:
		return RelativeDate(t, now)
	}
}

// RelativeDate describes the age of t relative to now. Future timestamps and
// anything a month or older fall back to the month-day absolute form.
func RelativeDate(t, now time.Time) string {
	age := now.Sub(t)
	if age < 0 {
		return t.Format(monthDayLayout)
	}

	switch {
	case age < time.Minute:
		return "Just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age/time.Minute))
	case age < day:
		return fmt.Sprintf("%dh ago", int(age/time.Hour))
	}

	days := int(age / day)
	switch {
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%dd ago", days)
	case days < 30:
		return fmt.Sprintf("%dw ago", days/7)
	default:
		return t.Format(monthDayLayout)
	}
}
