// Package security holds the sanitizer policy that every renderer output
// passes through, and the HTTP security headers of the preview server.
//
// Sanitization goes through a single choke point, Sanitize, with one of three
// profiles:
//
//   - ProfileStrict: structured-text output. No style or script elements, no
//     inline style, no event handler attributes.
//   - ProfileMarkup: author HTML. Strict plus iframe elements with a small set
//     of frame and loading attributes. Frame sources are re-checked against the
//     embed allow-list by the renderer after sanitization.
//   - ProfileTrustedLayout: internally-authored lock and overlay templates.
//     Allows inline style and data attributes, still no script and no handlers.
//
// None of the profiles can fail: any panic inside the sanitizer degrades to an
// empty result so a bad payload can never take the host page down.
package security

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// Profile selects the permitted tag and attribute surface.
type Profile int

const (
	ProfileStrict Profile = iota
	ProfileMarkup
	ProfileTrustedLayout
)

// String returns the profile name used in logs.
func (p Profile) String() string {
	switch p {
	case ProfileStrict:
		return "strict"
	case ProfileMarkup:
		return "markup"
	case ProfileTrustedLayout:
		return "trusted-layout"
	default:
		return "unknown"
	}
}

var (
	headingID     = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)
	codeLanguage  = regexp.MustCompile(`^language-[A-Za-z0-9_+-]+$`)
	loadingValue  = regexp.MustCompile(`^(lazy|eager)$`)
	referrerValue = regexp.MustCompile(`^(no-referrer|no-referrer-when-downgrade|origin|origin-when-cross-origin|same-origin|strict-origin|strict-origin-when-cross-origin)$`)
	checkboxType  = regexp.MustCompile(`^checkbox$`)
	layoutClass   = regexp.MustCompile(`^[A-Za-z0-9_ -]+$`)
	ariaRole      = regexp.MustCompile(`^(alert|status|note|presentation|img|region|dialog)$`)
)

// layoutStyles are the CSS properties trusted templates may set inline.
var layoutStyles = []string{
	"display", "position", "top", "right", "bottom", "left", "z-index",
	"width", "min-width", "max-width", "height", "min-height", "max-height",
	"margin", "margin-left", "margin-right", "padding",
	"flex", "flex-basis", "flex-grow", "flex-shrink", "flex-direction",
	"align-items", "justify-content", "gap",
	"background", "background-color", "color", "opacity", "overflow",
	"border", "border-radius", "font-size", "font-weight", "text-align",
	"object-fit", "object-position", "pointer-events",
}

var policies = sync.OnceValue(func() map[Profile]*bluemonday.Policy {
	return map[Profile]*bluemonday.Policy{
		ProfileStrict:        strictPolicy(),
		ProfileMarkup:        markupPolicy(),
		ProfileTrustedLayout: trustedLayoutPolicy(),
	}
})

var stripPolicy = sync.OnceValue(bluemonday.StrictPolicy)

func strictPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("id").Matching(headingID).OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowAttrs("class").Matching(codeLanguage).OnElements("code")
	p.AllowAttrs("type").Matching(checkboxType).OnElements("input")
	p.AllowAttrs("checked", "disabled").OnElements("input")
	p.AllowAttrs("loading").Matching(loadingValue).OnElements("img")
	p.RequireNoFollowOnLinks(true)
	return p
}

func markupPolicy() *bluemonday.Policy {
	p := strictPolicy()
	p.AllowElements("iframe")
	p.AllowAttrs("src", "title", "allowfullscreen").OnElements("iframe")
	p.AllowAttrs("width", "height").Matching(bluemonday.NumberOrPercent).OnElements("iframe")
	p.AllowAttrs("frameborder").Matching(bluemonday.Integer).OnElements("iframe")
	p.AllowAttrs("loading").Matching(loadingValue).OnElements("iframe")
	p.AllowAttrs("referrerpolicy").Matching(referrerValue).OnElements("iframe")
	p.AllowAttrs("class").Matching(layoutClass).Globally()
	return p
}

func trustedLayoutPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("section", "button")
	p.AllowDataAttributes()
	p.AllowAttrs("class").Matching(layoutClass).Globally()
	p.AllowAttrs("role").Matching(ariaRole).Globally()
	p.AllowAttrs("aria-label", "aria-hidden", "aria-live", "aria-disabled").Globally()
	p.AllowAttrs("type").Matching(regexp.MustCompile(`^button$`)).OnElements("button")
	p.AllowAttrs("style").Globally()
	p.AllowStyles(layoutStyles...).Globally()
	return p
}

// Sanitize returns rawMarkup reduced to the surface allowed by profile.
// Invalid UTF-8 is repaired first; an unknown profile or an internal failure
// yields an empty string.
func Sanitize(rawMarkup string, profile Profile) (safe string) {
	defer func() {
		if r := recover(); r != nil {
			safe = ""
		}
	}()

	p, ok := policies()[profile]
	if !ok || rawMarkup == "" {
		return ""
	}

	return p.Sanitize(strings.ToValidUTF8(rawMarkup, "�"))
}

// StripTags returns the text content of markup with all elements removed and
// entities decoded. The result is plain text and must be escaped before it is
// written into markup again.
func StripTags(markup string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	if markup == "" {
		return ""
	}
	stripped := stripPolicy().Sanitize(strings.ToValidUTF8(markup, "�"))
	return strings.TrimSpace(html.UnescapeString(stripped))
}
