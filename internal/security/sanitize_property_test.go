//go:build property

package security

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"golang.org/x/net/html"
)

var hostileFragments = []string{
	"<script>alert(1)</script>",
	`<img src=x onerror="alert(1)">`,
	`<a href="javascript:alert(1)">x</a>`,
	`<div onclick="x()">`,
	`<svg onload=alert(1)>`,
	"<style>*{}</style>",
	`<iframe src="https://evil.example" onload="x()"></iframe>`,
	"<p>",
	"</div>",
	"text",
	"<b>bold</b>",
}

func hasUnsafeNode(n *html.Node) bool {
	if n.Type == html.ElementNode {
		if n.Data == "script" {
			return true
		}
		for _, a := range n.Attr {
			if strings.HasPrefix(strings.ToLower(a.Key), "on") {
				return true
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasUnsafeNode(c) {
			return true
		}
	}
	return false
}

func TestSanitizeProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	fragments := gen.SliceOf(gen.IntRange(0, len(hostileFragments)-1)).Map(func(idx []int) string {
		var b strings.Builder
		for _, i := range idx {
			b.WriteString(hostileFragments[i])
		}
		return b.String()
	})

	for _, profile := range []Profile{ProfileStrict, ProfileMarkup, ProfileTrustedLayout} {
		profile := profile
		properties.Property("no script or handlers under "+profile.String(), prop.ForAll(
			func(input string) bool {
				out := Sanitize(input, profile)
				doc, err := html.Parse(strings.NewReader(out))
				if err != nil {
					return false
				}
				return !hasUnsafeNode(doc)
			},
			fragments,
		))
	}

	properties.TestingRun(t)
}
