// Package dom provides the small set of node operations the canvas needs on
// top of golang.org/x/net/html: attribute and class access, lookups, inner
// markup replacement and an inline style model.
package dom

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attr returns the value of the attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// GetAttr returns the value of key, or "" when it is absent.
func GetAttr(n *html.Node, key string) string {
	v, _ := Attr(n, key)
	return v
}

// HasAttr reports whether n carries attribute key.
func HasAttr(n *html.Node, key string) bool {
	_, ok := Attr(n, key)
	return ok
}

// SetAttr sets or replaces attribute key.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes attribute key if present.
func RemoveAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

// IsTrue reports whether a boolean data attribute is set to "true".
func IsTrue(n *html.Node, key string) bool {
	return strings.EqualFold(strings.TrimSpace(GetAttr(n, key)), "true")
}

// Classes returns the class list of n.
func Classes(n *html.Node) []string {
	return strings.Fields(GetAttr(n, "class"))
}

// HasClass reports whether n has class c.
func HasClass(n *html.Node, c string) bool {
	for _, have := range Classes(n) {
		if have == c {
			return true
		}
	}
	return false
}

// AddClass adds c to the class list unless already present.
func AddClass(n *html.Node, c string) {
	if HasClass(n, c) {
		return
	}
	classes := append(Classes(n), c)
	SetAttr(n, "class", strings.Join(classes, " "))
}

// RemoveClass removes every occurrence of c from the class list.
func RemoveClass(n *html.Node, c string) {
	if !HasAttr(n, "class") {
		return
	}
	var kept []string
	for _, have := range Classes(n) {
		if have != c {
			kept = append(kept, have)
		}
	}
	SetAttr(n, "class", strings.Join(kept, " "))
}

// ToggleClass adds or removes c depending on on.
func ToggleClass(n *html.Node, c string, on bool) {
	if on {
		AddClass(n, c)
	} else {
		RemoveClass(n, c)
	}
}

// IsElement reports whether n is an element with the given tag name. An empty
// tag matches any element.
func IsElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && (tag == "" || n.Data == tag)
}

// Walk visits n and its descendants depth-first in document order. Returning
// false from fn skips the node's children.
func Walk(n *html.Node, fn func(*html.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		Walk(c, fn)
		c = next
	}
}

// FindAll returns every descendant of root (root included) matching pred.
func FindAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	Walk(root, func(n *html.Node) bool {
		if pred(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// FindFirst returns the first node in document order matching pred.
func FindFirst(root *html.Node, pred func(*html.Node) bool) *html.Node {
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if pred(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindByID returns the element whose id attribute equals id.
func FindByID(root *html.Node, id string) *html.Node {
	if id == "" {
		return nil
	}
	return FindFirst(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && GetAttr(n, "id") == id
	})
}

// ByClass matches elements carrying class c.
func ByClass(c string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && HasClass(n, c)
	}
}

// ByTag matches elements with the given tag name.
func ByTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return IsElement(n, tag)
	}
}

// ByAttr matches elements that carry attribute key, regardless of value.
func ByAttr(key string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && HasAttr(n, key)
	}
}

// ByAttrValue matches elements whose attribute key equals val.
func ByAttrValue(key, val string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		v, ok := Attr(n, key)
		return ok && v == val
	}
}

// ElementChildren returns the direct element children of n.
func ElementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// Closest returns n or its nearest ancestor matching pred.
func Closest(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if pred(cur) {
			return cur
		}
	}
	return nil
}

// Contains reports whether descendant is root or lies inside it.
func Contains(root, descendant *html.Node) bool {
	for cur := descendant; cur != nil; cur = cur.Parent {
		if cur == root {
			return true
		}
	}
	return false
}

var bodyContext = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}

// ParseFragment parses markup as the content of a <body> element.
func ParseFragment(markup string) ([]*html.Node, error) {
	return html.ParseFragment(strings.NewReader(markup), bodyContext)
}

// ParseDocument parses a complete document.
func ParseDocument(markup string) (*html.Node, error) {
	return html.Parse(strings.NewReader(markup))
}

// RemoveChildren detaches every child of n.
func RemoveChildren(n *html.Node) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
}

// SetInnerHTML replaces the children of n with the parsed markup.
func SetInnerHTML(n *html.Node, markup string) error {
	nodes, err := ParseFragment(markup)
	if err != nil {
		return err
	}
	RemoveChildren(n)
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return nil
}

// ReplaceWith parses markup and puts the resulting nodes where n was. The
// first inserted node is returned, or nil if markup produced nothing.
func ReplaceWith(n *html.Node, markup string) (*html.Node, error) {
	nodes, err := ParseFragment(markup)
	if err != nil {
		return nil, err
	}
	parent := n.Parent
	if parent == nil {
		return nil, nil
	}
	for _, c := range nodes {
		parent.InsertBefore(c, n)
	}
	parent.RemoveChild(n)
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes[0], nil
}

// InnerHTML renders the children of n.
func InnerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// OuterHTML renders n itself.
func OuterHTML(n *html.Node) string {
	var buf bytes.Buffer
	_ = html.Render(&buf, n)
	return buf.String()
}

// TextContent concatenates the text of n and its descendants.
func TextContent(n *html.Node) string {
	var b strings.Builder
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}
