package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func mustFragment(t *testing.T, markup string) *html.Node {
	t.Helper()
	root := &html.Node{Type: html.ElementNode, Data: "div"}
	require.NoError(t, SetInnerHTML(root, markup))
	return root
}

func TestAttributes(t *testing.T) {
	root := mustFragment(t, `<p id="a" data-lazy="true">x</p>`)
	p := FindByID(root, "a")
	require.NotNil(t, p)

	assert.True(t, IsTrue(p, "data-lazy"))
	assert.False(t, IsTrue(p, "data-missing"))

	SetAttr(p, "data-lazy", "false")
	assert.Equal(t, "false", GetAttr(p, "data-lazy"))

	RemoveAttr(p, "data-lazy")
	assert.False(t, HasAttr(p, "data-lazy"))
}

func TestClasses(t *testing.T) {
	root := mustFragment(t, `<div id="x" class="a b"></div>`)
	n := FindByID(root, "x")

	AddClass(n, "c")
	AddClass(n, "a")
	assert.Equal(t, []string{"a", "b", "c"}, Classes(n))

	RemoveClass(n, "b")
	assert.Equal(t, "a c", GetAttr(n, "class"))

	ToggleClass(n, "d", true)
	assert.True(t, HasClass(n, "d"))
	ToggleClass(n, "d", false)
	assert.False(t, HasClass(n, "d"))
}

func TestLookups(t *testing.T) {
	root := mustFragment(t, `<ul class="list"><li class="i">1</li><li class="i"><span id="deep">2</span></li></ul>`)

	assert.Len(t, FindAll(root, ByClass("i")), 2)
	assert.Len(t, FindAll(root, ByTag("li")), 2)

	deep := FindByID(root, "deep")
	require.NotNil(t, deep)
	list := Closest(deep, ByClass("list"))
	require.NotNil(t, list)
	assert.True(t, Contains(list, deep))
	assert.Len(t, ElementChildren(list), 2)
	assert.Equal(t, "12", TextContent(list))
	assert.Nil(t, FindByID(root, ""))
}

func TestInnerAndOuterHTML(t *testing.T) {
	root := mustFragment(t, `<b>bold</b>`)
	assert.Equal(t, "<b>bold</b>", InnerHTML(root))
	assert.Equal(t, "<div><b>bold</b></div>", OuterHTML(root))
}

func TestReplaceWith(t *testing.T) {
	root := mustFragment(t, `<span id="old">x</span><i>keep</i>`)
	first, err := ReplaceWith(FindByID(root, "old"), `<em id="new">y</em>`)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, `<em id="new">y</em><i>keep</i>`, InnerHTML(root))
}
