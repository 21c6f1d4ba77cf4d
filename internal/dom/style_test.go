package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestParseStyle(t *testing.T) {
	st := ParseStyle("width: 100vw; margin-left: calc(-50vw + 50%) !important; object-position: 30% 40%")

	v, imp, ok := st.Get("width")
	require.True(t, ok)
	assert.Equal(t, "100vw", v)
	assert.False(t, imp)

	_, imp, ok = st.Get("margin-left")
	require.True(t, ok)
	assert.True(t, imp)

	v, _, ok = st.Get("object-position")
	require.True(t, ok)
	assert.Equal(t, "30% 40%", v)
}

func TestParseStyle_Empty(t *testing.T) {
	assert.Equal(t, 0, ParseStyle("").Len())
	assert.Equal(t, 0, ParseStyle("   ").Len())
}

func TestStyleSetRemoveString(t *testing.T) {
	st := &Style{}
	st.Set("Width", "100%", true)
	st.Set("height", "200px", false)
	st.Set("width", "50%", true)

	assert.Equal(t, "width: 50% !important; height: 200px;", st.String())

	assert.True(t, st.Remove("height", "flex"))
	assert.False(t, st.Remove("flex"))
	assert.Equal(t, 1, st.Len())
}

func TestSetStyleOnNode(t *testing.T) {
	n := &html.Node{Type: html.ElementNode, Data: "div"}
	SetAttr(n, "style", "flex: 1 1 auto; color: red")

	st := GetStyle(n)
	st.Remove("flex")
	SetStyle(n, st)
	assert.Equal(t, "color: red;", GetAttr(n, "style"))

	st.Remove("color")
	SetStyle(n, st)
	assert.False(t, HasAttr(n, "style"))
}
