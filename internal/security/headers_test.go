package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameSources(t *testing.T) {
	assert.Equal(t, []string{"'none'"}, FrameSources(nil))
	assert.Equal(t,
		[]string{"https://youtube.com", "https://*.youtube.com"},
		FrameSources([]string{"youtube.com"}))
}

func TestSecurityMiddleware_Headers(t *testing.T) {
	var seenNonce string
	h := SecurityMiddleware(DefaultHeadersConfig([]string{"vimeo.com"}, nil))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seenNonce = GetNonceFromContext(r.Context())
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seenNonce)
	csp := rec.Header().Get("Content-Security-Policy")
	assert.Contains(t, csp, "frame-src https://vimeo.com https://*.vimeo.com")
	assert.Contains(t, csp, "'nonce-"+seenNonce+"'")
	assert.Contains(t, csp, "object-src 'none'")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
}

func TestBuildCSPHeader_NonceDropsUnsafeInlineScript(t *testing.T) {
	csp := buildCSPHeader(&CSPConfig{
		ScriptSrc: []string{"'self'", "'unsafe-inline'"},
		StyleSrc:  []string{"'self'", "'unsafe-inline'"},
	}, "abc")

	var script, style string
	for _, d := range strings.Split(csp, "; ") {
		switch {
		case strings.HasPrefix(d, "script-src"):
			script = d
		case strings.HasPrefix(d, "style-src"):
			style = d
		}
	}
	assert.Equal(t, "script-src 'self' 'nonce-abc'", script)
	assert.Equal(t, "style-src 'self' 'unsafe-inline'", style)
}

func TestGetNonceFromContext_Missing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", GetNonceFromContext(r.Context()))
}
