package validation

import (
	"testing"

	cerrors "github.com/conneroisu/tabcanvas/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowList_ValidateEmbedURL(t *testing.T) {
	al, err := NewAllowList("intranet.example.org")
	require.NoError(t, err)

	tests := []struct {
		name     string
		url      string
		wantCode string
	}{
		{name: "youtube embed", url: "https://www.youtube.com/embed/x"},
		{name: "exact domain", url: "https://youtube.com/embed/x"},
		{name: "uppercase scheme and host", url: "HTTPS://WWW.YOUTUBE.COM/embed/x"},
		{name: "with port", url: "https://player.vimeo.com:443/video/1"},
		{name: "site specific domain", url: "https://intranet.example.org/page"},
		{name: "subdomain of site domain", url: "https://wiki.intranet.example.org/page"},
		{name: "insecure scheme", url: "http://youtube.com/x", wantCode: CodeInsecureScheme},
		{name: "javascript scheme", url: "javascript:alert(1)", wantCode: CodeInsecureScheme},
		{name: "domain in path", url: "https://evil.com/youtube.com", wantCode: CodeDomainBlocked},
		{name: "suffix without dot", url: "https://notyoutube.com/x", wantCode: CodeDomainBlocked},
		{name: "allowed domain as prefix", url: "https://youtube.com.evil.com/x", wantCode: CodeDomainBlocked},
		{name: "userinfo trick", url: "https://youtube.com@evil.com/x", wantCode: CodeDomainBlocked},
		{name: "empty", url: "   ", wantCode: CodeInvalidURL},
		{name: "no host", url: "https:///path", wantCode: CodeInvalidURL},
		{name: "unparseable", url: "https://exa mple.com/%zz", wantCode: CodeInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := al.ValidateEmbedURL(tt.url)
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, "https", parsed.Scheme)
				return
			}

			require.Error(t, err)
			assert.Nil(t, parsed)
			assert.True(t, cerrors.IsSecurityError(err))
			var ce *cerrors.CanvasError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.wantCode, ce.Code)
		})
	}
}

func TestNewAllowList_InvalidAdditions(t *testing.T) {
	al, err := NewAllowList("good.example.com", "https://bad.example.com", "*.wild.com", "nodot")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "https://bad.example.com")
	assert.Contains(t, err.Error(), "*.wild.com")

	assert.True(t, al.AllowsHost("good.example.com"))
	assert.False(t, al.AllowsHost("bad.example.com"))
}

func TestAllowList_DomainsIsACopy(t *testing.T) {
	al, err := NewAllowList()
	require.NoError(t, err)

	domains := al.Domains()
	require.NotEmpty(t, domains)
	assert.IsIncreasing(t, domains)

	domains[0] = "evil.com"
	assert.False(t, al.AllowsHost("evil.com"))
}

func TestAllowList_With(t *testing.T) {
	base, err := NewAllowList()
	require.NoError(t, err)

	extended := base.With("Partner.Example.NET.", "not a domain")
	assert.True(t, extended.AllowsHost("partner.example.net"))
	assert.False(t, base.AllowsHost("partner.example.net"))
	assert.Len(t, extended.Domains(), len(base.Domains())+1)
}

func TestIsWebURL(t *testing.T) {
	assert.True(t, IsWebURL("https://example.com/feed"))
	assert.True(t, IsWebURL("http://example.com"))
	assert.False(t, IsWebURL("javascript:alert(1)"))
	assert.False(t, IsWebURL("/relative/path"))
	assert.False(t, IsWebURL("data:image/png;base64,AAAA"))
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "Tab\tOne", SanitizeInput("Tab\x00\tOne\x07"))
}

func TestValidateFileExtension(t *testing.T) {
	allowed := []string{".md", ".html"}
	assert.NoError(t, ValidateFileExtension("/docs/readme.MD", allowed))
	assert.Error(t, ValidateFileExtension("/docs/readme.pdf", allowed))
	assert.Error(t, ValidateFileExtension("/docs/readme", allowed))
	assert.Error(t, ValidateFileExtension("", allowed))
}
