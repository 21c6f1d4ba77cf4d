package security

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/conneroisu/tabcanvas/internal/logging"
)

type contextKey string

// nonceContextKey stores the per-request CSP nonce.
const nonceContextKey contextKey = "csp_nonce"

// CSPConfig lists the Content-Security-Policy source expressions per
// directive. FrameSrc is normally derived from the embed allow-list.
type CSPConfig struct {
	DefaultSrc     []string
	ScriptSrc      []string
	StyleSrc       []string
	ImgSrc         []string
	ConnectSrc     []string
	FrameSrc       []string
	ObjectSrc      []string
	FrameAncestors []string
	BaseURI        []string
}

// HeadersConfig configures SecurityMiddleware.
type HeadersConfig struct {
	CSP            *CSPConfig
	EnableNonce    bool
	ReferrerPolicy string
	Logger         logging.Logger
}

// DefaultHeadersConfig returns a policy for the preview page where frames may
// only load from the given embed domains (and their subdomains), over https.
func DefaultHeadersConfig(frameDomains []string, logger logging.Logger) *HeadersConfig {
	return &HeadersConfig{
		CSP: &CSPConfig{
			DefaultSrc:     []string{"'self'"},
			ScriptSrc:      []string{"'self'"},
			StyleSrc:       []string{"'self'", "'unsafe-inline'"},
			ImgSrc:         []string{"'self'", "data:", "https:"},
			ConnectSrc:     []string{"'self'", "ws:", "wss:"},
			FrameSrc:       FrameSources(frameDomains),
			ObjectSrc:      []string{"'none'"},
			FrameAncestors: []string{"'self'"},
			BaseURI:        []string{"'self'"},
		},
		EnableNonce:    true,
		ReferrerPolicy: "strict-origin-when-cross-origin",
		Logger:         logger,
	}
}

// FrameSources converts registrable domains into frame-src expressions that
// match the domain and any subdomain over https. An empty list yields 'none'.
func FrameSources(domains []string) []string {
	if len(domains) == 0 {
		return []string{"'none'"}
	}
	out := make([]string, 0, len(domains)*2)
	for _, d := range domains {
		out = append(out, "https://"+d, "https://*."+d)
	}
	return out
}

func generateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// GetNonceFromContext returns the CSP nonce for the request, or "".
func GetNonceFromContext(ctx context.Context) string {
	if nonce, ok := ctx.Value(nonceContextKey).(string); ok {
		return nonce
	}
	return ""
}

// SecurityMiddleware sets the CSP, nosniff and referrer headers on every
// response and makes the script nonce available through the request context.
func SecurityMiddleware(cfg *HeadersConfig) func(http.Handler) http.Handler {
	if cfg == nil {
		cfg = DefaultHeadersConfig(nil, nil)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var nonce string
			if cfg.EnableNonce {
				var err error
				nonce, err = generateNonce()
				if err != nil {
					if cfg.Logger != nil {
						cfg.Logger.Error(r.Context(), err, "Failed to generate CSP nonce")
					}
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				r = r.WithContext(context.WithValue(r.Context(), nonceContextKey, nonce))
			}

			h := w.Header()
			if cfg.CSP != nil {
				h.Set("Content-Security-Policy", buildCSPHeader(cfg.CSP, nonce))
			}
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "SAMEORIGIN")
			if cfg.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", cfg.ReferrerPolicy)
			}

			next.ServeHTTP(w, r)
		})
	}
}

func buildCSPHeader(csp *CSPConfig, nonce string) string {
	var directives []string

	add := func(name string, values []string) {
		if len(values) == 0 {
			return
		}
		if nonce != "" && name == "script-src" {
			filtered := make([]string, 0, len(values)+1)
			for _, v := range values {
				if v != "'unsafe-inline'" && v != "'unsafe-eval'" {
					filtered = append(filtered, v)
				}
			}
			values = append(filtered, fmt.Sprintf("'nonce-%s'", nonce))
		}
		directives = append(directives, name+" "+strings.Join(values, " "))
	}

	add("default-src", csp.DefaultSrc)
	add("script-src", csp.ScriptSrc)
	add("style-src", csp.StyleSrc)
	add("img-src", csp.ImgSrc)
	add("connect-src", csp.ConnectSrc)
	add("frame-src", csp.FrameSrc)
	add("object-src", csp.ObjectSrc)
	add("frame-ancestors", csp.FrameAncestors)
	add("base-uri", csp.BaseURI)

	return strings.Join(directives, "; ")
}
