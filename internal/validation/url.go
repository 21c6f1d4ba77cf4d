package validation

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	cerrors "github.com/conneroisu/tabcanvas/internal/errors"
)

// TrustedEmbedDomains is the built-in set of hosts embeds may point at. A host
// matches when it equals an entry or is a proper subdomain of one.
var TrustedEmbedDomains = []string{
	"youtube.com",
	"youtube-nocookie.com",
	"vimeo.com",
	"loom.com",
	"figma.com",
	"miro.com",
	"codepen.io",
	"airtable.com",
	"typeform.com",
	"powerbi.com",
	"office.com",
	"sharepoint.com",
	"microsoftstream.com",
	"docs.google.com",
	"calendar.google.com",
	"maps.google.com",
}

// Error codes returned by the embed URL checks.
const (
	CodeInvalidURL     = "ERR_EMBED_INVALID_URL"
	CodeInsecureScheme = "ERR_EMBED_INSECURE"
	CodeDomainBlocked  = "ERR_EMBED_DOMAIN"
)

// AllowList is an immutable set of embed domains.
type AllowList struct {
	domains map[string]struct{}
}

// NewAllowList merges the built-in trusted domains with per-site additions.
// Additions that are not bare host names are returned as an error and left out.
func NewAllowList(additional ...string) (*AllowList, error) {
	al := &AllowList{domains: make(map[string]struct{}, len(TrustedEmbedDomains)+len(additional))}
	for _, d := range TrustedEmbedDomains {
		al.domains[d] = struct{}{}
	}

	var invalid []string
	for _, d := range additional {
		norm, err := NormalizeDomain(d)
		if err != nil {
			invalid = append(invalid, d)
			continue
		}
		al.domains[norm] = struct{}{}
	}

	if len(invalid) > 0 {
		return al, cerrors.NewConfigError("ERR_EMBED_DOMAIN_CONFIG",
			fmt.Sprintf("invalid additional embed domain(s): %s", strings.Join(invalid, ", ")))
	}
	return al, nil
}

// With returns a new allow-list that also contains the given domains. Invalid
// entries are skipped.
func (a *AllowList) With(additional ...string) *AllowList {
	merged := &AllowList{domains: make(map[string]struct{}, len(a.domains)+len(additional))}
	for d := range a.domains {
		merged.domains[d] = struct{}{}
	}
	for _, d := range additional {
		if norm, err := NormalizeDomain(d); err == nil {
			merged.domains[norm] = struct{}{}
		}
	}
	return merged
}

// Domains returns a sorted copy of the allow-listed domains for display.
func (a *AllowList) Domains() []string {
	out := make([]string, 0, len(a.domains))
	for d := range a.domains {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// AllowsHost reports whether host equals or is a proper subdomain of an entry.
func (a *AllowList) AllowsHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return false
	}
	for d := range a.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// ValidateEmbedURL checks that rawURL may be used as a frame source: it must
// parse, use https and point at an allow-listed host.
func (a *AllowList) ValidateEmbedURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, cerrors.NewSecurityError(CodeInvalidURL, "embed URL is empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, cerrors.NewSecurityError(CodeInvalidURL, "embed URL could not be parsed").
			WithContext("url", rawURL)
	}

	if !strings.EqualFold(parsed.Scheme, "https") {
		return nil, cerrors.NewSecurityError(CodeInsecureScheme,
			fmt.Sprintf("embed URL must use https, got %q", parsed.Scheme)).WithContext("url", rawURL)
	}

	host := parsed.Hostname()
	if host == "" {
		return nil, cerrors.NewSecurityError(CodeInvalidURL, "embed URL must have a host").
			WithContext("url", rawURL)
	}

	if !a.AllowsHost(host) {
		return nil, cerrors.NewSecurityError(CodeDomainBlocked,
			fmt.Sprintf("domain %q is not in the embed allow-list", host)).WithContext("host", host)
	}

	return parsed, nil
}

// NormalizeDomain lower-cases a configured domain and rejects anything that is
// not a bare host name (schemes, paths, ports, wildcards).
func NormalizeDomain(domain string) (string, error) {
	d := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if d == "" {
		return "", fmt.Errorf("domain cannot be empty")
	}
	if strings.ContainsAny(d, "/:*@ \t?#") {
		return "", fmt.Errorf("domain %q must be a bare host name", domain)
	}
	if !strings.Contains(d, ".") {
		return "", fmt.Errorf("domain %q must contain a dot", domain)
	}
	for _, label := range strings.Split(d, ".") {
		if label == "" || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return "", fmt.Errorf("domain %q has an invalid label", domain)
		}
	}
	return d, nil
}

// IsWebURL reports whether rawURL is an absolute http(s) URL. Feed links,
// thumbnails and landing call-to-action targets must pass this check.
func IsWebURL(rawURL string) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	return (scheme == "http" || scheme == "https") && parsed.Host != ""
}
