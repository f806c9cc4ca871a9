package crawler

import (
	"net/url"
	"regexp"
	"strings"
)

// NormalizeURL returns the dedup key of a URL: scheme and host are
// lowercased, the fragment is dropped and an empty path becomes "/".
// Query strings are kept. Unparseable input is returned unchanged.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" && u.Opaque == "" {
		u.Path = "/"
		u.RawPath = ""
	}

	return u.String()
}

// IsInternalLink reports whether link is an absolute URL with the same
// origin as base: equal scheme, host and effective port, where the default
// ports of http (80) and https (443) are made explicit first.
// Relative or malformed links are not internal.
func IsInternalLink(link, base string) bool {
	lu, err := url.Parse(link)
	if err != nil || !lu.IsAbs() || lu.Host == "" {
		return false
	}
	bu, err := url.Parse(base)
	if err != nil || !bu.IsAbs() || bu.Host == "" {
		return false
	}
	return sameOrigin(lu, bu)
}

// sameOrigin compares scheme, hostname and effective port.
func sameOrigin(a, b *url.URL) bool {
	if !strings.EqualFold(a.Scheme, b.Scheme) {
		return false
	}
	if !strings.EqualFold(a.Hostname(), b.Hostname()) {
		return false
	}
	return effectivePort(a) == effectivePort(b)
}

// effectivePort returns the explicit port or the scheme's default.
func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		return "80"
	case "https":
		return "443"
	default:
		return ""
	}
}

// MatchesAny reports whether any pattern matches the raw URL string.
func MatchesAny(patterns []*regexp.Regexp, raw string) bool {
	for _, p := range patterns {
		if p.MatchString(raw) {
			return true
		}
	}
	return false
}
