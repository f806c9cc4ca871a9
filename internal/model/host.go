package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidDomain is returned when a compare domain cannot be used as a host.
var ErrInvalidDomain = errors.New("invalid compare domain")

// SubstituteHost replaces the host (and port) of raw with domain, keeping
// scheme, path, query and fragment. An empty domain returns raw unchanged.
func SubstituteHost(raw, domain string) (string, error) {
	if domain == "" {
		return raw, nil
	}
	if strings.ContainsAny(domain, "/?#@ ") {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, domain)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("failed to substitute host: %q is not an absolute URL", raw)
	}

	u.Host = domain
	return u.String(), nil
}
