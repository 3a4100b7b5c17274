package models

import (
	"errors"
	"net/url"
	"strings"
)

// ErrInvalidDomain is returned when no usable host can be derived from input
var ErrInvalidDomain = errors.New("models: no domain in input")

// CanonicalDomain derives the session key for a target URL: the lowercased
// host, keeping any explicit port. Bare hosts without a scheme are accepted.
func CanonicalDomain(rawURL string) (string, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return "", ErrInvalidDomain
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		// "portal.example.com" parses as a path, not a host
		u, err = url.Parse("https://" + raw)
		if err != nil || u.Host == "" {
			return "", ErrInvalidDomain
		}
	}

	name := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if name == "" {
		return "", ErrInvalidDomain
	}
	if strings.Contains(name, ":") {
		name = "[" + name + "]"
	}
	if port := u.Port(); port != "" {
		name += ":" + port
	}
	return name, nil
}

// FileKey maps a canonical domain to a filesystem-safe file stem.
// Characters that are path separators or drive markers become underscores.
func FileKey(domain string) string {
	r := strings.NewReplacer(":", "_", "/", "_", "\\", "_", "[", "", "]", "")
	return r.Replace(domain)
}
