// Package sites implements tracked-site matching for sitesweep.
//
// A tracked site is a bare domain ("example.com"). A browsing domain
// matches it when it is the same domain, its www. variant, or any
// subdomain. Matching is a plain suffix/equality check and is not
// public-suffix aware; NormalizeSite uses the public suffix list only to
// refuse sites that would match every domain under a suffix.
package sites

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var (
	// ErrEmptySite is returned when a site normalizes to the empty string.
	ErrEmptySite = errors.New("site is empty")
	// ErrPublicSuffix is returned for bare public suffixes such as "com" or "co.uk".
	ErrPublicSuffix = errors.New("site is a public suffix")
	// ErrNoHost is returned when a URL has no host component.
	ErrNoHost = errors.New("url has no host")
)

// Matches reports whether domain belongs to the tracked site.
//
//	Matches("example.com", "example.com")      == true
//	Matches("www.example.com", "example.com")  == true
//	Matches("blog.example.com", "example.com") == true
//	Matches("ample.com", "example.com")        == false
//	Matches("example.com.evil", "example.com") == false
func Matches(domain, site string) bool {
	d := strings.ToLower(domain)
	s := strings.ToLower(site)
	if s == "" {
		return false
	}
	return d == s || d == "www."+s || strings.HasSuffix(d, "."+s)
}

// MatchAny returns the first tracked site that domain belongs to.
func MatchAny(domain string, tracked []string) (string, bool) {
	for _, site := range tracked {
		if Matches(domain, site) {
			return site, true
		}
	}
	return "", false
}

// ExtractDomain returns the host name of rawURL without port.
// Unparseable URLs and URLs without a host are errors; callers skip them.
func ExtractDomain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", rawURL, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("parsing %q: %w", rawURL, ErrNoHost)
	}
	return host, nil
}

// NormalizeSite turns user input into a bare, lower-case domain.
//
// It accepts full URLs ("https://Example.com/path"), host:port pairs and
// a trailing root dot. Bare public suffixes are rejected.
func NormalizeSite(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrEmptySite
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return "", fmt.Errorf("site %q contains whitespace", input)
	}

	if strings.Contains(s, "://") {
		host, err := ExtractDomain(s)
		if err != nil {
			return "", err
		}
		s = host
	} else {
		// Strip any path, query or fragment typed without a scheme.
		if i := strings.IndexAny(s, "/?#"); i >= 0 {
			s = s[:i]
		}
		if host, _, err := net.SplitHostPort(s); err == nil {
			s = host
		}
	}

	s = strings.TrimSuffix(strings.ToLower(s), ".")
	if s == "" {
		return "", ErrEmptySite
	}

	// IP literals have no public suffix; keep them as typed.
	if net.ParseIP(s) != nil {
		return s, nil
	}

	// Unlisted single labels ("localhost") fall under the implicit "*"
	// rule and come back non-ICANN; only reject real registry suffixes.
	if suffix, icann := publicsuffix.PublicSuffix(s); icann && suffix == s {
		return "", fmt.Errorf("%q: %w", s, ErrPublicSuffix)
	}
	return s, nil
}

// Contains reports whether tracked already holds site, ignoring case.
func Contains(tracked []string, site string) bool {
	for _, t := range tracked {
		if strings.EqualFold(t, site) {
			return true
		}
	}
	return false
}

// Add appends site to tracked unless an equal site is already present.
// The second result reports whether the list changed.
func Add(tracked []string, site string) ([]string, bool) {
	if Contains(tracked, site) {
		return tracked, false
	}
	out := make([]string, 0, len(tracked)+1)
	out = append(out, tracked...)
	return append(out, site), true
}

// Remove drops site from tracked, ignoring case.
// The second result reports whether the list changed.
func Remove(tracked []string, site string) ([]string, bool) {
	out := make([]string, 0, len(tracked))
	removed := false
	for _, t := range tracked {
		if strings.EqualFold(t, site) {
			removed = true
			continue
		}
		out = append(out, t)
	}
	return out, removed
}
