package crawler

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// target is a normalized scan target.
type target struct {
	// URL is the normalized URL the primary fetch requests.
	URL *url.URL

	// Domain is the lower-cased host without a leading "www.".
	Domain string

	// Company is the title-cased first label of the registrable domain.
	Company string
}

// normalizeTarget turns user input such as "example.com" into a scan target.
// A missing scheme defaults to https.
func normalizeTarget(raw string) (*target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty URL", ErrInvalidURL)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	first, _, hasDot := strings.Cut(host, ".")
	if !hasDot {
		return nil, fmt.Errorf("%w: host %q is not a domain name", ErrInvalidURL, host)
	}
	if utf8.RuneCountInString(first) < 2 {
		return nil, fmt.Errorf("%w: host %q is too short", ErrInvalidURL, host)
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	domain := strings.TrimPrefix(host, "www.")
	return &target{
		URL:     u,
		Domain:  domain,
		Company: companyName(domain),
	}, nil
}

// DomainOf returns the domain a scan of raw would record, so callers can
// key history and site settings before scanning.
func DomainOf(raw string) (string, error) {
	t, err := normalizeTarget(raw)
	if err != nil {
		return "", err
	}
	return t.Domain, nil
}

// origin returns scheme://host of the target, the base for guessed policy paths.
func (t *target) origin() string {
	return t.URL.Scheme + "://" + t.URL.Host
}

// companyName infers a display name from a domain: "shop.example.co.uk"
// becomes "Example".
func companyName(domain string) string {
	label := registrableDomain(domain)
	if net.ParseIP(label) == nil {
		label, _, _ = strings.Cut(label, ".")
	}
	return cases.Title(language.English).String(label)
}

// registrableDomain returns the public suffix plus one label of host, or
// host itself for IP addresses and unlisted names.
func registrableDomain(host string) string {
	host = strings.TrimPrefix(strings.TrimSuffix(strings.ToLower(host), "."), "www.")
	if net.ParseIP(host) != nil {
		return host
	}
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
