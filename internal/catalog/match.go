package catalog

import (
	"strings"

	"github.com/nao1215/privacygap/internal/model"
)

// MatchURL returns the most specific tracker whose key covers host and path.
// A key's domain covers host when they are equal or host is a subdomain of
// it. A key with a path prefix also requires path to start with that prefix
// at a segment boundary. Host and path are compared case-insensitively.
func (c *Catalog) MatchURL(host, path string) (TrackerSignature, bool) {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	path = strings.ToLower(path)

	var best TrackerSignature
	found := false
	for _, t := range c.def.Trackers {
		domain, prefix := splitKey(strings.ToLower(t.Key))
		if host != domain && !strings.HasSuffix(host, "."+domain) {
			continue
		}
		if prefix != "" && path != prefix && !strings.HasPrefix(path, prefix+"/") {
			continue
		}
		if !found || len(t.Key) > len(best.Key) {
			best, found = t, true
		}
	}
	if !found {
		return TrackerSignature{}, false
	}
	return cloneDefinition(Definition{Trackers: []TrackerSignature{best}}).Trackers[0], true
}

// FindInMarkup returns every tracker whose key occurs in lowerMarkup as a
// whole domain, in catalogue order. An occurrence counts only when it is not
// glued to a longer label: the byte before it may not be a letter, digit or
// hyphen, and the byte after it may not be a letter or digit. This keeps
// short keys such as "t.co" from matching inside "at.com" or "t.com".
func (c *Catalog) FindInMarkup(lowerMarkup string) []TrackerSignature {
	var out []TrackerSignature
	for _, t := range c.def.Trackers {
		if containsDomain(lowerMarkup, strings.ToLower(t.Key)) {
			out = append(out, t)
		}
	}
	return cloneDefinition(Definition{Trackers: out}).Trackers
}

// FindInDomain returns every tracker whose key occurs in domain, in
// catalogue order, using the same label boundaries as FindInMarkup. It folds
// third-party script domains such as "cdn.segment.com.example.net" back onto
// catalogue entries.
func (c *Catalog) FindInDomain(domain string) []TrackerSignature {
	domain = strings.ToLower(domain)
	var out []TrackerSignature
	for _, t := range c.def.Trackers {
		if containsDomain(domain, strings.ToLower(t.Key)) {
			out = append(out, t)
		}
	}
	return cloneDefinition(Definition{Trackers: out}).Trackers
}

// MatchInline returns every inline call whose fragment occurs in script,
// in catalogue order. Matching is case-sensitive.
func (c *Catalog) MatchInline(script string) []InlineCall {
	var out []InlineCall
	for _, ic := range c.def.InlineCalls {
		if strings.Contains(script, ic.Fragment) {
			out = append(out, ic)
		}
	}
	return cloneDefinition(Definition{InlineCalls: out}).InlineCalls
}

// ClassifyCookie assigns a class to a cookie name. Advertising signatures
// are tried first, then analytics, then essential. Unmatched names are
// unknown.
func (c *Catalog) ClassifyCookie(name string) model.CookieClass {
	lower := strings.ToLower(name)
	for _, group := range c.cookiesByClass {
		for _, sig := range group {
			if sig.matches(lower) {
				return sig.Class
			}
		}
	}
	return model.CookieUnknown
}

// MatchSignals returns every signal whose signature occurs in lowerMarkup,
// in catalogue order. Signatures are lower-cased before comparison.
func (c *Catalog) MatchSignals(lowerMarkup string) []SignalSignature {
	var out []SignalSignature
	for _, s := range c.def.Signals {
		if strings.Contains(lowerMarkup, strings.ToLower(s.Signature)) {
			out = append(out, s)
		}
	}
	return out
}

// MatchConsentProvider returns the first consent platform whose signature
// occurs in lowerMarkup.
func (c *Catalog) MatchConsentProvider(lowerMarkup string) (ConsentProvider, bool) {
	for _, p := range c.def.Consent.Providers {
		if strings.Contains(lowerMarkup, strings.ToLower(p.Signature)) {
			return p, true
		}
	}
	return ConsentProvider{}, false
}

func (s CookieSignature) matches(lowerName string) bool {
	pattern := strings.ToLower(s.Pattern)
	switch s.Match {
	case MatchExact:
		return lowerName == pattern
	case MatchPrefix:
		return strings.HasPrefix(lowerName, pattern)
	default:
		return strings.Contains(lowerName, pattern)
	}
}

// splitKey separates "facebook.com/tr" into "facebook.com" and "/tr".
func splitKey(key string) (domain, pathPrefix string) {
	if i := strings.IndexByte(key, '/'); i >= 0 {
		return key[:i], key[i:]
	}
	return key, ""
}

func containsDomain(haystack, key string) bool {
	for start := 0; ; {
		i := strings.Index(haystack[start:], key)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(key)
		before := i == 0 || !isLabelByte(haystack[i-1])
		after := end == len(haystack) || !isAlnum(haystack[end])
		if before && after {
			return true
		}
		start = i + 1
	}
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func isLabelByte(b byte) bool {
	return isAlnum(b) || b == '-'
}
