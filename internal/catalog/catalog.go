package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/privacygap/internal/model"
)

//go:embed data/catalogue.yaml
var defaultCatalogue []byte

// MatchMode selects how a cookie pattern is compared to a cookie name.
type MatchMode string

const (
	// MatchContains matches when the pattern appears anywhere in the name.
	MatchContains MatchMode = "contains"
	// MatchPrefix matches when the name starts with the pattern.
	MatchPrefix MatchMode = "prefix"
	// MatchExact matches when the name equals the pattern.
	MatchExact MatchMode = "exact"
)

// Definition is the on-disk shape of a catalogue.
type Definition struct {
	Version     string             `yaml:"version"`
	Trackers    []TrackerSignature `yaml:"trackers"`
	InlineCalls []InlineCall       `yaml:"inline_calls"`
	Cookies     []CookieSignature  `yaml:"cookies"`
	Signals     []SignalSignature  `yaml:"signals"`
	Consent     ConsentVocabulary  `yaml:"consent"`
	Cases       []EnforcementCase  `yaml:"cases"`
}

// TrackerSignature maps a domain key to a canonical tracker.
type TrackerSignature struct {
	// Key is a domain, optionally followed by a path prefix such as
	// "facebook.com/tr".
	Key            string                `yaml:"key"`
	Name           string                `yaml:"name"`
	Category       model.TrackerCategory `yaml:"category"`
	DataCategories []string              `yaml:"data"`
}

// InlineCall maps a JavaScript call fragment to a canonical tracker.
type InlineCall struct {
	Fragment       string                `yaml:"fragment"`
	Name           string                `yaml:"name"`
	Category       model.TrackerCategory `yaml:"category"`
	DataCategories []string              `yaml:"data"`
}

// CookieSignature classifies cookies whose name matches Pattern.
type CookieSignature struct {
	Pattern string            `yaml:"pattern"`
	Class   model.CookieClass `yaml:"class"`
	Match   MatchMode         `yaml:"match"`
}

// SignalSignature maps a markup fragment to a data-collection signal.
type SignalSignature struct {
	Category    model.SignalCategory `yaml:"category"`
	Signature   string               `yaml:"signature"`
	Description string               `yaml:"description"`
}

// ConsentProvider is a known consent management platform.
type ConsentProvider struct {
	Signature string `yaml:"signature"`
	Name      string `yaml:"name"`
}

// ConsentVocabulary holds the consent banner heuristics.
type ConsentVocabulary struct {
	Providers        []ConsentProvider `yaml:"providers"`
	BannerKeywords   []string          `yaml:"banner_keywords"`
	RejectKeywords   []string          `yaml:"reject_keywords"`
	GranularKeywords []string          `yaml:"granular_keywords"`

	// BeforeConsent fragments are matched case-sensitively against raw markup.
	BeforeConsent []string `yaml:"before_consent"`
}

// EnforcementCase is a real regulatory action.
type EnforcementCase struct {
	Company   string   `yaml:"company"`
	Fine      string   `yaml:"fine"`
	FineUSD   int64    `yaml:"fine_usd"`
	Year      int      `yaml:"year"`
	Authority string   `yaml:"authority"`
	Violation string   `yaml:"violation"`
	Tags      []string `yaml:"tags"`
}

// Catalog is a read-only, versioned registry of tracker signatures and
// enforcement cases. A Catalog is safe for concurrent use.
type Catalog struct {
	def Definition

	// cookiesByClass holds cookie signatures in classification priority order.
	cookiesByClass [][]CookieSignature
}

// cookieClassOrder is the order in which cookie classes are tried.
var cookieClassOrder = []model.CookieClass{model.CookieAdvertising, model.CookieAnalytics, model.CookieEssential}

// Default returns the catalogue embedded in the binary.
func Default() (*Catalog, error) {
	return Load(bytes.NewReader(defaultCatalogue))
}

// LoadFile reads a catalogue from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalogue: %w", err)
	}
	return Load(bytes.NewReader(data))
}

// Load reads a catalogue from YAML. The document is validated against the
// catalogue schema before it is decoded.
func Load(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalogue: %w", err)
	}
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalogue, err)
	}
	return New(def)
}

// New validates def and freezes it into a Catalog. The definition is
// copied, so later changes to def do not affect the catalogue.
func New(def Definition) (*Catalog, error) {
	if strings.TrimSpace(def.Version) == "" {
		return nil, fmt.Errorf("%w: version is required", ErrInvalidCatalogue)
	}

	seen := make(map[string]struct{}, len(def.Trackers))
	for i, t := range def.Trackers {
		if t.Key == "" || t.Name == "" {
			return nil, fmt.Errorf("%w: trackers[%d]: key and name are required", ErrInvalidCatalogue, i)
		}
		if _, err := model.ParseTrackerCategory(string(t.Category)); err != nil {
			return nil, fmt.Errorf("trackers[%d] %s: %w", i, t.Key, err)
		}
		key := strings.ToLower(t.Key)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: tracker %s", ErrDuplicateKey, t.Key)
		}
		seen[key] = struct{}{}
	}

	seen = make(map[string]struct{}, len(def.InlineCalls))
	for i, c := range def.InlineCalls {
		if c.Fragment == "" || c.Name == "" {
			return nil, fmt.Errorf("%w: inline_calls[%d]: fragment and name are required", ErrInvalidCatalogue, i)
		}
		if _, err := model.ParseTrackerCategory(string(c.Category)); err != nil {
			return nil, fmt.Errorf("inline_calls[%d] %s: %w", i, c.Fragment, err)
		}
		if _, dup := seen[c.Fragment]; dup {
			return nil, fmt.Errorf("%w: inline call %s", ErrDuplicateKey, c.Fragment)
		}
		seen[c.Fragment] = struct{}{}
	}

	for i, c := range def.Cookies {
		if _, err := model.ParseCookieClass(string(c.Class)); err != nil {
			return nil, fmt.Errorf("cookies[%d] %s: %w", i, c.Pattern, err)
		}
		if c.Class == model.CookieUnknown {
			return nil, fmt.Errorf("%w: cookies[%d]: unknown is the fallback class", ErrInvalidCatalogue, i)
		}
		switch c.Match {
		case "", MatchContains, MatchPrefix, MatchExact:
		default:
			return nil, fmt.Errorf("%w: cookies[%d]: match mode %q", ErrInvalidCatalogue, i, c.Match)
		}
	}

	for i, s := range def.Signals {
		if _, err := model.ParseSignalCategory(string(s.Category)); err != nil {
			return nil, fmt.Errorf("signals[%d] %s: %w", i, s.Signature, err)
		}
	}

	for i, c := range def.Cases {
		if c.FineUSD < 0 {
			return nil, fmt.Errorf("%w: cases[%d]: negative fine", ErrInvalidCatalogue, i)
		}
		if len(c.Tags) == 0 {
			return nil, fmt.Errorf("%w: cases[%d]: at least one tag is required", ErrInvalidCatalogue, i)
		}
	}

	c := &Catalog{def: cloneDefinition(def)}
	for _, class := range cookieClassOrder {
		var group []CookieSignature
		for _, sig := range c.def.Cookies {
			if sig.Class == class {
				if sig.Match == "" {
					sig.Match = MatchContains
				}
				group = append(group, sig)
			}
		}
		c.cookiesByClass = append(c.cookiesByClass, group)
	}
	return c, nil
}

// Version returns the catalogue version string.
func (c *Catalog) Version() string { return c.def.Version }

// Trackers returns a copy of the tracker signatures in catalogue order.
func (c *Catalog) Trackers() []TrackerSignature {
	return cloneDefinition(Definition{Trackers: c.def.Trackers}).Trackers
}

// InlineCalls returns a copy of the inline call table in catalogue order.
func (c *Catalog) InlineCalls() []InlineCall {
	return cloneDefinition(Definition{InlineCalls: c.def.InlineCalls}).InlineCalls
}

// Cookies returns a copy of the cookie signatures in catalogue order.
func (c *Catalog) Cookies() []CookieSignature {
	return slices.Clone(c.def.Cookies)
}

// Signals returns a copy of the signal signatures in catalogue order.
func (c *Catalog) Signals() []SignalSignature {
	return slices.Clone(c.def.Signals)
}

// Consent returns a copy of the consent heuristics.
func (c *Catalog) Consent() ConsentVocabulary {
	return cloneDefinition(Definition{Consent: c.def.Consent}).Consent
}

// Cases returns a copy of the enforcement case table.
func (c *Catalog) Cases() []EnforcementCase {
	return cloneDefinition(Definition{Cases: c.def.Cases}).Cases
}

// Tracker converts a signature into a tracker finding.
func (t TrackerSignature) Tracker(channel model.DetectionChannel, origin string) model.Tracker {
	return model.Tracker{
		Name:           t.Name,
		Category:       t.Category,
		DataCategories: slices.Clone(t.DataCategories),
		Signature:      t.Key,
		Channel:        channel,
		OriginPage:     origin,
	}
}

// Tracker converts an inline call into a tracker finding. The recorded
// signature is the fragment without call punctuation.
func (ic InlineCall) Tracker(origin string) model.Tracker {
	return model.Tracker{
		Name:           ic.Name,
		Category:       ic.Category,
		DataCategories: slices.Clone(ic.DataCategories),
		Signature:      strings.Trim(ic.Fragment, "(.'\""),
		Channel:        model.ChannelInlineScript,
		OriginPage:     origin,
	}
}

// Ref converts an enforcement case into the reference attached to gaps.
func (e EnforcementCase) Ref() model.CaseRef {
	return model.CaseRef{
		Company:   e.Company,
		Fine:      e.Fine,
		FineUSD:   e.FineUSD,
		Year:      e.Year,
		Authority: e.Authority,
		Violation: e.Violation,
		Tags:      slices.Clone(e.Tags),
	}
}

func cloneDefinition(d Definition) Definition {
	out := Definition{Version: d.Version}
	if d.Trackers != nil {
		out.Trackers = make([]TrackerSignature, len(d.Trackers))
		for i, t := range d.Trackers {
			t.DataCategories = slices.Clone(t.DataCategories)
			out.Trackers[i] = t
		}
	}
	if d.InlineCalls != nil {
		out.InlineCalls = make([]InlineCall, len(d.InlineCalls))
		for i, ic := range d.InlineCalls {
			ic.DataCategories = slices.Clone(ic.DataCategories)
			out.InlineCalls[i] = ic
		}
	}
	out.Cookies = slices.Clone(d.Cookies)
	out.Signals = slices.Clone(d.Signals)
	out.Consent = ConsentVocabulary{
		Providers:        slices.Clone(d.Consent.Providers),
		BannerKeywords:   slices.Clone(d.Consent.BannerKeywords),
		RejectKeywords:   slices.Clone(d.Consent.RejectKeywords),
		GranularKeywords: slices.Clone(d.Consent.GranularKeywords),
		BeforeConsent:    slices.Clone(d.Consent.BeforeConsent),
	}
	if d.Cases != nil {
		out.Cases = make([]EnforcementCase, len(d.Cases))
		for i, e := range d.Cases {
			e.Tags = slices.Clone(e.Tags)
			out.Cases[i] = e
		}
	}
	return out
}
