package model

import (
	"errors"
	"fmt"
	"slices"
)

// EvidenceRecord is everything a single scan observed about a site.
//
// A record is built once by the extractor and must not be modified after
// it is returned. Consumers that need a private copy use Clone.
type EvidenceRecord struct {
	// URL is the normalized target URL including scheme.
	URL string `json:"url"`

	// Domain is the target host with any leading "www." removed.
	Domain string `json:"domain"`

	// CompanyName is inferred from the registrable domain.
	CompanyName string `json:"company_name"`

	// PageTitle is the landing page title, or CompanyName when the page has none.
	PageTitle string `json:"page_title"`

	// Reachable is false when the primary fetch failed. An unreachable
	// record carries no findings and exactly one explanatory error.
	Reachable bool `json:"reachable"`

	Trackers          []Tracker          `json:"trackers"`
	Cookies           []Cookie           `json:"cookies"`
	Forms             []Form             `json:"forms"`
	DataSignals       []DataSignal       `json:"data_signals"`
	ConsentBanner     ConsentBanner      `json:"consent_banner"`
	PrivacyPolicy     PrivacyPolicy      `json:"privacy_policy"`
	ThirdPartyScripts []ThirdPartyScript `json:"third_party_scripts"`

	// MetaTags holds name/property meta tags from the landing page.
	MetaTags map[string]string `json:"meta_tags,omitempty"`

	// Errors lists non-fatal retrieval and parsing problems in the order
	// they occurred.
	Errors []string `json:"errors"`

	// Steps records the outcome of every extraction step.
	Steps []StepOutcome `json:"steps,omitempty"`
}

// Tracker is a third-party tracker found by one of the detection channels.
type Tracker struct {
	// Name is the canonical catalogue name. Trackers are unique by Name.
	Name string `json:"name"`

	Category TrackerCategory `json:"category"`

	// DataCategories are the kinds of data the tracker is known to collect.
	DataCategories []string `json:"data_categories"`

	// Signature is the catalogue key or call fragment that matched.
	Signature string `json:"signature"`

	Channel DetectionChannel `json:"detection_channel"`

	// OriginPage is the URL of the page the tracker was found on.
	OriginPage string `json:"origin_page"`
}

// Cookie is a cookie set by the landing page.
type Cookie struct {
	Name string `json:"name"`

	// SampleValue is truncated to 50 characters, or "(from header)" when the
	// cookie was only visible in a raw Set-Cookie header.
	SampleValue string `json:"sample_value"`

	Classification CookieClass `json:"classification"`
}

// Form is a form that collects at least one visible field.
type Form struct {
	Action string      `json:"action"`
	Method string      `json:"method"`
	Fields []FormField `json:"fields"`

	// Source is the path of the auxiliary page the form came from, empty
	// for the landing page.
	Source string `json:"source,omitempty"`
}

// FormField is one visible input of a Form.
type FormField struct {
	Name      string `json:"name"`
	InputType string `json:"input_type"`
	Required  bool   `json:"required"`
}

// DataSignal is a data-collection capability detected in markup.
type DataSignal struct {
	Category    SignalCategory `json:"category"`
	Signature   string         `json:"raw_signature"`
	Description string         `json:"description"`
	OriginPage  string         `json:"origin_page,omitempty"`
}

// ConsentBanner is the outcome of the consent heuristics.
type ConsentBanner struct {
	Detected                  bool     `json:"detected"`
	Provider                  string   `json:"provider,omitempty"`
	HasRejectOption           bool     `json:"has_reject_option"`
	HasGranularControls       bool     `json:"has_granular_controls"`
	TrackersLoadBeforeConsent bool     `json:"trackers_load_before_consent"`
	Issues                    []string `json:"issues"`
}

// PrivacyPolicy is the retrieved policy and how far it can be trusted.
type PrivacyPolicy struct {
	URL        string     `json:"url,omitempty"`
	Text       string     `json:"text,omitempty"`
	Confidence Confidence `json:"retrieval_confidence"`
}

// ThirdPartyScript is an external script or connection hint outside the
// site's own domain.
type ThirdPartyScript struct {
	Domain string `json:"domain"`
	Source string `json:"src"`

	// Kind is "script" for script tags and "preconnect" for
	// preconnect/dns-prefetch link hints.
	Kind string `json:"kind"`
}

// StepStatus classifies the outcome of one extraction step.
type StepStatus string

const (
	// StepSuccess means the step produced its evidence.
	StepSuccess StepStatus = "success"
	// StepRecoverable means the step failed but the scan continued with
	// partial evidence.
	StepRecoverable StepStatus = "recoverable"
	// StepFatal means the step failed and the scan was aborted.
	StepFatal StepStatus = "fatal"
	// StepSkipped means the step did not need to run.
	StepSkipped StepStatus = "skipped"
)

// StepOutcome records what happened in one extraction step.
type StepOutcome struct {
	Step   string     `json:"step"`
	Status StepStatus `json:"status"`
	URL    string     `json:"url,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// NewUnreachableRecord builds the record returned when the primary fetch fails.
func NewUnreachableRecord(url, domain, company, reason string) *EvidenceRecord {
	return &EvidenceRecord{
		URL:               url,
		Domain:            domain,
		CompanyName:       company,
		PageTitle:         company,
		Reachable:         false,
		Trackers:          []Tracker{},
		Cookies:           []Cookie{},
		Forms:             []Form{},
		DataSignals:       []DataSignal{},
		ConsentBanner:     ConsentBanner{Issues: []string{}},
		PrivacyPolicy:     PrivacyPolicy{Confidence: ConfidenceNone},
		ThirdPartyScripts: []ThirdPartyScript{},
		Errors:            []string{reason},
	}
}

// TrackersByCategory returns the trackers of the given category in record order.
func (r *EvidenceRecord) TrackersByCategory(c TrackerCategory) []Tracker {
	var out []Tracker
	for _, t := range r.Trackers {
		if t.Category == c {
			out = append(out, t)
		}
	}
	return out
}

// SignalsByCategory returns the data signals of the given category in record order.
func (r *EvidenceRecord) SignalsByCategory(c SignalCategory) []DataSignal {
	var out []DataSignal
	for _, s := range r.DataSignals {
		if s.Category == c {
			out = append(out, s)
		}
	}
	return out
}

// HasTracker reports whether a tracker with the given canonical name is recorded.
func (r *EvidenceRecord) HasTracker(name string) bool {
	return slices.ContainsFunc(r.Trackers, func(t Tracker) bool { return t.Name == name })
}

// HasTrackingEvidence reports whether any tracker or non-essential cookie was found.
func (r *EvidenceRecord) HasTrackingEvidence() bool {
	if len(r.Trackers) > 0 {
		return true
	}
	return slices.ContainsFunc(r.Cookies, func(c Cookie) bool { return c.Classification.NonEssential() })
}

// Validate checks that every enumerated field is known and that every
// tracker and signal carries the detection evidence it was recorded with.
func (r *EvidenceRecord) Validate() error {
	var errs []error
	for i, t := range r.Trackers {
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("trackers[%d]: empty name", i))
		}
		if !t.Category.Valid() {
			errs = append(errs, fmt.Errorf("trackers[%d]: %w: tracker category %q", i, ErrUnknownCategory, t.Category))
		}
		if !t.Channel.Valid() {
			errs = append(errs, fmt.Errorf("trackers[%d]: %w: detection channel %q", i, ErrUnknownCategory, t.Channel))
		}
		if t.Signature == "" {
			errs = append(errs, fmt.Errorf("trackers[%d] %s: no signature recorded", i, t.Name))
		}
	}
	for i, s := range r.DataSignals {
		if !s.Category.Valid() {
			errs = append(errs, fmt.Errorf("data_signals[%d]: %w: signal category %q", i, ErrUnknownCategory, s.Category))
		}
		if s.Signature == "" {
			errs = append(errs, fmt.Errorf("data_signals[%d]: no signature recorded", i))
		}
	}
	for i, c := range r.Cookies {
		if !c.Classification.Valid() {
			errs = append(errs, fmt.Errorf("cookies[%d]: %w: cookie class %q", i, ErrUnknownCategory, c.Classification))
		}
	}
	if !r.PrivacyPolicy.Confidence.Valid() {
		errs = append(errs, fmt.Errorf("privacy_policy: %w: confidence %q", ErrUnknownCategory, r.PrivacyPolicy.Confidence))
	}
	return errors.Join(errs...)
}

// Clone returns a deep copy of the record.
func (r *EvidenceRecord) Clone() *EvidenceRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Trackers = make([]Tracker, len(r.Trackers))
	for i, t := range r.Trackers {
		t.DataCategories = slices.Clone(t.DataCategories)
		c.Trackers[i] = t
	}
	c.Cookies = slices.Clone(r.Cookies)
	c.Forms = make([]Form, len(r.Forms))
	for i, f := range r.Forms {
		f.Fields = slices.Clone(f.Fields)
		c.Forms[i] = f
	}
	c.DataSignals = slices.Clone(r.DataSignals)
	c.ConsentBanner.Issues = slices.Clone(r.ConsentBanner.Issues)
	c.ThirdPartyScripts = slices.Clone(r.ThirdPartyScripts)
	if r.MetaTags != nil {
		c.MetaTags = make(map[string]string, len(r.MetaTags))
		for k, v := range r.MetaTags {
			c.MetaTags[k] = v
		}
	}
	c.Errors = slices.Clone(r.Errors)
	c.Steps = slices.Clone(r.Steps)
	return &c
}
