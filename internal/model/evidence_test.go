package model

import (
	"errors"
	"strings"
	"testing"
)

func sampleRecord() *EvidenceRecord {
	return &EvidenceRecord{
		URL:       "https://example.com",
		Domain:    "example.com",
		Reachable: true,
		Trackers: []Tracker{
			{Name: "Meta Pixel", Category: CategoryAdvertising, DataCategories: []string{"page views"}, Signature: "facebook.net", Channel: ChannelScriptSrc},
			{Name: "Hotjar", Category: CategoryAnalytics, DataCategories: []string{"clicks"}, Signature: "hotjar.com", Channel: ChannelHTML},
		},
		Cookies: []Cookie{{Name: "sid", SampleValue: "x", Classification: CookieEssential}},
		Forms:   []Form{{Action: "self", Method: "POST", Fields: []FormField{{Name: "email", InputType: "email", Required: true}}}},
		DataSignals: []DataSignal{
			{Category: SignalGeolocation, Signature: "navigator.geolocation", Description: "geo"},
		},
		ConsentBanner: ConsentBanner{Issues: []string{"x"}},
		PrivacyPolicy: PrivacyPolicy{Confidence: ConfidenceLow},
		MetaTags:      map[string]string{"description": "d"},
		Errors:        []string{"e"},
	}
}

func TestEvidenceRecordValidate(t *testing.T) {
	t.Parallel()

	t.Run("valid record", func(t *testing.T) {
		t.Parallel()
		if err := sampleRecord().Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("unknown category", func(t *testing.T) {
		t.Parallel()
		r := sampleRecord()
		r.Trackers[0].Category = "marketing"
		if err := r.Validate(); !errors.Is(err, ErrUnknownCategory) {
			t.Errorf("expected ErrUnknownCategory, got %v", err)
		}
	})

	t.Run("tracker without signature", func(t *testing.T) {
		t.Parallel()
		r := sampleRecord()
		r.Trackers[1].Signature = ""
		err := r.Validate()
		if err == nil || !strings.Contains(err.Error(), "no signature") {
			t.Errorf("expected missing signature error, got %v", err)
		}
	})

	t.Run("empty confidence", func(t *testing.T) {
		t.Parallel()
		r := sampleRecord()
		r.PrivacyPolicy.Confidence = ""
		if err := r.Validate(); !errors.Is(err, ErrUnknownCategory) {
			t.Errorf("expected ErrUnknownCategory, got %v", err)
		}
	})
}

func TestEvidenceRecordQueries(t *testing.T) {
	t.Parallel()

	r := sampleRecord()
	if got := r.TrackersByCategory(CategoryAdvertising); len(got) != 1 || got[0].Name != "Meta Pixel" {
		t.Errorf("TrackersByCategory = %+v", got)
	}
	if got := r.SignalsByCategory(SignalSessionRecording); len(got) != 0 {
		t.Errorf("SignalsByCategory = %+v", got)
	}
	if !r.HasTracker("Hotjar") || r.HasTracker("Criteo") {
		t.Error("HasTracker mismatch")
	}
	if !r.HasTrackingEvidence() {
		t.Error("record with trackers has tracking evidence")
	}

	r.Trackers = nil
	if r.HasTrackingEvidence() {
		t.Error("essential cookies alone are not tracking evidence")
	}
	r.Cookies = append(r.Cookies, Cookie{Name: "_ga", Classification: CookieAnalytics})
	if !r.HasTrackingEvidence() {
		t.Error("analytics cookie is tracking evidence")
	}
}

// TestEvidenceRecordClone verifies that the clone shares no mutable state.
func TestEvidenceRecordClone(t *testing.T) {
	t.Parallel()

	orig := sampleRecord()
	c := orig.Clone()

	c.Trackers[0].DataCategories[0] = "changed"
	c.Forms[0].Fields[0].Name = "changed"
	c.ConsentBanner.Issues[0] = "changed"
	c.MetaTags["description"] = "changed"
	c.Errors[0] = "changed"

	if orig.Trackers[0].DataCategories[0] != "page views" ||
		orig.Forms[0].Fields[0].Name != "email" ||
		orig.ConsentBanner.Issues[0] != "x" ||
		orig.MetaTags["description"] != "d" ||
		orig.Errors[0] != "e" {
		t.Error("mutating the clone changed the original")
	}

	var nilRecord *EvidenceRecord
	if nilRecord.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestNewUnreachableRecord(t *testing.T) {
	t.Parallel()

	r := NewUnreachableRecord("https://down.example", "down.example", "Down", "could not connect")
	if r.Reachable {
		t.Error("record must be unreachable")
	}
	if len(r.Errors) != 1 || r.Errors[0] != "could not connect" {
		t.Errorf("Errors = %v", r.Errors)
	}
	if len(r.Trackers) != 0 || r.PrivacyPolicy.Confidence != ConfidenceNone {
		t.Error("unreachable record must carry no findings")
	}
	if err := r.Validate(); err != nil {
		t.Errorf("unreachable record should validate: %v", err)
	}
}
