package gap

import (
	"strings"
	"testing"

	"github.com/nao1215/privacygap/internal/model"
)

func evaluate(t *testing.T, r Rule, ev *model.EvidenceRecord) *model.Gap {
	t.Helper()
	g, err := r.Evaluate(newInput(ev, DefaultThresholds(), nil, DefaultCaseLimit))
	if err != nil {
		t.Fatalf("%s: Evaluate() error = %v", r.ID(), err)
	}
	return g
}

func TestContainsPhrase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text, phrase string
		want         bool
	}{
		{"minimum age is 16", "age", true},
		{"see this page", "age", false},
		{"metadata about you", "meta", false},
		{"we share with meta.", "meta", true},
		{"(age)", "age", true},
		{"image, page, age", "age", true},
		{"do not sell", "do not sell", true},
		{"", "age", false},
		{"anything", "", false},
		{"über alles", "über", true},
	}
	for _, tt := range tests {
		if got := containsPhrase(tt.text, tt.phrase); got != tt.want {
			t.Errorf("containsPhrase(%q, %q) = %v, want %v", tt.text, tt.phrase, got, tt.want)
		}
	}
}

func TestSensitiveField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		field model.FormField
		want  bool
	}{
		{model.FormField{Name: "date_of_birth", InputType: "date"}, true},
		{model.FormField{Name: "dob", InputType: "text"}, true},
		{model.FormField{Name: "user-age", InputType: "number"}, true},
		{model.FormField{Name: "mobileNumber", InputType: "text"}, true},
		{model.FormField{Name: "contact", InputType: "tel"}, true},
		{model.FormField{Name: "zip", InputType: "text"}, true},
		{model.FormField{Name: "billing_address", InputType: "text"}, true},
		{model.FormField{Name: "gender", InputType: "select"}, true},
		{model.FormField{Name: "email_address", InputType: "text"}, false},
		{model.FormField{Name: "contact", InputType: "email"}, false},
		{model.FormField{Name: "page", InputType: "text"}, false},
		{model.FormField{Name: "hotel", InputType: "text"}, false},
		{model.FormField{Name: "password", InputType: "password"}, false},
		{model.FormField{Name: "username", InputType: "text"}, false},
	}
	for _, tt := range tests {
		if got := sensitiveField(tt.field); got != tt.want {
			t.Errorf("sensitiveField(%+v) = %v, want %v", tt.field, got, tt.want)
		}
	}
}

func TestAdvertisingRule(t *testing.T) {
	t.Parallel()

	ads := func() *model.EvidenceRecord {
		ev := reachableRecord()
		ev.Trackers = []model.Tracker{
			tracker("Google Ads", model.CategoryAdvertising, "googleadservices.com"),
			tracker("Criteo", model.CategoryAdvertising, "criteo.com"),
			tracker("Hotjar", model.CategoryAnalytics, "hotjar.com"),
		}
		return ev
	}

	t.Run("no policy counts every tracker", func(t *testing.T) {
		t.Parallel()

		g := evaluate(t, advertisingRule{}, ads())
		if g == nil || g.Severity != model.SeverityCritical {
			t.Fatalf("got %+v", g)
		}
		if g.RiskAmount != 2*68000 {
			t.Errorf("RiskAmount = %d", g.RiskAmount)
		}
		if !strings.HasPrefix(g.Claim, claimNoPolicy) {
			t.Errorf("Claim = %q", g.Claim)
		}
		if strings.Contains(g.Evidence, "Hotjar") {
			t.Errorf("Evidence %q names an analytics tracker", g.Evidence)
		}
	})

	t.Run("partly disclosed", func(t *testing.T) {
		t.Parallel()

		g := evaluate(t, advertisingRule{}, withPolicy(ads(), fullPolicy))
		if g.Severity != model.SeverityCritical {
			t.Errorf("Severity = %v", g.Severity)
		}
		if g.Claim != "Privacy policy does not name: Criteo." {
			t.Errorf("Claim = %q", g.Claim)
		}
		if !strings.Contains(g.Title, "1 not named") {
			t.Errorf("Title = %q", g.Title)
		}
	})

	t.Run("fully disclosed is a warning", func(t *testing.T) {
		t.Parallel()

		g := evaluate(t, advertisingRule{}, withPolicy(ads(), fullPolicy+" Criteo retargets visitors."))
		if g.Severity != model.SeverityWarning {
			t.Errorf("Severity = %v", g.Severity)
		}
		if g.RiskAmount != 2*68000 {
			t.Errorf("RiskAmount = %d", g.RiskAmount)
		}
	})

	t.Run("no advertising trackers", func(t *testing.T) {
		t.Parallel()

		if g := evaluate(t, advertisingRule{}, reachableRecord()); g != nil {
			t.Errorf("unexpected gap %+v", g)
		}
	})
}

func TestAnalyticsRule(t *testing.T) {
	t.Parallel()

	ev := withPolicy(reachableRecord(), fullPolicy)
	ev.Trackers = []model.Tracker{
		tracker("Google Analytics", model.CategoryAnalytics, "google-analytics.com"),
		tracker("Mixpanel", model.CategoryAnalytics, "mixpanel.com"),
	}
	g := evaluate(t, analyticsRule{}, ev)
	if g == nil {
		t.Fatal("analytics gap missing")
	}
	if g.RiskAmount != 15000 {
		t.Errorf("RiskAmount = %d, want 15000", g.RiskAmount)
	}
	if g.Claim != "Privacy policy does not name: Mixpanel." {
		t.Errorf("Claim = %q", g.Claim)
	}
}

func TestConsentRule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		banner    model.ConsentBanner
		wantNil   bool
		severity  model.Severity
		wantClaim string
	}{
		{
			name:    "no issues",
			banner:  model.ConsentBanner{Detected: true, HasRejectOption: true, HasGranularControls: true, Issues: []string{}},
			wantNil: true,
		},
		{
			name:      "one issue",
			banner:    model.ConsentBanner{Detected: true, Provider: "OneTrust", Issues: []string{"No 'Reject All' option"}},
			severity:  model.SeverityWarning,
			wantClaim: "(OneTrust)",
		},
		{
			name:      "no banner and early trackers",
			banner:    model.ConsentBanner{Issues: []string{"No cookie consent banner detected", "Tracking scripts load before user consent is given"}},
			severity:  model.SeverityCritical,
			wantClaim: "No cookie consent banner",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ev := reachableRecord()
			ev.ConsentBanner = tt.banner
			g := evaluate(t, consentRule{}, ev)
			if tt.wantNil {
				if g != nil {
					t.Errorf("unexpected gap %+v", g)
				}
				return
			}
			if g.Severity != tt.severity {
				t.Errorf("Severity = %v, want %v", g.Severity, tt.severity)
			}
			if !strings.Contains(g.Claim, tt.wantClaim) {
				t.Errorf("Claim = %q, want it to contain %q", g.Claim, tt.wantClaim)
			}
			if g.RiskAmount != 180000 {
				t.Errorf("RiskAmount = %d", g.RiskAmount)
			}
		})
	}
}

func TestSignalDisclosureRules(t *testing.T) {
	t.Parallel()

	rules := map[string]Rule{}
	for _, r := range DefaultRules() {
		rules[r.ID()] = r
	}
	location, recording := rules[RuleLocation], rules[RuleRecording]
	if location == nil || recording == nil {
		t.Fatal("signal rules not registered")
	}

	geo := func() *model.EvidenceRecord {
		ev := reachableRecord()
		ev.DataSignals = []model.DataSignal{{
			Category:    model.SignalGeolocation,
			Signature:   "navigator.geolocation",
			Description: "Browser geolocation API",
		}}
		return ev
	}

	t.Run("location without policy", func(t *testing.T) {
		t.Parallel()

		g := evaluate(t, location, geo())
		if g == nil || g.Severity != model.SeverityCritical || g.RiskAmount != 2100000 {
			t.Fatalf("got %+v", g)
		}
		if !strings.Contains(g.Evidence, "navigator.geolocation") {
			t.Errorf("Evidence = %q", g.Evidence)
		}
	})

	t.Run("location disclosed", func(t *testing.T) {
		t.Parallel()

		ev := withPolicy(geo(), fullPolicy+" We use your approximate location to show nearby stores.")
		if g := evaluate(t, location, ev); g != nil {
			t.Errorf("unexpected gap %+v", g)
		}
	})

	t.Run("recording not disclosed", func(t *testing.T) {
		t.Parallel()

		ev := withPolicy(reachableRecord(), fullPolicy)
		ev.DataSignals = []model.DataSignal{{
			Category:    model.SignalSessionRecording,
			Signature:   "hotjar",
			Description: "Session recording",
		}}
		g := evaluate(t, recording, ev)
		if g == nil || g.Severity != model.SeverityWarning || g.RiskAmount != 95000 {
			t.Fatalf("got %+v", g)
		}
		if g.Claim != "Privacy policy does not mention session recording data collection." {
			t.Errorf("Claim = %q", g.Claim)
		}
	})
}

func TestRightsRule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		policy   string
		wantNil  bool
		severity model.Severity
		risk     int64
	}{
		{name: "all rights", policy: fullPolicy, wantNil: true},
		{
			name:    "one missing is wording variance",
			policy:  strings.Replace(fullPolicy, "data portability in a machine-readable format", "copies", 1),
			wantNil: true,
		},
		{
			name:     "two missing",
			policy:   strings.Replace(strings.Replace(fullPolicy, "data portability in a machine-readable format", "copies", 1), "the right to object", "more", 1),
			severity: model.SeverityInfo,
			risk:     2 * 8000,
		},
		{
			name:     "none described",
			policy:   strings.Repeat("We process personal data lawfully. ", 10),
			severity: model.SeverityWarning,
			risk:     5 * 8000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := evaluate(t, rightsRule{}, withPolicy(reachableRecord(), tt.policy))
			if tt.wantNil {
				if g != nil {
					t.Errorf("unexpected gap %+v", g)
				}
				return
			}
			if g == nil {
				t.Fatal("rights gap missing")
			}
			if g.Severity != tt.severity || g.RiskAmount != tt.risk {
				t.Errorf("got %v/%d, want %v/%d", g.Severity, g.RiskAmount, tt.severity, tt.risk)
			}
		})
	}
}

func TestCrossBorderRule(t *testing.T) {
	t.Parallel()

	noTransfer := strings.Repeat("We process personal data lawfully. ", 10)

	ev := withPolicy(reachableRecord(), noTransfer)
	ev.Trackers = []model.Tracker{
		tracker("Facebook Pixel", model.CategoryAdvertising, "connect.facebook.net"),
		tracker("Criteo", model.CategoryAdvertising, "criteo.com"),
	}
	g := evaluate(t, crossBorderRule{}, ev)
	if g == nil {
		t.Fatal("cross-border gap missing")
	}
	if !strings.Contains(g.Evidence, "Facebook Pixel") || strings.Contains(g.Evidence, "Criteo") {
		t.Errorf("Evidence = %q", g.Evidence)
	}

	ev.PrivacyPolicy.Text = noTransfer + "Data may be transferred to the United States."
	if g := evaluate(t, crossBorderRule{}, ev); g != nil {
		t.Errorf("unexpected gap %+v", g)
	}
}

func TestExcessiveFieldsClaim(t *testing.T) {
	t.Parallel()

	ev := withPolicy(reachableRecord(), fullPolicy+" We apply data minimisation to everything we collect.")
	ev.Forms = []model.Form{
		{Fields: []model.FormField{{Name: "phone", InputType: "tel", Required: true}}},
		{Fields: []model.FormField{{Name: "phone", InputType: "tel", Required: true}, {Name: "ssn", Required: true}}, Source: "/register"},
	}
	g := evaluate(t, excessiveFieldsRule{}, ev)
	if g == nil {
		t.Fatal("excessive fields gap missing")
	}
	if g.RiskAmount != 2*12000 {
		t.Errorf("RiskAmount = %d, want %d", g.RiskAmount, 2*12000)
	}
	if !strings.Contains(g.Claim, "commits to data minimization") {
		t.Errorf("Claim = %q", g.Claim)
	}
}
