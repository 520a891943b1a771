package gap

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nao1215/privacygap/internal/model"
)

// Rule identifiers, in evaluation order.
const (
	RuleAdvertising     = "advertising_trackers"
	RuleAnalytics       = "analytics_trackers"
	RuleConsent         = "consent_defects"
	RuleLocation        = "location_undisclosed"
	RuleRecording       = "session_recording_undisclosed"
	RuleRetention       = "retention_undisclosed"
	RuleRights          = "rights_incomplete"
	RuleCrossBorder     = "cross_border_undisclosed"
	RuleChildren        = "children_undisclosed"
	RuleExcessiveFields = "excessive_form_fields"
)

// Evidence record field names cited by gaps.
const (
	fieldTrackers      = "trackers"
	fieldConsentBanner = "consent_banner"
	fieldDataSignals   = "data_signals"
	fieldPrivacyPolicy = "privacy_policy"
	fieldForms         = "forms"
)

const claimNoPolicy = "Could not retrieve a usable privacy policy to verify"

// DefaultRules returns the canonical rules in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		advertisingRule{},
		analyticsRule{},
		consentRule{},
		signalDisclosureRule{
			id:       RuleLocation,
			category: model.SignalGeolocation,
			keywords: []string{"location", "geolocation", "gps", "geographic"},
			subject:  "location",
			title:    "Location tracking",
			severity: model.SeverityCritical,
			regs:     []model.Regulation{model.GDPRArt13_1e, model.CCPA1798_100b},
			tags:     []string{"location", "disclosure"},
			risk:     func(t Thresholds) int64 { return t.LocationRisk },
		},
		signalDisclosureRule{
			id:       RuleRecording,
			category: model.SignalSessionRecording,
			keywords: []string{"session recording", "session replay", "screen recording", "hotjar", "fullstory", "clarity"},
			subject:  "session recording",
			title:    "Session recording",
			severity: model.SeverityWarning,
			regs:     []model.Regulation{model.GDPRArt13, model.CCPA1798_100b, model.EPrivacyArt5_3},
			tags:     []string{"recording", "transparency"},
			risk:     func(t Thresholds) int64 { return t.RecordingRisk },
		},
		retentionRule{},
		rightsRule{},
		crossBorderRule{},
		childrenRule{},
		excessiveFieldsRule{},
	}
}

// advertising_trackers

type advertisingRule struct{}

func (advertisingRule) ID() string { return RuleAdvertising }
func (advertisingRule) PolicyGated() bool { return false }

func (advertisingRule) Evaluate(in *Input) (*model.Gap, error) {
	ads := in.Evidence.TrackersByCategory(model.CategoryAdvertising)
	if len(ads) == 0 {
		return nil, nil
	}

	var undisclosed []string
	for _, t := range ads {
		if !in.Mentions(firstWord(t.Name), t.Signature) {
			undisclosed = append(undisclosed, t.Name)
		}
	}

	title := fmt.Sprintf("%d advertising trackers detected", len(ads))
	claim := claimNoPolicy + " which advertising partners are disclosed."
	if in.HighConfidence {
		if len(undisclosed) > 0 {
			title += fmt.Sprintf(", %d not named in the privacy policy", len(undisclosed))
			claim = "Privacy policy does not name: " + strings.Join(undisclosed, ", ") + "."
		} else {
			claim = "Privacy policy names every detected advertising partner."
		}
	}

	severity := model.SeverityWarning
	if len(undisclosed) > 0 {
		severity = model.SeverityCritical
	}

	return &model.Gap{
		Severity:       severity,
		Title:          title,
		Regulations:    []model.Regulation{model.CCPA1798_140e, model.CCPA1798_115, model.GDPRArt13_1e},
		RiskAmount:     int64(len(ads)) * in.Thresholds.AdvertisingRiskPerTracker,
		Claim:          claim,
		Evidence:       trackerEvidence(ads),
		EvidenceFields: []string{fieldTrackers, fieldPrivacyPolicy},
		Cases:          in.Cases("advertising", "disclosure", "consent"),
		Tags:           []string{"advertising", "disclosure"},
	}, nil
}

// analytics_trackers

type analyticsRule struct{}

func (analyticsRule) ID() string { return RuleAnalytics }
func (analyticsRule) PolicyGated() bool { return true }

func (analyticsRule) Evaluate(in *Input) (*model.Gap, error) {
	var undisclosed []model.Tracker
	for _, t := range in.Evidence.TrackersByCategory(model.CategoryAnalytics) {
		if !in.Mentions(firstWord(t.Name), t.Signature) {
			undisclosed = append(undisclosed, t)
		}
	}
	if len(undisclosed) == 0 {
		return nil, nil
	}

	names := trackerNames(undisclosed)
	return &model.Gap{
		Severity:       model.SeverityWarning,
		Title:          fmt.Sprintf("%d analytics tools not named in the privacy policy", len(undisclosed)),
		Regulations:    []model.Regulation{model.GDPRArt13_1e, model.CCPA1798_100b},
		RiskAmount:     int64(len(undisclosed)) * in.Thresholds.AnalyticsRiskPerTracker,
		Claim:          "Privacy policy does not name: " + strings.Join(names, ", ") + ".",
		Evidence:       trackerEvidence(undisclosed),
		EvidenceFields: []string{fieldTrackers, fieldPrivacyPolicy},
		Cases:          in.Cases("analytics", "disclosure"),
		Tags:           []string{"analytics", "disclosure"},
	}, nil
}

// consent_defects

type consentRule struct{}

func (consentRule) ID() string { return RuleConsent }
func (consentRule) PolicyGated() bool { return false }

func (consentRule) Evaluate(in *Input) (*model.Gap, error) {
	banner := in.Evidence.ConsentBanner
	if len(banner.Issues) == 0 {
		return nil, nil
	}

	severity := model.SeverityWarning
	if len(banner.Issues) >= in.Thresholds.ConsentCriticalIssues {
		severity = model.SeverityCritical
	}

	claim := "No cookie consent banner was found on the page."
	if banner.Detected {
		claim = "A cookie consent banner is present"
		if banner.Provider != "" {
			claim += " (" + banner.Provider + ")"
		}
		claim += " but it does not meet consent requirements."
	}

	return &model.Gap{
		Severity:       severity,
		Title:          fmt.Sprintf("Cookie consent mechanism has %d defects", len(banner.Issues)),
		Regulations:    []model.Regulation{model.GDPRArt7, model.EPrivacyArt5_3, model.CCPA1798_120},
		RiskAmount:     in.Thresholds.ConsentRisk,
		Claim:          claim,
		Evidence:       strings.Join(banner.Issues, ". ") + ".",
		EvidenceFields: []string{fieldConsentBanner},
		Cases:          in.Cases("cookies", "consent"),
		Tags:           []string{"consent", "cookies"},
	}, nil
}

// location_undisclosed and session_recording_undisclosed

// signalDisclosureRule fires when a data signal category was detected and
// the policy does not mention it.
type signalDisclosureRule struct {
	id       string
	category model.SignalCategory
	keywords []string
	subject  string
	title    string
	severity model.Severity
	regs     []model.Regulation
	tags     []string
	risk     func(Thresholds) int64
}

func (r signalDisclosureRule) ID() string { return r.id }
func (signalDisclosureRule) PolicyGated() bool { return false }

func (r signalDisclosureRule) Evaluate(in *Input) (*model.Gap, error) {
	signals := in.Evidence.SignalsByCategory(r.category)
	if len(signals) == 0 || in.Mentions(r.keywords...) {
		return nil, nil
	}

	title := r.title + " detected"
	claim := claimNoPolicy + " " + r.subject + " disclosure."
	if in.HighConfidence {
		title += ", not disclosed in the privacy policy"
		claim = "Privacy policy does not mention " + r.subject + " data collection."
	}

	descriptions := make([]string, 0, len(signals))
	for _, s := range signals {
		descriptions = append(descriptions, fmt.Sprintf("%s (%s)", s.Description, s.Signature))
	}

	return &model.Gap{
		Severity:       r.severity,
		Title:          title,
		Regulations:    slices.Clone(r.regs),
		RiskAmount:     r.risk(in.Thresholds),
		Claim:          claim,
		Evidence:       "Detected in page code: " + strings.Join(descriptions, "; ") + ".",
		EvidenceFields: []string{fieldDataSignals, fieldPrivacyPolicy},
		Cases:          in.Cases(r.tags...),
		Tags:           slices.Clone(r.tags),
	}, nil
}

// retention_undisclosed

var (
	retentionSpecific = []string{
		"retention period", "retain your data for", "store your data for", "delete after",
		"retained for", "keep your data for", "days", "months", "years",
	}
	retentionVague = []string{"as long as necessary", "as needed", "reasonable period"}
)

type retentionRule struct{}

func (retentionRule) ID() string { return RuleRetention }
func (retentionRule) PolicyGated() bool { return true }

func (retentionRule) Evaluate(in *Input) (*model.Gap, error) {
	if in.Mentions(retentionSpecific...) {
		return nil, nil
	}

	title := "Data retention periods not specified"
	claim := "Privacy policy does not state how long personal data is kept."
	if in.Mentions(retentionVague...) {
		title = "Data retention periods vague"
		claim = "Privacy policy says data is kept \"as long as necessary\" without a specific period."
	}

	return &model.Gap{
		Severity:       model.SeverityWarning,
		Title:          title,
		Regulations:    []model.Regulation{model.GDPRArt13_2a, model.CCPA1798_100a3},
		RiskAmount:     in.Thresholds.RetentionRisk,
		Claim:          claim,
		Evidence:       "No specific retention period found in the privacy policy text.",
		EvidenceFields: []string{fieldPrivacyPolicy},
		Cases:          in.Cases("retention", "deletion"),
		Tags:           []string{"retention", "transparency"},
	}, nil
}

// rights_incomplete

type right struct {
	name     string
	keywords []string
}

var rightsTaxonomy = []right{
	{"Access", []string{"right to access", "right of access", "access your data", "request a copy", "access request"}},
	{"Deletion", []string{"right to deletion", "right to erasure", "delete your data", "right to be forgotten", "request deletion"}},
	{"Portability", []string{"data portability", "portable format", "machine-readable", "export your data"}},
	{"Objection", []string{"right to object", "object to processing", "opt out of processing"}},
	{"Opt-out of sale", []string{"do not sell", "opt-out of sale", "opt out of the sale", "do not share"}},
}

type rightsRule struct{}

func (rightsRule) ID() string { return RuleRights }
func (rightsRule) PolicyGated() bool { return true }

func (rightsRule) Evaluate(in *Input) (*model.Gap, error) {
	var missing []string
	for _, r := range rightsTaxonomy {
		if !in.Mentions(r.keywords...) {
			missing = append(missing, r.name)
		}
	}
	if len(missing) < in.Thresholds.RightsMinMissing {
		return nil, nil
	}

	severity := model.SeverityInfo
	if len(missing) >= in.Thresholds.RightsWarningMissing {
		severity = model.SeverityWarning
	}

	return &model.Gap{
		Severity:       severity,
		Title:          fmt.Sprintf("%d of %d user rights not described", len(missing), len(rightsTaxonomy)),
		Regulations:    []model.Regulation{model.GDPRArt15to22, model.CCPA1798_100to125},
		RiskAmount:     int64(len(missing)) * in.Thresholds.RightsRiskPerMissing,
		Claim:          "Privacy policy does not describe how users exercise every statutory right.",
		Evidence:       "Could not find disclosure of: " + strings.Join(missing, ", ") + ".",
		EvidenceFields: []string{fieldPrivacyPolicy},
		Cases:          in.Cases("rights", "transparency"),
		Tags:           []string{"rights", "transparency"},
	}, nil
}

// cross_border_undisclosed

var (
	usProviders      = []string{"google", "meta", "facebook", "amazon", "microsoft", "tiktok"}
	transferKeywords = []string{
		"international transfer", "cross-border", "data transfer", "standard contractual",
		"adequacy decision", "transfer outside", "transferred to", "united states",
	}
)

const maxNamedProviders = 4

type crossBorderRule struct{}

func (crossBorderRule) ID() string { return RuleCrossBorder }
func (crossBorderRule) PolicyGated() bool { return true }

func (crossBorderRule) Evaluate(in *Input) (*model.Gap, error) {
	var us []string
	for _, t := range in.Evidence.Trackers {
		name := strings.ToLower(t.Name)
		if slices.ContainsFunc(usProviders, func(p string) bool { return strings.Contains(name, p) }) {
			us = append(us, t.Name)
		}
	}
	if len(us) == 0 || in.Mentions(transferKeywords...) {
		return nil, nil
	}

	return &model.Gap{
		Severity:       model.SeverityInfo,
		Title:          "Cross-border data transfers not disclosed",
		Regulations:    []model.Regulation{model.GDPRArt44to49},
		RiskAmount:     in.Thresholds.CrossBorderRisk,
		Claim:          "Privacy policy does not mention international data transfers or their safeguards.",
		Evidence:       fmt.Sprintf("Detected %d services of US-based providers: %s.", len(us), strings.Join(us[:min(len(us), maxNamedProviders)], ", ")),
		EvidenceFields: []string{fieldTrackers, fieldPrivacyPolicy},
		Cases:          in.Cases("cross_border", "data_transfer"),
		Tags:           []string{"cross_border", "data_transfer"},
	}, nil
}

// children_undisclosed

var childrenKeywords = []string{
	"children", "child", "minor", "minors", "under 13", "under 16", "coppa", "parental consent", "age",
}

type childrenRule struct{}

func (childrenRule) ID() string { return RuleChildren }
func (childrenRule) PolicyGated() bool { return true }

func (childrenRule) Evaluate(in *Input) (*model.Gap, error) {
	if in.Mentions(childrenKeywords...) {
		return nil, nil
	}
	return &model.Gap{
		Severity:       model.SeverityInfo,
		Title:          "No children's data provisions",
		Regulations:    []model.Regulation{model.COPPA, model.GDPRArt8, model.UKAADC},
		RiskAmount:     in.Thresholds.ChildrenRisk,
		Claim:          "Privacy policy does not address children's data or age limits.",
		Evidence:       "No age, children or parental consent wording found in the privacy policy text.",
		EvidenceFields: []string{fieldPrivacyPolicy},
		Cases:          in.Cases("children", "coppa"),
		Tags:           []string{"children", "coppa"},
	}, nil
}

// excessive_form_fields

var (
	// sensitiveFragments match anywhere in a field name.
	sensitiveFragments = []string{
		"phone", "mobile", "birth", "address", "street", "postal",
		"social_security", "socialsecurity", "gender", "passport", "national_id",
	}
	// sensitiveTokens match only a whole name token.
	sensitiveTokens = []string{"tel", "age", "dob", "ssn", "zip", "sex"}
)

type excessiveFieldsRule struct{}

func (excessiveFieldsRule) ID() string { return RuleExcessiveFields }
func (excessiveFieldsRule) PolicyGated() bool { return false }

func (excessiveFieldsRule) Evaluate(in *Input) (*model.Gap, error) {
	var flagged []string
	for _, f := range in.Evidence.Forms {
		for _, field := range f.Fields {
			if field.Required && sensitiveField(field) && !slices.Contains(flagged, field.Name) {
				flagged = append(flagged, field.Name)
			}
		}
	}
	if len(flagged) == 0 {
		return nil, nil
	}

	claim := claimNoPolicy + " its data minimization commitments."
	if in.HighConfidence {
		claim = "Privacy policy does not address data minimization."
		if strings.Contains(in.Policy, "minimi") {
			claim = "Privacy policy commits to data minimization, but forms require more than the service needs."
		}
	}

	return &model.Gap{
		Severity:       model.SeverityWarning,
		Title:          fmt.Sprintf("%d sensitive form fields required", len(flagged)),
		Regulations:    []model.Regulation{model.GDPRArt5_1c},
		RiskAmount:     int64(len(flagged)) * in.Thresholds.ExcessiveFieldRisk,
		Claim:          claim,
		Evidence:       "Required fields: " + strings.Join(flagged, ", ") + ". These may not be necessary for the service.",
		EvidenceFields: []string{fieldForms},
		Cases:          in.Cases("minimization", "excessive_collection"),
		Tags:           []string{"minimization", "excessive_collection"},
	}, nil
}

func sensitiveField(f model.FormField) bool {
	name := strings.ToLower(f.Name)
	if f.InputType == "email" || strings.Contains(name, "email") {
		return false
	}
	if f.InputType == "tel" {
		return true
	}
	for _, frag := range sensitiveFragments {
		if strings.Contains(name, frag) {
			return true
		}
	}
	tokens := strings.FieldsFunc(name, func(r rune) bool { return !isWordRune(r) })
	return slices.ContainsFunc(tokens, func(t string) bool { return slices.Contains(sensitiveTokens, t) })
}

func trackerNames(ts []model.Tracker) []string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name
	}
	return names
}

const maxDataCategories = 6

// trackerEvidence names the trackers and what they collect.
func trackerEvidence(ts []model.Tracker) string {
	var cats []string
	for _, t := range ts {
		for _, c := range t.DataCategories {
			if !slices.Contains(cats, c) {
				cats = append(cats, c)
			}
		}
	}
	s := "Detected on the site: " + strings.Join(trackerNames(ts), ", ") + "."
	if len(cats) > 0 {
		s += " These collect: " + strings.Join(cats[:min(len(cats), maxDataCategories)], ", ") + "."
	}
	return s
}

func firstWord(name string) string {
	if f := strings.Fields(strings.ToLower(name)); len(f) > 0 {
		return f[0]
	}
	return ""
}
