package crawler

import (
	"strings"

	"github.com/nao1215/privacygap/internal/catalog"
	"github.com/nao1215/privacygap/internal/model"
)

// Consent issues recorded on model.ConsentBanner.
const (
	IssueNoBanner      = "No cookie consent banner detected"
	IssueNoReject      = "No 'Reject All' option; GDPR requires rejecting to be as easy as accepting"
	IssueNoGranular    = "No granular cookie category controls detected"
	IssueBeforeConsent = "Tracking scripts load before user consent is given"
)

// detectConsent evaluates the consent heuristics against raw markup.
// A missing banner is only an issue when trackingEvidence is true: a site
// that sets no tracking cookies and loads no trackers needs no banner.
func detectConsent(cat *catalog.Catalog, markup string, trackingEvidence bool) model.ConsentBanner {
	vocab := cat.Consent()
	lower := strings.ToLower(markup)
	banner := model.ConsentBanner{Issues: make([]string, 0)}

	if p, ok := cat.MatchConsentProvider(lower); ok {
		banner.Detected = true
		banner.Provider = p.Name
	}
	if containsAny(lower, vocab.BannerKeywords) {
		banner.Detected = true
	}
	banner.HasRejectOption = containsAny(lower, vocab.RejectKeywords)
	banner.HasGranularControls = containsAny(lower, vocab.GranularKeywords)

	switch {
	case !banner.Detected && trackingEvidence:
		banner.Issues = append(banner.Issues, IssueNoBanner)
	case banner.Detected:
		if !banner.HasRejectOption {
			banner.Issues = append(banner.Issues, IssueNoReject)
		}
		if !banner.HasGranularControls {
			banner.Issues = append(banner.Issues, IssueNoGranular)
		}
	}

	for _, fragment := range vocab.BeforeConsent {
		if strings.Contains(markup, fragment) {
			banner.TrackersLoadBeforeConsent = true
			banner.Issues = append(banner.Issues, IssueBeforeConsent)
			break
		}
	}
	return banner
}

// containsAny reports whether lower contains any keyword, compared
// case-insensitively.
func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
