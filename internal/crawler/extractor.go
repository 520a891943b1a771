package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"

	"golang.org/x/net/publicsuffix"

	"github.com/nao1215/privacygap/internal/catalog"
	"github.com/nao1215/privacygap/internal/model"
)

// Step names recorded in model.EvidenceRecord.Steps.
const (
	StepFetch          = "fetch"
	StepTrackers       = "trackers"
	StepThirdParty     = "third_party_scripts"
	StepCookies        = "cookies"
	StepForms          = "forms"
	StepSignals        = "signals"
	StepPolicyDiscover = "policy_discovery"
	StepPolicyFetch    = "policy_fetch"
	StepAuxiliary      = "auxiliary_page"
	StepConsent        = "consent"
)

// auxiliaryPaths are tried in order after the landing page; the first one
// that answers below 400 is scanned.
var auxiliaryPaths = []string{"/signup", "/register", "/join", "/account/login", "/login"}

// Extractor turns a website into an evidence record.
//
// An Extractor holds no per-scan state. Every Extract call gets its own
// cookie jar and request pacing, so one Extractor may run scans concurrently.
type Extractor struct {
	client  *http.Client
	catalog *catalog.Catalog
	logger  *slog.Logger

	// fetcherOpts configure the Fetcher built for each scan.
	fetcherOpts []FetcherOption

	// policyURL skips policy discovery and fetches this page instead.
	policyURL string

	// policyText skips policy retrieval altogether.
	policyText string

	skipAuxiliary bool
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithLogger sets the logger used for step logging.
func WithLogger(logger *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// WithFetcherOptions configures the per-scan Fetcher.
func WithFetcherOptions(opts ...FetcherOption) ExtractorOption {
	return func(e *Extractor) {
		e.fetcherOpts = append(e.fetcherOpts, opts...)
	}
}

// WithPolicyURL points the extractor at a known policy page.
func WithPolicyURL(policyURL string) ExtractorOption {
	return func(e *Extractor) {
		e.policyURL = policyURL
	}
}

// WithPolicyText supplies the policy text directly, for sites whose policy
// is rendered by JavaScript.
func WithPolicyText(text string) ExtractorOption {
	return func(e *Extractor) {
		e.policyText = text
	}
}

// WithSkipAuxiliary disables the signup/login page pass.
func WithSkipAuxiliary(skip bool) ExtractorOption {
	return func(e *Extractor) {
		e.skipAuxiliary = skip
	}
}

// NewExtractor creates an Extractor that fetches with client and matches
// against cat. The client's Jar is never used; each scan installs its own.
func NewExtractor(client *http.Client, cat *catalog.Catalog, opts ...ExtractorOption) *Extractor {
	if client == nil {
		client = http.DefaultClient
	}
	e := &Extractor{
		client:  client,
		catalog: cat,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Extract scans rawURL and returns everything it observed.
//
// The only error is ErrInvalidURL for input that cannot be scanned. Network
// and parse problems are written to the record's Errors, and every step's
// outcome to its Steps. When the landing page cannot be fetched the record
// is marked unreachable and carries no findings.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*model.EvidenceRecord, error) {
	t, err := normalizeTarget(rawURL)
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	client := *e.client
	client.Jar = jar

	s := &scan{
		extractor: e,
		target:    t,
		fetcher:   NewFetcher(&client, e.fetcherOpts...),
		logger:    e.logger.With("target", t.Domain),
	}
	return s.run(ctx), nil
}

// scan holds the state of one Extract call.
type scan struct {
	extractor *Extractor
	target    *target
	fetcher   *Fetcher
	logger    *slog.Logger
	steps     []model.StepOutcome
}

func (s *scan) run(ctx context.Context) *model.EvidenceRecord {
	cat := s.extractor.catalog
	pageURL := s.target.URL.String()

	page, err := s.fetcher.Fetch(ctx, pageURL)
	if err == nil && page.StatusCode >= http.StatusBadRequest {
		err = fmt.Errorf("%w: %d", ErrUnexpectedStatus, page.StatusCode)
	}
	if err != nil {
		s.record(StepFetch, model.StepFatal, pageURL, err)
		rec := model.NewUnreachableRecord(pageURL, s.target.Domain, s.target.Company, unreachableReason(pageURL, page, err))
		rec.Steps = s.steps
		return rec
	}
	s.record(StepFetch, model.StepSuccess, page.FinalURL, nil)

	rec := &model.EvidenceRecord{
		URL:         pageURL,
		Domain:      s.target.Domain,
		CompanyName: s.target.Company,
		PageTitle:   page.Title,
		Reachable:   true,
		Errors:      make([]string, 0),
	}
	if rec.PageTitle == "" {
		rec.PageTitle = s.target.Company
	}
	if len(page.Meta) > 0 {
		rec.MetaTags = page.Meta
	}

	rec.Trackers = detectTrackers(cat, page, page.FinalURL)
	s.record(StepTrackers, model.StepSuccess, page.FinalURL, nil)

	rec.ThirdPartyScripts = detectThirdPartyScripts(page, s.target.Domain)
	rec.Trackers = crossReference(cat, rec.Trackers, rec.ThirdPartyScripts, page.FinalURL)
	s.record(StepThirdParty, model.StepSuccess, page.FinalURL, nil)

	rec.Cookies = collectCookies(cat, page)
	s.record(StepCookies, model.StepSuccess, page.FinalURL, nil)

	rec.Forms = detectForms(page, "")
	s.record(StepForms, model.StepSuccess, page.FinalURL, nil)

	rec.DataSignals = detectSignals(cat, page, page.FinalURL)
	s.record(StepSignals, model.StepSuccess, page.FinalURL, nil)

	rec.PrivacyPolicy = s.retrievePolicy(ctx, page, rec)

	if s.extractor.skipAuxiliary {
		s.record(StepAuxiliary, model.StepSkipped, "", nil)
	} else {
		s.scanAuxiliary(ctx, rec)
	}

	rec.ConsentBanner = detectConsent(cat, page.Body(), rec.HasTrackingEvidence())
	s.record(StepConsent, model.StepSuccess, page.FinalURL, nil)

	rec.Steps = s.steps
	s.logger.Info("extraction finished",
		"trackers", len(rec.Trackers),
		"cookies", len(rec.Cookies),
		"policy_confidence", rec.PrivacyPolicy.Confidence,
	)
	return rec
}

// retrievePolicy finds, fetches and assesses the privacy policy.
func (s *scan) retrievePolicy(ctx context.Context, page *model.Page, rec *model.EvidenceRecord) model.PrivacyPolicy {
	if text := s.extractor.policyText; text != "" {
		s.record(StepPolicyDiscover, model.StepSkipped, "", nil)
		s.record(StepPolicyFetch, model.StepSkipped, "", nil)
		kept, confidence, msg := assessPastedPolicy(text)
		if msg != "" {
			rec.Errors = append(rec.Errors, msg)
		}
		return model.PrivacyPolicy{URL: s.extractor.policyURL, Text: kept, Confidence: confidence}
	}

	policyURL := s.extractor.policyURL
	if policyURL != "" {
		s.record(StepPolicyDiscover, model.StepSkipped, policyURL, nil)
	} else {
		policyURL = findPolicyLink(page)
		if policyURL == "" {
			policyURL = s.guessPolicy(ctx)
		}
		if policyURL == "" {
			s.record(StepPolicyDiscover, model.StepRecoverable, "", errors.New("no policy page found"))
			rec.Errors = append(rec.Errors, MsgPolicyNotFound)
			return model.PrivacyPolicy{Confidence: model.ConfidenceNone}
		}
		s.record(StepPolicyDiscover, model.StepSuccess, policyURL, nil)
	}

	policyPage, err := s.fetcher.Fetch(ctx, policyURL)
	if err == nil && policyPage.StatusCode >= http.StatusBadRequest {
		err = fmt.Errorf("%w: %d", ErrUnexpectedStatus, policyPage.StatusCode)
	}
	if err != nil {
		s.record(StepPolicyFetch, model.StepRecoverable, policyURL, err)
		rec.Errors = append(rec.Errors, fmt.Sprintf("Could not fetch privacy policy: %v", err))
		return model.PrivacyPolicy{URL: policyURL, Confidence: model.ConfidenceNone}
	}

	kept, confidence, msg := assessPolicy(extractPolicyText(policyPage.Raw))
	if msg != "" {
		rec.Errors = append(rec.Errors, msg)
		s.record(StepPolicyFetch, model.StepRecoverable, policyURL, errors.New(msg))
	} else {
		s.record(StepPolicyFetch, model.StepSuccess, policyURL, nil)
	}
	return model.PrivacyPolicy{URL: policyURL, Text: kept, Confidence: confidence}
}

// guessPolicy tries the well-known policy paths and returns the first that
// answers with a page that reads like a policy.
func (s *scan) guessPolicy(ctx context.Context) string {
	base := s.target.origin()
	for _, path := range policyCandidatePaths(s.target.Domain) {
		if ctx.Err() != nil {
			return ""
		}
		candidate := base + path
		page, err := s.fetcher.Fetch(ctx, candidate)
		if err != nil {
			s.logger.Debug("policy candidate failed", "url", candidate, "error", err)
			continue
		}
		if page.StatusCode < http.StatusBadRequest && confirmsPolicy(page.Raw) {
			return candidate
		}
	}
	return ""
}

// scanAuxiliary scans the first signup or login page that answers and
// merges what it finds into rec.
func (s *scan) scanAuxiliary(ctx context.Context, rec *model.EvidenceRecord) {
	cat := s.extractor.catalog
	base := s.target.origin()
	for _, path := range auxiliaryPaths {
		if ctx.Err() != nil {
			break
		}
		auxURL := base + path
		page, err := s.fetcher.Fetch(ctx, auxURL)
		if err != nil {
			s.logger.Debug("auxiliary page failed", "url", auxURL, "error", err)
			continue
		}
		if page.StatusCode >= http.StatusBadRequest {
			continue
		}

		rec.Trackers = mergeTrackers(rec.Trackers, detectTrackers(cat, page, auxURL))
		rec.Forms = append(rec.Forms, detectForms(page, path)...)
		rec.DataSignals = mergeSignals(rec.DataSignals, detectSignals(cat, page, auxURL))
		s.record(StepAuxiliary, model.StepSuccess, auxURL, nil)
		return
	}
	s.record(StepAuxiliary, model.StepRecoverable, "", errors.New("no signup or login page answered"))
}

func (s *scan) record(step string, status model.StepStatus, url string, err error) {
	outcome := model.StepOutcome{Step: step, Status: status, URL: url}
	if err != nil {
		outcome.Error = err.Error()
	}
	s.steps = append(s.steps, outcome)

	if status == model.StepFatal || status == model.StepRecoverable {
		s.logger.Warn("extraction step incomplete", "step", step, "status", status, "url", url, "error", err)
		return
	}
	s.logger.Debug("extraction step", "step", step, "status", status, "url", url)
}

// unreachableReason explains a failed primary fetch to the user.
func unreachableReason(pageURL string, page *model.Page, err error) string {
	var netErr net.Error
	switch {
	case page != nil && errors.Is(err, ErrUnexpectedStatus):
		return fmt.Sprintf("%s returned HTTP %d. The site may be blocking automated requests.", pageURL, page.StatusCode)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Sprintf("Connection to %s timed out.", pageURL)
	case errors.Is(err, context.Canceled):
		return fmt.Sprintf("Scan of %s was cancelled.", pageURL)
	default:
		return fmt.Sprintf("Could not connect to %s. The site may be down or blocking our request.", pageURL)
	}
}
