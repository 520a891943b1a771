package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/privacygap/internal/catalog"
	"github.com/nao1215/privacygap/internal/crawler"
	"github.com/nao1215/privacygap/internal/gap"
	"github.com/nao1215/privacygap/internal/model"
)

// Step names.
const (
	StepExtract = "extract"
	StepAnalyze = "analyze"
)

// Extractor produces the evidence record for a target URL.
// *crawler.Extractor satisfies it.
type Extractor interface {
	Extract(ctx context.Context, rawURL string) (*model.EvidenceRecord, error)
}

// GapAnalyzer turns an evidence record into a gap report.
// *gap.Analyzer satisfies it.
type GapAnalyzer interface {
	Analyze(ev *model.EvidenceRecord) (*model.GapReport, error)
}

// Fingerprinter is implemented by analyzers whose settings change their
// output. The fingerprint becomes part of the analysis cache key.
// *gap.Analyzer satisfies it.
type Fingerprinter interface {
	Fingerprint() string
}

// ExtractStep gathers the evidence record for the report's target.
//
// An unreachable site is not a step failure: the record explains it and
// analysis still runs, producing an indeterminate report. Only a target
// that cannot be scanned at all (an invalid URL) fails the step.
type ExtractStep struct {
	extractor Extractor

	// catalogueVersion is copied into every report.
	catalogueVersion string

	logger *slog.Logger
}

// ExtractStepOption configures an ExtractStep.
type ExtractStepOption func(*ExtractStep)

// WithExtractLogger sets a custom logger for the extract step.
func WithExtractLogger(logger *slog.Logger) ExtractStepOption {
	return func(s *ExtractStep) {
		s.logger = logger
	}
}

// WithCatalogueVersion records the signature catalogue version in reports.
func WithCatalogueVersion(version string) ExtractStepOption {
	return func(s *ExtractStep) {
		s.catalogueVersion = version
	}
}

// NewExtractStep creates a new evidence extraction step.
func NewExtractStep(extractor Extractor, opts ...ExtractStepOption) *ExtractStep {
	s := &ExtractStep{
		extractor: extractor,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return StepExtract
}

// Do executes the extraction step.
func (s *ExtractStep) Do(ctx context.Context, report *model.ScanReport) error {
	record, err := s.extractor.Extract(ctx, report.Target)
	if err != nil {
		return err
	}

	report.Evidence = record
	report.CatalogueVersion = s.catalogueVersion

	if !record.Reachable {
		s.logger.Warn("target unreachable",
			"target", report.Target,
			"errors", record.Errors,
		)
		return nil
	}

	s.logger.Info("evidence extracted",
		"target", report.Target,
		"trackers", len(record.Trackers),
		"cookies", len(record.Cookies),
		"forms", len(record.Forms),
		"signals", len(record.DataSignals),
		"policy_confidence", record.PrivacyPolicy.Confidence,
		"errors", len(record.Errors),
	)

	return nil
}

// AnalyzeStep runs the gap analyzer over the extracted evidence.
type AnalyzeStep struct {
	analyzer GapAnalyzer

	// cache is optional. Reports are looked up by evidence digest.
	cache *AnalysisCache

	logger *slog.Logger
}

// AnalyzeStepOption configures an AnalyzeStep.
type AnalyzeStepOption func(*AnalyzeStep)

// WithAnalyzeLogger sets a custom logger for the analyze step.
func WithAnalyzeLogger(logger *slog.Logger) AnalyzeStepOption {
	return func(s *AnalyzeStep) {
		s.logger = logger
	}
}

// WithAnalysisCache shares a report cache between scans.
func WithAnalysisCache(cache *AnalysisCache) AnalyzeStepOption {
	return func(s *AnalyzeStep) {
		s.cache = cache
	}
}

// NewAnalyzeStep creates a new gap analysis step.
func NewAnalyzeStep(analyzer GapAnalyzer, opts ...AnalyzeStepOption) *AnalyzeStep {
	s := &AnalyzeStep{
		analyzer: analyzer,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *AnalyzeStep) Name() string {
	return StepAnalyze
}

// cacheScope names the catalogue and analyzer settings the report depends on.
func (s *AnalyzeStep) cacheScope(report *model.ScanReport) string {
	scope := "catalogue=" + report.CatalogueVersion
	if f, ok := s.analyzer.(Fingerprinter); ok {
		scope += ";" + f.Fingerprint()
	}
	return scope
}

// Do executes the analysis step.
func (s *AnalyzeStep) Do(_ context.Context, report *model.ScanReport) error {
	if report.Evidence == nil {
		return ErrNoEvidence
	}

	var key string
	if s.cache != nil {
		digest, err := AnalysisKey(report.Evidence, s.cacheScope(report))
		if err != nil {
			s.logger.Warn("analysis cache disabled for scan", "target", report.Target, "error", err)
		} else if cached, ok := s.cache.Get(digest); ok {
			s.logger.Debug("analysis cache hit", "target", report.Target, "cache_key", digest)
			report.Report = cached
			return nil
		}
		key = digest
	}

	result, err := s.analyzer.Analyze(report.Evidence)
	if err != nil {
		return err
	}
	if key != "" {
		s.cache.Add(key, result)
	}
	report.Report = result

	s.logger.Info("analysis completed",
		"target", report.Target,
		"gaps", result.TotalGaps,
		"critical", result.CriticalCount,
		"score", result.Score,
		"indeterminate", result.Indeterminate,
	)

	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// UserAgent is sent with every request.
	UserAgent string

	// Timeout bounds each individual request.
	Timeout time.Duration

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// RequestInterval is the minimum gap between requests of one scan.
	RequestInterval time.Duration

	// Cookie is sent with every request of the scan.
	Cookie string

	// Headers are additional HTTP headers to send with requests.
	Headers map[string]string

	// PolicyURL and PolicyText replace policy discovery for the site.
	PolicyURL  string
	PolicyText string

	// SkipAuxiliary disables the signup/login page pass.
	SkipAuxiliary bool

	// CaseLimit is the number of precedent cases per gap.
	CaseLimit int

	// Cache is shared by every pipeline built with it. Nil disables caching.
	Cache *AnalysisCache

	// Logger is handed to the extractor and both steps.
	Logger *slog.Logger
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineUserAgent sets the User-Agent header for HTTP requests.
func WithPipelineUserAgent(userAgent string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.UserAgent = userAgent
	}
}

// WithPipelineTimeout sets the per-request timeout.
func WithPipelineTimeout(timeout time.Duration) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Timeout = timeout
	}
}

// WithPipelineMaxBodySize sets the maximum response body size in bytes.
func WithPipelineMaxBodySize(maxBodySize int64) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.MaxBodySize = maxBodySize
	}
}

// WithPipelineRequestInterval sets the pacing between requests of one scan.
func WithPipelineRequestInterval(interval time.Duration) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.RequestInterval = interval
	}
}

// WithPipelineCookie sets the cookie for HTTP requests.
func WithPipelineCookie(cookie string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Cookie = cookie
	}
}

// WithPipelineHeaders sets additional HTTP headers.
func WithPipelineHeaders(headers map[string]string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Headers = headers
	}
}

// WithPipelinePolicyURL fetches the privacy policy from a fixed URL.
func WithPipelinePolicyURL(policyURL string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.PolicyURL = policyURL
	}
}

// WithPipelinePolicyText uses supplied policy text instead of fetching one.
func WithPipelinePolicyText(text string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.PolicyText = text
	}
}

// WithPipelineSkipAuxiliary disables the auxiliary page pass.
func WithPipelineSkipAuxiliary(skip bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.SkipAuxiliary = skip
	}
}

// WithPipelineCaseLimit sets the number of precedent cases per gap.
func WithPipelineCaseLimit(limit int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.CaseLimit = limit
	}
}

// WithPipelineCache shares an analysis cache across pipelines.
func WithPipelineCache(cache *AnalysisCache) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Cache = cache
	}
}

// WithPipelineLogger sets the logger used by the extractor and steps.
func WithPipelineLogger(logger *slog.Logger) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Logger = logger
	}
}

// DefaultPipeline creates the standard scan pipeline: extract, then analyze.
//
// The first variadic parameter accepts pipeline options (WithLogger, etc).
// The second accepts pipeline config options (WithPipelineCookie, etc).
// The catalogue is shared read-only by the extractor and the analyzer.
func DefaultPipeline(client *http.Client, cat *catalog.Catalog, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{
		UserAgent:       crawler.DefaultUserAgent,
		Timeout:         crawler.DefaultFetchTimeout,
		MaxBodySize:     model.MaxPageSize,
		RequestInterval: crawler.DefaultRequestInterval,
		CaseLimit:       gap.DefaultCaseLimit,
		Logger:          slog.Default(),
	}
	for _, opt := range configOpts {
		opt(cfg)
	}

	fetcherOpts := []crawler.FetcherOption{
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithTimeout(cfg.Timeout),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithRequestInterval(cfg.RequestInterval),
	}
	if cfg.Cookie != "" {
		fetcherOpts = append(fetcherOpts, crawler.WithCookie(cfg.Cookie))
	}
	if len(cfg.Headers) > 0 {
		fetcherOpts = append(fetcherOpts, crawler.WithHeaders(cfg.Headers))
	}

	extractor := crawler.NewExtractor(client, cat,
		crawler.WithLogger(cfg.Logger),
		crawler.WithFetcherOptions(fetcherOpts...),
		crawler.WithPolicyURL(cfg.PolicyURL),
		crawler.WithPolicyText(cfg.PolicyText),
		crawler.WithSkipAuxiliary(cfg.SkipAuxiliary),
	)

	analyzeOpts := []AnalyzeStepOption{WithAnalyzeLogger(cfg.Logger)}
	if cfg.Cache != nil {
		analyzeOpts = append(analyzeOpts, WithAnalysisCache(cfg.Cache))
	}

	p.AddSteps(
		NewExtractStep(extractor,
			WithExtractLogger(cfg.Logger),
			WithCatalogueVersion(cat.Version()),
		),
		NewAnalyzeStep(gap.NewAnalyzer(cat, gap.WithCaseLimit(cfg.CaseLimit)), analyzeOpts...),
	)

	return p
}
