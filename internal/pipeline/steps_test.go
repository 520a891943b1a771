package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/privacygap/internal/catalog"
	"github.com/nao1215/privacygap/internal/gap"
	"github.com/nao1215/privacygap/internal/model"
)

type fakeExtractor struct {
	record *model.EvidenceRecord
	err    error
}

func (f fakeExtractor) Extract(context.Context, string) (*model.EvidenceRecord, error) {
	return f.record, f.err
}

type countingAnalyzer struct {
	calls atomic.Int32
}

func (c *countingAnalyzer) Analyze(ev *model.EvidenceRecord) (*model.GapReport, error) {
	c.calls.Add(1)
	return gap.NewAnalyzer(nil).Analyze(ev)
}

func reachableRecord() *model.EvidenceRecord {
	rec := model.NewUnreachableRecord("https://example.com", "example.com", "Example", "")
	rec.Reachable = true
	rec.Errors = []string{}
	rec.ConsentBanner.Issues = []string{"No cookie consent banner detected"}
	return rec
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("failed to load catalogue: %v", err)
	}
	return cat
}

// TestExtractStep tests the evidence extraction step.
func TestExtractStep(t *testing.T) {
	t.Parallel()

	t.Run("stores the record and catalogue version", func(t *testing.T) {
		t.Parallel()

		rec := reachableRecord()
		step := NewExtractStep(fakeExtractor{record: rec}, WithExtractLogger(discardLogger()), WithCatalogueVersion("2025.10"))
		report := model.NewScanReport("example.com")

		if err := step.Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.Evidence != rec || report.CatalogueVersion != "2025.10" {
			t.Errorf("report = %+v", report)
		}
		if step.Name() != StepExtract {
			t.Errorf("Name() = %q", step.Name())
		}
	})

	t.Run("unreachable site is not a failure", func(t *testing.T) {
		t.Parallel()

		rec := model.NewUnreachableRecord("https://down.example", "down.example", "Down", "connection refused")
		step := NewExtractStep(fakeExtractor{record: rec}, WithExtractLogger(discardLogger()))
		report := model.NewScanReport("down.example")

		if err := step.Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.Evidence == nil || report.Evidence.Reachable {
			t.Error("expected the unreachable record to be stored")
		}
	})

	t.Run("extractor error fails the step", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("invalid URL")
		step := NewExtractStep(fakeExtractor{err: boom}, WithExtractLogger(discardLogger()))
		if err := step.Do(context.Background(), model.NewScanReport("ftp://x")); !errors.Is(err, boom) {
			t.Errorf("err = %v", err)
		}
	})
}

// TestAnalyzeStep tests the gap analysis step.
func TestAnalyzeStep(t *testing.T) {
	t.Parallel()

	t.Run("requires evidence", func(t *testing.T) {
		t.Parallel()

		step := NewAnalyzeStep(gap.NewAnalyzer(nil), WithAnalyzeLogger(discardLogger()))
		if err := step.Do(context.Background(), model.NewScanReport("example.com")); !errors.Is(err, ErrNoEvidence) {
			t.Errorf("err = %v", err)
		}
		if step.Name() != StepAnalyze {
			t.Errorf("Name() = %q", step.Name())
		}
	})

	t.Run("analyzer error fails the step", func(t *testing.T) {
		t.Parallel()

		rec := reachableRecord()
		rec.PrivacyPolicy.Confidence = "certain"
		report := model.NewScanReport("example.com")
		report.Evidence = rec

		err := NewAnalyzeStep(gap.NewAnalyzer(nil), WithAnalyzeLogger(discardLogger())).Do(context.Background(), report)
		if !errors.Is(err, gap.ErrInvalidEvidence) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("cache serves identical evidence", func(t *testing.T) {
		t.Parallel()

		cache, err := NewAnalysisCache(8)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		analyzer := &countingAnalyzer{}
		step := NewAnalyzeStep(analyzer, WithAnalyzeLogger(discardLogger()), WithAnalysisCache(cache))

		first := model.NewScanReport("example.com")
		first.Evidence = reachableRecord()
		second := model.NewScanReport("example.com")
		second.Evidence = reachableRecord()

		for _, r := range []*model.ScanReport{first, second} {
			if err := step.Do(context.Background(), r); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if got := analyzer.calls.Load(); got != 1 {
			t.Errorf("analyzer called %d times, want 1", got)
		}
		if cache.Len() != 1 {
			t.Errorf("cache.Len() = %d", cache.Len())
		}

		first.Report.Gaps[0].Title = "changed"
		if second.Report.Gaps[0].Title == "changed" {
			t.Error("cached reports must not share memory")
		}
	})

	t.Run("shared cache separates analyzer settings", func(t *testing.T) {
		t.Parallel()

		cache, err := NewAnalysisCache(8)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cat := testCatalog(t)
		one := NewAnalyzeStep(gap.NewAnalyzer(cat, gap.WithCaseLimit(1)), WithAnalyzeLogger(discardLogger()), WithAnalysisCache(cache))
		three := NewAnalyzeStep(gap.NewAnalyzer(cat, gap.WithCaseLimit(3)), WithAnalyzeLogger(discardLogger()), WithAnalysisCache(cache))

		scan := func(step *AnalyzeStep) *model.GapReport {
			t.Helper()
			r := model.NewScanReport("example.com")
			r.CatalogueVersion = cat.Version()
			r.Evidence = reachableRecord()
			r.Evidence.ConsentBanner.Issues = []string{"No cookie consent banner detected"}
			if err := step.Do(context.Background(), r); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			return r.Report
		}

		first := scan(one)
		second := scan(three)

		g1, _ := first.FindGap(gap.RuleConsent)
		g3, _ := second.FindGap(gap.RuleConsent)
		if len(g1.Cases) != 1 || len(g3.Cases) != 3 {
			t.Errorf("case counts = %d/%d, want 1/3", len(g1.Cases), len(g3.Cases))
		}
		if cache.Len() != 2 {
			t.Errorf("cache.Len() = %d, want 2", cache.Len())
		}
	})
}

// TestDefaultPipelineConfig tests the default pipeline options.
func TestDefaultPipelineConfig(t *testing.T) {
	t.Parallel()

	cache, err := NewAnalysisCache(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := &DefaultPipelineConfig{}
	for _, opt := range []DefaultPipelineOption{
		WithPipelineUserAgent("ua"),
		WithPipelineTimeout(time.Second),
		WithPipelineMaxBodySize(1024),
		WithPipelineRequestInterval(time.Millisecond),
		WithPipelineCookie("session=abc"),
		WithPipelineHeaders(map[string]string{"X-Test": "1"}),
		WithPipelinePolicyURL("https://example.com/legal"),
		WithPipelinePolicyText("text"),
		WithPipelineSkipAuxiliary(true),
		WithPipelineCaseLimit(3),
		WithPipelineCache(cache),
		WithPipelineLogger(discardLogger()),
	} {
		opt(cfg)
	}

	if cfg.UserAgent != "ua" || cfg.Timeout != time.Second || cfg.MaxBodySize != 1024 ||
		cfg.RequestInterval != time.Millisecond || cfg.Cookie != "session=abc" ||
		cfg.Headers["X-Test"] != "1" || cfg.PolicyURL != "https://example.com/legal" ||
		cfg.PolicyText != "text" || !cfg.SkipAuxiliary || cfg.CaseLimit != 3 ||
		cfg.Cache != cache || cfg.Logger == nil {
		t.Errorf("options not applied: %+v", cfg)
	}
}

// TestDefaultPipeline tests a full scan against a local site.
func TestDefaultPipeline(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, `<html><head><title>Shop</title>
			<script src="https://www.googleadservices.com/pagead/conversion.js"></script>
			</head><body>Welcome</body></html>`) //nolint:errcheck // test handler
	}))
	defer server.Close()

	cat := testCatalog(t)
	policy := strings.Repeat("We process personal data to run the shop and keep records for 12 months. ", 5)
	p := DefaultPipeline(server.Client(), cat, []Option{WithLogger(discardLogger())},
		WithPipelineRequestInterval(0),
		WithPipelinePolicyText(policy),
		WithPipelineSkipAuxiliary(true),
		WithPipelineLogger(discardLogger()),
	)

	if got := p.StepNames(); !slices.Equal(got, []string{StepExtract, StepAnalyze}) {
		t.Fatalf("StepNames() = %v", got)
	}

	report := model.NewScanReport(server.URL)
	if err := p.Execute(context.Background(), report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Evidence == nil || !report.Evidence.Reachable {
		t.Fatalf("expected reachable evidence, got %+v", report.Evidence)
	}
	if report.CatalogueVersion != cat.Version() {
		t.Errorf("CatalogueVersion = %q", report.CatalogueVersion)
	}
	if report.Report == nil {
		t.Fatal("expected a gap report")
	}
	g, ok := report.Report.FindGap(gap.RuleAdvertising)
	if !ok {
		t.Fatalf("advertising gap missing: %+v", report.Report.Gaps)
	}
	if g.RiskAmount != 68000 || g.Severity != model.SeverityCritical {
		t.Errorf("advertising gap = %+v", g)
	}
	if report.Report.Indeterminate {
		t.Error("report should not be indeterminate")
	}
}
