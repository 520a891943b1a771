package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/privacygap/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *HistoryDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// newScan builds a scan of domain at the given time with the given
// number of critical gaps and trackers.
func newScan(domain string, at time.Time, criticals int, trackers ...string) *model.ScanReport {
	report := model.NewScanReport("https://" + domain)
	report.DateScanned = at
	report.CatalogueVersion = "2025.10"
	report.Evidence = &model.EvidenceRecord{
		URL:       "https://" + domain,
		Domain:    domain,
		Reachable: true,
		PrivacyPolicy: model.PrivacyPolicy{
			Confidence: model.ConfidenceHigh,
		},
	}
	for _, name := range trackers {
		report.Evidence.Trackers = append(report.Evidence.Trackers, model.Tracker{
			Name:      name,
			Category:  model.CategoryAdvertising,
			Signature: "sig",
			Channel:   model.ChannelScriptSrc,
		})
	}

	gr := &model.GapReport{Gaps: []model.Gap{}, PolicyConfidence: model.ConfidenceHigh}
	for i := 0; i < criticals; i++ {
		gr.Gaps = append(gr.Gaps, model.Gap{
			Rule:     "rule",
			Severity: model.SeverityCritical,
			Title:    "gap",
		})
		gr.TotalRisk += 10000
	}
	gr.TotalGaps = criticals
	gr.CriticalCount = criticals
	gr.Score = 100 - 17*criticals
	report.Report = gr
	return report
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("Path() = %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{CreateIfNotExists: false})
		if !errors.Is(err, ErrDatabaseNotFound) {
			t.Errorf("expected ErrDatabaseNotFound, got %v", err)
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		_ = db.Close()

		db, err = Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: false})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		_ = db.Close()
	})
}

// TestSaveAndLoadScanReports tests round-tripping reports through the store.
func TestSaveAndLoadScanReports(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	base := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

	t.Run("latest report wins", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		older := newScan("shop.example", base, 2)
		newer := newScan("shop.example", base.Add(24*time.Hour), 1)

		if _, err := db.SaveScanReport(ctx, older); err != nil {
			t.Fatalf("SaveScanReport: %v", err)
		}
		if _, err := db.SaveScanReport(ctx, newer); err != nil {
			t.Fatalf("SaveScanReport: %v", err)
		}

		got, err := db.GetLatestScanReport(ctx, "shop.example")
		if err != nil {
			t.Fatalf("GetLatestScanReport: %v", err)
		}
		if got == nil || got.ID != newer.ID {
			t.Fatalf("expected newer report, got %+v", got)
		}
		if got.Report == nil || got.Report.CriticalCount != 1 {
			t.Errorf("expected decoded gap report, got %+v", got.Report)
		}
	})

	t.Run("unknown domain returns nil", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		got, err := db.GetLatestScanReport(ctx, "nobody.example")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("get by row id", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		scan := newScan("shop.example", base, 1)
		id, err := db.SaveScanReport(ctx, scan)
		if err != nil {
			t.Fatalf("SaveScanReport: %v", err)
		}

		got, err := db.GetScanReportByID(ctx, id)
		if err != nil {
			t.Fatalf("GetScanReportByID: %v", err)
		}
		if got == nil || got.ID != scan.ID {
			t.Errorf("expected scan %s, got %+v", scan.ID, got)
		}

		missing, err := db.GetScanReportByID(ctx, id+100)
		if err != nil || missing != nil {
			t.Errorf("expected nil, nil for missing id, got %+v, %v", missing, err)
		}
	})

	t.Run("duplicate scan id is rejected", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		scan := newScan("shop.example", base, 0)
		if _, err := db.SaveScanReport(ctx, scan); err != nil {
			t.Fatalf("SaveScanReport: %v", err)
		}
		if _, err := db.SaveScanReport(ctx, scan); err == nil {
			t.Error("expected unique constraint error")
		}
	})

	t.Run("unreachable scan is rejected", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		scan := newScan("gone.example", base, 0)
		scan.Evidence = model.NewUnreachableRecord("https://gone.example", "gone.example", "Gone", "connection refused")
		if _, err := db.SaveScanReport(ctx, scan); !errors.Is(err, ErrUnassessedScan) {
			t.Errorf("expected ErrUnassessedScan, got %v", err)
		}

		noEvidence := newScan("gone.example", base, 0)
		noEvidence.Evidence = nil
		if _, err := db.SaveScanReport(ctx, noEvidence); !errors.Is(err, ErrUnassessedScan) {
			t.Errorf("expected ErrUnassessedScan without evidence, got %v", err)
		}

		history, err := db.GetScanHistory(ctx, "gone.example")
		if err != nil {
			t.Fatalf("GetScanHistory: %v", err)
		}
		if len(history) != 0 {
			t.Errorf("expected no stored scans, got %d", len(history))
		}
	})

	t.Run("history is newest first", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		for i := range 3 {
			if _, err := db.SaveScanReport(ctx, newScan("shop.example", base.Add(time.Duration(i)*time.Hour), i)); err != nil {
				t.Fatalf("SaveScanReport: %v", err)
			}
		}
		if _, err := db.SaveScanReport(ctx, newScan("other.example", base, 0)); err != nil {
			t.Fatalf("SaveScanReport: %v", err)
		}

		history, err := db.GetScanHistory(ctx, "shop.example")
		if err != nil {
			t.Fatalf("GetScanHistory: %v", err)
		}
		if len(history) != 3 {
			t.Fatalf("expected 3 reports, got %d", len(history))
		}
		for i, r := range history {
			if want := 2 - i; r.Report.CriticalCount != want {
				t.Errorf("history[%d] critical = %d, want %d", i, r.Report.CriticalCount, want)
			}
		}
	})
}

// TestListScannedDomains tests listing distinct domains.
func TestListScannedDomains(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)
	now := time.Now()

	for _, d := range []string{"zeta.example", "alpha.example", "zeta.example"} {
		if _, err := db.SaveScanReport(ctx, newScan(d, now, 0)); err != nil {
			t.Fatalf("SaveScanReport: %v", err)
		}
	}

	domains, err := db.ListScannedDomains(ctx)
	if err != nil {
		t.Fatalf("ListScannedDomains: %v", err)
	}
	if len(domains) != 2 || domains[0] != "alpha.example" || domains[1] != "zeta.example" {
		t.Errorf("unexpected domains: %v", domains)
	}
}

// TestGetScanHistoryWithMetadata tests the metadata listing.
func TestGetScanHistoryWithMetadata(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)
	at := time.Date(2025, 9, 1, 10, 30, 0, 0, time.UTC)

	scan := newScan("shop.example", at, 2)
	id, err := db.SaveScanReport(ctx, scan)
	if err != nil {
		t.Fatalf("SaveScanReport: %v", err)
	}

	metas, err := db.GetScanHistoryWithMetadata(ctx, "shop.example")
	if err != nil {
		t.Fatalf("GetScanHistoryWithMetadata: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(metas))
	}

	m := metas[0]
	if m.ID != id || m.ScanID != scan.ID || m.Domain != "shop.example" {
		t.Errorf("unexpected identity: %+v", m)
	}
	if !m.Timestamp.Equal(at) {
		t.Errorf("Timestamp = %v, want %v", m.Timestamp, at)
	}
	if m.Score != 66 || m.TotalRisk != 20000 || m.Indeterminate {
		t.Errorf("unexpected figures: %+v", m)
	}
	if m.CatalogueVersion != "2025.10" {
		t.Errorf("CatalogueVersion = %q", m.CatalogueVersion)
	}
	if m.RiskSummary["critical"] != 2 || m.RiskSummary["warning"] != 0 {
		t.Errorf("RiskSummary = %v", m.RiskSummary)
	}
}

// TestHasRecentScan tests the recent-scan window.
func TestHasRecentScan(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	if _, err := db.SaveScanReport(ctx, newScan("fresh.example", time.Now(), 0)); err != nil {
		t.Fatalf("SaveScanReport: %v", err)
	}
	if _, err := db.SaveScanReport(ctx, newScan("stale.example", time.Now().Add(-72*time.Hour), 0)); err != nil {
		t.Fatalf("SaveScanReport: %v", err)
	}

	tests := []struct {
		domain string
		want   bool
	}{
		{"fresh.example", true},
		{"stale.example", false},
		{"never.example", false},
	}
	for _, tt := range tests {
		got, err := db.HasRecentScan(ctx, tt.domain, 24*time.Hour)
		if err != nil {
			t.Fatalf("HasRecentScan(%s): %v", tt.domain, err)
		}
		if got != tt.want {
			t.Errorf("HasRecentScan(%s) = %v, want %v", tt.domain, got, tt.want)
		}
	}
}

// TestQueryTrackerSightings tests cross-site tracker queries.
func TestQueryTrackerSightings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)
	now := time.Now()

	if _, err := db.SaveScanReport(ctx, newScan("a.example", now, 0, "Meta Pixel", "TikTok Pixel")); err != nil {
		t.Fatalf("SaveScanReport: %v", err)
	}
	if _, err := db.SaveScanReport(ctx, newScan("b.example", now, 0, "Meta Pixel")); err != nil {
		t.Fatalf("SaveScanReport: %v", err)
	}

	t.Run("by tracker", func(t *testing.T) {
		t.Parallel()

		got, err := db.QueryTrackerSightings(ctx, "", "Meta Pixel")
		if err != nil {
			t.Fatalf("QueryTrackerSightings: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 sightings, got %d", len(got))
		}
		for _, s := range got {
			if s.Category != model.CategoryAdvertising || s.Channel != model.ChannelScriptSrc {
				t.Errorf("unexpected sighting: %+v", s)
			}
		}
	})

	t.Run("by domain", func(t *testing.T) {
		t.Parallel()

		got, err := db.QueryTrackerSightings(ctx, "a.example", "")
		if err != nil {
			t.Fatalf("QueryTrackerSightings: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 sightings, got %d", len(got))
		}
	})

	t.Run("no filters", func(t *testing.T) {
		t.Parallel()

		got, err := db.QueryTrackerSightings(ctx, "", "")
		if err != nil {
			t.Fatalf("QueryTrackerSightings: %v", err)
		}
		if len(got) != 3 {
			t.Errorf("expected 3 sightings, got %d", len(got))
		}
	})
}

// TestParseTimestamp tests parsing the formats SQLite may return.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2025, 9, 1, 10, 30, 0, 0, time.UTC)
	for _, s := range []string{"2025-09-01 10:30:00", "2025-09-01T10:30:00Z", "2025-09-01T10:30:00"} {
		if got := parseTimestamp(s); !got.Equal(want) {
			t.Errorf("parseTimestamp(%q) = %v", s, got)
		}
	}
	if got := parseTimestamp("not a time"); !got.IsZero() {
		t.Errorf("expected zero time, got %v", got)
	}
}
