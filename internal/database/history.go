package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/privacygap/internal/model"
)

// FileName is the name of the history database inside its directory.
const FileName = "privacygap.db"

// sqliteTimeFormat matches datetime('now') so stored timestamps compare
// correctly against SQLite date arithmetic.
const sqliteTimeFormat = "2006-01-02 15:04:05"

// HistoryDB provides SQLite-based storage for scan reports.
type HistoryDB struct {
	db *sql.DB

	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func (h *HistoryDB) createTables() error {
	schema := `
	-- One row per saved scan
	CREATE TABLE IF NOT EXISTS scan_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id TEXT NOT NULL UNIQUE,
		domain TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		catalogue_version TEXT,
		compliance_score INTEGER NOT NULL DEFAULT 0,
		indeterminate INTEGER NOT NULL DEFAULT 0,
		total_risk INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL,
		risk_summary TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_reports_domain ON scan_reports(domain);
	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON scan_reports(timestamp);

	-- Trackers observed per scan, for cross-site queries
	CREATE TABLE IF NOT EXISTS tracker_sightings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id INTEGER NOT NULL REFERENCES scan_reports(id) ON DELETE CASCADE,
		domain TEXT NOT NULL,
		tracker TEXT NOT NULL,
		category TEXT NOT NULL,
		channel TEXT NOT NULL,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sightings_tracker ON tracker_sightings(tracker);
	CREATE INDEX IF NOT EXISTS idx_sightings_domain ON tracker_sightings(domain);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// SaveScanReport stores a scan report and its tracker sightings in one
// transaction. It returns the row ID of the stored report.
func (h *HistoryDB) SaveScanReport(ctx context.Context, report *model.ScanReport) (int64, error) {
	if report.Evidence == nil || !report.Evidence.Reachable {
		return 0, fmt.Errorf("%w: %s", ErrUnassessedScan, report.Target)
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	summary := map[string]int{
		"critical": 0,
		"warning":  0,
		"info":     0,
	}
	var score int
	var indeterminate bool
	var totalRisk int64
	if gr := report.Report; gr != nil {
		summary["critical"] = gr.CriticalCount
		summary["warning"] = gr.WarningCount
		summary["info"] = gr.InfoCount
		score = gr.Score
		indeterminate = gr.Indeterminate
		totalRisk = gr.TotalRisk
	}
	summaryJSON, _ := json.Marshal(summary) //nolint:errcheck,errchkjson // map[string]int always marshals

	timestamp := report.DateScanned.UTC().Format(sqliteTimeFormat)

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO scan_reports (scan_id, domain, timestamp, catalogue_version, compliance_score, indeterminate, total_risk, report_json, risk_summary)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.Domain(),
		timestamp,
		report.CatalogueVersion,
		score,
		indeterminate,
		totalRisk,
		string(reportJSON),
		string(summaryJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save scan report: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read report id: %w", err)
	}

	if report.Evidence != nil {
		for _, t := range report.Evidence.Trackers {
			_, err := tx.ExecContext(ctx, `
			INSERT INTO tracker_sightings (report_id, domain, tracker, category, channel, timestamp)
			VALUES (?, ?, ?, ?, ?, ?)
			`, id, report.Domain(), t.Name, string(t.Category), string(t.Channel), timestamp)
			if err != nil {
				return 0, fmt.Errorf("failed to save tracker sighting: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit scan report: %w", err)
	}
	return id, nil
}

// GetLatestScanReport retrieves the most recent scan report for a domain.
// It returns nil without error when the domain has no history.
func (h *HistoryDB) GetLatestScanReport(ctx context.Context, domain string) (*model.ScanReport, error) {
	var reportJSON string
	err := h.db.QueryRowContext(ctx, `
	SELECT report_json FROM scan_reports
	WHERE domain = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`, domain).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}

	return decodeReport(reportJSON)
}

// GetScanReportByID retrieves a scan report by its row ID. It returns nil
// without error when no such row exists.
func (h *HistoryDB) GetScanReportByID(ctx context.Context, id int64) (*model.ScanReport, error) {
	var reportJSON string
	err := h.db.QueryRowContext(ctx, `SELECT report_json FROM scan_reports WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}

	return decodeReport(reportJSON)
}

// ListScannedDomains returns every domain with at least one saved scan.
func (h *HistoryDB) ListScannedDomains(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT DISTINCT domain FROM scan_reports ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		domains = append(domains, domain)
	}

	return domains, rows.Err()
}

// GetScanHistory retrieves all scan reports for a domain, newest first.
// Rows that fail to decode are skipped.
func (h *HistoryDB) GetScanHistory(ctx context.Context, domain string) ([]*model.ScanReport, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT report_json FROM scan_reports
	WHERE domain = ?
	ORDER BY timestamp DESC, id DESC
	`, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var reports []*model.ScanReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		report, err := decodeReport(reportJSON)
		if err != nil {
			continue
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// ScanReportMetadata summarizes a stored scan without decoding its report.
type ScanReportMetadata struct {
	// ID is the row ID, usable with GetScanReportByID.
	ID int64

	ScanID    string
	Domain    string
	Timestamp time.Time

	CatalogueVersion string
	Score            int
	Indeterminate    bool
	TotalRisk        int64

	// RiskSummary counts gaps by severity wire name.
	RiskSummary map[string]int
}

// GetScanHistoryWithMetadata retrieves scan metadata for a domain, newest first.
func (h *HistoryDB) GetScanHistoryWithMetadata(ctx context.Context, domain string) ([]ScanReportMetadata, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT id, scan_id, domain, timestamp, catalogue_version, compliance_score, indeterminate, total_risk, risk_summary
	FROM scan_reports
	WHERE domain = ?
	ORDER BY timestamp DESC, id DESC
	`, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var results []ScanReportMetadata
	for rows.Next() {
		var meta ScanReportMetadata
		var timestamp string
		var catalogue, riskJSON sql.NullString

		if err := rows.Scan(
			&meta.ID,
			&meta.ScanID,
			&meta.Domain,
			&timestamp,
			&catalogue,
			&meta.Score,
			&meta.Indeterminate,
			&meta.TotalRisk,
			&riskJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Timestamp = parseTimestamp(timestamp)
		meta.CatalogueVersion = catalogue.String
		meta.RiskSummary = make(map[string]int)
		if riskJSON.Valid && riskJSON.String != "" {
			if err := json.Unmarshal([]byte(riskJSON.String), &meta.RiskSummary); err != nil {
				meta.RiskSummary = make(map[string]int)
			}
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// HasRecentScan reports whether domain was scanned within the given duration.
func (h *HistoryDB) HasRecentScan(ctx context.Context, domain string, within time.Duration) (bool, error) {
	modifier := fmt.Sprintf("-%d seconds", int(within.Seconds()))

	var count int
	err := h.db.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM scan_reports
	WHERE domain = ? AND timestamp > datetime('now', ?)
	`, domain, modifier).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check recent scan: %w", err)
	}

	return count > 0, nil
}

// TrackerSighting is one tracker observed on one domain.
type TrackerSighting struct {
	Domain    string
	Tracker   string
	Category  model.TrackerCategory
	Channel   model.DetectionChannel
	Timestamp time.Time
}

// QueryTrackerSightings lists sightings, newest first. Empty filters match
// everything.
func (h *HistoryDB) QueryTrackerSightings(ctx context.Context, domain, tracker string) ([]TrackerSighting, error) {
	query := `
	SELECT domain, tracker, category, channel, timestamp
	FROM tracker_sightings
	WHERE 1=1
	`
	args := make([]any, 0, 2)

	if domain != "" {
		query += " AND domain = ?"
		args = append(args, domain)
	}
	if tracker != "" {
		query += " AND tracker = ?"
		args = append(args, tracker)
	}

	query += " ORDER BY timestamp DESC, id DESC"

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracker sightings: %w", err)
	}
	defer rows.Close()

	var results []TrackerSighting
	for rows.Next() {
		var s TrackerSighting
		var category, channel, timestamp string

		if err := rows.Scan(&s.Domain, &s.Tracker, &category, &channel, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan tracker sighting: %w", err)
		}

		s.Category = model.TrackerCategory(category)
		s.Channel = model.DetectionChannel(channel)
		s.Timestamp = parseTimestamp(timestamp)
		results = append(results, s)
	}

	return results, rows.Err()
}

func decodeReport(reportJSON string) (*model.ScanReport, error) {
	var report model.ScanReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	sqliteTimeFormat,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp parses a stored timestamp as UTC, returning the zero time
// when no known format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
