package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/privacygap/internal/catalog"
	"github.com/nao1215/privacygap/internal/crawler"
	"github.com/nao1215/privacygap/internal/pipeline"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "privacygap"

	// DefaultTimeout bounds each HTTP request of a scan.
	DefaultTimeout = crawler.DefaultFetchTimeout

	// DefaultBatchSize is the number of sites scanned concurrently.
	DefaultBatchSize = pipeline.DefaultConcurrency

	// DefaultRequestInterval paces requests within one scan.
	DefaultRequestInterval = crawler.DefaultRequestInterval

	// DefaultUserAgent is a desktop Chrome string. Consent tools and bot
	// filters serve a different page to self-identified scanners.
	DefaultUserAgent = crawler.DefaultUserAgent

	// DefaultMaxBodySize limits how much of each response body is read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultCaseLimit is the number of precedent cases attached to each gap.
	DefaultCaseLimit = catalog.DefaultCaseLimit
)

// Config holds all options for one privacygap invocation. It is populated
// from CLI flags and passed down explicitly.
type Config struct {
	// Timeout is the per-request timeout, not the whole scan.
	Timeout time.Duration

	// RequestInterval is the minimum delay between requests of one scan.
	RequestInterval time.Duration

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Zero uses the crawler default.
	MaxBodySize int64

	// BatchSize is the number of concurrent scans when processing multiple targets.
	BatchSize int

	// CaseLimit is the number of precedent cases attached to each gap.
	CaseLimit int

	// Verbose enables debug logging and verbose text reports.
	Verbose bool

	// ConfigFilePath is the path to the site configuration file. When
	// empty, FindConfigFile searches the current and home directories.
	ConfigFilePath string

	// SiteConfigs holds the loaded site configuration file, if any.
	SiteConfigs *File

	// CataloguePath substitutes a catalogue file for the embedded one.
	CataloguePath string

	// JSONReport and MarkdownReport select the output format. They are
	// mutually exclusive; with neither set the text format is used.
	JSONReport     bool
	MarkdownReport bool

	// NoColor disables severity colors in text output.
	NoColor bool

	// ReportFile is the output file path. Empty writes to stdout.
	ReportFile string

	// Targets are the URLs or bare domains to scan.
	Targets []string

	// DBDir is the directory of the scan history database.
	// Defaults to the XDG data directory.
	DBDir string

	// SaveToDB stores every scan in the history database.
	SaveToDB bool

	// SkipRecent skips targets already scanned within this window.
	// Zero scans every target.
	SkipRecent time.Duration
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:         DefaultTimeout,
		RequestInterval: DefaultRequestInterval,
		UserAgent:       DefaultUserAgent,
		MaxBodySize:     DefaultMaxBodySize,
		BatchSize:       DefaultBatchSize,
		CaseLimit:       DefaultCaseLimit,
		DBDir:           XDGDataDir(),
		SaveToDB:        true,
	}
}

// XDGDataDir returns the XDG data directory for privacygap.
// On Linux: ~/.local/share/privacygap
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for privacygap.
// On Linux: ~/.config/privacygap
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration after flag parsing and returns the
// first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.RequestInterval < 0 {
		return ErrInvalidRequestInterval
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.CaseLimit < 0 {
		return ErrInvalidCaseLimit
	}
	if c.SkipRecent < 0 {
		return ErrInvalidSkipRecent
	}
	return nil
}
