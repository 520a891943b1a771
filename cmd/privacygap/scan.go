package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nao1215/privacygap/internal/catalog"
	"github.com/nao1215/privacygap/internal/config"
	"github.com/nao1215/privacygap/internal/crawler"
	"github.com/nao1215/privacygap/internal/database"
	seclog "github.com/nao1215/privacygap/internal/log"
	"github.com/nao1215/privacygap/internal/model"
	"github.com/nao1215/privacygap/internal/pipeline"
	"github.com/nao1215/privacygap/internal/report"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [url...]",
		Short: "Scan websites for privacy compliance gaps",
		Long: `Scan fetches each website and reports the compliance gaps its evidence supports.

For every target it fetches:
- The landing page (trackers, cookies, forms, consent banner)
- The privacy policy, discovered from links or common paths
- One signup or login page, to find sensitive form fields

Gaps are reported with the regulations they touch (GDPR, CCPA, ...), an
estimated dollar exposure, and comparable enforcement cases. A site that
cannot be reached is reported as unreachable, never as compliant.

Examples:
  # Scan a single site
  privacygap scan shop.example

  # Scan several sites, four at a time
  privacygap scan --batch 4 shop.example https://www.news.example/

  # Scan every URL listed in a file (one per line, # for comments)
  privacygap scan --list sites.txt

  # Skip sites scanned in the last day
  privacygap scan --skip-recent 24h --list sites.txt

  # Output a Markdown report to a file
  privacygap scan --markdown -o reports/shop.md shop.example

Configuration file (.privacygap) example:
  sites:
    shop.example:
      cookie: "session_id=abc123"
      policyURL: "https://shop.example/legal/privacy"
    intranet-app.example:
      policyFile: "policies/intranet-app.txt"`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	// Fetch behavior flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request")
	cmd.Flags().Duration("interval", config.DefaultRequestInterval,
		"Minimum delay between requests to one site")
	cmd.Flags().StringP("user-agent", "u", config.DefaultUserAgent,
		"User-Agent header sent with every request")

	// Batch scanning flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent scans")
	cmd.Flags().StringP("list", "l", "",
		"Read target URLs from a file, one per line")
	cmd.Flags().Duration("skip-recent", 0,
		"Skip targets already scanned within this duration (e.g. 24h)")

	// Configuration
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .privacygap in current or home directory)")
	cmd.Flags().String("catalogue", "",
		"Load tracker signatures and cases from this file instead of the built-in catalogue")
	cmd.Flags().Int("case-limit", config.DefaultCaseLimit,
		"Number of enforcement cases attached to each gap")

	// History flags
	cmd.Flags().Bool("no-save", false,
		"Do not store results in the scan history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the scan history database")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-color", false,
		"Disable severity colors in text output")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := seclog.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runScan(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.RequestInterval, err = flags.GetDuration("interval"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.SkipRecent, err = flags.GetDuration("skip-recent"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.CataloguePath, err = flags.GetString("catalogue"); err != nil {
		return nil, err
	}
	if cfg.CaseLimit, err = flags.GetInt("case-limit"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.NoColor, err = flags.GetBool("no-color"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case explicitConfigPath:
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	cfg.Targets = append([]string(nil), args...)

	listFile, err := flags.GetString("list")
	if err != nil {
		return nil, err
	}
	if listFile != "" {
		listed, err := readTargetList(listFile)
		if err != nil {
			return nil, err
		}
		cfg.Targets = append(cfg.Targets, listed...)
	}

	return cfg, nil
}

// readTargetList reads one target per line. Blank lines and lines starting
// with "#" are ignored.
func readTargetList(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided list path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open target list: %w", err)
	}
	defer f.Close()

	var targets []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read target list: %w", err)
	}
	return targets, nil
}

// loadCatalogue returns the catalogue at path, or the built-in one.
func loadCatalogue(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	cat, err := catalog.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalogue %s: %w", path, err)
	}
	return cat, nil
}

// newHTTPClient returns the client shared by all scans. Each scan installs
// its own cookie jar on a copy, and per-request timeouts are applied by the
// fetcher.
func newHTTPClient() *http.Client {
	transport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Client{}
	}
	return &http.Client{Transport: transport.Clone()}
}

// runScan scans every target and writes one report per target to stdout
// or the configured report file. Progress goes to stderr.
func runScan(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer, logger *slog.Logger) error {
	if len(cfg.Targets) == 0 {
		return config.ErrNoTarget
	}

	targets := make([]string, 0, len(cfg.Targets))
	seen := make(map[string]bool, len(cfg.Targets))
	for _, target := range cfg.Targets {
		domain, err := crawler.DomainOf(target)
		if err != nil {
			return fmt.Errorf("invalid target %q: %w", target, err)
		}
		if seen[domain] {
			logger.Warn("duplicate target skipped", "target", target, "domain", domain)
			continue
		}
		seen[domain] = true
		targets = append(targets, target)
	}

	cat, err := loadCatalogue(cfg.CataloguePath)
	if err != nil {
		return err
	}

	var db *database.HistoryDB
	if cfg.SaveToDB || cfg.SkipRecent > 0 {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	if cfg.SkipRecent > 0 {
		targets, err = filterRecent(ctx, db, targets, cfg.SkipRecent, stderr)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			fmt.Fprintln(stderr, "All targets were scanned recently; nothing to do.")
			return nil
		}
	}
	if !cfg.SaveToDB {
		db = nil
	}

	// Per-site options are resolved up front so a missing policy file
	// fails before any request is sent.
	siteOpts := make(map[string][]pipeline.DefaultPipelineOption, len(targets))
	for _, target := range targets {
		opts, err := sitePipelineOptions(cfg, target)
		if err != nil {
			return fmt.Errorf("invalid site configuration for %s: %w", target, err)
		}
		siteOpts[target] = opts
	}

	cache, err := pipeline.NewAnalysisCache(pipeline.DefaultCacheSize)
	if err != nil {
		return fmt.Errorf("failed to create analysis cache: %w", err)
	}

	output, closeOutput, err := openReportOutput(cfg.ReportFile, stdout)
	if err != nil {
		return err
	}
	defer closeOutput()
	writer := newReportWriter(cfg, output)

	client := newHTTPClient()
	bp := pipeline.NewBatchProcessor(
		func(target string) *pipeline.Pipeline {
			configOpts := append([]pipeline.DefaultPipelineOption{
				pipeline.WithPipelineUserAgent(cfg.UserAgent),
				pipeline.WithPipelineTimeout(cfg.Timeout),
				pipeline.WithPipelineMaxBodySize(cfg.MaxBodySize),
				pipeline.WithPipelineRequestInterval(cfg.RequestInterval),
				pipeline.WithPipelineCaseLimit(cfg.CaseLimit),
				pipeline.WithPipelineCache(cache),
				pipeline.WithPipelineLogger(logger),
			}, siteOpts[target]...)
			return pipeline.DefaultPipeline(client, cat,
				[]pipeline.Option{pipeline.WithLogger(logger)},
				configOpts...,
			)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	if len(targets) > 1 {
		fmt.Fprintf(stderr, "Scanning %d targets (concurrency: %d)...\n\n", len(targets), cfg.BatchSize)
	} else {
		fmt.Fprintf(stderr, "Scanning %s...\n", targets[0])
	}
	startTime := time.Now()

	var (
		mu       sync.Mutex
		done     int
		writeErr error
	)
	err = bp.ProcessBatchWithCallback(ctx, targets, func(scanReport *model.ScanReport, _ int) {
		mu.Lock()
		defer mu.Unlock()

		done++
		fmt.Fprintf(stderr, "[%d/%d] %s: %s\n", done, len(targets), scanReport.Domain(), scanOutcome(scanReport))

		if _, err := writer.Write(scanReport); err != nil && writeErr == nil {
			writeErr = fmt.Errorf("failed to write report: %w", err)
		}
		if err := saveScanReport(ctx, db, scanReport, logger); err != nil {
			logger.Error("failed to save scan report", "target", scanReport.Target, "error", err)
		}
	})

	fmt.Fprintf(stderr, "\nScan completed in %s\n", time.Since(startTime).Round(time.Millisecond))

	if err != nil {
		return fmt.Errorf("%w: %w", pipeline.ErrScanAborted, err)
	}
	return writeErr
}

// filterRecent drops targets whose domain has a stored scan newer than within.
func filterRecent(ctx context.Context, db *database.HistoryDB, targets []string, within time.Duration, stderr io.Writer) ([]string, error) {
	kept := make([]string, 0, len(targets))
	for _, target := range targets {
		domain, err := crawler.DomainOf(target)
		if err != nil {
			return nil, err
		}
		recent, err := db.HasRecentScan(ctx, domain, within)
		if err != nil {
			return nil, err
		}
		if recent {
			fmt.Fprintf(stderr, "Skipping %s: scanned within the last %s\n", domain, within)
			continue
		}
		kept = append(kept, target)
	}
	return kept, nil
}

// sitePipelineOptions returns the pipeline options for target's site settings.
func sitePipelineOptions(cfg *config.Config, target string) ([]pipeline.DefaultPipelineOption, error) {
	if cfg.SiteConfigs == nil {
		return nil, nil
	}

	site := cfg.SiteConfigs.GetSiteConfig(target)

	var opts []pipeline.DefaultPipelineOption
	if site.Cookie != "" {
		opts = append(opts, pipeline.WithPipelineCookie(site.Cookie))
	}
	if len(site.Headers) > 0 {
		opts = append(opts, pipeline.WithPipelineHeaders(site.Headers))
	}
	if site.PolicyURL != "" {
		opts = append(opts, pipeline.WithPipelinePolicyURL(site.PolicyURL))
	}
	text, err := cfg.SiteConfigs.PolicyText(site)
	if err != nil {
		return nil, err
	}
	if text != "" {
		opts = append(opts, pipeline.WithPipelinePolicyText(text))
	}
	if site.SkipsAuxiliary() {
		opts = append(opts, pipeline.WithPipelineSkipAuxiliary(true))
	}
	return opts, nil
}

// openReportOutput returns the report destination. A report file is
// created once and receives every report of the run.
func openReportOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports list the cookies and form fields a site collects, so the
	// file is readable by the owner only.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil //nolint:errcheck // Best effort close after writes are checked
}

// newReportWriter returns the writer for the configured report format.
func newReportWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(w, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		useColor := !cfg.NoColor && cfg.ReportFile == "" && !color.NoColor
		return report.NewSimpleWriter(w,
			report.WithVerbose(cfg.Verbose),
			report.WithColor(useColor),
		)
	}
}

// scanOutcome is the one-line progress status of a finished scan.
func scanOutcome(r *model.ScanReport) string {
	switch {
	case r.Error != nil && errors.Is(r.Error, context.Canceled):
		return "cancelled"
	case r.Error != nil:
		return "error: " + r.ErrorMessage
	case r.Evidence != nil && !r.Evidence.Reachable:
		return "unreachable"
	case r.Report == nil:
		return "no report"
	case r.Report.Indeterminate:
		return fmt.Sprintf("%d gaps, score indeterminate", r.Report.TotalGaps)
	default:
		return fmt.Sprintf("%d gaps, score %d/100", r.Report.TotalGaps, r.Report.Score)
	}
}

// saveScanReport saves the scan report to the database if enabled.
// It is a no-op when db is nil or the scan did not reach its target.
func saveScanReport(ctx context.Context, db *database.HistoryDB, scanReport *model.ScanReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}
	if scanReport.Evidence == nil || !scanReport.Evidence.Reachable {
		logger.Info("scan report not saved: target was not reached", "target", scanReport.Target)
		return nil
	}

	id, err := db.SaveScanReport(ctx, scanReport)
	if err != nil {
		return fmt.Errorf("failed to save scan report: %w", err)
	}

	logger.Info("scan report saved to database", "target", scanReport.Target, "id", id)
	return nil
}
