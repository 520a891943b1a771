package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nao1215/privacygap/internal/config"
	"github.com/nao1215/privacygap/internal/crawler"
	"github.com/nao1215/privacygap/internal/database"
	"github.com/nao1215/privacygap/internal/model"
	"github.com/nao1215/privacygap/internal/report"
)

// Comparison output formats.
const (
	formatText     = "text"
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

// NewCompareCmd creates the compare command.
// This command compares scan results with historical data stored in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [domain]",
		Short: "Compare scan results with historical data",
		Long: `Compare displays differences between the latest and an earlier scan of a site.

This command reads the scan history database and shows:
- New gaps that appeared since the earlier scan
- Resolved gaps that are no longer present
- The change in estimated exposure and compliance score

The comparison requires at least two scans of the domain. Use
'privacygap scan' to perform scans and save results.

Examples:
  # Compare latest two scans of a site
  privacygap compare shop.example

  # List all scan history for a site
  privacygap compare --list shop.example

  # Compare with a specific historical scan by ID
  privacygap compare --with-scan-id 5 shop.example

  # Compare with the first scan since a date
  privacygap compare --since "2025-01-01" shop.example

  # Output comparison in JSON format
  privacygap compare --json shop.example

  # List all scanned domains in the database
  privacygap compare --list-services

  # Show where a tracker has been seen
  privacygap compare --tracker "Meta Pixel"`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List scan history for the specified domain")
	cmd.Flags().BoolP("list-services", "L", false,
		"List all scanned domains in the database")
	cmd.Flags().StringP("tracker", "T", "",
		"List sightings of a tracker by name, optionally for one domain")

	// Comparison target flags
	cmd.Flags().Int64P("with-scan-id", "i", 0,
		"Compare with a specific scan by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first scan after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the scan history database")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	listServices, err := flags.GetBool("list-services")
	if err != nil {
		return err
	}
	tracker, err := flags.GetString("tracker")
	if err != nil {
		return err
	}

	// Arguments are validated before opening the database.
	var domain string
	if len(args) > 0 {
		domain, err = crawler.DomainOf(args[0])
		if err != nil {
			return fmt.Errorf("invalid domain: %w", err)
		}
	} else if !listServices && tracker == "" {
		return errors.New("domain is required (use --list-services to see scanned domains)")
	}

	format, err := comparisonFormat(cmd)
	if err != nil {
		return err
	}

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}

	db, err := database.Open(dbDir, database.Options{})
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			return fmt.Errorf("no scan history yet (run 'privacygap scan' first): %w", err)
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()

	switch {
	case listServices:
		return listScannedDomains(ctx, db, out)
	case tracker != "":
		return listTrackerSightings(ctx, db, out, domain, tracker)
	}

	listHistory, err := flags.GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listScanHistory(ctx, db, out, domain)
	}

	withScanID, err := flags.GetInt64("with-scan-id")
	if err != nil {
		return err
	}
	sinceDate, err := flags.GetString("since")
	if err != nil {
		return err
	}

	return runComparison(ctx, db, out, domain, withScanID, sinceDate, format)
}

// comparisonFormat returns the output format selected by flags.
func comparisonFormat(cmd *cobra.Command) (string, error) {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return "", err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return "", err
	}

	switch {
	case jsonOutput && markdownOutput:
		return "", config.ErrConflictingReportFormats
	case jsonOutput:
		return formatJSON, nil
	case markdownOutput:
		return formatMarkdown, nil
	default:
		return formatText, nil
	}
}

// listScannedDomains lists all domains that have scan records in the database.
func listScannedDomains(ctx context.Context, db *database.HistoryDB, w io.Writer) error {
	domains, err := db.ListScannedDomains(ctx)
	if err != nil {
		return fmt.Errorf("failed to list domains: %w", err)
	}

	if len(domains) == 0 {
		fmt.Fprintln(w, "No scanned domains found in the database.")
		fmt.Fprintln(w, "\nUse 'privacygap scan <url>' to scan a site.")
		return nil
	}

	fmt.Fprintf(w, "Scanned domains (%d):\n\n", len(domains))
	for _, domain := range domains {
		fmt.Fprintf(w, "  • %s\n", domain)
	}
	fmt.Fprintln(w, "\nUse 'privacygap compare --list <domain>' to see scan history for a domain.")

	return nil
}

// listScanHistory lists all scan records for a domain.
func listScanHistory(ctx context.Context, db *database.HistoryDB, w io.Writer, domain string) error {
	reports, err := db.GetScanHistoryWithMetadata(ctx, domain)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(reports) == 0 {
		fmt.Fprintf(w, "No scan history found for %s\n", domain)
		fmt.Fprintln(w, "\nUse 'privacygap scan' to scan this site.")
		return nil
	}

	fmt.Fprintf(w, "Scan history for %s (%d scans):\n\n", domain, len(reports))
	fmt.Fprintf(w, "  %-6s  %-20s  %-7s  %-14s  %s\n", "ID", "Date", "Score", "Exposure", "Gaps")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 68))

	for _, meta := range reports {
		score := strconv.Itoa(meta.Score)
		if meta.Indeterminate {
			score = "?"
		}
		fmt.Fprintf(w, "  %-6d  %-20s  %-7s  %-14s  %s\n",
			meta.ID,
			meta.Timestamp.Format("2006-01-02 15:04:05"),
			score,
			"$"+humanize.Comma(meta.TotalRisk),
			formatRiskSummary(meta.RiskSummary),
		)
	}

	fmt.Fprintln(w, "\nUse 'privacygap compare <domain>' to compare the latest two scans.")
	fmt.Fprintln(w, "Use 'privacygap compare --with-scan-id <id> <domain>' to compare with a specific scan.")

	return nil
}

// listTrackerSightings lists where and when a tracker was detected.
func listTrackerSightings(ctx context.Context, db *database.HistoryDB, w io.Writer, domain, tracker string) error {
	sightings, err := db.QueryTrackerSightings(ctx, domain, tracker)
	if err != nil {
		return fmt.Errorf("failed to query tracker sightings: %w", err)
	}

	if len(sightings) == 0 {
		fmt.Fprintf(w, "No sightings of %s found\n", tracker)
		return nil
	}

	fmt.Fprintf(w, "Sightings of %s (%d):\n\n", tracker, len(sightings))
	fmt.Fprintf(w, "  %-20s  %-30s  %-14s  %s\n", "Date", "Domain", "Category", "Channel")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 80))
	for _, s := range sightings {
		fmt.Fprintf(w, "  %-20s  %-30s  %-14s  %s\n",
			s.Timestamp.Format("2006-01-02 15:04:05"),
			s.Domain,
			s.Category,
			s.Channel,
		)
	}

	return nil
}

// formatRiskSummary formats the per-severity gap counts for display.
func formatRiskSummary(summary map[string]int) string {
	if summary == nil {
		return "N/A"
	}

	var parts []string
	for _, severity := range model.Severities {
		name := severity.String()
		if v := summary[name]; v > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", strings.ToUpper(name[:1]), v))
		}
	}

	if len(parts) == 0 {
		return "No gaps"
	}
	return strings.Join(parts, " ")
}

// runComparison compares the latest scan of domain with an earlier one.
func runComparison(ctx context.Context, db *database.HistoryDB, w io.Writer, domain string, withScanID int64, sinceDate, format string) error {
	reports, err := db.GetScanHistory(ctx, domain)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(reports) == 0 {
		return fmt.Errorf("no scan history found for %s", domain)
	}

	if len(reports) < 2 && withScanID == 0 && sinceDate == "" {
		return fmt.Errorf("at least 2 scans are required for comparison (found %d)", len(reports))
	}

	// History is newest first.
	current := reports[0]
	var previous *model.ScanReport

	switch {
	case withScanID > 0:
		previous, err = db.GetScanReportByID(ctx, withScanID)
		if err != nil {
			return fmt.Errorf("failed to get scan with ID %d: %w", withScanID, err)
		}
		if previous == nil {
			return fmt.Errorf("scan with ID %d not found", withScanID)
		}
		if previous.Domain() != domain {
			return fmt.Errorf("scan ID %d belongs to %s, not %s", withScanID, previous.Domain(), domain)
		}
		if previous.ID == current.ID {
			return fmt.Errorf("scan ID %d is the latest scan; choose an earlier one", withScanID)
		}
	case sinceDate != "":
		parsedDate, err := time.Parse("2006-01-02", sinceDate)
		if err != nil {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}

		// Oldest scan at or after the date.
		for i := len(reports) - 1; i >= 0; i-- {
			if !reports[i].DateScanned.Before(parsedDate) {
				previous = reports[i]
				break
			}
		}
		if previous == nil {
			return fmt.Errorf("no scans found since %s", sinceDate)
		}
		if previous == current {
			return fmt.Errorf("only one scan found since %s; at least 2 scans are required for comparison", sinceDate)
		}
	default:
		previous = reports[1]
	}

	comparison := report.Compare(previous, current)

	switch format {
	case formatJSON:
		return report.WriteComparisonJSON(w, comparison)
	case formatMarkdown:
		return report.WriteComparisonMarkdown(w, comparison)
	default:
		return report.WriteComparisonText(w, comparison)
	}
}
