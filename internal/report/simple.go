package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/nao1215/privacygap/internal/model"
)

// ruleWidth is the width of the section separators.
const ruleWidth = 70

// SimpleWriter outputs human-readable text reports for terminal display.
// Colors are off by default so the output can be piped or diffed.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether severity sections with no gaps are shown.
	showEmpty bool

	// verbose adds claims, precedent cases and an evidence summary.
	verbose bool

	// color enables ANSI severity colors.
	color bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithColor enables severity colors regardless of the terminal.
func WithColor(enabled bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.color = enabled
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.ScanReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	if report.Report != nil {
		w.writeScore(&sb, report.Report)
		w.writeRisk(&sb, report.Report)
		w.writeGaps(&sb, report.Report)
		w.writeRoadmap(&sb, report.Report)
	}
	if w.verbose && report.Evidence != nil {
		w.writeEvidence(&sb, report.Evidence)
	}
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.ScanReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                        PRIVACY GAP REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Target:         %s\n", report.Target)
	fmt.Fprintf(sb, "Domain:         %s\n", report.Domain())
	if report.Evidence != nil && report.Evidence.CompanyName != "" {
		fmt.Fprintf(sb, "Company:        %s\n", report.Evidence.CompanyName)
	}
	fmt.Fprintf(sb, "Scan Date:      %s\n", report.DateScanned.Format("2006-01-02 15:04:05 MST"))
	if report.CatalogueVersion != "" {
		fmt.Fprintf(sb, "Catalogue:      %s\n", report.CatalogueVersion)
	}
	fmt.Fprintf(sb, "Status:         %s\n", statusText(report))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeScore(sb *strings.Builder, gr *model.GapReport) {
	w.writeSection(sb, "COMPLIANCE SCORE")

	if gr.Indeterminate {
		fmt.Fprintf(sb, "  SCORE:    %s\n", w.paint(color.New(color.FgYellow, color.Bold), "INDETERMINATE"))
	} else {
		fmt.Fprintf(sb, "  SCORE:    %d/100\n", gr.Score)
	}
	fmt.Fprintf(sb, "  POLICY:   %s confidence\n", gr.PolicyConfidence)
	if gr.Note != "" {
		fmt.Fprintf(sb, "  NOTE:     %s\n", gr.Note)
	}
	sb.WriteString("\n")

	fmt.Fprintf(sb, "  CRITICAL: %d\n", gr.CriticalCount)
	fmt.Fprintf(sb, "  WARNING:  %d\n", gr.WarningCount)
	fmt.Fprintf(sb, "  INFO:     %d\n", gr.InfoCount)
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  TOTAL:    %d gaps\n", gr.TotalGaps)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeRisk(sb *strings.Builder, gr *model.GapReport) {
	w.writeSection(sb, "RISK EXPOSURE")

	fmt.Fprintf(sb, "  Total exposure:  %s\n", formatUSD(gr.TotalRisk))
	fmt.Fprintf(sb, "  After fixes:     %s\n", formatUSD(gr.ResidualRisk))
	sb.WriteString("\n")
	for _, rr := range gr.RiskByRegime {
		fmt.Fprintf(sb, "  %-12s %14s  %s\n", rr.Name, formatUSD(rr.Amount), rr.Detail)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeGaps(sb *strings.Builder, gr *model.GapReport) {
	if len(gr.Gaps) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "COMPLIANCE GAPS")

	for _, severity := range model.Severities {
		gaps := gr.GapsBySeverity(severity)
		if len(gaps) == 0 && !w.showEmpty {
			continue
		}
		w.writeGapsForSeverity(sb, severity, gaps)
	}
}

func (w *SimpleWriter) writeGapsForSeverity(sb *strings.Builder, severity model.Severity, gaps []model.Gap) {
	label := fmt.Sprintf("[%s] %s", severityIndicator(severity), strings.ToUpper(severity.String()))
	sb.WriteString(w.paint(severityColor(severity), label))
	sb.WriteString("\n")

	if len(gaps) == 0 {
		sb.WriteString("  No gaps\n\n")
		return
	}

	for _, g := range gaps {
		fmt.Fprintf(sb, "  * %s (%s)\n", g.Title, formatUSD(g.RiskAmount))
		fmt.Fprintf(sb, "    Evidence: %s\n", g.Evidence)
		fmt.Fprintf(sb, "    Cites:    %s\n", joinRegulations(g.Regulations))
		if w.verbose {
			fmt.Fprintf(sb, "    Claim:    %s\n", g.Claim)
			for _, c := range g.Cases {
				fmt.Fprintf(sb, "    Case:     %s %d, %s (%s)\n", c.Company, c.Year, c.Fine, c.Authority)
			}
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeRoadmap(sb *strings.Builder, gr *model.GapReport) {
	if len(gr.Roadmap) == 0 {
		return
	}

	w.writeSection(sb, "REMEDIATION ROADMAP")

	for _, item := range gr.Roadmap {
		fmt.Fprintf(sb, "  %d. %s\n", item.Priority, item.Title)
		fmt.Fprintf(sb, "     Saves %s, %s", formatUSD(item.Savings), item.Effort)
		if item.Regulation != "" {
			fmt.Fprintf(sb, ", %s", item.Regulation)
		}
		sb.WriteString("\n")
		if w.verbose {
			fmt.Fprintf(sb, "     %s\n", item.Action)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeEvidence(sb *strings.Builder, ev *model.EvidenceRecord) {
	w.writeSection(sb, "EVIDENCE")

	if len(ev.Trackers) == 0 {
		sb.WriteString("  Trackers:  none detected\n")
	}
	for _, t := range ev.Trackers {
		fmt.Fprintf(sb, "  [+] %s (%s, via %s)\n", t.Name, t.Category, t.Channel)
	}
	fmt.Fprintf(sb, "  Cookies:   %d\n", len(ev.Cookies))
	fmt.Fprintf(sb, "  Forms:     %d\n", len(ev.Forms))
	fmt.Fprintf(sb, "  Signals:   %d\n", len(ev.DataSignals))
	fmt.Fprintf(sb, "  Scripts:   %d third-party\n", len(ev.ThirdPartyScripts))
	if ev.ConsentBanner.Detected {
		provider := ev.ConsentBanner.Provider
		if provider == "" {
			provider = "unknown provider"
		}
		fmt.Fprintf(sb, "  Consent:   %s\n", provider)
	} else {
		sb.WriteString("  Consent:   no banner detected\n")
	}
	for _, issue := range ev.ConsentBanner.Issues {
		fmt.Fprintf(sb, "    - %s\n", issue)
	}
	if ev.PrivacyPolicy.URL != "" {
		fmt.Fprintf(sb, "  Policy:    %s\n", ev.PrivacyPolicy.URL)
	}
	for _, e := range ev.Errors {
		fmt.Fprintf(sb, "  Error:     %s\n", e)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Risk figures are estimates based on published enforcement actions.\n")
	sb.WriteString("https://github.com/nao1215/privacygap\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}

// paint applies c when colors are enabled. The color's own terminal
// detection is overridden so output depends only on the writer options.
func (w *SimpleWriter) paint(c *color.Color, s string) string {
	if w.color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(s)
}

func severityColor(severity model.Severity) *color.Color {
	switch severity {
	case model.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case model.SeverityWarning:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

func severityIndicator(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical:
		return "!!!"
	case model.SeverityWarning:
		return "!"
	case model.SeverityInfo:
		return "i"
	default:
		return "?"
	}
}

func joinRegulations(regs []model.Regulation) string {
	parts := make([]string, len(regs))
	for i, r := range regs {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}
