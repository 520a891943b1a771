package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/privacygap/internal/model"
)

// MarkdownWriter outputs reports in GitHub-flavored Markdown for sharing
// with legal and engineering teams.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	if report.Report != nil {
		w.writeScore(md, report.Report)
		w.writeRisk(md, report.Report)
		w.writeGaps(md, report.Report)
		w.writeRoadmap(md, report.Report)
	}
	if report.Evidence != nil {
		w.writeTrackers(md, report.Evidence)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScanReport) {
	md.H1("Privacy Gap Report")
	md.PlainText("")

	rows := [][]string{
		{"Target", "`" + report.Target + "`"},
		{"Domain", report.Domain()},
	}
	if report.Evidence != nil && report.Evidence.CompanyName != "" {
		rows = append(rows, []string{"Company", report.Evidence.CompanyName})
	}
	rows = append(rows,
		[]string{"Scan Date", report.DateScanned.Format("2006-01-02 15:04:05 MST")},
		[]string{"Catalogue", orDash(report.CatalogueVersion)},
		[]string{"Status", statusEmoji(report) + " " + statusText(report)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func statusEmoji(report *model.ScanReport) string {
	switch {
	case report.TimedOut:
		return "⚠️"
	case report.ErrorMessage != "", report.Evidence != nil && !report.Evidence.Reachable:
		return "❌"
	default:
		return "✅"
	}
}

func (w *MarkdownWriter) writeScore(md *markdown.Markdown, gr *model.GapReport) {
	md.H2("Compliance Score")
	md.PlainText("")

	score := strconv.Itoa(gr.Score) + "/100"
	if gr.Indeterminate {
		score = "Indeterminate"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Score", "**" + score + "**"},
			{"Policy Confidence", string(gr.PolicyConfidence)},
			{"🔴 Critical", strconv.Itoa(gr.CriticalCount)},
			{"🟡 Warning", strconv.Itoa(gr.WarningCount)},
			{"🔵 Info", strconv.Itoa(gr.InfoCount)},
			{"**Total**", "**" + strconv.Itoa(gr.TotalGaps) + "**"},
		},
	})
	md.PlainText("")

	if gr.TotalGaps > 0 {
		w.writePieChart(md, gr)
	}

	w.writeAlert(md, gr)
}

// writePieChart writes a mermaid pie chart for severity distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, gr *model.GapReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Gap Severity Distribution"),
		piechart.WithShowData(true),
	)

	if gr.CriticalCount > 0 {
		chart.LabelAndIntValue("Critical", uint64(gr.CriticalCount))
	}
	if gr.WarningCount > 0 {
		chart.LabelAndIntValue("Warning", uint64(gr.WarningCount))
	}
	if gr.InfoCount > 0 {
		chart.LabelAndIntValue("Info", uint64(gr.InfoCount))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the most severe outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, gr *model.GapReport) {
	switch {
	case gr.Indeterminate:
		md.Importantf("Compliance could not be assessed. %s", gr.Note)
	case gr.CriticalCount > 0:
		md.Cautionf(
			"%d critical gap(s) match patterns regulators have fined. Estimated exposure %s.",
			gr.CriticalCount, formatUSD(gr.TotalRisk),
		)
	case gr.WarningCount > 0:
		md.Warningf(
			"%d warning gap(s) should be addressed in the privacy policy.",
			gr.WarningCount,
		)
	case gr.TotalGaps > 0:
		md.Note("Only informational gaps detected.")
	default:
		md.Tip("No compliance gaps detected against the retrieved policy.")
	}
	if !gr.Indeterminate && gr.Note != "" {
		md.Note(gr.Note)
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeRisk(md *markdown.Markdown, gr *model.GapReport) {
	md.H2("Risk Exposure")
	md.PlainText("")

	rows := make([][]string, 0, len(gr.RiskByRegime)+2)
	for _, rr := range gr.RiskByRegime {
		rows = append(rows, []string{rr.Name, formatUSD(rr.Amount), rr.Detail})
	}
	rows = append(rows,
		[]string{"**Total**", "**" + formatUSD(gr.TotalRisk) + "**", "-"},
		[]string{"After fixes", formatUSD(gr.ResidualRisk), "-"},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Regime", "Exposure", "Detail"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeGaps(md *markdown.Markdown, gr *model.GapReport) {
	md.H2("Compliance Gaps")
	md.PlainText("")

	if len(gr.Gaps) == 0 {
		md.PlainText("No compliance gaps detected.")
		md.PlainText("")
		return
	}

	headers := map[model.Severity]string{
		model.SeverityCritical: "### 🔴 Critical",
		model.SeverityWarning:  "### 🟡 Warning",
		model.SeverityInfo:     "### 🔵 Info",
	}

	for _, severity := range model.Severities {
		gaps := gr.GapsBySeverity(severity)
		if len(gaps) == 0 {
			continue
		}

		md.PlainText(headers[severity])
		md.PlainText("")
		w.writeGapsTable(md, gaps)
	}
}

func (w *MarkdownWriter) writeGapsTable(md *markdown.Markdown, gaps []model.Gap) {
	rows := make([][]string, len(gaps))
	for i, g := range gaps {
		rows[i] = []string{
			g.Title,
			formatUSD(g.RiskAmount),
			joinRegulations(g.Regulations),
			truncateString(g.Evidence, 80),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Gap", "Exposure", "Regulations", "Evidence"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, g := range gaps {
		md.Details(g.Title, gapDetails(g))
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeRoadmap(md *markdown.Markdown, gr *model.GapReport) {
	if len(gr.Roadmap) == 0 {
		return
	}

	md.H2("Remediation Roadmap")
	md.PlainText("")

	rows := make([][]string, len(gr.Roadmap))
	for i, item := range gr.Roadmap {
		rows[i] = []string{
			strconv.Itoa(item.Priority),
			item.Title,
			item.Action,
			item.Effort,
			formatUSD(item.Savings),
			orDash(string(item.Regulation)),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"#", "Step", "Action", "Time", "Saves", "Regulation"},
		Rows:   rows,
	})
	md.PlainText("")
}

// gapDetails renders the claim and precedent cases of a gap.
func gapDetails(g model.Gap) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Claim:** %s\n\n", g.Claim)
	fmt.Fprintf(&sb, "**Evidence:** %s\n", g.Evidence)
	if len(g.Cases) > 0 {
		sb.WriteString("\n**Precedent:**\n\n")
		for _, c := range g.Cases {
			fmt.Fprintf(&sb, "- %s (%d): %s by %s. %s\n", c.Company, c.Year, c.Fine, c.Authority, c.Violation)
		}
	}
	return sb.String()
}

func (w *MarkdownWriter) writeTrackers(md *markdown.Markdown, ev *model.EvidenceRecord) {
	if len(ev.Trackers) == 0 {
		return
	}

	md.H2("Detected Trackers")
	md.PlainText("")

	rows := make([][]string, len(ev.Trackers))
	for i, t := range ev.Trackers {
		rows[i] = []string{t.Name, string(t.Category), string(t.Channel), "`" + truncateString(t.Signature, 40) + "`"}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Tracker", "Category", "Channel", "Signature"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [privacygap](https://github.com/nao1215/privacygap). Risk figures are estimates, not legal advice.*")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
