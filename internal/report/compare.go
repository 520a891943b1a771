package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"

	"github.com/nao1215/privacygap/internal/model"
)

// Risk direction values for Comparison.Direction.
const (
	DirectionImproved  = "improved"
	DirectionWorsened  = "worsened"
	DirectionUnchanged = "unchanged"

	// DirectionIndeterminate means one side could not be assessed, so no
	// trend is reported.
	DirectionIndeterminate = "indeterminate"
)

// Comparison is the difference between two stored scans of one domain.
type Comparison struct {
	Domain string `json:"domain"`

	Previous ScanSummary `json:"previous_scan"`
	Current  ScanSummary `json:"current_scan"`

	// NewGaps are gaps present only in the current scan. Gaps are only
	// diffed when both scans reached the site.
	NewGaps []model.Gap `json:"new_gaps,omitempty"`

	// ResolvedGaps are gaps present only in the previous scan.
	ResolvedGaps []model.Gap `json:"resolved_gaps,omitempty"`

	UnchangedCount int `json:"unchanged_count"`

	// RiskDelta is current total risk minus previous total risk. It is zero
	// when either site was unreachable.
	RiskDelta int64 `json:"risk_delta"`

	// ScoreDelta is current score minus previous score. It is zero when
	// either scan is indeterminate.
	ScoreDelta int `json:"score_delta"`

	Direction string `json:"direction"`
}

// ScanSummary is the headline of one side of a comparison.
type ScanSummary struct {
	ID            string    `json:"id"`
	DateScanned   time.Time `json:"date_scanned"`
	TotalGaps     int       `json:"total_gaps"`
	CriticalCount int       `json:"critical_count"`
	WarningCount  int       `json:"warning_count"`
	InfoCount     int       `json:"info_count"`
	TotalRisk     int64     `json:"total_risk"`
	Score         int       `json:"compliance_score"`
	Indeterminate bool      `json:"indeterminate"`
	Reachable     bool      `json:"reachable"`
}

// assessed reports whether the scan supports a compliance judgement.
func (s ScanSummary) assessed() bool {
	return s.Reachable && !s.Indeterminate
}

// Summarize extracts the headline of a scan report.
func Summarize(r *model.ScanReport) ScanSummary {
	s := ScanSummary{ID: r.ID, DateScanned: r.DateScanned}
	if r.Evidence != nil {
		s.Reachable = r.Evidence.Reachable
	}
	if gr := r.Report; gr != nil {
		s.TotalGaps = gr.TotalGaps
		s.CriticalCount = gr.CriticalCount
		s.WarningCount = gr.WarningCount
		s.InfoCount = gr.InfoCount
		s.TotalRisk = gr.TotalRisk
		s.Score = gr.Score
		s.Indeterminate = gr.Indeterminate
	}
	return s
}

// Compare diffs two scans. Gaps are matched by the rule that produced them.
// A scan that could not be assessed never reads as progress: the direction
// is indeterminate, and an unreachable side contributes no gap diff.
func Compare(previous, current *model.ScanReport) *Comparison {
	c := &Comparison{
		Domain:   current.Domain(),
		Previous: Summarize(previous),
		Current:  Summarize(current),
	}

	if c.Previous.Reachable && c.Current.Reachable {
		diffGaps(c, previous, current)
		c.RiskDelta = c.Current.TotalRisk - c.Previous.TotalRisk
	}

	if !c.Previous.assessed() || !c.Current.assessed() {
		c.Direction = DirectionIndeterminate
		return c
	}
	c.ScoreDelta = c.Current.Score - c.Previous.Score
	c.Direction = direction(c)

	return c
}

func diffGaps(c *Comparison, previous, current *model.ScanReport) {
	prevGaps := gapsByRule(previous)
	curGaps := gapsByRule(current)

	for _, g := range gapList(current) {
		if _, ok := prevGaps[g.Rule]; !ok {
			c.NewGaps = append(c.NewGaps, g)
		}
	}
	for _, g := range gapList(previous) {
		if _, ok := curGaps[g.Rule]; ok {
			c.UnchangedCount++
		} else {
			c.ResolvedGaps = append(c.ResolvedGaps, g)
		}
	}
}

func gapList(r *model.ScanReport) []model.Gap {
	if r.Report == nil {
		return nil
	}
	return r.Report.Gaps
}

func gapsByRule(r *model.ScanReport) map[string]model.Gap {
	out := make(map[string]model.Gap)
	for _, g := range gapList(r) {
		out[g.Rule] = g
	}
	return out
}

// direction weighs exposure first, then critical gaps, then the gap count.
func direction(c *Comparison) string {
	keys := []int64{
		c.RiskDelta,
		int64(c.Current.CriticalCount - c.Previous.CriticalCount),
		int64(c.Current.TotalGaps - c.Previous.TotalGaps),
	}
	for _, d := range keys {
		switch {
		case d < 0:
			return DirectionImproved
		case d > 0:
			return DirectionWorsened
		}
	}
	return DirectionUnchanged
}

// WriteComparisonJSON writes the comparison as indented JSON.
func WriteComparisonJSON(w io.Writer, c *Comparison) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(c)
}

// WriteComparisonText writes the comparison for terminal display.
func WriteComparisonText(w io.Writer, c *Comparison) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Scan Comparison: %s\n", c.Domain)
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "\nRisk Status: %s\n", formatDirection(c.Direction))
	fmt.Fprintf(&sb, "\nPrevious scan: %s\n", c.Previous.DateScanned.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Current scan:  %s\n", c.Current.DateScanned.Format("2006-01-02 15:04:05"))

	sb.WriteString("\nGap Summary:\n")
	fmt.Fprintf(&sb, "  %-10s  %-14s  %-14s  %-14s\n", "Metric", "Previous", "Current", "Change")
	sb.WriteString("  " + strings.Repeat("-", 58) + "\n")
	for _, row := range comparisonRows(c) {
		fmt.Fprintf(&sb, "  %-10s  %-14s  %-14s  %-14s\n", row[0], row[1], row[2], row[3])
	}

	if len(c.NewGaps) > 0 {
		fmt.Fprintf(&sb, "\nNew Gaps (%d):\n", len(c.NewGaps))
		for _, g := range c.NewGaps {
			fmt.Fprintf(&sb, "  [+] [%s] %s (%s)\n", g.Severity, g.Title, formatUSD(g.RiskAmount))
		}
	}
	if len(c.ResolvedGaps) > 0 {
		fmt.Fprintf(&sb, "\nResolved Gaps (%d):\n", len(c.ResolvedGaps))
		for _, g := range c.ResolvedGaps {
			fmt.Fprintf(&sb, "  [-] [%s] %s\n", g.Severity, g.Title)
		}
	}
	if c.UnchangedCount > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d gaps\n", c.UnchangedCount)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteComparisonMarkdown writes the comparison as Markdown.
func WriteComparisonMarkdown(w io.Writer, c *Comparison) error {
	md := markdown.NewMarkdown(w)

	md.H1("Scan Comparison: " + c.Domain)
	md.PlainText("")
	md.H2("Summary")
	md.PlainText("")
	md.PlainTextf("**Risk Status:** %s", formatDirection(c.Direction))
	md.PlainText("")

	rows := [][]string{{
		"Date",
		c.Previous.DateScanned.Format("2006-01-02 15:04"),
		c.Current.DateScanned.Format("2006-01-02 15:04"),
		"-",
	}}
	rows = append(rows, comparisonRows(c)...)
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(c.NewGaps) > 0 {
		md.H2(fmt.Sprintf("New Gaps (%d)", len(c.NewGaps)))
		md.PlainText("")
		items := make([]string, len(c.NewGaps))
		for i, g := range c.NewGaps {
			items[i] = fmt.Sprintf("**[%s]** %s: %s", g.Severity, g.Title, g.Evidence)
		}
		md.BulletList(items...)
		md.PlainText("")
	}
	if len(c.ResolvedGaps) > 0 {
		md.H2(fmt.Sprintf("Resolved Gaps (%d)", len(c.ResolvedGaps)))
		md.PlainText("")
		items := make([]string, len(c.ResolvedGaps))
		for i, g := range c.ResolvedGaps {
			items[i] = fmt.Sprintf("~~**[%s]** %s~~", g.Severity, g.Title)
		}
		md.BulletList(items...)
		md.PlainText("")
	}
	if c.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainTextf("*%d gaps unchanged*", c.UnchangedCount)
	}

	return md.Build()
}

// comparisonRows returns metric, previous, current and change columns.
func comparisonRows(c *Comparison) [][]string {
	p, n := c.Previous, c.Current
	score := []string{"Score", scoreText(p), scoreText(n), "-"}
	if !p.Indeterminate && !n.Indeterminate {
		score[3] = formatDelta(int64(c.ScoreDelta))
	}
	return [][]string{
		score,
		{"Critical", strconv.Itoa(p.CriticalCount), strconv.Itoa(n.CriticalCount), formatDelta(int64(n.CriticalCount - p.CriticalCount))},
		{"Warning", strconv.Itoa(p.WarningCount), strconv.Itoa(n.WarningCount), formatDelta(int64(n.WarningCount - p.WarningCount))},
		{"Info", strconv.Itoa(p.InfoCount), strconv.Itoa(n.InfoCount), formatDelta(int64(n.InfoCount - p.InfoCount))},
		{"Total", strconv.Itoa(p.TotalGaps), strconv.Itoa(n.TotalGaps), formatDelta(int64(n.TotalGaps - p.TotalGaps))},
		{"Risk", formatUSD(p.TotalRisk), formatUSD(n.TotalRisk), formatUSDDelta(c.RiskDelta)},
	}
}

func scoreText(s ScanSummary) string {
	if s.Indeterminate {
		return "indeterminate"
	}
	return strconv.Itoa(s.Score)
}

func formatDirection(d string) string {
	switch d {
	case DirectionImproved:
		return "IMPROVED (risk decreased)"
	case DirectionWorsened:
		return "WORSENED (risk increased)"
	case DirectionIndeterminate:
		return "INDETERMINATE (a scan could not be assessed)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int64) string {
	if delta > 0 {
		return "+" + strconv.FormatInt(delta, 10)
	}
	return strconv.FormatInt(delta, 10)
}

func formatUSDDelta(delta int64) string {
	if delta > 0 {
		return "+" + formatUSD(delta)
	}
	return formatUSD(delta)
}
