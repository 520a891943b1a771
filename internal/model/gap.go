package model

import "slices"

// CaseRef is a real enforcement action cited as precedent for a gap.
type CaseRef struct {
	Company   string   `json:"company"`
	Fine      string   `json:"fine"`
	FineUSD   int64    `json:"fine_usd"`
	Year      int      `json:"year"`
	Authority string   `json:"authority"`
	Violation string   `json:"violation"`
	Tags      []string `json:"tags"`
}

// Gap is one evidence-gated compliance finding.
type Gap struct {
	// Rule is the stable identifier of the rule that fired.
	Rule string `json:"rule"`

	Severity Severity `json:"severity"`
	Title    string   `json:"title"`

	// Regulations are cited in the rule's fixed order.
	Regulations []Regulation `json:"regulation_citations"`

	// RiskAmount is the estimated exposure in whole US dollars.
	RiskAmount int64 `json:"risk_amount"`

	// Claim states what the policy says or omits, or that it could not be retrieved.
	Claim string `json:"claim"`

	// Evidence names the specific detected evidence.
	Evidence string `json:"evidence"`

	// EvidenceFields lists the EvidenceRecord fields the gap is derived from.
	EvidenceFields []string `json:"evidence_fields"`

	Cases []CaseRef `json:"precedent_cases"`

	// Tags is a sorted set of violation tags.
	Tags []string `json:"tags"`
}

// RoadmapItem is one remediation step. A report's roadmap holds one item
// per gap, highest risk first.
type RoadmapItem struct {
	Priority int    `json:"priority"`
	Rule     string `json:"rule"`
	Title    string `json:"title"`
	Action   string `json:"action"`

	// Effort is a rough time estimate such as "2-4 hours".
	Effort string `json:"estimated_time"`

	// Savings is the exposure removed by completing the step.
	Savings int64 `json:"savings"`

	// Regulation is the first citation of the gap.
	Regulation Regulation `json:"regulation"`
}

// RegimeRisk is the share of total risk allocated to one regulatory regime.
type RegimeRisk struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
	Detail string `json:"detail"`
}

// GapReport aggregates every gap found for one evidence record.
type GapReport struct {
	Gaps          []Gap `json:"gaps"`
	TotalGaps     int   `json:"total_gaps"`
	CriticalCount int   `json:"critical_count"`
	WarningCount  int   `json:"warning_count"`
	InfoCount     int   `json:"info_count"`

	// TotalRisk is the sum of every gap's RiskAmount.
	TotalRisk int64 `json:"total_risk_exposure"`

	// ResidualRisk is the estimated exposure after remediation.
	ResidualRisk int64 `json:"risk_after_fix"`

	RiskByRegime []RegimeRisk `json:"risk_by_regulation"`

	// Score is the compliance score from 0 to 100. It is 0 only when
	// Indeterminate is set.
	Score int `json:"compliance_score"`

	// Indeterminate marks a report where evidence was insufficient to
	// assess compliance. It never means compliant.
	Indeterminate bool `json:"indeterminate"`

	Note string `json:"note,omitempty"`

	// PolicyConfidence echoes the policy retrieval confidence the rules saw.
	PolicyConfidence Confidence `json:"policy_confidence"`

	Roadmap []RoadmapItem `json:"roadmap"`
}

// GapsBySeverity returns the gaps with the given severity in report order.
func (r *GapReport) GapsBySeverity(s Severity) []Gap {
	var out []Gap
	for _, g := range r.Gaps {
		if g.Severity == s {
			out = append(out, g)
		}
	}
	return out
}

// FindGap returns the gap produced by the given rule, if any.
func (r *GapReport) FindGap(rule string) (Gap, bool) {
	for _, g := range r.Gaps {
		if g.Rule == rule {
			return g, true
		}
	}
	return Gap{}, false
}

// Clone returns a deep copy of the report.
func (r *GapReport) Clone() *GapReport {
	if r == nil {
		return nil
	}
	c := *r
	c.Gaps = make([]Gap, len(r.Gaps))
	for i, g := range r.Gaps {
		g.Regulations = slices.Clone(g.Regulations)
		g.EvidenceFields = slices.Clone(g.EvidenceFields)
		g.Tags = slices.Clone(g.Tags)
		g.Cases = make([]CaseRef, len(g.Cases))
		for j, cr := range r.Gaps[i].Cases {
			cr.Tags = slices.Clone(cr.Tags)
			g.Cases[j] = cr
		}
		c.Gaps[i] = g
	}
	c.RiskByRegime = slices.Clone(r.RiskByRegime)
	c.Roadmap = slices.Clone(r.Roadmap)
	return &c
}
