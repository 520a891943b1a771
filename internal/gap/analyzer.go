package gap

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/nao1215/privacygap/internal/model"
)

// DefaultCaseLimit is the number of precedent cases attached to each gap.
const DefaultCaseLimit = 2

// Report notes for results that cannot be read as a clean bill of health.
const (
	NoteUnreachable   = "The site could not be fetched, so compliance could not be assessed."
	NoteIndeterminate = "Unable to retrieve a usable privacy policy. Supply the policy URL or text in the site config for a complete analysis."
	NotePolicySkipped = "No usable privacy policy was retrieved, so checks that compare evidence against policy text were skipped."

	detailNoPolicy = "Could not retrieve policy for analysis"
	detailState    = "VA CDPA, CO CPA, TX TDPSA combined"
)

// Analyzer turns an evidence record into a gap report.
//
// Analyze is a pure function of the record and the analyzer's settings, so
// one Analyzer may be shared by concurrent scans.
type Analyzer struct {
	rules      []Rule
	cases      CaseMatcher
	caseLimit  int
	thresholds Thresholds
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithThresholds replaces the default thresholds.
func WithThresholds(t Thresholds) Option {
	return func(a *Analyzer) {
		a.thresholds = t
	}
}

// WithCaseLimit sets how many precedent cases each gap carries.
func WithCaseLimit(n int) Option {
	return func(a *Analyzer) {
		a.caseLimit = n
	}
}

// WithRules replaces the default rule set. Rules run in the given order.
func WithRules(rules ...Rule) Option {
	return func(a *Analyzer) {
		a.rules = slices.Clone(rules)
	}
}

// NewAnalyzer creates an Analyzer with the default rules. cases may be nil,
// in which case gaps carry no precedent cases.
func NewAnalyzer(cases CaseMatcher, opts ...Option) *Analyzer {
	a := &Analyzer{
		rules:      DefaultRules(),
		cases:      cases,
		caseLimit:  DefaultCaseLimit,
		thresholds: DefaultThresholds(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Rules returns the identifiers of the registered rules in evaluation order.
func (a *Analyzer) Rules() []string {
	ids := make([]string, len(a.rules))
	for i, r := range a.rules {
		ids[i] = r.ID()
	}
	return ids
}

// Fingerprint names the settings that shape Analyze output: the rule set,
// the case limit and every threshold. Analyzers with equal fingerprints and
// the same case table produce equal reports for equal records.
func (a *Analyzer) Fingerprint() string {
	return fmt.Sprintf("rules=%s;cases=%d;thresholds=%+v", strings.Join(a.Rules(), ","), a.caseLimit, a.thresholds)
}

// Analyze runs every rule against ev and aggregates the result.
//
// Policy-gated rules run only when the policy is high confidence. A rule
// that emits a gap breaking the gating contract (negative risk, no
// evidence, no citation, an unknown citation) fails the analysis with
// ErrInvariantViolation instead of being corrected.
func (a *Analyzer) Analyze(ev *model.EvidenceRecord) (*model.GapReport, error) {
	if ev == nil {
		return nil, fmt.Errorf("%w: nil record", ErrInvalidEvidence)
	}
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvidence, err)
	}
	if err := a.thresholds.Validate(); err != nil {
		return nil, err
	}

	in := newInput(ev, a.thresholds, a.cases, a.caseLimit)
	gaps := make([]model.Gap, 0, len(a.rules))
	for _, r := range a.rules {
		if r.PolicyGated() && !in.HighConfidence {
			continue
		}
		g, err := r.Evaluate(in)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID(), err)
		}
		if g == nil {
			continue
		}
		g.Rule = r.ID()
		normalize(g)
		if err := checkGap(g); err != nil {
			return nil, fmt.Errorf("%w: rule %s: %w", ErrInvariantViolation, r.ID(), err)
		}
		gaps = append(gaps, *g)
	}

	return a.aggregate(gaps, in), nil
}

func normalize(g *model.Gap) {
	if g.Cases == nil {
		g.Cases = []model.CaseRef{}
	}
	tags := slices.Clone(g.Tags)
	slices.Sort(tags)
	g.Tags = slices.Compact(tags)
	if g.Tags == nil {
		g.Tags = []string{}
	}
}

func checkGap(g *model.Gap) error {
	switch {
	case g.RiskAmount < 0:
		return fmt.Errorf("negative risk %d", g.RiskAmount)
	case !g.Severity.Valid():
		return fmt.Errorf("unknown severity %d", int(g.Severity))
	case strings.TrimSpace(g.Evidence) == "":
		return errors.New("no evidence")
	case len(g.EvidenceFields) == 0:
		return errors.New("no evidence field")
	case len(g.Regulations) == 0:
		return errors.New("no regulation citation")
	}
	for _, r := range g.Regulations {
		if !r.Valid() {
			return fmt.Errorf("unknown citation %q", r)
		}
	}
	return nil
}

func (a *Analyzer) aggregate(gaps []model.Gap, in *Input) *model.GapReport {
	th := a.thresholds
	slices.SortStableFunc(gaps, func(x, y model.Gap) int {
		return cmp.Compare(y.Severity, x.Severity)
	})

	report := &model.GapReport{
		Gaps:             gaps,
		TotalGaps:        len(gaps),
		PolicyConfidence: in.Evidence.PrivacyPolicy.Confidence,
		Roadmap:          BuildRoadmap(gaps),
	}
	citing := map[string]int{}
	for _, g := range gaps {
		switch g.Severity {
		case model.SeverityCritical:
			report.CriticalCount++
		case model.SeverityWarning:
			report.WarningCount++
		default:
			report.InfoCount++
		}
		report.TotalRisk += g.RiskAmount

		regimes := map[string]bool{}
		for _, r := range g.Regulations {
			if reg := r.Regime(); reg != "" && !regimes[reg] {
				regimes[reg] = true
				citing[reg]++
			}
		}
	}

	if report.TotalRisk > 0 {
		report.ResidualRisk = max(report.TotalRisk*th.ResidualPerMille/1000, th.ResidualFloor)
	}

	gdpr := report.TotalRisk * th.GDPRPercent / 100
	ccpa := report.TotalRisk * th.CCPAPercent / 100
	report.RiskByRegime = []model.RegimeRisk{
		{Name: model.RegimeGDPR, Amount: gdpr, Detail: fmt.Sprintf("%d violations found", citing[model.RegimeGDPR])},
		{Name: model.RegimeCCPA, Amount: ccpa, Detail: fmt.Sprintf("%d violations found", citing[model.RegimeCCPA])},
		{Name: model.RegimeState, Amount: report.TotalRisk - gdpr - ccpa, Detail: detailState},
	}

	switch {
	case len(gaps) > 0:
		report.Score = Score(len(gaps), report.CriticalCount, th)
		if !in.HighConfidence {
			report.Note = NotePolicySkipped
		}
	case in.HighConfidence:
		report.Score = th.ScoreClean
	default:
		report.Indeterminate = true
		report.Note = NoteIndeterminate
		if !in.Evidence.Reachable {
			report.Note = NoteUnreachable
		}
		for i := range report.RiskByRegime {
			report.RiskByRegime[i].Detail = detailNoPolicy
		}
	}
	return report
}

// Score returns the compliance score of a report with at least one gap.
// It never increases as gaps or criticals grow and never drops below
// th.ScoreFloor.
func Score(gaps, criticals int, th Thresholds) int {
	return max(th.ScoreFloor, 100-th.ScorePerGap*gaps-th.ScorePerCritical*criticals)
}
