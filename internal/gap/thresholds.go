package gap

import (
	"errors"
	"fmt"
)

// Thresholds holds every numeric constant the rules and the aggregation use.
// Risk amounts are whole US dollars.
type Thresholds struct {
	AdvertisingRiskPerTracker int64
	AnalyticsRiskPerTracker   int64
	ConsentRisk               int64
	LocationRisk              int64
	RecordingRisk             int64
	RetentionRisk             int64
	RightsRiskPerMissing      int64
	CrossBorderRisk           int64
	ChildrenRisk              int64
	ExcessiveFieldRisk        int64

	// PolicyMinLength is the number of characters policy text must exceed,
	// on top of high retrieval confidence, before policy-gated rules run.
	PolicyMinLength int

	// ConsentCriticalIssues is the number of consent issues at which the
	// consent gap becomes critical.
	ConsentCriticalIssues int

	// RightsMinMissing is the number of missing rights at which the rights
	// gap fires; one missing right is treated as a wording difference.
	RightsMinMissing int

	// RightsWarningMissing is the number of missing rights at which the
	// rights gap is a warning instead of info.
	RightsWarningMissing int

	// GDPRPercent and CCPAPercent split total risk between regimes. State
	// laws take the remainder.
	GDPRPercent int64
	CCPAPercent int64

	// ResidualPerMille of total risk, but at least ResidualFloor, remains
	// after remediation.
	ResidualPerMille int64
	ResidualFloor    int64

	ScorePerGap      int
	ScorePerCritical int
	ScoreFloor       int

	// ScoreClean is the score of a report with no gaps and a trusted policy.
	ScoreClean int
}

// DefaultThresholds returns the canonical rule set.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AdvertisingRiskPerTracker: 68000,
		AnalyticsRiskPerTracker:   15000,
		ConsentRisk:               180000,
		LocationRisk:              2100000,
		RecordingRisk:             95000,
		RetentionRisk:             45000,
		RightsRiskPerMissing:      8000,
		CrossBorderRisk:           35000,
		ChildrenRisk:              5000,
		ExcessiveFieldRisk:        12000,

		PolicyMinLength:       200,
		ConsentCriticalIssues: 2,
		RightsMinMissing:      2,
		RightsWarningMissing:  3,

		GDPRPercent:      58,
		CCPAPercent:      28,
		ResidualPerMille: 5,
		ResidualFloor:    500,

		ScorePerGap:      9,
		ScorePerCritical: 8,
		ScoreFloor:       5,
		ScoreClean:       85,
	}
}

// Validate reports every threshold that is out of range, in field order.
func (t Thresholds) Validate() error {
	var errs []error
	for _, f := range []struct {
		name  string
		value int64
	}{
		{"advertising risk", t.AdvertisingRiskPerTracker},
		{"analytics risk", t.AnalyticsRiskPerTracker},
		{"consent risk", t.ConsentRisk},
		{"location risk", t.LocationRisk},
		{"recording risk", t.RecordingRisk},
		{"retention risk", t.RetentionRisk},
		{"rights risk", t.RightsRiskPerMissing},
		{"cross-border risk", t.CrossBorderRisk},
		{"children risk", t.ChildrenRisk},
		{"excessive risk", t.ExcessiveFieldRisk},
		{"residual per mille", t.ResidualPerMille},
		{"residual floor", t.ResidualFloor},
		{"GDPR percent", t.GDPRPercent},
		{"CCPA percent", t.CCPAPercent},
		{"policy min length", int64(t.PolicyMinLength)},
		{"score per gap", int64(t.ScorePerGap)},
		{"score per critical", int64(t.ScorePerCritical)},
		{"score floor", int64(t.ScoreFloor)},
		{"clean score", int64(t.ScoreClean)},
		{"consent critical", int64(t.ConsentCriticalIssues)},
		{"rights min missing", int64(t.RightsMinMissing)},
		{"rights warning mark", int64(t.RightsWarningMissing)},
	} {
		if f.value < 0 {
			errs = append(errs, fmt.Errorf("%s is negative: %d", f.name, f.value))
		}
	}
	if t.GDPRPercent+t.CCPAPercent > 100 {
		errs = append(errs, fmt.Errorf("regime shares exceed 100%%: %d+%d", t.GDPRPercent, t.CCPAPercent))
	}
	if t.ScoreFloor > 100 || t.ScoreClean > 100 {
		errs = append(errs, errors.New("scores cannot exceed 100"))
	}
	if t.RightsMinMissing < 1 {
		errs = append(errs, errors.New("rights min missing must be at least 1"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidThresholds, err)
	}
	return nil
}
