package gap

import "errors"

var (
	// ErrInvalidEvidence is returned for a nil record or one carrying
	// unknown enumerated values.
	ErrInvalidEvidence = errors.New("invalid evidence record")

	// ErrInvariantViolation is returned when a rule produces a gap that
	// breaks the evidence-gating contract. It always names the rule.
	ErrInvariantViolation = errors.New("gap invariant violated")

	// ErrInvalidThresholds is returned when the configured thresholds
	// cannot produce a meaningful report.
	ErrInvalidThresholds = errors.New("invalid thresholds")
)
