package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity represents how urgent a compliance gap is.
//
// The zero value is SeverityInfo. Higher values are more severe, so
// severities can be compared and sorted numerically.
type Severity int

const (
	// SeverityInfo marks gaps worth documenting but unlikely to draw
	// enforcement on their own, such as missing children's provisions.
	SeverityInfo Severity = iota

	// SeverityWarning marks gaps that regulators routinely cite, such as
	// vague retention wording or undisclosed analytics providers.
	SeverityWarning

	// SeverityCritical marks gaps with direct enforcement precedent, such as
	// undisclosed advertising trackers or broken consent mechanisms.
	SeverityCritical
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityWarning, SeverityInfo}

// String returns the lower-case wire name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the enumerated severities.
func (s Severity) Valid() bool {
	return s >= SeverityInfo && s <= SeverityCritical
}

// ParseSeverity converts a wire name into a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return SeverityInfo, nil
	case "warning":
		return SeverityWarning, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return SeverityInfo, fmt.Errorf("%w: %q", ErrUnknownSeverity, s)
	}
}

// MarshalJSON encodes the severity as its wire name.
func (s Severity) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSeverity, int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a wire name, rejecting unknown severities.
func (s *Severity) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	v, err := ParseSeverity(str)
	if err != nil {
		return err
	}
	*s = v
	return nil
}
