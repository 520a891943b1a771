package model

import (
	"slices"
	"strings"
)

// Regulation is a single citation from the fixed list of provisions the
// analyzer may reference. Gaps never cite anything outside this list.
type Regulation string

const (
	GDPRArt5_1c       Regulation = "GDPR Art. 5(1)(c)"
	GDPRArt7          Regulation = "GDPR Art. 7"
	GDPRArt8          Regulation = "GDPR Art. 8"
	GDPRArt13         Regulation = "GDPR Art. 13"
	GDPRArt13_1e      Regulation = "GDPR Art. 13(1)(e)"
	GDPRArt13_2a      Regulation = "GDPR Art. 13(2)(a)"
	GDPRArt15to22     Regulation = "GDPR Art. 15-22"
	GDPRArt44to49     Regulation = "GDPR Art. 44-49"
	CCPA1798_100a3    Regulation = "CCPA §1798.100(a)(3)"
	CCPA1798_100b     Regulation = "CCPA §1798.100(b)"
	CCPA1798_100to125 Regulation = "CCPA §1798.100-125"
	CCPA1798_115      Regulation = "CCPA §1798.115"
	CCPA1798_120      Regulation = "CCPA §1798.120"
	CCPA1798_140e     Regulation = "CCPA §1798.140(e)"
	EPrivacyArt5_3    Regulation = "ePrivacy Directive Art. 5(3)"
	COPPA             Regulation = "COPPA"
	UKAADC            Regulation = "UK AADC"
)

// Regulations is the complete citation list.
var Regulations = []Regulation{
	GDPRArt5_1c, GDPRArt7, GDPRArt8, GDPRArt13, GDPRArt13_1e, GDPRArt13_2a,
	GDPRArt15to22, GDPRArt44to49,
	CCPA1798_100a3, CCPA1798_100b, CCPA1798_100to125, CCPA1798_115, CCPA1798_120, CCPA1798_140e,
	EPrivacyArt5_3, COPPA, UKAADC,
}

// Regime names used for the proportional risk split.
const (
	RegimeGDPR  = "GDPR"
	RegimeCCPA  = "CCPA/CPRA"
	RegimeState = "State Laws"
)

// Valid reports whether r is on the citation list.
func (r Regulation) Valid() bool { return slices.Contains(Regulations, r) }

// Regime returns the regime a citation belongs to, or "" for provisions
// outside GDPR and CCPA.
func (r Regulation) Regime() string {
	switch {
	case strings.HasPrefix(string(r), "GDPR"):
		return RegimeGDPR
	case strings.HasPrefix(string(r), "CCPA"):
		return RegimeCCPA
	default:
		return ""
	}
}

// ParseRegulation converts s into a Regulation.
func ParseRegulation(s string) (Regulation, error) {
	return parseEnum("regulation", s, Regulations)
}

// UnmarshalJSON rejects citations outside the fixed list.
func (r *Regulation) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, r, ParseRegulation)
}

// JoinRegulations renders citations the way reports display them.
func JoinRegulations(regs []Regulation) string {
	parts := make([]string, len(regs))
	for i, r := range regs {
		parts[i] = string(r)
	}
	return strings.Join(parts, " · ")
}
