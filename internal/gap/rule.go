package gap

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nao1215/privacygap/internal/model"
)

// Rule is one evidence-gated compliance check.
type Rule interface {
	// ID returns the stable rule identifier stored in Gap.Rule.
	ID() string

	// PolicyGated reports whether the rule compares evidence against policy
	// text. Gated rules are skipped unless the policy is high confidence.
	PolicyGated() bool

	// Evaluate returns the gap the rule finds in the input, or nil when the
	// rule does not fire. It must not modify the input.
	Evaluate(in *Input) (*model.Gap, error)
}

// CaseMatcher ranks precedent enforcement cases by tag overlap.
// *catalog.Catalog satisfies it.
type CaseMatcher interface {
	MatchCases(tags []string, limit int) []model.CaseRef
}

// Input is what every rule sees. It is computed once per analysis.
type Input struct {
	// Evidence is a private copy of the analyzed record.
	Evidence *model.EvidenceRecord

	// Policy is the lower-cased policy text.
	Policy string

	// HighConfidence is true when the policy was retrieved with high
	// confidence and is longer than Thresholds.PolicyMinLength.
	HighConfidence bool

	Thresholds Thresholds

	cases     CaseMatcher
	caseLimit int
}

func newInput(ev *model.EvidenceRecord, th Thresholds, cases CaseMatcher, caseLimit int) *Input {
	text := ev.PrivacyPolicy.Text
	return &Input{
		Evidence:       ev.Clone(),
		Policy:         strings.ToLower(text),
		HighConfidence: ev.PrivacyPolicy.Confidence == model.ConfidenceHigh && utf8.RuneCountInString(text) > th.PolicyMinLength,
		Thresholds:     th,
		cases:          cases,
		caseLimit:      caseLimit,
	}
}

// Cases returns the precedent cases sharing the most tags. The result is
// never nil.
func (in *Input) Cases(tags ...string) []model.CaseRef {
	if in.cases == nil {
		return []model.CaseRef{}
	}
	if out := in.cases.MatchCases(tags, in.caseLimit); out != nil {
		return out
	}
	return []model.CaseRef{}
}

// Mentions reports whether the policy contains any keyword as a whole
// phrase. It is always false without a high-confidence policy.
func (in *Input) Mentions(keywords ...string) bool {
	if !in.HighConfidence {
		return false
	}
	for _, kw := range keywords {
		if containsPhrase(in.Policy, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// containsPhrase reports whether phrase occurs in text without a letter or
// digit glued to either end, so "age" does not match "page".
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	for start := 0; start < len(text); {
		i := strings.Index(text[start:], phrase)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(phrase)
		before, _ := utf8.DecodeLastRuneInString(text[:i])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (i == 0 || !isWordRune(before)) && (end == len(text) || !isWordRune(after)) {
			return true
		}
		start = i + 1
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
