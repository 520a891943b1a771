package gap

import (
	"cmp"
	"slices"

	"github.com/nao1215/privacygap/internal/model"
)

// remedy is the fix text and effort estimate for one rule.
type remedy struct {
	action string
	effort string
}

var remedies = map[string]remedy{
	RuleAdvertising: {
		action: "List every advertising tracker in the privacy policy with its data categories and add a \"Do Not Sell or Share My Personal Information\" link.",
		effort: "4-8 hours",
	},
	RuleAnalytics: {
		action: "Name each analytics provider in the privacy policy and state what it collects.",
		effort: "4-8 hours",
	},
	RuleConsent: {
		action: "Deploy a consent management platform that blocks non-essential cookies until the visitor opts in and offers a reject option as prominent as accept.",
		effort: "2-4 hours",
	},
	RuleLocation: {
		action: "Add a location data section to the privacy policy covering collection method, purpose and retention.",
		effort: "1-2 hours",
	},
	RuleRecording: {
		action: "Disclose session recording in the privacy policy and mask form inputs in the recording tool.",
		effort: "2-4 hours",
	},
	RuleRetention: {
		action: "Define a retention period for each data category and publish the schedule in the privacy policy.",
		effort: "1-3 days",
	},
	RuleRights: {
		action: "Document the access, deletion, correction and portability process with a request form or dedicated contact address.",
		effort: "1-2 weeks",
	},
	RuleCrossBorder: {
		action: "Name the destination countries of personal data and the transfer mechanism used, such as Standard Contractual Clauses.",
		effort: "2-3 days",
	},
	RuleChildren: {
		action: "Add an age gate or verifiable parental consent flow and a children's privacy section.",
		effort: "1-2 days",
	},
	RuleExcessiveFields: {
		action: "Remove form fields that are not needed for the stated purpose or mark them optional.",
		effort: "2-4 hours",
	},
}

var defaultRemedy = remedy{
	action: "Review the finding with counsel and update the privacy policy or site behaviour to match.",
	effort: "1-2 weeks",
}

// BuildRoadmap orders gaps into remediation steps, largest exposure first.
// Gaps of equal exposure keep their input order. The result is never nil.
func BuildRoadmap(gaps []model.Gap) []model.RoadmapItem {
	ordered := slices.Clone(gaps)
	slices.SortStableFunc(ordered, func(x, y model.Gap) int {
		return cmp.Compare(y.RiskAmount, x.RiskAmount)
	})

	items := make([]model.RoadmapItem, 0, len(ordered))
	for i, g := range ordered {
		r, ok := remedies[g.Rule]
		if !ok {
			r = defaultRemedy
		}
		item := model.RoadmapItem{
			Priority: i + 1,
			Rule:     g.Rule,
			Title:    "Fix: " + g.Title,
			Action:   r.action,
			Effort:   r.effort,
			Savings:  g.RiskAmount,
		}
		if len(g.Regulations) > 0 {
			item.Regulation = g.Regulations[0]
		}
		items = append(items, item)
	}
	return items
}
