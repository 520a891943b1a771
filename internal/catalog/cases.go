package catalog

import (
	"cmp"
	"slices"

	"github.com/nao1215/privacygap/internal/model"
)

// DefaultCaseLimit is the number of precedent cases attached to each gap.
const DefaultCaseLimit = 2

// MatchCases ranks enforcement cases by how many of tags they share.
//
// Cases sharing no tag are discarded. The rest are ordered by overlap,
// then by fine amount, both descending; ties keep catalogue order. At most
// limit cases are returned, and a non-positive limit returns none. The
// result is always non-nil.
func (c *Catalog) MatchCases(tags []string, limit int) []model.CaseRef {
	if limit <= 0 || len(tags) == 0 {
		return []model.CaseRef{}
	}

	query := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		query[t] = struct{}{}
	}

	type scored struct {
		overlap int
		c       EnforcementCase
	}
	var candidates []scored
	for _, ec := range c.def.Cases {
		overlap := 0
		seen := make(map[string]struct{}, len(ec.Tags))
		for _, t := range ec.Tags {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			if _, ok := query[t]; ok {
				overlap++
			}
		}
		if overlap > 0 {
			candidates = append(candidates, scored{overlap: overlap, c: ec})
		}
	}

	slices.SortStableFunc(candidates, func(a, b scored) int {
		if n := cmp.Compare(b.overlap, a.overlap); n != 0 {
			return n
		}
		return cmp.Compare(b.c.FineUSD, a.c.FineUSD)
	})

	out := make([]model.CaseRef, 0, min(limit, len(candidates)))
	for _, s := range candidates[:min(limit, len(candidates))] {
		out = append(out, s.c.Ref())
	}
	return out
}
