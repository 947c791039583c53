package rollup

import (
	"fmt"

	"github.com/rpattn/rollup/internal/domain"
)

// Diagnostic is a non-fatal finding raised while computing a rollup run.
type Diagnostic struct {
	Level   string
	Code    string
	Pass    string
	Message string
}

const (
	DiagnosticLevelWarning = "warning"

	// CodeAmbiguousTierLookup flags a counter party carrying more than one
	// tier in the side relation during backfill.
	CodeAmbiguousTierLookup = "AMBIGUOUS_TIER_LOOKUP"
)

// BackfillTier resolves the true tier onto aggregated rows from the side
// relation. A row qualifies when neither its tier cell nor its counter_party
// cell is the Total marker and the side relation has at least one entry for
// that counter party; the first matching tier then replaces the tier cell.
// With the three invoice dimensions only the legal_entity+counter_party pass
// qualifies: its tier distinct-count is replaced by the looked-up tier, while
// singleton passes keep their Total markers untouched.
//
// A counter party with several distinct tiers raises an AmbiguousTierLookup
// warning; the first entry still wins, matching the side relation's order.
// The input slice is never mutated; measures never change.
func BackfillTier(rows []domain.RollupRow, spec GroupKeySpec, parties []domain.Party) ([]domain.RollupRow, []Diagnostic) {
	tiersByParty := make(map[string][]int64, len(parties))
	for _, party := range parties {
		tiersByParty[party.CounterParty] = append(tiersByParty[party.CounterParty], party.Tier)
	}

	result := make([]domain.RollupRow, len(rows))
	copy(result, rows)

	var diagnostics []Diagnostic
	reported := make(map[string]struct{})
	for i, row := range result {
		if row.Tier.IsTotal() || row.CounterParty.IsTotal() {
			continue
		}
		counterParty, ok := row.CounterParty.Value().(string)
		if !ok {
			continue
		}
		tiers, ok := tiersByParty[counterParty]
		if !ok {
			continue
		}
		if hasDistinctTiers(tiers) {
			if _, seen := reported[counterParty]; !seen {
				reported[counterParty] = struct{}{}
				diagnostics = append(diagnostics, Diagnostic{
					Level:   DiagnosticLevelWarning,
					Code:    CodeAmbiguousTierLookup,
					Pass:    spec.Name(),
					Message: fmt.Sprintf("counter party %s has %d tier entries; using the first", counterParty, len(tiers)),
				})
			}
		}
		result[i].Tier = domain.ValueCell(tiers[0])
	}
	return result, diagnostics
}

func hasDistinctTiers(tiers []int64) bool {
	for _, tier := range tiers[1:] {
		if tier != tiers[0] {
			return true
		}
	}
	return false
}
