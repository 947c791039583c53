package rollup

import (
	"fmt"
	"strings"

	"github.com/rpattn/rollup/internal/domain"
)

// Aggregate runs one pass over the fact relation: it partitions facts by the
// spec's group columns and emits one row per partition. Collapsed columns
// render as the Total marker when a single column is grouped, otherwise as
// the count of distinct values the column took inside the partition (a
// missing value counts as one distinct value, and forms its own partition
// when grouped). Measures follow the fixed invoice rules: max rating,
// value sums conditioned on status, empty sums yielding 0.
func Aggregate(facts []domain.InvoiceFact, spec GroupKeySpec) []domain.RollupRow {
	type partition struct {
		cells map[Dimension]domain.DimensionCell
		facts []domain.InvoiceFact
	}

	partitions := make(map[string]*partition)
	var order []string

	for _, fact := range facts {
		cells := make(map[Dimension]domain.DimensionCell, len(spec.GroupColumns))
		keyParts := make([]string, 0, len(spec.GroupColumns))
		for _, dim := range spec.GroupColumns {
			cell := factCell(fact, dim)
			cells[dim] = cell
			keyParts = append(keyParts, encodeCellKey(cell))
		}
		key := strings.Join(keyParts, "\x1f")

		part, ok := partitions[key]
		if !ok {
			part = &partition{cells: cells}
			partitions[key] = part
			order = append(order, key)
		}
		part.facts = append(part.facts, fact)
	}

	rows := make([]domain.RollupRow, 0, len(order))
	for _, key := range order {
		part := partitions[key]

		var row domain.RollupRow
		for _, dim := range spec.GroupColumns {
			setCell(&row, dim, part.cells[dim])
		}
		for _, dim := range spec.CollapsedColumns {
			if len(spec.GroupColumns) == 1 {
				setCell(&row, dim, domain.TotalCell())
			} else {
				setCell(&row, dim, domain.CountCell(distinctValues(part.facts, dim)))
			}
		}

		for _, fact := range part.facts {
			if fact.Rating != nil && *fact.Rating > row.Rating {
				row.Rating = *fact.Rating
			}
			if fact.Status == nil || fact.Value == nil {
				continue
			}
			switch *fact.Status {
			case domain.StatusARAP:
				row.ARAP += *fact.Value
			case domain.StatusACCR:
				row.ACCR += *fact.Value
			}
		}

		rows = append(rows, row)
	}
	return rows
}

// factCell extracts a fact's value for one dimension, null when the outer
// join left that side absent.
func factCell(fact domain.InvoiceFact, dim Dimension) domain.DimensionCell {
	switch dim {
	case DimLegalEntity:
		if fact.LegalEntity == nil {
			return domain.NullCell()
		}
		return domain.ValueCell(*fact.LegalEntity)
	case DimCounterParty:
		return domain.ValueCell(fact.CounterParty)
	case DimTier:
		if fact.Tier == nil {
			return domain.NullCell()
		}
		return domain.ValueCell(*fact.Tier)
	default:
		return domain.NullCell()
	}
}

func setCell(row *domain.RollupRow, dim Dimension, cell domain.DimensionCell) {
	switch dim {
	case DimLegalEntity:
		row.LegalEntity = cell
	case DimCounterParty:
		row.CounterParty = cell
	case DimTier:
		row.Tier = cell
	}
}

func distinctValues(facts []domain.InvoiceFact, dim Dimension) int64 {
	seen := make(map[string]struct{}, len(facts))
	for _, fact := range facts {
		seen[encodeCellKey(factCell(fact, dim))] = struct{}{}
	}
	return int64(len(seen))
}

// encodeCellKey builds a collision-safe partition key part. A null cell must
// not collide with an empty string value, so the kind is part of the key, and
// each value is length-prefixed so values containing the joiner byte cannot
// merge distinct partitions.
func encodeCellKey(cell domain.DimensionCell) string {
	if cell.Kind() == domain.CellNull {
		return "\x00"
	}
	rendered := fmt.Sprintf("%v", cell.Value())
	return fmt.Sprintf("v%d:%s", len(rendered), rendered)
}
