package domain

// Output column order of the merged rollup relation. Fixed; the merger
// rejects pass relations missing any of these.
const (
	ColumnLegalEntity  = "legal_entity"
	ColumnCounterParty = "counter_party"
	ColumnTier         = "tier"
	ColumnRating       = "rating"
	ColumnARAP         = "ARAP"
	ColumnACCR         = "ACCR"
)

// OutputColumns returns the fixed column order of the merged output.
func OutputColumns() []string {
	return []string{
		ColumnLegalEntity,
		ColumnCounterParty,
		ColumnTier,
		ColumnRating,
		ColumnARAP,
		ColumnACCR,
	}
}

// RollupRow is one aggregated group: three dimension cells plus the invoice
// measures. Rating is the maximum rating across the group's facts; ARAP and
// ACCR are the value sums conditioned on status, 0 when no row matches.
type RollupRow struct {
	LegalEntity  DimensionCell
	CounterParty DimensionCell
	Tier         DimensionCell
	Rating       int64
	ARAP         int64
	ACCR         int64
}

// RollupRowsToRelation converts one aggregation pass's rows into a relation
// in the fixed output column order.
func RollupRowsToRelation(name string, rows []RollupRow) (Relation, error) {
	relation, err := NewRelation(name, OutputColumns())
	if err != nil {
		return Relation{}, err
	}
	for _, row := range rows {
		if err := relation.Append(Row{
			ColumnLegalEntity:  row.LegalEntity.Value(),
			ColumnCounterParty: row.CounterParty.Value(),
			ColumnTier:         row.Tier.Value(),
			ColumnRating:       row.Rating,
			ColumnARAP:         row.ARAP,
			ColumnACCR:         row.ACCR,
		}); err != nil {
			return Relation{}, err
		}
	}
	return relation, nil
}
