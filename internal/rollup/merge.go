package rollup

import "github.com/rpattn/rollup/internal/domain"

// Merge concatenates the pass relations row-wise, preserving the relative
// order of inputs and of rows within each input, and projects every row to
// the fixed column order. Any input missing one of those columns aborts with
// a SchemaMismatchError: a rollup with undefined measures cannot be
// recovered, and partial output would be misleading.
func Merge(results []domain.Relation, columnOrder []string) (domain.Relation, error) {
	merged, err := domain.NewRelation("rollup", columnOrder)
	if err != nil {
		return domain.Relation{}, err
	}
	for _, relation := range results {
		for _, column := range columnOrder {
			if !relation.HasColumn(column) {
				return domain.Relation{}, &domain.SchemaMismatchError{
					Relation: relation.Name,
					Column:   column,
				}
			}
		}
		for _, row := range relation.Rows {
			projected := make(domain.Row, len(columnOrder))
			for _, column := range columnOrder {
				projected[column] = row[column]
			}
			if err := merged.Append(projected); err != nil {
				return domain.Relation{}, err
			}
		}
	}
	return merged, nil
}
