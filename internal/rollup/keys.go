package rollup

// Dimension names one of the categorical columns a pass can group by.
type Dimension string

const (
	DimLegalEntity  Dimension = "legal_entity"
	DimCounterParty Dimension = "counter_party"
	DimTier         Dimension = "tier"
)

// Dimensions returns the dimension columns in their fixed order.
func Dimensions() []Dimension {
	return []Dimension{DimLegalEntity, DimCounterParty, DimTier}
}

// GroupKeySpec describes one aggregation pass: the columns grouped by and
// the complementary columns collapsed to Total markers or distinct counts.
type GroupKeySpec struct {
	GroupColumns     []Dimension
	CollapsedColumns []Dimension
}

// Name labels the pass for relation names, logs, and diagnostics.
func (s GroupKeySpec) Name() string {
	name := "by"
	for _, dim := range s.GroupColumns {
		name += "_" + string(dim)
	}
	return name
}

// EnumerateKeys produces the aggregation passes for the given dimensions:
// every combination of size 1..len-1, taken in the fixed dimension order,
// minus the excluded degenerate subsets. The result is the same on every
// call; for the three invoice dimensions it contains exactly four specs.
func EnumerateKeys(dimensions []Dimension) []GroupKeySpec {
	var specs []GroupKeySpec
	for size := 1; size < len(dimensions); size++ {
		for _, group := range combinations(dimensions, size) {
			collapsed := complement(dimensions, group)
			if isExcluded(collapsed) {
				continue
			}
			specs = append(specs, GroupKeySpec{
				GroupColumns:     group,
				CollapsedColumns: collapsed,
			})
		}
	}
	return specs
}

// isExcluded drops the two degenerate rollups whose group key omits exactly
// the one column needed to disambiguate: collapsing counter_party alone or
// legal_entity alone.
func isExcluded(collapsed []Dimension) bool {
	if len(collapsed) != 1 {
		return false
	}
	return collapsed[0] == DimCounterParty || collapsed[0] == DimLegalEntity
}

// combinations returns all size-k subsets of dims, preserving dims order
// within each subset and generating subsets in lexicographic index order.
func combinations(dims []Dimension, k int) [][]Dimension {
	var result [][]Dimension
	var walk func(start int, current []Dimension)
	walk = func(start int, current []Dimension) {
		if len(current) == k {
			result = append(result, append([]Dimension(nil), current...))
			return
		}
		for i := start; i < len(dims); i++ {
			walk(i+1, append(current, dims[i]))
		}
	}
	walk(0, nil)
	return result
}

func complement(dims []Dimension, subset []Dimension) []Dimension {
	member := make(map[Dimension]struct{}, len(subset))
	for _, dim := range subset {
		member[dim] = struct{}{}
	}
	var rest []Dimension
	for _, dim := range dims {
		if _, ok := member[dim]; !ok {
			rest = append(rest, dim)
		}
	}
	return rest
}
