package domain

import "fmt"

// TotalMarker is the literal placed in collapsed dimension columns of
// singleton-grouping passes.
const TotalMarker = "Total"

// CellKind discriminates what a dimension column holds in an output row.
// The same output column carries actual values in one pass, the Total marker
// in another, and a distinct-value count in a third; the kind keeps those
// meanings apart in code even though they share a column name on the wire.
type CellKind int

const (
	// CellValue holds the actual grouping value of a dimension.
	CellValue CellKind = iota
	// CellTotal marks a dimension collapsed to the Total placeholder.
	CellTotal
	// CellCount holds the number of distinct values a collapsed dimension
	// took inside the group.
	CellCount
	// CellNull marks a dimension value absent on one side of the outer join.
	CellNull
)

// DimensionCell is one dimension column of an aggregated row.
type DimensionCell struct {
	kind  CellKind
	value any
}

// ValueCell wraps an actual grouping value.
func ValueCell(value any) DimensionCell {
	return DimensionCell{kind: CellValue, value: value}
}

// TotalCell returns the collapsed Total placeholder.
func TotalCell() DimensionCell {
	return DimensionCell{kind: CellTotal}
}

// CountCell wraps a distinct-value count.
func CountCell(n int64) DimensionCell {
	return DimensionCell{kind: CellCount, value: n}
}

// NullCell marks a missing dimension value.
func NullCell() DimensionCell {
	return DimensionCell{kind: CellNull}
}

// Kind reports what the cell holds.
func (c DimensionCell) Kind() CellKind {
	return c.kind
}

// IsTotal reports whether the cell is the Total placeholder.
func (c DimensionCell) IsTotal() bool {
	return c.kind == CellTotal
}

// Value returns the native cell value as stored in output relations:
// the grouping value itself, the Total marker string, an int64 count,
// or nil for a null cell.
func (c DimensionCell) Value() any {
	switch c.kind {
	case CellTotal:
		return TotalMarker
	case CellNull:
		return nil
	default:
		return c.value
	}
}

// String renders the cell the way the CSV output does; null renders empty.
func (c DimensionCell) String() string {
	switch c.kind {
	case CellTotal:
		return TotalMarker
	case CellNull:
		return ""
	default:
		return fmt.Sprintf("%v", c.value)
	}
}
