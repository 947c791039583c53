package rollup

import (
	"reflect"
	"testing"
)

func TestEnumerateKeysFixedPoint(t *testing.T) {
	specs := EnumerateKeys(Dimensions())

	expected := []GroupKeySpec{
		{
			GroupColumns:     []Dimension{DimLegalEntity},
			CollapsedColumns: []Dimension{DimCounterParty, DimTier},
		},
		{
			GroupColumns:     []Dimension{DimCounterParty},
			CollapsedColumns: []Dimension{DimLegalEntity, DimTier},
		},
		{
			GroupColumns:     []Dimension{DimTier},
			CollapsedColumns: []Dimension{DimLegalEntity, DimCounterParty},
		},
		{
			GroupColumns:     []Dimension{DimLegalEntity, DimCounterParty},
			CollapsedColumns: []Dimension{DimTier},
		},
	}

	if len(specs) != len(expected) {
		t.Fatalf("expected %d specs, got %d: %+v", len(expected), len(specs), specs)
	}
	for i, spec := range expected {
		if !reflect.DeepEqual(specs[i], spec) {
			t.Errorf("spec %d mismatch: expected %+v got %+v", i, spec, specs[i])
		}
	}
}

func TestEnumerateKeysDeterministic(t *testing.T) {
	first := EnumerateKeys(Dimensions())
	for i := 0; i < 10; i++ {
		again := EnumerateKeys(Dimensions())
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("enumeration differs between calls: %+v vs %+v", first, again)
		}
	}
}

func TestEnumerateKeysInvariants(t *testing.T) {
	dims := Dimensions()
	for _, spec := range EnumerateKeys(dims) {
		if len(spec.GroupColumns) == 0 || len(spec.GroupColumns) >= len(dims) {
			t.Errorf("group columns must be a non-empty proper subset, got %+v", spec.GroupColumns)
		}
		if len(spec.GroupColumns)+len(spec.CollapsedColumns) != len(dims) {
			t.Errorf("group and collapsed columns must partition the dimensions: %+v", spec)
		}
		member := make(map[Dimension]struct{})
		for _, dim := range append(append([]Dimension(nil), spec.GroupColumns...), spec.CollapsedColumns...) {
			if _, ok := member[dim]; ok {
				t.Errorf("dimension %s appears twice in %+v", dim, spec)
			}
			member[dim] = struct{}{}
		}
	}
}

func TestIsExcluded(t *testing.T) {
	cases := []struct {
		name      string
		collapsed []Dimension
		excluded  bool
	}{
		{"counter_party alone", []Dimension{DimCounterParty}, true},
		{"legal_entity alone", []Dimension{DimLegalEntity}, true},
		{"tier alone", []Dimension{DimTier}, false},
		{"two collapsed", []Dimension{DimCounterParty, DimTier}, false},
		{"other pair", []Dimension{DimLegalEntity, DimTier}, false},
	}
	for _, tc := range cases {
		if got := isExcluded(tc.collapsed); got != tc.excluded {
			t.Errorf("%s: expected excluded=%v got %v", tc.name, tc.excluded, got)
		}
	}
}
