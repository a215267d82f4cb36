package catalog

import (
	"slices"
	"testing"
)

func TestAggregate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		lists [][]string
		want  []string
	}{
		{
			name:  "overlapping sources",
			lists: [][]string{{"Milk", "Bread"}, {"Bread", "Juice"}},
			want:  []string{"Bread", "Juice", "Milk"},
		},
		{
			name:  "repeats within one source",
			lists: [][]string{{"Milk", "Milk", "Eggs"}},
			want:  []string{"Eggs", "Milk"},
		},
		{
			name:  "case and accents are distinct",
			lists: [][]string{{"café", "Café", "cafe"}},
			want:  []string{"Café", "cafe", "café"},
		},
		{
			name:  "empty and nil lists",
			lists: [][]string{nil, {}, {"Eggs"}},
			want:  []string{"Eggs"},
		},
		{
			name:  "no lists",
			lists: nil,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Aggregate(tt.lists...)
			if got == nil {
				t.Fatal("Aggregate() returned nil")
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Aggregate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAggregate_Properties(t *testing.T) {
	t.Parallel()

	lists := [][]string{
		{"Sabão em Pó 1kg", "Detergente 500ml", "Amaciante 2L"},
		{"Amaciante 2L", "Água Sanitária 1L"},
		{"Detergente 500ml", "Esponja", "Esponja"},
	}
	input := make([][]string, len(lists))
	for i, l := range lists {
		input[i] = slices.Clone(l)
	}

	first := Aggregate(input...)
	second := Aggregate(input...)

	if !slices.Equal(first, second) {
		t.Errorf("Aggregate is not deterministic: %q vs %q", first, second)
	}
	if !slices.IsSorted(first) {
		t.Errorf("Aggregate() = %q is not sorted", first)
	}
	if len(slices.Compact(slices.Clone(first))) != len(first) {
		t.Errorf("Aggregate() = %q contains duplicates", first)
	}
	for i := range lists {
		if !slices.Equal(input[i], lists[i]) {
			t.Errorf("input %d was modified: %q", i, input[i])
		}
	}
	// Aggregating the catalog again is a no-op.
	if again := Aggregate(first); !slices.Equal(again, first) {
		t.Errorf("Aggregate(Aggregate(x)) = %q, want %q", again, first)
	}
}

func TestCount(t *testing.T) {
	t.Parallel()

	c := Count([]string{"Milk", "Bread"}, []string{"Bread", "Juice"}, nil)
	if c.Total != 4 || c.Unique != 3 {
		t.Errorf("Count() = %+v, want Total 4 Unique 3", c)
	}
	if c.Duplicates() != 1 {
		t.Errorf("Duplicates() = %d, want 1", c.Duplicates())
	}

	if empty := Count(); empty.Total != 0 || empty.Unique != 0 {
		t.Errorf("Count() on nothing = %+v", empty)
	}
}
