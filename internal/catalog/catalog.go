package catalog

import "slices"

// Aggregate returns the union of all item lists as a new, ascending,
// duplicate-free slice. Names are compared byte for byte; no case folding
// or whitespace normalization is applied. The inputs are not modified.
func Aggregate(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, list := range lists {
		for _, item := range list {
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			out = append(out, item)
		}
	}
	slices.Sort(out)
	return out
}

// Counts summarizes an aggregation.
type Counts struct {
	// Total is the number of items across all lists, repeats included.
	Total int

	// Unique is the number of distinct items.
	Unique int
}

// Duplicates returns how many items were dropped as repeats.
func (c Counts) Duplicates() int {
	return c.Total - c.Unique
}

// Count returns the total and distinct item counts over all lists.
func Count(lists ...[]string) Counts {
	seen := make(map[string]struct{})
	total := 0
	for _, list := range lists {
		total += len(list)
		for _, item := range list {
			seen[item] = struct{}{}
		}
	}
	return Counts{Total: total, Unique: len(seen)}
}
