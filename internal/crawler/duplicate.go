package crawler

import (
	"errors"
	"fmt"
	"slices"
)

// Duplicate detection modes accepted by NewDuplicateDetector.
const (
	DuplicateModeExact   = "exact"
	DuplicateModeOverlap = "overlap"
)

var (
	// ErrUnknownDuplicateMode is returned for a mode other than exact or overlap.
	ErrUnknownDuplicateMode = errors.New("unknown duplicate detection mode")

	// ErrInvalidOverlapRatio is returned for an overlap ratio outside (0, 1].
	ErrInvalidOverlapRatio = errors.New("overlap ratio must be in (0, 1]")
)

// DuplicateDetector decides whether the current page repeats the previous
// one, meaning the site stopped advancing and keeps re-serving a page.
// Implementations compare snapshots and must not modify them.
type DuplicateDetector interface {
	IsDuplicate(previous, current []string) bool
}

// ExactMatch treats a page as duplicate when it lists exactly the same items
// in the same order as the previous page.
//
// Two genuinely different consecutive pages that happen to be identical
// would end the crawl early; catalogs are not expected to do that.
type ExactMatch struct{}

// IsDuplicate implements DuplicateDetector.
func (ExactMatch) IsDuplicate(previous, current []string) bool {
	return len(previous) > 0 && slices.Equal(previous, current)
}

// OverlapThreshold treats a page as duplicate when at least Ratio of its
// items also appeared on the previous page, ignoring order. It catches sites
// that re-serve the last page with shuffled or slightly changed listings.
type OverlapThreshold struct {
	Ratio float64
}

// IsDuplicate implements DuplicateDetector.
func (o OverlapThreshold) IsDuplicate(previous, current []string) bool {
	if len(previous) == 0 || len(current) == 0 {
		return false
	}

	seen := make(map[string]struct{}, len(previous))
	for _, item := range previous {
		seen[item] = struct{}{}
	}

	matched := 0
	for _, item := range current {
		if _, ok := seen[item]; ok {
			matched++
		}
	}
	return float64(matched)/float64(len(current)) >= o.Ratio
}

// NewDuplicateDetector returns the detector for mode. ratio is only used
// in overlap mode.
func NewDuplicateDetector(mode string, ratio float64) (DuplicateDetector, error) {
	switch mode {
	case "", DuplicateModeExact:
		return ExactMatch{}, nil
	case DuplicateModeOverlap:
		if ratio <= 0 || ratio > 1 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOverlapRatio, ratio)
		}
		return OverlapThreshold{Ratio: ratio}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDuplicateMode, mode)
	}
}
