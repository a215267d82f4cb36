package model

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// PageOutcome describes what the crawl controller decided for a fetched page.
type PageOutcome string

const (
	// PageAccepted means the page yielded new items that were accumulated.
	PageAccepted PageOutcome = "accepted"

	// PageEmpty means the page yielded no items. This is the natural end of pagination.
	PageEmpty PageOutcome = "empty"

	// PageDuplicate means the page repeated the previous page's items.
	PageDuplicate PageOutcome = "duplicate"

	// PageFetchFailed means every fetch attempt for the page failed.
	PageFetchFailed PageOutcome = "fetch_failed"

	// PageExtractFailed means the page body could not be parsed.
	PageExtractFailed PageOutcome = "extract_failed"
)

// PageRecord is the log entry for one page attempt within a source crawl.
type PageRecord struct {
	// Index is the zero-based PageIndex of the attempt.
	Index int `json:"index"`

	// URL is the cursor URL that was requested.
	URL string `json:"url"`

	// ItemCount is the number of items extracted from the page.
	ItemCount int `json:"item_count"`

	// Fingerprint identifies the ordered item sequence of the page.
	// Two pages with the same fingerprint served the same items in the same order.
	Fingerprint string `json:"fingerprint,omitempty"`

	// LastItem is the last item on the page, kept for diagnostics.
	LastItem string `json:"last_item,omitempty"`

	// Attempts is the number of HTTP attempts made for the page.
	Attempts int `json:"attempts"`

	// Outcome is the controller's decision for the page.
	Outcome PageOutcome `json:"outcome"`
}

// Number returns the one-based page number used in log messages.
func (p PageRecord) Number() int {
	return p.Index + 1
}

// Fingerprint returns a stable SHA3-256 digest of an ordered item sequence.
// An empty sequence has an empty fingerprint.
func Fingerprint(items []string) string {
	if len(items) == 0 {
		return ""
	}
	// The unit separator never appears in product names, so joined
	// sequences cannot collide by shifting a boundary.
	sum := sha3.Sum256([]byte(strings.Join(items, "\x1f")))
	return hex.EncodeToString(sum[:])
}
