package model

import "time"

// StopReason records why a source crawl reached its terminal state.
type StopReason string

const (
	// StopEmptyPage means a page yielded no items.
	StopEmptyPage StopReason = "empty_page"

	// StopDuplicatePage means a page repeated the previous page.
	StopDuplicatePage StopReason = "duplicate_page"

	// StopFetchFailed means a page could not be fetched after all retries.
	StopFetchFailed StopReason = "fetch_failed"

	// StopExtractFailed means a page body could not be parsed.
	StopExtractFailed StopReason = "extract_failed"

	// StopMaxPages means the configured page limit was reached.
	StopMaxPages StopReason = "max_pages"

	// StopCancelled means the context was cancelled mid-crawl.
	StopCancelled StopReason = "cancelled"
)

// IsFailure reports whether the crawl ended because of an error rather
// than a natural termination signal.
func (r StopReason) IsFailure() bool {
	switch r {
	case StopFetchFailed, StopExtractFailed, StopCancelled:
		return true
	default:
		return false
	}
}

// SourceResult is the outcome of crawling a single source URL.
// It is produced by the crawl controller and is not modified afterwards.
type SourceResult struct {
	// SourceURL is the catalog endpoint that was crawled.
	SourceURL string `json:"source_url"`

	// Items are the accumulated item names in page order.
	// Names repeated across pages of the same source are kept here;
	// deduplication happens during aggregation.
	Items []string `json:"items"`

	// Pages logs every page attempt, including the terminating one.
	Pages []PageRecord `json:"pages"`

	// Fetches is the number of pages fetched (one per PageIndex attempted).
	Fetches int `json:"fetches"`

	// Attempts is the number of HTTP requests made, including retries.
	Attempts int `json:"attempts"`

	// StopReason is why the crawl ended.
	StopReason StopReason `json:"stop_reason"`

	// Error is the error that ended the crawl, if any.
	// Not serialized; ErrorMessage carries the text.
	Error error `json:"-"`

	// ErrorMessage is the text of Error.
	ErrorMessage string `json:"error,omitempty"`

	// StartedAt is when the crawl started.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the crawl took, including rate-limit delays.
	Duration time.Duration `json:"duration"`
}

// NewSourceResult creates an empty result for the given source.
func NewSourceResult(sourceURL string) *SourceResult {
	return &SourceResult{
		SourceURL: sourceURL,
		Items:     make([]string, 0),
		Pages:     make([]PageRecord, 0),
		StartedAt: time.Now(),
	}
}

// AcceptedPages returns how many pages contributed items.
func (r *SourceResult) AcceptedPages() int {
	n := 0
	for _, p := range r.Pages {
		if p.Outcome == PageAccepted {
			n++
		}
	}
	return n
}

// Failed reports whether the crawl ended with an error.
func (r *SourceResult) Failed() bool {
	return r.StopReason.IsFailure()
}

// SetError records the terminating error.
func (r *SourceResult) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}
