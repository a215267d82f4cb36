package model

import "time"

// Run is one invocation of the crawler over the configured source list.
// Pipeline steps fill it in order: crawl, aggregate, sink, history.
type Run struct {
	// Sources is the ordered source URL list.
	Sources []string `json:"sources"`

	// Results holds one SourceResult per source, in source order.
	// A nil entry means the source was never crawled (e.g. cancellation).
	Results []*SourceResult `json:"results"`

	// Catalog is the deduplicated, sorted union of all items.
	Catalog []string `json:"-"`

	// TotalItems is the number of items before deduplication.
	TotalItems int `json:"total_items"`

	// UniqueItems is len(Catalog), kept for serialization.
	UniqueItems int `json:"unique_items"`

	// OutputFile is the path the catalog was written to.
	OutputFile string `json:"output_file,omitempty"`

	// Written reports whether the sink wrote the output file.
	Written bool `json:"written"`

	// HistoryID is the history database row ID, zero if not recorded.
	HistoryID int64 `json:"history_id,omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the last step completed.
	FinishedAt time.Time `json:"finished_at"`

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps"`

	// Error is the error that stopped the pipeline, if any.
	Error error `json:"-"`

	// ErrorMessage is the text of Error.
	ErrorMessage string `json:"error,omitempty"`
}

// NewRun creates a Run for the given sources.
func NewRun(sources []string) *Run {
	return &Run{
		Sources:        sources,
		Results:        make([]*SourceResult, len(sources)),
		Catalog:        make([]string, 0),
		StartedAt:      time.Now(),
		PerformedSteps: make([]string, 0),
	}
}

// ItemLists returns the accumulated item sequences of all crawled sources
// in source order, skipping sources that were never crawled.
func (r *Run) ItemLists() [][]string {
	lists := make([][]string, 0, len(r.Results))
	for _, res := range r.Results {
		if res == nil {
			continue
		}
		lists = append(lists, res.Items)
	}
	return lists
}

// FailedSources returns the number of sources whose crawl ended in error.
func (r *Run) FailedSources() int {
	n := 0
	for _, res := range r.Results {
		if res != nil && res.Failed() {
			n++
		}
	}
	return n
}

// Elapsed returns the run duration, or zero if the run has not finished.
func (r *Run) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
