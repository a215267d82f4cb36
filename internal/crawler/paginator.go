package crawler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/catalogscan/internal/extract"
	"github.com/nao1215/catalogscan/internal/log"
	"github.com/nao1215/catalogscan/internal/model"
)

// DefaultPageDelay is the pause after every accepted page.
const DefaultPageDelay = 1 * time.Second

// PageFetcher retrieves the body of one page. *fetcher.Fetcher satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// Paginator crawls one catalog source page by page until the site runs out
// of items, repeats itself, or fails.
//
// A Paginator holds no per-crawl state and may run several Crawl calls
// concurrently as long as its fetcher and extractor allow it.
type Paginator struct {
	fetcher   PageFetcher
	extractor extract.Extractor

	// detector recognizes a page that repeats the previous one.
	detector DuplicateDetector

	// retry controls fetch attempts per page.
	retry RetryPolicy

	// sleeper implements the page delay and retry backoff.
	sleeper Sleeper

	// pageDelay is the pause after each accepted page.
	pageDelay time.Duration

	// maxPages stops the crawl before fetching page index maxPages.
	// 0 means unlimited.
	maxPages int

	logger *slog.Logger
}

// PaginatorOption configures a Paginator.
type PaginatorOption func(*Paginator)

// WithLogger sets the logger used for progress messages.
func WithLogger(logger *slog.Logger) PaginatorOption {
	return func(p *Paginator) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPageDelay sets the pause after each accepted page.
func WithPageDelay(d time.Duration) PaginatorOption {
	return func(p *Paginator) {
		p.pageDelay = d
	}
}

// WithRetryPolicy sets the fetch retry policy.
func WithRetryPolicy(policy RetryPolicy) PaginatorOption {
	return func(p *Paginator) {
		p.retry = policy
	}
}

// WithSleeper replaces the wall-clock sleeper, typically with NoDelay in tests.
func WithSleeper(s Sleeper) PaginatorOption {
	return func(p *Paginator) {
		if s != nil {
			p.sleeper = s
		}
	}
}

// WithDetector sets the duplicate page detector.
func WithDetector(d DuplicateDetector) PaginatorOption {
	return func(p *Paginator) {
		if d != nil {
			p.detector = d
		}
	}
}

// WithMaxPages limits the number of pages fetched per source. 0 means unlimited.
func WithMaxPages(n int) PaginatorOption {
	return func(p *Paginator) {
		p.maxPages = n
	}
}

// NewPaginator creates a Paginator that fetches with f and extracts with e.
func NewPaginator(f PageFetcher, e extract.Extractor, opts ...PaginatorOption) *Paginator {
	p := &Paginator{
		fetcher:   f,
		extractor: e,
		detector:  ExactMatch{},
		retry:     DefaultRetryPolicy(),
		sleeper:   TimerSleeper{},
		pageDelay: DefaultPageDelay,
		logger:    log.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// crawlState is the controller state for one source.
type crawlState struct {
	pageIndex   int
	previous    []string
	accumulated []string
}

// Crawl walks the pages of sourceURL and returns the accumulated items.
//
// For every page the rules apply in order: a fetch that fails after all
// attempts stops with StopFetchFailed, an unparsable body with
// StopExtractFailed, a page without items with StopEmptyPage, and a page
// repeating the previous one with StopDuplicatePage. Otherwise the items are
// appended and the crawl moves to the next page after the page delay.
//
// Crawl never returns an error: failures end the source and are recorded in
// the result, keeping everything accumulated before them.
func (p *Paginator) Crawl(ctx context.Context, sourceURL string) *model.SourceResult {
	result := model.NewSourceResult(sourceURL)
	logger := p.logger.With("source", sourceURL)
	state := crawlState{accumulated: make([]string, 0)}

	reason, err := p.run(ctx, logger, result, &state)

	result.Items = state.accumulated
	result.StopReason = reason
	result.SetError(err)
	result.Duration = time.Since(result.StartedAt)

	attrs := []any{
		"items", len(result.Items),
		"pages", result.AcceptedPages(),
		"fetches", result.Fetches,
		"stop_reason", string(reason),
	}
	if reason.IsFailure() {
		logger.Warn("source finished with error", append(attrs, "error", err)...)
	} else {
		logger.Info("source finished", attrs...)
	}
	return result
}

func (p *Paginator) run(ctx context.Context, logger *slog.Logger, result *model.SourceResult, state *crawlState) (model.StopReason, error) {
	for {
		if err := ctx.Err(); err != nil {
			return model.StopCancelled, err
		}
		if p.maxPages > 0 && state.pageIndex >= p.maxPages {
			logger.Info("page limit reached", "max_pages", p.maxPages)
			return model.StopMaxPages, nil
		}

		pageURL := BuildURL(result.SourceURL, state.pageIndex)
		record := model.PageRecord{Index: state.pageIndex, URL: pageURL}

		body, attempts, err := p.fetchWithRetry(ctx, logger, pageURL)
		record.Attempts = attempts
		result.Fetches++
		result.Attempts += attempts
		if err != nil {
			record.Outcome = model.PageFetchFailed
			result.Pages = append(result.Pages, record)
			if errors.Is(err, context.Canceled) {
				return model.StopCancelled, err
			}
			logger.Error("failed to fetch page", "page", record.Number(), "url", pageURL, "attempts", attempts, "error", err)
			return model.StopFetchFailed, err
		}

		items, err := p.extractor.Extract(body)
		if err != nil {
			record.Outcome = model.PageExtractFailed
			result.Pages = append(result.Pages, record)
			logger.Error("failed to extract items", "page", record.Number(), "url", pageURL, "error", err)
			return model.StopExtractFailed, err
		}

		record.ItemCount = len(items)
		record.Fingerprint = model.Fingerprint(items)

		if len(items) == 0 {
			record.Outcome = model.PageEmpty
			result.Pages = append(result.Pages, record)
			logger.Info("no items found, end of pagination", "page", record.Number())
			return model.StopEmptyPage, nil
		}

		record.LastItem = items[len(items)-1]

		if p.detector.IsDuplicate(state.previous, items) {
			record.Outcome = model.PageDuplicate
			result.Pages = append(result.Pages, record)
			logger.Info("duplicate page detected, stopping", "page", record.Number(), "items", len(items))
			return model.StopDuplicatePage, nil
		}

		record.Outcome = model.PageAccepted
		result.Pages = append(result.Pages, record)
		state.accumulated = append(state.accumulated, items...)
		logger.Info("page processed", "page", record.Number(), "items", len(items))
		logger.Debug("last item on page", "page", record.Number(), "last_item", record.LastItem)

		state.previous = items
		state.pageIndex++

		if err := p.sleeper.Sleep(ctx, p.pageDelay); err != nil {
			return model.StopCancelled, err
		}
	}
}

// fetchWithRetry fetches pageURL, retrying per the retry policy. It returns
// the number of attempts made.
func (p *Paginator) fetchWithRetry(ctx context.Context, logger *slog.Logger, pageURL string) (string, int, error) {
	maxAttempts := p.retry.Attempts()

	for attempt := 1; ; attempt++ {
		body, err := p.fetcher.Fetch(ctx, pageURL)
		if err == nil {
			return body, attempt, nil
		}
		if attempt >= maxAttempts || !retryable(ctx, err) {
			return "", attempt, err
		}

		wait := p.retry.Backoff(attempt)
		logger.Warn("fetch failed, retrying",
			"url", pageURL,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"backoff", wait,
			"error", err,
		)
		if serr := p.sleeper.Sleep(ctx, wait); serr != nil {
			return "", attempt, serr
		}
	}
}
