package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/catalogscan/internal/crawler"
	"github.com/nao1215/catalogscan/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultSourceDelay is the pause between two sources crawled sequentially.
const DefaultSourceDelay = 2 * time.Second

// Crawler crawls a single source. *crawler.Paginator satisfies it.
type Crawler interface {
	Crawl(ctx context.Context, sourceURL string) *model.SourceResult
}

// CrawlerFactory returns the crawler for a source, allowing per-source
// selectors, headers and page limits.
type CrawlerFactory func(sourceURL string) Crawler

// SourceRunner crawls a list of sources and collects their results in
// source order.
type SourceRunner struct {
	factory CrawlerFactory

	// concurrency is the maximum number of sources crawled at once.
	// 1 means sequential with sourceDelay between sources.
	concurrency int

	// sourceDelay is the pause between sequential sources.
	sourceDelay time.Duration

	sleeper crawler.Sleeper
	logger  *slog.Logger
}

// RunnerOption configures a SourceRunner.
type RunnerOption func(*SourceRunner)

// WithRunnerLogger sets a custom logger for source-level logging.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *SourceRunner) {
		r.logger = logger
	}
}

// WithConcurrency sets the maximum number of sources crawled at once.
// Values below one are ignored.
func WithConcurrency(n int) RunnerOption {
	return func(r *SourceRunner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithSourceDelay sets the pause between sequentially crawled sources.
func WithSourceDelay(d time.Duration) RunnerOption {
	return func(r *SourceRunner) {
		r.sourceDelay = d
	}
}

// WithRunnerSleeper replaces the wall-clock sleeper used for the source delay.
func WithRunnerSleeper(s crawler.Sleeper) RunnerOption {
	return func(r *SourceRunner) {
		if s != nil {
			r.sleeper = s
		}
	}
}

// NewSourceRunner creates a SourceRunner using factory to obtain a crawler
// per source.
func NewSourceRunner(factory CrawlerFactory, opts ...RunnerOption) *SourceRunner {
	r := &SourceRunner{
		factory:     factory,
		concurrency: 1,
		sourceDelay: DefaultSourceDelay,
		sleeper:     crawler.TimerSleeper{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Run crawls all sources and returns one result per source, in source order.
// A failing source never stops the others. Sources not started before ctx
// was cancelled have a nil result.
func (r *SourceRunner) Run(ctx context.Context, sources []string) []*model.SourceResult {
	r.logger.Info("starting crawl",
		"sources", len(sources),
		"concurrency", r.concurrency,
	)
	start := time.Now()

	var results []*model.SourceResult
	if r.concurrency <= 1 {
		results = r.runSequential(ctx, sources)
	} else {
		results = r.runConcurrent(ctx, sources)
	}

	r.logger.Info("crawl complete",
		"sources", len(sources),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return results
}

func (r *SourceRunner) runSequential(ctx context.Context, sources []string) []*model.SourceResult {
	results := make([]*model.SourceResult, len(sources))

	for i, src := range sources {
		if i > 0 {
			if err := r.sleeper.Sleep(ctx, r.sourceDelay); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		r.logger.Info("crawling source", "source", src, "index", i+1, "total", len(sources))
		results[i] = r.factory(src).Crawl(ctx, src)
	}
	return results
}

func (r *SourceRunner) runConcurrent(ctx context.Context, sources []string) []*model.SourceResult {
	results := make([]*model.SourceResult, len(sources))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for i, src := range sources {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			r.logger.Info("crawling source", "source", src, "index", i+1, "total", len(sources))
			res := r.factory(src).Crawl(ctx, src)

			mu.Lock()
			results[i] = res
			mu.Unlock()

			// Source failures are recorded in the result, never returned.
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	return results
}
