package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/catalogscan/internal/catalog"
	"github.com/nao1215/catalogscan/internal/model"
	"github.com/nao1215/catalogscan/internal/report"
)

// CrawlStep crawls every source of the run.
type CrawlStep struct {
	runner *SourceRunner
}

// NewCrawlStep creates a crawl step backed by runner.
func NewCrawlStep(runner *SourceRunner) *CrawlStep {
	return &CrawlStep{runner: runner}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do crawls all sources and stores their results in run.Results.
// Source failures are recorded per result and never fail the step.
func (s *CrawlStep) Do(ctx context.Context, run *model.Run) error {
	run.Results = s.runner.Run(ctx, run.Sources)
	return nil
}

// AggregateStep folds the source results into the global catalog.
type AggregateStep struct {
	logger *slog.Logger
}

// NewAggregateStep creates an aggregate step.
func NewAggregateStep(logger *slog.Logger) *AggregateStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &AggregateStep{logger: logger}
}

// Name returns the step name.
func (s *AggregateStep) Name() string {
	return "aggregate"
}

// Final reports that aggregation runs after cancellation.
func (s *AggregateStep) Final() bool {
	return true
}

// Do sets run.Catalog to the sorted, deduplicated union of all items.
func (s *AggregateStep) Do(_ context.Context, run *model.Run) error {
	lists := run.ItemLists()
	counts := catalog.Count(lists...)

	run.Catalog = catalog.Aggregate(lists...)
	run.TotalItems = counts.Total
	run.UniqueItems = len(run.Catalog)

	s.logger.Info("catalog aggregated",
		"total_items", counts.Total,
		"unique_items", run.UniqueItems,
		"failed_sources", run.FailedSources(),
	)
	return nil
}

// SinkStep writes the catalog CSV.
type SinkStep struct {
	path   string
	header string
	logger *slog.Logger
}

// NewSinkStep creates a sink step writing to path with the given CSV header.
func NewSinkStep(path, header string, logger *slog.Logger) *SinkStep {
	if header == "" {
		header = report.DefaultCSVHeader
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SinkStep{path: path, header: header, logger: logger}
}

// Name returns the step name.
func (s *SinkStep) Name() string {
	return "sink"
}

// Final reports that the sink runs after cancellation.
func (s *SinkStep) Final() bool {
	return true
}

// Do writes run.Catalog to the output file. An empty catalog is not
// written. Write failures are returned and fail the run.
func (s *SinkStep) Do(_ context.Context, run *model.Run) error {
	if len(run.Catalog) == 0 {
		s.logger.Warn("no products found, catalog not written", "file", s.path)
		return nil
	}

	if err := report.WriteCatalogFile(s.path, s.header, run.Catalog); err != nil {
		return err
	}

	run.OutputFile = s.path
	run.Written = true
	s.logger.Info("catalog written", "file", s.path, "products", len(run.Catalog))
	return nil
}

// HistoryStore persists finished runs. *database.HistoryDB satisfies it.
type HistoryStore interface {
	SaveRun(ctx context.Context, run *model.Run) (int64, error)
	NewProducts(ctx context.Context, runID int64) ([]string, error)
}

// HistoryStep records the run in the history database.
type HistoryStep struct {
	store  HistoryStore
	logger *slog.Logger
}

// NewHistoryStep creates a history step writing to store.
func NewHistoryStep(store HistoryStore, logger *slog.Logger) *HistoryStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryStep{store: store, logger: logger}
}

// Name returns the step name.
func (s *HistoryStep) Name() string {
	return "history"
}

// Final reports that history is recorded after cancellation.
func (s *HistoryStep) Final() bool {
	return true
}

// Do saves the run. History failures are logged and never fail the run.
func (s *HistoryStep) Do(ctx context.Context, run *model.Run) error {
	id, err := s.store.SaveRun(ctx, run)
	if err != nil {
		s.logger.Error("failed to record run history", "error", err)
		return nil
	}
	run.HistoryID = id

	added, err := s.store.NewProducts(ctx, id)
	if err != nil {
		s.logger.Warn("failed to query new products", "run", id, "error", err)
		return nil
	}
	s.logger.Info("run recorded", "run", id, "new_products", len(added))
	return nil
}

// ReportStep writes a run summary.
type ReportStep struct {
	writer report.Writer
}

// NewReportStep creates a report step using writer.
func NewReportStep(writer report.Writer) *ReportStep {
	return &ReportStep{writer: writer}
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Final reports that the summary is written after cancellation.
func (s *ReportStep) Final() bool {
	return true
}

// Do writes the summary of run.
func (s *ReportStep) Do(_ context.Context, run *model.Run) error {
	if _, err := s.writer.Write(run); err != nil {
		return fmt.Errorf("failed to write run summary: %w", err)
	}
	return nil
}
