package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/nao1215/catalogscan/internal/config"
	"github.com/nao1215/catalogscan/internal/crawler"
	"github.com/nao1215/catalogscan/internal/database"
	"github.com/nao1215/catalogscan/internal/extract"
	"github.com/nao1215/catalogscan/internal/fetcher"
	"github.com/nao1215/catalogscan/internal/log"
	"github.com/nao1215/catalogscan/internal/model"
	"github.com/nao1215/catalogscan/internal/pipeline"
	"github.com/nao1215/catalogscan/internal/report"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [source-url...]",
		Short: "Crawl catalog sources and write the product CSV",
		Long: `Crawl pages through every source URL, extracts product names from each
page, and writes the deduplicated, sorted catalog to a CSV file.

Sources are taken from the arguments, else from the "sources" list of the
configuration file, else from the built-in source list.

A source ends when a page has no products, when a page repeats the previous
page, when a page cannot be fetched after all retries, or when --max-pages
is reached. A failing source never stops the others.

Examples:
  # Crawl the built-in source list
  catalogscan crawl

  # Crawl specific listings into a custom file
  catalogscan crawl -o produtos.csv "https://shop.example.com/categoria/bebidas?count=60"

  # Crawl four sources at once, at most 2 requests per second overall
  catalogscan crawl --concurrency 4 --rate 2

  # Route requests through a local Tor SOCKS port
  catalogscan crawl --proxy socks5h://127.0.0.1:9050

  # Print the run summary as JSON
  catalogscan crawl --json

Configuration file (.catalogscan) example:
  output: data/produtos.csv
  defaults:
    selector: "h2.truncate-text"
  sources:
    - url: "https://shop.example.com/categoria/bebidas?count=60"
      maxPages: 20
    - url: "https://shop.example.com/colecao/19581"
      cookie: "region=sp"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Output flags
	cmd.Flags().StringP("output", "o", config.DefaultOutputFile,
		"CSV file the catalog is written to (directories are created)")
	cmd.Flags().String("header", config.DefaultCSVHeader,
		"Header field of the CSV")
	cmd.Flags().StringP("selector", "s", config.DefaultSelector,
		"CSS selector matching one product name per element")

	// Request flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().String("proxy", "",
		"Proxy URL for all requests (socks5://, socks5h://, http://, https://)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes (larger pages fail the source)")
	cmd.Flags().Float64("rate", 0,
		"Maximum requests per second across all sources (0 disables the limit)")

	// Pacing and retry flags
	cmd.Flags().Duration("page-delay", config.DefaultPageDelay,
		"Pause after each accepted page")
	cmd.Flags().Duration("source-delay", config.DefaultSourceDelay,
		"Pause between sources when crawling sequentially")
	cmd.Flags().IntP("retries", "r", config.DefaultMaxAttempts,
		"Fetch attempts per page (1 disables retries)")
	cmd.Flags().Duration("retry-backoff", config.DefaultRetryBackoff,
		"Wait before the first retry, doubled on each further retry")
	cmd.Flags().Duration("max-retry-backoff", config.DefaultMaxRetryBackoff,
		"Upper bound of the retry backoff")

	// Termination flags
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum pages per source (0 means unlimited)")
	cmd.Flags().String("duplicate-mode", config.DefaultDuplicateMode,
		`Duplicate page detection: "exact" or "overlap"`)
	cmd.Flags().Float64("duplicate-overlap", config.DefaultDuplicateOverlap,
		"Share of a page's products seen on the previous page that marks it a duplicate (overlap mode)")

	// Concurrency
	cmd.Flags().IntP("concurrency", "b", config.DefaultConcurrency,
		"Number of sources crawled at once")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .catalogscan in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Print the run summary as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Print the run summary as Markdown (mutually exclusive with --json)")
	cmd.Flags().String("report", "",
		"Write the run summary to this file instead of stdout")
	cmd.Flags().Bool("no-history", false,
		"Do not record the run in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory holding the history database")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.New(cmd.ErrOrStderr(), log.LevelFor(cfg.Verbose, cfg.Quiet), cfg.LogJSON)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout())
}

// buildConfig creates a Config from defaults, the config file and flags,
// in increasing order of precedence.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Sources = slices.Clone(args)

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicit path must exist; the default locations are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		f, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(f)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if len(cfg.Sources) == 0 {
		cfg.Sources = slices.Clone(config.DefaultSources)
	}

	flags := cmd.Flags()
	if err := errors.Join(
		changed(flags, "output", flags.GetString, &cfg.OutputFile),
		changed(flags, "header", flags.GetString, &cfg.CSVHeader),
		changed(flags, "selector", flags.GetString, &cfg.Selector),
		changed(flags, "timeout", flags.GetDuration, &cfg.Timeout),
		changed(flags, "proxy", flags.GetString, &cfg.ProxyURL),
		changed(flags, "user-agent", flags.GetString, &cfg.UserAgent),
		changed(flags, "max-body-size", flags.GetInt64, &cfg.MaxBodySize),
		changed(flags, "rate", flags.GetFloat64, &cfg.RequestsPerSecond),
		changed(flags, "page-delay", flags.GetDuration, &cfg.PageDelay),
		changed(flags, "source-delay", flags.GetDuration, &cfg.SourceDelay),
		changed(flags, "retries", flags.GetInt, &cfg.MaxAttempts),
		changed(flags, "retry-backoff", flags.GetDuration, &cfg.RetryBackoff),
		changed(flags, "max-retry-backoff", flags.GetDuration, &cfg.MaxRetryBackoff),
		changed(flags, "max-pages", flags.GetInt, &cfg.MaxPages),
		changed(flags, "duplicate-mode", flags.GetString, &cfg.DuplicateMode),
		changed(flags, "duplicate-overlap", flags.GetFloat64, &cfg.DuplicateOverlap),
		changed(flags, "concurrency", flags.GetInt, &cfg.Concurrency),
		changed(flags, "report", flags.GetString, &cfg.ReportFile),
		changed(flags, "db-dir", flags.GetString, &cfg.DBDir),
	); err != nil {
		return nil, err
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveHistory = !noHistory

	cfg.JSONReport, err = flags.GetBool("json")
	if err != nil {
		return nil, err
	}
	cfg.MarkdownReport, err = flags.GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.Quiet = getBoolFlag(cmd, "quiet")
	cfg.LogJSON = getBoolFlag(cmd, "log-json")

	return cfg, nil
}

// changed stores the flag value in dst only when the user set the flag,
// so config file values survive unset flags.
func changed[T any](flags *pflag.FlagSet, name string, get func(string) (T, error), dst *T) error {
	if !flags.Changed(name) {
		return nil
	}
	v, err := get(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// runCrawl crawls all sources of cfg and writes the catalog and summary.
// It returns an error when the sink fails or the run was interrupted.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	client, err := fetcher.NewHTTPClient(cfg.ProxyURL, cfg.Timeout)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	if cfg.ProxyURL != "" {
		if status := fetcher.CheckProxy(ctx, cfg.ProxyURL); status != fetcher.ProxyStatusOK {
			return fmt.Errorf("proxy check failed: %s (make sure the proxy is running): %w", status, status.Err())
		}
		logger.Info("proxy connection verified", "proxy", cfg.ProxyURL)
	}

	crawlers, err := buildCrawlers(cfg, client, logger)
	if err != nil {
		return err
	}

	runner := pipeline.NewSourceRunner(
		func(sourceURL string) pipeline.Crawler { return crawlers[sourceURL] },
		pipeline.WithRunnerLogger(logger),
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithSourceDelay(cfg.SourceDelay),
	)

	summary, closeSummary, err := openSummaryWriter(cfg, stdout)
	if err != nil {
		return err
	}
	defer closeSummary()

	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddSteps(
		pipeline.NewCrawlStep(runner),
		pipeline.NewAggregateStep(logger),
		pipeline.NewSinkStep(cfg.OutputFile, cfg.CSVHeader, logger),
	)

	if cfg.SaveHistory {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			logger.Warn("history disabled: failed to open database", "dir", cfg.DBDir, "error", err)
		} else {
			defer db.Close()
			p.AddStep(pipeline.NewHistoryStep(db, logger))
		}
	}

	p.AddStep(pipeline.NewReportStep(summary))
	logger.Debug("pipeline assembled", "steps", p.StepNames())

	run := model.NewRun(cfg.Sources)
	if err := p.Execute(ctx, run); err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("crawl interrupted: %w", err)
		}
		return err
	}
	return nil
}

// buildCrawlers creates one paginator per distinct source, applying the
// per-source selector, headers, cookie and page limit. Every paginator
// shares client and the request rate limiter.
func buildCrawlers(cfg *config.Config, client *http.Client, logger *slog.Logger) (map[string]pipeline.Crawler, error) {
	detector, err := crawler.NewDuplicateDetector(cfg.DuplicateMode, cfg.DuplicateOverlap)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	limiter := fetcher.NewLimiter(cfg.RequestsPerSecond)
	retry := crawler.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Base:        cfg.RetryBackoff,
		Max:         cfg.MaxRetryBackoff,
	}

	crawlers := make(map[string]pipeline.Crawler, len(cfg.Sources))
	for _, src := range cfg.Sources {
		if _, ok := crawlers[src]; ok {
			continue
		}
		sc := cfg.SourceConfig(src)

		ext, err := extract.NewSelectorExtractor(sc.Selector)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src, err)
		}

		crawlers[src] = crawler.NewPaginator(
			newSourceFetcher(cfg, sc, client, limiter),
			ext,
			crawler.WithLogger(logger),
			crawler.WithPageDelay(cfg.PageDelay),
			crawler.WithRetryPolicy(retry),
			crawler.WithDetector(detector),
			crawler.WithMaxPages(sc.MaxPages),
		)
	}
	return crawlers, nil
}

func newSourceFetcher(cfg *config.Config, sc config.SourceConfig, client *http.Client, limiter *rate.Limiter) *fetcher.Fetcher {
	opts := []fetcher.Option{
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithLimiter(limiter),
	}
	if len(sc.Headers) > 0 {
		opts = append(opts, fetcher.WithHeaders(sc.Headers))
	}
	if sc.Cookie != "" {
		opts = append(opts, fetcher.WithCookie(sc.Cookie))
	}
	return fetcher.New(client, opts...)
}

// openSummaryWriter returns the run summary writer selected by cfg and a
// function closing its output file.
func openSummaryWriter(cfg *config.Config, stdout io.Writer) (report.Writer, func(), error) {
	output := stdout
	closeFn := func() {}

	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, nil, fmt.Errorf("failed to create report directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // report path is chosen by the operator
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create report file: %w", err)
		}
		output = f
		closeFn = func() { _ = f.Close() } //nolint:errcheck // best effort after the report was written
	}

	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint()), closeFn, nil
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output), closeFn, nil
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose)), closeFn, nil
	}
}
