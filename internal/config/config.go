package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// Timing values mirror what the catalog crawler has been observed to
// need against the live site without tripping its rate limits.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "catalogscan"

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 15 * time.Second

	// DefaultPageDelay is the pause after each accepted page of a source.
	DefaultPageDelay = 1 * time.Second

	// DefaultSourceDelay is the pause between two sources in sequential mode.
	DefaultSourceDelay = 2 * time.Second

	// DefaultMaxAttempts is the number of fetch attempts per page.
	// 1 disables retries.
	DefaultMaxAttempts = 3

	// DefaultRetryBackoff is the wait before the first retry. Later retries
	// double it up to DefaultMaxRetryBackoff.
	DefaultRetryBackoff = 1 * time.Second

	// DefaultMaxRetryBackoff caps the exponential retry backoff.
	DefaultMaxRetryBackoff = 30 * time.Second

	// DefaultMaxPages is the page limit per source. 0 means unlimited;
	// empty and duplicate page detection end the crawl.
	DefaultMaxPages = 0

	// DefaultConcurrency is the number of sources crawled at once.
	// Sources are crawled one after another unless this is raised.
	DefaultConcurrency = 1

	// DefaultMaxBodySize limits the response body size read per page.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultUserAgent is a realistic desktop browser identification.
	// The catalog serves reduced markup to unknown clients.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// DefaultSelector matches the product name headings on catalog pages.
	DefaultSelector = "h2.truncate-text"

	// DefaultOutputFile is where the product catalog CSV is written.
	DefaultOutputFile = "data/produtos_carrefour.csv"

	// DefaultCSVHeader is the single header field of the output CSV.
	DefaultCSVHeader = "Nome do Produto"

	// DuplicateModeExact stops a crawl when a page repeats the previous one exactly.
	DuplicateModeExact = "exact"

	// DuplicateModeOverlap stops a crawl when enough of a page's items
	// appeared on the previous page.
	DuplicateModeOverlap = "overlap"

	// DefaultDuplicateMode is the duplicate page detection mode.
	DefaultDuplicateMode = DuplicateModeExact

	// DefaultDuplicateOverlap is the overlap ratio used in overlap mode.
	DefaultDuplicateOverlap = 1.0
)

// DefaultSources is the built-in list of catalog collections crawled when
// neither arguments nor a config file name any source.
// Listing 60 items per page keeps the query shape simple.
var DefaultSources = []string{
	"https://mercado.carrefour.com.br/colecao/24391/score-desc/0?map=productClusterIds&count=60",
	"https://mercado.carrefour.com.br/categoria/bebidas?count=60",
	"https://mercado.carrefour.com.br/categoria/congelados?category-1=congelados&category-2=pratos-prontos&sellername=carrefour&facets=category-1%2Ccategory-2%2Csellername&sort=orders_desc&page=0&count=60",
	"https://mercado.carrefour.com.br/colecao/11336?productClusterIds=11336&facets=productClusterIds&count=60",
	"https://mercado.carrefour.com.br/categoria/higiene-e-perfumaria?count=60",
	"https://mercado.carrefour.com.br/colecao/24365/score-desc/0?map=productClusterIds&count=60",
	"https://mercado.carrefour.com.br/categoria/bebe-e-infantil?count=60",
	"https://mercado.carrefour.com.br/colecao/19581/score-desc/0?map=productClusterIds&count=60",
	"https://mercado.carrefour.com.br/colecao/19582/score-desc/0?map=productClusterIds%2Csort%2Cpage&count=60",
	"https://mercado.carrefour.com.br/colecao/19583/score-desc/0?map=productClusterIds%2Csort%2Cpage&count=60",
	"https://mercado.carrefour.com.br/colecao/19584/score-desc/0?map=productClusterIds%2Csort%2Cpage&count=60",
	"https://mercado.carrefour.com.br/colecao/19585/score-desc/0?map=productClusterIds%2Csort%2Cpage&count=60",
	"https://mercado.carrefour.com.br/colecao/25532/score-desc/0?map=productClusterIds%2Csort%2Cpage&count=60",
}

// Config holds all configuration options for a crawl run.
// It is populated from defaults, the optional config file and CLI flags,
// in that order, and passed down explicitly rather than held globally.
type Config struct {
	// Sources is the ordered list of catalog URLs to crawl.
	Sources []string

	// ConfigFilePath is the path to the YAML configuration file.
	// If empty, FindConfigFile searches the default locations.
	ConfigFilePath string

	// File holds the loaded configuration file, if any.
	// Per-source overrides are resolved from it.
	File *File

	// OutputFile is the CSV path for the product catalog.
	OutputFile string

	// CSVHeader is the single header field written to the CSV.
	CSVHeader string

	// Selector is the CSS selector matching one product name per element.
	Selector string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// PageDelay is the pause after each accepted page.
	PageDelay time.Duration

	// SourceDelay is the pause between sources in sequential mode.
	SourceDelay time.Duration

	// MaxAttempts is the number of fetch attempts per page.
	MaxAttempts int

	// RetryBackoff is the wait before the first retry.
	RetryBackoff time.Duration

	// MaxRetryBackoff caps the exponential retry backoff.
	MaxRetryBackoff time.Duration

	// MaxPages limits pages per source. 0 means unlimited.
	MaxPages int

	// Concurrency is the number of sources crawled at the same time.
	// Pages of a single source are always fetched in order.
	Concurrency int

	// RequestsPerSecond caps requests across all sources. 0 disables the limit.
	RequestsPerSecond float64

	// ProxyURL routes requests through a proxy (socks5://, http://, https://).
	// Empty means direct connections (or the environment proxy).
	ProxyURL string

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// DuplicateMode selects the duplicate page detector ("exact" or "overlap").
	DuplicateMode string

	// DuplicateOverlap is the overlap ratio used in overlap mode.
	DuplicateOverlap float64

	// Verbose enables debug logging.
	Verbose bool

	// Quiet restricts logging to warnings and errors.
	Quiet bool

	// LogJSON switches log output to JSON lines.
	LogJSON bool

	// JSONReport prints the run summary as JSON.
	JSONReport bool

	// MarkdownReport prints the run summary as Markdown.
	MarkdownReport bool

	// ReportFile writes the run summary to a file instead of stdout.
	ReportFile string

	// SaveHistory records the run in the history database.
	SaveHistory bool

	// DBDir is the directory holding the history database.
	DBDir string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		OutputFile:       DefaultOutputFile,
		CSVHeader:        DefaultCSVHeader,
		Selector:         DefaultSelector,
		Timeout:          DefaultTimeout,
		PageDelay:        DefaultPageDelay,
		SourceDelay:      DefaultSourceDelay,
		MaxAttempts:      DefaultMaxAttempts,
		RetryBackoff:     DefaultRetryBackoff,
		MaxRetryBackoff:  DefaultMaxRetryBackoff,
		MaxPages:         DefaultMaxPages,
		Concurrency:      DefaultConcurrency,
		UserAgent:        DefaultUserAgent,
		MaxBodySize:      DefaultMaxBodySize,
		DuplicateMode:    DefaultDuplicateMode,
		DuplicateOverlap: DefaultDuplicateOverlap,
		SaveHistory:      true,
		DBDir:            XDGDataDir(),
	}
}

// ApplyFile copies the non-zero global settings of a config file into c
// and stores the file for per-source resolution. CLI flags are applied
// afterwards so they take precedence.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	c.File = f

	if f.Output != "" {
		c.OutputFile = f.Output
	}
	if f.Header != "" {
		c.CSVHeader = f.Header
	}
	if f.Defaults.Selector != "" {
		c.Selector = f.Defaults.Selector
	}
	if f.Timeout > 0 {
		c.Timeout = f.Timeout
	}
	if f.PageDelay != nil {
		c.PageDelay = *f.PageDelay
	}
	if f.SourceDelay != nil {
		c.SourceDelay = *f.SourceDelay
	}
	if f.MaxAttempts > 0 {
		c.MaxAttempts = f.MaxAttempts
	}
	if f.Concurrency > 0 {
		c.Concurrency = f.Concurrency
	}
	if f.RequestsPerSecond > 0 {
		c.RequestsPerSecond = f.RequestsPerSecond
	}
	if f.Proxy != "" {
		c.ProxyURL = f.Proxy
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.DuplicateMode != "" {
		c.DuplicateMode = f.DuplicateMode
	}
	if f.DuplicateOverlap > 0 {
		c.DuplicateOverlap = f.DuplicateOverlap
	}
	if len(c.Sources) == 0 {
		c.Sources = f.SourceURLs()
	}
}

// SourceConfig returns the effective per-source settings for sourceURL.
// Without a config file, it returns the global selector and page limit.
func (c *Config) SourceConfig(sourceURL string) SourceConfig {
	var sc SourceConfig
	if c.File != nil {
		sc = c.File.Resolve(sourceURL)
	}
	if sc.Selector == "" {
		sc.Selector = c.Selector
	}
	if sc.MaxPages == 0 {
		sc.MaxPages = c.MaxPages
	}
	sc.URL = sourceURL
	return sc
}

// XDGDataDir returns the XDG data directory for catalogscan.
// On Linux: ~/.local/share/catalogscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for catalogscan.
// On Linux: ~/.config/catalogscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return ErrNoSource
	}
	for _, s := range c.Sources {
		if !isHTTPURL(s) {
			return ErrInvalidSourceURL
		}
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.PageDelay < 0 {
		return ErrInvalidPageDelay
	}
	if c.SourceDelay < 0 {
		return ErrInvalidSourceDelay
	}
	if c.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	if c.RetryBackoff < 0 || c.MaxRetryBackoff < c.RetryBackoff {
		return ErrInvalidRetryBackoff
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if err := c.validateSourcePages(); err != nil {
		return err
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.RequestsPerSecond < 0 {
		return ErrInvalidRateLimit
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	switch c.DuplicateMode {
	case DuplicateModeExact:
	case DuplicateModeOverlap:
		if c.DuplicateOverlap <= 0 || c.DuplicateOverlap > 1 {
			return ErrInvalidDuplicateOverlap
		}
	default:
		return ErrInvalidDuplicateMode
	}

	if c.OutputFile == "" {
		return ErrEmptyOutputFile
	}
	if c.Selector == "" {
		return ErrEmptySelector
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.Verbose && c.Quiet {
		return ErrConflictingLogLevels
	}

	return nil
}

// validateSourcePages rejects negative page limits in the defaults and
// per-source sections of the config file. Zero there means "use the global
// limit", so only negative values are invalid.
func (c *Config) validateSourcePages() error {
	if c.File == nil {
		return nil
	}
	if c.File.Defaults.MaxPages < 0 {
		return fmt.Errorf("config defaults: %w", ErrInvalidMaxPages)
	}
	for _, sc := range c.File.Sources {
		if sc.MaxPages < 0 {
			return fmt.Errorf("source %s: %w", sc.URL, ErrInvalidMaxPages)
		}
	}
	return nil
}

// isHTTPURL reports whether s is an absolute http or https URL with a host.
func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
