package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can use
// errors.Is() to tell which setting is wrong.
var (
	// ErrNoSource is returned when there is no source URL to crawl.
	ErrNoSource = errors.New("no source specified: pass source URLs as arguments or list them in the config file")

	// ErrInvalidSourceURL is returned when a source is not an absolute http(s) URL.
	ErrInvalidSourceURL = errors.New("invalid source URL: must be an absolute http or https URL")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidPageDelay is returned when the inter-page delay is negative.
	ErrInvalidPageDelay = errors.New("invalid page delay: must be non-negative")

	// ErrInvalidSourceDelay is returned when the inter-source delay is negative.
	ErrInvalidSourceDelay = errors.New("invalid source delay: must be non-negative")

	// ErrInvalidMaxAttempts is returned when fewer than one fetch attempt is allowed.
	ErrInvalidMaxAttempts = errors.New("invalid retry attempts: must be at least 1")

	// ErrInvalidRetryBackoff is returned when a retry backoff is negative
	// or the maximum backoff is smaller than the base.
	ErrInvalidRetryBackoff = errors.New("invalid retry backoff: must be non-negative and not exceed the maximum")

	// ErrInvalidMaxPages is returned when the page limit is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative (0 means unlimited)")

	// ErrInvalidConcurrency is returned when the number of concurrent sources is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidRateLimit is returned when the requests-per-second limit is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative (0 disables it)")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidDuplicateMode is returned for an unknown duplicate detection mode.
	ErrInvalidDuplicateMode = errors.New("invalid duplicate mode: must be \"exact\" or \"overlap\"")

	// ErrInvalidDuplicateOverlap is returned when the overlap ratio is outside (0, 1].
	ErrInvalidDuplicateOverlap = errors.New("invalid duplicate overlap: must be greater than 0 and at most 1")

	// ErrEmptyOutputFile is returned when no output path is configured.
	ErrEmptyOutputFile = errors.New("output file path must not be empty")

	// ErrEmptySelector is returned when no item selector is configured.
	ErrEmptySelector = errors.New("item selector must not be empty")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one summary format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConflictingLogLevels is returned when both --verbose and --quiet are set.
	ErrConflictingLogLevels = errors.New("conflicting log levels: --verbose and --quiet cannot be used together")
)
