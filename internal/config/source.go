package config

import "time"

// SourceConfig holds the settings for a single catalog source.
// Zero values fall back to the defaults section, then to the global config.
type SourceConfig struct {
	// URL is the catalog collection or category endpoint.
	URL string `yaml:"url"`

	// Selector overrides the CSS selector matching product names.
	Selector string `yaml:"selector,omitempty"`

	// Cookie is an HTTP cookie sent with every request for this source.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent with every request for this source.
	Headers map[string]string `yaml:"headers,omitempty"`

	// MaxPages overrides the global page limit for this source.
	MaxPages int `yaml:"maxPages,omitempty"`
}

// File represents the structure of the .catalogscan configuration file.
type File struct {
	// Output is the CSV output path.
	Output string `yaml:"output,omitempty"`

	// Header is the CSV header field.
	Header string `yaml:"header,omitempty"`

	// Timeout is the per-request timeout, e.g. "15s".
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// PageDelay is the pause after each page. A pointer so "0s" is distinguishable from unset.
	PageDelay *time.Duration `yaml:"pageDelay,omitempty"`

	// SourceDelay is the pause between sources.
	SourceDelay *time.Duration `yaml:"sourceDelay,omitempty"`

	// MaxAttempts is the number of fetch attempts per page.
	MaxAttempts int `yaml:"retries,omitempty"`

	// Concurrency is the number of sources crawled at once.
	Concurrency int `yaml:"concurrency,omitempty"`

	// RequestsPerSecond caps the request rate across all sources.
	RequestsPerSecond float64 `yaml:"requestsPerSecond,omitempty"`

	// Proxy is the proxy URL for all requests.
	Proxy string `yaml:"proxy,omitempty"`

	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`

	// DuplicateMode is "exact" or "overlap".
	DuplicateMode string `yaml:"duplicateMode,omitempty"`

	// DuplicateOverlap is the overlap ratio used in overlap mode.
	DuplicateOverlap float64 `yaml:"duplicateOverlap,omitempty"`

	// Defaults contains source settings applied to every source
	// unless overridden in the source entry.
	Defaults SourceConfig `yaml:"defaults,omitempty"`

	// Sources lists the catalog sources in crawl order.
	Sources []SourceConfig `yaml:"sources,omitempty"`
}

// SourceURLs returns the URLs of all configured sources in order.
func (cf *File) SourceURLs() []string {
	urls := make([]string, 0, len(cf.Sources))
	for _, s := range cf.Sources {
		if s.URL != "" {
			urls = append(urls, s.URL)
		}
	}
	return urls
}

// Resolve returns the configuration for a specific source URL.
// It merges the first matching source entry over the defaults.
func (cf *File) Resolve(sourceURL string) SourceConfig {
	result := cf.Defaults
	result.URL = sourceURL

	// Copy so merging never writes into the shared defaults map.
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	for _, sc := range cf.Sources {
		if sc.URL != sourceURL {
			continue
		}
		if sc.Selector != "" {
			result.Selector = sc.Selector
		}
		if sc.Cookie != "" {
			result.Cookie = sc.Cookie
		}
		if sc.MaxPages != 0 {
			result.MaxPages = sc.MaxPages
		}
		if len(sc.Headers) > 0 {
			if result.Headers == nil {
				result.Headers = make(map[string]string)
			}
			for k, v := range sc.Headers {
				result.Headers[k] = v
			}
		}
		break
	}

	return result
}
