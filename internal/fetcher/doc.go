// Package fetcher performs single page requests against catalog sites.
//
// # Components
//
//   - NewHTTPClient: builds the shared *http.Client (timeout, cookie jar, optional proxy)
//   - Fetcher: issues one GET per call with client identification headers
//   - FetchError: the single error type for network and HTTP status failures
//
// A Fetcher never retries. Retry and backoff belong to the crawl controller,
// which decides whether a failed page ends the crawl of its source.
//
// # Encoding
//
// Response bodies are always decoded as UTF-8, whatever charset the server
// declares. Invalid byte sequences become U+FFFD so that downstream text
// handling only ever sees valid strings.
//
// # Usage
//
//	client, err := fetcher.NewHTTPClient("", 15*time.Second)
//	f := fetcher.New(client, fetcher.WithUserAgent(ua))
//	body, err := f.Fetch(ctx, "https://shop.example.com/categoria/bebidas?page=2")
package fetcher
