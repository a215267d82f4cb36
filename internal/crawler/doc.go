// Package crawler walks paginated catalog listings.
//
// # Components
//
//   - BuildURL: derives the request URL for a zero-based page index
//   - Paginator: the per-source controller fetching, extracting and deciding when to stop
//   - DuplicateDetector: recognizes a site re-serving the same page (ExactMatch, OverlapThreshold)
//   - RetryPolicy and Sleeper: retry backoff and the delay between pages
//
// # Termination
//
// Catalog sites rarely say how many pages they have. A source ends when a
// page lists no items, or when a page repeats the previous one: several
// storefronts keep answering with the last real page for any page number
// past the end, so relying on empty pages alone would never terminate.
//
// # Politeness
//
// Each accepted page is followed by a fixed delay (1s by default) and failed
// fetches back off exponentially. Both go through the Sleeper so tests run
// without waiting.
//
// # Usage
//
//	p := crawler.NewPaginator(f, extractor, crawler.WithLogger(logger))
//	result := p.Crawl(ctx, "https://shop.example.com/colecao/1234")
package crawler
