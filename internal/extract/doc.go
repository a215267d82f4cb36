// Package extract turns a fetched page body into the ordered list of item
// names it shows.
//
// The crawl controller only depends on the Extractor interface; swapping the
// HTML layout of a store means swapping the extractor, not the crawler.
// SelectorExtractor is the implementation shipped with catalogscan: it
// matches a CSS selector with goquery and returns the text of each match.
package extract
