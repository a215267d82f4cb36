// Package main provides the entry point for the catalogscan CLI.
//
// catalogscan crawls paginated product catalog listings, collects every
// product name, and writes the deduplicated, sorted catalog to a CSV file.
//
// Usage:
//
//	catalogscan crawl [source-url...]
//	catalogscan history list
//
// See --help for all available options.
package main

func main() {
	Execute()
}
