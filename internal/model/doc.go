// Package model defines the data structures shared by the crawl, aggregation,
// reporting and history packages.
//
// This package contains the following main types:
//   - PageRecord: What happened to one fetched page of a source
//   - SourceResult: The immutable outcome of crawling one source URL
//   - Run: One invocation of the tool across all configured sources
//
// Models live in their own package so that crawler, pipeline, report and
// database can share them without import cycles. All types serialize to JSON
// for summary reports and history storage.
package model
