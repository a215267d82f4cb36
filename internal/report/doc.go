// Package report writes the outputs of a crawl run.
//
// The catalog itself goes to CSV (WriteCatalog, WriteCatalogFile): one header
// record followed by one product name per record. Run summaries describing
// every source crawl are available as plain text, JSON and Markdown through
// the Writer interface.
package report
