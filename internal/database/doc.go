// Package database provides the SQLite run history of catalogscan.
//
// The HistoryDB stores:
//   - one row per run with its totals and output file
//   - one row per source crawl with its stop reason and counts
//   - the page log of every source crawl
//   - every product name with the runs it was first and last seen in
//
// The products table makes it possible to list the products that appeared
// in a run for the first time, which is the usual question after a catalog
// refresh.
//
// SQLite is accessed through modernc.org/sqlite, a CGO-free driver, so the
// binary cross-compiles without a C toolchain.
package database
