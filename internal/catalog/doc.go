// Package catalog folds the item lists of all crawled sources into the
// global catalog: the sorted set of distinct item names.
package catalog
