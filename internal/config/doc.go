// Package config provides configuration structures and utilities for catalogscan.
// It defines crawl, retry and politeness settings, the optional YAML sources
// file with per-source overrides, and the output and history locations.
package config
