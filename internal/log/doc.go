// Package log provides the structured logger used by catalogscan, built on
// the standard slog package.
//
// The SecureHandler wraps any slog.Handler and masks values that should not
// end up in shared crawl logs:
//   - cookies and authorization headers configured per source
//   - credentials embedded in proxy or page URLs (user:pass@host)
//   - bearer and basic tokens detected by value pattern
//
// # Levels
//
// The crawl reports progress at Info (one line per accepted page), stop
// reasons and retries at Warn, and the last item of every page at Debug.
// LevelFor maps the -v / -q command line flags onto these levels.
//
// # Usage
//
//	logger := log.New(os.Stderr, log.LevelFor(verbose, quiet), jsonOutput)
//	logger.Info("page accepted", "source", src, "page", 3, "items", 48)
package log
