package report

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/nao1215/catalogscan/internal/model"
)

// Writer outputs a run summary in a specific format.
type Writer interface {
	// Write outputs the summary of run and returns the bytes written.
	Write(run *model.Run) (int, error)
}

// MultiWriter writes the same run summary to several Writers,
// for example text to the terminal and Markdown to a file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the summary to all Writers, stopping on the first error.
func (m *MultiWriter) Write(run *model.Run) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(run)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for summary writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// sourceStatus returns a short status label for a source result.
func sourceStatus(res *model.SourceResult) string {
	switch {
	case res == nil:
		return "not crawled"
	case res.Failed():
		return "failed"
	default:
		return "ok"
	}
}

// truncateString truncates s to maxLen bytes with an ellipsis, keeping
// whole runes.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut]) + "..."
}
