package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/catalogscan/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs a human-readable text summary of a run.
type SimpleWriter struct {
	baseWriter

	// verbose adds the per-page log of every source.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose includes every page record in the output.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run summary.
func (w *SimpleWriter) Write(run *model.Run) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, run)
	w.writeSources(&sb, run)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, run *model.Run) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                       CATALOGSCAN RUN SUMMARY\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Started:        %s\n", run.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Elapsed:        %s\n", run.Elapsed().Round(time.Millisecond))
	fmt.Fprintf(sb, "Sources:        %d (%d failed)\n", len(run.Sources), run.FailedSources())
	fmt.Fprintf(sb, "Items:          %d total, %d unique\n", run.TotalItems, run.UniqueItems)

	switch {
	case run.Written:
		fmt.Fprintf(sb, "Output:         %s\n", run.OutputFile)
	case run.ErrorMessage != "":
		fmt.Fprintf(sb, "Output:         ERROR - %s\n", run.ErrorMessage)
	default:
		sb.WriteString("Output:         not written (no products found)\n")
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSources(sb *strings.Builder, run *model.Run) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("SOURCES\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")

	for i, src := range run.Sources {
		var res *model.SourceResult
		if i < len(run.Results) {
			res = run.Results[i]
		}

		fmt.Fprintf(sb, "[%s] %s\n", statusIndicator(res), src)
		if res == nil {
			sb.WriteString("    not crawled\n")
			continue
		}
		fmt.Fprintf(sb, "    items: %d  pages: %d  fetches: %d  stop: %s\n",
			len(res.Items), res.AcceptedPages(), res.Fetches, res.StopReason)
		if res.ErrorMessage != "" {
			fmt.Fprintf(sb, "    error: %s\n", res.ErrorMessage)
		}
		if w.verbose {
			for _, p := range res.Pages {
				fmt.Fprintf(sb, "      page %d: %s (%d items, %d attempts)\n",
					p.Number(), p.Outcome, p.ItemCount, p.Attempts)
			}
		}
	}
	sb.WriteString("\n")
}

func statusIndicator(res *model.SourceResult) string {
	switch sourceStatus(res) {
	case "ok":
		return "+"
	case "failed":
		return "!"
	default:
		return "-"
	}
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}
