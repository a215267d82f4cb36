package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/catalogscan/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs the run summary as GitHub-flavored Markdown,
// suitable for attaching to a data refresh pull request.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the run summary in Markdown format.
func (w *MarkdownWriter) Write(run *model.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeAlert(md, run)
	w.writeSources(md, run)
	w.writeStopReasons(md, run)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.Run) {
	md.H1("Catalog Crawl Summary")
	md.PlainText("")

	output := "-"
	if run.Written {
		output = "`" + run.OutputFile + "`"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Started", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", run.Elapsed().Round(time.Millisecond).String()},
			{"Sources", strconv.Itoa(len(run.Sources))},
			{"Failed Sources", strconv.Itoa(run.FailedSources())},
			{"Items (total)", strconv.Itoa(run.TotalItems)},
			{"Items (unique)", strconv.Itoa(run.UniqueItems)},
			{"Output", output},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, run *model.Run) {
	failed := run.FailedSources()
	switch {
	case run.ErrorMessage != "":
		md.Cautionf("The run failed: %s", run.ErrorMessage)
	case !run.Written:
		md.Warningf("No products were found across %d source(s); the catalog was not written.", len(run.Sources))
	case failed > 0:
		md.Warningf("%d of %d source(s) ended with an error. Their items up to the failure are included.", failed, len(run.Sources))
	default:
		md.Tip("All sources were crawled to the end of their pagination.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeSources(md *markdown.Markdown, run *model.Run) {
	md.H2("Sources")
	md.PlainText("")

	rows := make([][]string, 0, len(run.Sources))
	for i, src := range run.Sources {
		var res *model.SourceResult
		if i < len(run.Results) {
			res = run.Results[i]
		}
		if res == nil {
			rows = append(rows, []string{truncateString(src, 60), sourceStatus(res), "-", "-", "-", "-"})
			continue
		}
		errText := "-"
		if res.ErrorMessage != "" {
			errText = truncateString(res.ErrorMessage, 60)
		}
		rows = append(rows, []string{
			truncateString(src, 60),
			sourceStatus(res),
			strconv.Itoa(len(res.Items)),
			strconv.Itoa(res.AcceptedPages()),
			string(res.StopReason),
			errText,
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Source", "Status", "Items", "Pages", "Stop Reason", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeStopReasons writes a mermaid pie chart of how sources ended.
func (w *MarkdownWriter) writeStopReasons(md *markdown.Markdown, run *model.Run) {
	counts := make(map[model.StopReason]uint64)
	for _, res := range run.Results {
		if res != nil {
			counts[res.StopReason]++
		}
	}
	if len(counts) == 0 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Stop Reasons"),
		piechart.WithShowData(true),
	)
	for _, reason := range []model.StopReason{
		model.StopEmptyPage,
		model.StopDuplicatePage,
		model.StopMaxPages,
		model.StopFetchFailed,
		model.StopExtractFailed,
		model.StopCancelled,
	} {
		if n := counts[reason]; n > 0 {
			chart.LabelAndIntValue(string(reason), n)
		}
	}

	md.H2("Stop Reasons")
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by catalogscan*")
}
