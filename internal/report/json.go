package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/catalogscan/internal/model"
)

// JSONWriter outputs the run summary as JSON for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed output.
	indent bool

	// includeCatalog adds the full sorted catalog to the output.
	includeCatalog bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint enables two-space indented output.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
	}
}

// WithCatalog includes the catalog itself, not only its size.
func WithCatalog() JSONWriterOption {
	return func(w *JSONWriter) {
		w.includeCatalog = true
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// jsonRun adds the fields that model.Run keeps out of its own encoding.
type jsonRun struct {
	*model.Run

	FailedSources int      `json:"failed_sources"`
	ElapsedMS     int64    `json:"elapsed_ms"`
	Catalog       []string `json:"catalog,omitempty"`
}

// Write outputs the run summary in JSON format, followed by a newline.
func (w *JSONWriter) Write(run *model.Run) (int, error) {
	out := jsonRun{
		Run:           run,
		FailedSources: run.FailedSources(),
		ElapsedMS:     run.Elapsed().Milliseconds(),
	}
	if w.includeCatalog {
		out.Catalog = run.Catalog
	}

	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(out, "", "  ")
	} else {
		data, err = json.Marshal(out)
	}
	if err != nil {
		return 0, err
	}

	return w.output.Write(append(data, '\n'))
}
