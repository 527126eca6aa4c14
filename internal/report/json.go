package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/blurguard/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is stamped into every report.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion stamps the tool version into the output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// JSONReport wraps a document report with output metadata.
type JSONReport struct {
	// Version is the blurguard version that generated this report.
	Version string `json:"version,omitempty"`

	// Report is the document report.
	Report *model.DocumentReport `json:"report"`

	// Summary holds precomputed counts.
	Summary Summary `json:"summary"`
}

// JSONBatchReport wraps a batch with output metadata.
type JSONBatchReport struct {
	Version   string                  `json:"version,omitempty"`
	Documents []*model.DocumentReport `json:"documents"`
	Summary   BatchSummary            `json:"summary"`
}

// Summary holds the counts of one document.
type Summary struct {
	Units          int            `json:"units"`
	Exposed        int            `json:"exposed"`
	DistinctValues int            `json:"distinct_values"`
	ByKind         map[string]int `json:"by_kind"`
	ByState        map[string]int `json:"by_state"`
}

// BatchSummary holds the counts of a batch.
type BatchSummary struct {
	Documents int            `json:"documents"`
	Failed    int            `json:"failed"`
	Units     int            `json:"units"`
	ByKind    map[string]int `json:"by_kind"`
}

func newSummary(r *model.DocumentReport) Summary {
	return Summary{
		Units:          r.TotalUnits(),
		Exposed:        r.Exposed(),
		DistinctValues: r.DistinctValues(),
		ByKind:         r.CountByKind(),
		ByState:        r.CountByState(),
	}
}

// Write outputs one document report in JSON format.
func (w *JSONWriter) Write(report *model.DocumentReport) (int, error) {
	return w.writeJSON(JSONReport{
		Version: w.version,
		Report:  report,
		Summary: newSummary(report),
	})
}

// WriteBatch outputs a batch in JSON format.
func (w *JSONWriter) WriteBatch(batch *model.BatchReport) (int, error) {
	return w.writeJSON(JSONBatchReport{
		Version:   w.version,
		Documents: batch.Documents,
		Summary: BatchSummary{
			Documents: len(batch.Documents),
			Failed:    batch.Failed(),
			Units:     batch.TotalUnits(),
			ByKind:    batch.CountByKind(),
		},
	})
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
