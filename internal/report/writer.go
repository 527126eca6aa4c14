package report

import (
	"io"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/blurguard/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the report of one document.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.DocumentReport) (int, error)

	// WriteBatch outputs the reports of a multi-document run.
	WriteBatch(batch *model.BatchReport) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.DocumentReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteBatch outputs the batch to all configured Writers.
func (m *MultiWriter) WriteBatch(batch *model.BatchReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteBatch(batch)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// kindLabels are the display names of kinds.
var kindLabels = map[string]string{
	"email": "Email",
	"ipv4":  "IPv4",
	"ipv6":  "IPv6",
}

// kindLabel returns the display name of a kind.
func kindLabel(kind string) string {
	if label, ok := kindLabels[kind]; ok {
		return label
	}
	return title(kind)
}

// stateLabel returns the display name of a state.
func stateLabel(state string) string {
	return title(state)
}

// title capitalizes s. A Caser is stateful, so each call gets its own.
func title(s string) string {
	return cases.Title(language.English).String(s)
}
