package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/blurguard/internal/model"
)

// ruleWidth is the width of section rules.
const ruleWidth = 70

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no units are shown.
	showEmpty bool

	// verbose lists every unit instead of only the counts.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables the per-unit listing.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs one document report in human-readable format.
func (w *SimpleWriter) Write(report *model.DocumentReport) (int, error) {
	var sb strings.Builder
	w.writeDocument(&sb, report)
	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

// WriteBatch outputs every document followed by a batch summary.
func (w *SimpleWriter) WriteBatch(batch *model.BatchReport) (int, error) {
	var sb strings.Builder
	for _, report := range batch.Documents {
		w.writeDocument(&sb, report)
	}

	writeSection(&sb, "BATCH SUMMARY")
	sb.WriteString(fmt.Sprintf("  Documents: %d\n", len(batch.Documents)))
	sb.WriteString(fmt.Sprintf("  Failed:    %d\n", batch.Failed()))
	sb.WriteString(fmt.Sprintf("  Units:     %d\n", batch.TotalUnits()))
	counts := batch.CountByKind()
	for _, kind := range model.KindNames() {
		sb.WriteString(fmt.Sprintf("    %-6s %d\n", kindLabel(kind)+":", counts[kind]))
	}
	sb.WriteString("\n")

	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeDocument(sb *strings.Builder, report *model.DocumentReport) {
	w.writeHeader(sb, report)
	w.writeSummary(sb, report)
	w.writeUnits(sb, report)
}

// writeHeader writes the report header with document information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.DocumentReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                         BLURGUARD REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Document:     %s\n", report.Path))
	sb.WriteString(fmt.Sprintf("Processed:    %s\n", report.DateProcessed.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Settings:     hideEmails=%t hideIps=%t\n", report.Settings.HideEmails, report.Settings.HideIps))
	if report.Output != "" {
		sb.WriteString(fmt.Sprintf("Output:       %s\n", report.Output))
	}

	switch {
	case report.TimedOut:
		sb.WriteString("Status:       TIMED OUT (partial results)\n")
	case report.Error != "":
		sb.WriteString(fmt.Sprintf("Status:       ERROR - %s\n", report.Error))
	default:
		sb.WriteString("Status:       Complete\n")
	}

	sb.WriteString("\n")
}

// writeSummary writes unit counts by kind and state.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.DocumentReport) {
	writeSection(sb, "CONCEALMENT SUMMARY")

	sb.WriteString(fmt.Sprintf("  Text nodes examined:  %d\n", report.TextNodes))
	sb.WriteString(fmt.Sprintf("  Text nodes rewritten: %d\n", report.Rewritten))
	sb.WriteString(fmt.Sprintf("  Shadow roots:         %d\n", report.ShadowRoots))
	if report.ReplaySteps > 0 {
		sb.WriteString(fmt.Sprintf("  Replay steps:         %d\n", report.ReplaySteps))
	}
	sb.WriteString("\n")

	byKind := report.CountByKind()
	for _, kind := range model.KindNames() {
		sb.WriteString(fmt.Sprintf("  %-9s %d\n", strings.ToUpper(kind)+":", byKind[kind]))
	}
	sb.WriteString("\n")

	byState := report.CountByState()
	for _, state := range model.StateNames() {
		sb.WriteString(fmt.Sprintf("  %-9s %d\n", stateLabel(state)+":", byState[state]))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  TOTAL:    %d units (%d distinct values)\n", report.TotalUnits(), report.DistinctValues()))
	sb.WriteString("\n")
}

// writeUnits lists every unit when verbose.
func (w *SimpleWriter) writeUnits(sb *strings.Builder, report *model.DocumentReport) {
	if !w.verbose {
		return
	}
	if !report.HasUnits() && !w.showEmpty {
		return
	}

	writeSection(sb, "UNITS")
	if !report.HasUnits() {
		sb.WriteString("  No units\n\n")
		return
	}
	for i, u := range report.Units {
		flags := ""
		if u.DisabledBySetting {
			flags += " [disabled]"
		}
		if u.InShadowRoot {
			flags += " [shadow]"
		}
		sb.WriteString(fmt.Sprintf("  %3d. %-5s %-8s %s%s\n", i+1, kindLabel(u.Kind), u.State, u.Fingerprint, flags))
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by blurguard\n")
	sb.WriteString("https://github.com/nao1215/blurguard\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}
