package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/blurguard/internal/model"
)

// MarkdownWriter outputs reports in GitHub Flavored Markdown, with a
// mermaid pie chart of units per kind.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs one document report in Markdown format.
func (w *MarkdownWriter) Write(report *model.DocumentReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("blurguard Report")
	md.PlainText("")
	w.writeDocument(md, report, false)
	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteBatch outputs a batch in Markdown format: a summary table followed
// by one section per document.
func (w *MarkdownWriter) WriteBatch(batch *model.BatchReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("blurguard Batch Report")
	md.PlainText("")

	rows := make([][]string, 0, len(batch.Documents))
	for _, r := range batch.Documents {
		rows = append(rows, []string{
			"`" + r.Path + "`",
			strconv.Itoa(r.TotalUnits()),
			strconv.Itoa(r.Exposed()),
			w.getStatusText(r),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Document", "Units", "Exposed", "Status"},
		Rows:   rows,
	})
	md.PlainText("")

	if batch.TotalUnits() > 0 {
		w.writePieChart(md, "Units per Kind", batch.CountByKind())
	}
	if failed := batch.Failed(); failed > 0 {
		md.Cautionf("%d of %d document(s) could not be processed.", failed, len(batch.Documents))
		md.PlainText("")
	}

	for _, r := range batch.Documents {
		w.writeDocument(md, r, true)
	}
	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeDocument(md *markdown.Markdown, report *model.DocumentReport, nested bool) {
	if nested {
		md.H2(report.Path)
		md.PlainText("")
	}
	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeUnits(md, report)
}

// writeHeader writes the document information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.DocumentReport) {
	rows := [][]string{
		{"Document", "`" + report.Path + "`"},
		{"Processed", report.DateProcessed.Format("2006-01-02 15:04:05 MST")},
		{"Hide Emails", strconv.FormatBool(report.Settings.HideEmails)},
		{"Hide IPs", strconv.FormatBool(report.Settings.HideIps)},
		{"Text Nodes", strconv.Itoa(report.TextNodes)},
		{"Shadow Roots", strconv.Itoa(report.ShadowRoots)},
		{"Status", w.getStatusText(report)},
	}
	if report.Output != "" {
		rows = append(rows, []string{"Output", "`" + report.Output + "`"})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.DocumentReport) string {
	if report.TimedOut {
		return "⚠️ Timed Out (partial results)"
	}
	if report.Error != "" {
		return "❌ Error - " + report.Error
	}
	return "✅ Complete"
}

// writeSummary writes the per-kind and per-state counts.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.DocumentReport) {
	md.H3("Concealment Summary")
	md.PlainText("")

	byKind := report.CountByKind()
	byState := report.CountByState()
	rows := make([][]string, 0, len(model.KindNames())+len(model.StateNames())+1)
	for _, kind := range model.KindNames() {
		rows = append(rows, []string{kindLabel(kind), strconv.Itoa(byKind[kind])})
	}
	for _, state := range model.StateNames() {
		rows = append(rows, []string{stateLabel(state), strconv.Itoa(byState[state])})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(report.TotalUnits()) + "**"})
	md.Table(markdown.TableSet{
		Header: []string{"Category", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if report.HasUnits() {
		w.writePieChart(md, "Units per Kind", byKind)
	}
	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart of counts per kind.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, title string, counts map[string]int) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle(title),
		piechart.WithShowData(true),
	)
	for _, kind := range model.KindNames() {
		if counts[kind] > 0 {
			chart.LabelAndIntValue(kindLabel(kind), uint64(counts[kind]))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert flags documents whose content is left visible.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.DocumentReport) {
	switch exposed := report.Exposed(); {
	case report.Failed():
		md.Cautionf("Processing failed: %s", report.Error)
	case exposed > 0:
		md.Warningf("%d unit(s) are revealed in the rendered document.", exposed)
	case report.HasUnits():
		md.Tip("Every detected value is concealed.")
	default:
		md.Note("No email or IP address was found.")
	}
	md.PlainText("")
}

// writeUnits writes the unit table.
func (w *MarkdownWriter) writeUnits(md *markdown.Markdown, report *model.DocumentReport) {
	if !report.HasUnits() {
		return
	}
	md.H3("Units")
	md.PlainText("")

	rows := make([][]string, len(report.Units))
	for i, u := range report.Units {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			kindLabel(u.Kind),
			stateLabel(u.State),
			yesNo(u.DisabledBySetting),
			yesNo(u.InShadowRoot),
			"`" + u.Fingerprint + "`",
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Kind", "State", "Disabled", "Shadow", "Fingerprint"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [blurguard](https://github.com/nao1215/blurguard)*")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}
