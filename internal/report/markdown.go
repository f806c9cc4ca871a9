package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/sitediff/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// Image links are relative to the report directory, so report.md works
// when opened next to the capture directories.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.Report) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := report.Summary()

	w.writeHeader(md, report)
	w.writeSummary(md, summary)
	w.writeBuckets(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.Report) {
	md.H1("Visual Regression Report")
	md.PlainText("")

	rows := [][]string{}
	if report.Site != "" {
		rows = append(rows, []string{"Site", report.Site})
	}
	if report.Website != "" {
		rows = append(rows, []string{"Website", "`" + report.Website + "`"})
	}
	if report.CompareDomain != "" {
		rows = append(rows, []string{"Compare Domain", "`" + report.CompareDomain + "`"})
	}
	if !report.GeneratedAt.IsZero() {
		rows = append(rows, []string{"Generated", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")})
	}
	rows = append(rows, []string{"Pages", strconv.Itoa(len(report.Results))})

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeSummary writes the bucket counts, a pie chart and an alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s model.Summary) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Bucket", "Pages"},
		Rows: [][]string{
			{"🔴 Large (≥ 5%)", strconv.Itoa(s.Large)},
			{"🟡 Minor (< 5%)", strconv.Itoa(s.Minor)},
			{"🟢 None", strconv.Itoa(s.None)},
			{"⚪ Failed", strconv.Itoa(s.Failed)},
			{"**Total**", "**" + strconv.Itoa(s.Total) + "**"},
		},
	})
	md.PlainText("")

	if s.Total > 0 {
		w.writePieChart(md, s)
	}
	w.writeAlert(md, s)
}

// writePieChart writes a mermaid pie chart of the bucket distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Pages by Difference"),
		piechart.WithShowData(true),
	)

	for _, b := range model.Buckets {
		if n := s.Count(b); n > 0 {
			chart.LabelAndIntValue(b.Title(), uint64(n)) //nolint:gosec // counts are never negative
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the worst bucket.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s model.Summary) {
	switch {
	case s.Large > 0:
		md.Cautionf("%d page(s) changed by 5%% or more. The largest difference is %s on %s.",
			s.Large, formatPercent(s.MaxDiff), s.MaxDiffURL)
	case s.Failed > 0:
		md.Warningf("%d page(s) could not be compared.", s.Failed)
	case s.Minor > 0:
		md.Importantf("%d page(s) changed slightly.", s.Minor)
	case s.Total == 0:
		md.Note("The report contains no pages.")
	default:
		md.Tip("No visual differences detected.")
	}
	md.PlainText("")
}

// writeBuckets writes one table per non-empty bucket.
func (w *MarkdownWriter) writeBuckets(md *markdown.Markdown, report *model.Report) {
	md.H2("Pages")
	md.PlainText("")

	if len(report.Results) == 0 {
		md.PlainText("No pages were compared.")
		md.PlainText("")
		return
	}

	for _, b := range model.Buckets {
		results := model.Filter(report.Results, b)
		if len(results) == 0 {
			continue
		}

		md.PlainText("### " + b.Title())
		md.PlainText("")
		md.PlainText(b.Description())
		md.PlainText("")

		if b == model.BucketFailed {
			w.writeFailedTable(md, results)
			continue
		}
		w.writeResultTable(md, report, results)
	}
}

// writeResultTable writes measured pages with links to their images.
func (w *MarkdownWriter) writeResultTable(md *markdown.Markdown, report *model.Report, results []model.DiffResult) {
	rows := make([][]string, len(results))
	for i, r := range results {
		diff := "-"
		if r.HasDiffImage() {
			diff = link("diff", r.DiffImagePath)
		}
		rows[i] = []string{
			r.URL,
			report.CandidateURL(r),
			formatPercent(r.Percent()),
			link("original", r.OriginalImagePath),
			link("new", r.NewImagePath),
			diff,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Compared URL", "Difference", "Original", "New", "Diff"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailedTable writes pages that could not be compared.
func (w *MarkdownWriter) writeFailedTable(md *markdown.Markdown, results []model.DiffResult) {
	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = []string{r.URL, truncateString(r.Error, 80)}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Error"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, r := range results {
		if len(r.Error) > 80 {
			md.Details(r.URL, r.Error)
		}
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitediff](https://github.com/nao1215/sitediff)*")
}

// link formats a Markdown link, or "-" when path is empty.
func link(text, path string) string {
	if path == "" {
		return "-"
	}
	return "[" + text + "](" + path + ")"
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
