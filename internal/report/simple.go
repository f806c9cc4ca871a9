package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sitediff/internal/model"
)

// SimpleWriter outputs a human-readable ranked summary.
// Plain ASCII formatting keeps the output readable when piped to a file.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether buckets without pages are shown.
	showEmpty bool

	// verbose adds image paths and lists unchanged pages.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty buckets.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
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

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.Report) (int, error) {
	var sb strings.Builder
	summary := report.Summary()

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, summary)
	w.writeBuckets(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// writeHeader writes the run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.Report) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         SITEDIFF REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	if report.Site != "" {
		fmt.Fprintf(sb, "Site:           %s\n", report.Site)
	}
	if report.Website != "" {
		fmt.Fprintf(sb, "Website:        %s\n", report.Website)
	}
	if report.CompareDomain != "" {
		fmt.Fprintf(sb, "Compare Domain: %s\n", report.CompareDomain)
	}
	if !report.GeneratedAt.IsZero() {
		fmt.Fprintf(sb, "Generated:      %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(sb, "Pages:          %d\n", len(report.Results))
	sb.WriteString("\n")
}

// writeSummary writes the bucket counts.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, s model.Summary) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  LARGE:   %d\n", s.Large)
	fmt.Fprintf(sb, "  MINOR:   %d\n", s.Minor)
	fmt.Fprintf(sb, "  NONE:    %d\n", s.None)
	fmt.Fprintf(sb, "  FAILED:  %d\n", s.Failed)
	sb.WriteString("\n")

	if s.MaxDiffURL != "" && s.MaxDiff > 0 {
		fmt.Fprintf(sb, "  Largest difference: %s (%s)\n\n", formatPercent(s.MaxDiff), s.MaxDiffURL)
	}
}

// writeBuckets lists the pages of each bucket, worst first.
func (w *SimpleWriter) writeBuckets(sb *strings.Builder, report *model.Report) {
	for _, b := range model.Buckets {
		results := model.Filter(report.Results, b)
		if len(results) == 0 && !w.showEmpty {
			continue
		}
		// Unchanged pages are noise unless asked for.
		if b == model.BucketNone && !w.verbose && !w.showEmpty {
			continue
		}

		sb.WriteString(strings.Repeat("-", 70))
		sb.WriteString("\n")
		fmt.Fprintf(sb, "[%s] %s\n", bucketIndicator(b), strings.ToUpper(b.Title()))
		sb.WriteString(strings.Repeat("-", 70))
		sb.WriteString("\n\n")

		if len(results) == 0 {
			sb.WriteString("  No pages\n\n")
			continue
		}

		for _, r := range results {
			w.writeResult(sb, report, r)
		}
		sb.WriteString("\n")
	}
}

// writeResult writes one page line.
func (w *SimpleWriter) writeResult(sb *strings.Builder, report *model.Report, r model.DiffResult) {
	if r.Failed() {
		fmt.Fprintf(sb, "  * %s\n", r.URL)
		fmt.Fprintf(sb, "    Error: %s\n", r.Error)
		return
	}

	fmt.Fprintf(sb, "  %8s  %s\n", formatPercent(r.Percent()), r.URL)
	if !w.verbose {
		return
	}
	if candidate := report.CandidateURL(r); candidate != r.URL {
		fmt.Fprintf(sb, "            Compared: %s\n", candidate)
	}
	fmt.Fprintf(sb, "            Original: %s\n", r.OriginalImagePath)
	fmt.Fprintf(sb, "            New:      %s\n", r.NewImagePath)
	if r.HasDiffImage() {
		fmt.Fprintf(sb, "            Diff:     %s\n", r.DiffImagePath)
	}
}

// bucketIndicator returns a visual indicator for the bucket.
func bucketIndicator(b model.Bucket) string {
	switch b {
	case model.BucketFailed:
		return "x"
	case model.BucketLarge:
		return "!!"
	case model.BucketMinor:
		return "!"
	case model.BucketNone:
		return "="
	default:
		return "?"
	}
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by sitediff\n")
	sb.WriteString("https://github.com/nao1215/sitediff\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
