package report

import (
	_ "embed"
	"html/template"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/nao1215/sitediff/internal/model"
)

//go:embed templates/report.html.tmpl
var htmlTemplateText string

var htmlTemplate = template.Must(template.New("report").Parse(htmlTemplateText))

// HTMLWriter outputs one section per page with the original, new and
// diff captures side by side. Images are embedded as base64 thumbnails
// unless WithLinkedImages is set.
type HTMLWriter struct {
	baseWriter

	// root is the directory result image paths are relative to.
	root string

	// linked makes images reference files under prefix instead of
	// embedding them.
	linked bool
	prefix string

	thumbnailWidth int
}

// HTMLWriterOption configures an HTMLWriter.
type HTMLWriterOption func(*HTMLWriter)

// WithImageRoot sets the directory that result image paths are relative
// to, usually the output directory holding report.json.
func WithImageRoot(dir string) HTMLWriterOption {
	return func(w *HTMLWriter) {
		w.root = dir
	}
}

// WithLinkedImages references images by URL prefix + relative path
// instead of embedding them. An empty prefix links relative to the report.
func WithLinkedImages(prefix string) HTMLWriterOption {
	return func(w *HTMLWriter) {
		w.linked = true
		w.prefix = prefix
	}
}

// WithThumbnailWidth sets the width of embedded thumbnails.
func WithThumbnailWidth(width int) HTMLWriterOption {
	return func(w *HTMLWriter) {
		if width > 0 {
			w.thumbnailWidth = width
		}
	}
}

// NewHTMLWriter creates an HTMLWriter that outputs to the given writer.
func NewHTMLWriter(output io.Writer, opts ...HTMLWriterOption) *HTMLWriter {
	w := &HTMLWriter{
		baseWriter:     newBaseWriter(output),
		root:           ".",
		thumbnailWidth: DefaultThumbnailWidth,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// htmlView is the data of the HTML template.
type htmlView struct {
	Title      string
	Report     *model.Report
	Summary    model.Summary
	Generated  string
	Sections   []htmlSection
	ThumbWidth int
}

// htmlSection is one page of the report.
type htmlSection struct {
	URL          string
	CandidateURL string
	Bucket       string
	Difference   string
	Error        string
	Images       []htmlImage
}

// htmlImage is one thumbnail. An empty Src renders a placeholder.
type htmlImage struct {
	Label string
	Src   template.URL
	Href  template.URL
}

// Write outputs the report as a standalone HTML document.
func (w *HTMLWriter) Write(report *model.Report) (int, error) {
	view := htmlView{
		Title:      "Visual Regression Report",
		Report:     report,
		Summary:    report.Summary(),
		ThumbWidth: w.thumbnailWidth,
	}
	if report.Site != "" {
		view.Title += ": " + report.Site
	}
	if !report.GeneratedAt.IsZero() {
		view.Generated = report.GeneratedAt.Format("2006-01-02 15:04:05 MST")
	}

	for _, r := range report.Results {
		view.Sections = append(view.Sections, w.section(report, r))
	}

	var sb strings.Builder
	if err := htmlTemplate.Execute(&sb, view); err != nil {
		return 0, err
	}
	return io.WriteString(w.output, sb.String())
}

// section builds the view of one result.
func (w *HTMLWriter) section(report *model.Report, r model.DiffResult) htmlSection {
	s := htmlSection{
		URL:          r.URL,
		CandidateURL: report.CandidateURL(r),
		Bucket:       r.Bucket().String(),
	}
	if r.Failed() {
		s.Error = r.Error
		return s
	}

	s.Difference = formatPercent(r.Percent())
	s.Images = []htmlImage{
		w.image("Original", r.OriginalImagePath),
		w.image("New", r.NewImagePath),
	}
	if r.HasDiffImage() {
		s.Images = append(s.Images, w.image("Difference", r.DiffImagePath))
	}
	return s
}

// image resolves the thumbnail of a result image path.
func (w *HTMLWriter) image(label, rel string) htmlImage {
	img := htmlImage{Label: label}
	if rel == "" {
		return img
	}

	if w.linked {
		u := template.URL(w.prefix + path.Clean(filepath.ToSlash(rel))) //nolint:gosec // paths come from the report
		img.Src = u
		img.Href = u
		return img
	}

	thumb, err := Thumbnail(filepath.Join(w.root, filepath.FromSlash(rel)), w.thumbnailWidth)
	if err != nil {
		return img
	}
	uri, err := dataURI(thumb)
	if err != nil {
		return img
	}
	img.Src = template.URL(uri) //nolint:gosec // generated data URI
	return img
}
