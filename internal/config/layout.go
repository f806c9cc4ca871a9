package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/sitediff/internal/model"
)

// Output file and directory names inside a run's output directory.
const (
	OriginalDirName   = "original"
	CompareDirName    = "compare"
	DifferenceDirName = "difference"
	ManifestFileName  = "urls.json"
	ReportJSONName    = "report.json"
	ReportMDName      = "report.md"
	ReportHTMLName    = "report.html"
	ReportPDFName     = "report.pdf"
)

// Layout derives every path sitediff reads or writes for one site.
//
//	<root>/original/_about.png
//	<root>/compare/_about.png
//	<root>/difference/diff__about.png
//	<root>/urls.json
//	<root>/report.json
type Layout struct {
	Root string
}

// NewLayout returns the layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{Root: filepath.Clean(root)}
}

// OriginalDir holds baseline captures.
func (l Layout) OriginalDir() string { return filepath.Join(l.Root, OriginalDirName) }

// CompareDir holds candidate captures.
func (l Layout) CompareDir() string { return filepath.Join(l.Root, CompareDirName) }

// DifferenceDir holds diff images.
func (l Layout) DifferenceDir() string { return filepath.Join(l.Root, DifferenceDirName) }

// ManifestFile is urls.json.
func (l Layout) ManifestFile() string { return filepath.Join(l.Root, ManifestFileName) }

// ReportJSON is report.json.
func (l Layout) ReportJSON() string { return filepath.Join(l.Root, ReportJSONName) }

// ReportMarkdown is report.md.
func (l Layout) ReportMarkdown() string { return filepath.Join(l.Root, ReportMDName) }

// ReportHTML is report.html.
func (l Layout) ReportHTML() string { return filepath.Join(l.Root, ReportHTMLName) }

// ReportPDF is report.pdf.
func (l Layout) ReportPDF() string { return filepath.Join(l.Root, ReportPDFName) }

// CaptureDir returns the capture directory of a generation.
func (l Layout) CaptureDir(g model.Generation) string {
	if g == model.GenerationCandidate {
		return l.CompareDir()
	}
	return l.OriginalDir()
}

// OriginalImage is the baseline capture of rawURL.
func (l Layout) OriginalImage(rawURL string) string {
	return filepath.Join(l.OriginalDir(), model.FilenameFromURL(rawURL))
}

// CompareImage is the candidate capture of rawURL.
func (l Layout) CompareImage(rawURL string) string {
	return filepath.Join(l.CompareDir(), model.FilenameFromURL(rawURL))
}

// DiffImage is the diff image of rawURL.
func (l Layout) DiffImage(rawURL string) string {
	return filepath.Join(l.DifferenceDir(), model.DiffFilenameFromURL(rawURL))
}

// Rel returns path relative to the layout root with forward slashes, as
// stored in report.json. Paths outside the root are returned unchanged.
func (l Layout) Rel(path string) string {
	rel, err := filepath.Rel(l.Root, path)
	if err != nil || rel == ".." || filepath.IsAbs(rel) || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// Abs resolves a report-relative path against the layout root.
func (l Layout) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(l.Root, filepath.FromSlash(rel))
}

// EnsureDirs creates the root and the three image directories.
func (l Layout) EnsureDirs() error {
	for _, dir := range []string{l.Root, l.OriginalDir(), l.CompareDir(), l.DifferenceDir()} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
