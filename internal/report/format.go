package report

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("unknown report format")

// Format is a report output format.
type Format string

const (
	// FormatText is the plain-text summary.
	FormatText Format = "text"

	// FormatJSON is the report.json array.
	FormatJSON Format = "json"

	// FormatMarkdown is report.md.
	FormatMarkdown Format = "markdown"

	// FormatHTML is report.html.
	FormatHTML Format = "html"

	// FormatPDF is report.pdf.
	FormatPDF Format = "pdf"
)

// Formats lists all supported formats.
var Formats = []Format{FormatText, FormatJSON, FormatMarkdown, FormatHTML, FormatPDF}

// ParseFormat parses a format name. "md" is accepted for markdown.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatMarkdown, FormatHTML, FormatPDF:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: text, json, markdown, html, pdf)", ErrUnknownFormat, s)
	}
}

// String returns the format name.
func (f Format) String() string {
	return string(f)
}
