package report

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/sitediff/internal/model"
	"github.com/nao1215/sitediff/internal/render"
)

// PDF prints the HTML rendering of report to a PDF document, one page
// per compared URL. Images are always embedded, since the printer cannot
// follow links into the output directory.
func PDF(ctx context.Context, printer render.Printer, report *model.Report, imageRoot string) ([]byte, error) {
	if printer == nil {
		return nil, errors.New("report: no PDF printer")
	}

	var sb strings.Builder
	w := NewHTMLWriter(&sb, WithImageRoot(imageRoot))
	if _, err := w.Write(report); err != nil {
		return nil, fmt.Errorf("failed to render HTML report: %w", err)
	}

	return printer.PrintPDF(ctx, sb.String())
}
