package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/sitediff/internal/config"
	"github.com/nao1215/sitediff/internal/model"
	"github.com/nao1215/sitediff/internal/pipeline"
	"github.com/nao1215/sitediff/internal/render"
	"github.com/nao1215/sitediff/internal/report"
	"github.com/spf13/cobra"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [website]",
		Short: "Render the last comparison in another format",
		Long: `Report reads <output>/report.json and renders it again.

Formats:
  text      human-readable summary on stdout (default)
  json      the results array on stdout
  markdown  <output>/report.md with links to the screenshots
  html      <output>/report.html with embedded thumbnails
  pdf       <output>/report.pdf, one page per URL (starts a browser)

Examples:
  # Show every result, identical pages included
  sitediff report --all

  # Write an HTML report
  sitediff report --format html

  # Write Markdown and PDF reports
  sitediff report --format markdown --format pdf`,
		Args: cobra.MaximumNArgs(1),
		RunE: runReportCmd,
	}

	addCommonFlags(cmd)
	addBrowserFlags(cmd)
	addCompareFlags(cmd)
	cmd.Flags().StringSliceP("format", "f", []string{report.FormatText.String()},
		"Report format: "+strings.Join(formatNames(), ", ")+" (repeatable)")
	cmd.Flags().BoolP("all", "a", false, "Include identical pages in text output")

	return cmd
}

// formatNames returns the names of all report formats.
func formatNames() []string {
	names := make([]string, 0, len(report.Formats))
	for _, f := range report.Formats {
		names = append(names, f.String())
	}
	return names
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	formatFlags, err := cmd.Flags().GetStringSlice("format")
	if err != nil {
		return err
	}
	formats, err := parseFormats(formatFlags)
	if err != nil {
		return err
	}
	showAll, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}

	logger := setupLogger(cmd)
	layout := cfg.Layout()

	rep, err := model.LoadReport(layout.ReportJSON())
	if err != nil {
		if errors.Is(err, model.ErrReportNotFound) {
			return fmt.Errorf("%w (run compare first)", err)
		}
		return err
	}
	rep.Site = cfg.SiteName()
	rep.Website = cfg.Website
	rep.CompareDomain = cfg.CompareDomain

	out := cmd.OutOrStdout()
	var files []report.Format
	for _, f := range formats {
		switch f {
		case report.FormatText:
			w := report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose), report.WithShowEmpty(showAll))
			if _, err := w.Write(rep); err != nil {
				return err
			}
		case report.FormatJSON:
			if _, err := report.NewJSONWriter(out, report.WithPrettyPrint()).Write(rep); err != nil {
				return err
			}
		default:
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return nil
	}

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	opts := []pipeline.ReportStepOption{
		pipeline.WithFormats(files...),
		pipeline.WithReportStepOptions(pipeline.WithStepLogger(logger)),
	}
	pipelineOpts := []pipeline.Option{pipeline.WithLogger(logger)}
	if needsPrinter(files) {
		renderer, err := rendererFactory(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to start browser: %w", err)
		}
		pipelineOpts = append(pipelineOpts, pipeline.WithCloser(renderer))
		if printer, ok := renderer.(render.Printer); ok {
			opts = append(opts, pipeline.WithPrinter(printer))
		}
	}
	p := pipeline.New(pipelineOpts...)
	defer closePipeline(p, logger)
	p.AddStep(pipeline.NewReportStep(layout, opts...))

	run := model.NewRun(rep.Site, rep.Website)
	run.Report = rep
	if err := p.Execute(ctx, run); err != nil {
		return err
	}

	for _, f := range files {
		fmt.Fprintf(out, "Wrote %s\n", reportPath(layout, f))
	}
	return nil
}

// parseFormats parses the --format values. Comma separated lists are accepted.
func parseFormats(values []string) ([]report.Format, error) {
	seen := make(map[report.Format]bool)
	var formats []report.Format
	for _, v := range values {
		f, err := report.ParseFormat(v)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	return formats, nil
}

// needsPrinter reports whether formats include PDF.
func needsPrinter(formats []report.Format) bool {
	for _, f := range formats {
		if f == report.FormatPDF {
			return true
		}
	}
	return false
}

// reportPath returns the file a report format is written to.
func reportPath(layout config.Layout, f report.Format) string {
	switch f {
	case report.FormatMarkdown:
		return layout.ReportMarkdown()
	case report.FormatHTML:
		return layout.ReportHTML()
	case report.FormatPDF:
		return layout.ReportPDF()
	default:
		return layout.ReportJSON()
	}
}
