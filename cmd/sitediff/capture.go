package main

import (
	"fmt"
	"time"

	"github.com/nao1215/sitediff/internal/model"
	"github.com/nao1215/sitediff/internal/pipeline"
	"github.com/spf13/cobra"
)

// NewCaptureCmd creates the capture command.
func NewCaptureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture [website]",
		Short: "Crawl a website and capture the baseline screenshots",
		Long: `Capture crawls a website and takes a full-page screenshot of every page.

Starting at the website, it follows links on the same host breadth first,
skipping URLs that match an ignore pattern, until the crawl limits are
reached. Screenshots are written to <output>/original/ and the list of
captured URLs to <output>/urls.json, which the compare command reads.

Without a website argument, the website of .sitediff.yaml is used.

Examples:
  # Capture the site configured in .sitediff.yaml
  sitediff capture

  # Capture at most 50 pages, three links deep
  sitediff capture --max-urls 50 --max-depth 3 https://www.example.com

  # Capture with a phone viewport and without the cookie banner
  sitediff capture --mobile --remove-selector "#cookie-banner" -c shop.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCaptureCmd,
	}

	addCommonFlags(cmd)
	addBrowserFlags(cmd)
	addCrawlFlags(cmd)
	addRenderFlags(cmd)

	return cmd
}

// runCaptureCmd executes the capture command.
func runCaptureCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd)
	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	sess := newSession(cmd, cfg, logger)
	defer sess.close()

	if err := checkSite(ctx, cmd, cfg, cfg.Website, logger); err != nil {
		return err
	}

	renderer, err := rendererFactory(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	p := pipeline.New(pipeline.WithLogger(logger), pipeline.WithCloser(renderer))
	defer closePipeline(p, logger)
	p.AddStep(pipeline.NewCaptureStep(renderer, cfg, sess.stepOptions()...))

	layout := cfg.Layout()
	out := sess.out
	fmt.Fprintf(out, "Capturing %s into %s...\n", cfg.Website, layout.OriginalDir())
	startTime := time.Now()

	run := model.NewRun(cfg.SiteName(), cfg.Website)
	if err := p.Execute(ctx, run); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nCaptured %d page(s) in %s\n", len(run.Baseline), time.Since(startTime).Round(time.Millisecond))
	fmt.Fprintf(out, "URL list written to %s\n", layout.ManifestFile())
	printRunErrors(out, run)
	return nil
}
