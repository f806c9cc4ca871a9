package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/sitediff/internal/model"
	"github.com/nao1215/sitediff/internal/pipeline"
	"github.com/nao1215/sitediff/internal/report"
	"github.com/spf13/cobra"
)

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [website]",
		Short: "Render the captured pages again and measure the differences",
		Long: `Compare renders every URL of urls.json again and compares it pixel by
pixel with the screenshot taken by capture.

With a compare domain, the host of every URL is replaced first, so a
staging server can be compared against production. Results are written to
<output>/report.json, sorted by difference with failed pages last, and a
summary is printed. Diff images highlighting the changed pixels are written
to <output>/difference/.

Severity:
  large   5% or more of the pixels changed
  minor   less than 5% changed
  none    identical
  failed  the page could not be rendered or compared

Examples:
  # Compare the site configured in .sitediff.yaml with itself
  sitediff compare

  # Compare production against staging
  sitediff compare --compare-domain staging.example.com

  # Fail a CI job when any page changed by 5% or more
  sitediff compare --fail-on large`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	addCommonFlags(cmd)
	addBrowserFlags(cmd)
	addRenderFlags(cmd)
	addCompareFlags(cmd)
	cmd.Flags().String("fail-on", "",
		"Exit with an error when a page is at least this severe (minor, large or failed)")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	failOnFlag, err := cmd.Flags().GetString("fail-on")
	if err != nil {
		return err
	}
	failOn, err := parseFailOn(failOnFlag)
	if err != nil {
		return err
	}

	logger := setupLogger(cmd)
	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	sess := newSession(cmd, cfg, logger)
	defer sess.close()

	layout := cfg.Layout()
	// Check before the browser starts.
	manifest, err := model.LoadManifest(layout.ManifestFile())
	if err != nil {
		return fmt.Errorf("%w (run capture first)", err)
	}

	// Only the compare side is rendered, starting with the first page.
	if len(manifest) > 0 {
		warnCompareSite(ctx, cmd, cfg, manifest[0], logger)
	}

	renderer, err := rendererFactory(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	p := pipeline.New(pipeline.WithLogger(logger), pipeline.WithCloser(renderer))
	defer closePipeline(p, logger)
	p.AddStep(pipeline.NewCompareStep(renderer, cfg, sess.stepOptions()...))

	out := sess.out
	fmt.Fprintf(out, "Comparing %d page(s)...\n", len(manifest))
	startTime := time.Now()

	run := model.NewRun(cfg.SiteName(), cfg.Website)
	run.Manifest = manifest
	if err := p.Execute(ctx, run); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nCompared in %s\n\n", time.Since(startTime).Round(time.Millisecond))
	if _, err := report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose)).Write(run.Report); err != nil {
		return err
	}
	fmt.Fprintf(out, "Report written to %s\n", layout.ReportJSON())
	printRunErrors(out, run)

	return checkFailOn(run.Report, failOn)
}

// parseFailOn parses the --fail-on flag. An empty value disables the check
// and is returned as BucketNone.
func parseFailOn(s string) (model.Bucket, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return model.BucketNone, nil
	case "minor":
		return model.BucketMinor, nil
	case "large":
		return model.BucketLarge, nil
	case "failed":
		return model.BucketFailed, nil
	default:
		return model.BucketNone, fmt.Errorf("invalid --fail-on value %q: must be minor, large or failed", s)
	}
}

// checkFailOn returns an error when a result is at least as severe as threshold.
func checkFailOn(rep *model.Report, threshold model.Bucket) error {
	if threshold == model.BucketNone || rep == nil {
		return nil
	}
	var n int
	for _, r := range rep.Results {
		if r.Bucket() >= threshold {
			n++
		}
	}
	if n > 0 {
		return fmt.Errorf("%d page(s) at or above %s severity", n, threshold)
	}
	return nil
}
