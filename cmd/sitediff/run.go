package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nao1215/sitediff/internal/config"
	"github.com/nao1215/sitediff/internal/model"
	"github.com/nao1215/sitediff/internal/pipeline"
	"github.com/nao1215/sitediff/internal/report"
	"github.com/spf13/cobra"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [config-file...]",
		Short: "Capture, compare and report one or more sites",
		Long: `Run executes capture, compare and report for every configuration file.

Each file is one site and writes into its own output directory. Sites are
processed concurrently, each with its own browser; --batch sets how many
run at once. A failing site never stops the others.

Without arguments, .sitediff.yaml in the current or home directory is used.

Examples:
  # Run the site of .sitediff.yaml
  sitediff run

  # Run three sites, two at a time
  sitediff run --batch 2 shop.yaml blog.yaml docs.yaml

  # Also write a PDF report
  sitediff run --format markdown,html,pdf shop.yaml`,
		Args: cobra.ArbitraryArgs,
		RunE: runRunCmd,
	}

	addCommonFlags(cmd)
	addBrowserFlags(cmd)
	addCrawlFlags(cmd)
	addRenderFlags(cmd)
	addCompareFlags(cmd)
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize, "Number of sites processed concurrently")
	cmd.Flags().StringSliceP("format", "f", []string{report.FormatMarkdown.String(), report.FormatHTML.String()},
		"Report files to write: markdown, html, pdf or json (repeatable)")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, args []string) error {
	cfgs, err := buildRunConfigs(cmd, args)
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
	batchSize, err := cmd.Flags().GetInt("batch")
	if err != nil {
		return err
	}
	if batchSize <= 0 {
		return config.ErrInvalidBatchSize
	}

	logger := setupLogger(cmd)
	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	sess := newSession(cmd, cfgs[0], logger)
	defer sess.close()

	out := sess.out
	if len(cfgs) > 1 {
		fmt.Fprintf(out, "Starting %d sites (concurrency: %d)...\n\n", len(cfgs), batchSize)
	}
	startTime := time.Now()

	bp := pipeline.NewBatchProcessor(
		func(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, error) {
			siteLogger := logger.With("site", cfg.SiteName())
			if err := checkSite(ctx, cmd, cfg, cfg.Website, siteLogger); err != nil {
				return nil, err
			}
			if cfg.CompareDomain != "" {
				warnCompareSite(ctx, cmd, cfg, cfg.Website, siteLogger)
			}
			renderer, err := rendererFactory(ctx, cfg, siteLogger)
			if err != nil {
				return nil, fmt.Errorf("failed to start browser: %w", err)
			}
			return pipeline.NewSitePipeline(renderer, cfg, formats, sess.stepOptions(),
				pipeline.WithLogger(logger),
			), nil
		},
		pipeline.WithConcurrency(batchSize),
		pipeline.WithBatchLogger(logger),
	)

	runs, err := bp.ProcessBatchWithCallback(ctx, cfgs, func(run *model.Run, index int) {
		printRunResult(out, run, index, len(cfgs))
	})

	fmt.Fprintf(out, "\nFinished in %s\n", time.Since(startTime).Round(time.Millisecond))
	if err != nil {
		return err
	}

	failed := 0
	for _, run := range runs {
		if run == nil || run.Report == nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d site(s) failed", failed, len(cfgs))
	}
	return nil
}

// buildRunConfigs loads one validated Config per configuration file.
func buildRunConfigs(cmd *cobra.Command, paths []string) ([]*config.Config, error) {
	if len(paths) == 0 {
		explicit, err := cmd.Flags().GetString("config")
		if err != nil {
			return nil, err
		}
		path := config.FindConfigFile(explicit)
		if path == "" {
			if explicit != "" {
				return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, explicit)
			}
			return nil, errors.New("no configuration file found (create one with 'sitediff init' or pass config files as arguments)")
		}
		paths = []string{path}
	}

	cfgs := make([]*config.Config, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		cfg, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		if err := applyFlags(cmd, cfg); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("configuration error in %s: %w", path, err)
		}

		// Two sites writing into one directory would overwrite each other.
		root := cfg.Layout().Root
		if prev, ok := seen[root]; ok {
			return nil, fmt.Errorf("%s and %s both write to %s", prev, path, root)
		}
		seen[root] = path

		cfgs = append(cfgs, cfg)
	}
	return cfgs, nil
}

// printRunResult prints the outcome of one site.
func printRunResult(w io.Writer, run *model.Run, index, total int) {
	prefix := ""
	if total > 1 {
		prefix = fmt.Sprintf("[%d/%d] ", index+1, total)
	}

	if run.Report == nil {
		fmt.Fprintf(w, "%s%s: failed\n", prefix, run.Site)
		printRunErrors(w, run)
		return
	}

	s := run.Report.Summary()
	fmt.Fprintf(w, "%s%s: %d page(s), %d large, %d minor, %d unchanged, %d failed\n",
		prefix, run.Site, s.Total, s.Large, s.Minor, s.None, s.Failed)
	printRunErrors(w, run)
}
