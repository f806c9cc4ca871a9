package main

import (
	"fmt"
	"net"

	"github.com/nao1215/sitediff/internal/config"
	"github.com/nao1215/sitediff/internal/metrics"
	"github.com/nao1215/sitediff/internal/model"
	"github.com/nao1215/sitediff/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [website]",
		Short: "Browse the last comparison in a web browser",
		Long: `Serve starts a local web server for an output directory.

The report page lists every compared URL with its original, new and diff
screenshots. report.json is read on every request, so a compare running in
another terminal shows up on reload.

Routes:
  /              HTML report
  /report.json   results as JSON
  /images/...    screenshots and diff images
  /healthz       liveness probe
  /metrics       results of the last comparison as Prometheus metrics
                 (with --metrics)

Examples:
  # Serve the output of .sitediff.yaml on 127.0.0.1:8080
  sitediff serve

  # Serve another output directory on all interfaces
  sitediff serve -o output_shop --addr :9000`,
		Args: cobra.MaximumNArgs(1),
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitediff.yaml in current or home directory)")
	cmd.Flags().StringP("output-dir", "o", "", "Output directory (default: output_<config name>)")
	cmd.Flags().String("addr", server.DefaultAddr, "Listen address")
	cmd.Flags().Bool("metrics", false, "Expose Prometheus metrics at /metrics")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildServeConfig(cmd, args)
	if err != nil {
		return err
	}
	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return err
	}
	withMetrics, err := cmd.Flags().GetBool("metrics")
	if err != nil {
		return err
	}

	logger := setupLogger(cmd)
	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	layout := cfg.Layout()
	opts := []server.Option{
		server.WithSite(cfg.SiteName(), cfg.Website, cfg.CompareDomain),
		server.WithLogger(logger),
	}
	if withMetrics {
		opts = append(opts, server.WithMetrics(reportMetrics(layout)))
	}
	srv := server.New(layout, opts...)

	out := cmd.OutOrStdout()
	return srv.ListenAndServe(ctx, addr, func(a net.Addr) {
		fmt.Fprintf(out, "Serving %s at http://%s/\n", layout.Root, a)
		fmt.Fprintln(out, "Press Ctrl+C to stop.")
	})
}

// reportMetrics returns a recorder holding the results of the last
// comparison in layout, or an empty one when there is none yet.
func reportMetrics(layout config.Layout) *metrics.Recorder {
	rec := metrics.NewRecorder()
	rep, err := model.LoadReport(layout.ReportJSON())
	if err != nil {
		return rec
	}
	for _, r := range rep.Results {
		rec.DiffResult(r)
	}
	return rec
}

// buildServeConfig resolves the served site without requiring a website.
func buildServeConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg := config.NewConfig()
	if configPath != "" || len(args) == 0 {
		if cfg, err = loadConfig(configPath); err != nil {
			return nil, err
		}
	}
	if len(args) > 0 {
		cfg.Website = args[0]
	}
	if changed(cmd, "output-dir") {
		if cfg.OutputDir, err = cmd.Flags().GetString("output-dir"); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
