package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nao1215/sitediff/internal/config"
	"github.com/nao1215/sitediff/internal/database"
	"github.com/nao1215/sitediff/internal/metrics"
	"github.com/nao1215/sitediff/internal/model"
	"github.com/nao1215/sitediff/internal/pipeline"
	"github.com/nao1215/sitediff/internal/probe"
	"github.com/nao1215/sitediff/internal/render"
	"github.com/spf13/cobra"
)

// addCommonFlags registers the flags of every command that reads a configuration.
func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("config", "c", "",
		"Configuration file path (default: .sitediff.yaml in current or home directory)")
	f.StringP("output-dir", "o", "",
		"Output directory (default: output_<config name>)")
	f.Int("width", config.DefaultViewportWidth, "Desktop viewport width in CSS pixels")
	f.Int("height", config.DefaultViewportHeight, "Desktop viewport height in CSS pixels")
	f.Bool("mobile", false, "Render pages as a phone (iPhone X)")
	f.DurationP("timeout", "t", config.DefaultTimeout, "Time allowed for one page render")
	f.String("metrics-file", "", "Write Prometheus metrics to this file when done")
	f.Bool("no-db", false, "Do not record captures and results in the run ledger")
	f.String("db-dir", config.XDGDataDir(), "Directory of the run ledger")
}

// addBrowserFlags registers the flags of commands that start a browser.
func addBrowserFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("chrome-path", "", "Chrome or Chromium executable (default: search PATH)")
	f.String("proxy", "", "Proxy server for all browser traffic")
	f.String("user-agent", "", "Override the browser User-Agent")
	f.Bool("headful", false, "Show the browser window")
	f.Bool("no-preflight", false, "Do not check that the site answers before starting the browser")
}

// addCrawlFlags registers the flags of commands that crawl.
func addCrawlFlags(cmd *cobra.Command) {
	maxURLs := config.Unbounded
	maxDepth := config.Unbounded
	f := cmd.Flags()
	f.Var(&maxURLs, "max-urls", "Maximum number of pages to capture (integer or \"unbounded\")")
	f.Var(&maxDepth, "max-depth", "Maximum link distance from the website (integer or \"unbounded\")")
	f.StringSlice("ignore", nil, "Regular expression of URLs to skip (repeatable, added to the file's)")
}

// addRenderFlags registers the flags that shape every capture.
func addRenderFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSlice("remove-selector", nil, "CSS selector removed before each screenshot (repeatable, added to the file's)")
}

// addCompareFlags registers the flags of commands that compare.
func addCompareFlags(cmd *cobra.Command) {
	cmd.Flags().String("compare-domain", "", "Host[:port] that replaces the website host when comparing")
}

// buildConfig creates a Config from the config file and the command flags.
//
// A website argument names the run after its host and skips the search for
// .sitediff.yaml; --config still loads a file. Flags override file values
// only when given.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	var cfg *config.Config
	if configPath != "" || len(args) == 0 {
		cfg, err = loadConfig(configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.NewConfig()
	}

	if len(args) > 0 {
		cfg.Website = args[0]
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfig loads the configuration file at path, or the default file.
// If the user explicitly specified a path, a missing file is an error.
// Without one, a missing default file yields NewConfig.
func loadConfig(path string) (*config.Config, error) {
	found := config.FindConfigFile(path)
	switch {
	case found != "":
		cfg, err := config.LoadConfigFile(found)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
		}
		return cfg, nil
	case path != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, path)
	default:
		return config.NewConfig(), nil
	}
}

// applyFlags copies the flags given on the command line onto cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error

	if changed(cmd, "output-dir") {
		if cfg.OutputDir, err = f.GetString("output-dir"); err != nil {
			return err
		}
	}
	if changed(cmd, "width") {
		if cfg.ViewportWidth, err = f.GetInt("width"); err != nil {
			return err
		}
	}
	if changed(cmd, "height") {
		if cfg.ViewportHeight, err = f.GetInt("height"); err != nil {
			return err
		}
	}
	if changed(cmd, "mobile") {
		if cfg.Mobile, err = f.GetBool("mobile"); err != nil {
			return err
		}
	}
	if changed(cmd, "timeout") {
		if cfg.Timeout, err = f.GetDuration("timeout"); err != nil {
			return err
		}
	}

	if cfg.MetricsFile, err = f.GetString("metrics-file"); err != nil {
		return err
	}
	noDB, err := f.GetBool("no-db")
	if err != nil {
		return err
	}
	cfg.SaveToDB = !noDB
	if cfg.DBDir, err = f.GetString("db-dir"); err != nil {
		return err
	}

	if changed(cmd, "max-urls") {
		cfg.MaxURLs = *f.Lookup("max-urls").Value.(*config.Limit)
	}
	if changed(cmd, "max-depth") {
		cfg.MaxDepth = *f.Lookup("max-depth").Value.(*config.Limit)
	}
	if changed(cmd, "ignore") {
		patterns, err := f.GetStringSlice("ignore")
		if err != nil {
			return err
		}
		cfg.IgnorePatterns = append(cfg.IgnorePatterns, patterns...)
	}
	if changed(cmd, "remove-selector") {
		selectors, err := f.GetStringSlice("remove-selector")
		if err != nil {
			return err
		}
		cfg.RemoveSelectors = append(cfg.RemoveSelectors, selectors...)
	}
	if changed(cmd, "compare-domain") {
		if cfg.CompareDomain, err = f.GetString("compare-domain"); err != nil {
			return err
		}
	}

	if changed(cmd, "chrome-path") {
		if cfg.ChromePath, err = f.GetString("chrome-path"); err != nil {
			return err
		}
	}
	if changed(cmd, "proxy") {
		if cfg.Proxy, err = f.GetString("proxy"); err != nil {
			return err
		}
	}
	if changed(cmd, "user-agent") {
		if cfg.UserAgent, err = f.GetString("user-agent"); err != nil {
			return err
		}
	}
	if changed(cmd, "headful") {
		headful, err := f.GetBool("headful")
		if err != nil {
			return err
		}
		cfg.Headless = !headful
	}

	cfg.Verbose = getVerboseFlag(cmd)
	return nil
}

// changed reports whether the flag exists on cmd and was set by the user.
func changed(cmd *cobra.Command, name string) bool {
	flag := cmd.Flags().Lookup(name)
	return flag != nil && flag.Changed
}

// rendererFactory starts the browser of a site. Tests replace it.
var rendererFactory = func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (render.Renderer, error) {
	profile := render.Profile{
		Width:  cfg.ViewportWidth,
		Height: cfg.ViewportHeight,
		Mobile: cfg.Mobile,
	}
	r, err := render.NewChromeRenderer(ctx, profile,
		render.WithNavigationTimeout(cfg.Timeout),
		render.WithUserAgent(cfg.UserAgent),
		render.WithProxy(cfg.Proxy),
		render.WithHeadless(cfg.Headless),
		render.WithChromePath(cfg.ChromePath),
		render.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// preflight checks that target answers through the proxy and with the
// credentials of cfg. Tests replace it.
var preflight = func(ctx context.Context, cfg *config.Config, target string, logger *slog.Logger) error {
	p, err := probe.New(
		probe.WithTimeout(cfg.Timeout),
		probe.WithProxy(cfg.Proxy),
		probe.WithCredentials(cfg.Username, cfg.Password),
		probe.WithUserAgent(cfg.UserAgent),
	)
	if err != nil {
		return err
	}

	result := p.Check(ctx, target)
	switch {
	case result.Status == probe.StatusOK:
		logger.Debug("site reachable", "url", target, "status", result.StatusCode, "duration", result.Duration)
		return nil
	case result.Reachable():
		logger.Warn("site answered with an error status", "url", target, "status", result.StatusCode)
		return nil
	default:
		return result.Err()
	}
}

// checkSite runs the preflight for website. It does nothing with
// --no-preflight.
func checkSite(ctx context.Context, cmd *cobra.Command, cfg *config.Config, website string, logger *slog.Logger) error {
	if skip, _ := cmd.Flags().GetBool("no-preflight"); skip { //nolint:errcheck // missing flag means no skip
		return nil
	}
	if err := preflight(ctx, cfg, website, logger); err != nil {
		return fmt.Errorf("preflight failed (use --no-preflight to skip): %w", err)
	}
	return nil
}

// warnCompareSite runs the preflight for the compare side of website.
// Pages that do not answer are recorded as failed results, so a failed
// check only warns.
func warnCompareSite(ctx context.Context, cmd *cobra.Command, cfg *config.Config, website string, logger *slog.Logger) {
	target, err := model.SubstituteHost(website, cfg.CompareDomain)
	if err != nil {
		return
	}
	if err := checkSite(ctx, cmd, cfg, target, logger); err != nil {
		logger.Warn("compare target did not answer, its pages will be recorded as failed", "url", target, "error", err)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// session holds what the steps of one command invocation share:
// the logger, the metrics recorder, the run ledger and the progress output.
type session struct {
	logger      *slog.Logger
	metrics     *metrics.Recorder
	db          *database.CaptureDB
	out         io.Writer
	metricsFile string
}

// newSession opens the run ledger when cfg asks for it. A ledger that
// cannot be opened is logged and skipped; the run goes on without it.
func newSession(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) *session {
	s := &session{
		logger:      logger,
		metrics:     metrics.NewRecorder(),
		out:         &syncWriter{w: cmd.OutOrStdout()},
		metricsFile: cfg.MetricsFile,
	}

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			logger.Warn("run ledger unavailable", "dir", cfg.DBDir, "error", err)
		} else {
			logger.Debug("run ledger opened", "path", db.Path())
			s.db = db
		}
	}
	return s
}

// stepOptions returns the pipeline step options of the session.
func (s *session) stepOptions() []pipeline.StepOption {
	opts := []pipeline.StepOption{
		pipeline.WithStepLogger(s.logger),
		pipeline.WithStepMetrics(s.metrics),
		pipeline.WithStepProgress(s.out),
	}
	if s.db != nil {
		opts = append(opts, pipeline.WithStore(s.db))
	}
	return opts
}

// close writes the metrics file and closes the ledger.
func (s *session) close() {
	if s.metricsFile != "" {
		if err := s.metrics.WriteTextfile(s.metricsFile); err != nil {
			s.logger.Warn("failed to write metrics file", "path", s.metricsFile, "error", err)
		} else {
			s.logger.Info("metrics written", "path", s.metricsFile)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("failed to close run ledger", "error", err)
		}
	}
}

// closePipeline releases the resources of p.
func closePipeline(p *pipeline.Pipeline, logger *slog.Logger) {
	if err := p.Close(); err != nil {
		logger.Warn("failed to release browser", "error", err)
	}
}

// printRunErrors lists the errors a run recorded without failing.
func printRunErrors(w io.Writer, run *model.Run) {
	if len(run.Errors) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%d warning(s):\n", len(run.Errors))
	for _, err := range run.Errors {
		fmt.Fprintf(w, "  - %v\n", err)
	}
}

// syncWriter serializes writes from concurrent sites.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// Write implements io.Writer.
func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
