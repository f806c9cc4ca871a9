package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nao1215/sitediff/internal/config"
	"github.com/nao1215/sitediff/internal/crawler"
	"github.com/nao1215/sitediff/internal/database"
	"github.com/nao1215/sitediff/internal/differ"
	"github.com/nao1215/sitediff/internal/metrics"
	"github.com/nao1215/sitediff/internal/model"
	"github.com/nao1215/sitediff/internal/render"
	"github.com/nao1215/sitediff/internal/report"
)

// ErrNothingCaptured is returned by CaptureStep when not a single page
// could be rendered, which usually means the website is unreachable.
var ErrNothingCaptured = errors.New("no page could be captured")

// Store records captures and results in the run ledger.
// *database.CaptureDB implements it.
type Store interface {
	UpsertSite(ctx context.Context, site database.SiteRecord) error
	ReplaceCaptures(ctx context.Context, site string, gen model.Generation, artifacts []model.CaptureArtifact) error
	SaveDiffResults(ctx context.Context, site string, results []model.DiffResult) error
}

// stepOptions holds the options shared by all steps.
type stepOptions struct {
	logger   *slog.Logger
	metrics  *metrics.Recorder
	progress io.Writer
	store    Store
}

// StepOption configures a step.
type StepOption func(*stepOptions)

// WithStepLogger sets the logger of a step.
func WithStepLogger(logger *slog.Logger) StepOption {
	return func(o *stepOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStepMetrics records renders and results on m.
func WithStepMetrics(m *metrics.Recorder) StepOption {
	return func(o *stepOptions) {
		o.metrics = m
	}
}

// WithStepProgress prints one line per processed URL to w.
func WithStepProgress(w io.Writer) StepOption {
	return func(o *stepOptions) {
		o.progress = w
	}
}

// WithStore records captures and results in store. Ledger failures are
// logged and recorded in the run but never fail the step.
func WithStore(store Store) StepOption {
	return func(o *stepOptions) {
		o.store = store
	}
}

func newStepOptions(opts []StepOption) stepOptions {
	o := stepOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// credentials returns the basic authentication credentials of cfg.
func credentials(cfg *config.Config) render.Credentials {
	return render.Credentials{Username: cfg.Username, Password: cfg.Password}
}

// CaptureStep crawls the website and captures the baseline generation.
type CaptureStep struct {
	renderer render.Renderer
	cfg      *config.Config
	stepOptions
}

// NewCaptureStep creates a capture step rendering through renderer.
func NewCaptureStep(renderer render.Renderer, cfg *config.Config, opts ...StepOption) *CaptureStep {
	return &CaptureStep{
		renderer:    renderer,
		cfg:         cfg,
		stepOptions: newStepOptions(opts),
	}
}

// Name returns the step name.
func (s *CaptureStep) Name() string {
	return "capture"
}

// Do crawls cfg.Website, writes the baseline captures and urls.json and
// fills run.Manifest and run.Baseline.
func (s *CaptureStep) Do(ctx context.Context, run *model.Run) error {
	layout := s.cfg.Layout()
	patterns, err := s.cfg.CompileIgnorePatterns()
	if err != nil {
		return err
	}

	spider := crawler.NewSpider(s.renderer,
		crawler.WithMaxDepth(s.cfg.MaxDepth.Int()),
		crawler.WithMaxPages(s.cfg.MaxURLs.Int()),
		crawler.WithIgnorePatterns(patterns),
		crawler.WithCaptureDir(layout.OriginalDir()),
		crawler.WithManifestFile(layout.ManifestFile()),
		crawler.WithCredentials(credentials(s.cfg)),
		crawler.WithRemoveSelectors(s.cfg.RemoveSelectors),
		crawler.WithLogger(s.logger),
		crawler.WithMetrics(s.metrics),
		crawler.WithProgress(s.progress),
	)

	result, err := spider.Crawl(ctx, s.cfg.Website)
	if result != nil {
		run.Manifest = result.Manifest
		run.Baseline = result.Artifacts
	}
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	if len(result.Artifacts) == 0 {
		return fmt.Errorf("%w from %s", ErrNothingCaptured, s.cfg.Website)
	}

	if s.store != nil {
		s.record(run, s.store.UpsertSite(ctx, database.SiteRecord{
			Name:          run.Site,
			Website:       s.cfg.Website,
			CompareDomain: s.cfg.CompareDomain,
		}))
		s.record(run, s.store.ReplaceCaptures(ctx, run.Site, model.GenerationBaseline, result.Artifacts))
	}
	return nil
}

// CompareStep renders the candidate generation and writes report.json.
type CompareStep struct {
	renderer render.Renderer
	cfg      *config.Config
	stepOptions
}

// NewCompareStep creates a compare step rendering through renderer.
func NewCompareStep(renderer render.Renderer, cfg *config.Config, opts ...StepOption) *CompareStep {
	return &CompareStep{
		renderer:    renderer,
		cfg:         cfg,
		stepOptions: newStepOptions(opts),
	}
}

// Name returns the step name.
func (s *CompareStep) Name() string {
	return "compare"
}

// Do compares every manifest URL against its baseline. Without a capture
// step before it, the manifest is read from urls.json. report.json is
// written only when every URL was processed.
func (s *CompareStep) Do(ctx context.Context, run *model.Run) error {
	layout := s.cfg.Layout()

	if run.Manifest == nil {
		manifest, err := model.LoadManifest(layout.ManifestFile())
		if err != nil {
			return err
		}
		run.Manifest = manifest
	}

	engine := differ.New(s.renderer, layout,
		differ.WithCompareDomain(s.cfg.CompareDomain),
		differ.WithCredentials(credentials(s.cfg)),
		differ.WithRemoveSelectors(s.cfg.RemoveSelectors),
		differ.WithDiffImageConcurrency(s.cfg.DiffImageConcurrency),
		differ.WithLogger(s.logger),
		differ.WithMetrics(s.metrics),
		differ.WithProgress(s.progress),
	)

	results, err := engine.Run(ctx, run.Manifest)
	run.Candidate = engine.Artifacts()
	if err != nil {
		return fmt.Errorf("compare failed: %w", err)
	}

	if err := model.SaveReport(layout.ReportJSON(), results); err != nil {
		return err
	}

	rep := model.NewReport(run.Site, results)
	rep.Website = s.cfg.Website
	rep.CompareDomain = s.cfg.CompareDomain
	run.Report = rep

	if s.store != nil {
		s.record(run, s.store.UpsertSite(ctx, database.SiteRecord{
			Name:          run.Site,
			Website:       s.cfg.Website,
			CompareDomain: s.cfg.CompareDomain,
		}))
		s.record(run, s.store.ReplaceCaptures(ctx, run.Site, model.GenerationCandidate, run.Candidate))
		s.record(run, s.store.SaveDiffResults(ctx, run.Site, rep.Results))
	}
	return nil
}

// record logs a ledger failure and keeps it in the run.
func (o stepOptions) record(run *model.Run, err error) {
	if err == nil {
		return
	}
	o.logger.Warn("failed to update run ledger", "site", run.Site, "error", err)
	run.AddError(err)
}

// ReportStep writes report files next to report.json.
type ReportStep struct {
	layout  config.Layout
	formats []report.Format
	printer render.Printer
	stepOptions
}

// ReportStepOption configures a ReportStep.
type ReportStepOption func(*ReportStep)

// WithPrinter enables the PDF format.
func WithPrinter(p render.Printer) ReportStepOption {
	return func(s *ReportStep) {
		s.printer = p
	}
}

// WithFormats sets the written formats. Text is ignored; it has no file.
func WithFormats(formats ...report.Format) ReportStepOption {
	return func(s *ReportStep) {
		s.formats = formats
	}
}

// WithReportStepOptions applies shared step options.
func WithReportStepOptions(opts ...StepOption) ReportStepOption {
	return func(s *ReportStep) {
		for _, opt := range opts {
			opt(&s.stepOptions)
		}
	}
}

// NewReportStep creates a report step writing into layout. By default it
// writes report.md and report.html.
func NewReportStep(layout config.Layout, opts ...ReportStepOption) *ReportStep {
	s := &ReportStep{
		layout:      layout,
		formats:     []report.Format{report.FormatMarkdown, report.FormatHTML},
		stepOptions: newStepOptions(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do writes the configured formats. Without a compare step before it,
// the report is read from report.json.
func (s *ReportStep) Do(ctx context.Context, run *model.Run) error {
	if run.Report == nil {
		rep, err := model.LoadReport(s.layout.ReportJSON())
		if err != nil {
			return err
		}
		rep.Site = run.Site
		rep.Website = run.Website
		run.Report = rep
	}

	for _, f := range s.formats {
		path, err := s.write(ctx, f, run.Report)
		if err != nil {
			return fmt.Errorf("failed to write %s report: %w", f, err)
		}
		if path != "" {
			s.logger.Info("report written", "site", run.Site, "format", f.String(), "path", path)
		}
	}
	return nil
}

// write renders one format and returns the written path.
func (s *ReportStep) write(ctx context.Context, f report.Format, rep *model.Report) (string, error) {
	switch f {
	case report.FormatJSON:
		return s.layout.ReportJSON(), model.SaveReport(s.layout.ReportJSON(), rep.Results)
	case report.FormatMarkdown:
		path := s.layout.ReportMarkdown()
		return path, writeFile(path, func(w io.Writer) error {
			_, err := report.NewMarkdownWriter(w).Write(rep)
			return err
		})
	case report.FormatHTML:
		path := s.layout.ReportHTML()
		return path, writeFile(path, func(w io.Writer) error {
			_, err := report.NewHTMLWriter(w, report.WithImageRoot(s.layout.Root)).Write(rep)
			return err
		})
	case report.FormatPDF:
		if s.printer == nil {
			return "", errors.New("PDF output needs a browser")
		}
		pdf, err := report.PDF(ctx, s.printer, rep, s.layout.Root)
		if err != nil {
			return "", err
		}
		path := s.layout.ReportPDF()
		return path, os.WriteFile(path, pdf, 0600)
	default:
		return "", nil
	}
}

// writeFile creates path and passes it to fn.
func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// NewSitePipeline returns the capture, compare and report pipeline of cfg.
// The renderer is shared by all steps and released by Pipeline.Close.
// PDF output is available when the renderer can print.
func NewSitePipeline(renderer render.Renderer, cfg *config.Config, formats []report.Format, stepOpts []StepOption, opts ...Option) *Pipeline {
	p := New(append(opts, WithCloser(renderer))...)

	reportOpts := []ReportStepOption{WithReportStepOptions(stepOpts...)}
	if len(formats) > 0 {
		reportOpts = append(reportOpts, WithFormats(formats...))
	}
	if printer, ok := renderer.(render.Printer); ok {
		reportOpts = append(reportOpts, WithPrinter(printer))
	}

	p.AddSteps(
		NewCaptureStep(renderer, cfg, stepOpts...),
		NewCompareStep(renderer, cfg, stepOpts...),
		NewReportStep(cfg.Layout(), reportOpts...),
	)
	return p
}
