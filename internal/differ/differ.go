package differ

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitediff/internal/config"
	"github.com/nao1215/sitediff/internal/imagediff"
	"github.com/nao1215/sitediff/internal/metrics"
	"github.com/nao1215/sitediff/internal/model"
	"github.com/nao1215/sitediff/internal/render"
)

// ErrBaselineMissing is recorded for manifest URLs without a baseline capture.
var ErrBaselineMissing = errors.New("baseline capture missing")

// DefaultDiffImageConcurrency bounds the background diff image writers.
const DefaultDiffImageConcurrency = 4

// Engine compares candidate renders against baseline captures.
type Engine struct {
	renderer render.Renderer
	layout   config.Layout

	compareDomain   string
	credentials     render.Credentials
	removeSelectors []string
	concurrency     int
	logger          *slog.Logger
	metrics         *metrics.Recorder
	progress        io.Writer

	mu           sync.Mutex
	stats        Stats
	artifacts    []model.CaptureArtifact
	missingDiffs map[string]bool // URLs whose diff image could not be written
}

// Option configures an Engine.
type Option func(*Engine)

// WithCompareDomain renders every manifest URL with its host replaced by domain.
func WithCompareDomain(domain string) Option {
	return func(e *Engine) {
		e.compareDomain = domain
	}
}

// WithCredentials answers basic authentication challenges of candidate renders.
func WithCredentials(creds render.Credentials) Option {
	return func(e *Engine) {
		e.credentials = creds
	}
}

// WithRemoveSelectors removes DOM nodes from candidate pages before capture.
func WithRemoveSelectors(selectors []string) Option {
	return func(e *Engine) {
		e.removeSelectors = selectors
	}
}

// WithDiffImageConcurrency bounds the number of diff images written at once.
func WithDiffImageConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records renders, results and diff image failures on m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithProgress prints one line per processed URL to w.
func WithProgress(w io.Writer) Option {
	return func(e *Engine) {
		e.progress = w
	}
}

// New creates an Engine that renders through renderer and reads and
// writes captures in layout.
func New(renderer render.Renderer, layout config.Layout, opts ...Option) *Engine {
	e := &Engine{
		renderer:    renderer,
		layout:      layout,
		concurrency: DefaultDiffImageConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stats contains comparison statistics.
type Stats struct {
	// Compared is the number of URLs with a measured difference.
	Compared int

	// Failed is the number of URLs that could not be measured.
	Failed int

	// DiffImages is the number of diff images written.
	DiffImages int

	// DiffImageFailures is the number of diff images that could not be written.
	DiffImageFailures int
}

// Stats returns the statistics of the current or last run.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Artifacts returns the candidate captures of the last run.
func (e *Engine) Artifacts() []model.CaptureArtifact {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.CaptureArtifact, len(e.artifacts))
	copy(out, e.artifacts)
	return out
}

// CandidateURL returns raw with its host replaced by domain, keeping
// scheme, path, query and fragment. An empty domain returns raw.
func CandidateURL(raw, domain string) (string, error) {
	return model.SubstituteHost(raw, domain)
}

// Run compares every manifest URL and returns the results sorted by
// difference, largest first, with failed URLs last in manifest order.
// Background diff images are finished before Run returns.
// An error is returned only for setup failures or cancellation; the
// results gathered until then are returned with it.
func (e *Engine) Run(ctx context.Context, manifest model.Manifest) ([]model.DiffResult, error) {
	if e.renderer == nil {
		return nil, errors.New("differ: no renderer")
	}
	for _, dir := range []string{e.layout.CompareDir(), e.layout.DifferenceDir()} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	e.mu.Lock()
	e.stats = Stats{}
	e.artifacts = nil
	e.missingDiffs = make(map[string]bool)
	e.mu.Unlock()

	var tasks errgroup.Group
	tasks.SetLimit(e.concurrency)

	results := make([]model.DiffResult, 0, len(manifest))
	var runErr error

	for _, u := range manifest {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		result, err := e.compare(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			result = model.NewFailedResult(u, err)
			e.logger.Warn("failed to compare page", "url", u, "error", err)
			e.record(func(s *Stats) { s.Failed++ })
		} else {
			e.record(func(s *Stats) { s.Compared++ })
			if result.HasDiffImage() {
				e.scheduleDiffImage(&tasks, u)
			}
		}

		e.metrics.DiffResult(result)
		e.report(result)
		results = append(results, result)
	}

	// Tasks never return errors; failures are logged and counted.
	_ = tasks.Wait()
	e.dropMissingDiffImages(results)

	model.SortResults(results)
	e.metrics.RunFinished(metrics.PhaseCompare, time.Now())

	stats := e.Stats()
	e.logger.Info("comparison finished",
		"pages", len(results),
		"compared", stats.Compared,
		"failed", stats.Failed,
		"diff_images", stats.DiffImages,
		"diff_image_failures", stats.DiffImageFailures,
	)
	return results, runErr
}

// compare renders the candidate of u and measures it against the baseline.
func (e *Engine) compare(ctx context.Context, u string) (model.DiffResult, error) {
	candidateURL, err := CandidateURL(u, e.compareDomain)
	if err != nil {
		return model.DiffResult{}, err
	}

	originalPath := e.layout.OriginalImage(u)
	baseline, err := os.ReadFile(filepath.Clean(originalPath))
	if err != nil {
		if os.IsNotExist(err) {
			return model.DiffResult{}, fmt.Errorf("%w: %s", ErrBaselineMissing, e.layout.Rel(originalPath))
		}
		return model.DiffResult{}, fmt.Errorf("failed to read baseline: %w", err)
	}

	page, err := e.renderer.Render(ctx, render.Request{
		URL:             candidateURL,
		Credentials:     e.credentials,
		RemoveSelectors: e.removeSelectors,
	})
	if err != nil {
		e.metrics.RenderFailed(metrics.PhaseCompare)
		return model.DiffResult{}, err
	}
	e.metrics.ObserveRender(metrics.PhaseCompare, page.Duration)

	comparePath := e.layout.CompareImage(u)
	if err := os.WriteFile(comparePath, page.Image, 0600); err != nil {
		e.metrics.RenderFailed(metrics.PhaseCompare)
		return model.DiffResult{}, fmt.Errorf("failed to write capture: %w", err)
	}
	e.metrics.PageCaptured(metrics.PhaseCompare)
	e.addArtifact(model.CaptureArtifact{
		URL:         u,
		ImagePath:   comparePath,
		Fingerprint: imagediff.Fingerprint(page.Image),
		Generation:  model.GenerationCandidate,
		CapturedAt:  time.Now(),
	})

	res, err := imagediff.CompareBytes(baseline, page.Image)
	if err != nil {
		return model.DiffResult{}, fmt.Errorf("failed to compare captures: %w", err)
	}

	result := model.NewScoredResult(u, res.Percent(),
		e.layout.Rel(originalPath),
		e.layout.Rel(comparePath),
		e.layout.Rel(e.layout.DiffImage(u)),
	)
	result.CandidateURL = candidateURL
	return result, nil
}

// scheduleDiffImage writes the diff image of u in the background.
func (e *Engine) scheduleDiffImage(tasks *errgroup.Group, u string) {
	original := e.layout.OriginalImage(u)
	candidate := e.layout.CompareImage(u)
	out := e.layout.DiffImage(u)

	// An image left by an earlier run must not stand in for a failed write.
	if err := os.Remove(out); err != nil && !errors.Is(err, fs.ErrNotExist) {
		e.logger.Debug("failed to remove previous diff image", "path", out, "error", err)
	}

	tasks.Go(func() error {
		if err := imagediff.WriteDifference(original, candidate, out); err != nil {
			e.logger.Error("failed to write diff image", "url", u, "path", out, "error", err)
			e.metrics.DiffImageFailed()
			e.record(func(s *Stats) { s.DiffImageFailures++ })
			e.mu.Lock()
			e.missingDiffs[u] = true
			e.mu.Unlock()
			return nil
		}
		e.logger.Debug("diff image written", "url", u, "path", out)
		e.record(func(s *Stats) { s.DiffImages++ })
		return nil
	})
}

// dropMissingDiffImages clears the diff image path of results whose image
// could not be written.
func (e *Engine) dropMissingDiffImages(results []model.DiffResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range results {
		if e.missingDiffs[results[i].URL] {
			results[i].DiffImagePath = ""
		}
	}
}

// report prints the progress line of a result.
func (e *Engine) report(r model.DiffResult) {
	if e.progress == nil {
		return
	}
	if r.Failed() {
		fmt.Fprintf(e.progress, "Failed: %s (%s)\n", r.URL, r.Error) //nolint:errcheck // progress output
		return
	}
	fmt.Fprintf(e.progress, "Processed: %s (difference: %.2f%%)\n", r.URL, r.Percent()) //nolint:errcheck // progress output
}

func (e *Engine) record(update func(*Stats)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	update(&e.stats)
}

func (e *Engine) addArtifact(a model.CaptureArtifact) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.artifacts = append(e.artifacts, a)
}
