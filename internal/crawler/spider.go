package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/nao1215/sitediff/internal/imagediff"
	"github.com/nao1215/sitediff/internal/metrics"
	"github.com/nao1215/sitediff/internal/model"
	"github.com/nao1215/sitediff/internal/render"
)

// Unbounded disables the depth or page limit.
const Unbounded = -1

// ErrInvalidStartURL is returned when the crawl start is not an absolute http(s) URL.
var ErrInvalidStartURL = errors.New("invalid start URL")

// Spider crawls a website breadth-first and captures every page it visits.
//
// A Spider is used for one crawl at a time; Crawl resets its state.
type Spider struct {
	renderer render.Renderer

	// maxDepth limits how far from the start URL the crawl goes.
	// 0 means only the start page. Unbounded disables the limit.
	maxDepth int

	// maxPages caps the manifest length. Unbounded disables the limit.
	maxPages int

	// ignorePatterns exclude URLs by regular expression on the raw URL.
	ignorePatterns []*regexp.Regexp

	// captureDir receives one PNG per manifest entry.
	captureDir string

	// manifestFile receives urls.json after a completed crawl. Empty skips writing.
	manifestFile string

	credentials     render.Credentials
	removeSelectors []string
	logger          *slog.Logger
	metrics         *metrics.Recorder
	progress        io.Writer

	mutex sync.Mutex
	stats Stats
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth. Negative values mean unbounded.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		if depth < 0 {
			depth = Unbounded
		}
		s.maxDepth = depth
	}
}

// WithMaxPages sets the maximum number of manifest entries.
// Negative values mean unbounded; zero captures nothing.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		if maxPages < 0 {
			maxPages = Unbounded
		}
		s.maxPages = maxPages
	}
}

// WithIgnorePatterns excludes URLs matching any of the patterns.
func WithIgnorePatterns(patterns []*regexp.Regexp) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithCaptureDir sets the directory that receives the captures.
func WithCaptureDir(dir string) SpiderOption {
	return func(s *Spider) {
		s.captureDir = dir
	}
}

// WithManifestFile sets the path of urls.json.
func WithManifestFile(path string) SpiderOption {
	return func(s *Spider) {
		s.manifestFile = path
	}
}

// WithCredentials answers basic authentication challenges during the crawl.
func WithCredentials(creds render.Credentials) SpiderOption {
	return func(s *Spider) {
		s.credentials = creds
	}
}

// WithRemoveSelectors removes DOM nodes before every capture.
func WithRemoveSelectors(selectors []string) SpiderOption {
	return func(s *Spider) {
		s.removeSelectors = selectors
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records captures and failures on m.
func WithMetrics(m *metrics.Recorder) SpiderOption {
	return func(s *Spider) {
		s.metrics = m
	}
}

// WithProgress prints one line per captured page to w.
func WithProgress(w io.Writer) SpiderOption {
	return func(s *Spider) {
		s.progress = w
	}
}

// NewSpider creates a Spider rendering through renderer.
// Without options it crawls the whole site into "original".
func NewSpider(renderer render.Renderer, opts ...SpiderOption) *Spider {
	s := &Spider{
		renderer:   renderer,
		maxDepth:   Unbounded,
		maxPages:   Unbounded,
		captureDir: "original",
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Result is the outcome of a crawl.
type Result struct {
	// Manifest lists every visited URL in discovery order, including
	// pages whose render failed.
	Manifest model.Manifest

	// Artifacts holds one capture per successfully rendered page.
	Artifacts []model.CaptureArtifact

	// Failures maps URLs that could not be captured to their error.
	Failures map[string]error
}

// Crawl walks the site from startURL and captures every reachable page
// within the limits. The manifest file is written only when the crawl
// completes; a cancelled crawl returns the partial result and ctx.Err().
func (s *Spider) Crawl(ctx context.Context, startURL string) (*Result, error) {
	start, err := url.Parse(startURL)
	if err != nil || (start.Scheme != "http" && start.Scheme != "https") || start.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStartURL, startURL)
	}
	if err := os.MkdirAll(s.captureDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create capture directory: %w", err)
	}

	s.resetStats()

	result := &Result{
		Manifest: model.Manifest{},
		Failures: make(map[string]error),
	}
	queue := newFrontier()
	visited := newVisitedSet()
	enqueued := newVisitedSet()

	origin := NormalizeURL(start.String())
	queue.push(model.CrawlTarget{URL: origin, Depth: 0})
	enqueued.add(origin)

	for queue.len() > 0 && !s.full(len(result.Manifest)) {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		target, _ := queue.pop()

		if visited.has(target.URL) || !s.withinDepth(target.Depth) || MatchesAny(s.ignorePatterns, target.URL) {
			continue
		}
		visited.add(target.URL)
		result.Manifest = append(result.Manifest, target.URL)

		page, artifact, err := s.capture(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			s.logger.Warn("failed to capture page", "url", target.URL, "depth", target.Depth, "error", err)
			result.Failures[target.URL] = err
			s.metrics.RenderFailed(metrics.PhaseCapture)
			s.recordFailure()
			continue
		}
		result.Artifacts = append(result.Artifacts, artifact)
		s.recordCapture()

		if s.progress != nil {
			fmt.Fprintf(s.progress, "Captured: %s\n", target.URL) //nolint:errcheck // progress output
		}

		if !s.expands(target.Depth) {
			continue
		}

		for _, link := range s.links(page, target) {
			if !IsInternalLink(link, origin) || MatchesAny(s.ignorePatterns, link) {
				continue
			}
			next := NormalizeURL(link)
			if enqueued.has(next) {
				continue
			}
			enqueued.add(next)
			queue.push(model.CrawlTarget{URL: next, Depth: target.Depth + 1})
			s.recordQueued()
		}
	}

	if s.manifestFile != "" {
		if err := result.Manifest.Save(s.manifestFile); err != nil {
			return result, err
		}
	}
	s.metrics.RunFinished(metrics.PhaseCapture, time.Now())

	s.logger.Info("crawl finished",
		"start", origin,
		"pages", len(result.Manifest),
		"captured", len(result.Artifacts),
		"failed", len(result.Failures),
	)
	return result, nil
}

// capture renders target and writes its PNG.
func (s *Spider) capture(ctx context.Context, target model.CrawlTarget) (*render.Page, model.CaptureArtifact, error) {
	page, err := s.renderer.Render(ctx, render.Request{
		URL:             target.URL,
		Credentials:     s.credentials,
		RemoveSelectors: s.removeSelectors,
		WithHTML:        s.expands(target.Depth),
	})
	if err != nil {
		return nil, model.CaptureArtifact{}, err
	}
	s.metrics.ObserveRender(metrics.PhaseCapture, page.Duration)

	path := filepath.Join(s.captureDir, model.FilenameFromURL(target.URL))
	if err := os.WriteFile(path, page.Image, 0600); err != nil {
		return nil, model.CaptureArtifact{}, fmt.Errorf("failed to write capture: %w", err)
	}
	s.metrics.PageCaptured(metrics.PhaseCapture)

	s.logger.Debug("page captured", "url", target.URL, "depth", target.Depth, "path", path)

	return page, model.CaptureArtifact{
		URL:         target.URL,
		ImagePath:   path,
		Fingerprint: imagediff.Fingerprint(page.Image),
		Generation:  model.GenerationBaseline,
		CapturedAt:  time.Now(),
	}, nil
}

// links extracts the links of a rendered page, resolved against its final URL.
func (s *Spider) links(page *render.Page, target model.CrawlTarget) []string {
	base := page.FinalURL
	if base == "" {
		base = target.URL
	}
	links, err := ExtractLinks(page.HTML, base)
	if err != nil {
		s.logger.Warn("failed to extract links", "url", target.URL, "error", err)
		return nil
	}
	return links
}

// full reports whether the manifest reached maxPages.
func (s *Spider) full(n int) bool {
	return s.maxPages != Unbounded && n >= s.maxPages
}

// withinDepth reports whether depth is allowed.
func (s *Spider) withinDepth(depth int) bool {
	return s.maxDepth == Unbounded || depth <= s.maxDepth
}

// expands reports whether links of a page at depth are followed.
func (s *Spider) expands(depth int) bool {
	return s.maxDepth == Unbounded || depth < s.maxDepth
}

// Stats contains crawl statistics.
type Stats struct {
	// PagesCaptured is the number of pages written to disk.
	PagesCaptured int

	// PagesFailed is the number of pages that could not be captured.
	PagesFailed int

	// URLsQueued is the number of unique URLs enqueued, the start URL included.
	URLsQueued int
}

// Stats returns the statistics of the current or last crawl.
func (s *Spider) Stats() Stats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stats
}

func (s *Spider) resetStats() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stats = Stats{URLsQueued: 1}
}

func (s *Spider) recordCapture() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stats.PagesCaptured++
}

func (s *Spider) recordFailure() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stats.PagesFailed++
}

func (s *Spider) recordQueued() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stats.URLsQueued++
}
