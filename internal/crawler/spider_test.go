package crawler

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/nao1215/sitediff/internal/metrics"
	"github.com/nao1215/sitediff/internal/model"
	"github.com/nao1215/sitediff/internal/render"
	"github.com/nao1215/sitediff/internal/render/rendertest"
)

var white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// page returns a canned page linking to hrefs.
func page(hrefs ...string) rendertest.Page {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, h := range hrefs {
		b.WriteString(`<a href="` + h + `">link</a>`)
	}
	b.WriteString("</body></html>")
	return rendertest.Page{HTML: b.String(), Color: white}
}

// newTestSpider returns a spider writing into a temporary directory.
func newTestSpider(t *testing.T, r render.Renderer, opts ...SpiderOption) (*Spider, string) {
	t.Helper()
	dir := t.TempDir()
	base := []SpiderOption{
		WithCaptureDir(filepath.Join(dir, "original")),
		WithManifestFile(filepath.Join(dir, "urls.json")),
	}
	return NewSpider(r, append(base, opts...)...), dir
}

func equalManifest(t *testing.T, got model.Manifest, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("manifest = %v, expected %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("manifest[%d] = %q, expected %q", i, got[i], want[i])
		}
	}
}

// TestSpiderCrawl tests the breadth-first crawl.
func TestSpiderCrawl(t *testing.T) {
	t.Parallel()

	t.Run("depth one keeps internal links only", func(t *testing.T) {
		t.Parallel()

		r := rendertest.New(map[string]rendertest.Page{
			"https://example.com/":      page("/about", "https://other.com/"),
			"https://example.com/about": page("/deep"),
		})
		s, dir := newTestSpider(t, r, WithMaxDepth(1))

		result, err := s.Crawl(context.Background(), "https://example.com/")
		if err != nil {
			t.Fatalf("Crawl() error: %v", err)
		}

		equalManifest(t, result.Manifest, "https://example.com/", "https://example.com/about")
		for _, u := range r.URLs() {
			if strings.Contains(u, "other.com") || strings.HasSuffix(u, "/deep") {
				t.Errorf("unexpected render of %s", u)
			}
		}

		for _, name := range []string{"_.png", "_about.png"} {
			if _, err := os.Stat(filepath.Join(dir, "original", name)); err != nil {
				t.Errorf("expected capture %s: %v", name, err)
			}
		}

		saved, err := model.LoadManifest(filepath.Join(dir, "urls.json"))
		if err != nil {
			t.Fatalf("manifest not written: %v", err)
		}
		equalManifest(t, saved, result.Manifest...)
	})

	t.Run("breadth first order", func(t *testing.T) {
		t.Parallel()

		r := rendertest.New(map[string]rendertest.Page{
			"https://example.com/":    page("/a", "/b"),
			"https://example.com/a":   page("/a/1"),
			"https://example.com/b":   page("/b/1"),
			"https://example.com/a/1": page(),
			"https://example.com/b/1": page(),
		})
		s, _ := newTestSpider(t, r)

		result, err := s.Crawl(context.Background(), "https://example.com")
		if err != nil {
			t.Fatal(err)
		}
		equalManifest(t, result.Manifest,
			"https://example.com/",
			"https://example.com/a",
			"https://example.com/b",
			"https://example.com/a/1",
			"https://example.com/b/1",
		)
	})

	t.Run("max pages bounds the manifest", func(t *testing.T) {
		t.Parallel()

		r := rendertest.New(map[string]rendertest.Page{
			"https://example.com/":  page("/1", "/2", "/3"),
			"https://example.com/1": page(),
			"https://example.com/2": page(),
			"https://example.com/3": page(),
		})
		s, _ := newTestSpider(t, r, WithMaxPages(2))

		result, err := s.Crawl(context.Background(), "https://example.com/")
		if err != nil {
			t.Fatal(err)
		}
		equalManifest(t, result.Manifest, "https://example.com/", "https://example.com/1")
		if len(r.Requests()) != 2 {
			t.Errorf("expected 2 renders, got %d", len(r.Requests()))
		}
	})

	t.Run("page limit zero captures nothing", func(t *testing.T) {
		t.Parallel()

		r := rendertest.New(map[string]rendertest.Page{
			"https://example.com/":  page("/a", "/b"),
			"https://example.com/a": page(),
			"https://example.com/b": page(),
		})
		s, dir := newTestSpider(t, r, WithMaxPages(0))

		result, err := s.Crawl(context.Background(), "https://example.com/")
		if err != nil {
			t.Fatal(err)
		}
		equalManifest(t, result.Manifest)
		if len(r.Requests()) != 0 {
			t.Errorf("expected no renders, got %d", len(r.Requests()))
		}
		manifest, err := model.LoadManifest(filepath.Join(dir, "urls.json"))
		if err != nil {
			t.Fatal(err)
		}
		if len(manifest) != 0 {
			t.Errorf("expected an empty manifest file, got %v", manifest)
		}
	})

	t.Run("depth zero captures only the start page", func(t *testing.T) {
		t.Parallel()

		r := rendertest.New(map[string]rendertest.Page{
			"https://example.com/": page("/a"),
		})
		s, _ := newTestSpider(t, r, WithMaxDepth(0))

		result, err := s.Crawl(context.Background(), "https://example.com/")
		if err != nil {
			t.Fatal(err)
		}
		equalManifest(t, result.Manifest, "https://example.com/")
		if r.Requests()[0].WithHTML {
			t.Error("HTML must not be requested at the depth limit")
		}
	})

	t.Run("cycles and fragments are visited once", func(t *testing.T) {
		t.Parallel()

		r := rendertest.New(map[string]rendertest.Page{
			"https://example.com/":  page("/a", "/a#top", "/", "HTTPS://EXAMPLE.COM/a"),
			"https://example.com/a": page("/", "/a"),
		})
		s, _ := newTestSpider(t, r)

		result, err := s.Crawl(context.Background(), "https://example.com/")
		if err != nil {
			t.Fatal(err)
		}
		equalManifest(t, result.Manifest, "https://example.com/", "https://example.com/a")
		if len(r.Requests()) != 2 {
			t.Errorf("expected 2 renders, got %v", r.URLs())
		}
	})

	t.Run("ignore patterns exclude links", func(t *testing.T) {
		t.Parallel()

		r := rendertest.New(map[string]rendertest.Page{
			"https://example.com/":     page("/docs", "/file.pdf", "/admin/x"),
			"https://example.com/docs": page(),
		})
		s, _ := newTestSpider(t, r, WithIgnorePatterns([]*regexp.Regexp{
			regexp.MustCompile(`\.pdf$`),
			regexp.MustCompile(`/admin/`),
		}))

		result, err := s.Crawl(context.Background(), "https://example.com/")
		if err != nil {
			t.Fatal(err)
		}
		equalManifest(t, result.Manifest, "https://example.com/", "https://example.com/docs")
	})

	t.Run("ignored start url captures nothing", func(t *testing.T) {
		t.Parallel()

		r := rendertest.New(map[string]rendertest.Page{"https://example.com/": page()})
		s, _ := newTestSpider(t, r, WithIgnorePatterns([]*regexp.Regexp{regexp.MustCompile(`example`)}))

		result, err := s.Crawl(context.Background(), "https://example.com/")
		if err != nil {
			t.Fatal(err)
		}
		if len(result.Manifest) != 0 || len(r.Requests()) != 0 {
			t.Errorf("expected empty crawl, got %v", result.Manifest)
		}
	})

	t.Run("render failure is skipped", func(t *testing.T) {
		t.Parallel()

		r := rendertest.New(map[string]rendertest.Page{
			"https://example.com/":       page("/broken", "/ok"),
			"https://example.com/broken": {Err: render.ErrTimeout},
			"https://example.com/ok":     page(),
		})
		s, dir := newTestSpider(t, r)

		result, err := s.Crawl(context.Background(), "https://example.com/")
		if err != nil {
			t.Fatal(err)
		}
		equalManifest(t, result.Manifest, "https://example.com/", "https://example.com/broken", "https://example.com/ok")
		if len(result.Artifacts) != 2 {
			t.Errorf("expected 2 artifacts, got %d", len(result.Artifacts))
		}
		if !errors.Is(result.Failures["https://example.com/broken"], render.ErrTimeout) {
			t.Errorf("expected recorded failure, got %v", result.Failures)
		}
		if _, err := os.Stat(filepath.Join(dir, "original", "_broken.png")); !os.IsNotExist(err) {
			t.Error("failed page must not leave a capture")
		}

		stats := s.Stats()
		if stats.PagesCaptured != 2 || stats.PagesFailed != 1 || stats.URLsQueued != 3 {
			t.Errorf("unexpected stats %+v", stats)
		}
	})

	t.Run("artifacts carry fingerprints", func(t *testing.T) {
		t.Parallel()

		r := rendertest.New(map[string]rendertest.Page{"https://example.com/": page()})
		s, _ := newTestSpider(t, r)

		result, err := s.Crawl(context.Background(), "https://example.com/")
		if err != nil {
			t.Fatal(err)
		}
		a := result.Artifacts[0]
		if a.Fingerprint == "" || a.Generation != model.GenerationBaseline {
			t.Errorf("unexpected artifact %+v", a)
		}
	})
}

// TestSpiderCrawlCancelled tests that a cancelled crawl writes no manifest.
func TestSpiderCrawlCancelled(t *testing.T) {
	t.Parallel()

	r := rendertest.New(map[string]rendertest.Page{"https://example.com/": page()})
	s, dir := newTestSpider(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Crawl(ctx, "https://example.com/")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "urls.json")); !os.IsNotExist(err) {
		t.Error("manifest must not be written for a cancelled crawl")
	}
}

// TestSpiderCrawlInvalidStart tests start URL validation.
func TestSpiderCrawlInvalidStart(t *testing.T) {
	t.Parallel()

	for _, start := range []string{"", "/about", "ftp://example.com/", "::"} {
		s, _ := newTestSpider(t, rendertest.New(nil))
		if _, err := s.Crawl(context.Background(), start); !errors.Is(err, ErrInvalidStartURL) {
			t.Errorf("Crawl(%q): expected ErrInvalidStartURL, got %v", start, err)
		}
	}
}

// TestSpiderOptions tests option handling.
func TestSpiderOptions(t *testing.T) {
	t.Parallel()

	var progress bytes.Buffer
	m := metrics.NewRecorder()
	s := NewSpider(rendertest.New(nil),
		WithMaxDepth(-5),
		WithMaxPages(-1),
		WithCredentials(render.Credentials{Username: "u", Password: "p"}),
		WithRemoveSelectors([]string{".ad"}),
		WithLogger(nil),
		WithMetrics(m),
		WithProgress(&progress),
	)

	if s.maxDepth != Unbounded || s.maxPages != Unbounded {
		t.Errorf("expected unbounded limits, got depth=%d pages=%d", s.maxDepth, s.maxPages)
	}
	if s.logger == nil {
		t.Error("nil logger must keep the default")
	}
	if s.credentials.Username != "u" || len(s.removeSelectors) != 1 || s.metrics != m {
		t.Error("options not applied")
	}
}

// TestSpiderRequestOptions tests that credentials and selectors reach the renderer.
func TestSpiderRequestOptions(t *testing.T) {
	t.Parallel()

	var progress bytes.Buffer
	r := rendertest.New(map[string]rendertest.Page{"https://example.com/": page()})
	s, _ := newTestSpider(t, r,
		WithCredentials(render.Credentials{Username: "u", Password: "p"}),
		WithRemoveSelectors([]string{".cookie"}),
		WithProgress(&progress),
	)

	if _, err := s.Crawl(context.Background(), "https://example.com/"); err != nil {
		t.Fatal(err)
	}

	req := r.Requests()[0]
	if req.Credentials.Password != "p" || len(req.RemoveSelectors) != 1 {
		t.Errorf("unexpected request %+v", req)
	}
	if progress.String() != "Captured: https://example.com/\n" {
		t.Errorf("unexpected progress %q", progress.String())
	}
}
