package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitediff/internal/config"
	"github.com/nao1215/sitediff/internal/model"
	"github.com/nao1215/sitediff/internal/report"
	"github.com/spf13/cobra"
)

// writeConfig writes a configuration file named name into dir.
func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// parsed returns cmd with args parsed as flags.
func parsed(t *testing.T, cmd *cobra.Command, args ...string) *cobra.Command {
	t.Helper()
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return cmd
}

// TestBuildConfig tests merging of config files, arguments and flags.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("website argument", func(t *testing.T) {
		t.Parallel()
		cmd := parsed(t, NewCaptureCmd())

		cfg, err := buildConfig(cmd, []string{"https://www.example.com/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Website != "https://www.example.com/" {
			t.Errorf("unexpected website %q", cfg.Website)
		}
		if cfg.SiteName() != "www.example.com" {
			t.Errorf("expected site named after the host, got %q", cfg.SiteName())
		}
		if !cfg.SaveToDB {
			t.Error("expected the ledger to be enabled by default")
		}
		if cfg.ViewportWidth != config.DefaultViewportWidth || cfg.Timeout != config.DefaultTimeout {
			t.Error("expected defaults to be kept")
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected validation error: %v", err)
		}
	})

	t.Run("config file with flag overrides", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := writeConfig(t, dir, "shop.yaml", `
website: https://shop.example.com
viewportWidth: 1280
maxUrls: 10
maxDepth: 2
timeout: 45000
ignorePatterns:
  - "/admin/"
`)
		cmd := parsed(t, NewCaptureCmd(),
			"-c", path,
			"--max-urls", "3",
			"--timeout", "5s",
			"--ignore", `\.pdf$`,
			"--remove-selector", "#banner",
			"--no-db",
			"--headful",
		)

		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.SiteName() != "shop" {
			t.Errorf("expected site 'shop', got %q", cfg.SiteName())
		}
		if cfg.ViewportWidth != 1280 {
			t.Errorf("expected width from file, got %d", cfg.ViewportWidth)
		}
		if cfg.MaxURLs != 3 {
			t.Errorf("expected --max-urls to win, got %s", cfg.MaxURLs)
		}
		if cfg.MaxDepth != 2 {
			t.Errorf("expected maxDepth from file, got %s", cfg.MaxDepth)
		}
		if cfg.Timeout != 5*time.Second {
			t.Errorf("expected --timeout to win, got %s", cfg.Timeout)
		}
		if len(cfg.IgnorePatterns) != 2 || cfg.IgnorePatterns[1] != `\.pdf$` {
			t.Errorf("expected --ignore to be appended, got %v", cfg.IgnorePatterns)
		}
		if len(cfg.RemoveSelectors) != 1 || cfg.RemoveSelectors[0] != "#banner" {
			t.Errorf("unexpected selectors %v", cfg.RemoveSelectors)
		}
		if cfg.SaveToDB {
			t.Error("expected --no-db to disable the ledger")
		}
		if cfg.Headless {
			t.Error("expected --headful to disable headless mode")
		}
		if got := cfg.Layout().Root; got != "output_shop" {
			t.Errorf("expected output_shop, got %q", got)
		}
	})

	t.Run("website argument overrides file", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, t.TempDir(), "blog.yaml", "website: https://blog.example.com\n")
		cmd := parsed(t, NewCompareCmd(), "-c", path, "--compare-domain", "staging.example.com", "-o", "out")

		cfg, err := buildConfig(cmd, []string{"https://blog.example.com/en/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Website != "https://blog.example.com/en/" {
			t.Errorf("unexpected website %q", cfg.Website)
		}
		if cfg.SiteName() != "blog" {
			t.Errorf("expected the file to name the site, got %q", cfg.SiteName())
		}
		if cfg.CompareDomain != "staging.example.com" {
			t.Errorf("unexpected compare domain %q", cfg.CompareDomain)
		}
		if cfg.Layout().Root != "out" {
			t.Errorf("expected --output-dir to win, got %q", cfg.Layout().Root)
		}
	})

	t.Run("flags not given keep file values", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, t.TempDir(), "m.yaml", "website: https://m.example.com\nmobile: true\nviewportHeight: 900\n")
		cmd := parsed(t, NewCaptureCmd(), "-c", path)

		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !cfg.Mobile || cfg.ViewportHeight != 900 {
			t.Errorf("expected file values, got mobile=%v height=%d", cfg.Mobile, cfg.ViewportHeight)
		}
	})

	t.Run("missing explicit config", func(t *testing.T) {
		t.Parallel()
		cmd := parsed(t, NewCaptureCmd(), "-c", filepath.Join(t.TempDir(), "missing.yaml"))

		_, err := buildConfig(cmd, nil)
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid limit flag", func(t *testing.T) {
		t.Parallel()
		if err := NewCaptureCmd().ParseFlags([]string{"--max-urls", "lots"}); err == nil {
			t.Error("expected an invalid limit to be rejected")
		}
	})

	t.Run("unbounded limit flag", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, t.TempDir(), "u.yaml", "website: https://u.example.com\nmaxDepth: 1\n")
		cmd := parsed(t, NewCaptureCmd(), "-c", path, "--max-depth", "unbounded")

		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !cfg.MaxDepth.IsUnbounded() {
			t.Errorf("expected unbounded depth, got %s", cfg.MaxDepth)
		}
	})
}

// TestBuildRunConfigs tests loading several configuration files.
func TestBuildRunConfigs(t *testing.T) {
	t.Parallel()

	t.Run("loads every file", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		a := writeConfig(t, dir, "a.yaml", "website: https://a.example.com\n")
		b := writeConfig(t, dir, "b.yaml", "website: https://b.example.com\n")

		cfgs, err := buildRunConfigs(parsed(t, NewRunCmd(), "--mobile"), []string{a, b})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cfgs) != 2 {
			t.Fatalf("expected 2 configs, got %d", len(cfgs))
		}
		if cfgs[0].SiteName() != "a" || cfgs[1].SiteName() != "b" {
			t.Errorf("unexpected names %q, %q", cfgs[0].SiteName(), cfgs[1].SiteName())
		}
		for _, cfg := range cfgs {
			if !cfg.Mobile {
				t.Errorf("expected --mobile to apply to %s", cfg.SiteName())
			}
		}
	})

	t.Run("rejects shared output directory", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		a := writeConfig(t, dir, "a.yaml", "website: https://a.example.com\n")
		b := writeConfig(t, dir, "b.yaml", "website: https://b.example.com\n")

		_, err := buildRunConfigs(parsed(t, NewRunCmd(), "-o", "same"), []string{a, b})
		if err == nil || !strings.Contains(err.Error(), "both write to") {
			t.Errorf("expected shared output error, got %v", err)
		}
	})

	t.Run("rejects invalid file", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, t.TempDir(), "bad.yaml", "website: ftp://example.com\n")

		_, err := buildRunConfigs(parsed(t, NewRunCmd()), []string{path})
		if !errors.Is(err, config.ErrInvalidWebsite) {
			t.Errorf("expected ErrInvalidWebsite, got %v", err)
		}
	})
}

// TestParseFailOn tests the --fail-on values.
func TestParseFailOn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    model.Bucket
		wantErr bool
	}{
		{in: "", want: model.BucketNone},
		{in: "none", want: model.BucketNone},
		{in: "minor", want: model.BucketMinor},
		{in: "LARGE", want: model.BucketLarge},
		{in: "failed", want: model.BucketFailed},
		{in: "huge", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := parseFailOn(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFailOn(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseFailOn(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

// TestCheckFailOn tests the severity gate of compare.
func TestCheckFailOn(t *testing.T) {
	t.Parallel()

	rep := model.NewReport("test", []model.DiffResult{
		model.NewScoredResult("https://example.com/a", 0.5, "original/_a.png", "compare/_a.png", "difference/diff__a.png"),
		model.NewScoredResult("https://example.com/b", 0, "original/_b.png", "compare/_b.png", ""),
	})

	tests := []struct {
		name      string
		threshold model.Bucket
		wantErr   bool
	}{
		{name: "disabled", threshold: model.BucketNone, wantErr: false},
		{name: "minor", threshold: model.BucketMinor, wantErr: true},
		{name: "large", threshold: model.BucketLarge, wantErr: false},
		{name: "failed", threshold: model.BucketFailed, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := checkFailOn(rep, tt.threshold); (err != nil) != tt.wantErr {
				t.Errorf("checkFailOn() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestParseFormats tests the --format values.
func TestParseFormats(t *testing.T) {
	t.Parallel()

	formats, err := parseFormats([]string{"md", "html", "markdown", "pdf"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []report.Format{report.FormatMarkdown, report.FormatHTML, report.FormatPDF}
	if len(formats) != len(want) {
		t.Fatalf("expected %v, got %v", want, formats)
	}
	for i := range want {
		if formats[i] != want[i] {
			t.Errorf("format %d: expected %s, got %s", i, want[i], formats[i])
		}
	}
	if !needsPrinter(formats) {
		t.Error("expected pdf to need a printer")
	}

	if _, err := parseFormats([]string{"docx"}); !errors.Is(err, report.ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

// TestIdenticalCaptures tests counting of byte-identical captures.
func TestIdenticalCaptures(t *testing.T) {
	t.Parallel()

	baseline := []model.CaptureArtifact{
		{URL: "https://example.com/", Fingerprint: "aa"},
		{URL: "https://example.com/about", Fingerprint: "bb"},
		{URL: "https://example.com/blog", Fingerprint: ""},
	}
	candidate := []model.CaptureArtifact{
		{URL: "https://example.com/", Fingerprint: "aa"},
		{URL: "https://example.com/about", Fingerprint: "cc"},
		{URL: "https://example.com/blog", Fingerprint: ""},
		{URL: "https://example.com/new", Fingerprint: "aa"},
	}

	if got := identicalCaptures(baseline, candidate); got != 1 {
		t.Errorf("expected 1 identical capture, got %d", got)
	}
}
