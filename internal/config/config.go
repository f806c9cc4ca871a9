package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultViewportWidth is the desktop viewport width in CSS pixels.
	DefaultViewportWidth = 2560

	// DefaultViewportHeight is the desktop viewport height in CSS pixels.
	DefaultViewportHeight = 1440

	// DefaultTimeout bounds one page render: navigation, network idle and capture.
	DefaultTimeout = 30 * time.Second

	// DefaultBatchSize is the number of sites processed concurrently by run --batch.
	// Every site runs its own browser, so this stays small.
	DefaultBatchSize = 2

	// DefaultDiffImageConcurrency bounds the background diff image writers.
	DefaultDiffImageConcurrency = 4

	// AppName is the application name used for XDG directory paths.
	AppName = "sitediff"

	// OutputDirPrefix is prepended to the config name to form the default output directory.
	OutputDirPrefix = "output_"

	// DefaultName is used when neither a config file nor a website host names the run.
	DefaultName = "default"
)

// Config holds all configuration options for a sitediff run.
// It is populated from the config file and CLI flags and passed down by
// value or pointer; there is no global configuration.
type Config struct {
	// Name identifies the site. It is the config file base name without
	// extension, or the website host when no file was used.
	Name string

	// Website is the crawl start URL.
	Website string

	// ViewportWidth and ViewportHeight size the desktop viewport.
	// They are ignored when Mobile is set.
	ViewportWidth  int
	ViewportHeight int

	// Mobile switches rendering to a phone device profile.
	Mobile bool

	// MaxURLs caps the manifest length.
	MaxURLs Limit

	// MaxDepth caps the link distance from Website.
	MaxDepth Limit

	// IgnorePatterns are regular expressions matched against raw URLs.
	// A matching URL is never captured.
	IgnorePatterns []string

	// CompareDomain replaces the host of every manifest URL during compare.
	CompareDomain string

	// Username and Password answer HTTP basic authentication challenges.
	// They apply to the crawl and the compare alike.
	Username string
	Password string

	// RemoveSelectors are CSS selectors removed from the page before every capture.
	RemoveSelectors []string

	// OutputDir overrides the output_<name> directory.
	OutputDir string

	// Timeout bounds a single page render.
	Timeout time.Duration

	// Proxy is passed to Chrome as --proxy-server when set.
	Proxy string

	// UserAgent overrides the browser User-Agent when set.
	UserAgent string

	// ChromePath points at a Chrome or Chromium binary. Empty uses the system default.
	ChromePath string

	// Headless runs the browser without a window.
	Headless bool

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the file the configuration was loaded from, if any.
	ConfigFilePath string

	// DBDir is the directory of the SQLite run ledger.
	DBDir string

	// SaveToDB records captures and results in the run ledger.
	SaveToDB bool

	// MetricsFile is the Prometheus textfile written after a run, if set.
	MetricsFile string

	// BatchSize is the number of sites processed concurrently by run --batch.
	BatchSize int

	// DiffImageConcurrency bounds the background diff image writers.
	DiffImageConcurrency int
}

// NewConfig creates a new Config with default values.
// Limits start unbounded: a crawl without limits captures the whole site.
func NewConfig() *Config {
	return &Config{
		ViewportWidth:        DefaultViewportWidth,
		ViewportHeight:       DefaultViewportHeight,
		MaxURLs:              Unbounded,
		MaxDepth:             Unbounded,
		Timeout:              DefaultTimeout,
		Headless:             true,
		DBDir:                XDGDataDir(),
		SaveToDB:             true,
		BatchSize:            DefaultBatchSize,
		DiffImageConcurrency: DefaultDiffImageConcurrency,
	}
}

// XDGDataDir returns the XDG data directory for sitediff.
// On Linux: ~/.local/share/sitediff
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitediff.
// On Linux: ~/.config/sitediff
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found. It is called once before any page is rendered.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Website) == "" {
		return ErrNoWebsite
	}
	u, err := url.Parse(c.Website)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidWebsite, c.Website)
	}

	if !c.Mobile && (c.ViewportWidth <= 0 || c.ViewportHeight <= 0) {
		return ErrInvalidViewport
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxURLs == 0 || c.MaxURLs < Unbounded {
		return ErrInvalidMaxURLs
	}
	if c.MaxDepth < Unbounded {
		return ErrInvalidMaxDepth
	}

	if _, err := c.CompileIgnorePatterns(); err != nil {
		return err
	}

	if c.CompareDomain != "" && !validDomain(c.CompareDomain) {
		return fmt.Errorf("%w: %q", ErrInvalidCompareDomain, c.CompareDomain)
	}

	if (c.Username == "") != (c.Password == "") {
		return ErrIncompleteCredentials
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.DiffImageConcurrency <= 0 {
		return ErrInvalidConcurrency
	}

	return nil
}

// CompileIgnorePatterns compiles IgnorePatterns in order.
func (c *Config) CompileIgnorePatterns() ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(c.IgnorePatterns))
	for _, p := range c.IgnorePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidIgnorePattern, p, err)
		}
		patterns = append(patterns, re)
	}
	return patterns, nil
}

// HasCredentials reports whether basic authentication is configured.
func (c *Config) HasCredentials() bool {
	return c.Username != "" && c.Password != ""
}

// SiteName returns Name, or a name derived from the website host.
func (c *Config) SiteName() string {
	if c.Name != "" {
		return c.Name
	}
	if u, err := url.Parse(c.Website); err == nil && u.Hostname() != "" {
		return sanitizeName(u.Hostname())
	}
	return DefaultName
}

// Layout returns the on-disk layout of this configuration's output.
func (c *Config) Layout() Layout {
	root := c.OutputDir
	if root == "" {
		root = OutputDirPrefix + c.SiteName()
	}
	return NewLayout(root)
}

// validDomain reports whether s is a bare host with an optional port.
func validDomain(s string) bool {
	if strings.ContainsAny(s, "/?#@ \t") {
		return false
	}
	u, err := url.Parse("http://" + s)
	return err == nil && u.Hostname() != ""
}

var nameReplacer = strings.NewReplacer(":", "_", "/", "_", "\\", "_", " ", "_")

// sanitizeName makes s safe to use as a directory name component.
func sanitizeName(s string) string {
	return nameReplacer.Replace(s)
}
