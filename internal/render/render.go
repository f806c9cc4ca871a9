package render

import (
	"context"
	"errors"
	"time"
)

// Render errors.
var (
	// ErrNavigation is returned when the browser cannot load the page.
	ErrNavigation = errors.New("navigation failed")

	// ErrCapture is returned when the page loaded but could not be captured.
	ErrCapture = errors.New("capture failed")

	// ErrTimeout is returned when a render exceeds its time budget.
	ErrTimeout = errors.New("render timed out")

	// ErrClosed is returned by Render after Close.
	ErrClosed = errors.New("renderer closed")
)

// Profile is the device a page is rendered for.
type Profile struct {
	// Width and Height set the desktop viewport in CSS pixels.
	Width  int
	Height int

	// Mobile emulates a phone (iPhone X) and ignores Width and Height.
	Mobile bool
}

// Credentials are answered to HTTP basic authentication challenges.
type Credentials struct {
	Username string
	Password string
}

// IsZero reports whether no credentials are set.
func (c Credentials) IsZero() bool {
	return c.Username == "" && c.Password == ""
}

// Request describes one render.
type Request struct {
	// URL is the page to load.
	URL string

	// Credentials enable basic authentication when non-zero.
	Credentials Credentials

	// RemoveSelectors are removed from the DOM before the capture.
	// Each selector is applied independently; a failing selector is logged.
	RemoveSelectors []string

	// WithHTML asks for the serialized DOM of the loaded page.
	WithHTML bool
}

// Page is a rendered page.
type Page struct {
	// URL is the requested URL.
	URL string

	// FinalURL is the URL after redirects.
	FinalURL string

	// Image is the full-page capture as PNG.
	Image []byte

	// HTML is the serialized DOM, set only when requested.
	HTML string

	// Duration is how long the render took.
	Duration time.Duration
}

// Renderer produces full-page captures.
// Implementations are used by one goroutine at a time.
type Renderer interface {
	// Render loads req.URL and captures it.
	Render(ctx context.Context, req Request) (*Page, error)

	// Close releases the browser.
	Close() error
}

// Printer turns an HTML document into a PDF.
type Printer interface {
	PrintPDF(ctx context.Context, html string) ([]byte, error)
}
