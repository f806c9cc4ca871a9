// Package rendertest provides an in-memory render.Renderer for tests.
package rendertest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/nao1215/sitediff/internal/render"
)

// Page is the canned response of the fake renderer for one URL.
type Page struct {
	// HTML is returned when the request asks for it.
	HTML string

	// Color fills the capture.
	Color color.NRGBA

	// Width and Height size the capture. Zero uses 10×10.
	Width  int
	Height int

	// Dots paints the first Dots pixels, in row-major order, black.
	Dots int

	// Err makes the render fail.
	Err error
}

// Renderer serves canned pages and records every request.
type Renderer struct {
	mu       sync.Mutex
	pages    map[string]Page
	requests []render.Request
	closed   bool
}

// New returns a Renderer serving pages keyed by URL.
func New(pages map[string]Page) *Renderer {
	if pages == nil {
		pages = make(map[string]Page)
	}
	return &Renderer{pages: pages}
}

// Set replaces the canned page of url.
func (r *Renderer) Set(url string, p Page) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[url] = p
}

// Render returns the canned page for req.URL as a solid PNG.
func (r *Renderer) Render(ctx context.Context, req render.Request) (*render.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.requests = append(r.requests, req)
	p, ok := r.pages[req.URL]
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s returned 404", render.ErrNavigation, req.URL)
	}
	if p.Err != nil {
		return nil, p.Err
	}

	img, err := Dotted(p.Width, p.Height, p.Color, p.Dots)
	if err != nil {
		return nil, err
	}

	out := &render.Page{URL: req.URL, FinalURL: req.URL, Image: img}
	if req.WithHTML {
		out.HTML = p.HTML
	}
	return out, nil
}

// Close marks the renderer closed.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Closed reports whether Close was called.
func (r *Renderer) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Requests returns the requests seen so far, in order.
func (r *Renderer) Requests() []render.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]render.Request, len(r.requests))
	copy(out, r.requests)
	return out
}

// URLs returns the requested URLs, in order.
func (r *Renderer) URLs() []string {
	reqs := r.Requests()
	out := make([]string, len(reqs))
	for i, req := range reqs {
		out[i] = req.URL
	}
	return out
}

// Solid encodes a w×h PNG filled with c. Zero sizes default to 10.
func Solid(w, h int, c color.NRGBA) ([]byte, error) {
	return Dotted(w, h, c, 0)
}

// Dotted encodes a w×h PNG filled with c whose first dots pixels are black.
func Dotted(w, h int, c color.NRGBA, dots int) ([]byte, error) {
	if w == 0 {
		w = 10
	}
	if h == 0 {
		h = 10
	}
	if c.A == 0 {
		c.A = 0xff
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if y*w+x < dots {
				img.SetNRGBA(x, y, color.NRGBA{A: 0xff})
				continue
			}
			img.SetNRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var _ render.Renderer = (*Renderer)(nil)
