package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"
)

// skipIfNoChrome skips the test in short mode or when no browser is installed.
func skipIfNoChrome(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("skipping browser test: Chrome not found")
}

const testPage = `<!DOCTYPE html>
<html><head><title>t</title></head>
<body style="margin:0;background:#fff">
<div class="banner" style="height:50px;background:#f00">banner</div>
<a href="/about">about</a>
</body></html>`

// TestChromeRenderer_Render tests a real render against a local server.
func TestChromeRenderer_Render(t *testing.T) {
	skipIfNoChrome(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/private" {
			user, pass, ok := r.BasicAuth()
			if !ok || user != "admin" || pass != "secret" {
				w.Header().Set("WWW-Authenticate", `Basic realm="test"`)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, testPage)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	r, err := NewChromeRenderer(ctx, Profile{Width: 800, Height: 600}, WithNavigationTimeout(20*time.Second))
	if err != nil {
		t.Fatalf("NewChromeRenderer() error: %v", err)
	}
	defer r.Close() //nolint:errcheck // test cleanup

	t.Run("captures png and html", func(t *testing.T) {
		page, err := r.Render(ctx, Request{URL: srv.URL + "/", WithHTML: true})
		if err != nil {
			t.Fatalf("Render() error: %v", err)
		}
		img, err := png.Decode(bytes.NewReader(page.Image))
		if err != nil {
			t.Fatalf("capture is not a PNG: %v", err)
		}
		if img.Bounds().Dx() != 800 {
			t.Errorf("expected width 800, got %d", img.Bounds().Dx())
		}
		if !strings.Contains(page.HTML, `href="/about"`) {
			t.Errorf("expected link in HTML: %s", page.HTML)
		}
	})

	t.Run("removes selectors", func(t *testing.T) {
		page, err := r.Render(ctx, Request{
			URL:             srv.URL + "/",
			RemoveSelectors: []string{".banner", "[[invalid"},
			WithHTML:        true,
		})
		if err != nil {
			t.Fatalf("Render() error: %v", err)
		}
		if strings.Contains(page.HTML, "banner") {
			t.Error("expected banner to be removed")
		}
	})

	t.Run("answers basic auth", func(t *testing.T) {
		page, err := r.Render(ctx, Request{
			URL:         srv.URL + "/private",
			Credentials: Credentials{Username: "admin", Password: "secret"},
			WithHTML:    true,
		})
		if err != nil {
			t.Fatalf("Render() error: %v", err)
		}
		if !strings.Contains(page.HTML, "about") {
			t.Errorf("expected authenticated page, got %s", page.HTML)
		}
	})

	t.Run("prints pdf", func(t *testing.T) {
		pdf, err := r.PrintPDF(ctx, "<html><body><h1>report</h1></body></html>")
		if err != nil {
			t.Fatalf("PrintPDF() error: %v", err)
		}
		if !bytes.HasPrefix(pdf, []byte("%PDF")) {
			t.Error("expected PDF header")
		}
	})

	t.Run("closed renderer", func(t *testing.T) {
		if err := r.Close(); err != nil {
			t.Fatalf("Close() error: %v", err)
		}
		if _, err := r.Render(ctx, Request{URL: srv.URL}); !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	})
}
