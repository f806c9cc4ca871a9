package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/device"
)

// DefaultNavigationTimeout bounds one render when no timeout is configured.
const DefaultNavigationTimeout = 30 * time.Second

// screenshotQuality of 100 makes chromedp capture PNG instead of JPEG.
const screenshotQuality = 100

// removeScript removes every node matching a selector and returns their count.
const removeScript = `(() => {
	const nodes = document.querySelectorAll(%s);
	nodes.forEach((n) => n.remove());
	return nodes.length;
})()`

// ChromeRenderer renders pages in a single headless Chrome tab.
type ChromeRenderer struct {
	profile     Profile
	timeout     time.Duration
	userAgent   string
	proxy       string
	chromePath  string
	headless    bool
	logger      *slog.Logger
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// ChromeOption configures a ChromeRenderer.
type ChromeOption func(*ChromeRenderer)

// WithNavigationTimeout bounds every render: navigation, network idle,
// DOM edits and capture together.
func WithNavigationTimeout(d time.Duration) ChromeOption {
	return func(r *ChromeRenderer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithUserAgent overrides the browser User-Agent.
func WithUserAgent(ua string) ChromeOption {
	return func(r *ChromeRenderer) {
		r.userAgent = ua
	}
}

// WithProxy routes all browser traffic through a proxy ("host:port" or a URL).
func WithProxy(proxy string) ChromeOption {
	return func(r *ChromeRenderer) {
		r.proxy = proxy
	}
}

// WithHeadless toggles headless mode. Headless is the default.
func WithHeadless(headless bool) ChromeOption {
	return func(r *ChromeRenderer) {
		r.headless = headless
	}
}

// WithChromePath sets the browser executable.
func WithChromePath(path string) ChromeOption {
	return func(r *ChromeRenderer) {
		r.chromePath = path
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ChromeOption {
	return func(r *ChromeRenderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewChromeRenderer launches Chrome and prepares one tab emulating profile.
// A launch failure is returned immediately; no page is rendered then.
func NewChromeRenderer(ctx context.Context, profile Profile, opts ...ChromeOption) (*ChromeRenderer, error) {
	r := &ChromeRenderer{
		profile:  profile,
		timeout:  DefaultNavigationTimeout,
		headless: true,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if r.userAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(r.userAgent))
	}
	if r.proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(r.proxy))
	}
	if r.chromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(r.chromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(r.logf), chromedp.WithErrorf(r.errorf))

	r.allocCancel = allocCancel
	r.tabCtx = tabCtx
	r.tabCancel = tabCancel

	if err := chromedp.Run(tabCtx, r.emulate(), page.SetLifecycleEventsEnabled(true)); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	r.logger.Debug("browser started",
		"mobile", profile.Mobile,
		"width", profile.Width,
		"height", profile.Height,
		"headless", r.headless,
	)
	return r, nil
}

// emulate returns the device emulation action of the profile.
func (r *ChromeRenderer) emulate() chromedp.Action {
	if r.profile.Mobile {
		return chromedp.Emulate(device.IPhoneX)
	}
	return chromedp.EmulateViewport(int64(r.profile.Width), int64(r.profile.Height))
}

// Render loads req.URL in the shared tab and captures it.
func (r *ChromeRenderer) Render(ctx context.Context, req Request) (*Page, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	start := time.Now()

	rctx, cancel := context.WithTimeout(r.tabCtx, r.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	idle := r.listenNetworkIdle(rctx)

	if !req.Credentials.IsZero() {
		r.listenAuth(rctx, req.Credentials)
		if err := chromedp.Run(rctx, fetch.Enable().WithHandleAuthRequests(true)); err != nil {
			return nil, r.classify(ctx, rctx, ErrNavigation, err)
		}
		defer func() {
			// The tab outlives this render; later renders must not be intercepted.
			_ = chromedp.Run(r.tabCtx, fetch.Disable())
		}()
	}

	if err := chromedp.Run(rctx, navigate(req.URL, idle)); err != nil {
		return nil, r.classify(ctx, rctx, ErrNavigation, err)
	}

	select {
	case <-idle.Done():
	case <-rctx.Done():
		return nil, r.classify(ctx, rctx, ErrNavigation, rctx.Err())
	}

	for _, sel := range req.RemoveSelectors {
		r.removeSelector(rctx, req.URL, sel)
	}

	p := &Page{URL: req.URL}
	actions := []chromedp.Action{
		chromedp.Location(&p.FinalURL),
		chromedp.FullScreenshot(&p.Image, screenshotQuality),
	}
	if req.WithHTML {
		actions = append(actions, chromedp.OuterHTML("html", &p.HTML, chromedp.ByQuery))
	}
	if err := chromedp.Run(rctx, actions...); err != nil {
		return nil, r.classify(ctx, rctx, ErrCapture, err)
	}

	p.Duration = time.Since(start)
	r.logger.Debug("page rendered", "url", req.URL, "final_url", p.FinalURL, "bytes", len(p.Image), "duration", p.Duration)
	return p, nil
}

// listenNetworkIdle feeds the lifecycle events of the tab to an idleWaiter.
func (r *ChromeRenderer) listenNetworkIdle(ctx context.Context) *idleWaiter {
	w := newIdleWaiter()
	chromedp.ListenTarget(ctx, func(ev any) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok {
			w.observe(e)
		}
	})
	return w
}

// navigate loads url and tells w which frame and document to wait for.
func navigate(url string, w *idleWaiter) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		frame, loader, errorText, _, err := page.Navigate(url).Do(ctx)
		switch {
		case err != nil:
			return err
		case errorText != "":
			return fmt.Errorf("page load error %s", errorText)
		}
		w.navigated(frame, loader)
		return nil
	})
}

// listenAuth answers basic authentication challenges with creds and lets
// every other paused request through.
func (r *ChromeRenderer) listenAuth(ctx context.Context, creds Credentials) {
	chromedp.ListenTarget(ctx, func(ev any) {
		switch e := ev.(type) {
		case *fetch.EventRequestPaused:
			go func() {
				c := chromedp.FromContext(ctx)
				if err := fetch.ContinueRequest(e.RequestID).Do(cdp.WithExecutor(ctx, c.Target)); err != nil {
					r.logger.Debug("failed to continue request", "error", err)
				}
			}()
		case *fetch.EventAuthRequired:
			go func() {
				c := chromedp.FromContext(ctx)
				resp := &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: creds.Username,
					Password: creds.Password,
				}
				if err := fetch.ContinueWithAuth(e.RequestID, resp).Do(cdp.WithExecutor(ctx, c.Target)); err != nil {
					r.logger.Warn("failed to answer auth challenge", "error", err)
				}
			}()
		}
	})
}

// removeSelector removes all nodes matching sel. Failures are logged only.
func (r *ChromeRenderer) removeSelector(ctx context.Context, url, sel string) {
	quoted, err := json.Marshal(sel)
	if err != nil {
		r.logger.Warn("failed to quote selector", "selector", sel, "error", err)
		return
	}

	var removed int
	if err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(removeScript, quoted), &removed)); err != nil {
		r.logger.Warn("failed to remove selector", "url", url, "selector", sel, "error", err)
		return
	}
	r.logger.Debug("removed elements", "url", url, "selector", sel, "count", removed)
}

// classify wraps err with kind, or with ErrTimeout when the render budget
// ran out. Cancellation of the caller's context is returned as is.
func (r *ChromeRenderer) classify(parent, rctx context.Context, kind, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(rctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, r.timeout, err)
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// PrintPDF loads html into a fresh tab of the same browser and prints it
// to an A4 PDF with backgrounds.
func (r *ChromeRenderer) PrintPDF(ctx context.Context, html string) ([]byte, error) {
	tabCtx, tabCancel := chromedp.NewContext(r.tabCtx)
	defer tabCancel()

	pctx, cancel := context.WithTimeout(tabCtx, r.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var pdf []byte
	err := chromedp.Run(pctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to print PDF: %w", err)
	}
	return pdf, nil
}

// Close shuts down the tab and the browser. It is safe to call twice.
func (r *ChromeRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	if err := chromedp.Cancel(r.tabCtx); err != nil && !errors.Is(err, context.Canceled) {
		r.allocCancel()
		return fmt.Errorf("failed to close browser: %w", err)
	}
	r.tabCancel()
	r.allocCancel()
	return nil
}

func (r *ChromeRenderer) logf(format string, args ...any) {
	r.logger.Debug(fmt.Sprintf(format, args...))
}

func (r *ChromeRenderer) errorf(format string, args ...any) {
	r.logger.Debug("chromedp: " + fmt.Sprintf(format, args...))
}

var (
	_ Renderer = (*ChromeRenderer)(nil)
	_ Printer  = (*ChromeRenderer)(nil)
)
