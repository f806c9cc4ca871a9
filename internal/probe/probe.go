package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// DefaultTimeout bounds one probe when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// maxRedirects matches the redirect limit of net/http.
const maxRedirects = 10

// bodyLimit is how much of the response body is drained before closing.
const bodyLimit = 64 << 10

// Result is the outcome of one probe.
type Result struct {
	// URL is the probed URL.
	URL string

	// Status classifies the outcome.
	Status Status

	// StatusCode is the HTTP status of the final response, 0 without one.
	StatusCode int

	// Duration is the time until the response headers arrived.
	Duration time.Duration

	// Cause is the transport error behind StatusCannotConnect and StatusTimeout.
	Cause error
}

// Reachable reports whether the browser can load the page: the site
// answered, possibly with an error page.
func (r Result) Reachable() bool {
	return r.Status == StatusOK || r.Status == StatusHTTPError
}

// Err returns nil for StatusOK and a wrapped sentinel error otherwise.
func (r Result) Err() error {
	if r.Status == StatusOK {
		return nil
	}
	switch {
	case r.Cause != nil:
		return fmt.Errorf("%w: %s: %w", r.Status.Error(), r.URL, r.Cause)
	case r.StatusCode != 0:
		return fmt.Errorf("%w: %s: HTTP %d", r.Status.Error(), r.URL, r.StatusCode)
	default:
		return fmt.Errorf("%w: %s", r.Status.Error(), r.URL)
	}
}

// Prober sends reachability probes.
type Prober struct {
	client    *http.Client
	timeout   time.Duration
	proxy     string
	username  string
	password  string
	userAgent string
}

// Option configures a Prober.
type Option func(*Prober)

// WithTimeout bounds every probe. Non-positive values keep DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithProxy routes probes through a proxy. Empty means a direct connection.
func WithProxy(proxy string) Option {
	return func(p *Prober) {
		p.proxy = proxy
	}
}

// WithCredentials answers basic authentication challenges.
func WithCredentials(username, password string) Option {
	return func(p *Prober) {
		p.username = username
		p.password = password
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(p *Prober) {
		p.userAgent = ua
	}
}

// New creates a Prober. It fails only on an invalid proxy; nothing is
// dialed until Check.
func New(opts ...Option) (*Prober, error) {
	p := &Prober{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(p)
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   p.timeout,
		ResponseHeaderTimeout: p.timeout,
	}

	proxyURL, err := ParseProxy(p.proxy)
	if err != nil {
		return nil, err
	}
	if proxyURL != nil {
		switch proxyURL.Scheme {
		case "socks5", "socks5h":
			dialer, err := proxy.FromURL(proxyURL, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidProxy, err)
			}
			transport.Proxy = nil
			transport.DialContext = dialContext(dialer)
		default:
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	// The jar keeps cookies set by redirects, such as a consent page.
	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	p.client = &http.Client{
		Transport: transport,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	return p, nil
}

// dialContext adapts a proxy.Dialer to http.Transport.DialContext.
// Dialers without context support are raced against ctx.
func dialContext(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		resultCh := make(chan dialResult, 1)
		go func() {
			conn, err := d.Dial(network, addr)
			resultCh <- dialResult{conn, err}
		}()

		select {
		case r := <-resultCh:
			return r.conn, r.err
		case <-ctx.Done():
			go func() {
				if r := <-resultCh; r.conn != nil {
					_ = r.conn.Close()
				}
			}()
			return nil, ctx.Err()
		}
	}
}

// Check requests rawURL once and classifies the answer.
func (p *Prober) Check(ctx context.Context, rawURL string) Result {
	result := Result{URL: rawURL}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		result.Status = StatusCannotConnect
		result.Cause = err
		return result
	}
	if p.username != "" || p.password != "" {
		req.SetBasicAuth(p.username, p.password)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	result.Duration = time.Since(start)
	if err != nil {
		result.Cause = err
		if isTimeout(ctx, err) {
			result.Status = StatusTimeout
		} else {
			result.Status = StatusCannotConnect
		}
		return result
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, bodyLimit)) //nolint:errcheck // drained for connection reuse

	result.StatusCode = resp.StatusCode
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusProxyAuthRequired:
		result.Status = StatusUnauthorized
	case resp.StatusCode >= http.StatusBadRequest:
		result.Status = StatusHTTPError
	default:
		result.Status = StatusOK
	}
	return result
}

// isTimeout reports whether err comes from the probe deadline or a
// transport timeout.
func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ParseProxy parses a proxy in any form Chrome's --proxy-server accepts
// for a single proxy. A bare host:port is an HTTP proxy. Empty returns nil.
func ParseProxy(s string) (*url.URL, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, s)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, s)
	}
	if !isValidProxyAddress(u.Host) || (u.Path != "" && u.Path != "/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, s)
	}
	return u, nil
}

// isValidProxyAddress checks that address is host:port with a port in 1-65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}
