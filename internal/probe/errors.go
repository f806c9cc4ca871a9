package probe

import "errors"

// Probe errors.
// Callers match them with errors.Is() to tell a wrong setup from a dead site.
var (
	// ErrUnreachable is returned when no connection to the site could be made.
	ErrUnreachable = errors.New("site unreachable")

	// ErrTimeout is returned when the site did not answer in time.
	ErrTimeout = errors.New("site did not answer in time")

	// ErrUnauthorized is returned when the site or the proxy asks for credentials.
	ErrUnauthorized = errors.New("authentication required")

	// ErrHTTPStatus is returned for error status codes other than 401 and 407.
	ErrHTTPStatus = errors.New("site answered with an error status")

	// ErrInvalidProxy is returned when the proxy is neither host:port nor a
	// http, https, socks5 or socks5h URL.
	ErrInvalidProxy = errors.New("invalid proxy: expected host:port or an http, https, socks5 or socks5h URL")
)

// Status is the outcome of a probe.
type Status int

const (
	// StatusOK means the site answered with a success or redirect status.
	StatusOK Status = iota

	// StatusHTTPError means the site answered with an error status.
	// The page can still be captured; it shows the error page.
	StatusHTTPError

	// StatusUnauthorized means the site (401) or the proxy (407) wants credentials.
	StatusUnauthorized

	// StatusCannotConnect means no HTTP exchange happened.
	// The host may be down, the name may not resolve or TLS may have failed.
	StatusCannotConnect

	// StatusTimeout means the site did not answer within the timeout.
	StatusTimeout
)

// String returns a human-readable description of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusHTTPError:
		return "http error"
	case StatusUnauthorized:
		return "unauthorized"
	case StatusCannotConnect:
		return "cannot connect"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error returns the sentinel error of this status, or nil if OK.
func (s Status) Error() error {
	switch s {
	case StatusOK:
		return nil
	case StatusHTTPError:
		return ErrHTTPStatus
	case StatusUnauthorized:
		return ErrUnauthorized
	case StatusCannotConnect:
		return ErrUnreachable
	case StatusTimeout:
		return ErrTimeout
	default:
		return errors.New("unknown probe status")
	}
}
