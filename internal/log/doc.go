// Package log provides secure logging built on top of the standard slog
// package.
//
// The SecureHandler sanitizes log output before it reaches the wrapped
// handler:
//   - HTTP headers (Authorization, Cookie, Set-Cookie)
//   - basic authentication passwords configured for compare runs
//   - URLs with embedded credentials (the password part is masked)
//   - bearer tokens and JWTs detected by pattern matching
//
// Even in verbose mode, sensitive values are masked because CI logs of
// visual regression runs are often shared.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, true)
//	logger.Debug("rendering page",
//	    "url", "https://admin:pw@staging.example.com/", // password masked
//	    "password", cfg.Password,                        // fully masked
//	)
//	slog.SetDefault(logger)
package log
