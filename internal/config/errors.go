package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and identify the first
// invalid setting. Callers match them with errors.Is().
var (
	// ErrNoWebsite is returned when no start URL is configured.
	ErrNoWebsite = errors.New("no website specified: set website in the config file or pass it as an argument")

	// ErrInvalidWebsite is returned when the start URL is not an absolute http(s) URL.
	ErrInvalidWebsite = errors.New("invalid website: must be an absolute http or https URL")

	// ErrInvalidViewport is returned when the viewport width or height is not positive.
	ErrInvalidViewport = errors.New("invalid viewport: width and height must be positive")

	// ErrInvalidTimeout is returned when the navigation timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxURLs is returned when maxUrls is neither positive nor unbounded.
	ErrInvalidMaxURLs = errors.New("invalid maxUrls: must be positive or unbounded")

	// ErrInvalidMaxDepth is returned when maxDepth is negative but not unbounded.
	ErrInvalidMaxDepth = errors.New("invalid maxDepth: must be zero or more, or unbounded")

	// ErrInvalidLimit is returned when a limit value in the config file cannot be parsed.
	ErrInvalidLimit = errors.New("invalid limit: must be an integer or \"unbounded\"")

	// ErrInvalidIgnorePattern is returned when an ignore pattern is not a valid regular expression.
	ErrInvalidIgnorePattern = errors.New("invalid ignore pattern")

	// ErrInvalidCompareDomain is returned when compareDomain is not a bare host[:port].
	ErrInvalidCompareDomain = errors.New("invalid compareDomain: must be a host with an optional port")

	// ErrIncompleteCredentials is returned when only one of username and password is set.
	ErrIncompleteCredentials = errors.New("incomplete credentials: username and password must be set together")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidConcurrency is returned when the diff image concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid diff image concurrency: must be positive")
)
