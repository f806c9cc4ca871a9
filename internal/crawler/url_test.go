package crawler

import (
	"regexp"
	"testing"
)

// TestNormalizeURL tests URL normalization.
func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input    string
		expected string
	}{
		{"https://example.com", "https://example.com/"},
		{"HTTPS://Example.COM/About", "https://example.com/About"},
		{"https://example.com/a#section", "https://example.com/a"},
		{"https://example.com/a?x=1#f", "https://example.com/a?x=1"},
		{"https://example.com/a/", "https://example.com/a/"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeURL(tc.input); got != tc.expected {
				t.Errorf("NormalizeURL(%q) = %q, expected %q", tc.input, got, tc.expected)
			}
		})
	}
}

// TestIsInternalLink tests same-origin detection.
func TestIsInternalLink(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		link     string
		base     string
		expected bool
	}{
		{"same origin", "https://example.com/about", "https://example.com/", true},
		{"explicit default https port", "https://example.com:443/a", "https://example.com/", true},
		{"explicit default http port", "http://example.com/a", "http://example.com:80/", true},
		{"host case", "https://EXAMPLE.com/a", "https://example.com/", true},
		{"other host", "https://other.com/", "https://example.com/", false},
		{"subdomain", "https://www.example.com/", "https://example.com/", false},
		{"other scheme", "http://example.com/", "https://example.com/", false},
		{"other port", "https://example.com:8443/", "https://example.com/", false},
		{"relative link", "/about", "https://example.com/", false},
		{"malformed", "http://[::1", "https://example.com/", false},
		{"mailto", "mailto:a@example.com", "https://example.com/", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsInternalLink(tc.link, tc.base); got != tc.expected {
				t.Errorf("IsInternalLink(%q, %q) = %v, expected %v", tc.link, tc.base, got, tc.expected)
			}
		})
	}
}

// TestMatchesAny tests regular expression exclusion.
func TestMatchesAny(t *testing.T) {
	t.Parallel()

	patterns := []*regexp.Regexp{regexp.MustCompile(`/blog/\d+`), regexp.MustCompile(`\?print=1`)}

	if !MatchesAny(patterns, "https://example.com/blog/42") {
		t.Error("expected blog match")
	}
	if !MatchesAny(patterns, "https://example.com/a?print=1") {
		t.Error("expected query match")
	}
	if MatchesAny(patterns, "https://example.com/blog/") {
		t.Error("unexpected match")
	}
	if MatchesAny(nil, "https://example.com/") {
		t.Error("no patterns must never match")
	}
}

// TestFrontier tests FIFO order and compaction.
func TestFrontier(t *testing.T) {
	t.Parallel()

	f := newFrontier()
	for i := 0; i < 200; i++ {
		f.push(targetAt(i))
	}
	for i := 0; i < 200; i++ {
		got, ok := f.pop()
		if !ok {
			t.Fatalf("pop %d: queue empty", i)
		}
		if got.Depth != i {
			t.Fatalf("pop %d: got depth %d", i, got.Depth)
		}
		if f.len() != 199-i {
			t.Fatalf("pop %d: len %d", i, f.len())
		}
	}
	if _, ok := f.pop(); ok {
		t.Error("expected empty queue")
	}
}
