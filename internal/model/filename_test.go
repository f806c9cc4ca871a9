package model

import "testing"

// TestFilenameFromURL tests capture filename derivation.
func TestFilenameFromURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"root with slash", "https://example.com/", "_.png"},
		{"root without slash", "https://example.com", "_.png"},
		{"nested path", "https://example.com/about/us", "_about_us.png"},
		{"trailing slash", "https://example.com/blog/", "_blog_.png"},
		{"query ignored", "https://example.com/search?q=go", "_search.png"},
		{"fragment ignored", "https://example.com/docs#intro", "_docs.png"},
		{"port ignored", "http://localhost:8080/a", "_a.png"},
		{"no scheme", "about.png", "about.png"},
		{"relative path", "/about", "/about"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := FilenameFromURL(tc.input); got != tc.expected {
				t.Errorf("FilenameFromURL(%q) = %q, expected %q", tc.input, got, tc.expected)
			}
		})
	}
}

// TestFilenameFromURLSharedAcrossHosts tests that baseline and candidate
// URLs on different hosts map to the same file.
func TestFilenameFromURLSharedAcrossHosts(t *testing.T) {
	t.Parallel()

	a := FilenameFromURL("https://www.example.com/pricing")
	b := FilenameFromURL("https://staging.example.com:8443/pricing")
	if a != b {
		t.Errorf("expected equal filenames, got %q and %q", a, b)
	}
}

// TestDiffFilenameFromURL tests diff image filename derivation.
func TestDiffFilenameFromURL(t *testing.T) {
	t.Parallel()

	if got := DiffFilenameFromURL("https://example.com/about"); got != "diff__about.png" {
		t.Errorf("got %q, expected %q", got, "diff__about.png")
	}
}
