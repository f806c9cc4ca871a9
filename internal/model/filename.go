package model

import (
	"net/url"
	"strings"
)

// ImageExt is the extension of every capture written by sitediff.
const ImageExt = ".png"

// DiffImagePrefix is prepended to a capture filename to name its diff image.
const DiffImagePrefix = "diff_"

// FilenameFromURL derives the capture filename for a URL.
//
// The URL path has every "/" replaced by "_" and ".png" appended:
//
//	https://example.com/about/us -> _about_us.png
//	https://example.com/         -> _.png
//
// Input that is not an absolute URL (no scheme) is treated as a filename
// and returned unchanged. The result depends on the URL alone, so the
// baseline and the candidate of the same page always share a filename.
func FilenameFromURL(input string) string {
	u, err := url.Parse(input)
	if err != nil || u.Scheme == "" {
		return input
	}

	path := u.EscapedPath()
	if u.Opaque != "" {
		path = u.Opaque
	}
	if path == "" {
		path = "/"
	}

	return strings.ReplaceAll(path, "/", "_") + ImageExt
}

// DiffFilenameFromURL returns the diff image filename for a URL.
func DiffFilenameFromURL(input string) string {
	return DiffImagePrefix + FilenameFromURL(input)
}
