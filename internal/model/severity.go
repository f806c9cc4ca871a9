package model

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Severity thresholds, in percent of differing pixels.
const (
	// LargeThreshold is the smallest difference classified as large.
	LargeThreshold = 5.0
)

// Bucket is the severity bucket of a DiffResult.
// Buckets are derived from DiffPercent and Error every time they are needed;
// nothing stores bucket membership.
type Bucket int

const (
	// BucketNone means the candidate is pixel-identical to the baseline.
	BucketNone Bucket = iota

	// BucketMinor means 0 < difference < 5%.
	BucketMinor

	// BucketLarge means difference >= 5%.
	BucketLarge

	// BucketFailed means the page could not be captured or compared.
	BucketFailed
)

// Buckets lists all buckets in report order, worst first.
var Buckets = []Bucket{BucketFailed, BucketLarge, BucketMinor, BucketNone}

// String returns the lowercase bucket name used in JSON and metrics labels.
func (b Bucket) String() string {
	switch b {
	case BucketNone:
		return "none"
	case BucketMinor:
		return "minor"
	case BucketLarge:
		return "large"
	case BucketFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Title returns the bucket name for headings ("Large", "Minor", ...).
func (b Bucket) Title() string {
	return cases.Title(language.English).String(b.String())
}

// Description returns a one-line explanation of the bucket.
func (b Bucket) Description() string {
	switch b {
	case BucketNone:
		return "No visual difference."
	case BucketMinor:
		return "Less than 5% of the pixels changed."
	case BucketLarge:
		return "5% or more of the pixels changed."
	case BucketFailed:
		return "The page could not be rendered or compared."
	default:
		return ""
	}
}

// ClassifyPercent returns the bucket of a successfully measured difference.
func ClassifyPercent(percent float64) Bucket {
	switch {
	case percent >= LargeThreshold:
		return BucketLarge
	case percent > 0:
		return BucketMinor
	default:
		return BucketNone
	}
}

// Classify returns the bucket of a result.
func Classify(r DiffResult) Bucket {
	if r.Failed() {
		return BucketFailed
	}
	return ClassifyPercent(*r.DiffPercent)
}
