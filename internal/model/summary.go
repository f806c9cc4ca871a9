package model

// Summary counts results per severity bucket.
type Summary struct {
	Total  int `json:"total"`
	Large  int `json:"large"`
	Minor  int `json:"minor"`
	None   int `json:"none"`
	Failed int `json:"failed"`

	// MaxDiff is the largest measured difference, zero when nothing was measured.
	MaxDiff float64 `json:"maxDiff"`

	// MaxDiffURL is the URL holding MaxDiff.
	MaxDiffURL string `json:"maxDiffUrl,omitempty"`
}

// NewSummary counts results into buckets.
func NewSummary(results []DiffResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Bucket() {
		case BucketLarge:
			s.Large++
		case BucketMinor:
			s.Minor++
		case BucketNone:
			s.None++
		case BucketFailed:
			s.Failed++
		}
		if !r.Failed() && (s.MaxDiffURL == "" || r.Percent() > s.MaxDiff) {
			s.MaxDiff = r.Percent()
			s.MaxDiffURL = r.URL
		}
	}
	return s
}

// Count returns the number of results in bucket b.
func (s Summary) Count(b Bucket) int {
	switch b {
	case BucketLarge:
		return s.Large
	case BucketMinor:
		return s.Minor
	case BucketNone:
		return s.None
	case BucketFailed:
		return s.Failed
	default:
		return 0
	}
}

// Worst returns the most severe bucket that has at least one result.
// An empty summary reports BucketNone.
func (s Summary) Worst() Bucket {
	for _, b := range Buckets {
		if s.Count(b) > 0 {
			return b
		}
	}
	return BucketNone
}

// Clean reports whether every page was measured and none changed.
func (s Summary) Clean() bool {
	return s.Large == 0 && s.Minor == 0 && s.Failed == 0
}

// Filter returns the results that fall into bucket b, in their original order.
func Filter(results []DiffResult, b Bucket) []DiffResult {
	var out []DiffResult
	for _, r := range results {
		if r.Bucket() == b {
			out = append(out, r)
		}
	}
	return out
}
