package model

import (
	"cmp"
	"encoding/json"
	"slices"
)

// DiffResult is the outcome of comparing one manifest URL.
//
// Exactly one of DiffPercent and Error is set. DiffImagePath is set only
// when the difference is above zero and the diff image was written.
type DiffResult struct {
	// URL is the baseline URL from the manifest.
	URL string

	// CandidateURL is the URL that was rendered for comparison.
	// It differs from URL when a compare domain is configured.
	CandidateURL string

	// DiffPercent is the share of differing pixels in [0, 100].
	DiffPercent *float64

	// Error describes why the page could not be measured.
	Error string

	// OriginalImagePath is the baseline PNG, relative to the report directory.
	OriginalImagePath string

	// NewImagePath is the candidate PNG, relative to the report directory.
	NewImagePath string

	// DiffImagePath is the difference PNG, relative to the report directory.
	DiffImagePath string
}

// NewScoredResult returns a measured result. The diff image path is kept
// only when percent is above zero.
func NewScoredResult(url string, percent float64, originalPath, newPath, diffPath string) DiffResult {
	r := DiffResult{
		URL:               url,
		DiffPercent:       &percent,
		OriginalImagePath: originalPath,
		NewImagePath:      newPath,
	}
	if percent > 0 {
		r.DiffImagePath = diffPath
	}
	return r
}

// NewFailedResult returns a result for a URL that could not be measured.
func NewFailedResult(url string, err error) DiffResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return DiffResult{URL: url, Error: msg}
}

// Failed reports whether the result carries an error instead of a score.
func (r DiffResult) Failed() bool {
	return r.DiffPercent == nil
}

// Percent returns the difference, or zero for failed results.
func (r DiffResult) Percent() float64 {
	if r.DiffPercent == nil {
		return 0
	}
	return *r.DiffPercent
}

// Bucket returns the severity bucket of the result.
func (r DiffResult) Bucket() Bucket {
	return Classify(r)
}

// HasDiffImage reports whether a difference image was scheduled.
func (r DiffResult) HasDiffImage() bool {
	return r.DiffImagePath != ""
}

// scoredJSON is the report.json shape of a measured result.
type scoredJSON struct {
	URL               string  `json:"url"`
	Diff              float64 `json:"diff"`
	OriginalImagePath string  `json:"originalImagePath"`
	NewImagePath      string  `json:"newImagePath"`
	DiffImagePath     *string `json:"diffImagePath"`
}

// failedJSON is the report.json shape of a failed result.
type failedJSON struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// resultJSON accepts both shapes when reading report.json back.
type resultJSON struct {
	URL               string   `json:"url"`
	Diff              *float64 `json:"diff"`
	Error             string   `json:"error"`
	OriginalImagePath string   `json:"originalImagePath"`
	NewImagePath      string   `json:"newImagePath"`
	DiffImagePath     *string  `json:"diffImagePath"`
}

// MarshalJSON encodes the result in the report.json format: measured
// results carry diff and image paths, failed results carry only the error.
func (r DiffResult) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(failedJSON{URL: r.URL, Error: r.Error})
	}

	out := scoredJSON{
		URL:               r.URL,
		Diff:              *r.DiffPercent,
		OriginalImagePath: r.OriginalImagePath,
		NewImagePath:      r.NewImagePath,
	}
	if r.DiffImagePath != "" {
		p := r.DiffImagePath
		out.DiffImagePath = &p
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes either report.json shape.
func (r *DiffResult) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*r = DiffResult{
		URL:               in.URL,
		Error:             in.Error,
		OriginalImagePath: in.OriginalImagePath,
		NewImagePath:      in.NewImagePath,
	}
	if in.Diff != nil && in.Error == "" {
		d := *in.Diff
		r.DiffPercent = &d
	}
	if r.DiffPercent == nil && r.Error == "" {
		r.Error = "missing diff value"
	}
	if in.DiffImagePath != nil {
		r.DiffImagePath = *in.DiffImagePath
	}
	return nil
}

// SortResults orders results by difference, largest first.
// Failed results go after every measured result. The sort is stable, so
// ties and failed results keep their manifest order.
func SortResults(results []DiffResult) {
	slices.SortStableFunc(results, compareResults)
}

// compareResults orders measured results descending and failed results last.
func compareResults(a, b DiffResult) int {
	switch {
	case a.Failed() && b.Failed():
		return 0
	case a.Failed():
		return 1
	case b.Failed():
		return -1
	default:
		return cmp.Compare(*b.DiffPercent, *a.DiffPercent)
	}
}
