package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrReportNotFound is returned when report.json does not exist.
var ErrReportNotFound = errors.New("report not found")

// Report is the outcome of one comparison run.
//
// Only Results is written to report.json; the remaining fields describe
// the run for the Markdown, HTML and PDF renderings and the SQLite ledger.
type Report struct {
	// Site is the configuration name the run belongs to.
	Site string

	// Website is the start URL of the baseline crawl.
	Website string

	// CompareDomain is the host substituted into candidate URLs, if any.
	CompareDomain string

	// GeneratedAt is when the comparison finished.
	GeneratedAt time.Time

	// Results are sorted by SortResults.
	Results []DiffResult
}

// NewReport returns a report for site with sorted results.
func NewReport(site string, results []DiffResult) *Report {
	sorted := make([]DiffResult, len(results))
	copy(sorted, results)
	SortResults(sorted)

	return &Report{
		Site:        site,
		GeneratedAt: time.Now(),
		Results:     sorted,
	}
}

// Summary returns the bucket counts of the report.
func (r *Report) Summary() Summary {
	return NewSummary(r.Results)
}

// CandidateURL returns the compared URL of a result. Results read back
// from report.json do not carry it, so it is derived from CompareDomain.
func (r *Report) CandidateURL(result DiffResult) string {
	if result.CandidateURL != "" {
		return result.CandidateURL
	}
	if r.CompareDomain == "" {
		return result.URL
	}
	candidate, err := SubstituteHost(result.URL, r.CompareDomain)
	if err != nil {
		return result.URL
	}
	return candidate
}

// SaveReport writes results as report.json.
func SaveReport(path string, results []DiffResult) error {
	if results == nil {
		results = []DiffResult{}
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// LoadReport reads report.json. The file modification time becomes
// GeneratedAt; results keep the order found in the file.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrReportNotFound, path)
		}
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	var results []DiffResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}

	report := &Report{Results: results}
	if info, err := os.Stat(path); err == nil {
		report.GeneratedAt = info.ModTime()
	}
	return report, nil
}
