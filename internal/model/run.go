package model

// Run carries the state of one site through the capture, compare and
// report steps.
type Run struct {
	// Site is the configuration name.
	Site string

	// Website is the start URL.
	Website string

	// Manifest is filled by the capture step or loaded from urls.json.
	Manifest Manifest

	// Baseline holds the artifacts written by the capture step.
	Baseline []CaptureArtifact

	// Candidate holds the artifacts written by the compare step.
	Candidate []CaptureArtifact

	// Report is set once the compare step finished.
	Report *Report

	// Errors collects step failures when the pipeline continues on error.
	Errors []error
}

// NewRun returns an empty run for site.
func NewRun(site, website string) *Run {
	return &Run{Site: site, Website: website}
}

// AddError records a step failure.
func (r *Run) AddError(err error) {
	if err != nil {
		r.Errors = append(r.Errors, err)
	}
}
