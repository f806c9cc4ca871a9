// Package pipeline runs the capture, compare and report steps of a site
// in sequence.
//
// Each step receives the *model.Run of the site and fills in its part:
// CaptureStep the manifest and baseline captures, CompareStep the
// candidate captures and the report, ReportStep the report files.
// A site is always processed sequentially; BatchProcessor runs several
// sites concurrently, each with its own browser.
package pipeline
