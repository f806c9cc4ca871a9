// Package model defines the core data structures used throughout sitediff.
//
// This package contains the following main types:
//   - CrawlTarget: A frontier entry (URL and discovery depth)
//   - Manifest: The ordered list of URLs captured by a crawl
//   - CaptureArtifact: A URL bound to its rendered PNG for one generation
//   - DiffResult: The outcome of comparing a baseline and a candidate capture
//   - Bucket: The severity bucket a DiffResult falls into
//   - Report: The ranked result list handed to the report writers
//
// Models are kept free of I/O beyond reading and writing their own JSON
// files so that crawler, differ, report and database can share them
// without import cycles.
package model
