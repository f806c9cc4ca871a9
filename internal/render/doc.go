// Package render drives a headless Chrome to produce full-page captures.
//
// A Renderer holds one browser and one tab for a whole crawl or compare
// run. Every Render call navigates that tab, waits until the network is
// idle, optionally removes DOM nodes, and returns the page as PNG bytes
// together with its final URL and, on request, its serialized DOM.
//
// The package also prints HTML documents to PDF, which the report
// package uses for report.pdf.
package render
