// Package report renders comparison reports.
//
// Writers share the Writer interface and can be combined with MultiWriter:
//   - JSONWriter: the report.json array consumed by other tools
//   - SimpleWriter: ranked plain-text summary for the terminal
//   - MarkdownWriter: summary tables and a mermaid pie chart
//   - HTMLWriter: one section per page with three thumbnails
//
// PDF prints the HTML rendering through a headless browser.
//
// The report data lives in the model package; this package only formats it.
package report
