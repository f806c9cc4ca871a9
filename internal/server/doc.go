// Package server serves an output directory over HTTP: the HTML report
// with linked images, report.json, the captures, a health check and,
// when a recorder is attached, Prometheus metrics.
package server
