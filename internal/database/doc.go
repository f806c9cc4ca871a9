// Package database provides the SQLite run ledger of sitediff.
//
// CaptureDB keeps, per site (configuration name):
//   - the latest capture of every URL for each generation
//   - the results of the latest comparison
//   - the website and compare domain of the latest run
//
// The ledger only mirrors what is on disk; the output directory stays the
// source of truth for the compare engine. The database is a single file
// opened through modernc.org/sqlite, which needs no CGO.
package database
