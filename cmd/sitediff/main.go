// Package main provides the entry point for the sitediff CLI.
//
// sitediff captures full-page screenshots of a website and compares them
// against a later rendering of the same pages to find visual regressions.
//
// Usage:
//
//	sitediff capture https://www.example.com
//	sitediff compare
//	sitediff report --format html
//
// See --help for all available options.
package main

// main is the entry point for sitediff.
func main() {
	Execute()
}
