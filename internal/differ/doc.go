// Package differ re-renders the pages of a manifest and measures how much
// each one changed against its baseline capture.
//
// URLs are processed one after another through a single renderer. A page
// whose difference is above zero gets a difference image, written by a
// bounded set of background tasks; Run waits for all of them before it
// returns, so the results it hands back are final. Failures never stop
// the batch: they become DiffResults carrying an error.
package differ
