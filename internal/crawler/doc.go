// Package crawler walks a website breadth-first and captures every page it
// reaches.
//
// # Architecture
//
// The Spider owns a FIFO frontier of CrawlTargets and a visited set. Each
// dequeued URL is rendered through a render.Renderer, written as a PNG
// into the capture directory and, while the depth limit allows, its
// same-origin links are extracted from the rendered DOM and enqueued one
// level deeper. The ordered list of captured URLs is the manifest, written
// as urls.json once the crawl finishes.
//
// # Components
//
//   - Spider: the crawl loop with its limits and options
//   - frontier: slice-backed FIFO queue with a head index
//   - visitedSet: exact set of normalized URLs
//   - ExtractLinks: link extraction from rendered HTML
//   - IsInternalLink, NormalizeURL, MatchesAny: URL predicates
//
// # Usage
//
//	spider := crawler.NewSpider(renderer,
//	    crawler.WithMaxDepth(2),
//	    crawler.WithCaptureDir(layout.OriginalDir()),
//	    crawler.WithManifestFile(layout.ManifestFile()),
//	)
//	result, err := spider.Crawl(ctx, "https://example.com/")
//
// Pages are rendered one after another in a single browser tab. An
// interrupted crawl leaves the PNGs written so far but no manifest, and
// cannot be resumed.
package crawler
