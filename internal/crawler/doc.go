// Package crawler implements the link scanner.
//
// # Architecture
//
// Scanner drives a breadth-first crawl of the pages that share the start
// URL's origin (scheme, host and port). Every page is fetched, its anchors
// are extracted and each distinct absolute link is health-checked exactly
// once per scan. Cross-origin links are checked but never crawled.
//
// The crawl is sequential: one page is fetched and all of its new links are
// checked before the next page is dequeued. The broken-link list is therefore
// deterministic for a deterministic site.
//
// # Components
//
//   - Scanner: owns the collaborators and runs one session per Scan call
//   - Fetcher / Checker: the two network capabilities the scanner consumes
//   - HTTPClient: default Fetcher and Checker over net/http
//   - Parser: anchor extraction from HTML documents
//   - frontier / link registry: session-scoped queue and sets
//
// # Limits
//
//   - The page budget is clamped to [1, MaxPagesHardLimit].
//   - Every request uses RequestTimeout; failures are recorded, never retried.
//   - Link checks use HEAD and fall back to GET only on 405 Method Not Allowed.
//
// # Usage
//
//	scanner := crawler.NewScanner(crawler.WithLogger(logger))
//	report, err := scanner.Scan(ctx, "example.com", 50)
package crawler
