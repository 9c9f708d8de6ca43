// Package pipeline runs the per-target stages of a link scan.
//
// A Job carries one target through an ordered list of Steps: the crawl
// itself, persistence of the resulting report and chat notification. The
// BatchProcessor runs one pipeline per target concurrently with errgroup,
// and every job owns its own scanner session, so targets never share crawl
// state.
package pipeline
