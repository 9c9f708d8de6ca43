// Package main provides the entry point for the linkscan CLI.
//
// linkscan crawls the same-origin pages of a website, checks every unique
// link it finds exactly once and reports the broken ones.
//
// Usage:
//
//	linkscan scan https://example.com
//	linkscan history example.com
//	linkscan serve --addr :8000
//
// See --help for all available options.
package main

func main() {
	Execute()
}
