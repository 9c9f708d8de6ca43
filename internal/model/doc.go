// Package model defines the report types shared by the crawler, the report
// writers, the history database and the HTTP endpoint.
//
//   - ScanReport: the result of one link scan
//   - BrokenLink: a link that failed its health check
//
// The types serialize to the scanner's JSON wire format.
package model
