package model

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ScanReport is the result of one link scan.
// It is created at the start of a scan and returned when the crawl ends;
// nothing in it refers to state owned by another scan.
//
// The JSON shape is the public wire format of the scanner and is served
// unchanged by the HTTP endpoint and stored as-is in the history database.
type ScanReport struct {
	// StartURL is the normalized start URL (scheme always present).
	StartURL string `json:"start_url"`

	// ScannedPages lists every page dequeued for processing, in BFS order.
	// Pages that failed to load are included.
	ScannedPages []string `json:"scanned_pages"`

	// ScannedCount is len(ScannedPages).
	ScannedCount int `json:"scanned_count"`

	// MaxPages is the effective page budget after clamping.
	MaxPages int `json:"max_pages"`

	// TotalLinksChecked counts unique links that were health-checked.
	TotalLinksChecked int `json:"total_links_checked"`

	// OKCount counts links whose final status was 2xx or 3xx.
	OKCount int `json:"ok_count"`

	// BrokenCount counts links that failed or returned 4xx/5xx.
	BrokenCount int `json:"broken_count"`

	// SkippedNonHTTP counts anchors that were empty or pointed at
	// mailto:, tel:, javascript: or an in-page fragment.
	SkippedNonHTTP int `json:"skipped_non_http"`

	// Broken lists broken links in discovery order.
	Broken []BrokenLink `json:"broken"`

	// DurationMS is the wall-clock duration of the scan in milliseconds.
	DurationMS int64 `json:"duration_ms"`
}

// BrokenLink records a link that failed its health check.
type BrokenLink struct {
	// SourcePage is the page on which the link was first found.
	SourcePage string `json:"source_page"`

	// Link is the absolute target URL.
	Link string `json:"link"`

	// StatusCode is the final HTTP status, or nil when no response was received.
	StatusCode *int `json:"status_code"`

	// Error holds the transport error text, or nil when a response was received.
	Error *string `json:"error"`
}

// NewScanReport creates an empty report for the given start URL and budget.
// Slices are initialized so that the JSON output never contains null lists.
func NewScanReport(startURL string, maxPages int) *ScanReport {
	return &ScanReport{
		StartURL:     startURL,
		ScannedPages: make([]string, 0),
		MaxPages:     maxPages,
		Broken:       make([]BrokenLink, 0),
	}
}

// NewBrokenLink builds a BrokenLink from a check outcome.
// A zero status code is stored as nil, as is an empty error.
func NewBrokenLink(sourcePage, link string, statusCode int, err error) BrokenLink {
	b := BrokenLink{
		SourcePage: sourcePage,
		Link:       link,
	}
	if statusCode != 0 {
		code := statusCode
		b.StatusCode = &code
	}
	if err != nil {
		msg := err.Error()
		b.Error = &msg
	}
	return b
}

// AddPage appends a page to the visitation list and keeps ScannedCount in sync.
func (r *ScanReport) AddPage(pageURL string) {
	r.ScannedPages = append(r.ScannedPages, pageURL)
	r.ScannedCount = len(r.ScannedPages)
}

// RecordOK counts a healthy link.
func (r *ScanReport) RecordOK() {
	r.TotalLinksChecked++
	r.OKCount++
}

// RecordBroken counts a broken link and appends its record.
func (r *ScanReport) RecordBroken(b BrokenLink) {
	r.TotalLinksChecked++
	r.BrokenCount++
	r.Broken = append(r.Broken, b)
}

// SetDuration stores the elapsed scan time.
func (r *ScanReport) SetDuration(d time.Duration) {
	r.DurationMS = d.Milliseconds()
}

// Duration returns the elapsed scan time.
func (r *ScanReport) Duration() time.Duration {
	return time.Duration(r.DurationMS) * time.Millisecond
}

// HasBroken reports whether any broken link was found.
func (r *ScanReport) HasBroken() bool {
	return r.BrokenCount > 0
}

// HealthyRatio returns OKCount / TotalLinksChecked, or 1 when nothing was checked.
func (r *ScanReport) HealthyRatio() float64 {
	if r.TotalLinksChecked == 0 {
		return 1
	}
	return float64(r.OKCount) / float64(r.TotalLinksChecked)
}

// BrokenBySource groups broken links by their source page.
// The returned page order is the order in which each page first produced
// a broken link, so it follows crawl order.
func (r *ScanReport) BrokenBySource() ([]string, map[string][]BrokenLink) {
	order := make([]string, 0)
	groups := make(map[string][]BrokenLink)
	for _, b := range r.Broken {
		if _, ok := groups[b.SourcePage]; !ok {
			order = append(order, b.SourcePage)
		}
		groups[b.SourcePage] = append(groups[b.SourcePage], b)
	}
	return order, groups
}

// Host returns the lower-cased host (and port, if any) of the start URL.
// It is the key under which reports for the same site are grouped.
func (r *ScanReport) Host() string {
	u, err := url.Parse(r.StartURL)
	if err != nil {
		return strings.ToLower(r.StartURL)
	}
	return strings.ToLower(u.Host)
}

// StatusText returns the status code as text, or "-" when unknown.
func (b BrokenLink) StatusText() string {
	if b.StatusCode == nil {
		return "-"
	}
	return strconv.Itoa(*b.StatusCode)
}

// ErrorText returns the error text, or "" when none was recorded.
func (b BrokenLink) ErrorText() string {
	if b.Error == nil {
		return ""
	}
	return *b.Error
}
