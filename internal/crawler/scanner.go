package crawler

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/linkscan/internal/model"
)

// Scanner crawls a site breadth-first and health-checks every link it finds.
// Scanner holds no per-scan state, so one instance may run many scans
// concurrently.
type Scanner struct {
	fetcher Fetcher
	checker Checker
	parser  *Parser
	logger  *slog.Logger

	// limit is the request rate applied within a single scan.
	limit rate.Limit
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithLogger sets the logger used for progress messages.
func WithLogger(logger *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// WithFetcher replaces the page fetcher.
func WithFetcher(f Fetcher) ScannerOption {
	return func(s *Scanner) {
		s.fetcher = f
	}
}

// WithChecker replaces the link checker.
func WithChecker(c Checker) ScannerOption {
	return func(s *Scanner) {
		s.checker = c
	}
}

// WithRateLimit caps the number of requests per second a scan issues.
// rate.Inf, the default, disables the limit.
func WithRateLimit(limit rate.Limit) ScannerOption {
	return func(s *Scanner) {
		s.limit = limit
	}
}

// NewScanner creates a Scanner. Without WithFetcher or WithChecker,
// a default HTTPClient serves both roles.
func NewScanner(opts ...ScannerOption) *Scanner {
	s := &Scanner{
		parser: NewParser(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		limit:  rate.Inf,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.fetcher == nil || s.checker == nil {
		client := NewHTTPClient(nil)
		if s.fetcher == nil {
			s.fetcher = client
		}
		if s.checker == nil {
			s.checker = client
		}
	}

	return s
}

// session is the state of one Scan call.
type session struct {
	startURL string
	budget   int
	frontier *frontier
	links    *linkRegistry
	limiter  *rate.Limiter
	report   *model.ScanReport
}

// Scan crawls up to maxPages same-origin pages starting at startURL and
// checks every distinct link found on them.
//
// maxPages is clamped to [1, MaxPagesHardLimit]. Failed fetches and broken
// links are recorded in the report, not returned as errors. The only errors
// are ErrInvalidStartURL and the context error when ctx ends; in the latter
// case the partial report is returned as well.
func (s *Scanner) Scan(ctx context.Context, startURL string, maxPages int) (*model.ScanReport, error) {
	if strings.TrimSpace(startURL) == "" {
		return nil, ErrInvalidStartURL
	}

	began := time.Now()
	sess := s.newSession(NormalizeStartURL(startURL), ClampMaxPages(maxPages))

	s.logger.Info("scan started",
		"start_url", sess.startURL,
		"max_pages", sess.budget,
	)

	err := s.crawl(ctx, sess)
	sess.report.SetDuration(time.Since(began))

	s.logger.Info("scan finished",
		"start_url", sess.startURL,
		"scanned_pages", sess.report.ScannedCount,
		"links_checked", sess.report.TotalLinksChecked,
		"broken", sess.report.BrokenCount,
		"duration", sess.report.Duration(),
	)

	return sess.report, err
}

func (s *Scanner) newSession(startURL string, budget int) *session {
	sess := &session{
		startURL: startURL,
		budget:   budget,
		frontier: newFrontier(startURL),
		links:    newLinkRegistry(),
		report:   model.NewScanReport(startURL, budget),
	}
	if s.limit != rate.Inf {
		sess.limiter = rate.NewLimiter(s.limit, 1)
	}
	return sess
}

func (s *Scanner) crawl(ctx context.Context, sess *session) error {
	for !sess.frontier.empty() && sess.report.ScannedCount < sess.budget {
		if err := ctx.Err(); err != nil {
			return err
		}

		pageURL, _ := sess.frontier.pop()
		if !sess.frontier.markVisited(pageURL) {
			continue
		}
		sess.report.AddPage(pageURL)

		hrefs := s.fetchHrefs(ctx, sess, pageURL)
		for _, href := range hrefs {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.processHref(ctx, sess, pageURL, href)
		}
	}
	return ctx.Err()
}

// fetchHrefs loads a page and returns its anchors, or nothing when the
// page could not be loaded as HTML.
func (s *Scanner) fetchHrefs(ctx context.Context, sess *session, pageURL string) []string {
	if err := sess.wait(ctx); err != nil {
		return nil
	}

	body, ok := s.fetcher.Fetch(ctx, pageURL)
	if !ok {
		s.logger.Debug("page not loaded", "url", pageURL)
		return nil
	}

	page, err := s.parser.Parse(strings.NewReader(body))
	if err != nil {
		s.logger.Debug("page not parsed", "url", pageURL, "error", err)
		return nil
	}
	s.logger.Debug("page parsed", "url", pageURL, "title", page.Title, "anchors", len(page.Hrefs))
	return page.Hrefs
}

func (s *Scanner) processHref(ctx context.Context, sess *session, pageURL, href string) {
	if isSkippedHref(href) {
		sess.report.SkippedNonHTTP++
		return
	}

	link := resolveLink(pageURL, href)
	if sameOrigin(link, sess.startURL) && !sess.frontier.isVisited(link) {
		sess.frontier.push(link)
	}

	if !sess.links.firstSighting(link) {
		return
	}

	if err := sess.wait(ctx); err != nil {
		return
	}

	status := s.checker.Check(ctx, link)
	if ctx.Err() != nil {
		return
	}
	if status.OK {
		sess.report.RecordOK()
		return
	}

	s.logger.Debug("broken link",
		"source_page", pageURL,
		"link", link,
		"status", status.StatusCode,
		"error", status.Err,
	)
	sess.report.RecordBroken(model.NewBrokenLink(pageURL, link, status.StatusCode, status.Err))
}

// wait blocks until the session's rate limiter admits another request.
func (sess *session) wait(ctx context.Context) error {
	if sess.limiter == nil {
		return nil
	}
	return sess.limiter.Wait(ctx)
}
