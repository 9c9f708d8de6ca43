package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

const (
	// RequestTimeout bounds every single request. The GET retried after a
	// 405 gets a fresh timeout.
	RequestTimeout = 10 * time.Second

	// DefaultUserAgent identifies the scanner to the sites it visits.
	DefaultUserAgent = "LinkScan/1.0 (+https://github.com/nao1215/linkscan)"

	// DefaultMaxBodySize limits how much of a page body is read.
	DefaultMaxBodySize int64 = 5 * 1024 * 1024

	// MaxRedirects is the longest redirect chain followed per request.
	MaxRedirects = 30
)

// Fetcher retrieves the HTML body of a page.
// ok is false when the request failed or the response is not HTML;
// the scanner then treats the page as having no links.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (body string, ok bool)
}

// Checker health-checks a single link.
type Checker interface {
	Check(ctx context.Context, link string) LinkStatus
}

// LinkStatus is the outcome of a link check.
type LinkStatus struct {
	// OK is true when the final status code is in [200, 400).
	OK bool

	// StatusCode is the final HTTP status, or 0 when no response arrived.
	StatusCode int

	// Err is the transport error when no response arrived.
	Err error
}

// HTTPClient is the net/http backed Fetcher and Checker.
// A single HTTPClient can be shared by concurrent scans.
type HTTPClient struct {
	client        *http.Client
	timeout       time.Duration
	userAgent     string
	maxBodySize   int64
	originHeaders map[string]http.Header
}

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) HTTPClientOption {
	return func(c *HTTPClient) {
		c.userAgent = ua
	}
}

// WithMaxBodySize sets the maximum number of page bytes read.
func WithMaxBodySize(size int64) HTTPClientOption {
	return func(c *HTTPClient) {
		c.maxBodySize = size
	}
}

// WithTimeout overrides RequestTimeout.
func WithTimeout(d time.Duration) HTTPClientOption {
	return func(c *HTTPClient) {
		c.timeout = d
	}
}

// WithOriginHeaders adds extra headers to every request whose URL shares
// the origin of siteURL. It is used for cookies and custom headers from
// the site configuration, which must never leak to third-party hosts.
func WithOriginHeaders(siteURL string, headers http.Header) HTTPClientOption {
	return func(c *HTTPClient) {
		origin := originOf(NormalizeStartURL(siteURL))
		if origin == "" || len(headers) == 0 {
			return
		}
		if c.originHeaders == nil {
			c.originHeaders = make(map[string]http.Header)
		}
		merged := c.originHeaders[origin]
		if merged == nil {
			merged = make(http.Header)
		}
		for key, values := range headers {
			for _, v := range values {
				merged.Add(key, v)
			}
		}
		c.originHeaders[origin] = merged
	}
}

// NewHTTPClient creates an HTTPClient on top of client.
// A nil client gets a fresh http.Client that follows up to MaxRedirects redirects.
func NewHTTPClient(client *http.Client, opts ...HTTPClientOption) *HTTPClient {
	if client == nil {
		client = NewRedirectClient()
	}
	c := &HTTPClient{
		client:      client,
		timeout:     RequestTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewRedirectClient returns an http.Client that follows up to MaxRedirects
// redirects instead of net/http's default of 10.
func NewRedirectClient() *http.Client {
	return &http.Client{CheckRedirect: limitRedirects}
}

func limitRedirects(_ *http.Request, via []*http.Request) error {
	if len(via) >= MaxRedirects {
		return fmt.Errorf("%w (%d)", ErrTooManyRedirects, MaxRedirects)
	}
	return nil
}

// Fetch performs a GET and returns the decoded body when the response
// content type contains text/html. Redirects are followed.
func (c *HTTPClient) Fetch(ctx context.Context, pageURL string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, pageURL)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return "", false
	}

	var body io.Reader = io.LimitReader(resp.Body, c.maxBodySize)
	if decoded, err := charset.NewReader(body, contentType); err == nil {
		body = decoded
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Check sends a HEAD request and, only when the server answers
// 405 Method Not Allowed, repeats it once as GET. Each request gets its
// own timeout.
func (c *HTTPClient) Check(ctx context.Context, link string) LinkStatus {
	code, err := c.status(ctx, http.MethodHead, link)
	if err != nil {
		return LinkStatus{Err: err}
	}
	if code == http.StatusMethodNotAllowed {
		code, err = c.status(ctx, http.MethodGet, link)
		if err != nil {
			return LinkStatus{Err: err}
		}
	}

	return LinkStatus{
		OK:         code >= 200 && code < 400,
		StatusCode: code,
	}
}

// status performs a request and returns the final status code, discarding the body.
func (c *HTTPClient) status(ctx context.Context, method, target string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, method, target)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024)) //nolint:errcheck // keep-alive only

	return resp.StatusCode, nil
}

func (c *HTTPClient) do(ctx context.Context, method, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", c.userAgent)
	if method == http.MethodGet {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	}
	if extra, ok := c.originHeaders[originOf(target)]; ok {
		for key, values := range extra {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}
	}

	return c.client.Do(req)
}
