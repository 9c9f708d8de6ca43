package crawler

import (
	"net"
	"net/url"
	"strings"
)

// MaxPagesHardLimit is the largest page budget a scan accepts.
const MaxPagesHardLimit = 50

// skippedHrefPrefixes are href prefixes that never name a fetchable resource.
var skippedHrefPrefixes = []string{"mailto:", "tel:", "javascript:", "#"}

// NormalizeStartURL trims the input and prefixes https:// when it carries
// neither an http:// nor an https:// scheme.
func NormalizeStartURL(startURL string) string {
	startURL = strings.TrimSpace(startURL)
	if strings.HasPrefix(startURL, "http://") || strings.HasPrefix(startURL, "https://") {
		return startURL
	}
	return "https://" + startURL
}

// ClampMaxPages limits a requested page budget to [1, MaxPagesHardLimit].
func ClampMaxPages(maxPages int) int {
	return max(1, min(maxPages, MaxPagesHardLimit))
}

// isSkippedHref reports whether an href is empty or points at a
// non-HTTP target (mail, phone, script or in-page fragment).
// Only a truly empty href counts as empty; a whitespace-only href
// resolves to its page and is checked.
func isSkippedHref(href string) bool {
	if href == "" {
		return true
	}
	trimmed := strings.TrimSpace(href)
	for _, prefix := range skippedHrefPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// resolveLink resolves href against the page it was found on.
// When either side fails to parse, the trimmed href is returned as-is so
// that the link check reports the problem.
func resolveLink(pageURL, href string) string {
	href = strings.TrimSpace(href)
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// originOf returns scheme://host:port with the default port made explicit,
// or "" when the URL cannot be parsed or has no host.
func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == "" {
		switch scheme {
		case "http":
			port = "80"
		case "https":
			port = "443"
		}
	}
	return scheme + "://" + net.JoinHostPort(host, port)
}

// sameOrigin reports whether two URLs share scheme, host and port.
func sameOrigin(a, b string) bool {
	oa := originOf(a)
	return oa != "" && oa == originOf(b)
}
