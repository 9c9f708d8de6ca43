package config

import (
	"net/http"
	"net/url"
	"strings"
)

// SiteConfig holds configuration for a single site.
type SiteConfig struct {
	// Cookie is an HTTP cookie sent to this site only.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers sent to this site only.
	Headers map[string]string `yaml:"headers,omitempty"`

	// MaxPages overrides the page budget for this site.
	// If zero, the global MaxPages is used.
	MaxPages int `yaml:"maxPages,omitempty"`

	// UserAgent overrides the User-Agent for this site.
	UserAgent string `yaml:"userAgent,omitempty"`
}

// File represents the structure of the .linkscan configuration file.
type File struct {
	// Sites maps host names (e.g. "example.com" or "example.com:8080")
	// to their site-specific configurations.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a host.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	if siteConfig, ok := cf.Sites[strings.ToLower(host)]; ok {
		if siteConfig.Cookie != "" {
			result.Cookie = siteConfig.Cookie
		}
		if siteConfig.MaxPages != 0 {
			result.MaxPages = siteConfig.MaxPages
		}
		if siteConfig.UserAgent != "" {
			result.UserAgent = siteConfig.UserAgent
		}
		if len(siteConfig.Headers) > 0 {
			if result.Headers == nil {
				result.Headers = make(map[string]string)
			}
			for k, v := range siteConfig.Headers {
				result.Headers[k] = v
			}
		}
	}

	return result
}

// SiteConfigFor returns the merged configuration for the host of targetURL.
// A URL without a scheme is treated as https.
func (cf *File) SiteConfigFor(targetURL string) SiteConfig {
	return cf.GetSiteConfig(HostOf(targetURL))
}

// HTTPHeaders returns the cookie and custom headers as an http.Header.
func (sc SiteConfig) HTTPHeaders() http.Header {
	h := make(http.Header)
	for k, v := range sc.Headers {
		h.Set(k, v)
	}
	if sc.Cookie != "" {
		h.Set("Cookie", sc.Cookie)
	}
	return h
}

// HostOf returns the lower-cased host (with port, if any) of a target URL.
func HostOf(targetURL string) string {
	targetURL = strings.TrimSpace(targetURL)
	if !strings.HasPrefix(targetURL, "http://") && !strings.HasPrefix(targetURL, "https://") {
		targetURL = "https://" + targetURL
	}
	u, err := url.Parse(targetURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
