package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultMaxPages is the page budget used when none is given.
	// It equals the scanner's hard limit.
	DefaultMaxPages = 50

	// DefaultBatchSize is the number of sites scanned concurrently.
	DefaultBatchSize = 4

	// AppName is the application name used for XDG directory paths.
	AppName = "linkscan"

	// DefaultCrawlDelay is the delay between requests within one scan.
	// Zero disables the delay.
	DefaultCrawlDelay = 0 * time.Second

	// DefaultUserAgent identifies linkscan in HTTP requests.
	DefaultUserAgent = "LinkScan/1.0 (+https://github.com/nao1215/linkscan)"

	// DefaultMaxBodySize limits the page body read per fetch.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultListenAddr is the address the serve command binds to.
	DefaultListenAddr = ":8000"
)

// Config holds all configuration options for linkscan.
// It is populated from CLI flags, the environment and the config file and
// then passed through the application explicitly.
type Config struct {
	// MaxPages is the page budget per site. Values outside [1, 50] are
	// clamped by the scanner.
	MaxPages int

	// Verbose enables debug logging.
	Verbose bool

	// BatchSize is the number of concurrent scans when several targets are given.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, the locations of ConfigSearchPaths are tried.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config file.
	SiteConfigs *File

	// JSONReport selects the JSON report. Mutually exclusive with
	// MarkdownReport and CSVReport.
	JSONReport bool

	// MarkdownReport selects the Markdown report.
	MarkdownReport bool

	// CSVReport selects the CSV report of broken links.
	CSVReport bool

	// ReportFile is the output file path for the report.
	// When empty, the report is written to stdout.
	ReportFile string

	// Targets is the list of start URLs to scan.
	Targets []string

	// DBDir is the directory holding the history database.
	// Defaults to the XDG data directory (~/.local/share/linkscan on Linux).
	DBDir string

	// SaveToDB indicates whether scan reports are stored in the history database.
	SaveToDB bool

	// CrawlDelay is the minimum delay between requests within one scan.
	CrawlDelay time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum page body size in bytes.
	// Set to 0 to use the default (5MB).
	MaxBodySize int64

	// WebhookURL is the Slack or Discord webhook receiving scan summaries.
	// Empty disables notifications.
	WebhookURL string

	// NotifyOnlyBroken suppresses notifications for reports without broken links.
	NotifyOnlyBroken bool

	// DefaultURL is scanned when no target is given.
	DefaultURL string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxPages:         DefaultMaxPages,
		BatchSize:        DefaultBatchSize,
		CrawlDelay:       DefaultCrawlDelay,
		UserAgent:        DefaultUserAgent,
		MaxBodySize:      DefaultMaxBodySize,
		DBDir:            XDGDataDir(),
		SaveToDB:         true,
		NotifyOnlyBroken: true,
	}
}

// XDGDataDir returns the XDG data directory for linkscan.
// On Linux: ~/.local/share/linkscan
// On macOS: ~/Library/Application Support/linkscan
// On Windows: %LOCALAPPDATA%\linkscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for linkscan.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	formats := 0
	for _, enabled := range []bool{c.JSONReport, c.MarkdownReport, c.CSVReport} {
		if enabled {
			formats++
		}
	}
	if formats > 1 {
		return ErrConflictingReportFormats
	}

	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}

// EffectiveMaxBodySize returns MaxBodySize, or the default when unset.
func (c *Config) EffectiveMaxBodySize() int64 {
	if c.MaxBodySize == 0 {
		return DefaultMaxBodySize
	}
	return c.MaxBodySize
}
