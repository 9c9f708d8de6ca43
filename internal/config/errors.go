package config

import "errors"

// Configuration errors returned by Config.Validate and LoadConfigFile.
var (
	// ErrNoTarget is returned when no URL is given and no default URL is configured.
	ErrNoTarget = errors.New("no target specified: provide a URL or set LINKSCAN_DEFAULT_URL")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when more than one of
	// --json, --markdown and --csv is given.
	ErrConflictingReportFormats = errors.New("conflicting report formats: choose one of --json, --markdown or --csv")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidSiteConfig is returned when a site entry of the
	// configuration file has an invalid value.
	ErrInvalidSiteConfig = errors.New("invalid site configuration")
)
