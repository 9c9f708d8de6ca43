// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// # Security Features
//
// The SecureHandler sanitizes sensitive information in log output:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - Secret values detected by pattern matching (tokens, keys)
//   - Slack and Discord webhook URLs
//
// Site cookies and custom headers come from the user's config file and are
// masked even in verbose mode.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//
//	logger.Info("notification sent",
//	    "webhook_url", cfg.WebhookURL, // Will be masked
//	    "start_url", "https://example.com",
//	)
package log
