// Package notify posts scan summaries to chat webhooks.
//
// Slack incoming webhooks are used as-is. Discord webhook URLs are rewritten
// to their Slack-compatible endpoint, so one message format serves both.
package notify
