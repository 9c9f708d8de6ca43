package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/nao1215/linkscan/internal/model"
)

// ErrNoWebhookURL is returned when a notifier is created without a URL.
var ErrNoWebhookURL = errors.New("webhook URL is empty")

const (
	// DefaultMaxListedLinks is how many broken links a message lists.
	DefaultMaxListedLinks = 10

	// DefaultPostTimeout bounds a single webhook post.
	DefaultPostTimeout = 15 * time.Second

	colorBroken  = "#d50200"
	colorHealthy = "#2eb886"
)

// WebhookNotifier sends scan summaries to a Slack or Discord webhook.
type WebhookNotifier struct {
	endpoint   string
	onlyBroken bool
	maxLinks   int
	httpClient *http.Client
}

// NotifierOption configures a WebhookNotifier.
type NotifierOption func(*WebhookNotifier)

// WithOnlyBroken controls whether healthy reports are skipped. Default true.
func WithOnlyBroken(only bool) NotifierOption {
	return func(n *WebhookNotifier) {
		n.onlyBroken = only
	}
}

// WithMaxListedLinks sets how many broken links are listed per message.
func WithMaxListedLinks(limit int) NotifierOption {
	return func(n *WebhookNotifier) {
		n.maxLinks = limit
	}
}

// WithHTTPClient sets the client used to post messages.
func WithHTTPClient(client *http.Client) NotifierOption {
	return func(n *WebhookNotifier) {
		n.httpClient = client
	}
}

// NewWebhookNotifier creates a notifier for the given webhook URL.
func NewWebhookNotifier(webhookURL string, opts ...NotifierOption) (*WebhookNotifier, error) {
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		return nil, ErrNoWebhookURL
	}

	n := &WebhookNotifier{
		endpoint:   webhookEndpoint(webhookURL),
		onlyBroken: true,
		maxLinks:   DefaultMaxListedLinks,
		httpClient: &http.Client{Timeout: DefaultPostTimeout},
	}

	for _, opt := range opts {
		opt(n)
	}

	return n, nil
}

// Notify posts a summary of report. It reports whether a message was sent;
// healthy reports are skipped unless WithOnlyBroken(false) was given.
func (n *WebhookNotifier) Notify(ctx context.Context, report *model.ScanReport) (bool, error) {
	if n.onlyBroken && !report.HasBroken() {
		return false, nil
	}

	msg := BuildMessage(report, n.maxLinks)
	if err := slack.PostWebhookCustomHTTPContext(ctx, n.endpoint, n.httpClient, msg); err != nil {
		return false, fmt.Errorf("failed to post webhook: %w", err)
	}
	return true, nil
}

// BuildMessage renders a report as a webhook message.
func BuildMessage(report *model.ScanReport, maxLinks int) *slack.WebhookMessage {
	summary := slack.Attachment{
		Color: colorHealthy,
		Title: report.StartURL,
		Fields: []slack.AttachmentField{
			{Title: "Pages scanned", Value: fmt.Sprintf("%d / %d", report.ScannedCount, report.MaxPages), Short: true},
			{Title: "Links checked", Value: fmt.Sprintf("%d", report.TotalLinksChecked), Short: true},
			{Title: "OK", Value: fmt.Sprintf("%d", report.OKCount), Short: true},
			{Title: "Broken", Value: fmt.Sprintf("%d", report.BrokenCount), Short: true},
		},
		Footer: fmt.Sprintf("linkscan | %s", report.Duration()),
	}

	msg := &slack.WebhookMessage{
		Username: "linkscan",
	}

	if !report.HasBroken() {
		msg.Text = fmt.Sprintf(":white_check_mark: No broken links on %s", report.StartURL)
		msg.Attachments = []slack.Attachment{summary}
		return msg
	}

	summary.Color = colorBroken
	msg.Text = fmt.Sprintf(":x: %d broken link(s) on %s", report.BrokenCount, report.StartURL)
	msg.Attachments = []slack.Attachment{summary, brokenLinksAttachment(report, maxLinks)}
	return msg
}

func brokenLinksAttachment(report *model.ScanReport, maxLinks int) slack.Attachment {
	if maxLinks <= 0 {
		maxLinks = DefaultMaxListedLinks
	}

	var sb strings.Builder
	for i, b := range report.Broken {
		if i == maxLinks {
			fmt.Fprintf(&sb, "...and %d more\n", len(report.Broken)-maxLinks)
			break
		}
		detail := b.StatusText()
		if b.Error != nil {
			detail = *b.Error
		}
		fmt.Fprintf(&sb, "• %s (%s) on %s\n", b.Link, detail, b.SourcePage)
	}

	return slack.Attachment{
		Color: colorBroken,
		Title: "Broken links",
		Text:  strings.TrimRight(sb.String(), "\n"),
	}
}

// webhookEndpoint returns the Slack-compatible endpoint for a webhook URL.
// Discord webhooks accept Slack payloads under the /slack suffix.
func webhookEndpoint(webhookURL string) string {
	u, err := url.Parse(webhookURL)
	if err != nil || !isDiscordWebhook(u) {
		return webhookURL
	}
	if strings.HasSuffix(u.Path, "/slack") || strings.HasSuffix(u.Path, "/github") {
		return webhookURL
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/slack"
	return u.String()
}

func isDiscordWebhook(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	switch host {
	case "discord.com", "discordapp.com", "ptb.discord.com", "canary.discord.com":
		return strings.HasPrefix(u.Path, "/api/webhooks/")
	default:
		return false
	}
}
