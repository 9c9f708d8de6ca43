package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/slack-go/slack"

	"github.com/nao1215/linkscan/internal/model"
)

type webhookRecorder struct {
	mu       sync.Mutex
	messages []slack.WebhookMessage
	paths    []string
}

func (r *webhookRecorder) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body) //nolint:errcheck
		var msg slack.WebhookMessage
		_ = json.Unmarshal(body, &msg) //nolint:errcheck

		r.mu.Lock()
		r.messages = append(r.messages, msg)
		r.paths = append(r.paths, req.URL.Path)
		r.mu.Unlock()

		w.WriteHeader(status)
	}
}

func (r *webhookRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func brokenReport(n int) *model.ScanReport {
	report := model.NewScanReport("https://example.com", 50)
	report.AddPage("https://example.com")
	report.RecordOK()
	for i := range n {
		report.RecordBroken(model.NewBrokenLink("https://example.com", fmt.Sprintf("https://example.com/missing-%d", i), 404, nil))
	}
	return report
}

func TestNewWebhookNotifier(t *testing.T) {
	t.Parallel()

	t.Run("requires a URL", func(t *testing.T) {
		t.Parallel()

		for _, u := range []string{"", "   "} {
			if _, err := NewWebhookNotifier(u); !errors.Is(err, ErrNoWebhookURL) {
				t.Errorf("expected ErrNoWebhookURL for %q, got %v", u, err)
			}
		}
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		n, err := NewWebhookNotifier("https://hooks.slack.com/services/T/B/X")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !n.onlyBroken {
			t.Error("expected onlyBroken to default to true")
		}
		if n.maxLinks != DefaultMaxListedLinks {
			t.Errorf("expected maxLinks %d, got %d", DefaultMaxListedLinks, n.maxLinks)
		}
	})
}

func TestWebhookEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"https://hooks.slack.com/services/T/B/X", "https://hooks.slack.com/services/T/B/X"},
		{"https://discord.com/api/webhooks/1/abc", "https://discord.com/api/webhooks/1/abc/slack"},
		{"https://discordapp.com/api/webhooks/1/abc/", "https://discordapp.com/api/webhooks/1/abc/slack"},
		{"https://discord.com/api/webhooks/1/abc/slack", "https://discord.com/api/webhooks/1/abc/slack"},
		{"https://discord.com/invite/abc", "https://discord.com/invite/abc"},
		{"http://127.0.0.1:9999/hook", "http://127.0.0.1:9999/hook"},
	}

	for _, tt := range tests {
		if got := webhookEndpoint(tt.input); got != tt.want {
			t.Errorf("webhookEndpoint(%q): expected %q, got %q", tt.input, tt.want, got)
		}
	}
}

func TestNotify(t *testing.T) {
	t.Parallel()

	t.Run("posts report with broken links", func(t *testing.T) {
		t.Parallel()

		var rec webhookRecorder
		server := httptest.NewServer(rec.handler(http.StatusOK))
		defer server.Close()

		n, err := NewWebhookNotifier(server.URL + "/hook")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		sent, err := n.Notify(context.Background(), brokenReport(2))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !sent {
			t.Fatal("expected message to be sent")
		}
		if rec.count() != 1 {
			t.Fatalf("expected 1 message, got %d", rec.count())
		}

		msg := rec.messages[0]
		if !strings.Contains(msg.Text, "2 broken link(s) on https://example.com") {
			t.Errorf("unexpected text %q", msg.Text)
		}
		if len(msg.Attachments) != 2 {
			t.Fatalf("expected 2 attachments, got %d", len(msg.Attachments))
		}
		if !strings.Contains(msg.Attachments[1].Text, "https://example.com/missing-1 (404)") {
			t.Errorf("unexpected broken link list %q", msg.Attachments[1].Text)
		}
	})

	t.Run("skips healthy report by default", func(t *testing.T) {
		t.Parallel()

		var rec webhookRecorder
		server := httptest.NewServer(rec.handler(http.StatusOK))
		defer server.Close()

		n, err := NewWebhookNotifier(server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		sent, err := n.Notify(context.Background(), brokenReport(0))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sent || rec.count() != 0 {
			t.Error("expected no message for healthy report")
		}
	})

	t.Run("posts healthy report when configured", func(t *testing.T) {
		t.Parallel()

		var rec webhookRecorder
		server := httptest.NewServer(rec.handler(http.StatusOK))
		defer server.Close()

		n, err := NewWebhookNotifier(server.URL, WithOnlyBroken(false), WithHTTPClient(server.Client()))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		sent, err := n.Notify(context.Background(), brokenReport(0))
		if err != nil || !sent {
			t.Fatalf("expected message to be sent, got sent=%v err=%v", sent, err)
		}
		if !strings.Contains(rec.messages[0].Text, "No broken links") {
			t.Errorf("unexpected text %q", rec.messages[0].Text)
		}
	})

	t.Run("returns error on failed post", func(t *testing.T) {
		t.Parallel()

		var rec webhookRecorder
		server := httptest.NewServer(rec.handler(http.StatusInternalServerError))
		defer server.Close()

		n, err := NewWebhookNotifier(server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		sent, err := n.Notify(context.Background(), brokenReport(1))
		if err == nil {
			t.Fatal("expected error")
		}
		if sent {
			t.Error("expected sent to be false")
		}
	})
}

func TestBuildMessage(t *testing.T) {
	t.Parallel()

	t.Run("limits listed links", func(t *testing.T) {
		t.Parallel()

		msg := BuildMessage(brokenReport(15), 10)
		text := msg.Attachments[1].Text
		if strings.Count(text, "• ") != 10 {
			t.Errorf("expected 10 listed links, got %q", text)
		}
		if !strings.Contains(text, "...and 5 more") {
			t.Errorf("expected overflow line, got %q", text)
		}
	})

	t.Run("shows transport errors", func(t *testing.T) {
		t.Parallel()

		report := model.NewScanReport("https://example.com", 1)
		report.RecordBroken(model.NewBrokenLink("https://example.com", "https://down.example/", 0, errors.New("connection refused")))

		msg := BuildMessage(report, 10)
		if !strings.Contains(msg.Attachments[1].Text, "(connection refused)") {
			t.Errorf("expected error text, got %q", msg.Attachments[1].Text)
		}
	})

	t.Run("summary fields", func(t *testing.T) {
		t.Parallel()

		msg := BuildMessage(brokenReport(1), 10)
		fields := msg.Attachments[0].Fields
		if len(fields) != 4 || fields[3].Title != "Broken" || fields[3].Value != "1" {
			t.Errorf("unexpected fields %+v", fields)
		}
		if msg.Attachments[0].Color != colorBroken {
			t.Errorf("expected broken color, got %q", msg.Attachments[0].Color)
		}
	})
}
