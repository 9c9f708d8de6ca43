package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nao1215/linkscan/internal/config"
	"github.com/nao1215/linkscan/internal/crawler"
	"github.com/nao1215/linkscan/internal/log"
)

const (
	scanRoute   = "/api/v1/linkscan"
	healthRoute = "/api/v1/health"

	requestIDHeader = "X-Request-ID"
	shutdownTimeout = 10 * time.Second
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve link scans over HTTP",
		Long: `Serve exposes the link scanner as a JSON HTTP API.

Endpoints:
  GET /api/v1/linkscan?start_url=<url>&max_pages=<1-50>
      Runs a scan and returns the report. start_url falls back to
      --default-url (or LINKSCAN_DEFAULT_URL); max_pages defaults to 50.
  GET /api/v1/health
      Reports that the server is up.

Examples:
  linkscan serve
  linkscan serve --addr 127.0.0.1:9000 --default-url https://example.com`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().String("addr", config.DefaultListenAddr, "Address to listen on")
	cmd.Flags().String("default-url", "",
		"URL scanned when a request has no start_url (default: $LINKSCAN_DEFAULT_URL)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: ./.linkscan, $XDG_CONFIG_HOME/linkscan/config.yaml, ~/.linkscan)")
	cmd.Flags().Duration("crawl-delay", config.DefaultCrawlDelay,
		"Minimum delay between requests within one scan")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return err
	}
	cfg.DefaultURL, err = cmd.Flags().GetString("default-url")
	if err != nil {
		return err
	}
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	cfg.CrawlDelay, err = cmd.Flags().GetDuration("crawl-delay")
	if err != nil {
		return err
	}
	if cfg.CrawlDelay < 0 {
		return fmt.Errorf("configuration error: %w", config.ErrInvalidCrawlDelay)
	}
	cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()

	logger := log.NewSecureJSONLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	srv := &http.Server{
		Addr:              addr,
		Handler:           newScanServer(cfg, logger).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s\n", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// scanServer serves the link scan API.
type scanServer struct {
	cfg    *config.Config
	client *http.Client
	logger *slog.Logger
}

func newScanServer(cfg *config.Config, logger *slog.Logger) *scanServer {
	return &scanServer{
		cfg:    cfg,
		client: crawler.NewRedirectClient(),
		logger: logger,
	}
}

func (s *scanServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+scanRoute, s.handleScan)
	mux.HandleFunc("GET "+healthRoute, s.handleHealth)
	return s.withRequestID(mux)
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

func (s *scanServer) handleScan(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	maxPages := config.DefaultMaxPages
	if raw := query.Get("max_pages"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, http.StatusUnprocessableEntity, "max_pages must be an integer")
			return
		}
		if n < 1 || n > crawler.MaxPagesHardLimit {
			s.writeError(w, r, http.StatusUnprocessableEntity,
				fmt.Sprintf("max_pages must be between 1 and %d", crawler.MaxPagesHardLimit))
			return
		}
		maxPages = n
	}

	startURL := strings.TrimSpace(query.Get("start_url"))
	if startURL == "" {
		startURL = strings.TrimSpace(s.cfg.DefaultURL)
	}
	if startURL == "" {
		s.writeError(w, r, http.StatusBadRequest, "start_url is required (no default URL configured)")
		return
	}

	scanner := newSiteScanner(s.cfg, startURL, s.client, s.logger)
	report, err := scanner.Scan(r.Context(), startURL, maxPages)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, fmt.Sprintf("link scan failed: %v", err))
		return
	}

	s.writeJSON(w, r, http.StatusOK, report)
}

func (s *scanServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   getVersion(),
	})
}

// withRequestID tags every request with an ID, taken from the client
// when present, and logs the request.
func (s *scanServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
			r.Header.Set(requestIDHeader, requestID)
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request handled",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
	})
}

func (s *scanServer) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response",
			"request_id", r.Header.Get(requestIDHeader),
			"error", err,
		)
	}
}

func (s *scanServer) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.logger.Warn("request failed",
		"request_id", r.Header.Get(requestIDHeader),
		"path", r.URL.Path,
		"status", status,
		"message", message,
	)
	s.writeJSON(w, r, status, ErrorResponse{
		Status:    status,
		Message:   message,
		RequestID: r.Header.Get(requestIDHeader),
	})
}
