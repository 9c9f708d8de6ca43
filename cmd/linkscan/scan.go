package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/nao1215/linkscan/internal/config"
	"github.com/nao1215/linkscan/internal/crawler"
	"github.com/nao1215/linkscan/internal/database"
	"github.com/nao1215/linkscan/internal/log"
	"github.com/nao1215/linkscan/internal/notify"
	"github.com/nao1215/linkscan/internal/pipeline"
	"github.com/nao1215/linkscan/internal/report"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [url...]",
		Short: "Scan websites for broken links",
		Long: `Scan crawls each given site breadth-first, staying on the start URL's
scheme, host and port, and checks every unique link once.

URLs without a scheme are scanned over https. When no URL is given, the value
of LINKSCAN_DEFAULT_URL is used.

Examples:
  # Scan a single site
  linkscan scan https://example.com

  # Scan several sites, two at a time
  linkscan scan -b 2 example.com example.org example.net

  # Limit the crawl to 10 pages and print JSON
  linkscan scan -p 10 --json https://example.com

  # Write a Markdown report to a file and a text summary to the terminal
  linkscan scan -m -o reports/example.md https://example.com

  # Post a summary to Slack when broken links are found
  linkscan scan --webhook https://hooks.slack.com/services/... https://example.com

Configuration file (.linkscan) example:
  sites:
    example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"
      maxPages: 20`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to crawl per site (1-50)")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent scans")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: ./.linkscan, $XDG_CONFIG_HOME/linkscan/config.yaml, ~/.linkscan)")
	cmd.Flags().Duration("crawl-delay", config.DefaultCrawlDelay,
		"Minimum delay between requests within one scan (e.g. 200ms)")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum number of bytes read from each page")

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report")
	cmd.Flags().Bool("csv", false,
		"Output broken links as CSV")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path and a text summary to stdout")

	cmd.Flags().Bool("no-save", false,
		"Do not store the report in the history database")
	cmd.Flags().String("webhook", "",
		"Slack or Discord webhook URL for notifications (default: $LINKSCAN_WEBHOOK_URL)")
	cmd.Flags().Bool("notify-always", false,
		"Send a notification even when no broken link was found")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScan(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// buildConfig creates a Config from cobra command flags, the config file
// and the environment.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.CrawlDelay, err = cmd.Flags().GetDuration("crawl-delay")
	if err != nil {
		return nil, err
	}

	cfg.MaxBodySize, err = cmd.Flags().GetInt64("max-body-size")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath)
	if err != nil {
		return nil, err
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.CSVReport, err = cmd.Flags().GetBool("csv")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	noSave, err := cmd.Flags().GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave

	cfg.WebhookURL, err = cmd.Flags().GetString("webhook")
	if err != nil {
		return nil, err
	}

	notifyAlways, err := cmd.Flags().GetBool("notify-always")
	if err != nil {
		return nil, err
	}
	cfg.NotifyOnlyBroken = !notifyAlways

	cfg.ApplyEnv()

	cfg.Targets = args
	if len(cfg.Targets) == 0 && cfg.DefaultURL != "" {
		cfg.Targets = []string{cfg.DefaultURL}
	}

	return cfg, nil
}

// loadSiteConfigs loads the configuration file. A missing file is an error
// only when its path was given explicitly.
func loadSiteConfigs(configFilePath string) (*config.File, error) {
	configPath := config.FindConfigFile(configFilePath)
	if configPath == "" {
		if configFilePath != "" {
			return nil, fmt.Errorf("configuration file not found: %s", configFilePath)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}

	siteConfigs, err := config.LoadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	return siteConfigs, nil
}

// runScan scans every target and writes one report per target to out,
// or to cfg.ReportFile with a text summary to out. Per-target failures go
// to errOut.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger, out, errOut io.Writer) error {
	logger.Info("starting scan",
		"targets", cfg.Targets,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.ScanDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	var notifier *notify.WebhookNotifier
	if cfg.WebhookURL != "" {
		var err error
		notifier, err = notify.NewWebhookNotifier(cfg.WebhookURL, notify.WithOnlyBroken(cfg.NotifyOnlyBroken))
		if err != nil {
			return fmt.Errorf("failed to create notifier: %w", err)
		}
	}

	writer, closeOutput, err := openReportWriter(cfg, out)
	if err != nil {
		return err
	}
	defer closeOutput()

	client := crawler.NewRedirectClient()
	jobs := make([]*pipeline.Job, len(cfg.Targets))
	for i, target := range cfg.Targets {
		jobs[i] = pipeline.NewJob(target, siteMaxPages(cfg, target))
	}

	factory := func(job *pipeline.Job) *pipeline.Pipeline {
		opts := []pipeline.DefaultPipelineOption{pipeline.WithPipelineLogger(logger)}
		if db != nil {
			opts = append(opts, pipeline.WithPipelineStore(db))
		}
		if notifier != nil {
			opts = append(opts, pipeline.WithPipelineNotifier(notifier))
		}
		return pipeline.DefaultPipeline(newSiteScanner(cfg, job.Target, client, logger), opts...)
	}

	bp := pipeline.NewBatchProcessor(factory,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	startTime := time.Now()

	var mu sync.Mutex
	err = bp.ProcessBatchWithCallback(ctx, jobs, func(job *pipeline.Job, _ int) {
		mu.Lock()
		defer mu.Unlock()

		if job.Err != nil {
			fmt.Fprintf(errOut, "Scan error for %s: %v\n", job.Target, job.Err)
		}
		if job.Report == nil {
			return
		}
		if _, err := writer.Write(job.Report); err != nil {
			logger.Error("report failed", "target", job.Target, "error", err)
		}
	})

	logger.Info("scan finished",
		"targets", len(cfg.Targets),
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)

	return err
}

// siteMaxPages returns the page budget for target. A per-site value in
// the configuration file wins over the flag.
func siteMaxPages(cfg *config.Config, target string) int {
	if cfg.SiteConfigs != nil {
		if site := cfg.SiteConfigs.SiteConfigFor(target); site.MaxPages > 0 {
			return site.MaxPages
		}
	}
	return cfg.MaxPages
}

// newSiteScanner builds a scanner for one target. Cookies and headers from
// the target's site configuration are sent to that origin only. All
// scanners share client so that connections are pooled across scans.
func newSiteScanner(cfg *config.Config, target string, client *http.Client, logger *slog.Logger) *crawler.Scanner {
	var site config.SiteConfig
	if cfg.SiteConfigs != nil {
		site = cfg.SiteConfigs.SiteConfigFor(target)
	}

	userAgent := cfg.UserAgent
	if site.UserAgent != "" {
		userAgent = site.UserAgent
	}

	httpOpts := []crawler.HTTPClientOption{
		crawler.WithUserAgent(userAgent),
		crawler.WithMaxBodySize(cfg.EffectiveMaxBodySize()),
	}
	if headers := site.HTTPHeaders(); len(headers) > 0 {
		logger.Debug("site headers applied", "target", target, "headers", headers)
		httpOpts = append(httpOpts, crawler.WithOriginHeaders(target, headers))
	}
	httpClient := crawler.NewHTTPClient(client, httpOpts...)

	return crawler.NewScanner(
		crawler.WithFetcher(httpClient),
		crawler.WithChecker(httpClient),
		crawler.WithLogger(logger),
		crawler.WithRateLimit(crawlRate(cfg.CrawlDelay)),
	)
}

// crawlRate converts a delay between requests into a rate limit.
func crawlRate(delay time.Duration) rate.Limit {
	if delay <= 0 {
		return rate.Inf
	}
	return rate.Every(delay)
}

// newReportWriter selects the report writer for the configured format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	case cfg.CSVReport:
		return report.NewCSVWriter(output)
	default:
		return report.NewSimpleWriter(output,
			report.WithVerbose(cfg.Verbose),
			report.WithShowPages(cfg.Verbose),
		)
	}
}

// openReportWriter returns the report writer for stdout, or, when a report
// file is configured, one that writes the selected format to the file and a
// text summary to stdout.
func openReportWriter(cfg *config.Config, stdout io.Writer) (report.Writer, func(), error) {
	if cfg.ReportFile == "" {
		return newReportWriter(cfg, stdout), func() {}, nil
	}

	f, err := openOutput(cfg.ReportFile)
	if err != nil {
		return nil, nil, err
	}
	writer := report.NewMultiWriter(
		newReportWriter(cfg, f),
		report.NewSimpleWriter(stdout),
	)
	return writer, func() { _ = f.Close() }, nil
}

// openOutput creates the report file and its parent directories.
func openOutput(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may contain URLs of pages behind a login, so keep them private.
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}
