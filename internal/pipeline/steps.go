package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/linkscan/internal/model"
)

// ErrNoReport is returned by steps that need a report when the scan
// step did not produce one.
var ErrNoReport = errors.New("no scan report to process")

// LinkScanner runs a link scan. *crawler.Scanner implements it.
type LinkScanner interface {
	Scan(ctx context.Context, startURL string, maxPages int) (*model.ScanReport, error)
}

// ReportStore persists reports. *database.ScanDB implements it.
type ReportStore interface {
	SaveScanReport(ctx context.Context, report *model.ScanReport) (string, error)
}

// Notifier sends a report summary somewhere. *notify.WebhookNotifier
// implements it.
type Notifier interface {
	Notify(ctx context.Context, report *model.ScanReport) (bool, error)
}

// ScanStep crawls the job's target and stores the report on the job.
type ScanStep struct {
	scanner LinkScanner
}

// NewScanStep creates a scan step.
func NewScanStep(scanner LinkScanner) *ScanStep {
	return &ScanStep{scanner: scanner}
}

// Name returns the step name.
func (s *ScanStep) Name() string {
	return "scan"
}

// Do executes the scan. A partial report is kept on cancellation.
func (s *ScanStep) Do(ctx context.Context, job *Job) error {
	report, err := s.scanner.Scan(ctx, job.Target, job.MaxPages)
	job.Report = report
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", job.Target, err)
	}
	return nil
}

// SaveStep writes the job's report to the history store.
type SaveStep struct {
	store  ReportStore
	logger *slog.Logger
}

// SaveStepOption configures a SaveStep.
type SaveStepOption func(*SaveStep)

// WithSaveLogger sets a custom logger for the save step.
func WithSaveLogger(logger *slog.Logger) SaveStepOption {
	return func(s *SaveStep) {
		s.logger = logger
	}
}

// NewSaveStep creates a save step.
func NewSaveStep(store ReportStore, opts ...SaveStepOption) *SaveStep {
	s := &SaveStep{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *SaveStep) Name() string {
	return "save"
}

// Do saves the report and records its scan ID on the job.
func (s *SaveStep) Do(ctx context.Context, job *Job) error {
	if job.Report == nil {
		return ErrNoReport
	}

	scanID, err := s.store.SaveScanReport(ctx, job.Report)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	job.ScanID = scanID

	s.logger.Debug("report saved", "target", job.Target, "scan_id", scanID)
	return nil
}

// NotifyStep posts the job's report to a chat webhook.
type NotifyStep struct {
	notifier Notifier
	logger   *slog.Logger
}

// NotifyStepOption configures a NotifyStep.
type NotifyStepOption func(*NotifyStep)

// WithNotifyLogger sets a custom logger for the notify step.
func WithNotifyLogger(logger *slog.Logger) NotifyStepOption {
	return func(s *NotifyStep) {
		s.logger = logger
	}
}

// NewNotifyStep creates a notify step.
func NewNotifyStep(notifier Notifier, opts ...NotifyStepOption) *NotifyStep {
	s := &NotifyStep{
		notifier: notifier,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *NotifyStep) Name() string {
	return "notify"
}

// Do sends the notification.
func (s *NotifyStep) Do(ctx context.Context, job *Job) error {
	if job.Report == nil {
		return ErrNoReport
	}

	sent, err := s.notifier.Notify(ctx, job.Report)
	if err != nil {
		return fmt.Errorf("failed to notify: %w", err)
	}
	job.Notified = sent

	if sent {
		s.logger.Debug("notification sent", "target", job.Target)
	}
	return nil
}

// DefaultPipelineConfig holds the optional collaborators of the default
// pipeline.
type DefaultPipelineConfig struct {
	// Store, when set, adds a save step.
	Store ReportStore

	// Notifier, when set, adds a notify step.
	Notifier Notifier

	// Logger is passed to the steps that log.
	Logger *slog.Logger
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineStore enables saving reports to store.
func WithPipelineStore(store ReportStore) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Store = store
	}
}

// WithPipelineNotifier enables notification through notifier.
func WithPipelineNotifier(notifier Notifier) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Notifier = notifier
	}
}

// WithPipelineLogger sets the logger for the pipeline and its steps.
func WithPipelineLogger(logger *slog.Logger) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Logger = logger
	}
}

// DefaultPipeline builds scan, then save and notify when configured.
// It always continues on error so that a failed save does not suppress the
// notification of a completed scan.
func DefaultPipeline(scanner LinkScanner, opts ...DefaultPipelineOption) *Pipeline {
	cfg := &DefaultPipelineConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	p := New(WithLogger(cfg.Logger), WithContinueOnError(true))
	p.AddStep(NewScanStep(scanner))

	if cfg.Store != nil {
		p.AddStep(NewSaveStep(cfg.Store, WithSaveLogger(cfg.Logger)))
	}
	if cfg.Notifier != nil {
		p.AddStep(NewNotifyStep(cfg.Notifier, WithNotifyLogger(cfg.Logger)))
	}

	return p
}
