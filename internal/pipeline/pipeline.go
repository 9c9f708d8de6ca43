package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/linkscan/internal/model"
)

// Job is the unit of work flowing through a pipeline.
type Job struct {
	// Target is the start URL as given by the user.
	Target string

	// MaxPages is the requested page budget. The scanner clamps it.
	MaxPages int

	// Report is set by the scan step. It may be partial when the scan
	// was canceled.
	Report *model.ScanReport

	// ScanID is the history identifier assigned by the save step.
	ScanID string

	// Notified reports whether the notify step posted a message.
	Notified bool

	// Err holds the first step error, if any.
	Err error

	// PerformedSteps lists the steps that ran, in order.
	PerformedSteps []string
}

// NewJob creates a job for target.
func NewJob(target string, maxPages int) *Job {
	return &Job{
		Target:         target,
		MaxPages:       maxPages,
		PerformedSteps: make([]string, 0),
	}
}

// Step is a single stage of a pipeline.
type Step interface {
	// Do executes the step. A returned error is recorded on the job.
	Do(ctx context.Context, job *Job) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to run the remaining steps
// after one fails. A failed notification should not hide a saved report,
// for example.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence.
// Cancellation is checked between steps; the steps themselves honor ctx.
// It returns the first error when continueOnError is false, ctx.Err() on
// cancellation, and nil otherwise. The first step error is stored in job.Err.
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"target", job.Target,
				"reason", ctx.Err(),
			)
			if job.Err == nil {
				job.Err = ctx.Err()
			}
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"target", job.Target,
		)

		if err := step.Do(ctx, job); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"target", job.Target,
				"error", err,
			)
			if job.Err == nil {
				job.Err = err
			}
			job.PerformedSteps = append(job.PerformedSteps, step.Name())

			if !p.continueOnError {
				return err
			}
			continue
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"target", job.Target,
		)
		job.PerformedSteps = append(job.PerformedSteps, step.Name())
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
