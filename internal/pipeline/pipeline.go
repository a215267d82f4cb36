package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/catalogscan/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each receiving the run filled in by the
// previous ones.
type Step interface {
	// Do executes the pipeline step. It returns an error only when the run
	// cannot meaningfully continue; recoverable problems are logged or
	// recorded in the run.
	Do(ctx context.Context, run *model.Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// FinalStep is implemented by steps that must run even after the context
// was cancelled, such as writing the partial catalog. They receive a
// context that is no longer cancelled.
type FinalStep interface {
	Step
	Final() bool
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	steps []Step

	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
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

// Execute runs all steps in order.
//
// Execute stops at the first step error and returns it. Once ctx is
// cancelled, remaining non-final steps are skipped while final steps still
// run, and Execute returns ctx.Err(). run.FinishedAt is updated after every
// step.
func (p *Pipeline) Execute(ctx context.Context, run *model.Run) error {
	for _, step := range p.steps {
		stepCtx := ctx
		if ctx.Err() != nil {
			if !isFinal(step) {
				p.logger.Warn("step skipped after cancellation", "step", step.Name())
				continue
			}
			stepCtx = context.WithoutCancel(ctx)
		}

		p.logger.Debug("executing step", "step", step.Name())

		if err := step.Do(stepCtx, run); err != nil {
			p.logger.Error("step failed", "step", step.Name(), "error", err)

			run.Error = err
			run.ErrorMessage = err.Error()
			run.FinishedAt = time.Now()
			return err
		}
		p.logger.Debug("step completed", "step", step.Name())

		run.PerformedSteps = append(run.PerformedSteps, step.Name())
		run.FinishedAt = time.Now()
	}

	return ctx.Err()
}

func isFinal(step Step) bool {
	fs, ok := step.(FinalStep)
	return ok && fs.Final()
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
