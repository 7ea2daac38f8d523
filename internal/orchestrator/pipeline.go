package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/ZebulonRouseFrantzich/cookship/internal/logging"
)

// Step is one named stage of a release mode.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// StepError reports which step of which mode failed.
type StepError struct {
	Mode string
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Mode, e.Step, e.Err)
}

// Unwrap returns the step's error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// Pipeline runs steps in order and stops at the first failure.
type Pipeline struct {
	mode   string
	steps  []Step
	logger logging.Logger
}

// NewPipeline creates an empty pipeline for mode.
func NewPipeline(mode string, logger logging.Logger) *Pipeline {
	return &Pipeline{mode: mode, logger: logging.OrNop(logger)}
}

// Add appends a step.
func (p *Pipeline) Add(name string, run func(ctx context.Context) error) *Pipeline {
	p.steps = append(p.steps, Step{Name: name, Run: run})
	return p
}

// Steps returns the step names in order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name
	}
	return names
}

// Run executes every step. The first error is returned as a *StepError
// and no later step runs.
func (p *Pipeline) Run(ctx context.Context) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Mode: p.mode, Step: step.Name, Err: err}
		}

		p.logger.Info(step.Name, "mode", p.mode, "step", fmt.Sprintf("%d/%d", i+1, len(p.steps)))
		start := time.Now()

		if err := step.Run(ctx); err != nil {
			p.logger.Error("step failed", "mode", p.mode, "step", step.Name, "error", err)
			return &StepError{Mode: p.mode, Step: step.Name, Err: err}
		}
		p.logger.Debug("step finished", "step", step.Name, "duration", time.Since(start).Round(time.Millisecond).String())
	}
	return nil
}
