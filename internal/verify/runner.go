package verify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/movie-api/moviecheck/internal/movieapi"
	"github.com/movie-api/moviecheck/internal/telemetry"
)

// Result is the outcome of one executed step. It is handed to the reporter as
// soon as the step finishes and is not kept afterwards.
type Result struct {
	RunID       string        `json:"run_id"`
	Seq         int           `json:"seq"`
	Step        string        `json:"step"`
	Description string        `json:"description"`
	Method      string        `json:"method"`
	Path        string        `json:"path,omitempty"`
	Expected    int           `json:"expected_status"`
	Actual      int           `json:"actual_status,omitempty"`
	Passed      bool          `json:"passed"`
	Detail      string        `json:"detail,omitempty"`
	Error       string        `json:"error,omitempty"`
	Body        string        `json:"body,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
	Timestamp   time.Time     `json:"timestamp"`

	// Pretty is copied from the step for the console reporter.
	Pretty bool `json:"-"`
}

// Reporter receives step events in execution order
type Reporter interface {
	StepStarted(step Step)
	StepFinished(res *Result)
}

type nopReporter struct{}

func (nopReporter) StepStarted(Step)     {}
func (nopReporter) StepFinished(*Result) {}

// Runner executes a plan against one API deployment
type Runner struct {
	Client   *movieapi.Client
	Steps    []Step
	Reporter Reporter
	RunID    string
}

// NewRunner creates a runner. A nil reporter discards events.
func NewRunner(client *movieapi.Client, steps []Step, reporter Reporter, runID string) *Runner {
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Runner{
		Client:   client,
		Steps:    steps,
		Reporter: reporter,
		RunID:    runID,
	}
}

// Run executes the steps strictly in order, one request at a time. It returns
// nil when every step passed, otherwise the first failure: a *StatusError, a
// *FieldError or a wrapped transport error. Nothing runs after a failure.
func (r *Runner) Run(ctx context.Context) error {
	start := time.Now()
	err := r.run(ctx)
	telemetry.ObserveRun(err == nil, time.Since(start))
	return err
}

func (r *Runner) run(ctx context.Context) error {
	for i, step := range r.Steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", step.Name, err)
		}

		r.Reporter.StepStarted(step)

		res := &Result{
			RunID:       r.RunID,
			Seq:         i + 1,
			Step:        step.Name,
			Description: step.Description,
			Method:      step.Method,
			Expected:    step.Expected,
			Timestamp:   time.Now().UTC(),
			Pretty:      step.Pretty,
		}

		if err := r.runStep(ctx, step, res); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, step Step, res *Result) error {
	started := time.Now()

	resp, err := step.exec(ctx, r.Client)
	if err != nil {
		res.Duration = time.Since(started)
		res.Error = err.Error()
		r.finish(res, telemetry.OutcomeError)
		return fmt.Errorf("%s: %w", step.Name, err)
	}

	res.Path = resp.Path
	res.Actual = resp.StatusCode
	res.Body = string(resp.Body)
	res.Duration = resp.Duration

	if resp.StatusCode != step.Expected {
		serr := &StatusError{Step: step.Name, Expected: step.Expected, Actual: resp.StatusCode, Body: resp.Body}
		res.Error = serr.Error()
		r.finish(res, telemetry.OutcomeFail)
		return serr
	}

	if step.check != nil {
		detail, err := step.check(resp)
		if err != nil {
			res.Error = err.Error()
			r.finish(res, telemetry.OutcomeFail)
			return err
		}
		res.Detail = detail
	}

	res.Passed = true
	r.finish(res, telemetry.OutcomePass)
	return nil
}

func (r *Runner) finish(res *Result, outcome string) {
	telemetry.ObserveStep(res.Step, outcome, res.Duration)
	slog.Debug("step finished",
		"run_id", res.RunID,
		"step", res.Step,
		"method", res.Method,
		"path", res.Path,
		"status", res.Actual,
		"outcome", outcome,
		"duration", res.Duration,
	)
	r.Reporter.StepFinished(res)
}
