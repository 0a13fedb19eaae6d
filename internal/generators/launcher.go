package generators

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/danmuck/genctl/internal/history"
	"github.com/danmuck/genctl/internal/inputs"
	"github.com/danmuck/genctl/internal/observability"
	"github.com/danmuck/genctl/internal/tools"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	ErrGeneratorFailed = errors.New("generators: generator failed")
	ErrPreflight       = errors.New("generators: preflight failed")
	ErrInvalidPolicy   = errors.New("generators: invalid failure policy")
)

// Policy decides how a failed generator affects the rest of a run.
type Policy string

const (
	// PolicyFailFast stops at the first failure and returns it.
	PolicyFailFast Policy = "fail_fast"
	// PolicyContinue runs every step and returns the joined failures.
	PolicyContinue Policy = "continue"
	// PolicyIgnore runs every step and never returns a generator failure.
	PolicyIgnore Policy = "ignore"
)

func ParsePolicy(raw string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PolicyFailFast:
		return PolicyFailFast, nil
	case PolicyContinue:
		return PolicyContinue, nil
	case PolicyIgnore:
		return PolicyIgnore, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, raw)
	}
}

// StepError carries the failing step detail; it matches ErrGeneratorFailed.
type StepError struct {
	StepID   string
	ExitCode int32
	Stderr   string
	Err      error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("generator %s failed (exit %d)", e.StepID, e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *StepError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrGeneratorFailed}
	}
	return []error{ErrGeneratorFailed, e.Err}
}

// Recorder is the history surface the launcher needs.
type Recorder interface {
	Record(ctx context.Context, rec history.StepRecord) error
	LastSuccess(ctx context.Context, stepID string) (history.StepRecord, bool, error)
}

type LauncherConfig struct {
	Runner    tools.CommandRunner
	Policy    Policy
	Preflight bool
	// ChangedOnly skips steps whose input and script match the last success.
	ChangedOnly bool
	History     Recorder
	Tracer      trace.Tracer
	// Stdin is inherited by every generator; nil means os.Stdin.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Now    func() time.Time
}

// Launcher runs plans one step at a time.
type Launcher struct {
	runner      tools.CommandRunner
	policy      Policy
	preflight   bool
	changedOnly bool
	history     Recorder
	tracer      trace.Tracer
	stdin       io.Reader
	stdout      io.Writer
	stderr      io.Writer
	now         func() time.Time
}

func NewLauncher(cfg LauncherConfig) *Launcher {
	runner := cfg.Runner
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	policy := cfg.Policy
	if policy == "" {
		policy = PolicyFailFast
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(observability.TracerName)
	}
	stdin := cfg.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Launcher{
		runner:      runner,
		policy:      policy,
		preflight:   cfg.Preflight,
		changedOnly: cfg.ChangedOnly,
		history:     cfg.History,
		tracer:      tracer,
		stdin:       stdin,
		stdout:      stdout,
		stderr:      stderr,
		now:         now,
	}
}

// Preflight checks every step directory, script and input before anything
// runs. All problems are reported together.
func (l *Launcher) Preflight(plan Plan) error {
	var errs []error
	for _, g := range plan.Steps {
		if info, err := os.Stat(g.Dir); err != nil {
			errs = append(errs, fmt.Errorf("%s: generator dir %s: %w", g.ID, g.Dir, err))
			continue
		} else if !info.IsDir() {
			errs = append(errs, fmt.Errorf("%s: generator dir %s is not a directory", g.ID, g.Dir))
			continue
		}
		if _, err := os.Stat(plan.ScriptPath(g)); err != nil {
			errs = append(errs, fmt.Errorf("%s: generator script: %w", g.ID, err))
		}
		doc, err := inputs.Inspect(g.Input)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", g.ID, err))
			continue
		}
		log.Debug().
			Str("run_id", plan.RunID).
			Str("step", g.ID).
			Str("input", g.Input).
			Strs("keys", doc.Keys).
			Msg("preflight input ok")
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPreflight, errors.Join(errs...))
}

// Run executes plan steps in order. Each generator runs in its own directory
// and the next step starts only after the previous process has exited.
func (l *Launcher) Run(ctx context.Context, plan Plan) (Report, error) {
	report := Report{
		RunID:   plan.RunID,
		Project: plan.Layout.ProjectName,
		Policy:  l.policy,
		Started: l.now(),
	}

	ctx, span := l.tracer.Start(ctx, "genctl.run", trace.WithAttributes(
		attribute.String("genctl.run_id", plan.RunID),
		attribute.String("genctl.project", plan.Layout.ProjectName),
		attribute.String("genctl.policy", string(l.policy)),
	))
	defer span.End()

	logger := log.With().Str("run_id", plan.RunID).Str("project", plan.Layout.ProjectName).Logger()

	if l.preflight {
		if err := l.Preflight(plan); err != nil {
			report.Finished = l.now()
			observability.RecordRun(report.Project, report.Finished, false)
			span.SetStatus(codes.Error, "preflight")
			span.RecordError(err)
			logger.Error().Err(err).Msg("preflight failed")
			return report, err
		}
	}

	var failures []error
	for _, g := range plan.Steps {
		if err := ctx.Err(); err != nil {
			report.Finished = l.now()
			observability.RecordRun(report.Project, report.Finished, false)
			span.SetStatus(codes.Error, "cancelled")
			return report, err
		}

		step, stepErr := l.runStep(ctx, plan, g)
		report.Steps = append(report.Steps, step)
		if stepErr == nil {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			report.Finished = l.now()
			observability.RecordRun(report.Project, report.Finished, false)
			span.SetStatus(codes.Error, "cancelled")
			return report, errors.Join(stepErr, ctxErr)
		}

		switch l.policy {
		case PolicyFailFast:
			report.Finished = l.now()
			l.finish(report, span)
			logger.Error().Err(stepErr).Str("step", g.ID).Msg("stopping after failed generator")
			return report, stepErr
		case PolicyContinue:
			failures = append(failures, stepErr)
		default:
			logger.Warn().Err(stepErr).Str("step", g.ID).Msg("ignoring failed generator")
		}
	}

	report.Finished = l.now()
	l.finish(report, span)
	return report, errors.Join(failures...)
}

func (l *Launcher) finish(report Report, span trace.Span) {
	observability.RecordRun(report.Project, report.Finished, !report.Failed())
	if report.Failed() {
		span.SetStatus(codes.Error, "generator failed")
		return
	}
	span.SetStatus(codes.Ok, "")
}

func (l *Launcher) runStep(ctx context.Context, plan Plan, g Generator) (StepReport, error) {
	inv := plan.Invocation(g)
	inv.Stdin = l.stdin
	inv.Stdout = l.stdout
	inv.Stderr = l.stderr

	step := StepReport{
		ID:          g.ID,
		Dir:         g.Dir,
		CommandLine: tools.CommandLine(inv),
	}
	logger := log.With().Str("run_id", plan.RunID).Str("step", g.ID).Logger()

	// Digests are best effort; a missing file is the generator's to report.
	inputDigest, _ := inputs.Digest(g.Input)
	scriptDigest, _ := inputs.Digest(plan.ScriptPath(g))
	step.InputDigest = inputDigest
	started := l.now()

	if l.unchanged(ctx, g.ID, inputDigest, scriptDigest) {
		step.Status = StatusSkipped
		logger.Info().Str("input", g.Input).Msg("generator inputs unchanged, skipping")
		l.record(ctx, plan, step, scriptDigest, started)
		observability.RecordGenerator(plan.Layout.ProjectName, g.ID, string(step.Status), 0)
		return step, nil
	}

	ctx, span := l.tracer.Start(ctx, "generator:"+g.ID, trace.WithAttributes(
		attribute.String("genctl.step", g.ID),
		attribute.String("genctl.dir", g.Dir),
		attribute.String("genctl.input", g.Input),
	))
	defer span.End()

	logger.Info().Str("dir", g.Dir).Str("cmd", step.CommandLine).Msg("running generator")
	res, err := l.runner.Run(ctx, inv)
	step.ExitCode = res.ExitCode
	step.Duration = res.Duration
	if step.Duration == 0 {
		step.Duration = l.now().Sub(started)
	}
	span.SetAttributes(attribute.Int("genctl.exit_code", int(res.ExitCode)))

	var stepErr error
	if err != nil || !res.Success() {
		stepErr = &StepError{
			StepID:   g.ID,
			ExitCode: res.ExitCode,
			Stderr:   tools.Tail(res.Stderr, 512),
			Err:      err,
		}
		step.Status = StatusFailed
		step.Err = stepErr
		step.Error = stepErr.Error()
		span.RecordError(stepErr)
		span.SetStatus(codes.Error, "generator failed")
		logger.Error().Int32("exit_code", res.ExitCode).Dur("duration", step.Duration).Msg("generator failed")
	} else {
		step.Status = StatusOK
		span.SetStatus(codes.Ok, "")
		logger.Info().Dur("duration", step.Duration).Msg("generator finished")
	}

	l.record(ctx, plan, step, scriptDigest, started)
	observability.RecordGenerator(plan.Layout.ProjectName, g.ID, string(step.Status), step.Duration)
	return step, stepErr
}

func (l *Launcher) unchanged(ctx context.Context, stepID, inputDigest, scriptDigest string) bool {
	if !l.changedOnly || l.history == nil || inputDigest == "" {
		return false
	}
	last, ok, err := l.history.LastSuccess(ctx, stepID)
	if err != nil {
		log.Warn().Err(err).Str("step", stepID).Msg("history lookup failed, running generator")
		return false
	}
	return ok && last.InputDigest == inputDigest && last.ScriptDigest == scriptDigest
}

func (l *Launcher) record(ctx context.Context, plan Plan, step StepReport, scriptDigest string, started time.Time) {
	if l.history == nil {
		return
	}
	err := l.history.Record(context.WithoutCancel(ctx), history.StepRecord{
		RunID:        plan.RunID,
		StepID:       step.ID,
		Status:       string(step.Status),
		ExitCode:     step.ExitCode,
		InputDigest:  step.InputDigest,
		ScriptDigest: scriptDigest,
		StartedAt:    started,
		Duration:     step.Duration,
	})
	if err != nil {
		log.Warn().Err(err).Str("step", step.ID).Msg("history record failed")
	}
}
