package bakery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/bakery/internal/builder"
	"git.home.luguber.info/inful/bakery/internal/config"
	"git.home.luguber.info/inful/bakery/internal/events"
	ferrors "git.home.luguber.info/inful/bakery/internal/foundation/errors"
	"git.home.luguber.info/inful/bakery/internal/logfields"
	"git.home.luguber.info/inful/bakery/internal/metrics"
	"git.home.luguber.info/inful/bakery/internal/publish"
)

// Publisher is the slice of the publish client the runner needs.
type Publisher interface {
	Preflight(ctx context.Context) error
	Sync(ctx context.Context, dir string) (publish.Stats, error)
}

// PublisherFactory builds a Publisher for the current publish configuration.
// A factory (rather than a held client) lets config reloads switch buckets
// between runs.
type PublisherFactory func(ctx context.Context, cfg *config.PublishConfig) (Publisher, error)

// BuildFunc invokes the external site build.
type BuildFunc func(ctx context.Context, cfg *config.BuildConfig) (string, error)

// EmitFunc receives progress records as a run executes. May be nil.
type EmitFunc func(events.Progress)

// RecordSink persists terminal run outcomes. May be nil.
type RecordSink interface {
	Record(ctx context.Context, rec RunRecord) error
}

// RunRecord is the persisted summary of one run.
type RunRecord struct {
	ID         string
	Action     string
	Trigger    string
	Outcome    string // success, warning, failed
	Message    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// StepResult captures one executed step.
type StepResult struct {
	Step     string
	Label    string
	Err      error
	Duration time.Duration
}

// Result is the terminal outcome of one run.
//
// Success covers the build/publish sequence. Warning carries a post-publish
// failure message: a failed post-publish step never retroactively undoes a
// successful build and publish, it only degrades the outcome.
type Result struct {
	RunID      string
	Action     Action
	Trigger    string
	Success    bool
	Message    string
	Warning    string
	Steps      []StepResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Outcome maps the result onto a metrics/history label.
func (r *Result) Outcome() string {
	switch {
	case !r.Success:
		return metrics.OutcomeFailed
	case r.Warning != "":
		return metrics.OutcomeWarning
	default:
		return metrics.OutcomeSuccess
	}
}

// Runner executes build/publish runs strictly sequentially. A mutex
// serializes panel, CLI, and scheduled triggers; an in-flight run cannot be
// aborted, only observed.
type Runner struct {
	cfgFn        func() *config.Config
	buildFn      BuildFunc
	newPublisher PublisherFactory
	registry     *Registry
	bus          *events.Bus
	recorder     metrics.Recorder
	history      RecordSink

	mu      sync.Mutex
	running atomic.Bool
}

// InProgress reports whether a run is currently executing.
func (r *Runner) InProgress() bool {
	return r.running.Load()
}

// Option customizes a Runner.
type Option func(*Runner)

// WithBuildFunc overrides the build invocation. Intended for tests.
func WithBuildFunc(fn BuildFunc) Option {
	return func(r *Runner) { r.buildFn = fn }
}

// WithPublisherFactory overrides publisher construction. Intended for tests.
func WithPublisherFactory(fn PublisherFactory) Option {
	return func(r *Runner) { r.newPublisher = fn }
}

// WithBus attaches an event bus for progress and outcome fan-out.
func WithBus(bus *events.Bus) Option {
	return func(r *Runner) { r.bus = bus }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(rec metrics.Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithHistory attaches a run-history sink.
func WithHistory(sink RecordSink) Option {
	return func(r *Runner) { r.history = sink }
}

// NewRunner creates a Runner. cfgFn is called at the start of every run so a
// reloaded configuration takes effect without restarting.
func NewRunner(cfgFn func() *config.Config, registry *Registry, opts ...Option) *Runner {
	r := &Runner{
		cfgFn: cfgFn,
		buildFn: func(ctx context.Context, cfg *config.BuildConfig) (string, error) {
			return builder.New(cfg).Build(ctx)
		},
		newPublisher: func(ctx context.Context, cfg *config.PublishConfig) (Publisher, error) {
			return publish.New(ctx, cfg)
		},
		registry: registry,
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = NewRegistry()
	}
	return r
}

// Run executes the requested action. Failures are reported through the
// Result and progress events; Run itself never returns an error, matching
// the rule that no request-scoped failure is fatal to the process.
func (r *Runner) Run(ctx context.Context, action Action, trigger string, emit EmitFunc) *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running.Store(true)
	defer r.running.Store(false)

	cfg := r.cfgFn()
	result := &Result{
		RunID:     uuid.NewString(),
		Action:    action,
		Trigger:   trigger,
		StartedAt: time.Now().UTC(),
	}

	slog.Info("Run started",
		logfields.RunID(result.RunID), logfields.Action(string(action)), "trigger", trigger)
	r.publish(ctx, events.RunStarted{
		RunID: result.RunID, Action: string(action), Trigger: trigger, StartedAt: result.StartedAt,
	})

	r.execute(ctx, cfg, result, emit)
	r.finish(ctx, result, emit)
	return result
}

func (r *Runner) execute(ctx context.Context, cfg *config.Config, result *Result, emit EmitFunc) {
	// Build always runs first; its failure prevents everything after it.
	if err := r.runStep(ctx, result, emit, StepBuild, LabelBuild, func(ctx context.Context) error {
		_, err := r.buildFn(ctx, &cfg.Build)
		return err
	}); err != nil {
		result.Message = fmt.Sprintf("Build failed: %s", ferrors.UserMessage(err))
		return
	}

	if result.Action != ActionBuildPublish {
		result.Success = true
		return
	}

	// The publish path refuses to run without a configured bucket. The
	// preceding build is kept; only publish is withheld.
	if !cfg.BucketConfigured() {
		err := ferrors.ConfigError("S3 bucket not configured. Set BAKERY_AWS_BUCKET_NAME or AWS_BUCKET_NAME in the environment.").Build()
		result.Steps = append(result.Steps, StepResult{Step: StepSync, Label: LabelSync, Err: err})
		result.Message = ferrors.UserMessage(err)
		r.emitProgress(ctx, result.RunID, emit, events.Progress{
			Step: StepSync, Status: events.StatusError, Label: LabelSync, Message: result.Message,
		})
		return
	}

	if err := r.runStep(ctx, result, emit, StepSync, LabelSync, func(ctx context.Context) error {
		pub, err := r.newPublisher(ctx, &cfg.Publish)
		if err != nil {
			return err
		}
		if err := pub.Preflight(ctx); err != nil {
			return err
		}
		_, err = pub.Sync(ctx, cfg.Build.OutputDir)
		return err
	}); err != nil {
		result.Message = fmt.Sprintf("Publish failed: %s", ferrors.UserMessage(err))
		return
	}

	result.Success = true

	if !cfg.PostPublish.Configured() {
		return
	}

	title := cfg.PostPublish.DisplayTitle()
	command := cfg.PostPublish.Command
	if err := r.runStep(ctx, result, emit, StepPostPublish, title, func(ctx context.Context) error {
		out, err := r.registry.Resolve(command)(ctx)
		if err != nil {
			return err
		}
		slog.Info("Post-publish command completed", logfields.Command(command), "output", out)
		return nil
	}); err != nil {
		// Build and publish stay successful; only this step is flagged.
		result.Warning = fmt.Sprintf("%s failed: %s", title, ferrors.UserMessage(err))
	}
}

// runStep emits running/complete/error progress around fn and records
// metrics. The returned error is fn's error, already logged.
func (r *Runner) runStep(ctx context.Context, result *Result, emit EmitFunc, step, label string, fn func(context.Context) error) error {
	r.emitProgress(ctx, result.RunID, emit, events.Progress{Step: step, Status: events.StatusRunning, Label: label})

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	result.Steps = append(result.Steps, StepResult{Step: step, Label: label, Err: err, Duration: elapsed})
	r.recorder.ObserveStepDuration(step, elapsed)
	r.recorder.IncStepResult(step, err == nil)

	if err != nil {
		slog.Error("Step failed", logfields.RunID(result.RunID), logfields.Step(step), logfields.Error(err))
		r.emitProgress(ctx, result.RunID, emit, events.Progress{
			Step: step, Status: events.StatusError, Label: label, Message: ferrors.UserMessage(err),
		})
		return err
	}

	slog.Info("Step completed", logfields.RunID(result.RunID), logfields.Step(step),
		logfields.DurationMS(float64(elapsed.Milliseconds())))
	r.emitProgress(ctx, result.RunID, emit, events.Progress{Step: step, Status: events.StatusComplete, Label: label})
	return nil
}

func (r *Runner) finish(ctx context.Context, result *Result, emit EmitFunc) {
	result.FinishedAt = time.Now().UTC()

	// The terminal stream record reports post-publish degradation as a
	// failure so the browser surfaces it, even though build/publish held.
	terminalSuccess := result.Success && result.Warning == ""
	terminalMessage := result.Message
	if result.Warning != "" {
		for _, step := range result.Steps {
			if step.Step == StepPostPublish && step.Err != nil {
				terminalMessage = fmt.Sprintf("Post-publish failed: %s", ferrors.UserMessage(step.Err))
			}
		}
	}
	r.emitDone(ctx, result.RunID, emit, terminalSuccess, terminalMessage)

	r.recorder.ObserveRunDuration(string(result.Action), result.FinishedAt.Sub(result.StartedAt))
	r.recorder.IncRunOutcome(string(result.Action), result.Outcome())

	if r.history != nil {
		rec := RunRecord{
			ID:         result.RunID,
			Action:     string(result.Action),
			Trigger:    result.Trigger,
			Outcome:    result.Outcome(),
			Message:    firstNonEmpty(result.Warning, result.Message),
			StartedAt:  result.StartedAt,
			FinishedAt: result.FinishedAt,
		}
		if err := r.history.Record(ctx, rec); err != nil {
			slog.Warn("Failed to record run history", logfields.RunID(result.RunID), logfields.Error(err))
		}
	}

	r.publish(ctx, events.RunFinished{
		RunID:      result.RunID,
		Action:     string(result.Action),
		Trigger:    result.Trigger,
		Success:    result.Success,
		Message:    firstNonEmpty(result.Warning, result.Message),
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
	})

	slog.Info("Run finished",
		logfields.RunID(result.RunID), logfields.Action(string(result.Action)),
		"outcome", result.Outcome(),
		logfields.DurationMS(float64(result.FinishedAt.Sub(result.StartedAt).Milliseconds())))
}

func (r *Runner) emitProgress(ctx context.Context, runID string, emit EmitFunc, evt events.Progress) {
	evt.RunID = runID
	if emit != nil {
		emit(evt)
	}
	r.publish(ctx, evt)
}

func (r *Runner) emitDone(ctx context.Context, runID string, emit EmitFunc, success bool, message string) {
	evt := events.Progress{RunID: runID, Step: StepDone, Message: message, Success: &success}
	if emit != nil {
		emit(evt)
	}
	r.publish(ctx, evt)
}

func (r *Runner) publish(ctx context.Context, evt any) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(ctx, evt); err != nil {
		slog.Warn("Event publish failed", logfields.Error(err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
