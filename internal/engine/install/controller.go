package install

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/kayleschmoyer/Fv2/internal/domain"
	"github.com/kayleschmoyer/Fv2/internal/telemetry"
)

const (
	msgStarting  = "Starting…"
	msgCompleted = "Completed successfully"
	msgFailed    = "Failed"
)

// HistoryRecorder persists run outcomes. Errors are logged, never fatal.
type HistoryRecorder interface {
	BeginRun(ctx context.Context, runID string, started time.Time, opts map[string]bool) error
	RecordStep(ctx context.Context, runID string, st domain.StepState, started, ended time.Time) error
	FinishRun(ctx context.Context, runID string, ended time.Time, runErr error) error
}

// Condition reports whether a step should run this time. A false result is
// the same as the step being disabled.
type Condition func(stepID string, st *State) (bool, error)

// Controller walks the registry once per Run and halts on the first failure.
type Controller struct {
	reg      *Registry
	catalog  Catalog
	deps     Deps
	prompt   Prompter
	settings Settings

	emit    func(domain.Event) bool
	tracer  trace.Tracer
	history HistoryRecorder
	when    Condition
	log     *slog.Logger

	current string
}

type ControllerOptions struct {
	Settings Settings
	Prompt   Prompter
	Emit     func(domain.Event) bool
	Tracer   trace.Tracer
	History  HistoryRecorder
	When     Condition
	Logger   *slog.Logger
}

func NewController(reg *Registry, catalog Catalog, deps Deps, opt ControllerOptions) *Controller {
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		reg:      reg,
		catalog:  catalog,
		deps:     deps,
		prompt:   opt.Prompt,
		settings: opt.Settings,
		emit:     opt.Emit,
		tracer:   opt.Tracer,
		history:  opt.History,
		when:     opt.When,
		log:      logger,
	}
}

// Current is the id of the step being executed, or "".
func (c *Controller) Current() string { return c.current }

// Run resets every step to pending and executes the enabled ones in order.
// The returned error names the failing step.
func (c *Controller) Run(ctx context.Context, st *State) (string, error) {
	if st == nil {
		st = NewState()
	}
	if st.Options == nil {
		st.Options = Options{}
	}
	if st.Downloaded == nil {
		st.Downloaded = map[string]string{}
	}

	c.reg.Reset()
	c.reg.setRunning(true)
	defer c.reg.setRunning(false)
	defer func() { c.current = "" }()

	runID := uuid.NewString()
	started := time.Now()
	steps := c.reg.Steps()
	run := telemetry.StartRun(ctx, c.tracer, runID, len(steps))
	ctx = run.Context()

	c.recordBegin(ctx, runID, started, st)
	c.log.Info("run started", "run", runID, "steps", len(steps), "options", st.Options.String())

	err := c.runSteps(ctx, run, runID, steps, st)

	run.End(err)
	c.recordFinish(ctx, runID, err)
	if err != nil {
		c.log.Error("run failed", "run", runID, "err", err)
	} else {
		c.log.Info("run finished", "run", runID, "duration", time.Since(started).Round(time.Millisecond).String())
	}
	return runID, err
}

func (c *Controller) runSteps(ctx context.Context, run *telemetry.Run, runID string, steps []domain.StepState, st *State) error {
	total := 0
	for _, s := range steps {
		if s.Enabled {
			total++
		}
	}
	index := 0
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !s.Enabled {
			run.Skip(s.ID, "disabled")
			continue
		}
		if c.when != nil {
			ok, err := c.when(s.ID, st)
			if err != nil {
				err = fmt.Errorf("condition: %w", err)
				c.current = s.ID
				c.finishStep(ctx, runID, s.ID, time.Now(), err)
				return &runStepError{id: s.ID, err: err}
			}
			if !ok {
				run.Skip(s.ID, "condition")
				c.log.Info("step skipped by condition", "step", s.ID)
				continue
			}
		}
		if err := c.runStep(ctx, run, runID, s, index, total, st); err != nil {
			return &runStepError{id: s.ID, err: err}
		}
		index++
	}
	return nil
}

func (c *Controller) runStep(ctx context.Context, run *telemetry.Run, runID string, s domain.StepState, index, total int, st *State) error {
	c.current = s.ID
	started := time.Now()
	c.reg.UpdateStatus(s.ID, domain.StepRunning, WithProgress(0), WithMessage(msgStarting))
	c.send(domain.Event{
		Type:     domain.EventStepStart,
		StepID:   s.ID,
		Source:   "install",
		Severity: domain.SeverityInfo,
		Payload:  domain.StepStartPayload{Label: s.Title, Index: index, Total: total},
	})

	action, ok := c.catalog[s.ID]
	var err error
	if !ok {
		err = fail(ErrEnvironment, fmt.Sprintf("no action registered for step %q", s.ID))
	} else {
		sc := &StepContext{
			ID:       s.ID,
			State:    st,
			Deps:     c.deps,
			Prompt:   c.prompt,
			Settings: c.settings,
			reg:      c.reg,
			emit:     c.emit,
			log:      c.log,
		}
		err = run.RunStep(ctx, s.ID, s.Title, func(ctx context.Context) error {
			return action.Execute(ctx, sc)
		})
	}

	c.finishStep(ctx, runID, s.ID, started, err)
	return err
}

// finishStep settles a step as completed or failed, emits its StepDone and
// records it.
func (c *Controller) finishStep(ctx context.Context, runID, id string, started time.Time, err error) {
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = msgFailed
		}
		c.reg.UpdateStatus(id, domain.StepError, WithProgress(0), WithMessage(msg))
		c.send(domain.Event{
			Type:     domain.EventStepDone,
			StepID:   id,
			Source:   "install",
			Severity: domain.SeverityError,
			Payload:  domain.StepDonePayload{OK: false, Message: msg},
		})
	} else {
		c.reg.UpdateStatus(id, domain.StepCompleted, WithProgress(100), WithMessage(msgCompleted))
		c.send(domain.Event{
			Type:     domain.EventStepDone,
			StepID:   id,
			Source:   "install",
			Severity: domain.SeverityInfo,
			Payload:  domain.StepDonePayload{OK: true, Message: msgCompleted},
		})
	}
	c.recordStep(ctx, runID, id, started)
}

func (c *Controller) send(ev domain.Event) {
	if c.emit != nil {
		_ = c.emit(ev)
	}
}

func (c *Controller) recordBegin(ctx context.Context, runID string, started time.Time, st *State) {
	if c.history == nil {
		return
	}
	if err := c.history.BeginRun(ctx, runID, started, st.Options.Snapshot()); err != nil {
		c.log.Warn("history: begin run", "err", err)
	}
}

func (c *Controller) recordStep(ctx context.Context, runID, id string, started time.Time) {
	if c.history == nil {
		return
	}
	snap, ok := c.reg.Get(id)
	if !ok {
		return
	}
	if err := c.history.RecordStep(context.WithoutCancel(ctx), runID, snap, started, time.Now()); err != nil {
		c.log.Warn("history: record step", "step", id, "err", err)
	}
}

func (c *Controller) recordFinish(ctx context.Context, runID string, runErr error) {
	if c.history == nil {
		return
	}
	if err := c.history.FinishRun(context.WithoutCancel(ctx), runID, time.Now(), runErr); err != nil {
		c.log.Warn("history: finish run", "err", err)
	}
}

// FailedStep extracts the step id from an error returned by Run.
func FailedStep(err error) string {
	var se *runStepError
	if errors.As(err, &se) {
		return se.id
	}
	return ""
}
