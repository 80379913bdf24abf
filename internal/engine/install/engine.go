package install

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kayleschmoyer/Fv2/internal/domain"
)

type EngineOptions struct {
	Settings  Settings
	Steps     []StepDef
	Catalog   Catalog
	PreChecks []PreCheckDef

	// AwaitStart holds each run until an ActionStart arrives. The UI uses
	// it to toggle pre-checks and steps first, and to run again afterwards.
	AwaitStart bool
	// PreChecked affirms every pre-check item up front.
	PreChecked bool
	// Redo pre-sets installation options for the process.
	Redo []Option

	// Prompt replaces the event/action prompt exchange.
	Prompt  Prompter
	Tracer  trace.Tracer
	History HistoryRecorder
	When    Condition
	Logger  *slog.Logger
}

type Engine struct {
	opt   EngineOptions
	deps  Deps
	reg   *Registry
	state *State

	prechecks []domain.PreCheckItem
}

func New(opt EngineOptions, deps Deps) *Engine {
	if opt.Steps == nil {
		opt.Steps = DefaultSteps()
	}
	if opt.Catalog == nil {
		opt.Catalog = DefaultCatalog()
	}
	if opt.PreChecks == nil {
		opt.PreChecks = DefaultPreChecks()
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}

	st := NewState()
	for _, o := range opt.Redo {
		st.Options.Set(o, true)
	}
	items := make([]domain.PreCheckItem, len(opt.PreChecks))
	for i, p := range opt.PreChecks {
		items[i] = domain.PreCheckItem{ID: p.ID, Question: p.Question, Description: p.Description, Checked: opt.PreChecked}
	}
	return &Engine{
		opt:       opt,
		deps:      deps,
		reg:       NewRegistry(opt.Steps),
		state:     st,
		prechecks: items,
	}
}

func (e *Engine) Registry() *Registry { return e.reg }

func (e *Engine) State() *State { return e.state }

// Run drives the pipeline in a goroutine, publishing progress on ch and
// taking operator input from actions. ch is closed when the engine stops.
func (e *Engine) Run(ctx context.Context, ch chan<- domain.Event, actions <-chan domain.Action) {
	go func() {
		defer close(ch)

		emit := func(ev domain.Event) bool {
			if ev.TS.IsZero() {
				ev.TS = time.Now()
			}
			select {
			case <-ctx.Done():
				return false
			case ch <- ev:
				return true
			}
		}

		e.reg.OnChange(func(s domain.StepState) {
			_ = emit(domain.Event{
				Type:     domain.EventStepUpdate,
				StepID:   s.ID,
				Source:   "install",
				Severity: domain.SeverityInfo,
				Payload:  domain.StepUpdatePayload{Step: s},
			})
		})
		defer e.reg.OnChange(nil)

		_ = emit(domain.Event{
			Type:     domain.EventSteps,
			Source:   "install",
			Severity: domain.SeverityInfo,
			Payload:  domain.StepsPayload{Steps: e.reg.Steps()},
		})
		e.emitPreChecks(emit)
		_ = emit(domain.Event{
			Type:     domain.EventHostStatus,
			Source:   "install",
			Severity: domain.SeverityInfo,
			Payload:  domain.HostStatusPayload{Status: e.probeHost(ctx)},
		})

		prompt := e.opt.Prompt
		var ep *eventPrompter
		if prompt == nil {
			ep = newEventPrompter(emit, actions, nil)
			prompt = ep
		}
		ctrl := NewController(e.reg, e.opt.Catalog, e.deps, ControllerOptions{
			Settings: e.opt.Settings,
			Prompt:   prompt,
			Emit:     emit,
			Tracer:   e.opt.Tracer,
			History:  e.opt.History,
			When:     e.opt.When,
			Logger:   e.opt.Logger,
		})
		if ep != nil {
			ep.stepID = ctrl.Current
		}

		for {
			if e.opt.AwaitStart {
				if !e.awaitStart(ctx, emit, actions) {
					return
				}
			} else if !domain.PreChecksSatisfied(e.prechecks) {
				const msg = "Pre-installation checks are not confirmed."
				_ = emit(domain.Event{
					Type:     domain.EventError,
					Source:   "install",
					Severity: domain.SeverityError,
					Payload:  domain.LogPayload{Message: msg},
				})
				_ = emit(domain.Event{
					Type:     domain.EventRunDone,
					Source:   "install",
					Severity: domain.SeverityError,
					Payload:  domain.RunDonePayload{OK: false, Error: msg},
				})
				return
			}

			started := time.Now()
			runID, err := ctrl.Run(ctx, e.state)
			done := domain.RunDonePayload{
				OK:       err == nil,
				RunID:    runID,
				Duration: time.Since(started),
			}
			sev := domain.SeverityInfo
			if err != nil {
				done.Error = err.Error()
				done.FailedAt = FailedStep(err)
				sev = domain.SeverityError
			}
			_ = emit(domain.Event{
				Type:     domain.EventRunDone,
				Source:   "install",
				Severity: sev,
				Payload:  done,
			})

			if !e.opt.AwaitStart || ctx.Err() != nil {
				return
			}
		}
	}()
}

// awaitStart handles pre-run toggles until the operator starts the run.
// It returns false when the context ends or the operator detaches.
func (e *Engine) awaitStart(ctx context.Context, emit func(domain.Event) bool, actions <-chan domain.Action) bool {
	if actions == nil {
		return false
	}
	for {
		select {
		case <-ctx.Done():
			return false
		case a, ok := <-actions:
			if !ok {
				return false
			}
			switch a.Type {
			case domain.ActionTogglePreCheck:
				for i := range e.prechecks {
					if e.prechecks[i].ID == a.Target {
						e.prechecks[i].Checked = !e.prechecks[i].Checked
					}
				}
				e.emitPreChecks(emit)
			case domain.ActionToggleStep:
				e.reg.ToggleEnabled(a.Target)
			case domain.ActionStart:
				if domain.PreChecksSatisfied(e.prechecks) {
					return true
				}
				_ = emit(domain.Event{
					Type:     domain.EventWarning,
					Source:   "install",
					Severity: domain.SeverityWarn,
					Payload:  domain.LogPayload{Message: "Confirm every pre-installation check before starting."},
				})
			}
		}
	}
}

func (e *Engine) emitPreChecks(emit func(domain.Event) bool) {
	_ = emit(domain.Event{
		Type:     domain.EventPreCheck,
		Source:   "install",
		Severity: domain.SeverityInfo,
		Payload:  domain.PreCheckPayload{Items: append([]domain.PreCheckItem(nil), e.prechecks...)},
	})
}

// probeHost summarises what the first steps will find. It never fails.
func (e *Engine) probeHost(ctx context.Context) domain.HostStatus {
	var items []domain.StatusItem
	if p := e.deps.Process; p != nil {
		elevated, err := p.IsElevated(ctx)
		switch {
		case err != nil:
			items = append(items, domain.StatusItem{Key: "admin", Label: "Administrator", Level: domain.StatusWarn, Details: err.Error()})
		case elevated:
			items = append(items, domain.StatusItem{Key: "admin", Label: "Administrator", Level: domain.StatusOK, Details: "elevated"})
		default:
			items = append(items, domain.StatusItem{Key: "admin", Label: "Administrator", Level: domain.StatusError, Details: "not elevated"})
		}

		if name := e.opt.Settings.ServiceName; name != "" {
			exists, err := p.ServiceExists(ctx, name)
			switch {
			case err != nil:
				items = append(items, domain.StatusItem{Key: "service", Label: "Service " + name, Level: domain.StatusWarn, Details: err.Error()})
			case exists:
				items = append(items, domain.StatusItem{Key: "service", Label: "Service " + name, Level: domain.StatusError, Details: "already installed"})
			default:
				items = append(items, domain.StatusItem{Key: "service", Label: "Service " + name, Level: domain.StatusOK, Details: "not installed"})
			}
		}

		if path, ok := p.LookPath("nvidia-smi"); ok {
			items = append(items, domain.StatusItem{Key: "nvidia-smi", Label: "nvidia-smi", Level: domain.StatusOK, Details: path})
		} else {
			items = append(items, domain.StatusItem{Key: "nvidia-smi", Label: "nvidia-smi", Level: domain.StatusWarn, Details: "not found; GPU clocks stay unlocked"})
		}
	}
	if fs := e.deps.FS; fs != nil {
		trtexec := filepath.Join(e.opt.Settings.Paths.TensorRTTools, "trtexec.exe")
		if fs.Exists(trtexec) {
			items = append(items, domain.StatusItem{Key: "trtexec", Label: "trtexec", Level: domain.StatusOK, Details: trtexec})
		} else {
			items = append(items, domain.StatusItem{Key: "trtexec", Label: "trtexec", Level: domain.StatusWarn, Details: "not present; tools will be downloaded"})
		}
	}
	return domain.NormalizeHostStatus(domain.HostStatus{Items: items})
}
