package install

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kayleschmoyer/Fv2/internal/domain"
)

// Action performs one step's work. Returning nil marks the step completed;
// any error fails the step and stops the run.
type Action interface {
	Execute(ctx context.Context, sc *StepContext) error
}

type ActionFunc func(ctx context.Context, sc *StepContext) error

func (f ActionFunc) Execute(ctx context.Context, sc *StepContext) error { return f(ctx, sc) }

// Catalog maps step ids to their actions.
type Catalog map[string]Action

// StepContext is everything an action may touch.
type StepContext struct {
	ID       string
	State    *State
	Deps     Deps
	Prompt   Prompter
	Settings Settings

	reg  *Registry
	emit func(domain.Event) bool
	log  *slog.Logger

	lastTransfer int
}

// Progress posts an intermediate running update for this step.
func (sc *StepContext) Progress(pct int, msg string) {
	if sc.reg == nil {
		return
	}
	sc.reg.UpdateStatus(sc.ID, domain.StepRunning, WithProgress(pct), WithMessage(msg))
}

func (sc *StepContext) Logf(format string, args ...any) {
	sc.logEvent(domain.EventLog, domain.SeverityInfo, fmt.Sprintf(format, args...), nil)
}

func (sc *StepContext) Warnf(format string, args ...any) {
	sc.logEvent(domain.EventWarning, domain.SeverityWarn, fmt.Sprintf(format, args...), nil)
}

// LogFields logs msg with structured fields (command lines, paths).
func (sc *StepContext) LogFields(msg string, fields map[string]string) {
	sc.logEvent(domain.EventLog, domain.SeverityInfo, msg, fields)
}

// Transfer reports byte or entry progress inside the step. Updates are
// coalesced to whole-percent changes.
func (sc *StepContext) Transfer(cur, total int64, unit string) {
	if total > 0 {
		pct := int(cur * 100 / total)
		if pct == sc.lastTransfer && cur < total {
			return
		}
		sc.lastTransfer = pct
	}
	if sc.emit == nil {
		return
	}
	_ = sc.emit(domain.Event{
		Type:     domain.EventProgress,
		StepID:   sc.ID,
		Source:   "install",
		Severity: domain.SeverityInfo,
		Payload:  domain.ProgressPayload{Current: cur, Total: total, Unit: unit},
	})
}

func (sc *StepContext) logEvent(t domain.EventType, sev domain.Severity, msg string, fields map[string]string) {
	if sc.log != nil {
		attrs := []any{"step", sc.ID}
		for k, v := range fields {
			attrs = append(attrs, k, v)
		}
		if sev == domain.SeverityWarn {
			sc.log.Warn(msg, attrs...)
		} else {
			sc.log.Info(msg, attrs...)
		}
	}
	if sc.emit == nil {
		return
	}
	_ = sc.emit(domain.Event{
		Type:     t,
		StepID:   sc.ID,
		TS:       time.Now(),
		Source:   "install",
		Severity: sev,
		Payload:  domain.LogPayload{Message: msg, Fields: fields},
	})
}

// Output forwards one line of subprocess output as a trace log event.
func (sc *StepContext) Output(line string, stderr bool) {
	if sc.emit == nil {
		return
	}
	stream := "stdout"
	if stderr {
		stream = "stderr"
	}
	_ = sc.emit(domain.Event{
		Type:     domain.EventLog,
		StepID:   sc.ID,
		TS:       time.Now(),
		Source:   "process",
		Severity: domain.SeverityTrace,
		Payload:  domain.LogPayload{Message: line, Fields: map[string]string{"stream": stream}},
	})
}
