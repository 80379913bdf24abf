package install

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kayleschmoyer/Fv2/internal/domain"
)

type recorder struct {
	mu  sync.Mutex
	ran []string
}

func (r *recorder) action(err error) Action {
	return ActionFunc(func(_ context.Context, sc *StepContext) error {
		r.mu.Lock()
		r.ran = append(r.ran, sc.ID)
		r.mu.Unlock()
		sc.Progress(50, "halfway")
		return err
	})
}

func (r *recorder) Ran() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

func statuses(reg *Registry) map[string]domain.StepStatus {
	out := map[string]domain.StepStatus{}
	for _, s := range reg.Steps() {
		out[s.ID] = s.Status
	}
	return out
}

func TestRegistryDefaultOrder(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(DefaultSteps())
	steps := reg.Steps()
	if len(steps) != 22 {
		t.Fatalf("len(steps)=%d; want 22", len(steps))
	}
	if steps[0].ID != StepCheckAdmin || steps[21].ID != StepVerifyInstallation {
		t.Fatalf("order=%s..%s; want check-admin..verify-installation", steps[0].ID, steps[21].ID)
	}
	catalog := DefaultCatalog()
	for _, s := range steps {
		if !s.Enabled || s.Status != domain.StepPending {
			t.Fatalf("step %s enabled=%v status=%s; want enabled pending", s.ID, s.Enabled, s.Status)
		}
		if _, ok := catalog[s.ID]; !ok {
			t.Fatalf("no action for step %s", s.ID)
		}
	}
}

func TestRegistryToggle(t *testing.T) {
	t.Parallel()

	reg := NewRegistry([]StepDef{{ID: "a", Enabled: true}, {ID: "b", Enabled: true}})
	if reg.ToggleEnabled("missing") {
		t.Fatalf("ToggleEnabled(missing)=true; want false")
	}
	if !reg.ToggleEnabled("a") {
		t.Fatalf("ToggleEnabled(a)=false; want true")
	}
	if s, _ := reg.Get("a"); s.Enabled {
		t.Fatalf("a still enabled after toggle")
	}

	reg.setRunning(true)
	if reg.ToggleEnabled("b") {
		t.Fatalf("ToggleEnabled during run=true; want false")
	}
	reg.setRunning(false)

	reg.UpdateStatus("b", domain.StepRunning, WithProgress(250), WithMessage("x"))
	if s, _ := reg.Get("b"); s.Progress != 100 || s.Message != "x" {
		t.Fatalf("b=%+v; want progress clamped to 100 and message x", s)
	}
	reg.UpdateStatus("b", domain.StepCompleted)
	if s, _ := reg.Get("b"); s.Progress != 100 || s.Message != "x" {
		t.Fatalf("partial update changed progress/message: %+v", s)
	}
}

func TestControllerSkipsDisabledInOrder(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	reg := NewRegistry([]StepDef{
		{ID: "a", Title: "A", Enabled: true},
		{ID: "b", Title: "B", Enabled: false},
		{ID: "c", Title: "C", Enabled: true},
	})
	ctrl := NewController(reg, Catalog{"a": rec.action(nil), "b": rec.action(nil), "c": rec.action(nil)}, Deps{}, ControllerOptions{})

	if _, err := ctrl.Run(context.Background(), NewState()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.Join(rec.Ran(), ","); got != "a,c" {
		t.Fatalf("ran=%q; want %q", got, "a,c")
	}
	st := statuses(reg)
	if st["a"] != domain.StepCompleted || st["b"] != domain.StepPending || st["c"] != domain.StepCompleted {
		t.Fatalf("statuses=%v", st)
	}
	if s, _ := reg.Get("c"); s.Progress != 100 || s.Message != "Completed successfully" {
		t.Fatalf("c=%+v; want 100 Completed successfully", s)
	}
}

func TestControllerHaltsOnFirstFailure(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	reg := NewRegistry([]StepDef{{ID: "a", Enabled: true}, {ID: "b", Enabled: true}, {ID: "c", Enabled: true}})
	ctrl := NewController(reg, Catalog{
		"a": rec.action(nil),
		"b": rec.action(fail(ErrEnvironment, "disk full")),
		"c": rec.action(nil),
	}, Deps{}, ControllerOptions{})

	_, err := ctrl.Run(context.Background(), NewState())
	if err == nil {
		t.Fatalf("Run succeeded; want failure")
	}
	if got := err.Error(); got != `step "b": disk full` {
		t.Fatalf("err=%q; want %q", got, `step "b": disk full`)
	}
	if !errors.Is(err, ErrEnvironment) || FailedStep(err) != "b" {
		t.Fatalf("err=%v FailedStep=%q; want ErrEnvironment at b", err, FailedStep(err))
	}
	if got := strings.Join(rec.Ran(), ","); got != "a,b" {
		t.Fatalf("ran=%q; want a,b", got)
	}
	b, _ := reg.Get("b")
	if b.Status != domain.StepError || b.Progress != 0 || b.Message != "disk full" {
		t.Fatalf("b=%+v; want error/0/disk full", b)
	}
	if c, _ := reg.Get("c"); c.Status != domain.StepPending {
		t.Fatalf("c=%s; want pending", c.Status)
	}
}

func TestControllerEmptyErrorMessage(t *testing.T) {
	t.Parallel()

	reg := NewRegistry([]StepDef{{ID: "a", Enabled: true}})
	ctrl := NewController(reg, Catalog{"a": ActionFunc(func(context.Context, *StepContext) error {
		return errors.New("")
	})}, Deps{}, ControllerOptions{})
	if _, err := ctrl.Run(context.Background(), nil); err == nil {
		t.Fatalf("Run succeeded; want failure")
	}
	if a, _ := reg.Get("a"); a.Message != "Failed" {
		t.Fatalf("message=%q; want Failed", a.Message)
	}
}

func TestControllerMissingAction(t *testing.T) {
	t.Parallel()

	reg := NewRegistry([]StepDef{{ID: "ghost", Enabled: true}})
	ctrl := NewController(reg, Catalog{}, Deps{}, ControllerOptions{})
	_, err := ctrl.Run(context.Background(), nil)
	if err == nil || FailedStep(err) != "ghost" {
		t.Fatalf("err=%v; want failure at ghost", err)
	}
}

func TestControllerConditionSkips(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	reg := NewRegistry([]StepDef{{ID: "a", Enabled: true}, {ID: "gpu", Enabled: true}})
	ctrl := NewController(reg, Catalog{"a": rec.action(nil), "gpu": rec.action(nil)}, Deps{}, ControllerOptions{
		When: func(id string, _ *State) (bool, error) { return id != "gpu", nil },
	})
	if _, err := ctrl.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.Join(rec.Ran(), ","); got != "a" {
		t.Fatalf("ran=%q; want a", got)
	}
	if s, _ := reg.Get("gpu"); s.Status != domain.StepPending {
		t.Fatalf("gpu=%s; want pending", s.Status)
	}
}

func TestControllerConditionErrorFailsStep(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	hist := &fakeHistory{}
	var done []domain.StepDonePayload
	reg := NewRegistry([]StepDef{{ID: "a", Enabled: true}, {ID: "b", Enabled: true}, {ID: "c", Enabled: true}})
	ctrl := NewController(reg, Catalog{"a": rec.action(nil), "b": rec.action(nil), "c": rec.action(nil)}, Deps{}, ControllerOptions{
		History: hist,
		Emit: func(ev domain.Event) bool {
			if p, ok := ev.Payload.(domain.StepDonePayload); ok && ev.StepID == "b" {
				done = append(done, p)
			}
			return true
		},
		When: func(id string, _ *State) (bool, error) {
			if id == "b" {
				return false, errors.New("undefined variable foo")
			}
			return true, nil
		},
	})

	_, err := ctrl.Run(context.Background(), NewState())
	if err == nil || FailedStep(err) != "b" {
		t.Fatalf("err=%v; want failure at b", err)
	}
	if got := strings.Join(rec.Ran(), ","); got != "a" {
		t.Fatalf("ran=%q; want a", got)
	}
	st := statuses(reg)
	if st["a"] != domain.StepCompleted || st["b"] != domain.StepError || st["c"] != domain.StepPending {
		t.Fatalf("statuses=%v", st)
	}
	if s, _ := reg.Get("b"); s.Message != "condition: undefined variable foo" {
		t.Fatalf("b message=%q", s.Message)
	}
	if len(done) != 1 || done[0].OK {
		t.Fatalf("StepDone for b=%+v; want one failure", done)
	}
	if got := strings.Join(hist.steps, ","); got != "a=completed,b=error" {
		t.Fatalf("history steps=%q", got)
	}
}

func TestControllerRerunStartsFromFirstStep(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	attempts := 0
	reg := NewRegistry([]StepDef{{ID: "a", Enabled: true}, {ID: "b", Enabled: true}})
	ctrl := NewController(reg, Catalog{
		"a": rec.action(nil),
		"b": ActionFunc(func(context.Context, *StepContext) error {
			attempts++
			if attempts == 1 {
				return fail(ErrCollaborator, "flaky")
			}
			return nil
		}),
	}, Deps{}, ControllerOptions{})

	if _, err := ctrl.Run(context.Background(), nil); err == nil {
		t.Fatalf("first run succeeded; want failure")
	}

	var seen []domain.StepState
	reg.OnChange(func(s domain.StepState) { seen = append(seen, s) })
	if _, err := ctrl.Run(context.Background(), nil); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := strings.Join(rec.Ran(), ","); got != "a,a" {
		t.Fatalf("ran=%q; want a,a", got)
	}
	if len(seen) < 2 || seen[0].ID != "a" || seen[0].Status != domain.StepPending || seen[1].Status != domain.StepPending {
		t.Fatalf("second run did not begin with a reset: %+v", seen)
	}
}

type fakeHistory struct {
	mu      sync.Mutex
	begun   map[string]bool
	steps   []string
	finishE error
	done    bool
}

func (f *fakeHistory) BeginRun(_ context.Context, runID string, _ time.Time, opts map[string]bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.begun = opts
	return nil
}

func (f *fakeHistory) RecordStep(_ context.Context, _ string, st domain.StepState, _, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, st.ID+"="+string(st.Status))
	return nil
}

func (f *fakeHistory) FinishRun(_ context.Context, _ string, _ time.Time, runErr error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishE = runErr
	f.done = true
	return nil
}

func TestControllerRecordsHistory(t *testing.T) {
	t.Parallel()

	hist := &fakeHistory{}
	reg := NewRegistry([]StepDef{{ID: "a", Enabled: true}, {ID: "b", Enabled: true}})
	ctrl := NewController(reg, Catalog{
		"a": ActionFunc(func(context.Context, *StepContext) error { return nil }),
		"b": ActionFunc(func(context.Context, *StepContext) error { return fail(ErrData, "bad") }),
	}, Deps{}, ControllerOptions{History: hist})

	st := NewState()
	st.Options.Set(OptRebuildEngine, true)
	runID, err := ctrl.Run(context.Background(), st)
	if err == nil || runID == "" {
		t.Fatalf("Run=(%q,%v); want run id and failure", runID, err)
	}
	if got := strings.Join(hist.steps, ","); got != "a=completed,b=error" {
		t.Fatalf("history steps=%q", got)
	}
	if !hist.begun[string(OptRebuildEngine)] || !hist.done || hist.finishE == nil {
		t.Fatalf("history=%+v", hist)
	}
}
