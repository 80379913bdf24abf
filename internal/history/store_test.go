package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.arcalot.io/assert"

	"github.com/kayleschmoyer/Fv2/internal/domain"
	"github.com/kayleschmoyer/Fv2/internal/engine/install"
)

var _ install.HistoryRecorder = (*Store)(nil)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	assert.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openStore(t)
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.NoError(t, s.BeginRun(ctx, "run-1", t0, map[string]bool{"rebuildEngine": true}))
	assert.NoError(t, s.RecordStep(ctx, "run-1", domain.StepState{
		ID: "check-admin", Title: "Check Administrator", Status: domain.StepCompleted, Message: "Completed successfully",
	}, t0, t0.Add(time.Second)))
	assert.NoError(t, s.RecordStep(ctx, "run-1", domain.StepState{
		ID: "download-dlls", Title: "Download DLLs", Status: domain.StepError, Message: "Download failed",
	}, t0.Add(time.Second), t0.Add(3*time.Second)))
	assert.NoError(t, s.FinishRun(ctx, "run-1", t0.Add(4*time.Second), errors.New("step \"download-dlls\": boom")))

	runs, err := s.ListRuns(ctx, 10)
	assert.NoError(t, err)
	assert.Equals(t, len(runs), 1)
	r := runs[0]
	assert.Equals(t, r.Status, RunFailed)
	assert.Equals(t, r.Steps, 2)
	assert.Equals(t, r.FailedAt, "download-dlls")
	assert.Equals(t, r.Options["rebuildEngine"], true)
	assert.NotNil(t, r.Ended)
	assert.Equals(t, r.Started.Equal(t0), true)

	steps, err := s.Steps(ctx, "run-1")
	assert.NoError(t, err)
	assert.Equals(t, len(steps), 2)
	assert.Equals(t, steps[0].StepID, "check-admin")
	assert.Equals(t, steps[1].Status, domain.StepError)
	assert.Equals(t, steps[1].Duration(), 2*time.Second)
}

func TestListRunsNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		started := base.Add(time.Duration(i) * time.Minute)
		assert.NoError(t, s.BeginRun(ctx, id, started, nil))
		assert.NoError(t, s.FinishRun(ctx, id, started.Add(time.Second), nil))
	}
	// Still running.
	assert.NoError(t, s.BeginRun(ctx, "d", base.Add(time.Hour), nil))

	runs, err := s.ListRuns(ctx, 2)
	assert.NoError(t, err)
	assert.Equals(t, len(runs), 2)
	assert.Equals(t, runs[0].ID, "d")
	assert.Equals(t, runs[0].Status, RunRunning)
	assert.Equals(t, runs[0].Ended == nil, true)
	assert.Equals(t, runs[1].ID, "c")
	assert.Equals(t, runs[1].Status, RunSucceeded)

	all, err := s.ListRuns(ctx, 0)
	assert.NoError(t, err)
	assert.Equals(t, len(all), 4)
}

func TestRecordStepKeepsLatest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openStore(t)
	now := time.Now()
	assert.NoError(t, s.BeginRun(ctx, "r", now, nil))
	st := domain.StepState{ID: "verify-installation", Title: "Verify", Status: domain.StepError, Message: "Missing"}
	assert.NoError(t, s.RecordStep(ctx, "r", st, now, now))
	st.Status, st.Message = domain.StepCompleted, "Completed successfully"
	assert.NoError(t, s.RecordStep(ctx, "r", st, now, now.Add(time.Millisecond)))

	steps, err := s.Steps(ctx, "r")
	assert.NoError(t, err)
	assert.Equals(t, len(steps), 1)
	assert.Equals(t, steps[0].Message, "Completed successfully")
}

func TestFinishUnknownRun(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	err := s.FinishRun(context.Background(), "missing", time.Now(), nil)
	if !errors.Is(err, ErrUnknownRun) {
		t.Fatalf("FinishRun(missing)=%v; want ErrUnknownRun", err)
	}
}
