package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kayleschmoyer/Fv2/internal/domain"
)

func record(l *EventLogger, evs ...domain.Event) {
	for _, ev := range evs {
		l.Record(ev)
	}
}

func failedRun() []domain.Event {
	ts := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	return []domain.Event{
		{Type: domain.EventSteps, TS: ts, Payload: domain.StepsPayload{Steps: []domain.StepState{
			{ID: "check-admin", Title: "Check Administrator Privileges"},
			{ID: "download-dlls", Title: "Download Extra DLLs"},
		}}},
		{Type: domain.EventStepStart, StepID: "check-admin", TS: ts, Source: "install", Payload: domain.StepStartPayload{Label: "Check Administrator Privileges", Index: 0, Total: 2}},
		{Type: domain.EventStepDone, StepID: "check-admin", TS: ts, Source: "install", Payload: domain.StepDonePayload{OK: true, Message: "Completed successfully"}},
		{Type: domain.EventStepStart, StepID: "download-dlls", TS: ts, Source: "install", Payload: domain.StepStartPayload{Label: "Download Extra DLLs", Index: 1, Total: 2}},
		{Type: domain.EventLog, StepID: "download-dlls", TS: ts, Source: "install", Payload: domain.LogPayload{
			Message: "Resolved Drive file",
			Fields:  map[string]string{"name": "dlls.zip", "access_token": "ya29.secretvalue"},
		}},
		{Type: domain.EventProgress, StepID: "download-dlls", TS: ts, Source: "install", Payload: domain.ProgressPayload{Current: 10, Total: 100, Unit: "files"}},
		{Type: domain.EventProgress, StepID: "download-dlls", TS: ts, Source: "install", Payload: domain.ProgressPayload{Current: 50, Total: 100, Unit: "files"}},
		{Type: domain.EventLog, StepID: "download-dlls", TS: ts, Source: "process", Severity: domain.SeverityTrace, Payload: domain.LogPayload{Message: "GET with Bearer ya29.abc123"}},
		{Type: domain.EventStepDone, StepID: "download-dlls", TS: ts, Source: "install", Payload: domain.StepDonePayload{OK: false, Message: "Download failed: quota exceeded"}},
		{Type: domain.EventRunDone, TS: ts.Add(time.Minute), Source: "install", Payload: domain.RunDonePayload{
			OK: false, RunID: "run-42", Error: `step "download-dlls": Download failed: quota exceeded`, FailedAt: "download-dlls", Duration: time.Minute,
		}},
	}
}

func TestFinalizeWritesFailedRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := NewEventLogger(Config{Dir: dir, Version: "1.2.0", Options: []string{"rebuildEngine"}})
	record(l, failedRun()...)

	res, err := l.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !res.Written || filepath.Dir(res.Path) != dir {
		t.Fatalf("Finalize()=%+v; want written into %s", res, dir)
	}
	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)

	for _, want := range []string{
		"# FLIv2 installer log",
		"- Result: Failed",
		"- Run: `run-42`",
		"- Failure reason: step \"download-dlls\": Download failed: quota exceeded",
		"- Failed steps: Download Extra DLLs (`download-dlls`)",
		"- Redo options: rebuildEngine",
		"### Check Administrator Privileges (`check-admin`)",
		"#### Issues",
		"Progress: 50/100 files",
		"<summary>Full output",
		"access_token=<redacted>",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %q:\n%s", want, out)
		}
	}
	for _, leaked := range []string{"ya29.secretvalue", "ya29.abc123", "Progress: 10/100"} {
		if strings.Contains(out, leaked) {
			t.Fatalf("log contains %q:\n%s", leaked, out)
		}
	}
}

func TestFinalizeSkipsCleanRunUnlessAlways(t *testing.T) {
	t.Parallel()

	ok := []domain.Event{
		{Type: domain.EventRunDone, Payload: domain.RunDonePayload{OK: true, RunID: "r"}},
	}

	dir := t.TempDir()
	l := NewEventLogger(Config{Dir: dir})
	record(l, ok...)
	res, err := l.Finalize()
	if err != nil || res.Written {
		t.Fatalf("Finalize()=%+v,%v; want nothing written", res, err)
	}

	l = NewEventLogger(Config{Dir: dir, Always: true})
	record(l, ok...)
	res, err = l.Finalize()
	if err != nil || !res.Written {
		t.Fatalf("Finalize(always)=%+v,%v; want written", res, err)
	}
	newest, err := NewestLog(dir)
	if err != nil || newest != res.Path {
		t.Fatalf("NewestLog()=%q,%v; want %q", newest, err, res.Path)
	}
}

func TestNewestLogEmpty(t *testing.T) {
	t.Parallel()

	if _, err := NewestLog(t.TempDir()); err != ErrNoLogs {
		t.Fatalf("NewestLog(empty)=%v; want ErrNoLogs", err)
	}
}

func TestRedactor(t *testing.T) {
	t.Parallel()

	r := newRedactor([]string{"site-4711", "k3y-abc"})
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Site key set to site-4711.", "Site key set to <redacted>."},
		{"api_key=k3y-abc", "api_key: <redacted>"},
		{"Authorization: Bearer abc.def", "Authorization: Bearer <redacted>"},
		{"https://x/y?alt=media&access_token=zzz", "https://x/y?alt=media&access_token=<redacted>"},
		{"token: 123", "token: <redacted>"},
		{"line\none", "line one"},
		{"plain message", "plain message"},
	}
	for _, tc := range cases {
		if got := r.message(tc.in); got != tc.want {
			t.Fatalf("message(%q)=%q; want %q", tc.in, got, tc.want)
		}
	}

	if got := r.fields(map[string]string{"op": "x", "site_key": "abc", "name": "FLIv2 Viewer"}); got != `name="FLIv2 Viewer" site_key=<redacted>` {
		t.Fatalf("fields()=%q", got)
	}
}
