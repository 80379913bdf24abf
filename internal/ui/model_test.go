package ui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kayleschmoyer/Fv2/internal/domain"
)

func newTestModel(t *testing.T) (*Model, chan domain.Action) {
	t.Helper()
	actions := make(chan domain.Action, 8)
	m := NewModel(context.Background(), nil, actions, Meta{Version: "1.0.0"}, nil)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m.applyEvent(domain.Event{Type: domain.EventSteps, Payload: domain.StepsPayload{Steps: []domain.StepState{
		{ID: "check-admin", Title: "Check Administrator", Enabled: true, Status: domain.StepPending},
		{ID: "lock-gpu-clocks", Title: "Lock GPU Clocks", Enabled: true, Status: domain.StepPending},
	}}})
	m.ready = true
	return m, actions
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func drain(ch chan domain.Action) []domain.Action {
	var out []domain.Action
	for {
		select {
		case a := <-ch:
			out = append(out, a)
		default:
			return out
		}
	}
}

func TestPreCheckGate(t *testing.T) {
	t.Parallel()

	m, actions := newTestModel(t)
	m.applyEvent(domain.Event{Type: domain.EventPreCheck, Payload: domain.PreCheckPayload{Items: []domain.PreCheckItem{
		{ID: "config-generated", Question: "Have you generated the Camera Hub config?"},
	}}})
	if m.state.Phase != domain.PhasePreCheck {
		t.Fatalf("phase=%s; want precheck", m.state.Phase)
	}

	// Enter on the action row is refused while unchecked.
	m.Update(key("down"))
	m.Update(key("enter"))
	if m.state.Phase != domain.PhasePreCheck || m.notice == "" {
		t.Fatalf("phase=%s notice=%q; want gate to hold", m.state.Phase, m.notice)
	}

	m.Update(key("up"))
	m.Update(key(" "))
	got := drain(actions)
	if len(got) != 1 || got[0].Type != domain.ActionTogglePreCheck || got[0].Target != "config-generated" {
		t.Fatalf("actions=%+v; want one toggle", got)
	}

	// The engine echoes the new state.
	m.applyEvent(domain.Event{Type: domain.EventPreCheck, Payload: domain.PreCheckPayload{Items: []domain.PreCheckItem{
		{ID: "config-generated", Checked: true},
	}}})
	m.Update(key("down"))
	m.Update(key("enter"))
	if m.state.Phase != domain.PhaseSelect {
		t.Fatalf("phase=%s; want select", m.state.Phase)
	}
}

func TestPreCheckedSkipsGate(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(t)
	m.applyEvent(domain.Event{Type: domain.EventPreCheck, Payload: domain.PreCheckPayload{Items: []domain.PreCheckItem{
		{ID: "config-generated", Checked: true},
	}}})
	if m.state.Phase != domain.PhaseSelect {
		t.Fatalf("phase=%s; want select", m.state.Phase)
	}
}

func TestSelectToggleAndStart(t *testing.T) {
	t.Parallel()

	m, actions := newTestModel(t)
	m.state.Phase = domain.PhaseSelect

	m.Update(key("down"))
	m.Update(key(" "))
	m.Update(key("s"))
	got := drain(actions)
	if len(got) != 2 {
		t.Fatalf("actions=%+v; want toggle and start", got)
	}
	if got[0].Type != domain.ActionToggleStep || got[0].Target != "lock-gpu-clocks" {
		t.Fatalf("first action=%+v; want toggle lock-gpu-clocks", got[0])
	}
	if got[1].Type != domain.ActionStart {
		t.Fatalf("second action=%+v; want start", got[1])
	}
	if m.state.Phase != domain.PhaseRunning {
		t.Fatalf("phase=%s; want running", m.state.Phase)
	}
}

func TestConfirmQuestion(t *testing.T) {
	t.Parallel()

	m, actions := newTestModel(t)
	m.state.Phase = domain.PhaseRunning
	m.applyEvent(domain.Event{Type: domain.EventQuestion, StepID: "build-tensorrt", Payload: domain.QuestionPayload{Question: domain.QuestionState{
		Active: true, ID: "build-tensorrt#1", Kind: domain.QuestionConfirm, Title: "Engine exists", Prompt: "Rebuild?",
	}}})
	if len(m.state.Question.Options) != 2 {
		t.Fatalf("options=%+v; want yes/no", m.state.Question.Options)
	}
	if v := m.View(); !strings.Contains(v, "Rebuild?") {
		t.Fatalf("view does not show the question")
	}

	m.Update(key("n"))
	got := drain(actions)
	if len(got) != 1 || got[0].OptionID != domain.OptionNo || got[0].QuestionID != "build-tensorrt#1" {
		t.Fatalf("actions=%+v; want answer no", got)
	}
	if m.state.Question.Active {
		t.Fatalf("question still active")
	}
}

func TestInputQuestionAndCancel(t *testing.T) {
	t.Parallel()

	m, actions := newTestModel(t)
	m.state.Phase = domain.PhaseRunning
	ask := func(id string) {
		m.applyEvent(domain.Event{Type: domain.EventQuestion, Payload: domain.QuestionPayload{Question: domain.QuestionState{
			Active: true, ID: id, Kind: domain.QuestionInput, Prompt: "Site key", Default: "abc",
		}}})
	}

	ask("q#1")
	m.Update(key("d"))
	m.Update(key("enter"))
	got := drain(actions)
	if len(got) != 1 || got[0].Type != domain.ActionAnswerInput || got[0].Text != "abcd" {
		t.Fatalf("actions=%+v; want input abcd", got)
	}

	ask("q#2")
	m.Update(key("esc"))
	got = drain(actions)
	if len(got) != 1 || got[0].Type != domain.ActionCancel || got[0].QuestionID != "q#2" {
		t.Fatalf("actions=%+v; want cancel", got)
	}
}

func TestRunDoneShowsSummary(t *testing.T) {
	t.Parallel()

	m, actions := newTestModel(t)
	m.applyEvent(domain.Event{Type: domain.EventStepStart, StepID: "check-admin", Payload: domain.StepStartPayload{Label: "Check Administrator", Total: 2}})
	if m.state.Phase != domain.PhaseRunning || m.currentStep != "check-admin" {
		t.Fatalf("phase=%s current=%q", m.state.Phase, m.currentStep)
	}
	m.applyEvent(domain.Event{Type: domain.EventStepUpdate, Payload: domain.StepUpdatePayload{Step: domain.StepState{
		ID: "check-admin", Title: "Check Administrator", Enabled: true, Status: domain.StepError, Message: "Not elevated",
	}}})
	m.applyEvent(domain.Event{Type: domain.EventRunDone, Payload: domain.RunDonePayload{OK: false, RunID: "0123456789", FailedAt: "check-admin", Error: "not elevated"}})

	if m.state.Phase != domain.PhaseDone {
		t.Fatalf("phase=%s; want done", m.state.Phase)
	}
	v := m.View()
	for _, want := range []string{"Installation failed", "Failed step: Check Administrator", "01234567"} {
		if !strings.Contains(v, want) {
			t.Fatalf("summary missing %q", want)
		}
	}

	m.Update(key("r"))
	if m.state.Phase != domain.PhaseSelect {
		t.Fatalf("phase=%s; want select after r", m.state.Phase)
	}
	if got := drain(actions); len(got) != 0 {
		t.Fatalf("actions=%+v; want none before start", got)
	}
}

func TestComputeLayout(t *testing.T) {
	t.Parallel()

	cases := []struct {
		w, h, steps int
		tooSmall    bool
		logo        bool
	}{
		{120, 50, 22, false, true},
		{80, 24, 22, false, false},
		{60, 24, 22, true, false},
		{120, 8, 22, true, false},
	}
	for _, tc := range cases {
		l := computeLayout(tc.w, tc.h, tc.steps)
		if l.tooSmall != tc.tooSmall {
			t.Fatalf("computeLayout(%d,%d).tooSmall=%v; want %v", tc.w, tc.h, l.tooSmall, tc.tooSmall)
		}
		if tc.tooSmall {
			continue
		}
		if l.showLogo != tc.logo {
			t.Fatalf("computeLayout(%d,%d).showLogo=%v; want %v", tc.w, tc.h, l.showLogo, tc.logo)
		}
		if l.leftW+l.gap+l.rightW != tc.w || l.topAreaH+l.logH != tc.h {
			t.Fatalf("computeLayout(%d,%d)=%+v does not fill the screen", tc.w, tc.h, l)
		}
	}
}

func TestPanelWidth(t *testing.T) {
	t.Parallel()

	p := panelWithBadge("Steps", "3/22", "a very long line that will certainly not fit in the panel body", 30, 4)
	lines := strings.Split(p, "\n")
	if len(lines) != 4 {
		t.Fatalf("panel has %d lines; want 4", len(lines))
	}
	for i, l := range lines {
		if w := lipgloss.Width(l); w != 30 {
			t.Fatalf("line %d width=%d; want 30: %q", i, w, l)
		}
	}
}

func TestWrapPlain(t *testing.T) {
	t.Parallel()

	got := wrapPlain("one two three four", 9)
	want := []string{"one two", "three", "four"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("wrapPlain=%q; want %q", got, want)
	}
}
