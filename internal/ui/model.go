package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kayleschmoyer/Fv2/internal/domain"
)

type EventMsg struct {
	Event domain.Event
	OK    bool
}

type pulseMsg struct{}

// listFocus is where the cursor sits on the pre-check and step screens.
type listFocus int

const (
	focusList listFocus = iota
	focusActions
)

type Model struct {
	ctx     context.Context
	events  <-chan domain.Event
	cancel  func()
	actions chan<- domain.Action

	state domain.AppState
	meta  Meta

	width  int
	height int

	progress progress.Model
	spin     spinner.Model
	input    textinput.Model

	stepsVP  viewport.Model
	statusVP viewport.Model
	logVP    viewport.Model

	layout layoutState

	// Set once the engine has published the step list and pre-checks.
	ready bool
	// The first pre-check payload decides whether the gate screen is shown.
	precheckSeen bool

	cursor int
	focus  listFocus

	// notice is a one-line hint on the list screens, e.g. why Enter did nothing.
	notice string

	currentStep string

	cancelling bool
	engineDone bool

	followLogs bool
	pulseOn    bool

	confirmQuitActive   bool
	confirmQuitSelected int // 0 = abort, 1 = continue
}

func NewModel(ctx context.Context, events <-chan domain.Event, actions chan<- domain.Action, meta Meta, cancel func()) *Model {
	spin := spinner.New()
	spin.Spinner = spinner.Line

	in := textinput.New()
	in.Prompt = "> "
	in.PromptStyle = questionStyle
	in.CharLimit = 1024

	return &Model{
		ctx:     ctx,
		events:  events,
		cancel:  cancel,
		actions: actions,
		state: domain.AppState{
			Phase:     domain.PhasePreCheck,
			StartedAt: time.Now(),
			Logs:      domain.LogState{Max: 1000},
		},
		meta:       meta,
		progress:   progress.New(progress.WithSolidFill(progressFillHex), progress.WithoutPercentage()),
		spin:       spin,
		input:      in,
		followLogs: true,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.events),
		m.spin.Tick,
		pulseTick(),
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.reflow()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case pulseMsg:
		if m.currentStep != "" && !m.engineDone && !m.cancelling {
			m.pulseOn = !m.pulseOn
			m.reflow()
		} else {
			m.pulseOn = false
		}
		return m, pulseTick()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EventMsg:
		if !msg.OK {
			// The engine is gone; keep the screen until the operator quits.
			m.engineDone = true
			m.ready = true
			m.state.Question.Active = false
			if m.state.Phase == domain.PhaseRunning {
				res := domain.RunDonePayload{OK: false, Error: "installation cancelled", FailedAt: m.currentStep}
				if !m.state.StartedAt.IsZero() {
					res.Duration = time.Since(m.state.StartedAt)
				}
				m.finishRun(res)
			}
			m.reflow()
			return m, nil
		}
		m.applyEvent(msg.Event)
		m.reflow()
		return m, waitForEvent(m.events)

	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	lowerKey := strings.ToLower(key)

	if m.confirmQuitActive {
		return m.handleConfirmQuitKey(lowerKey)
	}

	switch lowerKey {
	case "ctrl+q":
		if m.engineDone || m.state.Phase != domain.PhaseRunning {
			return m, m.quit()
		}
		m.confirmQuitActive = true
		m.confirmQuitSelected = 0
		return m, nil
	case "ctrl+c":
		// First press cancels the run, the second one leaves.
		if !m.cancelling && !m.engineDone {
			m.requestCancel(key)
			m.reflow()
			return m, nil
		}
		return m, m.quit()
	}

	switch m.state.Phase {
	case domain.PhasePreCheck:
		return m, m.handlePreCheckKey(lowerKey)
	case domain.PhaseSelect:
		return m, m.handleSelectKey(lowerKey)
	case domain.PhaseDone:
		return m, m.handleSummaryKey(lowerKey)
	}

	if m.state.Question.Active {
		cmd := m.handleQuestionKey(msg)
		m.reflow()
		return m, cmd
	}
	m.scrollLogs(lowerKey)
	return m, nil
}

func (m *Model) handleConfirmQuitKey(lowerKey string) (tea.Model, tea.Cmd) {
	switch lowerKey {
	case "esc", "ctrl+q":
		m.confirmQuitActive = false
	case "left", "up", "shift+tab":
		m.confirmQuitSelected = 0
	case "right", "down", "tab":
		m.confirmQuitSelected = 1
	case "enter":
		m.confirmQuitActive = false
		if m.confirmQuitSelected == 0 {
			return m, m.quit()
		}
	}
	return m, nil
}

func (m *Model) quit() tea.Cmd {
	if m.cancel != nil {
		m.cancel()
	}
	return tea.Quit
}

func (m *Model) scrollLogs(lowerKey string) {
	switch lowerKey {
	case "up":
		m.followLogs = false
		m.logVP.ScrollUp(1)
	case "down":
		m.logVP.ScrollDown(1)
	case "pgup", "pageup":
		m.followLogs = false
		m.logVP.PageUp()
	case "pgdown", "pagedown":
		m.logVP.PageDown()
	case "home":
		m.followLogs = false
		m.logVP.GotoTop()
	case "end":
		m.logVP.GotoBottom()
	default:
		return
	}
	if m.logVP.AtBottom() {
		m.followLogs = true
	}
}

func (m *Model) handleQuestionKey(msg tea.KeyMsg) tea.Cmd {
	q := &m.state.Question
	lowerKey := strings.ToLower(msg.String())

	if lowerKey == "esc" {
		m.sendAction(domain.Action{Type: domain.ActionCancel, QuestionID: q.ID})
		m.closeQuestion()
		return nil
	}

	if isTextQuestion(q.Kind) {
		if lowerKey == "enter" {
			m.sendAction(domain.Action{
				Type:       domain.ActionAnswerInput,
				QuestionID: q.ID,
				Text:       m.input.Value(),
			})
			m.closeQuestion()
			return nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return cmd
	}

	switch lowerKey {
	case "up", "left", "shift+tab":
		q.Selected = selectPrevEnabled(*q)
	case "down", "right", "tab":
		q.Selected = selectNextEnabled(*q)
	case "y", "n":
		if q.Kind == domain.QuestionConfirm {
			id := domain.OptionNo
			if lowerKey == "y" {
				id = domain.OptionYes
			}
			m.answerSelect(id)
		}
	case "enter":
		if i := q.Selected; i >= 0 && i < len(q.Options) && q.Options[i].Enabled {
			m.answerSelect(q.Options[i].ID)
		}
	}
	return nil
}

func (m *Model) answerSelect(optionID string) {
	m.sendAction(domain.Action{
		Type:       domain.ActionAnswerSelect,
		QuestionID: m.state.Question.ID,
		OptionID:   optionID,
	})
	m.closeQuestion()
}

func (m *Model) closeQuestion() {
	m.state.Question.Active = false
	m.input.Blur()
	m.input.Reset()
}

func isTextQuestion(kind domain.QuestionKind) bool {
	switch kind {
	case domain.QuestionInput, domain.QuestionFile, domain.QuestionFolder:
		return true
	default:
		return false
	}
}

func (m *Model) requestCancel(key string) {
	m.cancelling = true
	m.state.Question.Active = false
	m.appendLog(domain.LogEntry{
		TS:      time.Now(),
		Level:   domain.LogWarning,
		Source:  "ui",
		Message: fmt.Sprintf("Cancellation requested (%s).", key),
	})
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Model) applyEvent(ev domain.Event) {
	switch ev.Type {
	case domain.EventSteps:
		if p, ok := ev.Payload.(domain.StepsPayload); ok {
			m.state.Steps = cloneSteps(p.Steps)
		}
	case domain.EventStepUpdate:
		if p, ok := ev.Payload.(domain.StepUpdatePayload); ok {
			m.updateStep(p.Step)
		}
	case domain.EventPreCheck:
		if p, ok := ev.Payload.(domain.PreCheckPayload); ok {
			m.state.PreChecks = append([]domain.PreCheckItem(nil), p.Items...)
			if !m.precheckSeen {
				m.precheckSeen = true
				m.ready = true
				if domain.PreChecksSatisfied(p.Items) && m.state.Phase == domain.PhasePreCheck {
					m.state.Phase = domain.PhaseSelect
				}
			}
		}
	case domain.EventHostStatus:
		if p, ok := ev.Payload.(domain.HostStatusPayload); ok {
			m.state.Host = domain.NormalizeHostStatus(p.Status)
		}
	case domain.EventStepStart:
		if m.state.Phase != domain.PhaseRunning {
			m.beginRun()
		}
		m.currentStep = ev.StepID
		label := ev.StepID
		if p, ok := ev.Payload.(domain.StepStartPayload); ok && p.Label != "" {
			label = p.Label
			if p.Total > 0 {
				label = fmt.Sprintf("[%d/%d] %s", p.Index+1, p.Total, label)
			}
		}
		m.appendLog(domain.LogEntry{TS: ev.TS, Level: domain.LogInfo, Source: ev.Source, StepID: ev.StepID, Message: label})
	case domain.EventStepDone:
		p, _ := ev.Payload.(domain.StepDonePayload)
		level, icon := domain.LogInfo, "✔"
		if !p.OK {
			level, icon = domain.LogError, "✖"
		}
		msg := strings.TrimSpace(p.Message)
		if msg == "" {
			msg = ev.StepID
		}
		m.appendLog(domain.LogEntry{TS: ev.TS, Level: level, Source: ev.Source, StepID: ev.StepID, Message: icon + " " + msg})
		m.state.Progress.Visible = false
	case domain.EventProgress:
		m.setProgress(ev)
	case domain.EventLog:
		m.addLog(ev, domain.LogInfo)
	case domain.EventWarning:
		m.addLog(ev, domain.LogWarning)
		if p, ok := ev.Payload.(domain.LogPayload); ok && m.state.Phase != domain.PhaseRunning {
			m.notice = p.Message
		}
	case domain.EventError:
		m.addLog(ev, domain.LogError)
		if p, ok := ev.Payload.(domain.LogPayload); ok && m.state.Phase != domain.PhaseRunning {
			m.notice = p.Message
		}
	case domain.EventQuestion:
		if p, ok := ev.Payload.(domain.QuestionPayload); ok {
			m.openQuestion(p.Question)
		}
	case domain.EventRunDone:
		if p, ok := ev.Payload.(domain.RunDonePayload); ok {
			m.finishRun(p)
		}
	}
}

func (m *Model) beginRun() {
	m.state.Phase = domain.PhaseRunning
	m.state.StartedAt = time.Now()
	m.state.EndedAt = nil
	m.state.Result = nil
	m.notice = ""
	m.followLogs = true
}

func (m *Model) finishRun(p domain.RunDonePayload) {
	now := time.Now()
	m.state.EndedAt = &now
	m.state.Result = &p
	m.state.Phase = domain.PhaseDone
	m.state.Question.Active = false
	m.state.Progress.Visible = false
	m.currentStep = ""
	m.cursor = 0
}

func (m *Model) openQuestion(q domain.QuestionState) {
	if q.Kind == "" {
		q.Kind = domain.QuestionSelect
	}
	if q.Kind == domain.QuestionConfirm && len(q.Options) == 0 {
		q.Options = domain.ConfirmOptions()
	}
	m.state.Question = q
	m.input.Reset()
	if isTextQuestion(q.Kind) {
		m.input.Placeholder = q.Placeholder
		if m.input.Placeholder == "" && q.Kind != domain.QuestionInput {
			m.input.Placeholder = "Full path" + extensionsHint(q.Extensions)
		}
		m.input.EchoMode = textinput.EchoNormal
		if q.Secret {
			m.input.EchoMode = textinput.EchoPassword
		}
		m.input.SetValue(q.Default)
		m.input.CursorEnd()
		m.input.Focus()
	}
}

func extensionsHint(exts []string) string {
	if len(exts) == 0 {
		return ""
	}
	return " (" + strings.Join(exts, ", ") + ")"
}

func (m *Model) sendAction(a domain.Action) {
	if m.actions == nil {
		return
	}
	select {
	case m.actions <- a:
	default:
	}
}

func cloneSteps(in []domain.StepState) []domain.StepState {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.StepState, len(in))
	copy(out, in)
	return out
}

func (m *Model) updateStep(st domain.StepState) {
	for i := range m.state.Steps {
		if m.state.Steps[i].ID == st.ID {
			m.state.Steps[i] = st
			return
		}
	}
	m.state.Steps = append(m.state.Steps, st)
}

func (m *Model) addLog(ev domain.Event, level domain.LogLevel) {
	payload, ok := ev.Payload.(domain.LogPayload)
	if !ok {
		return
	}
	m.appendLog(domain.LogEntry{
		TS:      ev.TS,
		Level:   level,
		Source:  ev.Source,
		StepID:  ev.StepID,
		Message: payload.Message,
		Fields:  payload.Fields,
	})
}

func (m *Model) appendLog(entry domain.LogEntry) {
	m.state.Logs.Entries = append(m.state.Logs.Entries, entry)
	if m.state.Logs.Max > 0 && len(m.state.Logs.Entries) > m.state.Logs.Max {
		m.state.Logs.Entries = m.state.Logs.Entries[len(m.state.Logs.Entries)-m.state.Logs.Max:]
	}
}

func (m *Model) setProgress(ev domain.Event) {
	p, ok := ev.Payload.(domain.ProgressPayload)
	if !ok {
		return
	}
	m.state.Progress = domain.ProgressState{
		StepID:   ev.StepID,
		Current:  p.Current,
		Total:    p.Total,
		Unit:     p.Unit,
		Updated:  time.Now(),
		Visible:  true,
		Indicate: p.Total <= 0,
	}
}

func (m *Model) activeStep() (domain.StepState, bool) {
	for _, s := range m.state.Steps {
		if s.Status == domain.StepRunning {
			return s, true
		}
	}
	return domain.StepState{}, false
}

func waitForEvent(events <-chan domain.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		return EventMsg{Event: ev, OK: ok}
	}
}

func pulseTick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(time.Time) tea.Msg { return pulseMsg{} })
}

func selectPrevEnabled(q domain.QuestionState) int {
	if len(q.Options) == 0 {
		return 0
	}
	i := q.Selected
	for range q.Options {
		i--
		if i < 0 {
			i = len(q.Options) - 1
		}
		if q.Options[i].Enabled {
			return i
		}
	}
	return q.Selected
}

func selectNextEnabled(q domain.QuestionState) int {
	if len(q.Options) == 0 {
		return 0
	}
	i := q.Selected
	for range q.Options {
		i++
		if i >= len(q.Options) {
			i = 0
		}
		if q.Options[i].Enabled {
			return i
		}
	}
	return q.Selected
}
