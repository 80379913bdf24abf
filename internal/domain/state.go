package domain

import "time"

type Phase string

const (
	PhasePreCheck Phase = "precheck"
	PhaseSelect   Phase = "select"
	PhaseRunning  Phase = "running"
	PhaseDone     Phase = "done"
)

type AppState struct {
	Phase Phase

	Steps     []StepState
	PreChecks []PreCheckItem
	Host      HostStatus
	Logs      LogState
	Progress  ProgressState
	Question  QuestionState
	Result    *RunDonePayload

	StartedAt time.Time
	EndedAt   *time.Time
}

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepError     StepStatus = "error"
)

func (s StepStatus) Terminal() bool {
	return s == StepCompleted || s == StepError
}

type StepState struct {
	ID          string
	Title       string
	Description string
	Enabled     bool
	Status      StepStatus
	// Progress is 0..100 and only meaningful while Status is running.
	Progress int
	Message  string
}

type PreCheckItem struct {
	ID          string
	Question    string
	Description string
	Checked     bool
}

// PreChecksSatisfied reports whether every gating item is checked.
func PreChecksSatisfied(items []PreCheckItem) bool {
	for _, it := range items {
		if !it.Checked {
			return false
		}
	}
	return true
}

type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

type LogEntry struct {
	TS      time.Time
	Level   LogLevel
	Source  string
	StepID  string
	Message string
	Fields  map[string]string
}

type LogState struct {
	Max     int
	Entries []LogEntry
}

type QuestionKind string

const (
	QuestionSelect  QuestionKind = "select"
	QuestionConfirm QuestionKind = "confirm"
	QuestionInput   QuestionKind = "input"
	QuestionFile    QuestionKind = "file"
	QuestionFolder  QuestionKind = "folder"
)

// Confirm questions are answered with one of these option ids.
const (
	OptionYes = "yes"
	OptionNo  = "no"
)

type QuestionState struct {
	Active   bool
	ID       string
	Kind     QuestionKind
	Title    string
	Prompt   string
	Detail   string
	Options  []QuestionOption
	Selected int

	// Input, file and folder kinds.
	Default     string
	Placeholder string
	Secret      bool
	// File kind: accepted extensions such as ".xml"; empty accepts anything.
	Extensions []string
}

type QuestionOption struct {
	ID      string
	Label   string
	Enabled bool
	Reason  string
}

// ConfirmOptions is the option list used for yes/no questions.
func ConfirmOptions() []QuestionOption {
	return []QuestionOption{
		{ID: OptionYes, Label: "Yes", Enabled: true},
		{ID: OptionNo, Label: "No", Enabled: true},
	}
}

type ProgressState struct {
	StepID   string
	Current  int64
	Total    int64
	Unit     string
	Updated  time.Time
	Visible  bool
	Indicate bool
}
