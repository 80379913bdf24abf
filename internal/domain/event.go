package domain

import "time"

type EventType string

const (
	EventSteps      EventType = "steps"
	EventStepStart  EventType = "step_start"
	EventStepUpdate EventType = "step_update"
	EventStepDone   EventType = "step_done"
	EventProgress   EventType = "progress"
	EventLog        EventType = "log"
	EventQuestion   EventType = "question"
	EventPreCheck   EventType = "precheck"
	EventHostStatus EventType = "host_status"
	EventRunDone    EventType = "run_done"
	EventWarning    EventType = "warning"
	EventError      EventType = "error"
)

type Severity string

const (
	SeverityTrace Severity = "trace"
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

type Event struct {
	Type     EventType
	StepID   string
	TS       time.Time
	Source   string
	Severity Severity
	Payload  any
}

type StepsPayload struct {
	Steps []StepState
}

type StepStartPayload struct {
	Label string
	// Index is zero-based among the steps that run; Total counts them.
	Index int
	Total int
}

// StepUpdatePayload carries a full snapshot of one step after any registry write.
type StepUpdatePayload struct {
	Step StepState
}

type StepDonePayload struct {
	OK      bool
	Message string
}

// ProgressPayload reports transfer progress inside a step (bytes downloaded,
// entries extracted). Step percentage lives on StepState.Progress.
type ProgressPayload struct {
	Current int64
	Total   int64
	Unit    string
}

type LogPayload struct {
	Message string
	Fields  map[string]string
}

type QuestionPayload struct {
	Question QuestionState
}

type PreCheckPayload struct {
	Items []PreCheckItem
}

type HostStatusPayload struct {
	Status HostStatus
}

type RunDonePayload struct {
	OK       bool
	RunID    string
	Error    string
	FailedAt string
	Duration time.Duration
}
