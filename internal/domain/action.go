package domain

type ActionType string

const (
	ActionAnswerSelect ActionType = "answer_select"
	ActionAnswerInput  ActionType = "answer_input"
	ActionCancel       ActionType = "cancel"

	// Pre-run actions; ignored once a run has started.
	ActionTogglePreCheck ActionType = "toggle_precheck"
	ActionToggleStep     ActionType = "toggle_step"
	ActionStart          ActionType = "start"
)

type Action struct {
	Type ActionType

	QuestionID string
	OptionID   string
	Text       string

	// Target is the step id or pre-check item id for toggle actions.
	Target string
}
