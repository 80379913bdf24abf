package install

import (
	"context"
	"fmt"
	"strings"

	"github.com/kayleschmoyer/Fv2/internal/domain"
)

type ConfirmRequest struct {
	Title   string
	Message string
	Detail  string
}

type InputRequest struct {
	Title       string
	Message     string
	Placeholder string
	Default     string
	Secret      bool
}

type PickRequest struct {
	Title      string
	Message    string
	Extensions []string
	Default    string
}

// Prompter suspends an action until the operator answers. A cancelled
// prompt returns an error wrapping ErrCancelled.
type Prompter interface {
	Confirm(ctx context.Context, req ConfirmRequest) (bool, error)
	Input(ctx context.Context, req InputRequest) (string, error)
	PickFile(ctx context.Context, req PickRequest) (string, error)
	PickFolder(ctx context.Context, req PickRequest) (string, error)
}

// eventPrompter publishes each prompt as an EventQuestion and waits on the
// actions channel for the matching answer.
type eventPrompter struct {
	emit    func(domain.Event) bool
	actions <-chan domain.Action
	stepID  func() string
	seq     int
}

func newEventPrompter(emit func(domain.Event) bool, actions <-chan domain.Action, stepID func() string) *eventPrompter {
	return &eventPrompter{emit: emit, actions: actions, stepID: stepID}
}

func (p *eventPrompter) Confirm(ctx context.Context, req ConfirmRequest) (bool, error) {
	a, err := p.ask(ctx, domain.QuestionState{
		Kind:    domain.QuestionConfirm,
		Title:   req.Title,
		Prompt:  req.Message,
		Detail:  req.Detail,
		Options: domain.ConfirmOptions(),
	})
	if err != nil {
		return false, err
	}
	return a.OptionID == domain.OptionYes, nil
}

func (p *eventPrompter) Input(ctx context.Context, req InputRequest) (string, error) {
	a, err := p.ask(ctx, domain.QuestionState{
		Kind:        domain.QuestionInput,
		Title:       req.Title,
		Prompt:      req.Message,
		Default:     req.Default,
		Placeholder: req.Placeholder,
		Secret:      req.Secret,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(a.Text), nil
}

func (p *eventPrompter) PickFile(ctx context.Context, req PickRequest) (string, error) {
	return p.pick(ctx, domain.QuestionFile, req)
}

func (p *eventPrompter) PickFolder(ctx context.Context, req PickRequest) (string, error) {
	return p.pick(ctx, domain.QuestionFolder, req)
}

// pick treats an empty answer as cancellation, like closing a file dialog.
func (p *eventPrompter) pick(ctx context.Context, kind domain.QuestionKind, req PickRequest) (string, error) {
	a, err := p.ask(ctx, domain.QuestionState{
		Kind:       kind,
		Title:      req.Title,
		Prompt:     req.Message,
		Default:    req.Default,
		Extensions: req.Extensions,
	})
	if err != nil {
		return "", err
	}
	path := strings.Trim(strings.TrimSpace(a.Text), `"`)
	if path == "" {
		return "", fmt.Errorf("%w: no selection", ErrCancelled)
	}
	return path, nil
}

func (p *eventPrompter) ask(ctx context.Context, q domain.QuestionState) (domain.Action, error) {
	if p.actions == nil {
		return domain.Action{}, fmt.Errorf("%w: no operator attached", ErrCancelled)
	}
	p.seq++
	stepID := ""
	if p.stepID != nil {
		stepID = p.stepID()
	}
	q.Active = true
	q.ID = fmt.Sprintf("%s#%d", stepID, p.seq)

	if !p.emit(domain.Event{
		Type:     domain.EventQuestion,
		StepID:   stepID,
		Source:   "install",
		Severity: domain.SeverityInfo,
		Payload:  domain.QuestionPayload{Question: q},
	}) {
		return domain.Action{}, ctx.Err()
	}

	want := domain.ActionAnswerInput
	if q.Kind == domain.QuestionConfirm || q.Kind == domain.QuestionSelect {
		want = domain.ActionAnswerSelect
	}
	for {
		select {
		case <-ctx.Done():
			return domain.Action{}, ctx.Err()
		case a, ok := <-p.actions:
			if !ok {
				return domain.Action{}, fmt.Errorf("%w: operator detached", ErrCancelled)
			}
			if a.QuestionID != q.ID {
				continue
			}
			if a.Type == domain.ActionCancel {
				return domain.Action{}, fmt.Errorf("%w: %s", ErrCancelled, questionLabel(q))
			}
			if a.Type != want {
				continue
			}
			return a, nil
		}
	}
}

func questionLabel(q domain.QuestionState) string {
	if q.Title != "" {
		return q.Title
	}
	return q.Prompt
}
