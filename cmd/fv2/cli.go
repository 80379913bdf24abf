package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/muesli/termenv"

	"github.com/kayleschmoyer/Fv2/internal/domain"
)

// linePrompter reads operator answers one line at a time.
type linePrompter interface {
	ReadLine(prompt, def string) (string, error)
	ReadSecret(prompt string) (string, error)
	Close() error
}

type cliOutput struct {
	out    *termenv.Output
	errOut *termenv.Output
	quiet  bool
}

func newCLIOutput(noColor, quiet bool) *cliOutput {
	var opts []termenv.OutputOption
	if noColor || termenv.EnvNoColor() {
		opts = append(opts, termenv.WithProfile(termenv.Ascii))
	}
	return &cliOutput{
		out:    termenv.NewOutput(os.Stdout, opts...),
		errOut: termenv.NewOutput(os.Stderr, opts...),
		quiet:  quiet,
	}
}

func runCLI(ctx context.Context, events <-chan domain.Event, actions chan<- domain.Action, cancel func(), out *cliOutput) error {
	p := &readlinePrompter{stdout: out.out}
	defer p.Close()
	s := newCLISession(out, p, actions, cancel)
	return s.run(ctx, events)
}

type cliSession struct {
	out     *cliOutput
	prompt  linePrompter
	actions chan<- domain.Action
	cancel  func()

	labels  map[string]string
	lastLog map[string]string
	lastPct map[string]int64

	started  bool
	declined bool
}

func newCLISession(out *cliOutput, prompt linePrompter, actions chan<- domain.Action, cancel func()) *cliSession {
	return &cliSession{
		out:     out,
		prompt:  prompt,
		actions: actions,
		cancel:  cancel,
		labels:  map[string]string{},
		lastLog: map[string]string{},
		lastPct: map[string]int64{},
	}
}

func (s *cliSession) run(ctx context.Context, events <-chan domain.Event) error {
	fmt.Fprintln(s.out.out, "Running installer in CLI mode (no TUI).")
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("installation cancelled: %w", ctx.Err())
		case ev, ok := <-events:
			if !ok {
				if s.declined {
					return errPreChecks
				}
				return nil
			}
			s.apply(ctx, ev)
		}
	}
}

func (s *cliSession) apply(ctx context.Context, ev domain.Event) {
	switch ev.Type {
	case domain.EventSteps:
		if p, ok := ev.Payload.(domain.StepsPayload); ok {
			for _, st := range p.Steps {
				if st.ID != "" && st.Title != "" {
					s.labels[st.ID] = st.Title
				}
			}
		}
	case domain.EventPreCheck:
		if p, ok := ev.Payload.(domain.PreCheckPayload); ok {
			s.handlePreCheck(ctx, p.Items)
		}
	case domain.EventHostStatus:
		if p, ok := ev.Payload.(domain.HostStatusPayload); ok && !s.out.quiet {
			for _, it := range p.Status.Items {
				s.printHostItem(it)
			}
		}
	case domain.EventStepStart:
		label := s.stepLabel(ev.StepID, ev.Payload)
		if p, ok := ev.Payload.(domain.StepStartPayload); ok && p.Total > 0 {
			label = fmt.Sprintf("[%d/%d] %s", p.Index+1, p.Total, label)
		}
		s.line(s.out.out, s.style(s.out.out, "==>", "12"), "", label)
	case domain.EventStepDone:
		label := s.stepLabel(ev.StepID, nil)
		p, _ := ev.Payload.(domain.StepDonePayload)
		msg := label
		if m := strings.TrimSpace(p.Message); m != "" {
			msg += ": " + m
		}
		if !p.OK {
			s.line(s.out.errOut, s.style(s.out.errOut, "✗", "1"), ev.StepID, msg)
		} else {
			s.line(s.out.out, s.style(s.out.out, "✓", "2"), ev.StepID, msg)
		}
	case domain.EventProgress:
		if p, ok := ev.Payload.(domain.ProgressPayload); ok && !s.out.quiet {
			s.printProgress(ev.StepID, p)
		}
	case domain.EventLog:
		p, ok := ev.Payload.(domain.LogPayload)
		if !ok {
			return
		}
		msg := strings.TrimSpace(p.Message)
		if msg == "" || s.skipRepeat(p.Fields, ev.StepID, msg) {
			return
		}
		if s.out.quiet && !isIssueMessage(msg) {
			return
		}
		prefix := "-"
		if ev.Severity == domain.SeverityTrace {
			prefix = s.style(s.out.out, "│", "8")
		}
		s.line(s.out.out, prefix, ev.StepID, msg)
	case domain.EventWarning:
		if p, ok := ev.Payload.(domain.LogPayload); ok {
			msg := strings.TrimSpace(p.Message)
			if msg != "" && !s.skipRepeat(p.Fields, ev.StepID, msg) {
				s.line(s.out.errOut, s.style(s.out.errOut, "!", "3"), ev.StepID, msg)
			}
		}
	case domain.EventError:
		if p, ok := ev.Payload.(domain.LogPayload); ok {
			s.line(s.out.errOut, s.style(s.out.errOut, "✗", "1"), ev.StepID, p.Message)
		}
	case domain.EventQuestion:
		if p, ok := ev.Payload.(domain.QuestionPayload); ok && p.Question.Active {
			s.send(ctx, s.answer(p.Question))
		}
	case domain.EventRunDone:
		p, _ := ev.Payload.(domain.RunDonePayload)
		s.printResult(p)
		// One run per CLI invocation: release the engine from waiting for
		// another start.
		if s.cancel != nil {
			s.cancel()
		}
	}
}

func (s *cliSession) handlePreCheck(ctx context.Context, items []domain.PreCheckItem) {
	if s.started || s.declined {
		return
	}
	for _, it := range items {
		if it.Checked {
			continue
		}
		prompt := it.Question
		if it.Description != "" {
			fmt.Fprintln(s.out.out, s.style(s.out.out, it.Description, "8"))
		}
		ans, err := s.prompt.ReadLine(prompt+" [y/N]: ", "")
		if err != nil || !isYes(ans) {
			s.declined = true
			fmt.Fprintln(s.out.errOut, "Pre-installation checks must be confirmed before installing.")
			if s.cancel != nil {
				s.cancel()
			}
			return
		}
		// The engine answers with a fresh pre-check list.
		s.send(ctx, domain.Action{Type: domain.ActionTogglePreCheck, Target: it.ID})
		return
	}
	s.started = true
	s.send(ctx, domain.Action{Type: domain.ActionStart})
}

// answer asks q on the terminal. End of input cancels the question.
func (s *cliSession) answer(q domain.QuestionState) domain.Action {
	cancel := domain.Action{Type: domain.ActionCancel, QuestionID: q.ID}

	if q.Title != "" {
		fmt.Fprintln(s.out.out, s.style(s.out.out, q.Title, "14"))
	}
	if q.Detail != "" {
		fmt.Fprintln(s.out.out, q.Detail)
	}

	switch q.Kind {
	case domain.QuestionConfirm:
		ans, err := s.prompt.ReadLine(q.Prompt+" [y/N]: ", "")
		if err != nil {
			return cancel
		}
		opt := domain.OptionNo
		if isYes(ans) {
			opt = domain.OptionYes
		}
		return domain.Action{Type: domain.ActionAnswerSelect, QuestionID: q.ID, OptionID: opt}

	case domain.QuestionInput, domain.QuestionFile, domain.QuestionFolder:
		prompt := q.Prompt
		if len(q.Extensions) > 0 {
			prompt += " (" + strings.Join(q.Extensions, ", ") + ")"
		}
		var (
			text string
			err  error
		)
		if q.Secret {
			text, err = s.prompt.ReadSecret(prompt + ": ")
		} else {
			text, err = s.prompt.ReadLine(prompt+": ", q.Default)
		}
		if err != nil {
			return cancel
		}
		return domain.Action{Type: domain.ActionAnswerInput, QuestionID: q.ID, Text: strings.TrimSpace(text)}

	default:
		var enabled []domain.QuestionOption
		for _, o := range q.Options {
			if !o.Enabled {
				if o.Reason != "" {
					fmt.Fprintf(s.out.out, "   - %s (%s)\n", o.Label, o.Reason)
				}
				continue
			}
			enabled = append(enabled, o)
			fmt.Fprintf(s.out.out, "  %d) %s\n", len(enabled), o.Label)
		}
		if len(enabled) == 0 {
			return cancel
		}
		for {
			ans, err := s.prompt.ReadLine(fmt.Sprintf("%s [1-%d]: ", q.Prompt, len(enabled)), "")
			if err != nil {
				return cancel
			}
			n, err := strconv.Atoi(strings.TrimSpace(ans))
			if err == nil && n >= 1 && n <= len(enabled) {
				return domain.Action{Type: domain.ActionAnswerSelect, QuestionID: q.ID, OptionID: enabled[n-1].ID}
			}
			fmt.Fprintf(s.out.errOut, "Enter a number between 1 and %d.\n", len(enabled))
		}
	}
}

func (s *cliSession) send(ctx context.Context, a domain.Action) {
	if s.actions == nil {
		return
	}
	select {
	case s.actions <- a:
	case <-ctx.Done():
	}
}

func (s *cliSession) printHostItem(it domain.StatusItem) {
	icon, color := "•", "8"
	switch it.Level {
	case domain.StatusOK:
		icon, color = "✓", "2"
	case domain.StatusWarn:
		icon, color = "!", "3"
	case domain.StatusError:
		icon, color = "✗", "1"
	}
	msg := it.Label
	if it.Details != "" {
		msg += ": " + it.Details
	}
	s.line(s.out.out, s.style(s.out.out, icon, color), "", msg)
}

// printProgress prints at most one line per ten percent.
func (s *cliSession) printProgress(stepID string, p domain.ProgressPayload) {
	if p.Total <= 0 {
		return
	}
	pct := p.Current * 100 / p.Total
	bucket := pct / 10
	if last, ok := s.lastPct[stepID]; ok && last == bucket && p.Current < p.Total {
		return
	}
	s.lastPct[stepID] = bucket
	unit := strings.TrimSpace(p.Unit)
	if unit == "" {
		unit = "units"
	}
	s.line(s.out.out, "•", stepID, fmt.Sprintf("Progress: %d%% (%d/%d %s)", pct, p.Current, p.Total, unit))
}

func (s *cliSession) printResult(p domain.RunDonePayload) {
	if p.OK {
		fmt.Fprintln(s.out.out, s.style(s.out.out, "Installation completed successfully.", "2"))
		return
	}
	msg := "Installation failed"
	if p.FailedAt != "" {
		msg += " at " + s.stepLabel(p.FailedAt, nil)
	}
	if p.Error != "" {
		msg += ": " + p.Error
	}
	fmt.Fprintln(s.out.errOut, s.style(s.out.errOut, msg, "1"))
}

func (s *cliSession) line(w io.Writer, prefix, stepID, message string) {
	stepID = strings.TrimSpace(stepID)
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	if stepID != "" {
		fmt.Fprintf(w, "%s [%s] %s\n", prefix, stepID, message)
		return
	}
	fmt.Fprintf(w, "%s %s\n", prefix, message)
}

func (s *cliSession) style(o *termenv.Output, text, color string) string {
	return o.String(text).Foreground(o.Color(color)).String()
}

func (s *cliSession) skipRepeat(fields map[string]string, stepID, message string) bool {
	op := ""
	if fields != nil {
		op = strings.ToLower(strings.TrimSpace(fields["op"]))
	}
	if op != "replace_last" && op != "replace_last_if_same" {
		s.lastLog[stepID] = message
		return false
	}
	last := s.lastLog[stepID]
	s.lastLog[stepID] = message
	return last == message
}

func (s *cliSession) stepLabel(stepID string, payload any) string {
	if p, ok := payload.(domain.StepStartPayload); ok {
		if label := strings.TrimSpace(p.Label); label != "" {
			s.labels[stepID] = label
			return label
		}
	}
	if label := strings.TrimSpace(s.labels[stepID]); label != "" {
		return label
	}
	return stepID
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func isIssueMessage(message string) bool {
	lower := strings.ToLower(message)
	if strings.Contains(lower, "warning") || strings.Contains(lower, "error") || strings.Contains(lower, "failed") {
		return true
	}
	return strings.Contains(message, "⚠") || strings.Contains(message, "✗")
}

// readlinePrompter opens the terminal on first use.
type readlinePrompter struct {
	stdout io.Writer
	rl     *readline.Instance
}

func (p *readlinePrompter) instance() (*readline.Instance, error) {
	if p.rl != nil {
		return p.rl, nil
	}
	rl, err := readline.NewEx(&readline.Config{
		Stdout:          p.stdout,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("init readline: %w", err)
	}
	p.rl = rl
	return rl, nil
}

func (p *readlinePrompter) ReadLine(prompt, def string) (string, error) {
	rl, err := p.instance()
	if err != nil {
		return "", err
	}
	rl.SetPrompt(prompt)
	line, err := rl.ReadlineWithDefault(def)
	if errors.Is(err, readline.ErrInterrupt) {
		return "", io.EOF
	}
	return line, err
}

func (p *readlinePrompter) ReadSecret(prompt string) (string, error) {
	rl, err := p.instance()
	if err != nil {
		return "", err
	}
	b, err := rl.ReadPassword(prompt)
	if errors.Is(err, readline.ErrInterrupt) {
		return "", io.EOF
	}
	return string(b), err
}

func (p *readlinePrompter) Close() error {
	if p.rl == nil {
		return nil
	}
	return p.rl.Close()
}
