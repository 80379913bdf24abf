package install

import "context"

// redoGate decides whether a step redoes work whose artifact may already
// exist. Missing artifacts and options already set both mean redo; otherwise
// the operator is asked and the answer is kept for the rest of the process.
func redoGate(ctx context.Context, sc *StepContext, opt Option, exists bool, req ConfirmRequest) (bool, error) {
	if !exists || sc.State.Options.Enabled(opt) {
		return true, nil
	}
	redo, err := sc.Prompt.Confirm(ctx, req)
	if err != nil {
		return false, err
	}
	sc.State.Options.Set(opt, redo)
	return redo, nil
}
