package install

import (
	"sync"

	"github.com/kayleschmoyer/Fv2/internal/domain"
)

// StepDef is the static template a registry entry is created from.
type StepDef struct {
	ID          string
	Title       string
	Description string
	Enabled     bool
}

// Registry is the ordered step list. Identity and order are fixed at
// construction; status fields change during a run.
type Registry struct {
	mu      sync.Mutex
	steps   []domain.StepState
	index   map[string]int
	running bool

	onChange func(domain.StepState)
}

func NewRegistry(defs []StepDef) *Registry {
	r := &Registry{index: make(map[string]int, len(defs))}
	for _, d := range defs {
		if _, dup := r.index[d.ID]; dup {
			continue
		}
		r.index[d.ID] = len(r.steps)
		r.steps = append(r.steps, domain.StepState{
			ID:          d.ID,
			Title:       d.Title,
			Description: d.Description,
			Enabled:     d.Enabled,
			Status:      domain.StepPending,
		})
	}
	return r
}

// OnChange registers fn to receive a snapshot after every write.
func (r *Registry) OnChange(fn func(domain.StepState)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

func (r *Registry) Steps() []domain.StepState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.StepState(nil), r.steps...)
}

func (r *Registry) Get(id string) (domain.StepState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[id]
	if !ok {
		return domain.StepState{}, false
	}
	return r.steps[i], true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.steps)
}

// ToggleEnabled flips a step's enabled flag. It does nothing and returns
// false for unknown ids or while a run is active.
func (r *Registry) ToggleEnabled(id string) bool {
	return r.mutate(id, true, func(s *domain.StepState) { s.Enabled = !s.Enabled })
}

// SetEnabled is ToggleEnabled with an explicit value.
func (r *Registry) SetEnabled(id string, enabled bool) bool {
	return r.mutate(id, true, func(s *domain.StepState) { s.Enabled = enabled })
}

type StatusOpt func(*domain.StepState)

func WithProgress(p int) StatusOpt {
	return func(s *domain.StepState) { s.Progress = max(0, min(100, p)) }
}

func WithMessage(m string) StatusOpt {
	return func(s *domain.StepState) { s.Message = m }
}

// UpdateStatus sets status and, when given, progress and message. Transition
// legality is not checked.
func (r *Registry) UpdateStatus(id string, status domain.StepStatus, opts ...StatusOpt) bool {
	return r.mutate(id, false, func(s *domain.StepState) {
		s.Status = status
		for _, o := range opts {
			o(s)
		}
	})
}

// Reset returns every step to pending with no progress or message.
func (r *Registry) Reset() {
	r.mu.Lock()
	for i := range r.steps {
		r.steps[i].Status = domain.StepPending
		r.steps[i].Progress = 0
		r.steps[i].Message = ""
	}
	snap := append([]domain.StepState(nil), r.steps...)
	fn := r.onChange
	r.mu.Unlock()

	if fn != nil {
		for _, s := range snap {
			fn(s)
		}
	}
}

func (r *Registry) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Registry) setRunning(v bool) {
	r.mu.Lock()
	r.running = v
	r.mu.Unlock()
}

func (r *Registry) mutate(id string, preRun bool, fn func(*domain.StepState)) bool {
	r.mu.Lock()
	i, ok := r.index[id]
	if !ok || (preRun && r.running) {
		r.mu.Unlock()
		return false
	}
	fn(&r.steps[i])
	snap := r.steps[i]
	cb := r.onChange
	r.mu.Unlock()

	if cb != nil {
		cb(snap)
	}
	return true
}
