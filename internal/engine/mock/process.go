package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/kayleschmoyer/Fv2/internal/services/process"
)

// Process records commands and answers host queries from its fields.
type Process struct {
	mu sync.Mutex

	Elevated    bool
	ElevatedErr error
	Services    map[string]bool
	Running     map[string]bool
	Paths       map[string]string
	// Handler runs in place of a real command when set.
	Handler func(ctx context.Context, c process.Command) (process.Result, error)

	commands  []process.Command
	shortcuts []process.Shortcut
	urls      []string
}

func (p *Process) Run(ctx context.Context, c process.Command) (process.Result, error) {
	p.mu.Lock()
	p.commands = append(p.commands, c)
	h := p.Handler
	p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return process.Result{ExitCode: -1}, err
	}
	if h != nil {
		return h(ctx, c)
	}
	return process.Result{}, nil
}

func (p *Process) LookPath(name string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	path, ok := p.Paths[name]
	return path, ok
}

func (p *Process) IsElevated(context.Context) (bool, error) {
	return p.Elevated, p.ElevatedErr
}

func (p *Process) ServiceExists(_ context.Context, name string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Services[name], nil
}

func (p *Process) ProcessRunning(_ context.Context, image string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Running[strings.ToLower(image)], nil
}

func (p *Process) CreateShortcut(_ context.Context, s process.Shortcut) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shortcuts = append(p.shortcuts, s)
	return nil
}

func (p *Process) OpenURL(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urls = append(p.urls, url)
	return nil
}

// Commands returns every command run so far, formatted.
func (p *Process) Commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.commands))
	for i, c := range p.commands {
		out[i] = c.String()
	}
	return out
}

func (p *Process) Shortcuts() []process.Shortcut {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]process.Shortcut(nil), p.shortcuts...)
}

func (p *Process) URLs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.urls...)
}
