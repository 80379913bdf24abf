package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/kayleschmoyer/Fv2/internal/engine/install"
)

// whenEnv is the variable set step conditions are evaluated against.
func whenEnv(stepID string, options map[string]bool) map[string]any {
	host, _ := os.Hostname()
	env := map[string]string{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	if options == nil {
		options = map[string]bool{}
	}
	return map[string]any{
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
		"host":    host,
		"env":     env,
		"step":    stepID,
		"options": options,
	}
}

func compileWhen(src string) (*vm.Program, error) {
	program, err := expr.Compile(src, expr.Env(whenEnv("", nil)), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile condition %q: %w", src, err)
	}
	return program, nil
}

// Conditions compiles every steps.<id>.when expression into an
// install.Condition. Steps without one always run.
func (c Config) Conditions() (install.Condition, error) {
	programs := map[string]*vm.Program{}
	for id, sc := range c.Steps {
		if strings.TrimSpace(sc.When) == "" {
			continue
		}
		p, err := compileWhen(sc.When)
		if err != nil {
			return nil, fmt.Errorf("steps.%s.when: %w", id, err)
		}
		programs[id] = p
	}
	if len(programs) == 0 {
		return nil, nil
	}
	return func(stepID string, st *install.State) (bool, error) {
		p, ok := programs[stepID]
		if !ok {
			return true, nil
		}
		var opts map[string]bool
		if st != nil {
			opts = st.Options.Snapshot()
		}
		out, err := expr.Run(p, whenEnv(stepID, opts))
		if err != nil {
			return false, fmt.Errorf("eval condition: %w", err)
		}
		b, ok := out.(bool)
		if !ok {
			return false, fmt.Errorf("condition did not return bool (got %T)", out)
		}
		return b, nil
	}, nil
}
