// Package process runs external commands and answers host questions
// (elevation, services, running processes) for step actions.
package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Command describes one external invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string

	// OnLine receives each non-empty output line as it arrives.
	OnLine func(line string, stderr bool)
}

func (c Command) String() string {
	parts := append([]string{c.Name}, c.Args...)
	for i, p := range parts {
		if strings.ContainsAny(p, " \t") {
			parts[i] = `"` + p + `"`
		}
	}
	return strings.Join(parts, " ")
}

type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ExitError reports a command that started but exited non-zero.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.Code)
	if tail := lastLine(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

var ErrNotFound = errors.New("executable not found")

type Runner struct{}

func New() *Runner { return &Runner{} }

// Run executes c, streaming output lines to c.OnLine and capturing both
// streams. A non-zero exit yields *ExitError alongside the captured Result.
func (r *Runner) Run(ctx context.Context, c Command) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(append([]string(nil), os.Environ()...), c.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{ExitCode: -1}, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{ExitCode: -1}, err
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return Result{ExitCode: -1}, fmt.Errorf("%w: %s", ErrNotFound, c.Name)
		}
		return Result{ExitCode: -1}, fmt.Errorf("start %s: %w", c.Name, err)
	}

	var (
		outBuf, errBuf bytes.Buffer
		mu             sync.Mutex
		wg             sync.WaitGroup
	)
	readPipe := func(rd io.Reader, buf *bytes.Buffer, isStderr bool) {
		defer wg.Done()
		sc := bufio.NewScanner(rd)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			raw := sc.Text()
			mu.Lock()
			buf.WriteString(raw)
			buf.WriteByte('\n')
			mu.Unlock()
			line := strings.TrimSpace(raw)
			if line == "" || c.OnLine == nil {
				continue
			}
			c.OnLine(line, isStderr)
		}
	}
	wg.Add(2)
	go readPipe(stdout, &outBuf, false)
	go readPipe(stderr, &errBuf, true)
	wg.Wait()

	waitErr := cmd.Wait()
	res := Result{Stdout: outBuf.String(), Stderr: errBuf.String()}
	if waitErr == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		res.ExitCode = -1
		return res, ctx.Err()
	}
	var ee *exec.ExitError
	if errors.As(waitErr, &ee) {
		res.ExitCode = ee.ExitCode()
		return res, &ExitError{Command: c.Name, Code: res.ExitCode, Stderr: res.Stderr}
	}
	res.ExitCode = -1
	return res, fmt.Errorf("%s: %w", c.Name, waitErr)
}

// LookPath reports whether name resolves on PATH.
func (r *Runner) LookPath(name string) (string, bool) {
	p, err := exec.LookPath(name)
	return p, err == nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
