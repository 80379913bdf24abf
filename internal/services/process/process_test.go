//go:build !windows

package process

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestRunStreamsLines(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		lines []string
	)
	res, err := New().Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo one; echo; echo two 1>&2"},
		OnLine: func(line string, stderr bool) {
			mu.Lock()
			defer mu.Unlock()
			if stderr {
				line = "err:" + line
			}
			lines = append(lines, line)
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 0 || !strings.Contains(res.Stdout, "one") || !strings.Contains(res.Stderr, "two") {
		t.Fatalf("unexpected result %+v", res)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(lines) != 2 {
		t.Fatalf("lines=%q; want 2 non-empty lines", lines)
	}
}

func TestRunExitError(t *testing.T) {
	t.Parallel()

	res, err := New().Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo boom 1>&2; exit 3"}})
	var ee *ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("err=%v; want *ExitError", err)
	}
	if ee.Code != 3 || res.ExitCode != 3 {
		t.Fatalf("code=%d/%d; want 3", ee.Code, res.ExitCode)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("error %q does not carry stderr tail", err)
	}
}

func TestRunNotFound(t *testing.T) {
	t.Parallel()

	_, err := New().Run(context.Background(), Command{Name: "definitely-not-a-real-tool-fv2"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v; want ErrNotFound", err)
	}
}

func TestCommandString(t *testing.T) {
	t.Parallel()

	c := Command{Name: "msiexec", Args: []string{"/i", `C:\My Files\FLIv2.msi`, "/qn"}}
	want := `msiexec /i "C:\My Files\FLIv2.msi" /qn`
	if got := c.String(); got != want {
		t.Fatalf("String()=%q; want %q", got, want)
	}
}
