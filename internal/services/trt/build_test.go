package trt

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kayleschmoyer/Fv2/internal/services/process"
)

type fakeRunner struct {
	lines  []string
	err    error
	onRun  func(process.Command)
	called []process.Command
}

func (f *fakeRunner) Run(_ context.Context, c process.Command) (process.Result, error) {
	f.called = append(f.called, c)
	for _, l := range f.lines {
		c.OnLine(l, false)
	}
	if f.onRun != nil {
		f.onRun(c)
	}
	return process.Result{}, f.err
}

func TestEnginePathFor(t *testing.T) {
	t.Parallel()

	got := EnginePathFor(filepath.Join("tools"), filepath.Join("models", "datature-yolov8-v3.onnx"))
	want := filepath.Join("tools", "datature-yolov8-v3-trt10-fp16.engine")
	if got != want {
		t.Fatalf("EnginePathFor=%q; want %q", got, want)
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	files := map[string]bool{"model.onnx": true}
	exists := func(p string) bool { return files[p] }

	r := &fakeRunner{
		lines: []string{"[I] Start parsing network model.", "&&&& PASSED TensorRT.trtexec"},
		onRun: func(c process.Command) {
			for _, a := range c.Args {
				if strings.HasPrefix(a, "--saveEngine=") {
					files[strings.TrimPrefix(a, "--saveEngine=")] = true
				}
			}
		},
	}
	var progress []int
	out, err := NewBuilder(r, exists).Build(context.Background(), BuildRequest{
		ToolsDir:   "tools",
		OnnxPath:   "model.onnx",
		OnProgress: func(p int) { progress = append(progress, p) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("tools", "model"+EngineSuffix); out != want {
		t.Fatalf("engine=%q; want %q", out, want)
	}
	if len(r.called) != 1 || r.called[0].Name != filepath.Join("tools", "trtexec.exe") || r.called[0].Dir != "tools" {
		t.Fatalf("unexpected invocation %+v", r.called)
	}
	if len(progress) != 2 || progress[1] != 100 {
		t.Fatalf("progress=%v; want [10 100]", progress)
	}
}

func TestBuildFailures(t *testing.T) {
	t.Parallel()

	exists := func(p string) bool { return p == "model.onnx" }

	_, err := NewBuilder(&fakeRunner{}, exists).Build(context.Background(), BuildRequest{ToolsDir: "t", OnnxPath: "model.onnx"})
	if !errors.Is(err, ErrNoArtifact) {
		t.Fatalf("missing artifact: err=%v; want ErrNoArtifact", err)
	}

	exitErr := &process.ExitError{Command: "trtexec.exe", Code: 1}
	_, err = NewBuilder(&fakeRunner{err: exitErr}, exists).Build(context.Background(), BuildRequest{ToolsDir: "t", OnnxPath: "model.onnx"})
	var ee *process.ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("nonzero exit: err=%v; want *process.ExitError", err)
	}

	_, err = NewBuilder(&fakeRunner{}, exists).Build(context.Background(), BuildRequest{ToolsDir: "t", OnnxPath: "missing.onnx"})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("missing input: err=%v", err)
	}
}
