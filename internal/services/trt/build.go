// Package trt drives trtexec to convert an ONNX model into a TensorRT engine.
package trt

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kayleschmoyer/Fv2/internal/services/process"
)

// EngineSuffix is appended to the model base name for built engines.
const EngineSuffix = "-trt10-fp16.engine"

var ErrNoArtifact = errors.New("engine file was not produced")

type Runner interface {
	Run(ctx context.Context, c process.Command) (process.Result, error)
}

type BuildRequest struct {
	// ToolsDir holds trtexec and is the working directory of the build.
	ToolsDir string
	// Tool overrides the trtexec executable; defaults to ToolsDir/trtexec.exe.
	Tool       string
	OnnxPath   string
	EnginePath string
	ExtraArgs  []string

	OnProgress func(pct int)
	OnLine     func(line string, stderr bool)
}

// EnginePathFor returns where a build of onnxPath should be saved.
func EnginePathFor(toolsDir, onnxPath string) string {
	base := filepath.Base(onnxPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" {
		name = "model"
	}
	return filepath.Join(toolsDir, name+EngineSuffix)
}

// Args is the fixed trtexec argument shape: input model and output engine.
func Args(onnxPath, enginePath string, extra ...string) []string {
	args := []string{"--onnx=" + onnxPath, "--saveEngine=" + enginePath}
	return append(args, extra...)
}

type Builder struct {
	run    Runner
	exists func(string) bool
}

func NewBuilder(run Runner, exists func(string) bool) *Builder {
	return &Builder{run: run, exists: exists}
}

// Build runs trtexec and succeeds only on exit code 0 with the engine present.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (string, error) {
	if req.OnnxPath == "" {
		return "", errors.New("no ONNX model to build")
	}
	if !b.exists(req.OnnxPath) {
		return "", fmt.Errorf("ONNX model %s not found", req.OnnxPath)
	}
	engine := req.EnginePath
	if engine == "" {
		engine = EnginePathFor(req.ToolsDir, req.OnnxPath)
	}
	tool := req.Tool
	if tool == "" {
		tool = filepath.Join(req.ToolsDir, "trtexec.exe")
	}

	m := NewMapper()
	cmd := process.Command{
		Name: tool,
		Args: Args(req.OnnxPath, engine, req.ExtraArgs...),
		Dir:  req.ToolsDir,
		OnLine: func(line string, stderr bool) {
			if req.OnLine != nil {
				req.OnLine(line, stderr)
			}
			if pct, ok := m.Observe(line); ok && req.OnProgress != nil {
				req.OnProgress(pct)
			}
		},
	}
	if _, err := b.run.Run(ctx, cmd); err != nil {
		return "", fmt.Errorf("TensorRT build failed: %w", err)
	}
	if !b.exists(engine) {
		return "", fmt.Errorf("TensorRT build failed: %w: %s", ErrNoArtifact, engine)
	}
	return engine, nil
}
