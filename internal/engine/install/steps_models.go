package install

import (
	"context"
	"path/filepath"

	"github.com/kayleschmoyer/Fv2/internal/services/trt"
)

func buildTensorRT(ctx context.Context, sc *StepContext) error {
	p := sc.Settings.Paths
	alias := p.EngineAlias()
	rebuild, err := redoGate(ctx, sc, OptRebuildEngine, sc.Deps.FS.Exists(alias), ConfirmRequest{
		Title:   "Existing TensorRT Engine Found",
		Message: "ensight-fli.engine already exists.",
		Detail:  "Do you want to rebuild the TensorRT engine?",
	})
	if err != nil {
		return err
	}
	if !rebuild {
		sc.State.BuiltEnginePath = alias
		sc.Progress(100, "Skipping build; existing engine kept.")
		return nil
	}

	sc.Progress(25, "Locating ONNX model...")
	onnx, err := sc.Deps.FS.NewestByExt(p.ModelsOnnx, ".onnx")
	if err != nil || onnx == "" {
		sc.Progress(30, "Please select the ONNX model...")
		onnx, err = pickFile(ctx, sc, PickRequest{
			Title:      "ONNX Model",
			Message:    "Select the ONNX model to build",
			Extensions: []string{"onnx"},
		}, "No ONNX model selected")
		if err != nil {
			return err
		}
	}

	sc.Progress(50, "Building TensorRT model...")
	b := trt.NewBuilder(sc.Deps.Process, sc.Deps.FS.Exists)
	engine, err := b.Build(ctx, trt.BuildRequest{
		ToolsDir:  p.TensorRTTools,
		OnnxPath:  onnx,
		ExtraArgs: sc.Settings.TrtexecArgs,
		OnLine:    sc.Output,
		OnProgress: func(pct int) {
			sc.Progress(50+pct*49/100, "Building TensorRT model...")
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return classify(ErrCollaborator, err)
	}
	sc.State.BuiltEnginePath = engine
	sc.LogFields("Engine built", map[string]string{"onnx": onnx, "engine": engine})
	sc.Progress(100, "TensorRT model built successfully")
	return nil
}

func placeTensorRTModel(ctx context.Context, sc *StepContext) error {
	p := sc.Settings.Paths
	alias := p.EngineAlias()
	sc.Progress(40, "Placing TensorRT engine...")

	src := sc.State.BuiltEnginePath
	if src == "" && sc.Deps.FS.Exists(alias) {
		sc.Progress(100, "Engine already present.")
		return nil
	}
	if src == "" {
		sc.Progress(50, "Please select the .engine file...")
		var err error
		src, err = pickFile(ctx, sc, PickRequest{
			Title:      "TensorRT Engine",
			Message:    "Select the .engine file",
			Extensions: []string{"engine", "plan"},
		}, "No engine file selected")
		if err != nil {
			return err
		}
	}
	if samePath(src, alias) {
		sc.Progress(100, "Engine already present.")
		return nil
	}

	dst := filepath.Join(p.ModelsTensorRT, filepath.Base(src))
	if !samePath(src, dst) {
		if err := sc.Deps.FS.CopyFile(src, dst); err != nil {
			return failWrap(ErrEnvironment, "Failed to place engine", err)
		}
	}
	if err := sc.Deps.FS.CopyFile(dst, alias); err != nil {
		return failWrap(ErrEnvironment, "Failed to create ensight-fli.engine", err)
	}
	sc.Progress(100, "TensorRT engine placed.")
	return nil
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}
