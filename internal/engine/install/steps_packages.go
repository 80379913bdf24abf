package install

import (
	"context"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/kayleschmoyer/Fv2/internal/services/process"
)

func createFLIv2Dir(_ context.Context, sc *StepContext) error {
	return mkdir(sc, sc.Settings.Paths.ProgramFiles)
}

func createModelsDir(_ context.Context, sc *StepContext) error {
	p := sc.Settings.Paths
	dirs := []string{p.ModelsOnnx, p.ModelsTensorRT, p.TensorRTTools}

	var g errgroup.Group
	for _, dir := range dirs {
		g.Go(func() error {
			if err := sc.Deps.FS.MkdirAll(dir); err != nil {
				return failWrap(ErrEnvironment, "Failed to create "+dir, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	sc.Progress(100, "Model directories ready.")
	return nil
}

func downloadDlls(ctx context.Context, sc *StepContext) error {
	p := sc.Settings.Paths
	if !sc.State.Options.Enabled(OptRedownloadDlls) {
		if n, err := sc.Deps.FS.CountByExt(p.ProgramFiles, ".dll"); err == nil && n > 0 {
			sc.Progress(100, "Skipping download; existing DLLs kept.")
			return nil
		}
	}

	f, err := fetchPackage(ctx, sc, remotePackage{
		Label:     "DLL package",
		DriveID:   sc.Settings.Drive.ExtraDlls,
		Dest:      filepath.Join(p.Staging, "temp-dlls.zip"),
		Pick:      PickRequest{Title: "DLL Package", Message: "Select the DLL package ZIP", Extensions: []string{"zip"}},
		CancelMsg: "No DLL package selected",
		FailMsg:   "Failed to download DLLs",
	})
	if err != nil {
		return err
	}

	sc.Progress(70, "Extracting DLL package...")
	if err := extractPackage(ctx, sc, f, p.ProgramFiles, "Failed to extract DLLs"); err != nil {
		return err
	}
	sc.Progress(100, "DLLs downloaded and extracted successfully")
	return nil
}

func downloadTensorRTTools(ctx context.Context, sc *StepContext) error {
	p := sc.Settings.Paths
	n, _ := sc.Deps.FS.CountByExt(p.TensorRTTools, ".exe")
	redo, err := redoGate(ctx, sc, OptRedownloadTensorRT, n > 0, ConfirmRequest{
		Title:   "Existing TensorRT Tools Found",
		Message: "TensorRT build tools already exist.",
		Detail:  "Do you want to re-download and replace them?",
	})
	if err != nil {
		return err
	}
	if !redo {
		sc.Progress(100, "Skipping TensorRT download; existing tools kept.")
		return nil
	}

	f, err := fetchPackage(ctx, sc, remotePackage{
		Label:     "TensorRT tools",
		DriveID:   sc.Settings.Drive.TensorRTTools,
		Dest:      filepath.Join(p.Staging, "temp-tensorrt-tools.zip"),
		Pick:      PickRequest{Title: "TensorRT Tools", Message: "Select the TensorRT tools ZIP", Extensions: []string{"zip"}},
		CancelMsg: "No TensorRT tools package selected",
		FailMsg:   "Failed to download TensorRT tools",
	})
	if err != nil {
		return err
	}

	sc.Progress(70, "Extracting TensorRT tools...")
	if err := extractPackage(ctx, sc, f, p.TensorRTTools, "Failed to extract TensorRT tools"); err != nil {
		return err
	}
	sc.Progress(100, "TensorRT tools downloaded and extracted successfully")
	return nil
}

func downloadModels(ctx context.Context, sc *StepContext) error {
	p := sc.Settings.Paths
	n, _ := sc.Deps.FS.CountByExt(p.ModelsOnnx, ".onnx")
	redo, err := redoGate(ctx, sc, OptRedownloadOnnx, n > 0, ConfirmRequest{
		Title:   "Existing ONNX Model Found",
		Message: "An ONNX model already exists in the models directory.",
		Detail:  "Do you want to download and replace it?",
	})
	if err != nil {
		return err
	}
	if !redo {
		sc.Progress(100, "Skipping ONNX download; existing model kept.")
		return nil
	}

	f, err := fetchPackage(ctx, sc, remotePackage{
		Label:     "ONNX model",
		DriveID:   sc.Settings.Drive.OnnxModels,
		Dest:      p.ModelsOnnx,
		DestIsDir: true,
		Suffix:    ".onnx",
		PreferTag: sc.Settings.PreferTag,
		Pick:      PickRequest{Title: "ONNX Model", Message: "Select the ONNX model", Extensions: []string{"onnx"}},
		CancelMsg: "No ONNX model selected",
		FailMsg:   "Failed to download ONNX model",
	})
	if err != nil {
		return err
	}
	if sc.Settings.Drive.OnnxModels == "" {
		dst := filepath.Join(p.ModelsOnnx, filepath.Base(f.Path))
		if err := sc.Deps.FS.CopyFile(f.Path, dst); err != nil {
			return failWrap(ErrEnvironment, "Failed to copy ONNX model", err)
		}
	}
	name := f.Name
	if name == "" {
		name = "ONNX model"
	}
	sc.Progress(100, name+" downloaded successfully")
	return nil
}

func downloadFLIv2MSI(ctx context.Context, sc *StepContext) error {
	if sc.Settings.Drive.FLIv2MSI == "" {
		sc.Progress(50, "Please select the FLIv2 MSI file...")
	}
	f, err := fetchPackage(ctx, sc, remotePackage{
		Label:     "FLIv2 MSI",
		DriveID:   sc.Settings.Drive.FLIv2MSI,
		Dest:      sc.Settings.Paths.Staging,
		DestIsDir: true,
		Suffix:    ".msi",
		Pick:      PickRequest{Title: "FLIv2 Installer", Message: "Select the FLIv2 MSI file", Extensions: []string{"msi"}},
		CancelMsg: "No MSI file selected",
		FailMsg:   "Failed to download FLIv2 MSI",
	})
	if err != nil {
		return err
	}
	sc.State.MSIPath = f.Path
	sc.Progress(100, "FLIv2 installer ready: "+f.Name)
	return nil
}

func installFLIv2(ctx context.Context, sc *StepContext) error {
	msi := sc.State.MSIPath
	if msi == "" {
		var err error
		msi, err = pickFile(ctx, sc, PickRequest{
			Title:      "FLIv2 Installer",
			Message:    "MSI file path not found. Select the FLIv2 MSI file",
			Extensions: []string{"msi"},
		}, "MSI file path not found")
		if err != nil {
			return err
		}
		sc.State.MSIPath = msi
	}

	sc.Progress(50, "Installing FLIv2...")
	if err := runMSI(ctx, sc, msi); err != nil {
		return failWrap(ErrCollaborator, "Installation failed", err)
	}
	sc.Progress(100, "FLIv2 installed.")
	return nil
}

func downloadViewer(ctx context.Context, sc *StepContext) error {
	p := sc.Settings.Paths
	if sc.Settings.Drive.Viewer == "" {
		sc.Progress(30, "Please select the viewer ZIP file...")
	}
	f, err := fetchPackage(ctx, sc, remotePackage{
		Label:     "viewer ZIP file",
		DriveID:   sc.Settings.Drive.Viewer,
		Dest:      filepath.Join(p.Staging, "temp-viewer.zip"),
		Suffix:    ".zip",
		Pick:      PickRequest{Title: "FLIv2 Viewer", Message: "Select the viewer ZIP file", Extensions: []string{"zip"}},
		CancelMsg: "No viewer ZIP file selected",
		FailMsg:   "Failed to download viewer",
	})
	if err != nil {
		return err
	}

	sc.Progress(60, "Extracting viewer files...")
	// FLI is shared with models and configs, so it is never flattened; a
	// wrapped archive is found through ViewerCandidates.
	if _, err := sc.Deps.Archive.Extract(ctx, f.Path, p.FLI); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return failWrap(ErrCollaborator, "Failed to extract viewer", err)
	}
	if f.Staged {
		if err := sc.Deps.FS.Remove(f.Path); err != nil {
			sc.Warnf("Could not remove %s: %v", f.Path, err)
		}
	}

	exe := findViewer(sc)
	if exe == "" {
		sc.Progress(100, "Viewer extracted, but executable not found.")
		return nil
	}
	sc.State.ViewerExe = exe

	err = sc.Deps.Process.CreateShortcut(ctx, process.Shortcut{
		Path:        p.ViewerShortcut(),
		Target:      exe,
		WorkingDir:  filepath.Dir(exe),
		Description: "Ensight FLIv2 Viewer",
	})
	if err != nil {
		sc.Warnf("Shortcut creation failed: %v", err)
		sc.Progress(100, "Viewer extracted (shortcut could not be created).")
		return nil
	}
	sc.Progress(100, "Viewer extracted and shortcut created.")
	return nil
}

func findViewer(sc *StepContext) string {
	for _, c := range sc.Settings.Paths.ViewerCandidates() {
		if sc.Deps.FS.Exists(c) {
			return c
		}
	}
	return ""
}
