package install

import (
	"context"
	"fmt"
	"strings"

	"github.com/kayleschmoyer/Fv2/internal/services/gpu"
	"github.com/kayleschmoyer/Fv2/internal/services/process"
)

func checkAdmin(ctx context.Context, sc *StepContext) error {
	sc.Progress(50, "Validating elevated permissions...")
	ok, err := sc.Deps.Process.IsElevated(ctx)
	if err != nil {
		return failWrap(ErrEnvironment, "Unable to verify admin privileges", err)
	}
	if !ok {
		return fail(ErrEnvironment, "Administrator privileges required. Please relaunch the installer as admin.")
	}
	sc.Progress(100, "Administrator privileges confirmed.")
	return nil
}

func checkExistingInstall(ctx context.Context, sc *StepContext) error {
	dir := sc.Settings.Paths.ProgramFiles
	sc.Progress(40, "Scanning for existing DLLs...")
	n, err := sc.Deps.FS.CountByExt(dir, ".dll")
	if err != nil {
		return failWrap(ErrEnvironment, "Failed to scan for existing DLLs", err)
	}
	if n == 0 {
		sc.Progress(100, "No existing DLLs found.")
		return nil
	}
	redo, err := redoGate(ctx, sc, OptRedownloadDlls, true, ConfirmRequest{
		Title:   "Existing DLLs Found",
		Message: fmt.Sprintf("Found %d DLL files in %s.", n, dir),
		Detail:  "Do you want to re-download and replace them?",
	})
	if err != nil {
		return err
	}
	if redo {
		sc.Progress(80, "DLLs will be re-downloaded.")
	} else {
		sc.Progress(80, "Existing DLLs will be kept.")
	}
	return nil
}

func checkExistingService(ctx context.Context, sc *StepContext) error {
	name := sc.Settings.ServiceName
	sc.Progress(50, "Checking for existing service...")
	exists, err := sc.Deps.Process.ServiceExists(ctx, name)
	if err != nil {
		return failWrap(ErrEnvironment, "Failed to check existing service", err)
	}
	if exists {
		return fail(ErrEnvironment, fmt.Sprintf("Service %q already exists. Please uninstall it before continuing.", name))
	}
	sc.Progress(100, "No existing service found.")
	return nil
}

func lockGPUClocks(ctx context.Context, sc *StepContext) error {
	sc.Progress(25, "Checking for nvidia-smi...")
	smi, ok := sc.Deps.Process.LookPath("nvidia-smi")
	if !ok {
		sc.Progress(100, "nvidia-smi not found. Skipping GPU lock.")
		return nil
	}

	res, err := sc.Deps.Process.Run(ctx, process.Command{Name: smi, Args: gpu.QueryArgs})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sc.Warnf("nvidia-smi query failed: %v", err)
		sc.Progress(100, "nvidia-smi failed. Skipping GPU lock.")
		return nil
	}

	clocks := gpu.ParseMaxClocks(res.Stdout)
	for _, args := range gpu.LockArgs(clocks) {
		cmd := process.Command{Name: smi, Args: args, OnLine: sc.Output}
		sc.LogFields("Locking GPU clock", map[string]string{"command": cmd.String()})
		if _, err := sc.Deps.Process.Run(ctx, cmd); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sc.Warnf("%s failed: %v", cmd.String(), err)
		}
	}

	var b strings.Builder
	b.WriteString("Locked GPU clocks")
	if clocks.GraphicsMHz > 0 {
		fmt.Fprintf(&b, " (Graphics %d MHz)", clocks.GraphicsMHz)
	}
	if clocks.MemoryMHz > 0 {
		fmt.Fprintf(&b, " (Memory %d MHz)", clocks.MemoryMHz)
	}
	b.WriteString(".")
	sc.Progress(100, b.String())
	return nil
}

func installAction1(ctx context.Context, sc *StepContext) error {
	image := sc.Settings.Action1Image
	sc.Progress(20, "Checking Action1 agent...")
	running, err := sc.Deps.Process.ProcessRunning(ctx, image)
	if err != nil {
		sc.Warnf("Could not query running processes: %v", err)
	}
	if running {
		sc.Progress(100, "Action1 agent already running.")
		return nil
	}

	install, err := redoGate(ctx, sc, OptInstallAction1, true, ConfirmRequest{
		Title:   "Action1 Agent",
		Message: "Action1 agent is not running.",
		Detail:  "Do you want to install it now?",
	})
	if err != nil {
		return err
	}
	if !install {
		sc.Progress(100, "Skipping Action1 agent installation.")
		return nil
	}

	sc.Progress(50, "Select the Action1 MSI installer...")
	msi, err := pickFile(ctx, sc, PickRequest{
		Title:      "Action1 Installer",
		Message:    "Select the Action1 MSI installer",
		Extensions: []string{"msi"},
	}, "No Action1 installer selected")
	if err != nil {
		return err
	}
	if err := runMSI(ctx, sc, msi, "/norestart"); err != nil {
		return failWrap(ErrCollaborator, "Action1 installation failed", err)
	}
	sc.Progress(100, "Action1 agent installation completed.")
	return nil
}

// runMSI runs a quiet msiexec install of path.
func runMSI(ctx context.Context, sc *StepContext, path string, extra ...string) error {
	cmd := process.Command{
		Name:   "msiexec",
		Args:   append([]string{"/i", path, "/qn"}, extra...),
		OnLine: sc.Output,
	}
	sc.LogFields("Running installer", map[string]string{"command": cmd.String()})
	_, err := sc.Deps.Process.Run(ctx, cmd)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
