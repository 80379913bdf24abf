package install

import (
	"context"
	"path/filepath"
)

func licenseFLI(ctx context.Context, sc *StepContext) error {
	lic := sc.Settings.Paths.License
	dir := filepath.Dir(lic)
	sc.Progress(20, "Checking for license file...")

	regen, err := redoGate(ctx, sc, OptRegenerateLicense, sc.Deps.FS.Exists(lic), ConfirmRequest{
		Title:   "License File Detected",
		Message: "fli.lic already exists.",
		Detail:  "Do you want to regenerate the license file?",
	})
	if err != nil {
		return err
	}
	if !regen {
		sc.Progress(100, "Existing license file kept.")
		return nil
	}

	open, err := sc.Prompt.Confirm(ctx, ConfirmRequest{
		Title:   "Licensing Utility Required",
		Message: "Download the Ensight Licensing Utility to generate fli.lic.",
		Detail:  "Open the Google Drive link now?",
	})
	if err != nil {
		return err
	}
	if open {
		if err := sc.Deps.Process.OpenURL(ctx, sc.Settings.LicenseUtilityURL); err != nil {
			sc.Warnf("Could not open browser: %v. Link: %s", err, sc.Settings.LicenseUtilityURL)
		}
	}

	sc.Progress(60, "Waiting for fli.lic...")
	placed, err := sc.Prompt.Confirm(ctx, ConfirmRequest{
		Title:   "License File Confirmation",
		Message: "Have you placed fli.lic in " + dir + "?",
		Detail:  "Click Yes once the license file is present.",
	})
	if err != nil {
		return err
	}
	if !placed {
		return fail(ErrDeclined, "License file not confirmed. Please place fli.lic before continuing.")
	}
	if !sc.Deps.FS.Exists(lic) {
		return fail(ErrEnvironment, "fli.lic not found in "+dir+".")
	}
	sc.Progress(100, "License file verified.")
	return nil
}
