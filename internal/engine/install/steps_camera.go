package install

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kayleschmoyer/Fv2/internal/services/xmlconf"
)

func createCameraHub(_ context.Context, sc *StepContext) error {
	return mkdir(sc, sc.Settings.Paths.CameraHub)
}

func mkdir(sc *StepContext, dir string) error {
	if err := sc.Deps.FS.MkdirAll(dir); err != nil {
		return failWrap(ErrEnvironment, "Failed to create "+dir, err)
	}
	sc.Progress(100, "Created "+dir)
	return nil
}

func placeCameraConfig(ctx context.Context, sc *StepContext) error {
	dst := sc.Settings.Paths.CameraHubConfig
	if sc.Deps.FS.Exists(dst) {
		sc.Progress(100, "CameraHub config already exists.")
		return nil
	}
	sc.Progress(50, "Select camerahub-config.xml...")
	src, err := pickFile(ctx, sc, PickRequest{
		Title:      "CameraHub Config",
		Message:    "Select camerahub-config.xml",
		Extensions: []string{"xml"},
	}, "No config file selected")
	if err != nil {
		return err
	}
	if err := sc.Deps.FS.CopyFile(src, dst); err != nil {
		return failWrap(ErrEnvironment, "Failed to copy camerahub-config.xml", err)
	}
	sc.Progress(100, "CameraHub config saved.")
	return nil
}

func parseCameraConfig(_ context.Context, sc *StepContext) error {
	sc.Progress(30, "Reading camerahub-config.xml...")
	data, err := sc.Deps.FS.ReadFile(sc.Settings.Paths.CameraHubConfig)
	if err != nil {
		return failWrap(ErrEnvironment, "Unable to read camerahub-config.xml", err)
	}
	names, err := xmlconf.CameraNames(data)
	if errors.Is(err, xmlconf.ErrMalformed) {
		sc.Warnf("Unable to parse camerahub-config.xml: %v", err)
		names = nil
	} else if err != nil {
		return failWrap(ErrData, "Unable to parse camerahub-config.xml", err)
	}
	sc.State.CameraNames = names
	if len(names) == 0 {
		sc.Warnf("No cameras found in %s", sc.Settings.Paths.CameraHubConfig)
		sc.Progress(100, "No cameras found. Please verify camerahub-config.xml formatting.")
		return nil
	}
	sc.Progress(100, fmt.Sprintf("Found %d camera(s): %s", len(names), strings.Join(names, ", ")))
	return nil
}

func createCameraConfigs(ctx context.Context, sc *StepContext) error {
	p := sc.Settings.Paths
	if err := sc.Deps.FS.MkdirAll(p.FLIConfig); err != nil {
		return failWrap(ErrEnvironment, "Failed to create "+p.FLIConfig, err)
	}

	names := sc.State.CameraNames
	if len(names) == 0 {
		sc.Progress(100, "No cameras found to generate configs.")
		return nil
	}

	var missing []string
	for _, name := range names {
		if !sc.Deps.FS.Exists(p.CameraConfigFile(name)) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		files := make([]string, len(missing))
		for i, name := range missing {
			files[i] = name + "-config.xml"
		}
		create, err := sc.Prompt.Confirm(ctx, ConfirmRequest{
			Title:   "Missing Camera Configs",
			Message: fmt.Sprintf("Create %d missing camera config file(s)?", len(missing)),
			Detail:  strings.Join(files, ", "),
		})
		if err != nil {
			return err
		}
		if !create {
			return fail(ErrDeclined, "Camera config files missing. Please create them before continuing.")
		}
		for i, name := range missing {
			path := p.CameraConfigFile(name)
			doc, err := xmlconf.RenderCameraConfig(name)
			if err != nil {
				return failWrap(ErrData, "Failed to create "+path, err)
			}
			if err := sc.Deps.FS.WriteFile(path, doc); err != nil {
				return failWrap(ErrEnvironment, "Failed to create "+path, err)
			}
			sc.Progress(10+80*(i+1)/len(missing), "Created "+files[i])
		}
	}
	sc.Progress(100, "Camera config files verified.")
	return nil
}

func verifyFLIConfig(ctx context.Context, sc *StepContext) error {
	path := sc.Settings.Paths.FLIConfigFile()
	if !sc.Deps.FS.Exists(path) {
		site, err := askSiteKey(ctx, sc, InputRequest{
			Title:       "Site Key Required",
			Message:     "Enter the Site Key to create FLI-config.xml",
			Placeholder: "Site Key",
		}, "Site Key required to create FLI-config.xml")
		if err != nil {
			return err
		}
		if err := writeFLIConfig(sc, path, site); err != nil {
			return err
		}
		sc.Progress(100, "FLI-config.xml created.")
		return nil
	}

	data, err := sc.Deps.FS.ReadFile(path)
	if err != nil {
		return failWrap(ErrEnvironment, "Failed to read FLI-config.xml", err)
	}
	current, found, err := xmlconf.SiteName(data)
	if err != nil {
		return failWrap(ErrData, "Failed to parse FLI-config.xml", err)
	}
	shown := current
	if shown == "" {
		shown = "Not set"
	}
	ok, err := sc.Prompt.Confirm(ctx, ConfirmRequest{
		Title:   "Confirm Site Name",
		Message: "Current Site Name: " + shown,
		Detail:  "Is this Site Name correct?",
	})
	if err != nil {
		return err
	}
	if ok {
		sc.Progress(100, "FLI-config.xml verified.")
		return nil
	}

	site, err := askSiteKey(ctx, sc, InputRequest{
		Title:       "Update Site Name",
		Message:     "Enter the correct Site Key",
		Placeholder: "Site Key",
		Default:     current,
	}, "Site Key required to update FLI-config.xml")
	if err != nil {
		return err
	}
	if found {
		out, _, err := xmlconf.SetSiteName(data, site)
		if err != nil {
			return failWrap(ErrData, "Failed to update FLI-config.xml", err)
		}
		if err := sc.Deps.FS.WriteFile(path, out); err != nil {
			return failWrap(ErrEnvironment, "Failed to update FLI-config.xml", err)
		}
		sc.Progress(100, "FLI-config.xml updated.")
		return nil
	}
	if err := writeFLIConfig(sc, path, site); err != nil {
		return err
	}
	sc.Progress(100, "FLI-config.xml verified.")
	return nil
}

func askSiteKey(ctx context.Context, sc *StepContext, req InputRequest, requiredMsg string) (string, error) {
	v, err := sc.Prompt.Input(ctx, req)
	switch {
	case errors.Is(err, ErrCancelled):
		return "", fail(ErrCancelled, requiredMsg)
	case err != nil:
		return "", err
	case strings.TrimSpace(v) == "":
		return "", fail(ErrData, requiredMsg)
	}
	return strings.TrimSpace(v), nil
}

func writeFLIConfig(sc *StepContext, path, site string) error {
	cfg := sc.Settings.FLI
	cfg.SiteName = site
	doc, err := xmlconf.RenderFLIConfig(cfg)
	if err != nil {
		return failWrap(ErrData, "Failed to create FLI-config.xml", err)
	}
	if err := sc.Deps.FS.WriteFile(path, doc); err != nil {
		return failWrap(ErrEnvironment, "Failed to create FLI-config.xml", err)
	}
	return nil
}
