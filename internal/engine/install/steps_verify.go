package install

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
)

type requiredFile struct {
	Label string
	Paths []string
}

// requiredFiles lists what a finished install must contain. An entry with
// several paths is satisfied by any of them.
func requiredFiles(p Paths) []requiredFile {
	return []requiredFile{
		{Label: "Viewer", Paths: p.ViewerCandidates()},
		{Label: "Engine", Paths: []string{p.EngineAlias()}},
		{Label: "CameraHub config", Paths: []string{p.CameraHubConfig}},
		{Label: "FLI config", Paths: []string{p.FLIConfigFile()}},
		{Label: "License", Paths: []string{p.License}},
	}
}

// MissingFiles returns the labels of required files absent from the host,
// in check order.
func MissingFiles(ctx context.Context, fs FileSystem, p Paths) ([]string, error) {
	checks := requiredFiles(p)
	present := make([]bool, len(checks))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range checks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for _, path := range c.Paths {
				if fs.Exists(path) {
					present[i] = true
					return nil
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var missing []string
	for i, c := range checks {
		if !present[i] {
			missing = append(missing, c.Label)
		}
	}
	return missing, nil
}

func verifyInstallation(ctx context.Context, sc *StepContext) error {
	sc.Progress(50, "Checking installation...")
	missing, err := MissingFiles(ctx, sc.Deps.FS, sc.Settings.Paths)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fail(ErrEnvironment, "Missing required files: "+strings.Join(missing, ", "))
	}
	sc.Progress(100, "Installation verified.")
	return nil
}
