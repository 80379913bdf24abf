package install

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"

	"github.com/kayleschmoyer/Fv2/internal/services/drive"
)

// classify tags err with class, keeping its text.
func classify(class, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, class) || errors.Is(err, context.Canceled) {
		return err
	}
	return &stepError{class: class, msg: err.Error(), cause: err}
}

// pickFile asks for a local file. Cancelling fails the step with
// cancelMsg; context cancellation is passed through.
func pickFile(ctx context.Context, sc *StepContext, req PickRequest, cancelMsg string) (string, error) {
	path, err := sc.Prompt.PickFile(ctx, req)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			return "", fail(ErrCancelled, cancelMsg)
		}
		return "", err
	}
	return path, nil
}

// remotePackage describes one package that comes from Drive, or from a
// local file when no Drive id is configured.
type remotePackage struct {
	// Label is used in messages, e.g. "DLL package".
	Label   string
	DriveID string
	// Dest is a file path, or a directory when DestIsDir is set.
	Dest      string
	DestIsDir bool
	Suffix    string
	PreferTag string

	Pick      PickRequest
	CancelMsg string
	// FailMsg prefixes download errors: "Failed to download DLLs".
	FailMsg string
}

type fetched struct {
	Path string
	Name string
	// Staged is set when Path is a temporary copy the caller should remove.
	Staged bool
}

// fetchPackage authenticates, then downloads pkg with transfer progress.
func fetchPackage(ctx context.Context, sc *StepContext, pkg remotePackage) (fetched, error) {
	if pkg.DriveID == "" {
		sc.Progress(30, "Select the "+pkg.Label+"...")
		path, err := pickFile(ctx, sc, pkg.Pick, pkg.CancelMsg)
		if err != nil {
			return fetched{}, err
		}
		return fetched{Path: path, Name: filepath.Base(path)}, nil
	}

	sc.Progress(10, "Authenticating with Google Drive...")
	if err := sc.Deps.Drive.Authenticate(ctx); err != nil {
		if ctx.Err() != nil {
			return fetched{}, ctx.Err()
		}
		return fetched{}, failWrap(ErrCollaborator, "Google authentication failed", err)
	}

	sc.Progress(30, "Downloading "+pkg.Label+"...")
	res, err := sc.Deps.Drive.Fetch(ctx, pkg.DriveID, pkg.Dest, drive.FetchOptions{
		Suffix:    pkg.Suffix,
		PreferTag: pkg.PreferTag,
		DestIsDir: pkg.DestIsDir,
		OnResolved: func(f drive.File) {
			sc.LogFields("Resolved Drive file", map[string]string{"id": f.ID, "name": f.Name})
		},
		OnProgress: func(cur, total int64) { sc.Transfer(cur, total, "bytes") },
	})
	if err != nil {
		if ctx.Err() != nil {
			return fetched{}, ctx.Err()
		}
		return fetched{}, failWrap(ErrCollaborator, pkg.FailMsg, err)
	}
	sc.State.Downloaded[sc.ID] = res.Name
	return fetched{Path: res.Path, Name: res.Name, Staged: !pkg.DestIsDir}, nil
}

// extractPackage unpacks zipPath into dest and hoists a lone top-level
// folder, then removes a staged archive.
func extractPackage(ctx context.Context, sc *StepContext, f fetched, dest, failMsg string) error {
	n, err := sc.Deps.Archive.Extract(ctx, f.Path, dest)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return failWrap(ErrCollaborator, failMsg, err)
	}
	sc.LogFields("Archive extracted", map[string]string{"archive": f.Name, "entries": strconv.Itoa(n), "dest": dest})

	levels, err := sc.Deps.Archive.FlattenNested(dest, sc.Settings.ToolPatterns, maxFlattenDepth)
	if err != nil {
		return failWrap(ErrCollaborator, failMsg, err)
	}
	if levels > 0 {
		sc.Logf("Flattened %d nested folder level(s) in %s", levels, dest)
	}

	if f.Staged {
		if err := sc.Deps.FS.Remove(f.Path); err != nil {
			sc.Warnf("Could not remove %s: %v", f.Path, err)
		}
	}
	return nil
}

const maxFlattenDepth = 3
