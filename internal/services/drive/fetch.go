package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type FetchOptions struct {
	// Suffix filters folder children, e.g. ".onnx".
	Suffix string
	// PreferTag favours folder children whose name contains it.
	PreferTag string
	// DestIsDir saves into dest under the remote file name.
	DestIsDir  bool
	OnResolved func(f File)
	OnProgress func(cur, total int64)
}

type FetchResult struct {
	Path string
	Name string
	File File
}

// Fetch resolves id (shortcut, folder or file) to one concrete file and
// downloads it. A folder is narrowed with PickFile.
func (c *Client) Fetch(ctx context.Context, id, dest string, opt FetchOptions) (FetchResult, error) {
	f, err := c.Resolve(ctx, id)
	if err != nil {
		return FetchResult{}, err
	}
	if f.IsFolder() {
		children, err := c.List(ctx, f.ID)
		if err != nil {
			return FetchResult{}, err
		}
		var resolved []File
		for _, ch := range children {
			if ch.IsShortcut() {
				target, err := c.Resolve(ctx, ch.ID)
				if err != nil {
					return FetchResult{}, err
				}
				// Keep the shortcut's own timestamp for ordering.
				target.ModifiedTime = ch.ModifiedTime
				ch = target
			}
			resolved = append(resolved, ch)
		}
		f, err = PickFile(resolved, opt.Suffix, opt.PreferTag)
		if err != nil {
			return FetchResult{}, fmt.Errorf("drive folder %s: %w", id, err)
		}
	}
	if opt.OnResolved != nil {
		opt.OnResolved(f)
	}

	path := dest
	if opt.DestIsDir || isDir(dest) {
		path = filepath.Join(dest, safeName(f.Name))
	}
	if err := c.Download(ctx, f.ID, path, opt.OnProgress); err != nil {
		return FetchResult{}, err
	}
	return FetchResult{Path: path, Name: f.Name, File: f}, nil
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}

func safeName(name string) string {
	name = strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." {
		return "download.bin"
	}
	return name
}
