package mock

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/kayleschmoyer/Fv2/internal/services/drive"
)

// Drive serves Objects by id and writes downloads into FS.
type Drive struct {
	mu sync.Mutex

	FS      *FS
	AuthErr error
	// Objects maps an id to the file a fetch of it resolves to.
	Objects map[string]drive.File
	// Default resolves ids missing from Objects.
	Default func(id string, opt drive.FetchOptions) (drive.File, bool)
	// Content is written for every download; defaults to the file name.
	Content func(f drive.File) string

	auths   int
	fetches []string
}

func (d *Drive) Authenticate(ctx context.Context) error {
	d.mu.Lock()
	d.auths++
	d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.AuthErr
}

func (d *Drive) Fetch(ctx context.Context, id, dest string, opt drive.FetchOptions) (drive.FetchResult, error) {
	d.mu.Lock()
	d.fetches = append(d.fetches, id)
	f, ok := d.Objects[id]
	def := d.Default
	d.mu.Unlock()
	if !ok && def != nil {
		f, ok = def(id, opt)
	}
	if err := ctx.Err(); err != nil {
		return drive.FetchResult{}, err
	}
	if !ok {
		return drive.FetchResult{}, fmt.Errorf("%s: %w", id, drive.ErrNotFound)
	}
	if opt.OnResolved != nil {
		opt.OnResolved(f)
	}

	path := dest
	if opt.DestIsDir || d.FS.IsDir(dest) {
		path = filepath.Join(dest, f.Name)
	}
	body := f.Name
	if d.Content != nil {
		body = d.Content(f)
	}
	if opt.OnProgress != nil {
		opt.OnProgress(int64(len(body)), int64(len(body)))
	}
	if err := d.FS.WriteFile(path, []byte(body)); err != nil {
		return drive.FetchResult{}, err
	}
	return drive.FetchResult{Path: path, Name: f.Name, File: f}, nil
}

// Auths is how many times Authenticate was called.
func (d *Drive) Auths() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.auths
}

func (d *Drive) Fetches() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.fetches...)
}
