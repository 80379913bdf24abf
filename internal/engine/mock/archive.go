package mock

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
)

// Archive "extracts" by writing the entries registered for an archive's
// base name into FS.
type Archive struct {
	mu sync.Mutex

	FS *FS
	// Entries maps an archive base name to relative paths it contains.
	Entries map[string][]string

	extracted []string
	flattened []string
}

func (a *Archive) Extract(ctx context.Context, src, dest string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !a.FS.Exists(src) {
		return 0, fmt.Errorf("open %s: %w", src, fs.ErrNotExist)
	}
	a.mu.Lock()
	a.extracted = append(a.extracted, src)
	entries := a.Entries[filepath.Base(src)]
	a.mu.Unlock()

	if err := a.FS.MkdirAll(dest); err != nil {
		return 0, err
	}
	for _, e := range entries {
		if err := a.FS.WriteFile(filepath.Join(dest, filepath.FromSlash(e)), []byte(e)); err != nil {
			return 0, err
		}
	}
	return len(entries), nil
}

// FlattenNested records dir and changes nothing; entries are registered
// already flattened.
func (a *Archive) FlattenNested(dir string, _ []string, _ int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flattened = append(a.flattened, dir)
	return 0, nil
}

func (a *Archive) Flattened() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.flattened...)
}

func (a *Archive) Extracted() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.extracted...)
}
