// Package mock provides in-memory host collaborators for tests and the
// demo mode of the installer.
package mock

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FS is an in-memory filesystem. Paths are compared after filepath.Clean.
type FS struct {
	mu    sync.Mutex
	files map[string]file
	dirs  map[string]bool
	clock time.Time

	// FailMkdir makes MkdirAll fail for these paths.
	FailMkdir map[string]error
}

type file struct {
	data []byte
	mod  time.Time
}

func NewFS() *FS {
	return &FS{
		files: map[string]file{},
		dirs:  map[string]bool{},
		clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Put writes a file and its parents. Each call gets a later mod time.
func (m *FS) Put(path string, data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(path, []byte(data))
}

func (m *FS) put(path string, data []byte) {
	path = filepath.Clean(path)
	m.clock = m.clock.Add(time.Second)
	m.files[path] = file{data: append([]byte(nil), data...), mod: m.clock}
	m.mkdirs(filepath.Dir(path))
}

func (m *FS) mkdirs(dir string) {
	for d := filepath.Clean(dir); ; d = filepath.Dir(d) {
		m.dirs[d] = true
		if parent := filepath.Dir(d); parent == d {
			return
		}
	}
}

func (m *FS) MkdirAll(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailMkdir[filepath.Clean(dir)]; err != nil {
		return err
	}
	m.mkdirs(dir)
	return nil
}

func (m *FS) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	_, ok := m.files[path]
	return ok || m.dirs[path]
}

// IsDir reports whether path is a known directory.
func (m *FS) IsDir(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirs[filepath.Clean(path)]
}

func (m *FS) CopyFile(src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[filepath.Clean(src)]
	if !ok {
		return fmt.Errorf("copy %s: %w", src, fs.ErrNotExist)
	}
	m.put(dst, f.data)
	return nil
}

func (m *FS) Rename(src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	src = filepath.Clean(src)
	f, ok := m.files[src]
	if !ok {
		return fmt.Errorf("rename %s: %w", src, fs.ErrNotExist)
	}
	delete(m.files, src)
	m.put(dst, f.data)
	return nil
}

func (m *FS) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[filepath.Clean(path)]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, fs.ErrNotExist)
	}
	return append([]byte(nil), f.data...), nil
}

func (m *FS) WriteFile(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(path, data)
	return nil
}

func (m *FS) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	if _, ok := m.files[path]; ok {
		delete(m.files, path)
		return nil
	}
	if m.dirs[path] {
		delete(m.dirs, path)
		return nil
	}
	return nil
}

func (m *FS) CountByExt(dir, ext string) (int, error) {
	return len(m.match(dir, ext)), nil
}

func (m *FS) NewestByExt(dir, ext string) (string, error) {
	paths := m.match(dir, ext)
	if len(paths) == 0 {
		return "", errors.New("no " + ext + " files in " + dir)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	best := paths[0]
	for _, p := range paths[1:] {
		if m.files[p].mod.After(m.files[best].mod) {
			best = p
		}
	}
	return best, nil
}

// Files lists every file path, sorted.
func (m *FS) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (m *FS) match(dir, ext string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := filepath.Clean(dir) + string(filepath.Separator)
	var out []string
	for p := range m.files {
		if strings.HasPrefix(p, prefix) && strings.EqualFold(filepath.Ext(p), ext) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
