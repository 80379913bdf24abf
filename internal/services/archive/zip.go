// Package archive expands installer packages and normalizes their layout.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Options tune Extract.
type Options struct {
	// Workers bounds concurrent file writes. Zero means 4.
	Workers int
	// OnEntry is called after each file entry is written.
	OnEntry func(done, total int)
}

// Extractor expands zip packages on the local filesystem.
type Extractor struct {
	opt Options
}

func New(opt Options) *Extractor {
	if opt.Workers <= 0 {
		opt.Workers = 4
	}
	return &Extractor{opt: opt}
}

// Extract expands every entry of the zip at src into dest, preserving
// relative layout. It returns the number of files written.
func (x *Extractor) Extract(ctx context.Context, src, dest string) (int, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return 0, fmt.Errorf("open archive %s: %w", src, err)
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return 0, fmt.Errorf("extract %s: %w", src, err)
	}

	var files []*zip.File
	for _, f := range r.File {
		target, err := entryPath(dest, f.Name)
		if err != nil {
			return 0, fmt.Errorf("extract %s: %w", src, err)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return 0, fmt.Errorf("extract %s: %w", src, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return 0, fmt.Errorf("extract %s: %w", src, err)
		}
		files = append(files, f)
	}

	total := len(files)
	done := make(chan struct{}, total)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.opt.Workers)
	for _, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			target, _ := entryPath(dest, f.Name)
			if err := writeEntry(f, target); err != nil {
				return err
			}
			done <- struct{}{}
			return nil
		})
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- g.Wait() }()

	n := 0
	for {
		select {
		case <-done:
			n++
			if x.opt.OnEntry != nil {
				x.opt.OnEntry(n, total)
			}
		case err := <-waitErr:
			// Drain writes that finished before Wait returned.
			for len(done) > 0 {
				<-done
				n++
				if x.opt.OnEntry != nil {
					x.opt.OnEntry(n, total)
				}
			}
			if err != nil {
				return n, fmt.Errorf("extract %s: %w", src, err)
			}
			return n, nil
		}
	}
}

func writeEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%s: %w", f.Name, err)
	}
	defer rc.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("%s: %w", f.Name, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("%s: %w", f.Name, err)
	}
	return out.Close()
}

// entryPath rejects entries that would escape dest.
func entryPath(dest, name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("illegal entry path %q", name)
	}
	return target, nil
}

// FlattenNested lets an Extractor serve as the installer's archive collaborator.
func (x *Extractor) FlattenNested(dir string, patterns []string, maxDepth int) (int, error) {
	return FlattenNested(dir, patterns, maxDepth)
}
