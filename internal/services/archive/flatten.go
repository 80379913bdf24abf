package archive

import (
	"fmt"
	"os"
	"path/filepath"
)

// Flatten hoists the contents of a lone top-level directory into dir and
// removes it. It is a no-op (false) unless dir holds exactly one directory and
// no files.
func Flatten(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("flatten %s: %w", dir, err)
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return false, nil
	}

	inner := filepath.Join(dir, entries[0].Name())
	children, err := os.ReadDir(inner)
	if err != nil {
		return false, fmt.Errorf("flatten %s: %w", dir, err)
	}

	// The inner dir may contain an entry with its own name; move it aside first.
	staged := inner
	for _, c := range children {
		if c.Name() == entries[0].Name() {
			staged = inner + ".flatten"
			if err := os.Rename(inner, staged); err != nil {
				return false, fmt.Errorf("flatten %s: %w", dir, err)
			}
			break
		}
	}

	for _, c := range children {
		src := filepath.Join(staged, c.Name())
		if err := os.Rename(src, filepath.Join(dir, c.Name())); err != nil {
			return false, fmt.Errorf("flatten %s: %w", dir, err)
		}
	}
	if err := os.Remove(staged); err != nil {
		return false, fmt.Errorf("flatten %s: %w", dir, err)
	}
	return true, nil
}

// FlattenNested flattens dir once, then keeps flattening while the newly
// exposed lone directory matches one of patterns (filepath.Match syntax). At
// most maxDepth levels are removed.
func FlattenNested(dir string, patterns []string, maxDepth int) (int, error) {
	n := 0
	for n < maxDepth {
		name, lone, err := loneDir(dir)
		if err != nil || !lone {
			return n, err
		}
		if n > 0 && !matchAny(name, patterns) {
			return n, nil
		}
		if _, err := Flatten(dir); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func loneDir(dir string) (string, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false, fmt.Errorf("flatten %s: %w", dir, err)
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return "", false, nil
	}
	return entries[0].Name(), true, nil
}

func matchAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}
