package archive

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestFlattenHoistsLoneDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mkfile(t, filepath.Join(root, "pkg", "a.dll"))
	mkfile(t, filepath.Join(root, "pkg", "sub", "b.dll"))

	ok, err := Flatten(root)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("Flatten=false; want true")
	}
	if got, want := names(t, root), []string{"a.dll", "sub"}; !equal(got, want) {
		t.Fatalf("root entries=%v; want %v", got, want)
	}
	if _, err := os.Stat(filepath.Join(root, "pkg")); !os.IsNotExist(err) {
		t.Fatalf("pkg dir still present: %v", err)
	}
}

func TestFlattenNoop(t *testing.T) {
	t.Parallel()

	cases := map[string]func(root string){
		"sibling file": func(root string) {
			mkfile(t, filepath.Join(root, "pkg", "a.dll"))
			mkfile(t, filepath.Join(root, "readme.txt"))
		},
		"two dirs": func(root string) {
			mkfile(t, filepath.Join(root, "x", "a.dll"))
			mkfile(t, filepath.Join(root, "y", "b.dll"))
		},
		"only files": func(root string) {
			mkfile(t, filepath.Join(root, "a.dll"))
		},
		"empty": func(string) {},
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			setup(root)
			before := names(t, root)
			ok, err := Flatten(root)
			if err != nil || ok {
				t.Fatalf("Flatten=%v, %v; want false, nil", ok, err)
			}
			if after := names(t, root); !equal(before, after) {
				t.Fatalf("entries changed: %v -> %v", before, after)
			}
		})
	}
}

func TestFlattenSameNameChild(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mkfile(t, filepath.Join(root, "tools", "tools", "trtexec.exe"))

	if _, err := Flatten(root); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "tools", "trtexec.exe")); err != nil {
		t.Fatalf("expected tools/trtexec.exe: %v", err)
	}
}

func TestFlattenNested(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mkfile(t, filepath.Join(root, "bundle", "TensorRT-10.13", "bin", "trtexec.exe"))
	mkfile(t, filepath.Join(root, "bundle", "TensorRT-10.13", "lib", "nvinfer.dll"))

	n, err := FlattenNested(root, []string{"TensorRT-*"}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("levels=%d; want 2", n)
	}
	if got, want := names(t, root), []string{"bin", "lib"}; !equal(got, want) {
		t.Fatalf("root entries=%v; want %v", got, want)
	}
}

func TestFlattenNestedStopsOnUnknownName(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mkfile(t, filepath.Join(root, "bundle", "docs", "readme.txt"))

	n, err := FlattenNested(root, []string{"TensorRT-*"}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("levels=%d; want 1", n)
	}
	if got, want := names(t, root), []string{"docs"}; !equal(got, want) {
		t.Fatalf("root entries=%v; want %v", got, want)
	}
}

func TestExtract(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "pkg.zip")
	writeZip(t, src, map[string]string{
		"FLIv2/a.dll":     "a",
		"FLIv2/x64/b.dll": "b",
		"FLIv2/readme":    "r",
	})

	dest := filepath.Join(dir, "out")
	var last int
	x := New(Options{Workers: 2, OnEntry: func(done, total int) {
		if total != 3 {
			t.Errorf("total=%d; want 3", total)
		}
		last = done
	}})
	n, err := x.Extract(context.Background(), src, dest)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || last != 3 {
		t.Fatalf("n=%d last=%d; want 3", n, last)
	}
	b, err := os.ReadFile(filepath.Join(dest, "FLIv2", "x64", "b.dll"))
	if err != nil || string(b) != "b" {
		t.Fatalf("b.dll=%q, %v", b, err)
	}
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	writeZip(t, src, map[string]string{"../escape.txt": "x"})

	if _, err := New(Options{}).Extract(context.Background(), src, filepath.Join(dir, "out")); err == nil {
		t.Fatalf("expected error for escaping entry")
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.txt")); !os.IsNotExist(err) {
		t.Fatalf("escape.txt was written")
	}
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func mkfile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func names(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
