package install

import (
	"context"

	"github.com/kayleschmoyer/Fv2/internal/services/drive"
	"github.com/kayleschmoyer/Fv2/internal/services/process"
)

// FileSystem is the host filesystem as step actions see it.
type FileSystem interface {
	MkdirAll(dir string) error
	Exists(path string) bool
	CopyFile(src, dst string) error
	Rename(src, dst string) error
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	Remove(path string) error
	CountByExt(dir, ext string) (int, error)
	NewestByExt(dir, ext string) (string, error)
}

type Process interface {
	Run(ctx context.Context, c process.Command) (process.Result, error)
	LookPath(name string) (string, bool)
	IsElevated(ctx context.Context) (bool, error)
	ServiceExists(ctx context.Context, name string) (bool, error)
	ProcessRunning(ctx context.Context, image string) (bool, error)
	CreateShortcut(ctx context.Context, s process.Shortcut) error
	OpenURL(ctx context.Context, url string) error
}

// Drive is the remote object storage holding the packaged binaries.
type Drive interface {
	Authenticate(ctx context.Context) error
	Fetch(ctx context.Context, id, dest string, opt drive.FetchOptions) (drive.FetchResult, error)
}

type Archive interface {
	Extract(ctx context.Context, src, dest string) (int, error)
	FlattenNested(dir string, patterns []string, maxDepth int) (int, error)
}

// Deps bundles the collaborators handed to every action.
type Deps struct {
	FS      FileSystem
	Process Process
	Drive   Drive
	Archive Archive
}
