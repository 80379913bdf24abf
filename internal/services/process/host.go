package process

import (
	"context"
	"fmt"
	"strings"
)

// Shortcut describes a desktop link to create.
type Shortcut struct {
	Path        string
	Target      string
	WorkingDir  string
	Description string
}

// ProcessRunning reports whether an image name is among running processes.
func (r *Runner) ProcessRunning(ctx context.Context, image string) (bool, error) {
	res, err := r.Run(ctx, processListCommand(image))
	if err != nil {
		return false, fmt.Errorf("list processes: %w", err)
	}
	return strings.Contains(strings.ToLower(res.Stdout), strings.ToLower(image)), nil
}

// CreateShortcut writes a .lnk through the Windows Script Host.
func (r *Runner) CreateShortcut(ctx context.Context, s Shortcut) error {
	script := fmt.Sprintf(
		`$s=(New-Object -ComObject WScript.Shell).CreateShortcut('%s');$s.TargetPath='%s';$s.WorkingDirectory='%s';$s.Description='%s';$s.Save()`,
		psQuote(s.Path), psQuote(s.Target), psQuote(s.WorkingDir), psQuote(s.Description),
	)
	_, err := r.Run(ctx, Command{Name: "powershell", Args: []string{"-NoProfile", "-NonInteractive", "-Command", script}})
	if err != nil {
		return fmt.Errorf("create shortcut %s: %w", s.Path, err)
	}
	return nil
}

// OpenURL hands url to the desktop's default handler.
func (r *Runner) OpenURL(ctx context.Context, url string) error {
	_, err := r.Run(ctx, openURLCommand(url))
	return err
}

func psQuote(s string) string { return strings.ReplaceAll(s, "'", "''") }
