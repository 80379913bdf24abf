//go:build !windows

package process

import (
	"context"
	"os"
)

func (r *Runner) IsElevated(context.Context) (bool, error) {
	return os.Geteuid() == 0, nil
}

// ServiceExists asks systemd; hosts without it report no service.
func (r *Runner) ServiceExists(ctx context.Context, name string) (bool, error) {
	if _, ok := r.LookPath("systemctl"); !ok {
		return false, nil
	}
	res, err := r.Run(ctx, Command{Name: "systemctl", Args: []string{"list-unit-files", name + ".service", "--no-legend"}})
	if err != nil {
		return false, nil
	}
	return len(res.Stdout) > 0, nil
}

func processListCommand(image string) Command {
	return Command{Name: "ps", Args: []string{"-A", "-o", "comm="}}
}

func openURLCommand(url string) Command {
	return Command{Name: "xdg-open", Args: []string{url}}
}
