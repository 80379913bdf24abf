//go:build windows

package process

import (
	"context"
	"errors"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc/mgr"
)

func (r *Runner) IsElevated(context.Context) (bool, error) {
	return windows.GetCurrentProcessToken().IsElevated(), nil
}

func (r *Runner) ServiceExists(_ context.Context, name string) (bool, error) {
	m, err := mgr.Connect()
	if err != nil {
		return false, err
	}
	defer m.Disconnect()

	s, err := m.OpenService(name)
	if err != nil {
		if errors.Is(err, windows.ERROR_SERVICE_DOES_NOT_EXIST) {
			return false, nil
		}
		return false, err
	}
	s.Close()
	return true, nil
}

func processListCommand(image string) Command {
	return Command{Name: "tasklist", Args: []string{"/FI", "IMAGENAME eq " + image, "/NH"}}
}

func openURLCommand(url string) Command {
	return Command{Name: "rundll32", Args: []string{"url.dll,FileProtocolHandler", url}}
}
