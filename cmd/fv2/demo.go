package main

import (
	"github.com/kayleschmoyer/Fv2/internal/engine/install"
	"github.com/kayleschmoyer/Fv2/internal/engine/mock"
)

const demoCameraHub = `<?xml version="1.0" encoding="utf-8"?>
<CameraHub>
  <Cameras>
    <Camera Name="Dock-01"/>
    <Camera Name="Dock-02"/>
    <Camera Name="Yard-North"/>
  </Cameras>
</CameraHub>
`

// demoDeps returns a simulated host that already holds what an operator
// would have prepared. Packages without a Drive id get a demo one so the
// run never stops at a file picker.
func demoDeps(s *install.Settings) install.Deps {
	h := mock.NewHost(mock.HostOptions{
		Seed: map[string]string{
			s.Paths.CameraHubConfig: demoCameraHub,
			s.Paths.License:         "demo license",
		},
	})
	if s.Drive.FLIv2MSI == "" {
		s.Drive.FLIv2MSI = "demo-msi"
	}
	if s.Drive.Viewer == "" {
		s.Drive.Viewer = "demo-viewer"
	}
	return install.Deps{FS: h.FS, Process: h.Process, Drive: h.Drive, Archive: h.Archive}
}
