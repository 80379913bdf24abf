package install

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kayleschmoyer/Fv2/internal/domain"
	"github.com/kayleschmoyer/Fv2/internal/services/process"
)

func TestCheckAdmin(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.host.Process.Elevated = false
	err := h.run(StepCheckAdmin)
	if !errors.Is(err, ErrEnvironment) || !strings.Contains(err.Error(), "Administrator privileges required") {
		t.Fatalf("err=%v; want environment failure", err)
	}
	h.host.Process.Elevated = true
	if err := h.run(StepCheckAdmin); err != nil {
		t.Fatalf("elevated: %v", err)
	}
}

func TestCheckExistingService(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.host.Process.Services["EnsightFLIv2"] = true
	err := h.run(StepCheckExistingService)
	if err == nil || err.Error() != `Service "EnsightFLIv2" already exists. Please uninstall it before continuing.` {
		t.Fatalf("err=%v", err)
	}
}

func TestCheckExistingInstallSetsOption(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.host.FS.Put(filepath.Join(h.settings.Paths.ProgramFiles, "a.dll"), "x")
	h.prompt.confirms = []bool{true}
	if err := h.run(StepCheckExistingInstall); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !h.state.Options.Enabled(OptRedownloadDlls) {
		t.Fatalf("redownloadDlls not set")
	}
	if got := h.prompt.Asked(); len(got) != 1 || got[0] != "Existing DLLs Found" {
		t.Fatalf("asked=%v", got)
	}
}

// Scenario: directory creation, remote fetch and extraction with Drive
// sign-in rejected.
func TestAuthFailureStopsRun(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.host.Drive.AuthErr = errors.New("access_denied")
	reg := NewRegistry([]StepDef{
		{ID: StepCreateFLIv2Dir, Enabled: true},
		{ID: StepDownloadDlls, Enabled: true},
		{ID: StepDownloadTensorRT, Enabled: true},
	})
	ctrl := NewController(reg, DefaultCatalog(), h.deps(), ControllerOptions{Settings: h.settings, Prompt: h.prompt})

	_, err := ctrl.Run(context.Background(), h.state)
	if !errors.Is(err, ErrCollaborator) || FailedStep(err) != StepDownloadDlls {
		t.Fatalf("err=%v; want collaborator failure at download-dlls", err)
	}
	st := statuses(reg)
	if st[StepCreateFLIv2Dir] != domain.StepCompleted || st[StepDownloadDlls] != domain.StepError || st[StepDownloadTensorRT] != domain.StepPending {
		t.Fatalf("statuses=%v", st)
	}
	if s, _ := reg.Get(StepDownloadDlls); s.Message != "Google authentication failed: access_denied" {
		t.Fatalf("message=%q", s.Message)
	}
	if !h.host.FS.IsDir(h.settings.Paths.ProgramFiles) {
		t.Fatalf("FLIv2 dir not created")
	}
	if n := len(h.host.Drive.Fetches()); n != 0 {
		t.Fatalf("fetches=%d; want 0", n)
	}
	if n := len(h.host.Archive.Extracted()); n != 0 {
		t.Fatalf("extractions=%d; want 0", n)
	}
}

func TestDownloadDllsExtractsAndRemovesStagedZip(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.host.Archive.Entries = map[string][]string{"temp-dlls.zip": {"a.dll", "b.dll"}}
	if err := h.run(StepDownloadDlls); err != nil {
		t.Fatalf("run: %v", err)
	}
	if n, _ := h.host.FS.CountByExt(h.settings.Paths.ProgramFiles, ".dll"); n != 2 {
		t.Fatalf("dlls=%d; want 2", n)
	}
	staged := filepath.Join(h.settings.Paths.Staging, "temp-dlls.zip")
	if h.host.FS.Exists(staged) {
		t.Fatalf("staged zip %s left behind", staged)
	}
	if h.state.Downloaded[StepDownloadDlls] != "extra-dlls.zip" {
		t.Fatalf("downloaded=%v", h.state.Downloaded)
	}
	if got := h.host.Archive.Flattened(); len(got) != 1 || got[0] != h.settings.Paths.ProgramFiles {
		t.Fatalf("flattened=%v; want %s", got, h.settings.Paths.ProgramFiles)
	}

	// Second pass keeps the DLLs without touching Drive.
	if err := h.run(StepDownloadDlls); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if n := len(h.host.Drive.Fetches()); n != 1 {
		t.Fatalf("fetches=%d; want 1", n)
	}
}

func TestRedoGateDeclinedTwiceDoesNoWork(t *testing.T) {
	t.Parallel()

	h := newHarness()
	tool := filepath.Join(h.settings.Paths.TensorRTTools, "trtexec.exe")
	h.host.FS.Put(tool, "original")

	for i := 0; i < 2; i++ {
		h.prompt.confirms = []bool{false}
		if err := h.run(StepDownloadTensorRT); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if got := h.prompt.Asked(); len(got) != 2 {
		t.Fatalf("asked=%v; want two prompts", got)
	}
	if n := h.host.Drive.Auths() + len(h.host.Drive.Fetches()); n != 0 {
		t.Fatalf("drive calls=%d; want 0", n)
	}
	if data, _ := h.host.FS.ReadFile(tool); string(data) != "original" {
		t.Fatalf("tool overwritten: %q", data)
	}
}

func TestRedoGateOptionSkipsPrompt(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.host.FS.Put(filepath.Join(h.settings.Paths.ModelsOnnx, "old.onnx"), "old")
	h.state.Options.Set(OptRedownloadOnnx, true)
	if err := h.run(StepDownloadModels); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := h.prompt.Asked(); len(got) != 0 {
		t.Fatalf("asked=%v; want none", got)
	}
	if !h.host.FS.Exists(filepath.Join(h.settings.Paths.ModelsOnnx, "datature-yolov8-v2.onnx")) {
		t.Fatalf("model not downloaded: %v", h.host.FS.Files())
	}
}

func TestCreateModelsDir(t *testing.T) {
	t.Parallel()

	h := newHarness()
	if err := h.run(StepCreateModelsDir); err != nil {
		t.Fatalf("run: %v", err)
	}
	p := h.settings.Paths
	for _, d := range []string{p.ModelsOnnx, p.ModelsTensorRT, p.TensorRTTools} {
		if !h.host.FS.IsDir(d) {
			t.Fatalf("%s not created", d)
		}
	}

	h.host.FS.FailMkdir = map[string]error{p.ModelsTensorRT: errors.New("denied")}
	if err := h.run(StepCreateModelsDir); !errors.Is(err, ErrEnvironment) {
		t.Fatalf("err=%v; want environment failure", err)
	}
}

func TestBuildAndPlaceEngine(t *testing.T) {
	t.Parallel()

	h := newHarness()
	p := h.settings.Paths
	h.host.FS.Put(filepath.Join(p.ModelsOnnx, "old.onnx"), "1")
	h.host.FS.Put(filepath.Join(p.ModelsOnnx, "datature-new.onnx"), "2")

	if err := h.run(StepBuildTensorRT); err != nil {
		t.Fatalf("build: %v", err)
	}
	want := filepath.Join(p.TensorRTTools, "datature-new-trt10-fp16.engine")
	if h.state.BuiltEnginePath != want {
		t.Fatalf("BuiltEnginePath=%q; want %q", h.state.BuiltEnginePath, want)
	}
	cmds := h.host.Process.Commands()
	if len(cmds) != 1 || !strings.Contains(cmds[0], "--onnx="+filepath.Join(p.ModelsOnnx, "datature-new.onnx")) {
		t.Fatalf("commands=%v", cmds)
	}

	if err := h.run(StepPlaceTensorRTModel); err != nil {
		t.Fatalf("place: %v", err)
	}
	if !h.host.FS.Exists(p.EngineAlias()) || !h.host.FS.Exists(filepath.Join(p.ModelsTensorRT, "datature-new-trt10-fp16.engine")) {
		t.Fatalf("engine not placed: %v", h.host.FS.Files())
	}

	// Engine now exists: declining the rebuild keeps it and runs nothing.
	h.prompt.confirms = []bool{false}
	if err := h.run(StepBuildTensorRT); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if len(h.host.Process.Commands()) != 1 || h.state.BuiltEnginePath != p.EngineAlias() {
		t.Fatalf("rebuild ran or path=%q", h.state.BuiltEnginePath)
	}
	if err := h.run(StepPlaceTensorRTModel); err != nil {
		t.Fatalf("place existing: %v", err)
	}
}

func TestBuildFailureIsCollaboratorError(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.host.FS.Put(filepath.Join(h.settings.Paths.ModelsOnnx, "m.onnx"), "1")
	h.host.Process.Handler = func(context.Context, process.Command) (process.Result, error) {
		return process.Result{ExitCode: 1}, &process.ExitError{Command: "trtexec", Code: 1}
	}
	err := h.run(StepBuildTensorRT)
	if !errors.Is(err, ErrCollaborator) || !strings.HasPrefix(err.Error(), "TensorRT build failed") {
		t.Fatalf("err=%v", err)
	}
}

func TestPlaceCameraConfigCancelled(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.prompt.cancel = true
	err := h.run(StepPlaceCameraConfig)
	if !errors.Is(err, ErrCancelled) || err.Error() != "No config file selected" {
		t.Fatalf("err=%v", err)
	}

	h.host.FS.Put(h.settings.Paths.CameraHubConfig, "<x/>")
	if err := h.run(StepPlaceCameraConfig); err != nil {
		t.Fatalf("existing config: %v", err)
	}
}

func TestParseAndCreateCameraConfigs(t *testing.T) {
	t.Parallel()

	h := newHarness()
	p := h.settings.Paths
	h.host.FS.Put(p.CameraHubConfig, `<CameraHub><Cameras><Camera Name="Lane1"/><Camera Name="Lane2"/><Camera Name="Lane1"/></Cameras></CameraHub>`)
	h.host.FS.Put(p.CameraConfigFile("Lane1"), "keep")

	if err := h.run(StepParseCameraConfig); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := strings.Join(h.state.CameraNames, ","); got != "Lane1,Lane2" {
		t.Fatalf("cameras=%q", got)
	}

	h.prompt.confirms = []bool{false}
	if err := h.run(StepCreateCameraConfigs); !errors.Is(err, ErrDeclined) {
		t.Fatalf("declined err=%v", err)
	}

	h.prompt.confirms = []bool{true}
	if err := h.run(StepCreateCameraConfigs); err != nil {
		t.Fatalf("create: %v", err)
	}
	data, err := h.host.FS.ReadFile(p.CameraConfigFile("Lane2"))
	if err != nil || !strings.Contains(string(data), "<CameraName>Lane2</CameraName>") {
		t.Fatalf("Lane2 config=%q,%v", data, err)
	}
	if keep, _ := h.host.FS.ReadFile(p.CameraConfigFile("Lane1")); string(keep) != "keep" {
		t.Fatalf("existing config rewritten")
	}
}

func TestParseCameraConfigNoCameras(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.host.FS.Put(h.settings.Paths.CameraHubConfig, `<CameraHub><Cameras/></CameraHub>`)
	if err := h.run(StepParseCameraConfig); err != nil {
		t.Fatalf("zero cameras should not fail: %v", err)
	}
	if len(h.state.CameraNames) != 0 {
		t.Fatalf("cameras=%v", h.state.CameraNames)
	}
}

func TestParseCameraConfigMalformedWarns(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.state.CameraNames = []string{"stale"}
	h.host.FS.Put(h.settings.Paths.CameraHubConfig, `<CameraHub><Cameras><Camera Name="A">`)
	if err := h.run(StepParseCameraConfig); err != nil {
		t.Fatalf("malformed config should not fail: %v", err)
	}
	if len(h.state.CameraNames) != 0 {
		t.Fatalf("cameras=%v; want none", h.state.CameraNames)
	}
}

func TestParseCameraConfigUnreadableFails(t *testing.T) {
	t.Parallel()

	h := newHarness()
	err := h.run(StepParseCameraConfig)
	if !errors.Is(err, ErrEnvironment) {
		t.Fatalf("err=%v; want ErrEnvironment", err)
	}
}

func TestVerifyFLIConfig(t *testing.T) {
	t.Parallel()

	h := newHarness()
	path := h.settings.Paths.FLIConfigFile()

	h.prompt.inputs = []string{"SITE-1"}
	if err := h.run(StepVerifyFLIConfig); err != nil {
		t.Fatalf("create: %v", err)
	}
	data, _ := h.host.FS.ReadFile(path)
	if !strings.Contains(string(data), "<SiteName>SITE-1</SiteName>") || !strings.Contains(string(data), "test-key") {
		t.Fatalf("config=%s", data)
	}

	h.prompt.confirms = []bool{false}
	h.prompt.inputs = []string{"SITE-2"}
	if err := h.run(StepVerifyFLIConfig); err != nil {
		t.Fatalf("update: %v", err)
	}
	data, _ = h.host.FS.ReadFile(path)
	if !strings.Contains(string(data), "SITE-2") || strings.Contains(string(data), "SITE-1") {
		t.Fatalf("config=%s", data)
	}

	h.prompt.confirms = []bool{false}
	h.prompt.inputs = nil
	if err := h.run(StepVerifyFLIConfig); err == nil || err.Error() != "Site Key required to update FLI-config.xml" {
		t.Fatalf("cancelled update err=%v", err)
	}
}

func TestLicenseFLI(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.prompt.confirms = []bool{true, true}
	err := h.run(StepLicenseFLI)
	if err == nil || !strings.HasPrefix(err.Error(), "fli.lic not found in") {
		t.Fatalf("err=%v", err)
	}
	if urls := h.host.Process.URLs(); len(urls) != 1 || urls[0] != h.settings.LicenseUtilityURL {
		t.Fatalf("urls=%v", urls)
	}

	h.host.FS.Put(h.settings.Paths.License, "lic")
	h.prompt.confirms = []bool{false}
	if err := h.run(StepLicenseFLI); err != nil {
		t.Fatalf("keep existing: %v", err)
	}
}

func TestLockGPUClocks(t *testing.T) {
	t.Parallel()

	h := newHarness()
	delete(h.host.Process.Paths, "nvidia-smi")
	if err := h.run(StepLockGPUClocks); err != nil {
		t.Fatalf("no smi: %v", err)
	}
	if n := len(h.host.Process.Commands()); n != 0 {
		t.Fatalf("commands=%d; want 0", n)
	}

	h = newHarness()
	if err := h.run(StepLockGPUClocks); err != nil {
		t.Fatalf("lock: %v", err)
	}
	got := strings.Join(h.host.Process.Commands(), "|")
	if got != "nvidia-smi -q -d CLOCK|nvidia-smi -lgc 2100|nvidia-smi -lmc 7001" {
		t.Fatalf("commands=%q", got)
	}
}

func TestInstallFLIv2AndViewer(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.prompt.picks = []string{"/media/FLIv2.msi", "/media/viewer.zip"}
	h.host.FS.Put("/media/viewer.zip", "zip")
	h.host.Archive.Entries = map[string][]string{"viewer.zip": {"FLIv2-Viewer/Ensight.FLIv2.Viewer.exe"}}

	if err := h.run(StepDownloadFLIv2MSI); err != nil {
		t.Fatalf("msi: %v", err)
	}
	if h.state.MSIPath != "/media/FLIv2.msi" {
		t.Fatalf("MSIPath=%q", h.state.MSIPath)
	}
	if err := h.run(StepInstallFLIv2); err != nil {
		t.Fatalf("install: %v", err)
	}
	if cmds := h.host.Process.Commands(); len(cmds) != 1 || cmds[0] != "msiexec /i /media/FLIv2.msi /qn" {
		t.Fatalf("commands=%v", cmds)
	}

	if err := h.run(StepDownloadViewer); err != nil {
		t.Fatalf("viewer: %v", err)
	}
	wantExe := filepath.Join(h.settings.Paths.FLI, "FLIv2-Viewer", "Ensight.FLIv2.Viewer.exe")
	if h.state.ViewerExe != wantExe {
		t.Fatalf("ViewerExe=%q; want %q", h.state.ViewerExe, wantExe)
	}
	sc := h.host.Process.Shortcuts()
	if len(sc) != 1 || sc[0].Target != wantExe || sc[0].Path != h.settings.Paths.ViewerShortcut() {
		t.Fatalf("shortcuts=%+v", sc)
	}
	if !h.host.FS.Exists("/media/viewer.zip") {
		t.Fatalf("operator's zip removed")
	}
	if got := h.host.Archive.Flattened(); len(got) != 0 {
		t.Fatalf("flattened=%v; want FLI left as extracted", got)
	}
}

func TestInstallAction1(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.host.Process.Running["action1_agent.exe"] = true
	if err := h.run(StepInstallAction1); err != nil {
		t.Fatalf("running: %v", err)
	}
	if len(h.prompt.Asked()) != 0 {
		t.Fatalf("prompted while agent running")
	}

	h = newHarness()
	h.prompt.confirms = []bool{true}
	h.prompt.picks = []string{"/media/action1.msi"}
	if err := h.run(StepInstallAction1); err != nil {
		t.Fatalf("install: %v", err)
	}
	if cmds := h.host.Process.Commands(); len(cmds) != 1 || cmds[0] != "msiexec /i /media/action1.msi /qn /norestart" {
		t.Fatalf("commands=%v", cmds)
	}
}

func TestVerifyInstallationListsMissing(t *testing.T) {
	t.Parallel()

	p := testPaths()
	all := map[string]string{
		"Viewer":           filepath.Join(p.FLI, "Ensight.FLI2.Viewer.exe"),
		"Engine":           p.EngineAlias(),
		"CameraHub config": p.CameraHubConfig,
		"FLI config":       p.FLIConfigFile(),
		"License":          p.License,
	}
	cases := []struct {
		name    string
		missing []string
	}{
		{"complete", nil},
		{"license only", []string{"License"}},
		{"viewer and engine", []string{"Viewer", "Engine"}},
		{"everything", []string{"Viewer", "Engine", "CameraHub config", "FLI config", "License"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness()
			skip := map[string]bool{}
			for _, m := range tc.missing {
				skip[m] = true
			}
			for label, path := range all {
				if !skip[label] {
					h.host.FS.Put(path, "x")
				}
			}
			err := h.run(StepVerifyInstallation)
			if len(tc.missing) == 0 {
				if err != nil {
					t.Fatalf("err=%v; want nil", err)
				}
				return
			}
			want := "Missing required files: " + strings.Join(tc.missing, ", ")
			if err == nil || err.Error() != want {
				t.Fatalf("err=%v; want %q", err, want)
			}
		})
	}
}
