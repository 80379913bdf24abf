package install

import (
	"context"
	"fmt"
	"sync"

	"github.com/kayleschmoyer/Fv2/internal/engine/mock"
	"github.com/kayleschmoyer/Fv2/internal/services/drive"
)

// scriptPrompter answers prompts from queues and records what was asked.
type scriptPrompter struct {
	mu sync.Mutex

	confirms []bool
	inputs   []string
	picks    []string
	// cancel makes every prompt return ErrCancelled.
	cancel bool

	asked []string
}

func (p *scriptPrompter) Confirm(_ context.Context, req ConfirmRequest) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asked = append(p.asked, req.Title)
	if p.cancel {
		return false, fmt.Errorf("%w: %s", ErrCancelled, req.Title)
	}
	if len(p.confirms) == 0 {
		return false, nil
	}
	v := p.confirms[0]
	p.confirms = p.confirms[1:]
	return v, nil
}

func (p *scriptPrompter) Input(_ context.Context, req InputRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asked = append(p.asked, req.Title)
	if p.cancel || len(p.inputs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrCancelled, req.Title)
	}
	v := p.inputs[0]
	p.inputs = p.inputs[1:]
	return v, nil
}

func (p *scriptPrompter) PickFile(_ context.Context, req PickRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asked = append(p.asked, req.Title)
	if p.cancel || len(p.picks) == 0 {
		return "", fmt.Errorf("%w: %s", ErrCancelled, req.Title)
	}
	v := p.picks[0]
	p.picks = p.picks[1:]
	return v, nil
}

func (p *scriptPrompter) PickFolder(ctx context.Context, req PickRequest) (string, error) {
	return p.PickFile(ctx, req)
}

func (p *scriptPrompter) Asked() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.asked...)
}

func testPaths() Paths {
	return Paths{
		CameraHub:       "/host/CameraHub",
		CameraHubConfig: "/host/CameraHub/camerahub-config.xml",
		ProgramFiles:    "/host/ProgramFiles/FLIv2",
		ModelsOnnx:      "/host/FLI/Models/onnx",
		ModelsTensorRT:  "/host/FLI/Models/TensorRT",
		TensorRTTools:   "/host/FLI/Models/TensorRT/tools",
		FLIConfig:       "/host/FLI/Config",
		FLI:             "/host/FLI",
		License:         "/host/FLI/fli.lic",
		PublicDesktop:   "/host/Desktop",
		Staging:         "/host/Staging",
	}
}

func testSettings() Settings {
	s := DefaultSettings()
	s.Paths = testPaths()
	s.Drive = DriveFiles{ExtraDlls: "dlls", TensorRTTools: "trt", OnnxModels: "onnx"}
	s.FLI.APIKey = "test-key"
	return s
}

type harness struct {
	host     *mock.Host
	prompt   *scriptPrompter
	settings Settings
	state    *State
}

func newHarness() *harness {
	h := mock.NewHost(mock.HostOptions{Speed: 10000})
	h.Drive.Default = nil
	h.Drive.Objects = map[string]drive.File{
		"dlls": {ID: "dlls", Name: "extra-dlls.zip"},
		"trt":  {ID: "trt", Name: "tools.zip"},
		"onnx": {ID: "onnx-2", Name: "datature-yolov8-v2.onnx"},
	}
	return &harness{
		host:     h,
		prompt:   &scriptPrompter{},
		settings: testSettings(),
		state:    NewState(),
	}
}

func (h *harness) deps() Deps {
	return Deps{FS: h.host.FS, Process: h.host.Process, Drive: h.host.Drive, Archive: h.host.Archive}
}

func (h *harness) stepContext(id string) *StepContext {
	return &StepContext{
		ID:       id,
		State:    h.state,
		Deps:     h.deps(),
		Prompt:   h.prompt,
		Settings: h.settings,
	}
}

func (h *harness) run(id string) error {
	return DefaultCatalog()[id].Execute(context.Background(), h.stepContext(id))
}
