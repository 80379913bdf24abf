package mock

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kayleschmoyer/Fv2/internal/services/drive"
	"github.com/kayleschmoyer/Fv2/internal/services/process"
)

// Host bundles a simulated machine for demo runs.
type Host struct {
	FS      *FS
	Process *Process
	Drive   *Drive
	Archive *Archive
}

type HostOptions struct {
	// Seed files are present before the run.
	Seed map[string]string
	// Speed divides every simulated delay. Defaults to FV2_DEMO_SPEED or 1.
	Speed int
	// FailCommand makes commands whose line contains it exit with code 1.
	// Defaults to FV2_DEMO_FAIL.
	FailCommand string
}

var trtexecDemoLines = []string{
	"&&&& RUNNING TensorRT.trtexec [TensorRT v101300]",
	"[I] Start parsing network model.",
	"[I] Finished parsing network model.",
	"[I] [TRT] Local timing cache in use.",
	"[I] [TRT] Tactic: 0x0000000000000000 Time: 0.1",
	"[I] [TRT] Tactic: 0x0000000000000001 Time: 0.1",
	"[I] Engine built in 42.1 sec.",
	"[I] Engine saved",
	"[I] Starting inference",
	"[I] === Performance summary ===",
	"&&&& PASSED TensorRT.trtexec",
}

func NewHost(opt HostOptions) *Host {
	speed := opt.Speed
	if speed == 0 {
		speed = envInt("FV2_DEMO_SPEED", 1)
	}
	if speed < 1 {
		speed = 1
	}
	failCmd := opt.FailCommand
	if failCmd == "" {
		failCmd = strings.TrimSpace(os.Getenv("FV2_DEMO_FAIL"))
	}

	fsys := NewFS()
	for path, data := range opt.Seed {
		fsys.Put(path, data)
	}

	sleep := func(ctx context.Context, d time.Duration) error {
		t := time.NewTimer(d / time.Duration(speed))
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}

	proc := &Process{
		Elevated: true,
		Paths:    map[string]string{"nvidia-smi": "nvidia-smi"},
		Running:  map[string]bool{},
		Services: map[string]bool{},
	}
	proc.Handler = func(ctx context.Context, c process.Command) (process.Result, error) {
		line := c.String()
		if failCmd != "" && strings.Contains(line, failCmd) {
			if err := sleep(ctx, 300*time.Millisecond); err != nil {
				return process.Result{ExitCode: -1}, err
			}
			return process.Result{ExitCode: 1}, &process.ExitError{Command: line, Code: 1, Stderr: "simulated failure"}
		}
		switch {
		case strings.Contains(c.Name, "trtexec"):
			for _, l := range trtexecDemoLines {
				if err := sleep(ctx, 250*time.Millisecond); err != nil {
					return process.Result{ExitCode: -1}, err
				}
				if c.OnLine != nil {
					c.OnLine(l, false)
				}
			}
			for _, a := range c.Args {
				if engine, ok := strings.CutPrefix(a, "--saveEngine="); ok {
					fsys.Put(engine, "engine")
				}
			}
			return process.Result{Stdout: strings.Join(trtexecDemoLines, "\n")}, nil
		case strings.Contains(c.Name, "nvidia-smi") && len(c.Args) > 0 && c.Args[0] == "-q":
			return process.Result{Stdout: "Max Clocks\n    Graphics : 2100 MHz\n    SM : 2100 MHz\n    Memory : 7001 MHz\n"}, nil
		default:
			if err := sleep(ctx, 600*time.Millisecond); err != nil {
				return process.Result{ExitCode: -1}, err
			}
			return process.Result{}, nil
		}
	}

	drv := &Drive{
		FS: fsys,
		Default: func(id string, opt drive.FetchOptions) (drive.File, bool) {
			name := id + ".zip"
			switch opt.Suffix {
			case ".onnx":
				name = "datature-yolov8.onnx"
			case ".msi":
				name = "FLIv2.msi"
			}
			return drive.File{ID: id, Name: name, ModifiedTime: time.Now()}, true
		},
	}

	arc := &Archive{
		FS: fsys,
		Entries: map[string][]string{
			"temp-dlls.zip":           {"nvinfer_10.dll", "nvonnxparser_10.dll", "cudart64_12.dll"},
			"temp-tensorrt-tools.zip": {"trtexec.exe", "nvinfer_10.dll"},
			"temp-viewer.zip":         {"Ensight.FLIv2.Viewer.exe", "Ensight.FLIv2.Viewer.dll"},
		},
	}

	return &Host{FS: fsys, Process: proc, Drive: drv, Archive: arc}
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
