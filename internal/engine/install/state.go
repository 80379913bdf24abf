package install

import (
	"fmt"
	"sort"
	"strings"
)

// Option names a redo override set when a step finds existing work.
type Option string

const (
	OptRedownloadDlls     Option = "redownloadDlls"
	OptRedownloadTensorRT Option = "redownloadTensorRT"
	OptRedownloadOnnx     Option = "redownloadOnnx"
	OptRebuildEngine      Option = "rebuildEngine"
	OptRegenerateLicense  Option = "regenerateLicense"
	OptInstallAction1     Option = "installAction1"
)

var allOptions = []Option{
	OptRedownloadDlls,
	OptRedownloadTensorRT,
	OptRedownloadOnnx,
	OptRebuildEngine,
	OptRegenerateLicense,
	OptInstallAction1,
}

func AllOptions() []Option { return append([]Option(nil), allOptions...) }

func ParseOption(s string) (Option, error) {
	s = strings.TrimSpace(s)
	for _, o := range allOptions {
		if strings.EqualFold(s, string(o)) {
			return o, nil
		}
	}
	return "", fmt.Errorf("unknown option %q", s)
}

// Options maps each redo option to its value; missing keys are false.
// Values live for the process only.
type Options map[Option]bool

func (o Options) Enabled(opt Option) bool { return o[opt] }

func (o Options) Set(opt Option, v bool) { o[opt] = v }

// Snapshot returns a copy keyed by name, for history records.
func (o Options) Snapshot() map[string]bool {
	out := make(map[string]bool, len(allOptions))
	for _, opt := range allOptions {
		out[string(opt)] = o[opt]
	}
	return out
}

func (o Options) String() string {
	var on []string
	for opt, v := range o {
		if v {
			on = append(on, string(opt))
		}
	}
	sort.Strings(on)
	return strings.Join(on, ",")
}

// State is the cross-step record handed to every action. Fields are advisory:
// a reader that finds one empty must resolve the value itself, usually by
// asking the operator.
type State struct {
	Options Options

	CameraNames     []string
	BuiltEnginePath string
	MSIPath         string
	ViewerExe       string
	// Downloaded maps a step id to the file name it fetched.
	Downloaded map[string]string
}

func NewState() *State {
	return &State{Options: Options{}, Downloaded: map[string]string{}}
}
