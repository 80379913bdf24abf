// Package config loads installer settings from layered YAML or TOML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/kayleschmoyer/Fv2/internal/engine/install"
	"github.com/kayleschmoyer/Fv2/internal/services/drive"
)

type Config struct {
	Paths     Paths                 `yaml:"paths" toml:"paths" json:"paths,omitempty"`
	Drive     Drive                 `yaml:"drive" toml:"drive" json:"drive,omitempty"`
	FLI       FLI                   `yaml:"fli" toml:"fli" json:"fli,omitempty"`
	Install   Install               `yaml:"install" toml:"install" json:"install,omitempty"`
	Steps     map[string]StepConfig `yaml:"steps" toml:"steps" json:"steps,omitempty"`
	Log       Log                   `yaml:"log" toml:"log" json:"log,omitempty"`
	History   History               `yaml:"history" toml:"history" json:"history,omitempty"`
	Telemetry Telemetry             `yaml:"telemetry" toml:"telemetry" json:"telemetry,omitempty"`
	UI        UI                    `yaml:"ui" toml:"ui" json:"ui,omitempty"`
}

type Paths struct {
	CameraHub       string `yaml:"camera_hub" toml:"camera_hub" json:"camera_hub,omitempty"`
	CameraHubConfig string `yaml:"camera_hub_config" toml:"camera_hub_config" json:"camera_hub_config,omitempty"`
	ProgramFiles    string `yaml:"program_files" toml:"program_files" json:"program_files,omitempty"`
	ModelsOnnx      string `yaml:"models_onnx" toml:"models_onnx" json:"models_onnx,omitempty"`
	ModelsTensorRT  string `yaml:"models_tensorrt" toml:"models_tensorrt" json:"models_tensorrt,omitempty"`
	TensorRTTools   string `yaml:"tensorrt_tools" toml:"tensorrt_tools" json:"tensorrt_tools,omitempty"`
	FLIConfig       string `yaml:"fli_config" toml:"fli_config" json:"fli_config,omitempty"`
	FLI             string `yaml:"fli" toml:"fli" json:"fli,omitempty"`
	License         string `yaml:"license" toml:"license" json:"license,omitempty"`
	PublicDesktop   string `yaml:"public_desktop" toml:"public_desktop" json:"public_desktop,omitempty"`
	Staging         string `yaml:"staging" toml:"staging" json:"staging,omitempty"`
}

type Drive struct {
	ExtraDlls     string `yaml:"extra_dlls" toml:"extra_dlls" json:"extra_dlls,omitempty"`
	TensorRTTools string `yaml:"tensorrt_tools" toml:"tensorrt_tools" json:"tensorrt_tools,omitempty"`
	OnnxModels    string `yaml:"onnx_models" toml:"onnx_models" json:"onnx_models,omitempty"`
	FLIv2MSI      string `yaml:"fliv2_msi" toml:"fliv2_msi" json:"fliv2_msi,omitempty"`
	Viewer        string `yaml:"viewer" toml:"viewer" json:"viewer,omitempty"`

	CredentialsFile string `yaml:"credentials_file" toml:"credentials_file" json:"credentials_file,omitempty"`
	TokenReuse      string `yaml:"token_reuse" toml:"token_reuse" json:"token_reuse,omitempty" jsonschema:"enum=cache,enum=reauth"`
	PreferTag       string `yaml:"prefer_tag" toml:"prefer_tag" json:"prefer_tag,omitempty"`
	MaxRetries      int    `yaml:"max_retries" toml:"max_retries" json:"max_retries,omitempty" jsonschema:"minimum=0,maximum=20"`
}

type FLI struct {
	APIHost            string `yaml:"api_host" toml:"api_host" json:"api_host,omitempty"`
	APIKey             string `yaml:"api_key" toml:"api_key" json:"api_key,omitempty"`
	DBConnectionString string `yaml:"db_connection_string" toml:"db_connection_string" json:"db_connection_string,omitempty"`
}

type Install struct {
	ServiceName       string   `yaml:"service_name" toml:"service_name" json:"service_name,omitempty"`
	Action1Image      string   `yaml:"action1_image" toml:"action1_image" json:"action1_image,omitempty"`
	LicenseUtilityURL string   `yaml:"license_utility_url" toml:"license_utility_url" json:"license_utility_url,omitempty"`
	ToolPatterns      []string `yaml:"tool_patterns" toml:"tool_patterns" json:"tool_patterns,omitempty"`
	TrtexecArgs       []string `yaml:"trtexec_args" toml:"trtexec_args" json:"trtexec_args,omitempty"`
	// Redo pre-sets installation options, e.g. ["rebuildEngine"].
	Redo []string `yaml:"redo" toml:"redo" json:"redo,omitempty"`
}

type StepConfig struct {
	Enabled *bool  `yaml:"enabled" toml:"enabled" json:"enabled,omitempty"`
	When    string `yaml:"when" toml:"when" json:"when,omitempty"`
}

type Log struct {
	Level string `yaml:"level" toml:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Dir   string `yaml:"dir" toml:"dir" json:"dir,omitempty"`
}

type History struct {
	Enabled *bool  `yaml:"enabled" toml:"enabled" json:"enabled,omitempty"`
	Path    string `yaml:"path" toml:"path" json:"path,omitempty"`
}

type Telemetry struct {
	Exporter string `yaml:"exporter" toml:"exporter" json:"exporter,omitempty" jsonschema:"enum=none,enum=log"`
}

type UI struct {
	Mode    string `yaml:"mode" toml:"mode" json:"mode,omitempty" jsonschema:"enum=auto,enum=tui,enum=cli"`
	NoColor bool   `yaml:"no_color" toml:"no_color" json:"no_color,omitempty"`
}

// Default mirrors install.DefaultSettings plus the ambient defaults.
func Default() Config {
	s := install.DefaultSettings()
	p := s.Paths
	return Config{
		Paths: Paths{
			CameraHub:       p.CameraHub,
			CameraHubConfig: p.CameraHubConfig,
			ProgramFiles:    p.ProgramFiles,
			ModelsOnnx:      p.ModelsOnnx,
			ModelsTensorRT:  p.ModelsTensorRT,
			TensorRTTools:   p.TensorRTTools,
			FLIConfig:       p.FLIConfig,
			FLI:             p.FLI,
			License:         p.License,
			PublicDesktop:   p.PublicDesktop,
			Staging:         p.Staging,
		},
		Drive: Drive{
			ExtraDlls:     s.Drive.ExtraDlls,
			TensorRTTools: s.Drive.TensorRTTools,
			OnnxModels:    s.Drive.OnnxModels,
			FLIv2MSI:      s.Drive.FLIv2MSI,
			Viewer:        s.Drive.Viewer,
			TokenReuse:    string(drive.ReuseCache),
			PreferTag:     s.PreferTag,
			MaxRetries:    4,
		},
		FLI: FLI{
			APIHost:            s.FLI.APIHost,
			APIKey:             s.FLI.APIKey,
			DBConnectionString: s.FLI.DBConnectionString,
		},
		Install: Install{
			ServiceName:       s.ServiceName,
			Action1Image:      s.Action1Image,
			LicenseUtilityURL: s.LicenseUtilityURL,
			ToolPatterns:      s.ToolPatterns,
		},
		Steps:     map[string]StepConfig{},
		Log:       Log{Level: "info"},
		Telemetry: Telemetry{Exporter: "none"},
		UI:        UI{Mode: "auto"},
	}
}

// SearchPaths are the implicit config files, lowest precedence first.
func SearchPaths() []string {
	var out []string
	if pd := os.Getenv("ProgramData"); pd != "" {
		out = append(out, filepath.Join(pd, "Ensight", "fv2.yaml"))
	}
	if dir, err := os.UserConfigDir(); err == nil {
		out = append(out, filepath.Join(dir, "fv2", "config.yaml"), filepath.Join(dir, "fv2", "config.toml"))
	}
	return out
}

// Load layers Default, every existing implicit file and then explicit (which
// must exist). It returns the files that were applied.
func Load(explicit string) (Config, []string, error) {
	cfg := Default()
	var applied []string
	for _, p := range SearchPaths() {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := cfg.MergeFile(p); err != nil {
			return cfg, applied, err
		}
		applied = append(applied, p)
	}
	if explicit != "" {
		if err := cfg.MergeFile(explicit); err != nil {
			return cfg, applied, err
		}
		applied = append(applied, explicit)
	}
	return cfg, applied, cfg.Validate()
}

// MergeFile validates path against the schema and overlays its values.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	format := formatOf(path)
	if err := ValidateDocument(data, format); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := c.merge(data, format); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (c *Config) merge(data []byte, format string) error {
	switch format {
	case "toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(c); err != nil {
			return fmt.Errorf("decode toml: %w", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decode yaml: %w", err)
		}
	}
	return nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return "toml"
	default:
		return "yaml"
	}
}

// Validate reports every semantic problem at once.
func (c Config) Validate() error {
	var errs []error
	if c.Drive.TokenReuse != "" && c.Drive.TokenReuse != string(drive.ReuseCache) && c.Drive.TokenReuse != string(drive.ReuseReauth) {
		errs = append(errs, fmt.Errorf("drive.token_reuse: must be cache or reauth, got %q", c.Drive.TokenReuse))
	}
	if c.Drive.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("drive.max_retries: must not be negative"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Telemetry.Exporter {
	case "", "none", "log":
	default:
		errs = append(errs, fmt.Errorf("telemetry.exporter: unknown exporter %q", c.Telemetry.Exporter))
	}
	switch c.UI.Mode {
	case "", "auto", "tui", "cli":
	default:
		errs = append(errs, fmt.Errorf("ui.mode: unknown mode %q", c.UI.Mode))
	}
	for _, r := range c.Install.Redo {
		if _, err := install.ParseOption(r); err != nil {
			errs = append(errs, fmt.Errorf("install.redo: %w", err))
		}
	}
	for _, pat := range c.Install.ToolPatterns {
		if _, err := filepath.Match(pat, ""); err != nil {
			errs = append(errs, fmt.Errorf("install.tool_patterns: %q: %w", pat, err))
		}
	}

	known := map[string]bool{}
	for _, d := range install.DefaultSteps() {
		known[d.ID] = true
	}
	for id, sc := range c.Steps {
		if !known[id] {
			errs = append(errs, fmt.Errorf("steps.%s: unknown step", id))
			continue
		}
		if sc.When != "" {
			if _, err := compileWhen(sc.When); err != nil {
				errs = append(errs, fmt.Errorf("steps.%s.when: %w", id, err))
			}
		}
	}
	for name, p := range map[string]string{
		"paths.camera_hub":     c.Paths.CameraHub,
		"paths.program_files":  c.Paths.ProgramFiles,
		"paths.tensorrt_tools": c.Paths.TensorRTTools,
		"paths.fli":            c.Paths.FLI,
		"paths.staging":        c.Paths.Staging,
	} {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("%s: must not be empty", name))
		}
	}
	return errors.Join(errs...)
}

// Settings converts c into the engine's settings.
func (c Config) Settings() install.Settings {
	s := install.DefaultSettings()
	s.Paths = install.Paths{
		CameraHub:       c.Paths.CameraHub,
		CameraHubConfig: c.Paths.CameraHubConfig,
		ProgramFiles:    c.Paths.ProgramFiles,
		ModelsOnnx:      c.Paths.ModelsOnnx,
		ModelsTensorRT:  c.Paths.ModelsTensorRT,
		TensorRTTools:   c.Paths.TensorRTTools,
		FLIConfig:       c.Paths.FLIConfig,
		FLI:             c.Paths.FLI,
		License:         c.Paths.License,
		PublicDesktop:   c.Paths.PublicDesktop,
		Staging:         c.Paths.Staging,
	}
	s.Drive = install.DriveFiles{
		ExtraDlls:     c.Drive.ExtraDlls,
		TensorRTTools: c.Drive.TensorRTTools,
		OnnxModels:    c.Drive.OnnxModels,
		FLIv2MSI:      c.Drive.FLIv2MSI,
		Viewer:        c.Drive.Viewer,
	}
	s.PreferTag = c.Drive.PreferTag
	s.FLI.APIHost = c.FLI.APIHost
	s.FLI.APIKey = c.FLI.APIKey
	s.FLI.DBConnectionString = c.FLI.DBConnectionString
	s.ServiceName = c.Install.ServiceName
	s.Action1Image = c.Install.Action1Image
	s.LicenseUtilityURL = c.Install.LicenseUtilityURL
	s.ToolPatterns = c.Install.ToolPatterns
	s.TrtexecArgs = c.Install.TrtexecArgs
	return s
}

// StepDefs applies per-step enabled overrides to the default pipeline.
func (c Config) StepDefs() []install.StepDef {
	defs := install.DefaultSteps()
	for i, d := range defs {
		if sc, ok := c.Steps[d.ID]; ok && sc.Enabled != nil {
			defs[i].Enabled = *sc.Enabled
		}
	}
	return defs
}

func (c Config) RedoOptions() []install.Option {
	var out []install.Option
	for _, r := range c.Install.Redo {
		if o, err := install.ParseOption(r); err == nil {
			out = append(out, o)
		}
	}
	return out
}

func (c Config) HistoryEnabled() bool {
	return c.History.Enabled == nil || *c.History.Enabled
}

// Marshal renders c in the format implied by ext (".toml" or YAML).
func (c Config) Marshal(ext string) ([]byte, error) {
	if formatOf("x"+ext) == "toml" {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return yaml.Marshal(c)
}
