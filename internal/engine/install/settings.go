package install

import (
	"path/filepath"

	"github.com/kayleschmoyer/Fv2/internal/services/xmlconf"
)

// Paths are the host locations the installer provisions.
type Paths struct {
	CameraHub       string
	CameraHubConfig string
	ProgramFiles    string
	ModelsOnnx      string
	ModelsTensorRT  string
	TensorRTTools   string
	FLIConfig       string
	FLI             string
	License         string
	PublicDesktop   string
	// Staging receives downloaded archives before extraction.
	Staging string
}

func (p Paths) FLIConfigFile() string { return filepath.Join(p.FLIConfig, "FLI-config.xml") }

// EngineAlias is the fixed engine name the FLI service loads.
func (p Paths) EngineAlias() string { return filepath.Join(p.ModelsTensorRT, "ensight-fli.engine") }

func (p Paths) CameraConfigFile(camera string) string {
	return filepath.Join(p.FLIConfig, camera+"-config.xml")
}

func (p Paths) ViewerCandidates() []string {
	return []string{
		filepath.Join(p.FLI, "Ensight.FLIv2.Viewer.exe"),
		filepath.Join(p.FLI, "FLIv2-Viewer", "Ensight.FLIv2.Viewer.exe"),
		filepath.Join(p.FLI, "Ensight.FLI2.Viewer.exe"),
	}
}

func (p Paths) ViewerShortcut() string { return filepath.Join(p.PublicDesktop, "FLIv2 Viewer.lnk") }

// DriveFiles are the Drive object ids of each package. An empty id means the
// operator supplies the file locally.
type DriveFiles struct {
	ExtraDlls     string
	TensorRTTools string
	OnnxModels    string
	FLIv2MSI      string
	Viewer        string
}

type Settings struct {
	Paths Paths
	Drive DriveFiles

	ServiceName       string
	Action1Image      string
	PreferTag         string
	LicenseUtilityURL string
	// FLI seeds FLI-config.xml; SiteName is asked for at run time.
	FLI xmlconf.FLIConfig
	// ToolPatterns name nested directories flattened after tool extraction.
	ToolPatterns []string
	// TrtexecArgs are appended to every engine build.
	TrtexecArgs []string
}

func DefaultPaths() Paths {
	return Paths{
		CameraHub:       `C:\Ensight\CameraHub`,
		CameraHubConfig: `C:\Ensight\CameraHub\camerahub-config.xml`,
		ProgramFiles:    `C:\Program Files\Ensight\FLIv2`,
		ModelsOnnx:      `C:\Ensight\FLI\Models\onnx`,
		ModelsTensorRT:  `C:\Ensight\FLI\Models\TensorRT`,
		TensorRTTools:   `C:\Ensight\FLI\Models\TensorRT\TensorRT-model-building-1013`,
		FLIConfig:       `C:\Ensight\FLI\Config`,
		FLI:             `C:\Ensight\FLI`,
		License:         `C:\Ensight\FLI\fli.lic`,
		PublicDesktop:   `C:\Users\Public\Desktop`,
		Staging:         `C:\Ensight\Staging`,
	}
}

func DefaultSettings() Settings {
	return Settings{
		Paths: DefaultPaths(),
		Drive: DriveFiles{
			ExtraDlls:     "1srqV8YE7VKI3Ibtk8jLc6Xoq-7Vq73Oi",
			TensorRTTools: "1SHbHNGEv0Qn3xiMZqvENkD_L4UvofnKQ",
			OnnxModels:    "1N783bwh6BidTxEgkkGQqQKsg0cGg0eeo",
		},
		ServiceName:       "EnsightFLIv2",
		Action1Image:      "action1_agent.exe",
		PreferTag:         "datature",
		LicenseUtilityURL: "https://drive.google.com/file/d/1RvRc8bEPTlo_Y56F8VsdUIiVLeCTUcOG/view?usp=drive_link",
		FLI: xmlconf.FLIConfig{
			APIHost:            "https://data.ensightful.io/v1",
			DBConnectionString: `Data Source=.\SQLEXPRESS;Initial Catalog=FliSpyData;Integrated Security=True`,
		},
		ToolPatterns: []string{"TensorRT-*", "TensorRT-model-building*"},
	}
}
