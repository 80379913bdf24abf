package install

const (
	StepCheckAdmin           = "check-admin"
	StepCheckExistingInstall = "check-existing-install"
	StepCheckExistingService = "check-existing-service"
	StepCreateCameraHub      = "create-camera-hub"
	StepPlaceCameraConfig    = "place-camera-config"
	StepParseCameraConfig    = "parse-camera-config"
	StepCreateFLIv2Dir       = "create-fliv2-dir"
	StepDownloadDlls         = "download-dlls"
	StepCreateModelsDir      = "create-models-dir"
	StepDownloadTensorRT     = "download-tensorrt-tools"
	StepDownloadModels       = "download-models"
	StepBuildTensorRT        = "build-tensorrt"
	StepPlaceTensorRTModel   = "place-tensorrt-model"
	StepLockGPUClocks        = "lock-gpu-clocks"
	StepCreateCameraConfigs  = "create-camera-configs"
	StepVerifyFLIConfig      = "verify-fli-config"
	StepLicenseFLI           = "license-fli"
	StepDownloadFLIv2MSI     = "download-fliv2-msi"
	StepInstallFLIv2         = "install-fliv2"
	StepDownloadViewer       = "download-viewer"
	StepInstallAction1       = "install-action1"
	StepVerifyInstallation   = "verify-installation"
)

// DefaultSteps is the provisioning pipeline in execution order.
func DefaultSteps() []StepDef {
	return []StepDef{
		{StepCheckAdmin, "Verify Administrator Access", "Ensure the installer is running with elevated privileges", true},
		{StepCheckExistingInstall, "Check Existing Installation", "Detect existing FLIv2 DLLs and confirm re-download", true},
		{StepCheckExistingService, "Check Existing Service", "Verify EnsightFLIv2 service is not already installed", true},
		{StepCreateCameraHub, "Create Camera Hub Directory", `Create C:\Ensight\CameraHub folder`, true},
		{StepPlaceCameraConfig, "Place Camera XML Config", `Ensure camerahub-config.xml is in C:\Ensight\CameraHub`, true},
		{StepParseCameraConfig, "Verify CameraHub Config", "Read camerahub-config.xml and list cameras", true},
		{StepCreateFLIv2Dir, "Create FLIv2 Directory", `Create C:\Program Files\Ensight\FLIv2 folder`, true},
		{StepDownloadDlls, "Download and Extract DLLs", "Download DLL package from Google Drive and extract to FLIv2 folder", true},
		{StepCreateModelsDir, "Create Models Directory", `Create C:\Ensight\FLI\Models\onnx and TensorRT folders`, true},
		{StepDownloadTensorRT, "Download TensorRT Build Tools", "Download and extract TensorRT tools", true},
		{StepDownloadModels, "Download ONNX Models", "Download latest datature-yolov8 ONNX model", true},
		{StepBuildTensorRT, "Build TensorRT Model", "Convert ONNX model to TensorRT engine", true},
		{StepPlaceTensorRTModel, "Place TensorRT Model", "Move .engine file and create ensight-fli.engine copy", true},
		{StepLockGPUClocks, "Lock GPU Clocks", "Lock NVIDIA GPU clocks to max if available", true},
		{StepCreateCameraConfigs, "Create Camera Configs", "Generate missing per-camera config XML files", true},
		{StepVerifyFLIConfig, "Verify FLI Config", `Check for FLI-config.xml in C:\Ensight\FLI\Config`, true},
		{StepLicenseFLI, "License FLI", `Verify fli.lic is generated and placed in C:\Ensight\FLI`, true},
		{StepDownloadFLIv2MSI, "Download FLIv2 MSI", "Download latest FLIv2 installer from Google Drive", true},
		{StepInstallFLIv2, "Install FLIv2", "Run FLIv2 MSI installer", true},
		{StepDownloadViewer, "Download FLIv2 Viewer", `Download viewer and place in C:\Ensight\FLI`, true},
		{StepInstallAction1, "Install Action1 Agent", "Ensure Action1 agent is installed and running", true},
		{StepVerifyInstallation, "Verify Installation", "Validate viewer, engine, and config files are present", true},
	}
}

// DefaultCatalog binds every default step id to its action.
func DefaultCatalog() Catalog {
	return Catalog{
		StepCheckAdmin:           ActionFunc(checkAdmin),
		StepCheckExistingInstall: ActionFunc(checkExistingInstall),
		StepCheckExistingService: ActionFunc(checkExistingService),
		StepCreateCameraHub:      ActionFunc(createCameraHub),
		StepPlaceCameraConfig:    ActionFunc(placeCameraConfig),
		StepParseCameraConfig:    ActionFunc(parseCameraConfig),
		StepCreateFLIv2Dir:       ActionFunc(createFLIv2Dir),
		StepDownloadDlls:         ActionFunc(downloadDlls),
		StepCreateModelsDir:      ActionFunc(createModelsDir),
		StepDownloadTensorRT:     ActionFunc(downloadTensorRTTools),
		StepDownloadModels:       ActionFunc(downloadModels),
		StepBuildTensorRT:        ActionFunc(buildTensorRT),
		StepPlaceTensorRTModel:   ActionFunc(placeTensorRTModel),
		StepLockGPUClocks:        ActionFunc(lockGPUClocks),
		StepCreateCameraConfigs:  ActionFunc(createCameraConfigs),
		StepVerifyFLIConfig:      ActionFunc(verifyFLIConfig),
		StepLicenseFLI:           ActionFunc(licenseFLI),
		StepDownloadFLIv2MSI:     ActionFunc(downloadFLIv2MSI),
		StepInstallFLIv2:         ActionFunc(installFLIv2),
		StepDownloadViewer:       ActionFunc(downloadViewer),
		StepInstallAction1:       ActionFunc(installAction1),
		StepVerifyInstallation:   ActionFunc(verifyInstallation),
	}
}

// DefaultPreChecks are the questions the operator must affirm before a run.
func DefaultPreChecks() []PreCheckDef {
	return []PreCheckDef{{
		ID:          "config-generated",
		Question:    "Have you generated the Camera Hub config and placed it on the server?",
		Description: "This includes downloading the site config from xlsx and importing it into the portal config generator.",
	}}
}

type PreCheckDef struct {
	ID          string
	Question    string
	Description string
}
