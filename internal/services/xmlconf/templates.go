package xmlconf

import (
	"fmt"

	"github.com/beevik/etree"
)

const (
	xsdNS = "http://www.w3.org/2001/XMLSchema"
	xsiNS = "http://www.w3.org/2001/XMLSchema-instance"
)

// FLIConfig holds the values written into FLI-config.xml.
type FLIConfig struct {
	APIHost            string
	APIKey             string
	DBConnectionString string
	SiteName           string
}

func RenderFLIConfig(c FLIConfig) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0"`)
	root := doc.CreateElement("FLIGlobalConfig")
	root.CreateAttr("xmlns:xsd", xsdNS)
	root.CreateAttr("xmlns:xsi", xsiNS)

	api := root.CreateElement("EnsightAPIConfig")
	leaf(api, "Host", c.APIHost)
	leaf(api, "APIKey", c.APIKey)
	leaf(root, "DBConnectionString", c.DBConnectionString)
	leaf(root, "SiteName", c.SiteName)

	return write(doc, "FLI config")
}

type kv struct {
	tag  string
	text string
	kids []kv
}

func (n kv) build(parent *etree.Element) {
	el := parent.CreateElement(n.tag)
	if len(n.kids) == 0 {
		el.SetText(n.text)
		return
	}
	for _, k := range n.kids {
		k.build(el)
	}
}

func v(tag, text string) kv       { return kv{tag: tag, text: text} }
func g(tag string, kids ...kv) kv { return kv{tag: tag, kids: kids} }

func frame() []kv { return []kv{v("Width", "640"), v("Height", "480")} }

func line(x1, y1, x2, y2 string) []kv {
	return []kv{v("X1", x1), v("Y1", y1), v("X2", x2), v("Y2", y2)}
}

// cameraDefaults is the detector tuning every new camera starts with.
var cameraDefaults = g("FLIConfig",
	v("DetectorType", "TensorRT"),
	v("MotionDetectionSensitivity", "40"),
	v("DetectionInterval", "2"),
	v("ConfidenceThreshold", "40"),
	g("Frame", frame()...),
	g("ROI",
		g("Location", v("X", "0"), v("Y", "0")),
		g("Size", frame()...),
		v("X", "0"), v("Y", "0"), v("Width", "640"), v("Height", "480"),
	),
	kv{tag: "ROEs"},
	g("CountLineUp", line("0", "240", "480", "240")...),
	g("CountLineDown", line("0", "215", "640", "215")...),
	v("LargeBoundingBoxMaxWidth", "350"),
	v("LargeBoundingBoxMaxHeight", "350"),
	v("MaximumAllowedCountedDistance", "140"),
	v("MinimumSameObjectOverlap", "0.17"),
	v("RecordCountFrames", "false"),
	v("RecordLowConfidenceFrames", "false"),
	v("ReportFLI", "true"),
	v("DetectionBoxScale", "1"),
	v("FramesReceivedTimeoutMs", "500"),
	v("AllowTurnarounds", "true"),
	v("PersistDetections", "true"),
)

// RenderCameraConfig returns a default per-camera plugin config.
func RenderCameraConfig(cameraName string) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	root := doc.CreateElement("PluginConfig")
	root.CreateAttr("xmlns:xsd", xsdNS)
	root.CreateAttr("xmlns:xsi", xsiNS)

	leaf(root, "CameraName", cameraName)
	leaf(root, "EnhancedVisuals", "true")
	cameraDefaults.build(root)

	return write(doc, "camera config")
}

func leaf(parent *etree.Element, tag, text string) {
	parent.CreateElement(tag).SetText(text)
}

func write(doc *etree.Document, what string) ([]byte, error) {
	doc.Indent(2)
	b, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", what, err)
	}
	return b, nil
}
