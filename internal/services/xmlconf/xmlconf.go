// Package xmlconf reads and writes the CameraHub and FLI XML documents.
package xmlconf

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

var ErrMalformed = errors.New("malformed xml")

func parse(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformed)
	}
	return doc, nil
}

// CameraNames returns the camera identifiers declared in a camerahub config.
// Camera elements are matched as <Camera> or <camera> anywhere in the tree;
// a name comes from the Name or Id attribute, else a Name or Id child. Order is
// preserved, blanks are skipped and repeats are dropped.
func CameraNames(data []byte) ([]string, error) {
	doc, err := parse(data)
	if err != nil {
		return nil, err
	}
	nodes := doc.FindElements("//Camera")
	if len(nodes) == 0 {
		nodes = doc.FindElements("//camera")
	}

	seen := map[string]bool{}
	var out []string
	for _, n := range nodes {
		name := cameraName(n)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, nil
}

func cameraName(el *etree.Element) string {
	for _, attr := range []string{"Name", "Id"} {
		if v := strings.TrimSpace(el.SelectAttrValue(attr, "")); v != "" {
			return v
		}
	}
	for _, tag := range []string{"Name", "Id"} {
		if c := el.FindElement(".//" + tag); c != nil {
			if v := strings.TrimSpace(c.Text()); v != "" {
				return v
			}
		}
	}
	return ""
}

// SiteName returns the trimmed SiteName of an FLI-config document. found is
// false when the element is absent.
func SiteName(data []byte) (name string, found bool, err error) {
	doc, err := parse(data)
	if err != nil {
		return "", false, err
	}
	el := doc.FindElement("//SiteName")
	if el == nil {
		return "", false, nil
	}
	return strings.TrimSpace(el.Text()), true, nil
}

// SetSiteName rewrites SiteName in place and serializes the document. ok is
// false, with data unchanged, when the document has no SiteName element.
func SetSiteName(data []byte, site string) (out []byte, ok bool, err error) {
	doc, err := parse(data)
	if err != nil {
		return nil, false, err
	}
	el := doc.FindElement("//SiteName")
	if el == nil {
		return data, false, nil
	}
	el.SetText(site)
	b, err := doc.WriteToBytes()
	if err != nil {
		return nil, false, fmt.Errorf("serialize FLI config: %w", err)
	}
	return b, true, nil
}
