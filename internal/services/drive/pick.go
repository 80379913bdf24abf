package drive

import (
	"fmt"
	"strings"
)

// PickFile chooses one download from a folder listing. Only names ending in
// suffix (case-insensitive) are eligible. Any eligible name containing
// preferTag wins; otherwise the most recently modified wins. Ties keep the
// listing order.
func PickFile(files []File, suffix, preferTag string) (File, error) {
	suffix = strings.ToLower(suffix)
	preferTag = strings.ToLower(strings.TrimSpace(preferTag))

	var (
		preferred File
		newest    File
		havePref  bool
		haveAny   bool
	)
	for _, f := range files {
		if f.IsFolder() {
			continue
		}
		name := strings.ToLower(f.Name)
		if suffix != "" && !strings.HasSuffix(name, suffix) {
			continue
		}
		if preferTag != "" && strings.Contains(name, preferTag) {
			if !havePref || f.ModifiedTime.After(preferred.ModifiedTime) {
				preferred, havePref = f, true
			}
		}
		if !haveAny || f.ModifiedTime.After(newest.ModifiedTime) {
			newest, haveAny = f, true
		}
	}

	switch {
	case havePref:
		return preferred, nil
	case haveAny:
		return newest, nil
	default:
		return File{}, fmt.Errorf("%w: want *%s", ErrNoMatch, suffix)
	}
}
