// Package drive fetches installer packages from Google Drive.
package drive

import (
	"errors"
	"time"
)

const (
	mimeFolder   = "application/vnd.google-apps.folder"
	mimeShortcut = "application/vnd.google-apps.shortcut"
)

var (
	ErrAuth     = errors.New("google drive authentication failed")
	ErrNotFound = errors.New("drive object not found")
	ErrNoMatch  = errors.New("no matching file in drive folder")
)

// File is the subset of Drive file metadata the installer uses.
type File struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mimeType"`
	ModifiedTime time.Time `json:"modifiedTime"`
	Size         int64     `json:"size,string,omitempty"`

	ShortcutDetails *struct {
		TargetID       string `json:"targetId"`
		TargetMimeType string `json:"targetMimeType"`
	} `json:"shortcutDetails,omitempty"`
}

func (f File) IsFolder() bool   { return f.MimeType == mimeFolder }
func (f File) IsShortcut() bool { return f.MimeType == mimeShortcut && f.ShortcutDetails != nil }

type fileList struct {
	Files         []File `json:"files"`
	NextPageToken string `json:"nextPageToken"`
}
