package drive

import (
	"errors"
	"testing"
	"time"
)

func TestPickFile(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return t0.Add(time.Duration(h) * time.Hour) }

	cases := []struct {
		name   string
		files  []File
		suffix string
		tag    string
		want   string
	}{
		{
			name: "newest wins without tag",
			files: []File{
				{ID: "1", Name: "yolo-a.onnx", ModifiedTime: at(1)},
				{ID: "2", Name: "yolo-b.onnx", ModifiedTime: at(3)},
				{ID: "3", Name: "notes.txt", ModifiedTime: at(9)},
			},
			suffix: ".onnx",
			want:   "2",
		},
		{
			name: "preferred tag beats newer",
			files: []File{
				{ID: "1", Name: "datature-yolov8.onnx", ModifiedTime: at(1)},
				{ID: "2", Name: "other.onnx", ModifiedTime: at(5)},
			},
			suffix: ".onnx",
			tag:    "datature",
			want:   "1",
		},
		{
			name: "newest among preferred",
			files: []File{
				{ID: "1", Name: "Datature-v1.ONNX", ModifiedTime: at(1)},
				{ID: "2", Name: "datature-v2.onnx", ModifiedTime: at(2)},
			},
			suffix: ".onnx",
			tag:    "datature",
			want:   "2",
		},
		{
			name: "tie keeps listing order",
			files: []File{
				{ID: "first", Name: "a.onnx", ModifiedTime: at(2)},
				{ID: "second", Name: "b.onnx", ModifiedTime: at(2)},
			},
			suffix: ".onnx",
			want:   "first",
		},
		{
			name: "folders skipped",
			files: []File{
				{ID: "dir", Name: "old.onnx", MimeType: mimeFolder, ModifiedTime: at(9)},
				{ID: "f", Name: "m.onnx", ModifiedTime: at(1)},
			},
			suffix: ".onnx",
			want:   "f",
		},
	}
	for _, tc := range cases {
		got, err := PickFile(tc.files, tc.suffix, tc.tag)
		if err != nil {
			t.Fatalf("%s: PickFile error: %v", tc.name, err)
		}
		if got.ID != tc.want {
			t.Fatalf("%s: PickFile=%q; want %q", tc.name, got.ID, tc.want)
		}
	}
}

func TestPickFileNoMatch(t *testing.T) {
	t.Parallel()

	_, err := PickFile([]File{{Name: "readme.txt"}}, ".onnx", "datature")
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("err=%v; want ErrNoMatch", err)
	}
}
