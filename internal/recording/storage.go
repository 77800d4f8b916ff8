package recording

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oszuidwest/zwfm-recorder/internal/audio"
	"github.com/oszuidwest/zwfm-recorder/internal/types"
	"github.com/oszuidwest/zwfm-recorder/internal/util"
)

// timestampLayout names files after their start time, for example
// R_LINE_250314-093000.wav.
const timestampLayout = "060102-150405"

// maxNumberedFiles bounds the numbered filename search.
const maxNumberedFiles = 9999

// ErrNoFreeFilename is returned when every candidate name is taken.
var ErrNoFreeFilename = errors.New("no free filename")

// FileStorage writes takes into one directory on the local filesystem.
type FileStorage struct {
	dir      string
	numbered bool
	activity audio.ActivitySource
	now      func() time.Time
}

// NewFileStorage returns storage rooted at dir. With numbered set, names are
// R_MIC_0001 style instead of timestamps. activity may be nil.
func NewFileStorage(dir string, numbered bool, activity audio.ActivitySource) *FileStorage {
	return &FileStorage{dir: dir, numbered: numbered, activity: activity, now: time.Now}
}

// Configure changes the directory and naming scheme for new files.
func (f *FileStorage) Configure(dir string, numbered bool) {
	f.dir, f.numbered = dir, numbered
}

// Dir returns the recording directory.
func (f *FileStorage) Dir() string { return f.dir }

// EnsureDir creates the recording directory and checks that it is writable.
func (f *FileStorage) EnsureDir() (bool, error) {
	created, err := util.CheckPathWritable(f.dir)
	if err != nil {
		return created, fmt.Errorf("recording directory %s: %w", f.dir, err)
	}
	return created, nil
}

// NextFilename returns an unused path for a take from src.
func (f *FileStorage) NextFilename(src types.Source, ext string) (string, error) {
	prefix := src.FilePrefix()
	if f.numbered {
		for n := 1; n <= maxNumberedFiles; n++ {
			path := filepath.Join(f.dir, fmt.Sprintf("%s%04d.%s", prefix, n, ext))
			if !exists(path) {
				return path, nil
			}
		}
		return "", ErrNoFreeFilename
	}

	base := prefix + f.now().Format(timestampLayout)
	path := filepath.Join(f.dir, base+"."+ext)
	for n := 2; exists(path); n++ {
		if n > maxNumberedFiles {
			return "", ErrNoFreeFilename
		}
		path = filepath.Join(f.dir, fmt.Sprintf("%s_%d.%s", base, n, ext))
	}
	return path, nil
}

// DiskActive reports whether the audio backend is writing.
func (f *FileStorage) DiskActive() bool {
	return f.activity != nil && f.activity.DiskActive()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
