package recording

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oszuidwest/zwfm-recorder/internal/config"
	"github.com/oszuidwest/zwfm-recorder/internal/types"
)

func TestNextFilenameTimestamp(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStorage(dir, false, nil)
	s.now = func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) }

	got, err := s.NextFilename(types.SourceRadio, "flac")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "R_FM_250314-093000.flac"); got != want {
		t.Fatalf("first name: got %q, want %q", got, want)
	}

	if err := os.WriteFile(got, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = s.NextFilename(types.SourceRadio, "flac")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "R_FM_250314-093000_2.flac"); got != want {
		t.Errorf("bumped name: got %q, want %q", got, want)
	}
}

func TestNextFilenameNumbered(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStorage(dir, true, nil)
	for _, name := range []string{"R_MIC_0001.wav", "R_MIC_0002.wav"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.NextFilename(types.SourceMic, "wav")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "R_MIC_0003.wav"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	got, _ = s.NextFilename(types.SourceLine, "wav")
	if want := filepath.Join(dir, "R_LINE_0001.wav"); got != want {
		t.Errorf("line: got %q, want %q", got, want)
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "takes")
	s := NewFileStorage(dir, false, nil)

	created, err := s.EnsureDir()
	if err != nil || !created {
		t.Fatalf("first EnsureDir: created=%v err=%v", created, err)
	}
	created, err = s.EnsureDir()
	if err != nil || created {
		t.Errorf("second EnsureDir: created=%v err=%v", created, err)
	}
}

type busy bool

func (b busy) DiskActive() bool { return bool(b) }

func TestDiskActive(t *testing.T) {
	if NewFileStorage(t.TempDir(), false, nil).DiskActive() {
		t.Error("DiskActive without activity source: got true")
	}
	if !NewFileStorage(t.TempDir(), false, busy(true)).DiskActive() {
		t.Error("DiskActive: got false, want true")
	}
}

func TestSplitDue(t *testing.T) {
	if SplitBytes(0) != 0 || SplitBytes(16) != 0 || SplitBytes(15) != 1792<<20 {
		t.Errorf("SplitBytes: %d %d %d", SplitBytes(0), SplitBytes(16), SplitBytes(15))
	}
	cfg := config.SplitConfig{Method: types.SplitBySize}
	due, ceiling := SplitDue(cfg, 0, types.MaxFileBytes-1)
	if due || ceiling {
		t.Errorf("below ceiling: due=%v ceiling=%v", due, ceiling)
	}
	due, ceiling = SplitDue(cfg, 0, types.MaxFileBytes)
	if !due || !ceiling {
		t.Errorf("at ceiling: due=%v ceiling=%v", due, ceiling)
	}
}
