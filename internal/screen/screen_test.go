package screen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oszuidwest/zwfm-recorder/internal/audio"
	"github.com/oszuidwest/zwfm-recorder/internal/config"
	"github.com/oszuidwest/zwfm-recorder/internal/events"
	"github.com/oszuidwest/zwfm-recorder/internal/recording"
	"github.com/oszuidwest/zwfm-recorder/internal/types"
)

type fakeAudio struct {
	status     recording.Status
	paths      []string
	failRecord bool
	opened     int
	closed     int
}

func (f *fakeAudio) Open() { f.opened++ }

func (f *fakeAudio) Record(path string) error {
	f.status |= recording.StatusRecording
	if f.failRecord {
		f.status |= recording.StatusError
	}
	f.paths = append(f.paths, path)
	return nil
}

func (f *fakeAudio) Stop() error {
	f.status &^= recording.StatusRecording | recording.StatusPaused
	return nil
}

func (f *fakeAudio) Close() error { f.closed++; return nil }
func (f *fakeAudio) Pause() error { f.status |= recording.StatusPaused; return nil }
func (f *fakeAudio) Resume() error {
	f.status &^= recording.StatusPaused
	return nil
}
func (f *fakeAudio) Status() recording.Status { return f.status }
func (f *fakeAudio) Err() error {
	if f.status.Failed() {
		return errors.New("disk full")
	}
	return nil
}
func (f *fakeAudio) ClearError()                 { f.status &^= recording.StatusError }
func (f *fakeAudio) RecordedTime() time.Duration { return 0 }
func (f *fakeAudio) RecordedBytes() int64        { return 0 }

type fakeMixer struct{}

func (fakeMixer) SetGain(left, right int)           {}
func (fakeMixer) GainRange() (minG, maxG, step int) { return -48, 48, 1 }
func (fakeMixer) ResetClip()                        {}
func (fakeMixer) ClipCount() int                    { return 0 }
func (fakeMixer) ResetClipCount()                   {}

type fakeStorage struct {
	failures int
	n        int
}

func (f *fakeStorage) EnsureDir() (bool, error) {
	if f.failures > 0 {
		f.failures--
		return false, errors.New("read-only file system")
	}
	return false, nil
}

func (f *fakeStorage) DiskActive() bool { return false }

func (f *fakeStorage) NextFilename(src types.Source, ext string) (string, error) {
	f.n++
	return fmt.Sprintf("/rec/%s%04d.%s", src.FilePrefix(), f.n, ext), nil
}

// fakePeaks alternates between two close levels so readings never look
// stale, unless flat is set.
type fakePeaks struct {
	level int
	flat  bool
	n     int
}

func (p *fakePeaks) PeakHold() (int, int) {
	p.n++
	if p.flat {
		return p.level, p.level
	}
	v := p.level + p.n%2
	return v, v
}

type fakeDisplay struct {
	frames []Frame
}

func (d *fakeDisplay) Render(f Frame) { d.frames = append(d.frames, f) }

func (d *fakeDisplay) last() Frame { return d.frames[len(d.frames)-1] }

type fixture struct {
	screen  *Screen
	audio   *fakeAudio
	storage *fakeStorage
	peaks   *fakePeaks
	display *fakeDisplay
	cfg     *config.Config
	cfgPath string
	input   chan Action
	reload  chan struct{}
	reloads chan config.RecordingConfig
}

func newFixture(t *testing.T, setup func(r *config.RecordingConfig)) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := config.New(path)
	if setup != nil {
		if err := cfg.UpdateRecording(setup); err != nil {
			t.Fatalf("UpdateRecording: %v", err)
		}
	}

	f := &fixture{
		audio:   &fakeAudio{},
		storage: &fakeStorage{},
		peaks:   &fakePeaks{},
		display: &fakeDisplay{},
		cfg:     cfg,
		cfgPath: path,
		input:   make(chan Action, 8),
		reload:  make(chan struct{}, 1),
		reloads: make(chan config.RecordingConfig, 4),
	}
	reg := events.New(0)
	sess := recording.NewSession(recording.Deps{
		Audio:    f.audio,
		Mixer:    fakeMixer{},
		Storage:  f.storage,
		Settings: cfg,
		Registry: reg,
	})
	f.screen = New(Config{
		Session:  sess,
		Storage:  f.storage,
		Settings: cfg,
		Sampler:  audio.NewSampler(f.peaks, nil),
		Registry: reg,
		Display:  f.display,
		Input:    f.input,
		Reload:   f.reload,
		OnReload: func(r config.RecordingConfig) { f.reloads <- r },
	})
	return f
}

func (f *fixture) send(actions ...Action) {
	for _, a := range actions {
		f.input <- a
	}
}

func TestRunStartsAndExits(t *testing.T) {
	f := newFixture(t, nil)
	f.send(ActionNewFile, ActionExit)

	if err := f.screen.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.audio.paths) != 1 {
		t.Fatalf("files recorded: got %d, want 1", len(f.audio.paths))
	}
	if f.audio.status.Recording() {
		t.Error("still recording after exit")
	}
	if f.audio.opened != 1 || f.audio.closed != 1 {
		t.Errorf("open/close: got %d/%d, want 1/1", f.audio.opened, f.audio.closed)
	}
	if f.screen.Active() {
		t.Error("Active after Run returned")
	}
	if _, err := os.Stat(f.cfgPath); err != nil {
		t.Errorf("settings not saved: %v", err)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	f.send(ActionPause)

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	if err := f.screen.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.audio.status.Recording() {
		t.Error("still recording after cancel")
	}
}

func TestSetupRetriesAndAborts(t *testing.T) {
	f := newFixture(t, nil)
	f.storage.failures = 2
	f.send(ActionInc, ActionCancel)

	err := f.screen.Run(context.Background())
	if !errors.Is(err, ErrSetupAborted) {
		t.Fatalf("Run: got %v, want ErrSetupAborted", err)
	}
	if f.audio.opened != 0 {
		t.Error("input opened after aborted setup")
	}
	if got := f.display.last().Notice; got == "" {
		t.Error("no prompt shown")
	}
}

func TestSetupRetrySucceeds(t *testing.T) {
	f := newFixture(t, nil)
	f.storage.failures = 1
	f.send(ActionInc, ActionExit)

	if err := f.screen.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.audio.opened != 1 {
		t.Errorf("opened: got %d, want 1", f.audio.opened)
	}
}

func TestAudioErrorAbortsTake(t *testing.T) {
	f := newFixture(t, nil)
	f.audio.failRecord = true
	f.send(ActionNewFile, ActionInc)

	err := f.screen.Run(context.Background())
	if !errors.Is(err, ErrRecordingAborted) {
		t.Fatalf("Run: got %v, want ErrRecordingAborted", err)
	}
	if f.audio.status != 0 {
		t.Errorf("status after abort: got %v, want stopped", f.audio.status)
	}
	var shown bool
	for _, fr := range f.display.frames {
		if fr.Notice != "" {
			shown = true
		}
	}
	if !shown {
		t.Error("error notice not shown")
	}
}

func TestCancelStopsThenExits(t *testing.T) {
	f := newFixture(t, nil)

	if f.screen.handle(ActionPause) {
		t.Fatal("Pause closed the screen")
	}
	if !f.audio.status.Recording() {
		t.Fatal("Pause did not start recording")
	}
	if f.screen.handle(ActionCancel) {
		t.Fatal("first Cancel closed the screen")
	}
	if f.audio.status.Recording() {
		t.Fatal("first Cancel did not stop recording")
	}
	if !f.screen.handle(ActionCancel) {
		t.Error("second Cancel did not close the screen")
	}
}

func TestPauseAndNewFileWhileRecording(t *testing.T) {
	f := newFixture(t, nil)
	f.screen.handle(ActionNewFile)

	f.screen.handle(ActionPause)
	if !f.audio.status.Paused() {
		t.Error("Pause did not pause")
	}
	f.screen.handle(ActionPause)
	if f.audio.status.Paused() {
		t.Error("second Pause did not resume")
	}

	f.screen.handle(ActionNewFile)
	if len(f.audio.paths) != 2 {
		t.Errorf("files: got %d, want 2", len(f.audio.paths))
	}
}

func TestTriggerArmsAndStarts(t *testing.T) {
	f := newFixture(t, func(r *config.RecordingConfig) {
		r.Trigger.Mode = types.TriggerOnce
		r.Trigger.StartSeconds = 0
	})

	f.screen.handle(ActionNewFile)
	if f.audio.status.Recording() {
		t.Fatal("recording started without a signal")
	}
	if !f.screen.session.Trigger().Armed() {
		t.Fatal("trigger not armed")
	}

	f.peaks.level = 20000
	for range 2 {
		if _, err := f.screen.iterate(ActionNone); err != nil {
			t.Fatalf("iterate: %v", err)
		}
	}
	if !f.audio.status.Recording() {
		t.Error("loud signal did not start recording")
	}
}

func TestTriggerStopsOnSilence(t *testing.T) {
	f := newFixture(t, func(r *config.RecordingConfig) {
		r.Trigger.Mode = types.TriggerOnce
		r.Trigger.Type = types.TriggerStop
		r.Trigger.StartSeconds = 0
		r.Trigger.PostRecSeconds = 1
		r.Trigger.GapSeconds = 0.1
	})
	f.screen.handle(ActionNewFile)

	f.peaks.level = 20000
	for range 20 {
		if _, err := f.screen.iterate(ActionNone); err != nil {
			t.Fatalf("iterate: %v", err)
		}
	}
	if !f.audio.status.Recording() {
		t.Fatal("loud signal did not start recording")
	}

	// Digital silence repeats the same peak, so every reading is stale.
	f.peaks.level, f.peaks.flat = 0, true
	for range 40 {
		if _, err := f.screen.iterate(ActionNone); err != nil {
			t.Fatalf("iterate: %v", err)
		}
	}
	if f.audio.status.Recording() {
		t.Error("still recording after 4 s of silence")
	}
	if f.screen.session.Trigger().Armed() {
		t.Error("once trigger still armed after stopping")
	}
	if got := f.display.last().PeakDB[0]; got != audio.MinDB {
		t.Errorf("meter after silence: got %v dB, want %v", got, audio.MinDB)
	}
}

func TestArmedTriggerStartsByHand(t *testing.T) {
	f := newFixture(t, func(r *config.RecordingConfig) {
		r.Trigger.Mode = types.TriggerRearm
	})
	f.screen.handle(ActionPause)
	f.screen.handle(ActionPause)
	if !f.audio.status.Recording() {
		t.Error("second press on an armed trigger did not start recording")
	}
}

func TestSamplesEveryOtherIteration(t *testing.T) {
	f := newFixture(t, nil)
	for range 6 {
		if _, err := f.screen.iterate(ActionNone); err != nil {
			t.Fatal(err)
		}
	}
	if got := f.screen.sampler.Tick(); got != 3 {
		t.Errorf("samples after 6 iterations: got %d, want 3", got)
	}
}

func TestTriggerModeItem(t *testing.T) {
	f := newFixture(t, nil)
	f.screen.handle(ActionPrev)
	if f.screen.selected != itemTrigger {
		t.Fatalf("selected: got %d, want trigger", f.screen.selected)
	}

	steps := []struct {
		action Action
		want   types.TriggerMode
	}{
		{ActionInc, types.TriggerOnce},
		{ActionInc, types.TriggerRearm},
		{ActionInc, types.TriggerRearm},
		{ActionDec, types.TriggerOnce},
	}
	for _, st := range steps {
		f.screen.handle(st.action)
		if got := f.cfg.RecordingSettings().Trigger.Mode; got != st.want {
			t.Fatalf("after %s: got %s, want %s", st.action, got, st.want)
		}
	}

	f.screen.handle(ActionPause)
	if !f.screen.session.Trigger().Armed() {
		t.Fatal("trigger not armed")
	}
	f.screen.handle(ActionDec)
	if f.screen.session.Trigger().Armed() {
		t.Error("switching the mode off left the trigger armed")
	}
}

func TestGainItems(t *testing.T) {
	f := newFixture(t, nil)
	before := f.cfg.RecordingSettings()

	f.screen.handle(ActionNext)
	f.screen.handle(ActionInc)
	after := f.cfg.RecordingSettings()
	if after.LeftGain != before.LeftGain+1 || after.RightGain != before.RightGain {
		t.Errorf("gain left: got %d/%d, want %d/%d", after.LeftGain, after.RightGain, before.LeftGain+1, before.RightGain)
	}

	f.screen.handle(ActionPrev)
	f.screen.handle(ActionDec)
	final := f.cfg.RecordingSettings()
	if final.LeftGain != before.LeftGain || final.RightGain != before.RightGain-1 {
		t.Errorf("volume: got %d/%d", final.LeftGain, final.RightGain)
	}
}

func TestMenuCyclesSourceWhenIdle(t *testing.T) {
	f := newFixture(t, nil)
	f.screen.handle(ActionMenu)
	if got := f.cfg.RecordingSettings().Source; got != types.SourceRadio {
		t.Fatalf("source: got %s, want radio", got)
	}
	f.screen.handle(ActionMenu)
	if got := f.cfg.RecordingSettings().Source; got != types.SourceMic {
		t.Fatalf("source: got %s, want mic", got)
	}

	f.screen.handle(ActionPause)
	f.screen.handle(ActionMenu)
	if got := f.cfg.RecordingSettings().Source; got != types.SourceMic {
		t.Errorf("source changed while recording: got %s", got)
	}
}

func TestFrameContents(t *testing.T) {
	f := newFixture(t, nil)
	f.screen.handle(ActionPause)
	f.screen.refresh("")

	fr := f.display.last()
	if len(fr.Items) != int(itemCount) {
		t.Fatalf("items: got %d, want %d", len(fr.Items), itemCount)
	}
	if fr.Items[itemTrigger].Value != string(types.TriggerOff) {
		t.Errorf("trigger item: got %q", fr.Items[itemTrigger].Value)
	}
	if fr.Status.State != "recording" {
		t.Errorf("state: got %q, want recording", fr.Status.State)
	}
	if fr.PeakDB[0] != audio.MinDB {
		t.Errorf("peak before sampling: got %v, want %v", fr.PeakDB[0], audio.MinDB)
	}
	if len(fr.Lines) < 4 || fr.Lines[3] != "R_LINE_0001.wav" {
		t.Errorf("lines: got %q", fr.Lines)
	}
}

func TestReloadAppliesSettings(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.cfg.UpdateRecording(func(r *config.RecordingConfig) { r.Codec = types.CodecFLAC }); err != nil {
		t.Fatal(err)
	}
	f.reload <- struct{}{}

	done := make(chan error, 1)
	go func() { done <- f.screen.Run(context.Background()) }()

	select {
	case r := <-f.reloads:
		if r.Codec != types.CodecFLAC {
			t.Errorf("reloaded codec: got %s, want flac", r.Codec)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("settings not reloaded")
	}

	f.send(ActionExit)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
