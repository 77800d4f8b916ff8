package screen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/oszuidwest/zwfm-recorder/internal/audio"
	"github.com/oszuidwest/zwfm-recorder/internal/config"
	"github.com/oszuidwest/zwfm-recorder/internal/events"
	"github.com/oszuidwest/zwfm-recorder/internal/recording"
	"github.com/oszuidwest/zwfm-recorder/internal/types"
	"github.com/oszuidwest/zwfm-recorder/internal/util"
)

// Loop timing.
const (
	// loopInterval is the longest the loop waits for an action.
	loopInterval = 100 * time.Millisecond
	// sampleEvery is the number of iterations between peak samples.
	sampleEvery = 2
	// redrawEvery is the number of iterations between forced redraws.
	redrawEvery = 5
)

var (
	// ErrSetupAborted is returned when the user cancels at the storage prompt.
	ErrSetupAborted = errors.New("recording setup aborted")
	// ErrRecordingAborted wraps the audio error that ended a take.
	ErrRecordingAborted = errors.New("recording aborted")
)

// Display renders frames. Render is called from the loop goroutine and
// must not block.
type Display interface {
	Render(Frame)
}

// Frame is the full content of the recording screen.
type Frame struct {
	Lines    []string           `json:"lines"`
	Items    []Item             `json:"items"`
	Selected int                `json:"selected"`
	Notice   string             `json:"notice,omitempty"`
	PeakDB   [2]float64         `json:"peak_db"`
	Status   recording.Snapshot `json:"status"`
}

// Config wires a Screen.
type Config struct {
	Session  *recording.Session
	Storage  recording.Storage
	Settings recording.Settings
	Sampler  *audio.Sampler
	Registry *events.Registry
	Display  Display
	Input    <-chan Action
	// Reload signals that the stored settings changed. May be nil.
	Reload <-chan struct{}
	// OnReload applies changed settings to collaborators outside the
	// session, on the loop goroutine. May be nil.
	OnReload func(config.RecordingConfig)
}

// Screen runs the interactive recording loop: it reads actions, samples
// the meters, drives AGC and the trigger and redraws the display.
//
// Only Active is safe for concurrent use.
type Screen struct {
	session  *recording.Session
	storage  recording.Storage
	settings recording.Settings
	sampler  *audio.Sampler
	registry *events.Registry
	display  Display
	input    <-chan Action
	reload   <-chan struct{}
	onReload func(config.RecordingConfig)

	selected   item
	iteration  int
	level      int
	peak       [2]int
	countdown  int
	lastSecond int64
	active     atomic.Bool
}

// New returns a screen for cfg.
func New(cfg Config) *Screen {
	return &Screen{
		session:  cfg.Session,
		storage:  cfg.Storage,
		settings: cfg.Settings,
		sampler:  cfg.Sampler,
		registry: cfg.Registry,
		display:  cfg.Display,
		input:    cfg.Input,
		reload:   cfg.Reload,
		onReload: cfg.OnReload,
	}
}

// Active reports whether Run is in progress.
func (s *Screen) Active() bool {
	return s.active.Load()
}

// Run shows the recording screen until the user exits, ctx ends or an audio
// error aborts the take. Recording is stopped and the settings are saved
// before Run returns.
func (s *Screen) Run(ctx context.Context) error {
	s.active.Store(true)
	defer s.active.Store(false)

	if err := s.setup(ctx); err != nil {
		return err
	}
	slog.Info("recording screen started", "source", s.settings.RecordingSettings().Source)

	for {
		a, ok := s.next(ctx)
		if !ok {
			return s.teardown()
		}
		exit, err := s.iterate(a)
		if err != nil {
			s.acknowledge(ctx, err)
			return errors.Join(err, s.teardown())
		}
		if exit {
			return s.teardown()
		}
	}
}

// setup makes sure the recording directory is usable and opens the input.
func (s *Screen) setup(ctx context.Context) error {
	for {
		created, err := s.storage.EnsureDir()
		if err == nil {
			if created {
				slog.Info("created recording directory")
			}
			break
		}
		slog.Error("recording directory unusable", "error", err)
		s.render(fmt.Sprintf("Cannot use recording directory: %v. Any key retries, cancel aborts.", err))
		a, ok := s.wait(ctx)
		if !ok || a == ActionCancel || a == ActionExit {
			return ErrSetupAborted
		}
	}

	s.session.Open()
	s.session.ApplySettings()
	s.session.AGC().Reset()
	s.sampler.Reset()
	s.iteration, s.level, s.countdown, s.lastSecond = 0, 0, 0, -1
	s.peak = [2]int{}
	s.refresh("")
	return nil
}

// next waits up to loopInterval for an action. It reports false when ctx
// ends or the input closes.
func (s *Screen) next(ctx context.Context) (Action, bool) {
	timer := time.NewTimer(loopInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ActionNone, false
	case a, ok := <-s.input:
		return a, ok
	case <-s.reload:
		s.applySettings()
		return ActionNone, true
	case <-timer.C:
		return ActionNone, true
	}
}

// applySettings picks up settings changed outside the loop.
func (s *Screen) applySettings() {
	r := s.settings.RecordingSettings()
	s.session.ApplySettings()
	if s.onReload != nil {
		s.onReload(r)
	}
	s.countdown = 0
	slog.Debug("recording settings reloaded", "source", r.Source, "codec", r.Codec)
}

// wait blocks until an action arrives.
func (s *Screen) wait(ctx context.Context) (Action, bool) {
	select {
	case <-ctx.Done():
		return ActionNone, false
	case a, ok := <-s.input:
		return a, ok
	}
}

// iterate runs one loop iteration for action a.
func (s *Screen) iterate(a Action) (exit bool, err error) {
	if a != ActionNone {
		if s.handle(a) {
			return true, nil
		}
		s.countdown = 0
	}

	s.iteration++
	if s.iteration%sampleEvery == 0 {
		// The trigger and the meters follow every reading. Only AGC skips
		// stale ones, so a silent input still reaches the stop threshold.
		sample := s.sampler.Sample()
		s.level = max(sample.Left, sample.Right)
		s.peak = [2]int{sample.Left, sample.Right}
		if s.session.AGC().Enabled() {
			s.session.AGC().Process(sample)
		}
	}
	s.session.Trigger().Update(s.level)

	if s.session.Failed() {
		take := s.session.AbortOnError()
		return false, fmt.Errorf("%w: %w", ErrRecordingAborted, take.Err)
	}

	s.countdown--
	sec := int64(s.session.Snapshot().Elapsed / time.Second)
	if s.countdown <= 0 || sec != s.lastSecond {
		s.countdown = redrawEvery
		s.lastSecond = sec
		if _, err := s.session.Tick(); err != nil {
			slog.Error("split failed", "error", err)
		}
		s.session.AGC().ClampToMax()
		s.refresh("")
	}
	return false, nil
}

// handle applies one user action and reports whether the screen should
// close.
func (s *Screen) handle(a Action) bool {
	sess := s.session
	var err error
	switch a {
	case ActionPrev:
		s.selected = (s.selected + itemCount - 1) % itemCount
	case ActionNext:
		s.selected = (s.selected + 1) % itemCount
	case ActionInc, ActionDec:
		err = s.adjust(s.selected, a == ActionInc)
	case ActionCancel:
		wasRecording := sess.Recording()
		sess.DisarmTrigger()
		if !wasRecording {
			return true
		}
		err = sess.Stop()
	case ActionExit:
		return true
	case ActionMenu:
		if !sess.Recording() {
			err = s.nextSource()
		}
	case ActionNewFile, ActionPause:
		switch {
		case !sess.Recording():
			if s.settings.RecordingSettings().Trigger.Mode == types.TriggerOff || sess.Trigger().Armed() {
				err = sess.Start()
			} else {
				sess.ArmTrigger()
			}
		case a == ActionNewFile:
			err = sess.StartNewFile()
		default:
			err = sess.TogglePause()
		}
	}
	if err != nil {
		slog.Error("recording action failed", "action", a, "error", err)
	}
	return false
}

// acknowledge shows err and waits for any action.
func (s *Screen) acknowledge(ctx context.Context, err error) {
	s.refresh(err.Error() + ". Press any key.")
	s.wait(ctx)
}

func (s *Screen) teardown() error {
	if err := s.session.Teardown(); err != nil {
		return util.WrapError("close recording screen", err)
	}
	slog.Info("recording screen closed")
	return nil
}

func (s *Screen) render(notice string) {
	s.display.Render(Frame{Notice: notice, Selected: -1})
}

// refresh draws the full screen and announces the update.
func (s *Screen) refresh(notice string) {
	f := s.frame(notice)
	s.display.Render(f)
	s.registry.Dispatch(events.ActionUpdate, false, f)
}

func (s *Screen) frame(notice string) Frame {
	snap := s.session.Snapshot()
	r := s.settings.RecordingSettings()
	return Frame{
		Lines:    statusLines(snap, r),
		Items:    s.items(snap, r),
		Selected: int(s.selected),
		Notice:   notice,
		PeakDB:   [2]float64{audio.AmplitudeToDB(s.peak[0]), audio.AmplitudeToDB(s.peak[1])},
		Status:   snap,
	}
}

func statusLines(snap recording.Snapshot, r config.RecordingConfig) []string {
	lines := []string{
		fmt.Sprintf("%s  %s", snap.State, util.FormatClock(snap.Elapsed)),
		fmt.Sprintf("Size %s  Split %s", util.FormatSize(snap.Bytes), snap.SplitLimit),
		fmt.Sprintf("Source %s  Trigger %s", snap.Source, snap.Trigger),
	}
	if snap.File != "" {
		lines = append(lines, snap.File)
	}
	if snap.Clips > 0 {
		lines = append(lines, fmt.Sprintf("Clipped %dx", snap.Clips))
	}
	if r.Trigger.Mode != types.TriggerOff {
		lines = append(lines, fmt.Sprintf("Trigger %s/%s", r.Trigger.Mode, r.Trigger.Type))
	}
	return lines
}
