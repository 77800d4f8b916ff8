package recording

import (
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/oszuidwest/zwfm-recorder/internal/agc"
	"github.com/oszuidwest/zwfm-recorder/internal/audio"
	"github.com/oszuidwest/zwfm-recorder/internal/config"
	"github.com/oszuidwest/zwfm-recorder/internal/eventlog"
	"github.com/oszuidwest/zwfm-recorder/internal/events"
	"github.com/oszuidwest/zwfm-recorder/internal/trigger"
	"github.com/oszuidwest/zwfm-recorder/internal/types"
	"github.com/oszuidwest/zwfm-recorder/internal/util"
)

// Gain change causes reported with GainChanged.
const (
	CauseAGC    = "agc"
	CauseManual = "manual"
)

// Deps are the collaborators of a Session.
type Deps struct {
	Audio    Audio
	Mixer    Mixer
	Storage  Storage
	Settings Settings
	Registry *events.Registry
	// EventLog may be nil.
	EventLog *eventlog.Logger
}

// Snapshot is the session state shown on the status screen.
type Snapshot struct {
	Status      Status        `json:"-"`
	State       string        `json:"state"`
	TakeID      string        `json:"take_id,omitempty"`
	File        string        `json:"file,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`
	Bytes       int64         `json:"bytes"`
	SplitLimit  string        `json:"split_limit"`
	Source      types.Source  `json:"source"`
	LeftGain    int           `json:"left_gain"`
	RightGain   int           `json:"right_gain"`
	AGC         agc.State     `json:"agc"`
	Trigger     string        `json:"trigger"`
	Clips       int           `json:"clips"`
	HasRecorded bool          `json:"has_recorded"`
}

// Session issues recording commands and applies the trigger and split
// policies. It also implements agc.Gains on top of the persisted gain
// settings and the mixer.
//
// Session is not safe for concurrent use; it belongs to the recording loop.
type Session struct {
	audio    Audio
	mixer    Mixer
	storage  Storage
	settings Settings
	registry *events.Registry
	log      *eventlog.Logger

	trig *trigger.Trigger
	agc  *agc.Controller

	takeID      string
	path        string
	hasRecorded bool
}

// NewSession returns a session wired to deps. AGC and mixer gain are loaded
// from the current settings.
func NewSession(deps Deps, opts ...agc.Option) *Session {
	s := &Session{
		audio:    deps.Audio,
		mixer:    deps.Mixer,
		storage:  deps.Storage,
		settings: deps.Settings,
		registry: deps.Registry,
		log:      deps.EventLog,
		trig:     trigger.New(),
	}
	s.agc = agc.New(s, opts...)
	s.ApplySettings()
	return s
}

// Trigger returns the level trigger driven by the recording loop.
func (s *Session) Trigger() *trigger.Trigger { return s.trig }

// AGC returns the gain controller driven by the recording loop.
func (s *Session) AGC() *agc.Controller { return s.agc }

// HasRecorded reports whether any take was started in this session.
func (s *Session) HasRecorded() bool { return s.hasRecorded }

// Recording reports whether a take is open.
func (s *Session) Recording() bool { return s.audio.Status().Recording() }

// Failed reports whether the backend hit an error during the take.
func (s *Session) Failed() bool { return s.audio.Status().Failed() }

// Open starts the input so levels are metered before the first take. It is
// a no-op for backends that open on Record.
func (s *Session) Open() {
	if o, ok := s.audio.(interface{ Open() }); ok {
		o.Open()
	}
}

// ApplySettings reloads the AGC preset and ceiling for the active source and
// pushes the stored gain to the mixer. AGC timers are kept.
func (s *Session) ApplySettings() {
	r := s.settings.RecordingSettings()
	preset, maxGain := agcFor(r)
	s.agc.SetPreset(preset, maxGain)
	s.agc.SetClipTime(r.AGC.ClipTime)
	s.applyGain()
}

func agcFor(r config.RecordingConfig) (agc.Preset, int) {
	if r.Source == types.SourceMic {
		return agc.Preset(r.AGC.MicPreset), r.AGC.MicMaxGain
	}
	return agc.Preset(r.AGC.LinePreset), r.AGC.LineMaxGain
}

// SourceChanged switches the input and loads the AGC settings stored for it.
func (s *Session) SourceChanged(src types.Source) error {
	if err := s.settings.UpdateRecording(func(r *config.RecordingConfig) { r.Source = src }); err != nil {
		return util.WrapError("change source", err)
	}
	s.ApplySettings()
	s.agc.Reset()
	slog.Info("recording source changed", "source", src, "agc", s.agc.Preset())
	return nil
}

// SetAGCPreset stores the preset for the active source and applies it.
func (s *Session) SetAGCPreset(p agc.Preset) error {
	p = p.Clamp()
	err := s.settings.UpdateRecording(func(r *config.RecordingConfig) {
		if r.Source == types.SourceMic {
			r.AGC.MicPreset = int(p)
		} else {
			r.AGC.LinePreset = int(p)
		}
	})
	if err != nil {
		return util.WrapError("set AGC preset", err)
	}
	s.ApplySettings()
	return nil
}

// SetAGCMaxGain stores the gain ceiling for the active source and applies it.
func (s *Session) SetAGCMaxGain(g int) error {
	lo, hi, _ := s.mixer.GainRange()
	g = min(max(g, lo), hi)
	err := s.settings.UpdateRecording(func(r *config.RecordingConfig) {
		if r.Source == types.SourceMic {
			r.AGC.MicMaxGain = g
		} else {
			r.AGC.LineMaxGain = g
		}
	})
	if err != nil {
		return util.WrapError("set AGC max gain", err)
	}
	s.ApplySettings()
	return nil
}

// Levels implements agc.Gains.
func (s *Session) Levels() (left, right int) {
	r := s.settings.RecordingSettings()
	if r.Source == types.SourceMic {
		return r.MicGain, r.MicGain
	}
	return r.LeftGain, r.RightGain
}

// Step implements agc.Gains.
func (s *Session) Step(up, left, right bool) {
	s.stepGain(up, left, right, CauseAGC)
}

// AdjustGain moves the selected channels one step by hand. A mic input has
// a single gain and moves whenever either channel is selected.
func (s *Session) AdjustGain(up, left, right bool) {
	s.stepGain(up, left, right, CauseManual)
}

func (s *Session) stepGain(up, left, right bool, cause string) {
	if !left && !right {
		return
	}
	lo, hi, step := s.mixer.GainRange()
	if !up {
		step = -step
	}
	move := func(g int) int { return min(max(g+step, lo), hi) }

	err := s.settings.UpdateRecording(func(r *config.RecordingConfig) {
		if r.Source == types.SourceMic {
			r.MicGain = move(r.MicGain)
			return
		}
		if left {
			r.LeftGain = move(r.LeftGain)
		}
		if right {
			r.RightGain = move(r.RightGain)
		}
	})
	if err != nil {
		slog.Warn("failed to store gain", "cause", cause, "error", err)
		return
	}

	l, r := s.applyGain()
	s.mixer.ResetClip()
	slog.Debug("gain changed", "left", l, "right", r, "cause", cause)
	s.registry.Dispatch(events.GainChanged, false, events.Gain{Left: l, Right: r, Cause: cause})
	s.logErr(s.log.LogGain(s.takeID, &eventlog.GainDetails{
		Left: l, Right: r, Preset: s.agc.Preset().String(), Reason: cause,
	}))
}

func (s *Session) applyGain() (left, right int) {
	left, right = s.Levels()
	s.mixer.SetGain(left, right)
	return left, right
}

// Start opens a new take.
func (s *Session) Start() error {
	if s.Recording() {
		return ErrAlreadyRecording
	}
	path, err := s.nextFile()
	if err != nil {
		return err
	}
	s.mixer.ResetClipCount()
	if err := s.audio.Record(path); err != nil {
		return util.WrapError("start recording", err)
	}

	s.takeID = uuid.NewString()
	s.path = path
	s.hasRecorded = true
	slog.Info("recording started", "file", filepath.Base(path), "take", s.takeID)

	take := s.take()
	s.registry.Dispatch(events.RecordingStarted, false, take)
	s.logTake(eventlog.TakeStarted, take, "")
	return nil
}

// StartNewFile closes the current file and continues the take in a new one.
// Without an open take it starts one.
func (s *Session) StartNewFile() error {
	if !s.Recording() {
		return s.Start()
	}
	path, err := s.nextFile()
	if err != nil {
		return err
	}
	prev := s.take()
	if err := s.audio.Record(path); err != nil {
		return util.WrapError("start new file", err)
	}
	s.path = path
	slog.Info("recording split", "closed", filepath.Base(prev.Path), "file", filepath.Base(path))

	s.registry.Dispatch(events.FileClosed, false, prev)
	next := s.take()
	s.registry.Dispatch(events.RecordingStarted, false, next)
	s.logTake(eventlog.TakeSplit, prev, "")
	return nil
}

// Stop closes the current file. It is a no-op without an open take.
func (s *Session) Stop() error {
	return s.stop("stop")
}

// StopShutdown stops and asks the host to shut down.
func (s *Session) StopShutdown() error {
	err := s.stop("shutdown")
	slog.Info("shutdown requested")
	s.registry.Dispatch(events.ShutdownRequested, false, nil)
	return err
}

func (s *Session) stop(reason string) error {
	if !s.Recording() {
		return nil
	}
	take := s.take()
	if err := s.audio.Stop(); err != nil {
		return util.WrapError("stop recording", err)
	}
	slog.Info("recording stopped", "file", filepath.Base(take.Path), "reason", reason, "duration", take.Duration)

	s.registry.Dispatch(events.FileClosed, false, take)
	s.registry.Dispatch(events.RecordingStopped, false, take)
	s.logTake(eventlog.TakeStopped, take, reason)
	s.path = ""
	return nil
}

// Pause holds the open take.
func (s *Session) Pause() error {
	st := s.audio.Status()
	if !st.Recording() {
		return ErrNotRecording
	}
	if st.Paused() {
		return nil
	}
	if err := s.audio.Pause(); err != nil {
		return util.WrapError("pause recording", err)
	}
	s.logTake(eventlog.TakePaused, s.take(), "")
	return nil
}

// Resume continues a paused take.
func (s *Session) Resume() error {
	st := s.audio.Status()
	if !st.Recording() {
		return ErrNotRecording
	}
	if !st.Paused() {
		return nil
	}
	if err := s.audio.Resume(); err != nil {
		return util.WrapError("resume recording", err)
	}
	s.logTake(eventlog.TakeResumed, s.take(), "")
	return nil
}

// TogglePause pauses a running take or resumes a paused one.
func (s *Session) TogglePause() error {
	if s.audio.Status().Paused() {
		return s.Resume()
	}
	return s.Pause()
}

// ArmTrigger arms the level trigger with the stored trigger settings and
// registers the session as its listener.
func (s *Session) ArmTrigger() {
	t := s.settings.RecordingSettings().Trigger
	s.trig.Arm(trigger.Config{
		StartThreshold: audio.DBToAmplitude(t.StartThresholdDB),
		StopThreshold:  audio.DBToAmplitude(t.StopThresholdDB),
		StartTicks:     trigger.Seconds(t.StartSeconds),
		PostRecTicks:   trigger.Seconds(t.PostRecSeconds),
		GapTicks:       trigger.Seconds(t.GapSeconds),
	})
	s.trig.SetListener(s.onTrigger)
	s.notifyTrigger()
	s.logErr(s.log.LogTrigger(eventlog.TriggerArmed, s.takeID, &eventlog.TriggerDetails{
		Mode: string(t.Mode), Type: string(t.Type), State: s.trig.State().String(),
	}))
}

// DisarmTrigger turns the trigger off and clears its listener.
func (s *Session) DisarmTrigger() {
	wasArmed := s.trig.Armed()
	s.trig.SetListener(nil)
	s.trig.Disarm()
	if wasArmed {
		s.notifyTrigger()
		s.logErr(s.log.LogTrigger(eventlog.TriggerDisarmed, s.takeID, nil))
	}
}

func (s *Session) notifyTrigger() {
	s.registry.Dispatch(events.TriggerChanged, false, s.trig.State().String())
}

// onTrigger reacts to the trigger entering Go or Ready.
func (s *Session) onTrigger(state trigger.State) {
	t := s.settings.RecordingSettings().Trigger
	st := s.audio.Status()
	s.notifyTrigger()

	var err error
	switch state {
	case trigger.Go:
		s.logErr(s.log.LogTrigger(eventlog.TriggerGo, s.takeID, &eventlog.TriggerDetails{
			Mode: string(t.Mode), Type: string(t.Type), State: state.String(),
		}))
		switch {
		case !st.Recording():
			err = s.Start()
		case st.Paused() && t.Type == types.TriggerPause:
			err = s.Resume()
		case t.Type != types.TriggerNewFile:
			err = s.StartNewFile()
		}

	case trigger.Ready:
		s.logErr(s.log.LogTrigger(eventlog.TriggerReady, s.takeID, &eventlog.TriggerDetails{
			Mode: string(t.Mode), Type: string(t.Type), State: state.String(),
		}))
		if st.Recording() {
			switch t.Type {
			case types.TriggerStop:
				err = s.stop("trigger")
			case types.TriggerPause:
				err = s.Pause()
			case types.TriggerNewFile:
				err = s.StartNewFile()
			case types.TriggerShutdown:
				err = s.StopShutdown()
			}
		}
		if t.Mode != types.TriggerRearm {
			s.DisarmTrigger()
		}
	}
	if err != nil {
		slog.Error("trigger action failed", "state", state, "type", t.Type, "error", err)
	}
}

// Tick applies the split policy to the open take and reports whether the
// file was split or the take was stopped.
func (s *Session) Tick() (bool, error) {
	if !s.Recording() {
		return false, nil
	}
	r := s.settings.RecordingSettings()
	due, ceiling := SplitDue(r.Split, s.audio.RecordedTime(), s.audio.RecordedBytes())
	if !due {
		return false, nil
	}
	if ceiling || r.Split.Type == types.SplitNewFile {
		return true, s.StartNewFile()
	}
	s.DisarmTrigger()
	if r.Split.Type == types.SplitShutdown {
		return true, s.StopShutdown()
	}
	return true, s.stop("split")
}

// AbortOnError stops and closes the backend after an audio error, clears
// the error and reports it as AudioError. It returns the affected take.
func (s *Session) AbortOnError() events.Take {
	take := s.take()
	take.Err = s.audio.Err()
	if take.Err == nil {
		take.Err = errors.New("audio error")
	}
	take.Error = take.Err.Error()
	slog.Error("audio error during recording", "file", filepath.Base(take.Path), "error", take.Err)

	s.DisarmTrigger()
	if err := s.stop("error"); err != nil {
		slog.Warn("failed to stop after audio error", "error", err)
	}
	if err := s.audio.Close(); err != nil {
		slog.Warn("failed to close audio after error", "error", err)
	}
	s.audio.ClearError()

	s.registry.Dispatch(events.AudioError, false, take)
	s.logErr(s.log.LogTake(eventlog.AudioError, take.ID, &eventlog.TakeDetails{
		Filename: filepath.Base(take.Path), Source: take.Source, Error: take.Err.Error(),
	}))
	return take
}

// Teardown stops recording, clears the trigger and saves the settings.
func (s *Session) Teardown() error {
	s.DisarmTrigger()
	var errs []error
	if err := s.stop("exit"); err != nil {
		errs = append(errs, err)
	}
	if err := s.audio.Close(); err != nil {
		errs = append(errs, util.WrapError("close audio", err))
	}
	if err := s.settings.Save(); err != nil {
		errs = append(errs, util.WrapError("save settings", err))
	} else {
		s.registry.Dispatch(events.SettingsSaved, false, nil)
	}
	return errors.Join(errs...)
}

// Snapshot returns the state for status display.
func (s *Session) Snapshot() Snapshot {
	st := s.audio.Status()
	r := s.settings.RecordingSettings()
	l, rg := s.Levels()
	snap := Snapshot{
		Status:      st,
		State:       st.String(),
		SplitLimit:  SplitLimit(r.Split),
		Source:      r.Source,
		LeftGain:    l,
		RightGain:   rg,
		AGC:         s.agc.State(),
		Trigger:     s.trig.State().String(),
		Clips:       s.mixer.ClipCount(),
		HasRecorded: s.hasRecorded,
	}
	if st.Recording() {
		snap.TakeID = s.takeID
		snap.File = filepath.Base(s.path)
		snap.Elapsed = s.audio.RecordedTime()
		snap.Bytes = s.audio.RecordedBytes()
	}
	return snap
}

func (s *Session) nextFile() (string, error) {
	r := s.settings.RecordingSettings()
	path, err := s.storage.NextFilename(r.Source, types.PresetFor(r.Codec).Extension)
	if err != nil {
		return "", util.WrapError("create filename", err)
	}
	return path, nil
}

func (s *Session) take() events.Take {
	return events.Take{
		ID:       s.takeID,
		Path:     s.path,
		Source:   string(s.settings.RecordingSettings().Source),
		Duration: s.audio.RecordedTime(),
		Bytes:    s.audio.RecordedBytes(),
	}
}

func (s *Session) logTake(t eventlog.EventType, take events.Take, reason string) {
	s.logErr(s.log.LogTake(t, take.ID, &eventlog.TakeDetails{
		Filename:   filepath.Base(take.Path),
		Source:     take.Source,
		Codec:      string(s.settings.RecordingSettings().Codec),
		DurationMs: take.Duration.Milliseconds(),
		Bytes:      take.Bytes,
		Reason:     reason,
	}))
}

func (s *Session) logErr(err error) {
	if err != nil {
		slog.Warn("failed to write event log", "error", err)
	}
}
