// Package recording controls recording sessions: it issues start, stop,
// pause and new-file commands to the audio backend, reacts to the level
// trigger, splits files and uploads finished takes.
package recording

import (
	"errors"
	"time"

	"github.com/oszuidwest/zwfm-recorder/internal/config"
	"github.com/oszuidwest/zwfm-recorder/internal/types"
)

// Sentinel errors for recording operations.
var (
	// ErrAlreadyRecording is returned when starting while a take is open.
	ErrAlreadyRecording = errors.New("already recording")

	// ErrNotRecording is returned by commands that need an open take.
	ErrNotRecording = errors.New("not recording")
)

// Status is a set of audio backend status flags.
type Status uint8

// Audio backend status flags.
const (
	StatusRecording Status = 1 << iota
	StatusPaused
	StatusError
)

// Recording reports whether a take is open, paused or not.
func (s Status) Recording() bool { return s&StatusRecording != 0 }

// Paused reports whether the open take is paused.
func (s Status) Paused() bool { return s&StatusPaused != 0 }

// Failed reports whether the backend hit an error.
func (s Status) Failed() bool { return s&StatusError != 0 }

// String returns a short state name for display.
func (s Status) String() string {
	switch {
	case s.Failed():
		return "error"
	case s.Paused():
		return "paused"
	case s.Recording():
		return "recording"
	default:
		return "stopped"
	}
}

// Audio is the recording backend.
type Audio interface {
	// Record opens path and starts writing to it. While a take is open the
	// current file is closed and recording continues into path without a gap.
	Record(path string) error
	// Stop closes the current file.
	Stop() error
	// Close releases the input device.
	Close() error
	Pause() error
	Resume() error
	Status() Status
	// Err returns the error behind StatusError.
	Err() error
	// ClearError resets StatusError.
	ClearError()
	// RecordedTime is the duration written to the current file.
	RecordedTime() time.Duration
	// RecordedBytes is the size of the current file.
	RecordedBytes() int64
}

// Mixer applies input gain and counts clipping.
type Mixer interface {
	// SetGain applies gain per channel in half-dB steps.
	SetGain(left, right int)
	// GainRange returns the device limits and the size of one hardware step.
	GainRange() (minGain, maxGain, step int)
	// ResetClip clears the clip indicator.
	ResetClip()
	// ClipCount returns the number of clip episodes since ResetClipCount.
	ClipCount() int
	ResetClipCount()
}

// Storage decides where takes are written.
type Storage interface {
	// EnsureDir creates the recording directory if needed and reports
	// whether it had to be created.
	EnsureDir() (created bool, err error)
	// NextFilename returns an unused path for a new file from src.
	NextFilename(src types.Source, ext string) (string, error)
	// DiskActive reports whether a file write is in progress.
	DiskActive() bool
}

// Settings is the persisted recording configuration.
type Settings interface {
	RecordingSettings() config.RecordingConfig
	UpdateRecording(fn func(*config.RecordingConfig)) error
	Save() error
}
