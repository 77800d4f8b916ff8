package events

import "time"

// Take is the payload of RecordingStarted, RecordingStopped, FileClosed and
// AudioError.
type Take struct {
	// ID is the take identifier shared by all files of one take.
	ID string `json:"id"`
	// Path is the file the event refers to.
	Path     string        `json:"path"`
	Source   string        `json:"source,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Bytes    int64         `json:"bytes,omitempty"`
	// Err is set for AudioError. Error carries its text for remote
	// subscribers.
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

// Gain is the payload of GainChanged, in half-dB steps.
type Gain struct {
	Left  int    `json:"left"`
	Right int    `json:"right"`
	Cause string `json:"cause,omitempty"`
}
