// Package trigger implements the level trigger that starts and stops takes
// when the input signal appears and disappears.
package trigger

import (
	"log/slog"
)

// State is the trigger state.
type State int

// Trigger states.
const (
	// Off means no trigger is armed.
	Off State = iota
	// Steady means armed and waiting for the signal to exceed the start threshold.
	Steady
	// Start means the signal is above the start threshold and the start duration is counting.
	Start
	// Go means the start condition was met.
	Go
	// PostRec means the signal fell to the stop threshold and post-record plus gap is counting.
	PostRec
	// Ready means the stop condition was met and the trigger waits for the next signal.
	Ready
)

var stateNames = [...]string{"off", "steady", "start", "go", "postrec", "ready"}

// String returns the lowercase state name.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Listener receives transitions into Go and Ready.
type Listener func(State)

// maxDropoutTicks bounds how long the signal may dip below the start
// threshold during the start duration (2 seconds at the loop rate).
const maxDropoutTicks = 2 * TicksPerSecond

// TicksPerSecond is the rate at which Update is expected to be called.
const TicksPerSecond = 10

// Config holds the trigger thresholds as peak amplitudes and durations in ticks.
type Config struct {
	StartThreshold int
	StopThreshold  int
	StartTicks     int
	PostRecTicks   int
	GapTicks       int
}

// Seconds converts a duration in seconds to ticks.
func Seconds(s float64) int {
	return int(s * TicksPerSecond)
}

// Trigger is the level trigger state machine.
//
// Trigger is not safe for concurrent use. The listener is called
// synchronously from Update and must not call back into the trigger.
type Trigger struct {
	cfg      Config
	state    State
	listener Listener
	dropout  int
	count    int
	below    int
}

// New returns a disarmed trigger.
func New() *Trigger {
	return &Trigger{}
}

// Arm configures the trigger and starts waiting for a signal.
func (t *Trigger) Arm(cfg Config) {
	t.cfg = cfg
	t.dropout = min(cfg.StartTicks/2, maxDropoutTicks)
	t.count, t.below = 0, 0
	t.state = Steady
	slog.Debug("trigger armed", "start", cfg.StartThreshold, "stop", cfg.StopThreshold)
}

// Disarm turns the trigger off without notifying the listener.
func (t *Trigger) Disarm() {
	t.state = Off
	t.count, t.below = 0, 0
}

// SetListener replaces the listener. A nil listener clears it.
func (t *Trigger) SetListener(l Listener) {
	t.listener = l
}

// HasListener reports whether a listener is registered.
func (t *Trigger) HasListener() bool {
	return t.listener != nil
}

// State returns the current state.
func (t *Trigger) State() State {
	return t.state
}

// Armed reports whether the trigger is in any state other than Off.
func (t *Trigger) Armed() bool {
	return t.state != Off
}

// Update feeds one peak level to the state machine.
func (t *Trigger) Update(level int) {
	switch t.state {
	case Off:
		return

	case Steady, Ready:
		if level > t.cfg.StartThreshold {
			if t.cfg.StartTicks <= 1 {
				t.enter(Go)
				return
			}
			t.state = Start
			t.count, t.below = 1, 0
		}

	case Start:
		if level > t.cfg.StartThreshold {
			t.count++
			t.below = 0
			if t.count >= t.cfg.StartTicks {
				t.enter(Go)
			}
			return
		}
		t.below++
		if t.below > t.dropout {
			t.state = Steady
			t.count, t.below = 0, 0
		}

	case Go:
		if level <= t.cfg.StopThreshold {
			t.state = PostRec
			t.count = 0
		}

	case PostRec:
		if level > t.cfg.StopThreshold {
			// Signal came back before the gap ran out; the take continues.
			t.state = Go
			return
		}
		t.count++
		if t.count >= t.cfg.PostRecTicks+t.cfg.GapTicks {
			t.enter(Ready)
		}
	}
}

func (t *Trigger) enter(s State) {
	prev := t.state
	t.state = s
	t.count, t.below = 0, 0
	slog.Debug("trigger transition", "from", prev, "to", s)
	if t.listener != nil {
		t.listener(s)
	}
}
