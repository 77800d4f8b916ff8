package agc

import (
	"log/slog"

	"github.com/oszuidwest/zwfm-recorder/internal/audio"
)

// Balance bands for the averaged sampler balance (1/10000 amplitude ratio).
const (
	balanceDeadband = 556  // ±0.47 dB
	balanceSlight   = 900  // ±0.75 dB
	balanceModerate = 4125 // ±3.00 dB
	balanceStrong   = 7579 // ±4.90 dB
)

// Gains is the mixer the controller steers.
type Gains interface {
	// Levels returns the current gain per channel in half-dB steps. A mono
	// input reports the same value for both channels.
	Levels() (left, right int)
	// Step moves the selected channels one hardware step up or down. The
	// implementation clamps to the device range and resets the clip indicator.
	Step(up, left, right bool)
}

// State is a snapshot of the controller for status display.
type State struct {
	Preset   Preset `json:"preset"`
	MaxGain  int    `json:"max_gain"`
	Enabled  bool   `json:"enabled"`
	Smoothed [2]int `json:"smoothed"`
	Drop     int    `json:"drop"`
	Rise     int    `json:"rise"`
	Balance  int    `json:"balance"`
}

// Controller adjusts recording gain from peak samples.
//
// Controller is not safe for concurrent use; it is driven from the recording
// loop only.
type Controller struct {
	gains    Gains
	profiles []Profile

	preset   Preset
	maxGain  int
	clipTime int

	smoothL  int
	smoothR  int
	dropTime int
	riseTime int
	balTime  int
	redraws  int
}

// Option configures a Controller.
type Option func(*Controller)

// WithProfiles replaces the default profile table. The table must hold one
// entry per preset from PresetSafety to MaxPreset.
func WithProfiles(p []Profile) Option {
	return func(c *Controller) {
		if len(p) >= len(Profiles) {
			c.profiles = p
		}
	}
}

// New returns a disabled controller driving g.
func New(g Gains, opts ...Option) *Controller {
	c := &Controller{gains: g, profiles: Profiles}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configure selects the preset and the gain ceiling and resets all timers.
func (c *Controller) Configure(preset Preset, maxGain int) {
	c.SetPreset(preset, maxGain)
	c.Reset()
}

// SetPreset selects the preset and the gain ceiling. Smoothing and timers
// carry over.
func (c *Controller) SetPreset(preset Preset, maxGain int) {
	c.preset = preset.Clamp()
	c.maxGain = maxGain
}

// SetClipTime sets how strongly clipping accelerates gain reduction (0..4).
func (c *Controller) SetClipTime(n int) {
	c.clipTime = min(max(n, 0), 4)
}

// Preset returns the active preset.
func (c *Controller) Preset() Preset { return c.preset }

// MaxGain returns the gain ceiling in half-dB steps.
func (c *Controller) MaxGain() int { return c.maxGain }

// Enabled reports whether a preset other than PresetOff is active.
func (c *Controller) Enabled() bool { return c.preset != PresetOff }

// Reset clears smoothing and all timers.
func (c *Controller) Reset() {
	c.smoothL, c.smoothR = 0, 0
	c.dropTime, c.riseTime, c.balTime = 0, 0, 0
}

// State returns a snapshot for status display.
func (c *Controller) State() State {
	return State{
		Preset:   c.preset,
		MaxGain:  c.maxGain,
		Enabled:  c.Enabled(),
		Smoothed: [2]int{c.smoothL, c.smoothR},
		Drop:     c.dropTime,
		Rise:     c.riseTime,
		Balance:  c.balTime,
	}
}

// GainIsMax reports whether any of the selected channels is at or above the
// ceiling. It is always false when AGC is off.
func (c *Controller) GainIsMax(left, right bool) bool {
	if c.preset == PresetOff {
		return false
	}
	l, r := c.gains.Levels()
	return (left && l >= c.maxGain) || (right && r >= c.maxGain)
}

// ClampToMax lowers each channel above the ceiling by one step and reports
// whether anything changed. It applies with any preset, AGC off included.
//
// ClampToMax is called once per display update and also advances the
// redraw count that paces balance decay.
func (c *Controller) ClampToMax() bool {
	c.redraws++
	l, r := c.gains.Levels()
	left, right := l > c.maxGain, r > c.maxGain
	if !left && !right {
		return false
	}
	c.gains.Step(false, left, right)
	return true
}

// Process runs one AGC step and reports whether the gain was changed.
// Invalid samples and a disabled controller leave all state untouched.
func (c *Controller) Process(s audio.PeakSample) bool {
	if !s.Valid || c.preset == PresetOff {
		return false
	}
	p := c.profiles[c.preset-1]
	tick := s.Tick

	c.smoothL = smooth(c.smoothL, s.Left)
	c.smoothR = smooth(c.smoothR, s.Right)
	mono := (c.smoothL + c.smoothR) / 2

	changed := false
	if c.preset != PresetSafety {
		changed = c.correctBalance(p, s.Balance, tick)
	}
	if c.correctLevel(p, mono, tick) {
		changed = true
	}
	return changed
}

// smooth follows rises immediately and decays toward lower readings by a
// quarter of the difference per step.
func smooth(cur, next int) int {
	if next > cur {
		return next
	}
	return cur - (cur-next+3)>>2
}

// every returns 1 when tick is a multiple of n.
func every(tick, n int) int {
	if tick%n == 0 {
		return 1
	}
	return 0
}

func (c *Controller) correctBalance(p Profile, balance, tick int) bool {
	if c.smoothL <= ImageLevel || c.smoothR <= ImageLevel {
		if c.redraws%4 == 0 {
			switch {
			case c.balTime < 0:
				c.balTime++
			case c.balTime > 0:
				c.balTime--
			}
		}
		return false
	}

	switch {
	case balance < -balanceDeadband:
		switch {
		case balance > -balanceSlight:
			c.balTime -= every(tick, 4)
		case balance > -balanceModerate:
			c.balTime--
		case balance > -balanceStrong:
			c.balTime -= 2
		default:
			c.balTime -= every(tick, 8)
		}
		if c.balTime > 0 {
			c.balTime -= tick % 2
		}
	case balance > balanceDeadband:
		switch {
		case balance < balanceSlight:
			c.balTime += every(tick, 4)
		case balance < balanceModerate:
			c.balTime++
		case balance < balanceStrong:
			c.balTime += 2
		default:
			c.balTime += every(tick, 8)
		}
		if c.balTime < 0 {
			c.balTime += tick % 2
		}
	}

	if balance*c.balTime < 0 {
		if balance < 0 {
			c.balTime -= tick % 2
		} else {
			c.balTime += tick % 2
		}
	}

	// Trending up raises the weaker channel, otherwise the louder one is lowered.
	increment := c.riseTime/2 > c.dropTime
	changed := false
	switch {
	case c.balTime < -p.BalanceTicks:
		// Left is louder.
		if !increment || !c.GainIsMax(false, true) {
			c.gains.Step(increment, !increment, increment)
			changed = true
		}
		c.balTime = 0
	case c.balTime > p.BalanceTicks:
		// Right is louder.
		if !increment || !c.GainIsMax(true, false) {
			c.gains.Step(increment, increment, !increment)
			changed = true
		}
		c.balTime = 0
	}
	if changed {
		slog.Debug("agc balance step", "up", increment, "balance", balance)
	}
	return changed
}

func (c *Controller) correctLevel(p Profile, mono, tick int) bool {
	changed := false
	switch {
	case c.smoothL > p.HighThreshold || c.smoothR > p.HighThreshold:
		if c.smoothL > ClipLevel || c.smoothR > ClipLevel {
			c.dropTime += p.DropTicks / (c.clipTime + 1)
		}
		for _, v := range [2]int{c.smoothL, c.smoothR} {
			if v > HighLevel {
				c.dropTime++
				c.riseTime = 0
				if v > PeakLevel {
					c.dropTime += 2
				}
			}
		}
		if mono > p.HighThreshold {
			c.dropTime++
		} else {
			c.dropTime += every(tick, 2)
		}

		if c.dropTime >= p.DropTicks {
			c.gains.Step(false, true, true)
			c.dropTime, c.riseTime = 0, 0
			changed = true
			slog.Debug("agc gain down", "preset", c.preset, "level", mono)
		}
		c.riseTime = max(c.riseTime-1, 0)

	case mono < p.LowThreshold:
		switch {
		case mono < p.LowThreshold/8:
			c.riseTime += every(tick, 5)
		case mono < p.LowThreshold/2:
			c.riseTime += 2
		default:
			c.riseTime++
		}

		if c.riseTime >= p.RiseTicks {
			if c.preset != PresetSafety && !c.GainIsMax(true, true) {
				c.gains.Step(true, true, true)
				changed = true
				slog.Debug("agc gain up", "preset", c.preset, "level", mono)
			}
			c.riseTime, c.dropTime = 0, 0
		}
		c.dropTime = max(c.dropTime-1, 0)

	case tick%6 == 0:
		c.riseTime = max(c.riseTime-1, 0)
		c.dropTime = max(c.dropTime-1, 0)
	}
	return changed
}
