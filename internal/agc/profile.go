// Package agc implements automatic gain control for the recording input.
//
// The controller runs once per peak sampler tick (about 5 Hz). All timer
// thresholds in the profile table are expressed in those ticks.
package agc

import "fmt"

// Level thresholds shared by all profiles, as 16-bit peak amplitudes.
const (
	// ClipLevel is treated as clipping (-0.0003 dBFS).
	ClipLevel = 32766
	// PeakLevel accelerates gain reduction (-0.8 dBFS).
	PeakLevel = 29883
	// HighLevel stops any pending gain increase (-1.6 dBFS).
	HighLevel = 27254
	// ImageLevel is the minimum level on both channels for balance correction (-32 dBFS).
	ImageLevel = 823
)

// Profile holds the thresholds and timings of one AGC preset.
type Profile struct {
	Name string
	// HighThreshold is the level above which gain is reduced.
	HighThreshold int
	// LowThreshold is the level below which gain is raised.
	LowThreshold int
	// DropTicks is the drop timer value that triggers a one-step reduction.
	DropTicks int
	// RiseTicks is the rise timer value that triggers a one-step increase.
	RiseTicks int
	// BalanceTicks is the balance timer magnitude that triggers a channel correction.
	BalanceTicks int
}

// Preset selects a profile; PresetOff disables AGC.
type Preset int

// Presets in the order they are offered to the user.
const (
	PresetOff Preset = iota
	PresetSafety
	PresetLive
	PresetDJSet
	PresetMedium
	PresetVoice
)

// MaxPreset is the highest selectable preset.
const MaxPreset = PresetVoice

// Profiles is the default profile table indexed by Preset-1.
//
// Safety only ever reduces gain and never corrects balance.
var Profiles = []Profile{
	{Name: "Safety", HighThreshold: 23197, LowThreshold: 6538, DropTicks: 900, RiseTicks: 9000, BalanceTicks: 4500},
	{Name: "Live", HighThreshold: 14637, LowThreshold: 9235, DropTicks: 225, RiseTicks: 750, BalanceTicks: 500},
	{Name: "DJ-Set", HighThreshold: 21156, LowThreshold: 16422, DropTicks: 150, RiseTicks: 400, BalanceTicks: 300},
	{Name: "Medium", HighThreshold: 18428, LowThreshold: 14636, DropTicks: 60, RiseTicks: 150, BalanceTicks: 100},
	{Name: "Voice", HighThreshold: 18426, LowThreshold: 13045, DropTicks: 8, RiseTicks: 20, BalanceTicks: 15},
}

// String returns the display name of the preset.
func (p Preset) String() string {
	if p == PresetOff {
		return "Off"
	}
	if p > PresetOff && int(p) <= len(Profiles) {
		return Profiles[p-1].Name
	}
	return fmt.Sprintf("Preset(%d)", int(p))
}

// Clamp limits p to the selectable range.
func (p Preset) Clamp() Preset {
	return min(max(p, PresetOff), MaxPreset)
}

// ParsePreset returns the preset with the given display name.
func ParsePreset(name string) (Preset, error) {
	if name == "Off" {
		return PresetOff, nil
	}
	for i, prof := range Profiles {
		if prof.Name == name {
			return Preset(i + 1), nil
		}
	}
	return PresetOff, fmt.Errorf("unknown AGC preset %q", name)
}
