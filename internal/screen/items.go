package screen

import (
	"fmt"
	"slices"

	"github.com/oszuidwest/zwfm-recorder/internal/agc"
	"github.com/oszuidwest/zwfm-recorder/internal/config"
	"github.com/oszuidwest/zwfm-recorder/internal/recording"
	"github.com/oszuidwest/zwfm-recorder/internal/types"
)

// item is an entry of the settings list.
type item int

const (
	itemVolume item = iota
	itemGainLeft
	itemGainRight
	itemAGC
	itemAGCMax
	itemTrigger
	itemCount
)

var itemLabels = [itemCount]string{"Volume", "Gain Left", "Gain Right", "AGC", "AGC max", "Trigger"}

var triggerModes = []types.TriggerMode{types.TriggerOff, types.TriggerOnce, types.TriggerRearm}

var sources = []types.Source{types.SourceMic, types.SourceLine, types.SourceRadio}

// Item is one line of the settings list.
type Item struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// formatGain renders half-dB steps as decibels.
func formatGain(halfDB int) string {
	return fmt.Sprintf("%+.1f dB", float64(halfDB)/2)
}

func (s *Screen) items(snap recording.Snapshot, r config.RecordingConfig) []Item {
	values := [itemCount]string{
		itemVolume:    formatGain((snap.LeftGain + snap.RightGain) / 2),
		itemGainLeft:  formatGain(snap.LeftGain),
		itemGainRight: formatGain(snap.RightGain),
		itemAGC:       snap.AGC.Preset.String(),
		itemAGCMax:    formatGain(snap.AGC.MaxGain),
		itemTrigger:   string(r.Trigger.Mode),
	}
	out := make([]Item, itemCount)
	for i := range itemCount {
		out[i] = Item{Label: itemLabels[i], Value: values[i]}
	}
	return out
}

// adjust changes the selected setting one step.
func (s *Screen) adjust(it item, up bool) error {
	sess := s.session
	switch it {
	case itemVolume:
		sess.AdjustGain(up, true, true)
	case itemGainLeft:
		sess.AdjustGain(up, true, false)
	case itemGainRight:
		sess.AdjustGain(up, false, true)
	case itemAGC:
		return sess.SetAGCPreset(sess.AGC().Preset() + agc.Preset(step(up)))
	case itemAGCMax:
		return sess.SetAGCMaxGain(sess.AGC().MaxGain() + step(up))
	case itemTrigger:
		return s.cycleTriggerMode(up)
	}
	return nil
}

func step(up bool) int {
	if up {
		return 1
	}
	return -1
}

func (s *Screen) cycleTriggerMode(up bool) error {
	cur := s.settings.RecordingSettings().Trigger.Mode
	i := max(slices.Index(triggerModes, cur), 0) + step(up)
	next := triggerModes[min(max(i, 0), len(triggerModes)-1)]
	if next == cur {
		return nil
	}
	if err := s.settings.UpdateRecording(func(r *config.RecordingConfig) { r.Trigger.Mode = next }); err != nil {
		return err
	}
	if next == types.TriggerOff {
		s.session.DisarmTrigger()
	}
	return nil
}

// nextSource switches to the next recording input.
func (s *Screen) nextSource() error {
	cur := s.settings.RecordingSettings().Source
	i := (slices.Index(sources, cur) + 1) % len(sources)
	return s.session.SourceChanged(sources[i])
}
