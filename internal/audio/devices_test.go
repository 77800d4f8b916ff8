package audio

import (
	"regexp"
	"testing"
)

func TestParseDeviceOutput(t *testing.T) {
	output := `**** List of CAPTURE Hardware Devices ****
card 1: sndrpihifiberry [snd_rpi_hifiberry_dacplusadc], device 0: HiFiBerry DAC+ADC
  Subdevices: 1/1
card 2: Device [USB Audio Device], device 0: USB Audio [USB Audio]
`
	cfg := DeviceListConfig{
		DevicePattern: regexp.MustCompile(`card\s+(\d+):\s+(\w+)\s+\[([^\]]+)\]`),
		ParseDevice: func(m []string) *Device {
			return &Device{ID: "default:CARD=" + m[2], Name: m[3]}
		},
		FallbackDevices: []Device{{ID: "default", Name: "System default"}},
	}

	got := parseDeviceOutput(output, cfg)
	if len(got) != 2 {
		t.Fatalf("devices: got %d, want 2", len(got))
	}
	if got[1].ID != "default:CARD=Device" || got[1].Name != "USB Audio Device" {
		t.Errorf("second device: got %+v", got[1])
	}

	if got := parseDeviceOutput("no cards", cfg); len(got) != 1 || got[0].ID != "default" {
		t.Errorf("fallback: got %+v", got)
	}
}

func TestParseDeviceOutputSections(t *testing.T) {
	output := `[AVFoundation indev @ 0x1] AVFoundation video devices:
[AVFoundation indev @ 0x1] [0] FaceTime Camera
[AVFoundation indev @ 0x1] AVFoundation audio devices:
[AVFoundation indev @ 0x1] [0] MacBook Microphone
[AVFoundation indev @ 0x1] [1] USB Interface`
	cfg := DeviceListConfig{
		AudioStartMarker: "AVFoundation audio devices:",
		AudioStopMarker:  "AVFoundation video devices:",
		DevicePattern:    regexp.MustCompile(`\[AVFoundation[^\]]*\]\s*\[(\d+)\]\s*(.+)`),
		ParseDevice: func(m []string) *Device {
			return &Device{ID: ":" + m[1], Name: m[2]}
		},
	}
	got := parseDeviceOutput(output, cfg)
	if len(got) != 2 || got[0].Name != "MacBook Microphone" || got[1].ID != ":1" {
		t.Errorf("got %+v", got)
	}
}
