package audio

import "errors"

// ErrNoAudioDevice is returned when no input is configured and none can be found.
var ErrNoAudioDevice = errors.New("no audio input device found")

// CaptureConfig describes how the platform captures raw PCM for the recorder.
type CaptureConfig struct {
	// Command is the capture executable; "ffmpeg" is replaced by the
	// resolved FFmpeg path.
	Command string

	// DefaultDevice is used when no input is configured.
	DefaultDevice string

	// BuildArgs returns arguments that write S16LE PCM at SampleRate and
	// Channels to stdout.
	BuildArgs func(device string) []string
}

// BuildCaptureCommand returns the capture command for device. With no
// device the platform default is used, then the first listed input.
func BuildCaptureCommand(device, ffmpegPath string) (cmd string, args []string, err error) {
	cfg := getPlatformConfig()

	if device == "" {
		device = cfg.DefaultDevice
	}
	if device == "" {
		devices := Devices()
		if len(devices) == 0 {
			return "", nil, ErrNoAudioDevice
		}
		device = devices[0].ID
	}

	cmd = cfg.Command
	if cmd == "ffmpeg" && ffmpegPath != "" {
		cmd = ffmpegPath
	}
	return cmd, cfg.BuildArgs(device), nil
}
