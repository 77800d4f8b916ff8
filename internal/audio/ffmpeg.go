//go:build darwin

package audio

import (
	"strconv"

	"github.com/oszuidwest/zwfm-recorder/internal/types"
)

// buildFFmpegCaptureArgs returns FFmpeg arguments that read device through
// inputFormat and write raw PCM in the recorder's sample format to stdout.
func buildFFmpegCaptureArgs(inputFormat, device string) []string {
	return []string{
		"-hide_banner", "-nostdin", "-loglevel", "warning",
		"-f", inputFormat,
		"-i", device,
		"-vn",
		"-f", "s16le",
		"-ac", strconv.Itoa(types.Channels),
		"-ar", strconv.Itoa(types.SampleRate),
		"pipe:1",
	}
}
