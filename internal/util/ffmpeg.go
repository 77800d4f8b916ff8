package util

import (
	"cmp"
	"os/exec"
)

// ResolveFFmpegPath returns the executable used for capture and encoding:
// customPath when set, otherwise ffmpeg from PATH. It returns "" when the
// binary cannot be found.
func ResolveFFmpegPath(customPath string) string {
	path, err := exec.LookPath(cmp.Or(customPath, "ffmpeg"))
	if err != nil {
		return ""
	}
	return path
}
