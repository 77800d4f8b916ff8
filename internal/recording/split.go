package recording

import (
	"strconv"
	"time"

	"github.com/oszuidwest/zwfm-recorder/internal/config"
	"github.com/oszuidwest/zwfm-recorder/internal/types"
)

// SplitBytes returns the split size for a size index, or 0 when the index
// disables size splits.
func SplitBytes(index int) int64 {
	if index <= 0 || index >= len(types.SplitSizesMiB) {
		return 0
	}
	return types.SplitSizesMiB[index] << 20
}

// SplitDue reports whether the current file must be split. ceiling is set
// when the hard file size limit was reached, which always continues in a
// new file regardless of the configured split type.
func SplitDue(cfg config.SplitConfig, elapsed time.Duration, size int64) (due, ceiling bool) {
	if size >= types.MaxFileBytes {
		return true, true
	}
	switch cfg.Method {
	case types.SplitByTime:
		if cfg.Minutes > 0 && elapsed >= time.Duration(cfg.Minutes)*time.Minute {
			return true, false
		}
	case types.SplitBySize:
		if limit := SplitBytes(cfg.SizeIndex); limit > 0 && size >= limit {
			return true, false
		}
	}
	return false, false
}

// SplitLimit describes the configured split point for status display.
func SplitLimit(cfg config.SplitConfig) string {
	switch cfg.Method {
	case types.SplitByTime:
		if cfg.Minutes > 0 {
			return (time.Duration(cfg.Minutes) * time.Minute).String()
		}
	case types.SplitBySize:
		if limit := SplitBytes(cfg.SizeIndex); limit > 0 {
			return fmtMiB(limit)
		}
	}
	return "off"
}

func fmtMiB(n int64) string {
	return strconv.FormatInt(n>>20, 10) + "MiB"
}
