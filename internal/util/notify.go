package util

import (
	"log/slog"
	"time"
)

// LogNotifyResult runs a notification send and logs its outcome. Failures
// are only logged: a notification never affects a take.
func LogNotifyResult(fn func() error, notifyType string) {
	start := time.Now()
	if err := fn(); err != nil {
		slog.Error("notification failed", "type", notifyType, "error", err)
		return
	}
	slog.Info("notification sent", "type", notifyType, "took", time.Since(start).Round(time.Millisecond))
}
