package notify

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/oszuidwest/zwfm-recorder/internal/util"
)

// LogEntry is one line of the alert log file.
type LogEntry struct {
	Timestamp  string `json:"timestamp"`
	Event      string `json:"event"`
	Filename   string `json:"filename,omitempty"`
	S3Key      string `json:"s3_key,omitempty"`
	RetryCount int    `json:"retry,omitempty"`
	Error      string `json:"error,omitempty"`
}

// LogAudioError records a take aborted by an audio backend error.
func LogAudioError(logPath, filename, errMsg string) error {
	return appendLogEntry(logPath, &LogEntry{
		Timestamp: timestampUTC(),
		Event:     EventAudioError,
		Filename:  filename,
		Error:     errMsg,
	})
}

// LogUploadAbandoned records an upload that was given up.
func LogUploadAbandoned(logPath string, p UploadAbandonedParams) error {
	return appendLogEntry(logPath, &LogEntry{
		Timestamp:  timestampUTC(),
		Event:      EventUploadAbandoned,
		Filename:   p.Filename,
		S3Key:      p.S3Key,
		RetryCount: p.RetryCount,
		Error:      p.LastError,
	})
}

// WriteTestLog writes a test log entry.
func WriteTestLog(logPath string) error {
	if logPath == "" {
		return fmt.Errorf("log file path not configured")
	}

	return appendLogEntry(logPath, &LogEntry{
		Timestamp: timestampUTC(),
		Event:     EventTest,
	})
}

// appendLogEntry appends a log entry to the file.
func appendLogEntry(logPath string, entry *LogEntry) error {
	if !util.IsConfigured(logPath) {
		return nil
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		return util.WrapError("marshal log entry", err)
	}
	jsonData = append(jsonData, '\n')

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return util.WrapError("open log file", err)
	}
	defer util.SafeCloseFunc(f, "log file")()

	if _, err := f.Write(jsonData); err != nil {
		return util.WrapError("write log entry", err)
	}

	return nil
}
