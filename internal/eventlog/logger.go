// Package eventlog provides unified event logging for the recorder.
// It captures take events (started, split, stopped), trigger transitions,
// gain changes and upload events in a single JSON lines file.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event.
type EventType string

// Take event types.
const (
	TakeStarted EventType = "take_started"
	TakeSplit   EventType = "take_split"
	TakePaused  EventType = "take_paused"
	TakeResumed EventType = "take_resumed"
	TakeStopped EventType = "take_stopped"
	AudioError  EventType = "audio_error"
)

// Trigger event types.
const (
	TriggerArmed    EventType = "trigger_armed"
	TriggerGo       EventType = "trigger_go"
	TriggerReady    EventType = "trigger_ready"
	TriggerDisarmed EventType = "trigger_disarmed"
)

// Gain event types.
const (
	GainChanged EventType = "gain_changed"
)

// Upload event types.
const (
	UploadQueued    EventType = "upload_queued"
	UploadCompleted EventType = "upload_completed"
	UploadFailed    EventType = "upload_failed"
	UploadRetry     EventType = "upload_retry"
	UploadAbandoned EventType = "upload_abandoned"
)

// Event represents a single log entry with type-specific details.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"ts"`
	Type      EventType `json:"type"`
	TakeID    string    `json:"take_id,omitempty"`
	Message   string    `json:"msg,omitempty"`
	Details   any       `json:"details,omitempty"`
}

// TakeDetails contains take-specific event details.
type TakeDetails struct {
	Filename   string `json:"filename,omitempty"`
	Source     string `json:"source,omitempty"`
	Codec      string `json:"codec,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Bytes      int64  `json:"bytes,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

// TriggerDetails contains trigger-specific event details.
type TriggerDetails struct {
	Mode  string `json:"mode,omitempty"`
	Type  string `json:"type,omitempty"`
	State string `json:"state,omitempty"`
}

// GainDetails contains gain-change event details.
type GainDetails struct {
	Left   int    `json:"left"`
	Right  int    `json:"right"`
	Preset string `json:"preset,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// UploadDetails contains upload-specific event details.
type UploadDetails struct {
	Filename   string `json:"filename,omitempty"`
	S3Key      string `json:"s3_key,omitempty"`
	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry,omitempty"`
}

// Logger writes events to a JSON lines file.
// It is safe for concurrent use.
type Logger struct {
	mu       sync.Mutex
	filePath string
	file     *os.File
	encoder  *json.Encoder
}

// DefaultLogPath returns the platform-specific log file path.
func DefaultLogPath(port int) string {
	//nolint:gocritic // Intentional absolute path for Unix systems
	return filepath.Join("/var/log/recorder", fmt.Sprintf("%d", port), "recorder.jsonl")
}

// NewLogger creates a new event logger at the specified path.
func NewLogger(filePath string) (*Logger, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &Logger{
		filePath: filePath,
		file:     file,
		encoder:  json.NewEncoder(file),
	}, nil
}

// Log writes an event to the log file. A nil logger discards the event.
func (l *Logger) Log(event *Event) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	return l.encoder.Encode(event)
}

// LogTake logs a take event.
func (l *Logger) LogTake(eventType EventType, takeID string, d *TakeDetails) error {
	return l.Log(&Event{Type: eventType, TakeID: takeID, Details: d})
}

// LogTrigger logs a trigger event.
func (l *Logger) LogTrigger(eventType EventType, takeID string, d *TriggerDetails) error {
	return l.Log(&Event{Type: eventType, TakeID: takeID, Details: d})
}

// LogGain logs a gain change.
func (l *Logger) LogGain(takeID string, d *GainDetails) error {
	return l.Log(&Event{Type: GainChanged, TakeID: takeID, Details: d})
}

// LogUpload logs an upload event.
func (l *Logger) LogUpload(eventType EventType, d *UploadDetails) error {
	return l.Log(&Event{Type: eventType, Details: d})
}

// Close closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Path returns the path to the log file.
func (l *Logger) Path() string {
	return l.filePath
}

// TypeFilter specifies which event types to include when reading.
type TypeFilter string

// Filter constants for ReadLast.
const (
	FilterAll     TypeFilter = ""
	FilterTake    TypeFilter = "take"
	FilterTrigger TypeFilter = "trigger"
	FilterGain    TypeFilter = "gain"
	FilterUpload  TypeFilter = "upload"
)

var categories = map[EventType]TypeFilter{
	TakeStarted:     FilterTake,
	TakeSplit:       FilterTake,
	TakePaused:      FilterTake,
	TakeResumed:     FilterTake,
	TakeStopped:     FilterTake,
	AudioError:      FilterTake,
	TriggerArmed:    FilterTrigger,
	TriggerGo:       FilterTrigger,
	TriggerReady:    FilterTrigger,
	TriggerDisarmed: FilterTrigger,
	GainChanged:     FilterGain,
	UploadQueued:    FilterUpload,
	UploadCompleted: FilterUpload,
	UploadFailed:    FilterUpload,
	UploadRetry:     FilterUpload,
	UploadAbandoned: FilterUpload,
}

// Category returns the filter an event type belongs to.
func Category(t EventType) TypeFilter {
	return categories[t]
}

// Matches reports whether an event type passes the filter.
func (f TypeFilter) Matches(t EventType) bool {
	return f == FilterAll || categories[t] == f
}

// MaxReadLimit is the maximum number of events that can be read at once.
const MaxReadLimit = 500

// ReadLast reads events from the log file with pagination support.
// Returns up to n events starting from offset, filtered by type, newest
// first, and whether more matching events exist.
// The n parameter is capped at MaxReadLimit.
func ReadLast(filePath string, n, offset int, filter TypeFilter) ([]Event, bool, error) {
	n = min(n, MaxReadLimit)
	if n <= 0 {
		return []Event{}, false, nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Event{}, false, nil
		}
		return nil, false, err
	}
	defer file.Close() //nolint:errcheck // Read-only operation, close error not critical

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, false, err
	}

	events := make([]Event, 0, n)
	skipped := 0
	for i := len(lines) - 1; i >= 0; i-- {
		var event Event
		if err := json.Unmarshal([]byte(lines[i]), &event); err != nil {
			continue // Skip malformed lines
		}
		if !filter.Matches(event.Type) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(events) == n {
			return events, true, nil
		}
		events = append(events, event)
	}

	return events, false, nil
}
