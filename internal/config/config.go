// Package config provides application configuration management.
package config

import (
	"cmp"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/oszuidwest/zwfm-recorder/internal/types"
	"github.com/oszuidwest/zwfm-recorder/internal/util"
)

// Configuration defaults are used when values are not specified.
const (
	DefaultWebPort          = 8080
	DefaultDirectory        = "recordings"
	DefaultCodec            = types.CodecWAV
	DefaultAGCMaxGain       = 24 // +12 dB
	DefaultStartThresholdDB = -30.0
	DefaultStopThresholdDB  = -40.0
	DefaultPostRecSeconds   = 10.0
	DefaultBusPrefix        = "recorder"
)

// Gain limits in half-dB steps.
const (
	MinGain = -48
	MaxGain = 48
)

// validate is the shared validator instance for configuration structs.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// SystemConfig holds system-level settings that require restart.
type SystemConfig struct {
	FFmpegPath string `json:"ffmpeg_path"`                         // Path to FFmpeg binary (empty = use PATH)
	Port       int    `json:"port" validate:"gte=1,lte=65535"`     // HTTP server port
	APIKey     string `json:"api_key"`                             // API key for the HTTP and WebSocket API
	EventLog   string `json:"event_log"`                           // JSONL event log path (empty = platform default)
	Station    string `json:"station" validate:"omitempty,max=30"` // Name used in notifications
}

// AudioConfig holds audio input device settings.
type AudioConfig struct {
	Input string `json:"input"` // Audio input device identifier (empty = platform default)
}

// AGCConfig holds automatic gain control settings, stored per input kind.
type AGCConfig struct {
	MicPreset   int `json:"mic_preset" validate:"gte=0,lte=5"`       // Preset for the microphone
	LinePreset  int `json:"line_preset" validate:"gte=0,lte=5"`      // Preset for line and radio
	MicMaxGain  int `json:"mic_max_gain" validate:"gte=-48,lte=48"`  // Ceiling for the microphone, half-dB steps
	LineMaxGain int `json:"line_max_gain" validate:"gte=-48,lte=48"` // Ceiling for line and radio, half-dB steps
	ClipTime    int `json:"clip_time" validate:"gte=0,lte=4"`        // Weight of clipping on gain reduction
}

// TriggerConfig holds level trigger settings.
type TriggerConfig struct {
	Mode             types.TriggerMode `json:"mode" validate:"oneof=off once rearm"`
	Type             types.TriggerType `json:"type" validate:"oneof=stop pause new-file shutdown"`
	StartThresholdDB float64           `json:"start_threshold_db" validate:"gte=-89,lte=0"`
	StopThresholdDB  float64           `json:"stop_threshold_db" validate:"gte=-89,lte=0"`
	StartSeconds     float64           `json:"start_seconds" validate:"gte=0,lte=60"`
	PostRecSeconds   float64           `json:"postrec_seconds" validate:"gte=0,lte=600"`
	GapSeconds       float64           `json:"gap_seconds" validate:"gte=0,lte=600"`
}

// SplitConfig holds file splitting settings.
type SplitConfig struct {
	Method    types.SplitMethod `json:"method" validate:"oneof=time size"`
	Minutes   int               `json:"minutes" validate:"gte=0,lte=1440"`  // 0 disables time splits
	SizeIndex int               `json:"size_index" validate:"gte=0,lte=15"` // Index into types.SplitSizesMiB
	Type      types.SplitType   `json:"type" validate:"oneof=new-file stop shutdown"`
}

// RecordingConfig holds the recording screen settings.
type RecordingConfig struct {
	Source        types.Source  `json:"source" validate:"oneof=mic line radio"`
	Directory     string        `json:"directory" validate:"required,max=4096"`
	Codec         types.Codec   `json:"codec" validate:"oneof=wav flac mp3 mp2 ogg"`
	NumberedFiles bool          `json:"numbered_files"` // R_MIC_0001 style names instead of timestamps
	MicGain       int           `json:"mic_gain" validate:"gte=-48,lte=48"`
	LeftGain      int           `json:"left_gain" validate:"gte=-48,lte=48"`
	RightGain     int           `json:"right_gain" validate:"gte=-48,lte=48"`
	AGC           AGCConfig     `json:"agc"`
	Trigger       TriggerConfig `json:"trigger"`
	Split         SplitConfig   `json:"split"`
}

// UploadConfig holds S3 upload settings for finished takes.
type UploadConfig struct {
	StorageMode       types.StorageMode `json:"storage_mode" validate:"oneof=local s3 both"`
	S3Endpoint        string            `json:"s3_endpoint" validate:"omitempty,max=2048"`
	S3Bucket          string            `json:"s3_bucket" validate:"omitempty,max=63"`
	S3AccessKeyID     string            `json:"s3_access_key_id" validate:"omitempty,max=128"`
	S3SecretAccessKey string            `json:"s3_secret_access_key" validate:"omitempty,max=256"`
	S3Prefix          string            `json:"s3_prefix" validate:"omitempty,max=256"`
}

// WebhookConfig holds webhook notification settings.
type WebhookConfig struct {
	URL string `json:"url" validate:"omitempty,max=2048"` // Webhook URL for alerts
}

// LogConfig holds log file notification settings.
type LogConfig struct {
	Path string `json:"path" validate:"omitempty,max=4096"` // Log file path for alerts
}

// EmailConfig holds Microsoft Graph email notification settings.
type EmailConfig struct {
	TenantID     string `json:"tenant_id"`     // Azure AD tenant ID
	ClientID     string `json:"client_id"`     // App registration client ID
	ClientSecret string `json:"client_secret"` // App registration client secret
	FromAddress  string `json:"from_address"`  // Shared mailbox sender address
	Recipients   string `json:"recipients"`    // Comma-separated recipient addresses
}

// NotificationsConfig holds all notification channel settings.
type NotificationsConfig struct {
	Webhook WebhookConfig `json:"webhook"` // Webhook settings
	Log     LogConfig     `json:"log"`     // Log file settings
	Email   EmailConfig   `json:"email"`   // Email settings
}

// BusConfig holds NATS event bridge settings.
type BusConfig struct {
	URL    string `json:"url" validate:"omitempty,max=2048"` // NATS server URL (empty = disabled)
	Prefix string `json:"prefix" validate:"omitempty,max=128,excludesall= *>"`
}

// Config holds all application configuration. It is safe for concurrent use.
type Config struct {
	System        SystemConfig        `json:"system"`
	Audio         AudioConfig         `json:"audio"`
	Recording     RecordingConfig     `json:"recording"`
	Upload        UploadConfig        `json:"upload"`
	Notifications NotificationsConfig `json:"notifications"`
	Bus           BusConfig           `json:"bus"`

	mu       sync.RWMutex
	filePath string
}

// New creates a new Config with default values.
func New(filePath string) *Config {
	c := &Config{filePath: filePath}
	c.applyNumericDefaults()
	c.applyDefaults()
	return c
}

// applyNumericDefaults sets defaults for fields where zero is a valid
// setting. Load unmarshals on top of them, so only absent keys keep them.
func (c *Config) applyNumericDefaults() {
	r := &c.Recording
	r.AGC.MicMaxGain = DefaultAGCMaxGain
	r.AGC.LineMaxGain = DefaultAGCMaxGain
	r.Trigger.StartThresholdDB = DefaultStartThresholdDB
	r.Trigger.StopThresholdDB = DefaultStopThresholdDB
	r.Trigger.PostRecSeconds = DefaultPostRecSeconds
}

// Load reads config from file, creating a default if none exists.
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		return c.saveLocked()
	}
	if err != nil {
		return util.WrapError("read config", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return util.WrapError("parse config", err)
	}

	c.applyDefaults()

	return c.validate()
}

// Save persists the current configuration.
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked()
}

// validate checks all configuration fields for correctness.
func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return describe(err)
	}
	return nil
}

// describe turns validator errors into a single readable error.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("invalid %s %v: failed %q", fe.Namespace(), fe.Value(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// applyDefaults sets default values for empty fields that have no valid
// zero value.
func (c *Config) applyDefaults() {
	c.System.Port = cmp.Or(c.System.Port, DefaultWebPort)

	r := &c.Recording
	r.Source = cmp.Or(r.Source, types.SourceLine)
	r.Directory = cmp.Or(r.Directory, DefaultDirectory)
	r.Codec = cmp.Or(r.Codec, DefaultCodec)
	r.Trigger.Mode = cmp.Or(r.Trigger.Mode, types.TriggerOff)
	r.Trigger.Type = cmp.Or(r.Trigger.Type, types.TriggerStop)
	r.Split.Method = cmp.Or(r.Split.Method, types.SplitByTime)
	r.Split.Type = cmp.Or(r.Split.Type, types.SplitNewFile)

	c.Upload.StorageMode = cmp.Or(c.Upload.StorageMode, types.StorageLocal)
	c.Bus.Prefix = cmp.Or(c.Bus.Prefix, DefaultBusPrefix)
}

// saveLocked persists configuration. Caller must hold c.mu.
func (c *Config) saveLocked() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return util.WrapError("marshal config", err)
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapError("create config directory", err)
	}

	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return util.WrapError("write config", err)
	}

	return nil
}

// --- Recording settings ---

// RecordingSettings returns a copy of the recording settings.
func (c *Config) RecordingSettings() RecordingConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Recording
}

// UpdateRecording applies fn to the recording settings in memory. The change
// is discarded when the result does not validate. Call Save to persist.
func (c *Config) UpdateRecording(fn func(*RecordingConfig)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.Recording
	fn(&next)
	if err := validate.Struct(&next); err != nil {
		return describe(err)
	}
	c.Recording = next
	return nil
}

// --- Getters for individual settings ---

// AudioInput returns the configured audio input device.
func (c *Config) AudioInput() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Audio.Input
}

// FFmpegPath returns the configured FFmpeg binary path.
func (c *Config) FFmpegPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.System.FFmpegPath
}

// APIKey returns the API key for the HTTP and WebSocket API.
func (c *Config) APIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.System.APIKey
}

// GraphConfig returns a copy of the current Graph/Email configuration.
func (c *Config) GraphConfig() types.GraphConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return types.GraphConfig{
		TenantID:     c.Notifications.Email.TenantID,
		ClientID:     c.Notifications.Email.ClientID,
		ClientSecret: c.Notifications.Email.ClientSecret,
		FromAddress:  c.Notifications.Email.FromAddress,
		Recipients:   c.Notifications.Email.Recipients,
	}
}

// UploadSettings returns a copy of the upload settings.
func (c *Config) UploadSettings() UploadConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Upload
}

// --- Setters for individual settings ---

// SetAudioInput updates the audio input device and saves the configuration.
func (c *Config) SetAudioInput(input string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Audio.Input = input
	return c.saveLocked()
}

// SetAPIKey updates the API key and saves the configuration.
func (c *Config) SetAPIKey(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.System.APIKey = key
	return c.saveLocked()
}

// SetWebhookURL updates the webhook URL and saves the configuration.
func (c *Config) SetWebhookURL(url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notifications.Webhook.URL = url
	return c.saveLocked()
}

// SetLogPath updates the log file path and saves the configuration.
func (c *Config) SetLogPath(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notifications.Log.Path = path
	return c.saveLocked()
}

// SetGraphConfig updates all Microsoft Graph/Email configuration fields and saves.
func (c *Config) SetGraphConfig(g types.GraphConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notifications.Email = EmailConfig(g)
	return c.saveLocked()
}

// SetUpload validates and stores the upload settings.
func (c *Config) SetUpload(u UploadConfig) error {
	if err := validate.Struct(&u); err != nil {
		return describe(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Upload = u
	return c.saveLocked()
}

// --- Snapshot for atomic reads ---

// Snapshot is a point-in-time copy of configuration values.
type Snapshot struct {
	// System
	WebPort    int
	APIKey     string
	FFmpegPath string
	EventLog   string
	Station    string

	// Audio
	AudioInput string

	// Recording
	Recording RecordingConfig

	// Upload
	Upload UploadConfig

	// Notifications
	WebhookURL        string
	LogPath           string
	GraphTenantID     string
	GraphClientID     string
	GraphClientSecret string
	GraphFromAddress  string
	GraphRecipients   string

	// Bus
	BusURL    string
	BusPrefix string
}

// Snapshot returns a point-in-time copy of all configuration values.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		WebPort:    c.System.Port,
		APIKey:     c.System.APIKey,
		FFmpegPath: c.System.FFmpegPath,
		EventLog:   c.System.EventLog,
		Station:    cmp.Or(c.System.Station, "Recorder"),

		AudioInput: c.Audio.Input,

		Recording: c.Recording,
		Upload:    c.Upload,

		WebhookURL:        c.Notifications.Webhook.URL,
		LogPath:           c.Notifications.Log.Path,
		GraphTenantID:     c.Notifications.Email.TenantID,
		GraphClientID:     c.Notifications.Email.ClientID,
		GraphClientSecret: c.Notifications.Email.ClientSecret,
		GraphFromAddress:  c.Notifications.Email.FromAddress,
		GraphRecipients:   c.Notifications.Email.Recipients,

		BusURL:    c.Bus.URL,
		BusPrefix: c.Bus.Prefix,
	}
}

// HasWebhook reports whether a webhook URL is configured.
func (s *Snapshot) HasWebhook() bool {
	return s.WebhookURL != ""
}

// HasGraph reports whether Microsoft Graph email notifications are configured.
func (s *Snapshot) HasGraph() bool {
	return util.IsConfigured(s.GraphTenantID, s.GraphClientID, s.GraphClientSecret,
		s.GraphFromAddress, s.GraphRecipients)
}

// HasLogPath reports whether a log path is configured.
func (s *Snapshot) HasLogPath() bool {
	return s.LogPath != ""
}

// HasS3 reports whether takes are uploaded to S3.
func (s *Snapshot) HasS3() bool {
	return s.Upload.StorageMode != types.StorageLocal && s.Upload.S3Bucket != ""
}

// HasBus reports whether the NATS event bridge is configured.
func (s *Snapshot) HasBus() bool {
	return s.BusURL != ""
}

// --- Utility functions ---

// GenerateAPIKey generates a new random 32-character alphanumeric API key.
func GenerateAPIKey() (string, error) {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 32
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			return "", err
		}
		result[i] = chars[n.Int64()]
	}
	return string(result), nil
}
