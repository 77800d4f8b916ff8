// Package types provides shared type definitions used across the recorder.
package types

import (
	"time"
)

const (
	// ShutdownTimeout is the duration to wait for graceful process shutdown.
	ShutdownTimeout = 3000 * time.Millisecond
	// EncoderStopTimeout is how long a take encoder may take to finalize its file.
	EncoderStopTimeout = 10000 * time.Millisecond
	// InitialRetryDelay is the starting delay between capture restart attempts.
	InitialRetryDelay = 3000 * time.Millisecond
	// MaxRetryDelay is the maximum delay between capture restart attempts.
	MaxRetryDelay = 60000 * time.Millisecond
	// SuccessThreshold is the capture run time after which the backoff resets.
	SuccessThreshold = 30000 * time.Millisecond
)

// Audio format constants for PCM capture and encoding.
const (
	// SampleRate is the audio sample rate in Hz.
	SampleRate = 48000
	// Channels is the number of audio channels (stereo).
	Channels = 2
	// BytesPerFrame is the size of one stereo S16LE frame.
	BytesPerFrame = 4
)

// Codec represents an audio codec type used for takes.
type Codec string

// Supported audio codecs.
const (
	CodecWAV  Codec = "wav"  // Uncompressed PCM in a WAV container
	CodecFLAC Codec = "flac" // Free Lossless Audio Codec
	CodecMP3  Codec = "mp3"  // MPEG Audio Layer III
	CodecMP2  Codec = "mp2"  // MPEG Audio Layer II
	CodecOGG  Codec = "ogg"  // Ogg Vorbis
)

// CodecPreset defines FFmpeg encoding parameters for a codec.
type CodecPreset struct {
	Args      []string // FFmpeg codec arguments
	Format    string   // FFmpeg output format
	Extension string   // File extension without dot
	MimeType  string   // Content type for uploads
}

// CodecPresets maps codec types to their FFmpeg configuration.
var CodecPresets = map[Codec]CodecPreset{
	CodecWAV:  {[]string{"pcm_s16le"}, "wav", "wav", "audio/wav"},
	CodecFLAC: {[]string{"flac"}, "flac", "flac", "audio/flac"},
	CodecMP2:  {[]string{"libtwolame", "-b:a", "384k", "-psymodel", "4"}, "mp2", "mp2", "audio/mpeg"},
	CodecMP3:  {[]string{"libmp3lame", "-b:a", "320k"}, "mp3", "mp3", "audio/mpeg"},
	CodecOGG:  {[]string{"libvorbis", "-qscale:a", "10"}, "ogg", "ogg", "audio/ogg"},
}

// PresetFor returns the preset for codec, falling back to WAV.
func PresetFor(codec Codec) CodecPreset {
	if preset, ok := CodecPresets[codec]; ok {
		return preset
	}
	return CodecPresets[CodecWAV]
}

// StorageMode determines where finished takes are kept.
type StorageMode string

// Supported storage modes.
const (
	StorageLocal StorageMode = "local" // Keep takes on the local filesystem only
	StorageS3    StorageMode = "s3"    // Upload takes and delete the local copy
	StorageBoth  StorageMode = "both"  // Keep the local copy and upload
)

// Source is the active recording input.
type Source string

// Recording inputs.
const (
	SourceMic   Source = "mic"   // Microphone, one gain for both channels
	SourceLine  Source = "line"  // Line input, gain per channel
	SourceRadio Source = "radio" // FM tuner, gain per channel
)

// FilePrefix returns the take filename prefix for the source.
func (s Source) FilePrefix() string {
	switch s {
	case SourceLine:
		return "R_LINE_"
	case SourceRadio:
		return "R_FM_"
	default:
		return "R_MIC_"
	}
}

// TriggerMode selects whether the level trigger is used and what happens
// after it fires.
type TriggerMode string

// Trigger modes.
const (
	TriggerOff   TriggerMode = "off"   // Record manually
	TriggerOnce  TriggerMode = "once"  // Disarm after one take
	TriggerRearm TriggerMode = "rearm" // Stay armed for the next take
)

// TriggerType is the action taken when the signal drops after a trigger.
type TriggerType string

// Trigger types.
const (
	TriggerStop     TriggerType = "stop"     // Stop recording
	TriggerPause    TriggerType = "pause"    // Pause and resume on the next trigger
	TriggerNewFile  TriggerType = "new-file" // Close the take and open a new one
	TriggerShutdown TriggerType = "shutdown" // Stop and request a shutdown
)

// SplitMethod selects what limits the length of one file.
type SplitMethod string

// Split methods.
const (
	SplitByTime SplitMethod = "time"
	SplitBySize SplitMethod = "size"
)

// SplitType is the action taken when a file reaches its split limit.
type SplitType string

// Split types.
const (
	SplitNewFile  SplitType = "new-file" // Continue in a new file
	SplitStop     SplitType = "stop"     // Stop recording
	SplitShutdown SplitType = "shutdown" // Stop and request a shutdown
)

// SplitSizesMiB are the selectable split sizes; index 0 disables size splits.
var SplitSizesMiB = []int64{0, 5, 10, 15, 32, 64, 75, 100, 128, 256, 512, 650, 700, 1024, 1536, 1792}

// MaxFileBytes is the hard file size ceiling (2 GiB minus 8 MiB).
const MaxFileBytes int64 = 0x7F800000

// AudioDevice represents an available audio input device.
type AudioDevice struct {
	ID   string `json:"id"`   // Device identifier
	Name string `json:"name"` // Device display name
}

// GraphConfig contains Microsoft Graph API settings for email notifications.
type GraphConfig struct {
	TenantID     string `json:"tenant_id,omitempty"`     // Azure AD tenant ID
	ClientID     string `json:"client_id,omitempty"`     // App registration client ID
	ClientSecret string `json:"client_secret,omitempty"` // App registration client secret
	FromAddress  string `json:"from_address,omitempty"`  // Shared mailbox address (sender)
	Recipients   string `json:"recipients,omitempty"`    // Comma-separated recipients
}

// VersionInfo contains version comparison data.
type VersionInfo struct {
	Current     string `json:"current"`              // Current version
	Latest      string `json:"latest,omitempty"`     // Latest available version
	UpdateAvail bool   `json:"update_available"`     // Update is available
	Commit      string `json:"commit,omitempty"`     // Git commit hash
	BuildTime   string `json:"build_time,omitempty"` // Build timestamp
}
