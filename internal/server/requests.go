package server

// Request types for WebSocket commands. Optional settings use pointer
// fields so that only the provided values change.

// ActionRequest is the request body for screen/action.
type ActionRequest struct {
	Action string `json:"action" validate:"required,oneof=inc dec prev next cancel menu new-file pause exit"`
}

// --- Recording settings ---

// RecordingUpdateRequest is the request body for settings/recording/update.
type RecordingUpdateRequest struct {
	Source        *string `json:"source" validate:"omitempty,oneof=mic line radio"`
	Directory     *string `json:"directory" validate:"omitempty,min=1,max=4096"`
	Codec         *string `json:"codec" validate:"omitempty,oneof=wav flac mp3 mp2 ogg"`
	NumberedFiles *bool   `json:"numbered_files"`
	MicGain       *int    `json:"mic_gain" validate:"omitempty,gte=-48,lte=48"`
	LeftGain      *int    `json:"left_gain" validate:"omitempty,gte=-48,lte=48"`
	RightGain     *int    `json:"right_gain" validate:"omitempty,gte=-48,lte=48"`
}

// AudioUpdateRequest is the request body for settings/audio/update.
type AudioUpdateRequest struct {
	Input string `json:"input" validate:"omitempty,max=256"`
}

// TriggerUpdateRequest is the request body for settings/trigger/update.
type TriggerUpdateRequest struct {
	Mode             *string  `json:"mode" validate:"omitempty,oneof=off once rearm"`
	Type             *string  `json:"type" validate:"omitempty,oneof=stop pause new-file shutdown"`
	StartThresholdDB *float64 `json:"start_threshold_db" validate:"omitempty,gte=-89,lte=0"`
	StopThresholdDB  *float64 `json:"stop_threshold_db" validate:"omitempty,gte=-89,lte=0"`
	StartSeconds     *float64 `json:"start_seconds" validate:"omitempty,gte=0,lte=60"`
	PostRecSeconds   *float64 `json:"postrec_seconds" validate:"omitempty,gte=0,lte=600"`
	GapSeconds       *float64 `json:"gap_seconds" validate:"omitempty,gte=0,lte=600"`
}

// SplitUpdateRequest is the request body for settings/split/update.
type SplitUpdateRequest struct {
	Method    *string `json:"method" validate:"omitempty,oneof=time size"`
	Minutes   *int    `json:"minutes" validate:"omitempty,gte=0,lte=1440"`
	SizeIndex *int    `json:"size_index" validate:"omitempty,gte=0,lte=15"`
	Type      *string `json:"type" validate:"omitempty,oneof=new-file stop shutdown"`
}

// AGCUpdateRequest is the request body for settings/agc/update.
type AGCUpdateRequest struct {
	MicPreset   *int `json:"mic_preset" validate:"omitempty,gte=0,lte=5"`
	LinePreset  *int `json:"line_preset" validate:"omitempty,gte=0,lte=5"`
	MicMaxGain  *int `json:"mic_max_gain" validate:"omitempty,gte=-48,lte=48"`
	LineMaxGain *int `json:"line_max_gain" validate:"omitempty,gte=-48,lte=48"`
	ClipTime    *int `json:"clip_time" validate:"omitempty,gte=0,lte=4"`
}

// --- Upload settings ---

// UploadUpdateRequest is the request body for upload/update.
type UploadUpdateRequest struct {
	StorageMode       string `json:"storage_mode" validate:"required,oneof=local s3 both"`
	S3Endpoint        string `json:"s3_endpoint" validate:"omitempty,max=2048"`
	S3Bucket          string `json:"s3_bucket" validate:"required_unless=StorageMode local,max=63"`
	S3AccessKeyID     string `json:"s3_access_key_id" validate:"omitempty,max=128"`
	S3SecretAccessKey string `json:"s3_secret_access_key" validate:"omitempty,max=256"`
	S3Prefix          string `json:"s3_prefix" validate:"omitempty,max=256"`
}

// S3TestRequest is the request body for upload/test.
type S3TestRequest struct {
	Endpoint  string `json:"s3_endpoint" validate:"omitempty,max=2048"`
	Bucket    string `json:"s3_bucket" validate:"required,max=63"`
	AccessKey string `json:"s3_access_key_id" validate:"required,max=128"`
	SecretKey string `json:"s3_secret_access_key" validate:"required,max=256"`
}

// --- Notification settings ---

// WebhookUpdateRequest is the request body for notifications/webhook/update.
type WebhookUpdateRequest struct {
	URL string `json:"url" validate:"omitempty,max=2048,http_url"`
}

// LogUpdateRequest is the request body for notifications/log/update.
type LogUpdateRequest struct {
	Path string `json:"path" validate:"omitempty,max=4096"`
}

// EmailUpdateRequest is the request body for notifications/email/update.
type EmailUpdateRequest struct {
	TenantID     string `json:"tenant_id" validate:"omitempty,max=100"`
	ClientID     string `json:"client_id" validate:"omitempty,max=100"`
	ClientSecret string `json:"client_secret" validate:"omitempty,max=500"`
	FromAddress  string `json:"from_address" validate:"omitempty,max=254"`
	Recipients   string `json:"recipients" validate:"omitempty,max=1000"`
}

// --- Event log ---

// EventsRequest is the request body for events/view.
type EventsRequest struct {
	Limit  int    `json:"limit" validate:"gte=0,lte=500"`
	Offset int    `json:"offset" validate:"gte=0"`
	Type   string `json:"type" validate:"omitempty,oneof=take trigger gain upload"`
}
