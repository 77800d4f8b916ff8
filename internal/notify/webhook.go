package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oszuidwest/zwfm-recorder/internal/util"
)

// Webhook event names.
const (
	EventAudioError      = "audio_error"
	EventUploadAbandoned = "upload_abandoned"
	EventTest            = "test"
)

// WebhookPayload represents the data sent to webhook endpoints.
type WebhookPayload struct {
	Event      string `json:"event"`
	Station    string `json:"station,omitempty"`
	Filename   string `json:"filename,omitempty"`
	S3Key      string `json:"s3_key,omitempty"`
	RetryCount int    `json:"retry,omitempty"`
	Error      string `json:"error,omitempty"`
	Message    string `json:"message,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// SendAudioErrorWebhook notifies the configured webhook that a take was
// aborted by an audio backend error.
func SendAudioErrorWebhook(webhookURL, station, filename, errMsg string) error {
	return sendWebhook(webhookURL, &WebhookPayload{
		Event:     EventAudioError,
		Station:   station,
		Filename:  filename,
		Error:     errMsg,
		Timestamp: timestampUTC(),
	})
}

// SendUploadAbandonedWebhook notifies the configured webhook that an upload
// was given up.
func SendUploadAbandonedWebhook(webhookURL, station string, p UploadAbandonedParams) error {
	return sendWebhook(webhookURL, &WebhookPayload{
		Event:      EventUploadAbandoned,
		Station:    station,
		Filename:   p.Filename,
		S3Key:      p.S3Key,
		RetryCount: p.RetryCount,
		Error:      p.LastError,
		Timestamp:  timestampUTC(),
	})
}

// SendTestWebhook sends a test webhook notification.
func SendTestWebhook(webhookURL, stationName string) error {
	if webhookURL == "" {
		return fmt.Errorf("webhook URL not configured")
	}

	return sendWebhook(webhookURL, &WebhookPayload{
		Event:     EventTest,
		Station:   stationName,
		Message:   "This is a test notification from " + stationName,
		Timestamp: timestampUTC(),
	})
}

// sendWebhook delivers a notification to the configured webhook endpoint.
func sendWebhook(webhookURL string, payload *WebhookPayload) error {
	if !util.IsConfigured(webhookURL) {
		return nil // Silently skip if not configured
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return util.WrapError("marshal payload", err)
	}

	client := &http.Client{Timeout: 10000 * time.Millisecond}
	resp, err := client.Post(webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return util.WrapError("send webhook request", err)
	}
	defer util.SafeCloseFunc(resp.Body, "webhook response body")()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
