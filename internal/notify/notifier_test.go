package notify

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/oszuidwest/zwfm-recorder/internal/config"
	"github.com/oszuidwest/zwfm-recorder/internal/events"
	"github.com/oszuidwest/zwfm-recorder/internal/types"
)

type webhookSink struct {
	mu       sync.Mutex
	payloads []WebhookPayload
}

func (s *webhookSink) server(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p WebhookPayload
		if err := json.Unmarshal(body, &p); err != nil {
			t.Errorf("webhook body: %v", err)
		}
		s.mu.Lock()
		s.payloads = append(s.payloads, p)
		s.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAudioErrorEventFansOut(t *testing.T) {
	sink := &webhookSink{}
	srv := sink.server(t, http.StatusNoContent)
	dir := t.TempDir()
	logPath := filepath.Join(dir, "alerts.jsonl")

	cfg := config.New(filepath.Join(dir, "config.json"))
	if err := cfg.SetWebhookURL(srv.URL); err != nil {
		t.Fatal(err)
	}
	if err := cfg.SetLogPath(logPath); err != nil {
		t.Fatal(err)
	}

	n := NewNotifier(cfg)
	n.HandleEvent(events.AudioError, events.Take{
		Path: "/rec/R_LINE_260101-120000.wav",
		Err:  errors.New("no space left on device"),
	})
	n.Wait()

	if len(sink.payloads) != 1 {
		t.Fatalf("webhook calls: got %d, want 1", len(sink.payloads))
	}
	p := sink.payloads[0]
	if p.Event != EventAudioError || p.Filename != "R_LINE_260101-120000.wav" || p.Error != "no space left on device" {
		t.Errorf("payload: %+v", p)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"event":"audio_error"`) {
		t.Errorf("log file: %s", data)
	}
}

func TestHandleEventIgnoresOtherEvents(t *testing.T) {
	sink := &webhookSink{}
	srv := sink.server(t, http.StatusOK)
	cfg := config.New(filepath.Join(t.TempDir(), "config.json"))
	if err := cfg.SetWebhookURL(srv.URL); err != nil {
		t.Fatal(err)
	}

	n := NewNotifier(cfg)
	n.HandleEvent(events.FileClosed, events.Take{Path: "x.wav"})
	n.Wait()
	if len(sink.payloads) != 0 {
		t.Errorf("webhook calls: got %d, want 0", len(sink.payloads))
	}
}

func TestUploadAbandonedWebhook(t *testing.T) {
	sink := &webhookSink{}
	srv := sink.server(t, http.StatusOK)
	cfg := config.New(filepath.Join(t.TempDir(), "config.json"))
	if err := cfg.SetWebhookURL(srv.URL); err != nil {
		t.Fatal(err)
	}

	n := NewNotifier(cfg)
	n.UploadAbandoned(UploadAbandonedParams{Filename: "a.wav", S3Key: "takes/a.wav", RetryCount: 12, LastError: "timeout"})
	n.Wait()
	if len(sink.payloads) != 1 || sink.payloads[0].RetryCount != 12 || sink.payloads[0].S3Key != "takes/a.wav" {
		t.Errorf("payloads: %+v", sink.payloads)
	}
}

func TestSendWebhookStatus(t *testing.T) {
	sink := &webhookSink{}
	srv := sink.server(t, http.StatusInternalServerError)
	if err := SendTestWebhook(srv.URL, "Studio"); err == nil {
		t.Error("SendTestWebhook: expected error for status 500")
	}
	if err := SendTestWebhook("", "Studio"); err == nil {
		t.Error("SendTestWebhook without URL: expected error")
	}
	if err := SendAudioErrorWebhook("", "Studio", "a.wav", "x"); err != nil {
		t.Errorf("unconfigured webhook: %v", err)
	}
}

func TestWriteTestLog(t *testing.T) {
	if err := WriteTestLog(""); err == nil {
		t.Error("WriteTestLog without path: expected error")
	}
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	if err := WriteTestLog(path); err != nil {
		t.Fatal(err)
	}
	if err := WriteTestLog(path); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if got := strings.Count(string(data), "\n"); got != 2 {
		t.Errorf("log lines: got %d, want 2", got)
	}
}

func TestValidateConfig(t *testing.T) {
	valid := types.GraphConfig{
		TenantID:     "12345678-1234-1234-1234-123456789abc",
		ClientID:     "12345678-1234-1234-1234-123456789abc",
		ClientSecret: "secret",
		FromAddress:  "studio@example.org",
		Recipients:   "a@example.org, b@example.org",
	}
	if err := ValidateConfig(&valid); err != nil {
		t.Errorf("valid config: %v", err)
	}

	tests := []struct {
		name   string
		modify func(*types.GraphConfig)
		want   error
	}{
		{"no tenant", func(c *types.GraphConfig) { c.TenantID = "" }, ErrNoTenant},
		{"bad tenant", func(c *types.GraphConfig) { c.TenantID = "contoso" }, ErrInvalidGUID},
		{"no secret", func(c *types.GraphConfig) { c.ClientSecret = "" }, ErrNoSecret},
		{"no sender", func(c *types.GraphConfig) { c.FromAddress = "" }, ErrNoFromAddress},
		{"blank recipients", func(c *types.GraphConfig) { c.Recipients = " , " }, ErrNoRecipients},
	}
	for _, tt := range tests {
		cfg := valid
		tt.modify(&cfg)
		if err := ValidateConfig(&cfg); !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestParseRecipients(t *testing.T) {
	got := ParseRecipients(" a@x.nl ,, b@x.nl ")
	if len(got) != 2 || got[0] != "a@x.nl" || got[1] != "b@x.nl" {
		t.Errorf("ParseRecipients: got %q", got)
	}
}
