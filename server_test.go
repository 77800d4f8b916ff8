package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oszuidwest/zwfm-recorder/internal/config"
	"github.com/oszuidwest/zwfm-recorder/internal/eventlog"
	"github.com/oszuidwest/zwfm-recorder/internal/notify"
	"github.com/oszuidwest/zwfm-recorder/internal/screen"
	"github.com/oszuidwest/zwfm-recorder/internal/server"
)

const testKey = "test-key"

type fakeMeter struct{}

func (fakeMeter) Meter() (left, right float64, clipped bool) { return -12, -18, false }

func newTestServer(t *testing.T) (*Server, chan screen.Action) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.New(filepath.Join(dir, "config.json"))
	if err := cfg.SetAPIKey(testKey); err != nil {
		t.Fatal(err)
	}
	hub := server.NewHub()
	actions := make(chan screen.Action, 1)
	logPath := filepath.Join(dir, "events.jsonl")
	commands := server.NewCommandHandler(server.CommandHandlerConfig{
		Config:   cfg,
		Hub:      hub,
		Notifier: notify.NewNotifier(cfg),
		Actions:  actions,
		Reload:   make(chan struct{}, 1),
		EventLog: logPath,
	})
	return NewServer(ServerConfig{
		Config:   cfg,
		Hub:      hub,
		Commands: commands,
		Meter:    fakeMeter{},
		Version:  newVersionChecker("http://127.0.0.1:0", http.DefaultClient),
		EventLog: logPath,
	}), actions
}

func do(t *testing.T, h http.Handler, method, target, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if auth {
		req.Header.Set("X-API-Key", testKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPIRequiresKey(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.SetupRoutes()
	for _, target := range []string{"/api/status", "/api/events", "/ws"} {
		if rec := do(t, h, http.MethodGet, target, "", false); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s without key: got %d, want 401", target, rec.Code)
		}
	}
	if rec := do(t, h, http.MethodGet, "/api/status?key="+testKey, "", false); rec.Code != http.StatusOK {
		t.Errorf("status with key parameter: got %d", rec.Code)
	}
}

func TestAPIAction(t *testing.T) {
	s, actions := newTestServer(t)
	h := s.SetupRoutes()

	rec := do(t, h, http.MethodPost, "/api/action", `{"action":"pause"}`, true)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("action: got %d (%s)", rec.Code, rec.Body)
	}
	if got := <-actions; got != screen.ActionPause {
		t.Errorf("queued action: got %s, want pause", got)
	}

	if rec := do(t, h, http.MethodPost, "/api/action?action=inc", "", true); rec.Code != http.StatusAccepted {
		t.Fatalf("query action: got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/action?action=dec", "", true); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("full queue: got %d, want 503", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/action?action=jump", "", true); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown action: got %d, want 400", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/action?action=inc", "", true); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET action: got %d, want 405", rec.Code)
	}
}

func TestAPIStatus(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.SetupRoutes()

	var resp StatusResponse
	rec := do(t, h, http.MethodGet, "/api/status", "", true)
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Screen != nil || resp.Recording {
		t.Errorf("status before first frame: %+v", resp)
	}

	s.hub.Render(screen.Frame{Lines: []string{"STOPPED  0:00:00"}, Selected: 1})
	rec = do(t, h, http.MethodGet, "/api/status", "", true)
	resp = StatusResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Screen == nil || resp.Screen.Lines[0] != "STOPPED  0:00:00" {
		t.Errorf("screen: got %+v", resp.Screen)
	}
	if resp.Version.Current != normalizeVersion(Version) {
		t.Errorf("version: got %q", resp.Version.Current)
	}
}

func TestAPIEvents(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.SetupRoutes()

	logger, err := eventlog.NewLogger(s.eventLog)
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()
	if err := logger.LogTake(eventlog.TakeStarted, "t1", &eventlog.TakeDetails{Filename: "R_LINE_0001.wav"}); err != nil {
		t.Fatal(err)
	}
	if err := logger.LogUpload(eventlog.UploadCompleted, &eventlog.UploadDetails{Filename: "R_LINE_0001.wav"}); err != nil {
		t.Fatal(err)
	}

	rec := do(t, h, http.MethodGet, "/api/events?type=upload", "", true)
	var resp struct {
		Events  []eventlog.Event `json:"events"`
		HasMore bool             `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Events) != 1 || resp.Events[0].Type != eventlog.UploadCompleted {
		t.Errorf("events: got %+v", resp.Events)
	}

	for _, q := range []string{"limit=0", "limit=501", "offset=-1", "type=bogus"} {
		if rec := do(t, h, http.MethodGet, "/api/events?"+q, "", true); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", q, rec.Code)
		}
	}
}

func TestIndexAndStatic(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.SetupRoutes()

	rec := do(t, h, http.MethodGet, "/", "", false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "/app.js") {
		t.Errorf("index: got %d", rec.Code)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options: got %q", got)
	}
	rec = do(t, h, http.MethodGet, "/style.css", "", false)
	if ct := rec.Header().Get("Content-Type"); ct != "text/css" {
		t.Errorf("style.css content type: got %q", ct)
	}
	if rec := do(t, h, http.MethodGet, "/missing.js", "", false); rec.Code != http.StatusNotFound {
		t.Errorf("missing file: got %d", rec.Code)
	}
}
