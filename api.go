package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/oszuidwest/zwfm-recorder/internal/audio"
	"github.com/oszuidwest/zwfm-recorder/internal/eventlog"
	"github.com/oszuidwest/zwfm-recorder/internal/screen"
	"github.com/oszuidwest/zwfm-recorder/internal/types"
	"github.com/oszuidwest/zwfm-recorder/internal/util"
)

// API response helpers

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseJSON reads and parses JSON from request body. An empty body yields
// the zero value.
// Returns parsed value and true on success, zero value and false on failure.
func parseJSON[T any](s *Server, w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return v, false
	}
	return v, true
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Version   types.VersionInfo `json:"version"`
	Uptime    string            `json:"uptime"`
	Clients   int               `json:"clients"`
	Recording bool              `json:"recording"`
	Screen    *screen.Frame     `json:"screen"`
}

// handleAPIStatus returns the current recording screen.
// GET /api/status
func (s *Server) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version:   s.version.Info(),
		Uptime:    util.FormatDuration(time.Since(s.started)),
		Clients:   s.hub.Clients(),
		Recording: s.hub.Recording(),
	}
	if f, ok := s.hub.Last(); ok {
		resp.Screen = &f
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleAPIDevices returns available audio devices.
// GET /api/devices
func (s *Server) handleAPIDevices(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"devices": audio.Devices(),
		"input":   s.config.Snapshot().AudioInput,
	})
}

// actionBody is the request body for POST /api/action.
type actionBody struct {
	Action string `json:"action"`
}

// handleAPIAction queues a key press for the recording screen.
// POST /api/action?action=new-file or {"action": "new-file"}
func (s *Server) handleAPIAction(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("action")
	if name == "" {
		body, ok := parseJSON[actionBody](s, w, r)
		if !ok {
			return
		}
		name = body.Action
	}

	a, err := screen.ParseAction(name)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.commands.Submit(a); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "action": a.String()})
}

// handleAPIEvents returns a page of the event log, newest first.
// GET /api/events?limit=50&offset=0&type=take
func (s *Server) handleAPIEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"), 50)
	if err != nil || limit < 1 || limit > eventlog.MaxReadLimit {
		s.writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
		return
	}
	offset, err := queryInt(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		s.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	filter := eventlog.TypeFilter(q.Get("type"))
	switch filter {
	case eventlog.FilterAll, eventlog.FilterTake, eventlog.FilterTrigger, eventlog.FilterGain, eventlog.FilterUpload:
	default:
		s.writeError(w, http.StatusBadRequest, "type must be one of: take trigger gain upload")
		return
	}

	events, more, err := eventlog.ReadLast(s.eventLog, limit, offset, filter)
	if err != nil {
		slog.Error("failed to read event log", "path", s.eventLog, "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to read event log")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": events, "has_more": more})
}

func queryInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
