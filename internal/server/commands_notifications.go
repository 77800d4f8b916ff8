package server

import (
	"errors"
	"log/slog"

	"github.com/oszuidwest/zwfm-recorder/internal/eventlog"
	"github.com/oszuidwest/zwfm-recorder/internal/notify"
	"github.com/oszuidwest/zwfm-recorder/internal/types"
	"github.com/oszuidwest/zwfm-recorder/internal/util"
)

// defaultEventLimit is the page size of events/view without a limit.
const defaultEventLimit = 50

// handleNotificationUpdate processes notifications/<channel>/update.
func (h *CommandHandler) handleNotificationUpdate(channel string, cmd WSCommand, send chan<- any) {
	switch channel {
	case "webhook":
		HandleCommand(cmd, send, func(req *WebhookUpdateRequest) (any, error) {
			return nil, h.cfg.SetWebhookURL(req.URL)
		})
	case "log":
		HandleCommand(cmd, send, func(req *LogUpdateRequest) (any, error) {
			if req.Path != "" {
				if err := util.ValidatePath("path", req.Path); err != nil {
					return nil, err
				}
			}
			return nil, h.cfg.SetLogPath(req.Path)
		})
	case "email":
		HandleCommand(cmd, send, func(req *EmailUpdateRequest) (any, error) {
			g := types.GraphConfig(*req)
			if g.ClientSecret == maskedSecret {
				g.ClientSecret = h.cfg.GraphConfig().ClientSecret
			}
			if err := h.cfg.SetGraphConfig(g); err != nil {
				return nil, err
			}
			h.notifier.InvalidateGraphClient()
			return nil, nil
		})
	default:
		h.unknown(cmd, send)
	}
}

// handleNotificationTest processes notifications/<channel>/test. Tests run
// asynchronously and answer with a test_result message.
func (h *CommandHandler) handleNotificationTest(channel string, cmd WSCommand, send chan<- any) {
	snap := h.cfg.Snapshot()

	var run func() error
	switch channel {
	case "webhook":
		run = func() error {
			if !snap.HasWebhook() {
				return errors.New("webhook URL not configured")
			}
			return notify.SendTestWebhook(snap.WebhookURL, snap.Station)
		}
	case "log":
		run = func() error {
			if !snap.HasLogPath() {
				return errors.New("log file path not configured")
			}
			return notify.WriteTestLog(snap.LogPath)
		}
	case "email":
		run = func() error {
			g := h.cfg.GraphConfig()
			return notify.SendTestEmail(&g, snap.Station)
		}
	default:
		h.unknown(cmd, send)
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in test handler", "channel", channel, "panic", r)
			}
		}()

		result := types.WSTestResult{Type: "test_result", TestType: channel, Success: true}
		if err := run(); err != nil {
			slog.Error("notification test failed", "channel", channel, "error", err)
			result.Success = false
			result.Error = err.Error()
		} else {
			slog.Info("notification test succeeded", "channel", channel)
		}
		SendData(send, result)
	}()
}

// EventsView is the events/view response.
type EventsView struct {
	Events  []eventlog.Event `json:"events"`
	HasMore bool             `json:"has_more"`
	Path    string           `json:"path"`
}

// handleEventsView processes an events/view command.
func (h *CommandHandler) handleEventsView(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *EventsRequest) (any, error) {
		if h.eventLog == "" {
			return nil, errors.New("event log not configured")
		}
		limit := req.Limit
		if limit == 0 {
			limit = defaultEventLimit
		}
		events, more, err := eventlog.ReadLast(h.eventLog, limit, req.Offset, eventlog.TypeFilter(req.Type))
		if err != nil {
			return nil, err
		}
		return EventsView{Events: events, HasMore: more, Path: h.eventLog}, nil
	})
}
