package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/oszuidwest/zwfm-recorder/internal/config"
	"github.com/oszuidwest/zwfm-recorder/internal/notify"
	"github.com/oszuidwest/zwfm-recorder/internal/screen"
)

var (
	errUnknownCommand  = errors.New("unknown command")
	errNoFrame         = errors.New("recording screen not running")
	errActionQueueFull = errors.New("action queue full")
	errRecordingBusy   = errors.New("cannot change while recording")
)

// WSCommand is a command received from a WebSocket client.
type WSCommand struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// CommandHandlerConfig wires a CommandHandler.
type CommandHandlerConfig struct {
	Config   *config.Config
	Hub      *Hub
	Notifier *notify.Notifier
	// Actions feeds the recording screen.
	Actions chan<- screen.Action
	// Reload tells the recording screen that settings changed.
	Reload chan<- struct{}
	// EventLog is the path of the JSON lines event log.
	EventLog string
}

// CommandHandler processes WebSocket commands. Commands never touch the
// recording session directly: actions and settings changes reach the
// recording loop through channels.
type CommandHandler struct {
	cfg      *config.Config
	hub      *Hub
	notifier *notify.Notifier
	actions  chan<- screen.Action
	reload   chan<- struct{}
	eventLog string
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(c CommandHandlerConfig) *CommandHandler {
	return &CommandHandler{
		cfg:      c.Config,
		hub:      c.Hub,
		notifier: c.Notifier,
		actions:  c.Actions,
		reload:   c.Reload,
		eventLog: c.EventLog,
	}
}

// Handle processes a WebSocket command.
// Commands use slash-style format: namespace/action[/subaction] (e.g.
// "screen/action", "settings/trigger/update", "notifications/webhook/test").
func (h *CommandHandler) Handle(cmd WSCommand, send chan<- any) {
	namespace, rest, _ := strings.Cut(cmd.Type, "/")
	action, subaction, _ := strings.Cut(rest, "/")

	switch namespace {
	case "screen":
		h.handleScreen(action, cmd, send)
	case "settings":
		h.handleSettings(action, subaction, cmd, send)
	case "upload":
		h.handleUpload(action, cmd, send)
	case "notifications":
		h.handleNotifications(action, subaction, cmd, send)
	case "events":
		h.handleEvents(action, cmd, send)
	default:
		h.unknown(cmd, send)
	}
}

// --- Namespace handlers ---

// handleScreen routes screen/* commands.
func (h *CommandHandler) handleScreen(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "action":
		HandleCommand(cmd, send, func(req *ActionRequest) (any, error) {
			a, err := screen.ParseAction(req.Action)
			if err != nil {
				return nil, err
			}
			return nil, h.Submit(a)
		})
	case "get":
		f, ok := h.hub.Last()
		if !ok {
			SendError(send, cmd.Type, errNoFrame)
			return
		}
		SendSuccess(send, cmd.Type, f)
	default:
		h.unknown(cmd, send)
	}
}

// handleSettings routes settings/* commands.
func (h *CommandHandler) handleSettings(action, subaction string, cmd WSCommand, send chan<- any) {
	if action == "get" {
		h.handleSettingsGet(cmd, send)
		return
	}
	if action == "api-key" && subaction == "regenerate" {
		h.handleRegenerateAPIKey(cmd, send)
		return
	}
	if subaction != "update" {
		h.unknown(cmd, send)
		return
	}
	switch action {
	case "recording":
		h.handleRecordingUpdate(cmd, send)
	case "audio":
		h.handleAudioUpdate(cmd, send)
	case "trigger":
		h.handleTriggerUpdate(cmd, send)
	case "split":
		h.handleSplitUpdate(cmd, send)
	case "agc":
		h.handleAGCUpdate(cmd, send)
	default:
		h.unknown(cmd, send)
	}
}

// handleUpload routes upload/* commands.
func (h *CommandHandler) handleUpload(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "update":
		h.handleUploadUpdate(cmd, send)
	case "test":
		h.handleUploadTest(cmd, send)
	default:
		h.unknown(cmd, send)
	}
}

// handleNotifications routes notifications/*/* commands.
func (h *CommandHandler) handleNotifications(channel, subaction string, cmd WSCommand, send chan<- any) {
	switch subaction {
	case "update":
		h.handleNotificationUpdate(channel, cmd, send)
	case "test":
		h.handleNotificationTest(channel, cmd, send)
	default:
		h.unknown(cmd, send)
	}
}

// handleEvents routes events/* commands.
func (h *CommandHandler) handleEvents(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "view":
		h.handleEventsView(cmd, send)
	default:
		h.unknown(cmd, send)
	}
}

func (h *CommandHandler) unknown(cmd WSCommand, send chan<- any) {
	slog.Warn("unknown WebSocket command", "type", cmd.Type)
	SendError(send, cmd.Type, errUnknownCommand)
}

// Submit queues an action for the recording screen.
func (h *CommandHandler) Submit(a screen.Action) error {
	select {
	case h.actions <- a:
		slog.Debug("remote action queued", "action", a)
		return nil
	default:
		return errActionQueueFull
	}
}

// requestReload asks the recording loop to pick up changed settings.
func (h *CommandHandler) requestReload() {
	select {
	case h.reload <- struct{}{}:
	default:
	}
}
