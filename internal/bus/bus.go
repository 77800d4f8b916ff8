// Package bus bridges recorder events and remote actions over NATS.
package bus

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oszuidwest/zwfm-recorder/internal/events"
	"github.com/oszuidwest/zwfm-recorder/internal/screen"
	"github.com/oszuidwest/zwfm-recorder/internal/util"
)

// Conn is the subset of *nats.Conn used by the bridge.
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	Close()
}

// Message is the envelope published for every event.
type Message struct {
	Event string    `json:"event"`
	Time  time.Time `json:"time"`
	Data  any       `json:"data,omitempty"`
}

// actionRequest is the JSON form of an action message. A plain action name
// is accepted as well.
type actionRequest struct {
	Action string `json:"action"`
}

// Bridge publishes registry events to <prefix>.events.<event> and feeds
// actions received on <prefix>.actions to the recording screen.
type Bridge struct {
	conn    Conn
	prefix  string
	actions chan<- screen.Action
}

// Connect dials the NATS server at url with reconnects enabled.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, util.WrapError("connect to NATS", err)
	}
	slog.Info("connected to NATS", "url", nc.ConnectedUrl())
	return nc, nil
}

// New returns a bridge on conn. actions may be nil to publish only.
func New(conn Conn, prefix string, actions chan<- screen.Action) *Bridge {
	return &Bridge{conn: conn, prefix: prefix, actions: actions}
}

// Subject returns the subject events with id are published on.
func (b *Bridge) Subject(id events.ID) string {
	return b.prefix + ".events." + id.String()
}

// ActionSubject returns the subject actions are received on.
func (b *Bridge) ActionSubject() string {
	return b.prefix + ".actions"
}

// Start subscribes to the action subject.
func (b *Bridge) Start() error {
	if b.actions == nil {
		return nil
	}
	if _, err := b.conn.Subscribe(b.ActionSubject(), b.handleAction); err != nil {
		return util.WrapError("subscribe to actions", err)
	}
	slog.Info("listening for remote actions", "subject", b.ActionSubject())
	return nil
}

// HandleEvent implements events.Handler. Publishing is buffered by the
// client and does not block.
func (b *Bridge) HandleEvent(id events.ID, data any) {
	if err, ok := data.(error); ok {
		data = err.Error()
	}
	payload, err := json.Marshal(Message{Event: id.String(), Time: time.Now().UTC(), Data: data})
	if err != nil {
		slog.Warn("failed to encode bus event", "event", id, "error", err)
		return
	}
	if err := b.conn.Publish(b.Subject(id), payload); err != nil {
		slog.Debug("failed to publish bus event", "event", id, "error", err)
	}
}

func (b *Bridge) handleAction(msg *nats.Msg) {
	name := strings.TrimSpace(string(msg.Data))
	if strings.HasPrefix(name, "{") {
		var req actionRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			b.reply(msg, "invalid action message")
			return
		}
		name = req.Action
	}

	action, err := screen.ParseAction(name)
	if err != nil {
		slog.Warn("unknown remote action", "action", name)
		b.reply(msg, err.Error())
		return
	}

	select {
	case b.actions <- action:
		b.reply(msg, "ok")
	default:
		slog.Warn("action queue full, dropping remote action", "action", action)
		b.reply(msg, "busy")
	}
}

func (b *Bridge) reply(msg *nats.Msg, text string) {
	if msg.Reply == "" {
		return
	}
	if err := msg.Respond([]byte(text)); err != nil {
		slog.Debug("failed to reply to action", "error", err)
	}
}

// Close closes the connection.
func (b *Bridge) Close() {
	b.conn.Close()
}
