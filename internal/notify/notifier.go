package notify

import (
	"path/filepath"
	"sync"

	"github.com/oszuidwest/zwfm-recorder/internal/config"
	"github.com/oszuidwest/zwfm-recorder/internal/events"
	"github.com/oszuidwest/zwfm-recorder/internal/util"
)

// Notifier fans recorder alerts out to the configured webhook, log file and
// email channels. Every channel is sent from its own goroutine so callers on
// the recording loop never block on network I/O.
type Notifier struct {
	cfg *config.Config

	mu          sync.Mutex
	graphClient *GraphClient

	// wg tracks in-flight sends; tests wait on it.
	wg sync.WaitGroup
}

// NewNotifier returns a Notifier reading channel settings from cfg.
func NewNotifier(cfg *config.Config) *Notifier {
	return &Notifier{cfg: cfg}
}

// InvalidateGraphClient clears the cached Graph client.
// Call this when Graph configuration changes.
func (n *Notifier) InvalidateGraphClient() {
	n.mu.Lock()
	n.graphClient = nil
	n.mu.Unlock()
}

func (n *Notifier) client(cfg *GraphConfig) (*GraphClient, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.graphClient != nil {
		return n.graphClient, nil
	}
	client, err := NewGraphClient(cfg)
	if err != nil {
		return nil, err
	}
	n.graphClient = client
	return client, nil
}

// HandleEvent implements events.Handler for AudioError.
func (n *Notifier) HandleEvent(id events.ID, data any) {
	if id != events.AudioError {
		return
	}
	take, _ := data.(events.Take)
	errMsg := "unknown error"
	if take.Err != nil {
		errMsg = take.Err.Error()
	}
	n.AudioError(filepath.Base(take.Path), errMsg)
}

// AudioError sends an alert that a take was aborted.
func (n *Notifier) AudioError(filename, errMsg string) {
	cfg := n.cfg.Snapshot()

	if cfg.HasWebhook() {
		n.send("Audio error webhook", func() error {
			return SendAudioErrorWebhook(cfg.WebhookURL, cfg.Station, filename, errMsg)
		})
	}
	if cfg.HasLogPath() {
		n.send("Audio error log", func() error {
			return LogAudioError(cfg.LogPath, filename, errMsg)
		})
	}
	if cfg.HasGraph() {
		subject, body := audioErrorEmail(cfg.Station, filename, errMsg)
		n.send("Audio error email", func() error { return n.email(&cfg, subject, body) })
	}
}

// UploadAbandoned sends an alert that an upload was given up.
func (n *Notifier) UploadAbandoned(p UploadAbandonedParams) {
	cfg := n.cfg.Snapshot()

	if cfg.HasWebhook() {
		n.send("Upload abandoned webhook", func() error {
			return SendUploadAbandonedWebhook(cfg.WebhookURL, cfg.Station, p)
		})
	}
	if cfg.HasLogPath() {
		n.send("Upload abandoned log", func() error {
			return LogUploadAbandoned(cfg.LogPath, p)
		})
	}
	if cfg.HasGraph() {
		subject, body := uploadAbandonedEmail(cfg.Station, p)
		n.send("Upload abandoned email", func() error { return n.email(&cfg, subject, body) })
	}
}

// Wait blocks until all sends started so far have finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) send(kind string, fn func() error) {
	n.wg.Go(func() {
		util.LogNotifyResult(fn, kind)
	})
}

// email sends through the cached Graph client.
func (n *Notifier) email(cfg *config.Snapshot, subject, body string) error {
	graphCfg := &GraphConfig{
		TenantID:     cfg.GraphTenantID,
		ClientID:     cfg.GraphClientID,
		ClientSecret: cfg.GraphClientSecret,
		FromAddress:  cfg.GraphFromAddress,
		Recipients:   cfg.GraphRecipients,
	}
	client, err := n.client(graphCfg)
	if err != nil {
		return util.WrapError("create Graph client", err)
	}
	if err := client.SendMail(ParseRecipients(graphCfg.Recipients), subject, body); err != nil {
		return util.WrapError("send email via Graph", err)
	}
	return nil
}
