// Package main runs a field recorder: it captures audio through FFmpeg,
// records takes with automatic gain control, a level trigger and file
// splitting, and serves the recording screen to remote clients.
//
// Usage:
//
//	recorder [-config path/to/config.json]
//
// If -config is not specified, the recorder looks for config.json in the same
// directory as the binary.
package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/oszuidwest/zwfm-recorder/internal/audio"
	"github.com/oszuidwest/zwfm-recorder/internal/bus"
	"github.com/oszuidwest/zwfm-recorder/internal/config"
	"github.com/oszuidwest/zwfm-recorder/internal/eventlog"
	"github.com/oszuidwest/zwfm-recorder/internal/events"
	"github.com/oszuidwest/zwfm-recorder/internal/notify"
	"github.com/oszuidwest/zwfm-recorder/internal/recording"
	"github.com/oszuidwest/zwfm-recorder/internal/screen"
	"github.com/oszuidwest/zwfm-recorder/internal/server"
	"github.com/oszuidwest/zwfm-recorder/internal/util"
)

// actionQueueSize bounds remote key presses waiting for the screen.
const actionQueueSize = 16

func main() {
	configPath := flag.String("config", "", "Path to config file (default: config.json next to binary)")
	showVersion := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (commit %s, built %s)\n", notify.AppName, Version, Commit, BuildTime)
		return
	}

	if err := run(*configPath); err != nil {
		slog.Error("recorder stopped", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if configPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			return util.WrapError("get executable path", err)
		}
		configPath = filepath.Join(filepath.Dir(execPath), "config.json")
	}
	slog.Info("using config file", "path", configPath)

	cfg := config.New(configPath)
	if err := cfg.Load(); err != nil {
		return util.WrapError("load config", err)
	}
	if cfg.APIKey() == "" {
		key, err := config.GenerateAPIKey()
		if err != nil {
			return util.WrapError("generate API key", err)
		}
		if err := cfg.SetAPIKey(key); err != nil {
			return err
		}
		slog.Info("generated API key", "api_key", key)
	}

	ffmpegPath := util.ResolveFFmpegPath(cfg.FFmpegPath())
	if ffmpegPath == "" {
		return fmt.Errorf("FFmpeg not found (configured path %q)", cfg.FFmpegPath())
	}
	slog.Info("FFmpeg found", "path", ffmpegPath)

	snap := cfg.Snapshot()
	logPath := cmp.Or(snap.EventLog, eventlog.DefaultLogPath(snap.WebPort))
	elog, err := eventlog.NewLogger(logPath)
	if err != nil {
		slog.Warn("event log disabled", "path", logPath, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), util.ShutdownSignals()...)
	defer stop()

	registry := events.New(0)
	notifier := notify.NewNotifier(cfg)
	uploader := recording.NewUploader(cfg, elog, notifier)

	rec := snap.Recording
	device := recording.NewDevice(recording.DeviceConfig{
		FFmpegPath: ffmpegPath,
		Input:      snap.AudioInput,
		Codec:      rec.Codec,
	})
	storage := recording.NewFileStorage(rec.Directory, rec.NumberedFiles, device)
	session := recording.NewSession(recording.Deps{
		Audio:    device,
		Mixer:    device,
		Storage:  storage,
		Settings: cfg,
		Registry: registry,
		EventLog: elog,
	})

	actions := make(chan screen.Action, actionQueueSize)
	reload := make(chan struct{}, 1)
	hub := server.NewHub()

	subs := []subscription{
		{events.FileClosed, uploader},
		{events.AudioError, notifier},
		{events.ShutdownRequested, &shutdownHandler{stop}},
	}
	var bridge *bus.Bridge
	if snap.HasBus() {
		nc, err := bus.Connect(snap.BusURL, notify.AppName)
		if err != nil {
			return err
		}
		bridge = bus.New(nc, snap.BusPrefix, actions)
		if err := bridge.Start(); err != nil {
			bridge.Close()
			return err
		}
		for id := events.ActionUpdate; id <= events.SettingsSaved; id++ {
			subs = append(subs, subscription{id, bridge})
		}
	}
	for _, sub := range subs {
		if err := registry.Subscribe(sub.id, sub.handler); err != nil {
			return util.WrapError("subscribe "+sub.id.String(), err)
		}
	}

	scr := screen.New(screen.Config{
		Session:  session,
		Storage:  storage,
		Settings: cfg,
		Sampler:  audio.NewSampler(device, storage),
		Registry: registry,
		Display:  hub,
		Input:    actions,
		Reload:   reload,
		OnReload: func(r config.RecordingConfig) {
			device.SetCodec(r.Codec)
			storage.Configure(r.Directory, r.NumberedFiles)
		},
	})

	version := NewVersionChecker()
	commands := server.NewCommandHandler(server.CommandHandlerConfig{
		Config:   cfg,
		Hub:      hub,
		Notifier: notifier,
		Actions:  actions,
		Reload:   reload,
		EventLog: logPath,
	})
	srv := NewServer(ServerConfig{
		Config:   cfg,
		Hub:      hub,
		Commands: commands,
		Meter:    device,
		Version:  version,
		EventLog: logPath,
	})

	uploader.Start()
	httpServer := srv.Start()

	runScreen(ctx, scr, hub, actions)

	slog.Info("shutting down")
	version.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	uploader.Stop()
	if bridge != nil {
		bridge.Close()
	}
	notifier.Wait()
	if elog != nil {
		if err := elog.Close(); err != nil {
			slog.Error("failed to close event log", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// runScreen shows the recording screen until ctx ends. After the user
// leaves the screen any action opens it again.
func runScreen(ctx context.Context, scr *screen.Screen, hub *server.Hub, actions <-chan screen.Action) {
	for {
		err := scr.Run(ctx)
		switch {
		case errors.Is(err, screen.ErrSetupAborted):
			slog.Warn("recording screen not opened", "error", err)
		case err != nil:
			slog.Error("recording screen ended", "error", err)
		}
		if ctx.Err() != nil {
			return
		}

		hub.Render(screen.Frame{Notice: "Recording screen closed. Press any key to open it.", Selected: -1})
		select {
		case <-ctx.Done():
			return
		case <-actions:
		}
	}
}

type subscription struct {
	id      events.ID
	handler events.Handler
}

// shutdownHandler ends the process after a stop-and-shutdown request.
type shutdownHandler struct {
	cancel context.CancelFunc
}

func (h *shutdownHandler) HandleEvent(events.ID, any) {
	h.cancel()
}
