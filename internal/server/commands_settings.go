package server

import (
	"log/slog"

	"github.com/oszuidwest/zwfm-recorder/internal/audio"
	"github.com/oszuidwest/zwfm-recorder/internal/config"
	"github.com/oszuidwest/zwfm-recorder/internal/types"
	"github.com/oszuidwest/zwfm-recorder/internal/util"
)

// maskedSecret replaces stored secrets in settings/get responses.
const maskedSecret = "********"

// SettingsView is the settings/get response.
type SettingsView struct {
	Station    string                 `json:"station"`
	AudioInput string                 `json:"audio_input"`
	APIKey     string                 `json:"api_key"`
	Recording  config.RecordingConfig `json:"recording"`
	Upload     config.UploadConfig    `json:"upload"`
	Webhook    string                 `json:"webhook_url"`
	LogPath    string                 `json:"log_path"`
	Email      types.GraphConfig      `json:"email"`
	BusURL     string                 `json:"bus_url"`
	BusPrefix  string                 `json:"bus_prefix"`
	SplitSizes []int64                `json:"split_sizes_mib"`
	Devices    []audio.Device         `json:"devices"`
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return maskedSecret
}

// handleSettingsGet processes a settings/get command.
func (h *CommandHandler) handleSettingsGet(cmd WSCommand, send chan<- any) {
	snap := h.cfg.Snapshot()
	upload := snap.Upload
	upload.S3SecretAccessKey = mask(upload.S3SecretAccessKey)

	SendSuccess(send, cmd.Type, SettingsView{
		Station:    snap.Station,
		AudioInput: snap.AudioInput,
		APIKey:     snap.APIKey,
		Recording:  snap.Recording,
		Upload:     upload,
		Webhook:    snap.WebhookURL,
		LogPath:    snap.LogPath,
		Email: types.GraphConfig{
			TenantID:     snap.GraphTenantID,
			ClientID:     snap.GraphClientID,
			ClientSecret: mask(snap.GraphClientSecret),
			FromAddress:  snap.GraphFromAddress,
			Recipients:   snap.GraphRecipients,
		},
		BusURL:     snap.BusURL,
		BusPrefix:  snap.BusPrefix,
		SplitSizes: types.SplitSizesMiB,
		Devices:    audio.Devices(),
	})
}

// updateRecording stores fn's change, persists it and tells the recording
// loop to reload.
func (h *CommandHandler) updateRecording(fn func(*config.RecordingConfig)) error {
	if err := h.cfg.UpdateRecording(fn); err != nil {
		return err
	}
	if err := h.cfg.Save(); err != nil {
		return util.WrapError("save settings", err)
	}
	h.requestReload()
	return nil
}

// set copies *src into *dst when src is provided.
func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// setAs copies a provided string into a named string type.
func setAs[T ~string](dst *T, src *string) {
	if src != nil {
		*dst = T(*src)
	}
}

// handleRecordingUpdate processes a settings/recording/update command.
func (h *CommandHandler) handleRecordingUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *RecordingUpdateRequest) (any, error) {
		if (req.Source != nil || req.Directory != nil || req.Codec != nil) && h.hub.Recording() {
			return nil, errRecordingBusy
		}
		if req.Directory != nil {
			if err := util.ValidatePath("directory", *req.Directory); err != nil {
				return nil, err
			}
		}
		err := h.updateRecording(func(r *config.RecordingConfig) {
			setAs(&r.Source, req.Source)
			set(&r.Directory, req.Directory)
			setAs(&r.Codec, req.Codec)
			set(&r.NumberedFiles, req.NumberedFiles)
			set(&r.MicGain, req.MicGain)
			set(&r.LeftGain, req.LeftGain)
			set(&r.RightGain, req.RightGain)
		})
		if err != nil {
			return nil, err
		}
		slog.Info("settings/recording/update: recording settings changed")
		return nil, nil
	})
}

// handleAudioUpdate processes a settings/audio/update command. The device
// is opened at startup, so the new input applies after a restart.
func (h *CommandHandler) handleAudioUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *AudioUpdateRequest) (any, error) {
		if err := h.cfg.SetAudioInput(req.Input); err != nil {
			return nil, err
		}
		slog.Info("settings/audio/update: audio input changed, restart to apply", "input", req.Input)
		return map[string]bool{"restart_required": true}, nil
	})
}

// handleTriggerUpdate processes a settings/trigger/update command. The new
// values apply the next time the trigger is armed.
func (h *CommandHandler) handleTriggerUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *TriggerUpdateRequest) (any, error) {
		return nil, h.updateRecording(func(r *config.RecordingConfig) {
			t := &r.Trigger
			setAs(&t.Mode, req.Mode)
			setAs(&t.Type, req.Type)
			set(&t.StartThresholdDB, req.StartThresholdDB)
			set(&t.StopThresholdDB, req.StopThresholdDB)
			set(&t.StartSeconds, req.StartSeconds)
			set(&t.PostRecSeconds, req.PostRecSeconds)
			set(&t.GapSeconds, req.GapSeconds)
		})
	})
}

// handleSplitUpdate processes a settings/split/update command.
func (h *CommandHandler) handleSplitUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *SplitUpdateRequest) (any, error) {
		return nil, h.updateRecording(func(r *config.RecordingConfig) {
			s := &r.Split
			setAs(&s.Method, req.Method)
			set(&s.Minutes, req.Minutes)
			set(&s.SizeIndex, req.SizeIndex)
			setAs(&s.Type, req.Type)
		})
	})
}

// handleAGCUpdate processes a settings/agc/update command.
func (h *CommandHandler) handleAGCUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *AGCUpdateRequest) (any, error) {
		return nil, h.updateRecording(func(r *config.RecordingConfig) {
			a := &r.AGC
			set(&a.MicPreset, req.MicPreset)
			set(&a.LinePreset, req.LinePreset)
			set(&a.MicMaxGain, req.MicMaxGain)
			set(&a.LineMaxGain, req.LineMaxGain)
			set(&a.ClipTime, req.ClipTime)
		})
	})
}

// handleRegenerateAPIKey processes a settings/api-key/regenerate command.
func (h *CommandHandler) handleRegenerateAPIKey(cmd WSCommand, send chan<- any) {
	key, err := config.GenerateAPIKey()
	if err != nil {
		SendError(send, cmd.Type, err)
		return
	}
	if err := h.cfg.SetAPIKey(key); err != nil {
		SendError(send, cmd.Type, err)
		return
	}
	slog.Info("API key regenerated")
	SendSuccess(send, cmd.Type, map[string]string{"api_key": key})
}
