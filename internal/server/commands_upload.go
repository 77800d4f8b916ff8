package server

import (
	"log/slog"

	"github.com/oszuidwest/zwfm-recorder/internal/config"
	"github.com/oszuidwest/zwfm-recorder/internal/recording"
	"github.com/oszuidwest/zwfm-recorder/internal/types"
)

// handleUploadUpdate processes an upload/update command. A masked secret
// keeps the stored one.
func (h *CommandHandler) handleUploadUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *UploadUpdateRequest) (any, error) {
		u := config.UploadConfig{
			StorageMode:       types.StorageMode(req.StorageMode),
			S3Endpoint:        req.S3Endpoint,
			S3Bucket:          req.S3Bucket,
			S3AccessKeyID:     req.S3AccessKeyID,
			S3SecretAccessKey: req.S3SecretAccessKey,
			S3Prefix:          req.S3Prefix,
		}
		if u.S3SecretAccessKey == maskedSecret {
			u.S3SecretAccessKey = h.cfg.UploadSettings().S3SecretAccessKey
		}
		if err := h.cfg.SetUpload(u); err != nil {
			return nil, err
		}
		slog.Info("upload/update: upload settings changed", "storage_mode", u.StorageMode, "bucket", u.S3Bucket)
		return nil, nil
	})
}

// handleUploadTest processes an upload/test command.
func (h *CommandHandler) handleUploadTest(cmd WSCommand, send chan<- any) {
	var req S3TestRequest
	if !decode(cmd, send, &req) {
		return
	}
	secret := req.SecretKey
	if secret == maskedSecret {
		secret = h.cfg.UploadSettings().S3SecretAccessKey
	}
	cfg := config.UploadConfig{
		StorageMode:       types.StorageS3,
		S3Endpoint:        req.Endpoint,
		S3Bucket:          req.Bucket,
		S3AccessKeyID:     req.AccessKey,
		S3SecretAccessKey: secret,
	}

	HandleActionAsync(cmd, send, func() (any, error) {
		if err := recording.TestS3Connection(cfg); err != nil {
			return nil, err
		}
		slog.Info("upload/test: connection test succeeded", "bucket", cfg.S3Bucket)
		return nil, nil
	})
}
