package notify

import (
	"fmt"

	"github.com/oszuidwest/zwfm-recorder/internal/types"
	"github.com/oszuidwest/zwfm-recorder/internal/util"
)

// GraphConfig is the configuration for email notifications.
type GraphConfig = types.GraphConfig

// UploadAbandonedParams describes an upload that was given up.
type UploadAbandonedParams struct {
	Filename   string
	S3Key      string
	RetryCount int
	LastError  string
}

func audioErrorEmail(station, filename, errMsg string) (subject, body string) {
	subject = "[ALERT] Recording Aborted - " + station
	body = fmt.Sprintf(
		"A recording was stopped because the audio backend failed.\n\n"+
			"File:  %s\n"+
			"Error: %s\n"+
			"Time:  %s\n\n"+
			"Check free disk space and the audio input, then start a new recording.",
		filename, errMsg, util.HumanTime(),
	)
	return subject, body
}

func uploadAbandonedEmail(station string, p UploadAbandonedParams) (subject, body string) {
	subject = "[ALERT] Upload Abandoned - " + station
	body = fmt.Sprintf(
		"A recording upload was abandoned at %s.\n\n"+
			"File:       %s\n"+
			"S3 key:     %s\n"+
			"Retries:    %d\n"+
			"Last error: %s\n\n"+
			"The file is still on local storage.",
		util.HumanTime(), p.Filename, p.S3Key, p.RetryCount, p.LastError,
	)
	return subject, body
}

// SendTestEmail sends a test email to verify email configuration.
func SendTestEmail(cfg *GraphConfig, stationName string) error {
	if err := ValidateConfig(cfg); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	client, err := NewGraphClient(cfg)
	if err != nil {
		return util.WrapError("create Graph client", err)
	}

	if err := client.ValidateAuth(); err != nil {
		return err
	}

	subject := "[TEST] " + stationName
	body := fmt.Sprintf(
		"Test email from %s.\n\n"+
			"Time: %s\n\n"+
			"Microsoft Graph configuration is working correctly.",
		AppName, util.HumanTime(),
	)

	if err := client.SendMail(ParseRecipients(cfg.Recipients), subject, body); err != nil {
		return util.WrapError("send email", err)
	}

	return nil
}
