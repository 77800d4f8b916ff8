// Package ffmpeg provides shared FFmpeg process management utilities.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/oszuidwest/zwfm-recorder/internal/types"
	"github.com/oszuidwest/zwfm-recorder/internal/util"
)

// ErrStopTimeout is returned when FFmpeg does not exit after its input closed.
var ErrStopTimeout = errors.New("ffmpeg did not stop in time")

// Process represents a running FFmpeg subprocess.
type Process struct {
	Cmd    *exec.Cmd
	Cancel context.CancelFunc
	Stdin  io.WriteCloser
	Stderr *bytes.Buffer
}

// BaseInputArgs returns FFmpeg arguments for PCM audio input.
func BaseInputArgs() []string {
	return []string{
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", types.SampleRate),
		"-ac", fmt.Sprintf("%d", types.Channels),
		"-i", "pipe:0",
	}
}

// FileArgs returns the arguments that encode PCM from stdin into path.
func FileArgs(codec types.Codec, path string) []string {
	preset := types.PresetFor(codec)
	args := BaseInputArgs()
	args = append(args, "-c:a")
	args = append(args, preset.Args...)
	return append(args,
		"-f", preset.Format,
		"-hide_banner",
		"-loglevel", "warning",
		"-y",
		path,
	)
}

// StartProcess launches an FFmpeg subprocess.
func StartProcess(ffmpegPath string, args []string) (*Process, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		if closeErr := stdinPipe.Close(); closeErr != nil {
			slog.Warn("failed to close stdin pipe", "error", closeErr)
		}
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	return &Process{
		Cmd:    cmd,
		Cancel: cancel,
		Stdin:  stdinPipe,
		Stderr: &stderr,
	}, nil
}

// Write sends PCM to the process.
func (p *Process) Write(b []byte) (int, error) {
	return p.Stdin.Write(b)
}

// Finish closes stdin and waits for FFmpeg to finalize its output. The
// process is killed when it does not exit within timeout.
func (p *Process) Finish(timeout time.Duration) error {
	if err := p.Stdin.Close(); err != nil {
		slog.Warn("failed to close stdin", "error", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- p.Cmd.Wait()
	}()

	select {
	case err := <-done:
		p.Cancel()
		if err != nil {
			if msg := util.ExtractLastError(p.Stderr.String()); msg != "" {
				return fmt.Errorf("ffmpeg: %s", msg)
			}
			return fmt.Errorf("ffmpeg: %w", err)
		}
		return nil
	case <-time.After(timeout):
		p.Cancel()
		<-done
		return ErrStopTimeout
	}
}
