package recording

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oszuidwest/zwfm-recorder/internal/audio"
	"github.com/oszuidwest/zwfm-recorder/internal/config"
	"github.com/oszuidwest/zwfm-recorder/internal/ffmpeg"
	"github.com/oszuidwest/zwfm-recorder/internal/types"
	"github.com/oszuidwest/zwfm-recorder/internal/util"
)

// captureChunk is the PCM read size: 20 ms of stereo S16LE at 48 kHz.
const captureChunk = types.SampleRate / 50 * types.BytesPerFrame

// pcmBytesPerSecond converts written PCM to recorded time.
const pcmBytesPerSecond = types.SampleRate * types.BytesPerFrame

// fileSink receives the PCM of one take file.
type fileSink interface {
	Write(p []byte) (int, error)
	// Finish flushes and closes the file.
	Finish(timeout time.Duration) error
}

// DeviceConfig configures a Device.
type DeviceConfig struct {
	FFmpegPath string
	Input      string
	Codec      types.Codec
	// GainStep is the size of one gain step in half-dB units. Defaults to 1.
	GainStep int
}

// Device is the audio backend: it captures PCM from the input, applies the
// software gain, holds peaks for the sampler and feeds one FFmpeg encoder
// per file.
// It is safe for concurrent use.
type Device struct {
	mu sync.Mutex

	cfg     DeviceConfig
	peaks   *audio.PeakHold
	newSink func(path string) (fileSink, error)

	factorL float64
	factorR float64

	sink    fileSink
	path    string
	pcm     int64
	paused  bool
	err     error
	writing atomic.Bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewDevice returns a device that has not started capturing yet.
func NewDevice(cfg DeviceConfig) *Device {
	d := &Device{
		cfg:     cfg,
		peaks:   audio.NewPeakHold(),
		factorL: 1,
		factorR: 1,
	}
	d.cfg.GainStep = max(d.cfg.GainStep, 1)
	d.newSink = func(path string) (fileSink, error) {
		proc, err := ffmpeg.StartProcess(d.cfg.FFmpegPath, ffmpeg.FileArgs(d.codec(), path))
		if err != nil {
			return nil, err
		}
		return proc, nil
	}
	return d
}

// SetCodec selects the codec for files opened after the call.
func (d *Device) SetCodec(c types.Codec) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg.Codec = c
}

func (d *Device) codec() types.Codec {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg.Codec
}

// Open starts capturing. It is a no-op while capture runs.
func (d *Device) Open() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.captureLoop(ctx, d.done)
}

// captureLoop restarts the capture process with backoff until ctx ends.
func (d *Device) captureLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	backoff := util.NewBackoff(types.InitialRetryDelay, types.MaxRetryDelay)

	for {
		start := time.Now()
		stderr, err := d.capture(ctx)
		if ctx.Err() != nil {
			return
		}
		if time.Since(start) >= types.SuccessThreshold {
			backoff.Reset()
		}
		if err != nil {
			slog.Error("audio capture error", "error", cmpMessage(stderr, err))
		}

		delay := backoff.Next()
		slog.Info("audio capture stopped, waiting before restart", "delay", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func cmpMessage(stderr string, err error) string {
	if stderr != "" {
		return stderr
	}
	return err.Error()
}

// capture runs one capture process until it exits or ctx ends.
func (d *Device) capture(ctx context.Context) (string, error) {
	cmdName, args, err := audio.BuildCaptureCommand(d.cfg.Input, d.cfg.FFmpegPath)
	if err != nil {
		return "", err
	}
	slog.Info("starting audio capture", "command", cmdName, "input", d.cfg.Input)

	cmd := exec.CommandContext(ctx, cmdName, args...)
	cmd.Cancel = func() error {
		return util.GracefulSignal(cmd.Process)
	}
	cmd.WaitDelay = types.ShutdownTimeout

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", err
	}

	buf := make([]byte, captureChunk)
	for {
		n, readErr := io.ReadFull(stdout, buf)
		if n > 0 {
			d.process(buf[:n])
		}
		if readErr != nil {
			break
		}
	}

	err = cmd.Wait()
	return util.ExtractLastError(stderr.String()), err
}

// process applies gain to one PCM chunk, updates the peak hold and writes
// the chunk to the open file.
func (d *Device) process(buf []byte) {
	d.mu.Lock()
	fl, fr := d.factorL, d.factorR
	sink := d.sink
	if d.paused || d.err != nil {
		sink = nil
	}
	d.mu.Unlock()

	d.peaks.Update(audio.ApplyGain(buf, fl, fr))
	if sink == nil {
		return
	}

	d.writing.Store(true)
	n, err := sink.Write(buf)
	d.writing.Store(false)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sink != sink {
		return
	}
	d.pcm += int64(n)
	if err != nil && d.err == nil {
		d.err = util.WrapError("write audio", err)
		slog.Error("audio write failed", "file", d.path, "error", err)
	}
}

// Record implements Audio. An open file is finished after the new one has
// started, so no audio is lost between files.
func (d *Device) Record(path string) error {
	d.Open()
	sink, err := d.newSink(path)
	if err != nil {
		return err
	}

	d.mu.Lock()
	prev := d.sink
	d.sink, d.path, d.pcm = sink, path, 0
	d.mu.Unlock()

	if prev != nil {
		if err := prev.Finish(types.EncoderStopTimeout); err != nil {
			slog.Warn("failed to finish previous file", "error", err)
		}
	}
	return nil
}

// Stop implements Audio.
func (d *Device) Stop() error {
	d.mu.Lock()
	sink := d.sink
	d.sink, d.path, d.pcm, d.paused = nil, "", 0, false
	d.mu.Unlock()

	if sink == nil {
		return nil
	}
	return sink.Finish(types.EncoderStopTimeout)
}

// Close implements Audio. It finishes the open file and stops capturing.
func (d *Device) Close() error {
	err := d.Stop()

	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return err
}

// Pause implements Audio.
func (d *Device) Pause() error {
	return d.setPaused(true)
}

// Resume implements Audio.
func (d *Device) Resume() error {
	return d.setPaused(false)
}

func (d *Device) setPaused(p bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sink == nil {
		return ErrNotRecording
	}
	d.paused = p
	return nil
}

// Status implements Audio.
func (d *Device) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	var s Status
	if d.sink != nil {
		s |= StatusRecording
	}
	if d.paused {
		s |= StatusPaused
	}
	if d.err != nil {
		s |= StatusError
	}
	return s
}

// Err implements Audio.
func (d *Device) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// ClearError implements Audio.
func (d *Device) ClearError() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = nil
}

// RecordedTime implements Audio.
func (d *Device) RecordedTime() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return time.Duration(d.pcm) * time.Second / pcmBytesPerSecond
}

// RecordedBytes implements Audio. It reports the size of the encoded file
// and falls back to the PCM count while the encoder has not written yet.
func (d *Device) RecordedBytes() int64 {
	d.mu.Lock()
	path, pcm := d.path, d.pcm
	d.mu.Unlock()
	if path == "" {
		return 0
	}
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return info.Size()
	}
	return pcm
}

// SetGain implements Mixer.
func (d *Device) SetGain(left, right int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.factorL = audio.GainFactor(left)
	d.factorR = audio.GainFactor(right)
}

// GainRange implements Mixer.
func (d *Device) GainRange() (minGain, maxGain, step int) {
	return config.MinGain, config.MaxGain, d.cfg.GainStep
}

// ResetClip implements Mixer.
func (d *Device) ResetClip() { d.peaks.ResetClip() }

// ClipCount implements Mixer.
func (d *Device) ClipCount() int { return d.peaks.ClipCount() }

// ResetClipCount implements Mixer.
func (d *Device) ResetClipCount() { d.peaks.ResetClipCount() }

// PeakHold implements audio.PeakSource.
func (d *Device) PeakHold() (left, right int) { return d.peaks.PeakHold() }

// Meter returns the most recently sampled peaks in dBFS and the clip state.
func (d *Device) Meter() (left, right float64, clipped bool) {
	l, r := d.peaks.Last()
	return audio.AmplitudeToDB(l), audio.AmplitudeToDB(r), d.peaks.Clipped()
}

// DiskActive implements audio.ActivitySource.
func (d *Device) DiskActive() bool {
	return d.writing.Load()
}
