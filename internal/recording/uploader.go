package recording

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oszuidwest/zwfm-recorder/internal/config"
	"github.com/oszuidwest/zwfm-recorder/internal/eventlog"
	"github.com/oszuidwest/zwfm-recorder/internal/events"
	"github.com/oszuidwest/zwfm-recorder/internal/notify"
	"github.com/oszuidwest/zwfm-recorder/internal/types"
	"github.com/oszuidwest/zwfm-recorder/internal/util"
)

// Upload limits.
const (
	// MaxUploadRetryAge is the maximum age for retrying uploads.
	MaxUploadRetryAge = 24 * time.Hour
	// uploadQueueSize is the number of closed files that can wait for upload.
	uploadQueueSize = 100
	// uploadTimeout bounds one PutObject call.
	uploadTimeout = 5 * time.Minute
	// initialUploadRetry and maxUploadRetry bound the retry backoff.
	initialUploadRetry = 30 * time.Second
	maxUploadRetry     = 30 * time.Minute
)

// ErrS3NotConfigured is returned when S3 settings are incomplete.
var ErrS3NotConfigured = errors.New("S3 is not configured")

// objectPutter is the part of the S3 client used for uploads.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// AbandonNotifier is told about uploads that were given up.
type AbandonNotifier interface {
	UploadAbandoned(p notify.UploadAbandonedParams)
}

// UploadSource provides the current upload settings.
type UploadSource interface {
	UploadSettings() config.UploadConfig
}

// uploadRequest represents a file to be uploaded to S3.
type uploadRequest struct {
	localPath string
	s3Key     string
	fileSize  int64
}

// pendingUpload tracks a failed upload for retry.
type pendingUpload struct {
	request      uploadRequest
	firstAttempt time.Time
	retryCount   int
	lastError    string
}

// Uploader sends closed take files to S3-compatible storage. It subscribes
// to FileClosed and never blocks the dispatching goroutine.
// It is safe for concurrent use.
type Uploader struct {
	mu sync.Mutex

	settings UploadSource
	log      *eventlog.Logger
	notifier AbandonNotifier

	client    objectPutter
	clientCfg config.UploadConfig
	newClient func(cfg config.UploadConfig) objectPutter

	queue   chan uploadRequest
	retry   []pendingUpload
	backoff *util.Backoff
	now     func() time.Time

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewUploader returns an uploader reading settings from src. log and n may
// be nil.
func NewUploader(src UploadSource, log *eventlog.Logger, n AbandonNotifier) *Uploader {
	return &Uploader{
		settings:  src,
		log:       log,
		notifier:  n,
		newClient: func(cfg config.UploadConfig) objectPutter { return createS3Client(cfg) },
		queue:     make(chan uploadRequest, uploadQueueSize),
		backoff:   util.NewBackoff(initialUploadRetry, maxUploadRetry),
		now:       time.Now,
		stop:      make(chan struct{}),
	}
}

// Start runs the upload worker.
func (u *Uploader) Start() {
	u.wg.Add(1)
	go u.worker()
}

// Stop drains the queue and waits for the worker to exit. Pending retries
// are kept on disk and logged.
func (u *Uploader) Stop() {
	close(u.stop)
	u.wg.Wait()

	u.mu.Lock()
	defer u.mu.Unlock()
	for _, p := range u.retry {
		slog.Warn("upload not retried before exit", "file", filepath.Base(p.request.localPath))
	}
}

// HandleEvent queues the file of a FileClosed event.
func (u *Uploader) HandleEvent(id events.ID, data any) {
	if id != events.FileClosed {
		return
	}
	take, ok := data.(events.Take)
	if !ok || take.Path == "" {
		return
	}
	u.Queue(take.Path)
}

// Queue adds a finished file to the upload queue.
func (u *Uploader) Queue(filePath string) {
	cfg := u.settings.UploadSettings()
	if cfg.StorageMode == types.StorageLocal || cfg.StorageMode == "" {
		slog.Debug("local storage mode, file saved", "path", filePath)
		return
	}
	if !s3Configured(cfg) {
		slog.Warn("S3 not configured but storage mode requires it", "mode", cfg.StorageMode)
		return
	}

	info, err := os.Stat(filePath)
	if err != nil {
		slog.Warn("failed to stat recording file", "path", filePath, "error", err)
		return
	}

	req := uploadRequest{
		localPath: filePath,
		s3Key:     s3Key(cfg.S3Prefix, filepath.Base(filePath)),
		fileSize:  info.Size(),
	}
	select {
	case u.queue <- req:
		slog.Info("queued file for upload", "file", filepath.Base(filePath))
		u.logUpload(eventlog.UploadQueued, req, 0, "")
	default:
		slog.Warn("upload queue full", "file", filepath.Base(filePath))
		u.addToRetryQueue(req, "upload queue full")
	}
}

// s3Key builds the object key from the configured prefix and the file name.
func s3Key(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// worker processes the upload queue, draining remaining items on shutdown.
func (u *Uploader) worker() {
	defer u.wg.Done()

	for {
		var retryC <-chan time.Time
		if u.pendingRetries() > 0 {
			retryC = time.After(u.backoff.Current())
		}

		select {
		case <-u.stop:
			for {
				select {
				case req := <-u.queue:
					u.upload(req)
				default:
					return
				}
			}
		case req := <-u.queue:
			u.upload(req)
		case <-retryC:
			u.backoff.Next()
			u.processRetryQueue()
		}
	}
}

func (u *Uploader) pendingRetries() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.retry)
}

// upload sends one file and queues it for retry on failure.
func (u *Uploader) upload(req uploadRequest) {
	if err := u.put(req); err != nil {
		slog.Error("upload failed", "s3_key", req.s3Key, "error", err)
		u.logUpload(eventlog.UploadFailed, req, 0, err.Error())
		u.addToRetryQueue(req, err.Error())
		return
	}
	u.backoff.Reset()
}

// put uploads a file and deletes the local copy in S3-only mode.
func (u *Uploader) put(req uploadRequest) error {
	cfg := u.settings.UploadSettings()
	client := u.clientFor(cfg)
	if client == nil {
		return ErrS3NotConfigured
	}

	file, err := os.Open(req.localPath)
	if err != nil {
		return err
	}
	defer util.SafeCloseFunc(file, "upload file")()

	ctx, cancel := context.WithTimeoutCause(context.Background(), uploadTimeout, errors.New("s3 upload timeout"))
	defer cancel()

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(cfg.S3Bucket),
		Key:           aws.String(req.s3Key),
		Body:          file,
		ContentLength: aws.Int64(req.fileSize),
		ContentType:   aws.String(contentType(req.localPath)),
	})
	if err != nil {
		return err
	}

	slog.Info("upload completed", "s3_key", req.s3Key)
	u.logUpload(eventlog.UploadCompleted, req, 0, "")

	if cfg.StorageMode == types.StorageS3 {
		if err := os.Remove(req.localPath); err != nil {
			slog.Warn("failed to delete local file after upload", "path", req.localPath, "error", err)
		}
	}
	return nil
}

// addToRetryQueue adds a failed upload to the retry queue.
func (u *Uploader) addToRetryQueue(req uploadRequest, errMsg string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, p := range u.retry {
		if p.request.localPath == req.localPath {
			return
		}
	}
	u.retry = append(u.retry, pendingUpload{
		request:      req,
		firstAttempt: u.now(),
		lastError:    errMsg,
	})
	slog.Info("upload queued for retry", "file", filepath.Base(req.localPath))
}

// processRetryQueue attempts all pending uploads once and abandons those
// older than MaxUploadRetryAge.
func (u *Uploader) processRetryQueue() {
	u.mu.Lock()
	pending := u.retry
	u.retry = nil
	u.mu.Unlock()

	now := u.now()
	var failed []pendingUpload
	for _, p := range pending {
		if now.Sub(p.firstAttempt) > MaxUploadRetryAge {
			u.abandon(p)
			continue
		}

		p.retryCount++
		slog.Info("retrying upload", "file", filepath.Base(p.request.localPath), "attempt", p.retryCount)
		u.logUpload(eventlog.UploadRetry, p.request, p.retryCount, "")

		err := u.put(p.request)
		switch {
		case err == nil:
		case errors.Is(err, os.ErrNotExist):
			slog.Warn("retry file no longer exists", "path", p.request.localPath)
		default:
			p.lastError = err.Error()
			u.logUpload(eventlog.UploadFailed, p.request, p.retryCount, p.lastError)
			failed = append(failed, p)
		}
	}

	if len(failed) == 0 {
		u.backoff.Reset()
	}
	u.mu.Lock()
	u.retry = append(u.retry, failed...)
	u.mu.Unlock()
}

func (u *Uploader) abandon(p pendingUpload) {
	name := filepath.Base(p.request.localPath)
	slog.Warn("upload abandoned after 24h", "file", name, "attempts", p.retryCount+1)
	u.logUpload(eventlog.UploadAbandoned, p.request, p.retryCount, "exceeded 24h retry limit")
	if u.notifier != nil {
		u.notifier.UploadAbandoned(notify.UploadAbandonedParams{
			Filename:   name,
			S3Key:      p.request.s3Key,
			RetryCount: p.retryCount,
			LastError:  p.lastError,
		})
	}
}

func (u *Uploader) logUpload(t eventlog.EventType, req uploadRequest, retry int, errMsg string) {
	if err := u.log.LogUpload(t, &eventlog.UploadDetails{
		Filename:   filepath.Base(req.localPath),
		S3Key:      req.s3Key,
		Error:      errMsg,
		RetryCount: retry,
	}); err != nil {
		slog.Warn("failed to write event log", "error", err)
	}
}

// clientFor returns the S3 client, recreating it when the settings changed.
func (u *Uploader) clientFor(cfg config.UploadConfig) objectPutter {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !s3Configured(cfg) {
		return nil
	}
	if u.client == nil || u.clientCfg != cfg {
		u.client = u.newClient(cfg)
		u.clientCfg = cfg
	}
	return u.client
}

func s3Configured(cfg config.UploadConfig) bool {
	return util.IsConfigured(cfg.S3Bucket, cfg.S3AccessKeyID, cfg.S3SecretAccessKey)
}

func contentType(file string) string {
	ext := strings.TrimPrefix(filepath.Ext(file), ".")
	for _, p := range types.CodecPresets {
		if p.Extension == ext {
			return p.MimeType
		}
	}
	return "application/octet-stream"
}

// createS3Client creates an S3 client with the given configuration.
func createS3Client(cfg config.UploadConfig) *s3.Client {
	creds := credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")

	options := []func(*s3.Options){
		func(o *s3.Options) {
			o.Credentials = creds
			o.Region = "auto"
		},
	}
	if cfg.S3Endpoint != "" {
		options = append(options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.New(s3.Options{}, options...)
}

// TestS3Connection tests connectivity to an S3 bucket by uploading and
// deleting a test file.
func TestS3Connection(cfg config.UploadConfig) error {
	if !s3Configured(cfg) {
		return ErrS3NotConfigured
	}
	client := createS3Client(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	testKey := s3Key(cfg.S3Prefix, fmt.Sprintf("test-connection-%d.txt", time.Now().UnixNano()))
	testContent := []byte("ZuidWest FM recorder connection test")

	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(cfg.S3Bucket),
		Key:           aws.String(testKey),
		Body:          bytes.NewReader(testContent),
		ContentLength: aws.Int64(int64(len(testContent))),
	})
	if err != nil {
		return util.WrapError("upload test file", err)
	}

	_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(cfg.S3Bucket),
		Key:    aws.String(testKey),
	})
	if err != nil {
		slog.Warn("failed to delete test file", "key", testKey, "error", err)
	}
	return nil
}
