package recording

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oszuidwest/zwfm-recorder/internal/config"
	"github.com/oszuidwest/zwfm-recorder/internal/events"
	"github.com/oszuidwest/zwfm-recorder/internal/notify"
	"github.com/oszuidwest/zwfm-recorder/internal/types"
)

type fakePutter struct {
	mu    sync.Mutex
	fail  int
	keys  []string
	types []string
	body  []string
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail > 0 {
		f.fail--
		return nil, errors.New("bucket unreachable")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.keys = append(f.keys, *in.Key)
	f.types = append(f.types, *in.ContentType)
	f.body = append(f.body, string(data))
	return &s3.PutObjectOutput{}, nil
}

type staticUpload config.UploadConfig

func (s staticUpload) UploadSettings() config.UploadConfig { return config.UploadConfig(s) }

type abandoned struct {
	got []notify.UploadAbandonedParams
}

func (a *abandoned) UploadAbandoned(p notify.UploadAbandonedParams) { a.got = append(a.got, p) }

func s3Settings(mode types.StorageMode) staticUpload {
	return staticUpload{
		StorageMode:       mode,
		S3Bucket:          "takes",
		S3AccessKeyID:     "id",
		S3SecretAccessKey: "secret",
		S3Prefix:          "/studio/",
	}
}

func newTestUploader(src UploadSource, put *fakePutter, n AbandonNotifier) *Uploader {
	u := NewUploader(src, nil, n)
	u.newClient = func(config.UploadConfig) objectPutter { return put }
	return u
}

func writeTake(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("pcm"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func drain(u *Uploader) {
	for {
		select {
		case req := <-u.queue:
			u.upload(req)
		default:
			return
		}
	}
}

func TestUploaderLocalModeSkips(t *testing.T) {
	put := &fakePutter{}
	u := newTestUploader(s3Settings(types.StorageLocal), put, nil)
	u.HandleEvent(events.FileClosed, events.Take{Path: writeTake(t, "R_MIC_0001.wav")})
	if len(u.queue) != 0 {
		t.Errorf("queued in local mode: %d", len(u.queue))
	}
}

func TestUploaderS3ModeDeletesLocalFile(t *testing.T) {
	put := &fakePutter{}
	u := newTestUploader(s3Settings(types.StorageS3), put, nil)
	path := writeTake(t, "R_LINE_250314-093000.mp3")

	u.HandleEvent(events.RecordingStarted, events.Take{Path: path})
	u.HandleEvent(events.FileClosed, events.Take{Path: path})
	drain(u)

	if len(put.keys) != 1 || put.keys[0] != "studio/R_LINE_250314-093000.mp3" {
		t.Fatalf("keys: %v", put.keys)
	}
	if put.types[0] != "audio/mpeg" || put.body[0] != "pcm" {
		t.Errorf("object: type %q body %q", put.types[0], put.body[0])
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("local file kept in s3 mode: %v", err)
	}
}

func TestUploaderBothModeKeepsLocalFile(t *testing.T) {
	put := &fakePutter{}
	u := newTestUploader(s3Settings(types.StorageBoth), put, nil)
	path := writeTake(t, "R_MIC_0001.wav")

	u.Queue(path)
	drain(u)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("local file removed in both mode: %v", err)
	}
}

func TestUploaderRetry(t *testing.T) {
	put := &fakePutter{fail: 1}
	u := newTestUploader(s3Settings(types.StorageBoth), put, nil)
	u.Queue(writeTake(t, "R_MIC_0001.wav"))
	drain(u)

	if u.pendingRetries() != 1 {
		t.Fatalf("pending retries: got %d, want 1", u.pendingRetries())
	}
	u.processRetryQueue()
	if u.pendingRetries() != 0 || len(put.keys) != 1 {
		t.Errorf("after retry: pending %d, uploads %d", u.pendingRetries(), len(put.keys))
	}
}

func TestUploaderAbandonsAfterMaxAge(t *testing.T) {
	put := &fakePutter{fail: 100}
	n := &abandoned{}
	u := newTestUploader(s3Settings(types.StorageBoth), put, n)
	start := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	u.now = func() time.Time { return start }

	u.Queue(writeTake(t, "R_MIC_0001.wav"))
	drain(u)
	u.processRetryQueue()
	if u.pendingRetries() != 1 || len(n.got) != 0 {
		t.Fatalf("before max age: pending %d, abandoned %d", u.pendingRetries(), len(n.got))
	}

	u.now = func() time.Time { return start.Add(MaxUploadRetryAge + time.Minute) }
	u.processRetryQueue()
	if u.pendingRetries() != 0 {
		t.Errorf("pending after max age: got %d, want 0", u.pendingRetries())
	}
	if len(n.got) != 1 || n.got[0].Filename != "R_MIC_0001.wav" || n.got[0].RetryCount != 1 {
		t.Errorf("abandoned: %+v", n.got)
	}
}

func TestUploaderWorkerDrainsOnStop(t *testing.T) {
	put := &fakePutter{}
	u := newTestUploader(s3Settings(types.StorageBoth), put, nil)
	u.Queue(writeTake(t, "R_MIC_0001.wav"))
	u.Queue(writeTake(t, "R_MIC_0002.wav"))
	u.Start()
	u.Stop()

	put.mu.Lock()
	defer put.mu.Unlock()
	if len(put.keys) != 2 {
		t.Errorf("uploads: got %d, want 2", len(put.keys))
	}
}

func TestS3Key(t *testing.T) {
	tests := []struct{ prefix, want string }{
		{"", "a.wav"},
		{"takes", "takes/a.wav"},
		{"/takes/2025/", "takes/2025/a.wav"},
	}
	for _, tt := range tests {
		if got := s3Key(tt.prefix, "a.wav"); got != tt.want {
			t.Errorf("s3Key(%q): got %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestS3ConnectionNotConfigured(t *testing.T) {
	if err := TestS3Connection(config.UploadConfig{}); !errors.Is(err, ErrS3NotConfigured) {
		t.Errorf("got %v, want ErrS3NotConfigured", err)
	}
}
