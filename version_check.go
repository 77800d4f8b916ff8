package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-recorder/internal/types"
	"github.com/oszuidwest/zwfm-recorder/internal/util"
	"golang.org/x/mod/semver"
)

const (
	releasesURL          = "https://api.github.com/repos/oszuidwest/zwfm-recorder/releases/latest"
	versionCheckInterval = 24 * time.Hour
	versionCheckDelay    = 30 * time.Second
	versionCheckTimeout  = 30 * time.Second
	versionMaxAttempts   = 3
)

// errRetryable marks release lookups worth repeating within a cycle.
var errRetryable = errors.New("release lookup should be retried")

// VersionChecker polls GitHub for new recorder releases.
// It is safe for concurrent use.
type VersionChecker struct {
	url    string
	client *http.Client

	mu     sync.RWMutex
	latest string
	etag   string

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewVersionChecker starts polling the release feed.
func NewVersionChecker() *VersionChecker {
	vc := newVersionChecker(releasesURL, &http.Client{Timeout: versionCheckTimeout})
	go vc.run(versionCheckDelay)
	return vc
}

func newVersionChecker(url string, client *http.Client) *VersionChecker {
	return &VersionChecker{
		url:    url,
		client: client,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Stop ends polling and waits for an in-flight check.
func (vc *VersionChecker) Stop() {
	vc.stopOnce.Do(func() { close(vc.stop) })
	<-vc.done
}

func (vc *VersionChecker) run(delay time.Duration) {
	defer close(vc.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in version checker", "panic", r)
		}
	}()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	for {
		select {
		case <-vc.stop:
			return
		case <-timer.C:
			vc.checkWithRetry()
			timer.Reset(versionCheckInterval)
		}
	}
}

// checkWithRetry repeats failed lookups with exponential backoff.
func (vc *VersionChecker) checkWithRetry() {
	backoff := util.NewBackoff(time.Minute, 10*time.Minute)
	for attempt := 1; ; attempt++ {
		err := vc.check()
		if err == nil {
			return
		}
		if !errors.Is(err, errRetryable) || attempt == versionMaxAttempts {
			slog.Debug("version check failed", "attempt", attempt, "error", err)
			return
		}
		select {
		case <-time.After(backoff.Next()):
		case <-vc.stop:
			return
		}
	}
}

type githubRelease struct {
	TagName    string `json:"tag_name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// check fetches the latest release once.
func (vc *VersionChecker) check() error {
	ctx, cancel := context.WithTimeout(context.Background(), versionCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, vc.url, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "zwfm-recorder/"+Version)

	vc.mu.RLock()
	if vc.etag != "" {
		req.Header.Set("If-None-Match", vc.etag)
	}
	vc.mu.RUnlock()

	resp, err := vc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", errRetryable, err)
	}
	defer util.SafeCloseFunc(resp.Body, "release response body")()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotModified, resp.StatusCode == http.StatusNotFound:
		return nil
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", errRetryable, resp.StatusCode)
	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return fmt.Errorf("%w: %w", errRetryable, err)
	}
	if release.Draft || release.Prerelease || release.TagName == "" {
		return nil
	}

	vc.mu.Lock()
	vc.latest = normalizeVersion(release.TagName)
	if etag := resp.Header.Get("ETag"); etag != "" {
		vc.etag = etag
	}
	vc.mu.Unlock()
	return nil
}

// Info returns the running and latest known versions.
func (vc *VersionChecker) Info() types.VersionInfo {
	vc.mu.RLock()
	defer vc.mu.RUnlock()

	current := normalizeVersion(Version)
	info := types.VersionInfo{
		Current:   current,
		Latest:    vc.latest,
		Commit:    Commit,
		BuildTime: util.FormatHumanTime(BuildTime),
	}
	if vc.latest != "" && current != "dev" && current != "unknown" {
		info.UpdateAvail = isNewerVersion(vc.latest, current)
	}
	return info
}

func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// isNewerVersion reports whether latest is a higher semantic version than current.
func isNewerVersion(latest, current string) bool {
	return semver.Compare("v"+normalizeVersion(latest), "v"+normalizeVersion(current)) > 0
}
