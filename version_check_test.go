package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestIsNewerVersion(t *testing.T) {
	tests := []struct {
		latest, current string
		want            bool
	}{
		{"1.2.0", "1.1.9", true},
		{"v1.10.0", "1.9.0", true},
		{"1.1.0", "1.1.0", false},
		{"1.0.0", "v1.1.0", false},
	}
	for _, tt := range tests {
		if got := isNewerVersion(tt.latest, tt.current); got != tt.want {
			t.Errorf("isNewerVersion(%q, %q): got %v, want %v", tt.latest, tt.current, got, tt.want)
		}
	}
}

func TestVersionCheck(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("If-None-Match") == `"abc"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"abc"`)
		fmt.Fprint(w, `{"tag_name":"v9.9.9"}`)
	}))
	defer srv.Close()

	vc := newVersionChecker(srv.URL, srv.Client())
	if err := vc.check(); err != nil {
		t.Fatal(err)
	}
	if vc.Info().Latest != "9.9.9" {
		t.Errorf("latest: got %q", vc.Info().Latest)
	}
	if err := vc.check(); err != nil {
		t.Fatal(err)
	}
	if n := requests.Load(); n != 2 || vc.Info().Latest != "9.9.9" {
		t.Errorf("conditional request: requests %d, latest %q", n, vc.Info().Latest)
	}
}

func TestVersionCheckRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	vc := newVersionChecker(srv.URL, srv.Client())
	if err := vc.check(); !errors.Is(err, errRetryable) {
		t.Errorf("rate limited: got %v, want retryable", err)
	}
}

func TestVersionCheckerStop(t *testing.T) {
	vc := newVersionChecker("http://127.0.0.1:0", http.DefaultClient)
	go vc.run(versionCheckDelay)
	vc.Stop()
	vc.Stop()
}
