package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"spiderbot/pkg/config"
	applog "spiderbot/pkg/log"
	"spiderbot/pkg/utils"
)

func testConfig() *config.Config {
	return &config.Config{
		UserAgent:         "SpiderBot/2.0",
		RequestTimeout:    5 * time.Second,
		MaxRetries:        0,
		InitialRetryDelay: 1 * time.Millisecond,
		MaxRetryDelay:     10 * time.Millisecond,
		MaxBodyBytes:      1 << 20,
	}
}

func newTestFetcher(cfg *config.Config) *Fetcher {
	return NewFetcher(http.DefaultClient, cfg, applog.Discard())
}

func TestFetcher_Success(t *testing.T) {
	const page = "<html><body>hello</body></html>"
	var gotUA atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		w.Write([]byte(page))
	}))
	defer server.Close()

	f := newTestFetcher(testConfig())
	result, err := f.Fetch(context.Background(), server.URL+"/page")
	if err != nil {
		t.Fatalf("Fetch() error = %v, want nil", err)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", result.StatusCode)
	}
	if string(result.Body) != page {
		t.Errorf("Body = %q, want %q", result.Body, page)
	}
	if result.FinalURL == nil || result.FinalURL.Path != "/page" {
		t.Errorf("FinalURL = %v, want path /page", result.FinalURL)
	}
	if ua := gotUA.Load(); ua != "SpiderBot/2.0" {
		t.Errorf("User-Agent = %v, want SpiderBot/2.0", ua)
	}
}

func TestFetcher_ClientErrorIsFinal(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxRetries = 3
	f := newTestFetcher(cfg)

	result, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v, want nil (404 is a recorded outcome)", err)
	}
	if result.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", result.StatusCode)
	}
	if len(result.Body) != 0 {
		t.Errorf("Body populated for non-2xx response: %d bytes", len(result.Body))
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("Server saw %d requests, want 1 (4xx must not be retried)", got)
	}
}

func TestFetcher_RetriesServerErrorThenSucceeds(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxRetries = 3
	f := newTestFetcher(cfg)

	result, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v, want nil", err)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", result.StatusCode)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("Server saw %d requests, want 3", got)
	}
}

func TestFetcher_ExhaustedRetriesRecordLastStatus(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxRetries = 2
	f := newTestFetcher(cfg)

	result, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v, want nil (exhausted 5xx is still an HTTP outcome)", err)
	}
	if result.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", result.StatusCode)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("Server saw %d requests, want 3 (initial + 2 retries)", got)
	}
}

func TestFetcher_TooManyRequestsRetried(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxRetries = 1
	f := newTestFetcher(cfg)

	result, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v, want nil", err)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", result.StatusCode)
	}
}

func TestFetcher_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // Nothing listens here anymore

	cfg := testConfig()
	cfg.MaxRetries = 1
	f := newTestFetcher(cfg)

	result, err := f.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatalf("Fetch() of a dead server returned %+v, want error", result)
	}
	if !errors.Is(err, utils.ErrRetryFailed) {
		t.Errorf("error = %v, want wrapped ErrRetryFailed", err)
	}
}

func TestFetcher_BodySizeCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxBodyBytes = 1024
	f := newTestFetcher(cfg)

	_, err := f.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Fetch() of an oversized body returned nil error")
	}
	if !errors.Is(err, utils.ErrResponseBodyRead) {
		t.Errorf("error = %v, want wrapped ErrResponseBodyRead", err)
	}
}

func TestFetcher_BodyAtCapAccepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 1024)))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxBodyBytes = 1024
	f := newTestFetcher(cfg)

	result, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v, want nil (body exactly at the cap)", err)
	}
	if len(result.Body) != 1024 {
		t.Errorf("Body length = %d, want 1024", len(result.Body))
	}
}

func TestFetcher_ContextCancellation(t *testing.T) {
	blocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer server.Close()
	defer close(blocked)

	f := newTestFetcher(testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := f.Fetch(ctx, server.URL)
	if err == nil {
		t.Fatal("Fetch() with cancelled context returned nil error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Fetch() took %v after cancel, should return promptly", elapsed)
	}
}

func TestFetcher_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newTestFetcher(testConfig())
	_, err := f.Fetch(ctx, "http://example.invalid/")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestFetcher_RequestTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	cfg := testConfig()
	cfg.RequestTimeout = 50 * time.Millisecond
	f := newTestFetcher(cfg)

	_, err := f.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Fetch() of a hanging server returned nil error, want timeout")
	}
	// The per-request deadline is a transport failure for this URL,
	// not a crawl shutdown
	if errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, should not surface as crawl cancellation", err)
	}
}

func TestFetcher_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("moved here"))
	})

	f := newTestFetcher(testConfig())
	result, err := f.Fetch(context.Background(), server.URL+"/old")
	if err != nil {
		t.Fatalf("Fetch() error = %v, want nil", err)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", result.StatusCode)
	}
	if result.FinalURL.Path != "/new" {
		t.Errorf("FinalURL.Path = %q, want /new (post-redirect URL)", result.FinalURL.Path)
	}
}
