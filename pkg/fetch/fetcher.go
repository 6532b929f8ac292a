package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"spiderbot/pkg/config"
	"spiderbot/pkg/utils"
)

// Result is the outcome of a fetch that obtained an HTTP response.
// Any status code counts, 4xx/5xx included: those are still successful
// fetches from the crawler's perspective and are recorded with their code.
// Body is populated for 2xx responses only; error responses are drained
type Result struct {
	StatusCode int
	Body       []byte
	FinalURL   *url.URL // URL after redirects, the base for link resolution
}

// PageFetcher fetches a single URL and classifies the outcome.
// A non-nil error means a transport failure: no usable HTTP response
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Result, error)
}

// Fetcher performs HTTP requests with bounded timeouts and retry with
// exponential backoff and jitter for transient failures (network errors,
// 5xx, 429)
type Fetcher struct {
	client *http.Client
	cfg    *config.Config
	log    *logrus.Logger
}

// NewFetcher creates a Fetcher using the given client
func NewFetcher(client *http.Client, cfg *config.Config, log *logrus.Logger) *Fetcher {
	return &Fetcher{client: client, cfg: cfg, log: log}
}

// Fetch performs a GET with the configured request timeout.
// Returns a Result for any HTTP response ultimately obtained (after the
// retry budget for 5xx/429), or an error when every attempt failed at the
// transport level
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	reqLog := f.log.WithField("url", rawURL)

	var lastErr error
	lastStatus := 0 // Last HTTP status seen across retried attempts

	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, fmt.Errorf("context cancelled (%v) during retry after error: %w", ctx.Err(), lastErr)
			}
			return nil, ctx.Err()
		default:
		}

		// Backoff only before retry attempts, never before the first
		if attempt > 0 {
			if err := f.backoff(ctx, attempt, reqLog); err != nil {
				if lastErr != nil {
					return nil, fmt.Errorf("context cancelled (%v) during retry delay after error: %w", ctx.Err(), lastErr)
				}
				return nil, err
			}
		}

		result, status, err := f.attempt(ctx, rawURL)
		if err != nil {
			if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				// The crawl is shutting down; not a page failure.
				// A per-request timeout with the parent still live stays a
				// plain network error and goes through the retry budget
				return nil, err
			}
			reqLog.WithField("attempt", attempt).Warnf("Network error: %v", err)
			lastErr = err
			continue
		}
		if result != nil {
			return result, nil
		}

		// Transient HTTP status (5xx or 429): retry, but remember the code
		// so an exhausted budget still yields an HTTP outcome
		reqLog.WithFields(logrus.Fields{"status_code": status, "attempt": attempt}).Warn("Transient HTTP status, retrying...")
		lastStatus = status
		lastErr = nil
	}

	if lastStatus != 0 {
		reqLog.Warnf("All %d attempts got transient HTTP status, recording last status %d", f.cfg.MaxRetries+1, lastStatus)
		finalURL, _ := url.Parse(rawURL)
		return &Result{StatusCode: lastStatus, FinalURL: finalURL}, nil
	}

	reqLog.Errorf("All %d fetch attempts failed. Last error: %v", f.cfg.MaxRetries+1, lastErr)
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
	}
	return nil, utils.ErrRetryFailed
}

// attempt performs one HTTP round trip.
// Returns (result, 0, nil) on a final outcome, (nil, status, nil) when the
// status is retryable, and (nil, 0, err) on a transport error
func (f *Fetcher) attempt(ctx context.Context, rawURL string) (*Result, int, error) {
	reqCtx := ctx
	if f.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, f.cfg.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: '%s': %w", utils.ErrRequestCreation, rawURL, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		// Per-request deadline expiry surfaces as the parent's verdict only
		// when the parent is done too; otherwise it is this URL's timeout
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, err
	}

	statusCode := resp.StatusCode
	switch {
	case statusCode >= 200 && statusCode < 300:
		body, readErr := f.readBody(resp)
		if readErr != nil {
			return nil, 0, readErr
		}
		return &Result{StatusCode: statusCode, Body: body, FinalURL: resp.Request.URL}, 0, nil

	case statusCode >= 500, statusCode == http.StatusTooManyRequests:
		drain(resp)
		return nil, statusCode, nil

	default:
		// Other non-2xx statuses (404, 403, ...) are final outcomes;
		// the page is recorded with its code and not mined for links
		drain(resp)
		return &Result{StatusCode: statusCode, FinalURL: resp.Request.URL}, 0, nil
	}
}

// readBody reads the response body under the configured size cap.
// Exceeding the cap or failing mid-read is a transport failure
func (f *Fetcher) readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	limited := io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1) // +1 to detect exceeding the limit
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	if int64(len(body)) > f.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("%w: body exceeds max size (%d bytes)", utils.ErrResponseBodyRead, f.cfg.MaxBodyBytes)
	}
	return body, nil
}

// backoff sleeps the exponential delay for the given retry attempt,
// with +/-10% jitter, respecting context cancellation
func (f *Fetcher) backoff(ctx context.Context, attempt int, reqLog *logrus.Entry) error {
	delay := time.Duration(float64(f.cfg.InitialRetryDelay) * math.Pow(2, float64(attempt-1)))
	if delay <= 0 || delay > f.cfg.MaxRetryDelay {
		delay = f.cfg.MaxRetryDelay
	}

	var jitter time.Duration
	if delay > 0 {
		jitter = time.Duration(rand.Int63n(int64(delay)/5)) - (delay / 10)
	}
	finalDelay := delay + jitter
	if finalDelay < 0 {
		finalDelay = 0
	}

	reqLog.WithFields(logrus.Fields{"attempt": attempt, "delay": finalDelay}).Warn("Retrying request...")

	timer := time.NewTimer(finalDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
