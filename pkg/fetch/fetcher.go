package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"docsmap/pkg/config"
	"docsmap/pkg/utils"
)

// HTTPFetcher abstracts the retrying fetch operation for testability.
type HTTPFetcher interface {
	FetchWithRetry(req *http.Request, ctx context.Context) (*http.Response, error)
}

// Fetcher handles making HTTP requests with configured retry logic, using an
// underlying http.Client.
type Fetcher struct {
	client *http.Client
	cfg    *config.AppConfig // Needed primarily for retry settings
	log    *logrus.Entry
}

// NewFetcher builds a Fetcher around the given client and retry settings.
func NewFetcher(client *http.Client, cfg *config.AppConfig, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client: client,
		cfg:    cfg,
		log:    log,
	}
}

// FetchWithRetry performs an HTTP request associated with the provided context.
// It retries transient network errors and 5xx/429 responses with exponential
// backoff and jitter. On 2xx the caller must close the response body; on 4xx
// the response is returned alongside the wrapped error (caller closes body).
func (f *Fetcher) FetchWithRetry(req *http.Request, ctx context.Context) (*http.Response, error) {
	var lastErr error
	var currentResp *http.Response

	reqLog := f.log.WithField("url", req.URL.String())

	maxRetries := f.cfg.MaxRetries
	baseDelay := f.cfg.InitialRetryDelay
	delayCap := f.cfg.MaxRetryDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {

		// Check the context before making the attempt or sleeping
		select {
		case <-ctx.Done():
			reqLog.Warnf("Aborting fetch before attempt %d, context done: %v", attempt, ctx.Err())
			if lastErr != nil {
				return nil, fmt.Errorf("fetch aborted (%v) while retrying after: %w", ctx.Err(), lastErr)
			}
			return nil, fmt.Errorf("fetch aborted before first attempt: %w", ctx.Err())
		default:
		}

		// Backoff applies only before retry attempts, not the first one
		if attempt > 0 {
			backoff := float64(baseDelay) * math.Pow(2, float64(attempt-1))
			delay := time.Duration(backoff)
			if delay <= 0 || delay > delayCap {
				delay = delayCap
			}

			// Jitter: +/- 10% of the calculated delay
			var jitter time.Duration
			if delay > 0 {
				jitter = time.Duration(rand.Int63n(int64(delay)/5)) - (delay / 10)
			}
			finalDelay := delay + jitter
			if finalDelay < 0 {
				finalDelay = 0
			}

			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": maxRetries, "delay": finalDelay}).Warn("Backing off before retry")

			select {
			case <-time.After(finalDelay):
			case <-ctx.Done():
				reqLog.Warnf("Fetch aborted during backoff sleep: %v", ctx.Err())
				if lastErr != nil {
					return nil, fmt.Errorf("fetch aborted (%v) during backoff after: %w", ctx.Err(), lastErr)
				}
				return nil, fmt.Errorf("fetch aborted during backoff: %w", ctx.Err())
			}
		}

		currentResp, lastErr = f.client.Do(req.WithContext(ctx))

		// Network-level errors (DNS, TCP, TLS) arrive before any HTTP response
		if lastErr != nil {
			if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
				reqLog.Warnf("Request context ended mid-flight: %v", lastErr)
				drainAndClose(currentResp)
				return nil, lastErr // Do not retry context errors
			}

			reqLog.WithField("attempt", attempt).Errorf("Transport error: %v", lastErr)
			drainAndClose(currentResp)
			continue
		}

		statusCode := currentResp.StatusCode
		resLog := reqLog.WithFields(logrus.Fields{"status_code": statusCode, "status": currentResp.Status, "attempt": attempt})

		switch {
		case statusCode >= 200 && statusCode < 300:
			resLog.Debug("Fetched OK")
			return currentResp, nil

		case statusCode >= 500:
			// Potentially transient, retry
			resLog.Warn("Server error, will retry")
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, statusCode, currentResp.Status)
			drainAndClose(currentResp)
			continue

		case statusCode == http.StatusTooManyRequests:
			resLog.Warn("Rate limited (429), will retry")
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, currentResp.Status)
			drainAndClose(currentResp)
			continue

		case statusCode >= 400 && statusCode < 500:
			// Not retryable (404, 403, ...). Caller must close the body.
			resLog.Warn("Client error, giving up on this URL")
			return currentResp, fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, currentResp.Status)

		default:
			resLog.Warnf("Unexpected status %d, not retrying", statusCode)
			return currentResp, fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, statusCode, currentResp.Status)
		}
	}

	// All attempts (initial + retries) failed
	reqLog.Errorf("Exhausted %d attempts, last error: %v", maxRetries+1, lastErr)
	drainAndClose(currentResp)

	if lastErr != nil {
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return nil, lastErr
		}
		return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
	}
	return nil, utils.ErrRetryFailed
}

// drainAndClose fully reads and closes a response body so the underlying
// connection can be reused. Safe on nil responses.
func drainAndClose(resp *http.Response) {
	if resp != nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}
