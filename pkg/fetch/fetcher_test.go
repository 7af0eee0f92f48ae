package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsmap/pkg/config"
	"docsmap/pkg/utils"
)

// testConfig returns an AppConfig with fast retry delays for testing
func testConfig(maxRetries int) *config.AppConfig {
	return &config.AppConfig{
		MaxRetries:        maxRetries,
		InitialRetryDelay: 10 * time.Millisecond,
		MaxRetryDelay:     50 * time.Millisecond,
	}
}

// testLogger returns a logger that discards output
func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// testClient returns an http.Client suitable for testing
func testClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
	}
}

// mockServer creates an httptest.Server that returns status codes in sequence.
// Returns the server and an atomic counter tracking request attempts.
func mockServer(t *testing.T, statusCodes []int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	attemptCount := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx := int(attemptCount.Add(1)) - 1
		if idx >= len(statusCodes) {
			idx = len(statusCodes) - 1 // repeat last status
		}
		w.WriteHeader(statusCodes[idx])
	}))
	t.Cleanup(server.Close)
	return server, attemptCount
}

func TestFetchWithRetry_Success(t *testing.T) {
	server, attempts := mockServer(t, []int{http.StatusOK})

	fetcher := NewFetcher(testClient(), testConfig(3), testLogger())
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := fetcher.FetchWithRetry(req, context.Background())
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestFetchWithRetry_RetriesServerErrorThenSucceeds(t *testing.T) {
	server, attempts := mockServer(t, []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusOK})

	fetcher := NewFetcher(testClient(), testConfig(3), testLogger())
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := fetcher.FetchWithRetry(req, context.Background())
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestFetchWithRetry_ExhaustsRetriesOn5xx(t *testing.T) {
	server, attempts := mockServer(t, []int{http.StatusServiceUnavailable})

	fetcher := NewFetcher(testClient(), testConfig(2), testLogger())
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := fetcher.FetchWithRetry(req, context.Background())
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, errors.Is(err, utils.ErrRetryFailed))
	assert.True(t, errors.Is(err, utils.ErrServerHTTPError))
	assert.Equal(t, int32(3), attempts.Load()) // initial + 2 retries
}

func TestFetchWithRetry_DoesNotRetry404(t *testing.T) {
	server, attempts := mockServer(t, []int{http.StatusNotFound})

	fetcher := NewFetcher(testClient(), testConfig(3), testLogger())
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := fetcher.FetchWithRetry(req, context.Background())
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()

	assert.True(t, errors.Is(err, utils.ErrClientHTTPError))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestFetchWithRetry_Retries429(t *testing.T) {
	server, attempts := mockServer(t, []int{http.StatusTooManyRequests, http.StatusOK})

	fetcher := NewFetcher(testClient(), testConfig(3), testLogger())
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := fetcher.FetchWithRetry(req, context.Background())
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, int32(2), attempts.Load())
}

func TestFetchWithRetry_CancelledContext(t *testing.T) {
	server, _ := mockServer(t, []int{http.StatusOK})

	fetcher := NewFetcher(testClient(), testConfig(3), testLogger())
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel before first attempt

	resp, err := fetcher.FetchWithRetry(req, ctx)
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, errors.Is(err, context.Canceled))
}
