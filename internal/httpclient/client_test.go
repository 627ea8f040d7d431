package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoReturnsImmediatelyOnSuccess(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New()
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, _, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDoPassesThroughHTTPErrorStatusWithoutRetrying(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := New(WithMaxConnRetries(3), WithConnRetryDelay(time.Millisecond))
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, _, err := c.Do(req)
	require.NoError(t, err, "an HTTP error status is not a connection failure; Do must hand it back, not retry it")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "status-code retry policy belongs to the rate-limit governor, not this client")
}

func TestDoParsesRateLimitHeadersOnEverySuccessfulRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := New(WithHeaderParser(ParseStandardRateLimitHeaders))
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, info, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 7*time.Second, info.RetryAfter)
}

func TestDoRetriesThenGivesUpOnAnUnreachableAddress(t *testing.T) {
	c := New(WithMaxConnRetries(2), WithConnRetryDelay(time.Millisecond))
	req, err := http.NewRequest(http.MethodGet, "http://127.0.0.1:1/unreachable", nil)
	require.NoError(t, err)

	_, _, err = c.Do(req)
	require.Error(t, err)
	var netErr net.Error
	assert.ErrorAs(t, err, &netErr)
}

func TestDoHonorsContextCancellationDuringConnRetryBackoff(t *testing.T) {
	c := New(WithMaxConnRetries(5), WithConnRetryDelay(time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	req, err := http.NewRequest(http.MethodGet, "http://127.0.0.1:1/unreachable", nil)
	require.NoError(t, err)
	req = req.WithContext(ctx)

	_, _, err = c.Do(req)
	require.Error(t, err)
}

func TestIsConnectionErrorExcludesContextCancellation(t *testing.T) {
	assert.False(t, isConnectionError(context.Canceled))
	assert.False(t, isConnectionError(context.DeadlineExceeded))
	assert.True(t, isConnectionError(&net.OpError{Op: "dial", Err: assert.AnError}))
	assert.False(t, isConnectionError(assert.AnError))
}
