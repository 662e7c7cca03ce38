package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/newthinker/stockscope/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func TestClient_Get_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New("test", WithRetry(fastRetry))
	resp, err := c.Get(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Get_ExhaustedRetriesIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New("test", WithRetry(fastRetry)).Get(context.Background(), srv.URL)
	assert.True(t, errors.Is(err, core.ErrTransport), "got %v", err)
}

func TestClient_Get_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	resp, err := New("test", WithRetry(fastRetry)).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	err = CheckStatus("test", resp)
	assert.True(t, errors.Is(err, core.ErrRateLimited), "got %v", err)
}

func TestClient_RateLimitBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New("alphavantage", WithRateLimit(2))
	for i := 0; i < 2; i++ {
		_, err := c.Get(context.Background(), srv.URL)
		require.NoError(t, err)
	}

	_, err := c.Get(context.Background(), srv.URL)
	assert.True(t, errors.Is(err, core.ErrRateLimited), "got %v", err)
}

func TestClient_PostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "stockscope", r.Header.Get("User-Agent"))
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := New("proxy", WithHeader("User-Agent", "stockscope"))
	resp, err := c.PostJSON(context.Background(), srv.URL, map[string]string{"action": "test"})
	require.NoError(t, err)
	assert.Equal(t, `{"success":true}`, string(resp.Body))
}

func TestClient_ContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := New("slow", WithRetry(fastRetry)).Get(ctx, srv.URL)
	assert.True(t, errors.Is(err, core.ErrTransport), "got %v", err)
}

func TestCheckStatus(t *testing.T) {
	assert.NoError(t, CheckStatus("p", &Response{Status: 200}))
	assert.True(t, errors.Is(CheckStatus("p", &Response{Status: 404}), core.ErrTransport))
}
