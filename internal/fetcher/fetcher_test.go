package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(baseURL string) *PageFetcher {
	return New(Options{
		BaseURL:    baseURL,
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
		Timeout:    time.Second,
		UserAgents: []string{"agent-a", "agent-b"},
	})
}

func TestFetchSuccess(t *testing.T) {
	var gotPath, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`<span id="productTitle">Lamp</span>`))
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL)
	html, err := f.Fetch(context.Background(), "B08X7YZ123")
	require.NoError(t, err)

	assert.Contains(t, html, "productTitle")
	assert.Equal(t, "/dp/B08X7YZ123", gotPath)
	assert.Equal(t, "agent-a", gotUA)
}

func TestFetchRotatesUserAgents(t *testing.T) {
	var agents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.Header.Get("User-Agent"))
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL)
	for i := 0; i < 3; i++ {
		_, err := f.Fetch(context.Background(), "B000000000")
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"agent-a", "agent-b", "agent-a"}, agents)
}

func TestFetchBlockedStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL)
	_, err := f.Fetch(context.Background(), "B000000000")

	assert.ErrorIs(t, err, ErrBlocked)
	assert.Equal(t, int32(1), hits.Load(), "blocked status must not be retried")
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL)
	_, err := f.Fetch(context.Background(), "B000000000")
	assert.ErrorIs(t, err, ErrNotFoundPage)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL)
	html, err := f.Fetch(context.Background(), "B000000000")
	require.NoError(t, err)

	assert.Equal(t, "recovered", html)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL)
	_, err := f.Fetch(context.Background(), "B000000000")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchBadStatusNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL)
	_, err := f.Fetch(context.Background(), "B000000000")

	assert.ErrorIs(t, err, ErrBadStatus)
	assert.NotErrorIs(t, err, ErrBlocked)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("too late"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	f := newTestFetcher(srv.URL)
	_, err := f.Fetch(ctx, "B000000000")
	require.Error(t, err)
}
