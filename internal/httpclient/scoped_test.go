package httpclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func noBackoff(t *testing.T) {
	t.Helper()
	prev := backoff
	backoff = func(int) time.Duration { return time.Millisecond }
	t.Cleanup(func() { backoff = prev })
}

func TestScopedClient_NoRequestUntilVerb(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := New(srv.URL, Options{Logger: testLogger()}).
		Header("X-Test", "1").
		Query("q", "brobbot").
		Path("api", "v1")

	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
	assert.Equal(t, srv.URL+"/api/v1?q=brobbot", c.URL())
}

func TestScopedClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/things", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("id"))
		assert.Equal(t, "yes", r.Header.Get("X-Scoped"))
		assert.Equal(t, "brobbot-test", r.Header.Get("User-Agent"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "bob", user)
		assert.Equal(t, "secret", pass)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"name":"widget"}`)
	}))
	defer srv.Close()

	res, err := New(srv.URL, Options{UserAgent: "brobbot-test", Logger: testLogger()}).
		Path("things").
		Query("id", "42").
		Header("X-Scoped", "yes").
		Auth("bob", "secret").
		Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		Name string `json:"name"`
	}
	require.NoError(t, res.JSON(&body))
	assert.Equal(t, "widget", body.Name)
}

func TestScopedClient_PostBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, `{"a":1}`, string(data))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	res, err := New(srv.URL, Options{Logger: testLogger()}).
		Header("Content-Type", "application/json").
		Post(context.Background(), []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
}

func TestScopedClient_ChainDoesNotMutateParent(t *testing.T) {
	base := New("http://example.com/root", Options{Logger: testLogger()})
	child := base.Path("child").Query("x", "1").Header("A", "b")

	assert.Equal(t, "http://example.com/root", base.URL())
	assert.Equal(t, "http://example.com/root/child?x=1", child.URL())
	assert.Empty(t, base.headers.Get("A"))
}

func TestScopedClient_InvalidURL(t *testing.T) {
	_, err := New("://bad", Options{Logger: testLogger()}).Get(context.Background())
	require.Error(t, err)
}

func TestScopedClient_RetriesServerErrors(t *testing.T) {
	noBackoff(t)
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	res, err := New(srv.URL, Options{MaxRetries: 3, Logger: testLogger()}).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", string(res.Body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestScopedClient_ReturnsLastServerErrorResponse(t *testing.T) {
	noBackoff(t)
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "maintenance")
	}))
	defer srv.Close()

	res, err := New(srv.URL, Options{MaxRetries: 1, Logger: testLogger()}).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, "maintenance", string(res.Body))
	assert.Equal(t, "30", res.Header.Get("Retry-After"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestScopedClient_NonIdempotentVerbsSentOnce(t *testing.T) {
	noBackoff(t)
	for _, verb := range []string{http.MethodPost, http.MethodPut, http.MethodPatch} {
		t.Run(verb, func(t *testing.T) {
			var hits int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(http.StatusBadGateway)
			}))
			defer srv.Close()

			c := New(srv.URL, Options{MaxRetries: 2, Logger: testLogger()})
			var (
				res *Result
				err error
			)
			switch verb {
			case http.MethodPost:
				res, err = c.Post(context.Background(), []byte(`{"n":1}`))
			case http.MethodPut:
				res, err = c.Put(context.Background(), []byte(`{"n":1}`))
			case http.MethodPatch:
				res, err = c.Patch(context.Background(), []byte(`{"n":1}`))
			}
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadGateway, res.StatusCode)
			assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
		})
	}
}

func TestScopedClient_ClientErrorNotRetried(t *testing.T) {
	noBackoff(t)
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	res, err := New(srv.URL, Options{MaxRetries: 3, Logger: testLogger()}).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
