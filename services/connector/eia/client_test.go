package eia

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/nuclear-outages/services/connector/config"
	"github.com/02loveslollipop/nuclear-outages/services/connector/models"
)

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func newTestClient(t *testing.T, srv *httptest.Server, rec *sleepRecorder) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.APIKey = "k"
	cfg.BaseURL = srv.URL
	cfg.OutagesRoute = "outages"
	cfg.MaxRetries = 3
	cfg.RetryDelay = time.Second
	c, err := NewClient(cfg, WithSleep(rec.sleep))
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	t.Run("should refuse to build without an API key", func(t *testing.T) {
		_, err := NewClient(config.Default())
		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Same(t, ErrMissingAPIKey, authErr)
	})
}

func TestFetchPage(t *testing.T) {
	t.Run("should send paging params and decode records", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/outages", r.URL.Path)
			assert.Equal(t, "k", r.URL.Query().Get("api_key"))
			assert.Equal(t, "10", r.URL.Query().Get("offset"))
			assert.Equal(t, "5", r.URL.Query().Get("length"))
			fmt.Fprint(w, `{"response":{"data":[{"period":"2025-01-01","facility":100,"facilityName":"A","generator":"1"}]}}`)
		}))
		defer srv.Close()

		page, err := newTestClient(t, srv, &sleepRecorder{}).FetchPage(context.Background(), 10, 5)
		require.NoError(t, err)
		assert.False(t, page.Skipped)
		require.Len(t, page.Records, 1)
		assert.Equal(t, models.Str("100"), page.Records[0].Facility)
	})

	t.Run("should keep a page with one malformed record", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			fmt.Fprint(w, `{"response":{"data":[`+
				`{"period":"2025-01-01","facility":100,"facilityName":"A","generator":"1"},`+
				`{"period":"2025-01-01","facility":200,"facilityName":"B","generator":"2"},`+
				`{"period":"2025-01-01","facility":300,"facilityName":"C","generator":true}]}}`)
		}))
		defer srv.Close()
		rec := &sleepRecorder{}

		page, err := newTestClient(t, srv, rec).FetchPage(context.Background(), 0, 3)
		require.NoError(t, err)
		assert.False(t, page.Skipped)
		assert.Equal(t, int32(1), calls.Load())
		assert.Empty(t, rec.delays)
		require.Len(t, page.Records, 3)
		assert.False(t, page.Records[2].Generator.Valid)

		var kept int
		for _, r := range page.Records {
			if _, ok := r.Normalize(); ok {
				kept++
			}
		}
		assert.Equal(t, 2, kept)
	})

	t.Run("should fail immediately on auth errors", func(t *testing.T) {
		for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(status)
			}))
			rec := &sleepRecorder{}

			_, err := newTestClient(t, srv, rec).FetchPage(context.Background(), 0, 5)
			srv.Close()

			var authErr *AuthError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, status, authErr.StatusCode)
			assert.Equal(t, int32(1), calls.Load())
			assert.Empty(t, rec.delays)
		}
	})

	t.Run("should retry with exponential backoff then skip the page", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()
		rec := &sleepRecorder{}

		page, err := newTestClient(t, srv, rec).FetchPage(context.Background(), 0, 5)
		require.NoError(t, err)
		assert.True(t, page.Skipped)
		var transient *TransientError
		require.ErrorAs(t, page.Err, &transient)
		assert.Equal(t, http.StatusBadGateway, transient.StatusCode)
		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
	})

	t.Run("should recover when a retry succeeds", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			fmt.Fprint(w, `{"response":{"data":[]}}`)
		}))
		defer srv.Close()

		page, err := newTestClient(t, srv, &sleepRecorder{}).FetchPage(context.Background(), 0, 5)
		require.NoError(t, err)
		assert.False(t, page.Skipped)
		assert.Empty(t, page.Records)
	})

	t.Run("should skip a payload without a response envelope", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"error":"nope"}`)
		}))
		defer srv.Close()

		page, err := newTestClient(t, srv, &sleepRecorder{}).FetchPage(context.Background(), 0, 5)
		require.NoError(t, err)
		assert.True(t, page.Skipped)
	})

	t.Run("should stop retrying when the context is cancelled", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		c := newTestClient(t, srv, &sleepRecorder{})
		c.sleep = func(context.Context, time.Duration) error {
			cancel()
			return context.Canceled
		}

		_, err := c.FetchPage(ctx, 0, 5)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}
