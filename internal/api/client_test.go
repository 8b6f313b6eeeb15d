package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(ClientConfig{
		BaseURL:    srv.URL + "/",
		HTTPClient: srv.Client(),
		Retry:      RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Timeout: time.Second},
	})
}

func TestNewClient_DefaultHTTPClientHasNoOverallTimeout(t *testing.T) {
	t.Parallel()
	c := NewClient(ClientConfig{
		BaseURL: "http://timings.invalid",
		Retry:   RetryPolicy{MaxAttempts: 1, Timeout: time.Minute},
	})
	assert.Zero(t, c.http.Timeout, "a client-wide timeout would cap RetryPolicy.Timeout")
}

func TestClient_SlowResponseWithinAttemptTimeout(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{
		BaseURL: srv.URL,
		Retry:   RetryPolicy{MaxAttempts: 1, Timeout: time.Second},
	})
	_, err := c.Search(context.Background(), "slow")
	require.NoError(t, err)
}

func TestClient_Search(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Sousou no Frieren", r.URL.Query().Get("title"))
		fmt.Fprint(w, `{"results":[{"id":"52991","title":"Sousou no Frieren"},{"id":"1","title":"Other"}]}`)
	}))
	defer srv.Close()

	results, err := newTestClient(srv).Search(context.Background(), "Sousou no Frieren")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "52991", results[0].ID)
}

func TestClient_SearchEmpty(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer srv.Close()

	results, err := newTestClient(srv).Search(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClient_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"id":"7","episodes":{"1":{"intro":[85,105]}}}`)
	}))
	defer srv.Close()

	record, err := newTestClient(srv).Timings(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Contains(t, record.Episodes, "1")
}

func TestClient_MalformedBodyIsRetried(t *testing.T) {
	t.Parallel()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `<html>maintenance</html>`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Search(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_MissingFieldsAreMalformed(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"7"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Timings(context.Background(), "7")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClient_NetworkErrorAfterRetries(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Timings(context.Background(), "7")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Contains(t, err.Error(), "status 500")
}
