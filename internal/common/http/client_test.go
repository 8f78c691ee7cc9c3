// internal/common/http/client_test.go
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoJSON_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "bonjour", in["text"])
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "m1"})
	}))
	defer server.Close()

	c := NewClient(time.Second, 3)
	c.baseDelay = time.Millisecond

	var out struct{ ID string }
	err := c.DoJSON(context.Background(), http.MethodPost, server.URL, map[string]string{"Authorization": "Bearer k"},
		map[string]string{"text": "bonjour"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "m1", out.ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDoJSON_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad chat id"))
	}))
	defer server.Close()

	c := NewClient(time.Second, 3)
	c.baseDelay = time.Millisecond

	err := c.DoJSON(context.Background(), http.MethodGet, server.URL, nil, nil, nil)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, "bad chat id", statusErr.Body)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDoJSON_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := NewClient(time.Second, 2).DoJSON(ctx, http.MethodGet, server.URL, nil, nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
