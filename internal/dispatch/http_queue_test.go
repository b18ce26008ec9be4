package dispatch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestHTTPQueueEnqueuePostsJSON(t *testing.T) {
	t.Parallel()

	var gotBody atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q, want application/json", ct)
		}
		body, _ := io.ReadAll(r.Body)
		gotBody.Store(string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	q := NewHTTPQueue(ts.Client())
	handle, err := q.Enqueue(context.Background(), ts.URL, []byte(`{"event_ts":"1.2"}`))
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if !strings.HasPrefix(handle.Name, "local_") {
		t.Fatalf("handle name = %q, want local_ prefix", handle.Name)
	}
	if got := gotBody.Load(); got != `{"event_ts":"1.2"}` {
		t.Fatalf("body = %q", got)
	}
}

func TestHTTPQueueEnqueueRetriesOn5xx(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	q := NewHTTPQueue(ts.Client())
	if _, err := q.Enqueue(context.Background(), ts.URL, []byte(`{}`)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestHTTPQueueEnqueueDoesNotRetry4xx(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	q := NewHTTPQueue(ts.Client())
	if _, err := q.Enqueue(context.Background(), ts.URL, []byte(`{}`)); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestHTTPQueueEnqueueValidation(t *testing.T) {
	t.Parallel()

	q := NewHTTPQueue(nil)
	if _, err := q.Enqueue(context.Background(), "  ", []byte(`{}`)); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
	if _, err := q.Enqueue(context.Background(), "http://localhost:1", nil); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}
