package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/virajlab/nautifier/internal/dispatch"
	"github.com/virajlab/nautifier/internal/ledger"
)

type fakeLedger struct {
	mu         sync.Mutex
	entries    map[string]ledger.Status
	failCreate bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: map[string]ledger.Status{}}
}

func (f *fakeLedger) TryCreate(_ context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return false, fmt.Errorf("%w: down", ledger.ErrUnavailable)
	}
	if _, ok := f.entries[eventID]; ok {
		return false, nil
	}
	f.entries[eventID] = ledger.StatusQueued
	return true, nil
}

func (f *fakeLedger) TryComplete(_ context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entries[eventID] != ledger.StatusQueued {
		return false, nil
	}
	f.entries[eventID] = ledger.StatusCompleted
	return true, nil
}

func (f *fakeLedger) Read(_ context.Context, eventID string) (ledger.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.entries[eventID]
	if !ok {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	return ledger.Entry{EventID: eventID, Status: status}, nil
}

func (f *fakeLedger) Delete(_ context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, eventID)
	return nil
}

type fakeQueue struct {
	mu      sync.Mutex
	bodies  [][]byte
	urls    []string
	failErr error
}

func (f *fakeQueue) Enqueue(_ context.Context, endpointURL string, payload []byte) (dispatch.TaskHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return dispatch.TaskHandle{}, f.failErr
	}
	f.urls = append(f.urls, endpointURL)
	f.bodies = append(f.bodies, payload)
	return dispatch.TaskHandle{Name: "task-1"}, nil
}

func newTestServer(t *testing.T, lg ledger.Ledger, q dispatch.Queue, secret string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	RegisterRoutes(mux, RoutesOptions{
		Ledger:        lg,
		Queue:         q,
		ProcessorURL:  "https://processor.example/process",
		SigningSecret: secret,
		Seen:          NewSeenCache(16),
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postEvents(t *testing.T, srv *httptest.Server, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/slack/events", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func eventBody(eventID string) string {
	return fmt.Sprintf(`{"type": "event_callback", "event_id": %q, "event": {"type": "message", "user": "U1", "channel": "C1", "text": "hi", "ts": "1700.1"}}`, eventID)
}

func TestChallengeEcho(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, newFakeLedger(), &fakeQueue{}, "")

	resp, err := http.Post(srv.URL+"/slack/events", "application/json",
		strings.NewReader(`{"type": "url_verification", "challenge": "abc123"}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
	buf := make([]byte, 64)
	n, _ := resp.Body.Read(buf)
	if got := string(buf[:n]); got != "abc123" {
		t.Errorf("body = %q, want exactly abc123", got)
	}
}

func TestQueuedThenDuplicate(t *testing.T) {
	t.Parallel()
	q := &fakeQueue{}
	srv := newTestServer(t, newFakeLedger(), q, "")

	resp, decoded := postEvents(t, srv, eventBody("T1"))
	if resp.StatusCode != http.StatusOK || decoded["status"] != "queued" {
		t.Fatalf("first delivery: status = %d body = %v", resp.StatusCode, decoded)
	}

	resp, decoded = postEvents(t, srv, eventBody("T1"))
	if resp.StatusCode != http.StatusOK || decoded["status"] != "already_queued_or_error" {
		t.Fatalf("second delivery: status = %d body = %v", resp.StatusCode, decoded)
	}

	if len(q.bodies) != 1 {
		t.Fatalf("enqueues = %d, want exactly 1", len(q.bodies))
	}
	if q.urls[0] != "https://processor.example/process" {
		t.Errorf("endpoint = %q", q.urls[0])
	}
	var task map[string]any
	if err := json.Unmarshal(q.bodies[0], &task); err != nil {
		t.Fatalf("task body not JSON: %v", err)
	}
	if task["event_id"] != "T1" || task["channel"] != "C1" {
		t.Errorf("task body = %v", task)
	}
}

func TestEnqueueFailureRollsBack(t *testing.T) {
	t.Parallel()
	lg := newFakeLedger()
	q := &fakeQueue{failErr: fmt.Errorf("queue down")}
	srv := newTestServer(t, lg, q, "")

	resp, _ := postEvents(t, srv, eventBody("T2"))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	if _, err := lg.Read(context.Background(), "T2"); err != ledger.ErrNotFound {
		t.Fatalf("ledger entry survived failed enqueue: %v", err)
	}

	// A retried delivery of the same event must be able to win again.
	q.failErr = nil
	resp, decoded := postEvents(t, srv, eventBody("T2"))
	if resp.StatusCode != http.StatusOK || decoded["status"] != "queued" {
		t.Fatalf("retry: status = %d body = %v", resp.StatusCode, decoded)
	}
}

func TestLedgerUnavailable(t *testing.T) {
	t.Parallel()
	lg := newFakeLedger()
	lg.failCreate = true
	srv := newTestServer(t, lg, &fakeQueue{}, "")

	resp, _ := postEvents(t, srv, eventBody("T3"))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestMalformedBody(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, newFakeLedger(), &fakeQueue{}, "")
	resp, decoded := postEvents(t, srv, `{"type": `)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if _, ok := decoded["error"]; !ok {
		t.Errorf("body = %v, want error field", decoded)
	}
}

func TestUnsupportedType(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, newFakeLedger(), &fakeQueue{}, "")
	resp, decoded := postEvents(t, srv, `{"type": "app_rate_limited"}`)
	if resp.StatusCode != http.StatusOK || decoded["status"] != "unsupported_event" {
		t.Fatalf("status = %d body = %v", resp.StatusCode, decoded)
	}
}

func TestMissingEventID(t *testing.T) {
	t.Parallel()
	q := &fakeQueue{}
	srv := newTestServer(t, newFakeLedger(), q, "")
	resp, decoded := postEvents(t, srv, `{"type": "event_callback", "event": {"type": "message"}}`)
	if resp.StatusCode != http.StatusOK || decoded["status"] != "already_queued_or_error" {
		t.Fatalf("status = %d body = %v", resp.StatusCode, decoded)
	}
	if len(q.bodies) != 0 {
		t.Errorf("enqueues = %d, want 0", len(q.bodies))
	}
}

func TestSignatureVerification(t *testing.T) {
	t.Parallel()
	const secret = "shhh"
	srv := newTestServer(t, newFakeLedger(), &fakeQueue{}, secret)
	body := eventBody("T4")

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/slack/events", strings.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", "123")
	req.Header.Set("X-Slack-Signature", "v0=bogus")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bogus signature: status = %d, want 401", resp.StatusCode)
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", ts, body)
	sig := "v0=" + hex.EncodeToString(mac.Sum(nil))

	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/slack/events", strings.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", sig)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid signature: status = %d, want 200", resp.StatusCode)
	}
}

func TestSeenCacheBounded(t *testing.T) {
	t.Parallel()
	c := NewSeenCache(2)
	c.Add("a")
	c.Add("b")
	c.Add("c")
	if c.Seen("a") {
		t.Error("oldest entry should have been evicted")
	}
	if !c.Seen("b") || !c.Seen("c") {
		t.Error("recent entries should remain")
	}
}
