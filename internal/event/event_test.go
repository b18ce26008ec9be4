package event

import (
	"testing"
)

func TestParseCallbackURLVerification(t *testing.T) {
	t.Parallel()

	cb, err := ParseCallback([]byte(`{"type":"url_verification","challenge":"abc123"}`))
	if err != nil {
		t.Fatalf("ParseCallback() error = %v", err)
	}
	if cb.Type != CallbackURLVerification {
		t.Fatalf("type = %q, want %q", cb.Type, CallbackURLVerification)
	}
	if cb.Challenge != "abc123" {
		t.Fatalf("challenge = %q, want %q", cb.Challenge, "abc123")
	}
	if cb.Event != nil {
		t.Fatalf("expected nil event for url_verification")
	}
}

func TestParseCallbackEvent(t *testing.T) {
	t.Parallel()

	cb, err := ParseCallback([]byte(`{"type":"event_callback","event":{"event_ts":"1700000000.000100","channel":"C08KR42C85C","user":"U123","text":"hi"}}`))
	if err != nil {
		t.Fatalf("ParseCallback() error = %v", err)
	}
	if cb.Type != CallbackEvent {
		t.Fatalf("type = %q, want %q", cb.Type, CallbackEvent)
	}
	if cb.Event == nil {
		t.Fatalf("expected event")
	}
	if got := cb.Event.ID(); got != "1700000000.000100" {
		t.Fatalf("ID() = %q, want %q", got, "1700000000.000100")
	}
	if got := cb.Event.Channel(); got != "C08KR42C85C" {
		t.Fatalf("Channel() = %q, want %q", got, "C08KR42C85C")
	}
}

func TestParseCallbackMalformed(t *testing.T) {
	t.Parallel()

	if _, err := ParseCallback([]byte("not json")); err == nil {
		t.Fatalf("expected error for malformed body")
	}
}

func TestParseCallbackUnsupportedType(t *testing.T) {
	t.Parallel()

	cb, err := ParseCallback([]byte(`{"type":"app_rate_limited"}`))
	if err != nil {
		t.Fatalf("ParseCallback() error = %v", err)
	}
	if cb.Event != nil {
		t.Fatalf("expected nil event for unsupported type")
	}
}

func TestEventIDPrefersEventID(t *testing.T) {
	t.Parallel()

	ev := &Event{Payload: map[string]any{"event_id": "Ev01", "event_ts": "1700000000.000100"}}
	if got := ev.ID(); got != "Ev01" {
		t.Fatalf("ID() = %q, want %q", got, "Ev01")
	}
}

func TestEventIDFallsBackToEventTS(t *testing.T) {
	t.Parallel()

	ev := &Event{Payload: map[string]any{"event_ts": "1700000000.000100"}}
	if got := ev.ID(); got != "1700000000.000100" {
		t.Fatalf("ID() = %q, want %q", got, "1700000000.000100")
	}
}

func TestFromTaskBodyAcceptsBothShapes(t *testing.T) {
	t.Parallel()

	bare, err := FromTaskBody([]byte(`{"event_ts":"1.2","channel":"C1"}`))
	if err != nil {
		t.Fatalf("FromTaskBody(bare) error = %v", err)
	}
	if bare.Channel() != "C1" {
		t.Fatalf("bare channel = %q, want C1", bare.Channel())
	}

	wrapped, err := FromTaskBody([]byte(`{"type":"event_callback","event":{"event_ts":"1.2","channel":"C2"}}`))
	if err != nil {
		t.Fatalf("FromTaskBody(wrapped) error = %v", err)
	}
	if wrapped.Channel() != "C2" {
		t.Fatalf("wrapped channel = %q, want C2", wrapped.Channel())
	}
}

func TestThreadTSFallsBackToTS(t *testing.T) {
	t.Parallel()

	ev := &Event{Payload: map[string]any{"ts": "9.9"}}
	if got := ev.ThreadTS(); got != "9.9" {
		t.Fatalf("ThreadTS() = %q, want %q", got, "9.9")
	}
	ev.Payload["thread_ts"] = "1.1"
	if got := ev.ThreadTS(); got != "1.1" {
		t.Fatalf("ThreadTS() = %q, want %q", got, "1.1")
	}
}

func TestCleanText(t *testing.T) {
	t.Parallel()

	in := "<@U07RL8UCZGB> please save <https://example.com/post|this article> for the newsletter"
	want := "please save https://example.com/post for the newsletter"
	if got := CleanText(in); got != want {
		t.Fatalf("CleanText() = %q, want %q", got, want)
	}
}

func TestParseCallbackLiftsEnvelopeEventID(t *testing.T) {
	t.Parallel()
	body := []byte(`{"type": "event_callback", "event_id": "Ev123", "event": {"type": "message", "ts": "1700.1"}}`)
	cb, err := ParseCallback(body)
	if err != nil {
		t.Fatalf("ParseCallback() error = %v", err)
	}
	if got := cb.Event.ID(); got != "Ev123" {
		t.Fatalf("ID() = %q, want Ev123", got)
	}
}

func TestParseCallbackKeepsInnerEventID(t *testing.T) {
	t.Parallel()
	body := []byte(`{"type": "event_callback", "event_id": "EvOuter", "event": {"event_id": "EvInner", "ts": "1700.1"}}`)
	cb, err := ParseCallback(body)
	if err != nil {
		t.Fatalf("ParseCallback() error = %v", err)
	}
	if got := cb.Event.ID(); got != "EvInner" {
		t.Fatalf("ID() = %q, want EvInner", got)
	}
}
