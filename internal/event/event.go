package event

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Callback kinds recognized at the webhook edge.
const (
	CallbackURLVerification = "url_verification"
	CallbackEvent           = "event_callback"
)

// Event is one inbound Slack notification. The payload is carried through
// to domain handlers unmodified; only the fields the core needs for
// deduplication and routing are lifted out.
type Event struct {
	Payload map[string]any
}

// Callback is the parsed webhook body.
type Callback struct {
	Type      string
	Challenge string
	Event     *Event
}

// ParseCallback decodes a raw webhook body. Unsupported callback types
// return a Callback with the raw type and a nil Event; only malformed
// JSON is an error.
func ParseCallback(body []byte) (Callback, error) {
	var raw struct {
		Type      string         `json:"type"`
		Challenge string         `json:"challenge"`
		EventID   string         `json:"event_id"`
		Event     map[string]any `json:"event"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Callback{}, fmt.Errorf("parse callback: %w", err)
	}
	cb := Callback{
		Type:      strings.TrimSpace(raw.Type),
		Challenge: raw.Challenge,
	}
	if cb.Type == CallbackEvent {
		if raw.Event == nil {
			raw.Event = map[string]any{}
		}
		// The envelope-level event_id is the strongest dedup key; lift it
		// into the payload so it survives the queue round trip.
		if id := strings.TrimSpace(raw.EventID); id != "" {
			if _, ok := raw.Event["event_id"]; !ok {
				raw.Event["event_id"] = id
			}
		}
		cb.Event = &Event{Payload: raw.Event}
	}
	return cb, nil
}

// FromTaskBody decodes a queued task payload back into an Event. Both the
// bare event map and the {"event": ...} wrapper are accepted.
func FromTaskBody(body []byte) (*Event, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse task body: %w", err)
	}
	if inner, ok := payload["event"].(map[string]any); ok {
		payload = inner
	}
	return &Event{Payload: payload}, nil
}

// ID returns the stable identifier used as the ledger key: event_id when
// present, else the event_ts. Empty means the event cannot be deduplicated.
func (e *Event) ID() string {
	if e == nil {
		return ""
	}
	if id := e.stringField("event_id"); id != "" {
		return id
	}
	return e.stringField("event_ts")
}

// Channel is the routing key selecting a domain handler.
func (e *Event) Channel() string { return e.stringField("channel") }

// UserID is the Slack user who sent the message.
func (e *Event) UserID() string { return e.stringField("user") }

// Text is the raw message text.
func (e *Event) Text() string { return e.stringField("text") }

// TS is the message timestamp.
func (e *Event) TS() string { return e.stringField("ts") }

// ThreadTS returns the parent thread timestamp, falling back to the
// message's own ts so replies always land in a thread.
func (e *Event) ThreadTS() string {
	if ts := e.stringField("thread_ts"); ts != "" {
		return ts
	}
	return e.stringField("ts")
}

func (e *Event) stringField(key string) string {
	if e == nil || e.Payload == nil {
		return ""
	}
	v, ok := e.Payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// MarshalTaskBody serializes the event for the dispatch queue.
func (e *Event) MarshalTaskBody() ([]byte, error) {
	if e == nil || e.Payload == nil {
		return nil, fmt.Errorf("event payload is required")
	}
	return json.Marshal(e.Payload)
}

var (
	mentionPattern = regexp.MustCompile(`<@([A-Z0-9]+)(?:\|[^>]+)?>`)
	linkPattern    = regexp.MustCompile(`<(https?://[^|>]+)(\|[^>]+)?>`)
)

// CleanText strips Slack mention markup and unwraps <url|label> links so
// classifier prompts see plain text.
func CleanText(text string) string {
	text = mentionPattern.ReplaceAllString(text, "")
	text = linkPattern.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}
