package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/virajlab/nautifier/internal/dispatch"
	"github.com/virajlab/nautifier/internal/event"
	"github.com/virajlab/nautifier/internal/ledger"
)

// Dispatch outcomes reported to the upstream sender.
const (
	StatusQueued      = "queued"
	StatusDuplicate   = "already_queued_or_error"
	StatusUnsupported = "unsupported_event"
)

// Dispatcher performs the ledger-then-queue handoff for one event. It is
// shared by the HTTP webhook edge and the Socket Mode ingest loop.
type Dispatcher struct {
	Ledger       ledger.Ledger
	Queue        dispatch.Queue
	ProcessorURL string

	// Seen is an optional non-authoritative duplicate fast path.
	Seen   *SeenCache
	Logger *slog.Logger
}

// Dispatch records the event in the ledger and enqueues it for the
// processor. A returned error is transient: the caller should ask the
// sender to retry the whole delivery. Duplicate and unidentifiable events
// report StatusDuplicate with no error.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *event.Event) (string, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	eventID := ev.ID()
	if eventID == "" {
		logger.Error("dispatch_missing_event_id", "channel", ev.Channel())
		return StatusDuplicate, nil
	}

	if d.Seen.Seen(eventID) {
		logger.Info("dispatch_duplicate_cached", "event_id", eventID)
		return StatusDuplicate, nil
	}

	created, err := d.Ledger.TryCreate(ctx, eventID)
	if err != nil {
		return "", fmt.Errorf("ledger create for %s: %w", eventID, err)
	}
	if !created {
		d.Seen.Add(eventID)
		logger.Info("dispatch_duplicate", "event_id", eventID)
		return StatusDuplicate, nil
	}

	payload, err := ev.MarshalTaskBody()
	if err != nil {
		d.rollback(ctx, logger, eventID)
		return "", fmt.Errorf("marshal task for %s: %w", eventID, err)
	}

	handle, err := d.Queue.Enqueue(ctx, d.ProcessorURL, payload)
	if err != nil {
		// The entry must not survive a failed enqueue or a legitimate
		// retry of the same event would be blocked forever.
		d.rollback(ctx, logger, eventID)
		return "", fmt.Errorf("enqueue %s: %w", eventID, err)
	}

	d.Seen.Add(eventID)
	logger.Info("dispatch_queued", "event_id", eventID, "task", handle.Name, "channel", ev.Channel())
	return StatusQueued, nil
}

func (d *Dispatcher) rollback(ctx context.Context, logger *slog.Logger, eventID string) {
	if err := d.Ledger.Delete(ctx, eventID); err != nil {
		logger.Error("dispatch_rollback_failed", "event_id", eventID, "error", err.Error())
	}
}
