// Package processor consumes queued task deliveries, routes them to domain
// handlers, and records completion in the ledger. It responds 200 to the
// queue for every terminal outcome so at-least-once delivery never turns a
// partially-applied handler into duplicate user-visible side effects; only
// a ledger read failure before any side effect is surfaced as retryable.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/virajlab/nautifier/handlers"
	"github.com/virajlab/nautifier/internal/event"
	"github.com/virajlab/nautifier/internal/ledger"
)

const (
	StatusOK               = "ok"
	StatusAlreadyProcessed = "already_processed"
	StatusMissingEventID   = "missing_event_id"
	StatusInvalidEvent     = "invalid_event"
)

type Processor struct {
	ledger ledger.Ledger
	router *handlers.Router
	log    *slog.Logger
}

type Options struct {
	Ledger ledger.Ledger
	Router *handlers.Router
	Logger *slog.Logger
}

func New(opts Options) (*Processor, error) {
	if opts.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if opts.Router == nil {
		return nil, fmt.Errorf("router is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{ledger: opts.Ledger, router: opts.Router, log: logger}, nil
}

// Process handles one task delivery. The returned error is reserved for
// the transient-infrastructure class (ledger unreachable before any domain
// work); every other outcome, including handler faults, is terminal.
func (p *Processor) Process(ctx context.Context, ev *event.Event) (string, error) {
	if ev == nil || ev.Payload == nil {
		return StatusInvalidEvent, nil
	}
	eventID := ev.ID()
	if eventID == "" {
		p.log.Error("process_missing_event_id", "channel", ev.Channel())
		return StatusMissingEventID, nil
	}

	entry, err := p.ledger.Read(ctx, eventID)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		// Entry rolled back or pruned between enqueue and delivery; the
		// delivery itself is still the authoritative signal to process.
	case err != nil:
		return "", fmt.Errorf("read ledger for %s: %w", eventID, err)
	case entry.Status == ledger.StatusCompleted:
		p.log.Info("process_already_processed", "event_id", eventID)
		return StatusAlreadyProcessed, nil
	}

	channel := ev.Channel()
	if h, ok := p.router.Resolve(channel); ok {
		p.log.Info("process_event", "event_id", eventID, "channel", channel, "handler", h.Name())
		if err := p.invoke(ctx, h, ev); err != nil {
			// Redelivery cannot help here: the handler may already have
			// appended rows or posted replies.
			p.log.Error("process_handler_failed", "event_id", eventID, "handler", h.Name(), "error", err.Error())
		}
	} else {
		p.log.Info("process_unrouted_channel", "event_id", eventID, "channel", channel)
	}

	completed, err := p.ledger.TryComplete(ctx, eventID)
	if err != nil {
		// Side effects have already run, so this must not trigger a
		// redelivery. The entry stays queued and is logged for operators.
		p.log.Error("process_complete_failed", "event_id", eventID, "error", err.Error())
		return StatusOK, nil
	}
	if !completed {
		p.log.Info("process_complete_lost_race", "event_id", eventID)
	}
	return StatusOK, nil
}

func (p *Processor) invoke(ctx context.Context, h handlers.Handler, ev *event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, ev)
}
