// Package ledger tracks per-event processing status for idempotence.
// TryCreate and TryComplete are the only two state transitions; both are
// single conditional writes so exactly one caller wins under concurrency.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusCompleted Status = "completed"
)

// ErrUnavailable wraps storage failures. Callers must not assume either
// success or failure of the attempted transition when they see it.
var ErrUnavailable = errors.New("ledger unavailable")

// ErrNotFound is returned by Read for unknown event ids.
var ErrNotFound = errors.New("ledger entry not found")

type Entry struct {
	EventID     string
	Status      Status
	QueuedAt    time.Time
	ProcessedAt *time.Time
}

type Ledger interface {
	// TryCreate atomically inserts a queued entry. It returns true if this
	// call created the entry, false if one already existed.
	TryCreate(ctx context.Context, eventID string) (bool, error)

	// TryComplete atomically transitions queued→completed. It returns false
	// when the entry is already completed or missing.
	TryComplete(ctx context.Context, eventID string) (bool, error)

	// Read returns the entry, or ErrNotFound.
	Read(ctx context.Context, eventID string) (Entry, error)

	// Delete removes an entry. Compensating rollback for the case where
	// enqueue fails after TryCreate succeeded.
	Delete(ctx context.Context, eventID string) error
}

func validateEventID(eventID string) (string, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return "", fmt.Errorf("event_id is required")
	}
	return eventID, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
