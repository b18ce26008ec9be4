// Package handlers routes processed channel events to their domain logic.
package handlers

import (
	"context"
	"time"

	"github.com/virajlab/nautifier/internal/event"
)

// Slack is the slice of the Slack client the handlers use.
type Slack interface {
	PostMessage(ctx context.Context, channelID, text, threadTS string) error
	UserName(ctx context.Context, userID string) string
	ThreadHistory(ctx context.Context, channelID, threadTS, excludeTS string) ([]string, error)
}

type Handler interface {
	Name() string
	Handle(ctx context.Context, ev *event.Event) error
}

const dateLayout = "02/01/2006"

// All leave dates and prompt timestamps are anchored to the team's timezone.
func loadLocation() (*time.Location, error) {
	return time.LoadLocation("Asia/Kolkata")
}
