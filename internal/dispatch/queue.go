// Package dispatch wraps the at-least-once task queue that decouples fast
// webhook acknowledgment from slow event processing.
package dispatch

import (
	"context"
	"fmt"
	"strings"
)

// TaskHandle identifies an enqueued task. The name is informational; the
// queue offers no exactly-once guarantee and the processor re-checks the
// ledger on every delivery.
type TaskHandle struct {
	Name string
}

type Queue interface {
	// Enqueue submits the payload for delivery to the endpoint as an HTTP
	// POST with a JSON body. Delivery is at-least-once and unordered.
	Enqueue(ctx context.Context, endpointURL string, payload []byte) (TaskHandle, error)
}

func validateEnqueue(endpointURL string, payload []byte) (string, error) {
	endpointURL = strings.TrimSpace(endpointURL)
	if endpointURL == "" {
		return "", fmt.Errorf("endpoint url is required")
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("payload is required")
	}
	return endpointURL, nil
}
