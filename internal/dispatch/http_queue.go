package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HTTPQueue delivers tasks by POSTing directly to the processor endpoint.
// Local/dev substitute for Cloud Tasks; delivery remains at-least-once
// from the processor's point of view because a retried webhook can reach
// the endpoint more than once.
type HTTPQueue struct {
	http *http.Client
}

func NewHTTPQueue(httpClient *http.Client) *HTTPQueue {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPQueue{http: httpClient}
}

func (q *HTTPQueue) Enqueue(ctx context.Context, endpointURL string, payload []byte) (TaskHandle, error) {
	if q == nil || q.http == nil {
		return TaskHandle{}, fmt.Errorf("http queue is not initialized")
	}
	endpointURL, err := validateEnqueue(endpointURL, payload)
	if err != nil {
		return TaskHandle{}, err
	}

	const maxAttempts = 3
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(payload))
		if err != nil {
			return TaskHandle{}, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := q.http.Do(req)
		if err != nil {
			lastErr = err
		} else {
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return TaskHandle{Name: "local_" + uuid.NewString()}, nil
			}
			lastErr = fmt.Errorf("processor endpoint http %d", resp.StatusCode)
			if resp.StatusCode < 500 {
				break
			}
		}
		if attempt >= maxAttempts {
			break
		}
		if err := sleepWithContext(ctx, retryDelay(attempt)); err != nil {
			return TaskHandle{}, err
		}
	}
	return TaskHandle{}, lastErr
}

func retryDelay(attempt int) time.Duration {
	switch attempt {
	case 1:
		return 300 * time.Millisecond
	case 2:
		return 1 * time.Second
	default:
		return 2 * time.Second
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
