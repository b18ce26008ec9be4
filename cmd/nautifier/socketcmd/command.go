// Package socketcmd ingests Slack events over Socket Mode and feeds them
// into the same ledger-then-queue dispatch path as the webhook gateway.
// It exists for deployments that cannot expose a public webhook URL.
package socketcmd

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/virajlab/nautifier/cmd/nautifier/cmdutil"
	"github.com/virajlab/nautifier/internal/configutil"
	"github.com/virajlab/nautifier/internal/event"
	"github.com/virajlab/nautifier/internal/gateway"
	"github.com/virajlab/nautifier/internal/healthcheck"
)

type socketEnvelope struct {
	EnvelopeID string          `json:"envelope_id,omitempty"`
	Type       string          `json:"type,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type eventsAPIPayload struct {
	EventID string         `json:"event_id,omitempty"`
	Event   map[string]any `json:"event,omitempty"`
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "socket",
		Short: "Ingest Slack events over Socket Mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cmdutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			processorURL, err := cmdutil.ProcessorURL(cmd)
			if err != nil {
				return err
			}
			api, err := cmdutil.SlackClientFromViper(cmd)
			if err != nil {
				return err
			}
			auth, err := api.AuthTest(cmd.Context())
			if err != nil {
				return err
			}
			botUserID := strings.TrimSpace(auth.UserID)

			lg, err := cmdutil.OpenLedger(cmd.Context())
			if err != nil {
				return err
			}
			queue, closeQueue, err := cmdutil.BuildQueue(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer closeQueue()

			dispatcher := &gateway.Dispatcher{
				Ledger:       lg,
				Queue:        queue,
				ProcessorURL: processorURL,
				Seen:         gateway.NewSeenCache(4096),
				Logger:       logger,
			}

			if healthListen := healthcheck.NormalizeListen(configutil.FlagOrViperString(cmd, "health-listen", "health.listen")); healthListen != "" {
				healthServer, err := healthcheck.StartServer(cmd.Context(), logger, healthListen, "socket")
				if err != nil {
					logger.Warn("socket_health_server_start_error", "addr", healthListen, "error", err.Error())
				} else {
					defer func() {
						shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
						_ = healthServer.Shutdown(shutdownCtx)
						cancel()
					}()
				}
			}

			logger.Info("socket_start", "bot_user_id", botUserID)

			for {
				if cmd.Context().Err() != nil {
					logger.Info("socket_stop", "reason", "context_canceled")
					return nil
				}
				conn, err := api.ConnectSocket(cmd.Context())
				if err != nil {
					if cmd.Context().Err() != nil {
						logger.Info("socket_stop", "reason", "context_canceled")
						return nil
					}
					logger.Warn("socket_connect_error", "error", err.Error())
					if err := sleepWithContext(cmd.Context(), 2*time.Second); err != nil {
						return nil
					}
					continue
				}
				logger.Info("socket_connected")
				readErr := consumeSocket(cmd.Context(), conn, func(envelope socketEnvelope) {
					ev, ok := parseInboundEvent(envelope, botUserID)
					if !ok {
						return
					}
					status, err := dispatcher.Dispatch(cmd.Context(), ev)
					if err != nil {
						// Socket Mode has no retryable response channel, so
						// a transient failure here is only logged; Slack
						// redelivers unacked events on its own schedule.
						logger.Error("socket_dispatch_failed", "event_id", ev.ID(), "error", err.Error())
						return
					}
					logger.Debug("socket_dispatched", "event_id", ev.ID(), "status", status)
				})
				_ = conn.Close()
				if readErr != nil && !errors.Is(readErr, context.Canceled) && !errors.Is(readErr, context.DeadlineExceeded) {
					logger.Warn("socket_read_error", "error", readErr.Error())
				}
			}
		},
	}

	cmd.Flags().String("slack-bot-token", "", "Slack bot token (xoxb-...).")
	cmd.Flags().String("slack-app-token", "", "Slack app-level token for Socket Mode (xapp-...).")
	cmd.Flags().String("processor-url", "", "Processor endpoint the queue delivers tasks to (required).")
	cmd.Flags().String("queue-mode", "cloudtasks", "Dispatch queue: cloudtasks|http.")
	cmd.Flags().String("queue-name", "slack-event-queue", "Cloud Tasks queue name.")
	cmd.Flags().String("gcp-project-id", "", "Google Cloud project id for Cloud Tasks.")
	cmd.Flags().String("gcp-region", "us-central1", "Google Cloud region for Cloud Tasks.")
	cmd.Flags().String("health-listen", "", "Health endpoint listen address (empty disables).")

	return cmd
}

func consumeSocket(ctx context.Context, conn *websocket.Conn, onEnvelope func(envelope socketEnvelope)) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var envelope socketEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			continue
		}
		if strings.TrimSpace(envelope.EnvelopeID) != "" {
			if err := conn.WriteJSON(map[string]string{"envelope_id": envelope.EnvelopeID}); err != nil {
				return err
			}
		}
		if onEnvelope != nil {
			onEnvelope(envelope)
		}
	}
}

// parseInboundEvent converts an events_api envelope into the Event shape
// the dispatch path expects. Bot messages and message subtypes are skipped
// so edits and joins never reach the handlers.
func parseInboundEvent(envelope socketEnvelope, botUserID string) (*event.Event, bool) {
	if strings.TrimSpace(envelope.Type) != "events_api" || len(envelope.Payload) == 0 {
		return nil, false
	}
	var payload eventsAPIPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return nil, false
	}
	if payload.Event == nil {
		return nil, false
	}
	ev := &event.Event{Payload: payload.Event}

	eventType, _ := payload.Event["type"].(string)
	if eventType != "message" && eventType != "app_mention" {
		return nil, false
	}
	if subtype, _ := payload.Event["subtype"].(string); strings.TrimSpace(subtype) != "" {
		return nil, false
	}
	if botID, _ := payload.Event["bot_id"].(string); strings.TrimSpace(botID) != "" {
		return nil, false
	}
	userID := ev.UserID()
	if userID == "" || userID == strings.TrimSpace(botUserID) {
		return nil, false
	}
	if ev.Channel() == "" || ev.TS() == "" {
		return nil, false
	}
	if id := strings.TrimSpace(payload.EventID); id != "" {
		if _, ok := payload.Event["event_id"]; !ok {
			payload.Event["event_id"] = id
		}
	}
	return ev, true
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
