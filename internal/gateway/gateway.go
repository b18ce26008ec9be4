// Package gateway is the webhook edge: it acknowledges Slack deliveries
// within the platform's timeout by recording the event in the ledger and
// handing it to the dispatch queue, never doing domain work inline.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/virajlab/nautifier/internal/dispatch"
	"github.com/virajlab/nautifier/internal/event"
	"github.com/virajlab/nautifier/internal/ledger"
	"github.com/virajlab/nautifier/internal/slackapi"
)

const maxBodyBytes = 1 << 20

type RoutesOptions struct {
	Ledger       ledger.Ledger
	Queue        dispatch.Queue
	ProcessorURL string

	// SigningSecret enables Slack request signature verification when set.
	SigningSecret string

	// Seen is an optional non-authoritative duplicate fast path.
	Seen *SeenCache

	Logger *slog.Logger
	Now    func() time.Time
}

func RegisterRoutes(mux *http.ServeMux, opts RoutesOptions) {
	if mux == nil {
		return
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	mux.HandleFunc("/slack/events", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unreadable body"})
			return
		}

		if secret := strings.TrimSpace(opts.SigningSecret); secret != "" {
			err := slackapi.VerifySignature(secret,
				r.Header.Get("X-Slack-Request-Timestamp"),
				r.Header.Get("X-Slack-Signature"),
				body, now())
			if err != nil {
				logger.Warn("webhook_bad_signature", "error", err.Error())
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid signature"})
				return
			}
		}

		cb, err := event.ParseCallback(body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}

		switch cb.Type {
		case event.CallbackURLVerification:
			// Must be fast, side-effect free, and byte-exact.
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(cb.Challenge))

		case event.CallbackEvent:
			handleEventCallback(r.Context(), w, logger, opts, cb.Event)

		default:
			logger.Warn("webhook_unsupported_type", "type", cb.Type)
			writeJSON(w, http.StatusOK, map[string]any{"status": StatusUnsupported})
		}
	})
}

func handleEventCallback(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, opts RoutesOptions, ev *event.Event) {
	d := &Dispatcher{
		Ledger:       opts.Ledger,
		Queue:        opts.Queue,
		ProcessorURL: opts.ProcessorURL,
		Seen:         opts.Seen,
		Logger:       logger,
	}
	status, err := d.Dispatch(ctx, ev)
	if err != nil {
		logger.Error("webhook_dispatch_failed", "event_id", ev.ID(), "error", err.Error())
		msg := "enqueue failed"
		if errors.Is(err, ledger.ErrUnavailable) {
			msg = "ledger unavailable"
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": msg})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status})
}

func writeJSON(w http.ResponseWriter, status int, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type ServerOptions struct {
	Listen string
	Routes RoutesOptions
}

func StartServer(ctx context.Context, logger *slog.Logger, opts ServerOptions) (*http.Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = slog.Default()
	}
	listen := strings.TrimSpace(opts.Listen)
	if listen == "" {
		return nil, errors.New("empty gateway listen address")
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, opts.Routes)

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("gateway_server_error", "addr", listen, "error", err.Error())
		}
	}()

	logger.Info("gateway_server_start", "addr", listen, "events_path", "/slack/events")
	return srv, nil
}
