package processor

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

	"github.com/virajlab/nautifier/internal/event"
)

const maxBodyBytes = 1 << 20

type RoutesOptions struct {
	Processor *Processor
	Logger    *slog.Logger
}

func RegisterRoutes(mux *http.ServeMux, opts RoutesOptions) {
	if mux == nil || opts.Processor == nil {
		return
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux.HandleFunc("/process", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": StatusInvalidEvent})
			return
		}
		ev, err := event.FromTaskBody(body)
		if err != nil {
			// Malformed task bodies can never succeed, so the queue must
			// not redeliver them.
			logger.Error("process_invalid_body", "error", err.Error())
			writeJSON(w, http.StatusOK, map[string]any{"status": StatusInvalidEvent})
			return
		}
		status, err := opts.Processor.Process(r.Context(), ev)
		if err != nil {
			logger.Error("process_transient_failure", "error", err.Error())
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "ledger unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": status})
	})
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
		return nil, errors.New("empty processor listen address")
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
			logger.Error("processor_server_error", "addr", listen, "error", err.Error())
		}
	}()

	logger.Info("processor_server_start", "addr", listen, "process_path", "/process")
	return srv, nil
}
