// Package healthcheck provides the small liveness listener run next to
// the long-lived commands.
package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// NormalizeListen canonicalizes a health listen address. Empty and the
// usual disable spellings return "", a bare port becomes ":port".
func NormalizeListen(listen string) string {
	listen = strings.TrimSpace(listen)
	switch strings.ToLower(listen) {
	case "", "off", "none", "disabled", "false", "0":
		return ""
	}
	if _, err := strconv.Atoi(listen); err == nil {
		return ":" + listen
	}
	return listen
}

func StartServer(ctx context.Context, logger *slog.Logger, listen, mode string) (*http.Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = slog.Default()
	}
	listen = strings.TrimSpace(listen)
	if listen == "" {
		return nil, errors.New("empty health listen address")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead:
		default:
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		payload := map[string]any{
			"ok":   true,
			"time": time.Now().Format(time.RFC3339Nano),
		}
		if mode != "" {
			payload["mode"] = mode
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		_ = json.NewEncoder(w).Encode(payload)
	})

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
			logger.Error("health_server_error", "addr", listen, "error", err.Error())
		}
	}()

	logger.Info("health_server_start", "addr", listen, "mode", mode)
	return srv, nil
}
