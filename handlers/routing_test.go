package handlers

import (
	"context"
	"testing"

	"github.com/virajlab/nautifier/internal/event"
)

type noopHandler struct{ name string }

func (h *noopHandler) Name() string                                { return h.name }
func (h *noopHandler) Handle(context.Context, *event.Event) error  { return nil }

func TestParseRoutes(t *testing.T) {
	t.Parallel()
	cfg, err := ParseRoutes([]byte(`
channels:
  - id: C0LEAVES
    handler: leaves
  - id: C0ARTICLES
    handler: articles
`))
	if err != nil {
		t.Fatalf("ParseRoutes() error = %v", err)
	}
	if len(cfg.Channels) != 2 {
		t.Fatalf("channels = %d, want 2", len(cfg.Channels))
	}
	if cfg.Channels[0].ID != "C0LEAVES" || cfg.Channels[0].Handler != "leaves" {
		t.Errorf("first route = %+v", cfg.Channels[0])
	}
}

func TestParseRoutesRejectsDuplicates(t *testing.T) {
	t.Parallel()
	_, err := ParseRoutes([]byte(`
channels:
  - id: C0LEAVES
    handler: leaves
  - id: C0LEAVES
    handler: chatter
`))
	if err == nil {
		t.Fatal("ParseRoutes() accepted duplicate channel id")
	}
}

func TestParseRoutesRejectsMissingFields(t *testing.T) {
	t.Parallel()
	if _, err := ParseRoutes([]byte("channels:\n  - id: C1\n")); err == nil {
		t.Error("ParseRoutes() accepted route without handler")
	}
	if _, err := ParseRoutes([]byte("channels:\n  - handler: leaves\n")); err == nil {
		t.Error("ParseRoutes() accepted route without id")
	}
}

func TestRouterResolve(t *testing.T) {
	t.Parallel()
	leaves := &noopHandler{name: "leaves"}
	cfg := &RouteConfig{Channels: []ChannelRoute{{ID: "C0LEAVES", Handler: "leaves"}}}

	router, err := NewRouter(cfg, map[string]Handler{"leaves": leaves})
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	h, ok := router.Resolve("C0LEAVES")
	if !ok || h.Name() != "leaves" {
		t.Errorf("Resolve(C0LEAVES) = %v, %v", h, ok)
	}
	if _, ok := router.Resolve("C0UNKNOWN"); ok {
		t.Error("Resolve(C0UNKNOWN) should miss")
	}
}

func TestRouterRejectsUnknownHandler(t *testing.T) {
	t.Parallel()
	cfg := &RouteConfig{Channels: []ChannelRoute{{ID: "C1", Handler: "nope"}}}
	if _, err := NewRouter(cfg, map[string]Handler{}); err == nil {
		t.Fatal("NewRouter() accepted unknown handler name")
	}
}
