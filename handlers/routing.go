package handlers

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RouteConfig is the channel routing table, usually loaded from YAML:
//
//	channels:
//	  - id: C0AAAAAAA
//	    handler: leaves
//	  - id: C0BBBBBBB
//	    handler: articles
//	  - id: C0CCCCCCC
//	    handler: tags
type RouteConfig struct {
	Channels []ChannelRoute `yaml:"channels"`
}

type ChannelRoute struct {
	ID      string `yaml:"id"`
	Handler string `yaml:"handler"`
}

func ParseRoutes(data []byte) (*RouteConfig, error) {
	var cfg RouteConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse routing config: %w", err)
	}
	seen := make(map[string]bool, len(cfg.Channels))
	for i := range cfg.Channels {
		cfg.Channels[i].ID = strings.TrimSpace(cfg.Channels[i].ID)
		cfg.Channels[i].Handler = strings.TrimSpace(cfg.Channels[i].Handler)
		if cfg.Channels[i].ID == "" {
			return nil, fmt.Errorf("routing entry %d: channel id is required", i)
		}
		if cfg.Channels[i].Handler == "" {
			return nil, fmt.Errorf("routing entry %d: handler is required", i)
		}
		if seen[cfg.Channels[i].ID] {
			return nil, fmt.Errorf("duplicate channel id %q in routing config", cfg.Channels[i].ID)
		}
		seen[cfg.Channels[i].ID] = true
	}
	return &cfg, nil
}

func LoadRoutes(path string) (*RouteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routing config: %w", err)
	}
	return ParseRoutes(data)
}

// Router resolves a channel ID to the handler registered for it. Channels
// with no entry are deliberately unrouted, the processor treats them as
// successful no-ops.
type Router struct {
	byChannel map[string]Handler
}

func NewRouter(cfg *RouteConfig, available map[string]Handler) (*Router, error) {
	if cfg == nil {
		return nil, fmt.Errorf("routing config is required")
	}
	byChannel := make(map[string]Handler, len(cfg.Channels))
	for _, route := range cfg.Channels {
		h, ok := available[route.Handler]
		if !ok || h == nil {
			return nil, fmt.Errorf("channel %s references unknown handler %q", route.ID, route.Handler)
		}
		byChannel[route.ID] = h
	}
	return &Router{byChannel: byChannel}, nil
}

func (r *Router) Resolve(channelID string) (Handler, bool) {
	if r == nil {
		return nil, false
	}
	h, ok := r.byChannel[strings.TrimSpace(channelID)]
	return h, ok
}

func (r *Router) Channels() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.byChannel))
	for id := range r.byChannel {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
