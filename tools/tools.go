// Package tools holds the function-call registry surfaced to the model.
package tools

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/virajlab/nautifier/llm"
)

type Tool interface {
	Name() string
	Description() string
	// ParameterSchema is a JSON Schema object serialized as a string.
	ParameterSchema() string
	Execute(ctx context.Context, params map[string]any) (string, error)
}

type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	if r == nil || t == nil {
		return
	}
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return
	}
	r.mu.Lock()
	r.tools[name] = t
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	t, ok := r.tools[strings.TrimSpace(name)]
	r.mu.RUnlock()
	return t, ok
}

func (r *Registry) All() []Tool {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Declarations renders the registry as function declarations for the model.
func (r *Registry) Declarations() []llm.Tool {
	all := r.All()
	if len(all) == 0 {
		return nil
	}
	out := make([]llm.Tool, 0, len(all))
	for _, t := range all {
		out = append(out, llm.Tool{
			Name:            t.Name(),
			Description:     t.Description(),
			ParameterSchema: t.ParameterSchema(),
		})
	}
	return out
}
