// internal/agent/tools.go
package agent

import (
	"context"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
)

// Tool pairs a statically declared schema with its implementation. Run
// returns a plain status string for the inference layer; an error is folded
// into an error-text tool message by the loop, never propagated.
type Tool struct {
	Schema schemas.ToolSchema
	Run    func(ctx context.Context, args map[string]any) (string, error)
}

// Registry holds the dispatchable tools, preserving registration order for
// the schema list sent to the inference provider.
type Registry struct {
	order []string
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a tool by its schema name.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Schema.Name]; !exists {
		r.order = append(r.order, t.Schema.Name)
	}
	r.tools[t.Schema.Name] = t
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Schemas returns the tool declarations in registration order.
func (r *Registry) Schemas() []schemas.ToolSchema {
	out := make([]schemas.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Schema)
	}
	return out
}
