package agents

import (
	"fmt"
	"sort"

	"agentdeck/internal/tools"

	"google.golang.org/adk/tool"
)

// Registry holds every tool an agent profile may reference by name.
type Registry struct {
	tools map[string]tool.Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]tool.Tool)}
}

func (r *Registry) Register(ts ...tool.Tool) {
	for _, t := range ts {
		r.tools[t.Name()] = t
	}
}

func (r *Registry) Get(name string) (tool.Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Scope returns the named tools in order. Unknown names are an error so a
// typo in a profile fails at build time rather than at the first model call.
func (r *Registry) Scope(names []string) ([]tool.Tool, error) {
	out := make([]tool.Tool, 0, len(names))
	for _, n := range names {
		t, ok := r.tools[n]
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", n)
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry registers the weather, conversation and travel tools.
// Travel tools whose clients are nil in deps are left out.
func DefaultRegistry(deps tools.TravelDeps) (*Registry, error) {
	r := NewRegistry()

	weather, err := tools.NewWeatherTools()
	if err != nil {
		return nil, err
	}
	stateless, err := tools.NewStatelessWeatherTool()
	if err != nil {
		return nil, err
	}
	greeting, err := tools.NewGreetingTools()
	if err != nil {
		return nil, err
	}
	farewell, err := tools.NewFarewellTools()
	if err != nil {
		return nil, err
	}
	travel, err := tools.NewTravelTools(deps)
	if err != nil {
		return nil, err
	}

	r.Register(weather...)
	r.Register(stateless)
	r.Register(greeting...)
	r.Register(farewell...)
	r.Register(travel...)
	return r, nil
}
