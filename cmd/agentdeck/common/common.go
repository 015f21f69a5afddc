// Package common is the start-up wiring shared by the agentdeck commands.
package common

import (
	"context"
	"fmt"
	"log/slog"

	"agentdeck/internal/agents"
	"agentdeck/internal/config"
	"agentdeck/internal/llm"
	"agentdeck/internal/tools"
	"agentdeck/internal/trace"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/model"
)

// Bootstrap loads the configuration and starts tracing. The returned
// function flushes spans and must be called before exit.
func Bootstrap(ctx context.Context) (*config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	shutdown, err := trace.Init(ctx, trace.Config{
		Endpoint: cfg.Trace.Endpoint,
		URLPath:  cfg.Trace.URLPath,
		APIKey:   cfg.Trace.APIKey,
		Insecure: cfg.Trace.Insecure,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initializing tracing: %w", err)
	}

	return cfg, func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Warn("trace shutdown failed", "error", err)
		}
	}, nil
}

// Registry builds the tool registry from the travel settings. web_search is
// registered only with a Brave key.
func Registry(cfg *config.Config) (*agents.Registry, bool, error) {
	deps := tools.TravelDeps{Places: tools.NewPlacesClient(cfg.Travel.PlacesAPIKey)}
	if key := cfg.Travel.BraveAPIKey; key != "" {
		web, err := tools.NewWebSearcher(key)
		if err != nil {
			return nil, false, err
		}
		deps.Web = web
	}
	r, err := agents.DefaultRegistry(deps)
	return r, deps.Web != nil, err
}

// Builder returns a profile builder that resolves model specs with the
// configured credentials.
func Builder(ctx context.Context, cfg *config.Config, reg *agents.Registry) *agents.Builder {
	opts := llm.OptionsFromConfig(cfg)
	cache := map[string]model.LLM{}
	return &agents.Builder{
		Registry: reg,
		Resolve: func(spec string) (model.LLM, error) {
			if m, ok := cache[spec]; ok {
				return m, nil
			}
			m, err := llm.New(ctx, spec, opts)
			if err != nil {
				return nil, err
			}
			cache[spec] = m
			return m, nil
		},
	}
}

// ModelSpec picks the flag value, falling back to the configured default.
func ModelSpec(cfg *config.Config, flag string) string {
	if flag != "" {
		return flag
	}
	if cfg.Models.Default != "" {
		return cfg.Models.Default
	}
	return config.DefaultModel
}

// BuildApp builds the root agent of app for modelSpec.
func BuildApp(ctx context.Context, cfg *config.Config, app, modelSpec string) (agent.Agent, error) {
	reg, withWeb, err := Registry(cfg)
	if err != nil {
		return nil, err
	}
	p, err := agents.Lookup(app, modelSpec, agents.CatalogOptions{
		ScenarioPath: cfg.Travel.ScenarioPath,
		WithWeb:      withWeb,
	})
	if err != nil {
		return nil, err
	}
	return Builder(ctx, cfg, reg).Build(p)
}
