// Package llm resolves model spec strings ("gemini-2.0-flash",
// "openai/gpt-4o", "anthropic/claude-sonnet-4-20250514") into ADK models.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"agentdeck/internal/config"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/adk/model"
)

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// MissingKeyError reports a provider whose credentials are not configured.
type MissingKeyError struct {
	Provider string
	Var      string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("%s: missing API key, set %s", e.Provider, e.Var)
}

type Credentials struct {
	BaseURL string
	APIKey  string
}

type Options struct {
	GoogleAPIKey string
	UseVertexAI  bool
	Project      string
	Location     string

	OpenAI    Credentials
	Anthropic Credentials

	// HTTPClient is used by the OpenAI and Anthropic adapters and the Gemini
	// API-key backend. Defaults to an otelhttp-instrumented client.
	HTTPClient *http.Client
}

func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		GoogleAPIKey: cfg.Cloud.GoogleAPIKey,
		UseVertexAI:  cfg.Cloud.UseVertexAI,
		Project:      cfg.Cloud.Project,
		Location:     cfg.Cloud.Location,
	}
	if c := cfg.LLMs[ProviderOpenAI]; c != nil {
		opts.OpenAI = Credentials{BaseURL: c.BaseURL, APIKey: c.APIKey}
	}
	if c := cfg.LLMs[ProviderAnthropic]; c != nil {
		opts.Anthropic = Credentials{BaseURL: c.BaseURL, APIKey: c.APIKey}
	}
	return opts
}

// ParseSpec splits a model spec into provider and model name. Specs without a
// known provider prefix are Gemini model names.
func ParseSpec(spec string) (provider, name string) {
	spec = strings.TrimSpace(spec)
	if p, n, ok := strings.Cut(spec, "/"); ok {
		switch strings.ToLower(p) {
		case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
			return strings.ToLower(p), n
		}
	}
	return ProviderGemini, spec
}

// New returns the ADK model for spec.
func New(ctx context.Context, spec string, opts Options) (model.LLM, error) {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	provider, name := ParseSpec(spec)
	if name == "" {
		return nil, fmt.Errorf("empty model name in %q", spec)
	}

	switch provider {
	case ProviderOpenAI:
		if opts.OpenAI.APIKey == "" {
			return nil, &MissingKeyError{Provider: provider, Var: "OPENAI_API_KEY"}
		}
		return NewOpenAI(name, opts.OpenAI, opts.HTTPClient), nil
	case ProviderAnthropic:
		if opts.Anthropic.APIKey == "" {
			return nil, &MissingKeyError{Provider: provider, Var: "ANTHROPIC_API_KEY"}
		}
		return NewAnthropic(name, opts.Anthropic, opts.HTTPClient), nil
	default:
		return newGemini(ctx, name, opts)
	}
}
