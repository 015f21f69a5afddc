package llm

import (
	"context"
	"fmt"

	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"
)

func newGemini(ctx context.Context, name string, opts Options) (model.LLM, error) {
	cc := &genai.ClientConfig{}

	if opts.UseVertexAI {
		if opts.Project == "" {
			return nil, &MissingKeyError{Provider: ProviderGemini, Var: "GOOGLE_CLOUD_PROJECT"}
		}
		if opts.Location == "" {
			return nil, &MissingKeyError{Provider: ProviderGemini, Var: "GOOGLE_CLOUD_LOCATION"}
		}
		// Vertex AI authenticates with Application Default Credentials, which
		// genai wires into its own client.
		cc.Backend = genai.BackendVertexAI
		cc.Project = opts.Project
		cc.Location = opts.Location
	} else {
		if opts.GoogleAPIKey == "" {
			return nil, &MissingKeyError{Provider: ProviderGemini, Var: "GOOGLE_API_KEY"}
		}
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = opts.GoogleAPIKey
		cc.HTTPClient = opts.HTTPClient
	}

	m, err := gemini.NewModel(ctx, name, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini model %s: %w", name, err)
	}
	return m, nil
}
