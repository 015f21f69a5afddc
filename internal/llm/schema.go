package llm

import (
	"encoding/json"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

func systemText(req *model.LLMRequest) string {
	if req.Config == nil || req.Config.SystemInstruction == nil {
		return ""
	}
	var parts []string
	for _, p := range req.Config.SystemInstruction.Parts {
		if p != nil && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func functionDecls(req *model.LLMRequest) []*genai.FunctionDeclaration {
	if req.Config == nil {
		return nil
	}
	var out []*genai.FunctionDeclaration
	for _, t := range req.Config.Tools {
		if t == nil {
			continue
		}
		for _, fd := range t.FunctionDeclarations {
			if fd != nil {
				out = append(out, fd)
			}
		}
	}
	return out
}

// schemaMap renders a function's parameters as a JSON Schema object.
// genai.Schema uses upper-case type names, so those are lower-cased.
func schemaMap(fd *genai.FunctionDeclaration) map[string]any {
	var src any
	lower := false
	switch {
	case fd.ParametersJsonSchema != nil:
		src = fd.ParametersJsonSchema
	case fd.Parameters != nil:
		src, lower = fd.Parameters, true
	default:
		return emptyObjectSchema()
	}

	raw, err := json.Marshal(src)
	if err != nil {
		return emptyObjectSchema()
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return emptyObjectSchema()
	}
	if lower {
		lowerTypes(m)
	}
	if _, ok := m["type"]; !ok {
		m["type"] = "object"
	}
	if _, ok := m["properties"]; !ok {
		m["properties"] = map[string]any{}
	}
	return m
}

func emptyObjectSchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func lowerTypes(v any) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if s, ok := child.(string); ok && k == "type" {
				t[k] = strings.ToLower(s)
				continue
			}
			lowerTypes(child)
		}
	case []any:
		for _, child := range t {
			lowerTypes(child)
		}
	}
}

// toolOutput serializes a function response for providers that take tool
// results as text.
func toolOutput(fr *genai.FunctionResponse) string {
	if len(fr.Response) == 0 {
		return "{}"
	}
	b, err := json.Marshal(fr.Response)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func parseArgs(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	_ = json.Unmarshal([]byte(raw), &args)
	return args
}

func usage(in, out int64) *genai.GenerateContentResponseUsageMetadata {
	return &genai.GenerateContentResponseUsageMetadata{
		PromptTokenCount:     int32(in),
		CandidatesTokenCount: int32(out),
		TotalTokenCount:      int32(in + out),
	}
}
