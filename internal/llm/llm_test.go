package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v3/responses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

func TestParseSpec(t *testing.T) {
	tests := []struct {
		spec, provider, name string
	}{
		{"gemini-2.0-flash", ProviderGemini, "gemini-2.0-flash"},
		{"openai/gpt-4o", ProviderOpenAI, "gpt-4o"},
		{"Anthropic/claude-sonnet-4-20250514", ProviderAnthropic, "claude-sonnet-4-20250514"},
		{"gemini/gemini-2.5-pro", ProviderGemini, "gemini-2.5-pro"},
		{"  models/custom ", ProviderGemini, "models/custom"},
	}
	for _, tt := range tests {
		p, n := ParseSpec(tt.spec)
		assert.Equal(t, tt.provider, p, tt.spec)
		assert.Equal(t, tt.name, n, tt.spec)
	}
}

func TestNewMissingKeys(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		spec string
		opts Options
		env  string
	}{
		{"openai/gpt-4o", Options{}, "OPENAI_API_KEY"},
		{"anthropic/claude-sonnet-4-20250514", Options{}, "ANTHROPIC_API_KEY"},
		{"gemini-2.0-flash", Options{}, "GOOGLE_API_KEY"},
		{"gemini-2.0-flash", Options{UseVertexAI: true}, "GOOGLE_CLOUD_PROJECT"},
		{"gemini-2.0-flash", Options{UseVertexAI: true, Project: "p"}, "GOOGLE_CLOUD_LOCATION"},
	}
	for _, tt := range tests {
		_, err := New(ctx, tt.spec, tt.opts)
		var mk *MissingKeyError
		require.True(t, errors.As(err, &mk), "%s: %v", tt.spec, err)
		assert.Equal(t, tt.env, mk.Var)
	}
}

func TestNewAdapters(t *testing.T) {
	m, err := New(context.Background(), "openai/gpt-4o-mini", Options{OpenAI: Credentials{APIKey: "k"}})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", m.Name())

	m, err = New(context.Background(), "anthropic/claude-3-5-haiku-latest", Options{Anthropic: Credentials{APIKey: "k"}})
	require.NoError(t, err)
	assert.Equal(t, "claude-3-5-haiku-latest", m.Name())
}

func weatherRequest() *model.LLMRequest {
	return &model.LLMRequest{
		Contents: []*genai.Content{
			genai.NewContentFromText("What is the weather in London?", genai.RoleUser),
			{Role: genai.RoleModel, Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{
				ID: "call_1", Name: "get_weather_stateful", Args: map[string]any{"city": "London"},
			}}}},
			{Role: genai.RoleUser, Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
				ID: "call_1", Name: "get_weather_stateful", Response: map[string]any{"status": "success", "report": "cloudy"},
			}}}},
		},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText("You are the main Weather Agent.", genai.RoleUser),
			Tools: []*genai.Tool{{FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        "get_weather_stateful",
				Description: "Retrieves the weather.",
				Parameters: &genai.Schema{
					Type:       genai.TypeObject,
					Properties: map[string]*genai.Schema{"city": {Type: genai.TypeString}},
					Required:   []string{"city"},
				},
			}}}},
		},
	}
}

func TestSchemaMapLowercasesGenaiTypes(t *testing.T) {
	fd := weatherRequest().Config.Tools[0].FunctionDeclarations[0]
	m := schemaMap(fd)

	raw, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, "object", gjson.GetBytes(raw, "type").String())
	assert.Equal(t, "string", gjson.GetBytes(raw, "properties.city.type").String())
	assert.Equal(t, "city", gjson.GetBytes(raw, "required.0").String())
}

func TestSchemaMapJSONSchemaAndEmpty(t *testing.T) {
	m := schemaMap(&genai.FunctionDeclaration{
		ParametersJsonSchema: map[string]any{"type": "object", "properties": map[string]any{"unit": map[string]any{"type": "string"}}},
	})
	assert.Contains(t, m["properties"], "unit")

	assert.Equal(t, emptyObjectSchema(), schemaMap(&genai.FunctionDeclaration{Name: "say_goodbye"}))
}

func TestOpenAIParams(t *testing.T) {
	o := NewOpenAI("gpt-4o", Credentials{APIKey: "k"}, nil)
	params := o.params(weatherRequest())

	raw, err := json.Marshal(params)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", gjson.GetBytes(raw, "model").String())
	assert.Equal(t, "You are the main Weather Agent.", gjson.GetBytes(raw, "instructions").String())

	input := gjson.GetBytes(raw, "input").Array()
	require.Len(t, input, 3)
	assert.Equal(t, "user", input[0].Get("role").String())
	assert.Equal(t, "function_call", input[1].Get("type").String())
	assert.Equal(t, "call_1", input[1].Get("call_id").String())
	assert.JSONEq(t, `{"city":"London"}`, input[1].Get("arguments").String())
	assert.Equal(t, "function_call_output", input[2].Get("type").String())
	assert.Equal(t, "call_1", input[2].Get("call_id").String())

	assert.Equal(t, "get_weather_stateful", gjson.GetBytes(raw, "tools.0.name").String())
	assert.Equal(t, "object", gjson.GetBytes(raw, "tools.0.parameters.type").String())
}

func TestFromOpenAIResponse(t *testing.T) {
	var resp responses.Response
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "resp_1", "object": "response", "model": "gpt-4o",
		"output": [
			{"type": "message", "id": "m1", "role": "assistant", "status": "completed",
			 "content": [{"type": "output_text", "text": "Checking.", "annotations": []}]},
			{"type": "function_call", "id": "f1", "call_id": "call_9", "name": "get_weather_stateful",
			 "arguments": "{\"city\":\"Tokyo\"}", "status": "completed"}
		],
		"usage": {"input_tokens": 10, "output_tokens": 4, "total_tokens": 14}
	}`), &resp))

	got := fromOpenAIResponse(&resp)

	require.Len(t, got.Content.Parts, 2)
	assert.Equal(t, "Checking.", got.Content.Parts[0].Text)
	fc := got.Content.Parts[1].FunctionCall
	require.NotNil(t, fc)
	assert.Equal(t, "call_9", fc.ID)
	assert.Equal(t, "Tokyo", fc.Args["city"])
	assert.False(t, got.TurnComplete)
	assert.Equal(t, int32(14), got.UsageMetadata.TotalTokenCount)
}

func TestAnthropicMessagesAlternate(t *testing.T) {
	contents := []*genai.Content{
		{Role: genai.RoleModel, Parts: []*genai.Part{{Text: "For context: greeting_agent said hi"}}},
		genai.NewContentFromText("Hi", genai.RoleUser),
		genai.NewContentFromText("and London?", genai.RoleUser),
	}
	contents = append(contents, weatherRequest().Contents[1:]...)

	msgs := toAnthropicMessages(contents)
	raw, err := json.Marshal(msgs)
	require.NoError(t, err)

	roles := gjson.GetBytes(raw, "#.role").Array()
	require.Len(t, roles, 5)
	assert.Equal(t, []string{"user", "assistant", "user", "assistant", "user"},
		[]string{roles[0].String(), roles[1].String(), roles[2].String(), roles[3].String(), roles[4].String()})
	assert.Len(t, gjson.GetBytes(raw, "2.content").Array(), 2, "consecutive user turns merge")
	assert.Equal(t, "tool_use", gjson.GetBytes(raw, "3.content.0.type").String())
	assert.Equal(t, "tool_result", gjson.GetBytes(raw, "4.content.0.type").String())
	assert.Equal(t, "call_1", gjson.GetBytes(raw, "4.content.0.tool_use_id").String())
}

func TestAnthropicParams(t *testing.T) {
	a := NewAnthropic("claude-sonnet-4-20250514", Credentials{APIKey: "k"}, nil)
	raw, err := json.Marshal(a.params(weatherRequest()))
	require.NoError(t, err)

	assert.Equal(t, "You are the main Weather Agent.", gjson.GetBytes(raw, "system.0.text").String())
	assert.Equal(t, "get_weather_stateful", gjson.GetBytes(raw, "tools.0.name").String())
	assert.Equal(t, "city", gjson.GetBytes(raw, "tools.0.input_schema.required.0").String())
	assert.EqualValues(t, defaultAnthropicMaxTokens, gjson.GetBytes(raw, "max_tokens").Int())
}

func TestFromAnthropicMessage(t *testing.T) {
	var msg anthropic.Message
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "msg_1", "type": "message", "role": "assistant", "model": "claude",
		"content": [
			{"type": "text", "text": "Let me check."},
			{"type": "tool_use", "id": "toolu_1", "name": "set_temperature_preference", "input": {"unit": "Fahrenheit"}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 20, "output_tokens": 5}
	}`), &msg))

	got := fromAnthropicMessage(&msg)

	require.Len(t, got.Content.Parts, 2)
	assert.Equal(t, "Let me check.", got.Content.Parts[0].Text)
	assert.Equal(t, "toolu_1", got.Content.Parts[1].FunctionCall.ID)
	assert.Equal(t, "Fahrenheit", got.Content.Parts[1].FunctionCall.Args["unit"])
	assert.False(t, got.TurnComplete)
	assert.Equal(t, int32(25), got.UsageMetadata.TotalTokenCount)
}
