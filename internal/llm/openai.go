package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// OpenAIModel adapts the OpenAI Responses API to model.LLM.
type OpenAIModel struct {
	client *openai.Client
	name   string
}

var _ model.LLM = (*OpenAIModel)(nil)

func NewOpenAI(name string, creds Credentials, hc *http.Client) *OpenAIModel {
	opts := []option.RequestOption{option.WithAPIKey(creds.APIKey)}
	if creds.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(creds.BaseURL))
	}
	if hc != nil {
		opts = append(opts, option.WithHTTPClient(hc))
	}
	client := openai.NewClient(opts...)
	return &OpenAIModel{client: &client, name: name}
}

func (o *OpenAIModel) Name() string { return o.name }

func (o *OpenAIModel) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		params := o.params(req)
		s := o.client.Responses.NewStreaming(ctx, params)

		var completed *responses.Response
		for s.Next() {
			event := s.Current()
			switch event.Type {
			case "response.output_text.delta":
				if stream && event.Delta != "" {
					partial := &model.LLMResponse{
						Content: genai.NewContentFromText(event.Delta, genai.RoleModel),
						Partial: true,
					}
					if !yield(partial, nil) {
						return
					}
				}
			case "response.completed":
				completed = &event.Response
			case "response.failed":
				yield(nil, fmt.Errorf("openai response failed: %s", event.Response.Error.Message))
				return
			}
		}
		if err := s.Err(); err != nil {
			yield(nil, fmt.Errorf("openai stream: %w", err))
			return
		}
		if completed == nil {
			yield(nil, errors.New("openai stream ended without a completed response"))
			return
		}

		slog.Debug("openai response", "model", completed.Model, "output_items", len(completed.Output))
		yield(fromOpenAIResponse(completed), nil)
	}
}

func (o *OpenAIModel) params(req *model.LLMRequest) responses.ResponseNewParams {
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(o.name),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: toOpenAIInput(req.Contents),
		},
		Tools: toOpenAITools(functionDecls(req)),
	}
	if sys := systemText(req); sys != "" {
		params.Instructions = openai.String(sys)
	}
	if req.Config != nil && req.Config.Temperature != nil {
		params.Temperature = openai.Float(float64(*req.Config.Temperature))
	}
	return params
}

func toOpenAIInput(contents []*genai.Content) []responses.ResponseInputItemUnionParam {
	var items []responses.ResponseInputItemUnionParam
	for _, c := range contents {
		if c == nil {
			continue
		}
		role := "user"
		if c.Role == genai.RoleModel {
			role = "assistant"
		}
		for _, p := range c.Parts {
			switch {
			case p == nil || p.Thought:
			case p.FunctionCall != nil:
				args, _ := json.Marshal(p.FunctionCall.Args)
				items = append(items, responses.ResponseInputItemParamOfFunctionCall(
					string(args), p.FunctionCall.ID, p.FunctionCall.Name))
			case p.FunctionResponse != nil:
				items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(
					p.FunctionResponse.ID, toolOutput(p.FunctionResponse)))
			case p.Text != "":
				items = append(items, responses.ResponseInputItemParamOfMessage(p.Text, responses.EasyInputMessageRole(role)))
			}
		}
	}
	return items
}

func toOpenAITools(decls []*genai.FunctionDeclaration) []responses.ToolUnionParam {
	tools := make([]responses.ToolUnionParam, 0, len(decls))
	for _, fd := range decls {
		tools = append(tools, responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        fd.Name,
				Description: openai.String(fd.Description),
				Parameters:  schemaMap(fd),
				Strict:      openai.Bool(false),
			},
		})
	}
	return tools
}

func fromOpenAIResponse(resp *responses.Response) *model.LLMResponse {
	content := &genai.Content{Role: genai.RoleModel}
	hasCall := false

	for _, item := range resp.Output {
		switch item.Type {
		case "message":
			for _, c := range item.AsMessage().Content {
				if c.Type == "output_text" && c.Text != "" {
					content.Parts = append(content.Parts, genai.NewPartFromText(c.Text))
				}
			}
		case "function_call":
			fc := item.AsFunctionCall()
			hasCall = true
			content.Parts = append(content.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   fc.CallID,
				Name: fc.Name,
				Args: parseArgs(fc.Arguments),
			}})
		default:
			slog.Debug("openai: skipping output item", "type", item.Type)
		}
	}

	return &model.LLMResponse{
		Content:       content,
		TurnComplete:  !hasCall,
		FinishReason:  genai.FinishReasonStop,
		UsageMetadata: usage(resp.Usage.InputTokens, resp.Usage.OutputTokens),
	}
}
