package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicModel adapts the Anthropic Messages API to model.LLM.
type AnthropicModel struct {
	client anthropic.Client
	name   string
}

var _ model.LLM = (*AnthropicModel)(nil)

func NewAnthropic(name string, creds Credentials, hc *http.Client) *AnthropicModel {
	opts := []option.RequestOption{option.WithAPIKey(creds.APIKey)}
	if creds.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(creds.BaseURL))
	}
	if hc != nil {
		opts = append(opts, option.WithHTTPClient(hc))
	}
	return &AnthropicModel{client: anthropic.NewClient(opts...), name: name}
}

func (a *AnthropicModel) Name() string { return a.name }

func (a *AnthropicModel) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		s := a.client.Messages.NewStreaming(ctx, a.params(req))
		defer s.Close()

		msg := anthropic.Message{}
		for s.Next() {
			event := s.Current()
			if err := msg.Accumulate(event); err != nil {
				yield(nil, fmt.Errorf("anthropic accumulate: %w", err))
				return
			}
			if stream && event.Type == "content_block_delta" && event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				partial := &model.LLMResponse{
					Content: genai.NewContentFromText(event.Delta.Text, genai.RoleModel),
					Partial: true,
				}
				if !yield(partial, nil) {
					return
				}
			}
		}
		if err := s.Err(); err != nil {
			yield(nil, fmt.Errorf("anthropic stream: %w", err))
			return
		}
		yield(fromAnthropicMessage(&msg), nil)
	}
}

func (a *AnthropicModel) params(req *model.LLMRequest) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.name),
		MaxTokens: defaultAnthropicMaxTokens,
		Messages:  toAnthropicMessages(req.Contents),
		Tools:     toAnthropicTools(functionDecls(req)),
	}
	if req.Config != nil && req.Config.MaxOutputTokens > 0 {
		params.MaxTokens = int64(req.Config.MaxOutputTokens)
	}
	if sys := systemText(req); sys != "" {
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}
	return params
}

type anthropicTurn struct {
	assistant bool
	blocks    []anthropic.ContentBlockParamUnion
}

// toAnthropicMessages converts genai contents into alternating user and
// assistant messages, merging consecutive same-role turns. The conversation
// must open with a user message.
func toAnthropicMessages(contents []*genai.Content) []anthropic.MessageParam {
	var turns []anthropicTurn
	for _, c := range contents {
		if c == nil {
			continue
		}
		assistant := c.Role == genai.RoleModel

		var blocks []anthropic.ContentBlockParamUnion
		for _, p := range c.Parts {
			switch {
			case p == nil || p.Thought:
			case p.FunctionCall != nil:
				args := p.FunctionCall.Args
				if args == nil {
					args = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(p.FunctionCall.ID, args, p.FunctionCall.Name))
			case p.FunctionResponse != nil:
				_, isErr := p.FunctionResponse.Response["error"]
				blocks = append(blocks, anthropic.NewToolResultBlock(p.FunctionResponse.ID, toolOutput(p.FunctionResponse), isErr))
			case p.Text != "":
				blocks = append(blocks, anthropic.NewTextBlock(p.Text))
			}
		}
		if len(blocks) == 0 {
			continue
		}

		if n := len(turns); n > 0 && turns[n-1].assistant == assistant {
			turns[n-1].blocks = append(turns[n-1].blocks, blocks...)
			continue
		}
		turns = append(turns, anthropicTurn{assistant: assistant, blocks: blocks})
	}

	if len(turns) > 0 && turns[0].assistant {
		turns = append([]anthropicTurn{{blocks: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock("Continue.")}}}, turns...)
	}

	msgs := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		if t.assistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(t.blocks...))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(t.blocks...))
		}
	}
	return msgs
}

func toAnthropicTools(decls []*genai.FunctionDeclaration) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(decls))
	for _, fd := range decls {
		schema := schemaMap(fd)
		input := anthropic.ToolInputSchemaParam{Properties: schema["properties"]}
		if req, ok := schema["required"].([]any); ok {
			for _, r := range req {
				if s, ok := r.(string); ok {
					input.Required = append(input.Required, s)
				}
			}
		}
		tools = append(tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        fd.Name,
				Description: anthropic.String(fd.Description),
				InputSchema: input,
			},
		})
	}
	return tools
}

func fromAnthropicMessage(msg *anthropic.Message) *model.LLMResponse {
	content := &genai.Content{Role: genai.RoleModel}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				content.Parts = append(content.Parts, genai.NewPartFromText(block.Text))
			}
		case "tool_use":
			args := map[string]any{}
			if len(block.Input) > 0 {
				_ = json.Unmarshal(block.Input, &args)
			}
			content.Parts = append(content.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   block.ID,
				Name: block.Name,
				Args: args,
			}})
		}
	}

	resp := &model.LLMResponse{
		Content:       content,
		TurnComplete:  true,
		UsageMetadata: usage(msg.Usage.InputTokens, msg.Usage.OutputTokens),
	}
	switch msg.StopReason {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence:
		resp.FinishReason = genai.FinishReasonStop
	case anthropic.StopReasonToolUse:
		resp.FinishReason = genai.FinishReasonStop
		resp.TurnComplete = false
	case anthropic.StopReasonMaxTokens:
		resp.FinishReason = genai.FinishReasonMaxTokens
	}
	return resp
}
