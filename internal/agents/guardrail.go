package agents

import (
	"log/slog"
	"strings"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

const (
	BlockedKeyword          = "BLOCK"
	StateGuardrailTriggered = "guardrail_block_keyword_triggered"
	blockedKeywordResponse  = "I cannot process this request because it contains the blocked keyword 'BLOCK'."
)

// LastUserText returns the text of the most recent user turn in req.
func LastUserText(req *model.LLMRequest) string {
	if req == nil {
		return ""
	}
	for i := len(req.Contents) - 1; i >= 0; i-- {
		c := req.Contents[i]
		if c == nil || c.Role != genai.RoleUser {
			continue
		}
		var b strings.Builder
		for _, p := range c.Parts {
			if p != nil && p.Text != "" {
				b.WriteString(p.Text)
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}

// ContainsBlockedKeyword reports whether text contains BLOCK in any case.
func ContainsBlockedKeyword(text string) bool {
	return strings.Contains(strings.ToUpper(text), BlockedKeyword)
}

// BlockKeywordGuardrail short-circuits the model call when the latest user
// message contains the blocked keyword.
func BlockKeywordGuardrail(ctx agent.CallbackContext, req *model.LLMRequest) (*model.LLMResponse, error) {
	text := LastUserText(req)
	if !ContainsBlockedKeyword(text) {
		return nil, nil
	}

	slog.Info("guardrail: blocked keyword found, skipping model call", "agent", ctx.AgentName())
	if err := ctx.State().Set(StateGuardrailTriggered, true); err != nil {
		return nil, err
	}
	return &model.LLMResponse{
		Content: genai.NewContentFromText(blockedKeywordResponse, genai.RoleModel),
	}, nil
}
