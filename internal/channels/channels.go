// Package channels holds chat front-ends other than the web UI.
package channels

import (
	"fmt"
	"net/http"

	"agentdeck/internal/chat"
	"agentdeck/internal/config"
)

type Channel interface {
	Name() string
	RegisterRoutes(mux *http.ServeMux)
}

// FromConfig builds the enabled channels. Each forwards to backend, opening
// sessions on agentID seeded with state.
func FromConfig(cfgs map[string]*config.ChannelConfig, backend chat.Backend, agentID string, state map[string]any) ([]Channel, error) {
	var out []Channel
	for name, cc := range cfgs {
		if cc == nil || !cc.Enabled {
			continue
		}
		kind := cc.Type
		if kind == "" {
			kind = name
		}
		switch kind {
		case "telegram":
			token := cc.Settings["bot_token"]
			if token == "" {
				return nil, fmt.Errorf("channel %s: bot_token is required", name)
			}
			agent := cc.Settings["agent"]
			if agent == "" {
				agent = agentID
			}
			out = append(out, NewTelegram(token, backend, agent, state))
		default:
			return nil, fmt.Errorf("channel %s: unknown type %q", name, kind)
		}
	}
	return out, nil
}
