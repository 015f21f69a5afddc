package engine

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Event is one streamed event from a deployed agent, kept as raw JSON.
type Event struct {
	raw json.RawMessage
}

// NewEvent wraps raw event JSON.
func NewEvent(raw []byte) Event {
	return Event{raw: append(json.RawMessage(nil), raw...)}
}

func (e Event) Raw() json.RawMessage { return e.raw }

func (e Event) String() string { return string(e.raw) }

// Author is the agent that produced the event, if present.
func (e Event) Author() string {
	return gjson.GetBytes(e.raw, "author").String()
}

// Text concatenates the text parts of the event's content. Events without
// text parts return "", including those with only a top-level "text" field.
func (e Event) Text() string {
	var b strings.Builder
	gjson.GetBytes(e.raw, "content.parts").ForEach(func(_, p gjson.Result) bool {
		if t := p.Get("text"); t.Type == gjson.String {
			b.WriteString(t.String())
		}
		return true
	})
	return b.String()
}

// FunctionCalls returns the names of any function calls in the event.
func (e Event) FunctionCalls() []string {
	var names []string
	gjson.GetBytes(e.raw, "content.parts").ForEach(func(_, p gjson.Result) bool {
		if n := p.Get("function_call.name"); n.Exists() {
			names = append(names, n.String())
		}
		return true
	})
	return names
}
