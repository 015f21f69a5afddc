// Package agents declares the demo agent trees as plain profiles and builds
// them into ADK agents.
package agents

import (
	"fmt"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
)

// Profile is a named agent configuration. Tools are referenced by registry
// name; Model is a model spec such as "gemini-2.0-flash".
type Profile struct {
	Name        string
	Model       string
	Description string
	Instruction string
	Tools       []string
	SubAgents   []*Profile
	OutputKey   string

	BeforeAgent []agent.BeforeAgentCallback
	BeforeModel []llmagent.BeforeModelCallback
}

// ModelResolver turns a model spec into a model.
type ModelResolver func(spec string) (model.LLM, error)

// Builder turns profile trees into ADK agents.
type Builder struct {
	Registry *Registry
	Resolve  ModelResolver

	// Override, when set, replaces every profile's model. The multi-model
	// run uses it to drive one agent tree with different providers.
	Override model.LLM
}

func (b *Builder) Build(p *Profile) (agent.Agent, error) {
	if p == nil {
		return nil, fmt.Errorf("nil agent profile")
	}

	subs := make([]agent.Agent, 0, len(p.SubAgents))
	for _, sp := range p.SubAgents {
		sub, err := b.Build(sp)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	llm, err := b.model(p)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", p.Name, err)
	}

	ts, err := b.Registry.Scope(p.Tools)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", p.Name, err)
	}

	a, err := llmagent.New(llmagent.Config{
		Name:                 p.Name,
		Description:          p.Description,
		Model:                llm,
		Instruction:          p.Instruction,
		Tools:                ts,
		SubAgents:            subs,
		OutputKey:            p.OutputKey,
		BeforeAgentCallbacks: p.BeforeAgent,
		BeforeModelCallbacks: p.BeforeModel,
	})
	if err != nil {
		return nil, fmt.Errorf("creating agent %s: %w", p.Name, err)
	}
	return a, nil
}

func (b *Builder) model(p *Profile) (model.LLM, error) {
	if b.Override != nil {
		return b.Override, nil
	}
	if b.Resolve == nil {
		return nil, fmt.Errorf("no model resolver for %q", p.Model)
	}
	return b.Resolve(p.Model)
}

// Walk visits p and its sub-agents depth first.
func Walk(p *Profile, fn func(*Profile)) {
	if p == nil {
		return
	}
	fn(p)
	for _, sp := range p.SubAgents {
		Walk(sp, fn)
	}
}
