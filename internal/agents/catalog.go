package agents

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"agentdeck/internal/tools"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/genai"
)

const (
	DefaultModel = "gemini-2.0-flash"

	AppWeather = "weather"
	AppTravel  = "travel-concierge"

	OutputKeyWeather = "last_weather_report"
)

// WeatherProfile is the weather agent tree: a root agent that handles
// weather requests and delegates greetings and farewells.
func WeatherProfile(modelSpec string) *Profile {
	if modelSpec == "" {
		modelSpec = DefaultModel
	}
	greeting := &Profile{
		Name:        "greeting_agent",
		Model:       modelSpec,
		Description: "Handles simple greetings and hellos using the 'say_hello' tool.",
		Instruction: greetingInstruction,
		Tools:       []string{"say_hello"},
	}
	farewell := &Profile{
		Name:        "farewell_agent",
		Model:       modelSpec,
		Description: "Handles simple farewells and goodbyes using the 'say_goodbye' tool.",
		Instruction: farewellInstruction,
		Tools:       []string{"say_goodbye"},
	}
	return &Profile{
		Name:        "weather_agent",
		Model:       modelSpec,
		Description: "The main coordinator agent. Handles weather requests and delegates greetings/farewells to specialists.",
		Instruction: rootAgentInstruction,
		Tools:       []string{"get_weather_stateful", "set_temperature_preference"},
		SubAgents:   []*Profile{greeting, farewell},
		OutputKey:   OutputKeyWeather,
		BeforeModel: []llmagent.BeforeModelCallback{BlockKeywordGuardrail},
	}
}

// ComparisonProfile is the weather tree used to compare model providers.
// Only the root runs on modelSpec and it has the stateful weather lookup
// alone, without the guardrail; greetings and farewells stay on the
// default model.
func ComparisonProfile(modelSpec, label string) *Profile {
	p := WeatherProfile(DefaultModel)
	if modelSpec != "" {
		p.Model = modelSpec
	}
	p.Name = "weather_agent_" + strings.ToLower(label)
	p.Description = "Weather agent using " + label
	p.Tools = []string{"get_weather_stateful"}
	p.BeforeModel = nil
	return p
}

// TravelProfile is the travel concierge. When scenarioPath is set the
// scenario's state is seeded into each new session before the first turn.
// web_search is only offered when the registry has it.
func TravelProfile(modelSpec, scenarioPath string, withWeb bool) *Profile {
	if modelSpec == "" {
		modelSpec = DefaultModel
	}
	toolNames := []string{"memorize", "search_places"}
	if withWeb {
		toolNames = append(toolNames, "web_search")
	}
	p := &Profile{
		Name:        "travel_concierge",
		Model:       modelSpec,
		Description: "A travel concierge that finds inspiration, places to visit and remembers trip details.",
		Instruction: travelInstruction,
		Tools:       toolNames,
	}
	if scenarioPath != "" {
		p.BeforeAgent = []agent.BeforeAgentCallback{ScenarioSeeder(scenarioPath, time.Now)}
	}
	return p
}

// ScenarioSeeder returns a before-agent callback that copies the scenario
// file's state into the session once. The file is read on first use.
func ScenarioSeeder(path string, now func() time.Time) agent.BeforeAgentCallback {
	load := sync.OnceValues(func() (*tools.Scenario, error) {
		return tools.LoadScenario(path)
	})
	return func(ctx agent.CallbackContext) (*genai.Content, error) {
		sc, err := load()
		if err != nil {
			return nil, err
		}
		seeded, err := tools.SeedState(ctx.State(), sc, now())
		if err != nil {
			return nil, fmt.Errorf("seeding scenario %s: %w", path, err)
		}
		if seeded {
			slog.Info("scenario seeded", "agent", ctx.AgentName(), "path", path)
		}
		return nil, nil
	}
}

// CatalogOptions carries what the catalog's profiles need beyond a model.
type CatalogOptions struct {
	ScenarioPath string
	WithWeb      bool
}

// Profiles returns the root profile of each named app.
func Profiles(modelSpec string, opts CatalogOptions) map[string]*Profile {
	return map[string]*Profile{
		AppWeather: WeatherProfile(modelSpec),
		AppTravel:  TravelProfile(modelSpec, opts.ScenarioPath, opts.WithWeb),
	}
}

// Lookup returns the root profile for app.
func Lookup(app, modelSpec string, opts CatalogOptions) (*Profile, error) {
	all := Profiles(modelSpec, opts)
	p, ok := all[app]
	if !ok {
		return nil, fmt.Errorf("unknown app %q (want one of %v)", app, AppNames())
	}
	return p, nil
}

func AppNames() []string {
	names := []string{AppWeather, AppTravel}
	sort.Strings(names)
	return names
}
