package tools

import (
	"fmt"

	"agentdeck/internal/trace"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
)

// --- Arg types ---

type CityArgs struct {
	City string `json:"city" jsonschema:"The name of the city, e.g. New York, London, Tokyo"`
}

type UnitArgs struct {
	Unit string `json:"unit" jsonschema:"The preferred temperature unit: Celsius or Fahrenheit"`
}

type HelloArgs struct {
	Name string `json:"name,omitempty" jsonschema:"The name of the person to greet, if they gave one"`
}

type GoodbyeArgs struct{}

type PlacesArgs struct {
	Query string `json:"query" jsonschema:"Free-text place query, e.g. 'museums in Lisbon'"`
}

type SearchArgs struct {
	Query string `json:"query" jsonschema:"Search query"`
	Count int    `json:"count,omitempty" jsonschema:"Number of results (default 5, max 10)"`
}

type MemorizeArgs struct {
	Key   string `json:"key" jsonschema:"State key to store under, e.g. origin, destination, start_date"`
	Value string `json:"value" jsonschema:"Value to remember"`
}

// traced wraps a tool handler in a span named after the tool.
func traced[A, R any](name string, fn func(tool.Context, A) (R, error)) func(tool.Context, A) (R, error) {
	return func(ctx tool.Context, args A) (R, error) {
		_, span := trace.Tracer().Start(ctx, name,
			oteltrace.WithAttributes(
				attribute.String("gen_ai.tool.name", name),
				attribute.String("gen_ai.agent.name", ctx.AgentName()),
			),
		)
		defer span.End()
		return fn(ctx, args)
	}
}

func newTool[A, R any](name, description string, fn func(tool.Context, A) (R, error)) (tool.Tool, error) {
	t, err := functiontool.New(
		functiontool.Config{Name: name, Description: description},
		traced(name, fn),
	)
	if err != nil {
		return nil, fmt.Errorf("%s tool: %w", name, err)
	}
	return t, nil
}

// NewWeatherTools returns the root weather agent's tools.
func NewWeatherTools() ([]tool.Tool, error) {
	stateful, err := newTool("get_weather_stateful",
		"Retrieves the current weather report for a city, formatting the temperature in the user's preferred unit from session state.",
		func(ctx tool.Context, args CityArgs) (WeatherResult, error) {
			return GetWeatherStateful(ctx.State(), args.City), nil
		})
	if err != nil {
		return nil, err
	}

	pref, err := newTool("set_temperature_preference",
		"Sets the user's preferred temperature unit (Celsius or Fahrenheit) in session state.",
		func(ctx tool.Context, args UnitArgs) (PreferenceResult, error) {
			return SetTemperaturePreference(ctx.State(), args.Unit), nil
		})
	if err != nil {
		return nil, err
	}

	return []tool.Tool{stateful, pref}, nil
}

// NewStatelessWeatherTool returns get_weather, which ignores session state.
func NewStatelessWeatherTool() (tool.Tool, error) {
	return newTool("get_weather",
		"Retrieves the current weather report for a specified city.",
		func(_ tool.Context, args CityArgs) (WeatherResult, error) {
			return GetWeather(args.City), nil
		})
}

func NewGreetingTools() ([]tool.Tool, error) {
	t, err := newTool("say_hello",
		"Provides a simple greeting. If a name is provided, it will be used.",
		func(_ tool.Context, args HelloArgs) (GreetingResult, error) {
			return SayHello(args.Name), nil
		})
	if err != nil {
		return nil, err
	}
	return []tool.Tool{t}, nil
}

func NewFarewellTools() ([]tool.Tool, error) {
	t, err := newTool("say_goodbye",
		"Provides a simple farewell message to conclude the conversation.",
		func(_ tool.Context, _ GoodbyeArgs) (FarewellResult, error) {
			return SayGoodbye(), nil
		})
	if err != nil {
		return nil, err
	}
	return []tool.Tool{t}, nil
}

// TravelDeps holds the external clients the travel concierge tools need.
// A nil Web disables web_search.
type TravelDeps struct {
	Places *PlacesClient
	Web    *WebSearcher
}

func NewTravelTools(deps TravelDeps) ([]tool.Tool, error) {
	var out []tool.Tool

	memorize, err := newTool("memorize",
		"Remembers a piece of trip information (origin, destination, dates, preferences) in session state.",
		func(ctx tool.Context, args MemorizeArgs) (MemorizeResult, error) {
			return Memorize(ctx.State(), args.Key, args.Value), nil
		})
	if err != nil {
		return nil, err
	}
	out = append(out, memorize)

	if deps.Places != nil {
		places, err := newTool("search_places",
			"Looks up points of interest, hotels and restaurants with Google Places.",
			func(ctx tool.Context, args PlacesArgs) (PlacesResult, error) {
				return deps.Places.Search(ctx, args.Query), nil
			})
		if err != nil {
			return nil, err
		}
		out = append(out, places)
	}

	if deps.Web != nil {
		web, err := newTool("web_search",
			"Searches the web for travel inspiration, events and news about a destination.",
			func(ctx tool.Context, args SearchArgs) (SearchResult, error) {
				return deps.Web.Search(ctx, args.Query, args.Count), nil
			})
		if err != nil {
			return nil, err
		}
		out = append(out, web)
	}

	return out, nil
}
