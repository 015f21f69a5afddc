package deploy

import (
	"fmt"
	"io"
	"sort"

	"agentdeck/internal/agents"
)

const (
	EnvProject      = "GOOGLE_CLOUD_PROJECT"
	EnvLocation     = "GOOGLE_CLOUD_LOCATION"
	EnvBucket       = "GOOGLE_CLOUD_STORAGE_BUCKET"
	EnvGoogleAPIKey = "GOOGLE_API_KEY"
	EnvWeatherKey   = "WEATHER_API_KEY"
	EnvPlacesKey    = "GOOGLE_PLACES_API_KEY"
	EnvScenario     = "TRAVEL_CONCIERGE_SCENARIO"

	StateTemperatureUnit = "user_preference_temperature_unit"
)

// App describes one deployable agent: what gets staged, which environment
// it needs and how it is smoke tested.
type App struct {
	Name          string
	DisplayName   string
	Description   string
	Requirements  []string
	ExtraPackages []string

	// Required keys are validated in order after the cloud settings.
	// Optional keys are forwarded to the deployment only when set.
	Required []string
	Optional []string

	UserID           string
	QuickTestMessage string
	InitialState     map[string]any

	summary func(w io.Writer, env map[string]string)
}

// DeployEnv returns the environment the deployed agent runs with.
func (a *App) DeployEnv(env map[string]string) map[string]string {
	out := make(map[string]string)
	for _, k := range a.Required {
		out[k] = env[k]
	}
	for _, k := range a.Optional {
		if v := env[k]; v != "" {
			out[k] = v
		}
	}
	return out
}

// Summary writes the app-specific part of the settings banner.
func (a *App) Summary(w io.Writer, env map[string]string) {
	if a.summary != nil {
		a.summary(w, env)
	}
}

func prefix(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// WeatherApp is the weather agent with its greeting and farewell helpers.
func WeatherApp() *App {
	return &App{
		Name:        agents.AppWeather,
		DisplayName: "weather-agent",
		Description: "Weather agent with greeting and farewell sub-agents",
		Requirements: []string{
			"google-adk (>=0.0.2)",
			"google-cloud-aiplatform[agent_engines]",
			"google-genai (>=1.9.0,<2.0.0)",
			"pydantic (>=2.10.6,<3.0.0)",
			"absl-py (>=2.2.1,<3.0.0)",
			"python-dotenv (>=1.0.1,<2.0.0)",
			"litellm (>=1.0.0,<2.0.0)",
			"requests (>=2.32.3,<3.0.0)",
		},
		ExtraPackages:    []string{"./weather_agent"},
		Optional:         []string{EnvWeatherKey},
		UserID:           "weather_user_001",
		QuickTestMessage: "Hey",
		InitialState:     map[string]any{StateTemperatureUnit: "Celsius"},
		summary: func(w io.Writer, env map[string]string) {
			if k := env[EnvWeatherKey]; k != "" {
				fmt.Fprintf(w, "WEATHER_API_KEY: %s...\n", prefix(k, 5))
			}
		},
	}
}

// TravelApp is the travel concierge.
func TravelApp() *App {
	return &App{
		Name:        agents.AppTravel,
		DisplayName: "Travel-Concierge-ADK",
		Description: "An Example AgentEngine Deployment",
		Requirements: []string{
			"google-adk (==1.0.0)",
			"google-cloud-aiplatform[agent_engines] (==1.93.1)",
			"google-genai (==1.16.1)",
			"pydantic (>=2.10.6,<3.0.0)",
			"absl-py (>=2.2.1,<3.0.0)",
			"requests (>=2.32.3,<3.0.0)",
		},
		ExtraPackages:    []string{"./travel_concierge"},
		Required:         []string{EnvScenario, EnvPlacesKey},
		UserID:           "traveler0115",
		QuickTestMessage: "Looking for inspirations around the Americas",
		summary: func(w io.Writer, env map[string]string) {
			fmt.Fprintf(w, "INITIAL_STATE: %s\n", env[EnvScenario])
			fmt.Fprintf(w, "MAP: %s\n", prefix(env[EnvPlacesKey], 5))
		},
	}
}

// LookupApp returns the app registered under name.
func LookupApp(name string) (*App, error) {
	switch name {
	case agents.AppWeather:
		return WeatherApp(), nil
	case agents.AppTravel:
		return TravelApp(), nil
	}
	return nil, fmt.Errorf("unknown app %q (want one of %v)", name, agents.AppNames())
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
