package tools

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

const (
	StateScenarioLoaded = "_scenario_loaded"
	StateTime           = "_time"
)

type MemorizeResult struct {
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Memorize stores a piece of trip information in session state.
func Memorize(state State, key, value string) MemorizeResult {
	key = strings.TrimSpace(key)
	slog.Info("tool: memorize", "key", key)

	if key == "" || strings.HasPrefix(key, "_") {
		return MemorizeResult{Status: StatusError, ErrorMessage: fmt.Sprintf("Invalid key '%s'.", key)}
	}
	if err := state.Set(key, value); err != nil {
		return MemorizeResult{Status: StatusError, ErrorMessage: fmt.Sprintf("Could not store '%s': %v", key, err)}
	}
	return MemorizeResult{Status: StatusSuccess, Message: fmt.Sprintf("Stored '%s'.", key)}
}

// Scenario is an initial-state file for the travel concierge, shaped
// {"state": {...}}.
type Scenario struct {
	State map[string]any `json:"state"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var sc Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("decoding scenario %s: %w", path, err)
	}
	if sc.State == nil {
		sc.State = map[string]any{}
	}
	return &sc, nil
}

// SeedState copies the scenario into state once per session. It reports
// whether anything was written.
func SeedState(state State, sc *Scenario, now time.Time) (bool, error) {
	if v, err := state.Get(StateScenarioLoaded); err == nil && v == true {
		return false, nil
	}
	for k, v := range sc.State {
		if err := state.Set(k, v); err != nil {
			return false, fmt.Errorf("seeding %q: %w", k, err)
		}
	}
	if err := state.Set(StateTime, now.Format(time.RFC3339)); err != nil {
		return false, err
	}
	if err := state.Set(StateScenarioLoaded, true); err != nil {
		return false, err
	}
	slog.Info("travel scenario loaded", "keys", len(sc.State))
	return true, nil
}
