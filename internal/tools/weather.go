package tools

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Session state keys shared with the agent instructions.
const (
	StateTemperatureUnit = "user_preference_temperature_unit"
	StateLastCity        = "last_city_checked_stateful"
)

const (
	UnitCelsius    = "Celsius"
	UnitFahrenheit = "Fahrenheit"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// State is the subset of session state the tools read and write.
// A Get on a missing key returns an error.
type State interface {
	Get(key string) (any, error)
	Set(key string, value any) error
}

type WeatherResult struct {
	Status       string `json:"status"`
	Report       string `json:"report,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type PreferenceResult struct {
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

var weatherReports = map[string]string{
	"newyork": "The weather in New York is sunny with a temperature of 25°C.",
	"london":  "It's cloudy in London with a temperature of 15°C.",
	"tokyo":   "Tokyo is experiencing light rain and a temperature of 18°C.",
}

type cityWeather struct {
	tempC     float64
	condition string
}

// Temperatures are always kept in Celsius.
var weatherTable = map[string]cityWeather{
	"newyork": {tempC: 25, condition: "sunny"},
	"london":  {tempC: 15, condition: "cloudy"},
	"tokyo":   {tempC: 18, condition: "light rain"},
}

func normalizeCity(city string) string {
	return strings.ReplaceAll(strings.ToLower(city), " ", "")
}

func unknownCity(city string) WeatherResult {
	return WeatherResult{
		Status:       StatusError,
		ErrorMessage: fmt.Sprintf("Sorry, I don't have weather information for '%s'.", city),
	}
}

// GetWeather returns the canned weather report for a city.
func GetWeather(city string) WeatherResult {
	slog.Info("tool: get_weather", "city", city)

	report, ok := weatherReports[normalizeCity(city)]
	if !ok {
		return unknownCity(city)
	}
	return WeatherResult{Status: StatusSuccess, Report: report}
}

// GetWeatherStateful reports the weather for a city in the unit stored in
// state, defaulting to Celsius, and records the city as the last one checked.
func GetWeatherStateful(state State, city string) WeatherResult {
	unit := PreferredUnit(state)
	slog.Info("tool: get_weather_stateful", "city", city, "unit", unit)

	data, ok := weatherTable[normalizeCity(city)]
	if !ok {
		slog.Info("tool: city not found", "city", city)
		return unknownCity(city)
	}

	value, symbol := data.tempC, "°C"
	if unit == UnitFahrenheit {
		value, symbol = data.tempC*9/5+32, "°F"
	}

	result := WeatherResult{
		Status: StatusSuccess,
		Report: fmt.Sprintf("The weather in %s is %s with a temperature of %.0f%s.",
			capitalize(city), data.condition, value, symbol),
	}

	if err := state.Set(StateLastCity, city); err != nil {
		slog.Warn("tool: failed to record last city", "city", city, "error", err)
	}
	return result
}

// SetTemperaturePreference stores the user's temperature unit. Input is
// trimmed and capitalized before it is checked.
func SetTemperaturePreference(state State, unit string) PreferenceResult {
	normalized := capitalize(strings.TrimSpace(unit))
	slog.Info("tool: set_temperature_preference", "unit", unit, "normalized", normalized)

	if normalized != UnitCelsius && normalized != UnitFahrenheit {
		return PreferenceResult{
			Status:       StatusError,
			ErrorMessage: fmt.Sprintf("Invalid temperature unit '%s'. Please specify 'Celsius' or 'Fahrenheit'.", unit),
		}
	}

	if err := state.Set(StateTemperatureUnit, normalized); err != nil {
		return PreferenceResult{
			Status:       StatusError,
			ErrorMessage: fmt.Sprintf("Could not save temperature preference: %v", err),
		}
	}
	return PreferenceResult{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Temperature preference set to %s.", normalized),
	}
}

// PreferredUnit reads the temperature unit from state. Anything other than a
// non-empty string falls back to Celsius.
func PreferredUnit(state State) string {
	v, err := state.Get(StateTemperatureUnit)
	if err != nil {
		return UnitCelsius
	}
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return UnitCelsius
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
