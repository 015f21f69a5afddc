package tools

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapState map[string]any

var errNoKey = errors.New("key does not exist")

func (m mapState) Get(key string) (any, error) {
	v, ok := m[key]
	if !ok {
		return nil, errNoKey
	}
	return v, nil
}

func (m mapState) Set(key string, value any) error {
	m[key] = value
	return nil
}

func TestGetWeather(t *testing.T) {
	tests := []struct {
		city   string
		status string
		want   string
	}{
		{"London", StatusSuccess, "It's cloudy in London with a temperature of 15°C."},
		{"new york", StatusSuccess, "The weather in New York is sunny with a temperature of 25°C."},
		{"TOKYO", StatusSuccess, "Tokyo is experiencing light rain and a temperature of 18°C."},
	}
	for _, tt := range tests {
		t.Run(tt.city, func(t *testing.T) {
			got := GetWeather(tt.city)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.want, got.Report)
			assert.Empty(t, got.ErrorMessage)
		})
	}
}

func TestGetWeatherUnknownCity(t *testing.T) {
	got := GetWeather("Unknown City")
	assert.Equal(t, StatusError, got.Status)
	assert.Equal(t, "Sorry, I don't have weather information for 'Unknown City'.", got.ErrorMessage)
	assert.Empty(t, got.Report)
}

func TestGetWeatherStatefulDefaultsToCelsius(t *testing.T) {
	state := mapState{}

	got := GetWeatherStateful(state, "London")

	require.Equal(t, StatusSuccess, got.Status)
	assert.Equal(t, "The weather in London is cloudy with a temperature of 15°C.", got.Report)
	assert.Equal(t, "London", state[StateLastCity])
}

func TestGetWeatherStatefulFahrenheit(t *testing.T) {
	tests := []struct {
		city string
		want string
	}{
		{"London", "The weather in London is cloudy with a temperature of 59°F."},
		{"new york", "The weather in New york is sunny with a temperature of 77°F."},
		{"Tokyo", "The weather in Tokyo is light rain with a temperature of 64°F."},
	}
	for _, tt := range tests {
		t.Run(tt.city, func(t *testing.T) {
			state := mapState{StateTemperatureUnit: UnitFahrenheit}
			got := GetWeatherStateful(state, tt.city)
			require.Equal(t, StatusSuccess, got.Status)
			assert.Equal(t, tt.want, got.Report)
		})
	}
}

func TestGetWeatherStatefulUnknownCityLeavesState(t *testing.T) {
	state := mapState{StateTemperatureUnit: UnitCelsius}

	got := GetWeatherStateful(state, "Atlantis")

	assert.Equal(t, StatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "'Atlantis'")
	assert.NotContains(t, state, StateLastCity)
}

func TestPreferredUnitIgnoresNonStrings(t *testing.T) {
	assert.Equal(t, UnitCelsius, PreferredUnit(mapState{}))
	assert.Equal(t, UnitCelsius, PreferredUnit(mapState{StateTemperatureUnit: 42}))
	assert.Equal(t, UnitCelsius, PreferredUnit(mapState{StateTemperatureUnit: ""}))
	assert.Equal(t, UnitFahrenheit, PreferredUnit(mapState{StateTemperatureUnit: UnitFahrenheit}))
}

func TestSetTemperaturePreference(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  fahrenheit ", UnitFahrenheit},
		{"CELSIUS", UnitCelsius},
		{"Fahrenheit", UnitFahrenheit},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			state := mapState{}
			got := SetTemperaturePreference(state, tt.in)
			require.Equal(t, StatusSuccess, got.Status)
			assert.Equal(t, "Temperature preference set to "+tt.want+".", got.Message)
			assert.Equal(t, tt.want, state[StateTemperatureUnit])
		})
	}
}

func TestSetTemperaturePreferenceRejectsUnknownUnit(t *testing.T) {
	state := mapState{StateTemperatureUnit: UnitCelsius}

	got := SetTemperaturePreference(state, "kelvin")

	assert.Equal(t, StatusError, got.Status)
	assert.Equal(t, "Invalid temperature unit 'kelvin'. Please specify 'Celsius' or 'Fahrenheit'.", got.ErrorMessage)
	assert.Equal(t, UnitCelsius, state[StateTemperatureUnit])
}

func TestPreferenceThenWeather(t *testing.T) {
	state := mapState{}

	require.Equal(t, StatusSuccess, SetTemperaturePreference(state, "fahrenheit").Status)
	got := GetWeatherStateful(state, "london")

	assert.Equal(t, "The weather in London is cloudy with a temperature of 59°F.", got.Report)
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "", capitalize(""))
	assert.Equal(t, "London", capitalize("lONDON"))
	assert.Equal(t, "New york", capitalize("new York"))
	assert.Equal(t, "Édimbourg", capitalize("édimbourg"))
}

func TestGreetings(t *testing.T) {
	assert.Equal(t, "Hello, Alice!", SayHello("Alice").Greeting)
	assert.Equal(t, "Hello there!", SayHello("   ").Greeting)
	assert.Equal(t, "Goodbye! Have a great day.", SayGoodbye().Farewell)
	assert.Equal(t, StatusSuccess, SayGoodbye().Status)
}
