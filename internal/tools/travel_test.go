package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestMemorize(t *testing.T) {
	state := mapState{}

	got := Memorize(state, " destination ", "Lisbon")
	require.Equal(t, StatusSuccess, got.Status)
	assert.Equal(t, "Lisbon", state["destination"])

	assert.Equal(t, StatusError, Memorize(state, "", "x").Status)
	assert.Equal(t, StatusError, Memorize(state, "_time", "x").Status)
}

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestSeedStateOnce(t *testing.T) {
	path := writeScenario(t, `{"state": {"user_profile": {"home": "Toronto"}, "itinerary": {}}}`)
	sc, err := LoadScenario(path)
	require.NoError(t, err)

	state := mapState{}
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	seeded, err := SeedState(state, sc, now)
	require.NoError(t, err)
	assert.True(t, seeded)
	assert.Equal(t, map[string]any{"home": "Toronto"}, state["user_profile"])
	assert.Equal(t, "2025-05-01T12:00:00Z", state[StateTime])

	state["user_profile"] = "changed"
	seeded, err = SeedState(state, sc, now)
	require.NoError(t, err)
	assert.False(t, seeded)
	assert.Equal(t, "changed", state["user_profile"])
}

func TestLoadScenarioErrors(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadScenario(writeScenario(t, `not json`))
	assert.Error(t, err)

	sc, err := LoadScenario(writeScenario(t, `{}`))
	require.NoError(t, err)
	assert.NotNil(t, sc.State)
}

func newTestPlaces(t *testing.T, h http.HandlerFunc) *PlacesClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewPlacesClient("test-key", option.WithEndpoint(srv.URL))
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPlacesSearch(t *testing.T) {
	c := newTestPlaces(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/places:searchText", r.URL.Path)
		assert.Equal(t, placesFieldMask, r.Header.Get("X-Goog-FieldMask"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "museums in Lisbon", body["textQuery"])
		assert.EqualValues(t, maxPlaces, body["maxResultCount"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"places":[{"id":"p1","displayName":{"text":"MAAT"},"formattedAddress":"Av. Brasília","rating":4.5}]}`))
	})

	got := c.Search(context.Background(), "museums in Lisbon")

	require.Equal(t, StatusSuccess, got.Status)
	require.Len(t, got.Places, 1)
	assert.Equal(t, Place{ID: "p1", Name: "MAAT", Address: "Av. Brasília", Rating: 4.5}, got.Places[0])
}

func TestPlacesSearchAPIError(t *testing.T) {
	c := newTestPlaces(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`))
	})

	got := c.Search(context.Background(), "anything")

	assert.Equal(t, StatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "API key not valid")
}

func TestPlacesSearchEmpty(t *testing.T) {
	c := newTestPlaces(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})

	assert.Equal(t, StatusError, c.Search(context.Background(), "nowhere").Status)
	assert.Equal(t, StatusError, c.Search(context.Background(), "  ").Status)
}

func TestClampCount(t *testing.T) {
	assert.Equal(t, defaultSearchCount, clampCount(0))
	assert.Equal(t, 3, clampCount(3))
	assert.Equal(t, maxSearchCount, clampCount(50))
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "Best beaches in Portugal", stripTags("<strong>Best</strong>  beaches in\n Portugal"))
}
