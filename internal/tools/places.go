package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	places "cloud.google.com/go/maps/places/apiv1"
	"cloud.google.com/go/maps/places/apiv1/placespb"
	"github.com/googleapis/gax-go/v2/callctx"
	"google.golang.org/api/option"
)

const (
	placesFieldMask = "places.id,places.displayName,places.formattedAddress,places.rating"
	maxPlaces       = 5
)

type Place struct {
	ID      string  `json:"place_id"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Rating  float64 `json:"rating,omitempty"`
}

type PlacesResult struct {
	Status       string  `json:"status"`
	Places       []Place `json:"places,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

// PlacesClient queries the Google Places Text Search API. The underlying
// SDK client is created on first use.
type PlacesClient struct {
	opts []option.ClientOption

	once   sync.Once
	client *places.Client
	err    error
}

// NewPlacesClient authenticates with apiKey. Extra options go to the SDK
// client after the key.
func NewPlacesClient(apiKey string, opts ...option.ClientOption) *PlacesClient {
	return &PlacesClient{opts: append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)}
}

func (c *PlacesClient) sdk(ctx context.Context) (*places.Client, error) {
	c.once.Do(func() {
		c.client, c.err = places.NewRESTClient(ctx, c.opts...)
		if c.err != nil {
			c.err = fmt.Errorf("creating places client: %w", c.err)
		}
	})
	return c.client, c.err
}

func (c *PlacesClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Search returns up to five places matching query. Failures are reported in
// the result rather than as an error so the model can react to them.
func (c *PlacesClient) Search(ctx context.Context, query string) PlacesResult {
	if strings.TrimSpace(query) == "" {
		return PlacesResult{Status: StatusError, ErrorMessage: "query is required"}
	}

	slog.Info("tool: search_places", "query", query)

	found, err := c.search(ctx, query)
	if err != nil {
		slog.Warn("tool: search_places failed", "query", query, "error", err)
		return PlacesResult{Status: StatusError, ErrorMessage: err.Error()}
	}
	if len(found) == 0 {
		return PlacesResult{Status: StatusError, ErrorMessage: fmt.Sprintf("No places found for '%s'.", query)}
	}
	return PlacesResult{Status: StatusSuccess, Places: found}
}

func (c *PlacesClient) search(ctx context.Context, query string) ([]Place, error) {
	client, err := c.sdk(ctx)
	if err != nil {
		return nil, err
	}

	ctx = callctx.SetHeaders(ctx, "X-Goog-FieldMask", placesFieldMask)
	resp, err := client.SearchText(ctx, &placespb.SearchTextRequest{
		TextQuery:      query,
		MaxResultCount: maxPlaces,
	})
	if err != nil {
		return nil, fmt.Errorf("places search: %w", err)
	}

	out := make([]Place, 0, len(resp.GetPlaces()))
	for _, p := range resp.GetPlaces() {
		out = append(out, Place{
			ID:      p.GetId(),
			Name:    p.GetDisplayName().GetText(),
			Address: p.GetFormattedAddress(),
			Rating:  p.GetRating(),
		})
	}
	return out, nil
}
