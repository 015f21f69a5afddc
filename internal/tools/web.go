package tools

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	bravesearch "github.com/cnosuke/go-brave-search"
)

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

const (
	defaultSearchCount = 5
	maxSearchCount     = 10
)

type SearchHit struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type SearchResult struct {
	Status       string      `json:"status"`
	Results      []SearchHit `json:"results,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// WebSearcher runs travel inspiration searches through Brave.
type WebSearcher struct {
	brave *bravesearch.Client
}

func NewWebSearcher(braveAPIKey string) (*WebSearcher, error) {
	client, err := bravesearch.NewClient(braveAPIKey)
	if err != nil {
		return nil, fmt.Errorf("creating brave client: %w", err)
	}
	return &WebSearcher{brave: client}, nil
}

func (w *WebSearcher) Search(ctx context.Context, query string, count int) SearchResult {
	if strings.TrimSpace(query) == "" {
		return SearchResult{Status: StatusError, ErrorMessage: "query is required"}
	}
	count = clampCount(count)

	slog.Info("tool: web_search", "query", query, "count", count)

	resp, err := w.brave.WebSearch(ctx, query, &bravesearch.WebSearchParams{
		Count: count,
	})
	if err != nil {
		slog.Warn("tool: web_search failed", "query", query, "error", err)
		return SearchResult{Status: StatusError, ErrorMessage: fmt.Sprintf("search failed: %v", err)}
	}

	var hits []SearchHit
	for _, r := range resp.GetWebResults() {
		hits = append(hits, SearchHit{
			Title:       r.Title,
			URL:         r.URL,
			Description: truncate([]byte(stripTags(r.Description))),
		})
	}

	slog.Debug("tool: web_search done", "query", query, "results", len(hits))
	return SearchResult{Status: StatusSuccess, Results: hits}
}

func clampCount(count int) int {
	if count <= 0 {
		return defaultSearchCount
	}
	if count > maxSearchCount {
		return maxSearchCount
	}
	return count
}

func stripTags(s string) string {
	return strings.Join(strings.Fields(htmlTagRe.ReplaceAllString(s, "")), " ")
}
