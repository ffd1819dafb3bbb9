package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const fetchTimeout = 30 * time.Second

// FeedSource pulls candidates from an aggregator endpoint that returns a JSON
// array of items. The heavy lifting of crawling and parsing publisher feeds
// happens upstream of this endpoint.
type FeedSource struct {
	name       string
	url        string
	httpClient *http.Client
}

var _ Source = (*FeedSource)(nil)

func NewFeedSource(name, url string) *FeedSource {
	return &FeedSource{
		name: name,
		url:  url,
		httpClient: &http.Client{
			Timeout: fetchTimeout,
		},
	}
}

func (s *FeedSource) Name() string {
	return s.name
}

type feedItem struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Content     string    `json:"content"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

func (s *FeedSource) Fetch(ctx context.Context) ([]Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned %s", s.name, resp.Status)
	}

	var items []feedItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode feed %s: %w", s.name, err)
	}

	candidates := make([]Candidate, 0, len(items))
	for _, item := range items {
		source := item.Source
		if source == "" {
			source = s.name
		}
		candidates = append(candidates, Candidate{
			Title:       item.Title,
			URL:         item.URL,
			RawContent:  item.Content,
			Source:      source,
			PublishedAt: item.PublishedAt,
		})
	}
	return candidates, nil
}
