package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/podcast-transcribe/backend/internal/episode"
	"github.com/podcast-transcribe/backend/internal/store"
)

const defaultBaseURL = "https://listen-api.listennotes.com/api/v2"

// Client searches podcast episodes by title via the Listen Notes API and
// creates a record for every hit that is new to the episode store. This is
// the ingestion path: every tracked episode starts life here with status
// NotStarted.
type Client struct {
	baseURL    string
	apiKey     string
	episodes   store.EpisodeStore
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, episodes store.EpisodeStore) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		episodes: episodes,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type searchResponse struct {
	Results []struct {
		ID                  string `json:"id"`
		TitleOriginal       string `json:"title_original"`
		DescriptionOriginal string `json:"description_original"`
		Audio               string `json:"audio"`
		Podcast             struct {
			ID string `json:"id"`
		} `json:"podcast"`
	} `json:"results"`
}

// SearchByTitle queries the title search endpoint and returns the stored
// episodes for every result, de-duplicated by ID. Hits already in the
// store keep their existing record (and transcription progress).
func (c *Client) SearchByTitle(ctx context.Context, titleQuery string) ([]*episode.Episode, error) {
	requestURL := c.baseURL + "/search_episode_titles?q=" + url.QueryEscape(titleQuery)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("X-ListenAPI-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search episodes: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	seen := make(map[string]bool)
	var episodes []*episode.Episode
	for _, result := range parsed.Results {
		if result.ID == "" || seen[result.ID] {
			continue
		}
		seen[result.ID] = true

		existing, err := c.episodes.Get(ctx, result.ID)
		if err == nil {
			episodes = append(episodes, existing)
			continue
		}
		if err != store.ErrNotFound {
			return nil, fmt.Errorf("look up episode %s: %w", result.ID, err)
		}

		created, err := c.episodes.Create(ctx, &episode.Episode{
			ID:                  result.ID,
			Title:               result.TitleOriginal,
			Description:         result.DescriptionOriginal,
			PodcastID:           result.Podcast.ID,
			AudioURL:            result.Audio,
			TranscriptionStatus: episode.StatusNotStarted,
		})
		if err != nil {
			return nil, fmt.Errorf("create episode %s: %w", result.ID, err)
		}
		episodes = append(episodes, created)
	}

	log.Printf("[search] query %q matched %d episodes", titleQuery, len(episodes))
	return episodes, nil
}
