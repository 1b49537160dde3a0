// Package lookup resolves content metadata from TMDB and TVDB for
// evaluators that need fields the request didn't carry.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.themoviedb.org"

// ErrNotFound is returned when a movie doesn't exist in TMDB.
var ErrNotFound = errors.New("movie not found")

// Movie is the subset of TMDB movie metadata the router cares about.
type Movie struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	ReleaseDate      string `json:"release_date"` // YYYY-MM-DD
	OriginalLanguage string `json:"original_language"`
	ReleaseDates     struct {
		Results []struct {
			ISO31661     string `json:"iso_3166_1"`
			ReleaseDates []struct {
				Certification string `json:"certification"`
			} `json:"release_dates"`
		} `json:"results"`
	} `json:"release_dates"`
}

// Year parses the release year out of the release date.
func (m *Movie) Year() int {
	if len(m.ReleaseDate) < 4 {
		return 0
	}
	var year int
	_, _ = fmt.Sscanf(m.ReleaseDate[:4], "%d", &year)
	return year
}

// Certification returns the US certification, if any.
func (m *Movie) Certification() string {
	for _, r := range m.ReleaseDates.Results {
		if r.ISO31661 != "US" {
			continue
		}
		for _, rd := range r.ReleaseDates {
			if rd.Certification != "" {
				return rd.Certification
			}
		}
	}
	return ""
}

// TMDBClient is a TMDB API client.
type TMDBClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// TMDBOption configures a TMDBClient.
type TMDBOption func(*TMDBClient)

// WithTMDBBaseURL sets a custom base URL (for testing).
func WithTMDBBaseURL(url string) TMDBOption {
	return func(c *TMDBClient) {
		c.baseURL = url
	}
}

// WithTMDBHTTPClient sets a custom HTTP client.
func WithTMDBHTTPClient(hc *http.Client) TMDBOption {
	return func(c *TMDBClient) {
		c.httpClient = hc
	}
}

// NewTMDBClient creates a new TMDB client.
func NewTMDBClient(apiKey string, opts ...TMDBOption) *TMDBClient {
	c := &TMDBClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetMovie fetches movie metadata by TMDB ID, including US certification.
func (c *TMDBClient) GetMovie(ctx context.Context, tmdbID int64) (*Movie, error) {
	url := fmt.Sprintf("%s/3/movie/%d?api_key=%s&append_to_response=release_dates", c.baseURL, tmdbID, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("TMDB API error: %s", resp.Status)
	}

	var movie Movie
	if err := json.NewDecoder(resp.Body).Decode(&movie); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &movie, nil
}
