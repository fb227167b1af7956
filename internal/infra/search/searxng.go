package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultSearXNGInstances are public instances tried in order.
var DefaultSearXNGInstances = []string{
	"https://searx.be",
	"https://search.bus-hit.me",
	"https://searx.tiekoetter.com",
}

// SearXNG queries the JSON API of one or more SearXNG metasearch instances.
type SearXNG struct {
	instances  []string
	httpClient *http.Client
}

// NewSearXNG creates a provider. A nil httpClient gets DefaultTimeout.
func NewSearXNG(instances []string, httpClient *http.Client) *SearXNG {
	trimmed := make([]string, 0, len(instances))
	for _, in := range instances {
		if in = strings.TrimRight(strings.TrimSpace(in), "/"); in != "" {
			trimmed = append(trimmed, in)
		}
	}
	return &SearXNG{instances: trimmed, httpClient: newHTTPClient(httpClient)}
}

// Name implements Provider.
func (s *SearXNG) Name() string { return "SearXNG" }

type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		URL     string `json:"url"`
	} `json:"results"`
}

// Search tries each instance until one returns results. Instance failures are
// logged at debug level and skipped.
func (s *SearXNG) Search(ctx context.Context, query string) (string, error) {
	for _, instance := range s.instances {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		results, err := s.query(ctx, instance, query)
		if err != nil {
			log.Debug().Err(err).Str("instance", instance).Msg("searxng instance unavailable")
			continue
		}
		if bundle := formatBundle("SearXNG search results", results); bundle != "" {
			return bundle, nil
		}
	}
	return "", nil
}

func (s *SearXNG) query(ctx context.Context, instance, query string) ([]Result, error) {
	params := url.Values{
		"q":          {query},
		"format":     {"json"},
		"categories": {"general"},
		"safesearch": {"0"},
		"language":   {"auto"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, instance+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "searxng: build request")
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "searxng")
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("searxng: status %d", resp.StatusCode)
	}

	var out searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "searxng: decode response")
	}
	results := make([]Result, 0, len(out.Results))
	for _, r := range out.Results {
		results = append(results, Result{Title: r.Title, Snippet: r.Content, URL: r.URL})
	}
	return results, nil
}
