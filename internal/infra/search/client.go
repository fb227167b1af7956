// Package search queries public web-search backends and folds their answers
// into a single plain-text bundle that can be injected into a model prompt.
//
// Providers are tried in a fixed priority order. A provider that fails or finds
// nothing is skipped; the first one with at least one result wins.
package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds each provider round-trip.
const DefaultTimeout = 10 * time.Second

// browserUserAgent is sent with every request; several SearXNG instances
// reject the Go default agent.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Provider is one search backend. An empty bundle with a nil error means
// "nothing found here, try the next provider".
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) (string, error)
}

// Client runs a query through its providers in order.
type Client struct {
	providers    []Provider
	translations []Phrase
}

// Option customizes a Client.
type Option func(*Client)

// WithTranslations replaces the built-in phrase table.
func WithTranslations(table []Phrase) Option {
	return func(c *Client) {
		if len(table) > 0 {
			c.translations = table
		}
	}
}

// NewClient creates a client over providers, in priority order.
// A client without providers is disabled and always returns "".
func NewClient(providers []Provider, opts ...Option) *Client {
	c := &Client{providers: providers, translations: DefaultTranslations}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether at least one provider is configured.
func (c *Client) Enabled() bool { return c != nil && len(c.providers) > 0 }

// Search returns a formatted bundle for query.
// "" means the client is disabled or the query is blank. When every provider
// comes back empty the result is a user-facing "nothing found" text instead.
// Provider errors are logged and never returned.
func (c *Client) Search(ctx context.Context, query string) string {
	if !c.Enabled() || strings.TrimSpace(query) == "" {
		return ""
	}
	translated := Translate(query, c.translations)
	if translated != query {
		log.Info().Str("query", query).Str("translated", translated).Msg("search query translated")
	}

	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
		if ctx.Err() != nil {
			break
		}
		bundle, err := p.Search(ctx, translated)
		if err != nil {
			log.Warn().Err(err).Str("provider", p.Name()).Msg("search provider failed")
			continue
		}
		if bundle != "" {
			log.Info().Str("provider", p.Name()).Msg("search provider answered")
			return bundle
		}
		log.Debug().Str("provider", p.Name()).Msg("search provider found nothing")
	}
	return NotFoundMessage(query, names)
}

// NotFoundMessage is the text returned when every provider came back empty.
func NotFoundMessage(query string, providers []string) string {
	return fmt.Sprintf("🔍 **Web search**\n\nNo current information found for '%s'. Sources checked: %s.",
		query, strings.Join(providers, ", "))
}

func newHTTPClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: DefaultTimeout}
}
