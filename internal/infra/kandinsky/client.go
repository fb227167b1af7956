// Package kandinsky drives the Fusion Brain async pipeline API (Kandinsky 3.0).
//
// A generation is a submit followed by a bounded status poll:
//
//	GET  key/api/v1/pipelines             resolve the pipeline id (cached)
//	POST key/api/v1/pipeline/run          multipart submit, returns a job uuid
//	GET  key/api/v1/pipeline/status/{id}  poll until DONE or FAIL
//
// Polling waits on a timer inside a select on ctx.Done(), so an abandoned
// request stops polling at the next interval.
package kandinsky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ServiceName is reported alongside every generated image.
const ServiceName = "Kandinsky 3.0"

// Defaults for Config zero values.
const (
	DefaultBaseURL      = "https://api-key.fusionbrain.ai/"
	DefaultStylesURL    = "https://cdn.fusionbrain.ai/static/styles/api"
	DefaultPollInterval = 3 * time.Second
	DefaultMaxAttempts  = 60

	requestTimeout = 10 * time.Second
	submitTimeout  = 30 * time.Second
)

// Config configures a Client. Zero durations and counts take the defaults above.
type Config struct {
	BaseURL      string
	StylesURL    string
	APIKey       string
	SecretKey    string
	PollInterval time.Duration
	MaxAttempts  int
	HTTPClient   *http.Client
	// Events, when set, receives a JobEvent on every job transition.
	Events Publisher
}

// Client talks to one Fusion Brain account. Safe for concurrent use.
type Client struct {
	baseURL      string
	stylesURL    string
	apiKey       string
	secretKey    string
	pollInterval time.Duration
	maxAttempts  int
	httpClient   *http.Client
	events       Publisher

	mu         sync.RWMutex
	pipelineID string
	resolving  singleflight.Group
}

// New creates a Client. It makes no network calls; the pipeline id is
// resolved lazily by the first generation or by Init.
func New(cfg Config) *Client {
	c := &Client{
		baseURL:      cfg.BaseURL,
		stylesURL:    cfg.StylesURL,
		apiKey:       cfg.APIKey,
		secretKey:    cfg.SecretKey,
		pollInterval: cfg.PollInterval,
		maxAttempts:  cfg.MaxAttempts,
		httpClient:   cfg.HTTPClient,
		events:       cfg.Events,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(c.baseURL, "/") {
		c.baseURL += "/"
	}
	if c.stylesURL == "" {
		c.stylesURL = DefaultStylesURL
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return c
}

// Configured reports whether both keys are present.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.secretKey != ""
}

// Init resolves the pipeline id eagerly. Failure is logged, not fatal: the next
// generation retries.
func (c *Client) Init(ctx context.Context) {
	if !c.Configured() {
		return
	}
	if _, err := c.pipeline(ctx); err != nil {
		log.Error().Err(err).Msg("kandinsky init failed")
	}
}

// PipelineResolved reports whether a pipeline id is cached.
func (c *Client) PipelineResolved() bool {
	return c.cachedPipeline() != ""
}

type pipelineInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version any    `json:"version"`
}

// pipeline returns the cached pipeline id, resolving it on first use.
// The lookup runs outside mu so status probes never wait on the network.
func (c *Client) pipeline(ctx context.Context) (string, error) {
	if id := c.cachedPipeline(); id != "" {
		return id, nil
	}
	ch := c.resolving.DoChan("pipeline", func() (any, error) {
		if id := c.cachedPipeline(); id != "" {
			return id, nil
		}
		pipelines, err := c.listPipelines(context.WithoutCancel(ctx))
		if err != nil {
			return "", err
		}
		if len(pipelines) == 0 || pipelines[0].ID == "" {
			return "", errors.New("kandinsky: no pipelines available")
		}
		c.mu.Lock()
		c.pipelineID = pipelines[0].ID
		c.mu.Unlock()
		log.Info().Str("pipeline", pipelines[0].Name).Interface("version", pipelines[0].Version).Msg("kandinsky pipeline resolved")
		return pipelines[0].ID, nil
	})
	select {
	case <-ctx.Done():
		return "", errors.Wrap(ctx.Err(), "kandinsky pipelines")
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) cachedPipeline() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pipelineID
}

// listPipelines is shared by resolution and the availability probe.
// A non-200 answer comes back as *statusError.
func (c *Client) listPipelines(ctx context.Context) ([]pipelineInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	resp, err := c.do(ctx, http.MethodGet, "key/api/v1/pipelines", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{op: "pipelines", code: resp.StatusCode}
	}
	var out []pipelineInfo
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "kandinsky pipelines: decode response")
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrapf(err, "kandinsky %s: build request", path)
	}
	req.Header.Set("X-Key", "Key "+c.apiKey)
	req.Header.Set("X-Secret", "Secret "+c.secretKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "kandinsky %s", path)
	}
	return resp, nil
}

type statusError struct {
	op   string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("kandinsky %s: status %d", e.op, e.code)
}
