// Package llm — GigaChat HTTP adapter.
// Endpoints used:
//   - POST {base}/chat/completions — non-streaming chat completion
//   - GET  {base}/models           — health check
//
// Every call carries a bearer token from TokenManager.
package llm

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	mimeJSON          = "application/json"
	headerContentType = "Content-Type"

	providerGigaChat = "gigachat"
)

// ErrEmptyCompletion is returned when the provider answers 200 without choices.
var ErrEmptyCompletion = errors.New("completion returned no choices")

// NewHTTPClient builds the client shared by the GigaChat adapter and its TokenManager.
// insecureTLS disables certificate verification for hosts signed by the Russian
// national CA, which is missing from most trust stores.
func NewHTTPClient(timeout time.Duration, insecureTLS bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// GigaChatProvider implements LLMProvider and Authenticator against the GigaChat REST API.
type GigaChatProvider struct {
	baseURL    string
	model      string
	tokens     *TokenManager
	httpClient *http.Client
}

// NewGigaChatProvider creates a provider. baseURL has no trailing slash.
func NewGigaChatProvider(baseURL, model string, tokens *TokenManager, httpClient *http.Client) *GigaChatProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &GigaChatProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		tokens:     tokens,
		httpClient: httpClient,
	}
}

// ─── internal GigaChat JSON types ────────────────────────────────────────────

type gigaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type gigaChatRequest struct {
	Model          string            `json:"model"`
	Messages       []gigaChatMessage `json:"messages"`
	Temperature    float32           `json:"temperature,omitempty"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	N              int               `json:"n"`
	Stream         bool              `json:"stream"`
	UpdateInterval int               `json:"update_interval"`
}

type gigaChatChoice struct {
	Message      gigaChatMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type gigaChatResponse struct {
	Choices []gigaChatChoice `json:"choices"`
	Usage   struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// ─── Authenticator ──────────────────────────────────────────────────────────

// Configured reports whether an API key is present.
func (p *GigaChatProvider) Configured() bool { return p.tokens.Configured() }

// EnsureValidToken delegates to the TokenManager.
func (p *GigaChatProvider) EnsureValidToken(ctx context.Context) bool {
	return p.tokens.EnsureValidToken(ctx)
}

// HasToken delegates to the TokenManager.
func (p *GigaChatProvider) HasToken() bool { return p.tokens.HasToken() }

// ─── LLMProvider implementation ─────────────────────────────────────────────

// ChatCompletion performs a non-streaming chat via POST /chat/completions.
func (p *GigaChatProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.model
	}
	msgs := make([]gigaChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = gigaChatMessage(m)
	}
	body, err := json.Marshal(gigaChatRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		N:           1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "gigachat chat: encode request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "gigachat chat: build request")
	}
	httpReq.Header.Set(headerContentType, mimeJSON)
	httpReq.Header.Set("Accept", mimeJSON)
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "gigachat chat")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Error().Int("status", resp.StatusCode).Str("body", string(snippet)).Msg("gigachat chat failed")
		if resp.StatusCode == http.StatusUnauthorized {
			p.tokens.Invalidate()
		}
		return nil, &StatusError{Provider: providerGigaChat, Op: "chat", Code: resp.StatusCode}
	}

	var out gigaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "gigachat chat: decode response")
	}
	if len(out.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}
	return &ChatResponse{
		Content:    strings.TrimSpace(out.Choices[0].Message.Content),
		StopReason: out.Choices[0].FinishReason,
		Tokens:     out.Usage.TotalTokens,
	}, nil
}

// ModelInfo returns static metadata for this provider/model.
func (p *GigaChatProvider) ModelInfo() ModelMeta {
	return ModelMeta{
		ID:        p.model,
		Provider:  providerGigaChat,
		Version:   "v1",
		MaxTokens: 32768,
	}
}

// HealthCheck lists models with the current token.
func (p *GigaChatProvider) HealthCheck(ctx context.Context) error {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return errors.Wrap(err, "gigachat healthcheck")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return errors.Wrap(err, "gigachat healthcheck: build request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "gigachat healthcheck")
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Provider: providerGigaChat, Op: "healthcheck", Code: resp.StatusCode}
	}
	return nil
}
