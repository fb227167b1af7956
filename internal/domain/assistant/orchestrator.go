// Package assistant decides, per message, whether to answer directly, search
// the web and answer again, or generate an image.
//
// Intent comes only from in-band markers in the model's own output; there is no
// separate classifier.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/matiasleandrokruk/askbot/internal/infra/config"
	"github.com/matiasleandrokruk/askbot/internal/infra/kandinsky"
	"github.com/matiasleandrokruk/askbot/internal/infra/llm"
)

// Completion parameters.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 512
	DefaultSearchDelay = 2 * time.Second
)

// Searcher returns a formatted result bundle, or "" when search is unavailable.
type Searcher interface {
	Search(ctx context.Context, query string) string
}

// ImageGenerator submits an image job and waits for it.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req kandinsky.Request) (*kandinsky.Image, error)
}

// Orchestrator runs the response pipeline. Safe for concurrent use.
type Orchestrator struct {
	provider    llm.LLMProvider
	search      Searcher
	markers     Markers
	prompts     Prompts
	searchDelay time.Duration
	temperature float32
	maxTokens   int
	wait        func(ctx context.Context, d time.Duration) error
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithSearchDelay sets the pause between a search and the second completion.
func WithSearchDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.searchDelay = d }
}

// WithPolicy overrides markers and prompts with the non-empty fields of p.
func WithPolicy(p config.Policy) Option {
	return func(o *Orchestrator) {
		if p.SearchMarker != "" {
			o.markers.Search = p.SearchMarker
		}
		if p.ImageMarker != "" {
			o.markers.Image = p.ImageMarker
		}
		if p.SystemPrompt != "" {
			o.prompts.System = p.SystemPrompt
		}
		if p.SearchSystemPrompt != "" {
			o.prompts.SearchSystem = p.SearchSystemPrompt
		}
		if p.SearchUserTemplate != "" {
			o.prompts.SearchUserTemplate = p.SearchUserTemplate
		}
	}
}

// NewOrchestrator creates an Orchestrator. search may be nil, in which case
// every search request ends in the "search failed" reply.
func NewOrchestrator(provider llm.LLMProvider, search Searcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:    provider,
		search:      search,
		markers:     DefaultMarkers(),
		prompts:     DefaultPrompts(),
		searchDelay: DefaultSearchDelay,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		wait:        sleepCtx,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GenerateResponse answers userMessage given the prior history (oldest first,
// not including userMessage). images may be nil to disable image generation.
//
// The error return is reserved for validation failures; every other failure
// comes back as a TextReply with Failure set.
func (o *Orchestrator) GenerateResponse(ctx context.Context, userMessage string, history []Turn, images ImageGenerator) (Reply, error) {
	if strings.TrimSpace(userMessage) == "" {
		return nil, ErrEmptyMessage
	}
	if e := o.authorize(ctx); e != nil {
		return failure(e), nil
	}

	first, e := o.complete(ctx, userMessage, history, "")
	if e != nil {
		return failure(e), nil
	}

	if o.markers.HasSearch(first) {
		query := o.markers.SearchQuery(first)
		if query == "" {
			query = userMessage
		}
		log.Info().Str("query", query).Msg("model requested web search")

		results := ""
		if o.search != nil {
			results = o.search.Search(ctx, query)
		}
		if results == "" {
			return failure(&Error{Kind: KindSearchUnavailable, Reason: msgSearchFailed}), nil
		}
		if err := o.wait(ctx, o.searchDelay); err != nil {
			return failure(&Error{Kind: KindProvider, Reason: msgProviderFailed, Err: err}), nil
		}

		second, e := o.complete(ctx, userMessage, history, results)
		if e != nil {
			return failure(e), nil
		}
		if images != nil && o.markers.HasImage(second) {
			return o.generateImage(ctx, second, userMessage, images), nil
		}
		return TextReply{Text: second}, nil
	}

	if images != nil && o.markers.HasImage(first) {
		return o.generateImage(ctx, first, userMessage, images), nil
	}
	return TextReply{Text: first}, nil
}

// authorize runs the token check for providers that need one.
func (o *Orchestrator) authorize(ctx context.Context) *Error {
	auth, ok := o.provider.(llm.Authenticator)
	if !ok {
		return nil
	}
	name := o.provider.ModelInfo().ID
	if !auth.Configured() {
		return &Error{Kind: KindAuth, Reason: fmt.Sprintf(msgNotConfigured, name), Err: llm.ErrNotConfigured}
	}
	if !auth.EnsureValidToken(ctx) {
		return &Error{Kind: KindAuth, Reason: fmt.Sprintf(msgAuthFailed, name)}
	}
	return nil
}

// complete runs one chat completion and classifies any failure.
func (o *Orchestrator) complete(ctx context.Context, userMessage string, history []Turn, searchResults string) (string, *Error) {
	resp, err := o.provider.ChatCompletion(ctx, llm.ChatRequest{
		Messages:    buildMessages(o.prompts, o.markers, userMessage, history, searchResults),
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	if err == nil {
		return resp.Content, nil
	}

	name := o.provider.ModelInfo().ID
	var se *llm.StatusError
	switch {
	case errors.As(err, &se):
		log.Error().Int("status", se.Code).Str("provider", se.Provider).Msg("chat completion rejected")
		return "", &Error{Kind: KindProvider, Reason: fmt.Sprintf(msgProviderStatus, name, se.Code), Err: err}
	case errors.Is(err, llm.ErrEmptyCompletion):
		return "", &Error{Kind: KindProvider, Reason: fmt.Sprintf(msgProviderEmpty, name), Err: err}
	case errors.Is(err, llm.ErrNotConfigured):
		return "", &Error{Kind: KindAuth, Reason: fmt.Sprintf(msgNotConfigured, name), Err: err}
	default:
		log.Error().Err(err).Msg("chat completion failed")
		return "", &Error{Kind: KindProvider, Reason: msgProviderFailed, Err: err}
	}
}

func (o *Orchestrator) generateImage(ctx context.Context, response, userMessage string, images ImageGenerator) Reply {
	prompt := o.markers.ImageDescription(response, userMessage)
	log.Info().Str("prompt", prompt).Msg("model requested image")

	img, err := images.GenerateImage(ctx, kandinsky.Request{Prompt: prompt})
	if err != nil {
		log.Warn().Err(err).Msg("image generation failed")
		return failure(&Error{Kind: KindImageGeneration, Reason: fmt.Sprintf(msgImageFailed, err.Error()), Err: err})
	}
	return ImageReply{
		Text:    fmt.Sprintf(msgImageDone, img.Prompt),
		Image:   img.Data,
		Prompt:  img.Prompt,
		Service: img.Service,
	}
}

func failure(e *Error) TextReply {
	return TextReply{Text: e.Reason, Failure: e}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
