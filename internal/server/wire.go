package server

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/matiasleandrokruk/askbot/internal/api"
	"github.com/matiasleandrokruk/askbot/internal/domain/assistant"
	"github.com/matiasleandrokruk/askbot/internal/domain/session"
	"github.com/matiasleandrokruk/askbot/internal/infra/config"
	"github.com/matiasleandrokruk/askbot/internal/infra/eventbus"
	"github.com/matiasleandrokruk/askbot/internal/infra/kandinsky"
	"github.com/matiasleandrokruk/askbot/internal/infra/llm"
	"github.com/matiasleandrokruk/askbot/internal/infra/search"
	pkgauth "github.com/matiasleandrokruk/askbot/pkg/auth"
)

// Provider keys accepted by LLM_PROVIDER.
const (
	ProviderGigaChat = "gigachat"
	ProviderOllama   = "ollama"
)

const llmTimeout = 60 * time.Second

// Wire builds every service from configuration. It makes no network calls.
func Wire(cfg config.Config, policy config.Policy, version string) (api.Deps, error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return api.Deps{}, err
	}

	signer, err := pkgauth.NewSigner(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return api.Deps{}, errors.Wrap(err, "session signer")
	}

	searchClient := newSearchClient(cfg, policy)
	orchestrator := assistant.NewOrchestrator(provider, searchClient,
		assistant.WithPolicy(policy),
		assistant.WithSearchDelay(cfg.SearchDelay),
	)

	deps := api.Deps{
		Orchestrator: orchestrator,
		Sessions:     session.NewStore(cfg.SessionTTL),
		Search:       searchClient,
		Signer:       signer,
		Version:      version,
	}

	if cfg.KandinskyConfigured() {
		bus := eventbus.New()
		deps.Jobs = kandinsky.NewMonitor(bus)
		deps.Images = kandinsky.New(kandinsky.Config{
			BaseURL:      cfg.KandinskyBaseURL,
			StylesURL:    cfg.KandinskyStylesURL,
			APIKey:       cfg.KandinskyAPIKey,
			SecretKey:    cfg.KandinskySecretKey,
			PollInterval: cfg.KandinskyPollInterval,
			MaxAttempts:  cfg.KandinskyMaxAttempts,
			Events:       bus,
		})
		log.Info().Msg("kandinsky configured, image generation enabled")
	} else {
		log.Warn().Msg("kandinsky keys not set, image generation disabled")
	}

	return deps, nil
}

// newProvider registers every adapter and resolves the configured one.
func newProvider(cfg config.Config) (llm.LLMProvider, error) {
	httpClient := llm.NewHTTPClient(llmTimeout, cfg.GigaChatInsecureTLS)
	tokens := llm.NewTokenManager(cfg.GigaChatAuthURL, cfg.GigaChatAPIKey, cfg.GigaChatScope, httpClient)

	router := llm.NewRouter(nil, cfg.LLMProvider)
	router.Register(ProviderGigaChat, llm.NewGigaChatProvider(cfg.GigaChatBaseURL, cfg.GigaChatModel, tokens, httpClient))
	router.Register(ProviderOllama, llm.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaChatModel))

	p, err := router.Route(context.Background())
	if err != nil {
		return nil, err
	}
	if auth, ok := p.(llm.Authenticator); ok && !auth.Configured() {
		log.Warn().Str("provider", cfg.LLMProvider).Msg("api key not set, chat will report the provider as not configured")
	}
	return p, nil
}

// newSearchClient builds SearXNG then DuckDuckGo, in that priority.
func newSearchClient(cfg config.Config, policy config.Policy) *search.Client {
	providers := []search.Provider{
		search.NewSearXNG(cfg.SearXNGInstances, nil),
		search.NewDuckDuckGo(cfg.DuckDuckGoAPIURL, cfg.DuckDuckGoHTMLURL, nil),
	}
	return search.NewClient(providers, search.WithTranslations(phrases(policy.Translations)))
}

func phrases(in []config.Phrase) []search.Phrase {
	if len(in) == 0 {
		return nil
	}
	out := make([]search.Phrase, len(in))
	for i, p := range in {
		out[i] = search.Phrase{From: p.From, To: p.To}
	}
	return out
}
