// Package config provides application-wide configuration.
// Values resolve in order: built-in defaults, optional YAML file, environment variables.
// All fields have safe defaults so the binary runs locally without any env setup.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds runtime configuration for askbot.
type Config struct {
	// HTTP
	Host string // HOST — default: "0.0.0.0"
	Port int    // PORT — default: 5000

	// LLM
	LLMProvider         string // LLM_PROVIDER — "gigachat" (default) | "ollama"
	GigaChatAPIKey      string // GIGACHAT_API_KEY — base64 client credentials, no default
	GigaChatScope       string // GIGACHAT_SCOPE — default: "GIGACHAT_API_PERS"
	GigaChatAuthURL     string // GIGACHAT_AUTH_URL
	GigaChatBaseURL     string // GIGACHAT_BASE_URL
	GigaChatModel       string // GIGACHAT_MODEL — default: "GigaChat"
	GigaChatInsecureTLS bool   // GIGACHAT_INSECURE_TLS — skip TLS verification (Russian CA chain)
	OllamaBaseURL       string // OLLAMA_BASE_URL — default: "http://localhost:11434"
	OllamaChatModel     string // OLLAMA_CHAT_MODEL — default: "llama3.2:3b"

	// Image generation
	KandinskyAPIKey       string        // KANDINSKY_API_KEY
	KandinskySecretKey    string        // KANDINSKY_SECRET_KEY
	KandinskyBaseURL      string        // KANDINSKY_BASE_URL
	KandinskyStylesURL    string        // KANDINSKY_STYLES_URL
	KandinskyPollInterval time.Duration // KANDINSKY_POLL_INTERVAL — default: 3s
	KandinskyMaxAttempts  int           // KANDINSKY_MAX_ATTEMPTS — default: 60

	// Search
	SearchDelay       time.Duration // SEARCH_DELAY — pause before the second completion, default: 2s
	SearXNGInstances  []string      // SEARXNG_INSTANCES — comma separated
	DuckDuckGoAPIURL  string        // DUCKDUCKGO_API_URL
	DuckDuckGoHTMLURL string        // DUCKDUCKGO_HTML_URL

	// Session
	SessionSecret string        // SESSION_SECRET
	SessionTTL    time.Duration // SESSION_TTL — default: 24h

	// Misc
	PolicyFile string // POLICY_FILE — optional YAML with prompts and translation table
	LogLevel   string // LOG_LEVEL — default: "info"
	LogFormat  string // LOG_FORMAT — "json" (default) | "console"
}

const (
	envKeyHost                  = "HOST"
	envKeyPort                  = "PORT"
	envKeyLLMProvider           = "LLM_PROVIDER"
	envKeyGigaChatAPIKey        = "GIGACHAT_API_KEY"
	envKeyGigaChatScope         = "GIGACHAT_SCOPE"
	envKeyGigaChatAuthURL       = "GIGACHAT_AUTH_URL"
	envKeyGigaChatBaseURL       = "GIGACHAT_BASE_URL"
	envKeyGigaChatModel         = "GIGACHAT_MODEL"
	envKeyGigaChatInsecureTLS   = "GIGACHAT_INSECURE_TLS"
	envKeyOllamaBaseURL         = "OLLAMA_BASE_URL"
	envKeyOllamaChatModel       = "OLLAMA_CHAT_MODEL"
	envKeyKandinskyAPIKey       = "KANDINSKY_API_KEY"
	envKeyKandinskySecretKey    = "KANDINSKY_SECRET_KEY"
	envKeyKandinskyBaseURL      = "KANDINSKY_BASE_URL"
	envKeyKandinskyStylesURL    = "KANDINSKY_STYLES_URL"
	envKeyKandinskyPollInterval = "KANDINSKY_POLL_INTERVAL"
	envKeyKandinskyMaxAttempts  = "KANDINSKY_MAX_ATTEMPTS"
	envKeySearchDelay           = "SEARCH_DELAY"
	envKeySearXNGInstances      = "SEARXNG_INSTANCES"
	envKeyDuckDuckGoAPIURL      = "DUCKDUCKGO_API_URL"
	envKeyDuckDuckGoHTMLURL     = "DUCKDUCKGO_HTML_URL"
	envKeySessionSecret         = "SESSION_SECRET"
	envKeySessionTTL            = "SESSION_TTL"
	envKeyPolicyFile            = "POLICY_FILE"
	envKeyLogLevel              = "LOG_LEVEL"
	envKeyLogFormat             = "LOG_FORMAT"
)

var defaults = map[string]any{
	envKeyHost:                  "0.0.0.0",
	envKeyPort:                  5000,
	envKeyLLMProvider:           "gigachat",
	envKeyGigaChatScope:         "GIGACHAT_API_PERS",
	envKeyGigaChatAuthURL:       "https://ngw.devices.sberbank.ru:9443/api/v2/oauth",
	envKeyGigaChatBaseURL:       "https://gigachat.devices.sberbank.ru/api/v1",
	envKeyGigaChatModel:         "GigaChat",
	envKeyGigaChatInsecureTLS:   false,
	envKeyOllamaBaseURL:         "http://localhost:11434",
	envKeyOllamaChatModel:       "llama3.2:3b",
	envKeyKandinskyBaseURL:      "https://api-key.fusionbrain.ai/",
	envKeyKandinskyStylesURL:    "https://cdn.fusionbrain.ai/static/styles/api",
	envKeyKandinskyPollInterval: 3 * time.Second,
	envKeyKandinskyMaxAttempts:  60,
	envKeySearchDelay:           2 * time.Second,
	envKeySearXNGInstances:      "https://searx.be,https://search.bus-hit.me,https://searx.tiekoetter.com",
	envKeyDuckDuckGoAPIURL:      "https://api.duckduckgo.com/",
	envKeyDuckDuckGoHTMLURL:     "https://html.duckduckgo.com/html/",
	envKeySessionSecret:         "askbot-dev-session-secret",
	envKeySessionTTL:            24 * time.Hour,
	envKeyLogLevel:              "info",
	envKeyLogFormat:             "json",
}

// Load reads configuration from environment variables, applying defaults for missing values.
func Load() Config {
	cfg, _ := LoadFile("")
	return cfg
}

// LoadFile layers an optional YAML config file between the defaults and the environment.
// Keys in the file use the same names as the environment variables.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
	// Empty env vars fall back to defaults, matching envOr semantics.
	v.AllowEmptyEnv(false)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return fromViper(v), errors.Wrapf(err, "read config file %s", path)
		}
	}
	return fromViper(v), nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Host:                  v.GetString(envKeyHost),
		Port:                  v.GetInt(envKeyPort),
		LLMProvider:           strings.ToLower(v.GetString(envKeyLLMProvider)),
		GigaChatAPIKey:        v.GetString(envKeyGigaChatAPIKey),
		GigaChatScope:         v.GetString(envKeyGigaChatScope),
		GigaChatAuthURL:       v.GetString(envKeyGigaChatAuthURL),
		GigaChatBaseURL:       strings.TrimRight(v.GetString(envKeyGigaChatBaseURL), "/"),
		GigaChatModel:         v.GetString(envKeyGigaChatModel),
		GigaChatInsecureTLS:   v.GetBool(envKeyGigaChatInsecureTLS),
		OllamaBaseURL:         strings.TrimRight(v.GetString(envKeyOllamaBaseURL), "/"),
		OllamaChatModel:       v.GetString(envKeyOllamaChatModel),
		KandinskyAPIKey:       v.GetString(envKeyKandinskyAPIKey),
		KandinskySecretKey:    v.GetString(envKeyKandinskySecretKey),
		KandinskyBaseURL:      v.GetString(envKeyKandinskyBaseURL),
		KandinskyStylesURL:    v.GetString(envKeyKandinskyStylesURL),
		KandinskyPollInterval: v.GetDuration(envKeyKandinskyPollInterval),
		KandinskyMaxAttempts:  v.GetInt(envKeyKandinskyMaxAttempts),
		SearchDelay:           v.GetDuration(envKeySearchDelay),
		SearXNGInstances:      splitList(v.GetString(envKeySearXNGInstances)),
		DuckDuckGoAPIURL:      v.GetString(envKeyDuckDuckGoAPIURL),
		DuckDuckGoHTMLURL:     v.GetString(envKeyDuckDuckGoHTMLURL),
		SessionSecret:         v.GetString(envKeySessionSecret),
		SessionTTL:            v.GetDuration(envKeySessionTTL),
		PolicyFile:            v.GetString(envKeyPolicyFile),
		LogLevel:              v.GetString(envKeyLogLevel),
		LogFormat:             v.GetString(envKeyLogFormat),
	}
}

// KandinskyConfigured reports whether both Fusion Brain keys are present.
func (c Config) KandinskyConfigured() bool {
	return c.KandinskyAPIKey != "" && c.KandinskySecretKey != ""
}

// splitList splits a comma separated value, dropping blanks.
func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
