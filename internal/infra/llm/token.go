// Package llm — GigaChat credential exchange.
// TokenManager owns the single cached access token for the process. Reads are
// lock-protected; refreshes go through singleflight so concurrent callers share
// one exchange. Last writer wins, refreshes are idempotent.
package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// TokenTTL is how long a token is cached. The provider issues 30 minute tokens;
// the 5 minute margin keeps an in-flight request from carrying an expired one.
const TokenTTL = 25 * time.Minute

// oauthTimeout bounds one shared exchange, independent of any caller.
const oauthTimeout = 30 * time.Second

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("gigachat: api key not configured")

type accessToken struct {
	value     string
	expiresAt time.Time
}

// TokenManager acquires and caches GigaChat bearer tokens.
type TokenManager struct {
	authURL    string
	apiKey     string
	scope      string
	httpClient *http.Client
	ttl        time.Duration
	now        func() time.Time

	mu    sync.RWMutex
	token accessToken
	group singleflight.Group
}

// TokenOption customizes a TokenManager.
type TokenOption func(*TokenManager)

// WithClock replaces time.Now (tests).
func WithClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) { m.now = now }
}

// WithTokenTTL overrides the cache lifetime.
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(m *TokenManager) { m.ttl = ttl }
}

// NewTokenManager creates a manager for the given OAuth endpoint.
// apiKey is the base64 "client_id:secret" pair issued by the provider.
func NewTokenManager(authURL, apiKey, scope string, httpClient *http.Client, opts ...TokenOption) *TokenManager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	m := &TokenManager{
		authURL:    authURL,
		apiKey:     apiKey,
		scope:      scope,
		httpClient: httpClient,
		ttl:        TokenTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type oauthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"` // unix milliseconds
}

// Configured reports whether an API key is present.
func (m *TokenManager) Configured() bool {
	return m.apiKey != ""
}

// HasToken reports whether a usable token is cached right now.
func (m *TokenManager) HasToken() bool {
	_, ok := m.cached()
	return ok
}

// EnsureValidToken refreshes the token when it is absent or expired.
// It never returns an error: false means "cannot proceed, surface an auth error".
func (m *TokenManager) EnsureValidToken(ctx context.Context) bool {
	if _, err := m.Token(ctx); err != nil {
		log.Error().Err(err).Msg("gigachat token unavailable")
		return false
	}
	return true
}

// Token returns a valid bearer token, exchanging credentials when needed.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	if !m.Configured() {
		return "", ErrNotConfigured
	}
	if v, ok := m.cached(); ok {
		return v, nil
	}
	// The exchange is shared, so it must outlive the caller that started it.
	ch := m.group.DoChan("token", func() (any, error) {
		// Another caller may have refreshed while we waited.
		if v, ok := m.cached(); ok {
			return v, nil
		}
		exCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), oauthTimeout)
		defer cancel()
		return m.exchange(exCtx)
	})
	select {
	case <-ctx.Done():
		return "", errors.Wrap(ctx.Err(), "gigachat oauth")
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token, forcing an exchange on next use.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	m.token = accessToken{}
	m.mu.Unlock()
}

func (m *TokenManager) cached() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token.value == "" || !m.now().Before(m.token.expiresAt) {
		return "", false
	}
	return m.token.value, true
}

// exchange performs the OAuth call and stores the result.
func (m *TokenManager) exchange(ctx context.Context) (string, error) {
	form := url.Values{"scope": {m.scope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "gigachat oauth: build request")
	}
	req.Header.Set(headerContentType, "application/x-www-form-urlencoded")
	req.Header.Set("Accept", mimeJSON)
	req.Header.Set("RqUID", uuid.NewString())
	req.Header.Set("Authorization", "Basic "+m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "gigachat oauth")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Error().Int("status", resp.StatusCode).Str("body", string(body)).Msg("gigachat oauth rejected")
		return "", &StatusError{Provider: providerGigaChat, Op: "oauth", Code: resp.StatusCode}
	}

	var out oauthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "gigachat oauth: decode response")
	}
	if out.AccessToken == "" {
		return "", errors.New("gigachat oauth: empty access_token")
	}

	now := m.now()
	expiresAt := now.Add(m.ttl)
	if out.ExpiresAt > 0 {
		if provided := time.UnixMilli(out.ExpiresAt); provided.Before(expiresAt) {
			expiresAt = provided
		}
	}

	m.mu.Lock()
	m.token = accessToken{value: out.AccessToken, expiresAt: expiresAt}
	m.mu.Unlock()

	log.Info().Time("expires_at", expiresAt).Msg("gigachat token acquired")
	return out.AccessToken, nil
}
