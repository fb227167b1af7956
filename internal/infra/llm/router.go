// Package llm — provider router.
// Router holds every constructed provider and resolves the one named by LLM_PROVIDER.
package llm

import (
	"context"
	"sort"

	"github.com/pkg/errors"
)

// Router selects a LLMProvider by key.
type Router struct {
	providers       map[string]LLMProvider
	defaultProvider string
}

// NewRouter creates a Router with an initial set of providers and a default key.
func NewRouter(providers map[string]LLMProvider, defaultProvider string) *Router {
	ps := make(map[string]LLMProvider, len(providers))
	for k, v := range providers {
		ps[k] = v
	}
	return &Router{providers: ps, defaultProvider: defaultProvider}
}

// Register adds (or replaces) a provider under the given key.
func (r *Router) Register(key string, p LLMProvider) {
	r.providers[key] = p
}

// Route returns the default provider.
// Returns an error if the default provider is not registered.
func (r *Router) Route(_ context.Context) (LLMProvider, error) {
	p, ok := r.providers[r.defaultProvider]
	if !ok {
		return nil, errors.Errorf("llm router: provider %q not registered (available: %v)", r.defaultProvider, r.Keys())
	}
	return p, nil
}

// Keys returns the registered provider names, sorted.
func (r *Router) Keys() []string {
	out := make([]string, 0, len(r.providers))
	for k := range r.providers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
