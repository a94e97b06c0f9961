// Package providers implements the provider adapters behind the LLM client:
// OpenAI chat completions, Gemini generate-content, and a scripted mock for
// tests and offline runs.
package providers

import (
	"fmt"

	llmerrors "github.com/jatlaoui/ines/internal/llm/errors"
	"github.com/jatlaoui/ines/internal/llm/transport"
)

// Router dispatches requests to adapters by provider name.
type Router struct {
	adapters map[string]transport.Adapter
}

// NewRouter builds a router over the given adapters, keyed by Name.
func NewRouter(adapters ...transport.Adapter) *Router {
	m := make(map[string]transport.Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Router{adapters: m}
}

// Pick returns the adapter for the provider. Model validation is the
// adapter's concern; unknown providers fail here.
func (r *Router) Pick(provider, _ string) (transport.Adapter, error) {
	a, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", llmerrors.ErrUnknownProvider, provider)
	}
	return a, nil
}
