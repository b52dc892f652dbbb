package council

import (
	"context"
	"errors"
	"sync"

	"github.com/zoobzio/zyn"
)

// Provider defines the interface for LLM backends.
// This matches zyn.Provider interface for compatibility, so any
// zyn-compatible backend can serve a council member.
type Provider interface {
	Call(ctx context.Context, messages []zyn.Message, temperature float32) (*zyn.ProviderResponse, error)
	Name() string
}

// Context key for provider.
type providerKeyType struct{}

var providerKey = providerKeyType{}

// Global provider fallback.
var (
	globalProvider   Provider
	globalProviderMu sync.RWMutex
)

// ErrNoProvider is returned when no provider can be resolved for a
// member call.
var ErrNoProvider = errors.New("no provider configured: register per member, or set via context or global")

// SetProvider sets the global fallback provider.
// Members without an explicit gateway binding use it when the context
// carries no provider either.
func SetProvider(p Provider) {
	globalProviderMu.Lock()
	defer globalProviderMu.Unlock()
	globalProvider = p
}

// GetProvider returns the global provider, if set.
func GetProvider() Provider {
	globalProviderMu.RLock()
	defer globalProviderMu.RUnlock()
	return globalProvider
}

// WithProvider adds a provider to the context. Calls made under this
// context prefer it over the global fallback.
func WithProvider(ctx context.Context, p Provider) context.Context {
	return context.WithValue(ctx, providerKey, p)
}

// ProviderFromContext retrieves the provider from context, if present.
func ProviderFromContext(ctx context.Context) (Provider, bool) {
	p, ok := ctx.Value(providerKey).(Provider)
	return p, ok
}

// ResolveProvider determines which provider serves a call based on
// resolution order:
// 1. Member-level provider (passed as argument)
// 2. Context provider
// 3. Global provider
// 4. Error if none found.
func ResolveProvider(ctx context.Context, memberProvider Provider) (Provider, error) {
	// 1. Member-level binding takes highest priority
	if memberProvider != nil {
		return memberProvider, nil
	}

	// 2. Context provider
	if p, ok := ProviderFromContext(ctx); ok {
		return p, nil
	}

	// 3. Global provider
	globalProviderMu.RLock()
	p := globalProvider
	globalProviderMu.RUnlock()

	if p != nil {
		return p, nil
	}

	// 4. No provider found
	return nil, ErrNoProvider
}
