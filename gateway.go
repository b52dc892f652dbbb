package council

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/zoobzio/zyn"
)

// Gateway sends one prompt to one member's backend and returns the raw
// reply text. Deadlines arrive through ctx; the orchestrator owns the
// per-call timeout and cancels the context when it expires.
//
// Implementations should return *BackendError so failures classify
// cleanly; anything else is classified as unavailable.
type Gateway interface {
	Invoke(ctx context.Context, member, prompt string) (string, error)
}

// Context key for a per-call temperature override.
type temperatureKeyType struct{}

var temperatureKey = temperatureKeyType{}

// WithTemperature adds a temperature override to the context. The
// council uses this to run synthesis colder than collection without the
// Gateway interface growing a model-tuning surface.
func WithTemperature(ctx context.Context, temperature float32) context.Context {
	return context.WithValue(ctx, temperatureKey, temperature)
}

// TemperatureFromContext retrieves the temperature override, if present.
func TemperatureFromContext(ctx context.Context) (float32, bool) {
	t, ok := ctx.Value(temperatureKey).(float32)
	return t, ok
}

// ProviderGateway routes each member to a zyn-compatible Provider. A
// member without an explicit binding falls back through the provider
// resolution chain (context, then global), so a single provider can
// serve a whole roster in tests.
type ProviderGateway struct {
	providers   map[string]Provider
	temperature float32

	mu sync.RWMutex
}

// NewProviderGateway creates an empty gateway with the default
// temperature.
func NewProviderGateway() *ProviderGateway {
	return &ProviderGateway{
		providers:   make(map[string]Provider),
		temperature: DefaultTemperature,
	}
}

// Register binds a member to a provider, replacing any previous binding.
func (g *ProviderGateway) Register(member string, p Provider) *ProviderGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.providers[member] = p
	return g
}

// WithTemperature sets the temperature used when the context carries no
// override.
func (g *ProviderGateway) WithTemperature(temperature float32) *ProviderGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.temperature = temperature
	return g
}

// Invoke implements Gateway. The prompt goes out as a single user
// message; conversation state never spans calls, so each invocation is
// independent by construction.
func (g *ProviderGateway) Invoke(ctx context.Context, member, prompt string) (string, error) {
	g.mu.RLock()
	bound := g.providers[member]
	temperature := g.temperature
	g.mu.RUnlock()

	provider, err := ResolveProvider(ctx, bound)
	if err != nil {
		return "", &BackendError{Member: member, Kind: BackendUnavailable, Err: err}
	}

	if t, ok := TemperatureFromContext(ctx); ok {
		temperature = t
	}

	resp, err := provider.Call(ctx, []zyn.Message{{Role: "user", Content: prompt}}, temperature)
	if err != nil {
		return "", classifyBackendError(member, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", &BackendError{Member: member, Kind: BackendMalformed, Err: errors.New("empty completion")}
	}
	return resp.Content, nil
}

var _ Gateway = (*ProviderGateway)(nil)

// classifyBackendError folds an arbitrary call error into a
// *BackendError for the given member. Existing backend errors pass
// through untouched.
func classifyBackendError(member string, err error) *BackendError {
	var be *BackendError
	if errors.As(err, &be) {
		return be
	}

	kind := BackendUnavailable
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = BackendTimeout
	default:
		var se *StatusError
		if errors.As(err, &se) {
			switch {
			case se.Code == 429:
				kind = BackendRateLimited
			case se.Code >= 500:
				kind = BackendUnavailable
			default:
				kind = BackendMalformed
			}
		}
	}
	return &BackendError{Member: member, Kind: kind, Err: err}
}

