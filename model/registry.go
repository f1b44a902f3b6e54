package model

import (
	"sort"
	"sync"
)

// Registry maps capabilities to preferred endpoints with fallback chains.
// A Registry is constructed explicitly and passed to the LLM client; there is
// no process-wide instance.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[Capability]*CapabilityConfig
	endpoints    map[string]*EndpointConfig
	defaultModel string
	health       *healthState
}

// CapabilityConfig defines endpoint preferences for a capability.
type CapabilityConfig struct {
	// Preferred lists endpoint names in order of preference.
	Preferred []string `json:"preferred" yaml:"preferred"`

	// Fallback lists backup endpoints tried after all preferred fail.
	Fallback []string `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// EndpointConfig defines an available model endpoint.
type EndpointConfig struct {
	// Provider is the wire adapter name (openai, ollama, anthropic).
	Provider string `json:"provider" yaml:"provider"`

	// URL is the API base URL. Empty uses the provider default.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Model is the model identifier sent to the provider.
	Model string `json:"model" yaml:"model"`

	// MaxTokens caps completion length. Zero uses the provider default.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// NewRegistry creates a registry. defaultModel is the endpoint used for
// capabilities with no explicit configuration; it may be empty.
func NewRegistry(caps map[Capability]*CapabilityConfig, endpoints map[string]*EndpointConfig, defaultModel string) *Registry {
	if caps == nil {
		caps = make(map[Capability]*CapabilityConfig)
	}
	if endpoints == nil {
		endpoints = make(map[string]*EndpointConfig)
	}
	return &Registry{
		capabilities: caps,
		endpoints:    endpoints,
		defaultModel: defaultModel,
		health:       newHealthState(DefaultHealthConfig()),
	}
}

// NewDefaultRegistry creates a registry that sends both capabilities to
// gpt-4o-mini on the OpenAI API.
func NewDefaultRegistry() *Registry {
	return NewRegistry(
		map[Capability]*CapabilityConfig{
			CapabilityQuestion:   {Preferred: []string{"gpt-4o-mini"}},
			CapabilitySuggestion: {Preferred: []string{"gpt-4o-mini"}},
		},
		map[string]*EndpointConfig{
			"gpt-4o-mini": {
				Provider: "openai",
				Model:    "gpt-4o-mini",
			},
		},
		"gpt-4o-mini",
	)
}

// Resolve returns the first preferred endpoint for a capability.
func (r *Registry) Resolve(c Capability) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.capabilities[c]; ok && len(cfg.Preferred) > 0 {
		return cfg.Preferred[0]
	}
	return r.defaultModel
}

// GetFallbackChain returns all endpoint names for a capability in order of preference.
func (r *Registry) GetFallbackChain(c Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.capabilities[c]; ok {
		chain := make([]string, 0, len(cfg.Preferred)+len(cfg.Fallback))
		chain = append(chain, cfg.Preferred...)
		chain = append(chain, cfg.Fallback...)
		return chain
	}
	if r.defaultModel == "" {
		return nil
	}
	return []string{r.defaultModel}
}

// GetEndpoint returns the endpoint configuration for a name, or nil.
func (r *Registry) GetEndpoint(name string) *EndpointConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.endpoints[name]
}

// SetCapability updates or adds a capability configuration.
func (r *Registry) SetCapability(c Capability, cfg *CapabilityConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.capabilities[c] = cfg
}

// SetEndpoint updates or adds an endpoint configuration.
// Health for a replaced endpoint starts over.
func (r *Registry) SetEndpoint(name string, cfg *EndpointConfig) {
	r.mu.Lock()
	r.endpoints[name] = cfg
	r.mu.Unlock()

	r.ResetEndpointHealth(name)
}

// Replace swaps the whole configuration in place, keeping health for
// endpoints whose configuration did not change.
func (r *Registry) Replace(other *Registry) {
	other.mu.RLock()
	caps := make(map[Capability]*CapabilityConfig, len(other.capabilities))
	for k, v := range other.capabilities {
		caps[k] = v
	}
	endpoints := make(map[string]*EndpointConfig, len(other.endpoints))
	for k, v := range other.endpoints {
		endpoints[k] = v
	}
	defaultModel := other.defaultModel
	other.mu.RUnlock()

	r.mu.Lock()
	var changed []string
	for name, old := range r.endpoints {
		if next, ok := endpoints[name]; !ok || *next != *old {
			changed = append(changed, name)
		}
	}
	r.capabilities = caps
	r.endpoints = endpoints
	r.defaultModel = defaultModel
	r.mu.Unlock()

	for _, name := range changed {
		r.ResetEndpointHealth(name)
	}
}

// ListCapabilities returns all configured capabilities, sorted.
func (r *Registry) ListCapabilities() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make([]Capability, 0, len(r.capabilities))
	for c := range r.capabilities {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// ListEndpoints returns all configured endpoint names, sorted.
func (r *Registry) ListEndpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
