package model

// RegistryConfig is the serializable form of a Registry.
type RegistryConfig struct {
	Capabilities map[string]*CapabilityConfig `json:"capabilities" yaml:"capabilities"`
	Endpoints    map[string]*EndpointConfig   `json:"endpoints" yaml:"endpoints"`
	Default      string                       `json:"default,omitempty" yaml:"default,omitempty"`
}

// FromConfig builds a Registry from its serializable form.
// Unknown capability names are kept as-is.
func FromConfig(cfg *RegistryConfig) *Registry {
	caps := make(map[Capability]*CapabilityConfig, len(cfg.Capabilities))
	for k, v := range cfg.Capabilities {
		c := ParseCapability(k)
		if c == "" {
			c = Capability(k)
		}
		caps[c] = v
	}

	endpoints := make(map[string]*EndpointConfig, len(cfg.Endpoints))
	for k, v := range cfg.Endpoints {
		endpoints[k] = v
	}

	return NewRegistry(caps, endpoints, cfg.Default)
}

// ToConfig converts a Registry to its serializable form.
func (r *Registry) ToConfig() *RegistryConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make(map[string]*CapabilityConfig, len(r.capabilities))
	for k, v := range r.capabilities {
		caps[string(k)] = v
	}
	endpoints := make(map[string]*EndpointConfig, len(r.endpoints))
	for k, v := range r.endpoints {
		endpoints[k] = v
	}

	return &RegistryConfig{
		Capabilities: caps,
		Endpoints:    endpoints,
		Default:      r.defaultModel,
	}
}
