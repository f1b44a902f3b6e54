package model

import (
	"sort"
	"sync"
	"time"
)

// EndpointHealth is the circuit breaker state of one endpoint.
type EndpointHealth struct {
	// Available is false while the circuit is open and the recovery
	// timeout has not passed.
	Available bool `json:"available"`

	LastSuccess time.Time `json:"last_success,omitzero"`
	LastFailure time.Time `json:"last_failure,omitzero"`

	// FailureCount counts consecutive failed calls. A success resets it.
	FailureCount int `json:"failure_count"`

	CircuitOpen     bool      `json:"circuit_open"`
	CircuitOpenedAt time.Time `json:"circuit_opened_at,omitzero"`
}

// EndpointStatus pairs an endpoint's identity with its health.
type EndpointStatus struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	EndpointHealth
}

// HealthConfig configures the circuit breaker.
type HealthConfig struct {
	// FailureThreshold is how many consecutive failures open the circuit.
	FailureThreshold int

	// RecoveryTimeout is how long an open circuit keeps the endpoint out
	// of the fallback chain before one probe is allowed through.
	RecoveryTimeout time.Duration
}

// DefaultHealthConfig opens the circuit after 3 failures for 30 seconds.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
	}
}

type healthState struct {
	mu       sync.RWMutex
	config   HealthConfig
	statuses map[string]*EndpointHealth
}

func newHealthState(cfg HealthConfig) *healthState {
	return &healthState{
		config:   cfg,
		statuses: make(map[string]*EndpointHealth),
	}
}

// entry returns the record for name, creating it. Caller holds h.mu.
func (h *healthState) entry(name string) *EndpointHealth {
	status, ok := h.statuses[name]
	if !ok {
		status = &EndpointHealth{Available: true}
		h.statuses[name] = status
	}
	return status
}

// availableLocked applies the recovery timeout. Caller holds h.mu.
func (h *healthState) availableLocked(name string, now time.Time) bool {
	status, ok := h.statuses[name]
	if !ok || !status.CircuitOpen {
		return true
	}
	return now.Sub(status.CircuitOpenedAt) > h.config.RecoveryTimeout
}

// MarkEndpointSuccess closes the endpoint's circuit.
func (r *Registry) MarkEndpointSuccess(name string) {
	r.health.mu.Lock()
	defer r.health.mu.Unlock()

	status := r.health.entry(name)
	status.LastSuccess = time.Now()
	status.FailureCount = 0
	status.Available = true
	status.CircuitOpen = false
}

// MarkEndpointFailure counts a failed call and opens the circuit once the
// threshold is reached.
func (r *Registry) MarkEndpointFailure(name string) {
	r.health.mu.Lock()
	defer r.health.mu.Unlock()

	now := time.Now()
	status := r.health.entry(name)
	status.LastFailure = now
	status.FailureCount++
	if status.FailureCount >= r.health.config.FailureThreshold {
		status.CircuitOpen = true
		status.CircuitOpenedAt = now
		status.Available = false
	}
}

// IsEndpointAvailable reports whether name may be tried. An open circuit
// becomes available again once the recovery timeout has passed.
func (r *Registry) IsEndpointAvailable(name string) bool {
	r.health.mu.RLock()
	defer r.health.mu.RUnlock()
	return r.health.availableLocked(name, time.Now())
}

// GetEndpointHealth returns a copy of the endpoint's record, or nil when
// it has never been called.
func (r *Registry) GetEndpointHealth(name string) *EndpointHealth {
	r.health.mu.RLock()
	defer r.health.mu.RUnlock()

	status, ok := r.health.statuses[name]
	if !ok {
		return nil
	}
	snapshot := *status
	return &snapshot
}

// Statuses reports every configured endpoint sorted by name. Endpoints
// that were never called report as available.
func (r *Registry) Statuses() []EndpointStatus {
	r.mu.RLock()
	out := make([]EndpointStatus, 0, len(r.endpoints))
	for name, ep := range r.endpoints {
		out = append(out, EndpointStatus{Name: name, Provider: ep.Provider, Model: ep.Model})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	now := time.Now()
	r.health.mu.RLock()
	defer r.health.mu.RUnlock()
	for i := range out {
		if status, ok := r.health.statuses[out[i].Name]; ok {
			out[i].EndpointHealth = *status
		}
		out[i].Available = r.health.availableLocked(out[i].Name, now)
	}
	return out
}

// GetAvailableFallbackChain is GetFallbackChain without the endpoints whose
// circuit is open. If that leaves nothing, the full chain is returned so a
// call is still attempted.
func (r *Registry) GetAvailableFallbackChain(c Capability) []string {
	chain := r.GetFallbackChain(c)
	available := make([]string, 0, len(chain))
	for _, name := range chain {
		if r.IsEndpointAvailable(name) {
			available = append(available, name)
		}
	}
	if len(available) == 0 {
		return chain
	}
	return available
}

// SetHealthConfig replaces the circuit breaker settings. Existing records
// are kept.
func (r *Registry) SetHealthConfig(cfg HealthConfig) {
	r.health.mu.Lock()
	defer r.health.mu.Unlock()
	r.health.config = cfg
}

// ResetEndpointHealth forgets the endpoint's record.
func (r *Registry) ResetEndpointHealth(name string) {
	r.health.mu.Lock()
	defer r.health.mu.Unlock()
	delete(r.health.statuses, name)
}
