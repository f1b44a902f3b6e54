// Package model provides capability-based model selection for generation calls.
// Callers ask for a capability (question or suggestion generation) and the
// registry resolves it to configured endpoints with a fallback chain.
package model

// Capability represents a semantic capability for model selection.
type Capability string

const (
	// CapabilityQuestion generates assessment questions. Quality matters more than latency.
	CapabilityQuestion Capability = "question"

	// CapabilitySuggestion completes free-text answers while the candidate types.
	CapabilitySuggestion Capability = "suggestion"
)

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityQuestion, CapabilitySuggestion:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for invalid values.
func ParseCapability(s string) Capability {
	c := Capability(s)
	if c.IsValid() {
		return c
	}
	return ""
}
