package llm

import (
	"net/http"
	"sort"
	"sync"
)

// Provider adapts the client to one vendor's wire format.
type Provider interface {
	// Name is the identifier endpoints refer to (openai, ollama, anthropic).
	Name() string

	// BuildURL returns the completion URL for a base URL, which may be empty.
	BuildURL(baseURL string) string

	// SetHeaders adds authentication and version headers.
	SetHeaders(req *http.Request)

	// BuildRequestBody encodes a chat request. A nil temperature leaves the
	// provider default in place; maxTokens of 0 does the same.
	BuildRequestBody(model string, messages []Message, temperature *float64, maxTokens int) ([]byte, error)

	// ParseResponse decodes the provider reply into a Response.
	ParseResponse(body []byte, model string) (*Response, error)
}

var (
	providerRegistry = make(map[string]Provider)
	providerMu       sync.RWMutex
)

// RegisterProvider makes a provider available by name. Providers register
// themselves from init in the providers package.
func RegisterProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerRegistry[p.Name()] = p
}

// GetProvider returns the provider registered under name, or nil.
func GetProvider(name string) Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return providerRegistry[name]
}

// ListProviders returns the registered provider names, sorted.
func ListProviders() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()

	names := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
