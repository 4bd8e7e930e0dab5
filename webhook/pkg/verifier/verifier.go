// Package verifier implements provider-specific webhook signature checks and
// payload normalization. Each provider encodes a distinct trust protocol;
// the registry maps provider identifiers onto the closed set of strategies
// built at startup.
package verifier

import (
	"encoding/json"
	"time"
)

// Event is the normalized envelope extracted from a provider payload.
// ExternalID is empty when the provider supplies no natural event id; such
// events are stored without an idempotency key and skip deduplication.
type Event struct {
	Type       string
	ExternalID string
	Data       json.RawMessage
	Timestamp  time.Time
}

// Verifier validates a raw request body against a shared secret and extracts
// the normalized event envelope. Implementations must fail closed: malformed
// signatures or bodies verify false, never panic.
type Verifier interface {
	// Provider returns the provider identifier this strategy serves.
	Provider() string

	// SignatureHeader names the HTTP header carrying the signature, or ""
	// when the provider embeds its credential in the payload body.
	SignatureHeader() string

	// Verify reports whether signature authenticates body under secret.
	// All comparisons against secret-derived material are constant-time.
	Verify(signature string, body []byte, secret string) bool

	// ExtractEvent parses the raw body into the normalized envelope.
	ExtractEvent(body []byte) (*Event, error)
}

// Registry resolves provider identifiers to verification strategies.
type Registry struct {
	byProvider map[string]Verifier
}

// NewRegistry builds a registry from the given strategies.
func NewRegistry(verifiers ...Verifier) *Registry {
	byProvider := make(map[string]Verifier, len(verifiers))
	for _, v := range verifiers {
		byProvider[v.Provider()] = v
	}
	return &Registry{byProvider: byProvider}
}

// DefaultRegistry returns a registry with all supported providers.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewStripeVerifier(),
		NewCartpandaVerifier(),
		NewHotmartVerifier(),
	)
}

// Lookup returns the strategy for a provider, or false when unsupported.
func (r *Registry) Lookup(provider string) (Verifier, bool) {
	v, ok := r.byProvider[provider]
	return v, ok
}

// Providers lists the registered provider identifiers.
func (r *Registry) Providers() []string {
	out := make([]string, 0, len(r.byProvider))
	for p := range r.byProvider {
		out = append(out, p)
	}
	return out
}
