// Package providers holds static carrier API configuration. The registry is
// loaded once at startup from config and passed explicitly to whoever needs
// it; nothing here mutates after construction.
package providers

import "strings"

// HistoryOrder values for Provider.HistoryOrder.
const (
	// HistoryOrderNative keeps events in the order the carrier sent them.
	HistoryOrderNative = "native"
	// HistoryOrderDesc re-sorts events newest-first by timestamp.
	HistoryOrderDesc = "desc"
)

// Provider is one carrier's externally supplied API configuration.
// Endpoint, headers and body template may contain a {trackingId}
// placeholder.
type Provider struct {
	Name         string
	TrackingURL  string
	Endpoint     string
	Method       string
	Headers      map[string]string
	BodyTemplate string

	// InsecureTLS relaxes TLS verification for this provider only. Some
	// carriers run outdated TLS stacks; this must never be a global switch.
	InsecureTLS bool

	// HistoryOrder is the carrier's observed event ordering convention.
	HistoryOrder string
}

type Registry struct {
	byName map[string]Provider
	names  []string
}

func NewRegistry(ps []Provider) *Registry {
	r := &Registry{byName: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		key := strings.ToLower(strings.TrimSpace(p.Name))
		if key == "" {
			continue
		}
		if _, ok := r.byName[key]; !ok {
			r.names = append(r.names, p.Name)
		}
		r.byName[key] = p
	}
	return r
}

// Get resolves a provider by name, case-insensitively. Provider names are
// often hand-typed, so "dtdc" and "DTDC" must resolve identically.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Names returns configured provider names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
