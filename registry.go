package x402

import (
	"fmt"
	"sync"
)

// Role names one of the three scheme capability roles.
type Role string

const (
	RoleClient      Role = "client"
	RoleServer      Role = "server"
	RoleFacilitator Role = "facilitator"
)

// SchemeRegistry maps (role, scheme id, network pattern) to registered
// scheme implementations. Patterns are exact CAIP-2 ids or family
// wildcards ("eip155:*"); resolution prefers the most specific pattern.
// Registering twice for the same role, scheme and exact pattern
// overwrites the earlier entry (last-write-wins).
type SchemeRegistry struct {
	mu           sync.RWMutex
	clients      map[string]map[Network]SchemeClient
	servers      map[string]map[Network]SchemeServer
	facilitators map[string]map[Network]SchemeFacilitator
}

// NewSchemeRegistry creates an empty registry.
func NewSchemeRegistry() *SchemeRegistry {
	return &SchemeRegistry{
		clients:      make(map[string]map[Network]SchemeClient),
		servers:      make(map[string]map[Network]SchemeServer),
		facilitators: make(map[string]map[Network]SchemeFacilitator),
	}
}

// RegisterClient registers a Client-role scheme for a network pattern.
func (r *SchemeRegistry) RegisterClient(pattern Network, client SchemeClient) *SchemeRegistry {
	r.mu.Lock()
	defer r.mu.Unlock()
	registerScheme(r.clients, pattern, client.Scheme(), client)
	return r
}

// RegisterServer registers a Server-role scheme for a network pattern.
func (r *SchemeRegistry) RegisterServer(pattern Network, server SchemeServer) *SchemeRegistry {
	r.mu.Lock()
	defer r.mu.Unlock()
	registerScheme(r.servers, pattern, server.Scheme(), server)
	return r
}

// RegisterFacilitator registers a Facilitator-role scheme for a network pattern.
func (r *SchemeRegistry) RegisterFacilitator(pattern Network, facilitator SchemeFacilitator) *SchemeRegistry {
	r.mu.Lock()
	defer r.mu.Unlock()
	registerScheme(r.facilitators, pattern, facilitator.Scheme(), facilitator)
	return r
}

// ResolveClient finds the Client-role scheme for (scheme, network).
func (r *SchemeRegistry) ResolveClient(scheme string, network Network) (SchemeClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	impl, ok := resolveScheme(r.clients, scheme, network)
	if !ok {
		return nil, noMatchingScheme(RoleClient, scheme, network)
	}
	return impl, nil
}

// ResolveServer finds the Server-role scheme for (scheme, network).
func (r *SchemeRegistry) ResolveServer(scheme string, network Network) (SchemeServer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	impl, ok := resolveScheme(r.servers, scheme, network)
	if !ok {
		return nil, noMatchingScheme(RoleServer, scheme, network)
	}
	return impl, nil
}

// ResolveFacilitator finds the Facilitator-role scheme for (scheme, network).
func (r *SchemeRegistry) ResolveFacilitator(scheme string, network Network) (SchemeFacilitator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	impl, ok := resolveScheme(r.facilitators, scheme, network)
	if !ok {
		return nil, noMatchingScheme(RoleFacilitator, scheme, network)
	}
	return impl, nil
}

// SupportsClient reports whether a Client-role scheme is registered for
// (scheme, network). Used by the engine's mutually-supported filter.
func (r *SchemeRegistry) SupportsClient(scheme string, network Network) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := resolveScheme(r.clients, scheme, network)
	return ok
}

// FacilitatorKinds enumerates the registered Facilitator-role capabilities.
func (r *SchemeRegistry) FacilitatorKinds() []SupportedKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var kinds []SupportedKind
	for scheme, patterns := range r.facilitators {
		for pattern := range patterns {
			kinds = append(kinds, SupportedKind{
				X402Version: ProtocolVersion,
				Scheme:      scheme,
				Network:     pattern,
			})
		}
	}
	return kinds
}

func registerScheme[T any](m map[string]map[Network]T, pattern Network, scheme string, impl T) {
	if m[scheme] == nil {
		m[scheme] = make(map[Network]T)
	}
	m[scheme][pattern] = impl
}

// resolveScheme picks the most specific registered pattern for a concrete
// network: an exact match beats any wildcard, and among matching wildcards
// the longest prefix wins.
func resolveScheme[T any](m map[string]map[Network]T, scheme string, network Network) (T, bool) {
	var zero T
	patterns, ok := m[scheme]
	if !ok {
		return zero, false
	}

	if impl, ok := patterns[network]; ok {
		return impl, true
	}

	var best Network
	var bestImpl T
	found := false
	for pattern, impl := range patterns {
		if !network.Match(pattern) {
			continue
		}
		if !found || len(pattern) > len(best) {
			best, bestImpl, found = pattern, impl, true
		}
	}
	return bestImpl, found
}

func noMatchingScheme(role Role, scheme string, network Network) *PaymentError {
	return NewPaymentError(
		ErrCodeNoMatchingScheme,
		fmt.Sprintf("no %s scheme registered for %s on %s", role, scheme, network),
		nil,
	).WithDetails("role", string(role)).WithDetails("scheme", scheme).WithDetails("network", string(network))
}
