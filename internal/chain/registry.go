// Package chain provides per-chain escrow contract clients and the registry
// that routes chain-scoped operations by chain id.
package chain

import (
	"github.com/peerlane/relay/internal/domain"
)

// Registry maps chain ids to their escrow clients. Both chains are equal
// peers; there is no primary chain. The registry is built once at startup and
// read-only afterwards, so no locking is needed.
type Registry struct {
	clients map[uint64]domain.ChainClient
}

// NewRegistry creates a Registry over the given clients.
func NewRegistry(clients ...domain.ChainClient) *Registry {
	m := make(map[uint64]domain.ChainClient, len(clients))
	for _, c := range clients {
		m[c.ChainID()] = c
	}
	return &Registry{clients: m}
}

// Get returns the client for the chain id, or false when none is registered.
func (r *Registry) Get(chainID uint64) (domain.ChainClient, bool) {
	c, ok := r.clients[chainID]
	return c, ok
}

// ChainIDs returns the registered chain ids in unspecified order.
func (r *Registry) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}
