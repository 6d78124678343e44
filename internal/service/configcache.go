// Package service implements the relay's core behaviors: payment commitment
// verification, trade lifecycle transitions, expiry reconciliation, and gas
// accounting.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/peerlane/relay/internal/domain"
)

// ClientRegistry resolves chain clients by chain id.
type ClientRegistry interface {
	Get(chainID uint64) (domain.ChainClient, bool)
	ChainIDs() []uint64
}

// DefaultConfigTTL is how long a fetched contract config stays fresh.
const DefaultConfigTTL = 15 * time.Minute

type cachedConfig struct {
	cfg       domain.ContractConfig
	fetchedAt time.Time
}

// ConfigCache caches per-chain contract configuration with a TTL. Contract
// config changes rarely (admin operations only), so a short staleness window
// is acceptable in exchange for not hammering the RPC nodes.
//
// A failed refresh never overwrites a previously cached value; the stale
// entry stays in place and the next read retries the fetch.
type ConfigCache struct {
	clients ClientRegistry
	ttl     time.Duration

	mu      sync.RWMutex
	entries map[uint64]cachedConfig

	now func() time.Time // test hook
}

// NewConfigCache creates a ConfigCache over the registry with the given TTL.
// A non-positive ttl falls back to DefaultConfigTTL.
func NewConfigCache(clients ClientRegistry, ttl time.Duration) *ConfigCache {
	if ttl <= 0 {
		ttl = DefaultConfigTTL
	}
	return &ConfigCache{
		clients: clients,
		ttl:     ttl,
		entries: make(map[uint64]cachedConfig),
		now:     time.Now,
	}
}

// Get returns the contract config for the chain, serving from cache while the
// entry is within the TTL and refreshing from the chain otherwise.
func (c *ConfigCache) Get(ctx context.Context, chainID uint64) (domain.ContractConfig, error) {
	c.mu.RLock()
	entry, ok := c.entries[chainID]
	c.mu.RUnlock()

	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.cfg, nil
	}

	return c.refresh(ctx, chainID)
}

// ForceRefresh bypasses the TTL and fetches the config from the chain.
func (c *ConfigCache) ForceRefresh(ctx context.Context, chainID uint64) (domain.ContractConfig, error) {
	return c.refresh(ctx, chainID)
}

func (c *ConfigCache) refresh(ctx context.Context, chainID uint64) (domain.ContractConfig, error) {
	client, ok := c.clients.Get(chainID)
	if !ok {
		return domain.ContractConfig{}, fmt.Errorf("chain %d: %w", chainID, domain.ErrChainUnavailable)
	}

	cfg, err := client.GetContractConfig(ctx)
	if err != nil {
		return domain.ContractConfig{}, fmt.Errorf("refresh config for chain %d: %w", chainID, err)
	}

	c.mu.Lock()
	c.entries[chainID] = cachedConfig{cfg: cfg, fetchedAt: c.now()}
	c.mu.Unlock()

	return cfg, nil
}
