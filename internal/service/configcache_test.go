package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peerlane/relay/internal/domain"
)

func TestConfigCacheServesFreshEntries(t *testing.T) {
	fetches := 0
	client := &fakeChainClient{
		chainID: 8453,
		configFn: func(ctx context.Context) (domain.ContractConfig, error) {
			fetches++
			return domain.ContractConfig{FeeRateBps: "100"}, nil
		},
	}

	now := time.Unix(1700000000, 0)
	cache := NewConfigCache(newFakeRegistry(client), 15*time.Minute)
	cache.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		cfg, err := cache.Get(context.Background(), 8453)
		require.NoError(t, err)
		require.Equal(t, "100", cfg.FeeRateBps)
	}
	require.Equal(t, 1, fetches)
}

func TestConfigCacheRefreshesAfterTTL(t *testing.T) {
	fetches := 0
	client := &fakeChainClient{
		chainID: 8453,
		configFn: func(ctx context.Context) (domain.ContractConfig, error) {
			fetches++
			return domain.ContractConfig{FeeRateBps: "100"}, nil
		},
	}

	now := time.Unix(1700000000, 0)
	cache := NewConfigCache(newFakeRegistry(client), 15*time.Minute)
	cache.now = func() time.Time { return now }

	_, err := cache.Get(context.Background(), 8453)
	require.NoError(t, err)

	now = now.Add(16 * time.Minute)
	_, err = cache.Get(context.Background(), 8453)
	require.NoError(t, err)
	require.Equal(t, 2, fetches)
}

func TestConfigCacheFailedRefreshKeepsStaleEntry(t *testing.T) {
	healthy := true
	client := &fakeChainClient{
		chainID: 8453,
		configFn: func(ctx context.Context) (domain.ContractConfig, error) {
			if !healthy {
				return domain.ContractConfig{}, errors.New("rpc down")
			}
			return domain.ContractConfig{FeeRateBps: "100"}, nil
		},
	}

	now := time.Unix(1700000000, 0)
	cache := NewConfigCache(newFakeRegistry(client), 15*time.Minute)
	cache.now = func() time.Time { return now }

	_, err := cache.Get(context.Background(), 8453)
	require.NoError(t, err)

	// Entry goes stale and the chain goes down: the read fails but the old
	// value is not overwritten.
	now = now.Add(16 * time.Minute)
	healthy = false
	_, err = cache.Get(context.Background(), 8453)
	require.Error(t, err)

	// Recovery: next read fetches fresh data again.
	healthy = true
	cfg, err := cache.Get(context.Background(), 8453)
	require.NoError(t, err)
	require.Equal(t, "100", cfg.FeeRateBps)
}

func TestConfigCacheForceRefreshBypassesTTL(t *testing.T) {
	fetches := 0
	client := &fakeChainClient{
		chainID: 8453,
		configFn: func(ctx context.Context) (domain.ContractConfig, error) {
			fetches++
			return domain.ContractConfig{}, nil
		},
	}
	cache := NewConfigCache(newFakeRegistry(client), 15*time.Minute)

	_, err := cache.Get(context.Background(), 8453)
	require.NoError(t, err)
	_, err = cache.ForceRefresh(context.Background(), 8453)
	require.NoError(t, err)
	require.Equal(t, 2, fetches)
}

func TestConfigCacheUnknownChain(t *testing.T) {
	cache := NewConfigCache(newFakeRegistry(), 15*time.Minute)
	_, err := cache.Get(context.Background(), 1)
	require.ErrorIs(t, err, domain.ErrChainUnavailable)
}
