package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/peerlane/relay/internal/domain"
)

func TestProofGuardRejectsConcurrentAcquire(t *testing.T) {
	g := NewProofGuard()

	require.NoError(t, g.TryAcquire("trade-1"))
	require.ErrorIs(t, g.TryAcquire("trade-1"), domain.ErrProofInProgress)

	// A different trade is unaffected.
	require.NoError(t, g.TryAcquire("trade-2"))

	g.Release("trade-1")
	require.NoError(t, g.TryAcquire("trade-1"))
}

func TestProofGuardReleaseIsIdempotent(t *testing.T) {
	g := NewProofGuard()
	g.Release("never-acquired")
	require.Equal(t, 0, g.InFlight())
}

func TestProofGuardSingleWinnerUnderContention(t *testing.T) {
	g := NewProofGuard()

	var wg sync.WaitGroup
	winners := make(chan struct{}, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAcquire("trade-1") == nil {
				winners <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(winners)

	count := 0
	for range winners {
		count++
	}
	require.Equal(t, 1, count)
}
