package service

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/peerlane/relay/internal/domain"
)

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		wei      string
		decimals int
		want     string
	}{
		{"0", 18, "0"},
		{"1000000000", 9, "1"},
		{"1500000000", 9, "1.5"},
		{"21000000000000", 18, "0.000021"},
		{"1000000000000000000", 18, "1"},
		{"1234567890123456789", 18, "1.234567890123456789"},
		{"42", 0, "42"},
	}
	for _, tc := range cases {
		x, ok := new(big.Int).SetString(tc.wei, 10)
		require.True(t, ok)
		require.Equal(t, tc.want, formatUnits(x, tc.decimals), "formatUnits(%s, %d)", tc.wei, tc.decimals)
	}
}

func TestGasLedgerRecord(t *testing.T) {
	store := &memGasStore{}
	ledger := NewGasLedger(store, slog.New(slog.DiscardHandler))

	receipt := domain.GasReceipt{
		GasUsed:     21000,
		GasPriceWei: big.NewInt(1_500_000_000), // 1.5 gwei
		CostWei:     big.NewInt(31_500_000_000_000),
	}
	ledger.Record(context.Background(), 8453, domain.OpCancelExpiredTrade, "0xtrade", "0xorder", "0xtx", receipt)

	records := store.all()
	require.Len(t, records, 1)
	gc := records[0]
	require.Equal(t, uint64(8453), gc.ChainID)
	require.Equal(t, domain.OpCancelExpiredTrade, gc.Operation)
	require.Equal(t, int64(21000), gc.GasUsed)
	require.Equal(t, "1.5", gc.GasPriceGwei)
	require.Equal(t, "31500000000000", gc.CostWei)
	require.Equal(t, "0.0000315", gc.CostEth)
}

func TestGasLedgerRecordSwallowsStoreErrors(t *testing.T) {
	store := &memGasStore{fail: errors.New("db down")}
	ledger := NewGasLedger(store, slog.New(slog.DiscardHandler))

	// Must not panic or propagate; the triggering transaction already mined.
	ledger.Record(context.Background(), 8453, domain.OpCancelExpiredTrade, "", "", "0xtx", domain.GasReceipt{
		GasPriceWei: big.NewInt(1),
		CostWei:     big.NewInt(1),
	})
	require.Empty(t, store.all())
}
