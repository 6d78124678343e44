package service

import (
	"context"
	"log/slog"
	"math/big"
	"strings"

	"github.com/peerlane/relay/internal/domain"
)

// GasLedger records what relay-paid transactions cost. Recording is
// best-effort: a ledger write failure is logged but never fails the on-chain
// action that triggered it, since the transaction is already mined.
type GasLedger struct {
	store  domain.GasCostStore
	logger *slog.Logger
}

// NewGasLedger creates a GasLedger over the store.
func NewGasLedger(store domain.GasCostStore, logger *slog.Logger) *GasLedger {
	return &GasLedger{
		store:  store,
		logger: logger.With(slog.String("component", "gas_ledger")),
	}
}

// Record appends one entry derived from a mined receipt. tradeID and orderID
// may be empty when the operation is not tied to one.
func (l *GasLedger) Record(ctx context.Context, chainID uint64, op domain.GasOperation, tradeID, orderID, txHash string, receipt domain.GasReceipt) {
	gc := domain.GasCost{
		ChainID:      chainID,
		Operation:    op,
		TradeID:      tradeID,
		OrderID:      orderID,
		TxHash:       txHash,
		GasUsed:      int64(receipt.GasUsed),
		GasPriceGwei: formatUnits(receipt.GasPriceWei, 9),
		CostWei:      receipt.CostWei.String(),
		CostEth:      formatUnits(receipt.CostWei, 18),
	}

	if err := l.store.Create(ctx, gc); err != nil {
		l.logger.Error("failed to record gas cost",
			slog.Uint64("chain_id", chainID),
			slog.String("operation", string(op)),
			slog.String("tx_hash", txHash),
			slog.String("error", err.Error()))
	}
}

// Summarize returns per-operation gas spend aggregates for one chain.
func (l *GasLedger) Summarize(ctx context.Context, chainID uint64) ([]domain.GasCostSummary, error) {
	return l.store.SummarizeByChain(ctx, chainID)
}

// formatUnits renders x base units as a decimal string shifted right by the
// given number of decimals, with trailing fractional zeroes trimmed. All
// arithmetic stays in big.Int; no floats.
func formatUnits(x *big.Int, decimals int) string {
	if x == nil {
		return "0"
	}
	div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	quo, rem := new(big.Int).QuoRem(new(big.Int).Set(x), div, new(big.Int))
	if rem.Sign() == 0 {
		return quo.String()
	}

	frac := rem.String()
	if pad := decimals - len(frac); pad > 0 {
		frac = strings.Repeat("0", pad) + frac
	}
	frac = strings.TrimRight(frac, "0")
	return quo.String() + "." + frac
}
