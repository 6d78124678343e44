package domain

import (
	"context"
	"math/big"
)

// ContractConfig is the escrow contract's runtime configuration for one chain.
// Monetary limits are base-unit decimal strings.
type ContractConfig struct {
	FeeRateBps        string `json:"fee_rate_bps"`
	MinTradeValue     string `json:"min_trade_value"`
	MaxTradeValue     string `json:"max_trade_value"`
	PaymentWindowSecs uint64 `json:"payment_window_secs"`
	RelayerAddress    string `json:"relayer_address"`
	EscrowAddress     string `json:"escrow_address"`
}

// GasReceipt reports what a relay-paid transaction actually cost.
type GasReceipt struct {
	GasUsed     uint64
	GasPriceWei *big.Int // effective gas price
	CostWei     *big.Int // GasUsed * GasPriceWei
}

// ChainClient is the per-chain escrow contract surface the core requires.
// Implementations must be safe for concurrent use.
type ChainClient interface {
	// ChainID returns the chain this client is bound to.
	ChainID() uint64

	// GetContractConfig reads the contract's current configuration.
	GetContractConfig(ctx context.Context) (ContractConfig, error)

	// GetOrderHash returns the 32-byte payment commitment hash recorded
	// on-chain for the order. An all-zero hash means the order is not (yet)
	// visible on this node.
	GetOrderHash(ctx context.Context, orderID string) ([32]byte, error)

	// GetOrderIDFromTx resolves the order id created by the given transaction
	// by inspecting its receipt logs.
	GetOrderIDFromTx(ctx context.Context, txHash string) (string, error)

	// CancelExpiredTrade submits a cancellation for the trade, waits for
	// inclusion, and returns the transaction hash and gas accounting.
	// The relay wallet pays the gas.
	CancelExpiredTrade(ctx context.Context, tradeID [32]byte) (string, GasReceipt, error)
}
