package domain

import "time"

// GasOperation tags the kind of relay-paid on-chain call a gas record is for.
type GasOperation string

const (
	OpCancelExpiredTrade GasOperation = "cancel_expired_trade"
	OpSubmitProof        GasOperation = "submit_proof"
)

// GasCost is one append-only accounting entry for a relay-paid transaction.
// GasPriceGwei, CostWei and CostEth are decimal strings; wei sums must never
// pass through floating point.
type GasCost struct {
	ID           int64
	ChainID      uint64
	Operation    GasOperation
	TradeID      string // optional
	OrderID      string // optional
	TxHash       string
	GasUsed      int64
	GasPriceGwei string
	CostWei      string
	CostEth      string
	CreatedAt    time.Time
}

// GasCostSummary aggregates gas spend for one operation on one chain.
type GasCostSummary struct {
	Operation       GasOperation
	Count           int64
	TotalCostWei    string
	TotalCostEth    string
	AvgGasUsed      float64
	AvgGasPriceGwei float64
}
