package domain

import (
	"context"
	"time"
)

// OrderFilter narrows active-order queries.
type OrderFilter struct {
	Seller  string
	Token   string
	ChainID *uint64 // nil = all chains
	Limit   int
}

// OrderStore persists orders. The database mirrors on-chain state; the chain
// is authoritative.
type OrderStore interface {
	Upsert(ctx context.Context, order Order) error
	GetByID(ctx context.Context, orderID string) (Order, error)
	GetByPrivateCode(ctx context.Context, code string) (Order, error)
	ListActive(ctx context.Context, f OrderFilter) ([]Order, error)
	// UpdatePaymentInfo stores plaintext payment details exactly once;
	// it returns ErrAlreadySet when non-empty details already exist.
	UpdatePaymentInfo(ctx context.Context, orderID, accountID, accountName string) error
	// SetVisibility flips the order public/private and returns the private
	// access code (generated on first use) when the order is private.
	SetVisibility(ctx context.Context, orderID string, isPublic bool) (string, error)
}

// TradeStore persists trades.
type TradeStore interface {
	Create(ctx context.Context, trade Trade) error
	GetByID(ctx context.Context, tradeID string) (Trade, error)
	ListByOrder(ctx context.Context, orderID string) ([]Trade, error)
	ListByBuyer(ctx context.Context, buyer string) ([]Trade, error)
	ListBySeller(ctx context.Context, seller string) ([]Trade, error)
	// ListExpiredPending returns all pending trades whose payment window has
	// lapsed, across every chain, oldest first.
	ListExpiredPending(ctx context.Context, now time.Time) ([]Trade, error)
	// UpdateStatus applies a lifecycle transition. It must only write rows
	// still in the expected prior status so concurrent transitions are safe;
	// it returns ErrInvalidTransition when no row qualified.
	UpdateStatus(ctx context.Context, tradeID string, from, to TradeStatus, settlementTxHash string) error
	AttachPDF(ctx context.Context, tradeID string, pdf []byte, filename string) error
}

// WithdrawalStore persists withdrawal records for timeline reconstruction.
type WithdrawalStore interface {
	Create(ctx context.Context, w Withdrawal) error
	ListByOrder(ctx context.Context, orderID string) ([]Withdrawal, error)
}

// GasCostStore is the append-only ledger of relay gas spend.
type GasCostStore interface {
	Create(ctx context.Context, gc GasCost) error
	SummarizeByChain(ctx context.Context, chainID uint64) ([]GasCostSummary, error)
}
