package domain

import "time"

// Withdrawal records a seller reclaiming unused order balance. Immutable once
// created; it only feeds the order activity timeline.
type Withdrawal struct {
	ID             int64
	OrderID        string
	Amount         string // token base units, decimal string
	RemainingAfter string
	TxHash         string
	CreatedAt      time.Time
}
