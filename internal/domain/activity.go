package domain

import (
	"sort"
	"time"
)

// ActivityKind tags an entry in an order's activity timeline.
type ActivityKind string

const (
	ActivityTrade        ActivityKind = "trade"
	ActivityPendingTrade ActivityKind = "pending_trade"
	ActivityExpiredTrade ActivityKind = "expired_trade"
	ActivityWithdrawal   ActivityKind = "withdrawal"
)

// Activity is one timeline entry for an order: a trade (tagged by its current
// status) or a withdrawal. Timestamp is the status-relevant instant used for
// ordering: settlement time for settled trades, creation time for pending
// trades and withdrawals, expiry time for expired trades.
type Activity struct {
	Kind      ActivityKind `json:"type"`
	Timestamp time.Time    `json:"timestamp"`

	// Trade fields (empty for withdrawals).
	TradeID          string `json:"trade_id,omitempty"`
	Buyer            string `json:"buyer,omitempty"`
	TokenAmount      string `json:"token_amount,omitempty"`
	CNYAmount        string `json:"cny_amount,omitempty"`
	FeeAmount        string `json:"fee_amount,omitempty"`
	SettlementTxHash string `json:"settlement_tx,omitempty"`
	ExpiresAt        int64  `json:"expires_at,omitempty"`

	// Withdrawal fields.
	Amount         string `json:"amount,omitempty"`
	RemainingAfter string `json:"remaining_after,omitempty"`
	TxHash         string `json:"tx_hash,omitempty"`
}

// SortActivities orders a merged timeline most recent first. Ordering is
// deterministic: ties break on trade id then tx hash.
func SortActivities(acts []Activity) {
	sort.SliceStable(acts, func(i, j int) bool {
		if !acts[i].Timestamp.Equal(acts[j].Timestamp) {
			return acts[i].Timestamp.After(acts[j].Timestamp)
		}
		if acts[i].TradeID != acts[j].TradeID {
			return acts[i].TradeID < acts[j].TradeID
		}
		return acts[i].TxHash < acts[j].TxHash
	})
}
