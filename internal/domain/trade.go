package domain

import (
	"fmt"
	"time"
)

// TradeStatus is the closed set of trade lifecycle states. The integer values
// mirror the escrow contract's TradeStatus enum and the database encoding.
type TradeStatus int32

const (
	TradePending TradeStatus = 0 // created, waiting for payment proof
	TradeSettled TradeStatus = 1 // proof accepted, tokens released to buyer
	TradeExpired TradeStatus = 2 // payment window lapsed, tokens returned to order
)

// ParseTradeStatus maps a wire-level status code to a TradeStatus. Unknown
// codes are an anomaly and reported as an error rather than silently dropped.
func ParseTradeStatus(code int32) (TradeStatus, error) {
	switch TradeStatus(code) {
	case TradePending, TradeSettled, TradeExpired:
		return TradeStatus(code), nil
	default:
		return 0, fmt.Errorf("domain: unknown trade status code %d", code)
	}
}

func (s TradeStatus) String() string {
	switch s {
	case TradePending:
		return "pending"
	case TradeSettled:
		return "settled"
	case TradeExpired:
		return "expired"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Terminal reports whether the status admits no further transitions.
func (s TradeStatus) Terminal() bool {
	return s == TradeSettled || s == TradeExpired
}

// CanTransition reports whether a transition from s to next is legal.
// The lifecycle is one-directional: Pending may move to Settled or Expired;
// terminal states never move again.
func (s TradeStatus) CanTransition(next TradeStatus) bool {
	return s == TradePending && (next == TradeSettled || next == TradeExpired)
}

// Trade is one buyer's claim against a slice of an order's remaining amount.
//
// TradeID is the contract's 32-byte trade identifier, hex-encoded with a 0x
// prefix. TokenAmount is token base units and CNYAmount is fiat minor units
// (cents), both decimal strings. FeeAmount is empty until recorded.
type Trade struct {
	TradeID          string
	OrderID          string
	Buyer            string
	ChainID          uint64
	TokenAmount      string
	CNYAmount        string
	FeeAmount        string
	Status           TradeStatus
	CreatedAt        time.Time
	ExpiresAt        time.Time
	SettledAt        *time.Time
	SettlementTxHash string
	PDFFile          []byte
	PDFFilename      string
}

// PaymentExpired reports whether the payment window has lapsed at the given
// instant. Only meaningful for pending trades.
func (t Trade) PaymentExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
