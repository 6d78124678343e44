package domain

import "time"

// PaymentRail identifies the off-chain fiat payment network a seller accepts.
type PaymentRail int32

const (
	RailAlipay PaymentRail = 0
	RailWeChat PaymentRail = 1
)

// Valid reports whether the rail is one of the supported payment networks.
func (r PaymentRail) Valid() bool {
	return r == RailAlipay || r == RailWeChat
}

func (r PaymentRail) String() string {
	switch r {
	case RailAlipay:
		return "alipay"
	case RailWeChat:
		return "wechat"
	default:
		return "unknown"
	}
}

// Order is a seller's standing offer: a fixed token amount escrowed on-chain,
// sold at a fixed exchange rate for off-chain fiat payment.
//
// TotalAmount and RemainingAmount are token base units as decimal strings;
// they are never parsed into floats. AccountID and AccountName are the
// plaintext payment-routing details matching the on-chain commitment hash.
// They are either both empty (not yet submitted) or both set, and once set
// they are immutable.
type Order struct {
	OrderID         string
	Seller          string
	Token           string
	TotalAmount     string
	RemainingAmount string
	ExchangeRate    string
	Rail            PaymentRail
	AccountID       string
	AccountName     string
	ChainID         uint64
	IsPublic        bool
	PrivateCode     string // access token for unlisted orders, empty when public
	CreatedAt       time.Time
}

// HasPaymentInfo reports whether plaintext payment details have been stored.
func (o Order) HasPaymentInfo() bool {
	return o.AccountID != "" && o.AccountName != ""
}
