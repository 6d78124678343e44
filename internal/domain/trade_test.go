package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseTradeStatus(t *testing.T) {
	for _, code := range []int32{0, 1, 2} {
		s, err := ParseTradeStatus(code)
		require.NoError(t, err)
		require.Equal(t, TradeStatus(code), s)
	}

	for _, code := range []int32{-1, 3, 42} {
		_, err := ParseTradeStatus(code)
		require.Error(t, err, "code %d", code)
	}
}

func TestTradeStatusTransitions(t *testing.T) {
	require.True(t, TradePending.CanTransition(TradeSettled))
	require.True(t, TradePending.CanTransition(TradeExpired))

	require.False(t, TradePending.CanTransition(TradePending))
	require.False(t, TradeSettled.CanTransition(TradeExpired))
	require.False(t, TradeSettled.CanTransition(TradePending))
	require.False(t, TradeExpired.CanTransition(TradeSettled))

	require.False(t, TradePending.Terminal())
	require.True(t, TradeSettled.Terminal())
	require.True(t, TradeExpired.Terminal())
}

func TestTradeStatusString(t *testing.T) {
	require.Equal(t, "pending", TradePending.String())
	require.Equal(t, "settled", TradeSettled.String())
	require.Equal(t, "expired", TradeExpired.String())
	require.Equal(t, "unknown(9)", TradeStatus(9).String())
}

func TestPaymentExpired(t *testing.T) {
	deadline := time.Unix(1700000000, 0)
	trade := Trade{Status: TradePending, ExpiresAt: deadline}

	require.False(t, trade.PaymentExpired(deadline.Add(-time.Second)))
	require.False(t, trade.PaymentExpired(deadline)) // not yet past
	require.True(t, trade.PaymentExpired(deadline.Add(time.Second)))
}
