package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peerlane/relay/internal/crypto"
	"github.com/peerlane/relay/internal/domain"
)

func newTestTradeService(trades domain.TradeStore, orders domain.OrderStore, withdrawals domain.WithdrawalStore, clients ClientRegistry) *TradeService {
	return NewTradeService(trades, orders, withdrawals,
		NewConfigCache(clients, 15*time.Minute), NewProofGuard(), testLogger())
}

func TestRecordForcesPendingStatus(t *testing.T) {
	trades := newMemTradeStore()
	svc := newTestTradeService(trades, newMemOrderStore(), &memWithdrawalStore{},
		newFakeRegistry(&fakeChainClient{chainID: 8453}))

	err := svc.Record(context.Background(), domain.Trade{
		TradeID: expiredTradeA,
		OrderID: testOrderID,
		Status:  domain.TradeSettled, // callers cannot pre-settle
	})
	require.NoError(t, err)

	tr, err := trades.GetByID(context.Background(), expiredTradeA)
	require.NoError(t, err)
	require.Equal(t, domain.TradePending, tr.Status)
}

func TestRecordRejectsUnprefixedID(t *testing.T) {
	svc := newTestTradeService(newMemTradeStore(), newMemOrderStore(), &memWithdrawalStore{},
		newFakeRegistry(&fakeChainClient{chainID: 8453}))

	err := svc.Record(context.Background(), domain.Trade{TradeID: "deadbeef"})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestSettleTransitionsPendingTrade(t *testing.T) {
	trades := newMemTradeStore(domain.Trade{
		TradeID: expiredTradeA,
		Status:  domain.TradePending,
	})
	svc := newTestTradeService(trades, newMemOrderStore(), &memWithdrawalStore{},
		newFakeRegistry(&fakeChainClient{chainID: 8453}))

	require.NoError(t, svc.Settle(context.Background(), expiredTradeA, "0xsettle"))

	tr, err := trades.GetByID(context.Background(), expiredTradeA)
	require.NoError(t, err)
	require.Equal(t, domain.TradeSettled, tr.Status)
	require.Equal(t, "0xsettle", tr.SettlementTxHash)
	require.NotNil(t, tr.SettledAt)
}

func TestSettleRejectsConcurrentProof(t *testing.T) {
	trades := newMemTradeStore(domain.Trade{
		TradeID: expiredTradeA,
		Status:  domain.TradePending,
	})
	svc := newTestTradeService(trades, newMemOrderStore(), &memWithdrawalStore{},
		newFakeRegistry(&fakeChainClient{chainID: 8453}))

	require.NoError(t, svc.proofs.TryAcquire(expiredTradeA))
	defer svc.proofs.Release(expiredTradeA)

	err := svc.Settle(context.Background(), expiredTradeA, "0xsettle")
	require.ErrorIs(t, err, domain.ErrProofInProgress)

	tr, _ := trades.GetByID(context.Background(), expiredTradeA)
	require.Equal(t, domain.TradePending, tr.Status)
}

func TestSettleLostRaceSurfacesInvalidTransition(t *testing.T) {
	// The reconciler expired the trade between the client reading it and
	// calling settle.
	trades := newMemTradeStore(domain.Trade{
		TradeID: expiredTradeA,
		Status:  domain.TradeExpired,
	})
	svc := newTestTradeService(trades, newMemOrderStore(), &memWithdrawalStore{},
		newFakeRegistry(&fakeChainClient{chainID: 8453}))

	err := svc.Settle(context.Background(), expiredTradeA, "0xsettle")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	require.Zero(t, svc.proofs.InFlight())
}

func TestActivityTimelineMergesAndSorts(t *testing.T) {
	base := time.Unix(1700000000, 0).UTC()
	settledAt := base.Add(2 * time.Hour)

	orders := newMemOrderStore(domain.Order{OrderID: testOrderID, ChainID: 8453})
	trades := newMemTradeStore(
		domain.Trade{
			TradeID:          expiredTradeA,
			OrderID:          testOrderID,
			Buyer:            "0xbuyer1",
			TokenAmount:      "5000000",
			Status:           domain.TradeSettled,
			FeeAmount:        "50000",
			SettlementTxHash: "0xsettle",
			CreatedAt:        base,
			SettledAt:        &settledAt,
			ExpiresAt:        base.Add(30 * time.Minute),
		},
		domain.Trade{
			TradeID:     expiredTradeB,
			OrderID:     testOrderID,
			Buyer:       "0xbuyer2",
			TokenAmount: "1000000",
			Status:      domain.TradePending,
			CreatedAt:   base.Add(3 * time.Hour),
			ExpiresAt:   base.Add(4 * time.Hour),
		},
	)
	withdrawals := &memWithdrawalStore{}
	require.NoError(t, withdrawals.Create(context.Background(), domain.Withdrawal{
		OrderID:        testOrderID,
		Amount:         "2000000",
		RemainingAfter: "3000000",
		TxHash:         "0xwithdraw",
		CreatedAt:      base.Add(time.Hour),
	}))

	svc := newTestTradeService(trades, orders, withdrawals,
		newFakeRegistry(&fakeChainClient{
			chainID: 8453,
			configFn: func(ctx context.Context) (domain.ContractConfig, error) {
				return domain.ContractConfig{FeeRateBps: "100"}, nil
			},
		}))

	order, acts, err := svc.ActivityTimeline(context.Background(), testOrderID)
	require.NoError(t, err)
	require.Equal(t, testOrderID, order.OrderID)
	require.Len(t, acts, 3)

	// Most recent first: pending trade, then the settled trade at its
	// settlement time, then the withdrawal.
	require.Equal(t, domain.ActivityPendingTrade, acts[0].Kind)
	require.Equal(t, expiredTradeB, acts[0].TradeID)

	require.Equal(t, domain.ActivityTrade, acts[1].Kind)
	require.Equal(t, settledAt, acts[1].Timestamp)
	require.Equal(t, "50000", acts[1].FeeAmount)

	require.Equal(t, domain.ActivityWithdrawal, acts[2].Kind)
	require.Equal(t, "0xwithdraw", acts[2].TxHash)
}

func TestActivityTimelineFeeFallback(t *testing.T) {
	base := time.Unix(1700000000, 0).UTC()
	settledAt := base.Add(time.Minute)

	orders := newMemOrderStore(domain.Order{OrderID: testOrderID, ChainID: 8453})
	trades := newMemTradeStore(domain.Trade{
		TradeID:     expiredTradeA,
		OrderID:     testOrderID,
		TokenAmount: "5000000",
		Status:      domain.TradeSettled,
		CreatedAt:   base,
		SettledAt:   &settledAt,
	})

	// Contract reports 250 bps; the trade predates fee recording.
	svc := newTestTradeService(trades, orders, &memWithdrawalStore{},
		newFakeRegistry(&fakeChainClient{
			chainID: 8453,
			configFn: func(ctx context.Context) (domain.ContractConfig, error) {
				return domain.ContractConfig{FeeRateBps: "250"}, nil
			},
		}))

	_, acts, err := svc.ActivityTimeline(context.Background(), testOrderID)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	require.Equal(t, "125000", acts[0].FeeAmount)
}

func TestActivityTimelineDefaultFeeRateWhenChainDown(t *testing.T) {
	base := time.Unix(1700000000, 0).UTC()
	settledAt := base.Add(time.Minute)

	orders := newMemOrderStore(domain.Order{OrderID: testOrderID, ChainID: 8453})
	trades := newMemTradeStore(domain.Trade{
		TradeID:     expiredTradeA,
		OrderID:     testOrderID,
		TokenAmount: "10000",
		Status:      domain.TradeSettled,
		CreatedAt:   base,
		SettledAt:   &settledAt,
	})

	// No client for the order's chain: the 100 bps default applies.
	svc := newTestTradeService(trades, orders, &memWithdrawalStore{}, newFakeRegistry())

	_, acts, err := svc.ActivityTimeline(context.Background(), testOrderID)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	require.Equal(t, "100", acts[0].FeeAmount)
}

func TestRecordWithdrawal(t *testing.T) {
	withdrawals := &memWithdrawalStore{}
	svc := newTestTradeService(newMemTradeStore(), newMemOrderStore(), withdrawals,
		newFakeRegistry(&fakeChainClient{chainID: 8453}))

	err := svc.RecordWithdrawal(context.Background(), domain.Withdrawal{
		OrderID:        testOrderID,
		Amount:         "2000000",
		RemainingAfter: "3000000",
		TxHash:         "0xwithdraw",
	})
	require.NoError(t, err)

	stored, err := withdrawals.ListByOrder(context.Background(), testOrderID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.False(t, stored[0].CreatedAt.IsZero())

	err = svc.RecordWithdrawal(context.Background(), domain.Withdrawal{OrderID: testOrderID})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestActivityTimelineUnknownOrder(t *testing.T) {
	svc := newTestTradeService(newMemTradeStore(), newMemOrderStore(), &memWithdrawalStore{},
		newFakeRegistry(&fakeChainClient{chainID: 8453}))

	_, _, err := svc.ActivityTimeline(context.Background(), testOrderID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNewOrderFlow(t *testing.T) {
	committed := crypto.ComputeAccountLinesHash("Zhao Liu", "zhao@example.com")

	client := &fakeChainClient{
		chainID: 8453,
		orderHashFn: func(ctx context.Context, orderID string) ([32]byte, error) {
			return committed, nil
		},
		configFn: func(ctx context.Context) (domain.ContractConfig, error) {
			return domain.ContractConfig{FeeRateBps: "100"}, nil
		},
	}
	registry := newFakeRegistry(client)

	orders := newMemOrderStore(domain.Order{
		OrderID:         testOrderID,
		Seller:          "0xseller",
		Token:           "0xusdc",
		TotalAmount:     "1000000000",
		RemainingAmount: "1000000000",
		ChainID:         8453,
		IsPublic:        true,
	})

	verifier := NewPaymentVerifier(orders, registry, testLogger())
	verifier.retryDelay = time.Millisecond
	res, err := verifier.SubmitPaymentInfo(context.Background(), SubmitPaymentInfoRequest{
		OrderID:     testOrderID,
		AccountID:   "zhao@example.com",
		AccountName: "Zhao Liu",
	})
	require.NoError(t, err)
	require.Equal(t, testOrderID, res.EffectiveOrderID)

	// A fresh order with verified payment info has an empty timeline.
	svc := newTestTradeService(newMemTradeStore(), orders, &memWithdrawalStore{}, registry)
	order, acts, err := svc.ActivityTimeline(context.Background(), testOrderID)
	require.NoError(t, err)
	require.True(t, order.HasPaymentInfo())
	require.Empty(t, acts)
}

func TestFallbackFee(t *testing.T) {
	cases := []struct {
		amount string
		bps    uint64
		want   string
	}{
		{"10000", 100, "100"},
		{"5000000", 250, "125000"},
		{"1", 100, "0"}, // floors, never rounds up
		{"not-a-number", 100, "0"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, fallbackFee(tc.amount, tc.bps), "fallbackFee(%s, %d)", tc.amount, tc.bps)
	}
}
