package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/peerlane/relay/internal/domain"
)

// defaultFeeRateBps is used when the contract config cannot be fetched or
// parsed. 100 bps = 1%.
const defaultFeeRateBps = 100

// TradeService owns trade lifecycle transitions and the order activity
// timeline.
type TradeService struct {
	trades      domain.TradeStore
	orders      domain.OrderStore
	withdrawals domain.WithdrawalStore
	configs     *ConfigCache
	proofs      *ProofGuard
	logger      *slog.Logger
}

// NewTradeService wires the trade service.
func NewTradeService(
	trades domain.TradeStore,
	orders domain.OrderStore,
	withdrawals domain.WithdrawalStore,
	configs *ConfigCache,
	proofs *ProofGuard,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		trades:      trades,
		orders:      orders,
		withdrawals: withdrawals,
		configs:     configs,
		proofs:      proofs,
		logger:      logger.With(slog.String("component", "trades")),
	}
}

// Record mirrors a newly created on-chain trade into the database. New trades
// always start pending.
func (s *TradeService) Record(ctx context.Context, t domain.Trade) error {
	if !strings.HasPrefix(t.TradeID, "0x") {
		return fmt.Errorf("%w: trade id must be 0x-prefixed", domain.ErrValidation)
	}
	t.Status = domain.TradePending
	return s.trades.Create(ctx, t)
}

// Settle marks a pending trade settled after its payment proof was accepted
// on-chain. At most one settlement attempt per trade runs at a time; a
// concurrent attempt gets domain.ErrProofInProgress. The status guard in the
// store makes a lost race surface as domain.ErrInvalidTransition.
func (s *TradeService) Settle(ctx context.Context, tradeID, settlementTxHash string) error {
	if err := s.proofs.TryAcquire(tradeID); err != nil {
		return err
	}
	defer s.proofs.Release(tradeID)

	if err := s.trades.UpdateStatus(ctx, tradeID, domain.TradePending, domain.TradeSettled, settlementTxHash); err != nil {
		return err
	}

	s.logger.Info("trade settled",
		slog.String("trade_id", tradeID),
		slog.String("settlement_tx", settlementTxHash))
	return nil
}

// RecordWithdrawal mirrors a seller's on-chain withdrawal into the database
// so the order timeline reflects it.
func (s *TradeService) RecordWithdrawal(ctx context.Context, w domain.Withdrawal) error {
	if w.OrderID == "" || w.TxHash == "" {
		return fmt.Errorf("%w: order id and tx hash are required", domain.ErrValidation)
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	return s.withdrawals.Create(ctx, w)
}

// ActivityTimeline returns the order and its merged trade/withdrawal
// timeline, most recent first. Settled trades missing a recorded fee get a
// fallback fee computed from the chain's current fee rate.
func (s *TradeService) ActivityTimeline(ctx context.Context, orderID string) (domain.Order, []domain.Activity, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, nil, err
	}

	trades, err := s.trades.ListByOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, nil, err
	}
	withdrawals, err := s.withdrawals.ListByOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, nil, err
	}

	feeRateBps := s.feeRateFor(ctx, order.ChainID)

	acts := make([]domain.Activity, 0, len(trades)+len(withdrawals))
	for _, t := range trades {
		switch t.Status {
		case domain.TradePending:
			acts = append(acts, domain.Activity{
				Kind:        domain.ActivityPendingTrade,
				Timestamp:   t.CreatedAt,
				TradeID:     t.TradeID,
				Buyer:       t.Buyer,
				TokenAmount: t.TokenAmount,
				CNYAmount:   t.CNYAmount,
				ExpiresAt:   t.ExpiresAt.Unix(),
			})
		case domain.TradeSettled:
			ts := t.CreatedAt
			if t.SettledAt != nil {
				ts = *t.SettledAt
			}
			fee := t.FeeAmount
			if fee == "" {
				fee = fallbackFee(t.TokenAmount, feeRateBps)
			}
			acts = append(acts, domain.Activity{
				Kind:             domain.ActivityTrade,
				Timestamp:        ts,
				TradeID:          t.TradeID,
				Buyer:            t.Buyer,
				TokenAmount:      t.TokenAmount,
				CNYAmount:        t.CNYAmount,
				FeeAmount:        fee,
				SettlementTxHash: t.SettlementTxHash,
			})
		case domain.TradeExpired:
			acts = append(acts, domain.Activity{
				Kind:        domain.ActivityExpiredTrade,
				Timestamp:   t.ExpiresAt,
				TradeID:     t.TradeID,
				Buyer:       t.Buyer,
				TokenAmount: t.TokenAmount,
				CNYAmount:   t.CNYAmount,
				ExpiresAt:   t.ExpiresAt.Unix(),
			})
		default:
			// Unknown status codes are an anomaly; surface them in logs
			// instead of silently shaping the timeline around them.
			s.logger.Warn("skipping trade with unknown status",
				slog.String("trade_id", t.TradeID),
				slog.Int("status", int(t.Status)))
		}
	}

	for _, w := range withdrawals {
		acts = append(acts, domain.Activity{
			Kind:           domain.ActivityWithdrawal,
			Timestamp:      w.CreatedAt,
			Amount:         w.Amount,
			RemainingAfter: w.RemainingAfter,
			TxHash:         w.TxHash,
		})
	}

	domain.SortActivities(acts)
	return order, acts, nil
}

// feeRateFor reads the chain's fee rate from the cached contract config,
// degrading to the default when the chain or the value is unavailable.
func (s *TradeService) feeRateFor(ctx context.Context, chainID uint64) uint64 {
	cfg, err := s.configs.Get(ctx, chainID)
	if err != nil {
		s.logger.Warn("using default fee rate",
			slog.Uint64("chain_id", chainID),
			slog.String("error", err.Error()))
		return defaultFeeRateBps
	}
	rate, ok := new(big.Int).SetString(cfg.FeeRateBps, 10)
	if !ok || !rate.IsUint64() {
		return defaultFeeRateBps
	}
	return rate.Uint64()
}

// fallbackFee computes floor(tokenAmount * feeRateBps / 10000) in big.Int.
func fallbackFee(tokenAmount string, feeRateBps uint64) string {
	amount, ok := new(big.Int).SetString(tokenAmount, 10)
	if !ok {
		return "0"
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(feeRateBps))
	fee.Quo(fee, big.NewInt(10_000))
	return fee.String()
}
