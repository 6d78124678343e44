package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/peerlane/relay/internal/crypto"
	"github.com/peerlane/relay/internal/domain"
)

// DefaultTickInterval is how often the reconciler sweeps for expired trades.
const DefaultTickInterval = 30 * time.Second

// Lease elects a single active reconciler when several relay instances share
// one database. Nil means single-instance deployment and every tick runs.
type Lease interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (func(), error)
}

// CancelNotifier is told when a sweep cancelled trades. Implementations must
// not block.
type CancelNotifier interface {
	TradesCancelled(ctx context.Context, cancelled int, totalCostWei string)
}

// ReconcilerStats is a snapshot of process-lifetime counters.
type ReconcilerStats struct {
	TradesCancelled uint64
	TotalCostWei    string
}

// Reconciler periodically cancels pending trades whose payment window has
// lapsed, paying the gas from the relay wallet. One database query per tick
// finds expired trades across every chain; cancellations then run
// sequentially per trade, so one wallet nonce sequence stays consistent and
// a single bad trade cannot wedge the rest of the sweep.
type Reconciler struct {
	trades   domain.TradeStore
	clients  ClientRegistry
	gas      *GasLedger
	lease    Lease          // optional
	notifier CancelNotifier // optional
	logger   *slog.Logger

	interval time.Duration

	mu             sync.Mutex
	cancelledTotal uint64
	costWeiTotal   *big.Int

	now func() time.Time // test hook
}

// NewReconciler wires the reconciler. lease and notifier may be nil.
func NewReconciler(
	trades domain.TradeStore,
	clients ClientRegistry,
	gas *GasLedger,
	lease Lease,
	notifier CancelNotifier,
	interval time.Duration,
	logger *slog.Logger,
) (*Reconciler, error) {
	if len(clients.ChainIDs()) == 0 {
		return nil, errors.New("reconciler: no chain clients registered")
	}
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Reconciler{
		trades:       trades,
		clients:      clients,
		gas:          gas,
		lease:        lease,
		notifier:     notifier,
		logger:       logger.With(slog.String("component", "reconciler")),
		interval:     interval,
		costWeiTotal: new(big.Int),
		now:          time.Now,
	}, nil
}

// Run sweeps on a fixed interval until the context is cancelled. The first
// sweep runs immediately so restarts do not delay overdue cancellations by a
// full interval.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info("reconciler started",
		slog.Duration("interval", r.interval),
		slog.Int("chains", len(r.clients.ChainIDs())))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick runs one sweep, guarded by the leader lease when configured.
func (r *Reconciler) tick(ctx context.Context) {
	if r.lease != nil {
		release, err := r.lease.TryAcquire(ctx, "reconciler", r.interval)
		if errors.Is(err, domain.ErrLockHeld) {
			r.logger.Debug("skipping sweep, another instance leads")
			return
		}
		if err != nil {
			r.logger.Warn("skipping sweep, lease unavailable", slog.String("error", err.Error()))
			return
		}
		defer release()
	}

	if _, err := r.Sweep(ctx); err != nil {
		r.logger.Error("sweep failed", slog.String("error", err.Error()))
	}
}

// Sweep cancels every currently expired pending trade once and returns how
// many were cancelled. Exported so one-shot invocations and tests can drive
// the reconciler without the ticker.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	expired, err := r.trades.ListExpiredPending(ctx, r.now())
	if err != nil {
		return 0, fmt.Errorf("list expired trades: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	r.logger.Info("found expired pending trades", slog.Int("count", len(expired)))

	cancelled := 0
	sweepCost := new(big.Int)
	for _, t := range expired {
		if ctx.Err() != nil {
			break
		}
		receipt, ok := r.cancelOne(ctx, t)
		if !ok {
			continue
		}
		cancelled++
		if receipt.CostWei != nil {
			sweepCost.Add(sweepCost, receipt.CostWei)
		}
	}

	if cancelled > 0 {
		r.mu.Lock()
		r.cancelledTotal += uint64(cancelled)
		r.costWeiTotal.Add(r.costWeiTotal, sweepCost)
		r.mu.Unlock()

		r.logger.Info("sweep complete",
			slog.Int("cancelled", cancelled),
			slog.String("cost_wei", sweepCost.String()))

		if r.notifier != nil {
			r.notifier.TradesCancelled(ctx, cancelled, sweepCost.String())
		}
	}
	return cancelled, nil
}

// cancelOne cancels a single expired trade on-chain and records the result.
// Failures are logged and skipped; the trade is retried on the next sweep.
func (r *Reconciler) cancelOne(ctx context.Context, t domain.Trade) (domain.GasReceipt, bool) {
	client, ok := r.clients.Get(t.ChainID)
	if !ok {
		r.logger.Warn("no client for chain, skipping trade",
			slog.String("trade_id", t.TradeID),
			slog.Uint64("chain_id", t.ChainID))
		return domain.GasReceipt{}, false
	}

	tradeID, err := crypto.ParseHash32(t.TradeID)
	if err != nil {
		r.logger.Error("malformed trade id, skipping",
			slog.String("trade_id", t.TradeID),
			slog.String("error", err.Error()))
		return domain.GasReceipt{}, false
	}

	txHash, receipt, err := client.CancelExpiredTrade(ctx, tradeID)
	if err != nil {
		r.logger.Error("cancellation failed",
			slog.String("trade_id", t.TradeID),
			slog.Uint64("chain_id", t.ChainID),
			slog.String("error", err.Error()))
		return domain.GasReceipt{}, false
	}

	// The chain transition already happened; a failed mirror write here is
	// re-driven by the next sweep finding the trade still pending and the
	// contract rejecting the duplicate cancel.
	if err := r.trades.UpdateStatus(ctx, t.TradeID, domain.TradePending, domain.TradeExpired, ""); err != nil {
		r.logger.Error("failed to mark trade expired",
			slog.String("trade_id", t.TradeID),
			slog.String("error", err.Error()))
	}

	r.gas.Record(ctx, t.ChainID, domain.OpCancelExpiredTrade, t.TradeID, t.OrderID, txHash, receipt)

	r.logger.Info("cancelled expired trade",
		slog.String("trade_id", t.TradeID),
		slog.Uint64("chain_id", t.ChainID),
		slog.String("tx_hash", txHash),
		slog.Uint64("gas_used", receipt.GasUsed))

	return receipt, true
}

// Stats returns the process-lifetime cancellation counters.
func (r *Reconciler) Stats() ReconcilerStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ReconcilerStats{
		TradesCancelled: r.cancelledTotal,
		TotalCostWei:    r.costWeiTotal.String(),
	}
}
