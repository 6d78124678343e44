package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/peerlane/relay/internal/crypto"
	"github.com/peerlane/relay/internal/domain"
)

const (
	verifyAttempts   = 3
	verifyRetryDelay = 3 * time.Second

	// Field lengths are committed with a single length byte.
	maxAccountFieldLen = 255
)

// SubmitPaymentInfoRequest carries a seller's plaintext payment details for
// one order. ChainID and TxHash are optional: ChainID is needed when the
// order has not been mirrored into the database yet, TxHash enables the
// fallback lookup when OrderID is actually a creation transaction hash.
type SubmitPaymentInfoRequest struct {
	OrderID     string
	AccountID   string
	AccountName string
	ChainID     uint64 // 0 = unknown
	TxHash      string
}

// SubmitPaymentInfoResult reports a successful verification.
type SubmitPaymentInfoResult struct {
	// EffectiveOrderID is the order the details were stored under. It differs
	// from the requested id when the tx-hash fallback resolved a real order.
	EffectiveOrderID string
	ComputedHash     string
}

// PaymentVerifier checks submitted plaintext payment details against the
// on-chain commitment before persisting them. The chain is authoritative:
// details are stored only after the computed hash matches the contract's
// accountLinesHash, so nobody can attach fake payment routing to an order.
type PaymentVerifier struct {
	orders  domain.OrderStore
	clients ClientRegistry
	logger  *slog.Logger

	attempts   int
	retryDelay time.Duration
}

// NewPaymentVerifier creates a PaymentVerifier with production retry timing.
func NewPaymentVerifier(orders domain.OrderStore, clients ClientRegistry, logger *slog.Logger) *PaymentVerifier {
	return &PaymentVerifier{
		orders:     orders,
		clients:    clients,
		logger:     logger.With(slog.String("component", "payment_verifier")),
		attempts:   verifyAttempts,
		retryDelay: verifyRetryDelay,
	}
}

// SubmitPaymentInfo validates, verifies, and stores payment details.
//
// Verification polls the chain up to three times (new orders may not be
// visible on the RPC node yet). An all-zero on-chain hash means the order id
// is unknown to the contract; only in that case, and only when a tx hash was
// supplied, the real order id is recovered from the creation receipt and
// verified once more. A non-zero mismatch after all attempts is a hard
// failure reported as *domain.HashMismatchError.
func (v *PaymentVerifier) SubmitPaymentInfo(ctx context.Context, req SubmitPaymentInfoRequest) (SubmitPaymentInfoResult, error) {
	accountID := strings.TrimSpace(req.AccountID)
	accountName := strings.TrimSpace(req.AccountName)
	if accountID == "" || accountName == "" {
		return SubmitPaymentInfoResult{}, fmt.Errorf("%w: account_id and account_name cannot be empty", domain.ErrValidation)
	}
	if len(accountID) > maxAccountFieldLen || len(accountName) > maxAccountFieldLen {
		return SubmitPaymentInfoResult{}, fmt.Errorf("%w: account fields must be at most %d bytes", domain.ErrValidation, maxAccountFieldLen)
	}

	computed := crypto.ComputeAccountLinesHash(accountName, accountID)
	computedHex := crypto.HashHex(computed)

	// The order may not be mirrored yet if payment info arrives before the
	// event listener catches up; that is not an error.
	var chainID uint64
	order, err := v.orders.GetByID(ctx, req.OrderID)
	switch {
	case err == nil:
		if order.HasPaymentInfo() {
			return SubmitPaymentInfoResult{}, domain.ErrAlreadySet
		}
		chainID = order.ChainID
	case errors.Is(err, domain.ErrNotFound):
		chainID = req.ChainID
	default:
		return SubmitPaymentInfoResult{}, err
	}
	if chainID == 0 {
		chainID = req.ChainID
	}
	if chainID == 0 {
		return SubmitPaymentInfoResult{}, domain.ErrMissingChainContext
	}

	client, ok := v.clients.Get(chainID)
	if !ok {
		return SubmitPaymentInfoResult{}, fmt.Errorf("chain %d: %w", chainID, domain.ErrChainUnavailable)
	}

	effectiveOrderID := req.OrderID
	verified := false
	gotZeroHash := false
	var lastOnChain string

	for attempt := 1; attempt <= v.attempts; attempt++ {
		onChain, err := client.GetOrderHash(ctx, effectiveOrderID)
		if err != nil {
			v.logger.Warn("could not query on-chain hash",
				slog.String("order_id", effectiveOrderID),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
		} else {
			lastOnChain = crypto.HashHex(onChain)
			if onChain == computed {
				verified = true
				break
			}
			if crypto.IsZeroHash(onChain) {
				// Unknown order id; might be a tx hash, might just not be
				// synced on this node yet.
				gotZeroHash = true
			} else {
				v.logger.Info("hash mismatch, waiting for rpc sync",
					slog.String("order_id", effectiveOrderID),
					slog.Int("attempt", attempt))
			}
		}

		if attempt < v.attempts {
			select {
			case <-ctx.Done():
				return SubmitPaymentInfoResult{}, ctx.Err()
			case <-time.After(v.retryDelay):
			}
		}
	}

	// The fallback runs only when every observation was "order unknown".
	// A non-zero mismatch means the id exists with different details, and
	// no alternate id should be guessed for it.
	if !verified && gotZeroHash && req.TxHash != "" {
		realID, err := client.GetOrderIDFromTx(ctx, req.TxHash)
		if err != nil {
			v.logger.Warn("could not extract order id from tx",
				slog.String("tx_hash", req.TxHash),
				slog.String("error", err.Error()))
		} else {
			v.logger.Info("resolved real order id from tx receipt",
				slog.String("order_id", realID),
				slog.String("requested_as", req.OrderID))
			effectiveOrderID = realID

			onChain, err := client.GetOrderHash(ctx, effectiveOrderID)
			if err != nil {
				v.logger.Warn("could not verify hash for resolved order",
					slog.String("order_id", effectiveOrderID),
					slog.String("error", err.Error()))
			} else {
				lastOnChain = crypto.HashHex(onChain)
				verified = onChain == computed
			}
		}
	}

	if !verified {
		return SubmitPaymentInfoResult{}, &domain.HashMismatchError{
			OrderID:  effectiveOrderID,
			Computed: computedHex,
			OnChain:  lastOnChain,
		}
	}

	if err := v.orders.UpdatePaymentInfo(ctx, effectiveOrderID, accountID, accountName); err != nil {
		return SubmitPaymentInfoResult{}, err
	}

	v.logger.Info("payment info stored",
		slog.String("order_id", effectiveOrderID),
		slog.String("requested_as", req.OrderID))

	return SubmitPaymentInfoResult{
		EffectiveOrderID: effectiveOrderID,
		ComputedHash:     computedHex,
	}, nil
}
