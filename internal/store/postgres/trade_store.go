package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peerlane/relay/internal/domain"
)

// TradeStore is the PostgreSQL implementation of domain.TradeStore.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given client.
func NewTradeStore(client *Client) *TradeStore {
	return &TradeStore{pool: client.Pool()}
}

const tradeColumns = `trade_id, order_id, buyer, chain_id, token_amount,
	cny_amount, fee_amount, status, created_at, expires_at, settled_at,
	settlement_tx_hash, pdf_file, pdf_filename`

func scanTrade(row pgx.Row) (domain.Trade, error) {
	var t domain.Trade
	var status int32
	err := row.Scan(
		&t.TradeID, &t.OrderID, &t.Buyer, &t.ChainID, &t.TokenAmount,
		&t.CNYAmount, &t.FeeAmount, &status, &t.CreatedAt, &t.ExpiresAt,
		&t.SettledAt, &t.SettlementTxHash, &t.PDFFile, &t.PDFFilename,
	)
	if err != nil {
		return domain.Trade{}, err
	}
	// A code outside the closed set means a corrupted row, not a new state.
	t.Status, err = domain.ParseTradeStatus(status)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("trade %s: %w", t.TradeID, err)
	}
	return t, nil
}

// Create inserts a new trade in Pending status.
func (s *TradeStore) Create(ctx context.Context, t domain.Trade) error {
	const q = `
		INSERT INTO trades (trade_id, order_id, buyer, chain_id, token_amount,
			cny_amount, fee_amount, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, q,
		t.TradeID, t.OrderID, t.Buyer, t.ChainID, t.TokenAmount,
		t.CNYAmount, t.FeeAmount, t.Status, createdAt, t.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create trade %s: %w", t.TradeID, err)
	}
	return nil
}

// GetByID fetches one trade.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (domain.Trade, error) {
	q := `SELECT ` + tradeColumns + ` FROM trades WHERE trade_id = $1`
	t, err := scanTrade(s.pool.QueryRow(ctx, q, tradeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Trade{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Trade{}, fmt.Errorf("get trade %s: %w", tradeID, err)
	}
	return t, nil
}

func (s *TradeStore) list(ctx context.Context, q string, args ...any) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListByOrder returns all trades against an order, newest first.
func (s *TradeStore) ListByOrder(ctx context.Context, orderID string) ([]domain.Trade, error) {
	q := `SELECT ` + tradeColumns + ` FROM trades WHERE order_id = $1 ORDER BY created_at DESC`
	trades, err := s.list(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("list trades for order %s: %w", orderID, err)
	}
	return trades, nil
}

// ListByBuyer returns all trades a buyer has opened, newest first.
func (s *TradeStore) ListByBuyer(ctx context.Context, buyer string) ([]domain.Trade, error) {
	q := `SELECT ` + tradeColumns + ` FROM trades WHERE buyer = $1 ORDER BY created_at DESC`
	trades, err := s.list(ctx, q, buyer)
	if err != nil {
		return nil, fmt.Errorf("list trades for buyer %s: %w", buyer, err)
	}
	return trades, nil
}

// ListBySeller returns trades against any of the seller's orders, newest
// first.
func (s *TradeStore) ListBySeller(ctx context.Context, seller string) ([]domain.Trade, error) {
	q := `SELECT ` + tradeColumns + ` FROM trades t
		WHERE EXISTS (SELECT 1 FROM orders o WHERE o.order_id = t.order_id AND o.seller = $1)
		ORDER BY t.created_at DESC`
	trades, err := s.list(ctx, q, seller)
	if err != nil {
		return nil, fmt.Errorf("list trades for seller %s: %w", seller, err)
	}
	return trades, nil
}

// ListExpiredPending returns pending trades whose payment window has lapsed,
// across every chain, oldest first so the longest-overdue trades cancel
// first.
func (s *TradeStore) ListExpiredPending(ctx context.Context, now time.Time) ([]domain.Trade, error) {
	q := `SELECT ` + tradeColumns + ` FROM trades
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at ASC`
	trades, err := s.list(ctx, q, domain.TradePending, now)
	if err != nil {
		return nil, fmt.Errorf("list expired pending trades: %w", err)
	}
	return trades, nil
}

// UpdateStatus applies a lifecycle transition guarded by the expected prior
// status, so a concurrent settle and expire cannot both win. settled_at is
// stamped only when the trade moves to Settled.
func (s *TradeStore) UpdateStatus(ctx context.Context, tradeID string, from, to domain.TradeStatus, settlementTxHash string) error {
	if !from.CanTransition(to) {
		return domain.ErrInvalidTransition
	}

	const q = `
		UPDATE trades SET
			status = $3,
			settlement_tx_hash = CASE WHEN $4 <> '' THEN $4 ELSE settlement_tx_hash END,
			settled_at = CASE WHEN $3 = 1 THEN NOW() ELSE settled_at END
		WHERE trade_id = $1 AND status = $2`

	tag, err := s.pool.Exec(ctx, q, tradeID, from, to, settlementTxHash)
	if err != nil {
		return fmt.Errorf("update trade %s status: %w", tradeID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM trades WHERE trade_id = $1)", tradeID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("update trade %s status: %w", tradeID, err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrInvalidTransition
	}
	return nil
}

// AttachPDF stores a payment receipt document on the trade.
func (s *TradeStore) AttachPDF(ctx context.Context, tradeID string, pdf []byte, filename string) error {
	const q = `UPDATE trades SET pdf_file = $2, pdf_filename = $3 WHERE trade_id = $1`
	tag, err := s.pool.Exec(ctx, q, tradeID, pdf, filename)
	if err != nil {
		return fmt.Errorf("attach pdf to trade %s: %w", tradeID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.TradeStore = (*TradeStore)(nil)
