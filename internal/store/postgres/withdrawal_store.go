package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peerlane/relay/internal/domain"
)

// WithdrawalStore is the PostgreSQL implementation of domain.WithdrawalStore.
type WithdrawalStore struct {
	pool *pgxpool.Pool
}

// NewWithdrawalStore creates a WithdrawalStore backed by the given client.
func NewWithdrawalStore(client *Client) *WithdrawalStore {
	return &WithdrawalStore{pool: client.Pool()}
}

// Create appends a withdrawal record.
func (s *WithdrawalStore) Create(ctx context.Context, w domain.Withdrawal) error {
	const q = `
		INSERT INTO withdrawals (order_id, amount, remaining_after, tx_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	createdAt := w.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, q, w.OrderID, w.Amount, w.RemainingAfter, w.TxHash, createdAt)
	if err != nil {
		return fmt.Errorf("create withdrawal for order %s: %w", w.OrderID, err)
	}
	return nil
}

// ListByOrder returns all withdrawals for an order, newest first.
func (s *WithdrawalStore) ListByOrder(ctx context.Context, orderID string) ([]domain.Withdrawal, error) {
	const q = `
		SELECT id, order_id, amount, remaining_after, tx_hash, created_at
		FROM withdrawals WHERE order_id = $1 ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals for order %s: %w", orderID, err)
	}
	defer rows.Close()

	var out []domain.Withdrawal
	for rows.Next() {
		var w domain.Withdrawal
		if err := rows.Scan(&w.ID, &w.OrderID, &w.Amount, &w.RemainingAfter, &w.TxHash, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

var _ domain.WithdrawalStore = (*WithdrawalStore)(nil)
