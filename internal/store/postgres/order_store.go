package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peerlane/relay/internal/domain"
)

// OrderStore is the PostgreSQL implementation of domain.OrderStore.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates an OrderStore backed by the given client.
func NewOrderStore(client *Client) *OrderStore {
	return &OrderStore{pool: client.Pool()}
}

const orderColumns = `order_id, seller, token, total_amount, remaining_amount,
	exchange_rate, rail, account_id, account_name, chain_id, is_public,
	private_code, created_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.OrderID, &o.Seller, &o.Token, &o.TotalAmount, &o.RemainingAmount,
		&o.ExchangeRate, &o.Rail, &o.AccountID, &o.AccountName, &o.ChainID,
		&o.IsPublic, &o.PrivateCode, &o.CreatedAt,
	)
	return o, err
}

// Upsert inserts the order or refreshes its mutable mirror fields. Payment
// details are deliberately excluded from the update set; they are written
// only through UpdatePaymentInfo.
func (s *OrderStore) Upsert(ctx context.Context, o domain.Order) error {
	const q = `
		INSERT INTO orders (order_id, seller, token, total_amount,
			remaining_amount, exchange_rate, rail, account_id, account_name,
			chain_id, is_public, private_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (order_id) DO UPDATE SET
			remaining_amount = EXCLUDED.remaining_amount,
			exchange_rate = EXCLUDED.exchange_rate`

	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, q,
		o.OrderID, o.Seller, o.Token, o.TotalAmount, o.RemainingAmount,
		o.ExchangeRate, o.Rail, o.AccountID, o.AccountName, o.ChainID,
		o.IsPublic, o.PrivateCode, createdAt,
	)
	if err != nil {
		return fmt.Errorf("upsert order %s: %w", o.OrderID, err)
	}
	return nil
}

// GetByID fetches one order by its on-chain identifier.
func (s *OrderStore) GetByID(ctx context.Context, orderID string) (domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`
	o, err := scanOrder(s.pool.QueryRow(ctx, q, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return o, nil
}

// GetByPrivateCode fetches an unlisted order by its access code.
func (s *OrderStore) GetByPrivateCode(ctx context.Context, code string) (domain.Order, error) {
	if strings.TrimSpace(code) == "" {
		return domain.Order{}, domain.ErrNotFound
	}
	q := `SELECT ` + orderColumns + ` FROM orders WHERE private_code = $1 AND private_code <> ''`
	o, err := scanOrder(s.pool.QueryRow(ctx, q, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order by code: %w", err)
	}
	return o, nil
}

// ListActive returns public orders that still have balance to sell, newest
// first, optionally narrowed by seller, token, or chain.
func (s *OrderStore) ListActive(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + orderColumns + ` FROM orders
		WHERE is_public = TRUE AND remaining_amount <> '0'`)

	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Seller != "" {
		sb.WriteString(" AND seller = " + arg(f.Seller))
	}
	if f.Token != "" {
		sb.WriteString(" AND token = " + arg(f.Token))
	}
	if f.ChainID != nil {
		sb.WriteString(" AND chain_id = " + arg(*f.ChainID))
	}
	sb.WriteString(" ORDER BY created_at DESC")
	if f.Limit > 0 {
		sb.WriteString(" LIMIT " + arg(f.Limit))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdatePaymentInfo writes plaintext payment details exactly once. The guard
// is in the WHERE clause so two racing writers cannot both succeed.
func (s *OrderStore) UpdatePaymentInfo(ctx context.Context, orderID, accountID, accountName string) error {
	const q = `
		UPDATE orders SET account_id = $2, account_name = $3
		WHERE order_id = $1 AND account_id = '' AND account_name = ''`

	tag, err := s.pool.Exec(ctx, q, orderID, accountID, accountName)
	if err != nil {
		return fmt.Errorf("update payment info for %s: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM orders WHERE order_id = $1)", orderID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("update payment info for %s: %w", orderID, err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrAlreadySet
	}
	return nil
}

// SetVisibility flips an order between public and unlisted. The first switch
// to unlisted mints a private access code; later switches reuse it so shared
// links stay valid.
func (s *OrderStore) SetVisibility(ctx context.Context, orderID string, isPublic bool) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("set visibility for %s: %w", orderID, err)
	}
	defer tx.Rollback(ctx)

	var code string
	err = tx.QueryRow(ctx,
		"SELECT private_code FROM orders WHERE order_id = $1 FOR UPDATE", orderID,
	).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("set visibility for %s: %w", orderID, err)
	}

	if !isPublic && code == "" {
		code = strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	}

	if _, err := tx.Exec(ctx,
		"UPDATE orders SET is_public = $2, private_code = $3 WHERE order_id = $1",
		orderID, isPublic, code,
	); err != nil {
		return "", fmt.Errorf("set visibility for %s: %w", orderID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("set visibility for %s: %w", orderID, err)
	}

	if isPublic {
		return "", nil
	}
	return code, nil
}

var _ domain.OrderStore = (*OrderStore)(nil)
