package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peerlane/relay/internal/domain"
)

// GasCostStore is the PostgreSQL implementation of domain.GasCostStore.
type GasCostStore struct {
	pool *pgxpool.Pool
}

// NewGasCostStore creates a GasCostStore backed by the given client.
func NewGasCostStore(client *Client) *GasCostStore {
	return &GasCostStore{pool: client.Pool()}
}

// Create appends one gas accounting entry. Decimal strings are cast to
// NUMERIC in SQL so aggregation stays exact.
func (s *GasCostStore) Create(ctx context.Context, gc domain.GasCost) error {
	const q = `
		INSERT INTO gas_costs (chain_id, operation, trade_id, order_id, tx_hash,
			gas_used, gas_price_gwei, cost_wei, cost_eth)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric)`

	_, err := s.pool.Exec(ctx, q,
		gc.ChainID, string(gc.Operation), gc.TradeID, gc.OrderID, gc.TxHash,
		gc.GasUsed, gc.GasPriceGwei, gc.CostWei, gc.CostEth,
	)
	if err != nil {
		return fmt.Errorf("create gas cost for tx %s: %w", gc.TxHash, err)
	}
	return nil
}

// SummarizeByChain aggregates gas spend per operation on one chain. Wei and
// eth totals are summed as NUMERIC and returned as text; only the averages
// are floats.
func (s *GasCostStore) SummarizeByChain(ctx context.Context, chainID uint64) ([]domain.GasCostSummary, error) {
	const q = `
		SELECT operation,
			COUNT(*),
			COALESCE(SUM(cost_wei), 0)::TEXT,
			COALESCE(SUM(cost_eth), 0)::TEXT,
			COALESCE(AVG(gas_used), 0)::FLOAT8,
			COALESCE(AVG(gas_price_gwei), 0)::FLOAT8
		FROM gas_costs
		WHERE chain_id = $1
		GROUP BY operation
		ORDER BY operation`

	rows, err := s.pool.Query(ctx, q, chainID)
	if err != nil {
		return nil, fmt.Errorf("summarize gas costs for chain %d: %w", chainID, err)
	}
	defer rows.Close()

	var out []domain.GasCostSummary
	for rows.Next() {
		var sum domain.GasCostSummary
		if err := rows.Scan(
			&sum.Operation, &sum.Count, &sum.TotalCostWei, &sum.TotalCostEth,
			&sum.AvgGasUsed, &sum.AvgGasPriceGwei,
		); err != nil {
			return nil, fmt.Errorf("scan gas cost summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

var _ domain.GasCostStore = (*GasCostStore)(nil)
