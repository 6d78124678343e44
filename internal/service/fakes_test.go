package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/peerlane/relay/internal/domain"
)

// fakeChainClient scripts per-method behavior through function fields. Unset
// methods fail loudly so tests only exercise what they script.
type fakeChainClient struct {
	chainID     uint64
	configFn    func(ctx context.Context) (domain.ContractConfig, error)
	orderHashFn func(ctx context.Context, orderID string) ([32]byte, error)
	orderFromTx func(ctx context.Context, txHash string) (string, error)
	cancelFn    func(ctx context.Context, tradeID [32]byte) (string, domain.GasReceipt, error)
}

func (f *fakeChainClient) ChainID() uint64 { return f.chainID }

func (f *fakeChainClient) GetContractConfig(ctx context.Context) (domain.ContractConfig, error) {
	if f.configFn == nil {
		return domain.ContractConfig{}, errors.New("GetContractConfig not scripted")
	}
	return f.configFn(ctx)
}

func (f *fakeChainClient) GetOrderHash(ctx context.Context, orderID string) ([32]byte, error) {
	if f.orderHashFn == nil {
		return [32]byte{}, errors.New("GetOrderHash not scripted")
	}
	return f.orderHashFn(ctx, orderID)
}

func (f *fakeChainClient) GetOrderIDFromTx(ctx context.Context, txHash string) (string, error) {
	if f.orderFromTx == nil {
		return "", errors.New("GetOrderIDFromTx not scripted")
	}
	return f.orderFromTx(ctx, txHash)
}

func (f *fakeChainClient) CancelExpiredTrade(ctx context.Context, tradeID [32]byte) (string, domain.GasReceipt, error) {
	if f.cancelFn == nil {
		return "", domain.GasReceipt{}, errors.New("CancelExpiredTrade not scripted")
	}
	return f.cancelFn(ctx, tradeID)
}

// fakeRegistry routes to fake clients by chain id.
type fakeRegistry struct {
	clients map[uint64]domain.ChainClient
}

func newFakeRegistry(clients ...domain.ChainClient) *fakeRegistry {
	m := make(map[uint64]domain.ChainClient, len(clients))
	for _, c := range clients {
		m[c.ChainID()] = c
	}
	return &fakeRegistry{clients: m}
}

func (r *fakeRegistry) Get(chainID uint64) (domain.ChainClient, bool) {
	c, ok := r.clients[chainID]
	return c, ok
}

func (r *fakeRegistry) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}

// memOrderStore is an in-memory domain.OrderStore.
type memOrderStore struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func newMemOrderStore(orders ...domain.Order) *memOrderStore {
	m := make(map[string]domain.Order, len(orders))
	for _, o := range orders {
		m[o.OrderID] = o
	}
	return &memOrderStore{orders: m}
}

func (s *memOrderStore) Upsert(ctx context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.OrderID] = o
	return nil
}

func (s *memOrderStore) GetByID(ctx context.Context, orderID string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (s *memOrderStore) GetByPrivateCode(ctx context.Context, code string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.PrivateCode == code && code != "" {
			return o, nil
		}
	}
	return domain.Order{}, domain.ErrNotFound
}

func (s *memOrderStore) ListActive(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		if o.IsPublic {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memOrderStore) UpdatePaymentInfo(ctx context.Context, orderID, accountID, accountName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	if o.HasPaymentInfo() {
		return domain.ErrAlreadySet
	}
	o.AccountID = accountID
	o.AccountName = accountName
	s.orders[orderID] = o
	return nil
}

func (s *memOrderStore) SetVisibility(ctx context.Context, orderID string, isPublic bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return "", domain.ErrNotFound
	}
	o.IsPublic = isPublic
	if !isPublic && o.PrivateCode == "" {
		o.PrivateCode = "test-code"
	}
	s.orders[orderID] = o
	if isPublic {
		return "", nil
	}
	return o.PrivateCode, nil
}

// memTradeStore is an in-memory domain.TradeStore.
type memTradeStore struct {
	mu     sync.Mutex
	trades map[string]domain.Trade
}

func newMemTradeStore(trades ...domain.Trade) *memTradeStore {
	m := make(map[string]domain.Trade, len(trades))
	for _, t := range trades {
		m[t.TradeID] = t
	}
	return &memTradeStore{trades: m}
}

func (s *memTradeStore) Create(ctx context.Context, t domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades[t.TradeID] = t
	return nil
}

func (s *memTradeStore) GetByID(ctx context.Context, tradeID string) (domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[tradeID]
	if !ok {
		return domain.Trade{}, domain.ErrNotFound
	}
	return t, nil
}

func (s *memTradeStore) ListByOrder(ctx context.Context, orderID string) ([]domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Trade
	for _, t := range s.trades {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memTradeStore) ListByBuyer(ctx context.Context, buyer string) ([]domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Trade
	for _, t := range s.trades {
		if t.Buyer == buyer {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memTradeStore) ListBySeller(ctx context.Context, seller string) ([]domain.Trade, error) {
	return nil, nil
}

func (s *memTradeStore) ListExpiredPending(ctx context.Context, now time.Time) ([]domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Trade
	for _, t := range s.trades {
		if t.Status == domain.TradePending && now.After(t.ExpiresAt) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memTradeStore) UpdateStatus(ctx context.Context, tradeID string, from, to domain.TradeStatus, settlementTxHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[tradeID]
	if !ok {
		return domain.ErrNotFound
	}
	if t.Status != from || !from.CanTransition(to) {
		return domain.ErrInvalidTransition
	}
	t.Status = to
	if settlementTxHash != "" {
		t.SettlementTxHash = settlementTxHash
	}
	if to == domain.TradeSettled {
		now := time.Now().UTC()
		t.SettledAt = &now
	}
	s.trades[tradeID] = t
	return nil
}

func (s *memTradeStore) AttachPDF(ctx context.Context, tradeID string, pdf []byte, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[tradeID]
	if !ok {
		return domain.ErrNotFound
	}
	t.PDFFile = pdf
	t.PDFFilename = filename
	s.trades[tradeID] = t
	return nil
}

// memWithdrawalStore is an in-memory domain.WithdrawalStore.
type memWithdrawalStore struct {
	mu          sync.Mutex
	withdrawals []domain.Withdrawal
}

func (s *memWithdrawalStore) Create(ctx context.Context, w domain.Withdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.withdrawals = append(s.withdrawals, w)
	return nil
}

func (s *memWithdrawalStore) ListByOrder(ctx context.Context, orderID string) ([]domain.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Withdrawal
	for _, w := range s.withdrawals {
		if w.OrderID == orderID {
			out = append(out, w)
		}
	}
	return out, nil
}

// memGasStore is an in-memory domain.GasCostStore.
type memGasStore struct {
	mu      sync.Mutex
	records []domain.GasCost
	fail    error
}

func (s *memGasStore) Create(ctx context.Context, gc domain.GasCost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.records = append(s.records, gc)
	return nil
}

func (s *memGasStore) SummarizeByChain(ctx context.Context, chainID uint64) ([]domain.GasCostSummary, error) {
	return nil, nil
}

func (s *memGasStore) all() []domain.GasCost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.GasCost(nil), s.records...)
}
