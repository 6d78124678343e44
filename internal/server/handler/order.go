package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/peerlane/relay/internal/domain"
	"github.com/peerlane/relay/internal/server/middleware"
	"github.com/peerlane/relay/internal/service"
)

// OrderNotifier announces mirrored orders to the configured channels.
type OrderNotifier interface {
	OrderCreated(ctx context.Context, orderID string, chainID uint64)
}

// OrderHandler serves the order mirror and read surface, payment info
// submission, and visibility control.
type OrderHandler struct {
	orders   domain.OrderStore
	trades   *service.TradeService
	payments *service.PaymentVerifier
	notifier OrderNotifier // optional
	logger   *slog.Logger
}

// NewOrderHandler creates an OrderHandler. notifier may be nil.
func NewOrderHandler(orders domain.OrderStore, trades *service.TradeService, payments *service.PaymentVerifier, notifier OrderNotifier, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		trades:   trades,
		payments: payments,
		notifier: notifier,
		logger:   logger.With(slog.String("handler", "orders")),
	}
}

type orderDTO struct {
	OrderID         string `json:"order_id"`
	Seller          string `json:"seller"`
	Token           string `json:"token"`
	TotalAmount     string `json:"total_amount"`
	RemainingAmount string `json:"remaining_amount"`
	ExchangeRate    string `json:"exchange_rate"`
	Rail            string `json:"rail"`
	AccountID       string `json:"account_id"`
	AccountName     string `json:"account_name"`
	ChainID         uint64 `json:"chain_id"`
	IsPublic        bool   `json:"is_public"`
	CreatedAt       int64  `json:"created_at"`
}

func orderToDTO(o domain.Order) orderDTO {
	return orderDTO{
		OrderID:         o.OrderID,
		Seller:          o.Seller,
		Token:           o.Token,
		TotalAmount:     o.TotalAmount,
		RemainingAmount: o.RemainingAmount,
		ExchangeRate:    o.ExchangeRate,
		Rail:            o.Rail.String(),
		AccountID:       o.AccountID,
		AccountName:     o.AccountName,
		ChainID:         o.ChainID,
		IsPublic:        o.IsPublic,
		CreatedAt:       o.CreatedAt.Unix(),
	}
}

type createOrderRequest struct {
	OrderID         string `json:"order_id"`
	Seller          string `json:"seller"`
	Token           string `json:"token"`
	TotalAmount     string `json:"total_amount"`
	RemainingAmount string `json:"remaining_amount"`
	ExchangeRate    string `json:"exchange_rate"`
	Rail            int32  `json:"rail"`
	ChainID         uint64 `json:"chain_id"`
	IsPublic        bool   `json:"is_public"`
	CreatedAt       int64  `json:"created_at,omitempty"` // unix seconds
}

// Create handles POST /api/orders: mirrors an on-chain order into the
// database. The chain stays authoritative; re-submitting an existing order
// refreshes its mutable mirror fields.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !strings.HasPrefix(req.OrderID, "0x") {
		writeError(w, http.StatusBadRequest, "order_id must be 0x-prefixed")
		return
	}
	if req.ChainID == 0 {
		writeError(w, http.StatusBadRequest, "chain_id is required")
		return
	}
	rail := domain.PaymentRail(req.Rail)
	if !rail.Valid() {
		writeError(w, http.StatusBadRequest, "unknown payment rail")
		return
	}

	order := domain.Order{
		OrderID:         req.OrderID,
		Seller:          req.Seller,
		Token:           req.Token,
		TotalAmount:     req.TotalAmount,
		RemainingAmount: req.RemainingAmount,
		ExchangeRate:    req.ExchangeRate,
		Rail:            rail,
		ChainID:         req.ChainID,
		IsPublic:        req.IsPublic,
	}
	if req.CreatedAt > 0 {
		order.CreatedAt = parseUnix(req.CreatedAt)
	}

	if err := h.orders.Upsert(r.Context(), order); err != nil {
		h.logger.Error("order mirror failed",
			slog.String("order_id", req.OrderID),
			slog.String("error", err.Error()))
		writeDomainError(w, err)
		return
	}

	if h.notifier != nil {
		h.notifier.OrderCreated(r.Context(), req.OrderID, req.ChainID)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"order_id": req.OrderID,
	})
}

// ListActive handles GET /api/orders. Optional query params: seller, token,
// chain_id, limit.
func (h *OrderHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := domain.OrderFilter{
		Seller: q.Get("seller"),
		Token:  q.Get("token"),
		Limit:  100,
	}
	if v := q.Get("chain_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid chain_id")
			return
		}
		f.ChainID = &id
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			f.Limit = n
		}
	}

	orders, err := h.orders.ListActive(r.Context(), f)
	if err != nil {
		h.logger.Error("list active orders failed", slog.String("error", err.Error()))
		writeDomainError(w, err)
		return
	}

	dtos := make([]orderDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, orderToDTO(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": dtos})
}

// GetOrder handles GET /api/orders/{id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetByID(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToDTO(order))
}

// GetOrderByCode handles GET /api/orders/code/{code}, the unlisted-order
// access path.
func (h *OrderHandler) GetOrderByCode(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetByPrivateCode(r.Context(), pathParam(r, "code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToDTO(order))
}

// Activities handles GET /api/orders/{id}/activities: the merged
// trade/withdrawal timeline for the order detail page.
func (h *OrderHandler) Activities(w http.ResponseWriter, r *http.Request) {
	order, acts, err := h.trades.ActivityTimeline(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order":      orderToDTO(order),
		"activities": acts,
	})
}

type paymentInfoRequest struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	ChainID     uint64 `json:"chain_id,omitempty"`
	TxHash      string `json:"tx_hash,omitempty"`
}

// SubmitPaymentInfo handles POST /api/orders/{id}/payment-info. Details are
// stored only after the computed commitment matches the on-chain hash.
func (h *OrderHandler) SubmitPaymentInfo(w http.ResponseWriter, r *http.Request) {
	var req paymentInfoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.payments.SubmitPaymentInfo(r.Context(), service.SubmitPaymentInfoRequest{
		OrderID:     pathParam(r, "id"),
		AccountID:   req.AccountID,
		AccountName: req.AccountName,
		ChainID:     req.ChainID,
		TxHash:      req.TxHash,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "payment info stored",
		"order_id":      res.EffectiveOrderID,
		"computed_hash": res.ComputedHash,
	})
}

type withdrawalRequest struct {
	Amount         string `json:"amount"`
	RemainingAfter string `json:"remaining_after"`
	TxHash         string `json:"tx_hash"`
	CreatedAt      int64  `json:"created_at,omitempty"` // unix seconds
}

// RecordWithdrawal handles POST /api/orders/{id}/withdrawals: mirrors a
// seller's on-chain withdrawal for the order timeline.
func (h *OrderHandler) RecordWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req withdrawalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	withdrawal := domain.Withdrawal{
		OrderID:        pathParam(r, "id"),
		Amount:         req.Amount,
		RemainingAfter: req.RemainingAfter,
		TxHash:         req.TxHash,
	}
	if req.CreatedAt > 0 {
		withdrawal.CreatedAt = parseUnix(req.CreatedAt)
	}

	if err := h.trades.RecordWithdrawal(r.Context(), withdrawal); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true})
}

type visibilityRequest struct {
	IsPublic bool `json:"is_public"`
}

// SetVisibility handles POST /api/orders/{id}/visibility. Seller-only: the
// authenticated wallet must own the order.
func (h *OrderHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	orderID := pathParam(r, "id")

	order, err := h.orders.GetByID(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	caller := middleware.WalletAddress(r.Context())
	if !strings.EqualFold(caller, order.Seller) {
		writeError(w, http.StatusForbidden, "only the seller can change order visibility")
		return
	}

	var req visibilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	code, err := h.orders.SetVisibility(r.Context(), orderID, req.IsPublic)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := map[string]any{"is_public": req.IsPublic}
	if code != "" {
		resp["private_code"] = code
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseUnix is shared by handlers accepting unix-second timestamps.
func parseUnix(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}
