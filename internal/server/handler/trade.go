package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/peerlane/relay/internal/domain"
	"github.com/peerlane/relay/internal/server/middleware"
	"github.com/peerlane/relay/internal/service"
)

// maxPDFSize caps uploaded payment receipts at 5 MiB.
const maxPDFSize = 5 << 20

// TradeHandler serves the trade read surface, lifecycle endpoints, and
// receipt documents.
type TradeHandler struct {
	trades domain.TradeStore
	svc    *service.TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades domain.TradeStore, svc *service.TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trades: trades,
		svc:    svc,
		logger: logger.With(slog.String("handler", "trades")),
	}
}

type tradeDTO struct {
	TradeID          string `json:"trade_id"`
	OrderID          string `json:"order_id"`
	Buyer            string `json:"buyer"`
	ChainID          uint64 `json:"chain_id"`
	TokenAmount      string `json:"token_amount"`
	CNYAmount        string `json:"cny_amount"`
	FeeAmount        string `json:"fee_amount,omitempty"`
	Status           string `json:"status"`
	CreatedAt        int64  `json:"created_at"`
	ExpiresAt        int64  `json:"expires_at"`
	SettledAt        int64  `json:"settled_at,omitempty"`
	SettlementTxHash string `json:"settlement_tx_hash,omitempty"`
	HasPDF           bool   `json:"has_pdf"`
	// PaymentExpired flags pending trades whose window has lapsed but which
	// the reconciler has not cancelled yet.
	PaymentExpired bool `json:"payment_expired"`
}

func tradeToDTO(t domain.Trade) tradeDTO {
	dto := tradeDTO{
		TradeID:          t.TradeID,
		OrderID:          t.OrderID,
		Buyer:            t.Buyer,
		ChainID:          t.ChainID,
		TokenAmount:      t.TokenAmount,
		CNYAmount:        t.CNYAmount,
		FeeAmount:        t.FeeAmount,
		Status:           t.Status.String(),
		CreatedAt:        t.CreatedAt.Unix(),
		ExpiresAt:        t.ExpiresAt.Unix(),
		SettlementTxHash: t.SettlementTxHash,
		HasPDF:           len(t.PDFFile) > 0,
		PaymentExpired:   t.Status == domain.TradePending && t.PaymentExpired(time.Now()),
	}
	if t.SettledAt != nil {
		dto.SettledAt = t.SettledAt.Unix()
	}
	return dto
}

func tradesToDTOs(trades []domain.Trade) []tradeDTO {
	dtos := make([]tradeDTO, 0, len(trades))
	for _, t := range trades {
		dtos = append(dtos, tradeToDTO(t))
	}
	return dtos
}

// GetTrade handles GET /api/trades/{id}.
func (h *TradeHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	trade, err := h.trades.GetByID(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tradeToDTO(trade))
}

// ListByBuyer handles GET /api/trades/buyer/{address}.
func (h *TradeHandler) ListByBuyer(w http.ResponseWriter, r *http.Request) {
	trades, err := h.trades.ListByBuyer(r.Context(), pathParam(r, "address"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": tradesToDTOs(trades)})
}

// ListBySeller handles GET /api/trades/seller/{address}.
func (h *TradeHandler) ListBySeller(w http.ResponseWriter, r *http.Request) {
	trades, err := h.trades.ListBySeller(r.Context(), pathParam(r, "address"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": tradesToDTOs(trades)})
}

type recordTradeRequest struct {
	TradeID     string `json:"trade_id"`
	OrderID     string `json:"order_id"`
	Buyer       string `json:"buyer"`
	ChainID     uint64 `json:"chain_id"`
	TokenAmount string `json:"token_amount"`
	CNYAmount   string `json:"cny_amount"`
	FeeAmount   string `json:"fee_amount,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	ExpiresAt   int64  `json:"expires_at"`
}

// Record handles POST /api/trades: mirroring a freshly created on-chain
// trade into the database.
func (h *TradeHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req recordTradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.svc.Record(r.Context(), domain.Trade{
		TradeID:     req.TradeID,
		OrderID:     req.OrderID,
		Buyer:       req.Buyer,
		ChainID:     req.ChainID,
		TokenAmount: req.TokenAmount,
		CNYAmount:   req.CNYAmount,
		FeeAmount:   req.FeeAmount,
		CreatedAt:   parseUnix(req.CreatedAt),
		ExpiresAt:   parseUnix(req.ExpiresAt),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true})
}

type settleRequest struct {
	SettlementTxHash string `json:"settlement_tx_hash"`
}

// Settle handles POST /api/trades/{id}/settle.
func (h *TradeHandler) Settle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.Settle(r.Context(), pathParam(r, "id"), req.SettlementTxHash); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// DownloadPDF handles GET /api/trades/{id}/pdf, streaming the stored payment
// receipt.
func (h *TradeHandler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	trade, err := h.trades.GetByID(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if len(trade.PDFFile) == 0 {
		writeError(w, http.StatusNotFound, "no receipt stored for this trade")
		return
	}

	filename := trade.PDFFilename
	if filename == "" {
		filename = "receipt.pdf"
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(trade.PDFFile)
}

// UploadPDF handles PUT /api/trades/{id}/pdf. Buyer-only: the authenticated
// wallet must own the trade. The body is the raw PDF; the filename comes
// from the query string.
func (h *TradeHandler) UploadPDF(w http.ResponseWriter, r *http.Request) {
	tradeID := pathParam(r, "id")

	trade, err := h.trades.GetByID(r.Context(), tradeID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	caller := middleware.WalletAddress(r.Context())
	if !strings.EqualFold(caller, trade.Buyer) {
		writeError(w, http.StatusForbidden, "only the buyer can attach a receipt")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPDFSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	defer r.Body.Close()
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "empty document")
		return
	}
	if len(body) > maxPDFSize {
		writeError(w, http.StatusRequestEntityTooLarge, "document exceeds size limit")
		return
	}

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = "receipt.pdf"
	}

	if err := h.trades.AttachPDF(r.Context(), tradeID, body, filename); err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.Info("receipt attached",
		slog.String("trade_id", tradeID),
		slog.Int("bytes", len(body)))
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
