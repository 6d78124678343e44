package handler

import (
	"net/http"
	"strconv"

	"github.com/peerlane/relay/internal/service"
)

// StatsProvider exposes reconciler lifetime counters. Nil when the process
// runs without a reconciler.
type StatsProvider interface {
	Stats() service.ReconcilerStats
}

// GasHandler serves the gas spend ledger.
type GasHandler struct {
	ledger *service.GasLedger
	stats  StatsProvider
}

// NewGasHandler creates a GasHandler. stats may be nil in server-only mode.
func NewGasHandler(ledger *service.GasLedger, stats StatsProvider) *GasHandler {
	return &GasHandler{ledger: ledger, stats: stats}
}

// Summary handles GET /api/gas/summary/{chainID}: per-operation totals and
// averages for one chain.
func (h *GasHandler) Summary(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseUint(pathParam(r, "chainID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}

	summaries, err := h.ledger.Summarize(r.Context(), chainID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	type summaryDTO struct {
		Operation       string  `json:"operation"`
		Count           int64   `json:"count"`
		TotalCostWei    string  `json:"total_cost_wei"`
		TotalCostEth    string  `json:"total_cost_eth"`
		AvgGasUsed      float64 `json:"avg_gas_used"`
		AvgGasPriceGwei float64 `json:"avg_gas_price_gwei"`
	}
	dtos := make([]summaryDTO, 0, len(summaries))
	for _, s := range summaries {
		dtos = append(dtos, summaryDTO{
			Operation:       string(s.Operation),
			Count:           s.Count,
			TotalCostWei:    s.TotalCostWei,
			TotalCostEth:    s.TotalCostEth,
			AvgGasUsed:      s.AvgGasUsed,
			AvgGasPriceGwei: s.AvgGasPriceGwei,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chain_id":  chainID,
		"summaries": dtos,
	})
}

// ReconcilerStats handles GET /api/gas/reconciler: process-lifetime
// cancellation counters.
func (h *GasHandler) ReconcilerStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeError(w, http.StatusNotFound, "reconciler not running in this process")
		return
	}
	stats := h.stats.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"trades_cancelled": stats.TradesCancelled,
		"total_cost_wei":   stats.TotalCostWei,
	})
}
