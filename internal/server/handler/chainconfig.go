package handler

import (
	"net/http"
	"strconv"

	"github.com/peerlane/relay/internal/service"
)

// ChainConfigHandler serves cached escrow contract configuration.
type ChainConfigHandler struct {
	configs *service.ConfigCache
}

// NewChainConfigHandler creates a ChainConfigHandler.
func NewChainConfigHandler(configs *service.ConfigCache) *ChainConfigHandler {
	return &ChainConfigHandler{configs: configs}
}

// GetConfig handles GET /api/config/{chainID}. Served from the TTL cache;
// ?refresh=true forces a fetch from the chain.
func (h *ChainConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseUint(pathParam(r, "chainID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}

	var cfg any
	if r.URL.Query().Get("refresh") == "true" {
		cfg, err = h.configs.ForceRefresh(r.Context(), chainID)
	} else {
		cfg, err = h.configs.Get(r.Context(), chainID)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
