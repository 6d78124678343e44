package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/peerlane/relay/internal/auth"
)

// AuthHandler serves wallet sign-in: nonce issuance and signature
// verification exchanging for a session token.
type AuthHandler struct {
	nonces *auth.NonceStore
	tokens *auth.TokenService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(nonces *auth.NonceStore, tokens *auth.TokenService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		nonces: nonces,
		tokens: tokens,
		logger: logger.With(slog.String("handler", "auth")),
	}
}

// Nonce handles GET /api/auth/nonce.
func (h *AuthHandler) Nonce(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"nonce": h.nonces.Generate()})
}

type verifyRequest struct {
	Address   string `json:"address"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

type verifyResponse struct {
	Token     string `json:"token"`
	Address   string `json:"address"`
	ExpiresIn int64  `json:"expires_in"`
}

// Verify handles POST /api/auth/verify. The wallet must have signed the
// canonical sign-in message containing a nonce issued by Nonce. Nonces are
// single-use, so a captured signature cannot be replayed.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.nonces.Consume(req.Nonce) {
		writeError(w, http.StatusBadRequest, "invalid or expired nonce")
		return
	}

	message := auth.SignInMessage(req.Address, req.Nonce)
	if err := auth.VerifySignature(req.Address, message, req.Signature); err != nil {
		h.logger.Warn("signature verification failed",
			slog.String("address", req.Address),
			slog.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, "signature verification failed")
		return
	}

	address := strings.ToLower(req.Address)
	token, expiresIn, err := h.tokens.Issue(address)
	if err != nil {
		h.logger.Error("token issuance failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	h.logger.Info("wallet authenticated", slog.String("address", address))
	writeJSON(w, http.StatusOK, verifyResponse{
		Token:     token,
		Address:   address,
		ExpiresIn: expiresIn,
	})
}
