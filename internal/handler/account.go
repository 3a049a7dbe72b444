package handler

import (
	"encoding/json"
	"net/http"

	"nftmarket-api/internal/service"
	"nftmarket-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// AccountHandler exposes ledger balances and the development faucet.
type AccountHandler struct {
	accounts *service.AccountService
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// Get handles GET /api/v1/accounts/{address}
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	addr, apiErr := parseAddressParam(chi.URLParam(r, "address"))
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), addr)
	if err != nil {
		response.Error(w, mapError(err))
		return
	}
	response.OK(w, account)
}

type creditRequest struct {
	Amount uint64 `json:"amount"`
}

// Credit handles POST /api/v1/admin/accounts/{address}/credit
// Faucet endpoint, guarded by API-key auth.
func (h *AccountHandler) Credit(w http.ResponseWriter, r *http.Request) {
	addr, apiErr := parseAddressParam(chi.URLParam(r, "address"))
	if apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, badJSON(err))
		return
	}

	account, err := h.accounts.Credit(r.Context(), addr, req.Amount)
	if err != nil {
		response.Error(w, mapError(err))
		return
	}
	response.OK(w, account)
}
