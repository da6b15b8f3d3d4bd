package wallet

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/astrovoice/kundli/backend/internal/service/billing"
	walletservice "github.com/astrovoice/kundli/backend/internal/service/wallet"
	"github.com/astrovoice/kundli/backend/pkg/utils"
)

// Handler exposes wallet balances, recharges and the transaction ledger.
// Recharges also reach the billing registry so a paused live session can
// resume immediately.
type Handler struct {
	store    walletservice.Store
	registry *billing.Registry
}

func New(store walletservice.Store, registry *billing.Registry) *Handler {
	return &Handler{
		store:    store,
		registry: registry,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/wallet/{userID}", h.handleGetWallet)
	r.Post("/wallet/{userID}/recharge", h.handleRecharge)
	r.Get("/wallet/{userID}/transactions", h.handleTransactions)
}

func (h *Handler) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	wlt, err := h.store.Get(r.Context(), userID)
	if err != nil {
		utils.RespondError(w, walletErrStatus(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, wlt)
}

func (h *Handler) handleRecharge(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var payload struct {
		Amount float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wlt, err := h.store.Credit(r.Context(), userID, payload.Amount)
	if err != nil {
		utils.RespondError(w, walletErrStatus(err), err.Error())
		return
	}

	if h.registry != nil {
		if resumed := h.registry.RechargeUser(userID, payload.Amount); resumed > 0 {
			log.Printf("[wallet] recharge user=%s amount=%.2f resumed %d session(s)", userID, payload.Amount, resumed)
		}
	}

	utils.RespondJSON(w, http.StatusOK, wlt)
}

func (h *Handler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	txns, err := h.store.Transactions(r.Context(), userID)
	if err != nil {
		utils.RespondError(w, walletErrStatus(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, txns)
}

func walletErrStatus(err error) int {
	if errors.Is(err, walletservice.ErrUserRequired) || errors.Is(err, walletservice.ErrInvalidAmount) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
