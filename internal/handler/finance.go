package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/hfurst/taskpay/internal/apperr"
	"github.com/hfurst/taskpay/internal/auth"
	"github.com/hfurst/taskpay/internal/policy"
	"github.com/hfurst/taskpay/internal/realtime"
	"github.com/hfurst/taskpay/internal/store"
)

type FinanceHandler struct {
	finance *store.FinanceStore
	hub     *realtime.Hub
	logger  *slog.Logger
}

func NewFinanceHandler(fs *store.FinanceStore, hub *realtime.Hub, logger *slog.Logger) *FinanceHandler {
	return &FinanceHandler{finance: fs, hub: hub, logger: logger}
}

type withdrawalRequest struct {
	Amount string `json:"amount"`
}

// RequestWithdrawal opens a pending withdrawal for the caller. The balance
// is checked now and again when an admin resolves it.
func (h *FinanceHandler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	id := auth.MustIdentity(r.Context())

	var req withdrawalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, h.logger, apperr.Validation("amount must be a number"))
		return
	}

	withdrawal, err := h.finance.RequestWithdrawal(id.UserID, amount)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(realtime.Event{Entity: "withdrawal", Action: "requested", ID: withdrawal.ID})
	writeJSON(w, http.StatusCreated, withdrawal)
}

// ListWithdrawals returns every withdrawal with the requesting user joined
// in. Admin only.
func (h *FinanceHandler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	if err := policy.RequireAdmin(auth.MustIdentity(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}

	list, err := h.finance.ListWithdrawals()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ApproveWithdrawal debits the wallet and marks the withdrawal approved.
// Admin only.
func (h *FinanceHandler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	if err := policy.RequireAdmin(auth.MustIdentity(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, apperr.Validation("invalid id"))
		return
	}
	withdrawal, err := h.finance.ApproveWithdrawal(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(realtime.Event{Entity: "withdrawal", Action: "approved", ID: withdrawal.ID})
	h.hub.Broadcast(realtime.Event{Entity: "wallet", Action: "debited"})
	writeJSON(w, http.StatusOK, withdrawal)
}

// RejectWithdrawal marks a pending withdrawal rejected. Admin only.
func (h *FinanceHandler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	if err := policy.RequireAdmin(auth.MustIdentity(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, apperr.Validation("invalid id"))
		return
	}
	withdrawal, err := h.finance.RejectWithdrawal(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(realtime.Event{Entity: "withdrawal", Action: "rejected", ID: withdrawal.ID})
	writeJSON(w, http.StatusOK, withdrawal)
}

// MyFinance returns the caller's wallet, transactions, and withdrawals.
func (h *FinanceHandler) MyFinance(w http.ResponseWriter, r *http.Request) {
	id := auth.MustIdentity(r.Context())

	finance, err := h.finance.UserFinance(id.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, finance)
}

// AdminFinance returns the user roster with wallets plus total earnings and
// approved withdrawals. Admin only.
func (h *FinanceHandler) AdminFinance(w http.ResponseWriter, r *http.Request) {
	if err := policy.RequireAdmin(auth.MustIdentity(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}

	finance, err := h.finance.AdminFinance()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, finance)
}
