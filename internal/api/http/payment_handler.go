package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"rently-backend/internal/domain"
)

type topUpRequest struct {
	Amount    int64              `json:"amount"`
	Method    domain.TopUpMethod `json:"method"`
	Reference string             `json:"reference"`
}

type withdrawalRequest struct {
	Amount      int64                        `json:"amount"`
	Method      domain.WithdrawalMethod      `json:"method"`
	Destination domain.WithdrawalDestination `json:"destination"`
}

func (h *Handler) ListWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := h.ledger.ListWallets(r.Context(), actor(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"wallets": wallets})
}

func (h *Handler) ListLedgerEntries(w http.ResponseWriter, r *http.Request) {
	p, size, err := page(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, total, err := h.ledger.ListEntries(r.Context(), actor(r).UserID, p, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "total": total})
}

func (h *Handler) CreateTopUp(w http.ResponseWriter, r *http.Request) {
	var req topUpRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	topUp, err := h.payments.CreateTopUp(r.Context(), actor(r).UserID, req.Amount, req.Method, req.Reference)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, topUp)
}

func (h *Handler) ConfirmTopUp(w http.ResponseWriter, r *http.Request) {
	entry, err := h.payments.ConfirmPendingTopUp(r.Context(), mux.Vars(r)["entryId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) FailTopUp(w http.ResponseWriter, r *http.Request) {
	entry, err := h.payments.FailPendingTopUp(r.Context(), mux.Vars(r)["entryId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req withdrawalRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	withdrawal, err := h.payments.RequestWithdrawal(r.Context(), actor(r).UserID, req.Amount, req.Method, req.Destination)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, withdrawal)
}

func (h *Handler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	withdrawal, err := h.payments.ApproveWithdrawal(r.Context(), actor(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawal)
}

func (h *Handler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	withdrawal, err := h.payments.RejectWithdrawal(r.Context(), actor(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawal)
}
