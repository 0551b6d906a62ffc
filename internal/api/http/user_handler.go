package http

import (
	"net/http"

	"rently-backend/internal/domain"
)

type onboardRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	FCMToken string `json:"fcm_token"`
}

type fcmTokenRequest struct {
	Token string `json:"token"`
}

// OnboardUser is called by the membership service once a user is approved.
func (h *Handler) OnboardUser(w http.ResponseWriter, r *http.Request) {
	var req onboardRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, wallets, err := h.users.Onboard(r.Context(), &domain.User{
		ID:       req.ID,
		Name:     req.Name,
		Email:    req.Email,
		FCMToken: req.FCMToken,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "wallets": wallets})
}

func (h *Handler) UpdateFCMToken(w http.ResponseWriter, r *http.Request) {
	var req fcmTokenRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.users.UpdateFCMToken(r.Context(), actor(r).UserID, req.Token); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
