package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter registers every route. Route names key the security levels in
// config.EndpointSecurityConfig.
func NewRouter(h *Handler, auth *AuthMiddleware) *mux.Router {
	router := mux.NewRouter()
	router.Use(auth.Handler)

	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet).Name("Health")

	v1 := router.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/rentals", h.CreateRental).Methods(http.MethodPost).Name("CreateRental")
	v1.HandleFunc("/rentals", h.ListRentals).Methods(http.MethodGet).Name("ListRentals")
	v1.HandleFunc("/rentals/{id}", h.GetRental).Methods(http.MethodGet).Name("GetRental")
	v1.HandleFunc("/rentals/{id}/issues", h.ReportIssue).Methods(http.MethodPost).Name("ReportIssue")
	v1.HandleFunc("/rentals/{id}/issues", h.ListIssueReports).Methods(http.MethodGet).Name("ListIssueReports")
	v1.HandleFunc("/rentals/{id}/{action:accept|reject|cancel|pickup|return}", h.TransitionRental).Methods(http.MethodPost).Name("TransitionRental")
	v1.HandleFunc("/issues/{id}/resolve", h.ResolveIssueReport).Methods(http.MethodPost).Name("ResolveIssueReport")

	v1.HandleFunc("/evidence/upload-url", h.EvidenceUploadURL).Methods(http.MethodPost).Name("EvidenceUploadURL")
	v1.HandleFunc("/evidence/upload/{token}", h.EvidenceUpload).Methods(http.MethodPut).Name("EvidenceUpload")
	v1.HandleFunc("/evidence/download", h.EvidenceDownload).Methods(http.MethodGet).Name("EvidenceDownload")

	v1.HandleFunc("/wallets", h.ListWallets).Methods(http.MethodGet).Name("ListWallets")
	v1.HandleFunc("/ledger", h.ListLedgerEntries).Methods(http.MethodGet).Name("ListLedgerEntries")

	v1.HandleFunc("/topups", h.CreateTopUp).Methods(http.MethodPost).Name("CreateTopUp")
	v1.HandleFunc("/topups/{entryId}/confirm", h.ConfirmTopUp).Methods(http.MethodPost).Name("ConfirmTopUp")
	v1.HandleFunc("/topups/{entryId}/fail", h.FailTopUp).Methods(http.MethodPost).Name("FailTopUp")

	v1.HandleFunc("/withdrawals", h.RequestWithdrawal).Methods(http.MethodPost).Name("RequestWithdrawal")
	v1.HandleFunc("/withdrawals/{id}/approve", h.ApproveWithdrawal).Methods(http.MethodPost).Name("ApproveWithdrawal")
	v1.HandleFunc("/withdrawals/{id}/reject", h.RejectWithdrawal).Methods(http.MethodPost).Name("RejectWithdrawal")

	v1.HandleFunc("/users", h.OnboardUser).Methods(http.MethodPost).Name("OnboardUser")
	v1.HandleFunc("/users/me/fcm-token", h.UpdateFCMToken).Methods(http.MethodPut).Name("UpdateFCMToken")

	return router
}
