package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"rently-backend/internal/domain"
)

type createRentalRequest struct {
	ItemID string `json:"item_id"`
	domain.RentalTerms
}

type transitionRequest struct {
	Token string `json:"token"`
}

type resolveRequest struct {
	Decision domain.IssueDecision `json:"decision"`
}

// rentalView is a rental as seen by one caller. The owner holds the pickup
// token and the renter holds the return token until the handoff.
type rentalView struct {
	*domain.RentalRequest
	PickupToken string `json:"pickup_token,omitempty"`
	ReturnToken string `json:"return_token,omitempty"`
}

func viewFor(viewer domain.Actor, r *domain.RentalRequest) rentalView {
	v := rentalView{RentalRequest: r}
	if viewer.UserID == r.OwnerID && r.Status == domain.RentalStatusAccepted {
		v.PickupToken = r.PickupToken
	}
	if viewer.UserID == r.RenterID && r.Status == domain.RentalStatusActive {
		v.ReturnToken = r.ReturnToken
	}
	return v
}

func (h *Handler) CreateRental(w http.ResponseWriter, r *http.Request) {
	var req createRentalRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	caller := actor(r)
	rental, err := h.rentals.CreateRentalRequest(r.Context(), caller.UserID, req.ItemID, req.RentalTerms)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewFor(caller, rental))
}

func (h *Handler) GetRental(w http.ResponseWriter, r *http.Request) {
	caller := actor(r)
	rental, err := h.rentals.GetRental(r.Context(), caller, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewFor(caller, rental))
}

func (h *Handler) ListRentals(w http.ResponseWriter, r *http.Request) {
	caller := actor(r)
	p, size, err := page(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	filter := domain.RentalFilter{
		Status:   domain.RentalStatus(q.Get("status")),
		Page:     p,
		PageSize: size,
	}
	switch q.Get("as") {
	case "owner":
		filter.OwnerID = caller.UserID
	case "renter":
		filter.RenterID = caller.UserID
	case "":
		if !caller.IsAdmin() {
			filter.RenterID = caller.UserID
		}
	default:
		writeError(w, r, domain.Errorf(domain.CodeInvalidArgument, "as must be renter or owner"))
		return
	}

	rentals, total, err := h.rentals.ListRentals(r.Context(), caller, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]rentalView, 0, len(rentals))
	for i := range rentals {
		views = append(views, viewFor(caller, &rentals[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rentals": views, "total": total})
}

func (h *Handler) TransitionRental(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	caller := actor(r)
	rental, err := h.rentals.TransitionRental(r.Context(), vars["id"], domain.RentalAction(vars["action"]), caller.UserID, req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewFor(caller, rental))
}

func (h *Handler) ReportIssue(w http.ResponseWriter, r *http.Request) {
	var input domain.IssueReportInput
	if err := decode(r, &input); err != nil {
		writeError(w, r, err)
		return
	}
	report, err := h.issues.ReportIssue(r.Context(), mux.Vars(r)["id"], actor(r).UserID, input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (h *Handler) ListIssueReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.issues.ListIssueReports(r.Context(), actor(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if reports == nil {
		reports = []domain.IssueReport{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"issue_reports": reports})
}

func (h *Handler) ResolveIssueReport(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	report, err := h.issues.ResolveIssueReport(r.Context(), actor(r), mux.Vars(r)["id"], req.Decision)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
