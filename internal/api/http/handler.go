package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"rently-backend/internal/domain"
	"rently-backend/internal/service"
	"rently-backend/internal/storage"
)

// Services holds the dependencies of the HTTP handlers
type Services struct {
	Rentals       service.RentalService
	Issues        service.IssueReportService
	Payments      service.PaymentService
	Ledger        service.LedgerService
	Users         service.UserService
	Evidence      storage.EvidenceStorage
	StorageConfig storage.Config
}

type Handler struct {
	rentals    service.RentalService
	issues     service.IssueReportService
	payments   service.PaymentService
	ledger     service.LedgerService
	users      service.UserService
	evidence   storage.EvidenceStorage
	storageCfg storage.Config
}

func NewHandler(s Services) *Handler {
	return &Handler{
		rentals:    s.Rentals,
		issues:     s.Issues,
		payments:   s.Payments,
		ledger:     s.Ledger,
		users:      s.Users,
		evidence:   s.Evidence,
		storageCfg: s.StorageConfig,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.WrapError(domain.CodeInvalidArgument, "malformed request body", err)
	}
	return nil
}

func actor(r *http.Request) domain.Actor {
	a, _ := ActorFromContext(r.Context())
	return a
}

// page reads the page and page_size query parameters.
func page(r *http.Request) (int32, int32, error) {
	parse := func(name string, def int) (int32, error) {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			return int32(def), nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return 0, domain.Errorf(domain.CodeInvalidArgument, "%s must be a positive integer", name)
		}
		return int32(n), nil
	}
	p, err := parse("page", 1)
	if err != nil {
		return 0, 0, err
	}
	size, err := parse("page_size", 20)
	if err != nil {
		return 0, 0, err
	}
	if size > 100 {
		size = 100
	}
	return p, size, nil
}
