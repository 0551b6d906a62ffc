package memory

import (
	"context"
	"sort"
	"time"

	"rently-backend/internal/domain"
)

type rentalRepository struct{ st *state }

func (r rentalRepository) Create(ctx context.Context, rt *domain.RentalRequest) error {
	if _, ok := r.st.rentals[rt.ID]; ok {
		return domain.Errorf(domain.CodeConflict, "rental request %s already exists", rt.ID)
	}
	r.st.rentals[rt.ID] = *rt
	return nil
}

func (r rentalRepository) GetByID(ctx context.Context, id string) (*domain.RentalRequest, error) {
	rt, ok := r.st.rentals[id]
	if !ok {
		return nil, notFound("rental request", id)
	}
	return &rt, nil
}

func (r rentalRepository) GetForUpdate(ctx context.Context, id string) (*domain.RentalRequest, error) {
	return r.GetByID(ctx, id)
}

func (r rentalRepository) Update(ctx context.Context, rt *domain.RentalRequest) error {
	if _, ok := r.st.rentals[rt.ID]; !ok {
		return notFound("rental request", rt.ID)
	}
	r.st.rentals[rt.ID] = *rt
	return nil
}

func (r rentalRepository) FindOverlapping(ctx context.Context, itemID string, from, to time.Time, excludeID string) ([]domain.RentalRequest, error) {
	var out []domain.RentalRequest
	for _, rt := range r.st.rentals {
		if rt.ItemID != itemID || rt.ID == excludeID {
			continue
		}
		if rt.Status != domain.RentalStatusAccepted && rt.Status != domain.RentalStatusActive {
			continue
		}
		if rt.StartDate.Before(to) && rt.EndDate.After(from) {
			out = append(out, rt)
		}
	}
	return out, nil
}

func (r rentalRepository) ListStartedBefore(ctx context.Context, status domain.RentalStatus, t time.Time, limit int) ([]string, error) {
	return r.listDue(status, limit, func(rt domain.RentalRequest) (time.Time, bool) {
		return rt.StartDate, rt.StartDate.Before(t)
	})
}

func (r rentalRepository) ListEndedBefore(ctx context.Context, status domain.RentalStatus, t time.Time, limit int) ([]string, error) {
	return r.listDue(status, limit, func(rt domain.RentalRequest) (time.Time, bool) {
		return rt.EndDate, rt.EndDate.Before(t)
	})
}

func (r rentalRepository) listDue(status domain.RentalStatus, limit int, due func(domain.RentalRequest) (time.Time, bool)) ([]string, error) {
	type candidate struct {
		id string
		at time.Time
	}
	var found []candidate
	for _, rt := range r.st.rentals {
		if rt.Status != status {
			continue
		}
		if at, ok := due(rt); ok {
			found = append(found, candidate{id: rt.ID, at: at})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].at.Before(found[j].at) })
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	ids := make([]string, 0, len(found))
	for _, c := range found {
		ids = append(ids, c.id)
	}
	return ids, nil
}

func (r rentalRepository) List(ctx context.Context, f domain.RentalFilter) ([]domain.RentalRequest, int32, error) {
	var out []domain.RentalRequest
	for _, rt := range r.st.rentals {
		if f.RenterID != "" && rt.RenterID != f.RenterID {
			continue
		}
		if f.OwnerID != "" && rt.OwnerID != f.OwnerID {
			continue
		}
		if f.Status != "" && rt.Status != f.Status {
			continue
		}
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, f.Page, f.PageSize), int32(len(out)), nil
}
