package memory

import (
	"context"
	"sort"
	"time"

	"rently-backend/internal/domain"
)

type topUpRepository struct{ st *state }

func (r topUpRepository) Create(ctx context.Context, t *domain.TopUp) error {
	if _, ok := r.st.topUps[t.ID]; ok {
		return domain.Errorf(domain.CodeConflict, "top-up %s already exists", t.ID)
	}
	r.st.topUps[t.ID] = *t
	return nil
}

func (r topUpRepository) GetByEntryIDForUpdate(ctx context.Context, entryID string) (*domain.TopUp, error) {
	for _, t := range r.st.topUps {
		if t.EntryID == entryID {
			return &t, nil
		}
	}
	return nil, notFound("top-up for entry", entryID)
}

func (r topUpRepository) Update(ctx context.Context, t *domain.TopUp) error {
	if _, ok := r.st.topUps[t.ID]; !ok {
		return notFound("top-up", t.ID)
	}
	r.st.topUps[t.ID] = *t
	return nil
}

func (r topUpRepository) ListExpiredPending(ctx context.Context, before time.Time, limit int) ([]string, error) {
	var found []domain.TopUp
	for _, t := range r.st.topUps {
		if t.Status == domain.TopUpStatusPending && t.ExpiresAt.Before(before) {
			found = append(found, t)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].ExpiresAt.Before(found[j].ExpiresAt) })
	ids := make([]string, 0, len(found))
	for _, t := range found {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, t.EntryID)
	}
	return ids, nil
}

type withdrawalRepository struct{ st *state }

func (r withdrawalRepository) Create(ctx context.Context, w *domain.Withdrawal) error {
	if _, ok := r.st.withdrawals[w.ID]; ok {
		return domain.Errorf(domain.CodeConflict, "withdrawal %s already exists", w.ID)
	}
	r.st.withdrawals[w.ID] = *w
	return nil
}

func (r withdrawalRepository) GetByID(ctx context.Context, id string) (*domain.Withdrawal, error) {
	w, ok := r.st.withdrawals[id]
	if !ok {
		return nil, notFound("withdrawal", id)
	}
	return &w, nil
}

func (r withdrawalRepository) GetForUpdate(ctx context.Context, id string) (*domain.Withdrawal, error) {
	return r.GetByID(ctx, id)
}

func (r withdrawalRepository) Update(ctx context.Context, w *domain.Withdrawal) error {
	if _, ok := r.st.withdrawals[w.ID]; !ok {
		return notFound("withdrawal", w.ID)
	}
	r.st.withdrawals[w.ID] = *w
	return nil
}

func (r withdrawalRepository) ListExpiredPending(ctx context.Context, before time.Time, limit int) ([]string, error) {
	var found []domain.Withdrawal
	for _, w := range r.st.withdrawals {
		if w.Status == domain.WithdrawalStatusPending && w.ExpiresAt.Before(before) {
			found = append(found, w)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].ExpiresAt.Before(found[j].ExpiresAt) })
	ids := make([]string, 0, len(found))
	for _, w := range found {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, w.ID)
	}
	return ids, nil
}
