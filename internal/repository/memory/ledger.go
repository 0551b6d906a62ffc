package memory

import (
	"context"
	"sort"
	"time"

	"rently-backend/internal/domain"
)

type ledgerRepository struct{ st *state }

func (r ledgerRepository) Create(ctx context.Context, e *domain.LedgerEntry) error {
	if _, ok := r.st.entries[e.ID]; ok {
		return domain.Errorf(domain.CodeConflict, "ledger entry %s already exists", e.ID)
	}
	r.st.entries[e.ID] = *e
	return nil
}

func (r ledgerRepository) GetForUpdate(ctx context.Context, id string) (*domain.LedgerEntry, error) {
	e, ok := r.st.entries[id]
	if !ok {
		return nil, notFound("ledger entry", id)
	}
	return &e, nil
}

func (r ledgerRepository) UpdateStatus(ctx context.Context, id string, status domain.EntryStatus) error {
	e, ok := r.st.entries[id]
	if !ok {
		return notFound("ledger entry", id)
	}
	if e.Status != domain.EntryStatusPending {
		return domain.Errorf(domain.CodeAlreadyProcessed, "ledger entry %s is %s", id, e.Status)
	}
	e.Status = status
	e.UpdatedAt = time.Now().UTC()
	r.st.entries[id] = e
	return nil
}

func (r ledgerRepository) ListByCorrelation(ctx context.Context, correlationID string) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for _, e := range r.st.entries {
		if e.CorrelationID == correlationID {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

func (r ledgerRepository) ListByWallets(ctx context.Context, walletIDs []string, page, pageSize int32) ([]domain.LedgerEntry, int32, error) {
	ids := make(map[string]bool, len(walletIDs))
	for _, id := range walletIDs {
		ids[id] = true
	}
	var out []domain.LedgerEntry
	for _, e := range r.st.entries {
		if (e.FromWalletID != nil && ids[*e.FromWalletID]) || (e.ToWalletID != nil && ids[*e.ToWalletID]) {
			out = append(out, e)
		}
	}
	sortEntries(out)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return paginate(out, page, pageSize), int32(len(out)), nil
}

// sortEntries orders oldest first, then by id.
func sortEntries(entries []domain.LedgerEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}
