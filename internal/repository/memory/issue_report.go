package memory

import (
	"context"
	"sort"

	"rently-backend/internal/domain"
)

type issueReportRepository struct{ st *state }

func (r issueReportRepository) Create(ctx context.Context, rep *domain.IssueReport) error {
	if _, ok := r.st.issueReports[rep.ID]; ok {
		return domain.Errorf(domain.CodeConflict, "issue report %s already exists", rep.ID)
	}
	cp := *rep
	cp.EvidenceKeys = append([]string(nil), rep.EvidenceKeys...)
	r.st.issueReports[rep.ID] = cp
	return nil
}

func (r issueReportRepository) GetByID(ctx context.Context, id string) (*domain.IssueReport, error) {
	rep, ok := r.st.issueReports[id]
	if !ok {
		return nil, notFound("issue report", id)
	}
	return &rep, nil
}

func (r issueReportRepository) GetForUpdate(ctx context.Context, id string) (*domain.IssueReport, error) {
	return r.GetByID(ctx, id)
}

func (r issueReportRepository) Update(ctx context.Context, rep *domain.IssueReport) error {
	if _, ok := r.st.issueReports[rep.ID]; !ok {
		return notFound("issue report", rep.ID)
	}
	r.st.issueReports[rep.ID] = *rep
	return nil
}

func (r issueReportRepository) ListByRental(ctx context.Context, rentalID string) ([]domain.IssueReport, error) {
	var out []domain.IssueReport
	for _, rep := range r.st.issueReports {
		if rep.RentalID == rentalID {
			out = append(out, rep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
