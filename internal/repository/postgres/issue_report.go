package postgres

import (
	"context"

	"github.com/lib/pq"

	"rently-backend/internal/domain"
)

type issueReportRepository struct {
	db querier
}

const issueReportColumns = `id, rental_id, type, severity, description, evidence_keys, submitted_by, against, status, resolved_by, resolved_at, created_at`

func scanIssueReport(row interface{ Scan(...any) error }) (*domain.IssueReport, error) {
	rep := &domain.IssueReport{}
	err := row.Scan(&rep.ID, &rep.RentalID, &rep.Type, &rep.Severity, &rep.Description, pq.Array(&rep.EvidenceKeys),
		&rep.SubmittedBy, &rep.Against, &rep.Status, &rep.ResolvedBy, &rep.ResolvedAt, &rep.CreatedAt)
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func (r *issueReportRepository) Create(ctx context.Context, rep *domain.IssueReport) error {
	query := `INSERT INTO issue_reports (id, rental_id, type, severity, description, evidence_keys, submitted_by, against, status, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query, rep.ID, rep.RentalID, rep.Type, rep.Severity, rep.Description, pq.Array(rep.EvidenceKeys),
		rep.SubmittedBy, rep.Against, rep.Status, rep.CreatedAt)
	return err
}

func (r *issueReportRepository) GetByID(ctx context.Context, id string) (*domain.IssueReport, error) {
	query := `SELECT ` + issueReportColumns + ` FROM issue_reports WHERE id = $1`
	rep, err := scanIssueReport(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "issue report", id)
	}
	return rep, nil
}

func (r *issueReportRepository) GetForUpdate(ctx context.Context, id string) (*domain.IssueReport, error) {
	query := `SELECT ` + issueReportColumns + ` FROM issue_reports WHERE id = $1 FOR UPDATE`
	rep, err := scanIssueReport(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "issue report", id)
	}
	return rep, nil
}

func (r *issueReportRepository) Update(ctx context.Context, rep *domain.IssueReport) error {
	query := `UPDATE issue_reports SET status=$1, resolved_by=$2, resolved_at=$3 WHERE id=$4`
	_, err := r.db.ExecContext(ctx, query, rep.Status, rep.ResolvedBy, rep.ResolvedAt, rep.ID)
	return err
}

func (r *issueReportRepository) ListByRental(ctx context.Context, rentalID string) ([]domain.IssueReport, error) {
	query := `SELECT ` + issueReportColumns + ` FROM issue_reports WHERE rental_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, rentalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []domain.IssueReport
	for rows.Next() {
		rep, err := scanIssueReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *rep)
	}
	return reports, rows.Err()
}
