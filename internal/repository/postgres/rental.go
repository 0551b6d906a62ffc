package postgres

import (
	"context"
	"fmt"
	"time"

	"rently-backend/internal/domain"
)

type rentalRepository struct {
	db querier
}

const rentalColumns = `id, item_id, owner_id, renter_id, rental_type, rental_quantity, start_date, end_date,
	rental_price, insurance_original_value, insurance_rate, insurance_amount, total_price, status, payment_status,
	COALESCE(pickup_token, ''), COALESCE(return_token, ''), late_days, late_fee, end_reason, cancel_reason,
	accepted_at, picked_up_at, returned_at, closed_at, created_at, updated_at`

func scanRental(row interface{ Scan(...any) error }) (*domain.RentalRequest, error) {
	rt := &domain.RentalRequest{}
	err := row.Scan(&rt.ID, &rt.ItemID, &rt.OwnerID, &rt.RenterID, &rt.RentalType, &rt.RentalQuantity, &rt.StartDate, &rt.EndDate,
		&rt.RentalPrice, &rt.Insurance.OriginalValue, &rt.Insurance.Rate, &rt.Insurance.Amount, &rt.TotalPrice, &rt.Status, &rt.PaymentStatus,
		&rt.PickupToken, &rt.ReturnToken, &rt.LateDays, &rt.LateFee, &rt.EndReason, &rt.CancelReason,
		&rt.AcceptedAt, &rt.PickedUpAt, &rt.ReturnedAt, &rt.ClosedAt, &rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func (r *rentalRepository) Create(ctx context.Context, rt *domain.RentalRequest) error {
	query := `INSERT INTO rental_requests (id, item_id, owner_id, renter_id, rental_type, rental_quantity, start_date, end_date,
	          rental_price, insurance_original_value, insurance_rate, insurance_amount, total_price, status, payment_status,
	          late_days, late_fee, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	_, err := r.db.ExecContext(ctx, query, rt.ID, rt.ItemID, rt.OwnerID, rt.RenterID, rt.RentalType, rt.RentalQuantity, rt.StartDate, rt.EndDate,
		rt.RentalPrice, rt.Insurance.OriginalValue, rt.Insurance.Rate, rt.Insurance.Amount, rt.TotalPrice, rt.Status, rt.PaymentStatus,
		rt.LateDays, rt.LateFee, rt.CreatedAt, rt.UpdatedAt)
	return err
}

func (r *rentalRepository) GetByID(ctx context.Context, id string) (*domain.RentalRequest, error) {
	query := `SELECT ` + rentalColumns + ` FROM rental_requests WHERE id = $1`
	rt, err := scanRental(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "rental request", id)
	}
	return rt, nil
}

func (r *rentalRepository) GetForUpdate(ctx context.Context, id string) (*domain.RentalRequest, error) {
	query := `SELECT ` + rentalColumns + ` FROM rental_requests WHERE id = $1 FOR UPDATE`
	rt, err := scanRental(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "rental request", id)
	}
	return rt, nil
}

func (r *rentalRepository) Update(ctx context.Context, rt *domain.RentalRequest) error {
	query := `UPDATE rental_requests SET status=$1, payment_status=$2, pickup_token=NULLIF($3, ''), return_token=NULLIF($4, ''),
	          late_days=$5, late_fee=$6, end_reason=$7, cancel_reason=$8, accepted_at=$9, picked_up_at=$10, returned_at=$11,
	          closed_at=$12, updated_at=$13 WHERE id=$14`
	res, err := r.db.ExecContext(ctx, query, rt.Status, rt.PaymentStatus, rt.PickupToken, rt.ReturnToken,
		rt.LateDays, rt.LateFee, rt.EndReason, rt.CancelReason, rt.AcceptedAt, rt.PickedUpAt, rt.ReturnedAt,
		rt.ClosedAt, rt.UpdatedAt, rt.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Errorf(domain.CodeNotFound, "rental request %s not found", rt.ID)
	}
	return nil
}

func (r *rentalRepository) FindOverlapping(ctx context.Context, itemID string, from, to time.Time, excludeID string) ([]domain.RentalRequest, error) {
	query := `SELECT ` + rentalColumns + ` FROM rental_requests
	          WHERE item_id = $1 AND id <> $2 AND status IN ('accepted', 'active')
	            AND start_date < $3 AND end_date > $4`
	return r.queryRentals(ctx, query, itemID, excludeID, to, from)
}

func (r *rentalRepository) ListStartedBefore(ctx context.Context, status domain.RentalStatus, t time.Time, limit int) ([]string, error) {
	query := `SELECT id FROM rental_requests WHERE status = $1 AND start_date < $2 ORDER BY start_date LIMIT $3`
	return queryStrings(ctx, r.db, query, status, t, limit)
}

func (r *rentalRepository) ListEndedBefore(ctx context.Context, status domain.RentalStatus, t time.Time, limit int) ([]string, error) {
	query := `SELECT id FROM rental_requests WHERE status = $1 AND end_date < $2 ORDER BY end_date LIMIT $3`
	return queryStrings(ctx, r.db, query, status, t, limit)
}

func (r *rentalRepository) List(ctx context.Context, f domain.RentalFilter) ([]domain.RentalRequest, int32, error) {
	where := ` FROM rental_requests WHERE 1=1`
	args := []any{}
	argIdx := 1
	if f.RenterID != "" {
		where += fmt.Sprintf(" AND renter_id = $%d", argIdx)
		args = append(args, f.RenterID)
		argIdx++
	}
	if f.OwnerID != "" {
		where += fmt.Sprintf(" AND owner_id = $%d", argIdx)
		args = append(args, f.OwnerID)
		argIdx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, f.Status)
		argIdx++
	}

	var count int32
	if err := r.db.QueryRowContext(ctx, "SELECT count(*)"+where, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + rentalColumns + where + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, f.PageSize, offset(f.Page, f.PageSize))
	rentals, err := r.queryRentals(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return rentals, count, nil
}

func (r *rentalRepository) queryRentals(ctx context.Context, query string, args ...any) ([]domain.RentalRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rentals []domain.RentalRequest
	for rows.Next() {
		rt, err := scanRental(rows)
		if err != nil {
			return nil, err
		}
		rentals = append(rentals, *rt)
	}
	return rentals, rows.Err()
}
