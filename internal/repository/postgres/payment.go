package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rently-backend/internal/domain"
)

type topUpRepository struct {
	db querier
}

func (r *topUpRepository) Create(ctx context.Context, t *domain.TopUp) error {
	query := `INSERT INTO top_ups (id, user_id, entry_id, amount, method, reference, status, expires_at, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query, t.ID, t.UserID, t.EntryID, t.Amount, t.Method, t.Reference, t.Status, t.ExpiresAt, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r *topUpRepository) GetByEntryIDForUpdate(ctx context.Context, entryID string) (*domain.TopUp, error) {
	t := &domain.TopUp{}
	query := `SELECT id, user_id, entry_id, amount, method, reference, status, expires_at, created_at, updated_at
	          FROM top_ups WHERE entry_id = $1 FOR UPDATE`
	err := r.db.QueryRowContext(ctx, query, entryID).Scan(&t.ID, &t.UserID, &t.EntryID, &t.Amount, &t.Method, &t.Reference, &t.Status, &t.ExpiresAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "top-up for entry", entryID)
	}
	return t, nil
}

func (r *topUpRepository) Update(ctx context.Context, t *domain.TopUp) error {
	query := `UPDATE top_ups SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.db.ExecContext(ctx, query, t.Status, t.UpdatedAt, t.ID)
	return err
}

func (r *topUpRepository) ListExpiredPending(ctx context.Context, before time.Time, limit int) ([]string, error) {
	query := `SELECT entry_id FROM top_ups WHERE status = 'pending' AND expires_at < $1 ORDER BY expires_at LIMIT $2`
	return queryStrings(ctx, r.db, query, before, limit)
}

type withdrawalRepository struct {
	db querier
}

const withdrawalColumns = `id, user_id, amount, method, destination, COALESCE(reference_number, ''), status, hold_entry_id,
	processed_by, processed_at, expires_at, created_at`

func scanWithdrawal(row interface{ Scan(...any) error }) (*domain.Withdrawal, error) {
	w := &domain.Withdrawal{}
	var destination []byte
	err := row.Scan(&w.ID, &w.UserID, &w.Amount, &w.Method, &destination, &w.ReferenceNumber, &w.Status, &w.HoldEntryID,
		&w.ProcessedBy, &w.ProcessedAt, &w.ExpiresAt, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(destination) > 0 {
		if err := json.Unmarshal(destination, &w.Destination); err != nil {
			return nil, fmt.Errorf("decoding withdrawal destination: %w", err)
		}
	}
	return w, nil
}

func (r *withdrawalRepository) Create(ctx context.Context, w *domain.Withdrawal) error {
	destination, err := json.Marshal(w.Destination)
	if err != nil {
		return fmt.Errorf("encoding withdrawal destination: %w", err)
	}
	query := `INSERT INTO withdrawals (id, user_id, amount, method, destination, reference_number, status, hold_entry_id, expires_at, created_at)
	          VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)`
	_, err = r.db.ExecContext(ctx, query, w.ID, w.UserID, w.Amount, w.Method, destination, w.ReferenceNumber, w.Status, w.HoldEntryID, w.ExpiresAt, w.CreatedAt)
	return err
}

func (r *withdrawalRepository) GetByID(ctx context.Context, id string) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`
	w, err := scanWithdrawal(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "withdrawal", id)
	}
	return w, nil
}

func (r *withdrawalRepository) GetForUpdate(ctx context.Context, id string) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1 FOR UPDATE`
	w, err := scanWithdrawal(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "withdrawal", id)
	}
	return w, nil
}

func (r *withdrawalRepository) Update(ctx context.Context, w *domain.Withdrawal) error {
	query := `UPDATE withdrawals SET status=$1, processed_by=$2, processed_at=$3 WHERE id=$4`
	_, err := r.db.ExecContext(ctx, query, w.Status, w.ProcessedBy, w.ProcessedAt, w.ID)
	return err
}

func (r *withdrawalRepository) ListExpiredPending(ctx context.Context, before time.Time, limit int) ([]string, error) {
	query := `SELECT id FROM withdrawals WHERE status = 'pending' AND expires_at < $1 ORDER BY expires_at LIMIT $2`
	return queryStrings(ctx, r.db, query, before, limit)
}

func queryStrings(ctx context.Context, db querier, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
