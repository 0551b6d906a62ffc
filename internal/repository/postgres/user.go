package postgres

import (
	"context"
	"time"

	"rently-backend/internal/domain"
)

type userRepository struct {
	db querier
}

func (r *userRepository) Create(ctx context.Context, u *domain.User) error {
	query := `INSERT INTO users (id, name, email, fcm_token, rental_blocked, blocked_at, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query, u.ID, u.Name, u.Email, u.FCMToken, u.RentalBlocked, u.BlockedAt, u.CreatedAt, u.UpdatedAt)
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u := &domain.User{}
	query := `SELECT id, name, email, COALESCE(fcm_token, ''), rental_blocked, blocked_at, created_at, updated_at FROM users WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &u.FCMToken, &u.RentalBlocked, &u.BlockedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "user", id)
	}
	return u, nil
}

func (r *userRepository) Update(ctx context.Context, u *domain.User) error {
	query := `UPDATE users SET name=$1, email=$2, fcm_token=$3, rental_blocked=$4, blocked_at=$5, updated_at=$6 WHERE id=$7`
	_, err := r.db.ExecContext(ctx, query, u.Name, u.Email, u.FCMToken, u.RentalBlocked, u.BlockedAt, time.Now().UTC(), u.ID)
	return err
}
