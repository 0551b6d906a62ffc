package postgres

import (
	"context"
	"time"

	"rently-backend/internal/domain"
	"rently-backend/internal/logger"
)

type walletRepository struct {
	db querier
}

const walletColumns = `id, user_id, kind, balance, created_at, updated_at`

func scanWallet(row interface{ Scan(...any) error }) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	if err := row.Scan(&w.ID, &w.UserID, &w.Kind, &w.Balance, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *walletRepository) Create(ctx context.Context, w *domain.Wallet) error {
	logger.EnterMethod("walletRepository.Create", "walletID", w.ID, "kind", w.Kind)
	query := `INSERT INTO wallets (id, user_id, kind, balance, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query, w.ID, w.UserID, w.Kind, w.Balance, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		logger.ExitMethodWithError("walletRepository.Create", err, "walletID", w.ID)
		return err
	}
	logger.ExitMethod("walletRepository.Create", "walletID", w.ID)
	return nil
}

func (r *walletRepository) GetByID(ctx context.Context, id string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	w, err := scanWallet(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "wallet", id)
	}
	return w, nil
}

func (r *walletRepository) GetForUpdate(ctx context.Context, id string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`
	w, err := scanWallet(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "wallet", id)
	}
	return w, nil
}

func (r *walletRepository) GetByUserAndKind(ctx context.Context, userID string, kind domain.WalletKind) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 AND kind = $2`
	w, err := scanWallet(r.db.QueryRowContext(ctx, query, userID, kind))
	if err != nil {
		return nil, notFoundOr(err, string(kind)+" wallet of user", userID)
	}
	return w, nil
}

func (r *walletRepository) GetAdmin(ctx context.Context) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE kind = 'ADMIN'`
	w, err := scanWallet(r.db.QueryRowContext(ctx, query))
	if err != nil {
		return nil, notFoundOr(err, "wallet", "ADMIN")
	}
	return w, nil
}

func (r *walletRepository) ListByUser(ctx context.Context, userID string) ([]domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 ORDER BY kind DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, *w)
	}
	return wallets, rows.Err()
}

func (r *walletRepository) UpdateBalance(ctx context.Context, id string, balance int64) error {
	logger.EnterMethod("walletRepository.UpdateBalance", "walletID", id, "balance", balance)
	query := `UPDATE wallets SET balance = $1, updated_at = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, balance, time.Now().UTC(), id)
	if err != nil {
		logger.ExitMethodWithError("walletRepository.UpdateBalance", err, "walletID", id)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Errorf(domain.CodeNotFound, "wallet %s not found", id)
	}
	logger.ExitMethod("walletRepository.UpdateBalance", "walletID", id)
	return nil
}
