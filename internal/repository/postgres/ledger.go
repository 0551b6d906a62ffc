package postgres

import (
	"context"
	"time"

	"github.com/lib/pq"

	"rently-backend/internal/domain"
	"rently-backend/internal/logger"
)

type ledgerRepository struct {
	db querier
}

const entryColumns = `id, from_wallet_id, to_wallet_id, amount, purpose, status, COALESCE(correlation_id, ''), expires_at, created_at, updated_at`

func scanEntry(row interface{ Scan(...any) error }) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{}
	err := row.Scan(&e.ID, &e.FromWalletID, &e.ToWalletID, &e.Amount, &e.Purpose, &e.Status, &e.CorrelationID, &e.ExpiresAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *ledgerRepository) Create(ctx context.Context, e *domain.LedgerEntry) error {
	logger.EnterMethod("ledgerRepository.Create", "entryID", e.ID, "purpose", e.Purpose, "amount", e.Amount)
	query := `INSERT INTO ledger_entries (id, from_wallet_id, to_wallet_id, amount, purpose, status, correlation_id, expires_at, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query, e.ID, e.FromWalletID, e.ToWalletID, e.Amount, e.Purpose, e.Status, e.CorrelationID, e.ExpiresAt, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		logger.ExitMethodWithError("ledgerRepository.Create", err, "entryID", e.ID)
		return err
	}
	logger.ExitMethod("ledgerRepository.Create", "entryID", e.ID)
	return nil
}

func (r *ledgerRepository) GetForUpdate(ctx context.Context, id string) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE id = $1 FOR UPDATE`
	e, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "ledger entry", id)
	}
	return e, nil
}

func (r *ledgerRepository) UpdateStatus(ctx context.Context, id string, status domain.EntryStatus) error {
	query := `UPDATE ledger_entries SET status = $1, updated_at = $2 WHERE id = $3 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Errorf(domain.CodeAlreadyProcessed, "ledger entry %s is not pending", id)
	}
	return nil
}

func (r *ledgerRepository) ListByCorrelation(ctx context.Context, correlationID string) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE correlation_id = $1 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, correlationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (r *ledgerRepository) ListByWallets(ctx context.Context, walletIDs []string, page, pageSize int32) ([]domain.LedgerEntry, int32, error) {
	var count int32
	countQuery := `SELECT count(*) FROM ledger_entries WHERE from_wallet_id = ANY($1) OR to_wallet_id = ANY($1)`
	if err := r.db.QueryRowContext(ctx, countQuery, pq.Array(walletIDs)).Scan(&count); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries
	          WHERE from_wallet_id = ANY($1) OR to_wallet_id = ANY($1)
	          ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(walletIDs), pageSize, offset(page, pageSize))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *e)
	}
	return entries, count, rows.Err()
}
