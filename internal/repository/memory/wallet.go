package memory

import (
	"context"
	"sort"

	"rently-backend/internal/domain"
)

type userRepository struct{ st *state }

func (r userRepository) Create(ctx context.Context, user *domain.User) error {
	if _, ok := r.st.users[user.ID]; ok {
		return domain.Errorf(domain.CodeConflict, "user %s already exists", user.ID)
	}
	r.st.users[user.ID] = *user
	return nil
}

func (r userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, ok := r.st.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return &u, nil
}

func (r userRepository) Update(ctx context.Context, user *domain.User) error {
	if _, ok := r.st.users[user.ID]; !ok {
		return notFound("user", user.ID)
	}
	r.st.users[user.ID] = *user
	return nil
}

type walletRepository struct{ st *state }

func (r walletRepository) Create(ctx context.Context, w *domain.Wallet) error {
	if _, ok := r.st.wallets[w.ID]; ok {
		return domain.Errorf(domain.CodeConflict, "wallet %s already exists", w.ID)
	}
	for _, existing := range r.st.wallets {
		if existing.Kind != w.Kind {
			continue
		}
		if w.Kind == domain.WalletKindAdmin || (existing.UserID != nil && w.UserID != nil && *existing.UserID == *w.UserID) {
			return domain.Errorf(domain.CodeConflict, "%s wallet already exists", w.Kind)
		}
	}
	r.st.wallets[w.ID] = *w
	return nil
}

func (r walletRepository) GetByID(ctx context.Context, id string) (*domain.Wallet, error) {
	w, ok := r.st.wallets[id]
	if !ok {
		return nil, notFound("wallet", id)
	}
	return &w, nil
}

func (r walletRepository) GetForUpdate(ctx context.Context, id string) (*domain.Wallet, error) {
	return r.GetByID(ctx, id)
}

func (r walletRepository) GetByUserAndKind(ctx context.Context, userID string, kind domain.WalletKind) (*domain.Wallet, error) {
	for _, w := range r.st.wallets {
		if w.Kind == kind && w.UserID != nil && *w.UserID == userID {
			return &w, nil
		}
	}
	return nil, notFound(string(kind)+" wallet of user", userID)
}

func (r walletRepository) GetAdmin(ctx context.Context) (*domain.Wallet, error) {
	for _, w := range r.st.wallets {
		if w.Kind == domain.WalletKindAdmin {
			return &w, nil
		}
	}
	return nil, domain.Errorf(domain.CodeNotFound, "admin wallet not found")
}

func (r walletRepository) ListByUser(ctx context.Context, userID string) ([]domain.Wallet, error) {
	var out []domain.Wallet
	for _, w := range r.st.wallets {
		if w.UserID != nil && *w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind > out[j].Kind })
	return out, nil
}

func (r walletRepository) UpdateBalance(ctx context.Context, id string, balance int64) error {
	w, ok := r.st.wallets[id]
	if !ok {
		return notFound("wallet", id)
	}
	if balance < 0 {
		return domain.Errorf(domain.CodeInsufficientFunds, "wallet %s balance would be negative", id)
	}
	w.Balance = balance
	r.st.wallets[id] = w
	return nil
}
