package service

import (
	"context"
	"errors"
	"strings"

	"rently-backend/internal/domain"
	"rently-backend/internal/logger"
	"rently-backend/internal/repository"
)

type userService struct {
	store    repository.Store
	ledger   *ledgerOps
	profiles ProfileInvalidator
	now      Clock
}

func NewUserService(store repository.Store, opts ...Option) UserService {
	o := buildOptions(opts)
	return &userService{
		store:    store,
		ledger:   &ledgerOps{now: o.now},
		profiles: o.profiles,
		now:      o.now,
	}
}

func (s *userService) Onboard(ctx context.Context, user *domain.User) (*domain.User, *domain.WalletPair, error) {
	logger.EnterMethod("userService.Onboard", "userID", user.ID)

	if strings.TrimSpace(user.ID) == "" || strings.TrimSpace(user.Email) == "" {
		return nil, nil, domain.Errorf(domain.CodeInvalidArgument, "user id and email are required")
	}

	var (
		stored  *domain.User
		wallets *domain.WalletPair
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		stored, err = tx.Users().GetByID(ctx, user.ID)
		if errors.Is(err, domain.ErrNotFound) {
			now := s.now()
			stored = &domain.User{
				ID:        user.ID,
				Name:      user.Name,
				Email:     user.Email,
				FCMToken:  user.FCMToken,
				CreatedAt: now,
				UpdatedAt: now,
			}
			err = tx.Users().Create(ctx, stored)
		}
		if err != nil {
			return err
		}
		wallets, err = s.ledger.ensureUserWallets(ctx, tx, stored.ID)
		return err
	})
	if err != nil {
		logger.ExitMethodWithError("userService.Onboard", err, "userID", user.ID)
		return nil, nil, err
	}
	logger.ExitMethod("userService.Onboard", "userID", stored.ID, "userWallet", wallets.User.ID, "holdingWallet", wallets.Holding.ID)
	return stored, wallets, nil
}

func (s *userService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var user *domain.User
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		user, err = tx.Users().GetByID(ctx, userID)
		return err
	})
	return user, err
}

func (s *userService) UpdateFCMToken(ctx context.Context, userID, token string) error {
	err := s.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		user.FCMToken = token
		user.UpdatedAt = s.now()
		return tx.Users().Update(ctx, user)
	})
	if err != nil {
		return err
	}
	if s.profiles != nil {
		if err := s.profiles.Invalidate(ctx, userID); err != nil {
			logger.Warn("Failed to invalidate cached profile", "user_id", userID, "error", err)
		}
	}
	return nil
}
