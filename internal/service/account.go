// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/rs/zerolog/log"

	"craps-server/internal/config"
	"craps-server/internal/model"
	"craps-server/internal/pkg/lock"
	"craps-server/internal/repository"
)

// Common errors for account operations.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

// LedgerEntry is a balance change to record as a transaction row.
type LedgerEntry struct {
	Amount      int64
	Type        string
	Description string
}

// SeatWallet moves coins on a seated player's table balance. Adjust and Set
// report seated=false when the user is not at a table, in which case nothing
// changed. Set fills entry.Amount with the applied difference.
type SeatWallet interface {
	Adjust(userID int64, delta int64, entry LedgerEntry) (balance int64, seated bool, err error)
	Set(userID int64, balance int64, entry LedgerEntry) (int64, bool, error)
}

// AccountService handles player accounts and balance persistence.
type AccountService struct {
	userRepo        *repository.UserRepository
	txRepo          *repository.TransactionRepository
	trManager       trm.Manager
	userLock        *lock.KeyedLock[int64]
	startingBalance int64
	policy          string
	wallet          SeatWallet
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(
	userRepo *repository.UserRepository,
	txRepo *repository.TransactionRepository,
	trManager trm.Manager,
	userLock *lock.KeyedLock[int64],
	startingBalance int64,
	policy string,
) *AccountService {
	return &AccountService{
		userRepo:        userRepo,
		txRepo:          txRepo,
		trManager:       trManager,
		userLock:        userLock,
		startingBalance: startingBalance,
		policy:          policy,
	}
}

// SetSeatWallet routes balance changes of seated players through their
// table seat. The table manager is wired in after construction.
func (s *AccountService) SetSeatWallet(w SeatWallet) {
	s.wallet = w
}

// EnsureUser ensures a user exists, creating one with the starting balance.
// Returns the user and whether it was newly created.
func (s *AccountService) EnsureUser(ctx context.Context, userID int64, username string) (*model.User, bool, error) {
	var (
		user    *model.User
		created bool
	)
	err := s.trManager.Do(ctx, func(txCtx context.Context) error {
		var err error
		user, created, err = s.userRepo.GetOrCreate(txCtx, userID, username, s.startingBalance)
		if err != nil {
			return err
		}
		if created {
			_, err = s.txRepo.Create(txCtx, userID, s.startingBalance, model.TxTypeInitial, nil)
		}
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure user: %w", err)
	}

	// Update username if it changed
	if !created && username != "" && user.Username != username {
		if err := s.userRepo.UpdateUsername(ctx, userID, username); err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to update username")
		}
		user.Username = username
	}
	return user, created, nil
}

// GetBalance retrieves a user's stored balance, creating the account on
// first access.
func (s *AccountService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	user, _, err := s.EnsureUser(ctx, userID, "")
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

// GetUser retrieves a user by ID.
func (s *AccountService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// ReconcileBalance picks the balance a player starts with when the client
// reports a locally cached value.
func ReconcileBalance(policy string, stored int64, local *int64) int64 {
	if local == nil || policy != config.ReconcileHigher {
		return stored
	}
	return max(stored, *local)
}

// LoadBalance returns the balance to seat a player with. When the client
// reports a higher local balance and the policy allows it, the stored value
// is raised to match.
func (s *AccountService) LoadBalance(ctx context.Context, userID int64, username string, local *int64) (int64, error) {
	s.userLock.Lock(userID)
	defer s.userLock.Unlock(userID)

	user, _, err := s.EnsureUser(ctx, userID, username)
	if err != nil {
		return 0, err
	}

	balance := ReconcileBalance(s.policy, user.Balance, local)
	if balance == user.Balance {
		return balance, nil
	}

	err = s.trManager.Do(ctx, func(txCtx context.Context) error {
		if _, err := s.userRepo.SetBalance(txCtx, userID, balance); err != nil {
			return err
		}
		desc := "client balance reconciled"
		_, err := s.txRepo.Create(txCtx, userID, balance-user.Balance, model.TxTypeReconcile, &desc)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile balance: %w", err)
	}

	log.Info().
		Int64("user_id", userID).
		Int64("stored", user.Balance).
		Int64("balance", balance).
		Msg("Balance reconciled to client value")
	return balance, nil
}

// SyncBalance persists the balance of a table seat together with the
// transaction rows that explain it, atomically.
func (s *AccountService) SyncBalance(ctx context.Context, userID int64, balance int64, entries []LedgerEntry) error {
	s.userLock.Lock(userID)
	defer s.userLock.Unlock(userID)

	return s.trManager.Do(ctx, func(txCtx context.Context) error {
		if _, err := s.userRepo.SetBalance(txCtx, userID, balance); err != nil {
			return err
		}
		for _, e := range entries {
			var desc *string
			if e.Description != "" {
				d := e.Description
				desc = &d
			}
			if _, err := s.txRepo.Create(txCtx, userID, e.Amount, e.Type, desc); err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplyDelta adds amount to the user's balance and records a transaction.
// A negative amount that would overdraw the balance fails with
// ErrInsufficientBalance. Seated players are credited on their seat and
// persisted by the balance syncer.
func (s *AccountService) ApplyDelta(ctx context.Context, userID int64, amount int64, txType, description string) (int64, error) {
	entry := LedgerEntry{Amount: amount, Type: txType, Description: description}
	if s.wallet != nil {
		balance, seated, err := s.wallet.Adjust(userID, amount, entry)
		if seated {
			return balance, err
		}
	}

	return s.applyStored(ctx, userID, txType, description, func(int64) int64 { return amount })
}

// applyStored changes the stored balance by the delta computed from the
// current stored balance, under the user lock and in one transaction.
func (s *AccountService) applyStored(ctx context.Context, userID int64, txType, description string, delta func(current int64) int64) (int64, error) {
	s.userLock.Lock(userID)
	defer s.userLock.Unlock(userID)

	var balance int64
	err := s.trManager.Do(ctx, func(txCtx context.Context) error {
		user, err := s.userRepo.GetByID(txCtx, userID)
		if err != nil {
			return err
		}
		amount := delta(user.Balance)
		if user.Balance+amount < 0 {
			return ErrInsufficientBalance
		}
		user, err = s.userRepo.UpdateBalance(txCtx, userID, amount)
		if err != nil {
			return err
		}
		balance = user.Balance

		var desc *string
		if description != "" {
			desc = &description
		}
		_, err = s.txRepo.Create(txCtx, userID, amount, txType, desc)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) || errors.Is(err, repository.ErrUserNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to apply balance change: %w", err)
	}
	return balance, nil
}

// SetBalance sets a user's balance to an exact value. Used by admins and the
// balance endpoint. A seated player's seat balance is the one set.
func (s *AccountService) SetBalance(ctx context.Context, userID int64, balance int64, txType string) (int64, error) {
	if balance < 0 {
		return 0, ErrInvalidAmount
	}
	const description = "balance set"
	if s.wallet != nil {
		got, seated, err := s.wallet.Set(userID, balance, LedgerEntry{Type: txType, Description: description})
		if seated {
			return got, err
		}
	}
	return s.applyStored(ctx, userID, txType, description, func(current int64) int64 { return balance - current })
}

// GetTopUsers retrieves the top users by balance.
func (s *AccountService) GetTopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	return s.userRepo.GetTopUsers(ctx, limit)
}
