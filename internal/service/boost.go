package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/rs/zerolog/log"

	"craps-server/internal/boost"
	"craps-server/internal/model"
	"craps-server/internal/repository"
)

// Boost errors.
var (
	ErrUnknownBoost = errors.New("unknown boost")
	ErrNoBoostLeft  = errors.New("no boost left in inventory")
)

// Inventory is what a player owns and has running.
type Inventory struct {
	Catalog []boost.Config           `json:"catalog"`
	Items   []repository.BoostItem   `json:"items"`
	Active  []repository.ActiveBoost `json:"active"`
}

// BoostService handles boost purchase and activation.
type BoostService struct {
	boostRepo *repository.BoostRepository
	account   *AccountService
	trManager trm.Manager
}

// NewBoostService creates a new BoostService instance.
func NewBoostService(boostRepo *repository.BoostRepository, account *AccountService, trManager trm.Manager) *BoostService {
	return &BoostService{boostRepo: boostRepo, account: account, trManager: trManager}
}

// Purchase buys one boost with coins and adds it to the inventory.
func (s *BoostService) Purchase(ctx context.Context, userID int64, t boost.Type) (int64, error) {
	item, ok := boost.Get(t)
	if !ok {
		return 0, ErrUnknownBoost
	}

	balance, err := s.account.ApplyDelta(ctx, userID, -item.Price, model.TxTypeBoost, "bought "+item.Name)
	if err != nil {
		return 0, err
	}

	if err := s.boostRepo.AddItem(ctx, userID, string(t), 1); err != nil {
		// Give the coins back; the purchase did not happen.
		if _, rerr := s.account.ApplyDelta(ctx, userID, item.Price, model.TxTypeBoost, "refund "+item.Name); rerr != nil {
			log.Error().Err(rerr).Int64("user_id", userID).Str("boost", string(t)).Msg("Failed to refund boost")
		}
		return 0, fmt.Errorf("failed to store boost: %w", err)
	}
	return balance, nil
}

// Activate consumes one boost from the inventory and starts its timer.
// Activating a running boost extends it.
func (s *BoostService) Activate(ctx context.Context, userID int64, t boost.Type) (time.Time, error) {
	item, ok := boost.Get(t)
	if !ok {
		return time.Time{}, ErrUnknownBoost
	}

	var expiresAt time.Time
	err := s.trManager.Do(ctx, func(txCtx context.Context) error {
		used, err := s.boostRepo.DecrementItem(txCtx, userID, string(t))
		if err != nil {
			return err
		}
		if !used {
			return ErrNoBoostLeft
		}
		expiresAt, err = s.boostRepo.Activate(txCtx, userID, string(t), item.Duration)
		return err
	})
	if err != nil {
		return time.Time{}, err
	}
	return expiresAt, nil
}

// Inventory lists the catalog with the player's items and running boosts.
func (s *BoostService) Inventory(ctx context.Context, userID int64) (*Inventory, error) {
	items, err := s.boostRepo.GetItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	active, err := s.boostRepo.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Inventory{Catalog: boost.All(), Items: items, Active: active}, nil
}

// ActiveTypes returns the boost types currently running for userID.
func (s *BoostService) ActiveTypes(ctx context.Context, userID int64) ([]boost.Type, error) {
	active, err := s.boostRepo.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	types := make([]boost.Type, 0, len(active))
	for _, a := range active {
		types = append(types, boost.Type(a.BoostType))
	}
	return types, nil
}

// CleanExpired removes finished boosts.
func (s *BoostService) CleanExpired(ctx context.Context) (int64, error) {
	return s.boostRepo.CleanExpired(ctx)
}
