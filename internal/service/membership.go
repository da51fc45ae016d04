package service

import (
	"context"
	"errors"
	"slices"

	"craps-server/internal/model"
	"craps-server/internal/repository"
)

// ErrInvalidTier is returned for an unknown membership tier.
var ErrInvalidTier = errors.New("invalid membership tier")

// Tiers lists the accepted membership tiers.
var Tiers = []string{"basic", "premium", "vip"}

// MembershipService records membership confirmations.
type MembershipService struct {
	repo *repository.MembershipRepository
}

// NewMembershipService creates a new MembershipService instance.
func NewMembershipService(repo *repository.MembershipRepository) *MembershipService {
	return &MembershipService{repo: repo}
}

// Confirm stores tier as the user's membership.
func (s *MembershipService) Confirm(ctx context.Context, userID int64, tier string) (*model.Membership, error) {
	if !slices.Contains(Tiers, tier) {
		return nil, ErrInvalidTier
	}
	return s.repo.Confirm(ctx, userID, tier)
}

// Get returns the user's membership.
func (s *MembershipService) Get(ctx context.Context, userID int64) (*model.Membership, error) {
	return s.repo.Get(ctx, userID)
}
