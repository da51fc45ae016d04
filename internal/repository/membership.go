package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"craps-server/internal/model"
)

// ErrMembershipNotFound is returned when a user has no confirmed membership.
var ErrMembershipNotFound = errors.New("membership not found")

// MembershipRepository handles membership persistence.
type MembershipRepository struct {
	pool *pgxpool.Pool
}

// NewMembershipRepository creates a new MembershipRepository instance.
func NewMembershipRepository(pool *pgxpool.Pool) *MembershipRepository {
	return &MembershipRepository{pool: pool}
}

// Confirm stores the membership tier, replacing an earlier one.
func (r *MembershipRepository) Confirm(ctx context.Context, userID int64, tier string) (*model.Membership, error) {
	const query = `
		INSERT INTO memberships (user_id, tier, confirmed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET tier = EXCLUDED.tier, confirmed_at = NOW()
		RETURNING user_id, tier, confirmed_at
	`
	var m model.Membership
	if err := querier(ctx, r.pool).QueryRow(ctx, query, userID, tier).Scan(&m.UserID, &m.Tier, &m.ConfirmedAt); err != nil {
		return nil, fmt.Errorf("failed to confirm membership: %w", err)
	}
	return &m, nil
}

// Get returns the user's membership.
func (r *MembershipRepository) Get(ctx context.Context, userID int64) (*model.Membership, error) {
	const query = `SELECT user_id, tier, confirmed_at FROM memberships WHERE user_id = $1`

	var m model.Membership
	if err := querier(ctx, r.pool).QueryRow(ctx, query, userID).Scan(&m.UserID, &m.Tier, &m.ConfirmedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, nil
}
