package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"craps-server/internal/model"
)

// ClaimRepository stores daily bonus claims keyed by email.
type ClaimRepository struct {
	pool *pgxpool.Pool
}

// NewClaimRepository creates a new ClaimRepository instance.
func NewClaimRepository(pool *pgxpool.Pool) *ClaimRepository {
	return &ClaimRepository{pool: pool}
}

// TryClaim records a claim at now if the previous claim's cooldown has
// elapsed. It returns the stored claim and whether this call claimed it;
// on false the returned claim carries the pending next claim time.
func (r *ClaimRepository) TryClaim(ctx context.Context, email string, now time.Time, cooldown time.Duration) (*model.DailyClaim, bool, error) {
	const query = `
		INSERT INTO daily_claims (email, claimed_at, next_claim_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET claimed_at = EXCLUDED.claimed_at, next_claim_at = EXCLUDED.next_claim_at
		WHERE daily_claims.next_claim_at <= EXCLUDED.claimed_at
		RETURNING email, claimed_at, next_claim_at
	`

	var c model.DailyClaim
	err := querier(ctx, r.pool).QueryRow(ctx, query, email, now, now.Add(cooldown)).Scan(&c.Email, &c.ClaimedAt, &c.NextClaimAt)
	if err == nil {
		return &c, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to record claim: %w", err)
	}

	existing, err := r.Get(ctx, email)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Get returns the last claim for an email.
func (r *ClaimRepository) Get(ctx context.Context, email string) (*model.DailyClaim, error) {
	const query = `SELECT email, claimed_at, next_claim_at FROM daily_claims WHERE email = $1`

	var c model.DailyClaim
	err := querier(ctx, r.pool).QueryRow(ctx, query, email).Scan(&c.Email, &c.ClaimedAt, &c.NextClaimAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClaimNotFound
		}
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return &c, nil
}

// ErrClaimNotFound is returned when an email never claimed.
var ErrClaimNotFound = errors.New("claim not found")
