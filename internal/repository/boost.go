package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BoostItem is an unused boost in a user's inventory.
type BoostItem struct {
	UserID    int64     `json:"user_id"`
	BoostType string    `json:"boost_type"`
	UseCount  int       `json:"use_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActiveBoost is a boost that is currently running.
type ActiveBoost struct {
	UserID    int64     `json:"user_id"`
	BoostType string    `json:"boost_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BoostRepository handles boost inventory and active boost persistence.
type BoostRepository struct {
	pool *pgxpool.Pool
}

// NewBoostRepository creates a new BoostRepository instance.
func NewBoostRepository(pool *pgxpool.Pool) *BoostRepository {
	return &BoostRepository{pool: pool}
}

// AddItem adds use count to a user's boost.
func (r *BoostRepository) AddItem(ctx context.Context, userID int64, boostType string, useCount int) error {
	const query = `
		INSERT INTO user_boosts (user_id, boost_type, use_count, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, boost_type)
		DO UPDATE SET use_count = user_boosts.use_count + $3, updated_at = NOW()
	`
	if _, err := querier(ctx, r.pool).Exec(ctx, query, userID, boostType, useCount); err != nil {
		return fmt.Errorf("failed to add boost: %w", err)
	}
	return nil
}

// DecrementItem consumes one boost, returning false if none is left.
func (r *BoostRepository) DecrementItem(ctx context.Context, userID int64, boostType string) (bool, error) {
	const query = `
		UPDATE user_boosts
		SET use_count = use_count - 1, updated_at = NOW()
		WHERE user_id = $1 AND boost_type = $2 AND use_count > 0
	`
	result, err := querier(ctx, r.pool).Exec(ctx, query, userID, boostType)
	if err != nil {
		return false, fmt.Errorf("failed to consume boost: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// GetItems returns all boosts with a positive use count.
func (r *BoostRepository) GetItems(ctx context.Context, userID int64) ([]BoostItem, error) {
	const query = `
		SELECT user_id, boost_type, use_count, updated_at FROM user_boosts
		WHERE user_id = $1 AND use_count > 0
		ORDER BY boost_type
	`
	rows, err := querier(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get boosts: %w", err)
	}
	defer rows.Close()

	var items []BoostItem
	for rows.Next() {
		var item BoostItem
		if err := rows.Scan(&item.UserID, &item.BoostType, &item.UseCount, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan boost: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Activate starts a boost, extending it when the same boost is already running.
func (r *BoostRepository) Activate(ctx context.Context, userID int64, boostType string, duration time.Duration) (time.Time, error) {
	const query = `
		INSERT INTO active_boosts (user_id, boost_type, expires_at)
		VALUES ($1, $2, NOW() + $3::interval)
		ON CONFLICT (user_id, boost_type) DO UPDATE SET
			expires_at = GREATEST(active_boosts.expires_at, NOW()) + $3::interval
		RETURNING expires_at
	`
	var expiresAt time.Time
	err := querier(ctx, r.pool).QueryRow(ctx, query, userID, boostType, duration).Scan(&expiresAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to activate boost: %w", err)
	}
	return expiresAt, nil
}

// GetActive returns the boosts that have not expired.
func (r *BoostRepository) GetActive(ctx context.Context, userID int64) ([]ActiveBoost, error) {
	const query = `
		SELECT user_id, boost_type, expires_at FROM active_boosts
		WHERE user_id = $1 AND expires_at > NOW()
		ORDER BY expires_at
	`
	rows, err := querier(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active boosts: %w", err)
	}
	defer rows.Close()

	var boosts []ActiveBoost
	for rows.Next() {
		var b ActiveBoost
		if err := rows.Scan(&b.UserID, &b.BoostType, &b.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan active boost: %w", err)
		}
		boosts = append(boosts, b)
	}
	return boosts, rows.Err()
}

// GetExpiry returns when a running boost expires.
func (r *BoostRepository) GetExpiry(ctx context.Context, userID int64, boostType string) (time.Time, bool, error) {
	const query = `
		SELECT expires_at FROM active_boosts
		WHERE user_id = $1 AND boost_type = $2 AND expires_at > NOW()
	`
	var expiresAt time.Time
	err := querier(ctx, r.pool).QueryRow(ctx, query, userID, boostType).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to get boost expiry: %w", err)
	}
	return expiresAt, true, nil
}

// CleanExpired removes boosts that have run out.
func (r *BoostRepository) CleanExpired(ctx context.Context) (int64, error) {
	result, err := querier(ctx, r.pool).Exec(ctx, `DELETE FROM active_boosts WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to clean expired boosts: %w", err)
	}
	return result.RowsAffected(), nil
}
