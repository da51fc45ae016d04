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

// StatsRepository handles per-user game statistics, play sessions and the
// progressive jackpot.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a new StatsRepository instance.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// Apply adds delta to the user's stats, creating the row on first use.
func (r *StatsRepository) Apply(ctx context.Context, userID int64, d model.StatsDelta) (*model.GameStats, error) {
	const query = `
		INSERT INTO game_stats (user_id, rolls, bets_placed, total_wagered, total_won, biggest_win, points_made, seven_outs, xp, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			rolls = game_stats.rolls + EXCLUDED.rolls,
			bets_placed = game_stats.bets_placed + EXCLUDED.bets_placed,
			total_wagered = game_stats.total_wagered + EXCLUDED.total_wagered,
			total_won = game_stats.total_won + EXCLUDED.total_won,
			biggest_win = GREATEST(game_stats.biggest_win, EXCLUDED.biggest_win),
			points_made = game_stats.points_made + EXCLUDED.points_made,
			seven_outs = game_stats.seven_outs + EXCLUDED.seven_outs,
			xp = game_stats.xp + EXCLUDED.xp,
			updated_at = NOW()
		RETURNING user_id, rolls, bets_placed, total_wagered, total_won, biggest_win, points_made, seven_outs, xp, updated_at
	`

	var s model.GameStats
	err := querier(ctx, r.pool).QueryRow(ctx, query,
		userID, d.Rolls, d.BetsPlaced, d.Wagered, d.Won, d.BiggestWin, d.PointsMade, d.SevenOuts, d.XP,
	).Scan(
		&s.UserID,
		&s.Rolls,
		&s.BetsPlaced,
		&s.TotalWagered,
		&s.TotalWon,
		&s.BiggestWin,
		&s.PointsMade,
		&s.SevenOuts,
		&s.XP,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to apply stats: %w", err)
	}
	return &s, nil
}

// Get returns the user's stats, or zero stats if none were recorded.
func (r *StatsRepository) Get(ctx context.Context, userID int64) (*model.GameStats, error) {
	const query = `
		SELECT user_id, rolls, bets_placed, total_wagered, total_won, biggest_win, points_made, seven_outs, xp, updated_at
		FROM game_stats
		WHERE user_id = $1
	`

	var s model.GameStats
	err := querier(ctx, r.pool).QueryRow(ctx, query, userID).Scan(
		&s.UserID,
		&s.Rolls,
		&s.BetsPlaced,
		&s.TotalWagered,
		&s.TotalWon,
		&s.BiggestWin,
		&s.PointsMade,
		&s.SevenOuts,
		&s.XP,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.GameStats{UserID: userID}, nil
		}
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &s, nil
}

// TopByWinnings ranks users by lifetime winnings.
func (r *StatsRepository) TopByWinnings(ctx context.Context, limit int) ([]*model.LeaderboardEntry, error) {
	const query = `
		SELECT s.user_id, u.username, s.total_won AS value
		FROM game_stats s
		JOIN users u ON s.user_id = u.user_id
		ORDER BY s.total_won DESC, s.user_id
		LIMIT $1
	`

	rows, err := querier(ctx, r.pool).Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top winnings: %w", err)
	}
	defer rows.Close()

	var entries []*model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Value); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return entries, nil
}

// CreateSession records a finished play session.
func (r *StatsRepository) CreateSession(ctx context.Context, s *model.PlaySession) error {
	const query = `
		INSERT INTO play_sessions (id, user_id, room_id, started_at, ended_at, rolls, wagered, won, net)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := querier(ctx, r.pool).Exec(ctx, query,
		s.ID, s.UserID, s.RoomID, s.StartedAt, s.EndedAt, s.Rolls, s.Wagered, s.Won, s.Net)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// ListSessions returns the user's most recent sessions.
func (r *StatsRepository) ListSessions(ctx context.Context, userID int64, limit int) ([]*model.PlaySession, error) {
	const query = `
		SELECT id, user_id, room_id, started_at, ended_at, rolls, wagered, won, net
		FROM play_sessions
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := querier(ctx, r.pool).Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.PlaySession
	for rows.Next() {
		var s model.PlaySession
		err := rows.Scan(&s.ID, &s.UserID, &s.RoomID, &s.StartedAt, &s.EndedAt, &s.Rolls, &s.Wagered, &s.Won, &s.Net)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

// GetJackpot returns the jackpot pool, seeding it when missing.
func (r *StatsRepository) GetJackpot(ctx context.Context, seed int64) (*model.Jackpot, error) {
	const query = `
		INSERT INTO jackpot (id, amount, updated_at) VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET id = jackpot.id
		RETURNING amount, last_winner, last_won_at, updated_at
	`
	var j model.Jackpot
	err := querier(ctx, r.pool).QueryRow(ctx, query, seed).Scan(&j.Amount, &j.LastWinner, &j.LastWonAt, &j.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get jackpot: %w", err)
	}
	return &j, nil
}

// AddToJackpot grows the pool by amount.
func (r *StatsRepository) AddToJackpot(ctx context.Context, amount, seed int64) (int64, error) {
	const query = `
		INSERT INTO jackpot (id, amount, updated_at) VALUES (1, $1::bigint + $2::bigint, NOW())
		ON CONFLICT (id) DO UPDATE SET amount = jackpot.amount + $2, updated_at = NOW()
		RETURNING amount
	`
	var total int64
	if err := querier(ctx, r.pool).QueryRow(ctx, query, seed, amount).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to add to jackpot: %w", err)
	}
	return total, nil
}

// AwardJackpot resets the pool to seed and returns the amount that was won.
func (r *StatsRepository) AwardJackpot(ctx context.Context, userID, seed int64, at time.Time) (int64, error) {
	const query = `
		WITH prev AS (SELECT amount FROM jackpot WHERE id = 1 FOR UPDATE)
		UPDATE jackpot
		SET amount = $2, last_winner = $1, last_won_at = $3, updated_at = NOW()
		WHERE id = 1
		RETURNING (SELECT amount FROM prev)
	`
	var won int64
	err := querier(ctx, r.pool).QueryRow(ctx, query, userID, seed, at).Scan(&won)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to award jackpot: %w", err)
	}
	return won, nil
}
