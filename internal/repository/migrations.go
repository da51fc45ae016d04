package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// schema is applied in order; every statement is idempotent.
var schema = []struct {
	name string
	sql  string
}{
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			user_id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL DEFAULT '',
			balance BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_users_balance ON users(balance DESC);
	`},
	{"transactions", `
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			type VARCHAR(50) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user_time ON transactions(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_transactions_type_time ON transactions(type, created_at DESC);
	`},
	{"game_stats", `
		CREATE TABLE IF NOT EXISTS game_stats (
			user_id BIGINT PRIMARY KEY REFERENCES users(user_id) ON DELETE CASCADE,
			rolls BIGINT NOT NULL DEFAULT 0,
			bets_placed BIGINT NOT NULL DEFAULT 0,
			total_wagered BIGINT NOT NULL DEFAULT 0,
			total_won BIGINT NOT NULL DEFAULT 0,
			biggest_win BIGINT NOT NULL DEFAULT 0,
			points_made BIGINT NOT NULL DEFAULT 0,
			seven_outs BIGINT NOT NULL DEFAULT 0,
			xp BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"play_sessions", `
		CREATE TABLE IF NOT EXISTS play_sessions (
			id VARCHAR(26) PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			room_id VARCHAR(64) NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ,
			rolls BIGINT NOT NULL DEFAULT 0,
			wagered BIGINT NOT NULL DEFAULT 0,
			won BIGINT NOT NULL DEFAULT 0,
			net BIGINT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_play_sessions_user ON play_sessions(user_id, started_at DESC);
	`},
	{"jackpot", `
		CREATE TABLE IF NOT EXISTS jackpot (
			id INT PRIMARY KEY CHECK (id = 1),
			amount BIGINT NOT NULL,
			last_winner BIGINT,
			last_won_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"user_boosts", `
		CREATE TABLE IF NOT EXISTS user_boosts (
			user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			boost_type VARCHAR(50) NOT NULL,
			use_count INT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, boost_type)
		);
	`},
	{"active_boosts", `
		CREATE TABLE IF NOT EXISTS active_boosts (
			user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			boost_type VARCHAR(50) NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, boost_type)
		);
		CREATE INDEX IF NOT EXISTS idx_active_boosts_expires ON active_boosts(expires_at);
	`},
	{"daily_claims", `
		CREATE TABLE IF NOT EXISTS daily_claims (
			email VARCHAR(320) PRIMARY KEY,
			claimed_at TIMESTAMPTZ NOT NULL,
			next_claim_at TIMESTAMPTZ NOT NULL
		);
	`},
	{"memberships", `
		CREATE TABLE IF NOT EXISTS memberships (
			user_id BIGINT PRIMARY KEY REFERENCES users(user_id) ON DELETE CASCADE,
			tier VARCHAR(50) NOT NULL,
			confirmed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
}

// Migrate creates the database schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, step := range schema {
		if _, err := pool.Exec(ctx, step.sql); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", step.name, err)
		}
		log.Debug().Str("table", step.name).Msg("Migration applied")
	}
	log.Info().Int("steps", len(schema)).Msg("Database migrations completed")
	return nil
}
