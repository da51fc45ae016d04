// Package model defines the data models for the craps server.
package model

import "time"

// User represents a player account. UserID is the Telegram ID for bot
// players and the client-assigned numeric ID for web players.
type User struct {
	UserID    int64     `db:"user_id" json:"user_id"`
	Username  string    `db:"username" json:"username"`
	Balance   int64     `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction represents a balance change record.
type Transaction struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Amount      int64     `db:"amount" json:"amount"`
	Type        string    `db:"type" json:"type"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// GameStats holds lifetime craps statistics for a user.
type GameStats struct {
	UserID       int64     `db:"user_id" json:"user_id"`
	Rolls        int64     `db:"rolls" json:"rolls"`
	BetsPlaced   int64     `db:"bets_placed" json:"bets_placed"`
	TotalWagered int64     `db:"total_wagered" json:"total_wagered"`
	TotalWon     int64     `db:"total_won" json:"total_won"`
	BiggestWin   int64     `db:"biggest_win" json:"biggest_win"`
	PointsMade   int64     `db:"points_made" json:"points_made"`
	SevenOuts    int64     `db:"seven_outs" json:"seven_outs"`
	XP           int64     `db:"xp" json:"xp"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Level derives the player level from XP, 1000 XP per level.
func (s *GameStats) Level() int64 {
	return s.XP/1000 + 1
}

// StatsDelta is an increment applied to GameStats after a roll.
type StatsDelta struct {
	Rolls      int64
	BetsPlaced int64
	Wagered    int64
	Won        int64
	BiggestWin int64
	PointsMade int64
	SevenOuts  int64
	XP         int64
}

// PlaySession is one stay at a table, recorded when the player leaves.
type PlaySession struct {
	ID        string     `db:"id" json:"id"`
	UserID    int64      `db:"user_id" json:"user_id"`
	RoomID    string     `db:"room_id" json:"room_id"`
	StartedAt time.Time  `db:"started_at" json:"started_at"`
	EndedAt   *time.Time `db:"ended_at" json:"ended_at,omitempty"`
	Rolls     int64      `db:"rolls" json:"rolls"`
	Wagered   int64      `db:"wagered" json:"wagered"`
	Won       int64      `db:"won" json:"won"`
	Net       int64      `db:"net" json:"net"`
}

// Jackpot is the progressive jackpot pool.
type Jackpot struct {
	Amount     int64      `db:"amount" json:"amount"`
	LastWinner *int64     `db:"last_winner" json:"last_winner,omitempty"`
	LastWonAt  *time.Time `db:"last_won_at" json:"last_won_at,omitempty"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Membership is a confirmed membership tier.
type Membership struct {
	UserID      int64     `db:"user_id" json:"user_id"`
	Tier        string    `db:"tier" json:"tier"`
	ConfirmedAt time.Time `db:"confirmed_at" json:"confirmed_at"`
}

// DailyClaim is the last daily bonus claim for an email address.
type DailyClaim struct {
	Email       string    `db:"email" json:"email"`
	ClaimedAt   time.Time `db:"claimed_at" json:"claimed_at"`
	NextClaimAt time.Time `db:"next_claim_at" json:"next_claim_at"`
}

// LeaderboardEntry is one row of a ranking.
type LeaderboardEntry struct {
	UserID   int64  `db:"user_id" json:"user_id"`
	Username string `db:"username" json:"username"`
	Value    int64  `db:"value" json:"value"`
}

// Transaction types for categorizing balance changes.
const (
	TxTypeInitial   = "initial"    // Initial balance on account creation
	TxTypeDaily     = "daily"      // Daily bonus claim
	TxTypeSync      = "sync"       // Balance synced from a table seat
	TxTypeCrapsBet  = "craps_bet"  // Stakes lost at the table
	TxTypeCrapsWin  = "craps_win"  // Winnings at the table
	TxTypeJackpot   = "jackpot"    // Progressive jackpot award
	TxTypeAdminAdd  = "admin_add"  // Admin added balance
	TxTypeAdminSet  = "admin_set"  // Admin set balance
	TxTypeBoost     = "boost"      // Boost purchase
	TxTypeReconcile = "reconcile"  // Balance raised to a client-reported value
)

// GameTransactionTypes returns the transaction types that count towards winnings rankings.
func GameTransactionTypes() []string {
	return []string{TxTypeCrapsBet, TxTypeCrapsWin, TxTypeJackpot}
}
