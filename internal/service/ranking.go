package service

import (
	"context"
	"time"

	"craps-server/internal/model"
	"craps-server/internal/repository"
)

// Leaderboard groups the rankings shown to players.
type Leaderboard struct {
	TopBalances  []*model.LeaderboardEntry `json:"top_balances"`
	TodayWinners []*model.LeaderboardEntry `json:"today_winners"`
	AllTime      []*model.LeaderboardEntry `json:"all_time_winnings"`
}

// RankingService handles ranking and leaderboard operations.
type RankingService struct {
	userRepo  *repository.UserRepository
	txRepo    *repository.TransactionRepository
	statsRepo *repository.StatsRepository
	timezone  *time.Location
}

// NewRankingService creates a new RankingService instance.
func NewRankingService(
	userRepo *repository.UserRepository,
	txRepo *repository.TransactionRepository,
	statsRepo *repository.StatsRepository,
	timezone *time.Location,
) *RankingService {
	if timezone == nil {
		timezone = time.UTC
	}
	return &RankingService{
		userRepo:  userRepo,
		txRepo:    txRepo,
		statsRepo: statsRepo,
		timezone:  timezone,
	}
}

// GetTopUsers retrieves the top users by balance.
func (s *RankingService) GetTopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	return s.userRepo.GetTopUsers(ctx, limit)
}

// GetDailyWinners retrieves today's biggest net winners at the tables.
func (s *RankingService) GetDailyWinners(ctx context.Context, limit int) ([]*model.LeaderboardEntry, error) {
	return s.txRepo.GetTopWinners(ctx, StartOfDay(time.Now(), s.timezone), limit)
}

// GetLeaderboard assembles the three rankings.
func (s *RankingService) GetLeaderboard(ctx context.Context, limit int) (*Leaderboard, error) {
	limit = ClampLimit(limit, 10, 100)

	users, err := s.userRepo.GetTopUsers(ctx, limit)
	if err != nil {
		return nil, err
	}
	today, err := s.GetDailyWinners(ctx, limit)
	if err != nil {
		return nil, err
	}
	allTime, err := s.statsRepo.TopByWinnings(ctx, limit)
	if err != nil {
		return nil, err
	}

	board := &Leaderboard{
		TopBalances:  make([]*model.LeaderboardEntry, 0, len(users)),
		TodayWinners: today,
		AllTime:      allTime,
	}
	for _, u := range users {
		board.TopBalances = append(board.TopBalances, &model.LeaderboardEntry{
			UserID:   u.UserID,
			Username: u.Username,
			Value:    u.Balance,
		})
	}
	return board, nil
}

// StartOfDay returns midnight of t's day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// ClampLimit bounds a client supplied page size. Non-positive values fall
// back to def.
func ClampLimit(limit, def, maxLimit int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, maxLimit)
}
