package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"craps-server/internal/boost"
	"craps-server/internal/model"
	"craps-server/internal/repository"
)

// StatsService records lifetime stats, play sessions and the jackpot.
type StatsService struct {
	statsRepo   *repository.StatsRepository
	boosts      *BoostService
	account     *AccountService
	jackpotSeed int64
	jackpotRate float64
}

// NewStatsService creates a new StatsService instance.
func NewStatsService(
	statsRepo *repository.StatsRepository,
	boosts *BoostService,
	account *AccountService,
	jackpotSeed int64,
	jackpotRate float64,
) *StatsService {
	return &StatsService{
		statsRepo:   statsRepo,
		boosts:      boosts,
		account:     account,
		jackpotSeed: jackpotSeed,
		jackpotRate: jackpotRate,
	}
}

// XPForRoll is the base XP earned by a player who had chips on a roll:
// one point plus one per ten coins wagered since the previous roll.
func XPForRoll(wagered int64) int64 {
	return 1 + max(wagered, 0)/10
}

// JackpotContribution is the share of lost stakes that feeds the jackpot.
func JackpotContribution(lost int64, rate float64) int64 {
	if lost <= 0 || rate <= 0 {
		return 0
	}
	return int64(float64(lost) * rate)
}

// RecordRoll applies one roll's stats to the user, scaling XP by the
// strongest running boost.
func (s *StatsService) RecordRoll(ctx context.Context, userID int64, delta model.StatsDelta) (*model.GameStats, error) {
	if delta.Rolls > 0 {
		delta.XP = delta.Rolls * XPForRoll(delta.Wagered)
	}
	if delta.XP > 0 && s.boosts != nil {
		active, err := s.boosts.ActiveTypes(ctx, userID)
		if err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to load active boosts")
		}
		delta.XP *= boost.Multiplier(active)
	}
	return s.statsRepo.Apply(ctx, userID, delta)
}

// GetStats returns a user's lifetime stats.
func (s *StatsService) GetStats(ctx context.Context, userID int64) (*model.GameStats, error) {
	return s.statsRepo.Get(ctx, userID)
}

// RecordSession stores a finished play session.
func (s *StatsService) RecordSession(ctx context.Context, session *model.PlaySession) error {
	return s.statsRepo.CreateSession(ctx, session)
}

// ListSessions returns a user's recent sessions, newest first.
func (s *StatsService) ListSessions(ctx context.Context, userID int64, limit int) ([]*model.PlaySession, error) {
	return s.statsRepo.ListSessions(ctx, userID, ClampLimit(limit, 20, 100))
}

// GetJackpot returns the current jackpot pool.
func (s *StatsService) GetJackpot(ctx context.Context) (*model.Jackpot, error) {
	return s.statsRepo.GetJackpot(ctx, s.jackpotSeed)
}

// ContributeJackpot feeds the configured share of lost stakes into the pool
// and returns the new pool size.
func (s *StatsService) ContributeJackpot(ctx context.Context, lost int64) (int64, error) {
	amount := JackpotContribution(lost, s.jackpotRate)
	if amount == 0 {
		return 0, nil
	}
	return s.statsRepo.AddToJackpot(ctx, amount, s.jackpotSeed)
}

// AwardJackpot pays the whole pool to userID and reseeds it.
func (s *StatsService) AwardJackpot(ctx context.Context, userID int64) (int64, error) {
	won, err := s.statsRepo.AwardJackpot(ctx, userID, s.jackpotSeed, time.Now())
	if err != nil {
		return 0, err
	}
	if won <= 0 {
		return 0, nil
	}
	if _, err := s.account.ApplyDelta(ctx, userID, won, model.TxTypeJackpot, "progressive jackpot"); err != nil {
		return 0, fmt.Errorf("failed to credit jackpot: %w", err)
	}

	log.Info().Int64("user_id", userID).Int64("amount", won).Msg("Jackpot awarded")
	return won, nil
}
