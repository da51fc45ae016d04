package table

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"craps-server/internal/game/craps"
	"craps-server/internal/model"
	"craps-server/internal/service"
)

// PlayerResult is one seat's settlement of a roll.
type PlayerResult struct {
	UserID     int64              `json:"user_id"`
	Name       string             `json:"name"`
	Payout     int64              `json:"payout"`
	Won        int64              `json:"won"` // winnings net of the winning stakes
	Lost       int64              `json:"lost"`
	Net        int64              `json:"net"`
	Balance    int64              `json:"balance"`
	BetsPlaced int64              `json:"bets_placed"`
	Wagered    int64              `json:"wagered"`
	AllWon     bool               `json:"all_won"`
	Shooter    bool               `json:"shooter"`
	Outcomes   []craps.BetOutcome `json:"outcomes"`
}

// RollReport describes one resolved roll.
type RollReport struct {
	RoomID  string         `json:"room_id"`
	Roll    craps.Roll     `json:"roll"`
	Outcome craps.Outcome  `json:"outcome"`
	Shooter int64          `json:"shooter"`
	Players []PlayerResult `json:"players"`
}

// Player returns the result of userID, if they had bets on the roll.
func (r *RollReport) Player(userID int64) (PlayerResult, bool) {
	for _, p := range r.Players {
		if p.UserID == userID {
			return p, true
		}
	}
	return PlayerResult{}, false
}

// SeatReport describes a finished stay at the table.
type SeatReport struct {
	RoomID    string
	UserID    int64
	Name      string
	SessionID string
	Balance   int64
	JoinedAt  time.Time
	LeftAt    time.Time
	Session   SessionStats
}

// Hooks receive table changes after the table lock is released. They run
// on the goroutine that caused the change and should return quickly.
type Hooks interface {
	BalanceChanged(userID, balance int64, entries []service.LedgerEntry)
	RollSettled(report RollReport)
	SeatClosed(report SeatReport)
}

// NopHooks ignores every change.
type NopHooks struct{}

func (NopHooks) BalanceChanged(int64, int64, []service.LedgerEntry) {}
func (NopHooks) RollSettled(RollReport)                            {}
func (NopHooks) SeatClosed(SeatReport)                             {}

// BalanceQueue accepts balances to persist.
type BalanceQueue interface {
	Enqueue(userID int64, balance int64, entries ...service.LedgerEntry)
}

// StatsRecorder persists per-user stats, sessions and the jackpot.
type StatsRecorder interface {
	RecordRoll(ctx context.Context, userID int64, delta model.StatsDelta) (*model.GameStats, error)
	RecordSession(ctx context.Context, session *model.PlaySession) error
	ContributeJackpot(ctx context.Context, lost int64) (int64, error)
	AwardJackpot(ctx context.Context, userID int64) (int64, error)
}

// ServiceHooks persists table changes through the balance syncer and the
// stats service. Database work runs in the background; Wait blocks until it
// is done.
type ServiceHooks struct {
	balances BalanceQueue
	stats    StatsRecorder
	timeout  time.Duration
	pending  sync.WaitGroup
}

// NewServiceHooks creates hooks writing to balances and stats.
func NewServiceHooks(balances BalanceQueue, stats StatsRecorder) *ServiceHooks {
	return &ServiceHooks{balances: balances, stats: stats, timeout: 10 * time.Second}
}

// Wait blocks until every background write has finished or ctx is done.
func (h *ServiceHooks) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *ServiceHooks) background(fn func(ctx context.Context)) {
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()
		fn(ctx)
	}()
}

// BalanceChanged queues the seat balance for the database.
func (h *ServiceHooks) BalanceChanged(userID, balance int64, entries []service.LedgerEntry) {
	h.balances.Enqueue(userID, balance, entries...)
}

// RollSettled records stats for every player of the roll, feeds the
// jackpot and pays it to completed All bets.
func (h *ServiceHooks) RollSettled(report RollReport) {
	h.background(func(ctx context.Context) {
		var lost int64
		for _, p := range report.Players {
			lost += p.Lost
			if _, err := h.stats.RecordRoll(ctx, p.UserID, StatsDelta(report.Outcome, p)); err != nil {
				log.Error().Err(err).Int64("user_id", p.UserID).Str("room_id", report.RoomID).Msg("Failed to record roll stats")
			}
		}

		if _, err := h.stats.ContributeJackpot(ctx, lost); err != nil {
			log.Error().Err(err).Str("room_id", report.RoomID).Msg("Failed to grow jackpot")
		}
		for _, p := range report.Players {
			if !p.AllWon {
				continue
			}
			if _, err := h.stats.AwardJackpot(ctx, p.UserID); err != nil {
				log.Error().Err(err).Int64("user_id", p.UserID).Msg("Failed to award jackpot")
			}
		}
	})
}

// SeatClosed stores the play session.
func (h *ServiceHooks) SeatClosed(report SeatReport) {
	h.background(func(ctx context.Context) {
		if err := h.stats.RecordSession(ctx, PlaySession(report)); err != nil {
			log.Error().Err(err).Int64("user_id", report.UserID).Str("room_id", report.RoomID).Msg("Failed to record play session")
		}
	})
}

// StatsDelta converts a player's roll result to a lifetime stats increment.
// Points made and seven-outs count for the shooter only.
func StatsDelta(out craps.Outcome, p PlayerResult) model.StatsDelta {
	d := model.StatsDelta{
		Rolls:      1,
		BetsPlaced: p.BetsPlaced,
		Wagered:    p.Wagered,
		Won:        p.Won,
		BiggestWin: p.Won,
	}
	if p.Shooter {
		if out.PointMade {
			d.PointsMade = 1
		}
		if out.SevenOut {
			d.SevenOuts = 1
		}
	}
	return d
}

// PlaySession converts a seat report to its stored form.
func PlaySession(r SeatReport) *model.PlaySession {
	ended := r.LeftAt
	return &model.PlaySession{
		ID:        r.SessionID,
		UserID:    r.UserID,
		RoomID:    r.RoomID,
		StartedAt: r.JoinedAt,
		EndedAt:   &ended,
		Rolls:     r.Session.Rolls,
		Wagered:   r.Session.Wagered,
		Won:       r.Session.Won,
		Net:       r.Session.Net,
	}
}
