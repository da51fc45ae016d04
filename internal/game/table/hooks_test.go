package table

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craps-server/internal/game/craps"
	"craps-server/internal/model"
	"craps-server/internal/service"
)

type queueStub struct{}

func (queueStub) Enqueue(int64, int64, ...service.LedgerEntry) {}

// gatedStats blocks every write until release is closed.
type gatedStats struct {
	release  chan struct{}
	mu       sync.Mutex
	rolls    []int64
	sessions []string
	lost     int64
	awarded  []int64
}

func newGatedStats() *gatedStats {
	return &gatedStats{release: make(chan struct{})}
}

func (s *gatedStats) RecordRoll(_ context.Context, userID int64, _ model.StatsDelta) (*model.GameStats, error) {
	<-s.release
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolls = append(s.rolls, userID)
	return &model.GameStats{UserID: userID}, nil
}

func (s *gatedStats) RecordSession(_ context.Context, session *model.PlaySession) error {
	<-s.release
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, session.ID)
	return nil
}

func (s *gatedStats) ContributeJackpot(_ context.Context, lost int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lost += lost
	return s.lost, nil
}

func (s *gatedStats) AwardJackpot(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.awarded = append(s.awarded, userID)
	return 0, nil
}

func TestServiceHooksWaitForSessions(t *testing.T) {
	stats := newGatedStats()
	hooks := NewServiceHooks(queueStub{}, stats)

	hooks.SeatClosed(SeatReport{RoomID: "a", UserID: 1, SessionID: "s1", JoinedAt: time.Now(), LeftAt: time.Now()})
	hooks.SeatClosed(SeatReport{RoomID: "a", UserID: 2, SessionID: "s2", JoinedAt: time.Now(), LeftAt: time.Now()})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, hooks.Wait(ctx), context.DeadlineExceeded)

	close(stats.release)
	require.NoError(t, hooks.Wait(context.Background()))
	assert.ElementsMatch(t, []string{"s1", "s2"}, stats.sessions)
}

func TestServiceHooksRollSettled(t *testing.T) {
	stats := newGatedStats()
	close(stats.release)
	hooks := NewServiceHooks(queueStub{}, stats)

	hooks.RollSettled(RollReport{
		RoomID:  "a",
		Outcome: craps.Outcome{Total: 7, SevenOut: true},
		Players: []PlayerResult{
			{UserID: 1, Lost: 30},
			{UserID: 2, Lost: 5, AllWon: true},
		},
	})
	require.NoError(t, hooks.Wait(context.Background()))

	assert.Equal(t, []int64{1, 2}, stats.rolls)
	assert.Equal(t, int64(35), stats.lost)
	assert.Equal(t, []int64{2}, stats.awarded)
}
