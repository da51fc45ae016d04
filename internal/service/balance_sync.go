package service

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// BalanceWriter persists a seat balance and its ledger entries.
type BalanceWriter interface {
	SyncBalance(ctx context.Context, userID int64, balance int64, entries []LedgerEntry) error
}

// SyncPolicy controls retries of a balance write.
type SyncPolicy struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

// DefaultSyncPolicy retries three times, backing off from 500ms up to 2s.
var DefaultSyncPolicy = SyncPolicy{Attempts: 3, Initial: 500 * time.Millisecond, Max: 2 * time.Second}

type pendingBalance struct {
	balance int64
	entries []LedgerEntry
}

// BalanceSyncer writes seat balances to the database in the background.
// Updates for the same user are coalesced: only the latest balance is
// written, together with every ledger entry queued since the last write.
type BalanceSyncer struct {
	writer BalanceWriter
	policy SyncPolicy

	mu      sync.Mutex
	pending map[int64]*pendingBalance
	order   []int64
	notify  chan struct{}
}

// NewBalanceSyncer creates a syncer writing through w.
func NewBalanceSyncer(w BalanceWriter, policy SyncPolicy) *BalanceSyncer {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &BalanceSyncer{
		writer:  w,
		policy:  policy,
		pending: make(map[int64]*pendingBalance),
		notify:  make(chan struct{}, 1),
	}
}

// Enqueue schedules balance to be written for userID. It never blocks.
func (s *BalanceSyncer) Enqueue(userID int64, balance int64, entries ...LedgerEntry) {
	s.mu.Lock()
	p, ok := s.pending[userID]
	if !ok {
		p = &pendingBalance{}
		s.pending[userID] = p
		s.order = append(s.order, userID)
	}
	p.balance = balance
	p.entries = append(p.entries, entries...)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Pending returns the number of users with unwritten balances.
func (s *BalanceSyncer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Run writes queued balances until ctx is cancelled, then drains what is
// left with a fresh context.
func (s *BalanceSyncer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			s.Flush(drainCtx)
			cancel()
			return nil
		case <-s.notify:
			s.Flush(ctx)
		}
	}
}

// Flush writes every queued balance once, retrying each per the policy.
func (s *BalanceSyncer) Flush(ctx context.Context) {
	for {
		userID, p, ok := s.next()
		if !ok {
			return
		}
		if err := s.write(ctx, userID, p); err != nil {
			log.Error().
				Err(err).
				Int64("user_id", userID).
				Int64("balance", p.balance).
				Int("entries", len(p.entries)).
				Msg("Balance sync failed, keeping table balance")
		}
	}
}

func (s *BalanceSyncer) next() (int64, *pendingBalance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return 0, nil, false
	}
	userID := s.order[0]
	s.order = s.order[1:]
	p := s.pending[userID]
	delete(s.pending, userID)
	return userID, p, true
}

func (s *BalanceSyncer) write(ctx context.Context, userID int64, p *pendingBalance) error {
	attempt := 0
	op := func() error {
		attempt++
		err := s.writer.SyncBalance(ctx, userID, p.balance, p.entries)
		if err != nil {
			log.Warn().
				Err(err).
				Int64("user_id", userID).
				Int("attempt", attempt).
				Msg("Balance sync attempt failed")
		}
		return err
	}
	return backoff.Retry(op, s.newBackOff(ctx))
}

func (s *BalanceSyncer) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.policy.Initial
	b.MaxInterval = s.policy.Max
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.policy.Attempts-1)), ctx)
}
