package craps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func comeOut() Status { return Status{Round: NewRoundState()} }

func onPoint(n int) Status { return Status{Round: RoundState{Phase: PhasePoint, Point: n}} }

func TestPlaceRejections(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		setup  func(l *Ledger)
		area   Area
		amount int64
		want   error
	}{
		{"non-positive amount", comeOut(), nil, PassLine, 0, ErrInvalidAmount},
		{"invalid area", comeOut(), nil, Area{Kind: KindPlace, Number: 7}, 10, ErrInvalidArea},
		{"resolving", Status{Round: NewRoundState(), Resolving: true}, nil, Field, 10, ErrResolving},
		{"betting locked", Status{Round: NewRoundState(), BettingLocked: true}, nil, Field, 10, ErrBettingLocked},
		{"pass line in point", onPoint(6), nil, PassLine, 10, ErrWrongPhase},
		{"odds in come-out", comeOut(), nil, PassLineOdds, 10, ErrWrongPhase},
		{"odds without line", onPoint(6), nil, PassLineOdds, 10, ErrNoLineBet},
		{"come in come-out", comeOut(), nil, Come, 10, ErrWrongPhase},
		{"come odds without come", onPoint(6), nil, ComeOdds(5), 10, ErrNoComeBet},
		{"small in point", onPoint(6), nil, Small, 10, ErrWrongPhase},
		{"insufficient balance", comeOut(), nil, PassLine, 1001, ErrInsufficientBalance},
		{"buy commission over balance", comeOut(), nil, Buy(4), 1000, ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger()
			if tt.setup != nil {
				tt.setup(l)
			}
			before := l.Bets()
			debit, err := l.Place(tt.status, tt.area, tt.amount, 1000, 0, 0)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, debit)
			assert.Equal(t, before, l.Bets())
		})
	}
}

func TestPassLineOddsLimit(t *testing.T) {
	l := NewLedger()
	_, err := l.Place(comeOut(), PassLine, 10, 1000, 0, 0)
	require.NoError(t, err)

	// 6 allows five times the line bet.
	_, err = l.Place(onPoint(6), PassLineOdds, 40, 1000, 0, 0)
	require.NoError(t, err)
	_, err = l.Place(onPoint(6), PassLineOdds, 10, 1000, 0, 0)
	require.NoError(t, err)
	_, err = l.Place(onPoint(6), PassLineOdds, 1, 1000, 0, 0)
	assert.ErrorIs(t, err, ErrOddsLimit)

	bet, ok := l.Find(PassLineOdds, 0)
	require.True(t, ok)
	assert.Equal(t, int64(50), bet.Amount)
}

func TestComeBetsMerge(t *testing.T) {
	l := NewLedger()
	_, err := l.Place(onPoint(8), Come, 10, 1000, 1, 2)
	require.NoError(t, err)
	_, err = l.Place(onPoint(8), Come, 15, 1000, 3, 4)
	require.NoError(t, err)

	require.Equal(t, 1, l.Len())
	bet := l.Bets()[0]
	assert.Equal(t, int64(25), bet.Amount)
	assert.Equal(t, 3.0, bet.X)
}

func TestComeOddsRequireTravelledCome(t *testing.T) {
	l := &Ledger{bets: []Bet{{Area: Come, Amount: 10, ComePoint: 5}}}
	_, err := l.Place(onPoint(8), ComeOdds(5), 40, 1000, 0, 0)
	require.NoError(t, err)
	_, err = l.Place(onPoint(8), ComeOdds(5), 1, 1000, 0, 0)
	assert.ErrorIs(t, err, ErrOddsLimit)
	_, err = l.Place(onPoint(8), ComeOdds(9), 10, 1000, 0, 0)
	assert.ErrorIs(t, err, ErrNoComeBet)
}

func TestSmallRequiresEmptyTracker(t *testing.T) {
	l := NewLedger()
	st := comeOut()
	st.Round.SmallHit = numberSet(3)
	_, err := l.Place(st, Small, 5, 1000, 0, 0)
	assert.ErrorIs(t, err, ErrTrackingStarted)

	_, err = l.Place(st, Tall, 5, 1000, 0, 0)
	require.NoError(t, err)
	st.Round.TallHit = numberSet(9)
	_, err = l.Remove(st, Tall, 5)
	assert.ErrorIs(t, err, ErrBetLocked)
}

func TestRemoveIsIdempotent(t *testing.T) {
	l := NewLedger()
	_, err := l.Place(comeOut(), Field, 10, 1000, 0, 0)
	require.NoError(t, err)

	refund, err := l.Remove(comeOut(), Field, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), refund)

	refund, err = l.Remove(comeOut(), Field, 10)
	require.NoError(t, err)
	assert.Zero(t, refund)
	assert.Zero(t, l.Len())

	refund, err = l.Remove(comeOut(), Field, 0)
	require.NoError(t, err)
	assert.Zero(t, refund)
}

func TestRemoveCapsAtStake(t *testing.T) {
	l := NewLedger()
	_, err := l.Place(comeOut(), Place(6), 12, 1000, 0, 0)
	require.NoError(t, err)

	refund, err := l.Remove(comeOut(), Place(6), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), refund)
	refund, err = l.Remove(comeOut(), Place(6), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(7), refund)
	assert.Zero(t, l.Len())
}

func TestRemoveLockedBets(t *testing.T) {
	l := &Ledger{bets: []Bet{
		{Area: PassLine, Amount: 10},
		{Area: Come, Amount: 10, ComePoint: 4},
	}}
	_, err := l.Remove(onPoint(6), PassLine, 10)
	assert.ErrorIs(t, err, ErrBetLocked)
	_, err = l.Remove(onPoint(6), Come, 10)
	assert.ErrorIs(t, err, ErrBetLocked)
	_, err = l.Remove(Status{Round: NewRoundState(), BettingLocked: true}, PassLine, 10)
	assert.ErrorIs(t, err, ErrBettingLocked)
	assert.Equal(t, 2, l.Len())
}

func TestBuyBetRoundTrip(t *testing.T) {
	l := NewLedger()
	debit, err := l.Place(comeOut(), Buy(4), 100, 1000, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(105), debit)

	refund, err := l.Remove(comeOut(), Buy(4), 100)
	require.NoError(t, err)
	assert.Equal(t, debit, refund)
	assert.Zero(t, l.Len())
}

func TestBuyPartialRemovalRefundsCommission(t *testing.T) {
	l := NewLedger()
	debit, err := l.Place(comeOut(), Buy(10), 40, 1000, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(42), debit)

	refund, err := l.Remove(comeOut(), Buy(10), 20)
	require.NoError(t, err)
	assert.Equal(t, int64(21), refund)

	refund, err = l.Remove(comeOut(), Buy(10), 20)
	require.NoError(t, err)
	assert.Equal(t, int64(21), refund)
}

func TestWithdrawForfeitsContractBets(t *testing.T) {
	l := &Ledger{bets: []Bet{
		{Area: PassLine, Amount: 10},
		{Area: PassLineOdds, Amount: 20},
		{Area: Come, Amount: 5, ComePoint: 9},
		{Area: Buy(4), Amount: 20, Commission: 1},
	}}
	refund, forfeited := l.Withdraw(onPoint(6).Round)
	assert.Equal(t, int64(41), refund)
	assert.Equal(t, int64(15), forfeited)
	assert.Zero(t, l.Len())
}

// TestLedgerConservationProperty checks that balance plus everything held by
// the ledger is constant over any sequence of placements and removals.
func TestLedgerConservationProperty(t *testing.T) {
	areas := []Area{PassLine, Field, Any7, Horn, Place(6), Buy(4), Buy(9), Hard(8), Small, All}
	rapid.Check(t, func(t *rapid.T) {
		l := NewLedger()
		balance := rapid.Int64Range(0, 5000).Draw(t, "balance")
		total := balance
		st := comeOut()

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			area := rapid.SampledFrom(areas).Draw(t, "area")
			amount := rapid.Int64Range(-5, 300).Draw(t, "amount")
			if rapid.Bool().Draw(t, "place") {
				debit, err := l.Place(st, area, amount, balance, 0, 0)
				if err == nil && debit <= 0 {
					t.Fatalf("successful placement must debit, got %d", debit)
				}
				balance -= debit
			} else {
				refund, err := l.Remove(st, area, amount)
				if err != nil {
					t.Fatalf("unexpected removal error: %v", err)
				}
				balance += refund
			}
			if balance < 0 {
				t.Fatalf("balance went negative: %d", balance)
			}
			if balance+l.Held() != total {
				t.Fatalf("conservation violated: balance %d held %d total %d", balance, l.Held(), total)
			}
		}
	})
}
