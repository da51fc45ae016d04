package craps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"craps-server/internal/game"
)

// table is a minimal single-player driver over the round and the ledger.
type table struct {
	round   RoundState
	ledger  *Ledger
	balance int64
}

func newTable(balance int64) *table {
	return &table{round: NewRoundState(), ledger: NewLedger(), balance: balance}
}

func (tb *table) place(t *testing.T, area Area, amount int64) {
	t.Helper()
	debit, err := tb.ledger.Place(Status{Round: tb.round}, area, amount, tb.balance, 0, 0)
	require.NoError(t, err)
	tb.balance -= debit
}

func (tb *table) roll(t *testing.T, d game.Dice) Settlement {
	t.Helper()
	next, out, err := Advance(tb.round, d)
	require.NoError(t, err)
	s := tb.ledger.Settle(out)
	tb.round = next
	tb.balance += s.Payout
	return s
}

func TestPassLineNatural(t *testing.T) {
	tb := newTable(100)
	tb.place(t, PassLine, 10)

	s := tb.roll(t, game.Dice{3, 4})
	assert.Equal(t, int64(20), s.Payout)
	assert.Equal(t, int64(10), s.Net())
	assert.Equal(t, int64(110), tb.balance)
	assert.Equal(t, PhaseComeOut, tb.round.Phase)
	assert.Zero(t, tb.ledger.Len())
}

func TestPassLineEstablishesPoint(t *testing.T) {
	tb := newTable(100)
	tb.place(t, PassLine, 10)

	s := tb.roll(t, game.Dice{2, 3})
	assert.Zero(t, s.Payout)
	assert.Equal(t, 5, tb.round.Point)
	assert.Equal(t, PhasePoint, tb.round.Phase)
	_, ok := tb.ledger.Find(PassLine, 0)
	assert.True(t, ok)
}

func TestPointMadePaysOdds(t *testing.T) {
	tb := newTable(1000)
	tb.place(t, PassLine, 10)
	tb.roll(t, game.Dice{4, 6})
	tb.place(t, PassLineOdds, 30)

	s := tb.roll(t, game.Dice{5, 5})
	// 20 for the line, 30 + 60 for the odds.
	assert.Equal(t, int64(110), s.Payout)
	assert.Equal(t, int64(70), s.Net())
	assert.Equal(t, PhaseComeOut, tb.round.Phase)
	assert.Zero(t, tb.ledger.Len())
}

func TestSevenOutClearsBets(t *testing.T) {
	tb := newTable(1000)
	tb.place(t, PassLine, 10)
	tb.roll(t, game.Dice{3, 3})
	tb.place(t, PassLineOdds, 20)
	tb.place(t, Place(8), 12)
	tb.place(t, Buy(4), 20)
	tb.place(t, Come, 10)
	tb.roll(t, game.Dice{4, 5}) // come travels to 9
	tb.place(t, ComeOdds(9), 10)
	tb.place(t, Come, 5)

	s := tb.roll(t, game.Dice{5, 2})
	assert.Equal(t, int64(10), s.Payout, "only the staged come wins on the seven")
	assert.Zero(t, tb.ledger.Len())
	assert.Equal(t, PhaseComeOut, tb.round.Phase)
	assert.Zero(t, tb.round.Point)
	assert.Equal(t, int64(10+20+12+20+1+10+10), s.Lost)
}

func TestComeBetTravelsAndWins(t *testing.T) {
	tb := newTable(1000)
	tb.place(t, PassLine, 10)
	tb.roll(t, game.Dice{2, 2})
	tb.place(t, Come, 10)

	s := tb.roll(t, game.Dice{3, 3})
	require.Len(t, s.Outcomes, 2)
	bet, ok := tb.ledger.Find(Come, 6)
	require.True(t, ok)
	assert.Equal(t, int64(10), bet.Amount)

	tb.place(t, Come, 5)
	tb.roll(t, game.Dice{1, 5}) // staged come travels onto the same 6 and wins the old one
	bet, ok = tb.ledger.Find(Come, 6)
	require.True(t, ok)
	assert.Equal(t, int64(5), bet.Amount)
}

func TestComeTravelOntoWinningNumber(t *testing.T) {
	bets := []Bet{
		{Area: Come, Amount: 10},
		{Area: Come, Amount: 20, ComePoint: 5},
		{Area: Come, Amount: 3, ComePoint: 4},
	}
	out := Outcome{Dice: game.Dice{2, 2}, Total: 4, PhaseBefore: PhasePoint, PointBefore: 8}
	s := Resolve(out, bets)

	assert.Equal(t, int64(6), s.Payout, "the come bet already on 4 wins")
	require.Len(t, s.Remaining, 2)
	assert.Equal(t, Bet{Area: Come, Amount: 20, ComePoint: 5}, s.Remaining[0])
	assert.Equal(t, Bet{Area: Come, Amount: 10, ComePoint: 4}, s.Remaining[1])
	assert.Equal(t, ResultTravel, s.Outcomes[0].Result)
}

func TestPlaceBetsOffOnComeOut(t *testing.T) {
	tb := newTable(1000)
	tb.place(t, Place(6), 12)
	s := tb.roll(t, game.Dice{3, 3})
	assert.Zero(t, s.Payout, "place bets do not work on the come-out")
	assert.Equal(t, 1, tb.ledger.Len())

	s = tb.roll(t, game.Dice{2, 4})
	assert.Equal(t, int64(12+14), s.Payout)
	assert.Zero(t, tb.ledger.Len())
}

func TestBuyBetPaysTrueOdds(t *testing.T) {
	tb := newTable(1000)
	tb.place(t, PassLine, 10)
	tb.roll(t, game.Dice{4, 4})
	tb.place(t, Buy(4), 20)
	assert.Equal(t, int64(1000-10-21), tb.balance)

	s := tb.roll(t, game.Dice{1, 3})
	assert.Equal(t, int64(60), s.Payout)
}

func TestOneRollBets(t *testing.T) {
	point := Outcome{PhaseBefore: PhasePoint, PointBefore: 8}
	tests := []struct {
		name string
		bet  Area
		dice game.Dice
		want int64
	}{
		{"field 2", Field, game.Dice{1, 1}, 30},
		{"field 12", Field, game.Dice{6, 6}, 40},
		{"field 9", Field, game.Dice{4, 5}, 20},
		{"field 7 loses", Field, game.Dice{3, 4}, 0},
		{"field 8 loses", Field, game.Dice{4, 4}, 0},
		{"any seven", Any7, game.Dice{1, 6}, 50},
		{"any craps 3", AnyCraps, game.Dice{1, 2}, 80},
		{"any craps 11 loses", AnyCraps, game.Dice{5, 6}, 0},
		{"horn 12", Horn, game.Dice{6, 6}, 10 + 67},
		{"horn 3", Horn, game.Dice{1, 2}, 40},
		{"horn 6 loses", Horn, game.Dice{3, 3}, 0},
		{"hard 8", Hard(8), game.Dice{4, 4}, 100},
		{"easy 8 loses", Hard(8), game.Dice{5, 3}, 0},
		{"hard 4", Hard(4), game.Dice{2, 2}, 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := point
			out.Dice, out.Total = tt.dice, tt.dice.Total()
			out.SevenOut = out.Total == 7
			s := Resolve(out, []Bet{{Area: tt.bet, Amount: 10}})
			assert.Equal(t, tt.want, s.Payout)
			assert.Empty(t, s.Remaining, "one-roll bets always resolve")
		})
	}
}

func TestSmallPaysOnCompletion(t *testing.T) {
	tb := newTable(100)
	tb.place(t, Small, 5)

	var s Settlement
	for _, d := range []game.Dice{{1, 1}, {1, 2}, {2, 2}, {2, 3}, {3, 3}, {1, 1}} {
		s = tb.roll(t, d)
	}
	assert.Equal(t, int64(170), s.Payout)
	assert.Zero(t, tb.ledger.Len())
	assert.Zero(t, tb.round.SmallHit)
}

func TestAllLosesOnSeven(t *testing.T) {
	tb := newTable(100)
	tb.place(t, All, 5)
	tb.roll(t, game.Dice{1, 1})
	s := tb.roll(t, game.Dice{1, 1})
	assert.Equal(t, 1, tb.ledger.Len(), "repeat totals keep the bet working")
	s = tb.roll(t, game.Dice{1, 6})
	assert.Zero(t, s.Payout)
	assert.Equal(t, int64(5), s.Lost)
	assert.Zero(t, tb.ledger.Len())
}

func TestAllCompletionFlagsJackpot(t *testing.T) {
	bets := []Bet{{Area: All, Amount: 2}}
	s := Resolve(Outcome{Total: 12, Dice: game.Dice{6, 6}, AllDone: true, PhaseBefore: PhasePoint, PointBefore: 4}, bets)
	assert.True(t, s.AllWon)
	assert.Equal(t, int64(352), s.Payout)
}

// TestNetProperty checks that net equals payouts minus stakes of resolved
// bets and that nothing is paid twice.
func TestNetProperty(t *testing.T) {
	areas := []Area{PassLine, Field, Any7, AnyCraps, Horn, Hard(6), Place(5), Buy(10), Small, Tall, All}
	rapid.Check(t, func(t *rapid.T) {
		round := NewRoundState()
		ledger := NewLedger()
		balance := int64(100000)

		for i := 0; i < 40; i++ {
			area := rapid.SampledFrom(areas).Draw(t, "area")
			amount := rapid.Int64Range(1, 50).Draw(t, "amount")
			if debit, err := ledger.Place(Status{Round: round}, area, amount, balance, 0, 0); err == nil {
				balance -= debit
			}

			d := game.Dice{rapid.IntRange(1, 6).Draw(t, "d1"), rapid.IntRange(1, 6).Draw(t, "d2")}
			before := ledger.Staked()
			next, out, err := Advance(round, d)
			if err != nil {
				t.Fatal(err)
			}
			s := ledger.Settle(out)
			round = next
			balance += s.Payout

			if s.Payout-s.Resolved != s.Net() {
				t.Fatalf("net mismatch")
			}
			if before-s.Resolved != ledger.Staked() {
				t.Fatalf("stakes: before %d resolved %d after %d", before, s.Resolved, ledger.Staked())
			}
			if out.SevenOut && ledger.Len() != 0 {
				t.Fatalf("seven-out left %d bets", ledger.Len())
			}
		}
	})
}
