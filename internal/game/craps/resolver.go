package craps

// Result is the settlement of one bet.
type Result string

const (
	ResultWin     Result = "win"
	ResultLose    Result = "lose"
	ResultTravel  Result = "travel"
	ResultPending Result = "pending"
)

// BetOutcome is what happened to one bet on a roll. Payout is gross: it
// includes the returned stake for winning bets.
type BetOutcome struct {
	Bet    Bet    `json:"bet"`
	Result Result `json:"result"`
	Payout int64  `json:"payout"`
}

// Settlement is the result of resolving a ledger against one roll.
type Settlement struct {
	Outcomes  []BetOutcome `json:"outcomes"`
	Remaining []Bet        `json:"-"`
	Payout    int64        `json:"payout"` // gross credited to the player
	Resolved  int64        `json:"resolved"`
	Lost      int64        `json:"lost"`
	AllWon    bool         `json:"all_won"`
}

// Net returns payouts minus the stakes of bets resolved on this roll.
func (s Settlement) Net() int64 {
	return s.Payout - s.Resolved
}

// Resolve settles bets against the outcome of a roll. It does not modify
// bets; surviving bets, including travelled come bets, are in Remaining.
func Resolve(out Outcome, bets []Bet) Settlement {
	var s Settlement
	remaining := make([]Bet, 0, len(bets))
	var travelled []Bet

	for _, b := range bets {
		result, payout := resolveBet(out, b)
		s.Outcomes = append(s.Outcomes, BetOutcome{Bet: b, Result: result, Payout: payout})

		switch result {
		case ResultWin:
			s.Payout += payout
			s.Resolved += b.Amount
			if b.Area.Kind == KindAll {
				s.AllWon = true
			}
		case ResultLose:
			s.Resolved += b.Amount
			s.Lost += b.Amount + b.Commission
		case ResultTravel:
			moved := b
			moved.ComePoint = out.Total
			travelled = append(travelled, moved)
		default:
			remaining = append(remaining, b)
		}
	}

	// A come bet on the travelled number has just won, so travelling bets
	// never land on an occupied number.
	remaining = append(remaining, travelled...)
	s.Remaining = remaining
	return s
}

// resolveBet returns the result and gross payout for one bet.
func resolveBet(out Outcome, b Bet) (Result, int64) {
	t := out.Total
	stake := b.Amount

	switch b.Area.Kind {
	case KindField:
		if m := FieldMultiplier(t); m > 0 {
			return ResultWin, stake * m
		}
		return ResultLose, 0
	case KindAny7:
		if t == 7 {
			return ResultWin, stake * any7Gross
		}
		return ResultLose, 0
	case KindAnyCraps:
		if t == 2 || t == 3 || t == 12 {
			return ResultWin, stake * anyCrapsGross
		}
		return ResultLose, 0
	case KindHorn:
		switch t {
		case 2, 12:
			return ResultWin, stake + hornHighRatio.Win(stake)
		case 3, 11:
			return ResultWin, stake + hornLowRatio.Win(stake)
		}
		return ResultLose, 0
	case KindHard:
		if out.Dice.IsPair() && t == b.Area.Number {
			return ResultWin, stake * HardGross(t)
		}
		return ResultLose, 0
	}

	if out.SevenOut {
		// Only a staged come bet survives a seven-out, as a winner.
		if b.Area.Kind == KindCome && b.ComePoint == 0 {
			return ResultWin, stake * 2
		}
		return ResultLose, 0
	}

	switch b.Area.Kind {
	case KindPassLine:
		if out.Natural || out.PointMade {
			return ResultWin, stake * 2
		}
	case KindPassLineOdds:
		if out.PointMade {
			return ResultWin, stake + TrueOdds(out.PointBefore).Win(stake)
		}
	case KindCome:
		if b.ComePoint == 0 {
			if t == 7 {
				return ResultWin, stake * 2
			}
			return ResultTravel, 0
		}
		switch t {
		case b.ComePoint:
			return ResultWin, stake * 2
		case 7:
			return ResultLose, 0
		}
	case KindComeOdds:
		switch t {
		case b.Area.Number:
			return ResultWin, stake + TrueOdds(t).Win(stake)
		case 7:
			return ResultLose, 0
		}
	case KindPlace, KindBuy:
		// Number bets are off on the come-out roll.
		if out.PhaseBefore != PhasePoint {
			return ResultPending, 0
		}
		if t == b.Area.Number {
			ratio := PlaceOdds(t)
			if b.Area.Kind == KindBuy {
				ratio = TrueOdds(t)
			}
			return ResultWin, stake + ratio.Win(stake)
		}
	case KindSmall:
		if out.SmallDone {
			return ResultWin, stake * smallTallGross
		}
		if t == 7 {
			return ResultLose, 0
		}
	case KindTall:
		if out.TallDone {
			return ResultWin, stake * smallTallGross
		}
		if t == 7 {
			return ResultLose, 0
		}
	case KindAll:
		if out.AllDone {
			return ResultWin, stake * allGross
		}
		if t == 7 {
			return ResultLose, 0
		}
	}
	return ResultPending, 0
}
