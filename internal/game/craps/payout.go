package craps

// Ratio is a payout ratio, winnings = stake * Num / Den.
type Ratio struct {
	Num int64
	Den int64
}

// Win returns the winnings for stake, rounded down.
func (r Ratio) Win(stake int64) int64 {
	if r.Den == 0 {
		return 0
	}
	return stake * r.Num / r.Den
}

// TrueOdds returns the fair odds of n being rolled before a 7.
func TrueOdds(n int) Ratio {
	switch n {
	case 2, 12:
		return Ratio{6, 1}
	case 3, 11:
		return Ratio{3, 1}
	case 4, 10:
		return Ratio{2, 1}
	case 5, 9:
		return Ratio{3, 2}
	case 6, 8:
		return Ratio{6, 5}
	default:
		return Ratio{}
	}
}

// PlaceOdds returns the house payout for a place bet on n.
func PlaceOdds(n int) Ratio {
	switch n {
	case 6, 8:
		return Ratio{7, 6}
	case 5, 9:
		return Ratio{7, 5}
	case 4, 10:
		return Ratio{9, 5}
	case 2, 12:
		return Ratio{11, 2}
	case 3, 11:
		return Ratio{11, 4}
	default:
		return Ratio{}
	}
}

// OddsMultiplier returns the maximum odds allowed behind a line or come bet
// on n, as a multiple of the flat bet.
func OddsMultiplier(n int) int64 {
	switch n {
	case 4, 10:
		return 3
	case 5, 9:
		return 4
	case 6, 8:
		return 5
	default:
		return 3
	}
}

// BuyCommission returns the 5% commission charged on a buy bet, rounded up.
func BuyCommission(stake int64) int64 {
	if stake <= 0 {
		return 0
	}
	return (stake*5 + 99) / 100
}

// FieldMultiplier returns the gross multiplier for a field bet on total,
// or 0 when the field loses.
func FieldMultiplier(total int) int64 {
	switch total {
	case 2:
		return 3
	case 12:
		return 4
	case 3, 4, 9, 10, 11:
		return 2
	default:
		return 0
	}
}

// Gross multipliers for bets that pay a fixed amount including the stake.
const (
	any7Gross      int64 = 5
	anyCrapsGross  int64 = 8
	hardEasyGross  int64 = 8  // hard 4 and hard 10, 7:1
	hardSixGross   int64 = 10 // hard 6 and hard 8, 9:1
	smallTallGross int64 = 34
	allGross       int64 = 176
)

var (
	hornHighRatio = Ratio{27, 4} // 2 and 12
	hornLowRatio  = Ratio{3, 1}  // 3 and 11
)

// HardGross returns the gross multiplier for a hard way bet on n.
func HardGross(n int) int64 {
	if n == 6 || n == 8 {
		return hardSixGross
	}
	return hardEasyGross
}
