package craps

import "errors"

// Bet placement and removal errors.
var (
	ErrInvalidAmount       = errors.New("bet amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrResolving           = errors.New("roll is being resolved")
	ErrBettingLocked       = errors.New("betting is locked")
	ErrWrongPhase          = errors.New("bet not allowed in this phase")
	ErrNoLineBet           = errors.New("odds require a pass line bet")
	ErrNoComeBet           = errors.New("odds require a come bet on that number")
	ErrOddsLimit           = errors.New("odds exceed table limit")
	ErrTrackingStarted     = errors.New("tracking already started for this bet")
	ErrBetLocked           = errors.New("bet cannot be removed")
)

// Bet is a stake on one area. ComePoint is set once a come bet travelled to
// a number. Commission is the buy commission paid and not yet refunded.
// X and Y are chip coordinates supplied by the client.
type Bet struct {
	Area       Area    `json:"area"`
	Amount     int64   `json:"amount"`
	ComePoint  int     `json:"come_point,omitempty"`
	Commission int64   `json:"commission,omitempty"`
	X          float64 `json:"x,omitempty"`
	Y          float64 `json:"y,omitempty"`
}

func (b Bet) matches(area Area, comePoint int) bool {
	return b.Area == area && b.ComePoint == comePoint
}

// Status is the table condition that gates betting.
type Status struct {
	Round         RoundState
	BettingLocked bool
	Resolving     bool
}

func (s Status) check() error {
	if s.Resolving {
		return ErrResolving
	}
	if s.BettingLocked {
		return ErrBettingLocked
	}
	return nil
}

// Ledger holds one player's bets. It is not safe for concurrent use; the
// owning table serializes access.
type Ledger struct {
	bets []Bet
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Bets returns a copy of the current bets.
func (l *Ledger) Bets() []Bet {
	out := make([]Bet, len(l.bets))
	copy(out, l.bets)
	return out
}

// Len returns the number of bets on the layout.
func (l *Ledger) Len() int {
	return len(l.bets)
}

// Staked returns the sum of all stakes on the layout.
func (l *Ledger) Staked() int64 {
	var total int64
	for _, b := range l.bets {
		total += b.Amount
	}
	return total
}

// Held returns everything the ledger holds for the player: stakes plus
// unrefunded buy commission.
func (l *Ledger) Held() int64 {
	var total int64
	for _, b := range l.bets {
		total += b.Amount + b.Commission
	}
	return total
}

// Find returns the bet on area with the given come point.
func (l *Ledger) Find(area Area, comePoint int) (Bet, bool) {
	if i := l.index(area, comePoint); i >= 0 {
		return l.bets[i], true
	}
	return Bet{}, false
}

func (l *Ledger) index(area Area, comePoint int) int {
	for i, b := range l.bets {
		if b.matches(area, comePoint) {
			return i
		}
	}
	return -1
}

func (l *Ledger) amountOn(area Area, comePoint int) int64 {
	if b, ok := l.Find(area, comePoint); ok {
		return b.Amount
	}
	return 0
}

// Place validates and records a bet. It returns the amount to debit from
// the player's balance, which includes the commission for buy bets. On error
// the ledger is unchanged.
func (l *Ledger) Place(st Status, area Area, amount, balance int64, x, y float64) (int64, error) {
	if err := st.check(); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if !area.Valid() {
		return 0, ErrInvalidArea
	}
	if err := l.allowed(st.Round, area, amount); err != nil {
		return 0, err
	}

	var commission int64
	if area.Kind == KindBuy {
		commission = BuyCommission(amount)
	}
	debit := amount + commission
	if debit > balance {
		return 0, ErrInsufficientBalance
	}

	// Chips on an occupied area stack onto the existing bet; for come this
	// is the single staged bet.
	if i := l.index(area, 0); i >= 0 {
		l.bets[i].Amount += amount
		l.bets[i].Commission += commission
		l.bets[i].X, l.bets[i].Y = x, y
	} else {
		l.bets = append(l.bets, Bet{Area: area, Amount: amount, Commission: commission, X: x, Y: y})
	}
	return debit, nil
}

func (l *Ledger) allowed(round RoundState, area Area, amount int64) error {
	switch area.Kind {
	case KindPassLine:
		if round.Phase != PhaseComeOut {
			return ErrWrongPhase
		}
	case KindPassLineOdds:
		if round.Phase != PhasePoint {
			return ErrWrongPhase
		}
		line := l.amountOn(PassLine, 0)
		if line == 0 {
			return ErrNoLineBet
		}
		if l.amountOn(area, 0)+amount > line*OddsMultiplier(round.Point) {
			return ErrOddsLimit
		}
	case KindCome:
		if round.Phase != PhasePoint {
			return ErrWrongPhase
		}
	case KindComeOdds:
		come := l.amountOn(Come, area.Number)
		if come == 0 {
			return ErrNoComeBet
		}
		if l.amountOn(area, 0)+amount > come*OddsMultiplier(area.Number) {
			return ErrOddsLimit
		}
	case KindSmall, KindTall, KindAll:
		if round.Phase != PhaseComeOut {
			return ErrWrongPhase
		}
		if !round.TrackerEmpty(area.Kind) {
			return ErrTrackingStarted
		}
	}
	return nil
}

// Remove takes chips off area and returns the refund to credit. The amount
// is capped at what is on the layout. Removing from an empty area, or a
// non-positive amount, is a no-op.
func (l *Ledger) Remove(st Status, area Area, amount int64) (int64, error) {
	if err := st.check(); err != nil {
		return 0, err
	}
	if !area.Valid() {
		return 0, ErrInvalidArea
	}
	if amount <= 0 {
		return 0, nil
	}

	i := l.index(area, 0)
	if i < 0 {
		if area.Kind == KindCome && l.hasTravelledCome() {
			return 0, ErrBetLocked
		}
		return 0, nil
	}
	if locked(st.Round, area) {
		return 0, ErrBetLocked
	}

	bet := &l.bets[i]
	removed := min(amount, bet.Amount)
	commissionBack := bet.Commission
	if removed < bet.Amount {
		commissionBack = bet.Commission * removed / bet.Amount
	}
	bet.Amount -= removed
	bet.Commission -= commissionBack
	if bet.Amount == 0 {
		l.bets = append(l.bets[:i], l.bets[i+1:]...)
	}
	return removed + commissionBack, nil
}

func locked(round RoundState, area Area) bool {
	switch area.Kind {
	case KindPassLine:
		return round.Phase == PhasePoint
	case KindSmall, KindTall, KindAll:
		return round.Phase == PhasePoint || !round.TrackerEmpty(area.Kind)
	default:
		return false
	}
}

func (l *Ledger) hasTravelledCome() bool {
	for _, b := range l.bets {
		if b.Area.Kind == KindCome && b.ComePoint != 0 {
			return true
		}
	}
	return false
}

// Withdraw empties the ledger for a leaving player. Bets that could be taken
// down are refunded, contract bets are forfeited.
func (l *Ledger) Withdraw(round RoundState) (refund, forfeited int64) {
	for _, b := range l.bets {
		if b.ComePoint != 0 || locked(round, b.Area) {
			forfeited += b.Amount + b.Commission
			continue
		}
		refund += b.Amount + b.Commission
	}
	l.bets = nil
	return refund, forfeited
}

// Settle resolves the ledger against a roll and keeps the surviving bets.
func (l *Ledger) Settle(out Outcome) Settlement {
	s := Resolve(out, l.bets)
	l.bets = s.Remaining
	return s
}
