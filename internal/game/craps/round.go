package craps

import (
	"encoding/json"
	"errors"
	"math/bits"
	"sort"

	"craps-server/internal/game"
)

// Phase is the stage of a betting round.
type Phase string

const (
	// PhaseComeOut is the first roll of a round, no point is set.
	PhaseComeOut Phase = "comeOut"
	// PhasePoint means a point is established and the puck is on.
	PhasePoint Phase = "point"
)

// ErrInvalidDice is returned when a die face is outside 1-6.
var ErrInvalidDice = errors.New("invalid dice")

// NumberSet is a set of dice totals from 2 to 12.
type NumberSet uint16

var (
	smallSet = numberSet(2, 3, 4, 5, 6)
	tallSet  = numberSet(8, 9, 10, 11, 12)
	allSet   = smallSet | tallSet
)

func numberSet(ns ...int) NumberSet {
	var s NumberSet
	for _, n := range ns {
		s = s.With(n)
	}
	return s
}

// With returns the set with n added.
func (s NumberSet) With(n int) NumberSet {
	return s | 1<<uint(n)
}

// Has reports whether n is in the set.
func (s NumberSet) Has(n int) bool {
	return s&(1<<uint(n)) != 0
}

// Len returns the number of totals in the set.
func (s NumberSet) Len() int {
	return bits.OnesCount16(uint16(s))
}

// Numbers returns the totals in ascending order.
func (s NumberSet) Numbers() []int {
	out := make([]int, 0, s.Len())
	for n := 2; n <= 12; n++ {
		if s.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

// MarshalJSON encodes the set as a sorted list of totals.
func (s NumberSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Numbers())
}

// UnmarshalJSON decodes a list of totals.
func (s *NumberSet) UnmarshalJSON(b []byte) error {
	var ns []int
	if err := json.Unmarshal(b, &ns); err != nil {
		return err
	}
	sort.Ints(ns)
	*s = numberSet(ns...)
	return nil
}

// RoundState is the shared state of the table between rolls.
// Point is non-zero exactly when Phase is PhasePoint.
type RoundState struct {
	Phase    Phase     `json:"phase"`
	Point    int       `json:"point"`
	SmallHit NumberSet `json:"small_hit"`
	TallHit  NumberSet `json:"tall_hit"`
	AllHit   NumberSet `json:"all_hit"`
}

// NewRoundState returns the state of a fresh table.
func NewRoundState() RoundState {
	return RoundState{Phase: PhaseComeOut}
}

// PuckOn reports whether the puck marks a point.
func (s RoundState) PuckOn() bool {
	return s.Phase == PhasePoint
}

// TrackerEmpty reports whether no total has been recorded for the
// Small, Tall or All bet identified by kind.
func (s RoundState) TrackerEmpty(kind Kind) bool {
	switch kind {
	case KindSmall:
		return s.SmallHit == 0
	case KindTall:
		return s.TallHit == 0
	case KindAll:
		return s.AllHit == 0
	default:
		return true
	}
}

// Outcome describes what a single roll did to the round. It is the input to
// payout resolution and is computed before any bet is touched.
type Outcome struct {
	Dice        game.Dice `json:"dice"`
	Total       int       `json:"total"`
	PhaseBefore Phase     `json:"phase_before"`
	PointBefore int       `json:"point_before"`

	Natural          bool `json:"natural"`           // 7 on the come-out
	PointEstablished bool `json:"point_established"` // come-out total became the point
	PointMade        bool `json:"point_made"`
	SevenOut         bool `json:"seven_out"`

	SmallDone bool `json:"small_done"`
	TallDone  bool `json:"tall_done"`
	AllDone   bool `json:"all_done"`
}

// Advance applies one roll to the round and returns the next state together
// with the outcome used to settle bets.
func Advance(s RoundState, d game.Dice) (RoundState, Outcome, error) {
	if !d.Valid() {
		return s, Outcome{}, ErrInvalidDice
	}

	total := d.Total()
	out := Outcome{
		Dice:        d,
		Total:       total,
		PhaseBefore: s.Phase,
		PointBefore: s.Point,
	}
	next := s

	switch s.Phase {
	case PhasePoint:
		switch total {
		case 7:
			out.SevenOut = true
			next.Phase, next.Point = PhaseComeOut, 0
		case s.Point:
			out.PointMade = true
			next.Phase, next.Point = PhaseComeOut, 0
		}
	default:
		if total == 7 {
			out.Natural = true
		} else {
			out.PointEstablished = true
			next.Phase, next.Point = PhasePoint, total
		}
	}

	// Any 7 wipes the Small/Tall/All trackers. Only point phase rolls are
	// recorded and a completed set starts over.
	if total == 7 {
		next.SmallHit, next.TallHit, next.AllHit = 0, 0, 0
		return next, out, nil
	}
	if s.Phase != PhasePoint {
		return next, out, nil
	}

	next.AllHit = next.AllHit.With(total)
	if smallSet.Has(total) {
		next.SmallHit = next.SmallHit.With(total)
	} else {
		next.TallHit = next.TallHit.With(total)
	}
	if next.SmallHit == smallSet {
		out.SmallDone = true
		next.SmallHit = 0
	}
	if next.TallHit == tallSet {
		out.TallDone = true
		next.TallHit = 0
	}
	if next.AllHit == allSet {
		out.AllDone = true
		next.AllHit = 0
	}
	return next, out, nil
}
