package craps

import (
	"fmt"
	"time"
)

// maxRetainedRolls bounds the rolls kept in memory. Aggregate stats cover
// every roll ever appended.
const maxRetainedRolls = 1000

// Roll is one recorded throw. Phase and Point are the state the roll was
// thrown in.
type Roll struct {
	Number      int64     `json:"number"`
	Dice1       int       `json:"dice1"`
	Dice2       int       `json:"dice2"`
	Total       int       `json:"total"`
	Timestamp   time.Time `json:"timestamp"`
	Phase       Phase     `json:"phase"`
	Point       int       `json:"point"`
	WasSevenOut bool      `json:"was_seven_out"`
	PointMade   bool      `json:"point_made"`
}

// NewRoll records an outcome at the given time.
func NewRoll(number int64, out Outcome, at time.Time) Roll {
	return Roll{
		Number:      number,
		Dice1:       out.Dice[0],
		Dice2:       out.Dice[1],
		Total:       out.Total,
		Timestamp:   at,
		Phase:       out.PhaseBefore,
		Point:       out.PointBefore,
		WasSevenOut: out.SevenOut,
		PointMade:   out.PointMade,
	}
}

// Label is a short human readable form, e.g. "#12 3+4".
func (r Roll) Label() string {
	return fmt.Sprintf("#%d %d+%d", r.Number, r.Dice1, r.Dice2)
}

// HistoryStats summarizes every roll of a table.
type HistoryStats struct {
	Rolls      int64     `json:"rolls"`
	SevenOuts  int64     `json:"seven_outs"`
	PointsMade int64     `json:"points_made"`
	Naturals   int64     `json:"naturals"`
	Totals     [13]int64 `json:"totals"` // index is the dice total
	LongestRun int64     `json:"longest_run"`
}

// History is an append-only roll log.
type History struct {
	rolls      []Roll
	stats      HistoryStats
	currentRun int64
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Append records a roll.
func (h *History) Append(r Roll) {
	h.rolls = append(h.rolls, r)
	if len(h.rolls) > maxRetainedRolls {
		h.rolls = append(h.rolls[:0], h.rolls[len(h.rolls)-maxRetainedRolls:]...)
	}

	h.stats.Rolls++
	if r.Total >= 2 && r.Total <= 12 {
		h.stats.Totals[r.Total]++
	}
	if r.PointMade {
		h.stats.PointsMade++
	}
	if r.Phase == PhaseComeOut && r.Total == 7 {
		h.stats.Naturals++
	}

	// A run is the number of rolls by one shooter hand, ended by a seven-out.
	h.currentRun++
	if h.currentRun > h.stats.LongestRun {
		h.stats.LongestRun = h.currentRun
	}
	if r.WasSevenOut {
		h.stats.SevenOuts++
		h.currentRun = 0
	}
}

// Recent returns up to limit of the latest rolls, newest first.
func (h *History) Recent(limit int) []Roll {
	if limit <= 0 || limit > len(h.rolls) {
		limit = len(h.rolls)
	}
	out := make([]Roll, 0, limit)
	for i := len(h.rolls) - 1; i >= len(h.rolls)-limit; i-- {
		out = append(out, h.rolls[i])
	}
	return out
}

// Len returns the number of retained rolls.
func (h *History) Len() int {
	return len(h.rolls)
}

// Stats returns aggregate statistics.
func (h *History) Stats() HistoryStats {
	return h.stats
}
