// Package game provides the dice sources shared by table games.
package game

import (
	"math/rand"
	"sync"
	"time"
)

// Dice is the result of throwing two six-sided dice.
type Dice [2]int

// Total returns the sum of both dice.
func (d Dice) Total() int {
	return d[0] + d[1]
}

// IsPair reports whether both dice show the same face.
func (d Dice) IsPair() bool {
	return d[0] == d[1]
}

// Valid checks that both faces are within 1-6.
func (d Dice) Valid() bool {
	return d[0] >= 1 && d[0] <= 6 && d[1] >= 1 && d[1] <= 6
}

// Roller produces dice throws. Implementations must be safe for concurrent use.
type Roller interface {
	Roll() Dice
}

// RandomRoller throws dice from a seeded pseudo-random source.
type RandomRoller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomRoller creates a roller seeded from the current time.
func NewRandomRoller() *RandomRoller {
	return &RandomRoller{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Roll generates two random dice values.
func (r *RandomRoller) Roll() Dice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Dice{r.rng.Intn(6) + 1, r.rng.Intn(6) + 1}
}

// ScriptedRoller replays a fixed sequence of throws, starting over once the
// sequence is exhausted. It is used by tests to drive deterministic rounds.
type ScriptedRoller struct {
	mu    sync.Mutex
	dice  []Dice
	index int
}

// NewScriptedRoller creates a roller that returns dice in order.
func NewScriptedRoller(dice ...Dice) *ScriptedRoller {
	return &ScriptedRoller{dice: dice}
}

// Roll returns the next scripted throw.
func (r *ScriptedRoller) Roll() Dice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.dice) == 0 {
		return Dice{1, 1}
	}
	d := r.dice[r.index%len(r.dice)]
	r.index++
	return d
}

// Push appends throws to the script.
func (r *ScriptedRoller) Push(dice ...Dice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dice = append(r.dice, dice...)
}
