// Package craps implements the craps betting round: the come-out/point state
// machine, the per-player bet ledger and payout resolution.
package craps

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies a betting area on the layout.
type Kind uint8

const (
	KindPassLine Kind = iota + 1
	KindPassLineOdds
	KindCome
	KindComeOdds
	KindPlace
	KindBuy
	KindField
	KindAny7
	KindAnyCraps
	KindHorn
	KindHard
	KindSmall
	KindTall
	KindAll
)

// Area is a betting area. Number is set only for come odds, place, buy and
// hard ways, which are one area per number.
type Area struct {
	Kind   Kind
	Number int
}

// Fixed areas.
var (
	PassLine     = Area{Kind: KindPassLine}
	PassLineOdds = Area{Kind: KindPassLineOdds}
	Come         = Area{Kind: KindCome}
	Field        = Area{Kind: KindField}
	Any7         = Area{Kind: KindAny7}
	AnyCraps     = Area{Kind: KindAnyCraps}
	Horn         = Area{Kind: KindHorn}
	Small        = Area{Kind: KindSmall}
	Tall         = Area{Kind: KindTall}
	All          = Area{Kind: KindAll}
)

// ComeOdds returns the odds area behind a come bet on n.
func ComeOdds(n int) Area { return Area{Kind: KindComeOdds, Number: n} }

// Place returns the place bet area on n.
func Place(n int) Area { return Area{Kind: KindPlace, Number: n} }

// Buy returns the buy bet area on n.
func Buy(n int) Area { return Area{Kind: KindBuy, Number: n} }

// Hard returns the hard way area on n.
func Hard(n int) Area { return Area{Kind: KindHard, Number: n} }

// ErrInvalidArea is returned for unknown or malformed area names.
var ErrInvalidArea = errors.New("invalid bet area")

var kindNames = map[Kind]string{
	KindPassLine:     "passLine",
	KindPassLineOdds: "passLineOdds",
	KindCome:         "come",
	KindComeOdds:     "comeOdds",
	KindPlace:        "place",
	KindBuy:          "buy",
	KindField:        "field",
	KindAny7:         "any7",
	KindAnyCraps:     "anyCraps",
	KindHorn:         "horn",
	KindHard:         "hard",
	KindSmall:        "small",
	KindTall:         "tall",
	KindAll:          "all",
}

// numbered kinds in the order they must be matched when parsing,
// longest prefix first so "comeOdds6" is not read as "come".
var numberedKinds = []Kind{KindComeOdds, KindPlace, KindBuy, KindHard}

// boxNumbers are the totals that can carry a point, come or place bet.
var boxNumbers = []int{2, 3, 4, 5, 6, 8, 9, 10, 11, 12}

// IsBoxNumber reports whether n can be a point, come point or place number.
func IsBoxNumber(n int) bool {
	return n >= 2 && n <= 12 && n != 7
}

// BoxNumbers returns the totals that can carry a number bet.
func BoxNumbers() []int {
	out := make([]int, len(boxNumbers))
	copy(out, boxNumbers)
	return out
}

func isHardNumber(n int) bool {
	return n == 4 || n == 6 || n == 8 || n == 10
}

// ParseArea parses an area name such as "passLine", "place6" or "hard8".
func ParseArea(s string) (Area, error) {
	for _, k := range numberedKinds {
		rest, ok := strings.CutPrefix(s, kindNames[k])
		if !ok || rest == "" {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil {
			return Area{}, fmt.Errorf("%w: %q", ErrInvalidArea, s)
		}
		a := Area{Kind: k, Number: n}
		if !a.Valid() {
			return Area{}, fmt.Errorf("%w: %q", ErrInvalidArea, s)
		}
		return a, nil
	}
	for k, name := range kindNames {
		if name == s && !k.numbered() {
			return Area{Kind: k}, nil
		}
	}
	return Area{}, fmt.Errorf("%w: %q", ErrInvalidArea, s)
}

func (k Kind) numbered() bool {
	switch k {
	case KindComeOdds, KindPlace, KindBuy, KindHard:
		return true
	default:
		return false
	}
}

// Valid reports whether the area exists on the layout.
func (a Area) Valid() bool {
	if _, ok := kindNames[a.Kind]; !ok {
		return false
	}
	switch a.Kind {
	case KindHard:
		return isHardNumber(a.Number)
	case KindComeOdds, KindPlace, KindBuy:
		return IsBoxNumber(a.Number)
	default:
		return a.Number == 0
	}
}

// String returns the wire name of the area.
func (a Area) String() string {
	name, ok := kindNames[a.Kind]
	if !ok {
		return "unknown"
	}
	if a.Kind.numbered() {
		return name + strconv.Itoa(a.Number)
	}
	return name
}

// MarshalText implements encoding.TextMarshaler.
func (a Area) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: kind %d number %d", ErrInvalidArea, a.Kind, a.Number)
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Area) UnmarshalText(b []byte) error {
	parsed, err := ParseArea(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// IsOneRoll reports whether the bet is settled by the very next roll.
func (a Area) IsOneRoll() bool {
	switch a.Kind {
	case KindField, KindAny7, KindAnyCraps, KindHorn, KindHard:
		return true
	default:
		return false
	}
}
