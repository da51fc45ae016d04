package table

import (
	"errors"

	"craps-server/internal/game/craps"
	"craps-server/internal/service"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{craps.ErrInvalidAmount, "invalid_amount"},
	{craps.ErrInvalidArea, "invalid_area"},
	{craps.ErrInsufficientBalance, "insufficient_balance"},
	{service.ErrInsufficientBalance, "insufficient_balance"},
	{craps.ErrResolving, "resolving"},
	{craps.ErrBettingLocked, "betting_locked"},
	{craps.ErrWrongPhase, "wrong_phase"},
	{craps.ErrNoLineBet, "no_line_bet"},
	{craps.ErrNoComeBet, "no_come_bet"},
	{craps.ErrOddsLimit, "odds_limit"},
	{craps.ErrTrackingStarted, "tracking_started"},
	{craps.ErrBetLocked, "bet_locked"},
	{ErrTableFull, "table_full"},
	{ErrTableClosed, "table_closed"},
	{ErrNotSeated, "not_seated"},
	{ErrNotShooter, "not_shooter"},
	{ErrNoShooterOffer, "no_shooter_offer"},
	{ErrNotHost, "not_host"},
	{ErrInvalidDuration, "invalid_duration"},
	{ErrRoomNotFound, "room_not_found"},
}

// ErrorCode returns the stable client-facing code of a table or bet
// error, or "" for anything else.
func ErrorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return ""
}
