package handler

import (
	"errors"
	"fmt"
	"strings"

	"craps-server/internal/game/craps"
	"craps-server/internal/game/table"
	"craps-server/internal/service"
)

const divider = "━━━━━━━━━━━━━━━"

var kindLabels = map[craps.Kind]string{
	craps.KindPassLine:     "Pass Line",
	craps.KindPassLineOdds: "Pass Odds",
	craps.KindCome:         "Come",
	craps.KindComeOdds:     "Come Odds",
	craps.KindPlace:        "Place",
	craps.KindBuy:          "Buy",
	craps.KindField:        "Field",
	craps.KindAny7:         "Any 7",
	craps.KindAnyCraps:     "Any Craps",
	craps.KindHorn:         "Horn",
	craps.KindHard:         "Hard",
	craps.KindSmall:        "Small",
	craps.KindTall:         "Tall",
	craps.KindAll:          "All",
}

// AreaLabel returns the display name of an area, e.g. "Place 6".
func AreaLabel(a craps.Area) string {
	label, ok := kindLabels[a.Kind]
	if !ok {
		return a.String()
	}
	if a.Number != 0 {
		return fmt.Sprintf("%s %d", label, a.Number)
	}
	return label
}

var errorMessages = map[string]string{
	"invalid_amount":       "❌ The amount must be a positive whole number",
	"invalid_area":         "❌ Unknown bet area. Try passLine, field, place6, hard8, small...",
	"insufficient_balance": "❌ Not enough coins",
	"resolving":            "⏳ The dice are rolling, try again in a moment",
	"betting_locked":       "🔒 Betting is closed for this roll",
	"wrong_phase":          "❌ That bet is not available right now",
	"no_line_bet":          "❌ Odds need a Pass Line bet first",
	"no_come_bet":          "❌ Odds need a Come bet on that number",
	"odds_limit":           "❌ That exceeds the odds limit",
	"tracking_started":     "❌ Small/Tall/All can only be placed before the first number is hit",
	"bet_locked":           "🔒 That bet cannot be taken down",
	"table_full":           "❌ The table is full",
	"table_closed":         "❌ The table has closed",
	"not_seated":           "❌ You are not at this table. Use /craps to sit down",
	"not_shooter":          "❌ Only the shooter can roll",
	"no_shooter_offer":     "❌ The dice were not offered to you",
	"not_host":             "❌ Only the host can change table settings",
	"invalid_duration":     fmt.Sprintf("❌ Betting time must be %d-%d seconds", table.MinBettingSeconds, table.MaxBettingSeconds),
	"room_not_found":       "❌ No table in this chat. Use /craps to open one",
}

// ErrorMessage turns an error into a reply for the player.
func ErrorMessage(err error) string {
	if msg, ok := errorMessages[table.ErrorCode(err)]; ok {
		return msg
	}
	switch {
	case errors.Is(err, service.ErrUnknownBoost):
		return "❌ Unknown boost"
	case errors.Is(err, service.ErrNoBoostLeft):
		return "❌ You have none of that boost. Buy one first"
	}
	return "❌ Something went wrong, please try again later"
}

// FormatBets lists a player's bets.
func FormatBets(bets []craps.Bet) string {
	if len(bets) == 0 {
		return "📋 You have no bets on the table"
	}
	var sb strings.Builder
	sb.WriteString("📋 Your bets:\n" + divider + "\n")
	var total int64
	for _, b := range bets {
		label := AreaLabel(b.Area)
		if b.ComePoint != 0 && b.Area.Number == 0 {
			label = fmt.Sprintf("%s on %d", label, b.ComePoint)
		}
		fmt.Fprintf(&sb, "• %s: %d\n", label, b.Amount)
		total += b.Amount
	}
	sb.WriteString(divider + "\n")
	fmt.Fprintf(&sb, "💰 Total: %d", total)
	return sb.String()
}

// FormatTable describes the table for a chat message.
func FormatTable(s *table.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("🎲 Craps table\n" + divider + "\n")
	if s.PuckOn {
		fmt.Fprintf(&sb, "⚪ Point: %d\n", s.Round.Point)
	} else {
		sb.WriteString("⚫ Come-out roll\n")
	}
	if s.LastRoll != nil {
		fmt.Fprintf(&sb, "🎯 Last roll: %d+%d = %d\n", s.LastRoll.Dice1, s.LastRoll.Dice2, s.LastRoll.Total)
	}
	fmt.Fprintf(&sb, "⏰ Next roll in %ds\n", s.Countdown)
	sb.WriteString(divider + "\n")
	for _, p := range s.Players {
		var tags string
		if p.IsShooter {
			tags += " 🎲"
		}
		if p.IsHost {
			tags += " 👑"
		}
		var staked int64
		for _, b := range p.Bets {
			staked += b.Amount
		}
		fmt.Fprintf(&sb, "👤 %s%s: %d (on table %d)\n", p.Name, tags, p.Balance, staked)
	}
	if s.ShooterOffer != 0 {
		if p, ok := s.Player(s.ShooterOffer); ok {
			fmt.Fprintf(&sb, "🤝 Dice offered to %s\n", p.Name)
		}
	}
	sb.WriteString(divider)
	return sb.String()
}

// FormatRoll summarizes a roll and the players it paid.
func FormatRoll(r craps.Roll, wins []table.PlayerWinData) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🎲 Roll %s = %d", r.Label(), r.Total)
	switch {
	case r.WasSevenOut:
		sb.WriteString(" 💥 Seven out!")
	case r.PointMade:
		sb.WriteString(" 🎉 Point made!")
	case r.Phase == craps.PhaseComeOut && r.Total != 7:
		fmt.Fprintf(&sb, " ⚪ Point is %d", r.Total)
	}
	sb.WriteString("\n" + divider + "\n")
	if len(wins) == 0 {
		sb.WriteString("No winners this roll")
		return sb.String()
	}
	for _, w := range wins {
		fmt.Fprintf(&sb, "🎉 %s +%d (balance %d)\n", w.Name, w.Payout, w.Balance)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// FormatHistory lists recent rolls, newest first.
func FormatHistory(rolls []craps.Roll, stats craps.HistoryStats) string {
	if len(rolls) == 0 {
		return "📜 No rolls yet"
	}
	var sb strings.Builder
	sb.WriteString("📜 Recent rolls\n" + divider + "\n")
	labels := make([]string, 0, len(rolls))
	for _, r := range rolls {
		labels = append(labels, fmt.Sprintf("%d", r.Total))
	}
	sb.WriteString(strings.Join(labels, " · "))
	sb.WriteString("\n" + divider + "\n")
	fmt.Fprintf(&sb, "Rolls %d | Points made %d | Seven outs %d", stats.Rolls, stats.PointsMade, stats.SevenOuts)
	return sb.String()
}

// displayName prefers the username and falls back to the numeric ID.
func displayName(username string, userID int64) string {
	if username == "" {
		return fmt.Sprintf("User%d", userID)
	}
	return username
}
