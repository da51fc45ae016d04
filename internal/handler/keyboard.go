package handler

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"craps-server/internal/boost"
	"craps-server/internal/game/craps"
)

// Callback prefixes routed by the bot.
const (
	CrapsPrefix = "craps_"
	BoostPrefix = "boost_"
)

// QuickBetAmount is the stake of one tap on the bet panel.
const QuickBetAmount int64 = 10

// EncodeCallback joins prefix, action and an optional parameter into
// callback data.
func EncodeCallback(prefix, action, param string) string {
	if param != "" {
		return fmt.Sprintf("%s%s_%s", prefix, action, param)
	}
	return prefix + action
}

// DecodeCallback splits callback data produced by EncodeCallback. Data
// without the prefix yields empty strings.
func DecodeCallback(prefix, data string) (action string, param string) {
	// telebot may prepend \f to callback data
	data = strings.TrimPrefix(data, "\f")
	if !strings.HasPrefix(data, prefix) {
		return "", ""
	}
	action, param, _ = strings.Cut(strings.TrimPrefix(data, prefix), "_")
	return action, param
}

var panelRows = [][]craps.Area{
	{craps.PassLine, craps.Come, craps.Field},
	{craps.Place(6), craps.Place(8), craps.Hard(8)},
	{craps.Any7, craps.AnyCraps, craps.Horn},
	{craps.Small, craps.Tall, craps.All},
}

// BuildBetPanel builds the inline keyboard under a table message. Each bet
// button stakes QuickBetAmount.
func BuildBetPanel() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	for _, row := range panelRows {
		buttons := make([]tele.InlineButton, 0, len(row))
		for _, area := range row {
			buttons = append(buttons, tele.InlineButton{
				Text: AreaLabel(area),
				Data: EncodeCallback(CrapsPrefix, "bet", area.String()),
			})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, buttons)
	}
	markup.InlineKeyboard = append(markup.InlineKeyboard, []tele.InlineButton{
		{Text: "🎲 Roll", Data: EncodeCallback(CrapsPrefix, "roll", "")},
		{Text: "📋 My bets", Data: EncodeCallback(CrapsPrefix, "mybets", "")},
		{Text: "🔄 Table", Data: EncodeCallback(CrapsPrefix, "table", "")},
	})
	return markup
}

// BuildShooterPanel asks a player to take the dice.
func BuildShooterPanel() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{
		{Text: "✅ Take the dice", Data: EncodeCallback(CrapsPrefix, "shooter", "accept")},
		{Text: "🙅 Pass", Data: EncodeCallback(CrapsPrefix, "shooter", "decline")},
	}}}
}

// BuildBoostPanel lists buy buttons for the catalog and use buttons for
// owned boosts.
func BuildBoostPanel(catalog []boost.Config, owned map[boost.Type]int) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	for _, b := range catalog {
		row := []tele.InlineButton{{
			Text: fmt.Sprintf("%s %s (%d)", b.Emoji, b.Name, b.Price),
			Data: EncodeCallback(BoostPrefix, "buy", string(b.Type)),
		}}
		if owned[b.Type] > 0 {
			row = append(row, tele.InlineButton{
				Text: fmt.Sprintf("▶️ Use (%d)", owned[b.Type]),
				Data: EncodeCallback(BoostPrefix, "use", string(b.Type)),
			})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, row)
	}
	return markup
}
