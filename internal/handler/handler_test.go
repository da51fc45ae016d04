package handler

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"craps-server/internal/boost"
	"craps-server/internal/game/craps"
	"craps-server/internal/game/table"
	"craps-server/internal/service"
)

func TestCallbackRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		action := rapid.StringMatching(`[a-z]{1,10}`).Draw(t, "action")
		param := rapid.StringMatching(`[a-zA-Z0-9_]{0,12}`).Draw(t, "param")

		gotAction, gotParam := DecodeCallback(CrapsPrefix, "\f"+EncodeCallback(CrapsPrefix, action, param))
		if gotAction != action || gotParam != param {
			t.Fatalf("decoded (%q, %q), want (%q, %q)", gotAction, gotParam, action, param)
		}
	})
}

func TestDecodeCallbackWrongPrefix(t *testing.T) {
	action, param := DecodeCallback(CrapsPrefix, "boost_buy_xp_2x_1h")
	assert.Empty(t, action)
	assert.Empty(t, param)

	action, param = DecodeCallback(BoostPrefix, "boost_buy_xp_2x_1h")
	assert.Equal(t, "buy", action)
	assert.Equal(t, "xp_2x_1h", param)
}

func TestBetPanelAreasParse(t *testing.T) {
	markup := BuildBetPanel()
	require.Len(t, markup.InlineKeyboard, len(panelRows)+1)

	for _, row := range markup.InlineKeyboard[:len(panelRows)] {
		for _, btn := range row {
			action, param := DecodeCallback(CrapsPrefix, btn.Data)
			assert.Equal(t, "bet", action)
			area, err := craps.ParseArea(param)
			require.NoError(t, err, btn.Data)
			assert.Equal(t, AreaLabel(area), btn.Text)
		}
	}
	// Callback data is limited to 64 bytes.
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			assert.LessOrEqual(t, len(btn.Data), 64)
		}
	}
}

func TestBoostPanel(t *testing.T) {
	markup := BuildBoostPanel(boost.All(), map[boost.Type]int{boost.XP3x1h: 2})
	require.Len(t, markup.InlineKeyboard, len(boost.All()))

	var uses int
	for _, row := range markup.InlineKeyboard {
		action, param := DecodeCallback(BoostPrefix, row[0].Data)
		assert.Equal(t, "buy", action)
		_, ok := boost.Get(boost.Type(param))
		assert.True(t, ok)
		if len(row) == 2 {
			uses++
			assert.Equal(t, EncodeCallback(BoostPrefix, "use", string(boost.XP3x1h)), row[1].Data)
		}
	}
	assert.Equal(t, 1, uses)
}

func TestAreaLabel(t *testing.T) {
	assert.Equal(t, "Pass Line", AreaLabel(craps.PassLine))
	assert.Equal(t, "Place 6", AreaLabel(craps.Place(6)))
	assert.Equal(t, "Hard 8", AreaLabel(craps.Hard(8)))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, errorMessages["not_seated"], ErrorMessage(table.ErrNotSeated))
	assert.Equal(t, errorMessages["insufficient_balance"], ErrorMessage(service.ErrInsufficientBalance))
	assert.Contains(t, ErrorMessage(service.ErrNoBoostLeft), "Buy one")
	assert.Contains(t, ErrorMessage(assert.AnError), "Something went wrong")
}

func TestFormatRoll(t *testing.T) {
	comeOut := craps.Roll{Number: 1, Dice1: 2, Dice2: 2, Total: 4, Phase: craps.PhaseComeOut}
	assert.Contains(t, FormatRoll(comeOut, nil), "Point is 4")
	assert.Contains(t, FormatRoll(comeOut, nil), "No winners")

	natural := craps.Roll{Number: 2, Dice1: 3, Dice2: 4, Total: 7, Phase: craps.PhaseComeOut}
	assert.NotContains(t, FormatRoll(natural, nil), "Point is")

	sevenOut := craps.Roll{Number: 3, Dice1: 3, Dice2: 4, Total: 7, Phase: craps.PhasePoint, Point: 4, WasSevenOut: true}
	assert.Contains(t, FormatRoll(sevenOut, nil), "Seven out")

	made := craps.Roll{Number: 4, Dice1: 1, Dice2: 3, Total: 4, Phase: craps.PhasePoint, Point: 4, PointMade: true}
	msg := FormatRoll(made, []table.PlayerWinData{{UserID: 1, Name: "alice", Payout: 20, Balance: 1010}})
	assert.Contains(t, msg, "Point made")
	assert.Contains(t, msg, "alice +20 (balance 1010)")
	assert.False(t, strings.HasSuffix(msg, "\n"))
}

func TestFormatBets(t *testing.T) {
	assert.Contains(t, FormatBets(nil), "no bets")

	msg := FormatBets([]craps.Bet{
		{Area: craps.PassLine, Amount: 10},
		{Area: craps.Come, Amount: 5, ComePoint: 6},
	})
	assert.Contains(t, msg, "Pass Line: 10")
	assert.Contains(t, msg, "Come on 6: 5")
	assert.Contains(t, msg, "Total: 15")
}

func TestFormatTable(t *testing.T) {
	snap := &table.Snapshot{
		PuckOn:       true,
		Round:        craps.RoundState{Phase: craps.PhasePoint, Point: 6},
		Countdown:    12,
		ShooterOffer: 2,
		Players: []table.PlayerView{
			{UserID: 1, Name: "alice", Balance: 990, IsShooter: true, IsHost: true, Bets: []craps.Bet{{Area: craps.PassLine, Amount: 10}}},
			{UserID: 2, Name: "bob", Balance: 1000},
		},
	}
	msg := FormatTable(snap)
	assert.Contains(t, msg, "Point: 6")
	assert.Contains(t, msg, "Next roll in 12s")
	assert.Contains(t, msg, "alice 🎲 👑: 990 (on table 10)")
	assert.Contains(t, msg, "Dice offered to bob")
}

func TestFormatHistory(t *testing.T) {
	assert.Contains(t, FormatHistory(nil, craps.HistoryStats{}), "No rolls")

	rolls := []craps.Roll{{Total: 8}, {Total: 6}}
	msg := FormatHistory(rolls, craps.HistoryStats{Rolls: 2})
	assert.Contains(t, msg, "8 · 6")
	assert.Contains(t, msg, "Rolls 2")
}

func TestRollRelay(t *testing.T) {
	r := &rollRelay{}
	roll := craps.Roll{Number: 1, Dice1: 3, Dice2: 4, Total: 7, Phase: craps.PhaseComeOut, Timestamp: time.Now()}

	assert.Empty(t, r.handle(table.Event{Event: table.EventRollHistory, Data: table.RollHistoryData{Roll: roll}}))
	assert.Empty(t, r.handle(table.Event{Event: table.EventPlayerWin, Data: table.PlayerWinData{Name: "alice", Payout: 20}}))
	assert.Empty(t, r.handle(table.Event{Event: table.EventSessionStats}))

	out := r.handle(table.Event{Event: table.EventGameState})
	require.Len(t, out, 1)
	assert.Contains(t, out[0].text, "alice +20")
	assert.Zero(t, out[0].offer)

	assert.Empty(t, r.handle(table.Event{Event: table.EventGameState}), "a state change without a roll posts nothing")
	assert.Empty(t, r.flush())
}

func TestRollRelayShooterOffer(t *testing.T) {
	r := &rollRelay{}
	roll := craps.Roll{Number: 5, Dice1: 3, Dice2: 4, Total: 7, Phase: craps.PhasePoint, Point: 6, WasSevenOut: true}

	r.handle(table.Event{Event: table.EventRollHistory, Data: table.RollHistoryData{Roll: roll}})
	out := r.handle(table.Event{Event: table.EventShooterOffer, Data: table.ShooterData{Offer: 2}})
	require.Len(t, out, 2)
	assert.Contains(t, out[0].text, "Seven out")
	assert.Equal(t, int64(2), out[1].offer)

	assert.Empty(t, r.handle(table.Event{Event: table.EventGameState}))
}

func TestParseBetArgs(t *testing.T) {
	area, amount, err := parseBetArgs([]string{"place6", "30"})
	require.NoError(t, err)
	assert.Equal(t, craps.Place(6), area)
	assert.Equal(t, int64(30), amount)

	_, _, err = parseBetArgs([]string{"place6"})
	assert.ErrorIs(t, err, errUsage)

	_, _, err = parseBetArgs([]string{"place6", "-5"})
	assert.ErrorIs(t, err, craps.ErrInvalidAmount)

	_, _, err = parseBetArgs([]string{"nowhere", "5"})
	assert.ErrorIs(t, err, craps.ErrInvalidArea)
}

func TestParseAdminArgs(t *testing.T) {
	id, amount, err := parseAdminArgs([]string{"123", "-50"}, "/admin_add")
	require.NoError(t, err)
	assert.Equal(t, int64(123), id)
	assert.Equal(t, int64(-50), amount)

	_, _, err = parseAdminArgs([]string{"123"}, "/admin_add")
	assert.ErrorContains(t, err, "/admin_add <user_id> <amount>")
}

func TestFormatLeaderboard(t *testing.T) {
	msg := FormatLeaderboard(&service.Leaderboard{})
	assert.Equal(t, 3, strings.Count(msg, "No data yet"))
}
