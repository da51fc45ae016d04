package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craps-server/internal/boost"
	"craps-server/internal/config"
	"craps-server/internal/game"
	"craps-server/internal/game/craps"
	"craps-server/internal/game/table"
	"craps-server/internal/model"
	"craps-server/internal/realtime"
	"craps-server/internal/service"
)

const (
	basePath = "/functions/v1/make-server-67091a4f"
	anonKey  = "test-anon-key"
)

type fakeAccounts struct {
	mu       sync.Mutex
	balances map[int64]int64
}

func (f *fakeAccounts) get(userID int64) int64 {
	if b, ok := f.balances[userID]; ok {
		return b
	}
	f.balances[userID] = 1000
	return 1000
}

func (f *fakeAccounts) GetBalance(_ context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.get(userID), nil
}

func (f *fakeAccounts) LoadBalance(_ context.Context, userID int64, _ string, local *int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := service.ReconcileBalance(config.ReconcileHigher, f.get(userID), local)
	f.balances[userID] = b
	return b, nil
}

func (f *fakeAccounts) SetBalance(_ context.Context, userID int64, balance int64, _ string) (int64, error) {
	if balance < 0 {
		return 0, service.ErrInvalidAmount
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] = balance
	return balance, nil
}

type fakeStats struct{}

func (fakeStats) GetStats(_ context.Context, userID int64) (*model.GameStats, error) {
	return &model.GameStats{UserID: userID, Rolls: 3, XP: 2500}, nil
}

func (fakeStats) ListSessions(context.Context, int64, int) ([]*model.PlaySession, error) {
	return []*model.PlaySession{{ID: "s1", RoomID: "a"}}, nil
}

func (fakeStats) GetJackpot(context.Context) (*model.Jackpot, error) {
	return &model.Jackpot{Amount: 12345}, nil
}

type fakeRankings struct{}

func (fakeRankings) GetLeaderboard(context.Context, int) (*service.Leaderboard, error) {
	return &service.Leaderboard{TopBalances: []*model.LeaderboardEntry{{UserID: 1, Username: "alice", Value: 5000}}}, nil
}

type fakeBoosts struct{}

func (fakeBoosts) Inventory(context.Context, int64) (*service.Inventory, error) {
	return &service.Inventory{Catalog: boost.All()}, nil
}

func (fakeBoosts) Purchase(_ context.Context, _ int64, t boost.Type) (int64, error) {
	if _, ok := boost.Get(t); !ok {
		return 0, service.ErrUnknownBoost
	}
	return 7500, nil
}

func (fakeBoosts) Activate(context.Context, int64, boost.Type) (time.Time, error) {
	return time.Time{}, service.ErrNoBoostLeft
}

type fakeMemberships struct{}

func (fakeMemberships) Confirm(_ context.Context, userID int64, tier string) (*model.Membership, error) {
	if tier != "vip" {
		return nil, service.ErrInvalidTier
	}
	return &model.Membership{UserID: userID, Tier: tier}, nil
}

type fakeClaims struct {
	mu      sync.Mutex
	claimed map[string]bool
}

func (f *fakeClaims) Claim(_ context.Context, email string, _ *int64) (*service.ClaimResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, err := service.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	next := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	if f.claimed[email] {
		return &service.ClaimResult{NextClaimAt: next}, service.ErrClaimCooldown
	}
	f.claimed[email] = true
	return &service.ClaimResult{Reward: 1000, NextClaimAt: next}, nil
}

type fakeDB struct{ err error }

func (f fakeDB) HealthCheck(context.Context) error { return f.err }

type fixture struct {
	handler  http.Handler
	rooms    *table.Manager
	hub      *realtime.Hub
	roller   *game.ScriptedRoller
	accounts *fakeAccounts
}

func newFixture(t *testing.T, realtimeEnabled bool, db HealthChecker) *fixture {
	t.Helper()
	hub := realtime.NewHub(64)
	roller := game.NewScriptedRoller()
	rooms := table.NewManager(table.Config{}, quartz.NewMock(t), roller, hub, nil)
	t.Cleanup(rooms.Close)

	accounts := &fakeAccounts{balances: map[int64]int64{}}
	h := NewRouter(Deps{
		Server:      config.ServerConfig{BasePath: basePath, AnonKey: anonKey},
		Realtime:    realtimeEnabled,
		Accounts:    accounts,
		Stats:       fakeStats{},
		Rankings:    fakeRankings{},
		Boosts:      fakeBoosts{},
		Memberships: fakeMemberships{},
		Claims:      &fakeClaims{claimed: map[string]bool{}},
		DB:          db,
		Rooms:       rooms,
		Hub:         hub,
	})
	return &fixture{handler: h, rooms: rooms, hub: hub, roller: roller, accounts: accounts}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if strings.HasPrefix(path, basePath) {
		req.Header.Set("Authorization", "Bearer "+anonKey)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, true, fakeDB{})
	status, body := f.do(t, http.MethodGet, basePath+"/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, true, body["realtime_available"])

	f = newFixture(t, false, fakeDB{err: errors.New("connection refused")})
	status, body = f.do(t, http.MethodGet, basePath+"/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "database_unavailable", body["error"])
	assert.Equal(t, false, body["realtime_available"])
}

func TestAnonKeyRequired(t *testing.T) {
	f := newFixture(t, true, nil)

	req := httptest.NewRequest(http.MethodGet, basePath+"/balance/1", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"ok":false,"error":"unauthorized"}`, rec.Body.String())

	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	status, body := f.do(t, http.MethodGet, basePath+"/balance/1", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1000), body["balance"])
}

func TestBalanceUpdate(t *testing.T) {
	f := newFixture(t, true, nil)

	status, body := f.do(t, http.MethodPost, basePath+"/balance/5", `{"local_balance": 1500}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1500), body["balance"], "higher local balance wins")

	status, body = f.do(t, http.MethodPost, basePath+"/balance/5", `{"local_balance": 10}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1500), body["balance"])

	status, body = f.do(t, http.MethodPost, basePath+"/balance/5", `{"balance": 200}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(200), body["balance"])

	status, body = f.do(t, http.MethodPost, basePath+"/balance/5", `{"balance": -1}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_amount", body["error"])

	status, _ = f.do(t, http.MethodPost, basePath+"/balance/abc", `{"balance": 1}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRoomRoundTrip(t *testing.T) {
	f := newFixture(t, true, nil)
	f.roller.Push(game.Dice{3, 4})

	status, body := f.do(t, http.MethodPost, basePath+"/rooms/join", `{"room_id":"lucky","user_id":1,"name":"alice","local_balance":500}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "lucky", body["room_id"])
	assert.Equal(t, float64(1000), body["balance"])

	status, body = f.do(t, http.MethodPost, basePath+"/rooms/lucky/bets", `{"user_id":1,"area":"passLine","amount":10}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(990), body["balance"])

	status, body = f.do(t, http.MethodGet, basePath+"/balance/1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(990), body["balance"], "seated players see the live seat balance")
	assert.Equal(t, true, body["seated"])

	status, body = f.do(t, http.MethodPost, basePath+"/rooms/lucky/roll", `{"user_id":1}`)
	require.Equal(t, http.StatusOK, status, body)
	result := body["result"].(map[string]any)
	assert.Equal(t, float64(20), result["payout"])
	assert.Equal(t, float64(1010), result["balance"])

	status, body = f.do(t, http.MethodGet, basePath+"/rooms/lucky/history", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["rolls"], 1)

	status, body = f.do(t, http.MethodGet, basePath+"/rooms", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["rooms"], 1)

	status, body = f.do(t, http.MethodPost, basePath+"/rooms/lucky/leave", `{"user_id":1}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1010), body["balance"])
	assert.Equal(t, true, body["room_deleted"])

	status, body = f.do(t, http.MethodGet, basePath+"/rooms/lucky", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "room_not_found", body["error"])
}

func TestRoomJoinMovesSeatBalance(t *testing.T) {
	f := newFixture(t, true, nil)

	_, _, err := f.rooms.Join("a", 1, "alice", 300)
	require.NoError(t, err)

	status, body := f.do(t, http.MethodPost, basePath+"/rooms/join", `{"room_id":"b","user_id":1,"name":"alice"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(300), body["balance"])
	_, err = f.rooms.Get("a")
	assert.ErrorIs(t, err, table.ErrRoomNotFound)
}

func TestRoomErrors(t *testing.T) {
	f := newFixture(t, true, nil)
	_, _, err := f.rooms.Join("a", 1, "alice", 100)
	require.NoError(t, err)
	_, _, err = f.rooms.Join("a", 2, "bob", 100)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown area", http.MethodPost, "/rooms/a/bets", `{"user_id":1,"area":"nope","amount":5}`, http.StatusBadRequest, "invalid_area"},
		{"zero amount", http.MethodPost, "/rooms/a/bets", `{"user_id":1,"area":"field","amount":0}`, http.StatusBadRequest, "invalid_amount"},
		{"over balance", http.MethodPost, "/rooms/a/bets", `{"user_id":1,"area":"field","amount":500}`, http.StatusBadRequest, "insufficient_balance"},
		{"odds before point", http.MethodPost, "/rooms/a/bets", `{"user_id":1,"area":"passLineOdds","amount":5}`, http.StatusConflict, "wrong_phase"},
		{"not seated", http.MethodPost, "/rooms/a/bets", `{"user_id":9,"area":"field","amount":5}`, http.StatusNotFound, "not_seated"},
		{"missing room", http.MethodPost, "/rooms/zz/roll", `{"user_id":1}`, http.StatusNotFound, "room_not_found"},
		{"not shooter", http.MethodPost, "/rooms/a/roll", `{"user_id":2}`, http.StatusForbidden, "not_shooter"},
		{"no offer", http.MethodPost, "/rooms/a/shooter", `{"user_id":2,"action":"accept"}`, http.StatusConflict, "no_shooter_offer"},
		{"bad action", http.MethodPost, "/rooms/a/shooter", `{"user_id":2,"action":"steal"}`, http.StatusBadRequest, "invalid_action"},
		{"not host", http.MethodPost, "/rooms/a/settings", `{"user_id":2,"betting_duration":10}`, http.StatusForbidden, "not_host"},
		{"bad duration", http.MethodPost, "/rooms/a/settings", `{"user_id":1,"betting_duration":1}`, http.StatusBadRequest, "invalid_duration"},
		{"bad json", http.MethodPost, "/rooms/join", `{`, http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := f.do(t, tt.method, basePath+tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body["error"])
		})
	}

	status, body := f.do(t, http.MethodPost, basePath+"/rooms/a/settings", `{"user_id":1,"betting_duration":10}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(10), body["betting_duration"])
}

func TestRemoveBet(t *testing.T) {
	f := newFixture(t, true, nil)
	_, _, err := f.rooms.Join("a", 1, "alice", 1000)
	require.NoError(t, err)

	status, body := f.do(t, http.MethodPost, basePath+"/rooms/a/bets", `{"user_id":1,"area":"field","amount":50}`)
	require.Equal(t, http.StatusOK, status, body)

	status, body = f.do(t, http.MethodDelete, basePath+"/rooms/a/bets", `{"user_id":1,"area":"field","amount":50}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(50), body["refund"])
	assert.Equal(t, float64(1000), body["balance"])
}

func TestAccountEndpoints(t *testing.T) {
	f := newFixture(t, true, nil)

	status, body := f.do(t, http.MethodGet, basePath+"/stats/7", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(3), body["level"])

	status, body = f.do(t, http.MethodGet, basePath+"/stats/leaderboard?limit=5", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["top_balances"], 1)

	status, body = f.do(t, http.MethodGet, basePath+"/sessions/7", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["sessions"], 1)

	status, body = f.do(t, http.MethodGet, basePath+"/jackpot", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(12345), body["jackpot"].(map[string]any)["amount"])

	status, body = f.do(t, http.MethodPost, basePath+"/membership/confirm", `{"user_id":7,"tier":"gold"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_tier", body["error"])

	status, _ = f.do(t, http.MethodPost, basePath+"/membership/confirm", `{"user_id":7,"tier":"vip"}`)
	assert.Equal(t, http.StatusOK, status)

	status, body = f.do(t, http.MethodGet, basePath+"/boosts/7", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["catalog"], len(boost.All()))

	status, body = f.do(t, http.MethodPost, basePath+"/boosts/7/purchase", `{"boost":"xp_2x_1h"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(7500), body["balance"])

	status, body = f.do(t, http.MethodPost, basePath+"/boosts/7/purchase", `{"boost":"xp_9x"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "unknown_boost", body["error"])

	status, body = f.do(t, http.MethodPost, basePath+"/boosts/7/activate", `{"boost":"xp_2x_1h"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "no_boost_left", body["error"])
}

func TestDailyBonusClaim(t *testing.T) {
	f := newFixture(t, true, nil)

	status, body := f.do(t, http.MethodPost, "/api/daily-bonus/claim", `{"email":"Player@Example.com"}`)
	require.Equal(t, http.StatusOK, status, "no bearer token is needed")
	assert.Equal(t, float64(1000), body["reward"])

	status, body = f.do(t, http.MethodPost, "/api/daily-bonus/claim", `{"email":"player@example.com"}`)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "claim_cooldown", body["error"])
	assert.Equal(t, "2026-01-02T00:00:00Z", body["next_claim_at"])

	status, body = f.do(t, http.MethodPost, "/api/daily-bonus/claim", `{"email":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_email", body["error"])
}

func TestWebsocketDisabled(t *testing.T) {
	f := newFixture(t, false, nil)
	_, _, err := f.rooms.Join("a", 1, "alice", 100)
	require.NoError(t, err)

	status, body := f.do(t, http.MethodGet, basePath+"/rooms/a/ws?user_id=1", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "realtime_unavailable", body["error"])
}

func TestWebsocketReplaysAndForwards(t *testing.T) {
	f := newFixture(t, true, nil)
	_, _, err := f.rooms.Join("a", 1, "alice", 100)
	require.NoError(t, err)

	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + basePath + "/rooms/a/ws?user_id=1&after_seq=0"
	header := http.Header{"Authorization": []string{"Bearer " + anonKey}}
	ws, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer ws.Close()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var first table.Event
	require.NoError(t, ws.ReadJSON(&first))
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, table.EventPlayerUpdate, first.Event)

	require.NoError(t, ws.WriteJSON(realtime.ClientMessage{
		Type:      realtime.MsgPlaceBet,
		RequestID: "r1",
		Data:      json.RawMessage(`{"area":"field","amount":5}`),
	}))

	for {
		var msg map[string]any
		require.NoError(t, ws.ReadJSON(&msg))
		if msg["type"] == realtime.ReplyAck {
			assert.Equal(t, "r1", msg["request_id"])
			assert.Equal(t, float64(95), msg["balance"])
			break
		}
	}

	tbl, err := f.rooms.Get("a")
	require.NoError(t, err)
	p, ok := tbl.Snapshot().Player(1)
	require.True(t, ok)
	require.Len(t, p.Bets, 1)
	assert.Equal(t, craps.Field, p.Bets[0].Area)
}

func TestWebsocketRequiresSeat(t *testing.T) {
	f := newFixture(t, true, nil)
	_, _, err := f.rooms.Join("a", 1, "alice", 100)
	require.NoError(t, err)

	status, body := f.do(t, http.MethodGet, basePath+"/rooms/a/ws?user_id=2", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_seated", body["error"])
}

func TestErrorStatus(t *testing.T) {
	status, code := errorStatus(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal_error", code)

	status, code = errorStatus(service.ErrClaimCooldown)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "claim_cooldown", code)

	status, code = errorStatus(craps.ErrBetLocked)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "bet_locked", code)
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"?limit=5", 5},
		{"?limit=0", 1},
		{"?limit=999", 100},
		{"?limit=abc", 20},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil)
		if got := ParseLimit(r, 20, 100); got != tt.want {
			t.Fatalf("ParseLimit(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
