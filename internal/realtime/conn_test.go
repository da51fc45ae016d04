package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craps-server/internal/game/craps"
	"craps-server/internal/game/table"
)

type fakeActions struct {
	mu        sync.Mutex
	balance   int64
	bets      []craps.Area
	connected bool
	left      bool
}

func (f *fakeActions) PlaceBet(_ int64, area craps.Area, amount int64, _, _ float64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if amount > f.balance {
		return 0, craps.ErrInsufficientBalance
	}
	f.balance -= amount
	f.bets = append(f.bets, area)
	return f.balance, nil
}

func (f *fakeActions) RemoveBet(int64, craps.Area, int64) (int64, int64, error) {
	return 0, f.balance, nil
}

func (f *fakeActions) Roll(int64) (*table.RollReport, error) {
	return nil, table.ErrNotShooter
}

func (f *fakeActions) AcceptShooter(int64) error  { return nil }
func (f *fakeActions) DeclineShooter(int64) error { return table.ErrNoShooterOffer }
func (f *fakeActions) RequestShooterUpdate() error {
	return nil
}

func (f *fakeActions) SetConnected(_ int64, connected bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = connected
	return nil
}

func (f *fakeActions) isConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func startConnServer(t *testing.T, hub *Hub, actions *fakeActions, afterSeq int64) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		leave := func() error {
			actions.mu.Lock()
			actions.left = true
			actions.mu.Unlock()
			return nil
		}
		NewConn(ws, "r1", 1, actions, leave).Serve(hub.Subscribe("r1", afterSeq))
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))
	return client
}

func readFrame(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	var frame map[string]any
	require.NoError(t, c.ReadJSON(&frame))
	return frame
}

func send(t *testing.T, c *websocket.Conn, typ string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, c.WriteJSON(ClientMessage{Type: typ, RequestID: "r", Data: raw}))
}

func TestConnReplaysMissedEvents(t *testing.T) {
	hub := NewHub(10)
	for i := int64(1); i <= 3; i++ {
		hub.Publish(ev("r1", i, table.EventGameState))
	}

	client := startConnServer(t, hub, &fakeActions{balance: 100}, 1)

	assert.Equal(t, float64(2), readFrame(t, client)["seq"])
	assert.Equal(t, float64(3), readFrame(t, client)["seq"])
}

func TestConnPlacesBets(t *testing.T) {
	hub := NewHub(10)
	actions := &fakeActions{balance: 100}
	client := startConnServer(t, hub, actions, -1)

	send(t, client, MsgPlaceBet, BetData{Area: "passLine", Amount: 10})
	frame := readFrame(t, client)
	assert.Equal(t, ReplyAck, frame["type"])
	assert.Equal(t, MsgPlaceBet, frame["action"])
	assert.Equal(t, float64(90), frame["balance"])

	send(t, client, MsgPlaceBet, BetData{Area: "nowhere", Amount: 10})
	frame = readFrame(t, client)
	assert.Equal(t, ReplyError, frame["type"])
	assert.Equal(t, "invalid_area", frame["code"])

	send(t, client, MsgPlaceBet, BetData{Area: "field", Amount: 1000})
	assert.Equal(t, "insufficient_balance", readFrame(t, client)["code"])

	send(t, client, MsgRoll, nil)
	assert.Equal(t, "not_shooter", readFrame(t, client)["code"])

	send(t, client, "dance", nil)
	assert.Equal(t, "unknown_message", readFrame(t, client)["code"])

	assert.True(t, actions.isConnected())
}

func TestConnForwardsEvents(t *testing.T) {
	hub := NewHub(10)
	client := startConnServer(t, hub, &fakeActions{}, -1)

	// Wait for the subscription before publishing.
	send(t, client, MsgRequestShooterUpdate, nil)
	require.Equal(t, ReplyAck, readFrame(t, client)["type"])

	hub.Publish(ev("r1", 7, table.EventPlayerWin))
	frame := readFrame(t, client)
	assert.Equal(t, float64(7), frame["seq"])
	assert.Equal(t, table.EventPlayerWin, frame["event"])
}

func TestConnClosesWhenRoomDeleted(t *testing.T) {
	hub := NewHub(10)
	actions := &fakeActions{}
	client := startConnServer(t, hub, actions, -1)

	send(t, client, MsgRequestShooterUpdate, nil)
	require.Equal(t, ReplyAck, readFrame(t, client)["type"])

	hub.Publish(ev("r1", 1, table.EventRoomDeleted))
	assert.Equal(t, table.EventRoomDeleted, readFrame(t, client)["event"])

	var frame map[string]any
	err := client.ReadJSON(&frame)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	require.Eventually(t, func() bool { return !actions.isConnected() }, time.Second, 10*time.Millisecond)
}

func TestConnLeave(t *testing.T) {
	hub := NewHub(10)
	actions := &fakeActions{}
	client := startConnServer(t, hub, actions, -1)

	send(t, client, MsgLeave, nil)
	frame := readFrame(t, client)
	assert.Equal(t, ReplyAck, frame["type"])
	assert.Equal(t, MsgLeave, frame["action"])

	actions.mu.Lock()
	defer actions.mu.Unlock()
	assert.True(t, actions.left)
}
