package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craps-server/internal/game/table"
)

func ev(room string, seq int64, name string) table.Event {
	return table.Event{Seq: seq, Event: name, RoomID: room}
}

func TestHubReplayAfter(t *testing.T) {
	h := NewHub(10)
	for i := int64(1); i <= 3; i++ {
		h.Publish(ev("r1", i, table.EventGameState))
	}
	h.Publish(ev("r2", 1, table.EventGameState))

	replay := h.ReplayAfter("r1", 1)
	require.Len(t, replay, 2)
	assert.Equal(t, int64(2), replay[0].Seq)
	assert.Equal(t, int64(3), replay[1].Seq)

	assert.Nil(t, h.ReplayAfter("missing", 0))
	assert.Equal(t, 2, h.Rooms())
}

func TestHubBufferIsBounded(t *testing.T) {
	h := NewHub(3)
	for i := int64(1); i <= 10; i++ {
		h.Publish(ev("r1", i, table.EventGameState))
	}

	replay := h.ReplayAfter("r1", 0)
	require.Len(t, replay, 3)
	assert.Equal(t, int64(8), replay[0].Seq)
}

func TestHubSubscribe(t *testing.T) {
	h := NewHub(10)
	h.Publish(ev("r1", 1, table.EventPlayerUpdate))

	sub := h.Subscribe("r1", 0)
	defer sub.Cancel()
	require.Len(t, sub.Replay, 1)

	h.Publish(ev("r1", 2, table.EventRollHistory))
	got := <-sub.C
	assert.Equal(t, int64(2), got.Seq)

	noReplay := h.Subscribe("r1", -1)
	defer noReplay.Cancel()
	assert.Empty(t, noReplay.Replay)
}

func TestHubSlowSubscriberDropsEvents(t *testing.T) {
	h := NewHub(1000)
	sub := h.Subscribe("r1", -1)
	defer sub.Cancel()

	for i := int64(1); i <= subscriberBuffer+10; i++ {
		h.Publish(ev("r1", i, table.EventGameState))
	}
	assert.Len(t, sub.C, subscriberBuffer)
}

func TestHubRoomDeletedClosesSubscribers(t *testing.T) {
	h := NewHub(10)
	sub := h.Subscribe("r1", -1)

	h.Publish(ev("r1", 1, table.EventRoomDeleted))

	got, ok := <-sub.C
	require.True(t, ok)
	assert.Equal(t, table.EventRoomDeleted, got.Event)
	_, ok = <-sub.C
	assert.False(t, ok)
	assert.Zero(t, h.Rooms())

	sub.Cancel() // after close is a no-op
}

func TestHubCancelDropsEmptyTopic(t *testing.T) {
	h := NewHub(10)
	sub := h.Subscribe("gone", -1)
	require.Equal(t, 1, h.Rooms())
	sub.Cancel()
	assert.Zero(t, h.Rooms(), "a topic nobody publishes to is not kept")

	h.Publish(ev("live", 1, table.EventGameState))
	sub = h.Subscribe("live", -1)
	sub.Cancel()
	assert.Equal(t, 1, h.Rooms(), "buffered events keep the topic")
}

func TestSubscriptionClosed(t *testing.T) {
	h := NewHub(10)
	sub := h.Subscribe("r1", -1)
	assert.False(t, sub.Closed())

	h.Publish(ev("r1", 1, table.EventRoomDeleted))
	assert.True(t, sub.Closed())

	next := h.Subscribe("r1", -1)
	defer next.Cancel()
	assert.False(t, next.Closed(), "a reopened room gets a fresh topic")
}
