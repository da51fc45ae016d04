// Package realtime fans table events out to websocket clients.
package realtime

import (
	"sync"

	"craps-server/internal/game/table"
)

const defaultBufferSize = 256

// subscriberBuffer is the per-subscriber queue. A subscriber that falls this
// far behind misses events and must resync from a game-state snapshot.
const subscriberBuffer = 64

// topic keeps the recent events of one room for replay and pushes new ones
// to subscribers without blocking.
type topic struct {
	mu       sync.Mutex
	max      int
	events   []table.Event
	watchers map[chan table.Event]struct{}
	closed   bool
}

func newTopic(max int) *topic {
	return &topic{max: max, watchers: map[chan table.Event]struct{}{}}
}

func (t *topic) append(ev table.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.events = append(t.events, ev)
	if len(t.events) > t.max {
		t.events = append(t.events[:0], t.events[len(t.events)-t.max:]...)
	}
	for ch := range t.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (t *topic) after(seq int64) []table.Event {
	out := make([]table.Event, 0, len(t.events))
	for _, ev := range t.events {
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}

func (t *topic) subscribe(afterSeq int64) (chan table.Event, []table.Event) {
	ch := make(chan table.Event, subscriberBuffer)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		close(ch)
		return ch, nil
	}
	t.watchers[ch] = struct{}{}
	var replay []table.Event
	if afterSeq >= 0 {
		replay = t.after(afterSeq)
	}
	return ch, replay
}

func (t *topic) unsubscribe(ch chan table.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.watchers[ch]; ok {
		delete(t.watchers, ch)
		close(ch)
	}
}

func (t *topic) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for ch := range t.watchers {
		close(ch)
		delete(t.watchers, ch)
	}
}

// Subscription receives the events of one room. C is closed when the room
// is deleted or the subscription is cancelled.
type Subscription struct {
	C      <-chan table.Event
	Replay []table.Event

	ch     chan table.Event
	topic  *topic
	hub    *Hub
	roomID string
	once   sync.Once
}

// Cancel stops the subscription. A topic left without events or
// subscribers is dropped from the hub.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.topic.unsubscribe(s.ch)
		s.hub.release(s.roomID, s.topic)
	})
}

// Closed reports whether the room was deleted after the subscription was
// made.
func (s *Subscription) Closed() bool {
	s.topic.mu.Lock()
	defer s.topic.mu.Unlock()
	return s.topic.closed
}

// Hub holds one topic per room. It implements table.Publisher.
type Hub struct {
	mu         sync.Mutex
	topics     map[string]*topic
	bufferSize int
}

// NewHub creates a hub keeping bufferSize events per room for replay.
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Hub{topics: make(map[string]*topic), bufferSize: bufferSize}
}

func (h *Hub) topic(roomID string) *topic {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[roomID]
	if !ok {
		t = newTopic(h.bufferSize)
		h.topics[roomID] = t
	}
	return t
}

func (h *Hub) release(roomID string, t *topic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[roomID] != t {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.events) == 0 && len(t.watchers) == 0 {
		delete(h.topics, roomID)
	}
}

// Publish stores ev and pushes it to the room's subscribers. A room-deleted
// event closes the topic after delivery.
func (h *Hub) Publish(ev table.Event) {
	t := h.topic(ev.RoomID)
	t.append(ev)

	if ev.Event == table.EventRoomDeleted {
		h.mu.Lock()
		if h.topics[ev.RoomID] == t {
			delete(h.topics, ev.RoomID)
		}
		h.mu.Unlock()
		t.close()
	}
}

// Subscribe follows roomID. Events with a sequence number above afterSeq
// that are still buffered are returned in Replay; a negative afterSeq skips
// the replay.
func (h *Hub) Subscribe(roomID string, afterSeq int64) *Subscription {
	t := h.topic(roomID)
	ch, replay := t.subscribe(afterSeq)
	return &Subscription{C: ch, Replay: replay, ch: ch, topic: t, hub: h, roomID: roomID}
}

// ReplayAfter returns the buffered events of roomID after seq.
func (h *Hub) ReplayAfter(roomID string, seq int64) []table.Event {
	h.mu.Lock()
	t, ok := h.topics[roomID]
	h.mu.Unlock()
	if !ok {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.after(seq)
}

// Rooms returns the number of rooms with a topic.
func (h *Hub) Rooms() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics)
}

var _ table.Publisher = (*Hub)(nil)
