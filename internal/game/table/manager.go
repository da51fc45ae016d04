package table

import (
	"errors"
	"sort"
	"sync"

	"github.com/coder/quartz"
	"github.com/rs/zerolog/log"

	"craps-server/internal/game"
	"craps-server/internal/game/craps"
	"craps-server/internal/pkg/id"
	"craps-server/internal/service"
)

// ErrRoomNotFound is returned for an unknown room ID.
var ErrRoomNotFound = errors.New("room not found")

// RoomInfo is a room in the lobby list.
type RoomInfo struct {
	ID      string      `json:"id"`
	Players int         `json:"players"`
	Host    int64       `json:"host"`
	Phase   craps.Phase `json:"phase"`
	Point   int         `json:"point"`
}

// Manager owns the rooms. A player sits in at most one room; joining
// another room leaves the previous one. Empty rooms are deleted.
type Manager struct {
	cfg    Config
	clock  quartz.Clock
	roller game.Roller
	pub    Publisher
	hooks  Hooks

	mu     sync.RWMutex
	tables map[string]*Table
	byUser map[int64]string
}

// NewManager creates a room manager.
func NewManager(cfg Config, clock quartz.Clock, roller game.Roller, pub Publisher, hooks Hooks) *Manager {
	return &Manager{
		cfg:    cfg,
		clock:  clock,
		roller: roller,
		pub:    pub,
		hooks:  hooks,
		tables: make(map[string]*Table),
		byUser: make(map[int64]string),
	}
}

// Join seats userID in roomID, creating the room when it does not exist.
// An empty roomID creates a new room with a generated code.
func (m *Manager) Join(roomID string, userID int64, name string, balance int64) (*Table, *Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if roomID == "" {
		roomID = id.RoomCode()
	}
	if prev, ok := m.byUser[userID]; ok && prev != roomID {
		m.leaveLocked(prev, userID)
	}

	t, ok := m.tables[roomID]
	if !ok {
		t = New(roomID, m.cfg, m.clock, m.roller, m.pub, m.hooks)
		t.Start()
		m.tables[roomID] = t
		log.Info().Str("room_id", roomID).Msg("Room created")
	}

	snap, err := t.Join(userID, name, balance)
	if err != nil {
		if t.Players() == 0 {
			m.deleteLocked(roomID)
		}
		return nil, nil, err
	}
	m.byUser[userID] = roomID
	return t, snap, nil
}

// Seat joins roomID and picks the starting balance: a rejoin keeps the
// seat, a player moving from another room carries that seat's balance and
// anyone else starts with load(). load is called without locks held.
func (m *Manager) Seat(roomID string, userID int64, name string, load func() (int64, error)) (*Table, *Snapshot, error) {
	var balance int64
	prev, seated := m.RoomOf(userID)
	switch {
	case seated && prev == roomID:
	case seated:
		res, err := m.Leave(prev, userID)
		if err != nil {
			return nil, nil, err
		}
		balance = res.Balance
	default:
		b, err := load()
		if err != nil {
			return nil, nil, err
		}
		balance = b
	}
	return m.Join(roomID, userID, name, balance)
}

// Leave unseats userID from roomID.
func (m *Manager) Leave(roomID string, userID int64) (LeaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[roomID]; !ok {
		return LeaveResult{}, ErrRoomNotFound
	}
	return m.leaveLocked(roomID, userID)
}

func (m *Manager) leaveLocked(roomID string, userID int64) (LeaveResult, error) {
	t, ok := m.tables[roomID]
	if !ok {
		delete(m.byUser, userID)
		return LeaveResult{}, nil
	}
	res, err := t.Leave(userID)
	if err != nil {
		return res, err
	}
	delete(m.byUser, userID)
	if res.Empty {
		m.deleteLocked(roomID)
	}
	return res, nil
}

func (m *Manager) deleteLocked(roomID string) {
	if t, ok := m.tables[roomID]; ok {
		t.Close()
		delete(m.tables, roomID)
		log.Info().Str("room_id", roomID).Msg("Room deleted")
	}
}

// Get returns the table of roomID.
func (m *Manager) Get(roomID string) (*Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return t, nil
}

// RoomOf returns the room userID is seated in.
func (m *Manager) RoomOf(userID int64) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	roomID, ok := m.byUser[userID]
	return roomID, ok
}

// SeatBalance returns the live balance of userID if they are seated.
func (m *Manager) SeatBalance(userID int64) (int64, bool) {
	roomID, ok := m.RoomOf(userID)
	if !ok {
		return 0, false
	}
	t, err := m.Get(roomID)
	if err != nil {
		return 0, false
	}
	p, ok := t.Snapshot().Player(userID)
	return p.Balance, ok
}

// List returns every room sorted by ID.
func (m *Manager) List() []RoomInfo {
	m.mu.RLock()
	tables := make([]*Table, 0, len(m.tables))
	for _, t := range m.tables {
		tables = append(tables, t)
	}
	m.mu.RUnlock()

	rooms := make([]RoomInfo, 0, len(tables))
	for _, t := range tables {
		snap := t.Snapshot()
		rooms = append(rooms, RoomInfo{
			ID:      snap.RoomID,
			Players: len(snap.Players),
			Host:    snap.Host,
			Phase:   snap.Round.Phase,
			Point:   snap.Round.Point,
		})
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms
}

// Count returns the number of rooms.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables)
}

// Adjust changes the seat balance of userID wherever they sit. It
// implements service.SeatWallet.
func (m *Manager) Adjust(userID, delta int64, entry service.LedgerEntry) (int64, bool, error) {
	roomID, ok := m.RoomOf(userID)
	if !ok {
		return 0, false, nil
	}
	t, err := m.Get(roomID)
	if err != nil {
		return 0, false, nil
	}
	return t.Adjust(userID, delta, entry)
}

// Set puts the seat balance of userID at an exact value wherever they sit.
func (m *Manager) Set(userID, balance int64, entry service.LedgerEntry) (int64, bool, error) {
	roomID, ok := m.RoomOf(userID)
	if !ok {
		return 0, false, nil
	}
	t, err := m.Get(roomID)
	if err != nil {
		return 0, false, nil
	}
	return t.Set(userID, balance, entry)
}

// Close unseats every player so balances and sessions are flushed, then
// stops all tables.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, roomID := range m.byUser {
		if _, err := m.leaveLocked(roomID, userID); err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Str("room_id", roomID).Msg("Failed to unseat player on shutdown")
		}
	}
	for roomID := range m.tables {
		m.deleteLocked(roomID)
	}
}

var _ service.SeatWallet = (*Manager)(nil)
