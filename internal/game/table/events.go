package table

import (
	"craps-server/internal/game/craps"
)

// Event names published on a room topic.
const (
	EventGameState            = "game-state"
	EventRollHistory          = "roll-history"
	EventPlayerUpdate         = "player-update"
	EventPlayerLeft           = "player-left"
	EventHostMigration        = "host-migration"
	EventRoomDeleted          = "room-deleted"
	EventPlayerWin            = "player-win"
	EventSessionStats         = "session-stats"
	EventShooterOffer         = "shooter-offer"
	EventShooterAccepted      = "shooter-accepted"
	EventShooterDeclined      = "shooter-declined"
	EventRequestShooterUpdate = "request-shooter-update"
)

// Event is one broadcast of a room. Seq increases by one for every event
// of the room, so a client can detect gaps and replay after reconnecting.
type Event struct {
	Seq      int64  `json:"seq"`
	Event    string `json:"event"`
	RoomID   string `json:"room_id"`
	ServerTS int64  `json:"server_ts"`
	Data     any    `json:"data"`
}

// Publisher receives every event of a table. Publish is called with the
// table lock held and must not block or call back into the table.
type Publisher interface {
	Publish(ev Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ev Event)

// Publish calls f(ev).
func (f PublisherFunc) Publish(ev Event) { f(ev) }

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}

// PlayerView is a seat as seen by every player of the room.
type PlayerView struct {
	UserID    int64        `json:"user_id"`
	Name      string       `json:"name"`
	Balance   int64        `json:"balance"`
	Bets      []craps.Bet  `json:"bets"`
	Connected bool         `json:"connected"`
	IsHost    bool         `json:"is_host"`
	IsShooter bool         `json:"is_shooter"`
	Session   SessionStats `json:"session"`
}

// Snapshot is the full state of a table.
type Snapshot struct {
	RoomID          string           `json:"room_id"`
	Seq             int64            `json:"seq"`
	Round           craps.RoundState `json:"round"`
	PuckOn          bool             `json:"puck_on"`
	BettingLocked   bool             `json:"betting_locked"`
	Resolving       bool             `json:"resolving"`
	Countdown       int              `json:"countdown"`
	BettingDuration int              `json:"betting_duration"`
	RollNumber      int64            `json:"roll_number"`
	Host            int64            `json:"host"`
	Shooter         int64            `json:"shooter"`
	ShooterOffer    int64            `json:"shooter_offer"`
	LastRoll        *craps.Roll      `json:"last_roll,omitempty"`
	Players         []PlayerView     `json:"players"`
}

// Player returns the view of userID, if seated.
func (s *Snapshot) Player(userID int64) (PlayerView, bool) {
	for _, p := range s.Players {
		if p.UserID == userID {
			return p, true
		}
	}
	return PlayerView{}, false
}

// RollHistoryData is the payload of a roll-history event.
type RollHistoryData struct {
	Roll   craps.Roll         `json:"roll"`
	Recent []craps.Roll       `json:"recent"`
	Stats  craps.HistoryStats `json:"stats"`
}

// PlayerLeftData is the payload of a player-left event.
type PlayerLeftData struct {
	UserID    int64  `json:"user_id"`
	Name      string `json:"name"`
	Refund    int64  `json:"refund"`
	Forfeited int64  `json:"forfeited"`
}

// HostMigrationData is the payload of a host-migration event.
type HostMigrationData struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// RoomDeletedData is the payload of a room-deleted event.
type RoomDeletedData struct {
	RoomID string `json:"room_id"`
}

// PlayerWinData is the payload of a player-win event.
type PlayerWinData struct {
	UserID   int64              `json:"user_id"`
	Name     string             `json:"name"`
	Payout   int64              `json:"payout"`
	Net      int64              `json:"net"`
	Balance  int64              `json:"balance"`
	Outcomes []craps.BetOutcome `json:"outcomes"`
}

// SessionStatsData is the payload of a session-stats event.
type SessionStatsData struct {
	UserID  int64        `json:"user_id"`
	Session SessionStats `json:"session"`
}

// ShooterData is the payload of the shooter events.
type ShooterData struct {
	UserID  int64 `json:"user_id,omitempty"`
	Shooter int64 `json:"shooter"`
	Offer   int64 `json:"offer"`
}
