package realtime

import "encoding/json"

// Client message types.
const (
	MsgPlaceBet             = "place_bet"
	MsgRemoveBet            = "remove_bet"
	MsgRoll                 = "roll"
	MsgAcceptShooter        = "accept_shooter"
	MsgDeclineShooter       = "decline_shooter"
	MsgRequestShooterUpdate = "request_shooter_update"
	MsgLeave                = "leave"
)

// Reply types sent in answer to a client message.
const (
	ReplyAck   = "ack"
	ReplyError = "error"
)

// ClientMessage is a frame sent by a player.
type ClientMessage struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// BetData is the payload of place_bet and remove_bet.
type BetData struct {
	Area   string  `json:"area"`
	Amount int64   `json:"amount"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
}

// Reply answers one client message. Events are sent as table.Event frames,
// which carry a seq; replies carry a type instead.
type Reply struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Action    string `json:"action"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	Balance   *int64 `json:"balance,omitempty"`
	Refund    *int64 `json:"refund,omitempty"`
}
