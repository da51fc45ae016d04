package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"craps-server/internal/game/craps"
	"craps-server/internal/game/table"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	sendBuffer = 256
)

// ErrSendBufferFull is returned when a client does not keep up.
var ErrSendBufferFull = errors.New("connection send buffer full")

// Actions are the table operations a connected player can perform.
// *table.Table satisfies it.
type Actions interface {
	PlaceBet(userID int64, area craps.Area, amount int64, x, y float64) (int64, error)
	RemoveBet(userID int64, area craps.Area, amount int64) (int64, int64, error)
	Roll(userID int64) (*table.RollReport, error)
	AcceptShooter(userID int64) error
	DeclineShooter(userID int64) error
	RequestShooterUpdate() error
	SetConnected(userID int64, connected bool) error
}

var _ Actions = (*table.Table)(nil)

// Conn is one player's websocket connection to a room.
type Conn struct {
	ws      *websocket.Conn
	send    chan any
	roomID  string
	userID  int64
	actions Actions
	leave   func() error

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConn wraps an upgraded websocket. leave is called for a leave message.
func NewConn(ws *websocket.Conn, roomID string, userID int64, actions Actions, leave func() error) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		ws:      ws,
		send:    make(chan any, sendBuffer),
		roomID:  roomID,
		userID:  userID,
		actions: actions,
		leave:   leave,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Serve pumps sub to the client and client messages to the table until
// either side goes away. It blocks.
func (c *Conn) Serve(sub *Subscription) {
	defer sub.Cancel()
	if err := c.actions.SetConnected(c.userID, true); err != nil {
		log.Debug().Err(err).Str("room_id", c.roomID).Int64("user_id", c.userID).Msg("Mark connected failed")
	}
	defer func() {
		_ = c.actions.SetConnected(c.userID, false)
	}()

	go c.writePump()
	go c.forward(sub)
	c.readPump()
}

// forward copies room events into the send queue.
func (c *Conn) forward(sub *Subscription) {
	for _, ev := range sub.Replay {
		if c.enqueue(ev) != nil {
			return
		}
	}
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				// Room deleted.
				_ = c.Close()
				return
			}
			if c.enqueue(ev) != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Conn) enqueue(msg any) error {
	select {
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
	}
	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		log.Warn().Str("room_id", c.roomID).Int64("user_id", c.userID).Msg("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrSendBufferFull
	}
}

// Close shuts the connection down. The write pump sends a close frame.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
	})
	return nil
}

func (c *Conn) readPump() {
	// The write pump closes the socket once its queue is flushed.
	defer func() { _ = c.Close() }()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg ClientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("room_id", c.roomID).Int64("user_id", c.userID).Msg("WebSocket error")
			}
			return
		}
		reply, stop := c.handle(&msg)
		if c.enqueue(reply) != nil || stop {
			return
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Str("room_id", c.roomID).Int64("user_id", c.userID).Msg("Failed to write message")
				_ = c.Close()
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}

		case <-c.ctx.Done():
			c.drain()
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// drain flushes queued messages before the close frame.
func (c *Conn) drain() {
	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// handle runs one client message and returns the reply. stop is set when
// the player left.
func (c *Conn) handle(msg *ClientMessage) (reply Reply, stop bool) {
	reply = Reply{Type: ReplyAck, RequestID: msg.RequestID, Action: msg.Type}
	fail := func(code string, err error) (Reply, bool) {
		reply.Type = ReplyError
		reply.Code = code
		if err != nil {
			reply.Message = err.Error()
		}
		return reply, false
	}

	var err error
	switch msg.Type {
	case MsgPlaceBet, MsgRemoveBet:
		var data BetData
		if jerr := json.Unmarshal(msg.Data, &data); jerr != nil {
			return fail("invalid_message", jerr)
		}
		area, perr := craps.ParseArea(data.Area)
		if perr != nil {
			return fail(table.ErrorCode(perr), perr)
		}
		if msg.Type == MsgPlaceBet {
			var balance int64
			balance, err = c.actions.PlaceBet(c.userID, area, data.Amount, data.X, data.Y)
			reply.Balance = &balance
		} else {
			var refund, balance int64
			refund, balance, err = c.actions.RemoveBet(c.userID, area, data.Amount)
			reply.Balance, reply.Refund = &balance, &refund
		}
		if err != nil {
			reply.Balance, reply.Refund = nil, nil
		}
	case MsgRoll:
		_, err = c.actions.Roll(c.userID)
	case MsgAcceptShooter:
		err = c.actions.AcceptShooter(c.userID)
	case MsgDeclineShooter:
		err = c.actions.DeclineShooter(c.userID)
	case MsgRequestShooterUpdate:
		err = c.actions.RequestShooterUpdate()
	case MsgLeave:
		if err = c.leave(); err == nil {
			return reply, true
		}
	default:
		return fail("unknown_message", nil)
	}

	if err != nil {
		code := table.ErrorCode(err)
		if code == "" {
			log.Error().Err(err).Str("room_id", c.roomID).Int64("user_id", c.userID).Str("type", msg.Type).Msg("Action failed")
			code = "internal_error"
		}
		return fail(code, err)
	}
	return reply, false
}
