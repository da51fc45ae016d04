package httptransport

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"craps-server/internal/game/craps"
	"craps-server/internal/game/table"
	"craps-server/internal/realtime"
)

// BalanceLoader seats players with their stored balance.
type BalanceLoader interface {
	LoadBalance(ctx context.Context, userID int64, username string, local *int64) (int64, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RoomHandlers serves the table endpoints.
type RoomHandlers struct {
	rooms        *table.Manager
	hub          *realtime.Hub
	balances     BalanceLoader
	realtime     bool
	historyLimit int
}

// NewRoomHandlers creates the room handlers. realtimeEnabled gates the
// websocket endpoint.
func NewRoomHandlers(rooms *table.Manager, hub *realtime.Hub, balances BalanceLoader, realtimeEnabled bool, historyLimit int) *RoomHandlers {
	if historyLimit <= 0 {
		historyLimit = 20
	}
	return &RoomHandlers{
		rooms:        rooms,
		hub:          hub,
		balances:     balances,
		realtime:     realtimeEnabled,
		historyLimit: historyLimit,
	}
}

func (h *RoomHandlers) table(w http.ResponseWriter, r *http.Request) (*table.Table, bool) {
	t, err := h.rooms.Get(chi.URLParam(r, "roomID"))
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}
	return t, true
}

func (h *RoomHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, map[string]any{"rooms": h.rooms.List()})
	}
}

type joinRequest struct {
	RoomID       string `json:"room_id"`
	UserID       int64  `json:"user_id"`
	Name         string `json:"name"`
	LocalBalance *int64 `json:"local_balance"`
}

// Join seats a player, creating the room when needed. A player moving from
// another room carries the balance of the seat they leave.
func (h *RoomHandlers) Join() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req joinRequest
		if err := decodeJSON(r, &req); err != nil || req.UserID <= 0 {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}

		t, snap, err := h.rooms.Seat(req.RoomID, req.UserID, req.Name, func() (int64, error) {
			return h.balances.LoadBalance(r.Context(), req.UserID, req.Name, req.LocalBalance)
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		p, _ := snap.Player(req.UserID)
		writeOK(w, map[string]any{"room_id": t.ID(), "balance": p.Balance, "state": snap})
	}
}

type userRequest struct {
	UserID int64 `json:"user_id"`
}

func (h *RoomHandlers) Leave() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req userRequest
		if err := decodeJSON(r, &req); err != nil || req.UserID <= 0 {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		res, err := h.rooms.Leave(chi.URLParam(r, "roomID"), req.UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeOK(w, map[string]any{
			"balance":      res.Balance,
			"refund":       res.Refund,
			"forfeited":    res.Forfeited,
			"room_deleted": res.Empty,
		})
	}
}

func (h *RoomHandlers) Game() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := h.table(w, r)
		if !ok {
			return
		}
		writeOK(w, map[string]any{"state": t.Snapshot()})
	}
}

func (h *RoomHandlers) History() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := h.table(w, r)
		if !ok {
			return
		}
		rolls, stats := t.History(ParseLimit(r, h.historyLimit, 200))
		writeOK(w, map[string]any{"rolls": rolls, "stats": stats})
	}
}

type betRequest struct {
	UserID int64   `json:"user_id"`
	Area   string  `json:"area"`
	Amount int64   `json:"amount"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

func (h *RoomHandlers) decodeBet(w http.ResponseWriter, r *http.Request) (*betRequest, craps.Area, bool) {
	var req betRequest
	if err := decodeJSON(r, &req); err != nil || req.UserID <= 0 {
		WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
		return nil, craps.Area{}, false
	}
	area, err := craps.ParseArea(req.Area)
	if err != nil {
		writeServiceError(w, r, err)
		return nil, craps.Area{}, false
	}
	return &req, area, true
}

func (h *RoomHandlers) PlaceBet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := h.table(w, r)
		if !ok {
			return
		}
		req, area, ok := h.decodeBet(w, r)
		if !ok {
			return
		}
		balance, err := t.PlaceBet(req.UserID, area, req.Amount, req.X, req.Y)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeOK(w, map[string]any{"area": area, "balance": balance})
	}
}

func (h *RoomHandlers) RemoveBet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := h.table(w, r)
		if !ok {
			return
		}
		req, area, ok := h.decodeBet(w, r)
		if !ok {
			return
		}
		refund, balance, err := t.RemoveBet(req.UserID, area, req.Amount)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeOK(w, map[string]any{"area": area, "refund": refund, "balance": balance})
	}
}

func (h *RoomHandlers) Roll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := h.table(w, r)
		if !ok {
			return
		}
		var req userRequest
		if err := decodeJSON(r, &req); err != nil || req.UserID <= 0 {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		report, err := t.Roll(req.UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		body := map[string]any{"roll": report.Roll}
		if p, ok := report.Player(req.UserID); ok {
			body["result"] = p
		}
		writeOK(w, body)
	}
}

type shooterRequest struct {
	UserID int64  `json:"user_id"`
	Action string `json:"action"`
}

func (h *RoomHandlers) Shooter() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := h.table(w, r)
		if !ok {
			return
		}
		var req shooterRequest
		if err := decodeJSON(r, &req); err != nil || req.UserID <= 0 {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		var err error
		switch req.Action {
		case "accept":
			err = t.AcceptShooter(req.UserID)
		case "decline":
			err = t.DeclineShooter(req.UserID)
		case "request":
			err = t.RequestShooterUpdate()
		default:
			WriteHTTPError(w, http.StatusBadRequest, "invalid_action")
			return
		}
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		snap := t.Snapshot()
		writeOK(w, map[string]any{"shooter": snap.Shooter, "offer": snap.ShooterOffer})
	}
}

type settingsRequest struct {
	UserID          int64 `json:"user_id"`
	BettingDuration int   `json:"betting_duration"`
}

func (h *RoomHandlers) Settings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := h.table(w, r)
		if !ok {
			return
		}
		var req settingsRequest
		if err := decodeJSON(r, &req); err != nil || req.UserID <= 0 {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if err := t.SetBettingDuration(req.UserID, req.BettingDuration); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeOK(w, map[string]any{"betting_duration": req.BettingDuration})
	}
}

// Websocket upgrades a seated player's connection. after_seq replays the
// buffered events after that sequence number; without it only live events
// are sent.
func (h *RoomHandlers) Websocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.realtime {
			WriteHTTPError(w, http.StatusServiceUnavailable, "realtime_unavailable")
			return
		}
		t, ok := h.table(w, r)
		if !ok {
			return
		}
		userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
		if err != nil || !t.Seated(userID) {
			WriteHTTPError(w, http.StatusNotFound, "not_seated")
			return
		}
		afterSeq := int64(-1)
		if v := r.URL.Query().Get("after_seq"); v != "" {
			if afterSeq, err = strconv.ParseInt(v, 10, 64); err != nil {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_after_seq")
				return
			}
		}

		// The room may be deleted between the lookup and the subscription.
		roomID := t.ID()
		sub := h.hub.Subscribe(roomID, afterSeq)
		if sub.Closed() || !t.Seated(userID) {
			sub.Cancel()
			WriteHTTPError(w, http.StatusNotFound, "not_seated")
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			sub.Cancel()
			log.Warn().Err(err).Str("room_id", roomID).Int64("user_id", userID).Msg("Websocket upgrade failed")
			return
		}

		conn := realtime.NewConn(ws, roomID, userID, t, func() error {
			_, err := h.rooms.Leave(roomID, userID)
			return err
		})
		log.Info().Str("room_id", roomID).Int64("user_id", userID).Int64("after_seq", afterSeq).Msg("Realtime client connected")
		conn.Serve(sub)
		log.Info().Str("room_id", roomID).Int64("user_id", userID).Msg("Realtime client disconnected")
	}
}
