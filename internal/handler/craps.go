package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"craps-server/internal/game/craps"
	"craps-server/internal/game/table"
	"craps-server/internal/realtime"
	"craps-server/internal/service"
)

// Sender delivers messages to chats. *tele.Bot satisfies it.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// RoomID is the table of a Telegram chat.
func RoomID(chatID int64) string {
	return fmt.Sprintf("tg-%d", chatID)
}

// CrapsHandler runs one craps table per chat.
type CrapsHandler struct {
	rooms        *table.Manager
	hub          *realtime.Hub
	accounts     *service.AccountService
	historyLimit int
	sender       Sender

	mu       sync.Mutex
	watching map[string]*realtime.Subscription
}

// NewCrapsHandler creates a new CrapsHandler.
func NewCrapsHandler(rooms *table.Manager, hub *realtime.Hub, accounts *service.AccountService, historyLimit int) *CrapsHandler {
	return &CrapsHandler{
		rooms:        rooms,
		hub:          hub,
		accounts:     accounts,
		historyLimit: historyLimit,
		watching:     make(map[string]*realtime.Subscription),
	}
}

// SetSender sets where table announcements are posted.
func (h *CrapsHandler) SetSender(s Sender) {
	h.sender = s
}

func senderName(u *tele.User) string {
	if u.Username != "" {
		return u.Username
	}
	return displayName(u.FirstName, u.ID)
}

// chatTable returns the table of the current chat.
func (h *CrapsHandler) chatTable(c tele.Context) (*table.Table, error) {
	return h.rooms.Get(RoomID(c.Chat().ID))
}

// HandleCraps seats the sender at the chat's table, opening it if needed.
func (h *CrapsHandler) HandleCraps(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}
	ctx := context.Background()
	name := senderName(sender)
	roomID := RoomID(chat.ID)

	_, snap, err := h.rooms.Seat(roomID, sender.ID, name, func() (int64, error) {
		return h.accounts.LoadBalance(ctx, sender.ID, name, nil)
	})
	if err != nil {
		log.Warn().Err(err).Int64("user_id", sender.ID).Str("room_id", roomID).Msg("Failed to seat player")
		return c.Reply(ErrorMessage(err))
	}
	h.watch(chat, roomID)

	return c.Reply(FormatTable(snap)+"\n\nTap to bet "+strconv.FormatInt(QuickBetAmount, 10)+", or /bet <area> <amount>", BuildBetPanel())
}

var errUsage = errors.New("usage")

// parseBetArgs reads "<area> <amount>".
func parseBetArgs(args []string) (craps.Area, int64, error) {
	if len(args) < 2 {
		return craps.Area{}, 0, errUsage
	}
	area, err := craps.ParseArea(args[0])
	if err != nil {
		return craps.Area{}, 0, err
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount <= 0 {
		return craps.Area{}, 0, craps.ErrInvalidAmount
	}
	return area, amount, nil
}

// HandleBet handles /bet <area> <amount>.
func (h *CrapsHandler) HandleBet(c tele.Context) error {
	sender := c.Sender()
	if sender == nil || c.Chat() == nil {
		return nil
	}
	area, amount, err := parseBetArgs(c.Args())
	if err != nil {
		if errors.Is(err, errUsage) {
			return c.Reply("❌ Usage: /bet <area> <amount>\nExample: /bet passLine 50, /bet place6 30")
		}
		return c.Reply(ErrorMessage(err))
	}
	t, err := h.chatTable(c)
	if err != nil {
		return c.Reply(ErrorMessage(err))
	}
	balance, err := t.PlaceBet(sender.ID, area, amount, 0, 0)
	if err != nil {
		return c.Reply(ErrorMessage(err))
	}
	return c.Reply(fmt.Sprintf("✅ %s: %d\n💰 Balance: %d", AreaLabel(area), amount, balance))
}

// HandleRemove handles /remove <area> <amount>.
func (h *CrapsHandler) HandleRemove(c tele.Context) error {
	sender := c.Sender()
	if sender == nil || c.Chat() == nil {
		return nil
	}
	area, amount, err := parseBetArgs(c.Args())
	if err != nil {
		if errors.Is(err, errUsage) {
			return c.Reply("❌ Usage: /remove <area> <amount>")
		}
		return c.Reply(ErrorMessage(err))
	}
	t, err := h.chatTable(c)
	if err != nil {
		return c.Reply(ErrorMessage(err))
	}
	refund, balance, err := t.RemoveBet(sender.ID, area, amount)
	if err != nil {
		return c.Reply(ErrorMessage(err))
	}
	if refund == 0 {
		return c.Reply("🤷 Nothing to take down there")
	}
	return c.Reply(fmt.Sprintf("↩️ %s: %d returned\n💰 Balance: %d", AreaLabel(area), refund, balance))
}

// HandleRoll lets the shooter throw before the countdown ends. The result
// is announced by the table watcher.
func (h *CrapsHandler) HandleRoll(c tele.Context) error {
	sender := c.Sender()
	if sender == nil || c.Chat() == nil {
		return nil
	}
	t, err := h.chatTable(c)
	if err != nil {
		return c.Reply(ErrorMessage(err))
	}
	if _, err := t.Roll(sender.ID); err != nil {
		return c.Reply(ErrorMessage(err))
	}
	return nil
}

// HandleMyBets shows the sender's bets.
func (h *CrapsHandler) HandleMyBets(c tele.Context) error {
	sender := c.Sender()
	if sender == nil || c.Chat() == nil {
		return nil
	}
	msg, err := h.myBets(c, sender.ID)
	if err != nil {
		return c.Reply(ErrorMessage(err))
	}
	return c.Reply(msg)
}

func (h *CrapsHandler) myBets(c tele.Context, userID int64) (string, error) {
	t, err := h.chatTable(c)
	if err != nil {
		return "", err
	}
	p, ok := t.Snapshot().Player(userID)
	if !ok {
		return "", table.ErrNotSeated
	}
	return FormatBets(p.Bets) + fmt.Sprintf("\n💰 Balance: %d", p.Balance), nil
}

// HandleTable shows the table state.
func (h *CrapsHandler) HandleTable(c tele.Context) error {
	if c.Chat() == nil {
		return nil
	}
	t, err := h.chatTable(c)
	if err != nil {
		return c.Reply(ErrorMessage(err))
	}
	return c.Reply(FormatTable(t.Snapshot()), BuildBetPanel())
}

// HandleHistory lists recent rolls.
func (h *CrapsHandler) HandleHistory(c tele.Context) error {
	if c.Chat() == nil {
		return nil
	}
	t, err := h.chatTable(c)
	if err != nil {
		return c.Reply(ErrorMessage(err))
	}
	return c.Reply(FormatHistory(t.History(h.historyLimit)))
}

// HandleShooter handles /shooter accept|decline.
func (h *CrapsHandler) HandleShooter(c tele.Context) error {
	sender := c.Sender()
	if sender == nil || c.Chat() == nil {
		return nil
	}
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ Usage: /shooter accept|decline")
	}
	msg, err := h.shooter(c, sender.ID, args[0])
	if err != nil {
		return c.Reply(ErrorMessage(err))
	}
	return c.Reply(msg)
}

func (h *CrapsHandler) shooter(c tele.Context, userID int64, action string) (string, error) {
	t, err := h.chatTable(c)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(action) {
	case "accept":
		if err := t.AcceptShooter(userID); err != nil {
			return "", err
		}
		return "🎲 You have the dice! /roll when ready", nil
	case "decline":
		if err := t.DeclineShooter(userID); err != nil {
			return "", err
		}
		return "🙅 You passed the dice", nil
	default:
		return "❌ Usage: /shooter accept|decline", nil
	}
}

// HandleLeave unseats the sender.
func (h *CrapsHandler) HandleLeave(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}
	res, err := h.rooms.Leave(RoomID(chat.ID), sender.ID)
	if err != nil {
		return c.Reply(ErrorMessage(err))
	}
	msg := fmt.Sprintf("👋 You left the table\n💰 Balance: %d", res.Balance)
	if res.Refund > 0 {
		msg += fmt.Sprintf("\n↩️ Returned: %d", res.Refund)
	}
	if res.Forfeited > 0 {
		msg += fmt.Sprintf("\n💸 Forfeited: %d", res.Forfeited)
	}
	return c.Reply(msg)
}

// HandleCallback handles taps on the bet and shooter panels.
func (h *CrapsHandler) HandleCallback(c tele.Context) error {
	cb, sender := c.Callback(), c.Sender()
	if cb == nil || sender == nil || c.Chat() == nil {
		return nil
	}
	action, param := DecodeCallback(CrapsPrefix, cb.Data)

	respond := func(text string) error {
		return c.Respond(&tele.CallbackResponse{Text: text})
	}

	switch action {
	case "bet":
		area, err := craps.ParseArea(param)
		if err != nil {
			return respond(ErrorMessage(err))
		}
		t, err := h.chatTable(c)
		if err != nil {
			return respond(ErrorMessage(err))
		}
		balance, err := t.PlaceBet(sender.ID, area, QuickBetAmount, 0, 0)
		if err != nil {
			return respond(ErrorMessage(err))
		}
		return respond(fmt.Sprintf("✅ %s +%d | 💰 %d", AreaLabel(area), QuickBetAmount, balance))
	case "roll":
		t, err := h.chatTable(c)
		if err != nil {
			return respond(ErrorMessage(err))
		}
		if _, err := t.Roll(sender.ID); err != nil {
			return respond(ErrorMessage(err))
		}
		return respond("🎲 Rolling!")
	case "mybets":
		msg, err := h.myBets(c, sender.ID)
		if err != nil {
			return respond(ErrorMessage(err))
		}
		return c.Respond(&tele.CallbackResponse{Text: msg, ShowAlert: true})
	case "table":
		t, err := h.chatTable(c)
		if err != nil {
			return respond(ErrorMessage(err))
		}
		if err := c.Edit(FormatTable(t.Snapshot()), BuildBetPanel()); err != nil {
			log.Debug().Err(err).Msg("Failed to edit table message")
		}
		return respond("🔄")
	case "shooter":
		msg, err := h.shooter(c, sender.ID, param)
		if err != nil {
			return respond(ErrorMessage(err))
		}
		return respond(msg)
	default:
		return respond("")
	}
}

// watch posts the table's rolls and shooter offers to chat until the
// table is deleted.
func (h *CrapsHandler) watch(chat *tele.Chat, roomID string) {
	if h.sender == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	// A room deleted and reopened leaves a closed subscription until its
	// relay catches up; that one is replaced.
	if sub, ok := h.watching[roomID]; ok && !sub.Closed() {
		return
	}
	sub := h.hub.Subscribe(roomID, -1)
	h.watching[roomID] = sub
	go h.relay(chat, roomID, sub)
}

// StopWatching cancels every table watcher.
func (h *CrapsHandler) StopWatching() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID, sub := range h.watching {
		sub.Cancel()
		delete(h.watching, roomID)
	}
}

func (h *CrapsHandler) forget(roomID string, sub *realtime.Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watching[roomID] == sub {
		delete(h.watching, roomID)
	}
}

func (h *CrapsHandler) relay(chat *tele.Chat, roomID string, sub *realtime.Subscription) {
	defer h.forget(roomID, sub)

	r := &rollRelay{}
	for ev := range sub.C {
		if ev.Event == table.EventRoomDeleted {
			// A new /craps may reopen the room before C is drained.
			h.forget(roomID, sub)
		}
		for _, msg := range r.handle(ev) {
			h.post(chat, roomID, msg)
		}
	}
	for _, msg := range r.flush() {
		h.post(chat, roomID, msg)
	}
}

func (h *CrapsHandler) post(chat *tele.Chat, roomID string, msg announcement) {
	var opts []interface{}
	text := msg.text
	if msg.offer != 0 {
		name := fmt.Sprintf("User%d", msg.offer)
		if t, err := h.rooms.Get(roomID); err == nil {
			if p, ok := t.Snapshot().Player(msg.offer); ok {
				name = p.Name
			}
		}
		text = fmt.Sprintf("🎲 %s, the dice are yours. Take them?", name)
		opts = append(opts, BuildShooterPanel())
	}
	if _, err := h.sender.Send(chat, text, opts...); err != nil {
		log.Warn().Err(err).Int64("chat_id", chat.ID).Str("room_id", roomID).Msg("Failed to post table update")
	}
}

// announcement is one chat message produced from table events. A non-zero
// offer asks that player to become the shooter.
type announcement struct {
	text  string
	offer int64
}

// rollRelay folds the events of one roll into a single announcement.
type rollRelay struct {
	roll *craps.Roll
	wins []table.PlayerWinData
}

func (r *rollRelay) flush() []announcement {
	if r.roll == nil {
		return nil
	}
	msg := announcement{text: FormatRoll(*r.roll, r.wins)}
	r.roll, r.wins = nil, nil
	return []announcement{msg}
}

func (r *rollRelay) handle(ev table.Event) []announcement {
	switch ev.Event {
	case table.EventRollHistory:
		out := r.flush()
		if data, ok := ev.Data.(table.RollHistoryData); ok {
			roll := data.Roll
			r.roll = &roll
		}
		return out
	case table.EventPlayerWin:
		if data, ok := ev.Data.(table.PlayerWinData); ok && r.roll != nil {
			r.wins = append(r.wins, data)
		}
	case table.EventShooterOffer:
		out := r.flush()
		if data, ok := ev.Data.(table.ShooterData); ok && data.Offer != 0 {
			out = append(out, announcement{offer: data.Offer})
		}
		return out
	case table.EventGameState, table.EventRoomDeleted:
		return r.flush()
	}
	return nil
}
