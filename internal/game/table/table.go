// Package table runs multiplayer craps rooms: seats, host and shooter
// rotation, the betting countdown and the authoritative dice rolls.
package table

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog/log"

	"craps-server/internal/game"
	"craps-server/internal/game/craps"
	"craps-server/internal/model"
	"craps-server/internal/pkg/id"
	"craps-server/internal/service"
)

// Table errors.
var (
	ErrTableFull       = errors.New("table is full")
	ErrTableClosed     = errors.New("table is closed")
	ErrNotSeated       = errors.New("player is not seated")
	ErrNotShooter      = errors.New("only the shooter can roll")
	ErrNoShooterOffer  = errors.New("no shooter offer for this player")
	ErrNotHost         = errors.New("only the host can change settings")
	ErrInvalidDuration = errors.New("betting duration out of range")
)

// Betting duration bounds a host may choose, in seconds.
const (
	MinBettingSeconds = 5
	MaxBettingSeconds = 300
)

// Config holds table settings.
type Config struct {
	BettingDuration time.Duration
	BroadcastEvery  int // ticks between countdown snapshots
	HistoryLimit    int
	MaxSeats        int
}

func (c Config) withDefaults() Config {
	if c.BettingDuration < time.Second {
		c.BettingDuration = 30 * time.Second
	}
	if c.BroadcastEvery <= 0 {
		c.BroadcastEvery = 5
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 20
	}
	if c.MaxSeats <= 0 {
		c.MaxSeats = 8
	}
	return c
}

// SessionStats are a seat's results since it sat down.
type SessionStats struct {
	Rolls      int64 `json:"rolls"`
	BetsPlaced int64 `json:"bets_placed"`
	Wagered    int64 `json:"wagered"`
	Won        int64 `json:"won"`
	Net        int64 `json:"net"`
	BiggestWin int64 `json:"biggest_win"`
}

type seat struct {
	userID    int64
	name      string
	balance   int64
	joinedAt  time.Time
	connected bool
	sessionID string
	session   SessionStats
	ledger    *craps.Ledger

	// Placed since the last roll, for lifetime stats.
	betsSinceRoll  int64
	wagerSinceRoll int64
}

// Table is one craps room. All state is guarded by mu; the countdown and
// every player action go through it, so exactly one roll is resolved at a
// time.
type Table struct {
	id     string
	cfg    Config
	clock  quartz.Clock
	roller game.Roller
	pub    Publisher
	hooks  Hooks

	mu            sync.Mutex
	round         craps.RoundState
	history       *craps.History
	seats         map[int64]*seat
	order         []int64 // join order
	host          int64
	shooter       int64
	offer         int64
	candidates    []int64 // remaining shooter offers
	bettingLocked bool
	resolving     bool
	remaining     int
	rollNumber    int64
	seq           int64
	closed        bool
	effects       []func()

	cancel context.CancelFunc
}

// New creates a table. Call Start to run the countdown.
func New(roomID string, cfg Config, clock quartz.Clock, roller game.Roller, pub Publisher, hooks Hooks) *Table {
	cfg = cfg.withDefaults()
	if pub == nil {
		pub = nopPublisher{}
	}
	if hooks == nil {
		hooks = NopHooks{}
	}
	return &Table{
		id:        roomID,
		cfg:       cfg,
		clock:     clock,
		roller:    roller,
		pub:       pub,
		hooks:     hooks,
		round:     craps.NewRoundState(),
		history:   craps.NewHistory(),
		seats:     make(map[int64]*seat),
		remaining: seconds(cfg.BettingDuration),
	}
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}

// ID returns the room ID.
func (t *Table) ID() string {
	return t.id
}

// Start runs the betting countdown until Close.
func (t *Table) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	t.clock.TickerFunc(ctx, time.Second, func() error {
		t.tick()
		return nil
	}, "table", "countdown")
}

// Close stops the countdown. A closed table rejects every action.
func (t *Table) Close() {
	t.mu.Lock()
	t.closed = true
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// do runs fn under the table lock, then runs the hooks fn queued once the
// lock is released.
func (t *Table) do(fn func() error) error {
	t.mu.Lock()
	var err error
	if t.closed {
		err = ErrTableClosed
	} else {
		err = fn()
	}
	fx := t.effects
	t.effects = nil
	t.mu.Unlock()

	for _, f := range fx {
		f()
	}
	return err
}

func (t *Table) later(f func()) {
	t.effects = append(t.effects, f)
}

func (t *Table) publish(event string, data any) {
	t.seq++
	t.pub.Publish(Event{
		Seq:      t.seq,
		Event:    event,
		RoomID:   t.id,
		ServerTS: t.clock.Now().UnixMilli(),
		Data:     data,
	})
}

func (t *Table) status() craps.Status {
	return craps.Status{Round: t.round, BettingLocked: t.bettingLocked, Resolving: t.resolving}
}

func (t *Table) seat(userID int64) (*seat, error) {
	s, ok := t.seats[userID]
	if !ok {
		return nil, ErrNotSeated
	}
	return s, nil
}

func (t *Table) syncBalance(s *seat, entries ...service.LedgerEntry) {
	userID, balance := s.userID, s.balance
	t.later(func() { t.hooks.BalanceChanged(userID, balance, entries) })
}

// Join seats a player with the given balance. A player already seated keeps
// the table balance and is marked connected.
func (t *Table) Join(userID int64, name string, balance int64) (*Snapshot, error) {
	var snap *Snapshot
	err := t.do(func() error {
		if s, ok := t.seats[userID]; ok {
			s.connected = true
			if name != "" {
				s.name = name
			}
			t.publish(EventPlayerUpdate, t.view(s))
			snap = t.snapshot()
			return nil
		}
		if len(t.seats) >= t.cfg.MaxSeats {
			return ErrTableFull
		}

		s := &seat{
			userID:    userID,
			name:      name,
			balance:   balance,
			joinedAt:  t.clock.Now(),
			connected: true,
			sessionID: id.New(),
			ledger:    craps.NewLedger(),
		}
		t.seats[userID] = s
		t.order = append(t.order, userID)
		if t.host == 0 {
			t.host = userID
		}
		if t.shooter == 0 && t.offer == 0 {
			t.shooter = userID
		}

		log.Info().Str("room_id", t.id).Int64("user_id", userID).Int64("balance", balance).Msg("Player joined table")

		t.publish(EventPlayerUpdate, t.view(s))
		snap = t.snapshot()
		t.publish(EventGameState, snap)
		return nil
	})
	return snap, err
}

// LeaveResult describes a departure.
type LeaveResult struct {
	Balance   int64
	Refund    int64
	Forfeited int64
	Empty     bool // the table has no players left
}

// Leave unseats a player. Bets that can be taken down are refunded, the
// rest are forfeited. The host and shooter roles move on.
func (t *Table) Leave(userID int64) (LeaveResult, error) {
	var res LeaveResult
	err := t.do(func() error {
		s, err := t.seat(userID)
		if err != nil {
			return err
		}

		refund, forfeited := s.ledger.Withdraw(t.round)
		s.balance += refund
		s.session.Net -= forfeited
		res = LeaveResult{Balance: s.balance, Refund: refund, Forfeited: forfeited}

		delete(t.seats, userID)
		for i, uid := range t.order {
			if uid == userID {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}

		var entries []service.LedgerEntry
		if forfeited > 0 {
			entries = append(entries, service.LedgerEntry{Amount: -forfeited, Type: model.TxTypeCrapsBet, Description: "bets forfeited on leave"})
		}
		t.syncBalance(s, entries...)

		report := t.seatReport(s)
		t.later(func() { t.hooks.SeatClosed(report) })

		t.publish(EventPlayerLeft, PlayerLeftData{UserID: userID, Name: s.name, Refund: refund, Forfeited: forfeited})

		log.Info().Str("room_id", t.id).Int64("user_id", userID).Int64("forfeited", forfeited).Msg("Player left table")

		if len(t.seats) == 0 {
			res.Empty = true
			t.closed = true
			t.publish(EventRoomDeleted, RoomDeletedData{RoomID: t.id})
			if t.cancel != nil {
				t.cancel()
			}
			return nil
		}

		if t.host == userID {
			t.host = t.order[0]
			t.publish(EventHostMigration, HostMigrationData{From: userID, To: t.host})
		}
		switch userID {
		case t.shooter:
			t.shooter = 0
			t.startOffers(userID)
		case t.offer:
			t.nextOffer()
		}
		t.publish(EventGameState, t.snapshot())
		return nil
	})
	return res, err
}

// SetConnected flags a seat's realtime connection.
func (t *Table) SetConnected(userID int64, connected bool) error {
	return t.do(func() error {
		s, err := t.seat(userID)
		if err != nil {
			return err
		}
		if s.connected != connected {
			s.connected = connected
			t.publish(EventPlayerUpdate, t.view(s))
		}
		return nil
	})
}

// PlaceBet puts chips on area and returns the new balance.
func (t *Table) PlaceBet(userID int64, area craps.Area, amount int64, x, y float64) (int64, error) {
	var balance int64
	err := t.do(func() error {
		s, err := t.seat(userID)
		if err != nil {
			return err
		}
		debit, err := s.ledger.Place(t.status(), area, amount, s.balance, x, y)
		if err != nil {
			return err
		}
		s.balance -= debit
		s.session.BetsPlaced++
		s.session.Wagered += amount
		s.betsSinceRoll++
		s.wagerSinceRoll += amount
		balance = s.balance

		t.syncBalance(s)
		t.publish(EventPlayerUpdate, t.view(s))
		return nil
	})
	return balance, err
}

// RemoveBet takes chips off area and returns the refund and new balance.
func (t *Table) RemoveBet(userID int64, area craps.Area, amount int64) (refund, balance int64, err error) {
	err = t.do(func() error {
		s, err := t.seat(userID)
		if err != nil {
			return err
		}
		refund, err = s.ledger.Remove(t.status(), area, amount)
		if err != nil {
			return err
		}
		balance = s.balance
		if refund == 0 {
			return nil
		}
		s.balance += refund
		balance = s.balance

		t.syncBalance(s)
		t.publish(EventPlayerUpdate, t.view(s))
		return nil
	})
	return refund, balance, err
}

// Adjust credits or debits a seated player outside of play, such as a
// daily bonus. It reports seated=false without changes for other users.
func (t *Table) Adjust(userID, delta int64, entry service.LedgerEntry) (balance int64, seated bool, err error) {
	err = t.do(func() error {
		s, ok := t.seats[userID]
		if !ok {
			return nil
		}
		seated = true
		if s.balance+delta < 0 {
			balance = s.balance
			return service.ErrInsufficientBalance
		}
		s.balance += delta
		balance = s.balance

		t.syncBalance(s, entry)
		t.publish(EventPlayerUpdate, t.view(s))
		return nil
	})
	if errors.Is(err, ErrTableClosed) {
		return 0, false, nil
	}
	return balance, seated, err
}

// Set puts a seated player's balance at an exact value, recording the
// difference as entry.Amount. It reports seated=false without changes for
// other users.
func (t *Table) Set(userID, balance int64, entry service.LedgerEntry) (int64, bool, error) {
	var seated bool
	err := t.do(func() error {
		s, ok := t.seats[userID]
		if !ok {
			return nil
		}
		seated = true
		entry.Amount = balance - s.balance
		s.balance = balance

		t.syncBalance(s, entry)
		t.publish(EventPlayerUpdate, t.view(s))
		return nil
	})
	if errors.Is(err, ErrTableClosed) {
		return 0, false, nil
	}
	return balance, seated, err
}

// Roll throws the dice for the shooter.
func (t *Table) Roll(userID int64) (*RollReport, error) {
	var report *RollReport
	err := t.do(func() error {
		if _, err := t.seat(userID); err != nil {
			return err
		}
		if t.shooter != userID {
			return ErrNotShooter
		}
		report = t.roll()
		return nil
	})
	return report, err
}

// SetBettingDuration changes the countdown length. Host only.
func (t *Table) SetBettingDuration(userID int64, secs int) error {
	return t.do(func() error {
		if t.host != userID {
			return ErrNotHost
		}
		if secs < MinBettingSeconds || secs > MaxBettingSeconds {
			return ErrInvalidDuration
		}
		t.cfg.BettingDuration = time.Duration(secs) * time.Second
		t.remaining = min(t.remaining, secs)
		t.publish(EventGameState, t.snapshot())
		return nil
	})
}

// AcceptShooter takes the dice after an offer.
func (t *Table) AcceptShooter(userID int64) error {
	return t.do(func() error {
		if t.offer == 0 || t.offer != userID {
			return ErrNoShooterOffer
		}
		t.shooter = userID
		t.offer = 0
		t.candidates = nil
		t.publish(EventShooterAccepted, t.shooterData(userID))
		return nil
	})
}

// DeclineShooter passes the offer to the next player.
func (t *Table) DeclineShooter(userID int64) error {
	return t.do(func() error {
		if t.offer == 0 || t.offer != userID {
			return ErrNoShooterOffer
		}
		t.publish(EventShooterDeclined, t.shooterData(userID))
		t.nextOffer()
		return nil
	})
}

// RequestShooterUpdate republishes who holds the dice.
func (t *Table) RequestShooterUpdate() error {
	return t.do(func() error {
		t.publish(EventRequestShooterUpdate, t.shooterData(0))
		return nil
	})
}

func (t *Table) shooterData(userID int64) ShooterData {
	return ShooterData{UserID: userID, Shooter: t.shooter, Offer: t.offer}
}

// startOffers queues a shooter offer for every seat, starting after the
// seat that gave up the dice and ending with it.
func (t *Table) startOffers(after int64) {
	t.candidates = t.candidates[:0]
	start := 0
	for i, uid := range t.order {
		if uid == after {
			start = i + 1
			break
		}
	}
	for i := range t.order {
		t.candidates = append(t.candidates, t.order[(start+i)%len(t.order)])
	}
	t.nextOffer()
}

func (t *Table) nextOffer() {
	t.offer = 0
	for len(t.candidates) > 0 {
		next := t.candidates[0]
		t.candidates = t.candidates[1:]
		if _, ok := t.seats[next]; ok {
			t.offer = next
			t.publish(EventShooterOffer, t.shooterData(next))
			return
		}
	}
	// Nobody took the dice; the countdown keeps rolling.
	t.publish(EventRequestShooterUpdate, t.shooterData(0))
}

func (t *Table) tick() {
	_ = t.do(func() error {
		if len(t.seats) == 0 {
			return nil
		}
		t.remaining--
		if t.remaining <= 0 {
			t.roll()
			return nil
		}
		if t.remaining%t.cfg.BroadcastEvery == 0 {
			t.publish(EventGameState, t.snapshot())
		}
		return nil
	})
}

// roll resolves one throw for every seat. Called with mu held.
func (t *Table) roll() *RollReport {
	t.bettingLocked = true
	t.resolving = true
	defer func() {
		t.bettingLocked = false
		t.resolving = false
		t.remaining = seconds(t.cfg.BettingDuration)
	}()

	dice := t.roller.Roll()
	next, out, err := craps.Advance(t.round, dice)
	if err != nil {
		log.Error().Err(err).Str("room_id", t.id).Ints("dice", dice[:]).Msg("Roller produced invalid dice")
		return nil
	}

	t.rollNumber++
	roll := craps.NewRoll(t.rollNumber, out, t.clock.Now())
	report := &RollReport{RoomID: t.id, Roll: roll, Outcome: out, Shooter: t.shooter}

	for _, uid := range t.order {
		s := t.seats[uid]
		if s.ledger.Len() == 0 {
			s.betsSinceRoll, s.wagerSinceRoll = 0, 0
			continue
		}

		res := settle(s, s.ledger.Settle(out))
		res.BetsPlaced = s.betsSinceRoll
		res.Wagered = s.wagerSinceRoll
		res.Shooter = uid == t.shooter
		s.betsSinceRoll, s.wagerSinceRoll = 0, 0
		s.session.Rolls++
		report.Players = append(report.Players, res)

		var entries []service.LedgerEntry
		if res.Won > 0 {
			entries = append(entries, service.LedgerEntry{Amount: res.Won, Type: model.TxTypeCrapsWin, Description: "roll " + roll.Label()})
		}
		if res.Lost > 0 {
			entries = append(entries, service.LedgerEntry{Amount: -res.Lost, Type: model.TxTypeCrapsBet, Description: "roll " + roll.Label()})
		}
		if res.Payout > 0 || len(entries) > 0 {
			t.syncBalance(s, entries...)
		}
	}

	t.round = next
	t.history.Append(roll)

	t.publish(EventRollHistory, RollHistoryData{
		Roll:   roll,
		Recent: t.history.Recent(t.cfg.HistoryLimit),
		Stats:  t.history.Stats(),
	})
	for _, res := range report.Players {
		s := t.seats[res.UserID]
		if res.Payout > 0 {
			t.publish(EventPlayerWin, PlayerWinData{
				UserID:   res.UserID,
				Name:     s.name,
				Payout:   res.Payout,
				Net:      res.Net,
				Balance:  s.balance,
				Outcomes: res.Outcomes,
			})
		}
		t.publish(EventSessionStats, SessionStatsData{UserID: res.UserID, Session: s.session})
	}

	if out.SevenOut && len(t.order) > 0 {
		prev := t.shooter
		t.shooter = 0
		t.startOffers(prev)
	}

	t.publish(EventGameState, t.snapshotAt(seconds(t.cfg.BettingDuration)))

	log.Debug().
		Str("room_id", t.id).
		Int64("roll", roll.Number).
		Int("total", roll.Total).
		Str("phase", string(next.Phase)).
		Int("point", next.Point).
		Msg("Roll resolved")

	r := *report
	t.later(func() { t.hooks.RollSettled(r) })
	return report
}

// settle applies a settlement to the seat and returns the player's result.
func settle(s *seat, st craps.Settlement) PlayerResult {
	res := PlayerResult{
		UserID:   s.userID,
		Name:     s.name,
		Payout:   st.Payout,
		Net:      st.Net(),
		Lost:     st.Lost,
		AllWon:   st.AllWon,
		Outcomes: st.Outcomes,
	}
	for _, o := range st.Outcomes {
		if o.Result == craps.ResultWin {
			res.Won += o.Payout - o.Bet.Amount - o.Bet.Commission
		}
	}

	s.balance += st.Payout
	s.session.Won += res.Won
	s.session.Net += res.Won - res.Lost
	s.session.BiggestWin = max(s.session.BiggestWin, res.Won)
	res.Balance = s.balance
	return res
}

// Snapshot returns the current state of the table.
func (t *Table) Snapshot() *Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

// History returns up to limit recent rolls, newest first, and the
// aggregate stats of the table.
func (t *Table) History(limit int) ([]craps.Roll, craps.HistoryStats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if limit <= 0 {
		limit = t.cfg.HistoryLimit
	}
	return t.history.Recent(limit), t.history.Stats()
}

// Seated reports whether userID sits at the table.
func (t *Table) Seated(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seats[userID]
	return ok
}

// Players returns the number of seated players.
func (t *Table) Players() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seats)
}

func (t *Table) snapshot() *Snapshot {
	return t.snapshotAt(t.remaining)
}

func (t *Table) snapshotAt(countdown int) *Snapshot {
	snap := &Snapshot{
		RoomID:          t.id,
		Seq:             t.seq,
		Round:           t.round,
		PuckOn:          t.round.PuckOn(),
		BettingLocked:   t.bettingLocked,
		Resolving:       t.resolving,
		Countdown:       countdown,
		BettingDuration: seconds(t.cfg.BettingDuration),
		RollNumber:      t.rollNumber,
		Host:            t.host,
		Shooter:         t.shooter,
		ShooterOffer:    t.offer,
		Players:         make([]PlayerView, 0, len(t.order)),
	}
	if recent := t.history.Recent(1); len(recent) == 1 {
		snap.LastRoll = &recent[0]
	}
	for _, uid := range t.order {
		snap.Players = append(snap.Players, t.view(t.seats[uid]))
	}
	return snap
}

func (t *Table) view(s *seat) PlayerView {
	return PlayerView{
		UserID:    s.userID,
		Name:      s.name,
		Balance:   s.balance,
		Bets:      s.ledger.Bets(),
		Connected: s.connected,
		IsHost:    s.userID == t.host,
		IsShooter: s.userID == t.shooter,
		Session:   s.session,
	}
}

func (t *Table) seatReport(s *seat) SeatReport {
	return SeatReport{
		RoomID:    t.id,
		UserID:    s.userID,
		Name:      s.name,
		SessionID: s.sessionID,
		Balance:   s.balance,
		JoinedAt:  s.joinedAt,
		LeftAt:    t.clock.Now(),
		Session:   s.session,
	}
}
