// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"craps-server/internal/boost"
	"craps-server/internal/game/table"
	"craps-server/internal/service"
)

// AccountHandler handles account-related commands.
type AccountHandler struct {
	accountService *service.AccountService
	statsService   *service.StatsService
	claimService   *service.ClaimService
	boostService   *service.BoostService
	rooms          *table.Manager
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(
	accountService *service.AccountService,
	statsService *service.StatsService,
	claimService *service.ClaimService,
	boostService *service.BoostService,
	rooms *table.Manager,
) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		statsService:   statsService,
		claimService:   claimService,
		boostService:   boostService,
		rooms:          rooms,
	}
}

// HandleStart handles the /start command.
// Creates the account with the starting balance if it doesn't exist.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	username := senderName(sender)
	user, created, err := h.accountService.EnsureUser(ctx, sender.ID, username)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to create account")
		return c.Reply("❌ Could not create your account, please try again later")
	}

	if created {
		return c.Reply(fmt.Sprintf(
			"🎉 Welcome @%s!\n\n"+
				"Your account is ready with %d coins.\n\n"+
				"Commands:\n"+
				"/craps - sit at this chat's table\n"+
				"/bet <area> <amount> - place a bet\n"+
				"/roll - throw the dice (shooter only)\n"+
				"/mybets - your bets\n"+
				"/history - recent rolls\n"+
				"/leave - leave the table\n"+
				"/balance - your balance\n"+
				"/daily - daily bonus\n"+
				"/stats - your craps stats\n"+
				"/boosts - XP boosts\n"+
				"/top - leaderboard",
			username, user.Balance,
		))
	}

	return c.Reply(fmt.Sprintf("👋 Welcome back @%s!\n\n💰 Balance: %d coins", username, user.Balance))
}

// HandleBalance handles the /balance command.
// A seated player sees the live seat balance.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if balance, ok := h.rooms.SeatBalance(sender.ID); ok {
		return c.Reply(fmt.Sprintf("💰 Balance: %d coins (seated)", balance))
	}

	balance, err := h.accountService.GetBalance(ctx, sender.ID)
	if err != nil {
		// User might not exist, try to create
		user, _, err := h.accountService.EnsureUser(ctx, sender.ID, senderName(sender))
		if err != nil {
			return c.Reply("❌ Could not load your balance, please try again later")
		}
		balance = user.Balance
	}

	return c.Reply(fmt.Sprintf("💰 Balance: %d coins", balance))
}

// HandleDaily handles the /daily command.
func (h *AccountHandler) HandleDaily(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if _, _, err := h.accountService.EnsureUser(ctx, sender.ID, senderName(sender)); err != nil {
		return c.Reply("❌ Something went wrong, please try again later")
	}

	userID := sender.ID
	res, err := h.claimService.Claim(ctx, service.TelegramEmail(userID), &userID)
	if errors.Is(err, service.ErrClaimCooldown) {
		wait := time.Until(res.NextClaimAt).Round(time.Minute)
		return c.Reply(fmt.Sprintf("⏰ Already claimed. Come back in %s", boost.FormatDuration(wait)))
	}
	if err != nil {
		return c.Reply("❌ Could not claim the bonus, please try again later")
	}

	msg := fmt.Sprintf("✅ Daily bonus: +%d coins", res.Reward)
	if res.Balance != nil {
		msg += fmt.Sprintf("\n💰 Balance: %d", *res.Balance)
	}
	return c.Reply(msg)
}

// HandleStats handles the /stats command.
func (h *AccountHandler) HandleStats(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	st, err := h.statsService.GetStats(ctx, sender.ID)
	if err != nil {
		return c.Reply("❌ Could not load your stats, please try again later")
	}

	next := st.Level() * 1000
	return c.Reply(fmt.Sprintf(
		"📊 Craps stats for @%s\n"+
			divider+"\n"+
			"⭐ Level %d (%d/%d XP)\n"+
			"🎲 Rolls: %d\n"+
			"🎯 Bets placed: %d\n"+
			"💸 Wagered: %d\n"+
			"💰 Won: %d\n"+
			"🏆 Biggest win: %d\n"+
			"🎉 Points made: %d\n"+
			"💥 Seven outs: %d\n"+
			divider,
		senderName(sender), st.Level(), st.XP, next,
		st.Rolls, st.BetsPlaced, st.TotalWagered, st.TotalWon,
		st.BiggestWin, st.PointsMade, st.SevenOuts,
	))
}

// HandleBoosts handles the /boosts command.
func (h *AccountHandler) HandleBoosts(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	msg, markup, err := h.boostPanel(context.Background(), sender.ID)
	if err != nil {
		return c.Reply("❌ Could not load boosts, please try again later")
	}
	return c.Reply(msg, markup)
}

func (h *AccountHandler) boostPanel(ctx context.Context, userID int64) (string, *tele.ReplyMarkup, error) {
	inv, err := h.boostService.Inventory(ctx, userID)
	if err != nil {
		return "", nil, err
	}

	owned := make(map[boost.Type]int, len(inv.Items))
	for _, item := range inv.Items {
		owned[boost.Type(item.BoostType)] = item.UseCount
	}

	var sb strings.Builder
	sb.WriteString("⚡ XP boosts\n" + divider + "\n")
	for _, b := range inv.Catalog {
		fmt.Fprintf(&sb, "%s %s: %s\n", b.Emoji, b.Name, b.Description)
	}
	if len(inv.Active) > 0 {
		sb.WriteString(divider + "\n")
		for _, a := range inv.Active {
			cfg, _ := boost.Get(boost.Type(a.BoostType))
			fmt.Fprintf(&sb, "▶️ %s %s: %s left\n", cfg.Emoji, cfg.Name,
				boost.FormatDuration(time.Until(a.ExpiresAt).Round(time.Minute)))
		}
	}
	sb.WriteString(divider)
	return sb.String(), BuildBoostPanel(inv.Catalog, owned), nil
}

// HandleBoostCallback handles the buy and use buttons of the boost panel.
func (h *AccountHandler) HandleBoostCallback(c tele.Context) error {
	ctx := context.Background()
	cb, sender := c.Callback(), c.Sender()
	if cb == nil || sender == nil {
		return nil
	}

	action, param := DecodeCallback(BoostPrefix, cb.Data)
	t := boost.Type(param)
	cfg, ok := boost.Get(t)
	if !ok {
		return c.Respond(&tele.CallbackResponse{Text: ErrorMessage(service.ErrUnknownBoost)})
	}

	var text string
	switch action {
	case "buy":
		balance, err := h.boostService.Purchase(ctx, sender.ID, t)
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: ErrorMessage(err), ShowAlert: true})
		}
		text = fmt.Sprintf("✅ Bought %s | 💰 %d", cfg.Name, balance)
	case "use":
		expires, err := h.boostService.Activate(ctx, sender.ID, t)
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: ErrorMessage(err), ShowAlert: true})
		}
		text = fmt.Sprintf("⚡ %s active until %s", cfg.Name, expires.Format("15:04"))
	default:
		return c.Respond()
	}

	if msg, markup, err := h.boostPanel(ctx, sender.ID); err == nil {
		if err := c.Edit(msg, markup); err != nil {
			log.Debug().Err(err).Msg("Failed to refresh boost panel")
		}
	}
	return c.Respond(&tele.CallbackResponse{Text: text})
}
