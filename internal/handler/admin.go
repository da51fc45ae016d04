package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"craps-server/internal/model"
	"craps-server/internal/repository"
	"craps-server/internal/service"
)

// AdminHandler handles admin-related commands.
type AdminHandler struct {
	accountService *service.AccountService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(accountService *service.AccountService) *AdminHandler {
	return &AdminHandler{accountService: accountService}
}

// HandleAdminAdd handles the /admin_add command.
// Format: /admin_add <user_id> <amount>
func (h *AdminHandler) HandleAdminAdd(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	targetID, amount, err := parseAdminArgs(c.Args(), "/admin_add")
	if err != nil {
		return c.Reply(err.Error())
	}
	if amount == 0 {
		return c.Reply("❌ The amount must not be 0")
	}

	desc := fmt.Sprintf("admin %d adjustment", sender.ID)
	balance, err := h.accountService.ApplyDelta(ctx, targetID, amount, model.TxTypeAdminAdd, desc)
	if errors.Is(err, repository.ErrUserNotFound) {
		return c.Reply("❌ User not found")
	}
	if err != nil {
		return c.Reply(ErrorMessage(err))
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("target_id", targetID).
		Int64("amount", amount).
		Str("operation", "admin_add").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf(
		"✅ Done\n\n"+
			"👤 User ID: %d\n"+
			"➕ Change: %+d coins\n"+
			"💰 Balance: %d coins",
		targetID, amount, balance,
	))
}

// HandleAdminSet handles the /admin_set command.
// Format: /admin_set <user_id> <balance>
func (h *AdminHandler) HandleAdminSet(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	targetID, newBalance, err := parseAdminArgs(c.Args(), "/admin_set")
	if err != nil {
		return c.Reply(err.Error())
	}
	if newBalance < 0 {
		return c.Reply("❌ The balance cannot be negative")
	}

	balance, err := h.accountService.SetBalance(ctx, targetID, newBalance, model.TxTypeAdminSet)
	if errors.Is(err, repository.ErrUserNotFound) {
		return c.Reply("❌ User not found")
	}
	if err != nil {
		return c.Reply(ErrorMessage(err))
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("target_id", targetID).
		Int64("new_balance", balance).
		Str("operation", "admin_set").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf(
		"✅ Done\n\n"+
			"👤 User ID: %d\n"+
			"💰 Balance: %d coins",
		targetID, balance,
	))
}

// parseAdminArgs parses "<user_id> <amount>".
func parseAdminArgs(args []string, command string) (int64, int64, error) {
	if len(args) < 2 {
		return 0, 0, fmt.Errorf("❌ Usage: %s <user_id> <amount>\nExample: %s 123456789 100", command, command)
	}

	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, errors.New("❌ The user ID must be a number")
	}

	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return 0, 0, errors.New("❌ The amount must be a whole number")
	}

	return targetID, amount, nil
}
