// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"craps-server/internal/config"
	"craps-server/internal/game/table"
	"craps-server/internal/handler"
	"craps-server/internal/realtime"
	"craps-server/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot      *tele.Bot
	cfg      *config.Config
	privates *PrivateUsers

	accountHandler *handler.AccountHandler
	adminHandler   *handler.AdminHandler
	rankingHandler *handler.RankingHandler
	crapsHandler   *handler.CrapsHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config         *config.Config
	AccountService *service.AccountService
	RankingService *service.RankingService
	StatsService   *service.StatsService
	ClaimService   *service.ClaimService
	BoostService   *service.BoostService
	Rooms          *table.Manager
	Hub            *realtime.Hub
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Bot handler failed")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:      teleBot,
		cfg:      deps.Config,
		privates: NewPrivateUsers(),
	}

	b.accountHandler = handler.NewAccountHandler(deps.AccountService, deps.StatsService, deps.ClaimService, deps.BoostService, deps.Rooms)
	b.adminHandler = handler.NewAdminHandler(deps.AccountService)
	b.rankingHandler = handler.NewRankingHandler(deps.RankingService)
	b.crapsHandler = handler.NewCrapsHandler(deps.Rooms, deps.Hub, deps.AccountService, deps.Config.Craps.HistoryDisplayLimit)
	b.crapsHandler.SetSender(teleBot)

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg, b.privates))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	// Account
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/balance", b.accountHandler.HandleBalance)
	b.bot.Handle("/daily", b.accountHandler.HandleDaily)
	b.bot.Handle("/stats", b.accountHandler.HandleStats)
	b.bot.Handle("/boosts", b.accountHandler.HandleBoosts)
	b.bot.Handle("/top", b.rankingHandler.HandleTop)

	// Admin
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/admin_add", b.adminHandler.HandleAdminAdd)
	adminGroup.Handle("/admin_set", b.adminHandler.HandleAdminSet)

	// Craps, group chats only
	tableGroup := b.bot.Group()
	tableGroup.Use(GroupOnlyMiddleware())
	tableGroup.Handle("/craps", b.crapsHandler.HandleCraps)
	tableGroup.Handle("/bet", b.crapsHandler.HandleBet)
	tableGroup.Handle("/remove", b.crapsHandler.HandleRemove)
	tableGroup.Handle("/roll", b.crapsHandler.HandleRoll)
	tableGroup.Handle("/mybets", b.crapsHandler.HandleMyBets)
	tableGroup.Handle("/table", b.crapsHandler.HandleTable)
	tableGroup.Handle("/history", b.crapsHandler.HandleHistory)
	tableGroup.Handle("/shooter", b.crapsHandler.HandleShooter)
	tableGroup.Handle("/leave", b.crapsHandler.HandleLeave)

	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

// handleCallback routes callbacks to appropriate handlers.
func (b *Bot) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}

	// Telebot v3 may add a \f prefix to callback data
	data := strings.TrimPrefix(callback.Data, "\f")
	log.Debug().Str("data", data).Msg("Callback received")

	switch {
	case strings.HasPrefix(data, handler.CrapsPrefix):
		return b.crapsHandler.HandleCallback(c)
	case strings.HasPrefix(data, handler.BoostPrefix):
		return b.accountHandler.HandleBoostCallback(c)
	}
	return c.Respond()
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.crapsHandler.StopWatching()
	b.bot.Stop()
}
