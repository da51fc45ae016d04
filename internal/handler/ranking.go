package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"craps-server/internal/model"
	"craps-server/internal/service"
)

// RankingHandler handles ranking-related commands.
type RankingHandler struct {
	rankingService *service.RankingService
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(rankingService *service.RankingService) *RankingHandler {
	return &RankingHandler{
		rankingService: rankingService,
	}
}

// HandleTop handles the /top command.
// Displays the richest players, today's winners and all-time winnings.
func (h *RankingHandler) HandleTop(c tele.Context) error {
	board, err := h.rankingService.GetLeaderboard(context.Background(), 10)
	if err != nil {
		return c.Reply("❌ Could not load the leaderboard, please try again later")
	}
	return c.Reply(FormatLeaderboard(board))
}

var medals = []string{"🥇", "🥈", "🥉"}

func writeBoard(sb *strings.Builder, title string, entries []*model.LeaderboardEntry, signed bool) {
	sb.WriteString(title + "\n")
	if len(entries) == 0 {
		sb.WriteString("No data yet\n")
		return
	}
	for i, e := range entries {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		if signed {
			fmt.Fprintf(sb, "%s %s: %+d\n", rank, displayName(e.Username, e.UserID), e.Value)
		} else {
			fmt.Fprintf(sb, "%s %s: %d\n", rank, displayName(e.Username, e.UserID), e.Value)
		}
	}
}

// FormatLeaderboard renders the three leaderboards.
func FormatLeaderboard(board *service.Leaderboard) string {
	var sb strings.Builder
	sb.WriteString("🏆 Leaderboard\n" + divider + "\n")
	writeBoard(&sb, "💰 Richest", board.TopBalances, false)
	sb.WriteString(divider + "\n")
	writeBoard(&sb, "📈 Today's winners", board.TodayWinners, true)
	sb.WriteString(divider + "\n")
	writeBoard(&sb, "🎲 All-time winnings", board.AllTime, false)
	sb.WriteString(divider)
	return sb.String()
}
