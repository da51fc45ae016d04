package httptransport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"craps-server/internal/boost"
	"craps-server/internal/model"
	"craps-server/internal/service"
)

// Accounts is the balance store used by the HTTP layer.
type Accounts interface {
	GetBalance(ctx context.Context, userID int64) (int64, error)
	LoadBalance(ctx context.Context, userID int64, username string, local *int64) (int64, error)
	SetBalance(ctx context.Context, userID int64, balance int64, txType string) (int64, error)
}

// Stats serves per-user statistics and the jackpot.
type Stats interface {
	GetStats(ctx context.Context, userID int64) (*model.GameStats, error)
	ListSessions(ctx context.Context, userID int64, limit int) ([]*model.PlaySession, error)
	GetJackpot(ctx context.Context) (*model.Jackpot, error)
}

// Rankings serves the leaderboard.
type Rankings interface {
	GetLeaderboard(ctx context.Context, limit int) (*service.Leaderboard, error)
}

// Boosts serves the boost shop.
type Boosts interface {
	Inventory(ctx context.Context, userID int64) (*service.Inventory, error)
	Purchase(ctx context.Context, userID int64, t boost.Type) (int64, error)
	Activate(ctx context.Context, userID int64, t boost.Type) (time.Time, error)
}

// Memberships records membership confirmations.
type Memberships interface {
	Confirm(ctx context.Context, userID int64, tier string) (*model.Membership, error)
}

// Claims grants the daily bonus.
type Claims interface {
	Claim(ctx context.Context, email string, userID *int64) (*service.ClaimResult, error)
}

// SeatBalances reports the live balance of a seated player.
type SeatBalances interface {
	SeatBalance(userID int64) (int64, bool)
}

// AccountHandlers serves balances, stats and the shop.
type AccountHandlers struct {
	accounts    Accounts
	seats       SeatBalances
	stats       Stats
	rankings    Rankings
	boosts      Boosts
	memberships Memberships
	claims      Claims
}

// NewAccountHandlers creates the account handlers.
func NewAccountHandlers(accounts Accounts, seats SeatBalances, stats Stats, rankings Rankings, boosts Boosts, memberships Memberships, claims Claims) *AccountHandlers {
	return &AccountHandlers{
		accounts:    accounts,
		seats:       seats,
		stats:       stats,
		rankings:    rankings,
		boosts:      boosts,
		memberships: memberships,
		claims:      claims,
	}
}

// GetBalance returns the balance of a user. A seated player gets the live
// seat balance, which may be ahead of the stored one.
func (h *AccountHandlers) GetBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDParam(r, "userID")
		if !ok {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_user_id")
			return
		}
		if balance, seated := h.seats.SeatBalance(userID); seated {
			writeOK(w, map[string]any{"user_id": userID, "balance": balance, "seated": true})
			return
		}
		balance, err := h.accounts.GetBalance(r.Context(), userID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeOK(w, map[string]any{"user_id": userID, "balance": balance, "seated": false})
	}
}

type updateBalanceRequest struct {
	Balance      *int64 `json:"balance"`
	LocalBalance *int64 `json:"local_balance"`
	Name         string `json:"name"`
}

// UpdateBalance sets an exact balance, or reconciles a client-cached
// local_balance against the stored one.
func (h *AccountHandlers) UpdateBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDParam(r, "userID")
		if !ok {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_user_id")
			return
		}
		var req updateBalanceRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}

		var (
			balance int64
			err     error
		)
		switch {
		case req.Balance != nil:
			balance, err = h.accounts.SetBalance(r.Context(), userID, *req.Balance, model.TxTypeSync)
		case req.LocalBalance != nil:
			balance, err = h.accounts.LoadBalance(r.Context(), userID, req.Name, req.LocalBalance)
		default:
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeOK(w, map[string]any{"user_id": userID, "balance": balance})
	}
}

func (h *AccountHandlers) Stats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDParam(r, "userID")
		if !ok {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_user_id")
			return
		}
		st, err := h.stats.GetStats(r.Context(), userID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeOK(w, map[string]any{"stats": st, "level": st.Level()})
	}
}

func (h *AccountHandlers) Sessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDParam(r, "userID")
		if !ok {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_user_id")
			return
		}
		sessions, err := h.stats.ListSessions(r.Context(), userID, ParseLimit(r, 20, 100))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeOK(w, map[string]any{"sessions": sessions})
	}
}

func (h *AccountHandlers) Leaderboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		board, err := h.rankings.GetLeaderboard(r.Context(), ParseLimit(r, 10, 50))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeOK(w, map[string]any{
			"top_balances":  board.TopBalances,
			"today_winners": board.TodayWinners,
			"all_time":      board.AllTime,
		})
	}
}

func (h *AccountHandlers) Jackpot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jp, err := h.stats.GetJackpot(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeOK(w, map[string]any{"jackpot": jp})
	}
}

type membershipRequest struct {
	UserID int64  `json:"user_id"`
	Tier   string `json:"tier"`
}

func (h *AccountHandlers) ConfirmMembership() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req membershipRequest
		if err := decodeJSON(r, &req); err != nil || req.UserID <= 0 {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		m, err := h.memberships.Confirm(r.Context(), req.UserID, req.Tier)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeOK(w, map[string]any{"membership": m})
	}
}

func (h *AccountHandlers) Boosts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDParam(r, "userID")
		if !ok {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_user_id")
			return
		}
		inv, err := h.boosts.Inventory(r.Context(), userID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeOK(w, map[string]any{"catalog": inv.Catalog, "items": inv.Items, "active": inv.Active})
	}
}

type boostRequest struct {
	Boost boost.Type `json:"boost"`
}

func (h *AccountHandlers) PurchaseBoost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDParam(r, "userID")
		if !ok {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_user_id")
			return
		}
		var req boostRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		balance, err := h.boosts.Purchase(r.Context(), userID, req.Boost)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeOK(w, map[string]any{"boost": req.Boost, "balance": balance})
	}
}

func (h *AccountHandlers) ActivateBoost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDParam(r, "userID")
		if !ok {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_user_id")
			return
		}
		var req boostRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		expiresAt, err := h.boosts.Activate(r.Context(), userID, req.Boost)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeOK(w, map[string]any{"boost": req.Boost, "expires_at": expiresAt})
	}
}

type claimRequest struct {
	Email  string `json:"email"`
	UserID *int64 `json:"user_id"`
}

// ClaimDailyBonus grants the daily bonus once per cooldown per email.
func (h *AccountHandlers) ClaimDailyBonus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req claimRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		res, err := h.claims.Claim(r.Context(), req.Email, req.UserID)
		if errors.Is(err, service.ErrClaimCooldown) {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"ok":            false,
				"error":         "claim_cooldown",
				"next_claim_at": res.NextClaimAt,
			})
			return
		}
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		body := map[string]any{"reward": res.Reward, "next_claim_at": res.NextClaimAt}
		if res.Balance != nil {
			body["balance"] = *res.Balance
		}
		writeOK(w, body)
	}
}
