package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"craps-server/internal/model"
)

// Daily bonus errors.
var (
	ErrInvalidEmail  = errors.New("invalid email")
	ErrClaimCooldown = errors.New("daily bonus already claimed")
)

// ClaimResult describes a daily bonus claim attempt.
type ClaimResult struct {
	Reward      int64     `json:"reward"`
	Balance     *int64    `json:"balance,omitempty"`
	NextClaimAt time.Time `json:"next_claim_at"`
}

// ClaimStore records daily claims. TryClaim reports claimed=false when the
// email is still inside its cooldown.
type ClaimStore interface {
	TryClaim(ctx context.Context, email string, now time.Time, cooldown time.Duration) (*model.DailyClaim, bool, error)
}

// Creditor credits a reward to an account.
type Creditor interface {
	ApplyDelta(ctx context.Context, userID int64, amount int64, txType, description string) (int64, error)
}

// TxRunner runs fn inside one database transaction. trm.Manager satisfies it.
type TxRunner interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// ClaimService grants the daily bonus at most once per cooldown per email.
type ClaimService struct {
	claims   ClaimStore
	account  Creditor
	tx       TxRunner
	reward   int64
	cooldown time.Duration
	now      func() time.Time
}

// NewClaimService creates a new ClaimService instance.
func NewClaimService(claims ClaimStore, account Creditor, tx TxRunner, reward int64, cooldown time.Duration) *ClaimService {
	return &ClaimService{
		claims:   claims,
		account:  account,
		tx:       tx,
		reward:   reward,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// NormalizeEmail lowercases and validates an email address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// TelegramEmail is the claim key used for bot players, who have no email.
func TelegramEmail(userID int64) string {
	return fmt.Sprintf("tg%d@telegram.local", userID)
}

// Claim records a claim for email. When userID is set the reward is also
// credited to that account, in the same transaction as the claim, so a
// failed credit leaves the cooldown untouched. A claim inside the cooldown
// returns ErrClaimCooldown together with the time the next claim opens.
func (s *ClaimService) Claim(ctx context.Context, email string, userID *int64) (*ClaimResult, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	result := &ClaimResult{}
	err = s.tx.Do(ctx, func(txCtx context.Context) error {
		claim, claimed, err := s.claims.TryClaim(txCtx, email, s.now(), s.cooldown)
		if err != nil {
			return err
		}
		result.NextClaimAt = claim.NextClaimAt
		if !claimed {
			return ErrClaimCooldown
		}
		if userID == nil {
			return nil
		}
		balance, err := s.account.ApplyDelta(txCtx, *userID, s.reward, model.TxTypeDaily, "daily bonus")
		if err != nil {
			log.Error().Err(err).Int64("user_id", *userID).Str("email", email).Msg("Failed to credit daily bonus")
			return err
		}
		result.Balance = &balance
		return nil
	})
	if errors.Is(err, ErrClaimCooldown) {
		return result, ErrClaimCooldown
	}
	if err != nil {
		return nil, err
	}
	result.Reward = s.reward
	return result, nil
}
