package httptransport

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"craps-server/internal/game/table"
	"craps-server/internal/repository"
	"craps-server/internal/service"
)

var serviceErrors = []struct {
	err    error
	status int
	code   string
}{
	{service.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{service.ErrUnknownBoost, http.StatusBadRequest, "unknown_boost"},
	{service.ErrNoBoostLeft, http.StatusConflict, "no_boost_left"},
	{service.ErrInvalidEmail, http.StatusBadRequest, "invalid_email"},
	{service.ErrClaimCooldown, http.StatusTooManyRequests, "claim_cooldown"},
	{service.ErrInvalidTier, http.StatusBadRequest, "invalid_tier"},
	{repository.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{repository.ErrMembershipNotFound, http.StatusNotFound, "membership_not_found"},
}

var tableStatus = map[string]int{
	"room_not_found":   http.StatusNotFound,
	"not_seated":       http.StatusNotFound,
	"not_shooter":      http.StatusForbidden,
	"not_host":         http.StatusForbidden,
	"table_full":       http.StatusConflict,
	"table_closed":     http.StatusConflict,
	"resolving":        http.StatusConflict,
	"betting_locked":   http.StatusConflict,
	"wrong_phase":      http.StatusConflict,
	"tracking_started": http.StatusConflict,
	"bet_locked":       http.StatusConflict,
	"no_shooter_offer": http.StatusConflict,
}

// errorStatus maps err to a status and a stable code.
func errorStatus(err error) (int, string) {
	if code := table.ErrorCode(err); code != "" {
		if status, ok := tableStatus[code]; ok {
			return status, code
		}
		return http.StatusBadRequest, code
	}
	for _, e := range serviceErrors {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeServiceError writes the response for err, logging unexpected ones.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
	}
	WriteHTTPError(w, status, code)
}
